package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/model"
)

const dayLayout = "2006-01-02"

// SortOption orders document ids by a key: id, title, author, date (publication date) or type.
type SortOption struct {
	Key     string
	Reverse bool
}

// DateRange limits documents to a publication or modification day range. Empty bounds default to
// the earliest publication date and today.
type DateRange struct {
	From  string
	Until string
}

// OaiRestriction selects documents for harvesting. Empty lists do not restrict.
type OaiRestriction struct {
	ServerState []string
	Type        []string
	Date        *DateRange
}

// GetAll returns the documents with the given ids, or every document when no id is given.
func (l *Library) GetAll(ids ...int64) ([]*Document, error) {
	entities, err := l.registry.GetAllFrom(ClassDocument, ids...)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, len(entities))
	for i, e := range entities {
		docs[i] = l.wrapDocument(e)
	}
	return docs, nil
}

// GetAllByState returns every document in state.
func (l *Library) GetAllByState(state string) ([]*Document, error) {
	ids, err := l.GetAllIdsByState(state)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return l.GetAll(ids...)
}

// GetAllIds returns every document id in ascending or, reversed, descending order.
func (l *Library) GetAllIds(reverse bool) ([]int64, error) {
	return l.sortedIDs("", SortOption{Key: "id", Reverse: reverse})
}

// GetAllIdsByState returns the ids of documents in state.
func (l *Library) GetAllIdsByState(state string) ([]int64, error) {
	return l.sortedIDs(state, SortOption{Key: "id"})
}

// GetAllDocumentsByDoctype returns document ids ordered by type name.
func (l *Library) GetAllDocumentsByDoctype(reverse bool) ([]int64, error) {
	return l.sortedIDs("", SortOption{Key: "type", Reverse: reverse})
}

// GetAllDocumentsByDoctypeByState is [Library.GetAllDocumentsByDoctype] limited to state.
func (l *Library) GetAllDocumentsByDoctypeByState(state string, reverse bool) ([]int64, error) {
	return l.sortedIDs(state, SortOption{Key: "type", Reverse: reverse})
}

// GetAllDocumentsByPubDate returns document ids ordered by publication date.
func (l *Library) GetAllDocumentsByPubDate(reverse bool) ([]int64, error) {
	return l.sortedIDs("", SortOption{Key: "date", Reverse: reverse})
}

// GetAllDocumentsByPubDateByState is [Library.GetAllDocumentsByPubDate] limited to state.
func (l *Library) GetAllDocumentsByPubDateByState(state string, reverse bool) ([]int64, error) {
	return l.sortedIDs(state, SortOption{Key: "date", Reverse: reverse})
}

// GetAllDocumentsByAuthors returns document ids ordered by the first author last name.
func (l *Library) GetAllDocumentsByAuthors(reverse bool) ([]int64, error) {
	return l.sortedIDs("", SortOption{Key: "author", Reverse: reverse})
}

// GetAllDocumentsByAuthorsByState is [Library.GetAllDocumentsByAuthors] limited to state.
func (l *Library) GetAllDocumentsByAuthorsByState(state string, reverse bool) ([]int64, error) {
	return l.sortedIDs(state, SortOption{Key: "author", Reverse: reverse})
}

// GetAllDocumentsByTitles returns document ids ordered by main title.
func (l *Library) GetAllDocumentsByTitles(reverse bool) ([]int64, error) {
	return l.sortedIDs("", SortOption{Key: "title", Reverse: reverse})
}

// GetAllDocumentsByTitlesByState is [Library.GetAllDocumentsByTitles] limited to state.
func (l *Library) GetAllDocumentsByTitlesByState(state string, reverse bool) ([]int64, error) {
	return l.sortedIDs(state, SortOption{Key: "title", Reverse: reverse})
}

// GetAllDocumentIdsSorted returns document ids ordered by the given keys. Ties fall back to the id.
func (l *Library) GetAllDocumentIdsSorted(opts ...SortOption) ([]int64, error) {
	return l.sortedIDs("", opts...)
}

// GetAllDocumentIdsSortedByState is [Library.GetAllDocumentIdsSorted] limited to state.
func (l *Library) GetAllDocumentIdsSortedByState(state string, opts ...SortOption) ([]int64, error) {
	return l.sortedIDs(state, opts...)
}

func (l *Library) sortedIDs(state string, opts ...SortOption) ([]int64, error) {
	sel := gateway.NewSelect("documents d").Columns("d.id").GroupBy("d.id")
	joined := make(map[string]bool)
	for _, o := range opts {
		var expr string
		switch o.Key {
		case "id":
			expr = "d.id"
		case "type":
			expr = "MIN(d.type)"
		case "date", "server_date_published":
			expr = "MIN(d.server_date_published)"
		case "title":
			if !joined["title"] {
				sel.LeftJoin("document_title_abstracts t", "t.document_id = d.id AND t.type = 'main'")
				joined["title"] = true
			}
			expr = "MIN(t.value)"
		case "author":
			if !joined["author"] {
				sel.LeftJoin("link_persons_documents lp", "lp.document_id = d.id AND lp.role = 'author'")
				sel.LeftJoin("persons p", "p.id = lp.person_id")
				joined["author"] = true
			}
			expr = "MIN(p.last_name)"
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidSort, o.Key)
		}
		sel.OrderBy(expr + " " + gateway.Direction(o.Reverse))
	}
	if state != "" {
		sel.Where("d.server_state = ?", state)
	}
	sel.OrderBy("d.id ASC")

	ids, err := l.adapter.FetchIDs(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return ids, nil
}

// GetLatestIds returns the ids of the n most recently published documents. n defaults to 10.
func (l *Library) GetLatestIds(n int) ([]int64, error) {
	if n <= 0 {
		n = 10
	}
	sel := gateway.NewSelect("documents").
		Columns("id").
		Where("server_state = ?", StatePublished).
		OrderBy("server_date_published DESC", "id DESC").
		Limit(n)
	return l.adapter.FetchIDs(sel)
}

// GetEarliestPublicationDate returns the smallest publication date, "" when there are no documents.
func (l *Library) GetEarliestPublicationDate() (string, error) {
	v, err := l.adapter.FetchOne(gateway.NewSelect("documents").Columns("MIN(server_date_published)"))
	if err != nil {
		return "", err
	}
	return stringValue(v), nil
}

// GetIdsForDocType returns the ids of documents of a type.
func (l *Library) GetIdsForDocType(doctype string) ([]int64, error) {
	return l.adapter.FetchIDs(gateway.NewSelect("documents").
		Columns("id").
		Where("type = ?", doctype).
		OrderBy("id ASC"))
}

// GetIdsForDateRange returns the ids of documents published or modified between from and until,
// both days included. Dates are "2006-01-02" or RFC 3339 timestamps.
func (l *Library) GetIdsForDateRange(from, until string) ([]int64, error) {
	cond, args, err := l.dateRange(DateRange{From: from, Until: until})
	if err != nil {
		return nil, err
	}
	return l.adapter.FetchIDs(gateway.NewSelect("documents").
		Columns("id").
		Where(cond, args...).
		OrderBy("id ASC"))
}

// GetIdsOfOaiRequest returns the ids of documents matching every part of the restriction.
func (l *Library) GetIdsOfOaiRequest(r OaiRestriction) ([]int64, error) {
	sel := gateway.NewSelect("documents").Columns("id").OrderBy("id ASC")
	if len(r.ServerState) > 0 {
		sel.WhereIn("server_state", toAny(r.ServerState)...)
	}
	if len(r.Type) > 0 {
		sel.WhereIn("type", toAny(r.Type)...)
	}
	if r.Date != nil {
		cond, args, err := l.dateRange(*r.Date)
		if err != nil {
			return nil, err
		}
		sel.Where(cond, args...)
	}
	return l.adapter.FetchIDs(sel)
}

func (l *Library) dateRange(r DateRange) (string, []any, error) {
	from := r.From
	if from == "" {
		earliest, err := l.GetEarliestPublicationDate()
		if err != nil {
			return "", nil, err
		}
		from = earliest
	}
	start := time.Time{}
	if from != "" {
		t, err := model.ParseDate(from)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidDate, from)
		}
		start = t
	}

	end := time.Now().UTC()
	if r.Until != "" {
		t, err := model.ParseDate(r.Until)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidDate, r.Until)
		}
		end = t
	}

	lo := start.Format(dayLayout)
	hi := end.AddDate(0, 0, 1).Format(dayLayout)
	var conds []string
	var args []any
	for _, col := range []string{"server_date_published", "server_date_modified"} {
		conds = append(conds, col+" >= ? AND "+col+" < ?")
		args = append(args, lo, hi)
	}
	return strings.Join(conds, " OR "), args, nil
}

// GetAllDocumentTitles returns the main titles of documents by id, for every document when no id
// is given.
func (l *Library) GetAllDocumentTitles(ids ...int64) (map[int64][]string, error) {
	sel := gateway.NewSelect("document_title_abstracts").
		Columns("document_id", "value").
		Where("type = ?", "main").
		OrderBy("document_id ASC", "sort_order ASC", "id ASC")
	if len(ids) > 0 {
		sel.WhereIn("document_id", toAny(ids)...)
	}
	rows, err := l.adapter.FetchAll(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch titles: %w", err)
	}

	titles := make(map[int64][]string)
	for _, row := range rows {
		id, ok := gateway.ToInt64(row["document_id"])
		if !ok {
			continue
		}
		titles[id] = append(titles[id], stringValue(row["value"]))
	}
	return titles, nil
}
