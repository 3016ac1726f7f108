package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raminkhorsandi/framework/internal/model"
)

// Result is one document as shown in a hit list.
type Result struct {
	ID          int64    `msgpack:"id" json:"id"`
	Score       float64  `msgpack:"score" json:"score"`
	Authors     []string `msgpack:"authors" json:"authors"`
	TitleDeu    string   `msgpack:"title_deu" json:"titleDeu"`
	TitleEng    string   `msgpack:"title_eng" json:"titleEng"`
	Year        string   `msgpack:"year" json:"year"`
	AbstractDeu string   `msgpack:"abstract_deu" json:"abstractDeu"`
	AbstractEng string   `msgpack:"abstract_eng" json:"abstractEng"`
}

// SetAuthors accepts a single author or a list of authors.
func (r *Result) SetAuthors(authors any) {
	switch a := authors.(type) {
	case nil:
		r.Authors = nil
	case string:
		r.Authors = []string{a}
	case []string:
		r.Authors = a
	case []any:
		r.Authors = make([]string, 0, len(a))
		for _, v := range a {
			r.Authors = append(r.Authors, fmt.Sprint(v))
		}
	default:
		r.Authors = []string{fmt.Sprint(a)}
	}
}

// Text returns the searchable text of the result in lower case.
func (r Result) Text() string {
	parts := append([]string{r.TitleDeu, r.TitleEng, r.AbstractDeu, r.AbstractEng}, r.Authors...)
	return strings.ToLower(strings.Join(parts, "\n"))
}

// FromModel shapes a document into a [Result]. Titles and abstracts are picked by language,
// authors are rendered by their display name and the year comes from the first publication
// or completion year found.
func FromModel(doc model.Persistent) (Result, error) {
	r := Result{ID: doc.ID()}

	var err error
	if r.TitleDeu, r.TitleEng, err = byLanguage(doc, "TitleMain"); err != nil {
		return r, err
	}
	if r.AbstractDeu, r.AbstractEng, err = byLanguage(doc, "TitleAbstract"); err != nil {
		return r, err
	}

	authors, err := models(doc, "PersonAuthor")
	if err != nil {
		return r, err
	}
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.DisplayName())
	}
	r.SetAuthors(names)

	for _, name := range []string{"PublishedYear", "CompletedYear", "PublishedDate", "CompletedDate"} {
		v, err := doc.Get(name)
		if err != nil || v == nil || v == "" {
			continue
		}
		s := fmt.Sprint(v)
		if len(s) > 4 {
			s = s[:4]
		}
		r.Year = s
		break
	}
	return r, nil
}

func byLanguage(doc model.Model, field string) (deu, eng string, err error) {
	values, err := models(doc, field)
	if err != nil {
		return "", "", err
	}
	for _, m := range values {
		lang, _ := m.Get("Language")
		value, _ := m.Get("Value")
		text := fmt.Sprint(value)
		switch lang {
		case "deu", "de":
			if deu == "" {
				deu = text
			}
		case "eng", "en":
			if eng == "" {
				eng = text
			}
		}
	}
	return deu, eng, nil
}

func models(doc model.Model, field string) ([]model.Model, error) {
	f, err := doc.Field(field)
	if err != nil {
		if errors.Is(err, model.ErrUnknownField) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]model.Model, 0, f.Len())
	for _, v := range f.Values() {
		if m, ok := v.(model.Model); ok {
			out = append(out, m)
		}
	}
	return out, nil
}
