package search

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var entriesBucket = []byte("entries")

// BoltIndexer keeps one [Result] per document in a bbolt file.
type BoltIndexer struct {
	db     *bbolt.DB
	logger *log.Logger
}

var (
	_ Indexer  = (*BoltIndexer)(nil)
	_ Searcher = (*BoltIndexer)(nil)
)

// OpenBolt opens or creates the index file at path.
func OpenBolt(path string, logger *log.Logger) (*BoltIndexer, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create bucket: %v", ErrIndex, err)
	}
	return &BoltIndexer{db: db, logger: logger}, nil
}

func key(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

// AddDocument shapes the document and replaces its entry.
func (b *BoltIndexer) AddDocument(doc model.Persistent) error {
	if doc.IsNewRecord() {
		return fmt.Errorf("%w: cannot index unstored %s", ErrIndex, doc.Class())
	}
	r, err := FromModel(doc)
	if err != nil {
		return fmt.Errorf("failed to shape %s: %w", doc.ResourceID(), err)
	}
	return b.Put(r)
}

// Put stores a shaped result.
func (b *BoltIndexer) Put(r Result) error {
	data, err := msgpack.Marshal(&r)
	if err != nil {
		return fmt.Errorf("%w: failed to encode %d: %v", ErrIndex, r.ID, err)
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).Put(key(r.ID), data)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to write %d: %v", ErrIndex, r.ID, err)
	}
	b.logger.Debug("indexed", "id", r.ID)
	return nil
}

// RemoveDocumentFromEntryIndex deletes the entry of id.
func (b *BoltIndexer) RemoveDocumentFromEntryIndex(id int64) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).Delete(key(id))
	})
	if err != nil {
		return fmt.Errorf("%w: failed to remove %d: %v", ErrIndex, id, err)
	}
	b.logger.Debug("removed from index", "id", id)
	return nil
}

// Get returns the entry of id.
func (b *BoltIndexer) Get(id int64) (Result, error) {
	var r Result
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(entriesBucket).Get(key(id))
		if data == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return msgpack.Unmarshal(data, &r)
	})
	return r, err
}

// Len returns the number of indexed documents.
func (b *BoltIndexer) Len() (int, error) {
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(entriesBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Search returns entries containing every term of query, case-insensitively. Results are scored by
// the number of term occurrences and ordered by score, then id. A limit of zero returns all hits.
func (b *BoltIndexer) Search(query string, limit int) ([]Result, error) {
	terms := strings.Fields(strings.ToLower(query))
	var hits []Result
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_, v []byte) error {
			var r Result
			if err := msgpack.Unmarshal(v, &r); err != nil {
				return err
			}
			text := r.Text()
			score := 0
			for _, t := range terms {
				n := strings.Count(text, t)
				if n == 0 {
					return nil
				}
				score += n
			}
			r.Score = float64(score)
			hits = append(hits, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", ErrIndex, query, err)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close closes the index file.
func (b *BoltIndexer) Close() error {
	return b.db.Close()
}
