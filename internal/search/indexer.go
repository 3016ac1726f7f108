package search

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/shared"
)

var (
	ErrIndex    = errors.New("index error")
	ErrNotFound = errors.New("not in index")
)

// Indexer keeps the search index in step with stored documents.
type Indexer interface {
	// AddDocument (re)indexes a stored document.
	AddDocument(doc model.Persistent) error
	// RemoveDocumentFromEntryIndex drops a document from the index. Unknown ids are ignored.
	RemoveDocumentFromEntryIndex(id int64) error
	Close() error
}

// Searcher answers queries against an index.
type Searcher interface {
	Search(query string, limit int) ([]Result, error)
}

// Noop ignores every call.
type Noop struct{}

func (Noop) AddDocument(model.Persistent) error       { return nil }
func (Noop) RemoveDocumentFromEntryIndex(int64) error { return nil }
func (Noop) Close() error                             { return nil }
func (Noop) Search(string, int) ([]Result, error)     { return nil, nil }

var (
	_ Indexer  = Noop{}
	_ Searcher = Noop{}
)

// Open returns the indexer selected by the configuration.
func Open(c shared.SearchConfig, logger *log.Logger) (Indexer, error) {
	switch c.Engine {
	case "", shared.SearchEngineNone:
		return Noop{}, nil
	case shared.SearchEngineBolt:
		return OpenBolt(c.Path, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported search engine %q", shared.ErrInvalidConfig, c.Engine)
	}
}
