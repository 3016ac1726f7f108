package domain

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/cache"
	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/raminkhorsandi/framework/internal/search"
	"github.com/raminkhorsandi/framework/internal/security"
	"github.com/raminkhorsandi/framework/internal/shared"
)

const cacheAll = "all"

// Library wires the repository's model classes to a database and holds the lookups they share:
// document types, the search indexer and cached licences, enrichment keys and organisational units.
type Library struct {
	registry *model.Registry
	adapter  *gateway.Adapter
	config   *shared.Config
	logger   *log.Logger
	doctypes *DoctypeRegistry
	indexer  search.Indexer
	modules  *security.AccessModules

	licences *cache.Cache[[]*model.Entity]
	keys     *cache.Cache[[]*EnrichmentKey]
	units    *cache.Cache[[]*OrganisationalUnit]
}

// Option configures a [Library].
type Option func(*Library)

// WithIndexer sets the indexer documents are removed from on delete. The default is [search.Noop].
func WithIndexer(i search.Indexer) Option {
	return func(l *Library) { l.indexer = i }
}

// WithDoctypes sets the document type registry instead of loading the configured directory.
func WithDoctypes(d *DoctypeRegistry) Option {
	return func(l *Library) { l.doctypes = d }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *log.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// New registers every model class on top of adapter. A nil config falls back to [shared.DefaultConfig].
func New(adapter *gateway.Adapter, cfg *shared.Config, opts ...Option) (*Library, error) {
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}
	l := &Library{
		adapter: adapter,
		config:  cfg,
		logger:  shared.DiscardLogger(),
		indexer: search.Noop{},
		modules: security.NewAccessModules(adapter),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.doctypes == nil {
		l.doctypes = NewDoctypeRegistry()
		if path := cfg.Doctypes.Path; path != "" {
			if _, err := os.Stat(path); err == nil {
				if err := l.doctypes.LoadDir(path); err != nil {
					return nil, err
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read doctypes: %w", err)
			}
		}
	}

	ttl := cfg.Cache.TTL.Duration
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	cleanup := cfg.Cache.CleanupInterval.Duration
	if cleanup <= 0 {
		cleanup = cache.DefaultCleanupInterval
	}
	l.licences = cache.New[[]*model.Entity]("licences", ttl, cleanup, l.logger)
	l.keys = cache.New[[]*EnrichmentKey]("enrichment-keys", ttl, cleanup, l.logger)
	l.units = cache.New[[]*OrganisationalUnit]("organisational-units", ttl, cleanup, l.logger)

	l.registry = model.NewRegistry(adapter, l.logger)
	schemas := append(l.dependentSchemas(), l.independentSchemas()...)
	schemas = append(schemas, l.linkSchemas()...)
	schemas = append(schemas,
		l.documentSchema(),
		l.collectionSchema(),
		l.collectionRoleSchema(),
		l.enrichmentKeySchema(),
	)
	for _, s := range schemas {
		if err := l.registry.Register(s); err != nil {
			return nil, err
		}
	}
	l.logger.Debug("library ready", "classes", len(schemas), "doctypes", len(l.doctypes.Names()))
	return l, nil
}

// Registry returns the model registry.
func (l *Library) Registry() *model.Registry { return l.registry }

// Adapter returns the database adapter.
func (l *Library) Adapter() *gateway.Adapter { return l.adapter }

// Config returns the configuration.
func (l *Library) Config() *shared.Config { return l.config }

// Logger returns the library logger.
func (l *Library) Logger() *log.Logger { return l.logger }

// Doctypes returns the document type registry.
func (l *Library) Doctypes() *DoctypeRegistry { return l.doctypes }

// Indexer returns the search indexer.
func (l *Library) Indexer() search.Indexer { return l.indexer }

// AccessModules returns the module grants of roles.
func (l *Library) AccessModules() *security.AccessModules { return l.modules }

// FlushCaches drops every cached lookup.
func (l *Library) FlushCaches() {
	l.licences.Flush()
	l.keys.Flush()
	l.units.Flush()
}

// AvailableLanguages returns the configured language codes in order.
func (l *Library) AvailableLanguages() []string {
	codes := make([]string, 0, len(l.config.Languages.Available))
	for code := range l.config.Languages.Available {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// New creates an unsaved model of class.
func (l *Library) New(class string) (*model.Entity, error) {
	return l.registry.New(class)
}

// Load fetches a stored model of class.
func (l *Library) Load(class string, id int64) (*model.Entity, error) {
	return l.registry.Load(class, id)
}

// Licences returns every licence ordered by sort order. The list is cached until a licence is stored.
func (l *Library) Licences() ([]*model.Entity, error) {
	return l.licences.Remember(cacheAll, func() ([]*model.Entity, error) {
		table, err := l.registry.Table(ClassLicence)
		if err != nil {
			return nil, err
		}
		rows, err := table.FetchAll(table.Select().OrderBy("sort_order ASC", "id ASC"))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch licences: %w", err)
		}
		return l.registry.FromRows(ClassLicence, rows)
	})
}

func (l *Library) flushLicences(*model.Entity) error {
	l.licences.Flush()
	return nil
}
