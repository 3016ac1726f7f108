package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/shared"
)

// Registry holds the schemas of all persistent model classes and creates their entities.
type Registry struct {
	adapter *gateway.Adapter
	logger  *log.Logger
	*schemaSet
}

type schemaSet struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry creates an empty registry on top of adapter. A nil logger discards output.
func NewRegistry(adapter *gateway.Adapter, logger *log.Logger) *Registry {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Registry{adapter: adapter, logger: logger, schemaSet: &schemaSet{schemas: make(map[string]*Schema)}}
}

// Adapter returns the database adapter.
func (r *Registry) Adapter() *gateway.Adapter { return r.adapter }

// Bind returns a view of the registry whose tables and entities use a. Schemas stay shared.
func (r *Registry) Bind(a *gateway.Adapter) *Registry {
	if r.adapter == a {
		return r
	}
	return &Registry{adapter: a, logger: r.logger, schemaSet: r.schemaSet}
}

// Logger returns the registry logger.
func (r *Registry) Logger() *log.Logger { return r.logger }

// Register adds or replaces the schema of a class.
func (r *Registry) Register(s *Schema) error {
	if err := s.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Class] = s
	return nil
}

// MustRegister is like [Registry.Register] but panics on invalid schemas.
func (r *Registry) MustRegister(schemas ...*Schema) {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Schema returns the schema of class or [ErrUnknownClass].
func (r *Registry) Schema(class string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	return s, nil
}

// Has reports whether class is registered.
func (r *Registry) Has(class string) bool {
	_, err := r.Schema(class)
	return err == nil
}

// Classes returns the registered class names in sorted order.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Table returns the table gateway of class.
func (r *Registry) Table(class string, opts ...gateway.TableOption) (*gateway.Table, error) {
	s, err := r.Schema(class)
	if err != nil {
		return nil, err
	}
	return r.table(s, opts), nil
}

func (r *Registry) table(s *Schema, opts []gateway.TableOption) *gateway.Table {
	all := make([]gateway.TableOption, 0, len(s.TableOptions)+len(opts)+1)
	all = append(all, gateway.WithPrimary(s.Primary))
	all = append(all, s.TableOptions...)
	all = append(all, opts...)
	return r.adapter.Table(s.Table, all...)
}

// EntityOption configures entity construction.
type EntityOption func(*entityConfig)

type entityConfig struct {
	tableOpts []gateway.TableOption
	attrs     map[string]any
}

// WithTable adds table options such as a scope to the entity's gateway.
func WithTable(opts ...gateway.TableOption) EntityOption {
	return func(c *entityConfig) { c.tableOpts = append(c.tableOpts, opts...) }
}

// WithAttr passes a construction attribute to the schema's Init hook.
func WithAttr(key string, value any) EntityOption {
	return func(c *entityConfig) { c.attrs[key] = value }
}

func newEntityConfig(opts []EntityOption) *entityConfig {
	c := &entityConfig{attrs: make(map[string]any)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New creates an unsaved entity of class.
func (r *Registry) New(class string, opts ...EntityOption) (*Entity, error) {
	s, err := r.Schema(class)
	if err != nil {
		return nil, err
	}
	cfg := newEntityConfig(opts)
	table := r.table(s, cfg.tableOpts)
	return r.build(s, table, table.CreateRow(), cfg)
}

// Load fetches the entity of class with the given id. A missing row yields a [NotFoundError].
func (r *Registry) Load(class string, id int64, opts ...EntityOption) (*Entity, error) {
	s, err := r.Schema(class)
	if err != nil {
		return nil, err
	}
	cfg := newEntityConfig(opts)
	table := r.table(s, cfg.tableOpts)
	row, err := table.Find(id)
	if err != nil {
		if errors.Is(err, gateway.ErrRowNotFound) {
			return nil, &NotFoundError{Class: class, ID: id}
		}
		return nil, fmt.Errorf("failed to load %s#%d: %w", class, id, err)
	}
	return r.build(s, table, row, cfg)
}

// FromRow creates an entity of class from a row that was already fetched.
func (r *Registry) FromRow(class string, row *gateway.Row, opts ...EntityOption) (*Entity, error) {
	s, err := r.Schema(class)
	if err != nil {
		return nil, err
	}
	cfg := newEntityConfig(opts)
	table := r.table(s, cfg.tableOpts)
	if row.Table().Name() != table.Name() {
		return nil, fmt.Errorf("%w: row of %s cannot back %s", ErrInvalidArgument, row.Table().Name(), class)
	}
	return r.build(s, table, table.Wrap(row.Data()), cfg)
}

// FromRows creates entities of class from fetched rows.
func (r *Registry) FromRows(class string, rows []*gateway.Row, opts ...EntityOption) ([]*Entity, error) {
	out := make([]*Entity, 0, len(rows))
	for _, row := range rows {
		e, err := r.FromRow(class, row, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetAllFrom returns the entities of class with the given ids, or all of them when no id is given,
// in primary key order.
func (r *Registry) GetAllFrom(class string, ids ...int64) ([]*Entity, error) {
	table, err := r.Table(class)
	if err != nil {
		return nil, err
	}

	sel := table.Select().OrderBy(table.Primary() + " ASC")
	if len(ids) > 0 {
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		sel.WhereIn(table.Primary(), args...)
	}

	rows, err := table.FetchAll(sel)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", class, err)
	}
	return r.FromRows(class, rows)
}

func (r *Registry) build(s *Schema, table *gateway.Table, row *gateway.Row, cfg *entityConfig) (*Entity, error) {
	e := &Entity{
		Abstract: NewAbstract(s.Class),
		registry: r,
		schema:   s,
		table:    table,
		row:      row,
		attrs:    cfg.attrs,
		pending:  make(map[string]bool),
		logger:   r.logger.With("model", s.Class),
	}

	if s.Init != nil {
		if err := s.Init(e); err != nil {
			return nil, fmt.Errorf("failed to initialize %s: %w", s.Class, err)
		}
	}
	e.SetHidden(s.Hidden...)

	// externals without a declared field are inactive for this entity
	for _, ext := range s.Externals {
		if !e.HasField(ext.Name) {
			continue
		}
		if err := r.bindExternal(e, ext); err != nil {
			return nil, err
		}
	}

	if !row.IsNew() {
		if err := e.fetchInternal(); err != nil {
			return nil, err
		}
		if s.Link != nil {
			if err := e.fetchLinked(); err != nil {
				return nil, err
			}
		}
		for _, ext := range s.Externals {
			if !e.HasField(ext.Name) {
				continue
			}
			if ext.Fetch == Lazy {
				e.pending[ext.Name] = true
				continue
			}
			if err := e.loadExternal(ext); err != nil {
				return nil, err
			}
		}
	}

	e.ClearModified()
	e.constructed = true
	return e, nil
}

func (r *Registry) bindExternal(e *Entity, ext External) error {
	f, _ := e.field(ext.Name)
	if ext.Load != nil && ext.Model == "" {
		return nil
	}
	if !r.Has(ext.Model) {
		if ext.Load != nil {
			return nil
		}
		return fmt.Errorf("%w: %s.%s holds %q: %w", ErrModel, e.Class(), ext.Name, ext.Model, ErrUnknownClass)
	}

	model := ext.Model
	f.SetValueModelClass(model, func() (Model, error) { return r.New(model) })
	if ext.Through == "" {
		return nil
	}
	if !r.Has(ext.Through) {
		return fmt.Errorf("%w: %s.%s links through %q: %w", ErrModel, e.Class(), ext.Name, ext.Through, ErrUnknownClass)
	}
	through := ext.Through
	f.SetLinkModelClass(through, func(target Model) (Model, error) {
		link, err := r.New(through)
		if err != nil {
			return nil, err
		}
		if err := link.SetModel(target); err != nil {
			return nil, err
		}
		return link, nil
	})
	return nil
}
