package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/raminkhorsandi/framework/internal/domain"
	"github.com/raminkhorsandi/framework/internal/gateway"
	"github.com/raminkhorsandi/framework/internal/search"
	"github.com/raminkhorsandi/framework/internal/security"
	"github.com/raminkhorsandi/framework/internal/shared"
	"github.com/raminkhorsandi/framework/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The library, ACL and indexer are opened on first use so that commands which do not touch the
// repository (setup, doctype list) work without a database.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	db      *sql.DB
	lib     *domain.Library
	acl     *security.ACL
	indexer search.Indexer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	// Library and Indexer replace the ones opened from Config.
	Library *domain.Library
	Indexer search.Indexer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		lib:        opts.Library,
		indexer:    opts.Indexer,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, documentCommand, enrichmentCommand, aclCommand, indexCommand, doctypeCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// library opens the configured database, search index and model library once.
func (r *Runner) library() (*domain.Library, error) {
	if r.lib != nil {
		return r.lib, nil
	}

	db, err := shared.OpenFromConfig(r.config.Database)
	if err != nil {
		return nil, err
	}
	dialect := r.config.Database.Driver
	if dialect == "" {
		dialect = shared.DriverSQLite
	}
	adapter := gateway.NewAdapter(db, dialect, r.logger)

	if r.indexer == nil {
		if r.indexer, err = search.Open(r.config.Search, r.logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	lib, err := domain.New(adapter, r.config, domain.WithIndexer(r.indexer), domain.WithLogger(r.logger))
	if err != nil {
		db.Close()
		return nil, err
	}
	r.db, r.lib = db, lib
	return lib, nil
}

// accessControl loads the ACL from the library's database.
func (r *Runner) accessControl() (*security.ACL, error) {
	if r.acl != nil {
		return r.acl, nil
	}
	lib, err := r.library()
	if err != nil {
		return nil, err
	}
	acl, err := security.New(lib.Adapter(), r.logger.With("component", "acl"))
	if err != nil {
		return nil, err
	}
	r.acl = acl
	return acl, nil
}

// searchIndex returns the indexer of the library, or the configured one.
func (r *Runner) searchIndex() (search.Indexer, error) {
	if r.indexer != nil {
		return r.indexer, nil
	}
	lib, err := r.library()
	if err != nil {
		return nil, err
	}
	return lib.Indexer(), nil
}

func (r *Runner) engine() (*tasks.Engine, error) {
	lib, err := r.library()
	if err != nil {
		return nil, err
	}
	indexer, err := r.searchIndex()
	if err != nil {
		return nil, err
	}
	return tasks.NewEngine(lib, indexer), nil
}

// Close releases the search index and database opened by the runner.
func (r *Runner) Close() error {
	var errs []error
	if r.indexer != nil {
		errs = append(errs, r.indexer.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
