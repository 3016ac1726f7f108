package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/raminkhorsandi/framework/internal/domain"
	"github.com/raminkhorsandi/framework/internal/model"
	"github.com/urfave/cli/v3"
)

type enrichmentKeyListing struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Options string `json:"options,omitempty"`
}

// EnrichmentKeys lists enrichment keys in order with their type and options.
func (r *Runner) EnrichmentKeys(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.library()
	if err != nil {
		return err
	}

	if cmd.Bool("referenced") {
		names, err := lib.EnrichmentKeysReferenced()
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(names, true)
		}
		for _, name := range names {
			r.writePlain("%s\n", name)
		}
		return nil
	}

	keys, err := lib.EnrichmentKeys(false)
	if err != nil {
		return err
	}
	listing := make([]enrichmentKeyListing, 0, len(keys))
	for _, k := range keys {
		l := enrichmentKeyListing{Name: k.Name()}
		if t := k.EnrichmentType(); t != nil {
			l.Type = t.Name()
			l.Options = t.OptionsPrintable()
		}
		listing = append(listing, l)
	}

	if cmd.Bool("json") {
		return r.writeJSON(listing, true)
	}

	r.writePlainHeader(fmt.Sprintf("Enrichment keys (%d)", len(listing)))
	for _, l := range listing {
		r.writePlain("%-30s %-14s %s\n", l.Name, l.Type, l.Options)
	}
	return nil
}

// doctypes returns the library's registry, or loads the configured directory when no library is open.
func (r *Runner) doctypes() (*domain.DoctypeRegistry, error) {
	if r.lib != nil {
		return r.lib.Doctypes(), nil
	}
	registry := domain.NewDoctypeRegistry()
	path := r.config.Doctypes.Path
	if path == "" {
		return registry, nil
	}
	if err := registry.LoadDir(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("doctypes directory not found", "path", path)
			return registry, nil
		}
		return nil, err
	}
	return registry, nil
}

// DoctypeList lists the registered document types, optionally with their fields.
func (r *Runner) DoctypeList(ctx context.Context, cmd *cli.Command) error {
	registry, err := r.doctypes()
	if err != nil {
		return err
	}

	names := registry.Names(cmd.String("workflow"))
	if len(names) == 0 {
		return r.writePlain("No document types registered\n")
	}

	for _, name := range names {
		t, err := registry.Get(name)
		if err != nil {
			return err
		}
		r.writePlain("%s (%s)\n", t.Name, t.Workflow)
		if !cmd.Bool("fields") {
			continue
		}
		for _, f := range t.Fields {
			r.writePlain("  %-28s %s\n", f.Name, fieldFlags(f))
		}
		for _, group := range t.Groups {
			r.writePlain("  one of: %s\n", strings.Join(group, ", "))
		}
	}
	return nil
}

func fieldFlags(f domain.FieldSpec) string {
	var flags []string
	switch f.Multiplicity {
	case model.Unbounded:
		flags = append(flags, "*")
	case 0, 1:
	default:
		flags = append(flags, fmt.Sprintf("max %d", f.Multiplicity))
	}
	if f.Mandatory {
		flags = append(flags, "mandatory")
	}
	return strings.Join(flags, ", ")
}
