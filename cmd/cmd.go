// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// documentCommand handles stored documents
func documentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "document",
		Aliases: []string{"doc"},
		Usage:   "Show, list, export and delete documents",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print a document with all its fields",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, yaml, xml, csv, markdown, txt",
						Value:   "json",
					},
				},
				Action: r.DocumentShow,
			},
			{
				Name:  "list",
				Usage: "List documents with their main titles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "state",
						Usage: "Only documents in this server state",
					},
					&cli.StringSliceFlag{
						Name:  "sort",
						Usage: "Sort keys: id, title, author, date, type",
						Value: []string{"id"},
					},
					&cli.BoolFlag{
						Name:  "reverse",
						Usage: "Reverse the sort order",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DocumentList,
			},
			{
				Name:  "ids",
				Usage: "Print document ids matching a harvesting restriction",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "state",
						Usage: "Server states",
					},
					&cli.StringSliceFlag{
						Name:  "type",
						Usage: "Document types",
					},
					&cli.StringFlag{
						Name:  "from",
						Usage: "First day (YYYY-MM-DD) of the publication or modification date",
					},
					&cli.StringFlag{
						Name:  "until",
						Usage: "Last day (YYYY-MM-DD) of the publication or modification date",
					},
					&cli.IntFlag{
						Name:  "latest",
						Usage: "Only the n most recently published documents",
					},
				},
				Action: r.DocumentIDs,
			},
			{
				Name:  "delete",
				Usage: "Mark a document deleted, or remove it",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "permanent",
						Usage: "Remove the document and its dependent records",
					},
				},
				Action: r.DocumentDelete,
			},
			{
				Name:  "export",
				Usage: "Export documents to files with a manifest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, yaml, xml, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: opus_export_{epoch})",
					},
					&cli.StringFlag{
						Name:  "state",
						Usage: "Only documents in this server state",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent workers",
						Value: 4,
					},
				},
				Action: r.DocumentExport,
			},
		},
	}
}

// enrichmentCommand handles enrichment keys
func enrichmentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "enrichment",
		Usage: "Enrichment key operations",
		Commands: []*cli.Command{
			{
				Name:  "keys",
				Usage: "List enrichment keys with their types",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "referenced",
						Usage: "Only keys used by documents",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.EnrichmentKeys,
			},
		},
	}
}

// aclCommand handles roles, resources and privileges
func aclCommand(r *Runner) *cli.Command {
	ruleFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:     "role",
				Usage:    "Role name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "resource",
				Usage: "Resource id, e.g. Document#1 (default: every resource)",
			},
			&cli.StringSliceFlag{
				Name:    "privilege",
				Aliases: []string{"p"},
				Usage:   "Privileges (default: every privilege)",
			},
		}
	}

	return &cli.Command{
		Name:  "acl",
		Usage: "Access control operations",
		Commands: []*cli.Command{
			{
				Name:   "roles",
				Usage:  "List roles",
				Action: r.ACLRoles,
			},
			{
				Name:  "role",
				Usage: "Add a role",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "parent",
						Usage: "Parent role",
					},
				},
				Action: r.ACLAddRole,
			},
			{
				Name:   "allow",
				Usage:  "Grant privileges of a role on a resource",
				Flags:  ruleFlags(),
				Action: r.ACLAllow,
			},
			{
				Name:   "deny",
				Usage:  "Refuse privileges of a role on a resource",
				Flags:  ruleFlags(),
				Action: r.ACLDeny,
			},
			{
				Name:   "check",
				Usage:  "Check whether a role has a privilege on a resource",
				Flags:  ruleFlags(),
				Action: r.ACLCheck,
			},
			{
				Name:  "modules",
				Usage: "List the access modules of a role",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "role"},
				},
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "set",
						Usage: "Replace the modules of the role",
					},
				},
				Action: r.ACLModules,
			},
		},
	}
}

// indexCommand handles the search index
func indexCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Search index operations",
		Commands: []*cli.Command{
			{
				Name:  "rebuild",
				Usage: "Reindex stored documents",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "state",
						Usage: "Only documents in this server state",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent workers",
						Value: 4,
					},
				},
				Action: r.IndexRebuild,
			},
			{
				Name:  "search",
				Usage: "Search the index",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of hits",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown, txt",
						Value:   "txt",
					},
				},
				Action: r.IndexSearch,
			},
		},
	}
}

// doctypeCommand handles document type definitions
func doctypeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "doctype",
		Usage: "Document type operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List registered document types",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "workflow",
						Usage: "Only types of this workflow",
					},
					&cli.BoolFlag{
						Name:  "fields",
						Usage: "Show the fields of each type",
					},
				},
				Action: r.DoctypeList,
			},
		},
	}
}
