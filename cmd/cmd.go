// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// syncCommand runs the HubSpot → MailerLite pipeline
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize HubSpot contacts into MailerLite",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Fetch both sides and create or update subscribers",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Plan writes without sending them",
					},
					&cli.StringFlag{
						Name:  "dump-dir",
						Usage: "Write fetched contacts and subscribers as JSON to this directory",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the run as JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "plan",
				Usage: "Show the writes a sync would send (dry run)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dump-dir",
						Usage: "Write fetched contacts and subscribers as JSON to this directory",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output planned writes as JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.SyncPlan,
			},
		},
	}
}

// historyCommand inspects recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"runs"},
		Usage:   "Inspect recorded sync runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to return",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show runs with this status (running, completed, failed)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one run and its per-record outcomes",
				ArgsUsage: "<run-id|#sequence>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output outcomes as CSV",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// hubspotCommand inspects the source side
func hubspotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "hubspot",
		Usage: "HubSpot CRM operations",
		Commands: []*cli.Command{
			{
				Name:  "contacts",
				Usage: "List all contacts with the mapped properties",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.HubSpotContacts,
			},
		},
	}
}

// mailerliteCommand inspects the destination side
func mailerliteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "mailerlite",
		Aliases: []string{"ml"},
		Usage:   "MailerLite operations",
		Commands: []*cli.Command{
			{
				Name:  "subscribers",
				Usage: "List all subscribers with the mapped fields",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.MailerLiteSubscribers,
			},
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create configuration and initialize the run history database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the configuration template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the run history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
