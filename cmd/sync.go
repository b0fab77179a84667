package main

import (
	"context"
	"errors"

	"github.com/desertthunder/hubsync/internal/formatter"
	"github.com/desertthunder/hubsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun runs the full pipeline. --dry-run (or sync.dry_run) plans writes instead of sending them.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	return r.sync(ctx, cmd, cmd.Bool("dry-run") || r.config.Sync.DryRun)
}

// SyncPlan runs the pipeline as a dry run and lists the writes it would send.
func (r *Runner) SyncPlan(ctx context.Context, cmd *cli.Command) error {
	return r.sync(ctx, cmd, true)
}

func (r *Runner) sync(ctx context.Context, cmd *cli.Command, dryRun bool) error {
	engine, err := r.engine()
	if err != nil {
		return err
	}

	opts := tasks.RunOpts{DryRun: dryRun}
	dumpDir := cmd.String("dump-dir")
	if dumpDir == "" {
		dumpDir = r.config.Sync.DumpDir
	}
	if dumpDir != "" {
		opts.Dumper = formatter.JSONDumper{Dir: dumpDir}
	}

	asJSON := cmd.Bool("json")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if asJSON {
				continue
			}
			r.printProgress(update)
		}
	}()

	result, err := engine.Run(ctx, opts, progressCh)
	close(progressCh)
	<-done

	if result == nil {
		return err
	}

	if asJSON {
		out := any(result.Run)
		if dryRun && cmd.Name == "plan" {
			out = result.Planned
		}
		if jerr := r.writeJSON(out, cmd.Bool("pretty")); jerr != nil {
			return errors.Join(err, jerr)
		}
		return err
	}

	if dryRun && len(result.Planned) > 0 {
		r.writePlain("\n")
		for _, call := range result.Planned {
			r.writePlain("  %-6s %s\n", call.Action, plannedTarget(call))
		}
	}
	r.writePlainln("%s", formatter.RenderSummary(result.Run))
	return err
}

func plannedTarget(call tasks.WriteCall) string {
	if call.Email != "" {
		return call.Email
	}
	return call.ID
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchSource:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.FetchDest:
		r.writePlain("📇 %s\n", update.Message)
	case tasks.Reconcile:
		if update.Step == 1 {
			r.writePlain("\n🔄 Reconciling %d contacts\n", update.Total)
		}
		r.writePlain("   %s\n", update.Message)
	case tasks.RecordRun:
		r.writePlain("📝 %s\n", update.Message)
	}
}
