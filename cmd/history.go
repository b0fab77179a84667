package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/hubsync/internal/formatter"
	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/repositories"
	"github.com/desertthunder/hubsync/internal/shared"
	"github.com/urfave/cli/v3"
)

type runDetail struct {
	Run      *models.SyncRun        `json:"run"`
	Outcomes []models.RecordOutcome `json:"outcomes"`
}

// HistoryList lists recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	filter := repositories.ListFilter{Limit: cmd.Int("limit")}
	if status := cmd.String("status"); status != "" {
		switch s := models.RunStatus(status); s {
		case models.RunRunning, models.RunCompleted, models.RunFailed:
			filter.Status = s
		default:
			return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, status)
		}
	}

	runs, err := repo.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No sync runs recorded.\n")
	}
	return r.writePlain("%s\n", formatter.RunsTable(runs))
}

// HistoryShow prints one run, looked up by ID or by "#N" sequence, with its record outcomes.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("%w: run ID or #sequence is required", shared.ErrMissingArgument)
	}

	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	run, err := lookupRun(ctx, repo, ref)
	if err != nil {
		return err
	}
	outcomes, err := repo.Outcomes(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load outcomes: %w", err)
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(runDetail{Run: run, Outcomes: outcomes}, true)
	case cmd.Bool("csv"):
		data, err := formatter.ExportOutcomesCSV(outcomes)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	r.writePlain("%s\n", formatter.RenderSummary(run))
	if len(outcomes) == 0 {
		return r.writePlain("\nNo record outcomes.\n")
	}
	return r.writePlainln("%s", formatter.OutcomesTable(outcomes))
}

func lookupRun(ctx context.Context, repo *repositories.SyncRunRepository, ref string) (*models.SyncRun, error) {
	seq, ok := strings.CutPrefix(ref, "#")
	if !ok {
		return repo.Get(ctx, ref)
	}

	n, err := strconv.Atoi(seq)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: invalid run sequence %q", shared.ErrInvalidArgument, ref)
	}
	return repo.GetBySequence(ctx, n)
}
