package stats

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/verte-zerg/autotype/internal/model"
	"github.com/verte-zerg/autotype/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Runs           []model.RunAggregate
	WindowRunIDs   []int64
	FlowAggsAll    []model.FlowAggregate
	FlowAggsWindow []model.FlowAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	runs, err := st.ListRuns(ctx, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if cfg.Last > 0 && len(runs) > cfg.Last {
		runs = runs[len(runs)-cfg.Last:]
	}

	allIDs := runIDs(runs)
	windowIDs := lastRunIDs(runs, cfg.CurveWindow)
	flowAggsAll, err := st.ListFlowAggregatesForRuns(ctx, allIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate flows: %w", err)
	}
	flowAggsWindow, err := st.ListFlowAggregatesForRuns(ctx, windowIDs)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate flows: %w", err)
	}

	return Report{
		Runs:           runs,
		WindowRunIDs:   windowIDs,
		FlowAggsAll:    flowAggsAll,
		FlowAggsWindow: flowAggsWindow,
	}, nil
}

// Render writes the summary, trends and flow table.
func (r Report) Render(w io.Writer, window, width int, now time.Time) error {
	if err := RenderSummary(w, r.Runs, now); err != nil {
		return err
	}
	if len(r.Runs) == 0 {
		return nil
	}
	if err := RenderCurves(w, r.Runs, window, width); err != nil {
		return err
	}
	return RenderFlowTable(w, r.FlowAggsWindow)
}

func runIDs(runs []model.RunAggregate) []int64 {
	ids := make([]int64, len(runs))
	for i, r := range runs {
		ids[i] = r.RunID
	}
	return ids
}

func lastRunIDs(runs []model.RunAggregate, window int) []int64 {
	if window <= 0 || len(runs) <= window {
		return runIDs(runs)
	}
	return runIDs(runs[len(runs)-window:])
}
