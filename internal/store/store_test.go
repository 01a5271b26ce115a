package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/autotype/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "autotype.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestInsertAndListRuns(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	outcomes := []string{model.OutcomeCompleted, model.OutcomeStopped, model.OutcomeCompleted}
	var ids []int64
	for i, outcome := range outcomes {
		start := base.Add(time.Duration(i) * time.Minute)
		stats := model.RunStats{
			RunID:      "run-" + string(rune('a'+i)),
			StartedAt:  start,
			EndedAt:    start.Add(30 * time.Second),
			Outcome:    outcome,
			BaseWPM:    85,
			TotalChars: 100,
			TypedChars: 100 - i*10,
			Typos:      i,
			DurationMs: 30000,
		}
		flows := []model.FlowStats{{Flow: "steady", Chars: 60}, {Flow: "rushed", Chars: 40 - i*10}}
		id, err := st.InsertRun(ctx, stats, flows)
		if err != nil {
			t.Fatalf("insert run: %v", err)
		}
		ids = append(ids, id)
	}

	all, err := st.ListRuns(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if all[0].RunID != ids[0] || !all[0].EndedAt.Equal(base.Add(30*time.Second)) {
		t.Fatalf("unexpected first run: %+v", all[0])
	}

	completed, err := st.ListRuns(ctx, model.StatsConfig{Outcome: model.OutcomeCompleted})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed runs, got %d", len(completed))
	}

	since := base.Add(90 * time.Second)
	recent, err := st.ListRuns(ctx, model.StatsConfig{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 || recent[0].RunID != ids[2] {
		t.Fatalf("unexpected recent runs: %+v", recent)
	}

	aggs, err := st.ListFlowAggregatesForRuns(ctx, ids)
	if err != nil {
		t.Fatalf("flow aggregates: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 flows, got %+v", aggs)
	}
	if aggs[0].Flow != "steady" || aggs[0].Chars != 180 || aggs[0].Runs != 3 {
		t.Fatalf("unexpected steady aggregate: %+v", aggs[0])
	}
	if aggs[1].Flow != "rushed" || aggs[1].Chars != 90 {
		t.Fatalf("unexpected rushed aggregate: %+v", aggs[1])
	}
}

func TestDuplicateRunIDRejected(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	stats := model.RunStats{RunID: "same", Outcome: model.OutcomeStopped}
	if _, err := st.InsertRun(ctx, stats, []model.FlowStats{{Flow: "steady", Chars: 1}}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if _, err := st.InsertRun(ctx, stats, nil); err == nil {
		t.Fatalf("expected unique constraint error")
	}
	runs, err := st.ListRuns(ctx, model.StatsConfig{})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected failed insert to roll back, got %d runs", len(runs))
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.LoadCheckpoint(ctx, "abc"); err != nil || ok {
		t.Fatalf("expected no checkpoint, got ok=%v err=%v", ok, err)
	}

	saved := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := st.SaveCheckpoint(ctx, model.Checkpoint{TextHash: "abc", Position: 10, Total: 50, UpdatedAt: saved}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	if err := st.SaveCheckpoint(ctx, model.Checkpoint{TextHash: "abc", Position: 20, Total: 50, UpdatedAt: saved.Add(time.Minute)}); err != nil {
		t.Fatalf("update checkpoint: %v", err)
	}
	cp, ok, err := st.LoadCheckpoint(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.Position != 20 || cp.Total != 50 || !cp.UpdatedAt.Equal(saved.Add(time.Minute)) {
		t.Fatalf("unexpected checkpoint: %+v", cp)
	}

	if err := st.DeleteCheckpoint(ctx, "abc"); err != nil {
		t.Fatalf("delete checkpoint: %v", err)
	}
	if err := st.DeleteCheckpoint(ctx, "abc"); err != nil {
		t.Fatalf("delete missing checkpoint: %v", err)
	}
	if _, ok, _ := st.LoadCheckpoint(ctx, "abc"); ok {
		t.Fatalf("expected checkpoint to be deleted")
	}
}

func TestPruneCheckpoints(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	_ = st.SaveCheckpoint(ctx, model.Checkpoint{TextHash: "old", Position: 1, Total: 2, UpdatedAt: now.Add(-48 * time.Hour)})
	_ = st.SaveCheckpoint(ctx, model.Checkpoint{TextHash: "new", Position: 1, Total: 2, UpdatedAt: now})

	n, err := st.PruneCheckpoints(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned checkpoint, got %d", n)
	}
	if _, ok, _ := st.LoadCheckpoint(ctx, "new"); !ok {
		t.Fatalf("expected recent checkpoint to survive")
	}
}
