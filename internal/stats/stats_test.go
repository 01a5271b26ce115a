package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/autotype/internal/model"
)

func TestRunMetrics(t *testing.T) {
	wpm, cpm, rate := RunMetrics(500, 5, 60000)
	if wpm != 100 || cpm != 500 || rate != 1 {
		t.Fatalf("unexpected metrics: wpm=%v cpm=%v rate=%v", wpm, cpm, rate)
	}
	if wpm, _, _ := RunMetrics(10, 0, 0); wpm != 0 {
		t.Fatalf("expected zero wpm for zero duration")
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 9}); got != " @" {
		t.Fatalf("unexpected sparkline: %q", got)
	}
	if got := Sparkline([]float64{3, 3, 3}); got != "+++" {
		t.Fatalf("unexpected flat sparkline: %q", got)
	}
}

func TestResampleShrinks(t *testing.T) {
	got := resample([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("unexpected resample: %v", got)
	}
	if got := resample([]float64{1, 2}, 10); len(got) != 2 {
		t.Fatalf("expected short series unchanged, got %v", got)
	}
}

func TestSparklineWidthFor(t *testing.T) {
	if got := SparklineWidthFor(0, 7); got != minSparklineWidth {
		t.Fatalf("expected min width, got %d", got)
	}
	if got := SparklineWidthFor(80, 7); got != 43 {
		t.Fatalf("expected 43, got %d", got)
	}
	if got := SparklineWidthFor(500, 7); got != maxSparklineWidth {
		t.Fatalf("expected max width, got %d", got)
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, nil, time.Now()); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No runs found.") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestRenderFlowTableShares(t *testing.T) {
	var buf bytes.Buffer
	aggs := []model.FlowAggregate{
		{Flow: "steady", Chars: 750, Runs: 2},
		{Flow: "rushed", Chars: 250, Runs: 1},
	}
	if err := RenderFlowTable(&buf, aggs); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "75.0%") || !strings.Contains(out, "25.0%") {
		t.Fatalf("expected shares in output:\n%s", out)
	}
}
