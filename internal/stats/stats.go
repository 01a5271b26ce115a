// Package stats contains run statistics and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/verte-zerg/autotype/internal/model"
)

const sparkChars = " .:-=+*#%@"

// RunMetrics computes achieved WPM, CPM and typos per hundred characters.
func RunMetrics(typed, typos int, durationMs int64) (wpm, cpm, typoRate float64) {
	if durationMs <= 0 {
		return 0, 0, 0
	}
	minutes := float64(durationMs) / 60000.0
	if minutes <= 0 {
		return 0, 0, 0
	}
	wpm = (float64(typed) / 5.0) / minutes
	cpm = float64(typed) / minutes
	if typed > 0 {
		typoRate = float64(typos) / float64(typed) * 100
	}
	return wpm, cpm, typoRate
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints totals and averages for runs. now anchors the
// relative time of the last run.
func RenderSummary(w io.Writer, runs []model.RunAggregate, now time.Time) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	var totalWPM, totalRate float64
	var chars, typos int
	var duration int64
	completed := 0
	bestWPM := 0.0
	for _, r := range runs {
		wpm, _, rate := RunMetrics(r.TypedChars, r.Typos, r.DurationMs)
		totalWPM += wpm
		totalRate += rate
		chars += r.TypedChars
		typos += r.Typos
		duration += r.DurationMs
		if wpm > bestWPM {
			bestWPM = wpm
		}
		if r.Outcome == model.OutcomeCompleted {
			completed++
		}
	}
	count := float64(len(runs))
	last := runs[len(runs)-1]
	lines := []string{
		"Summary",
		fmt.Sprintf("Runs: %d (%d completed)", len(runs), completed),
		fmt.Sprintf("Characters typed: %s", humanize.Comma(int64(chars))),
		fmt.Sprintf("Typing time: %s", (time.Duration(duration) * time.Millisecond).Round(time.Second)),
		fmt.Sprintf("Avg WPM: %.2f", totalWPM/count),
		fmt.Sprintf("Best WPM: %.2f", bestWPM),
		fmt.Sprintf("Typos: %s (%.2f per 100 chars)", humanize.Comma(int64(typos)), totalRate/count),
		fmt.Sprintf("Last run: %s (%s)", humanize.RelTime(last.EndedAt, now, "ago", "from now"), last.Outcome),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints smoothed WPM and typo-rate sparklines fitted to width.
func RenderCurves(w io.Writer, runs []model.RunAggregate, window, width int) error {
	if len(runs) == 0 {
		return nil
	}
	wpms := make([]float64, len(runs))
	rates := make([]float64, len(runs))
	for i, r := range runs {
		wpm, _, rate := RunMetrics(r.TypedChars, r.Typos, r.DurationMs)
		wpms[i] = wpm
		rates[i] = rate
	}
	wpms = MovingAverage(wpms, window)
	rates = MovingAverage(rates, window)

	if _, err := fmt.Fprintln(w, "Trends"); err != nil {
		return err
	}
	for _, s := range []struct {
		name   string
		values []float64
	}{
		{"WPM", wpms},
		{"Typos", rates},
	} {
		minVal, maxVal := minMax(s.values)
		label := fmt.Sprintf("%-6s", s.name)
		plotWidth := SparklineWidthFor(width, displayWidth(label)+1)
		line := fmt.Sprintf("%s %s  min=%.2f max=%.2f", label, Sparkline(resample(s.values, plotWidth)), minVal, maxVal)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderFlowTable prints how many characters were typed in each flow state.
func RenderFlowTable(w io.Writer, aggs []model.FlowAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No flow stats found.")
		return err
	}
	total := 0
	for _, agg := range aggs {
		total += agg.Chars
	}
	if _, err := fmt.Fprintln(w, "Flow States"); err != nil {
		return err
	}
	headers := []string{"Flow", "Chars", "Share", "Runs"}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range aggs {
		share := 0.0
		if total > 0 {
			share = float64(agg.Chars) / float64(total) * 100
		}
		rows = append(rows, []string{
			agg.Flow,
			humanize.Comma(int64(agg.Chars)),
			fmt.Sprintf("%.1f%%", share),
			fmt.Sprintf("%d", agg.Runs),
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}
