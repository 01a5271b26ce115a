package stats

import (
	"os"

	"golang.org/x/term"
)

const (
	minSparklineWidth   = 10
	maxSparklineWidth   = 60
	terminalWidthBackup = 80
)

// TerminalWidth returns the stdout width, or a fallback when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// SparklineWidthFor fits a sparkline after a label of labelWidth cells.
func SparklineWidthFor(totalWidth, labelWidth int) int {
	if totalWidth <= 0 {
		return minSparklineWidth
	}
	// Leave room for the min/max suffix.
	width := totalWidth - labelWidth - 30
	if width < minSparklineWidth {
		return minSparklineWidth
	}
	if width > maxSparklineWidth {
		return maxSparklineWidth
	}
	return width
}

// resample shrinks values to at most width points by bucket averaging.
// Shorter series are returned unchanged.
func resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := int(float64(i) * float64(len(values)) / float64(width))
		end := int(float64(i+1) * float64(len(values)) / float64(width))
		if end <= start {
			end = start + 1
		}
		if end > len(values) {
			end = len(values)
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
