package timing

import (
	"bytes"
	"fmt"
	"io"

	"github.com/montanaflynn/stats"
)

// Report renders the state of a [Recorder] as fixed-format text tables.
type Report struct {
	// Title is printed as the header of the summary.
	Title string
	// Description is printed under the title when not empty.
	Description string
	// StepOffset is added to the index of each step in the step table,
	// so that step 0 of a Fibonacci computation reads F(2).
	StepOffset int
	// Recorder is the source of the durations.
	Recorder *Recorder
}

// String returns the rendered report.
func (rp Report) String() string {
	var buf bytes.Buffer
	rp.render(&buf)
	return buf.String()
}

// WriteTo writes the rendered report on w.
func (rp Report) WriteTo(w io.Writer) (n int64, err error) {
	var buf bytes.Buffer
	rp.render(&buf)
	return buf.WriteTo(w)
}

func (rp Report) render(buf *bytes.Buffer) {

	fmt.Fprintf(buf, "\n=== %s ===\n", rp.Title)

	if rp.Description != "" {
		fmt.Fprintf(buf, "Configuration: %s\n", rp.Description)
	}

	if rp.Recorder == nil {
		return
	}

	fmt.Fprintf(buf, "| %-20s | %13s |\n", "Phase", "Time (ms)")
	fmt.Fprintf(buf, "|----------------------|---------------|\n")

	for _, e := range rp.Recorder.Phases() {
		fmt.Fprintf(buf, "| %-20s | %13.2f |\n", e.Phase, Milliseconds(e.Duration))
	}

	steps := rp.Recorder.Steps()

	if len(steps) == 0 {
		return
	}

	fmt.Fprintf(buf, "\n=== Computation Step Details ===\n")
	fmt.Fprintf(buf, "| %-6s | %13s |\n", "Step", "Time (ms)")
	fmt.Fprintf(buf, "|--------|---------------|\n")

	values := make([]float64, len(steps))
	for i, d := range steps {
		values[i] = Milliseconds(d)
		fmt.Fprintf(buf, "| %-6s | %13.2f |\n", fmt.Sprintf("F(%d)", i+rp.StepOffset), values[i])
	}

	fmt.Fprintln(buf)

	if mean, err := stats.Mean(values); err == nil {
		fmt.Fprintf(buf, "Average time per computation step: %.2f ms\n", mean)
	}

	if median, err := stats.Median(values); err == nil {
		fmt.Fprintf(buf, "Median time per computation step: %.2f ms\n", median)
	}

	if stddev, err := stats.StandardDeviation(values); err == nil {
		fmt.Fprintf(buf, "Standard deviation per computation step: %.2f ms\n", stddev)
	}
}
