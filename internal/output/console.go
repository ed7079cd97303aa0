// Package output provides console output for load runs.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/surveyload/internal/loadgen"
	"github.com/wesleyorama2/surveyload/internal/metrics"
)

const ruleWidth = 56

const (
	iconSuccess = "✓"
	iconError   = "✗"
)

// Console prints run output: worker assignments, progress lines, the
// failure report and the end-of-run summary. It implements loadgen.Observer.
type Console struct {
	writer    io.Writer
	colors    *ColorScheme
	formatter *Formatter

	mu sync.Mutex
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer      io.Writer
	NoColor     bool
	ForceColors bool
}

// NewConsole creates a console writing to config.Writer, or stdout.
func NewConsole(config ConsoleConfig) *Console {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	useColors := !config.NoColor && (config.ForceColors || (isTerminal(config.Writer) && supportsColors()))

	colors := NoColorScheme()
	if useColors {
		colors = DefaultColorScheme()
		for _, c := range []interface{ EnableColor() }{
			colors.Step, colors.URL, colors.StatusOK, colors.StatusWarn, colors.StatusError,
			colors.HeaderKey, colors.HeaderValue, colors.Success, colors.Error, colors.Highlight, colors.Dim,
		} {
			c.EnableColor()
		}
	}

	return &Console{
		writer:    config.Writer,
		colors:    colors,
		formatter: &Formatter{Colors: colors},
	}
}

// Assigned prints the record range of one worker.
func (c *Console) Assigned(workerID int, r loadgen.RecordRange) {
	c.printf("%d  %d...%d\n", workerID, r.Start, r.End)
}

// Progress prints one progress line.
func (c *Console) Progress(p loadgen.Progress) {
	c.printf("Progress update: %d +%d\n", p.Total, p.Delta)
}

// Failure prints the report for the failure that stopped the run.
func (c *Console) Failure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.writer, c.formatter.FormatFailure(err))
}

// Summary prints the end-of-run summary.
func (c *Console) Summary(res *loadgen.Result, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := c.colors.URL.Sprint(strings.Repeat("━", ruleWidth))
	status := c.colors.Success.Sprint("Completed " + iconSuccess)
	switch {
	case failed:
		status = c.colors.Error.Sprint("Failed " + iconError)
	case res.Interrupted:
		status = c.colors.StatusWarn.Sprint("Interrupted")
	}

	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("Run %s - %s", c.colors.Highlight.Sprint(res.RunID), status))
	c.writeln(line)
	c.writeln("")

	c.writeln(fmt.Sprintf("Duration:      %s", formatDuration(res.Elapsed)))
	c.writeln(fmt.Sprintf("Exchanges:     %s", formatNumber(res.Total)))

	var sessions int64
	for _, s := range res.Sessions {
		sessions += s
	}
	c.writeln(fmt.Sprintf("Sessions:      %s", formatNumber(sessions)))

	if m := res.Metrics; m != nil {
		c.writeln(fmt.Sprintf("Failed:        %s", formatNumber(m.FailedExchanges)))
		if m.Elapsed > 0 {
			c.writeln(fmt.Sprintf("Rate:          %.1f/s", m.Rate))
		}
		c.writeln("")

		if len(m.Steps) > 0 {
			c.writeln(c.colors.Step.Sprint("Latency by step:"))
			c.writeln(fmt.Sprintf("  %-12s %8s %8s %8s %8s %8s %8s", "step", "count", "min", "p50", "p95", "p99", "max"))
			for _, s := range m.Steps {
				c.writeln(formatStepRow(s))
			}
			c.writeln("")
		}
	}

	if len(res.Ranges) > 0 {
		c.writeln(c.colors.Step.Sprint("Workers:"))
		for i, r := range res.Ranges {
			c.writeln(fmt.Sprintf("  %-3d %-14s sessions=%d passes=%d", i, r.String(), res.Sessions[i], res.Passes[i]))
		}
		c.writeln("")
	}
}

func formatStepRow(s metrics.StepStats) string {
	return fmt.Sprintf("  %-12s %8d %8s %8s %8s %8s %8s",
		s.Name,
		s.Latency.Count,
		formatDurationShort(s.Latency.Min),
		formatDurationShort(s.Latency.P50),
		formatDurationShort(s.Latency.P95),
		formatDurationShort(s.Latency.P99),
		formatDurationShort(s.Latency.Max))
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, format, args...)
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a duration in a short format.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
