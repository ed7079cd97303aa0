package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/surveyload/internal/loadgen"
)

// SummaryFormat selects how the end-of-run summary is written.
type SummaryFormat string

const (
	// SummaryText is the human-readable console summary
	SummaryText SummaryFormat = "text"
	// SummaryJSON writes the summary as a JSON document
	SummaryJSON SummaryFormat = "json"
	// SummaryYAML writes the summary as a YAML document
	SummaryYAML SummaryFormat = "yaml"
)

// ParseSummaryFormat parses a summary format name.
func ParseSummaryFormat(s string) (SummaryFormat, error) {
	switch SummaryFormat(s) {
	case SummaryText, "":
		return SummaryText, nil
	case SummaryJSON, SummaryYAML:
		return SummaryFormat(s), nil
	default:
		return "", fmt.Errorf("unknown summary format %q, expected text, json or yaml", s)
	}
}

// Summary is the machine-readable end-of-run summary.
type Summary struct {
	RunID       string          `json:"runId" yaml:"runId"`
	Started     time.Time       `json:"started" yaml:"started"`
	Elapsed     string          `json:"elapsed" yaml:"elapsed"`
	Status      string          `json:"status" yaml:"status"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	Exchanges   int64           `json:"exchanges" yaml:"exchanges"`
	Failed      int64           `json:"failed" yaml:"failed"`
	Workers     []WorkerSummary `json:"workers" yaml:"workers"`
	Steps       []StepSummary   `json:"steps,omitempty" yaml:"steps,omitempty"`
	Interrupted bool            `json:"interrupted" yaml:"interrupted"`
}

// WorkerSummary describes one worker's share of the run.
type WorkerSummary struct {
	ID       int    `json:"id" yaml:"id"`
	Range    string `json:"range" yaml:"range"`
	Sessions int64  `json:"sessions" yaml:"sessions"`
	Passes   int64  `json:"passes" yaml:"passes"`
}

// StepSummary holds the latency distribution of one interaction step.
type StepSummary struct {
	Name   string `json:"name" yaml:"name"`
	Count  int64  `json:"count" yaml:"count"`
	Failed int64  `json:"failed" yaml:"failed"`
	Min    string `json:"min" yaml:"min"`
	Mean   string `json:"mean" yaml:"mean"`
	P50    string `json:"p50" yaml:"p50"`
	P90    string `json:"p90" yaml:"p90"`
	P95    string `json:"p95" yaml:"p95"`
	P99    string `json:"p99" yaml:"p99"`
	Max    string `json:"max" yaml:"max"`
}

// NewSummary builds the summary of a finished run. runErr is the error the
// run ended with, if any.
func NewSummary(res *loadgen.Result, runErr error) *Summary {
	s := &Summary{
		RunID:       res.RunID,
		Started:     res.Started,
		Elapsed:     res.Elapsed.String(),
		Status:      "completed",
		Exchanges:   res.Total,
		Interrupted: res.Interrupted,
	}
	switch {
	case runErr != nil:
		s.Status = "failed"
		s.Error = runErr.Error()
	case res.Interrupted:
		s.Status = "interrupted"
	}

	for i, r := range res.Ranges {
		s.Workers = append(s.Workers, WorkerSummary{
			ID:       i,
			Range:    r.String(),
			Sessions: res.Sessions[i],
			Passes:   res.Passes[i],
		})
	}

	if m := res.Metrics; m != nil {
		s.Failed = m.FailedExchanges
		for _, step := range m.Steps {
			s.Steps = append(s.Steps, StepSummary{
				Name:   step.Name,
				Count:  step.Latency.Count,
				Failed: step.Failed,
				Min:    step.Latency.Min.String(),
				Mean:   step.Latency.Mean.String(),
				P50:    step.Latency.P50.String(),
				P90:    step.Latency.P90.String(),
				P95:    step.Latency.P95.String(),
				P99:    step.Latency.P99.String(),
				Max:    step.Latency.Max.String(),
			})
		}
	}
	return s
}

// WriteSummary writes s to w as JSON or YAML.
func WriteSummary(w io.Writer, s *Summary, format SummaryFormat) error {
	switch format {
	case SummaryJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case SummaryYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("summary format %q is not a document format", format)
	}
}
