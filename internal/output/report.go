// Package output renders run results as text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/torosent/nioload/internal/metrics"
	"github.com/torosent/nioload/internal/runner"
	"github.com/torosent/nioload/internal/threshold"
)

// Report is everything printed at the end of a run.
type Report struct {
	RunID       string             `json:"run_id" yaml:"run_id"`
	Target      string             `json:"target" yaml:"target"`
	Transport   string             `json:"transport" yaml:"transport"`
	Parallelism int                `json:"parallelism" yaml:"parallelism"`
	Repetitions int                `json:"repetitions" yaml:"repetitions"`
	Succeeded   int64              `json:"succeeded" yaml:"succeeded"`
	Expected    int64              `json:"expected" yaml:"expected"`
	FailedUnits int                `json:"failed_units" yaml:"failed_units"`
	Passed      bool               `json:"passed" yaml:"passed"`
	FirstError  string             `json:"first_error,omitempty" yaml:"first_error,omitempty"`
	DurationSec float64            `json:"duration_sec" yaml:"duration_sec"`
	Stats       metrics.Stats      `json:"stats" yaml:"stats"`
	Thresholds  []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// Run describes the scenario a Report belongs to.
type Run struct {
	Target      string
	Transport   string
	Parallelism int
	Repetitions int
}

// NewReport assembles a Report with a fresh run id.
func NewReport(run Run, res runner.Result, stats metrics.Stats, thresholds []threshold.Result) Report {
	r := Report{
		RunID:       ulid.Make().String(),
		Target:      run.Target,
		Transport:   run.Transport,
		Parallelism: run.Parallelism,
		Repetitions: run.Repetitions,
		Succeeded:   res.Succeeded,
		Expected:    res.Expected,
		FailedUnits: res.Failed,
		Passed:      res.OK() && threshold.AllPassed(thresholds),
		DurationSec: res.Duration.Seconds(),
		Stats:       stats,
		Thresholds:  thresholds,
	}
	if res.FirstErr != nil {
		r.FirstError = res.FirstErr.Error()
	}
	return r
}

// Write renders r in the named format: text, json or yaml.
func Write(w io.Writer, format string, r Report) error {
	switch format {
	case "", "text":
		PrintReport(w, r)
		return nil
	case "json":
		return PrintJSONReport(w, r)
	case "yaml":
		return PrintYAMLReport(w, r)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Load Run Results ---")
	fmt.Fprintf(w, "Run:               %s\n", r.RunID)
	fmt.Fprintf(w, "Target:            %s (%s)\n", r.Target, r.Transport)
	fmt.Fprintf(w, "Units:             %d x %d\n", r.Parallelism, r.Repetitions)
	fmt.Fprintf(w, "Counter:           %d / %d\n", r.Succeeded, r.Expected)
	fmt.Fprintf(w, "Duration:          %s\n", time.Duration(r.DurationSec*float64(time.Second)).Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	if r.FirstError != "" {
		fmt.Fprintf(w, "First failure:     %s\n", r.FirstError)
	}
	if r.Passed {
		fmt.Fprintln(w, "Result:            all validations passed")
	} else {
		fmt.Fprintf(w, "Result:            FAILED (%d units stopped)\n", r.FailedUnits)
	}

	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Errors[names[i]] == stats.Errors[names[j]] {
				return names[i] < names[j]
			}
			return stats.Errors[names[i]] > stats.Errors[names[j]]
		})
		for _, name := range names {
			fmt.Fprintf(w, "  %-22s %d\n", name+":", stats.Errors[name])
		}
	}
	if rows := metrics.FlattenStatusCodes(stats.StatusCodes); len(rows) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %d: %d\n", row.Code, row.Count)
		}
	}
	if t := stats.Transport; t != nil {
		fmt.Fprintln(w, "\nTransport:")
		fmt.Fprintf(w, "  Connections:     %d opened, %d closed\n", t.Connects, t.Closes)
		fmt.Fprintf(w, "  Bytes:           %d sent, %d received\n", t.BytesSent, t.BytesReceived)
		fmt.Fprintf(w, "  I/O calls:       %d writes, %d reads\n", t.Writes, t.Reads)
		if t.Errors > 0 {
			fmt.Fprintf(w, "  Errors:          %d\n", t.Errors)
		}
	}
	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, res := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
