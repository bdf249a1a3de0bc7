package output

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/atomic"

	"github.com/torosent/nioload/internal/metrics"
)

// ProgressReporter prints a status line at a fixed interval.
type ProgressReporter struct {
	collector *metrics.Collector
	expected  int64
	interval  time.Duration
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    atomic.Bool
}

// NewProgressReporter creates a reporter; expected is the run's target count.
func NewProgressReporter(collector *metrics.Collector, expected int64, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		expected:  expected,
		interval:  interval,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !p.active.CompareAndSwap(false, true) {
		return
	}
	go p.run()
}

// Stop halts progress updates and ends the line.
func (p *ProgressReporter) Stop() {
	if p.active.CompareAndSwap(true, false) {
		close(p.done)
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, p.line())
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	stats := p.collector.Stats(p.collector.Elapsed())
	line := fmt.Sprintf("\rRequests: %d", stats.Total)
	if p.expected > 0 {
		line += fmt.Sprintf("/%d (%.0f%%)", p.expected, float64(stats.Total)/float64(p.expected)*100)
	}
	line += fmt.Sprintf(" | Successes: %d | Failures: %d | RPS: %.1f | P99 %.1fms",
		stats.Successes, stats.Failures, stats.RequestsPerSec, stats.P99LatencyMs)
	return line
}
