package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Requester performs one request/response cycle and returns the body text.
type Requester interface {
	Execute(ctx context.Context) (string, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context) (string, error)

func (f RequesterFunc) Execute(ctx context.Context) (string, error) { return f(ctx) }

// Recorder receives one observation per request, validation included.
type Recorder interface {
	RecordRequest(latency time.Duration, err error)
}

// Options configure the Harness.
type Options struct {
	Parallelism int // independent execution units
	Repetitions int // sequential requests per unit
	// Factory builds the requester for one unit. Units never share one.
	Factory func(unit int) Requester
	// Validate checks each body; nil accepts everything.
	Validate func(body string) error
	// RatePerSecond paces all units together; 0 means unlimited.
	RatePerSecond int
	// FailFast cancels the remaining units on the first failure.
	FailFast bool
	Recorder Recorder
	Logger   *zap.Logger

	// LimiterFactory is an injection point for tests.
	LimiterFactory func(rps int) *rate.Limiter
}

func (o *Options) normalize() {
	if o.Parallelism <= 0 {
		o.Parallelism = 1
	}
	if o.Repetitions <= 0 {
		o.Repetitions = 1
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return nil
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
