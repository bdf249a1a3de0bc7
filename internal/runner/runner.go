package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoFactory is returned when Options.Factory is nil.
var ErrNoFactory = errors.New("runner: no requester factory")

// ValidationError reports a body rejected by the validate predicate.
type ValidationError struct {
	Unit      int
	Iteration int
	Got       string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unit %d iteration %d: validation failed: %v", e.Unit, e.Iteration, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UnitError attributes a request failure to its execution unit.
type UnitError struct {
	Unit      int
	Iteration int
	Err       error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %d iteration %d: %v", e.Unit, e.Iteration, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// Result captures the outcome of one run.
type Result struct {
	Succeeded int64 // successful, validated requests
	Expected  int64 // Parallelism * Repetitions
	Failed    int   // units stopped by a failure
	Duration  time.Duration
	// FirstErr is the earliest recorded failure.
	FirstErr error
	// Err combines every unit failure.
	Err error
}

// OK reports whether every request in the run succeeded.
func (r Result) OK() bool {
	return r.FirstErr == nil && r.Succeeded == r.Expected
}

// Harness drives Parallelism units of Repetitions sequential requests.
type Harness struct {
	opt Options
}

func New(opt Options) *Harness {
	opt.normalize()
	return &Harness{opt: opt}
}

// run holds the state of one invocation. Nothing here outlives Run.
type run struct {
	opt       Options
	limiter   *rate.Limiter
	succeeded atomic.Int64
	cancel    context.CancelFunc

	mu       sync.Mutex
	failed   int
	firstErr error
	errs     *multierror.Error
}

// Run blocks until every unit has finished or stopped on failure.
func (h *Harness) Run(ctx context.Context) Result {
	start := time.Now()
	expected := int64(h.opt.Parallelism) * int64(h.opt.Repetitions)
	if h.opt.Factory == nil {
		return Result{Expected: expected, FirstErr: ErrNoFactory, Err: ErrNoFactory}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		opt:     h.opt,
		limiter: h.opt.LimiterFactory(h.opt.RatePerSecond),
		cancel:  cancel,
	}

	var wg sync.WaitGroup
	wg.Add(h.opt.Parallelism)
	for unit := 0; unit < h.opt.Parallelism; unit++ {
		req := h.opt.Factory(unit)
		go func(unit int, req Requester) {
			defer wg.Done()
			r.unit(ctx, unit, req)
		}(unit, req)
	}
	wg.Wait()

	res := Result{
		Succeeded: r.succeeded.Load(),
		Expected:  expected,
		Failed:    r.failed,
		Duration:  time.Since(start),
		FirstErr:  r.firstErr,
	}
	if r.errs != nil {
		res.Err = r.errs.ErrorOrNil()
	}
	return res
}

func (r *run) unit(ctx context.Context, unit int, req Requester) {
	for i := 0; i < r.opt.Repetitions; i++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				r.fail(&UnitError{Unit: unit, Iteration: i, Err: err})
				return
			}
		}
		if err := ctx.Err(); err != nil {
			r.fail(&UnitError{Unit: unit, Iteration: i, Err: err})
			return
		}

		if err := r.once(ctx, unit, i, req); err != nil {
			r.fail(err)
			return
		}
		count := r.succeeded.Inc()
		r.opt.Logger.Debug("Request counted",
			zap.Int("unit", unit),
			zap.Int64("count", count),
			zap.Int("goroutines", runtime.NumGoroutine()))
	}
}

func (r *run) once(ctx context.Context, unit, iteration int, req Requester) (err error) {
	start := time.Now()
	if r.opt.Recorder != nil {
		defer func() { r.opt.Recorder.RecordRequest(time.Since(start), err) }()
	}
	body, err := req.Execute(ctx)
	if err != nil {
		return &UnitError{Unit: unit, Iteration: iteration, Err: err}
	}
	if r.opt.Validate != nil {
		if verr := r.opt.Validate(body); verr != nil {
			return &ValidationError{Unit: unit, Iteration: iteration, Got: body, Err: verr}
		}
	}
	return nil
}

func (r *run) fail(err error) {
	r.mu.Lock()
	r.failed++
	if r.firstErr == nil {
		r.firstErr = err
	}
	r.errs = multierror.Append(r.errs, err)
	r.mu.Unlock()

	if r.opt.FailFast {
		r.cancel()
	}
}
