package bridge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Registrar starts one asynchronous operation and arranges for exactly one of
// c.Succeed or c.Fail to be called when it completes. The returned func, if
// non-nil, aborts the operation and is called when Await gives up first.
type Registrar[T any] func(c *Completion[T]) (abort func())

// Option configures a single Await.
type Option func(*awaitOptions)

type awaitOptions struct {
	timeout time.Duration
	log     *zap.Logger
}

// WithTimeout attaches a deadline to the await. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *awaitOptions) {
		o.timeout = d
	}
}

// WithDropLogger logs redundant resolutions instead of silently dropping them.
func WithDropLogger(log *zap.Logger) Option {
	return func(o *awaitOptions) {
		o.log = log
	}
}

// Await runs register and waits for its completion.
func Await[T any](ctx context.Context, register Registrar[T], opts ...Option) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	var o awaitOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	c := newCompletion[T](o.log)
	abort := start(c, register)

	select {
	case <-c.Done():
	case <-ctx.Done():
		if c.cancel(ctx.Err()) && abort != nil {
			abort()
		}
		// Either the cancel won or a resolution landed just before it.
		<-c.Done()
	}
	return c.Result()
}

// start invokes the registrar, turning a panic into a failed resolution.
func start[T any](c *Completion[T], register Registrar[T]) (abort func()) {
	defer func() {
		if r := recover(); r != nil {
			c.Fail(fmt.Errorf("bridge: registrar panic: %v", r))
			abort = nil
		}
	}()
	return register(c)
}
