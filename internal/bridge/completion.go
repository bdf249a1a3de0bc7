package bridge

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrCancelled is returned by Await when the context or the deadline wins
	// over the completion callback.
	ErrCancelled = errors.New("bridge: await cancelled")
	// ErrDoubleResolution marks a second Succeed or Fail on the same Completion.
	ErrDoubleResolution = errors.New("bridge: completion resolved more than once")
)

type state int32

const (
	statePending state = iota
	stateResolving
	stateSucceeded
	stateFailed
	stateCancelled
)

func (s state) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateResolving:
		return "resolving"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	case stateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Completion is the single-resolution slot of one in-flight operation.
// It is owned by the Await call that created it and the callback that resolves it.
type Completion[T any] struct {
	state atomic.Int32
	done  chan struct{}
	value T
	err   error
	log   *zap.Logger
}

func newCompletion[T any](log *zap.Logger) *Completion[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Completion[T]{
		done: make(chan struct{}),
		log:  log,
	}
}

// Succeed resolves the completion with v. It reports whether this call won.
func (c *Completion[T]) Succeed(v T) bool {
	if !c.claim("succeed") {
		return false
	}
	c.value = v
	c.publish(stateSucceeded)
	return true
}

// Fail resolves the completion with err. A nil err is replaced so that a
// failed completion never looks like a success.
func (c *Completion[T]) Fail(err error) bool {
	if !c.claim("fail") {
		return false
	}
	if err == nil {
		err = errors.New("bridge: fail called with nil error")
	}
	c.err = err
	c.publish(stateFailed)
	return true
}

// Done is closed once the completion leaves the pending state.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}

// Result returns the resolved value or error. It must only be called after Done is closed.
func (c *Completion[T]) Result() (T, error) {
	return c.value, c.err
}

func (c *Completion[T]) cancel(cause error) bool {
	if !c.state.CompareAndSwap(int32(statePending), int32(stateResolving)) {
		return false
	}
	c.err = fmt.Errorf("%w: %w", ErrCancelled, cause)
	c.publish(stateCancelled)
	return true
}

// claim moves pending to resolving; the loser of the race logs and backs off.
func (c *Completion[T]) claim(op string) bool {
	if c.state.CompareAndSwap(int32(statePending), int32(stateResolving)) {
		return true
	}
	c.log.Warn("Dropped redundant resolution",
		zap.String("op", op),
		zap.Stringer("state", state(c.state.Load())),
		zap.Error(ErrDoubleResolution))
	return false
}

func (c *Completion[T]) publish(s state) {
	c.state.Store(int32(s))
	close(c.done)
}
