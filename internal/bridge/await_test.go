package bridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/torosent/nioload/internal/bridge"
)

func TestAwaitResumesWithValue(t *testing.T) {
	got, err := bridge.Await(context.Background(), func(c *bridge.Completion[string]) func() {
		go c.Succeed("hello")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestAwaitPropagatesFailure(t *testing.T) {
	refused := errors.New("connection refused")
	_, err := bridge.Await(context.Background(), func(c *bridge.Completion[int]) func() {
		go c.Fail(refused)
		return nil
	})
	require.ErrorIs(t, err, refused)
	assert.NotErrorIs(t, err, bridge.ErrCancelled)
}

func TestAwaitKeepsFirstResolution(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var second, third bool
	got, err := bridge.Await(context.Background(), func(c *bridge.Completion[string]) func() {
		c.Succeed("first")
		second = c.Succeed("second")
		third = c.Fail(errors.New("late failure"))
		return nil
	}, bridge.WithDropLogger(zap.New(core)))

	require.NoError(t, err)
	assert.Equal(t, "first", got)
	assert.False(t, second)
	assert.False(t, third)
	assert.Equal(t, 2, logs.FilterMessage("Dropped redundant resolution").Len())
}

func TestAwaitConcurrentResolversResumeOnce(t *testing.T) {
	var wins atomic.Int32
	var wg sync.WaitGroup
	got, err := bridge.Await(context.Background(), func(c *bridge.Completion[int]) func() {
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				if c.Succeed(n) {
					wins.Inc()
				}
			}(i)
		}
		return nil
	})
	wg.Wait()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got, 0)
	assert.EqualValues(t, 1, wins.Load())
}

func TestAwaitNeverResolvedHitsDeadline(t *testing.T) {
	aborted := make(chan struct{})
	start := time.Now()
	_, err := bridge.Await(context.Background(), func(c *bridge.Completion[[]byte]) func() {
		return func() { close(aborted) }
	}, bridge.WithTimeout(30*time.Millisecond))

	require.ErrorIs(t, err, bridge.ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	select {
	case <-aborted:
	default:
		t.Fatal("abort was not called on deadline")
	}
}

func TestAwaitContextCancelDiscardsLateResolution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var completion *bridge.Completion[string]
	late := make(chan bool, 1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := bridge.Await(ctx, func(c *bridge.Completion[string]) func() {
		completion = c
		return nil
	})
	require.ErrorIs(t, err, bridge.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)

	late <- completion.Succeed("too late")
	assert.False(t, <-late)
}

func TestAwaitAlreadyCancelledSkipsRegistrar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := bridge.Await(ctx, func(c *bridge.Completion[int]) func() {
		called = true
		return nil
	})
	require.ErrorIs(t, err, bridge.ErrCancelled)
	assert.False(t, called)
}

func TestAwaitRegistrarPanicBecomesFailure(t *testing.T) {
	_, err := bridge.Await(context.Background(), func(c *bridge.Completion[int]) func() {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registrar panic: boom")
}

func TestFailWithNilErrorStillFails(t *testing.T) {
	_, err := bridge.Await(context.Background(), func(c *bridge.Completion[int]) func() {
		c.Fail(nil)
		return nil
	})
	require.Error(t, err)
}
