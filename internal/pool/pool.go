package pool

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pool: closed")

// Workers is a bounded set of goroutines that run completion callbacks.
// Many execution units share it; none of them block a worker while suspended.
type Workers struct {
	tasks    chan func()
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	size     int
	executed atomic.Int64
	panics   atomic.Int64
	log      *zap.Logger
}

// NewWorkers starts size workers with a task queue of queue slots.
func NewWorkers(size, queue int, log *zap.Logger) *Workers {
	if size <= 0 {
		size = 1 // single worker makes interleaving observable
	}
	if queue <= 0 {
		queue = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	w := &Workers{
		tasks: make(chan func(), queue),
		size:  size,
		log:   log,
	}
	w.wg.Add(size)
	for i := 0; i < size; i++ {
		go w.loop(i)
	}
	return w
}

// Size reports the number of workers.
func (w *Workers) Size() int {
	return w.size
}

// Executed reports how many tasks have run.
func (w *Workers) Executed() int64 {
	return w.executed.Load()
}

// Submit queues fn. It blocks only while the queue is full, so tasks must not
// Submit from inside a worker.
func (w *Workers) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	w.tasks <- fn
	return nil
}

// Close stops accepting tasks, runs what is queued and waits for the workers.
func (w *Workers) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.tasks)
	w.mu.Unlock()
	w.wg.Wait()

	if n := w.panics.Load(); n > 0 {
		return fmt.Errorf("pool close: %d task panics", n)
	}
	return nil
}

func (w *Workers) loop(id int) {
	defer w.wg.Done()
	for fn := range w.tasks {
		w.run(id, fn)
	}
}

func (w *Workers) run(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.panics.Inc()
			w.log.Error("Worker task panic", zap.Int("worker", id), zap.Any("panic", r))
		}
	}()
	fn()
	w.executed.Inc()
}
