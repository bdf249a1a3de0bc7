package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/nioload/internal/clientmetrics"
	"github.com/torosent/nioload/internal/pool"
)

// TCPOptions configure the raw socket transport.
type TCPOptions struct {
	DialTimeout time.Duration
	Workers     *pool.Workers // completion callbacks run here; nil runs them inline
	Metrics     *clientmetrics.ClientMetrics
	Logger      *zap.Logger
}

// TCP is a raw socket transport. Blocking net calls park on the runtime
// netpoller in their own goroutine; only the completion callback is handed to
// the shared worker pool.
type TCP struct {
	dialer  net.Dialer
	workers *pool.Workers
	metrics *clientmetrics.ClientMetrics
	log     *zap.Logger
}

var _ Transport = (*TCP)(nil)

func NewTCP(opt TCPOptions) *TCP {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &TCP{
		dialer:  net.Dialer{Timeout: opt.DialTimeout},
		workers: opt.Workers,
		metrics: opt.Metrics,
		log:     log,
	}
}

func (t *TCP) Open(ctx context.Context, address string, done func(Conn, error)) func() {
	dialCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		raw, err := t.dialer.DialContext(dialCtx, "tcp", address)
		if err != nil {
			t.metrics.IncrementErrors()
			t.dispatch(func() { done(nil, fmt.Errorf("%w: %s: %w", ErrConnect, address, err)) })
			return
		}
		t.metrics.MarkConnected()
		t.log.Debug("Connected", zap.String("address", address), zap.Stringer("local", raw.LocalAddr()))
		c := &tcpConn{raw: raw, owner: t}
		t.dispatch(func() { done(c, nil) })
	}()
	return cancel
}

// Close is a no-op; the worker pool is owned by the caller.
func (t *TCP) Close() error {
	return nil
}

func (t *TCP) dispatch(fn func()) {
	if t.workers == nil {
		fn()
		return
	}
	if err := t.workers.Submit(fn); err != nil {
		// Pool already closed: deliver inline rather than lose the completion.
		fn()
	}
}

type tcpConn struct {
	raw       net.Conn
	owner     *TCP
	closeOnce sync.Once
	closeErr  error
}

func (c *tcpConn) WriteAsync(p []byte, done func(int, error)) {
	go func() {
		n, err := c.raw.Write(p)
		if err != nil {
			c.owner.metrics.IncrementErrors()
			c.owner.dispatch(func() { done(n, fmt.Errorf("%w: %w", ErrWrite, err)) })
			return
		}
		c.owner.metrics.IncrementSent(int64(n))
		c.owner.dispatch(func() { done(n, nil) })
	}()
}

func (c *tcpConn) ReadAsync(hint int, done func([]byte, error)) {
	if hint <= 0 {
		hint = 256
	}
	go func() {
		buf := make([]byte, hint)
		n, err := c.raw.Read(buf)
		chunk := buf[:n]
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			err = io.EOF
		case errors.Is(err, net.ErrClosed):
			err = fmt.Errorf("%w: %w", ErrClosed, err)
		default:
			c.owner.metrics.IncrementErrors()
			err = fmt.Errorf("%w: %w", ErrRead, err)
		}
		if n > 0 {
			c.owner.metrics.IncrementReceived(int64(n))
		}
		c.owner.dispatch(func() { done(chunk, err) })
	}()
}

func (c *tcpConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
		c.owner.metrics.MarkClosed()
	})
	return c.closeErr
}
