// Package executor performs one request/response cycle over a callback style
// transport, suspending on each asynchronous step through the bridge.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/nioload/internal/bridge"
	"github.com/torosent/nioload/internal/framer"
	"github.com/torosent/nioload/internal/tracing"
	"github.com/torosent/nioload/internal/transport"
)

const defaultReadHint = 256

// HTTPError reports a framed response whose status code signals failure.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Executor sends a fixed request to Address and returns the framed body text.
// It is safe for sequential reuse; every Execute opens its own connection.
type Executor struct {
	Transport transport.Transport
	Address   string
	Request   []byte
	// ReadHint is the per read chunk size; 256 when zero.
	ReadHint int
	// Timeout bounds each asynchronous step. Zero waits indefinitely.
	Timeout      time.Duration
	FrameOptions []framer.Option
	// RejectStatus turns responses with status >= 400 into an *HTTPError.
	RejectStatus bool
	// Propagate injects W3C trace headers into each written request.
	Propagate bool
	Logger    *zap.Logger
	Tracer    trace.Tracer
	// Name labels spans; the transport kind, e.g. "tcp".
	Name string
}

// Execute runs open, write and framed read in order. The connection is closed
// on every exit path.
func (e *Executor) Execute(ctx context.Context) (body string, err error) {
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracer := e.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("nioload")
	}
	name := e.Name
	if name == "" {
		name = "tcp"
	}

	ctx, span := tracing.StartRequestSpan(ctx, tracer, name, e.Address)
	defer func() { tracing.EndSpan(span, err) }()

	opts := e.awaitOptions(log)

	conn, err := bridge.Await(ctx, e.open, opts...)
	if err != nil {
		return "", err
	}
	tracing.Step(span, tracing.EventConnected)
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Debug("Close failed", zap.String("address", e.Address), zap.Error(cerr))
		}
	}()

	req := e.Request
	if e.Propagate {
		req = withTraceContext(ctx, req)
	}
	if err := write(ctx, conn, req, opts); err != nil {
		return "", err
	}
	tracing.Step(span, tracing.EventRequestSent)

	resp, err := framer.Frame(ctx, e.reader(conn, opts), e.FrameOptions...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if !errors.Is(err, bridge.ErrCancelled) {
				err = fmt.Errorf("%w: %w", bridge.ErrCancelled, err)
			}
		}
		return "", err
	}
	tracing.RecordResponse(span, resp.StatusCode, len(resp.Body))
	log.Debug("Response framed",
		zap.String("address", e.Address),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(resp.Body)))

	body = string(resp.Body)
	if e.RejectStatus && resp.StatusCode >= 400 {
		return body, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (e *Executor) awaitOptions(log *zap.Logger) []bridge.Option {
	opts := []bridge.Option{bridge.WithDropLogger(log)}
	if e.Timeout > 0 {
		opts = append(opts, bridge.WithTimeout(e.Timeout))
	}
	return opts
}

// open hands back connections that arrive after the await gave up, so they
// are closed instead of leaked.
func (e *Executor) open(c *bridge.Completion[transport.Conn]) func() {
	return e.Transport.Open(context.Background(), e.Address, func(conn transport.Conn, err error) {
		if err != nil {
			c.Fail(err)
			return
		}
		if !c.Succeed(conn) {
			_ = conn.Close()
		}
	})
}

// write loops until req is fully written, resuming after short writes.
func write(ctx context.Context, conn transport.Conn, req []byte, opts []bridge.Option) error {
	remaining := req
	for len(remaining) > 0 {
		chunk := remaining
		n, err := bridge.Await(ctx, func(c *bridge.Completion[int]) func() {
			conn.WriteAsync(chunk, func(n int, err error) {
				if err != nil {
					c.Fail(err)
					return
				}
				c.Succeed(n)
			})
			return func() { _ = conn.Close() }
		}, opts...)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("%w: zero byte write", transport.ErrWrite)
		}
		remaining = remaining[n:]
	}
	return nil
}

func (e *Executor) reader(conn transport.Conn, opts []bridge.Option) framer.ReadFunc {
	hint := e.ReadHint
	if hint <= 0 {
		hint = defaultReadHint
	}
	return func(ctx context.Context) ([]byte, error) {
		return bridge.Await(ctx, func(c *bridge.Completion[[]byte]) func() {
			conn.ReadAsync(hint, func(chunk []byte, err error) {
				switch {
				case err == nil, errors.Is(err, io.EOF) && len(chunk) > 0:
					c.Succeed(chunk)
				default:
					c.Fail(err)
				}
			})
			return func() { _ = conn.Close() }
		}, opts...)
	}
}
