package httpclient

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/nioload/internal/clientmetrics"
	"github.com/torosent/nioload/internal/pool"
	"github.com/torosent/nioload/internal/transport"
)

// NewClient returns an HTTP/1.1 client that never reuses connections.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	rt := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Options configure the pooled client transport.
type Options struct {
	Client       *http.Client
	Scheme       string // "http" unless set
	MaxBodyBytes int64  // 0 means unlimited
	Workers      *pool.Workers
	Metrics      *clientmetrics.ClientMetrics
	Logger       *zap.Logger
}

// Transport adapts net/http to the callback connection capability. Bytes
// written to a connection are parsed back into an *http.Request, sent with the
// client, and the response is re-serialized for reading.
type Transport struct {
	client  *http.Client
	scheme  string
	maxBody int64
	workers *pool.Workers
	metrics *clientmetrics.ClientMetrics
	log     *zap.Logger
}

var _ transport.Transport = (*Transport)(nil)

func NewTransport(opt Options) *Transport {
	client := opt.Client
	if client == nil {
		client = NewClient(0)
	}
	scheme := opt.Scheme
	if scheme == "" {
		scheme = "http"
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Transport{
		client:  client,
		scheme:  scheme,
		maxBody: opt.MaxBodyBytes,
		workers: opt.Workers,
		metrics: opt.Metrics,
		log:     log,
	}
}

func (t *Transport) Open(ctx context.Context, address string, done func(transport.Conn, error)) func() {
	if address == "" {
		t.dispatch(func() { done(nil, fmt.Errorf("%w: empty address", transport.ErrConnect)) })
		return nil
	}
	connCtx, cancel := context.WithCancel(context.Background())
	c := &clientConn{
		owner:   t,
		address: address,
		ctx:     connCtx,
		cancel:  cancel,
		ready:   make(chan struct{}),
	}
	t.metrics.MarkConnected()
	t.dispatch(func() { done(c, nil) })
	return nil
}

// Close drops idle connections held by the client.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *Transport) dispatch(fn func()) {
	if t.workers == nil {
		fn()
		return
	}
	if err := t.workers.Submit(fn); err != nil {
		fn()
	}
}

type clientConn struct {
	owner   *Transport
	address string
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending []byte
	sent    bool
	stream  *bytes.Reader
	rtErr   error
	ready   chan struct{}
	closed  bool
	closeMu sync.Once
}

func (c *clientConn) WriteAsync(p []byte, done func(int, error)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.owner.dispatch(func() { done(0, fmt.Errorf("%w: %w", transport.ErrWrite, transport.ErrClosed)) })
		return
	}
	if c.sent {
		c.mu.Unlock()
		c.owner.dispatch(func() { done(0, fmt.Errorf("%w: request already sent", transport.ErrWrite)) })
		return
	}
	c.pending = append(c.pending, p...)
	req, body, complete, err := parsePending(c.pending)
	if err != nil {
		c.mu.Unlock()
		c.owner.metrics.IncrementErrors()
		c.owner.dispatch(func() { done(0, fmt.Errorf("%w: %w", transport.ErrWrite, err)) })
		return
	}
	if complete {
		c.sent = true
	}
	c.mu.Unlock()

	c.owner.metrics.IncrementSent(int64(len(p)))
	if complete {
		go c.roundTrip(req, body)
	}
	n := len(p)
	c.owner.dispatch(func() { done(n, nil) })
}

// parsePending reports complete=false while the request bytes are still partial.
func parsePending(b []byte) (*http.Request, []byte, bool, error) {
	// A partial request line would parse as a malformed one.
	if !bytes.Contains(b, []byte("\r\n\r\n")) && !bytes.Contains(b, []byte("\n\n")) {
		return nil, nil, false, nil
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(b)))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	return req, body, true, nil
}

func (c *clientConn) roundTrip(parsed *http.Request, body []byte) {
	defer close(c.ready)

	target := c.owner.scheme + "://" + c.address + parsed.URL.RequestURI()
	req, err := http.NewRequestWithContext(c.ctx, parsed.Method, target, bytes.NewReader(body))
	if err != nil {
		c.finish(nil, err)
		return
	}
	for k, vals := range parsed.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.ContentLength = int64(len(body))
	req.Close = true

	resp, err := c.owner.client.Do(req)
	if err != nil {
		c.owner.metrics.IncrementErrors()
		c.finish(nil, err)
		return
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if c.owner.maxBody > 0 {
		reader = io.LimitReader(resp.Body, c.owner.maxBody+1)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		c.owner.metrics.IncrementErrors()
		c.finish(nil, err)
		return
	}

	// Re-emit with an explicit length so the framer sees Content-Length.
	resp.Body = io.NopCloser(bytes.NewReader(payload))
	resp.ContentLength = int64(len(payload))
	resp.TransferEncoding = nil
	resp.Header.Del("Transfer-Encoding")
	resp.Close = false
	// Without a request method Write emits Content-Length even for an empty body.
	resp.Request = nil
	var out bytes.Buffer
	if err := resp.Write(&out); err != nil {
		c.finish(nil, err)
		return
	}
	c.owner.log.Debug("Round trip complete",
		zap.String("target", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", out.Len()))
	c.finish(bytes.NewReader(out.Bytes()), nil)
}

func (c *clientConn) finish(stream *bytes.Reader, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = stream
	c.rtErr = err
}

func (c *clientConn) ReadAsync(hint int, done func([]byte, error)) {
	if hint <= 0 {
		hint = 256
	}
	go func() {
		select {
		case <-c.ready:
		case <-c.ctx.Done():
			c.owner.dispatch(func() { done(nil, fmt.Errorf("%w: %w", transport.ErrClosed, c.ctx.Err())) })
			return
		}

		c.mu.Lock()
		stream, rtErr := c.stream, c.rtErr
		c.mu.Unlock()
		if rtErr != nil {
			c.owner.dispatch(func() { done(nil, fmt.Errorf("%w: %w", transport.ErrRead, rtErr)) })
			return
		}
		buf := make([]byte, hint)
		c.mu.Lock()
		n, err := stream.Read(buf)
		c.mu.Unlock()
		if n > 0 {
			c.owner.metrics.IncrementReceived(int64(n))
		}
		chunk := buf[:n]
		c.owner.dispatch(func() { done(chunk, err) })
	}()
}

func (c *clientConn) Close() error {
	c.closeMu.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		c.owner.metrics.MarkClosed()
	})
	return nil
}
