// Package framer extracts one Content-Length delimited response from a byte stream.
package framer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

var (
	ErrFraming        = errors.New("framer: malformed response")
	ErrTruncated      = errors.New("framer: response truncated")
	ErrExcessBody     = fmt.Errorf("%w: bytes beyond content length", ErrFraming)
	ErrBodyTooLarge   = errors.New("framer: body exceeds limit")
	ErrHeaderTooLarge = errors.New("framer: header exceeds limit")
)

// ReadFunc returns the next chunk from the connection. An empty chunk or
// io.EOF means the peer closed.
type ReadFunc func(ctx context.Context) ([]byte, error)

// Response is a framed message.
type Response struct {
	Status     string
	StatusCode int
	Header     map[string]string
	Body       []byte
}

// Get looks up a header ignoring case.
func (r *Response) Get(name string) string {
	if r == nil {
		return ""
	}
	return r.Header[http.CanonicalHeaderKey(name)]
}

// Option configures Frame.
type Option func(*options)

type options struct {
	maxBody   int64
	maxHeader int
}

// WithMaxBodyBytes rejects declared lengths above n before allocating. Zero means no limit.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBody = n }
}

// WithMaxHeaderBytes bounds how far Frame searches for the header delimiter.
func WithMaxHeaderBytes(n int) Option {
	return func(o *options) { o.maxHeader = n }
}

// Frame reads one response through read.
func Frame(ctx context.Context, read ReadFunc, opts ...Option) (*Response, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	buf := NewBuffer()
	src := &source{read: read}

	for !buf.HeaderDone() {
		chunk, err := src.next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: closed before header end after %d bytes", ErrTruncated, buf.Len())
			}
			return nil, err
		}
		buf.accumulate(chunk)
		if o.maxHeader > 0 && !buf.HeaderDone() && buf.Len() > o.maxHeader {
			return nil, fmt.Errorf("%w: no delimiter in %d bytes", ErrHeaderTooLarge, buf.Len())
		}
	}
	if o.maxHeader > 0 && len(buf.header()) > o.maxHeader {
		return nil, fmt.Errorf("%w: %d byte header, limit %d", ErrHeaderTooLarge, len(buf.header()), o.maxHeader)
	}

	resp, err := parseHeader(buf.header())
	if err != nil {
		return nil, err
	}
	length, err := contentLength(resp.Header)
	if err != nil {
		return nil, err
	}
	if o.maxBody > 0 && length > o.maxBody {
		return nil, fmt.Errorf("%w: content length %d, limit %d", ErrBodyTooLarge, length, o.maxBody)
	}
	if err := buf.setTarget(length); err != nil {
		return nil, err
	}

	for !buf.Complete() {
		chunk, err := src.next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: got %d of %d body bytes", ErrTruncated, buf.Received(), length)
			}
			return nil, err
		}
		if err := buf.appendBody(chunk); err != nil {
			return nil, err
		}
	}
	resp.Body = buf.Body()
	return resp, nil
}

// source wraps a ReadFunc so that an error delivered along with data is
// reported on the following call instead of being lost.
type source struct {
	read    ReadFunc
	pending error
}

func (s *source) next(ctx context.Context) ([]byte, error) {
	if err := s.pending; err != nil {
		s.pending = nil
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chunk, err := s.read(ctx)
	if len(chunk) > 0 {
		s.pending = err
		return chunk, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func parseHeader(block []byte) (*Response, error) {
	resp := &Response{Header: map[string]string{}}
	lines := strings.Split(strings.ReplaceAll(string(block), "\r\n", "\n"), "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		if i == 0 && strings.HasPrefix(line, "HTTP/") {
			resp.Status = line
			resp.StatusCode = statusCode(line)
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			return nil, fmt.Errorf("%w: header line %q", ErrFraming, line)
		}
		key := http.CanonicalHeaderKey(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if prev, ok := resp.Header[key]; ok && key == "Content-Length" && prev != value {
			return nil, fmt.Errorf("%w: conflicting Content-Length %q and %q", ErrFraming, prev, value)
		}
		resp.Header[key] = value
	}
	return resp, nil
}

// statusCode pulls the second field of a status line; 0 when it is not numeric.
func statusCode(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

func contentLength(header map[string]string) (int64, error) {
	raw, ok := header["Content-Length"]
	if !ok {
		return 0, fmt.Errorf("%w: missing Content-Length", ErrFraming)
	}
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return 0, fmt.Errorf("%w: invalid Content-Length %q", ErrFraming, raw)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid Content-Length %q", ErrFraming, raw)
	}
	return n, nil
}

func delimiterIndex(b []byte) (idx, width int) {
	crlf := bytes.Index(b, []byte("\r\n\r\n"))
	lf := bytes.Index(b, []byte("\n\n"))
	switch {
	case crlf < 0 && lf < 0:
		return -1, 0
	case lf < 0 || (crlf >= 0 && crlf < lf):
		return crlf, 4
	default:
		return lf, 2
	}
}
