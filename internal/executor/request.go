package executor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/nioload/internal/tracing"
)

// RequestSpec describes the request bytes written on every cycle.
type RequestSpec struct {
	Method  string
	Path    string
	Host    string
	Headers map[string]string
	Body    *Payload
}

// BuildRequest returns a body-less request with Host and Connection: close.
func BuildRequest(method, path, host string) []byte {
	b, _ := RequestSpec{Method: method, Path: path, Host: host}.Build()
	return b
}

// Build serializes the spec. Header order is stable so every cycle writes
// identical bytes.
func (s RequestSpec) Build() ([]byte, error) {
	method := strings.ToUpper(strings.TrimSpace(s.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := s.Path
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	body, err := s.Body.Bytes()
	if err != nil {
		return nil, fmt.Errorf("request body: %w", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, path)
	if s.Host != "" {
		fmt.Fprintf(&b, "Host: %s\r\n", s.Host)
	}

	keys := make([]string, 0, len(s.Headers))
	for k := range s.Headers {
		switch http.CanonicalHeaderKey(k) {
		case "Host", "Connection", "Content-Length":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", http.CanonicalHeaderKey(k), s.Headers[k])
	}
	if n := s.Body.Len(); n > 0 {
		b.WriteString("Content-Length: " + strconv.FormatInt(n, 10) + "\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")
	b.Write(body)
	return b.Bytes(), nil
}

// withTraceContext inserts W3C trace headers right after the request line.
// The request is returned unchanged when ctx carries no span.
func withTraceContext(ctx context.Context, req []byte) []byte {
	h := make(http.Header)
	tracing.InjectHTTPHeaders(ctx, h)
	if len(h) == 0 {
		return req
	}
	eol := bytes.Index(req, []byte("\r\n"))
	if eol < 0 {
		return req
	}
	var extra bytes.Buffer
	if err := h.Write(&extra); err != nil {
		return req
	}
	out := make([]byte, 0, len(req)+extra.Len())
	out = append(out, req[:eol+2]...)
	out = append(out, extra.Bytes()...)
	out = append(out, req[eol+2:]...)
	return out
}
