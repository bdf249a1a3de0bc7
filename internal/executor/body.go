package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrPayloadChanged means a body file no longer has the size it had when the
// run was configured.
var ErrPayloadChanged = errors.New("executor: body file changed size")

// Payload is the request body rendered into every cycle. A file payload is
// sized up front and read once, when the request bytes are built.
type Payload struct {
	inline []byte
	path   string
	size   int64
}

// NewPayload takes either an inline body or a body file; neither gives an
// empty payload.
func NewPayload(body, bodyFile string) (*Payload, error) {
	bodyFile = strings.TrimSpace(bodyFile)
	switch {
	case body != "" && bodyFile != "":
		return nil, errors.New("body and body file cannot both be provided")
	case body != "":
		return &Payload{inline: []byte(body), size: int64(len(body))}, nil
	case bodyFile != "":
		info, err := os.Stat(bodyFile)
		if err != nil {
			return nil, fmt.Errorf("body file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("body file %q is a directory", bodyFile)
		}
		return &Payload{path: bodyFile, size: info.Size()}, nil
	default:
		return &Payload{}, nil
	}
}

// Len is the Content-Length the payload is written with.
func (p *Payload) Len() int64 {
	if p == nil {
		return 0
	}
	return p.size
}

// Bytes returns exactly Len bytes. A body file that grew or shrank since
// NewPayload fails with ErrPayloadChanged.
func (p *Payload) Bytes() ([]byte, error) {
	if p == nil || p.size == 0 && p.path == "" {
		return nil, nil
	}
	if p.path == "" {
		return p.inline, nil
	}
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, p.size+1))
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	if int64(len(data)) != p.size {
		return nil, fmt.Errorf("%w: %s was %d bytes, read %d", ErrPayloadChanged, p.path, p.size, len(data))
	}
	return data, nil
}
