package framer

import "fmt"

// initialBodyCap bounds the up-front allocation when no body limit is set.
const initialBodyCap = 64 << 10

// Buffer accumulates the bytes of one response for one request.
// Header and target lengths stay -1 until known.
type Buffer struct {
	raw       []byte
	headerLen int
	bodyStart int
	target    int64
	body      []byte
}

func NewBuffer() *Buffer {
	return &Buffer{headerLen: -1, bodyStart: -1, target: -1}
}

// Len is the number of bytes accumulated so far, header included.
func (b *Buffer) Len() int {
	return len(b.raw) + len(b.body)
}

// HeaderDone reports whether the blank line delimiter has been seen.
func (b *Buffer) HeaderDone() bool {
	return b.headerLen >= 0
}

// Target is the declared body length, -1 before the header is parsed.
func (b *Buffer) Target() int64 {
	return b.target
}

// Received is the number of body bytes held.
func (b *Buffer) Received() int64 {
	return int64(len(b.body))
}

// Complete is true only when exactly Target body bytes are held.
func (b *Buffer) Complete() bool {
	return b.target >= 0 && int64(len(b.body)) == b.target
}

// Body returns the body bytes; nil is never returned for a complete empty body.
func (b *Buffer) Body() []byte {
	if b.body == nil {
		return []byte{}
	}
	return b.body
}

func (b *Buffer) accumulate(chunk []byte) {
	b.raw = append(b.raw, chunk...)
	if idx, width := delimiterIndex(b.raw); idx >= 0 {
		b.headerLen = idx
		b.bodyStart = idx + width
	}
}

func (b *Buffer) header() []byte {
	return b.raw[:b.headerLen]
}

// setTarget fixes the body length and moves the bytes already read past the
// delimiter into the body.
func (b *Buffer) setTarget(n int64) error {
	b.target = n
	early := b.raw[b.bodyStart:]
	b.raw = b.raw[:b.bodyStart]
	capacity := n
	if capacity > initialBodyCap {
		capacity = initialBodyCap
	}
	b.body = make([]byte, 0, capacity)
	return b.appendBody(early)
}

func (b *Buffer) appendBody(chunk []byte) error {
	if int64(len(b.body))+int64(len(chunk)) > b.target {
		return fmt.Errorf("%w: %d bytes declared, %d received", ErrExcessBody, b.target, int64(len(b.body))+int64(len(chunk)))
	}
	b.body = append(b.body, chunk...)
	return nil
}
