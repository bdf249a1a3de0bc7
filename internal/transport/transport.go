// Package transport defines the callback style connection capability consumed by
// the request executor, and a raw TCP implementation of it.
package transport

import (
	"context"
	"errors"
)

var (
	ErrConnect = errors.New("transport: connect failed")
	ErrWrite   = errors.New("transport: write failed")
	ErrRead    = errors.New("transport: read failed")
	ErrClosed  = errors.New("transport: connection closed")
)

// Transport opens connections asynchronously.
type Transport interface {
	// Open starts connecting to address and calls done exactly once.
	// The returned func aborts the attempt; it may be nil.
	Open(ctx context.Context, address string, done func(Conn, error)) (abort func())
	// Close releases transport wide resources.
	Close() error
}

// Conn is one connection. Each async call reports through done exactly once.
type Conn interface {
	// WriteAsync writes p, reporting the number of bytes written.
	WriteAsync(p []byte, done func(n int, err error))
	// ReadAsync reads up to hint bytes. A nil chunk with io.EOF marks peer close.
	ReadAsync(hint int, done func(chunk []byte, err error))
	// Close releases the connection and aborts pending operations.
	Close() error
}
