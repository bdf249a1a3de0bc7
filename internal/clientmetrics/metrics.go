package clientmetrics

import (
	"go.uber.org/atomic"
)

// ClientMetrics tracks connection and byte statistics for a transport.
// One instance is shared by every connection a transport opens during a run.
type ClientMetrics struct {
	connects  atomic.Int64
	closes    atomic.Int64
	writes    atomic.Int64
	reads     atomic.Int64
	bytesSent atomic.Int64
	bytesRecv atomic.Int64
	errors    atomic.Int64
}

// New creates a new ClientMetrics instance.
func New() *ClientMetrics {
	return &ClientMetrics{}
}

// MarkConnected counts an established connection.
func (m *ClientMetrics) MarkConnected() {
	if m == nil {
		return
	}
	m.connects.Inc()
}

// MarkClosed counts a released connection.
func (m *ClientMetrics) MarkClosed() {
	if m == nil {
		return
	}
	m.closes.Inc()
}

// IncrementSent counts one completed write of n bytes.
func (m *ClientMetrics) IncrementSent(n int64) {
	if m == nil {
		return
	}
	m.writes.Inc()
	m.bytesSent.Add(n)
}

// IncrementReceived counts one completed read of n bytes.
func (m *ClientMetrics) IncrementReceived(n int64) {
	if m == nil {
		return
	}
	m.reads.Inc()
	m.bytesRecv.Add(n)
}

// IncrementErrors increments the error counter.
func (m *ClientMetrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

// Snapshot is a point in time copy of the counters.
type Snapshot struct {
	Connects      int64 `json:"connects" yaml:"connects"`
	Closes        int64 `json:"closes" yaml:"closes"`
	Writes        int64 `json:"writes" yaml:"writes"`
	Reads         int64 `json:"reads" yaml:"reads"`
	BytesSent     int64 `json:"bytes_sent" yaml:"bytes_sent"`
	BytesReceived int64 `json:"bytes_received" yaml:"bytes_received"`
	Errors        int64 `json:"errors" yaml:"errors"`
}

// Open reports connections opened but not yet closed.
func (s Snapshot) Open() int64 {
	return s.Connects - s.Closes
}

// Snapshot returns the current counters.
func (m *ClientMetrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Connects:      m.connects.Load(),
		Closes:        m.closes.Load(),
		Writes:        m.writes.Load(),
		Reads:         m.reads.Load(),
		BytesSent:     m.bytesSent.Load(),
		BytesReceived: m.bytesRecv.Load(),
		Errors:        m.errors.Load(),
	}
}
