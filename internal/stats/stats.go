// Package stats defines the StatsProvider collaborator consumed by the
// gateway's performance-metrics feed, plus a default runtime-backed
// provider.
package stats

import (
	"runtime"
	"time"
)

// Metrics is one point-in-time performance snapshot. It is sent verbatim
// on the performance_metrics channel.
type Metrics struct {
	Timestamp         time.Time `json:"timestamp"`
	UptimeSeconds     int64     `json:"uptime_seconds"`
	ActiveConnections int       `json:"active_connections"`
	ActiveChannels    int       `json:"active_channels"`
	Goroutines        int       `json:"goroutines"`
	HeapBytes         uint64    `json:"heap_bytes"`
}

// Provider produces metrics snapshots on demand.
type Provider interface {
	Snapshot() Metrics
}

// ConnectionCounter reports gateway connection state. The gateway's
// registry and subscription index satisfy the two halves.
type ConnectionCounter interface {
	Count() int
}

// ChannelCounter reports the number of channels with members.
type ChannelCounter interface {
	ChannelCount() int
}

// Runtime is the default provider: Go runtime stats plus gateway counts.
type Runtime struct {
	conns     ConnectionCounter
	channels  ChannelCounter
	startTime time.Time
}

// NewRuntime creates a runtime-backed provider. Either counter may be nil.
func NewRuntime(conns ConnectionCounter, channels ChannelCounter) *Runtime {
	return &Runtime{conns: conns, channels: channels, startTime: time.Now()}
}

// Snapshot implements Provider.
func (r *Runtime) Snapshot() Metrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := Metrics{
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(r.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		HeapBytes:     mem.HeapAlloc,
	}
	if r.conns != nil {
		m.ActiveConnections = r.conns.Count()
	}
	if r.channels != nil {
		m.ActiveChannels = r.channels.ChannelCount()
	}
	return m
}
