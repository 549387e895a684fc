package gateway

import (
	"context"

	"go.uber.org/zap"

	"github.com/marcus-qen/synapse/internal/metrics"
	"github.com/marcus-qen/synapse/internal/protocol"
	"github.com/marcus-qen/synapse/internal/telemetry"
)

// Dispatcher fans one message out to every current subscriber of a
// channel. Delivery is best-effort and partial-failure tolerant: a send
// failure evicts that one connection and the rest still receive the
// message. No cross-connection ordering is guaranteed.
type Dispatcher struct {
	registry *Registry
	index    *Index
	evict    func(connID, reason string)
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. evict is called for each member
// whose send fails; it must be safe to call from any goroutine.
func NewDispatcher(registry *Registry, index *Index, evict func(connID, reason string), logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, index: index, evict: evict, logger: logger}
}

// Broadcast sends one frame to every member subscribed at the moment the
// member list is read. A subscriber joining afterwards does not receive
// it. Returns the number of successful deliveries.
func (d *Dispatcher) Broadcast(channel string, msgType protocol.MessageType, payload any) int {
	members := d.index.MembersOf(channel)
	metrics.BroadcastsTotal.WithLabelValues(channel).Inc()
	_, span := telemetry.StartBroadcastSpan(context.Background(), channel, len(members))
	defer span.End()

	delivered := 0
	for _, id := range members {
		conn, ok := d.registry.Get(id)
		if !ok {
			// Torn down between snapshot and send.
			continue
		}
		if err := conn.Send(msgType, payload); err != nil {
			d.logger.Warn("broadcast send failed, disconnecting member",
				zap.String("connection_id", id),
				zap.String("channel", channel),
				zap.Error(err),
			)
			metrics.SendFailuresTotal.Inc()
			d.evict(id, "broadcast send failure")
			continue
		}
		delivered++
		metrics.DeliveriesTotal.WithLabelValues(channel).Inc()
	}
	return delivered
}

// BroadcastKnowledgeUpdate fans a knowledge-graph update out to the
// knowledge_updates channel. The update payload is opaque to the gateway.
func (d *Dispatcher) BroadcastKnowledgeUpdate(update any) int {
	return d.Broadcast(ChannelKnowledgeUpdates, protocol.MsgKnowledgeUpdate,
		protocol.KnowledgeUpdatePayload{Update: update})
}

// BroadcastMetrics fans a metrics snapshot out to the
// performance_metrics channel.
func (d *Dispatcher) BroadcastMetrics(snapshot any) int {
	return d.Broadcast(ChannelPerformanceMetrics, protocol.MsgPerformanceMetrics,
		protocol.PerformanceMetricsPayload{Metrics: snapshot})
}

// BroadcastStatus fans a system status report out to the system_status
// channel.
func (d *Dispatcher) BroadcastStatus(status any) int {
	return d.Broadcast(ChannelSystemStatus, protocol.MsgSystemStatus,
		protocol.SystemStatusPayload{Status: status})
}
