package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marcus-qen/synapse/internal/metrics"
	"github.com/marcus-qen/synapse/internal/protocol"
)

// staleAfter multiplies the heartbeat interval to get the liveness cutoff.
const staleAfter = 3

// heartbeatMonitor runs one supervised loop per connection. It is the
// sole liveness mechanism: there is no TCP-level keepalive assumption.
// Every tick it either evicts a stale connection or sends a heartbeat
// frame; a send failure is treated the same as staleness.
type heartbeatMonitor struct {
	interval time.Duration
	evict    func(connID, reason string)
	logger   *zap.Logger
}

func newHeartbeatMonitor(interval time.Duration, evict func(connID, reason string), logger *zap.Logger) *heartbeatMonitor {
	return &heartbeatMonitor{interval: interval, evict: evict, logger: logger}
}

// run loops until the connection is unregistered (context cancellation)
// or it triggers the eviction itself. Stale eviction is logged, not
// reported to the unreachable client.
func (m *heartbeatMonitor) run(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := time.Since(conn.LastActivity())
			if idle > staleAfter*m.interval {
				m.logger.Info("evicting stale connection",
					zap.String("connection_id", conn.ID),
					zap.Duration("idle", idle),
				)
				metrics.StaleEvictionsTotal.Inc()
				m.evict(conn.ID, "stale")
				return
			}
			if err := conn.Send(protocol.MsgHeartbeat, nil); err != nil {
				m.logger.Warn("heartbeat send failed, evicting",
					zap.String("connection_id", conn.ID),
					zap.Error(err),
				)
				m.evict(conn.ID, "heartbeat send failure")
				return
			}
		}
	}
}
