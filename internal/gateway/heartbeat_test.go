package gateway

import (
	"testing"
	"time"

	"github.com/marcus-qen/synapse/internal/protocol"
)

func TestHeartbeatFramesAreSent(t *testing.T) {
	_, wsURL := newTestGateway(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	conn, _ := connect(t, wsURL)

	// Keep the connection fresh so the monitor sends instead of evicting.
	readUntil(t, conn, protocol.MsgHeartbeat, 2*time.Second)
}

func TestStaleConnectionIsEvicted(t *testing.T) {
	gw, wsURL := newTestGateway(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	_, id := connect(t, wsURL)

	target, ok := gw.Registry().Get(id)
	if !ok {
		t.Fatal("connection should be registered")
	}
	// Older than 3 × interval: the next tick must evict.
	target.setLastActivity(time.Now().Add(-time.Second))

	waitFor(t, 2*time.Second, func() bool {
		_, ok := gw.Registry().Get(id)
		return !ok
	})
}

func TestActiveConnectionSurvivesTicks(t *testing.T) {
	gw, wsURL := newTestGateway(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	conn, id := connect(t, wsURL)

	// Send inbound heartbeats across several monitor ticks.
	for i := 0; i < 5; i++ {
		sendFrame(t, conn, map[string]any{"type": "heartbeat"})
		readUntil(t, conn, protocol.MsgHeartbeatAck, 2*time.Second)
		time.Sleep(15 * time.Millisecond)
	}

	if _, ok := gw.Registry().Get(id); !ok {
		t.Fatal("active connection must not be evicted")
	}
}

func TestEvictionRemovesSubscriptions(t *testing.T) {
	gw, wsURL := newTestGateway(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	conn, id := connect(t, wsURL)
	subscribe(t, conn, ChannelKnowledgeUpdates)

	target, _ := gw.Registry().Get(id)
	target.setLastActivity(time.Now().Add(-time.Second))

	waitFor(t, 2*time.Second, func() bool {
		return len(gw.Index().MembersOf(ChannelKnowledgeUpdates)) == 0
	})
}
