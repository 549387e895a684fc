package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/marcus-qen/synapse/internal/protocol"
	"github.com/marcus-qen/synapse/internal/query"
)

func waitFor(t *testing.T, timeout time.Duration, ok func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ok() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition after %s", timeout)
}

// echoExecutor completes immediately with a fixed result after the given
// number of progress updates.
func echoExecutor(progressSteps int) query.Executor {
	return query.Func(func(ctx context.Context, q protocol.IntelligenceQuery, progress query.ProgressFunc) (any, error) {
		for i := 0; i < progressSteps; i++ {
			progress(map[string]any{"step": i})
		}
		return map[string]any{"echo": q.Context}, nil
	})
}

// newTestGateway starts a gateway over httptest and returns it with its
// WebSocket URL. Heartbeat interval defaults high so monitor traffic does
// not interleave with test frames unless a test asks for it.
func newTestGateway(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	if opts.Executor == nil {
		opts.Executor = echoExecutor(0)
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	gw, err := NewServer(opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := gw.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(gw.HandleWS))
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = gw.Stop(ctx)
	})

	return gw, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readFrame reads the next frame within the deadline and decodes it into
// a generic map.
func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	return frame
}

// readUntil reads frames, skipping unrelated ones (heartbeats and the
// like), until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType protocol.MessageType, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		frame := readFrame(t, conn, time.Until(deadline))
		if frame["type"] == string(msgType) {
			return frame
		}
	}
	t.Fatalf("no %s frame within %s", msgType, timeout)
	return nil
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// connect dials and consumes the connection_established greeting,
// returning the socket and the server-assigned connection id.
func connect(t *testing.T, wsURL string) (*websocket.Conn, string) {
	t.Helper()
	conn := dialWS(t, wsURL)
	greeting := readUntil(t, conn, protocol.MsgConnectionEstablished, 2*time.Second)
	id, _ := greeting["connection_id"].(string)
	if id == "" {
		t.Fatal("greeting missing connection_id")
	}
	return conn, id
}

// subscribe sends a subscribe frame and waits for its confirmation.
func subscribe(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	sendFrame(t, conn, map[string]any{"type": "subscribe", "channel": channel})
	frame := readUntil(t, conn, protocol.MsgSubscriptionConfirmed, 2*time.Second)
	if frame["channel"] != channel {
		t.Fatalf("confirmation for wrong channel: %v", frame["channel"])
	}
}
