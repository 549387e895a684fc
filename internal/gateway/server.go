// Package gateway implements the real-time connection gateway: it fans
// knowledge-graph update events out to subscribed WebSocket clients and
// executes long-running intelligence queries as sequenced chunk streams.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/marcus-qen/synapse/internal/events"
	"github.com/marcus-qen/synapse/internal/metrics"
	"github.com/marcus-qen/synapse/internal/protocol"
	"github.com/marcus-qen/synapse/internal/query"
)

const defaultHeartbeatInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// CheckOrigin allows all origins — authentication and authorization
	// are handled upstream of the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options configures a Server.
type Options struct {
	// HeartbeatInterval is the monitor tick; connections idle for three
	// intervals are evicted. Default 30s.
	HeartbeatInterval time.Duration
	// AvailableChannels is announced in connection_established. Defaults
	// to the three producer-fed channels.
	AvailableChannels []string
	// Executor runs query_intelligence requests. Required.
	Executor query.Executor
	// Bus, when set, is subscribed on Start and its events are forwarded
	// to the matching broadcast channels.
	Bus *events.Bus
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Server is the top-level orchestrator: it owns the connection registry,
// subscription index, task supervision, and broadcast dispatch, and it
// wires accept → register → message loop → unregister. One instance is
// constructed at process start and passed by reference to producers.
type Server struct {
	logger            *zap.Logger
	heartbeatInterval time.Duration
	availableChannels []string

	registry   *Registry
	index      *Index
	dispatcher *Dispatcher
	monitor    *heartbeatMonitor
	runner     *queryRunner
	bus        *events.Bus

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	sup     *supervisor
	fwdDone chan struct{}
}

// NewServer creates a gateway server. Call Start before serving traffic.
func NewServer(opts Options) (*Server, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("gateway: query executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	channels := opts.AvailableChannels
	if len(channels) == 0 {
		channels = []string{ChannelKnowledgeUpdates, ChannelPerformanceMetrics, ChannelSystemStatus}
	}

	s := &Server{
		logger:            logger,
		heartbeatInterval: interval,
		availableChannels: channels,
		registry:          NewRegistry(),
		index:             NewIndex(),
		bus:               opts.Bus,
	}
	s.dispatcher = NewDispatcher(s.registry, s.index, s.Unregister, logger.Named("broadcast"))
	s.monitor = newHeartbeatMonitor(interval, s.Unregister, logger.Named("heartbeat"))
	s.runner = newQueryRunner(opts.Executor, s.Unregister, logger.Named("stream"))
	return s, nil
}

// Start brings the server to its running state: supervised tasks can be
// launched and, when a bus is configured, the forwarder goroutine begins
// relaying producer events to broadcast channels.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("gateway: already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.sup = newSupervisor(ctx)
	s.started = true

	if s.bus != nil {
		ch := s.bus.Subscribe("gateway-forwarder")
		s.fwdDone = make(chan struct{})
		go s.forward(ctx, ch)
	}

	s.logger.Info("gateway started",
		zap.Duration("heartbeat_interval", s.heartbeatInterval),
		zap.Strings("available_channels", s.availableChannels),
	)
	return nil
}

// Stop tears down every connection and waits (bounded by ctx) for all
// supervised tasks to exit.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	sup := s.sup
	fwdDone := s.fwdDone
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Unsubscribe("gateway-forwarder")
	}
	cancel()

	for _, id := range s.registry.IDs() {
		s.Unregister(id, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		sup.wait()
		if fwdDone != nil {
			<-fwdDone
		}
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("gateway stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gateway: shutdown timed out: %w", ctx.Err())
	}
}

// forward relays producer events from the bus to broadcast channels.
func (s *Server) forward(ctx context.Context, ch <-chan events.Event) {
	defer close(s.fwdDone)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			switch evt.Type {
			case events.KnowledgeUpdated:
				s.BroadcastKnowledgeUpdate(evt.Payload)
			case events.MetricsSampled:
				s.BroadcastMetrics(evt.Payload)
			case events.StatusReported:
				s.BroadcastStatus(evt.Payload)
			default:
				s.logger.Warn("unroutable event", zap.String("type", string(evt.Type)))
			}
		}
	}
}

// HandleWS is the HTTP handler for client WebSocket connections.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		http.Error(w, "gateway not started", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", zap.Error(err))
		return
	}

	conn := s.registry.Add(ws)
	metrics.ActiveConnections.Inc()
	s.logger.Info("client connected",
		zap.String("connection_id", conn.ID),
		zap.String("remote_addr", r.RemoteAddr),
	)

	if err := conn.Send(protocol.MsgConnectionEstablished, protocol.ConnectionEstablishedPayload{
		ConnectionID:      conn.ID,
		AvailableChannels: append([]string(nil), s.availableChannels...),
	}); err != nil {
		s.logger.Warn("greeting failed", zap.String("connection_id", conn.ID), zap.Error(err))
		s.Unregister(conn.ID, "greeting send failure")
		return
	}

	s.sup.start(taskKey{connID: conn.ID, role: roleHeartbeat}, func(ctx context.Context) {
		s.monitor.run(ctx, conn)
	})

	s.readLoop(conn)
	s.Unregister(conn.ID, "connection closed")
}

// readLoop decodes inbound frames and dispatches them by type until the
// transport fails or the connection is torn down.
func (s *Server) readLoop(conn *Conn) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}

		msg, derr := protocol.Decode(raw)
		if derr != nil {
			// Protocol error: report back, keep the connection open.
			metrics.DecodeErrorsTotal.Inc()
			s.logger.Warn("invalid frame",
				zap.String("connection_id", conn.ID),
				zap.Error(derr),
			)
			if err := conn.Send(protocol.MsgError, protocol.ErrorPayload{Error: derr.Error()}); err != nil {
				return
			}
			continue
		}

		conn.Touch()
		s.dispatch(conn, msg)
	}
}

func (s *Server) dispatch(conn *Conn, msg protocol.Inbound) {
	switch msg.Type {
	case protocol.MsgSubscribe:
		s.index.Subscribe(conn.ID, msg.Channel)
		// An eviction (stale heartbeat, failed broadcast) can run the full
		// teardown between frame decode and the Subscribe above, in which
		// case RemoveAll has already run and the membership just added
		// would outlive the connection. Re-check and undo.
		if _, ok := s.registry.Get(conn.ID); !ok {
			s.index.RemoveAll(conn.ID)
			return
		}
		_ = conn.Send(protocol.MsgSubscriptionConfirmed, protocol.SubscriptionPayload{Channel: msg.Channel})

	case protocol.MsgUnsubscribe:
		s.index.Unsubscribe(conn.ID, msg.Channel)
		_ = conn.Send(protocol.MsgUnsubscriptionConfirmed, protocol.SubscriptionPayload{Channel: msg.Channel})

	case protocol.MsgHeartbeat:
		_ = conn.Send(protocol.MsgHeartbeatAck, protocol.HeartbeatAckPayload{ServerTime: time.Now().UTC()})

	case protocol.MsgQueryIntelligence:
		q := *msg.Query
		requestID := uuid.New().String()
		s.sup.start(taskKey{connID: conn.ID, role: roleStream, requestID: requestID}, func(ctx context.Context) {
			s.runner.run(ctx, conn, requestID, q)
		})

	default:
		// Unknown type is not fatal: answer with an error frame.
		_ = conn.Send(protocol.MsgError, protocol.ErrorPayload{
			Error: fmt.Sprintf("unknown message type %q", msg.Type),
		})
	}
}

// Unregister tears one connection down: removes it from the registry,
// cancels its heartbeat and stream tasks, strips its channel memberships,
// and closes the transport. Idempotent — the registry removal decides a
// single winner, so teardown runs exactly once and the id is never reused.
func (s *Server) Unregister(id, reason string) {
	conn, ok := s.registry.Remove(id)
	if !ok {
		return
	}
	s.sup.cancelConn(id)
	s.index.RemoveAll(id)
	conn.Close()
	metrics.ActiveConnections.Dec()
	s.logger.Info("client disconnected",
		zap.String("connection_id", id),
		zap.String("reason", reason),
	)
}

// BroadcastKnowledgeUpdate fans a knowledge-graph update out to its
// channel. Callable by external producers on any schedule.
func (s *Server) BroadcastKnowledgeUpdate(update any) int {
	return s.dispatcher.BroadcastKnowledgeUpdate(update)
}

// BroadcastMetrics fans a metrics snapshot out to its channel.
func (s *Server) BroadcastMetrics(snapshot any) int {
	return s.dispatcher.BroadcastMetrics(snapshot)
}

// BroadcastStatus fans a status report out to its channel.
func (s *Server) BroadcastStatus(status any) int {
	return s.dispatcher.BroadcastStatus(status)
}

// Registry exposes the connection registry for stats and admin surfaces.
func (s *Server) Registry() *Registry { return s.registry }

// Index exposes the subscription index for stats surfaces.
func (s *Server) Index() *Index { return s.index }
