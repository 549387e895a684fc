// Package protocol defines the wire protocol between the gateway and its
// WebSocket clients. Frames are UTF-8 JSON objects with a "type" field that
// selects the message kind; the remaining fields sit flat on the object.
package protocol

import "time"

// MessageType identifies the kind of message on the WebSocket wire.
type MessageType string

const (
	// Client → Gateway
	MsgSubscribe         MessageType = "subscribe"
	MsgUnsubscribe       MessageType = "unsubscribe"
	MsgHeartbeat         MessageType = "heartbeat"
	MsgQueryIntelligence MessageType = "query_intelligence"

	// Gateway → Client
	MsgConnectionEstablished   MessageType = "connection_established"
	MsgSubscriptionConfirmed   MessageType = "subscription_confirmed"
	MsgUnsubscriptionConfirmed MessageType = "unsubscription_confirmed"
	MsgHeartbeatAck            MessageType = "heartbeat_ack"
	MsgError                   MessageType = "error"
	MsgKnowledgeUpdate         MessageType = "knowledge_update"
	MsgPerformanceMetrics      MessageType = "performance_metrics"
	MsgSystemStatus            MessageType = "system_status"
	MsgIntelligenceStream      MessageType = "intelligence_stream"
)

// Inbound is the decoded form of a client frame. Only the fields the
// frame's type requires are populated; the rest stay zero.
type Inbound struct {
	Type    MessageType        `json:"type"`
	Channel string             `json:"channel,omitempty"`
	Query   *IntelligenceQuery `json:"query,omitempty"`
}

// IntelligenceQuery is the body of a query_intelligence request.
type IntelligenceQuery struct {
	Context      string `json:"context"`
	AnalysisType string `json:"analysis_type,omitempty"`
	Include3D    bool   `json:"include_3d,omitempty"`
	MaxResults   int    `json:"max_results,omitempty"`
}

// ConnectionEstablishedPayload greets a freshly accepted connection.
type ConnectionEstablishedPayload struct {
	ConnectionID      string   `json:"connection_id"`
	AvailableChannels []string `json:"available_channels"`
}

// SubscriptionPayload confirms a subscribe or unsubscribe.
type SubscriptionPayload struct {
	Channel string `json:"channel"`
}

// HeartbeatAckPayload answers a client heartbeat.
type HeartbeatAckPayload struct {
	ServerTime time.Time `json:"server_time"`
}

// ErrorPayload reports a per-connection protocol error. The connection
// stays open after one of these.
type ErrorPayload struct {
	Error string `json:"error"`
}

// KnowledgeUpdatePayload carries one knowledge-graph update. The update
// itself is opaque to the gateway.
type KnowledgeUpdatePayload struct {
	Update any `json:"update"`
}

// PerformanceMetricsPayload carries a metrics snapshot from the stats
// provider.
type PerformanceMetricsPayload struct {
	Metrics any `json:"metrics"`
}

// SystemStatusPayload carries a system status report.
type SystemStatusPayload struct {
	Status any `json:"status"`
}

// IntelligenceStreamPayload wraps one chunk of a streaming query response.
type IntelligenceStreamPayload struct {
	Chunk StreamChunk `json:"chunk"`
}

// ChunkType classifies one unit of a streaming query response.
type ChunkType string

const (
	ChunkHeader     ChunkType = "header"
	ChunkProgress   ChunkType = "progress"
	ChunkCompletion ChunkType = "completion"
	ChunkError      ChunkType = "error"
)

// Stream sequence numbers increase strictly within a request, with two
// reserved values: completion is pinned at 99 and error at -1 so clients
// can recognize a terminal chunk without tracking state.
const (
	SeqCompletion = 99
	SeqError      = -1
)

// StreamChunk is one unit of a multi-part response to a query_intelligence
// request. Chunks are created, sent, and discarded — never persisted or
// retried. Exactly one chunk per request carries IsFinal=true.
type StreamChunk struct {
	ChunkID          string    `json:"chunk_id"`
	RequestID        string    `json:"request_id"`
	ChunkType        ChunkType `json:"chunk_type"`
	Data             any       `json:"data,omitempty"`
	SequenceNumber   int       `json:"sequence_number"`
	IsFinal          bool      `json:"is_final"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}
