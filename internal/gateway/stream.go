package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marcus-qen/synapse/internal/metrics"
	"github.com/marcus-qen/synapse/internal/protocol"
	"github.com/marcus-qen/synapse/internal/query"
	"github.com/marcus-qen/synapse/internal/telemetry"
)

// queryRunner executes one query_intelligence request as a supervised
// task, emitting an ordered chunk stream to exactly one connection:
// header(seq=0), progress(seq=1..n), then a single terminal chunk —
// completion(seq=99) or error(seq=-1), both with is_final set.
//
// Collaborator failures become a terminal error chunk for that request;
// they never reach the connection's message loop. Once the owning
// connection disconnects (context cancellation), no further sends are
// attempted.
type queryRunner struct {
	executor query.Executor
	evict    func(connID, reason string)
	logger   *zap.Logger
}

func newQueryRunner(executor query.Executor, evict func(connID, reason string), logger *zap.Logger) *queryRunner {
	return &queryRunner{executor: executor, evict: evict, logger: logger}
}

func (r *queryRunner) run(ctx context.Context, conn *Conn, requestID string, q protocol.IntelligenceQuery) {
	start := time.Now()
	ctx, span := telemetry.StartQuerySpan(ctx, conn.ID, requestID, q.AnalysisType)
	defer span.End()

	header := map[string]any{
		"status":  "accepted",
		"context": q.Context,
	}
	if !r.sendChunk(ctx, conn, requestID, protocol.ChunkHeader, header, 0, false, start) {
		return
	}

	seq := 1
	aborted := false
	progress := func(update any) {
		if aborted || ctx.Err() != nil {
			return
		}
		if !r.sendChunk(ctx, conn, requestID, protocol.ChunkProgress, update, seq, false, start) {
			aborted = true
			return
		}
		seq++
	}

	result, err := r.executor.Execute(ctx, q, progress)

	// Disconnected mid-query: the task was cancelled, not failed. The
	// transport is gone, so no terminal chunk is attempted.
	if ctx.Err() != nil || aborted {
		return
	}

	if err != nil {
		span.RecordError(err)
		r.logger.Warn("query execution failed",
			zap.String("connection_id", conn.ID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		r.sendChunk(ctx, conn, requestID, protocol.ChunkError,
			map[string]any{"error": err.Error()}, protocol.SeqError, true, start)
		return
	}

	telemetry.EndQuerySpan(span, seq-1, time.Since(start))
	r.sendChunk(ctx, conn, requestID, protocol.ChunkCompletion, result,
		protocol.SeqCompletion, true, start)
}

// sendChunk emits one chunk, returning false if the stream should stop.
// A send failure evicts the owning connection, which in turn cancels
// this task's context.
func (r *queryRunner) sendChunk(ctx context.Context, conn *Conn, requestID string, ct protocol.ChunkType, data any, seq int, final bool, start time.Time) bool {
	if ctx.Err() != nil {
		return false
	}

	chunk := protocol.StreamChunk{
		ChunkID:          uuid.New().String(),
		RequestID:        requestID,
		ChunkType:        ct,
		Data:             data,
		SequenceNumber:   seq,
		IsFinal:          final,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	if err := conn.Send(protocol.MsgIntelligenceStream, protocol.IntelligenceStreamPayload{Chunk: chunk}); err != nil {
		r.logger.Warn("stream chunk send failed",
			zap.String("connection_id", conn.ID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		metrics.SendFailuresTotal.Inc()
		r.evict(conn.ID, "stream send failure")
		return false
	}
	metrics.StreamChunksTotal.WithLabelValues(string(ct)).Inc()
	return true
}
