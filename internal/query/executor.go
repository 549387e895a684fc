// Package query defines the QueryExecutor collaborator the gateway drives
// for query_intelligence requests, plus a built-in executor used by the
// demo binary and tests. The knowledge-graph engine itself lives outside
// this repository; results are opaque to the gateway.
package query

import (
	"context"

	"github.com/marcus-qen/synapse/internal/protocol"
)

// ProgressFunc receives intermediate progress payloads as the executor
// works. Implementations may call it zero or more times before returning.
type ProgressFunc func(update any)

// Executor runs one intelligence query. It may be slow; it must respect
// ctx cancellation and return promptly once the owning connection is
// gone. The returned result is sent verbatim in the completion chunk.
type Executor interface {
	Execute(ctx context.Context, q protocol.IntelligenceQuery, progress ProgressFunc) (any, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, q protocol.IntelligenceQuery, progress ProgressFunc) (any, error)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, q protocol.IntelligenceQuery, progress ProgressFunc) (any, error) {
	return f(ctx, q, progress)
}
