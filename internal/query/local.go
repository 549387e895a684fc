package query

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus-qen/synapse/internal/protocol"
)

const defaultMaxResults = 10

// LocalExecutor is a self-contained executor that synthesizes analysis
// results. It stands in for the real knowledge-graph engine in the demo
// binary and in tests, and exercises the full streaming contract:
// progress reporting, cancellation, and slow completion.
type LocalExecutor struct {
	// StepDelay is the pause between progress steps. Zero means no delay.
	StepDelay time.Duration
	// Steps is the number of progress updates to emit (default 3).
	Steps int
}

// Execute walks a fixed number of analysis stages, reporting progress for
// each, then returns a synthesized result.
func (e *LocalExecutor) Execute(ctx context.Context, q protocol.IntelligenceQuery, progress ProgressFunc) (any, error) {
	steps := e.Steps
	if steps <= 0 {
		steps = 3
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	for i := 1; i <= steps; i++ {
		if err := e.pause(ctx); err != nil {
			return nil, err
		}
		if progress != nil {
			progress(map[string]any{
				"stage":   fmt.Sprintf("analysis_pass_%d", i),
				"percent": float64(i) / float64(steps+1) * 100,
			})
		}
	}

	if err := e.pause(ctx); err != nil {
		return nil, err
	}

	nodes := make([]map[string]any, 0, maxResults)
	for i := 0; i < maxResults; i++ {
		nodes = append(nodes, map[string]any{
			"node_id":   fmt.Sprintf("node-%d", i),
			"relevance": 1.0 - float64(i)/float64(maxResults),
		})
	}

	return map[string]any{
		"context":       q.Context,
		"analysis_type": q.AnalysisType,
		"include_3d":    q.Include3D,
		"nodes":         nodes,
	}, nil
}

func (e *LocalExecutor) pause(ctx context.Context) error {
	if e.StepDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.StepDelay):
		return nil
	}
}
