// Package estimator is the public façade over the simulation: it wires
// internal/graph, internal/scheduler, and internal/config behind a single
// callable entry point so a caller never needs to know the scheduler exists.
package estimator

import (
	"context"
	"fmt"

	"github.com/pwwpche/lighthouse/internal/config"
	"github.com/pwwpche/lighthouse/internal/ctxlog"
	"github.com/pwwpche/lighthouse/internal/graph"
	"github.com/pwwpche/lighthouse/internal/scheduler"
)

// NodeTiming records the simulated start and end clock values, in
// milliseconds, at which a node entered and left the in-flight state.
type NodeTiming struct {
	Start float64
	End   float64
}

// Result is the outcome of estimating a page load.
type Result struct {
	// TotalElapsedTime is the predicted page load time, in milliseconds.
	TotalElapsedTime float64
	// NodeTimings is keyed by Node.ID rather than by pointer so callers
	// outside this module can inspect it without holding onto graph
	// internals.
	NodeTimings map[string]NodeTiming
}

// Estimate runs the discrete-event simulation over g under opts and returns
// the predicted page load time. The context carries only a logger and a
// cancellation signal, checked once before the simulation starts; the
// simulation itself takes no context and is synchronous and deterministic.
func Estimate(ctx context.Context, g graph.Graph, opts config.Options) (Result, error) {
	logger := ctxlog.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("estimator: %w", err)
	}

	logger.Debug("starting estimation",
		"rtt", opts.RTT,
		"throughput", opts.Throughput,
		"maximum_concurrent_requests", opts.MaximumConcurrentRequests,
	)

	simResult, err := scheduler.Simulate(g, opts)
	if err != nil {
		return Result{}, fmt.Errorf("estimator: %w", err)
	}

	timings := make(map[string]NodeTiming, len(simResult.Timings))
	for node, timing := range simResult.Timings {
		timings[node.ID] = NodeTiming{Start: timing.Start, End: timing.End}
	}

	logger.Info("estimation complete",
		"total_elapsed_ms", simResult.TotalElapsedTime,
		"nodes_scheduled", len(timings),
	)

	return Result{
		TotalElapsedTime: simResult.TotalElapsedTime,
		NodeTimings:      timings,
	}, nil
}
