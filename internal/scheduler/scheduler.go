// Package scheduler implements the discrete-event simulation loop that
// steps a dependency graph of NETWORK and CPU nodes to completion: it
// admits ready nodes subject to global and per-connection concurrency
// limits, partitions throughput across in-flight NETWORK nodes, advances a
// simulated clock to the next completion, and fans completions out to
// dependents — until both the ready set and the in-flight set are empty.
//
// The loop is single-threaded, synchronous, and deterministic: no
// goroutines, no channels, no wall-clock reads. Every set (ready, in-flight,
// connections-in-use) is iterated in insertion order so replays of the same
// graph and config are bit-identical.
package scheduler

import (
	"errors"
	"fmt"
	"math"

	"github.com/pwwpche/lighthouse/internal/graph"
	"github.com/pwwpche/lighthouse/internal/tcpmodel"
)

// ErrUnsupportedNodeKind is returned when the graph contains a node whose
// Kind this scheduler does not know how to progress.
var ErrUnsupportedNodeKind = errors.New("scheduler: unsupported node kind")

// ErrSimulationDivergence is returned when the main loop exceeds
// maxIterations without draining the ready and in-flight sets. A cycle in
// the graph does not trigger it: nodes on a cycle never become ready, so
// they are left unscheduled and the loop drains normally.
var ErrSimulationDivergence = errors.New("scheduler: maximum depth exceeded")

const maxIterations = 10_000

// Options configures the simulated network conditions and browser policy.
// Every field has a documented default via DefaultOptions.
type Options struct {
	RTT                       float64
	Throughput                float64
	DefaultResponseTime       float64
	MaximumConcurrentRequests int
}

// DefaultOptions returns the baseline simulated network conditions.
func DefaultOptions() Options {
	return Options{
		RTT:                       150,
		Throughput:                1_638_400,
		DefaultResponseTime:       30,
		MaximumConcurrentRequests: 10,
	}
}

// NodeTiming records the simulated start and end clock values, in ms, at
// which a node transitioned into and out of the in-flight state.
type NodeTiming struct {
	Start float64
	End   float64
}

// Result is the outcome of a full simulation run.
type Result struct {
	TotalElapsedTime float64
	Timings          map[*graph.Node]NodeTiming
}

// connection is the subset of tcpmodel.Connection's API the main loop
// needs. CPU nodes are simulated against a stateless implementation of
// this interface instead of a real tcpmodel.Connection.
type connection interface {
	DownloadTime(bytesToDownload, timeAlreadyElapsed, maximumTimeToElapse float64) tcpmodel.DownloadResult
	SetCongestionWindow(segments float64)
	SetWarmed(warmed bool)
}

// cpuTask is a degenerate, stateless connection: it consumes its remaining
// duration at a flat rate with no handshake, no congestion window, and
// nothing to warm. A single shared instance backs every CPU node since
// there is no per-connection state to keep distinct.
type cpuTask struct{}

func (cpuTask) DownloadTime(remaining, timeAlreadyElapsed, maximumTimeToElapse float64) tcpmodel.DownloadResult {
	elapsed := remaining
	if !math.IsInf(maximumTimeToElapse, 1) && elapsed > maximumTimeToElapse {
		elapsed = maximumTimeToElapse
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return tcpmodel.DownloadResult{TimeElapsed: elapsed, BytesDownloaded: elapsed}
}

func (cpuTask) SetCongestionWindow(float64) {}
func (cpuTask) SetWarmed(bool)              {}

var sharedCPUTask connection = cpuTask{}

// nodeAux is the scheduler-owned, per-node auxiliary state tracked while a
// node is in-flight. It is discarded once the node completes.
type nodeAux struct {
	startTime            float64
	timeElapsed          float64 // download-phase time committed so far
	overshoot            float64 // ms of transfer credited beyond a prior step, a debt paid before new progress counts
	bytesDownloaded      float64
	estimatedTimeElapsed float64
}

func nodeSize(n *graph.Node) float64 {
	if n.Kind == graph.NetworkNode {
		return n.Record.TransferSize
	}
	return n.CPUTime
}

// Simulate runs the discrete-event loop over g and returns the predicted
// total elapsed time plus per-node start/end timings.
func Simulate(g graph.Graph, opts Options) (Result, error) {
	connections, err := buildConnections(g, opts)
	if err != nil {
		return Result{}, err
	}

	maximumConcurrentRequests := opts.MaximumConcurrentRequests
	if cap := tcpmodel.MaximumSaturatedConnections(opts.RTT, opts.Throughput); cap < maximumConcurrentRequests {
		maximumConcurrentRequests = cap
	}

	var (
		ready            []*graph.Node
		inProcess        []*graph.Node
		completed        = make(map[*graph.Node]bool)
		connectionsInUse []string
		inUse            = make(map[string]bool)
		aux              = make(map[*graph.Node]*nodeAux)
		enqueued         = make(map[*graph.Node]bool)
		clock            float64
		timings          = make(map[*graph.Node]NodeTiming)
	)

	root := g.RootNode()
	if root == nil {
		return Result{TotalElapsedTime: 0, Timings: timings}, nil
	}
	ready = append(ready, root)
	enqueued[root] = true

	connFor := func(n *graph.Node) connection {
		if n.Kind == graph.NetworkNode {
			return connections[n.Record.ConnectionID]
		}
		return sharedCPUTask
	}

	iterations := 0
	for len(ready) > 0 || len(inProcess) > 0 {
		iterations++
		if iterations > maxIterations {
			return Result{}, ErrSimulationDivergence
		}

		// 1. Admit.
		var stillReady []*graph.Node
		for _, n := range ready {
			switch n.Kind {
			case graph.CPUNode:
				// Admitted without any concurrency or connection check.
			case graph.NetworkNode:
				if len(inProcess) >= maximumConcurrentRequests {
					stillReady = append(stillReady, n)
					continue
				}
				if inUse[n.Record.ConnectionID] {
					stillReady = append(stillReady, n)
					continue
				}
				connectionsInUse = append(connectionsInUse, n.Record.ConnectionID)
				inUse[n.Record.ConnectionID] = true
			default:
				return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedNodeKind, n.Kind)
			}
			inProcess = append(inProcess, n)
			aux[n] = &nodeAux{startTime: clock}
		}
		ready = stillReady

		// 2. Rebalance: equal-share throughput partition across in-flight
		// NETWORK nodes only — CPU nodes never contend for throughput.
		networkInFlight := 0
		for _, n := range inProcess {
			if n.Kind == graph.NetworkNode {
				networkInFlight++
			}
		}
		if networkInFlight > 0 {
			for _, cid := range connectionsInUse {
				connections[cid].SetThroughput(opts.Throughput / float64(networkInFlight))
			}
		}

		if len(inProcess) == 0 {
			continue
		}

		// 3. Find next completion: query every in-flight node with no deadline.
		for _, n := range inProcess {
			a := aux[n]
			res := connFor(n).DownloadTime(nodeSize(n)-a.bytesDownloaded, a.timeElapsed, math.Inf(1))
			a.estimatedTimeElapsed = res.TimeElapsed + a.overshoot
		}

		delta := math.Inf(1)
		for _, n := range inProcess {
			if e := aux[n].estimatedTimeElapsed; e < delta {
				delta = e
			}
		}

		// 4. Advance the clock and re-query every in-flight node with a
		// deadline, committing progress or completing finishers.
		clock += delta
		var stillInProcess []*graph.Node
		for _, n := range inProcess {
			a := aux[n]
			conn := connFor(n)
			res := conn.DownloadTime(nodeSize(n)-a.bytesDownloaded, a.timeElapsed, delta-a.overshoot)
			conn.SetCongestionWindow(res.CongestionWindow)

			if a.estimatedTimeElapsed == delta {
				conn.SetWarmed(true)
				if n.Kind == graph.NetworkNode {
					inUse[n.Record.ConnectionID] = false
					connectionsInUse = removeString(connectionsInUse, n.Record.ConnectionID)
				}
				completed[n] = true
				timings[n] = NodeTiming{Start: a.startTime, End: clock}
				delete(aux, n)

				for _, dependent := range n.Dependents() {
					if enqueued[dependent] {
						continue
					}
					if allDependenciesCompleted(dependent, completed) {
						ready = append(ready, dependent)
						enqueued[dependent] = true
					}
				}
				continue
			}

			a.timeElapsed += res.TimeElapsed
			a.overshoot += res.TimeElapsed - delta
			a.bytesDownloaded += res.BytesDownloaded
			stillInProcess = append(stillInProcess, n)
		}
		inProcess = stillInProcess
	}

	return Result{TotalElapsedTime: clock, Timings: timings}, nil
}

func allDependenciesCompleted(n *graph.Node, completed map[*graph.Node]bool) bool {
	for _, dep := range n.Dependencies() {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// buildConnections groups every NETWORK node reachable from the root by
// connection ID and constructs one tcpmodel.Connection per group.
func buildConnections(g graph.Graph, opts Options) (map[string]*tcpmodel.Connection, error) {
	type group struct {
		ssl             bool
		sslSet          bool
		minResponseTime float64
		hasResponseTime bool
	}
	groups := make(map[string]*group)
	var order []string

	var walkErr error
	g.Traverse(func(n *graph.Node) {
		if n.Kind != graph.NetworkNode {
			return
		}
		if n.Record == nil {
			walkErr = fmt.Errorf("%w: network node %q has no record", ErrUnsupportedNodeKind, n.ID)
			return
		}
		cid := n.Record.ConnectionID
		grp, ok := groups[cid]
		if !ok {
			grp = &group{}
			groups[cid] = grp
			order = append(order, cid)
		}
		if !grp.sslSet {
			grp.ssl = n.Record.SSL
			grp.sslSet = true
		}
		if n.Record.ResponseTime != nil {
			if !grp.hasResponseTime || *n.Record.ResponseTime < grp.minResponseTime {
				grp.minResponseTime = *n.Record.ResponseTime
				grp.hasResponseTime = true
			}
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}

	connections := make(map[string]*tcpmodel.Connection, len(order))
	for _, cid := range order {
		grp := groups[cid]
		responseTime := opts.DefaultResponseTime
		if grp.hasResponseTime {
			responseTime = grp.minResponseTime
		}
		connections[cid] = tcpmodel.NewConnection(opts.RTT, opts.Throughput, responseTime, grp.ssl)
	}
	return connections, nil
}
