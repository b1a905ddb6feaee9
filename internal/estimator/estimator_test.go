package estimator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pwwpche/lighthouse/internal/config"
	"github.com/pwwpche/lighthouse/internal/graph"
)

func TestEstimate_SingleNodeGraph(t *testing.T) {
	g := graph.New()
	root := &graph.Node{
		ID:   "root",
		Kind: graph.NetworkNode,
		Record: &graph.Record{
			ConnectionID: "c1",
			TransferSize: 1000,
			SSL:          true,
		},
	}
	g.AddNode(root)

	result, err := Estimate(context.Background(), g, config.DefaultOptions())
	require.NoError(t, err)
	assert.Greater(t, result.TotalElapsedTime, float64(0))
	timing, ok := result.NodeTimings["root"]
	require.True(t, ok)
	assert.Equal(t, result.TotalElapsedTime, timing.End)
}

func TestEstimate_RespectsCanceledContext(t *testing.T) {
	g := graph.New()
	g.AddNode(&graph.Node{ID: "root", Kind: graph.NetworkNode, Record: &graph.Record{ConnectionID: "c1", TransferSize: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Estimate(ctx, g, config.DefaultOptions())
	assert.Error(t, err)
}

func TestEstimate_AcceptsCustomGraphImplementation(t *testing.T) {
	g := &fixedGraph{
		root: &graph.Node{ID: "only", Kind: graph.NetworkNode, Record: &graph.Record{ConnectionID: "c1", TransferSize: 1}},
	}
	result, err := Estimate(context.Background(), g, config.DefaultOptions())
	require.NoError(t, err)
	assert.Contains(t, result.NodeTimings, "only")
}

// fixedGraph is a minimal graph.Graph implementation with a single node,
// used to verify Estimate depends only on the interface, not InMemoryGraph.
type fixedGraph struct {
	root *graph.Node
}

func (f *fixedGraph) RootNode() *graph.Node { return f.root }
func (f *fixedGraph) Traverse(visit func(*graph.Node)) {
	visit(f.root)
}
func (f *fixedGraph) AllNodes() []*graph.Node { return []*graph.Node{f.root} }
