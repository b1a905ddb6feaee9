// Package fixture builds an in-memory graph.Graph from a small JSON
// document, standing in for the out-of-scope trace-processing collaborator
// that would otherwise turn a real browser trace into a dependency graph —
// this package lets the CLI and tests exercise the estimator without that
// collaborator existing yet.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pwwpche/lighthouse/internal/graph"
)

// document is the on-disk JSON shape: a flat list of nodes, each naming the
// IDs of the nodes it depends on.
type document struct {
	Nodes []nodeDocument `json:"nodes"`
}

type nodeDocument struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	ConnectionID string   `json:"connectionId,omitempty"`
	URL          string   `json:"url,omitempty"`
	TransferSize float64  `json:"transferSize,omitempty"`
	SSL          bool     `json:"ssl,omitempty"`
	ResponseTime *float64 `json:"responseTime,omitempty"`
	CPUTime      float64  `json:"cpuTime,omitempty"`
	DependsOn    []string `json:"dependsOn,omitempty"`
}

// Load reads a JSON graph fixture from path and builds an in-memory graph.
func Load(path string) (*graph.InMemoryGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: reading %q: %w", path, err)
	}
	return Parse(data)
}

// Parse builds an in-memory graph from a JSON document's bytes. The first
// node in the document becomes the graph's root.
func Parse(data []byte) (*graph.InMemoryGraph, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: decoding graph: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("fixture: graph document has no nodes")
	}

	g := graph.New()
	nodesByID := make(map[string]*graph.Node, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		node, err := nd.toNode()
		if err != nil {
			return nil, err
		}
		if _, exists := nodesByID[nd.ID]; exists {
			return nil, fmt.Errorf("fixture: duplicate node id %q", nd.ID)
		}
		nodesByID[nd.ID] = node
		g.AddNode(node)
	}

	for _, nd := range doc.Nodes {
		to := nodesByID[nd.ID]
		for _, depID := range nd.DependsOn {
			from, ok := nodesByID[depID]
			if !ok {
				return nil, fmt.Errorf("fixture: node %q depends on unknown node %q", nd.ID, depID)
			}
			if err := g.AddDependency(from, to); err != nil {
				return nil, fmt.Errorf("fixture: %w", err)
			}
		}
	}

	return g, nil
}

func (nd nodeDocument) toNode() (*graph.Node, error) {
	switch nd.Kind {
	case "", "network":
		if nd.ConnectionID == "" {
			return nil, fmt.Errorf("fixture: network node %q has no connectionId", nd.ID)
		}
		return &graph.Node{
			ID:   nd.ID,
			Kind: graph.NetworkNode,
			Record: &graph.Record{
				ConnectionID: nd.ConnectionID,
				URL:          nd.URL,
				TransferSize: nd.TransferSize,
				SSL:          nd.SSL,
				ResponseTime: nd.ResponseTime,
			},
		}, nil
	case "cpu":
		return &graph.Node{
			ID:      nd.ID,
			Kind:    graph.CPUNode,
			CPUTime: nd.CPUTime,
		}, nil
	default:
		return nil, fmt.Errorf("fixture: node %q has unknown kind %q", nd.ID, nd.Kind)
	}
}
