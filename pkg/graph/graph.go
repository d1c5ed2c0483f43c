// Package graph converts a workflow's trigger and steps into the external
// engine's node/connection representation.
package graph

// Node is one typed, positioned, parameterized node in an engine graph.
type Node struct {
	Parameters  map[string]any `json:"parameters"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion float64        `json:"typeVersion"`
	Position    [2]int         `json:"position"`
}

// Connection is one edge endpoint in the engine's adjacency map.
type Connection struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// ConnectionSet groups the outgoing edges of a node. The engine indexes the
// outer slice by output port; this translator only ever uses port 0.
type ConnectionSet struct {
	Main [][]Connection `json:"main"`
}

// Graph is the engine-side workflow representation: nodes plus an adjacency
// map keyed by source node name.
type Graph struct {
	Name        string                   `json:"name"`
	Active      bool                     `json:"active"`
	Nodes       []*Node                  `json:"nodes"`
	Connections map[string]ConnectionSet `json:"connections"`
	Settings    map[string]any           `json:"settings"`
	Tags        []string                 `json:"tags,omitempty"`
}

// NodeByName returns the node with the given display name, or nil.
func (g *Graph) NodeByName(name string) *Node {
	for _, node := range g.Nodes {
		if node.Name == name {
			return node
		}
	}

	return nil
}
