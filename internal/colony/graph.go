package colony

import (
	"fmt"
	"slices"
)

// Node is a vertex of the derived visualization graph.
type Node struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Group string  `json:"group"`
	Title string  `json:"title"`
	Value float64 `json:"value"`
}

// Edge links a sponsoring agent to the agent it sponsored.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GraphData is the derived view of the roster.
type GraphData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g GraphData) clone() GraphData {
	return GraphData{Nodes: slices.Clone(g.Nodes), Edges: slices.Clone(g.Edges)}
}

// BuildGraph derives nodes and parent edges from the roster.
func BuildGraph(agents []Agent) GraphData {
	g := GraphData{
		Nodes: make([]Node, 0, len(agents)),
		Edges: []Edge{},
	}
	for _, a := range agents {
		g.Nodes = append(g.Nodes, Node{
			ID:    a.ID,
			Label: fmt.Sprintf("%s\n(%s)", a.Role, a.Type),
			Group: string(a.Type),
			Title: fmt.Sprintf("ID: %s<br>PAS: %.2f<br>Age: %d", a.ID, a.PAS, a.Age),
			Value: a.PAS*20 + 5,
		})
		if a.Parent != "" {
			g.Edges = append(g.Edges, Edge{From: a.Parent, To: a.ID})
		}
	}
	return g
}

// AveragePAS returns the mean pro-sociality score, or 0 for an empty roster.
func AveragePAS(agents []Agent) float64 {
	if len(agents) == 0 {
		return 0
	}
	var sum float64
	for _, a := range agents {
		sum += a.PAS
	}
	return sum / float64(len(agents))
}
