package cycles

import (
	fgraph "github.com/SNTSVV/Extended-Gator/pkg/graph"
)

// RecursiveFlow is a set of nodes that all flow into each other, such as a
// view handed back and forth between a field and a local
type RecursiveFlow struct {
	Nodes  []int64  `json:"nodes"`
	Labels []string `json:"labels"`
}

// FindRecursiveFlows finds all strongly connected components of the flow graph
func FindRecursiveFlows(s *fgraph.Store) []RecursiveFlow {
	var sccs [][]int64
	s.Read(func(v *fgraph.View) {
		sccs = NewTarjanSCC(v).FindSCCs()
	})

	flows := make([]RecursiveFlow, 0, len(sccs))
	for _, scc := range sccs {
		labels := make([]string, 0, len(scc))
		for _, id := range scc {
			labels = append(labels, s.Label(id))
		}
		flows = append(flows, RecursiveFlow{
			Nodes:  scc,
			Labels: labels,
		})
	}
	return flows
}
