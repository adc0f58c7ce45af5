package graph

import (
	"sort"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
)

// View is a read-only gonum graph over the store. It is only valid inside
// the callback passed to Store.Read, which holds the read lock for the
// whole traversal so that results reflect the edge set at one instant.
type View struct {
	s *Store
}

var _ gograph.Directed = (*View)(nil)

// Read runs fn against a consistent view of the graph. fn must not mutate
// the store.
func (s *Store) Read(fn func(v *View)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&View{s: s})
}

// Node implements gonum's graph.Graph
func (v *View) Node(id int64) gograph.Node {
	if v.s.get(id) == nil {
		return nil
	}
	return simple.Node(id)
}

// Nodes implements gonum's graph.Graph
func (v *View) Nodes() gograph.Nodes {
	nodes := make([]gograph.Node, len(v.s.nodes))
	for i, e := range v.s.nodes {
		nodes[i] = simple.Node(e.ID)
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the distinct successors of a node, in edge order
func (v *View) From(id int64) gograph.Nodes {
	e := v.s.get(id)
	if e == nil {
		return iterator.NewOrderedNodes(nil)
	}
	return iterator.NewOrderedNodes(distinct(e.succs, func(edge Edge) int64 { return edge.To }))
}

// To returns the distinct predecessors of a node, in edge order
func (v *View) To(id int64) gograph.Nodes {
	e := v.s.get(id)
	if e == nil {
		return iterator.NewOrderedNodes(nil)
	}
	return iterator.NewOrderedNodes(distinct(e.preds, func(edge Edge) int64 { return edge.From }))
}

func distinct(edges []Edge, end func(Edge) int64) []gograph.Node {
	seen := make(map[int64]bool, len(edges))
	nodes := make([]gograph.Node, 0, len(edges))
	for _, edge := range edges {
		id := end(edge)
		if seen[id] {
			continue
		}
		seen[id] = true
		nodes = append(nodes, simple.Node(id))
	}
	return nodes
}

// HasEdgeFromTo implements gonum's graph.Directed
func (v *View) HasEdgeFromTo(uid, vid int64) bool {
	e := v.s.get(uid)
	if e == nil {
		return false
	}
	for _, edge := range e.succs {
		if edge.To == vid {
			return true
		}
	}
	return false
}

// HasEdgeBetween implements gonum's graph.Graph
func (v *View) HasEdgeBetween(xid, yid int64) bool {
	return v.HasEdgeFromTo(xid, yid) || v.HasEdgeFromTo(yid, xid)
}

// Edge implements gonum's graph.Graph. Parallel edges collapse into one.
func (v *View) Edge(uid, vid int64) gograph.Edge {
	if !v.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
}

// NodeSet is a set of node ids
type NodeSet map[int64]struct{}

// NewNodeSet creates a set holding ids
func NewNodeSet(ids ...int64) NodeSet {
	s := make(NodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was absent
func (s NodeSet) Add(id int64) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports membership
func (s NodeSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids
func (s NodeSet) Len() int {
	return len(s)
}

// Sorted returns the ids in ascending order
func (s NodeSet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
