// Package reach computes forward and backward closures of the flow relation.
package reach

import (
	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
)

// Engine answers reachability queries over a graph store.
// Each query runs under one read lock, so a result reflects the edge set as
// it was when the query started and never changes afterwards.
type Engine struct {
	store   *graph.Store
	metrics *metrics.Metrics
}

// Option configures an Engine
type Option func(*Engine)

// WithMetrics records query counts
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates a reachability engine
func New(store *graph.Store, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reachable returns the nodes reachable from n by following one or more
// outgoing edges. Operation nodes are not special: their result edges are
// followed like any other. n itself is included only if a cycle leads back
// to it.
func (e *Engine) Reachable(n int64) graph.NodeSet {
	e.metrics.IncReachQuery("forward")
	var out graph.NodeSet
	e.store.Read(func(v *graph.View) {
		out = e.walk(v, v, n)
	})
	return out
}

// BackwardReachable returns the nodes from which n is reachable by one or
// more edges
func (e *Engine) BackwardReachable(n int64) graph.NodeSet {
	e.metrics.IncReachQuery("backward")
	var out graph.NodeSet
	e.store.Read(func(v *graph.View) {
		out = e.walk(v, reversed{v}, n)
	})
	return out
}

func (e *Engine) walk(v *graph.View, g directed, n int64) graph.NodeSet {
	out := make(graph.NodeSet)
	if v.Node(n) == nil {
		return out
	}

	bfs := traverse.BreadthFirst{
		Visit: func(node gograph.Node) {
			if id := node.ID(); id != n {
				out.Add(id)
			}
		},
	}
	bfs.Walk(g, v.Node(n), nil)

	// n is in its own closure only when some node already in the closure
	// leads back to it.
	back := g.To(n)
	for back.Next() {
		if p := back.Node().ID(); p == n || out.Has(p) {
			out.Add(n)
			break
		}
	}
	return out
}

// directed is the part of gonum's graph.Directed a walk needs
type directed interface {
	traverse.Graph
	To(id int64) gograph.Nodes
}

// reversed flips the direction of every edge of a view
type reversed struct {
	v *graph.View
}

func (r reversed) From(id int64) gograph.Nodes {
	return r.v.To(id)
}

func (r reversed) To(id int64) gograph.Nodes {
	return r.v.From(id)
}

func (r reversed) Edge(uid, vid int64) gograph.Edge {
	edge := r.v.Edge(vid, uid)
	if edge == nil {
		return nil
	}
	return edge.ReversedEdge()
}

// FlowsInto reports whether a value produced by producer occupies the slot
// bound to operand, given the producer's reachable set. The producer itself
// counts: an operation may be wired directly to a producer node, as in the
// menu items added by Menu.add.
func FlowsInto(reachable graph.NodeSet, producer, operand int64) bool {
	return operand != 0 && (operand == producer || reachable.Has(operand))
}
