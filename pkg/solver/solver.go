// Package solver runs the reachability passes that decide which GUI objects
// reach which operation roles.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/SNTSVV/Extended-Gator/pkg/classify"
	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/listener"
	"github.com/SNTSVV/Extended-Gator/pkg/logging"
	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
	"github.com/SNTSVV/Extended-Gator/pkg/reach"
)

var (
	log    = logging.New("solver")
	tracer = otel.Tracer("github.com/SNTSVV/Extended-Gator/pkg/solver")
)

// Options configures a solve
type Options struct {
	// Workers bounds the goroutines computing closures. Results do not
	// depend on it.
	Workers int
}

// Solver computes a Solution over a fully constructed graph
type Solver struct {
	store      *graph.Store
	engine     *reach.Engine
	dispatcher *listener.Dispatcher
	rules      *classify.Rules
	opts       Options
	metrics    *metrics.Metrics
}

// New creates a solver. Listener registrations queued on the dispatcher
// during construction should be flushed before Solve.
func New(store *graph.Store, dispatcher *listener.Dispatcher, rules *classify.Rules, opts Options, m *metrics.Metrics) *Solver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Solver{
		store:      store,
		engine:     reach.New(store, reach.WithMetrics(m)),
		dispatcher: dispatcher,
		rules:      rules,
		opts:       opts,
		metrics:    m,
	}
}

// Solve runs every pass and returns the frozen solution. A contract
// violation, a strict classification violation or a cancelled context
// aborts the solve.
func (s *Solver) Solve(ctx context.Context) (*Solution, error) {
	ctx, span := tracer.Start(ctx, "Solver.Solve")
	defer span.End()

	st := newState()
	var cache *reach.Cache

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"prewire", s.prewire},
		{"producers", func(ctx context.Context) error {
			// Passes 2 to 4 only record; the graph does not grow until
			// finalize, so one cache serves all of them.
			cache = s.engine.NewCache()
			return s.producerPass(ctx, cache, st)
		}},
		{"windows", func(ctx context.Context) error { return s.windowPass(ctx, cache, st) }},
		{"listener-objects", func(ctx context.Context) error { return s.listenerObjectPass(ctx, cache, st) }},
		{"finalize", func(ctx context.Context) error { return s.finalize(ctx, st) }},
	}

	for i, p := range phases {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
		if err := s.runPhase(ctx, i+1, len(phases), p.name, p.run); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	sol := st.freeze()
	for name, n := range sol.Counts() {
		s.metrics.SetBindings(name, n)
		span.SetAttributes(attribute.Int(name, n))
	}
	stats := s.store.Stats()
	s.metrics.SetGraph(stats.Nodes, stats.Edges, stats.Operations, stats.Windows)
	if cache != nil {
		log.Debug(ctx, "Closure cache", "closures", cache.Len(), "hits", cache.Hits())
	}
	return sol, nil
}

func (s *Solver) runPhase(ctx context.Context, n, total int, name string, run func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "Solver."+name)
	defer span.End()

	start := time.Now()
	log.Info(ctx, fmt.Sprintf("[%d/%d] Running %s pass", n, total, name))
	err := run(ctx)
	elapsed := time.Since(start)
	s.metrics.ObservePhase(name, elapsed)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s pass: %w", name, err)
	}
	log.Debug(ctx, fmt.Sprintf("[%d/%d] Finished %s pass", n, total, name), "elapsed", elapsed)
	return nil
}

// prewire links the root view producers of each view-bound window to the
// window's binding root
func (s *Solver) prewire(ctx context.Context) error {
	added := 0
	for _, b := range s.store.WindowBindings() {
		for _, p := range b.Producers {
			ok, err := s.store.AddEdge(p, b.Root, model.Site{})
			if err != nil {
				return fmt.Errorf("window %d: %w", b.Window, err)
			}
			if ok {
				added++
			}
		}
	}
	log.Debug(ctx, "Pre-wired bound windows", "edges", added)
	return nil
}

// producers returns the GUI object producers in id order
func (s *Solver) producers() []graph.Node {
	var out []graph.Node
	for _, n := range s.store.Nodes() {
		switch {
		case n.Kind == model.NodeAllocation && n.Object.IsProducer():
			out = append(out, n)
		case n.IsOperation() && n.Op.IsProducer():
			out = append(out, n)
		}
	}
	return out
}

func ids(nodes []graph.Node) []int64 {
	out := make([]int64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

// operations returns the operation nodes of a closure in id order
func (s *Solver) operations(closure graph.NodeSet) []graph.Node {
	var out []graph.Node
	for _, id := range closure.Sorted() {
		if n, ok := s.store.Node(id); ok && n.IsOperation() {
			out = append(out, n)
		}
	}
	return out
}

func (s *Solver) producerPass(ctx context.Context, cache *reach.Cache, st *state) error {
	producers := s.producers()
	if err := cache.Precompute(ctx, ids(producers), s.opts.Workers); err != nil {
		return err
	}
	log.Debug(ctx, "Computed producer closures", "producers", len(producers))

	for _, p := range producers {
		closure := cache.Reachable(p.ID)
		for _, op := range s.operations(closure) {
			if err := s.producerReaches(ctx, st, p, closure, op); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Solver) producerReaches(ctx context.Context, st *state, p graph.Node, closure graph.NodeSet, op graph.Node) error {
	spec := model.MustSpec(op.Op)

	if spec.Listener {
		l, err := s.store.Operand(op.ID, model.RoleParameter)
		if err != nil {
			return err
		}
		if reach.FlowsInto(closure, p.ID, l) {
			st.reachingListeners.add(op.ID, p.ID)
			if p.IsOperation() {
				st.reachedListeners.add(p.ID, op.ID)
			}
		}
	} else if spec.Has(model.RoleParameter) {
		err := s.record(ctx, p, closure, op, model.RoleParameter,
			st.reachingParameterViews, st.reachedParameterViews, st.solutionParameters)
		if err != nil {
			return err
		}
	}

	if !spec.Has(model.RoleReceiver) || (spec.Scope != model.ScopeView && spec.Scope != model.ScopeMenu) {
		return nil
	}
	if p.Object.IsMenu() && op.Op == model.OpSetID {
		return nil
	}
	return s.record(ctx, p, closure, op, model.RoleReceiver,
		st.reachingReceiverViews, st.reachedReceiverViews, st.solutionReceivers)
}

// record files a producer that flows into one role of an operation.
// Operation producers are mirrored into reached; object producers are
// classified and, when accepted, enter solution.
func (s *Solver) record(ctx context.Context, p graph.Node, closure graph.NodeSet, op graph.Node, role model.Role, reaching, reached, solution relation) error {
	operand, err := s.store.Operand(op.ID, role)
	if err != nil {
		return err
	}
	if !reach.FlowsInto(closure, p.ID, operand) {
		return nil
	}

	reaching.add(op.ID, p.ID)
	if p.IsOperation() {
		reached.add(p.ID, op.ID)
		return nil
	}

	ok, err := s.rules.IsValidFlow(ctx, p.Object, op.Op, role)
	if err != nil {
		var cv *model.ClassificationViolation
		if errors.As(err, &cv) {
			cv.Producer = p.ID
			cv.Operation = op.ID
		}
		return err
	}
	if ok {
		solution.add(op.ID, p.ID)
	}
	return nil
}

func (s *Solver) windowPass(ctx context.Context, cache *reach.Cache, st *state) error {
	windows := s.store.Windows()
	if err := cache.Precompute(ctx, ids(windows), s.opts.Workers); err != nil {
		return err
	}

	resolver := s.dispatcher.Resolver()
	for _, w := range windows {
		closure := cache.Reachable(w.ID)
		for _, op := range s.operations(closure) {
			spec := model.MustSpec(op.Op)
			switch {
			case spec.Scope == model.ScopeWindow && spec.Has(model.RoleReceiver):
				recv, err := s.store.Operand(op.ID, model.RoleReceiver)
				if err != nil {
					return err
				}
				v, known := s.rules.Lookup(w.Object, op.Op, model.RoleReceiver)
				if reach.FlowsInto(closure, w.ID, recv) && known && v == classify.Accept {
					st.reachingWindows.add(op.ID, w.ID)
					continue
				}
				log.Trace(ctx, "Window reaches operation outside its receiver", "window", w.Label(), "op", op.Label())

			case spec.Listener:
				st.reachingListeners.add(op.ID, w.ID)
				if resolver.Implements(w.Class, op.Listener) {
					st.solutionListeners.add(op.ID, w.ID)
					s.wire(st, op.ID, w.ID)
				}

			default:
				log.Trace(ctx, "Ignoring window flow", "window", w.Label(), "op", op.Label())
			}
		}
	}
	return nil
}

func (s *Solver) listenerObjectPass(ctx context.Context, cache *reach.Cache, st *state) error {
	resolver := s.dispatcher.Resolver()
	var objects []graph.Node
	for _, n := range s.store.Objects() {
		if resolver.IsListenerType(n.Class) {
			objects = append(objects, n)
		}
	}
	if err := cache.Precompute(ctx, ids(objects), s.opts.Workers); err != nil {
		return err
	}
	log.Debug(ctx, "Found listener objects", "count", len(objects))

	for _, obj := range objects {
		closure := cache.Reachable(obj.ID)
		for _, op := range s.operations(closure) {
			if !op.Op.IsListener() {
				continue
			}
			l, err := s.store.Operand(op.ID, model.RoleParameter)
			if err != nil {
				return err
			}
			if !reach.FlowsInto(closure, obj.ID, l) {
				continue
			}
			st.reachingListeners.add(op.ID, obj.ID)
			if op.Listener == "" || resolver.Implements(obj.Class, op.Listener) {
				st.solutionListeners.add(op.ID, obj.ID)
				s.wire(st, op.ID, obj.ID)
			}
		}
	}
	return nil
}

// wire queues handler wiring of a listener for every view receiving the
// registration. The dispatcher memo drops repeats.
func (s *Solver) wire(st *state, op, listener int64) {
	views := st.solutionReceivers[op].Sorted()
	if len(views) == 0 {
		s.dispatcher.Wire(op, 0, listener)
		return
	}
	for _, v := range views {
		s.dispatcher.Wire(op, v, listener)
	}
}

func (s *Solver) finalize(ctx context.Context, st *state) error {
	for _, op := range st.solutionListeners.freeze().Keys() {
		for _, l := range st.solutionListeners[op].Sorted() {
			s.wire(st, op, l)
		}
	}
	if err := s.dispatcher.Flush(ctx); err != nil {
		return err
	}

	stats := s.dispatcher.Stats()
	log.Info(ctx, "Listener handlers wired",
		"wired", stats.Wired, "memoHits", stats.MemoHits, "edges", stats.Edges)
	return nil
}
