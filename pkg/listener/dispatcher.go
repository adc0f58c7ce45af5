package listener

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/logging"
	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
	"github.com/SNTSVV/Extended-Gator/pkg/reach"
)

var (
	log    = logging.New("listener")
	tracer = otel.Tracer("github.com/SNTSVV/Extended-Gator/pkg/listener")
)

// ContextMenuClass is the class of menus handed to onCreateContextMenu
const ContextMenuClass = "android.view.ContextMenu"

// DispatchTask is the handler wiring owed to one listener registration.
// Context-menu tasks name the concrete class whose handler runs; all others
// name the registered listener interface and are resolved after the graph
// is complete.
type DispatchTask struct {
	ListenerClass string
	ParameterType string // declared type of the listener argument, if narrower
	Listener      int64
	View          int64
	Op            int64
	Site          model.Site
	Caller        string
	ContextMenu   bool
}

// wireKey identifies one confirmed (operation, view object, listener object)
// binding
type wireKey struct {
	op       int64
	view     int64
	listener int64
}

// Stats counts dispatcher work
type Stats struct {
	Immediate  int `json:"immediate"`
	Deferred   int `json:"deferred"`
	Resolved   int `json:"resolved"`
	Wired      int `json:"wired"`
	MemoHits   int `json:"memoHits"`
	Skipped    int `json:"skipped"`
	Unresolved int `json:"unresolved"`
	Edges      int `json:"edges"`
}

// Dispatcher owns the pending listener work of one graph. Registration
// tasks are queued during construction; wiring of confirmed bindings is
// queued by the solver. Flush drains both.
type Dispatcher struct {
	store    *graph.Store
	engine   *reach.Engine
	resolver *Resolver
	metrics  *metrics.Metrics

	mu      sync.Mutex
	pending []DispatchTask
	wires   []wireKey
	memo    map[wireKey]struct{}
	stats   Stats
}

// NewDispatcher creates a dispatcher. engine is used for backward queries
// from listener values to the objects that may occupy them.
func NewDispatcher(store *graph.Store, engine *reach.Engine, resolver *Resolver, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:    store,
		engine:   engine,
		resolver: resolver,
		metrics:  m,
		memo:     make(map[wireKey]struct{}),
	}
}

// Resolver returns the listener type resolver
func (d *Dispatcher) Resolver() *Resolver {
	return d.resolver
}

// Register accepts the task of a new listener registration. Context-menu
// registrations are wired immediately; all others wait for Flush.
func (d *Dispatcher) Register(ctx context.Context, task DispatchTask) error {
	if task.ContextMenu {
		d.mu.Lock()
		d.stats.Immediate++
		d.mu.Unlock()
		return d.resolveContextMenu(ctx, task)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, task)
	d.stats.Deferred++
	return nil
}

// Wire queues handler wiring for a confirmed listener binding. The
// (operation, view, listener) triple is checked and recorded before any
// edge is added, so a binding discovered along several paths is wired at
// most once. view may be 0 when the registration has no known receiver.
func (d *Dispatcher) Wire(op, view, listener int64) bool {
	opNode, ok := d.store.Node(op)
	if !ok || !opNode.IsOperation() || !opNode.Op.IsListener() || opNode.ContextMenu {
		d.count(func(s *Stats) { s.Skipped++ }, "skipped")
		return false
	}
	if viewNode, ok := d.store.Node(view); ok && viewNode.Object == model.ObjectContextMenu {
		d.count(func(s *Stats) { s.Skipped++ }, "skipped")
		return false
	}

	key := wireKey{op: op, view: view, listener: listener}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, done := d.memo[key]; done {
		d.stats.MemoHits++
		d.metrics.IncWiring("memo_hit")
		return false
	}
	d.memo[key] = struct{}{}
	d.wires = append(d.wires, key)
	return true
}

func (d *Dispatcher) count(update func(*Stats), outcome string) {
	d.mu.Lock()
	update(&d.stats)
	d.mu.Unlock()
	d.metrics.IncWiring(outcome)
}

// Pending returns the number of queued registration and wiring tasks
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) + len(d.wires)
}

// Stats returns a copy of the work counters
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Flush drains the queues to a fixed point. Resolving a task may queue
// more work; the loop ends once a round finds both queues empty. A drained
// dispatcher flushes as a no-op.
func (d *Dispatcher) Flush(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Dispatcher.Flush")
	defer span.End()

	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return err
		}

		d.mu.Lock()
		pending, wires := d.pending, d.wires
		d.pending, d.wires = nil, nil
		d.mu.Unlock()

		if len(pending) == 0 && len(wires) == 0 {
			break
		}
		rounds++
		log.Debug(ctx, "Flushing listener work", "round", rounds, "registrations", len(pending), "wirings", len(wires))

		for _, task := range pending {
			if err := d.resolveDeferred(ctx, task); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
		}
		for _, w := range wires {
			if err := d.wire(ctx, w); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
		}
	}

	stats := d.Stats()
	span.SetAttributes(
		attribute.Int("rounds", rounds),
		attribute.Int("resolved", stats.Resolved),
		attribute.Int("wired", stats.Wired),
		attribute.Int("edges", stats.Edges),
	)
	return nil
}

// resolveContextMenu wires a context-menu registration: the handler is
// fixed by the registering class, and each handler receives a fresh menu
func (d *Dispatcher) resolveContextMenu(ctx context.Context, task DispatchTask) error {
	reg, err := d.registration(task.Op)
	if err != nil {
		return err
	}

	targets, unresolved := d.resolver.Targets(reg, task.ListenerClass)
	d.unresolved(ctx, task.ListenerClass, unresolved)
	for _, t := range targets {
		if err := d.connect(t.Method, task.Listener, task.View, t.Handler, task.Site); err != nil {
			return err
		}
		if i, ok := t.Handler.MenuParam(); ok {
			menu := d.store.NewAllocation(ContextMenuClass, model.ObjectContextMenu)
			if err := d.edgeToLocal(menu, model.ParamLocal(t.Method, i), task.Site); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveDeferred wires a registration once the graph is complete. The
// runtime types of the listener are the classes of objects flowing into
// the listener value; without any, every concrete implementor is assumed.
func (d *Dispatcher) resolveDeferred(ctx context.Context, task DispatchTask) error {
	reg, err := d.registration(task.Op)
	if err != nil {
		return err
	}

	iface := task.ListenerClass
	if iface == "" {
		iface = reg.Interface
	}
	bound := task.ParameterType
	if bound == "" {
		bound = iface
	}

	classes := d.listenerClasses(task.Listener, iface, bound)
	if len(classes) == 0 {
		for _, c := range d.resolver.ConcreteSubtypesOf(bound) {
			if d.resolver.Implements(c, iface) {
				classes = append(classes, c)
			}
		}
	}
	if len(classes) == 0 {
		d.unresolved(ctx, iface, []string{"no implementing class"})
		return nil
	}

	for _, class := range classes {
		targets, unresolved := d.resolver.Targets(reg, class)
		d.unresolved(ctx, class, unresolved)
		for _, t := range targets {
			if err := d.connect(t.Method, task.Listener, task.View, t.Handler, task.Site); err != nil {
				return err
			}
		}
	}

	d.mu.Lock()
	d.stats.Resolved++
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) listenerClasses(listener int64, iface, bound string) []string {
	if listener == 0 {
		return nil
	}
	seen := make(map[string]bool)
	for id := range d.engine.BackwardReachable(listener) {
		n, ok := d.store.Node(id)
		if !ok || !n.IsObject() || seen[n.Class] {
			continue
		}
		if d.resolver.Implements(n.Class, iface) && d.resolver.Implements(n.Class, bound) {
			seen[n.Class] = true
		}
	}
	if n, ok := d.store.Node(listener); ok && n.IsObject() && d.resolver.Implements(n.Class, iface) {
		seen[n.Class] = true
	}

	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// wire links a confirmed listener object and view object into the handlers
// of the listener's class
func (d *Dispatcher) wire(ctx context.Context, w wireKey) error {
	reg, err := d.registration(w.op)
	if err != nil {
		return err
	}
	listener, ok := d.store.Node(w.listener)
	if !ok {
		return fmt.Errorf("wire op %d: unknown listener node %d", w.op, w.listener)
	}
	site := model.Site{}
	if op, ok := d.store.Node(w.op); ok {
		site = op.Site
	}

	targets, unresolved := d.resolver.Targets(reg, listener.Class)
	d.unresolved(ctx, listener.Class, unresolved)
	for _, t := range targets {
		if err := d.connect(t.Method, w.listener, w.view, t.Handler, site); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.stats.Wired++
	d.mu.Unlock()
	d.metrics.IncWiring("wired")
	return nil
}

// connect adds listener -> this and view -> view parameter edges for one
// handler implementation
func (d *Dispatcher) connect(method string, listener, view int64, h Handler, site model.Site) error {
	if listener != 0 {
		if err := d.edgeToLocal(listener, model.ThisLocal(method), site); err != nil {
			return err
		}
	}
	if i, ok := h.ViewParam(); ok && view != 0 {
		if err := d.edgeToLocal(view, model.ParamLocal(method, i), site); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) edgeToLocal(src int64, local model.Local, site model.Site) error {
	dst, err := d.store.InternVariable(local)
	if err != nil {
		return err
	}
	added, err := d.store.AddEdge(src, dst, site)
	if err != nil {
		return fmt.Errorf("wire %s: %w", local.Method, err)
	}
	if added {
		d.mu.Lock()
		d.stats.Edges++
		d.mu.Unlock()
	}
	return nil
}

func (d *Dispatcher) registration(op int64) (*Registration, error) {
	n, ok := d.store.Node(op)
	if !ok || !n.IsOperation() {
		return nil, &model.ContractViolation{Op: op, Reason: "listener task without an operation"}
	}
	reg, ok := d.resolver.Spec().ByInterface(n.Listener)
	if !ok {
		return nil, &model.ContractViolation{Op: op, Kind: n.Op, Reason: fmt.Sprintf("unknown listener interface %q", n.Listener)}
	}
	return reg, nil
}

func (d *Dispatcher) unresolved(ctx context.Context, class string, methods []string) {
	if len(methods) == 0 {
		return
	}
	d.mu.Lock()
	d.stats.Unresolved += len(methods)
	d.mu.Unlock()
	d.metrics.IncUnresolved("dispatch_target")
	log.Warn(ctx, "Skipping unresolved handler", "class", class, "methods", methods)
}
