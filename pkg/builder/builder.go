// Package builder turns normalized flow events from a front end into flow
// graph nodes, edges and operations.
package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/hierarchy"
	"github.com/SNTSVV/Extended-Gator/pkg/listener"
	"github.com/SNTSVV/Extended-Gator/pkg/logging"
	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
)

var log = logging.New("builder")

// viewContextMenu is the handler a view subclass overrides to populate its
// own context menu
const viewContextMenu = "void onCreateContextMenu(android.view.ContextMenu)"

// OpEvent is a call the front end recognized as a framework operation
type OpEvent struct {
	Kind       model.OpKind `yaml:"kind"`
	Receiver   model.Ref    `yaml:"receiver"`
	Parameter  model.Ref    `yaml:"parameter"`
	Result     model.Ref    `yaml:"result"`
	Site       model.Site   `yaml:"site"`
	Artificial bool         `yaml:"artificial"`

	// Listener registrations only
	Listener      string `yaml:"listener"`       // registration method subsignature
	ListenerClass string `yaml:"listener_class"` // concrete class for context-menu registrations
	ParameterType string `yaml:"parameter_type"` // declared type of the listener argument
}

// Stats counts consumed events
type Stats struct {
	Events        int `json:"events"`
	Edges         int `json:"edges"`
	Operations    int `json:"operations"`
	Registrations int `json:"registrations"`
	Overrides     int `json:"overrides"`
	Skipped       int `json:"skipped"`
}

// Builder feeds one graph store. Events may arrive from several goroutines.
type Builder struct {
	store      *graph.Store
	dispatcher *listener.Dispatcher
	oracle     hierarchy.Oracle
	resources  hierarchy.Resources
	metrics    *metrics.Metrics

	mu    sync.Mutex
	stats Stats

	overrideMu sync.Mutex
	overridden map[int64]bool
}

// New creates a builder. resources may be nil when no idiom helper needs
// system resource ids.
func New(store *graph.Store, dispatcher *listener.Dispatcher, oracle hierarchy.Oracle, resources hierarchy.Resources, m *metrics.Metrics) *Builder {
	return &Builder{
		store:      store,
		dispatcher: dispatcher,
		oracle:     oracle,
		resources:  resources,
		metrics:    m,
		overridden: make(map[int64]bool),
	}
}

// Store returns the graph being built
func (b *Builder) Store() *graph.Store {
	return b.store
}

// Assign records target = source
func (b *Builder) Assign(ctx context.Context, target, source model.Ref, site model.Site) error {
	return b.flow(ctx, "assign", source, target, site)
}

// CallParameterBind records the flow of an actual argument into a formal
func (b *Builder) CallParameterBind(ctx context.Context, formal, actual model.Ref, site model.Site) error {
	return b.flow(ctx, "param", actual, formal, site)
}

// CallReturnBind records the flow of a callee's return value into the
// variable receiving the call result
func (b *Builder) CallReturnBind(ctx context.Context, lhs, ret model.Ref, site model.Site) error {
	return b.flow(ctx, "return", ret, lhs, site)
}

func (b *Builder) flow(ctx context.Context, event string, src, dst model.Ref, site model.Site) error {
	b.count(func(s *Stats) { s.Events++ })

	from, err := b.intern(ctx, event, src)
	if err != nil || from == 0 {
		return err
	}
	to, err := b.intern(ctx, event, dst)
	if err != nil || to == 0 {
		return err
	}

	added, err := b.store.AddEdge(from, to, site)
	if err != nil {
		return fmt.Errorf("%s at %s: %w", event, site, err)
	}
	if added {
		b.count(func(s *Stats) { s.Edges++ })
	}
	if src.Kind != model.NodeAllocation {
		return nil
	}
	err = b.wireViewContextMenu(ctx, from, site)
	if errors.Is(err, model.ErrUnresolvedEntity) {
		b.skip(ctx, "override", err)
		return nil
	}
	return err
}

// intern resolves a reference, turning unresolved entities into a skipped
// event. A zero id with a nil error means skip.
func (b *Builder) intern(ctx context.Context, event string, r model.Ref) (int64, error) {
	id, err := b.store.Intern(r)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, model.ErrUnresolvedEntity) {
		b.skip(ctx, event, err)
		return 0, nil
	}
	return 0, err
}

func (b *Builder) skip(ctx context.Context, event string, err error) {
	b.count(func(s *Stats) { s.Skipped++ })
	b.metrics.IncUnresolved(event)
	log.Warn(ctx, "Skipping event", "event", event, "error", err)
}

// RecognizedOperation creates the operation node of a recognized call.
// Listener registrations also hand a dispatch task to the dispatcher.
func (b *Builder) RecognizedOperation(ctx context.Context, ev OpEvent) (int64, error) {
	b.count(func(s *Stats) { s.Events++ })

	spec, err := model.Spec(ev.Kind)
	if err != nil {
		return 0, &model.ContractViolation{Kind: ev.Kind, Reason: err.Error()}
	}

	var in graph.Operands
	for _, slot := range []struct {
		role model.Role
		ref  model.Ref
		id   *int64
	}{
		{model.RoleReceiver, ev.Receiver, &in.Receiver},
		{model.RoleParameter, ev.Parameter, &in.Parameter},
		{model.RoleResult, ev.Result, &in.Result},
	} {
		if slot.ref.IsZero() {
			continue
		}
		id, err := b.intern(ctx, string(ev.Kind), slot.ref)
		if err != nil {
			return 0, err
		}
		if id == 0 {
			if spec.Has(slot.role) && slot.role != model.RoleResult {
				// The operation cannot exist without this operand
				return 0, nil
			}
			continue
		}
		*slot.id = id
	}

	var opts []graph.OpOption
	if ev.Artificial {
		opts = append(opts, graph.Artificial())
	}
	var reg *listener.Registration
	if spec.Listener {
		r, ok := b.dispatcher.Resolver().Spec().ByMethod(ev.Listener)
		if !ok {
			b.skip(ctx, string(ev.Kind), &model.UnresolvedEntityError{Entity: "listener registration", Detail: ev.Listener})
			return 0, nil
		}
		reg = r
		opts = append(opts, graph.RegistersListener(reg.Interface))
		if reg.ContextMenu {
			opts = append(opts, graph.ContextMenu())
		}
	}

	op, err := b.store.CreateOperation(ev.Kind, in, ev.Site, opts...)
	if err != nil {
		return 0, fmt.Errorf("%s at %s: %w", ev.Kind, ev.Site, err)
	}
	b.count(func(s *Stats) { s.Operations++ })
	log.Trace(ctx, "Created operation", "op", op, "kind", ev.Kind, "site", ev.Site)

	if reg == nil {
		return op, nil
	}
	task := listener.DispatchTask{
		ListenerClass: reg.Interface,
		ParameterType: ev.ParameterType,
		Listener:      in.Parameter,
		View:          in.Receiver,
		Op:            op,
		Site:          ev.Site,
		Caller:        declaringClass(ev.Site.Method),
		ContextMenu:   reg.ContextMenu,
	}
	if reg.ContextMenu {
		task.ListenerClass = b.contextMenuClass(ev, in.Parameter)
	}
	if err := b.dispatcher.Register(ctx, task); err != nil {
		return 0, err
	}
	b.count(func(s *Stats) { s.Registrations++ })
	return op, nil
}

// contextMenuClass picks the class whose onCreateContextMenu handles a
// context-menu registration: the class named by the event, the class of a
// listener object, or the class declaring the registering method.
func (b *Builder) contextMenuClass(ev OpEvent, listenerNode int64) string {
	if ev.ListenerClass != "" {
		return ev.ListenerClass
	}
	if n, ok := b.store.Node(listenerNode); ok && n.IsObject() {
		return n.Class
	}
	return declaringClass(ev.Site.Method)
}

// declaringClass extracts the class of a canonical method name
func declaringClass(method string) string {
	if !strings.HasPrefix(method, "<") {
		return ""
	}
	class, _, ok := strings.Cut(method[1:], ":")
	if !ok {
		return ""
	}
	return class
}

// wireViewContextMenu connects a view allocation to its own
// onCreateContextMenu override, once per allocation. An allocation is only
// marked done once both edges exist, so a failed attempt is retried by the
// next flow out of it.
func (b *Builder) wireViewContextMenu(ctx context.Context, alloc int64, site model.Site) error {
	n, ok := b.store.Node(alloc)
	if !ok || (n.Object != model.ObjectView && n.Object != model.ObjectInflation) {
		return nil
	}

	b.overrideMu.Lock()
	defer b.overrideMu.Unlock()
	if b.overridden[alloc] {
		return nil
	}

	impl, ok := b.oracle.MatchForVirtualDispatch(viewContextMenu, n.Class)
	if !ok {
		b.overridden[alloc] = true
		return nil
	}
	if impl == "" {
		return &model.UnresolvedEntityError{Entity: "dispatch target", Detail: n.Class + "." + viewContextMenu}
	}
	method := model.MethodSig(impl, viewContextMenu)
	this, err := b.store.InternVariable(model.ThisLocal(method))
	if err != nil {
		return err
	}
	param, err := b.store.InternVariable(model.ParamLocal(method, 0))
	if err != nil {
		return err
	}
	menu := b.store.NewAllocation(listener.ContextMenuClass, model.ObjectContextMenu)
	for _, e := range [][2]int64{{alloc, this}, {menu, param}} {
		if _, err := b.store.AddEdge(e[0], e[1], site); err != nil {
			return err
		}
	}
	b.overridden[alloc] = true

	b.count(func(s *Stats) { s.Overrides++ })
	log.Debug(ctx, "Wired view context menu", "view", n.Label(), "handler", method)
	return nil
}

// TabPart names a child view a TabHost looks up by a system id
type TabPart string

const (
	TabWidget  TabPart = "tabs"
	TabContent TabPart = "tabcontent"
)

// TabHost models TabHost.getTabWidget and getTabContentView as find-view
// operations on the host with the system resource id of the part
func (b *Builder) TabHost(ctx context.Context, host model.Ref, part TabPart, lhs model.Ref, site model.Site) (int64, error) {
	var id int
	ok := false
	if b.resources != nil {
		id, ok = b.resources.ResourceID(string(part))
	}
	if !ok {
		b.count(func(s *Stats) { s.Events++ })
		b.skip(ctx, "tabhost", &model.UnresolvedEntityError{Entity: "resource", Detail: fmt.Sprintf("system id %q", part)})
		return 0, nil
	}
	return b.RecognizedOperation(ctx, OpEvent{
		Kind:       model.OpFindView,
		Receiver:   host,
		Parameter:  model.ResourceRef(model.ResourceWidget, id),
		Result:     lhs,
		Site:       site,
		Artificial: true,
	})
}

// BindViews declares the node a window's bound views flow into
func (b *Builder) BindViews(window, root model.Ref) error {
	w, err := b.store.Intern(window)
	if err != nil {
		return err
	}
	r, err := b.store.Intern(root)
	if err != nil {
		return err
	}
	return b.store.BindWindowRoot(w, r)
}

// WindowRoot records a root view producer of a bound window
func (b *Builder) WindowRoot(window, producer model.Ref) error {
	w, err := b.store.Intern(window)
	if err != nil {
		return err
	}
	p, err := b.store.Intern(producer)
	if err != nil {
		return err
	}
	return b.store.AddWindowRoot(w, p)
}

// Complete ends construction and resolves every deferred listener
// registration
func (b *Builder) Complete(ctx context.Context) error {
	if err := b.dispatcher.Flush(ctx); err != nil {
		return fmt.Errorf("complete graph: %w", err)
	}
	stats := b.store.Stats()
	b.metrics.SetGraph(stats.Nodes, stats.Edges, stats.Operations, stats.Windows)
	log.Info(ctx, "Graph complete", "nodes", stats.Nodes, "edges", stats.Edges,
		"operations", stats.Operations, "windows", stats.Windows)
	return nil
}

// Stats returns a copy of the event counters
func (b *Builder) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Builder) count(update func(*Stats)) {
	b.mu.Lock()
	update(&b.stats)
	b.mu.Unlock()
}
