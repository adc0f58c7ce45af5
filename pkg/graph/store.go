package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/SNTSVV/Extended-Gator/pkg/model"
)

// Node is the immutable metadata of a flow graph node.
// Edges are kept by the Store and read through Succs/Preds.
type Node struct {
	ID   int64
	Kind model.NodeKind

	// Allocations and windows
	Object model.ObjectKind
	Class  string

	// Operations
	Op          model.OpKind
	Site        model.Site
	Artificial  bool
	Listener    string // listener interface registered by the operation
	ContextMenu bool

	// Entity is the canonical source entity (model.Local, model.AllocSite, ...)
	Entity any
}

// IsOperation returns true for operation nodes
func (n Node) IsOperation() bool {
	return n.Kind == model.NodeOperation
}

// IsObject returns true for allocation and window nodes
func (n Node) IsObject() bool {
	return n.Kind.IsObject()
}

// Edge is a flow from one node to another, tagged with an optional site
type Edge struct {
	From int64
	To   int64
	Site model.Site
}

type entry struct {
	Node
	preds     []Edge
	succs     []Edge
	hasResult bool
}

// Stats summarizes the size of the graph
type Stats struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Operations int `json:"operations"`
	Windows    int `json:"windows"`
	Synthetic  int `json:"synthetic"`
}

// Store canonicalizes source entities into nodes and owns every edge.
// It is append only: nothing is ever removed. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.RWMutex

	nodes []*entry // nodes[id-1]

	vars      map[model.Local]int64
	allocs    map[string]int64
	fields    map[model.FieldRef]int64
	consts    map[model.Constant]int64
	resources map[model.ResourceID]int64
	windows   map[model.WindowRef]int64
	null      int64

	edges map[Edge]struct{}
	stats Stats

	// Window view-binding data collected during construction
	bindings map[int64]int64
	roots    map[int64][]int64
}

// NewStore creates an empty graph store
func NewStore() *Store {
	return &Store{
		vars:      make(map[model.Local]int64),
		allocs:    make(map[string]int64),
		fields:    make(map[model.FieldRef]int64),
		consts:    make(map[model.Constant]int64),
		resources: make(map[model.ResourceID]int64),
		windows:   make(map[model.WindowRef]int64),
		edges:     make(map[Edge]struct{}),
		bindings:  make(map[int64]int64),
		roots:     make(map[int64][]int64),
	}
}

// newNode appends a node to the arena. Caller holds the write lock.
func (s *Store) newNode(n Node) *entry {
	n.ID = int64(len(s.nodes) + 1)
	e := &entry{Node: n}
	s.nodes = append(s.nodes, e)
	s.stats.Nodes++
	switch n.Kind {
	case model.NodeOperation:
		s.stats.Operations++
	case model.NodeWindow:
		s.stats.Windows++
	}
	return e
}

func (s *Store) get(id int64) *entry {
	if id <= 0 || id > int64(len(s.nodes)) {
		return nil
	}
	return s.nodes[id-1]
}

// intern returns the node registered under key, creating it on first use
func intern[K comparable](s *Store, m map[K]int64, key K, n Node) int64 {
	s.mu.RLock()
	id, ok := m[key]
	s.mu.RUnlock()
	if ok {
		return id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := m[key]; ok {
		return id
	}
	e := s.newNode(n)
	m[key] = e.ID
	return e.ID
}

// InternVariable returns the node of a program value slot
func (s *Store) InternVariable(l model.Local) (int64, error) {
	if l.Method == "" || l.Name == "" {
		return 0, &model.UnresolvedEntityError{Entity: "variable", Detail: fmt.Sprintf("%+v", l)}
	}
	return intern(s, s.vars, l, Node{Kind: model.NodeVariable, Entity: l}), nil
}

// InternAllocation returns the node of an allocation site. The first
// registration of a site fixes its class and kind.
func (s *Store) InternAllocation(a model.AllocSite) (int64, error) {
	if a.Expr == "" || a.Class == "" {
		return 0, &model.UnresolvedEntityError{Entity: "allocation", Detail: fmt.Sprintf("%+v", a)}
	}
	if a.Kind == "" {
		a.Kind = model.ObjectPlain
	}
	return intern(s, s.allocs, a.Expr, Node{
		Kind:   model.NodeAllocation,
		Object: a.Kind,
		Class:  a.Class,
		Entity: a,
	}), nil
}

// NewAllocation creates a synthetic allocation node that is never
// canonicalized, e.g. the object produced by one inflation or the menu
// handed to one handler method.
func (s *Store) NewAllocation(class string, kind model.ObjectKind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Synthetic++
	a := model.AllocSite{
		Expr:  fmt.Sprintf("synthetic#%d", s.stats.Synthetic),
		Class: class,
		Kind:  kind,
	}
	return s.newNode(Node{Kind: model.NodeAllocation, Object: kind, Class: class, Entity: a}).ID
}

// InternField returns the node of a declared field
func (s *Store) InternField(f model.FieldRef) (int64, error) {
	if f.Class == "" || f.Name == "" {
		return 0, &model.UnresolvedEntityError{Entity: "field", Detail: fmt.Sprintf("%+v", f)}
	}
	return intern(s, s.fields, f, Node{Kind: model.NodeField, Entity: f}), nil
}

// InternConstant returns the node of a literal value
func (s *Store) InternConstant(c model.Constant) (int64, error) {
	switch c.Kind {
	case model.ConstantInt, model.ConstantLong:
		c.Str = ""
	case model.ConstantString:
		c.Int = 0
	default:
		return 0, &model.UnresolvedEntityError{Entity: "constant", Detail: fmt.Sprintf("%+v", c)}
	}
	return intern(s, s.consts, c, Node{Kind: model.NodeConstant, Entity: c}), nil
}

// InternResource returns the node of a resource id
func (s *Store) InternResource(r model.ResourceID) (int64, error) {
	if r.Kind == "" {
		return 0, &model.UnresolvedEntityError{Entity: "resource", Detail: fmt.Sprintf("%+v", r)}
	}
	return intern(s, s.resources, r, Node{Kind: model.NodeResource, Entity: r}), nil
}

// InternWindow returns the node of a window. Activities and fragments are
// unique per class; dialogs and tab specs per allocation site.
func (s *Store) InternWindow(w model.WindowRef) (int64, error) {
	if w.Class == "" || w.Kind.ObjectKind() == "" {
		return 0, &model.UnresolvedEntityError{Entity: "window", Detail: fmt.Sprintf("%+v", w)}
	}
	w = w.Canonical()
	return intern(s, s.windows, w, Node{
		Kind:   model.NodeWindow,
		Object: w.Kind.ObjectKind(),
		Class:  w.Class,
		Entity: w,
	}), nil
}

// Null returns the singleton null node
func (s *Store) Null() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.null == 0 {
		s.null = s.newNode(Node{Kind: model.NodeNull}).ID
	}
	return s.null
}

// Intern resolves a front-end reference to its node
func (s *Store) Intern(r model.Ref) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	switch r.Kind {
	case model.NodeVariable:
		return s.InternVariable(r.Local)
	case model.NodeAllocation:
		return s.InternAllocation(r.Alloc)
	case model.NodeField:
		return s.InternField(r.Field)
	case model.NodeConstant:
		return s.InternConstant(r.Constant)
	case model.NodeResource:
		return s.InternResource(r.Resource)
	case model.NodeWindow:
		return s.InternWindow(r.Window)
	case model.NodeNull:
		return s.Null(), nil
	}
	return 0, &model.UnresolvedEntityError{Entity: string(r.Kind), Detail: "not canonicalizable"}
}

// link appends an edge without the duplicate check. Caller holds the write lock.
func (s *Store) link(src, dst *entry, site model.Site) {
	e := Edge{From: src.ID, To: dst.ID, Site: site}
	src.succs = append(src.succs, e)
	dst.preds = append(dst.preds, e)
	s.edges[e] = struct{}{}
	s.stats.Edges++
}

// AddEdge records a flow from src to dst. Adding an existing
// (src, dst, site) triple is a no-op; the result reports whether an edge
// was added. Operation operands are fixed at creation and cannot be
// extended through AddEdge.
func (s *Store) AddEdge(src, dst int64, site model.Site) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, to := s.get(src), s.get(dst)
	if from == nil || to == nil {
		return false, fmt.Errorf("add edge %d -> %d: unknown node", src, dst)
	}
	for _, e := range []*entry{from, to} {
		if e.IsOperation() {
			return false, &model.ContractViolation{
				Op: e.ID, Kind: e.Op, Reason: "operation edges are fixed at creation",
			}
		}
	}

	if _, exists := s.edges[Edge{From: src, To: dst, Site: site}]; exists {
		return false, nil
	}
	s.link(from, to, site)
	return true, nil
}

// Node returns the metadata of a node
func (s *Store) Node(id int64) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.get(id)
	if e == nil {
		return Node{}, false
	}
	return e.Node, true
}

// Succs returns a copy of the outgoing edges of a node, in insertion order
func (s *Store) Succs(id int64) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.get(id); e != nil {
		return append([]Edge(nil), e.succs...)
	}
	return nil
}

// Preds returns a copy of the incoming edges of a node, in insertion order
func (s *Store) Preds(id int64) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.get(id); e != nil {
		return append([]Edge(nil), e.preds...)
	}
	return nil
}

// EdgesBetween returns every edge from src to dst
func (s *Store) EdgesBetween(src, dst int64) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.get(src)
	if e == nil {
		return nil
	}
	var out []Edge
	for _, edge := range e.succs {
		if edge.To == dst {
			out = append(out, edge)
		}
	}
	return out
}

// Len returns the number of nodes
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Stats returns node and edge counts
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Nodes returns a snapshot of all nodes in id order. Nodes created after
// the call are not included.
func (s *Store) Nodes() []Node {
	return s.snapshot(func(Node) bool { return true })
}

// Windows returns a snapshot of all window nodes
func (s *Store) Windows() []Node {
	return s.snapshot(func(n Node) bool { return n.Kind == model.NodeWindow })
}

// Operations returns a snapshot of all operation nodes
func (s *Store) Operations() []Node {
	return s.snapshot(Node.IsOperation)
}

// Objects returns a snapshot of all allocation and window nodes
func (s *Store) Objects() []Node {
	return s.snapshot(Node.IsObject)
}

func (s *Store) snapshot(keep func(Node) bool) []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, e := range s.nodes {
		if keep(e.Node) {
			out = append(out, e.Node)
		}
	}
	return out
}

// Binding is the view-binding data of one window
type Binding struct {
	Window    int64
	Root      int64
	Producers []int64
}

// BindWindowRoot declares the node that a window's bound views flow into
func (s *Store) BindWindowRoot(window, root int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWindow(window); err != nil {
		return err
	}
	if err := s.checkFlowNode(root, fmt.Sprintf("bind window %d: root", window)); err != nil {
		return err
	}
	s.bindings[window] = root
	return nil
}

// AddWindowRoot records a root view producer collected for a window
func (s *Store) AddWindowRoot(window, producer int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkWindow(window); err != nil {
		return err
	}
	if err := s.checkFlowNode(producer, fmt.Sprintf("window %d root: producer", window)); err != nil {
		return err
	}
	for _, p := range s.roots[window] {
		if p == producer {
			return nil
		}
	}
	s.roots[window] = append(s.roots[window], producer)
	return nil
}

func (s *Store) checkWindow(id int64) error {
	e := s.get(id)
	if e == nil || e.Kind != model.NodeWindow {
		return fmt.Errorf("node %d is not a window", id)
	}
	return nil
}

// checkFlowNode accepts nodes that may later be joined by a plain edge.
// Operations are rejected the same way AddEdge rejects them.
func (s *Store) checkFlowNode(id int64, what string) error {
	e := s.get(id)
	if e == nil {
		return fmt.Errorf("%s: unknown node %d", what, id)
	}
	if e.IsOperation() {
		return &model.ContractViolation{Op: e.ID, Kind: e.Op, Reason: what + " is an operation"}
	}
	return nil
}

// WindowBindings returns a snapshot of the bound windows in id order
func (s *Store) WindowBindings() []Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Binding, 0, len(s.bindings))
	for w, root := range s.bindings {
		out = append(out, Binding{
			Window:    w,
			Root:      root,
			Producers: append([]int64(nil), s.roots[w]...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out
}

// Label returns a short human-readable description of a node
func (s *Store) Label(id int64) string {
	n, ok := s.Node(id)
	if !ok {
		return fmt.Sprintf("?%d", id)
	}
	return n.Label()
}

// Label returns a short human-readable description of the node
func (n Node) Label() string {
	switch e := n.Entity.(type) {
	case model.Local:
		return fmt.Sprintf("%s/%s", e.Method, e.Name)
	case model.AllocSite:
		return fmt.Sprintf("new %s@%s", e.Class, e.Expr)
	case model.FieldRef:
		return fmt.Sprintf("%s.%s", e.Class, e.Name)
	case model.Constant:
		if e.Kind == model.ConstantString {
			return fmt.Sprintf("%q", e.Str)
		}
		return fmt.Sprintf("%d", e.Int)
	case model.ResourceID:
		return fmt.Sprintf("R.%s[%d]", e.Kind, e.Value)
	case model.WindowRef:
		if e.Site != "" {
			return fmt.Sprintf("%s[%s@%s]", e.Kind, e.Class, e.Site)
		}
		return fmt.Sprintf("%s[%s]", e.Kind, e.Class)
	}
	switch n.Kind {
	case model.NodeOperation:
		return fmt.Sprintf("%s#%d@%s", n.Op, n.ID, n.Site)
	case model.NodeNull:
		return "null"
	}
	return fmt.Sprintf("%s#%d", n.Kind, n.ID)
}
