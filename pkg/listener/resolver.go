package listener

import (
	"sync"

	"github.com/SNTSVV/Extended-Gator/pkg/hierarchy"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
)

// Target is a resolved handler method for one listener class
type Target struct {
	Handler Handler
	Method  string // canonical signature of the implementation that runs
}

// Resolver answers listener-type questions through the hierarchy oracle.
// Subtype sets are cached per interface.
type Resolver struct {
	oracle hierarchy.Oracle
	spec   *Spec

	mu    sync.Mutex
	impls map[string]map[string]bool
}

// NewResolver creates a resolver over a registration table
func NewResolver(oracle hierarchy.Oracle, spec *Spec) *Resolver {
	return &Resolver{
		oracle: oracle,
		spec:   spec,
		impls:  make(map[string]map[string]bool),
	}
}

// Spec returns the registration table
func (r *Resolver) Spec() *Spec {
	return r.spec
}

func (r *Resolver) implementors(iface string) map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.impls[iface]; ok {
		return set
	}
	set := make(map[string]bool)
	for _, c := range r.oracle.ConcreteSubtypesOf(iface) {
		set[c] = true
	}
	r.impls[iface] = set
	return set
}

// Implements reports whether a concrete class implements iface
func (r *Resolver) Implements(class, iface string) bool {
	if class == "" || iface == "" {
		return false
	}
	return r.implementors(iface)[class]
}

// ConcreteSubtypesOf is the class-hierarchy fallback when no listener
// object can be found
func (r *Resolver) ConcreteSubtypesOf(class string) []string {
	return r.oracle.ConcreteSubtypesOf(class)
}

// IsListenerType reports whether a class implements any recognized
// listener interface
func (r *Resolver) IsListenerType(class string) bool {
	for _, iface := range r.spec.Interfaces() {
		if r.Implements(class, iface) {
			return true
		}
	}
	return false
}

// Targets resolves each handler of a registration against the runtime
// class of a listener. Handlers without an implementation are returned in
// unresolved.
func (r *Resolver) Targets(reg *Registration, class string) (targets []Target, unresolved []string) {
	for _, h := range reg.Handlers {
		impl, ok := r.oracle.MatchForVirtualDispatch(h.Method, class)
		if !ok {
			unresolved = append(unresolved, h.Method)
			continue
		}
		targets = append(targets, Target{Handler: h, Method: model.MethodSig(impl, h.Method)})
	}
	return targets, unresolved
}
