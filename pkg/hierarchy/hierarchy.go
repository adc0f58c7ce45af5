// Package hierarchy answers class-hierarchy questions for the solver.
package hierarchy

import (
	"sort"
	"sync"
)

// Oracle resolves virtual dispatch over the analyzed program's classes
type Oracle interface {
	// MatchForVirtualDispatch returns the class whose implementation of the
	// method subsignature runs for a receiver of the given runtime class
	MatchForVirtualDispatch(subsig, class string) (string, bool)
	// ConcreteSubtypesOf returns every instantiable subtype of class,
	// including class itself when it is concrete
	ConcreteSubtypesOf(class string) []string
}

// Resources maps symbolic resource names to integer ids
type Resources interface {
	ResourceID(name string) (int, bool)
}

// Class describes one class or interface
type Class struct {
	Name       string   `yaml:"name" json:"name"`
	Super      string   `yaml:"super,omitempty" json:"super,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Abstract   bool     `yaml:"abstract,omitempty" json:"abstract,omitempty"`
	Interface  bool     `yaml:"interface,omitempty" json:"interface,omitempty"`
	Methods    []string `yaml:"methods,omitempty" json:"methods,omitempty"` // declared subsignatures
}

// Static is an in-memory class table implementing Oracle and Resources
type Static struct {
	classes   map[string]*Class
	methods   map[string]map[string]bool
	resources map[string]int

	mu       sync.Mutex
	subtypes map[string][]string
}

var (
	_ Oracle    = (*Static)(nil)
	_ Resources = (*Static)(nil)
)

// NewStatic builds a class table
func NewStatic(classes []Class, resources map[string]int) *Static {
	s := &Static{
		classes:   make(map[string]*Class, len(classes)),
		methods:   make(map[string]map[string]bool, len(classes)),
		resources: make(map[string]int, len(resources)),
		subtypes:  make(map[string][]string),
	}
	for i := range classes {
		c := classes[i]
		s.classes[c.Name] = &c
		m := make(map[string]bool, len(c.Methods))
		for _, sig := range c.Methods {
			m[sig] = true
		}
		s.methods[c.Name] = m
	}
	for name, id := range resources {
		s.resources[name] = id
	}
	return s
}

// Class returns the description of a class
func (s *Static) Class(name string) (Class, bool) {
	c, ok := s.classes[name]
	if !ok {
		return Class{}, false
	}
	return *c, true
}

// MatchForVirtualDispatch walks the superclass chain from class upwards
func (s *Static) MatchForVirtualDispatch(subsig, class string) (string, bool) {
	seen := make(map[string]bool)
	for c := class; c != "" && !seen[c]; {
		seen[c] = true
		if s.methods[c][subsig] {
			return c, true
		}
		info, ok := s.classes[c]
		if !ok {
			return "", false
		}
		c = info.Super
	}
	return "", false
}

// IsSubtype reports whether sub is super or extends/implements it,
// directly or transitively
func (s *Static) IsSubtype(sub, super string) bool {
	seen := make(map[string]bool)
	var visit func(c string) bool
	visit = func(c string) bool {
		if c == super {
			return true
		}
		if c == "" || seen[c] {
			return false
		}
		seen[c] = true
		info, ok := s.classes[c]
		if !ok {
			return false
		}
		if visit(info.Super) {
			return true
		}
		for _, i := range info.Interfaces {
			if visit(i) {
				return true
			}
		}
		return false
	}
	return visit(sub)
}

// ConcreteSubtypesOf returns the sorted concrete subtypes of class
func (s *Static) ConcreteSubtypesOf(class string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.subtypes[class]; ok {
		return cached
	}

	var out []string
	for name, c := range s.classes {
		if c.Abstract || c.Interface {
			continue
		}
		if s.IsSubtype(name, class) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	s.subtypes[class] = out
	return out
}

// ResourceID implements Resources
func (s *Static) ResourceID(name string) (int, bool) {
	id, ok := s.resources[name]
	return id, ok
}
