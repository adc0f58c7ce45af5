// Package listener resolves listener registrations to handler methods and
// wires listener and view objects into those handlers.
package listener

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed listeners.yaml
var defaultSpec []byte

// Handler is one callback method of a listener interface
type Handler struct {
	Method string `yaml:"method"`
	View   *int   `yaml:"view"` // parameter receiving the view, if any
	Menu   *int   `yaml:"menu"` // parameter receiving a context menu, if any
}

// ViewParam returns the index of the view parameter
func (h Handler) ViewParam() (int, bool) {
	if h.View == nil || *h.View < 0 {
		return 0, false
	}
	return *h.View, true
}

// MenuParam returns the index of the context-menu parameter
func (h Handler) MenuParam() (int, bool) {
	if h.Menu == nil || *h.Menu < 0 {
		return 0, false
	}
	return *h.Menu, true
}

// Registration describes one listener registration method
type Registration struct {
	Method      string    `yaml:"method"`
	Interface   string    `yaml:"interface"`
	Event       string    `yaml:"event"`
	ContextMenu bool      `yaml:"context_menu"`
	Handlers    []Handler `yaml:"handlers"`
}

// Spec is the table of recognized listener registrations
type Spec struct {
	Registrations []Registration `yaml:"registrations"`

	byMethod    map[string]*Registration
	byInterface map[string]*Registration
}

// DefaultSpec returns the built-in registration table
func DefaultSpec() (*Spec, error) {
	return ParseSpec(defaultSpec)
}

// LoadSpec reads a registration table from a YAML file
func LoadSpec(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open listener spec: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read listener spec: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec decodes and validates a registration table
func ParseSpec(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse listener spec: %w", err)
	}

	s.byMethod = make(map[string]*Registration, len(s.Registrations))
	s.byInterface = make(map[string]*Registration, len(s.Registrations))
	for i := range s.Registrations {
		r := &s.Registrations[i]
		if r.Method == "" || r.Interface == "" {
			return nil, fmt.Errorf("listener spec entry %d: method and interface are required", i)
		}
		if len(r.Handlers) == 0 {
			return nil, fmt.Errorf("listener spec %s: no handlers", r.Method)
		}
		if _, dup := s.byMethod[r.Method]; dup {
			return nil, fmt.Errorf("listener spec %s: duplicate registration", r.Method)
		}
		s.byMethod[r.Method] = r
		if _, ok := s.byInterface[r.Interface]; !ok {
			s.byInterface[r.Interface] = r
		}
	}
	return &s, nil
}

// ByMethod returns the registration for a registration subsignature
func (s *Spec) ByMethod(method string) (*Registration, bool) {
	r, ok := s.byMethod[method]
	return r, ok
}

// ByInterface returns the first registration of a listener interface
func (s *Spec) ByInterface(iface string) (*Registration, bool) {
	r, ok := s.byInterface[iface]
	return r, ok
}

// Interfaces returns every listener interface in sorted order
func (s *Spec) Interfaces() []string {
	out := make([]string, 0, len(s.byInterface))
	for iface := range s.byInterface {
		out = append(out, iface)
	}
	sort.Strings(out)
	return out
}
