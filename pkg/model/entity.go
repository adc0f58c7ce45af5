package model

import "fmt"

// Site is a program point: a statement index inside a method.
// The zero value means "no site".
type Site struct {
	Method string `json:"method,omitempty" yaml:"method"`
	Stmt   int    `json:"stmt,omitempty" yaml:"stmt"`
}

// IsZero returns true if the site carries no program point
func (s Site) IsZero() bool {
	return s.Method == "" && s.Stmt == 0
}

func (s Site) String() string {
	if s.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s#%d", s.Method, s.Stmt)
}

// MethodSig builds the canonical name of a method, e.g.
// "<com.example.Main: void onClick(android.view.View)>"
func MethodSig(class, subsig string) string {
	return "<" + class + ": " + subsig + ">"
}

// Local identifies a program value slot: a local variable or formal of a method
type Local struct {
	Method string `json:"method" yaml:"method"`
	Name   string `json:"name" yaml:"name"`
}

// ThisLocal returns the receiver slot of a method
func ThisLocal(method string) Local {
	return Local{Method: method, Name: "this"}
}

// ParamLocal returns the slot of the i-th formal parameter of a method
func ParamLocal(method string, i int) Local {
	return Local{Method: method, Name: fmt.Sprintf("@param%d", i)}
}

// ReturnLocal returns the slot holding a method's return value
func ReturnLocal(method string) Local {
	return Local{Method: method, Name: "@return"}
}

func (l Local) valid() bool { return l.Method != "" && l.Name != "" }

// AllocSite identifies an allocation expression and the object it creates
type AllocSite struct {
	Expr  string     `json:"expr" yaml:"expr"`
	Class string     `json:"class" yaml:"class"`
	Kind  ObjectKind `json:"kind" yaml:"kind"`
}

// FieldRef identifies a declared field
type FieldRef struct {
	Class string `json:"class" yaml:"class"`
	Name  string `json:"name" yaml:"name"`
}

// Constant is a literal value flowing through the graph
type Constant struct {
	Kind ConstantKind `json:"kind" yaml:"kind"`
	Int  int64        `json:"int,omitempty" yaml:"int"`
	Str  string       `json:"str,omitempty" yaml:"str"`
}

// ResourceID is an integer id from one of the application's resource tables
type ResourceID struct {
	Kind  ResourceKind `json:"kind" yaml:"kind"`
	Value int          `json:"value" yaml:"value"`
}

// WindowRef identifies a window by declaring class, and by allocation site
// for dialogs and tab specs
type WindowRef struct {
	Kind  WindowKind `json:"kind" yaml:"kind"`
	Class string     `json:"class" yaml:"class"`
	Site  string     `json:"site,omitempty" yaml:"site"`
}

// Canonical drops the allocation site for kinds that are unique per class
func (w WindowRef) Canonical() WindowRef {
	if !w.Kind.PerSite() {
		w.Site = ""
	}
	return w
}

// Ref is a tagged reference to any canonicalizable entity, as emitted by
// the front end in flow events. Kind selects the populated field.
type Ref struct {
	Kind     NodeKind   `json:"kind" yaml:"kind"`
	Local    Local      `json:"local,omitempty" yaml:"local"`
	Alloc    AllocSite  `json:"alloc,omitempty" yaml:"alloc"`
	Field    FieldRef   `json:"field,omitempty" yaml:"field"`
	Constant Constant   `json:"constant,omitempty" yaml:"constant"`
	Resource ResourceID `json:"resource,omitempty" yaml:"resource"`
	Window   WindowRef  `json:"window,omitempty" yaml:"window"`
}

// VarRef is shorthand for a Ref to a local
func VarRef(method, name string) Ref {
	return Ref{Kind: NodeVariable, Local: Local{Method: method, Name: name}}
}

// AllocRef is shorthand for a Ref to an allocation site
func AllocRef(expr, class string, kind ObjectKind) Ref {
	return Ref{Kind: NodeAllocation, Alloc: AllocSite{Expr: expr, Class: class, Kind: kind}}
}

// ResourceRef is shorthand for a Ref to a resource id
func ResourceRef(kind ResourceKind, value int) Ref {
	return Ref{Kind: NodeResource, Resource: ResourceID{Kind: kind, Value: value}}
}

// WindowRefOf is shorthand for a Ref to a window
func WindowRefOf(kind WindowKind, class string) Ref {
	return Ref{Kind: NodeWindow, Window: WindowRef{Kind: kind, Class: class}}
}

// IsZero returns true if the reference names nothing
func (r Ref) IsZero() bool {
	return r.Kind == ""
}

// Validate reports an UnresolvedEntityError when the populated field of the
// reference cannot identify an entity
func (r Ref) Validate() error {
	ok := true
	switch r.Kind {
	case NodeVariable:
		ok = r.Local.valid()
	case NodeAllocation:
		ok = r.Alloc.Expr != "" && r.Alloc.Class != ""
	case NodeField:
		ok = r.Field.Class != "" && r.Field.Name != ""
	case NodeConstant:
		ok = r.Constant.Kind == ConstantInt || r.Constant.Kind == ConstantLong || r.Constant.Kind == ConstantString
	case NodeResource:
		ok = r.Resource.Kind != ""
	case NodeWindow:
		ok = r.Window.Kind != "" && r.Window.Class != ""
	case NodeNull:
	default:
		ok = false
	}
	if !ok {
		return &UnresolvedEntityError{Entity: string(r.Kind), Detail: fmt.Sprintf("%+v", r)}
	}
	return nil
}
