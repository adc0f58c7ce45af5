package model

import (
	"fmt"
	"sort"
)

// Role is a named operand position on an operation node
type Role string

const (
	RoleReceiver  Role = "receiver"
	RoleParameter Role = "parameter"
	RoleResult    Role = "result"
)

// OpKind represents a recognized framework call modeled by an operation node
type OpKind string

const (
	OpInflate         OpKind = "inflate"          // LayoutInflater.inflate(id)
	OpSetContentView  OpKind = "set-content-view" // Activity.setContentView(id)
	OpFindView        OpKind = "find-view"        // View.findViewById(id)
	OpWindowFindView  OpKind = "window-find-view" // Activity.findViewById(id)
	OpViewTraverse    OpKind = "view-traverse"    // ViewGroup.getChildAt(i), getParent()
	OpWindowAddView   OpKind = "window-add-view"  // Activity.setContentView(view)
	OpAddChildView    OpKind = "add-child-view"   // ViewGroup.addView(child), Menu.add(...)
	OpSetID           OpKind = "set-id"           // View.setId(id)
	OpSetListener     OpKind = "set-listener"     // View.setOnClickListener(l) and friends
	OpSetText         OpKind = "set-text"         // TextView.setText(s)
	OpMenuInflate     OpKind = "menu-inflate"     // MenuInflater.inflate(id, menu)
	OpAddFragment     OpKind = "add-fragment"     // FragmentTransaction.add(...)
	OpReplaceFragment OpKind = "replace-fragment" // FragmentTransaction.replace(...)
)

// Scope tells which family of objects an operation's receiver belongs to
type Scope string

const (
	ScopeNone   Scope = "none"
	ScopeView   Scope = "view"
	ScopeWindow Scope = "window"
	ScopeMenu   Scope = "menu"
)

// OpSpec is the static metadata of an operation kind.
// Layout lists the predecessor operands in slot order; the result, when
// declared, is successor slot 0.
type OpSpec struct {
	Kind     OpKind
	Layout   []Role
	Result   bool
	Scope    Scope
	Producer bool // results are themselves GUI objects
	Listener bool // parameter slot holds a listener object
}

// Slot returns the slot index of a declared role. For RoleResult the index
// is into the successor list.
func (s OpSpec) Slot(role Role) (int, bool) {
	if role == RoleResult {
		return 0, s.Result
	}
	for i, r := range s.Layout {
		if r == role {
			return i, true
		}
	}
	return -1, false
}

// Has returns true if the operation kind declares the role
func (s OpSpec) Has(role Role) bool {
	_, ok := s.Slot(role)
	return ok
}

var (
	recvParam = []Role{RoleReceiver, RoleParameter}
	paramRecv = []Role{RoleParameter, RoleReceiver}
)

var opSpecs = map[OpKind]OpSpec{
	OpInflate:         {Layout: []Role{RoleParameter}, Result: true, Scope: ScopeNone, Producer: true},
	OpSetContentView:  {Layout: paramRecv, Scope: ScopeWindow},
	OpFindView:        {Layout: recvParam, Result: true, Scope: ScopeView, Producer: true},
	OpWindowFindView:  {Layout: recvParam, Result: true, Scope: ScopeWindow, Producer: true},
	OpViewTraverse:    {Layout: []Role{RoleReceiver}, Result: true, Scope: ScopeView, Producer: true},
	OpWindowAddView:   {Layout: recvParam, Scope: ScopeWindow},
	OpAddChildView:    {Layout: recvParam, Scope: ScopeView},
	OpSetID:           {Layout: recvParam, Scope: ScopeView},
	OpSetListener:     {Layout: recvParam, Scope: ScopeView, Listener: true},
	OpSetText:         {Layout: recvParam, Scope: ScopeView},
	OpMenuInflate:     {Layout: paramRecv, Scope: ScopeMenu},
	OpAddFragment:     {Layout: recvParam, Scope: ScopeWindow},
	OpReplaceFragment: {Layout: recvParam, Scope: ScopeWindow},
}

func init() {
	for k, s := range opSpecs {
		s.Kind = k
		opSpecs[k] = s
	}
}

// Spec returns the metadata of an operation kind
func Spec(kind OpKind) (OpSpec, error) {
	s, ok := opSpecs[kind]
	if !ok {
		return OpSpec{}, fmt.Errorf("unknown operation kind %q", kind)
	}
	return s, nil
}

// MustSpec is Spec for kinds known at compile time
func MustSpec(kind OpKind) OpSpec {
	s, err := Spec(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// OpKinds returns every operation kind in a stable order
func OpKinds() []OpKind {
	kinds := make([]OpKind, 0, len(opSpecs))
	for k := range opSpecs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// IsProducer returns true for operations whose results feed other operations
func (k OpKind) IsProducer() bool {
	return opSpecs[k].Producer
}

// IsListener returns true for listener registrations
func (k OpKind) IsListener() bool {
	return opSpecs[k].Listener
}

// ParseOpKind validates an operation kind read from an external source
func ParseOpKind(s string) (OpKind, bool) {
	_, ok := opSpecs[OpKind(s)]
	return OpKind(s), ok
}
