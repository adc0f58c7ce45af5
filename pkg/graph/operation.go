package graph

import (
	"github.com/SNTSVV/Extended-Gator/pkg/model"
)

// Operands names the nodes bound to each role of a new operation.
// Zero means the role is not supplied.
type Operands struct {
	Receiver  int64
	Parameter int64
	Result    int64
}

func (o Operands) of(role model.Role) int64 {
	switch role {
	case model.RoleReceiver:
		return o.Receiver
	case model.RoleParameter:
		return o.Parameter
	case model.RoleResult:
		return o.Result
	}
	return 0
}

// OpOption customizes a new operation node
type OpOption func(*Node)

// Artificial marks an operation that models framework behaviour rather than
// a call in application code
func Artificial() OpOption {
	return func(n *Node) { n.Artificial = true }
}

// RegistersListener records the listener interface a registration expects
func RegistersListener(iface string) OpOption {
	return func(n *Node) { n.Listener = iface }
}

// ContextMenu marks a context-menu listener registration
func ContextMenu() OpOption {
	return func(n *Node) { n.ContextMenu = true }
}

// CreateOperation creates an operation node and links its operands in the
// slot order declared for the kind. Every role in the layout must be
// supplied; supplying an undeclared role is a contract violation. The
// result is optional and, when present, becomes successor slot 0.
func (s *Store) CreateOperation(kind model.OpKind, in Operands, site model.Site, opts ...OpOption) (int64, error) {
	spec, err := model.Spec(kind)
	if err != nil {
		return 0, err
	}

	for _, role := range []model.Role{model.RoleReceiver, model.RoleParameter, model.RoleResult} {
		if in.of(role) != 0 && !spec.Has(role) {
			return 0, &model.ContractViolation{Kind: kind, Role: role, Reason: "operand supplied for undeclared role"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	operands := make([]*entry, len(spec.Layout))
	for i, role := range spec.Layout {
		e := s.get(in.of(role))
		if e == nil {
			return 0, &model.ContractViolation{Kind: kind, Role: role, Reason: "missing operand"}
		}
		if e.IsOperation() {
			return 0, &model.ContractViolation{Kind: kind, Role: role, Reason: "operand is an operation"}
		}
		operands[i] = e
	}
	var result *entry
	if in.Result != 0 {
		if result = s.get(in.Result); result == nil || result.IsOperation() {
			return 0, &model.ContractViolation{Kind: kind, Role: model.RoleResult, Reason: "invalid result"}
		}
	}

	n := Node{Kind: model.NodeOperation, Op: kind, Site: site}
	for _, opt := range opts {
		opt(&n)
	}
	op := s.newNode(n)

	// Operand edges are positional and never merged, even when two roles
	// share a node.
	for _, e := range operands {
		s.link(e, op, site)
	}
	if result != nil {
		s.link(op, result, site)
		op.hasResult = true
	}
	return op.ID, nil
}

// Operand returns the node bound to a role of an operation. A declared but
// absent result yields 0 with no error; an undeclared role is a
// ContractViolation.
func (s *Store) Operand(op int64, role model.Role) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.get(op)
	if e == nil || !e.IsOperation() {
		return 0, &model.ContractViolation{Op: op, Role: role, Reason: "not an operation"}
	}
	slot, ok := model.MustSpec(e.Op).Slot(role)
	if !ok {
		return 0, &model.ContractViolation{Op: op, Kind: e.Op, Role: role}
	}

	if role == model.RoleResult {
		if !e.hasResult {
			return 0, nil
		}
		return e.succs[0].To, nil
	}
	if slot >= len(e.preds) {
		return 0, &model.ContractViolation{Op: op, Kind: e.Op, Role: role, Reason: "missing operand edge"}
	}
	return e.preds[slot].From, nil
}

