package model

import (
	"errors"
	"fmt"
)

// ErrUnresolvedEntity is matched by every UnresolvedEntityError
var ErrUnresolvedEntity = errors.New("unresolved entity")

// UnresolvedEntityError reports a missing resource id, method body or
// dispatch target. The affected flow is skipped; the batch continues.
type UnresolvedEntityError struct {
	Entity string
	Detail string
}

func (e *UnresolvedEntityError) Error() string {
	return fmt.Sprintf("unresolved %s: %s", e.Entity, e.Detail)
}

func (e *UnresolvedEntityError) Is(target error) bool {
	return target == ErrUnresolvedEntity
}

// ContractViolation reports an operand query or construction that does not
// match the operation kind's declared layout. It is always a bug in graph
// construction.
type ContractViolation struct {
	Op     int64
	Kind   OpKind
	Role   Role
	Reason string
}

func (e *ContractViolation) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("contract violation on %s op %d role %s: %s", e.Kind, e.Op, e.Role, e.Reason)
	}
	return fmt.Sprintf("contract violation: %s op %d does not declare role %s", e.Kind, e.Op, e.Role)
}

// ClassificationViolation reports a producer kind reaching an operation role
// with no classification entry
type ClassificationViolation struct {
	Producer  int64
	Object    ObjectKind
	Operation int64
	Op        OpKind
	Role      Role
}

func (e *ClassificationViolation) Error() string {
	return fmt.Sprintf("unclassified flow: %s producer %d reaches %s of %s op %d",
		e.Object, e.Producer, e.Role, e.Op, e.Operation)
}
