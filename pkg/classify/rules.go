// Package classify decides which producer kinds may occupy which operand
// roles of which operations.
package classify

import (
	"context"

	"github.com/SNTSVV/Extended-Gator/pkg/logging"
	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
)

var log = logging.New("classify")

// Verdict is the outcome of a table entry
type Verdict int

const (
	Reject Verdict = iota
	Accept
)

func (v Verdict) String() string {
	if v == Accept {
		return "accept"
	}
	return "reject"
}

// Key identifies one (producer kind, operation kind, role) combination
type Key struct {
	Object model.ObjectKind
	Op     model.OpKind
	Role   model.Role
}

// Table maps combinations to verdicts. A missing key is an unrecognized
// combination, which is different from an explicit Reject.
type Table map[Key]Verdict

func (t Table) set(v Verdict, role model.Role, objects []model.ObjectKind, ops ...model.OpKind) {
	for _, o := range objects {
		for _, op := range ops {
			t[Key{Object: o, Op: op, Role: role}] = v
		}
	}
}

var (
	viewObjects   = []model.ObjectKind{model.ObjectView, model.ObjectInflation}
	menuObjects   = []model.ObjectKind{model.ObjectOptionsMenu, model.ObjectContextMenu}
	windowObjects = []model.ObjectKind{model.ObjectActivity, model.ObjectFragmentWindow, model.ObjectDialog, model.ObjectTabSpec}
)

// DefaultTable returns the classification of GUI object flows
func DefaultTable() Table {
	t := make(Table)

	// Receivers of view operations
	viewOps := []model.OpKind{model.OpFindView, model.OpViewTraverse, model.OpSetID,
		model.OpSetText, model.OpSetListener, model.OpAddChildView}
	t.set(Accept, model.RoleReceiver, viewObjects, viewOps...)
	// Menus answer findItem, getItem, add and item listeners. set-id on a
	// menu is excluded by the solver before the table is consulted.
	t.set(Accept, model.RoleReceiver, menuObjects, viewOps...)
	t.set(Accept, model.RoleReceiver, menuObjects, model.OpMenuInflate)
	t.set(Reject, model.RoleReceiver, viewObjects, model.OpMenuInflate)

	// Receivers of window operations
	windowOps := []model.OpKind{model.OpSetContentView, model.OpWindowFindView,
		model.OpWindowAddView, model.OpAddFragment, model.OpReplaceFragment}
	t.set(Accept, model.RoleReceiver, windowObjects, windowOps...)
	t.set(Reject, model.RoleReceiver, viewObjects, windowOps...)
	t.set(Reject, model.RoleReceiver, windowObjects, viewOps...)

	// Parameters that hold views
	t.set(Accept, model.RoleParameter, viewObjects, model.OpAddChildView, model.OpWindowAddView)
	t.set(Accept, model.RoleParameter, []model.ObjectKind{model.ObjectFragment},
		model.OpAddFragment, model.OpReplaceFragment)

	// Parameters that hold ids or text never hold views or menus
	idOps := []model.OpKind{model.OpInflate, model.OpSetContentView, model.OpFindView,
		model.OpWindowFindView, model.OpSetID, model.OpSetText, model.OpMenuInflate}
	t.set(Reject, model.RoleParameter, viewObjects, idOps...)
	t.set(Reject, model.RoleParameter, menuObjects, idOps...)

	// Windows are never parameters
	t.set(Reject, model.RoleParameter, windowObjects, model.OpKinds()...)

	return t
}

// Rules applies a classification table with a strict or lenient policy
// for unrecognized combinations
type Rules struct {
	table   Table
	strict  bool
	metrics *metrics.Metrics
}

// New creates rules over the default table
func New(strict bool, m *metrics.Metrics) *Rules {
	return &Rules{table: DefaultTable(), strict: strict, metrics: m}
}

// NewWithTable creates rules over a custom table
func NewWithTable(t Table, strict bool, m *metrics.Metrics) *Rules {
	return &Rules{table: t, strict: strict, metrics: m}
}

// Strict reports whether unrecognized combinations are fatal
func (r *Rules) Strict() bool {
	return r.strict
}

// Lookup returns the table entry for a combination without applying the
// strict/lenient policy
func (r *Rules) Lookup(object model.ObjectKind, op model.OpKind, role model.Role) (Verdict, bool) {
	v, ok := r.table[Key{Object: object, Op: op, Role: role}]
	return v, ok
}

// IsValidFlow reports whether a producer of the given kind may occupy the
// role. An unrecognized combination returns a ClassificationViolation in
// strict mode; in lenient mode it is logged and treated as invalid.
func (r *Rules) IsValidFlow(ctx context.Context, object model.ObjectKind, op model.OpKind, role model.Role) (bool, error) {
	v, ok := r.Lookup(object, op, role)
	if ok {
		return v == Accept, nil
	}

	r.metrics.IncViolation(string(op), string(role))
	violation := &model.ClassificationViolation{Object: object, Op: op, Role: role}
	if r.strict {
		return false, violation
	}
	log.Warn(ctx, "Dropping unclassified flow", "object", object, "op", op, "role", role)
	return false, nil
}
