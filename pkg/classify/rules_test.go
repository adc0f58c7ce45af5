package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
)

func TestIsValidFlow_TableEntries(t *testing.T) {
	r := New(true, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		object model.ObjectKind
		op     model.OpKind
		role   model.Role
		want   bool
	}{
		{"view receives find-view", model.ObjectView, model.OpFindView, model.RoleReceiver, true},
		{"inflation receives set-listener", model.ObjectInflation, model.OpSetListener, model.RoleReceiver, true},
		{"view is added as child", model.ObjectView, model.OpAddChildView, model.RoleParameter, true},
		{"inflation is window content", model.ObjectInflation, model.OpWindowAddView, model.RoleParameter, true},
		{"activity receives window find-view", model.ObjectActivity, model.OpWindowFindView, model.RoleReceiver, true},
		{"dialog receives set-content-view", model.ObjectDialog, model.OpSetContentView, model.RoleReceiver, true},
		{"fragment is added", model.ObjectFragment, model.OpAddFragment, model.RoleParameter, true},
		{"menu receives add", model.ObjectOptionsMenu, model.OpAddChildView, model.RoleReceiver, true},
		{"menu receives menu inflate", model.ObjectContextMenu, model.OpMenuInflate, model.RoleReceiver, true},
		{"view is not an id", model.ObjectView, model.OpSetID, model.RoleParameter, false},
		{"view does not receive window find-view", model.ObjectView, model.OpWindowFindView, model.RoleReceiver, false},
		{"window is never a parameter", model.ObjectActivity, model.OpAddChildView, model.RoleParameter, false},
		{"window does not receive find-view", model.ObjectDialog, model.OpFindView, model.RoleReceiver, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.IsValidFlow(ctx, tt.object, tt.op, tt.role)
			if err != nil {
				t.Fatalf("IsValidFlow failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsValidFlow(%s, %s, %s) = %v, want %v", tt.object, tt.op, tt.role, got, tt.want)
			}
		})
	}
}

func TestIsValidFlow_StrictEscalates(t *testing.T) {
	m := metrics.New()
	r := New(true, m)

	ok, err := r.IsValidFlow(context.Background(), model.ObjectFragment, model.OpSetID, model.RoleParameter)
	if ok {
		t.Error("Unlisted flow must not be accepted")
	}

	var cv *model.ClassificationViolation
	if !errors.As(err, &cv) {
		t.Fatalf("Expected ClassificationViolation, got %v", err)
	}
	if cv.Object != model.ObjectFragment || cv.Op != model.OpSetID || cv.Role != model.RoleParameter {
		t.Errorf("Unexpected violation %+v", cv)
	}
	if got := testutil.ToFloat64(m.ClassificationViolations.WithLabelValues("set-id", "parameter")); got != 1 {
		t.Errorf("Expected 1 recorded violation, got %v", got)
	}
}

func TestIsValidFlow_LenientDrops(t *testing.T) {
	r := New(false, nil)

	ok, err := r.IsValidFlow(context.Background(), model.ObjectFragment, model.OpSetID, model.RoleParameter)
	if err != nil {
		t.Fatalf("Lenient mode must not fail, got %v", err)
	}
	if ok {
		t.Error("Unlisted flow must be dropped")
	}
}

func TestLookup_DistinguishesRejectFromAbsent(t *testing.T) {
	r := New(false, nil)

	v, ok := r.Lookup(model.ObjectView, model.OpSetID, model.RoleParameter)
	if !ok || v != Reject {
		t.Errorf("Expected an explicit Reject, got %v (listed %v)", v, ok)
	}

	if _, ok := r.Lookup(model.ObjectFragment, model.OpSetID, model.RoleParameter); ok {
		t.Error("Fragment as set-id parameter should not be listed")
	}
}

func TestDefaultTable_WindowsNeverParameters(t *testing.T) {
	for key, v := range DefaultTable() {
		if key.Object.IsWindow() && key.Role == model.RoleParameter && v != Reject {
			t.Errorf("Window accepted as parameter: %+v", key)
		}
	}
}

func TestNewWithTable(t *testing.T) {
	table := Table{{Object: model.ObjectPlain, Op: model.OpSetText, Role: model.RoleReceiver}: Accept}
	r := NewWithTable(table, true, nil)

	ok, err := r.IsValidFlow(context.Background(), model.ObjectPlain, model.OpSetText, model.RoleReceiver)
	if err != nil || !ok {
		t.Errorf("Expected custom entry to accept, got %v, %v", ok, err)
	}
	if !r.Strict() {
		t.Error("Expected strict rules")
	}
}
