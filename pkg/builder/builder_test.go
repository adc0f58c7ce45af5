package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/hierarchy"
	"github.com/SNTSVV/Extended-Gator/pkg/listener"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
	"github.com/SNTSVV/Extended-Gator/pkg/reach"
)

const (
	onCreate       = "<com.example.Main: void onCreate(android.os.Bundle)>"
	clickIface     = "android.view.View$OnClickListener"
	clickHandler   = "void onClick(android.view.View)"
	setOnClick     = "void setOnClickListener(android.view.View$OnClickListener)"
	registerCtx    = "void registerForContextMenu(android.view.View)"
	createCtxMenu  = "void onCreateContextMenu(android.view.ContextMenu,android.view.View,android.view.ContextMenu$ContextMenuInfo)"
	contextIface   = "android.view.View$OnCreateContextMenuListener"
	tabsSystemID   = 0x01020013
	buttonExpr     = "new Button@3"
	handlerExpr    = "new Handler@5"
	customViewExpr = "new ChartView@8"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	spec, err := listener.DefaultSpec()
	require.NoError(t, err)

	h := hierarchy.NewStatic([]hierarchy.Class{
		{Name: clickIface, Interface: true, Methods: []string{clickHandler}},
		{Name: contextIface, Interface: true, Methods: []string{createCtxMenu}},
		{Name: "com.example.Handler", Interfaces: []string{clickIface}, Methods: []string{clickHandler}},
		{Name: "com.example.Main", Interfaces: []string{contextIface}, Methods: []string{createCtxMenu}},
		{Name: "android.view.View"},
		{Name: "com.example.ChartView", Super: "android.view.View", Methods: []string{viewContextMenu}},
	}, map[string]int{"tabs": tabsSystemID})

	s := graph.NewStore()
	d := listener.NewDispatcher(s, reach.New(s), listener.NewResolver(h, spec), nil)
	return New(s, d, h, h, nil)
}

func v(name string) model.Ref {
	return model.VarRef(onCreate, name)
}

func node(t *testing.T, b *Builder, r model.Ref) int64 {
	t.Helper()
	id, err := b.Store().Intern(r)
	require.NoError(t, err)
	return id
}

func hasEdgeTo(b *Builder, src int64, local model.Local) bool {
	for _, e := range b.Store().Succs(src) {
		if n, ok := b.Store().Node(e.To); ok && n.Entity == local {
			return true
		}
	}
	return false
}

func TestFlowEvents(t *testing.T) {
	b := newBuilder(t)
	ctx := context.Background()
	site := model.Site{Method: onCreate, Stmt: 1}

	require.NoError(t, b.Assign(ctx, v("a"), model.AllocRef(buttonExpr, "android.widget.Button", model.ObjectView), site))
	require.NoError(t, b.CallParameterBind(ctx, model.VarRef("<com.example.Util: void show(android.view.View)>", "@param0"), v("a"), site))
	require.NoError(t, b.CallReturnBind(ctx, v("r"), model.VarRef("<com.example.Util: android.view.View get()>", "@return"), site))
	require.NoError(t, b.Assign(ctx, v("a"), model.AllocRef(buttonExpr, "android.widget.Button", model.ObjectView), site))

	stats := b.Stats()
	assert.Equal(t, 4, stats.Events)
	assert.Equal(t, 3, stats.Edges, "repeated assignment adds no edge")
	assert.Zero(t, stats.Skipped)

	button := node(t, b, model.AllocRef(buttonExpr, "android.widget.Button", model.ObjectView))
	assert.Len(t, b.Store().EdgesBetween(button, node(t, b, v("a"))), 1)
}

func TestFlowEvents_UnresolvedIsSkipped(t *testing.T) {
	b := newBuilder(t)
	ctx := context.Background()

	err := b.Assign(ctx, v("a"), model.Ref{Kind: model.NodeVariable}, model.Site{})
	require.NoError(t, err)
	err = b.Assign(ctx, model.Ref{Kind: "bogus"}, v("a"), model.Site{})
	require.NoError(t, err)

	assert.Equal(t, 2, b.Stats().Skipped)
	assert.Zero(t, b.Store().Stats().Edges)
}

func TestRecognizedOperation(t *testing.T) {
	b := newBuilder(t)
	ctx := context.Background()

	op, err := b.RecognizedOperation(ctx, OpEvent{
		Kind:      model.OpFindView,
		Receiver:  v("root"),
		Parameter: model.ResourceRef(model.ResourceWidget, 7),
		Result:    v("button"),
		Site:      model.Site{Method: onCreate, Stmt: 4},
	})
	require.NoError(t, err)

	for role, want := range map[model.Role]model.Ref{
		model.RoleReceiver:  v("root"),
		model.RoleParameter: model.ResourceRef(model.ResourceWidget, 7),
		model.RoleResult:    v("button"),
	} {
		got, err := b.Store().Operand(op, role)
		require.NoError(t, err)
		assert.Equal(t, node(t, b, want), got, role)
	}
	assert.Equal(t, 1, b.Stats().Operations)
}

func TestRecognizedOperation_MissingOperandIsContractViolation(t *testing.T) {
	b := newBuilder(t)

	_, err := b.RecognizedOperation(context.Background(), OpEvent{Kind: model.OpSetID, Receiver: v("view")})
	var cv *model.ContractViolation
	assert.ErrorAs(t, err, &cv)

	_, err = b.RecognizedOperation(context.Background(), OpEvent{Kind: "bogus"})
	assert.ErrorAs(t, err, &cv)
}

func TestRecognizedOperation_DeferredListener(t *testing.T) {
	b := newBuilder(t)
	ctx := context.Background()
	site := model.Site{Method: onCreate, Stmt: 6}

	require.NoError(t, b.Assign(ctx, v("l"), model.AllocRef(handlerExpr, "com.example.Handler", model.ObjectListener), site))
	op, err := b.RecognizedOperation(ctx, OpEvent{
		Kind:      model.OpSetListener,
		Receiver:  v("button"),
		Parameter: v("l"),
		Site:      site,
		Listener:  setOnClick,
	})
	require.NoError(t, err)

	n, _ := b.Store().Node(op)
	assert.Equal(t, clickIface, n.Listener)
	assert.False(t, n.ContextMenu)

	handler := model.MethodSig("com.example.Handler", clickHandler)
	l, button := node(t, b, v("l")), node(t, b, v("button"))
	assert.False(t, hasEdgeTo(b, l, model.ThisLocal(handler)))

	require.NoError(t, b.Complete(ctx))
	assert.True(t, hasEdgeTo(b, l, model.ThisLocal(handler)))
	assert.True(t, hasEdgeTo(b, button, model.ParamLocal(handler, 0)))

	edges := b.Store().Stats().Edges
	require.NoError(t, b.Complete(ctx))
	assert.Equal(t, edges, b.Store().Stats().Edges)
	assert.Equal(t, 1, b.Stats().Registrations)
}

func TestRecognizedOperation_ContextMenuRegistration(t *testing.T) {
	b := newBuilder(t)
	ctx := context.Background()

	op, err := b.RecognizedOperation(ctx, OpEvent{
		Kind:      model.OpSetListener,
		Receiver:  v("list"),
		Parameter: v("this"),
		Site:      model.Site{Method: onCreate, Stmt: 9},
		Listener:  registerCtx,
	})
	require.NoError(t, err)
	n, _ := b.Store().Node(op)
	assert.True(t, n.ContextMenu)

	handler := model.MethodSig("com.example.Main", createCtxMenu)
	assert.True(t, hasEdgeTo(b, node(t, b, v("this")), model.ThisLocal(handler)), "wired before Complete")
	assert.True(t, hasEdgeTo(b, node(t, b, v("list")), model.ParamLocal(handler, 1)))
}

func TestRecognizedOperation_UnknownRegistrationIsSkipped(t *testing.T) {
	b := newBuilder(t)

	op, err := b.RecognizedOperation(context.Background(), OpEvent{
		Kind:      model.OpSetListener,
		Receiver:  v("button"),
		Parameter: v("l"),
		Listener:  "void setOnWhatever(com.example.Whatever)",
	})
	require.NoError(t, err)
	assert.Zero(t, op)
	assert.Equal(t, 1, b.Stats().Skipped)
	assert.Zero(t, b.Store().Stats().Operations)
}

func TestViewContextMenuOverride(t *testing.T) {
	b := newBuilder(t)
	ctx := context.Background()
	chart := model.AllocRef(customViewExpr, "com.example.ChartView", model.ObjectView)

	require.NoError(t, b.Assign(ctx, v("c"), chart, model.Site{}))
	require.NoError(t, b.Assign(ctx, v("d"), chart, model.Site{}))

	method := model.MethodSig("com.example.ChartView", viewContextMenu)
	alloc := node(t, b, chart)
	assert.True(t, hasEdgeTo(b, alloc, model.ThisLocal(method)))

	param := node(t, b, model.VarRef(method, "@param0"))
	preds := b.Store().Preds(param)
	require.Len(t, preds, 1)
	menu, _ := b.Store().Node(preds[0].From)
	assert.Equal(t, model.ObjectContextMenu, menu.Object)
	assert.Equal(t, 1, b.Stats().Overrides)

	// Plain views without an override get nothing
	require.NoError(t, b.Assign(ctx, v("b"), model.AllocRef(buttonExpr, "android.view.View", model.ObjectView), model.Site{}))
	assert.Equal(t, 1, b.Stats().Overrides)
}

// flakyOracle names no implementing class on its first answer
type flakyOracle struct {
	hierarchy.Oracle
	calls int
}

func (o *flakyOracle) MatchForVirtualDispatch(subsig, class string) (string, bool) {
	o.calls++
	if o.calls == 1 {
		return "", true
	}
	return o.Oracle.MatchForVirtualDispatch(subsig, class)
}

func TestViewContextMenuOverride_RetriedAfterFailure(t *testing.T) {
	b := newBuilder(t)
	oracle := &flakyOracle{Oracle: b.oracle}
	b.oracle = oracle
	ctx := context.Background()
	chart := model.AllocRef(customViewExpr, "com.example.ChartView", model.ObjectView)
	method := model.MethodSig("com.example.ChartView", viewContextMenu)

	require.NoError(t, b.Assign(ctx, v("c"), chart, model.Site{}))
	alloc := node(t, b, chart)
	assert.False(t, hasEdgeTo(b, alloc, model.ThisLocal(method)))
	assert.Zero(t, b.Stats().Overrides)
	assert.Equal(t, 1, b.Stats().Skipped)

	require.NoError(t, b.Assign(ctx, v("d"), chart, model.Site{}))
	assert.True(t, hasEdgeTo(b, alloc, model.ThisLocal(method)), "the failed override is retried")
	assert.Equal(t, 1, b.Stats().Overrides)

	require.NoError(t, b.Assign(ctx, v("e"), chart, model.Site{}))
	assert.Equal(t, 1, b.Stats().Overrides)
	assert.Equal(t, 2, oracle.calls, "a wired allocation is not looked up again")
}

func TestTabHost(t *testing.T) {
	b := newBuilder(t)
	ctx := context.Background()

	op, err := b.TabHost(ctx, v("host"), TabWidget, v("tabs"), model.Site{Method: onCreate, Stmt: 11})
	require.NoError(t, err)
	require.NotZero(t, op)

	n, _ := b.Store().Node(op)
	assert.Equal(t, model.OpFindView, n.Op)
	assert.True(t, n.Artificial)
	id, err := b.Store().Operand(op, model.RoleParameter)
	require.NoError(t, err)
	assert.Equal(t, node(t, b, model.ResourceRef(model.ResourceWidget, tabsSystemID)), id)

	op, err = b.TabHost(ctx, v("host"), TabContent, v("content"), model.Site{})
	require.NoError(t, err)
	assert.Zero(t, op, "tabcontent has no id in this table")
	assert.Equal(t, 1, b.Stats().Skipped)
}

func TestViewBinding(t *testing.T) {
	b := newBuilder(t)
	window := model.WindowRefOf(model.WindowActivity, "com.example.Main")
	root := model.AllocRef("inflate@binding", "android.widget.FrameLayout", model.ObjectInflation)

	require.NoError(t, b.BindViews(window, v("binding.root")))
	require.NoError(t, b.WindowRoot(window, root))
	require.NoError(t, b.WindowRoot(window, root))

	bindings := b.Store().WindowBindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, node(t, b, v("binding.root")), bindings[0].Root)
	assert.Equal(t, []int64{node(t, b, root)}, bindings[0].Producers)

	assert.Error(t, b.BindViews(v("notAWindow"), v("binding.root")))
}

func TestDeclaringClass(t *testing.T) {
	assert.Equal(t, "com.example.Main", declaringClass(onCreate))
	assert.Empty(t, declaringClass("onCreate"))
}
