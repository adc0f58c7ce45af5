package facts

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SNTSVV/Extended-Gator/pkg/builder"
	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/listener"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
	"github.com/SNTSVV/Extended-Gator/pkg/reach"
)

const onCreate = "<com.example.notes.MainActivity: void onCreate(android.os.Bundle)>"

func replaySample(t *testing.T) (*Facts, *builder.Builder) {
	t.Helper()
	f, err := Load(filepath.Join("testdata", "app.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	spec, err := listener.DefaultSpec()
	if err != nil {
		t.Fatalf("DefaultSpec failed: %v", err)
	}
	h := f.Hierarchy()
	s := graph.NewStore()
	d := listener.NewDispatcher(s, reach.New(s), listener.NewResolver(h, spec), nil)
	b := builder.New(s, d, h, h, nil)

	if err := f.Replay(context.Background(), b); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if err := b.Complete(context.Background()); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	return f, b
}

func mustVar(t *testing.T, s *graph.Store, l model.Local) int64 {
	t.Helper()
	id, err := s.InternVariable(l)
	if err != nil {
		t.Fatalf("InternVariable failed: %v", err)
	}
	return id
}

func TestLoad(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "app.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(f.Classes) != 5 {
		t.Errorf("Expected 5 classes, got %d", len(f.Classes))
	}
	if f.Resources["tabs"] != 16908307 {
		t.Errorf("Expected tabs id 16908307, got %d", f.Resources["tabs"])
	}
	if len(f.Events) != 9 {
		t.Errorf("Expected 9 events, got %d", len(f.Events))
	}
	if len(f.Bindings) != 1 {
		t.Fatalf("Expected 1 binding, got %d", len(f.Bindings))
	}
	if got := f.Bindings[0].Window.Window.Kind; got != model.WindowActivity {
		t.Errorf("Expected activity binding, got %s", got)
	}

	op := f.Events[1].Op
	if op == nil {
		t.Fatal("Expected an operation event")
	}
	if op.Kind != model.OpSetContentView || op.Parameter.Resource.Kind != model.ResourceLayout {
		t.Errorf("Unexpected operation %+v", op)
	}

	impl, ok := f.Hierarchy().MatchForVirtualDispatch("void onClick(android.view.View)", "com.example.notes.SaveHandler")
	if !ok || impl != "com.example.notes.SaveHandler" {
		t.Errorf("Expected SaveHandler to implement onClick, got %q (%v)", impl, ok)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join("testdata", "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty document", "", false},
		{"unknown key", "classes: []\nunknown: 1\n", true},
		{"bad yaml", "events: [\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(f.Events) != 0 {
				t.Errorf("Expected no events, got %d", len(f.Events))
			}
		})
	}
}

func TestReplay(t *testing.T) {
	_, b := replaySample(t)

	stats := b.Stats()
	if stats.Skipped != 1 {
		t.Errorf("Expected the malformed assignment to be skipped, got %d skipped", stats.Skipped)
	}
	if stats.Operations != 6 {
		t.Errorf("Expected 6 operations, got %d", stats.Operations)
	}
	if stats.Registrations != 2 {
		t.Errorf("Expected 2 registrations, got %d", stats.Registrations)
	}

	s := b.Store()
	handler, err := s.Intern(model.AllocRef("new SaveHandler@5", "com.example.notes.SaveHandler", model.ObjectListener))
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	handlerVar := mustVar(t, s, model.Local{Method: onCreate, Name: "handler"})
	this := mustVar(t, s, model.ThisLocal("<com.example.notes.SaveHandler: void onClick(android.view.View)>"))

	if n := len(s.EdgesBetween(handlerVar, this)); n != 1 {
		t.Errorf("Deferred registration should be resolved on Complete, got %d edges", n)
	}
	if n := len(s.EdgesBetween(handler, handlerVar)); n != 1 {
		t.Errorf("Expected handler allocation to flow into its variable, got %d edges", n)
	}

	bindings := s.WindowBindings()
	if len(bindings) != 1 || len(bindings[0].Producers) != 1 {
		t.Errorf("Expected one binding with one producer, got %+v", bindings)
	}
}

func TestReplay_UnknownEventKind(t *testing.T) {
	f := &Facts{Events: []Event{{Kind: "teleport"}, {Kind: EventOp}}}
	_, b := replaySample(t)

	before := b.Store().Stats()
	if err := f.Replay(context.Background(), b); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if after := b.Store().Stats(); after != before {
		t.Errorf("Unknown events must not change the graph: %+v -> %+v", before, after)
	}
}

func TestReplay_Cancelled(t *testing.T) {
	f := &Facts{Events: []Event{{Kind: EventAssign}}}
	_, b := replaySample(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.Replay(ctx, b); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
