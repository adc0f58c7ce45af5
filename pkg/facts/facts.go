// Package facts reads front-end fact files: the class table, resource ids,
// and the flow events of one application.
package facts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SNTSVV/Extended-Gator/pkg/builder"
	"github.com/SNTSVV/Extended-Gator/pkg/hierarchy"
	"github.com/SNTSVV/Extended-Gator/pkg/logging"
	"github.com/SNTSVV/Extended-Gator/pkg/model"
)

var log = logging.New("facts")

// EventKind selects the builder call an event replays as
type EventKind string

const (
	EventAssign  EventKind = "assign"
	EventParam   EventKind = "param"
	EventReturn  EventKind = "return"
	EventOp      EventKind = "op"
	EventTabHost EventKind = "tabhost"
)

// Event is one normalized flow event. Target and Source carry the two ends
// of assign, param and return events; Op carries recognized operations;
// Host, Part and Target carry TabHost lookups.
type Event struct {
	Kind   EventKind        `yaml:"kind"`
	Target model.Ref        `yaml:"target,omitempty"`
	Source model.Ref        `yaml:"source,omitempty"`
	Op     *builder.OpEvent `yaml:"op,omitempty"`
	Host   model.Ref        `yaml:"host,omitempty"`
	Part   builder.TabPart  `yaml:"part,omitempty"`
	Site   model.Site       `yaml:"site,omitempty"`
}

// Binding is the view-binding input of one window
type Binding struct {
	Window    model.Ref   `yaml:"window"`
	Root      model.Ref   `yaml:"root"`
	Producers []model.Ref `yaml:"producers"`
}

// Facts is a decoded fact file
type Facts struct {
	Classes   []hierarchy.Class `yaml:"classes"`
	Resources map[string]int    `yaml:"resources"`
	Events    []Event           `yaml:"events"`
	Bindings  []Binding         `yaml:"bindings"`
}

// Load reads a fact file
func Load(path string) (*Facts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open facts: %w", err)
	}
	defer f.Close()

	facts, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return facts, nil
}

// Decode reads a fact document. Unknown keys are rejected.
func Decode(r io.Reader) (*Facts, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Facts
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode facts: %w", err)
	}
	return &f, nil
}

// Hierarchy returns the class table and resource ids as oracles
func (f *Facts) Hierarchy() *hierarchy.Static {
	return hierarchy.NewStatic(f.Classes, f.Resources)
}

// Replay feeds every event to the builder in file order, then the window
// bindings. Malformed events are logged and skipped; only graph contract
// violations and cancellation stop the replay.
func (f *Facts) Replay(ctx context.Context, b *builder.Builder) error {
	for i, ev := range f.Events {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := replay(ctx, b, ev); err != nil {
			return fmt.Errorf("event %d (%s): %w", i, ev.Kind, err)
		}
	}

	for _, bind := range f.Bindings {
		if err := b.BindViews(bind.Window, bind.Root); err != nil {
			log.Warn(ctx, "Skipping window binding", "window", bind.Window.Window.Class, "error", err)
			continue
		}
		for _, p := range bind.Producers {
			if err := b.WindowRoot(bind.Window, p); err != nil {
				log.Warn(ctx, "Skipping window root", "window", bind.Window.Window.Class, "error", err)
			}
		}
	}
	log.Debug(ctx, "Replayed facts", "events", len(f.Events), "bindings", len(f.Bindings))
	return nil
}

func replay(ctx context.Context, b *builder.Builder, ev Event) error {
	switch ev.Kind {
	case EventAssign:
		return b.Assign(ctx, ev.Target, ev.Source, ev.Site)
	case EventParam:
		return b.CallParameterBind(ctx, ev.Target, ev.Source, ev.Site)
	case EventReturn:
		return b.CallReturnBind(ctx, ev.Target, ev.Source, ev.Site)
	case EventOp:
		if ev.Op == nil {
			log.Warn(ctx, "Skipping operation event without an operation", "site", ev.Site)
			return nil
		}
		op := *ev.Op
		if op.Site.IsZero() {
			op.Site = ev.Site
		}
		_, err := b.RecognizedOperation(ctx, op)
		return err
	case EventTabHost:
		_, err := b.TabHost(ctx, ev.Host, ev.Part, ev.Target, ev.Site)
		return err
	}
	log.Warn(ctx, "Skipping unknown event", "kind", ev.Kind, "site", ev.Site)
	return nil
}
