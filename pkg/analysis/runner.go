package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SNTSVV/Extended-Gator/pkg/builder"
	"github.com/SNTSVV/Extended-Gator/pkg/classify"
	"github.com/SNTSVV/Extended-Gator/pkg/cycles"
	"github.com/SNTSVV/Extended-Gator/pkg/facts"
	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/listener"
	"github.com/SNTSVV/Extended-Gator/pkg/logging"
	"github.com/SNTSVV/Extended-Gator/pkg/metrics"
	"github.com/SNTSVV/Extended-Gator/pkg/reach"
	"github.com/SNTSVV/Extended-Gator/pkg/solver"
)

var (
	log    = logging.New("analysis")
	tracer = otel.Tracer("github.com/SNTSVV/Extended-Gator/pkg/analysis")
)

// AnalysisRunner orchestrates the analysis process
type AnalysisRunner struct {
	metrics *metrics.Metrics
	mu      sync.Mutex // Prevent concurrent analysis runs
}

// AnalysisOptions configures one run
type AnalysisOptions struct {
	FactsPath     string
	ListenersPath string // empty selects the built-in listener table
	Strict        bool
	Workers       int
	FindCycles    bool
	Reason        string // e.g., "solve", "cycles"
}

// Result is everything one run produced
type Result struct {
	RunID    string                 `json:"runId"`
	Graph    graph.Stats            `json:"graph"`
	Events   builder.Stats          `json:"events"`
	Dispatch listener.Stats         `json:"dispatch"`
	Solution *solver.Solution       `json:"solution,omitempty"`
	Cycles   []cycles.RecursiveFlow `json:"cycles,omitempty"`
	Elapsed  time.Duration          `json:"elapsedNs"`

	Store *graph.Store `json:"-"`
}

// NewAnalysisRunner creates a new analysis runner. m may be nil.
func NewAnalysisRunner(m *metrics.Metrics) *AnalysisRunner {
	return &AnalysisRunner{metrics: m}
}

// Run loads the facts, builds the flow graph and solves it. With
// FindCycles set, recursive flows are reported instead of solving.
func (ar *AnalysisRunner) Run(ctx context.Context, opts AnalysisOptions) (*Result, error) {
	// Lock to prevent concurrent analysis
	ar.mu.Lock()
	defer ar.mu.Unlock()

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx, span := tracer.Start(ctx, "AnalysisRunner.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", runID), attribute.String("facts", opts.FactsPath))

	start := time.Now()
	log.Info(ctx, "Starting analysis", "reason", opts.Reason, "facts", opts.FactsPath)
	steps := 4
	if opts.FindCycles {
		steps = 3
	}

	// Phase 1: listener table and facts
	log.Info(ctx, fmt.Sprintf("[1/%d] Loading facts...", steps))
	spec, err := loadListenerSpec(opts.ListenersPath)
	if err != nil {
		return nil, err
	}
	f, err := facts.Load(opts.FactsPath)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, fmt.Sprintf("[1/%d] Loaded %d classes, %d events, %d listener registrations",
		steps, len(f.Classes), len(f.Events), len(spec.Registrations)))

	// Phase 2: graph construction
	log.Info(ctx, fmt.Sprintf("[2/%d] Building flow graph...", steps))
	phase := time.Now()
	h := f.Hierarchy()
	store := graph.NewStore()
	dispatcher := listener.NewDispatcher(store,
		reach.New(store, reach.WithMetrics(ar.metrics)),
		listener.NewResolver(h, spec), ar.metrics)
	b := builder.New(store, dispatcher, h, h, ar.metrics)
	if err := f.Replay(ctx, b); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	ar.metrics.ObservePhase("build", time.Since(phase))

	// Phase 3: deferred listener dispatch
	log.Info(ctx, fmt.Sprintf("[3/%d] Resolving deferred listener registrations...", steps))
	phase = time.Now()
	if err := b.Complete(ctx); err != nil {
		return nil, err
	}
	ar.metrics.ObservePhase("complete", time.Since(phase))

	result := &Result{RunID: runID, Store: store}

	if opts.FindCycles {
		result.Cycles = cycles.FindRecursiveFlows(store)
		log.Info(ctx, fmt.Sprintf("[3/%d] Found %d recursive flows", steps, len(result.Cycles)))
	} else {
		// Phase 4: solve
		log.Info(ctx, fmt.Sprintf("[4/%d] Solving...", steps))
		s := solver.New(store, dispatcher, classify.New(opts.Strict, ar.metrics),
			solver.Options{Workers: opts.Workers}, ar.metrics)
		sol, err := s.Solve(ctx)
		if err != nil {
			return nil, fmt.Errorf("solve: %w", err)
		}
		result.Solution = sol
		counts := sol.Counts()
		log.Info(ctx, fmt.Sprintf("[4/%d] Solution has %d receivers, %d parameters, %d listeners", steps,
			counts["solutionReceivers"], counts["solutionParameters"], counts["solutionListeners"]))
	}

	result.Graph = store.Stats()
	result.Events = b.Stats()
	result.Dispatch = dispatcher.Stats()
	result.Elapsed = time.Since(start)

	log.Info(ctx, "Analysis complete", "reason", opts.Reason, "nodes", result.Graph.Nodes,
		"edges", result.Graph.Edges, "elapsed", result.Elapsed)
	return result, nil
}

func loadListenerSpec(path string) (*listener.Spec, error) {
	if path == "" {
		return listener.DefaultSpec()
	}
	return listener.LoadSpec(path)
}
