package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/SNTSVV/Extended-Gator/pkg/analysis"
	"github.com/SNTSVV/Extended-Gator/pkg/builder"
	"github.com/SNTSVV/Extended-Gator/pkg/cycles"
	"github.com/SNTSVV/Extended-Gator/pkg/graph"
	"github.com/SNTSVV/Extended-Gator/pkg/listener"
	"github.com/SNTSVV/Extended-Gator/pkg/solver"
)

// PrintSolveReport prints a nicely formatted solution report with colors
func PrintSolveReport(w io.Writer, res *analysis.Result, verbose bool) {
	// Color definitions
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	// Header
	bold.Fprintln(w, "GUI Flow Solver - Solution Report")
	bold.Fprintln(w, "=================================")
	fmt.Fprintf(w, "Run: %s\n", res.RunID)
	fmt.Fprintf(w, "Graph: %d nodes, %d edges, %d operations, %d windows\n",
		res.Graph.Nodes, res.Graph.Edges, res.Graph.Operations, res.Graph.Windows)
	fmt.Fprintf(w, "Events: %d consumed, %d skipped\n", res.Events.Events, res.Events.Skipped)
	fmt.Fprintf(w, "Listeners: %d deferred, %d wired, %d memo hits\n",
		res.Dispatch.Deferred, res.Dispatch.Wired, res.Dispatch.MemoHits)
	fmt.Fprintln(w)

	sol := res.Solution
	if sol == nil {
		yellow.Fprintln(w, "No solution computed")
		return
	}

	counts := sol.Counts()
	for _, name := range solver.MapNames {
		c := green
		if counts[name] == 0 {
			c = yellow
		}
		c.Fprintf(w, "%-24s %d\n", name, counts[name])
	}

	if !verbose {
		return
	}
	for _, name := range solver.MapNames {
		b, _ := sol.Map(name)
		if len(b) == 0 {
			continue
		}
		fmt.Fprintln(w)
		bold.Fprintf(w, "%s:\n", name)
		for _, key := range b.Keys() {
			cyan.Fprintf(w, "  %s\n", res.Store.Label(key))
			for _, id := range b[key] {
				fmt.Fprintf(w, "    <- %s\n", res.Store.Label(id))
			}
		}
	}
}

// PrintCycles prints the recursive flows found in the graph
func PrintCycles(w io.Writer, res *analysis.Result) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	bold.Fprintln(w, "GUI Flow Solver - Recursive Flows")
	bold.Fprintln(w, "=================================")
	if len(res.Cycles) == 0 {
		green.Fprintln(w, "✓ No recursive flows")
		return
	}

	yellow.Fprintf(w, "Found %d recursive flow(s):\n", len(res.Cycles))
	for i, c := range res.Cycles {
		fmt.Fprintf(w, "  %d. %d nodes\n", i+1, len(c.Nodes))
		for _, l := range c.Labels {
			fmt.Fprintf(w, "       %s\n", l)
		}
	}
}

// Report is the JSON form of a run. Node ids are resolved to labels so the
// report stands on its own.
type Report struct {
	RunID    string                 `json:"runId"`
	Graph    graph.Stats            `json:"graph"`
	Events   builder.Stats          `json:"events"`
	Dispatch listener.Stats         `json:"dispatch"`
	Counts   map[string]int         `json:"counts,omitempty"`
	Maps     map[string][]Entry     `json:"maps,omitempty"`
	Cycles   []cycles.RecursiveFlow `json:"cycles,omitempty"`
	Nodes    map[int64]string       `json:"nodes,omitempty"`
	Elapsed  string                 `json:"elapsed"`
}

// Entry is one key of a solution map with its bound node ids
type Entry struct {
	Key int64   `json:"key"`
	IDs []int64 `json:"ids"`
}

// NewReport converts a run result
func NewReport(res *analysis.Result) *Report {
	r := &Report{
		RunID:    res.RunID,
		Graph:    res.Graph,
		Events:   res.Events,
		Dispatch: res.Dispatch,
		Elapsed:  res.Elapsed.String(),
		Nodes:    make(map[int64]string),
	}
	label := func(id int64) {
		if _, ok := r.Nodes[id]; !ok {
			r.Nodes[id] = res.Store.Label(id)
		}
	}

	if sol := res.Solution; sol != nil {
		r.Counts = sol.Counts()
		r.Maps = make(map[string][]Entry, len(solver.MapNames))
		for _, name := range solver.MapNames {
			b, _ := sol.Map(name)
			entries := make([]Entry, 0, len(b))
			for _, key := range b.Keys() {
				entries = append(entries, Entry{Key: key, IDs: b[key]})
				label(key)
				for _, id := range b[key] {
					label(id)
				}
			}
			r.Maps[name] = entries
		}
	}
	r.Cycles = res.Cycles
	return r
}

// WriteJSON writes the JSON report of a run
func WriteJSON(w io.Writer, res *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(res))
}
