package solver

import (
	"sort"

	"github.com/SNTSVV/Extended-Gator/pkg/graph"
)

// Bindings maps a key node to the sorted ids bound to it. For the
// solution and reaching maps the key is an operation; for the reached maps
// the key is a producing operation and the values are the operations it
// reaches.
type Bindings map[int64][]int64

// Contains reports whether id is bound to key
func (b Bindings) Contains(key, id int64) bool {
	ids := b[key]
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	return i < len(ids) && ids[i] == id
}

// Keys returns the bound keys in ascending order
func (b Bindings) Keys() []int64 {
	keys := make([]int64, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Pairs returns the number of (key, id) pairs
func (b Bindings) Pairs() int {
	n := 0
	for _, ids := range b {
		n += len(ids)
	}
	return n
}

// Solution is the frozen result of one solve
type Solution struct {
	SolutionReceivers  Bindings `json:"solutionReceivers"`
	SolutionParameters Bindings `json:"solutionParameters"`
	SolutionListeners  Bindings `json:"solutionListeners"`

	ReachingWindows        Bindings `json:"reachingWindows"`
	ReachingReceiverViews  Bindings `json:"reachingReceiverViews"`
	ReachingParameterViews Bindings `json:"reachingParameterViews"`
	ReachingListeners      Bindings `json:"reachingListeners"`

	ReachedReceiverViews  Bindings `json:"reachedReceiverViews"`
	ReachedParameterViews Bindings `json:"reachedParameterViews"`
	ReachedListeners      Bindings `json:"reachedListeners"`
}

// MapNames lists the solution maps in report order
var MapNames = []string{
	"solutionReceivers",
	"solutionParameters",
	"solutionListeners",
	"reachingWindows",
	"reachingReceiverViews",
	"reachingParameterViews",
	"reachingListeners",
	"reachedReceiverViews",
	"reachedParameterViews",
	"reachedListeners",
}

// Map returns a solution map by its report name
func (s *Solution) Map(name string) (Bindings, bool) {
	switch name {
	case "solutionReceivers":
		return s.SolutionReceivers, true
	case "solutionParameters":
		return s.SolutionParameters, true
	case "solutionListeners":
		return s.SolutionListeners, true
	case "reachingWindows":
		return s.ReachingWindows, true
	case "reachingReceiverViews":
		return s.ReachingReceiverViews, true
	case "reachingParameterViews":
		return s.ReachingParameterViews, true
	case "reachingListeners":
		return s.ReachingListeners, true
	case "reachedReceiverViews":
		return s.ReachedReceiverViews, true
	case "reachedParameterViews":
		return s.ReachedParameterViews, true
	case "reachedListeners":
		return s.ReachedListeners, true
	}
	return nil, false
}

// Counts returns the number of pairs in every map
func (s *Solution) Counts() map[string]int {
	out := make(map[string]int, len(MapNames))
	for _, name := range MapNames {
		b, _ := s.Map(name)
		out[name] = b.Pairs()
	}
	return out
}

// relation accumulates set-valued bindings while a solve is running
type relation map[int64]graph.NodeSet

func (r relation) add(key, id int64) bool {
	set, ok := r[key]
	if !ok {
		set = make(graph.NodeSet)
		r[key] = set
	}
	return set.Add(id)
}

func (r relation) has(key, id int64) bool {
	return r[key].Has(id)
}

func (r relation) freeze() Bindings {
	out := make(Bindings, len(r))
	for k, set := range r {
		out[k] = set.Sorted()
	}
	return out
}

// state holds the relations of one solve
type state struct {
	solutionReceivers  relation
	solutionParameters relation
	solutionListeners  relation

	reachingWindows        relation
	reachingReceiverViews  relation
	reachingParameterViews relation
	reachingListeners      relation

	reachedReceiverViews  relation
	reachedParameterViews relation
	reachedListeners      relation
}

func newState() *state {
	return &state{
		solutionReceivers:      make(relation),
		solutionParameters:     make(relation),
		solutionListeners:      make(relation),
		reachingWindows:        make(relation),
		reachingReceiverViews:  make(relation),
		reachingParameterViews: make(relation),
		reachingListeners:      make(relation),
		reachedReceiverViews:   make(relation),
		reachedParameterViews:  make(relation),
		reachedListeners:       make(relation),
	}
}

func (st *state) freeze() *Solution {
	return &Solution{
		SolutionReceivers:      st.solutionReceivers.freeze(),
		SolutionParameters:     st.solutionParameters.freeze(),
		SolutionListeners:      st.solutionListeners.freeze(),
		ReachingWindows:        st.reachingWindows.freeze(),
		ReachingReceiverViews:  st.reachingReceiverViews.freeze(),
		ReachingParameterViews: st.reachingParameterViews.freeze(),
		ReachingListeners:      st.reachingListeners.freeze(),
		ReachedReceiverViews:   st.reachedReceiverViews.freeze(),
		ReachedParameterViews:  st.reachedParameterViews.freeze(),
		ReachedListeners:       st.reachedListeners.freeze(),
	}
}
