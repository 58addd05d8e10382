package workflow

// StageGraph answers dependency questions over a stage list. The adjacency
// map is rebuilt per call; callers that cache a graph must discard it when
// any stage's dependency list changes.
type StageGraph struct {
	stages []*Stage
}

// NewStageGraph builds a graph view over the given stages. The slice is not
// copied; the graph reads whatever the stages currently say.
func NewStageGraph(stages []*Stage) *StageGraph {
	return &StageGraph{stages: stages}
}

// Stage returns the stage with the given id.
func (g *StageGraph) Stage(id string) (*Stage, bool) {
	for _, st := range g.stages {
		if st.ID == id {
			return st, true
		}
	}
	return nil, false
}

// TransitiveDependents returns every stage that directly or transitively
// depends on stageID. The result is deduplicated; order follows the plan's
// stage order, which keeps output stable but carries no semantic meaning.
func (g *StageGraph) TransitiveDependents(stageID string) []string {
	// Forward adjacency: stage -> stages that declare it as a dependency.
	forward := make(map[string][]string)
	for _, st := range g.stages {
		for _, dep := range st.DependsOn {
			forward[dep] = append(forward[dep], st.ID)
		}
	}

	seen := make(map[string]bool)
	queue := []string{stageID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range forward[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}

	var out []string
	for _, st := range g.stages {
		if seen[st.ID] {
			out = append(out, st.ID)
		}
	}
	return out
}

// Ready reports whether every dependency of the stage has completed
// (successfully or partially). Failed, invalidated, or pending dependencies
// keep the stage unready.
func (g *StageGraph) Ready(stageID string) bool {
	st, ok := g.Stage(stageID)
	if !ok {
		return false
	}
	for _, dep := range st.DependsOn {
		d, ok := g.Stage(dep)
		if !ok {
			return false
		}
		switch d.Status {
		case StatusCompletedSuccess, StatusCompletedPartial:
		default:
			return false
		}
	}
	return true
}

// NextRunnable returns the first unarchived stage, in plan order, that is
// not started (or needs a rerun) and whose dependencies are satisfied.
func (g *StageGraph) NextRunnable() (*Stage, bool) {
	for _, st := range g.stages {
		if st.Archived {
			continue
		}
		switch st.Status {
		case StatusNotStarted, StatusNeedsRerun:
			if g.Ready(st.ID) {
				return st, true
			}
		}
	}
	return nil, false
}
