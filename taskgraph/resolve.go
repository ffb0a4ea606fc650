package taskgraph

import (
	"context"

	"github.com/grailbio/base/file"
)

// ResolveOrder returns the tasks needed to bring targets up to date, in
// execution order: every producer precedes its consumers and ties are broken
// by registration order, so the result is identical across calls.  Empty
// targets resolve the whole graph.
//
// A target or input that no task produces must already exist on disk,
// otherwise resolution fails with UnknownDependencyError.  A dependency
// cycle fails with CycleError.
func (g *Graph) ResolveOrder(ctx context.Context, targets []string) ([]*Task, error) {
	needed, err := g.neededTasks(ctx, targets)
	if err != nil {
		return nil, err
	}
	// Source inputs (no producer) must exist before any task runs.  Checked
	// in registration order so the first failure is deterministic.
	for _, t := range g.tasks {
		if !needed[t] {
			continue
		}
		for _, in := range t.Inputs {
			if _, ok := g.producer[in]; ok {
				continue
			}
			if _, err := file.Stat(ctx, in); err != nil {
				return nil, &UnknownDependencyError{Task: t.Name, Path: in}
			}
		}
	}
	// Kahn's algorithm, rescanning from the earliest registration each pick,
	// so ready ties always resolve to the earliest-registered task.
	done := make(map[*Task]bool, len(needed))
	order := make([]*Task, 0, len(needed))
	for len(order) < len(needed) {
		var picked *Task
		for _, t := range g.tasks {
			if !needed[t] || done[t] {
				continue
			}
			ready := true
			for _, in := range t.Inputs {
				if p, ok := g.producer[in]; ok && !done[p] {
					ready = false
					break
				}
			}
			if ready {
				picked = t
				break
			}
		}
		if picked == nil {
			return nil, g.findCycle(needed, done)
		}
		done[picked] = true
		order = append(order, picked)
	}
	return order, nil
}

// neededTasks returns the transitive closure of producers for targets, or
// every task when targets is empty.  A target that nothing produces is
// acceptable only if it already exists on disk.
func (g *Graph) neededTasks(ctx context.Context, targets []string) (map[*Task]bool, error) {
	needed := make(map[*Task]bool)
	if len(targets) == 0 {
		for _, t := range g.tasks {
			needed[t] = true
		}
		return needed, nil
	}
	var queue []*Task
	enqueue := func(t *Task) {
		if !needed[t] {
			needed[t] = true
			queue = append(queue, t)
		}
	}
	for _, path := range targets {
		p, ok := g.producer[path]
		if !ok {
			if _, err := file.Stat(ctx, path); err != nil {
				return nil, &UnknownDependencyError{Path: path}
			}
			continue
		}
		enqueue(p)
	}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, in := range t.Inputs {
			if p, ok := g.producer[in]; ok {
				enqueue(p)
			}
		}
	}
	return needed, nil
}

// findCycle reports the cycle that stalled a topological sort.  Every
// unfinished task waits on another unfinished task, so following first unmet
// dependencies from any of them must revisit a task.
func (g *Graph) findCycle(needed, done map[*Task]bool) error {
	var start *Task
	for _, t := range g.tasks {
		if needed[t] && !done[t] {
			start = t
			break
		}
	}
	if start == nil {
		return &CycleError{}
	}
	pos := make(map[*Task]int)
	var path []*Task
	for t := start; ; {
		if at, ok := pos[t]; ok {
			cycle := path[at:]
			// Start the report at the earliest-registered member so the
			// message is stable no matter where the walk entered the cycle.
			first := 0
			for i, c := range cycle {
				if c.index < cycle[first].index {
					first = i
				}
			}
			names := make([]string, 0, len(cycle))
			for i := range cycle {
				names = append(names, cycle[(first+i)%len(cycle)].Name)
			}
			return &CycleError{Tasks: names}
		}
		pos[t] = len(path)
		path = append(path, t)
		next := (*Task)(nil)
		for _, in := range t.Inputs {
			if p, ok := g.producer[in]; ok && !done[p] {
				next = p
				break
			}
		}
		if next == nil {
			// Cannot happen on a stalled sort; bail rather than loop.
			return &CycleError{Tasks: []string{t.Name}}
		}
		t = next
	}
}
