// Package taskgraph is a small file-based build system.  Tasks declare the
// artifact paths they read and the paths they promise to produce, plus an
// action that produces them.  The graph orders tasks so producers run before
// consumers, decides staleness from file modification times, and runs only
// what is needed to bring the requested targets up to date.
package taskgraph

import (
	"context"
	"fmt"
)

// Task is one node of the graph.  Tasks are immutable once registered.
type Task struct {
	// Name uniquely identifies the task within a Graph.
	Name string
	// Inputs are the artifact paths the action reads.  An input is either
	// produced by another registered task or must already exist on disk when
	// the run starts.
	Inputs []string
	// Outputs are the artifact paths the action promises to create.  Every
	// output path is owned by exactly one task.
	Outputs []string
	// Action produces every path in Outputs.  It runs only when the task is
	// stale.
	Action func(ctx context.Context) error

	index int // registration order, breaks scheduling ties
}

// Graph accumulates task registrations and resolves them into a runnable
// order.  Methods are not safe for concurrent use.
type Graph struct {
	tasks    []*Task
	byName   map[string]*Task
	producer map[string]*Task // output path -> owner
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		byName:   make(map[string]*Task),
		producer: make(map[string]*Task),
	}
}

// Register adds a task to the graph.  It fails if the name is empty or
// already taken, if the task declares no output or a nil action, or if an
// output path is already owned by an earlier registration
// (DuplicateOutputError).  The task is copied; later changes to the caller's
// slices have no effect.
func (g *Graph) Register(t Task) error {
	if t.Name == "" {
		return fmt.Errorf("taskgraph: task with outputs %v has empty name", t.Outputs)
	}
	if _, ok := g.byName[t.Name]; ok {
		return fmt.Errorf("taskgraph: task %q registered twice", t.Name)
	}
	if len(t.Outputs) == 0 {
		return fmt.Errorf("taskgraph: task %q declares no outputs", t.Name)
	}
	if t.Action == nil {
		return fmt.Errorf("taskgraph: task %q has nil action", t.Name)
	}
	seen := make(map[string]bool, len(t.Outputs))
	for _, out := range t.Outputs {
		if seen[out] {
			return &DuplicateOutputError{Path: out, First: t.Name, Second: t.Name}
		}
		seen[out] = true
		if owner, ok := g.producer[out]; ok {
			return &DuplicateOutputError{Path: out, First: owner.Name, Second: t.Name}
		}
	}
	c := &Task{
		Name:    t.Name,
		Inputs:  append([]string(nil), t.Inputs...),
		Outputs: append([]string(nil), t.Outputs...),
		Action:  t.Action,
		index:   len(g.tasks),
	}
	for _, out := range c.Outputs {
		g.producer[out] = c
	}
	g.byName[c.Name] = c
	g.tasks = append(g.tasks, c)
	return nil
}

// NumTasks returns the number of registered tasks.
func (g *Graph) NumTasks() int { return len(g.tasks) }

// Producer returns the task owning the given output path, or nil.
func (g *Graph) Producer(path string) *Task { return g.producer[path] }
