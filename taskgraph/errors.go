package taskgraph

import (
	"fmt"
	"strings"
)

// DuplicateOutputError reports two registrations claiming the same output
// path.  Register returns it before any task has run.
type DuplicateOutputError struct {
	Path          string
	First, Second string // task names, registration order
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("taskgraph: output %q claimed by both task %q and task %q", e.Path, e.First, e.Second)
}

// UnknownDependencyError reports a path that no registered task produces and
// that does not exist on disk.  Task is empty when the path was requested
// directly as a target.
type UnknownDependencyError struct {
	Task string
	Path string
}

func (e *UnknownDependencyError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("taskgraph: target %q is not produced by any task and does not exist", e.Path)
	}
	return fmt.Sprintf("taskgraph: input %q of task %q is not produced by any task and does not exist", e.Path, e.Task)
}

// CycleError reports a dependency cycle.  Tasks lists the members of one
// cycle starting from its earliest-registered member.
type CycleError struct {
	Tasks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("taskgraph: dependency cycle: %s", strings.Join(e.Tasks, " -> "))
}

// ContractViolationError reports a task whose action reported success
// without creating a declared output.
type ContractViolationError struct {
	Task string
	Path string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("taskgraph: task %q succeeded without creating declared output %q", e.Task, e.Path)
}

// MissingArtifactError reports an input that was gone when its consumer was
// about to run.
type MissingArtifactError struct {
	Task string
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("taskgraph: task %q requires missing artifact %q", e.Task, e.Path)
}
