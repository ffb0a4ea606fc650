package taskgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// RunOpts controls Run.
type RunOpts struct {
	// Force runs every resolved task even when its outputs are up to date.
	Force bool
}

// Stats summarizes one Run invocation.
type Stats struct {
	// Ran counts tasks whose action executed.
	Ran int
	// Skipped counts tasks that were up to date.
	Skipped int
}

// Run brings targets up to date.  Tasks execute sequentially in resolved
// order.  A task runs when an output is missing, when an input is strictly
// newer than an output, or when one of its producers ran earlier in the same
// invocation; otherwise it is skipped.  The first failure aborts the run and
// no downstream task executes.
func (g *Graph) Run(ctx context.Context, targets []string, opts RunOpts) (Stats, error) {
	order, err := g.ResolveOrder(ctx, targets)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	ran := make(map[*Task]bool, len(order))
	for _, t := range order {
		if !opts.Force && !g.stale(ctx, t, ran) {
			stats.Skipped++
			log.Debug.Printf("%s: outputs up to date, skipping", t.Name)
			continue
		}
		for _, in := range t.Inputs {
			if _, err := file.Stat(ctx, in); err != nil {
				return stats, &MissingArtifactError{Task: t.Name, Path: in}
			}
		}
		log.Printf("%s: running (%d inputs, %d outputs)", t.Name, len(t.Inputs), len(t.Outputs))
		start := time.Now()
		if err := t.Action(ctx); err != nil {
			return stats, fmt.Errorf("task %s: %v", t.Name, err)
		}
		for _, out := range t.Outputs {
			if _, err := file.Stat(ctx, out); err != nil {
				return stats, &ContractViolationError{Task: t.Name, Path: out}
			}
		}
		log.Printf("%s: done in %v", t.Name, time.Since(start))
		ran[t] = true
		stats.Ran++
	}
	log.Printf("Stats: %d of %d tasks ran, %d up to date", stats.Ran, len(order), stats.Skipped)
	return stats, nil
}

// stale reports whether t must run.  A stat failure on an input counts as
// stale; the caller then surfaces the missing path as MissingArtifactError.
// Equal input and output mtimes count as fresh, as with make.
func (g *Graph) stale(ctx context.Context, t *Task, ran map[*Task]bool) bool {
	for _, in := range t.Inputs {
		if p, ok := g.producer[in]; ok && ran[p] {
			return true
		}
	}
	var oldestOut time.Time
	for i, out := range t.Outputs {
		info, err := file.Stat(ctx, out)
		if err != nil {
			return true
		}
		if i == 0 || info.ModTime().Before(oldestOut) {
			oldestOut = info.ModTime()
		}
	}
	for _, in := range t.Inputs {
		info, err := file.Stat(ctx, in)
		if err != nil {
			return true
		}
		if info.ModTime().After(oldestOut) {
			return true
		}
	}
	return false
}
