package interval

import (
	"sort"

	biointerval "github.com/biogo/store/interval"
	"github.com/grailbio/base/log"
)

// tableEntry adapts an Entry to the biogo interval-tree element interface.
// Ranges are stored half open so the tree's pruning arithmetic holds; the
// closed End is restored on the way out.
type tableEntry struct {
	Entry
	id uintptr
}

func (e tableEntry) Overlap(b biointerval.IntRange) bool {
	return int(e.Start) < b.End && int(e.End)+1 > b.Start
}

func (e tableEntry) Range() biointerval.IntRange {
	return biointerval.IntRange{Start: int(e.Start), End: int(e.End) + 1}
}

func (e tableEntry) ID() uintptr { return e.id }

type query Interval

func (q query) Overlap(b biointerval.IntRange) bool {
	return int(q.Start) < b.End && int(q.End)+1 > b.Start
}

func (q query) Range() biointerval.IntRange {
	return biointerval.IntRange{Start: int(q.Start), End: int(q.End) + 1}
}

func (q query) ID() uintptr { return 0 }

// A Table indexes reference entries by chromosome for overlap queries.
// Build it once with NewTable; queries are read-only and safe for
// concurrent use.
type Table struct {
	trees map[string]*biointerval.IntTree
	n     int
}

// NewTable indexes entries.  The input slice is not retained.
func NewTable(entries []Entry) *Table {
	t := &Table{trees: make(map[string]*biointerval.IntTree)}
	for i, e := range entries {
		tree := t.trees[e.Chrom]
		if tree == nil {
			tree = &biointerval.IntTree{}
			t.trees[e.Chrom] = tree
		}
		if err := tree.Insert(tableEntry{Entry: e, id: uintptr(i)}, true); err != nil {
			log.Panicf("interval table: inserting %s:%d-%d: %v", e.Chrom, e.Start, e.End, err)
		}
		t.n++
	}
	for _, tree := range t.trees {
		tree.AdjustRanges()
	}
	return t
}

// Len returns the number of indexed entries.
func (t *Table) Len() int { return t.n }

// Overlapping returns every entry sharing at least one base with q, sorted
// by (Start, End, Label) so downstream label joins are deterministic.
func (t *Table) Overlapping(q Interval) []Entry {
	tree := t.trees[q.Chrom]
	if tree == nil {
		return nil
	}
	var out []Entry
	tree.DoMatching(func(e biointerval.IntInterface) bool {
		out = append(out, e.(tableEntry).Entry)
		return false
	}, query(q))
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].End != out[j].End {
			return out[i].End < out[j].End
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// AnyOverlapping reports whether at least one entry overlaps q.
func (t *Table) AnyOverlapping(q Interval) bool {
	tree := t.trees[q.Chrom]
	if tree == nil {
		return false
	}
	found := false
	tree.DoMatching(func(biointerval.IntInterface) bool {
		found = true
		return true
	}, query(q))
	return found
}
