// Package interval provides closed 1-based genomic intervals, overlap
// predicates, and per-chromosome reference tables supporting fast overlap
// queries.
package interval

// An Interval is a closed 1-based genomic range: Start and End are both
// included, so a single-base interval has Start == End.
type Interval struct {
	Chrom string
	Start int64
	End   int64
}

// Len returns the number of bases the interval covers.
func (i Interval) Len() int64 { return i.End - i.Start + 1 }

// Overlaps reports whether a and b share at least one base.  Intervals on
// different chromosomes never overlap, and neither do adjacent intervals
// (a.End+1 == b.Start).
func Overlaps(a, b Interval) bool {
	return a.Chrom == b.Chrom && a.Start <= b.End && a.End >= b.Start
}

// OverlapLen returns the number of bases shared by a and b, zero when
// disjoint.
func OverlapLen(a, b Interval) int64 {
	if !Overlaps(a, b) {
		return 0
	}
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	return hi - lo + 1
}

// ReciprocalOverlap returns the smaller of the two overlap fractions, which
// is the largest threshold for which ReciprocalAtLeast(a, b, t) holds.
func ReciprocalOverlap(a, b Interval) float64 {
	ov := OverlapLen(a, b)
	if ov == 0 {
		return 0
	}
	fa := float64(ov) / float64(a.Len())
	fb := float64(ov) / float64(b.Len())
	if fa < fb {
		return fa
	}
	return fb
}

// ReciprocalAtLeast reports whether the shared bases cover at least fraction
// t of a and also at least fraction t of b.
func ReciprocalAtLeast(a, b Interval, t float64) bool {
	ov := OverlapLen(a, b)
	if ov == 0 {
		return false
	}
	return float64(ov) >= t*float64(a.Len()) && float64(ov) >= t*float64(b.Len())
}

// An Entry is one reference-table row: an interval plus its label (a
// cytoband name, a gene symbol, or similar).
type Entry struct {
	Interval
	Label string
}
