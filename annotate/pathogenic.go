package annotate

import (
	"github.com/biocohort/cnv/cnv"
	"github.com/biocohort/cnv/interval"
	"github.com/grailbio/base/log"
)

// ExcludePathogenic removes every record that coordinate-overlaps a known
// pathogenic call of the same individual and type.  The pathogenic set is
// typically small (curated classifier output plus literature calls), so a
// per-individual scan suffices.  The input order of the survivors is kept.
func ExcludePathogenic(recs, pathogenic []cnv.Record) []cnv.Record {
	known := make(map[string][]cnv.Record, len(pathogenic))
	for _, p := range pathogenic {
		known[p.ID] = append(known[p.ID], p)
	}

	out := make([]cnv.Record, 0, len(recs))
	for _, r := range recs {
		if overlapsPathogenic(&r, known[r.ID]) {
			continue
		}
		out = append(out, r)
	}
	log.Printf("Stats: %d of %d remaining after removing known pathogenic overlaps",
		len(out), len(recs))
	return out
}

func overlapsPathogenic(r *cnv.Record, known []cnv.Record) bool {
	q := r.Interval()
	for i := range known {
		if known[i].Type == r.Type && interval.Overlaps(q, known[i].Interval()) {
			return true
		}
	}
	return false
}
