package annotate

import (
	"fmt"
	"strings"

	"github.com/biocohort/cnv/cnv"
	"github.com/grailbio/base/log"
)

// benignClass is the classifier verdict the DropBenign rule removes.
const benignClass = "Benign"

// FilterOpts control the hard record filters.  Every rule is independently
// switchable; zero-valued thresholds and false toggles disable their rule.
// Active rules fail closed: a record lacking the value a rule consults is
// dropped, with accounting.
type FilterOpts struct {
	// MinLen drops records spanning fewer than MinLen bases.
	MinLen int64 `yaml:"min_len"`
	// MinQual drops records with caller quality below MinQual.
	MinQual float64 `yaml:"min_qual"`
	// MinBinSupport drops records whose supporting-bin fraction is below
	// MinBinSupport.
	MinBinSupport float64 `yaml:"min_bin_support"`
	// CopyRatioBand drops records whose depth ratio lies within
	// [1-band, 1+band], where the call is indistinguishable from diploid.
	CopyRatioBand float64 `yaml:"copy_ratio_band"`
	// ExcludeChroms drops records on any of the listed chromosomes.
	ExcludeChroms []string `yaml:"exclude_chroms"`
	// DropBenign drops records the external classifier called Benign.
	DropBenign bool `yaml:"drop_benign"`
	// RequireRare keeps only records flagged rare.
	RequireRare bool `yaml:"require_rare"`
	// RequireLong keeps only records flagged long.
	RequireLong bool `yaml:"require_long"`
	// RequireBrain keeps only records overlapping at least one
	// brain-expressed gene.
	RequireBrain bool `yaml:"require_brain"`
}

// DefaultFilterOpts sets the default values to FilterOpts.
var DefaultFilterOpts = FilterOpts{
	MinLen:        1000,
	MinQual:       10,
	MinBinSupport: 0.2,
	CopyRatioBand: 0.2,
	ExcludeChroms: []string{"chrY"},
	DropBenign:    true,
}

type filterRule struct {
	name   string
	active bool
	// missing reports an absent value the rule would need; such records are
	// dropped without consulting keep.
	missing func(*cnv.Record) bool
	keep    func(*cnv.Record) bool
}

// Filter applies the active rules in a fixed order, length through brain,
// each rule logging its removals.  The input is not modified.
func Filter(recs []cnv.Record, opts FilterOpts) []cnv.Record {
	excluded := make(map[string]bool, len(opts.ExcludeChroms))
	for _, c := range opts.ExcludeChroms {
		excluded[c] = true
	}
	rules := []filterRule{
		{
			name:   fmt.Sprintf("records shorter than %d bases", opts.MinLen),
			active: opts.MinLen > 0,
			keep:   func(r *cnv.Record) bool { return r.Len() >= opts.MinLen },
		},
		{
			name:   fmt.Sprintf("records with quality below %g", opts.MinQual),
			active: opts.MinQual > 0,
			keep:   func(r *cnv.Record) bool { return r.Qual >= opts.MinQual },
		},
		{
			name:    fmt.Sprintf("records with bin support below %g", opts.MinBinSupport),
			active:  opts.MinBinSupport > 0,
			missing: func(r *cnv.Record) bool { return r.BinSupport < 0 },
			keep:    func(r *cnv.Record) bool { return r.BinSupport >= opts.MinBinSupport },
		},
		{
			name:    fmt.Sprintf("records with copy ratio within %g of diploid", opts.CopyRatioBand),
			active:  opts.CopyRatioBand > 0,
			missing: func(r *cnv.Record) bool { return r.CopyRatio < 0 },
			keep: func(r *cnv.Record) bool {
				return r.CopyRatio < 1-opts.CopyRatioBand || r.CopyRatio > 1+opts.CopyRatioBand
			},
		},
		{
			name:   fmt.Sprintf("records on %s", strings.Join(opts.ExcludeChroms, ", ")),
			active: len(opts.ExcludeChroms) > 0,
			keep:   func(r *cnv.Record) bool { return !excluded[r.Chrom] },
		},
		{
			name:    "benign records",
			active:  opts.DropBenign,
			missing: func(r *cnv.Record) bool { return r.Classification == "" },
			keep:    func(r *cnv.Record) bool { return r.Classification != benignClass },
		},
		{
			name:   "non-rare records",
			active: opts.RequireRare,
			keep:   func(r *cnv.Record) bool { return r.IsRare },
		},
		{
			name:   "records below the long cutoff",
			active: opts.RequireLong,
			keep:   func(r *cnv.Record) bool { return r.IsLong },
		},
		{
			name:    "records without brain genes",
			active:  opts.RequireBrain,
			missing: func(r *cnv.Record) bool { return r.BrainGenes == "" },
			keep:    func(r *cnv.Record) bool { return r.BrainGenes != cnv.NoneFound },
		},
	}

	out := append([]cnv.Record(nil), recs...)
	for _, rule := range rules {
		if !rule.active {
			continue
		}
		n := len(out)
		nMissing, k := 0, 0
		for i := range out {
			if rule.missing != nil && rule.missing(&out[i]) {
				nMissing++
				continue
			}
			if !rule.keep(&out[i]) {
				continue
			}
			out[k] = out[i]
			k++
		}
		out = out[:k]
		msg := fmt.Sprintf("Stats: %d of %d remaining after removing %s", len(out), n, rule.name)
		if nMissing > 0 {
			msg += fmt.Sprintf(" (%d lacked the value)", nMissing)
		}
		log.Printf("%s", msg)
	}
	log.Printf("Stats: %d of %d records pass filters", len(out), len(recs))
	return out
}
