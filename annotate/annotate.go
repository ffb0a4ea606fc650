// Package annotate implements the record transforms of the CNV pipeline:
// interval-overlap annotation, rarity flagging against a population database,
// hard filters, pathogenicity exclusion, per-individual aggregation and the
// clinical merge.
//
// Every transform is pure: it returns a fresh slice and leaves its input
// untouched, so pipeline tasks can compose them freely.  Annotation stages
// preserve row count and order; filtering stages only ever remove rows.
package annotate

import (
	"sort"
	"strings"

	"github.com/biocohort/cnv/cnv"
	"github.com/biocohort/cnv/interval"
	"github.com/grailbio/base/log"
)

// Cytobands fills the Cytoband column from a band table (see
// interval.ReadCytobands).  Overlapped bands are collapsed to a range label:
// "1p36.33" for a single band, "1p36.33-p36.32" when the record spans
// several.  Records overlapping no band get the none marker.
func Cytobands(recs []cnv.Record, bands *interval.Table) []cnv.Record {
	out := append([]cnv.Record(nil), recs...)
	for i := range out {
		hits := bands.Overlapping(out[i].Interval())
		out[i].Cytoband = cytobandLabel(out[i].Chrom, hits)
	}
	return out
}

// cytobandLabel renders overlapped bands.  hits are sorted by start position,
// so the first and last entries bound the spanned range.
func cytobandLabel(chrom string, hits []interval.Entry) string {
	if len(hits) == 0 {
		return cnv.NoneFound
	}
	num := strings.TrimPrefix(chrom, "chr")
	if len(hits) == 1 {
		return num + hits[0].Label
	}
	return num + hits[0].Label + "-" + hits[len(hits)-1].Label
}

// Genes fills the Genes column with the labels of all overlapped entries of
// the gene table, LabelSep-joined in table order with duplicates collapsed.
// Records overlapping no gene get the none marker.
func Genes(recs []cnv.Record, genes *interval.Table) []cnv.Record {
	out := append([]cnv.Record(nil), recs...)
	for i := range out {
		hits := genes.Overlapping(out[i].Interval())
		labels := make([]string, 0, len(hits))
		seen := make(map[string]bool, len(hits))
		for _, h := range hits {
			if h.Label == "" || seen[h.Label] {
				continue
			}
			seen[h.Label] = true
			labels = append(labels, h.Label)
		}
		out[i].Genes = JoinLabels(labels)
	}
	return out
}

// Brain fills BrainGenes with the overlapped genes found in the
// brain-expressed set and sets OnlyBrain when every overlapped gene is brain
// expressed.  Genes must have run first; records not yet gene-annotated get
// the none marker and a false flag.
func Brain(recs []cnv.Record, brain GeneSet) []cnv.Record {
	out := append([]cnv.Record(nil), recs...)
	for i := range out {
		all := SplitLabels(out[i].Genes)
		matched := intersect(all, brain)
		out[i].BrainGenes = JoinLabels(matched)
		out[i].OnlyBrain = len(matched) > 0 && len(matched) == len(all)
	}
	return out
}

// Dosage fills DosageGenes with the overlapped genes found in the
// dosage-sensitivity set.  Genes must have run first.
func Dosage(recs []cnv.Record, dosage GeneSet) []cnv.Record {
	out := append([]cnv.Record(nil), recs...)
	for i := range out {
		out[i].DosageGenes = JoinLabels(intersect(SplitLabels(out[i].Genes), dosage))
	}
	return out
}

func intersect(labels []string, set GeneSet) []string {
	var hits []string
	for _, l := range labels {
		if set[l] {
			hits = append(hits, l)
		}
	}
	return hits
}

// Long sets IsLong on records spanning more than minLen bases.
func Long(recs []cnv.Record, minLen int64) []cnv.Record {
	out := append([]cnv.Record(nil), recs...)
	n := 0
	for i := range out {
		out[i].IsLong = out[i].Len() > minLen
		if out[i].IsLong {
			n++
		}
	}
	log.Printf("Stats: %d of %d records longer than %d bases", n, len(out), minLen)
	return out
}

// JoinLabels renders a label list as an annotation column value: the none
// marker when empty, the LabelSep join otherwise.
func JoinLabels(labels []string) string {
	if len(labels) == 0 {
		return cnv.NoneFound
	}
	return strings.Join(labels, cnv.LabelSep)
}

// SplitLabels is the inverse of JoinLabels: it returns nil for the none
// marker, the not-yet-annotated empty string, and anything in between.
func SplitLabels(s string) []string {
	if s == "" || s == cnv.NoneFound {
		return nil
	}
	return strings.Split(s, cnv.LabelSep)
}

// sortedUnion flattens a label set into a sorted slice.
func sortedUnion(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
