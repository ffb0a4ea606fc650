// Package cnv defines the copy-number variant record shared by all pipeline
// stages and its delimited-text codecs.
package cnv

import (
	"reflect"
	"strings"

	"github.com/biocohort/cnv/interval"
	"github.com/grailbio/base/log"
)

// Type is the copy-number variant class.
type Type string

const (
	// DEL is a copy-number loss.
	DEL Type = "DEL"
	// DUP is a copy-number gain.
	DUP Type = "DUP"
)

// NoneFound marks an annotation column for which no reference entry
// overlapped the record.  It is never the empty string, so downstream stages
// can tell "annotated, nothing found" from "not annotated yet".
const NoneFound = "none found"

// LabelSep joins multiple labels within one annotation column.
const LabelSep = ";"

// Record is one CNV call plus its annotation columns.  The tsv tags define
// the artifact schema shared by every pipeline stage; annotation columns
// hold zero values until their stage has run.  Numeric caller metadata uses
// -1 for "not reported by the caller".
type Record struct {
	// ID identifies the individual (sample) the call belongs to.
	ID    string `tsv:"ID"`
	Chrom string `tsv:"CHROM"`
	// Start and End are 1-based and both included.
	Start int64 `tsv:"START"`
	End   int64 `tsv:"END"`
	Type  Type  `tsv:"TYPE"`
	// Qual is the caller's quality score.
	Qual float64 `tsv:"QUAL"`
	// CopyNumber is the caller's integer copy number, -1 when unreported.
	CopyNumber int64 `tsv:"COPY_NUMBER"`
	// BinSupport is the fraction of depth bins supporting the call, -1 when
	// unreported.
	BinSupport float64 `tsv:"BIN_SUPPORT"`
	// CopyRatio is the observed/expected depth ratio, -1 when unreported.
	CopyRatio float64 `tsv:"COPY_RATIO"`
	// Classification is the external classifier's verdict (for example
	// "Benign" or "Pathogenic"), empty until that stage runs.
	Classification string  `tsv:"CLASSIFICATION"`
	Score          float64 `tsv:"SCORE"`
	// Cytoband is the collapsed band range, for example "1p36.33-p36.32".
	Cytoband string `tsv:"CYTOBAND"`
	// Genes, BrainGenes and DosageGenes are LabelSep-joined gene symbols, or
	// NoneFound once annotated without a match.
	Genes       string `tsv:"GENES"`
	BrainGenes  string `tsv:"BRAIN_GENES"`
	DosageGenes string `tsv:"DOSAGE_GENES"`
	// OnlyBrain is true when every overlapped gene is brain expressed.
	OnlyBrain bool `tsv:"ONLY_BRAIN"`
	IsRare    bool `tsv:"IS_RARE"`
	IsLong    bool `tsv:"IS_LONG"`
}

// Len returns the number of bases the call covers.
func (r *Record) Len() int64 { return r.End - r.Start + 1 }

// Interval returns the record's genomic range.
func (r *Record) Interval() interval.Interval {
	return interval.Interval{Chrom: r.Chrom, Start: r.Start, End: r.End}
}

// Columns lists the artifact TSV columns in schema order.
var Columns = columns()

func columns() []string {
	t := reflect.TypeOf(Record{})
	out := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("tsv")
		if tag == "" {
			log.Panicf("cnv: field %s lacks a tsv tag", t.Field(i).Name)
		}
		out = append(out, tag)
	}
	return out
}

// NormalizeChrom returns name with the conventional "chr" prefix.
func NormalizeChrom(name string) string {
	if strings.HasPrefix(name, "chr") {
		return name
	}
	return "chr" + name
}

// ParseType converts a caller's variant class token, accepting the bracketed
// VCF ALT forms "<DEL>" and "<DUP>".
func ParseType(s string) (Type, bool) {
	switch strings.Trim(s, "<>") {
	case string(DEL):
		return DEL, true
	case string(DUP):
		return DUP, true
	}
	return "", false
}
