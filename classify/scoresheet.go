package classify

import (
	"context"
	"io"
	"strings"

	"github.com/biocohort/cnv/cnv"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// Verdict is one classifier call: the ACMG classification, its numeric
// score and the dosage-sensitive genes involved.  ID is the
// chrom_start_end_type key the tool derives from the BED row.
type Verdict struct {
	ID             string
	Classification string
	Score          float64
	// DosageGenes is a LabelSep-joined gene list, cnv.NoneFound when the
	// call touches none.
	DosageGenes string
}

// scoresheetRow picks the relevant columns out of the tool's wide
// scoresheet; the ACMG evidence columns between them are skipped.
type scoresheetRow struct {
	VariantID      string  `tsv:"VariantID"`
	Classification string  `tsv:"Classification"`
	Score          float64 `tsv:"Total score"`
	DosageGenes    string  `tsv:"Known or predicted dosage-sensitive genes"`
}

// ReadScoresheet parses a ClassifyCNV Scoresheet.txt.
func ReadScoresheet(ctx context.Context, path string) (verdicts []Verdict, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)

	tr := tsv.NewReader(in.Reader(ctx))
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	for {
		var row scoresheetRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "%s: row %d", path, len(verdicts)+2)
		}
		verdicts = append(verdicts, Verdict{
			ID:             row.VariantID,
			Classification: row.Classification,
			Score:          row.Score,
			DosageGenes:    normalizeGenes(row.DosageGenes),
		})
	}
	log.Printf("Read %d classifier verdicts from %s", len(verdicts), path)
	return verdicts, nil
}

// normalizeGenes rewrites the tool's comma-separated gene list onto
// LabelSep, cnv.NoneFound when empty.
func normalizeGenes(s string) string {
	genes := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	if len(genes) == 0 {
		return cnv.NoneFound
	}
	return strings.Join(genes, cnv.LabelSep)
}

// Merge joins verdicts onto records by BED key and returns the annotated
// copy.  Calls with identical coordinates and type share one verdict.
// Records the tool produced no verdict for keep an empty classification,
// which downstream filters treat as a missing value.
func Merge(recs []cnv.Record, verdicts []Verdict) []cnv.Record {
	byID := make(map[string]*Verdict, len(verdicts))
	for i := range verdicts {
		v := &verdicts[i]
		if _, ok := byID[v.ID]; !ok {
			byID[v.ID] = v
		}
	}
	out := append([]cnv.Record(nil), recs...)
	nMatched := 0
	for i := range out {
		r := &out[i]
		v, ok := byID[cnv.BEDKey(r)]
		if !ok {
			continue
		}
		nMatched++
		r.Classification = v.Classification
		r.Score = v.Score
		r.DosageGenes = v.DosageGenes
	}
	log.Printf("Stats: %d of %d records matched classifier verdicts", nMatched, len(out))
	return out
}
