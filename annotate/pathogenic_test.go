package annotate

import (
	"testing"

	"github.com/biocohort/cnv/cnv"
	"github.com/grailbio/testutil/expect"
)

func TestExcludePathogenic(t *testing.T) {
	pathogenic := []cnv.Record{
		{ID: "s1", Chrom: "chr1", Start: 1000, End: 2000, Type: cnv.DEL},
		{ID: "s2", Chrom: "chr5", Start: 100, End: 200, Type: cnv.DUP},
	}
	recs := []cnv.Record{
		// Same individual, same type, one-base overlap: excluded.
		{ID: "s1", Chrom: "chr1", Start: 2000, End: 3000, Type: cnv.DEL},
		// Adjacent but not overlapping: kept.
		{ID: "s1", Chrom: "chr1", Start: 2001, End: 3000, Type: cnv.DEL},
		// Same coordinates, other individual: kept.
		{ID: "s3", Chrom: "chr1", Start: 1000, End: 2000, Type: cnv.DEL},
		// Same coordinates, other type: kept.
		{ID: "s1", Chrom: "chr1", Start: 1000, End: 2000, Type: cnv.DUP},
		// Same individual, other chromosome: kept.
		{ID: "s2", Chrom: "chr7", Start: 100, End: 200, Type: cnv.DUP},
		// Contained in the known call: excluded.
		{ID: "s2", Chrom: "chr5", Start: 150, End: 160, Type: cnv.DUP},
	}
	out := ExcludePathogenic(recs, pathogenic)
	expect.EQ(t, filteredIDs(out), []string{"s1", "s3", "s1", "s2"})
	expect.EQ(t, out[0].Start, int64(2001))
}

func TestExcludePathogenicEmpty(t *testing.T) {
	recs := []cnv.Record{{ID: "s1", Chrom: "chr1", Start: 1, End: 10, Type: cnv.DEL}}
	out := ExcludePathogenic(recs, nil)
	expect.EQ(t, out, recs)
}
