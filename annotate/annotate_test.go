package annotate

import (
	"testing"

	"github.com/biocohort/cnv/cnv"
	"github.com/biocohort/cnv/interval"
	"github.com/grailbio/testutil/expect"
)

func testBandTable() *interval.Table {
	return interval.NewTable([]interval.Entry{
		{Interval: interval.Interval{Chrom: "chr1", Start: 1, End: 2300000}, Label: "p36.33"},
		{Interval: interval.Interval{Chrom: "chr1", Start: 2300001, End: 5300000}, Label: "p36.32"},
		{Interval: interval.Interval{Chrom: "chr1", Start: 5300001, End: 7200000}, Label: "p36.31"},
		{Interval: interval.Interval{Chrom: "chr2", Start: 1, End: 1000}, Label: "p25.3"},
	})
}

func TestCytobands(t *testing.T) {
	recs := []cnv.Record{
		{ID: "s1", Chrom: "chr1", Start: 1000, End: 2000, Type: cnv.DEL},
		{ID: "s1", Chrom: "chr1", Start: 2000000, End: 6000000, Type: cnv.DUP},
		{ID: "s1", Chrom: "chr9", Start: 1, End: 100, Type: cnv.DEL},
	}
	out := Cytobands(recs, testBandTable())
	expect.EQ(t, out[0].Cytoband, "1p36.33")
	expect.EQ(t, out[1].Cytoband, "1p36.33-p36.31")
	expect.EQ(t, out[2].Cytoband, cnv.NoneFound)
	// The input slice stays untouched.
	expect.EQ(t, recs[0].Cytoband, "")
}

func testGeneTable() *interval.Table {
	return interval.NewTable([]interval.Entry{
		{Interval: interval.Interval{Chrom: "chr1", Start: 50, End: 120}, Label: "GENE1"},
		{Interval: interval.Interval{Chrom: "chr1", Start: 100, End: 200}, Label: "GENE1"},
		{Interval: interval.Interval{Chrom: "chr1", Start: 150, End: 300}, Label: "GENE2"},
		{Interval: interval.Interval{Chrom: "chr1", Start: 400, End: 500}, Label: ""},
	})
}

func TestGenes(t *testing.T) {
	recs := []cnv.Record{
		{Chrom: "chr1", Start: 100, End: 160},
		{Chrom: "chr1", Start: 250, End: 260},
		{Chrom: "chr1", Start: 390, End: 450}, // only the unlabeled entry
		{Chrom: "chr2", Start: 100, End: 160},
	}
	out := Genes(recs, testGeneTable())
	expect.EQ(t, out[0].Genes, "GENE1;GENE2")
	expect.EQ(t, out[1].Genes, "GENE2")
	expect.EQ(t, out[2].Genes, cnv.NoneFound)
	expect.EQ(t, out[3].Genes, cnv.NoneFound)
}

func TestBrain(t *testing.T) {
	brain := GeneSet{"GENE2": true, "GENE3": true}
	recs := []cnv.Record{
		{Genes: "GENE1;GENE2"},
		{Genes: "GENE2;GENE3"},
		{Genes: "GENE1"},
		{Genes: cnv.NoneFound},
		{Genes: ""}, // never gene annotated
	}
	out := Brain(recs, brain)
	expect.EQ(t, out[0].BrainGenes, "GENE2")
	expect.False(t, out[0].OnlyBrain)
	expect.EQ(t, out[1].BrainGenes, "GENE2;GENE3")
	expect.True(t, out[1].OnlyBrain)
	expect.EQ(t, out[2].BrainGenes, cnv.NoneFound)
	expect.False(t, out[2].OnlyBrain)
	expect.EQ(t, out[3].BrainGenes, cnv.NoneFound)
	expect.False(t, out[3].OnlyBrain)
	expect.EQ(t, out[4].BrainGenes, cnv.NoneFound)
	expect.False(t, out[4].OnlyBrain)
}

func TestDosage(t *testing.T) {
	out := Dosage([]cnv.Record{
		{Genes: "GENE1;GENE2"},
		{Genes: cnv.NoneFound},
	}, GeneSet{"GENE1": true})
	expect.EQ(t, out[0].DosageGenes, "GENE1")
	expect.EQ(t, out[1].DosageGenes, cnv.NoneFound)
}

func TestLong(t *testing.T) {
	out := Long([]cnv.Record{
		{Start: 1, End: 1000001}, // 1000001 bases
		{Start: 1, End: 1000000},
		{Start: 500, End: 600},
	}, 1000000)
	expect.True(t, out[0].IsLong)
	expect.False(t, out[1].IsLong)
	expect.False(t, out[2].IsLong)
}

func TestLabelRoundTrip(t *testing.T) {
	expect.EQ(t, JoinLabels(nil), cnv.NoneFound)
	expect.EQ(t, JoinLabels([]string{"A", "B"}), "A;B")
	expect.EQ(t, SplitLabels(""), []string(nil))
	expect.EQ(t, SplitLabels(cnv.NoneFound), []string(nil))
	expect.EQ(t, SplitLabels("A;B"), []string{"A", "B"})
}
