package annotate

import (
	"testing"

	"github.com/biocohort/cnv/cnv"
	"github.com/grailbio/testutil/expect"
)

// passingRecord clears every default filter rule.
func passingRecord(id string) cnv.Record {
	return cnv.Record{
		ID:             id,
		Chrom:          "chr1",
		Start:          10000,
		End:            20000,
		Type:           cnv.DEL,
		Qual:           50,
		CopyNumber:     1,
		BinSupport:     0.9,
		CopyRatio:      0.4,
		Classification: "Uncertain significance",
		BrainGenes:     "GENE2",
		IsRare:         true,
		IsLong:         true,
	}
}

func filteredIDs(recs []cnv.Record) []string {
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestFilterDefaults(t *testing.T) {
	short := passingRecord("short")
	short.End = short.Start + 500
	lowQual := passingRecord("lowqual")
	lowQual.Qual = 9.5
	lowBin := passingRecord("lowbin")
	lowBin.BinSupport = 0.1
	diploid := passingRecord("diploid")
	diploid.CopyRatio = 1.1
	chrY := passingRecord("chry")
	chrY.Chrom = "chrY"
	benign := passingRecord("benign")
	benign.Classification = "Benign"

	recs := []cnv.Record{short, passingRecord("keep1"), lowQual, lowBin,
		diploid, chrY, benign, passingRecord("keep2")}
	out := Filter(recs, DefaultFilterOpts)
	expect.EQ(t, filteredIDs(out), []string{"keep1", "keep2"})

	// Rules are independently switchable.
	opts := DefaultFilterOpts
	opts.MinLen = 0
	out = Filter(recs, opts)
	expect.EQ(t, filteredIDs(out), []string{"short", "keep1", "keep2"})
}

func TestFilterBoundaries(t *testing.T) {
	atLen := passingRecord("atlen")
	atLen.Start, atLen.End = 1, 1000 // exactly MinLen bases
	atQual := passingRecord("atqual")
	atQual.Qual = 10
	atBand := passingRecord("atband")
	atBand.CopyRatio = 0.8 // on the band edge, still indistinguishable

	out := Filter([]cnv.Record{atLen, atQual, atBand}, DefaultFilterOpts)
	expect.EQ(t, filteredIDs(out), []string{"atlen", "atqual"})
}

func TestFilterFailClosed(t *testing.T) {
	noBin := passingRecord("nobin")
	noBin.BinSupport = -1
	noRatio := passingRecord("noratio")
	noRatio.CopyRatio = -1
	unclassified := passingRecord("unclassified")
	unclassified.Classification = ""

	recs := []cnv.Record{noBin, noRatio, unclassified}
	out := Filter(recs, DefaultFilterOpts)
	expect.EQ(t, len(out), 0)

	// With the consulting rules off the same records sail through.
	opts := DefaultFilterOpts
	opts.MinBinSupport = 0
	opts.CopyRatioBand = 0
	opts.DropBenign = false
	out = Filter(recs, opts)
	expect.EQ(t, filteredIDs(out), []string{"nobin", "noratio", "unclassified"})
}

func TestFilterKeepOnly(t *testing.T) {
	common := passingRecord("common")
	common.IsRare = false
	shortish := passingRecord("shortish")
	shortish.IsLong = false
	noBrain := passingRecord("nobrain")
	noBrain.BrainGenes = cnv.NoneFound
	unannotated := passingRecord("unannotated")
	unannotated.BrainGenes = ""

	recs := []cnv.Record{common, shortish, noBrain, unannotated, passingRecord("keep")}
	opts := DefaultFilterOpts
	opts.RequireRare = true
	opts.RequireLong = true
	opts.RequireBrain = true
	out := Filter(recs, opts)
	expect.EQ(t, filteredIDs(out), []string{"keep"})
}

func TestFilterDisabled(t *testing.T) {
	bad := passingRecord("awful")
	bad.Qual = 0
	bad.BinSupport = -1
	bad.Chrom = "chrY"
	bad.Classification = "Benign"
	out := Filter([]cnv.Record{bad}, FilterOpts{})
	expect.EQ(t, filteredIDs(out), []string{"awful"})
}
