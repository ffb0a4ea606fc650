package cnv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testRecords() []Record {
	return []Record{
		{
			ID: "HG101", Chrom: "chr1", Start: 1000, End: 2000, Type: DEL,
			Qual: 37.5, CopyNumber: 1, BinSupport: 0.9, CopyRatio: 0.48,
		},
		{
			ID: "HG102", Chrom: "chr2", Start: 5000, End: 9000, Type: DUP,
			Qual: 12, CopyNumber: 3, BinSupport: 0.4, CopyRatio: 1.52,
			Classification: "Benign", Score: -0.8, Cytoband: "2q11.1",
			Genes: "A;B", BrainGenes: "B", DosageGenes: NoneFound,
			OnlyBrain: false, IsRare: true, IsLong: true,
		},
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	recs := testRecords()
	var buf bytes.Buffer
	assert.NoError(t, WriteRecords(&buf, recs))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	expect.EQ(t, len(lines), 3)
	expect.EQ(t, lines[0], strings.Join(Columns, "\t"))

	got, err := ReadRecords(bytes.NewReader(buf.Bytes()), "mem.tsv")
	assert.NoError(t, err)
	expect.EQ(t, got, recs)
}

func TestWriteRecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteRecords(&buf, nil))
	expect.EQ(t, buf.String(), strings.Join(Columns, "\t")+"\n")

	got, err := ReadRecords(bytes.NewReader(buf.Bytes()), "empty.tsv")
	assert.NoError(t, err)
	expect.EQ(t, len(got), 0)
}

func TestReadRecordsSchemaMismatch(t *testing.T) {
	// A header missing one column and carrying a stray one.
	cols := append([]string(nil), Columns...)
	cols[2] = "BOGUS" // replaces START
	in := strings.Join(cols, "\t") + "\n"
	_, err := ReadRecords(strings.NewReader(in), "drifted.tsv")
	serr, ok := err.(*SchemaMismatchError)
	if !ok {
		t.Fatalf("got %v, want SchemaMismatchError", err)
	}
	expect.EQ(t, serr.Path, "drifted.tsv")
	expect.EQ(t, serr.Missing, []string{"START"})
	expect.EQ(t, serr.Extra, []string{"BOGUS"})

	// Same column set in the wrong order is still a mismatch.
	cols = append([]string(nil), Columns...)
	cols[0], cols[1] = cols[1], cols[0]
	_, err = ReadRecords(strings.NewReader(strings.Join(cols, "\t")+"\n"), "shuffled.tsv")
	serr, ok = err.(*SchemaMismatchError)
	if !ok {
		t.Fatalf("got %v, want SchemaMismatchError", err)
	}
	expect.EQ(t, len(serr.Missing), 0)
	expect.EQ(t, len(serr.Extra), 0)
	expect.HasSubstr(t, serr.Error(), "out of order")

	// An empty file has no header at all.
	_, err = ReadRecords(strings.NewReader(""), "empty.tsv")
	serr, ok = err.(*SchemaMismatchError)
	if !ok {
		t.Fatalf("got %v, want SchemaMismatchError", err)
	}
	expect.EQ(t, serr.Missing, Columns)
}

func TestReadRecordsBadRow(t *testing.T) {
	in := strings.Join(Columns, "\t") + "\n" +
		"HG1\tchr1\tnot-a-number" + strings.Repeat("\tx", len(Columns)-3) + "\n"
	_, err := ReadRecords(strings.NewReader(in), "bad.tsv")
	if err == nil {
		t.Fatal("malformed row accepted")
	}
	expect.HasSubstr(t, err.Error(), "bad.tsv")
}
