package cnv

import (
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// WriteBED writes records as a 4-column BED table (0-based half-open
// coordinates, variant type in the name column).  This is the hand-off
// format for external classifiers.
func WriteBED(w io.Writer, recs []Record) error {
	tw := tsv.NewWriter(w)
	for i := range recs {
		r := &recs[i]
		tw.WriteString(r.Chrom)
		tw.WriteInt64(r.Start - 1)
		tw.WriteInt64(r.End)
		tw.WriteString(string(r.Type))
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// BEDKey returns the identifier external classifiers derive for a record's
// BED row: chrom_start_end_type with BED coordinates.
func BEDKey(r *Record) string {
	return r.Chrom + "_" + strconv.FormatInt(r.Start-1, 10) + "_" +
		strconv.FormatInt(r.End, 10) + "_" + string(r.Type)
}
