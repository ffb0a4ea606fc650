package annotate

import (
	"context"
	"io"

	"github.com/biocohort/cnv/cnv"
	"github.com/biocohort/cnv/interval"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// VarType is the direction of a population variant.
type VarType string

const (
	// Gain marks copy-number gains.
	Gain VarType = "Gain"
	// Loss marks copy-number losses.
	Loss VarType = "Loss"
	// GainLoss marks variants observed in both directions.
	GainLoss VarType = "Gain+Loss"
)

// Matches reports whether the variant direction covers a record type.
func (v VarType) Matches(t cnv.Type) bool {
	switch v {
	case Gain:
		return t == cnv.DUP
	case Loss:
		return t == cnv.DEL
	case GainLoss:
		return true
	}
	return false
}

// PopVariant is one population-database row in closed 1-based coordinates.
type PopVariant struct {
	Chrom      string
	Start, End int64
	Type       VarType
	Gains      int64 // individuals observed with a gain here
	Losses     int64 // individuals observed with a loss here
	SampleSize int64 // individuals assayed
}

// popRow is the on-disk DGV-style schema, 0-based half open.
type popRow struct {
	Chrom      string `tsv:"chrom"`
	Start      int64  `tsv:"chromStart"`
	End        int64  `tsv:"chromEnd"`
	VarType    string `tsv:"varType"`
	Gains      int64  `tsv:"observedGains"`
	Losses     int64  `tsv:"observedLosses"`
	SampleSize int64  `tsv:"sampleSize"`
}

// ReadPopulationDB parses a DGV-style population-frequency table:
// tab-separated with a header row naming chrom, chromStart, chromEnd,
// varType, observedGains, observedLosses and sampleSize.  Coordinates are
// 0-based half open on disk and converted on the way in.  Gzipped input is
// transparently decompressed.
func ReadPopulationDB(ctx context.Context, path string) (vars []PopVariant, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := maybeGzip(path, in.Reader(ctx))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	tr := tsv.NewReader(r)
	tr.HasHeaderRow = true
	tr.UseHeaderNames = true
	tr.Comment = '#'
	for {
		var row popRow
		if err := tr.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "%s: row %d", path, len(vars)+2)
		}
		vt := VarType(row.VarType)
		switch vt {
		case Gain, Loss, GainLoss:
		default:
			return nil, errors.Errorf("%s: row %d: unknown varType %q", path, len(vars)+2, row.VarType)
		}
		if row.Start >= row.End {
			return nil, errors.Errorf("%s: row %d: interval start %d not before end %d", path, len(vars)+2, row.Start, row.End)
		}
		vars = append(vars, PopVariant{
			Chrom:      cnv.NormalizeChrom(row.Chrom),
			Start:      row.Start + 1,
			End:        row.End,
			Type:       vt,
			Gains:      row.Gains,
			Losses:     row.Losses,
			SampleSize: row.SampleSize,
		})
	}
	log.Printf("Read %d population variants from %s", len(vars), path)
	return vars, nil
}

// RarityOpts controls the rarity flagging stage.
type RarityOpts struct {
	// Threshold is the reciprocal-overlap fraction a common population
	// variant must reach, on both the record and the variant, to mark the
	// record non-rare.
	Threshold float64 `yaml:"threshold"`
	// MatchType requires the population variant's direction to cover the
	// record type (DEL needs Loss, DUP needs Gain).  When false any common
	// variant can match.
	MatchType bool `yaml:"match_type"`
	// CommonFrac is the population frequency above which a database variant
	// counts as common.  Variants at or below it cannot mark anything
	// non-rare.
	CommonFrac float64 `yaml:"common_frac"`
}

// DefaultRarityOpts sets the default values to RarityOpts.
var DefaultRarityOpts = RarityOpts{
	Threshold:  0.5,
	MatchType:  true,
	CommonFrac: 0.01,
}

// A PopDB indexes the common variants of a population database for
// reciprocal-overlap queries.  Build it once with NewPopDB; queries are
// read-only and safe for concurrent use.
type PopDB struct {
	opts    RarityOpts
	loss    *interval.Table // common variants covering losses
	gain    *interval.Table // common variants covering gains
	nCommon int
}

// NewPopDB selects the common variants of vars per opts.CommonFrac and
// indexes them by direction.  Variants observed in both directions land in
// both indexes.
func NewPopDB(vars []PopVariant, opts RarityOpts) *PopDB {
	db := &PopDB{opts: opts}
	var loss, gain []interval.Entry
	for _, v := range vars {
		if v.SampleSize <= 0 || float64(v.Gains+v.Losses) <= opts.CommonFrac*float64(v.SampleSize) {
			continue
		}
		db.nCommon++
		e := interval.Entry{
			Interval: interval.Interval{Chrom: v.Chrom, Start: v.Start, End: v.End},
			Label:    string(v.Type),
		}
		if v.Type.Matches(cnv.DEL) {
			loss = append(loss, e)
		}
		if v.Type.Matches(cnv.DUP) {
			gain = append(gain, e)
		}
	}
	db.loss = interval.NewTable(loss)
	db.gain = interval.NewTable(gain)
	log.Printf("Stats: %d of %d population variants common above frequency %g",
		db.nCommon, len(vars), opts.CommonFrac)
	return db
}

// NumCommon returns the number of common variants in the database.
func (db *PopDB) NumCommon() int { return db.nCommon }

// Common reports whether a common population variant of matching direction
// reciprocally overlaps r at the configured threshold.
func (db *PopDB) Common(r *cnv.Record) bool {
	q := r.Interval()
	for _, e := range db.candidates(r, q) {
		if interval.ReciprocalAtLeast(q, e.Interval, db.opts.Threshold) {
			return true
		}
	}
	return false
}

func (db *PopDB) candidates(r *cnv.Record, q interval.Interval) []interval.Entry {
	if !db.opts.MatchType {
		// Both-direction variants sit in both indexes; the duplicates only
		// cost a second threshold check.
		return append(db.loss.Overlapping(q), db.gain.Overlapping(q)...)
	}
	switch r.Type {
	case cnv.DEL:
		return db.loss.Overlapping(q)
	case cnv.DUP:
		return db.gain.Overlapping(q)
	}
	return nil
}

// Rarity sets IsRare on every record: rare means no common population
// variant of matching direction reciprocally overlaps it.
func Rarity(recs []cnv.Record, db *PopDB) []cnv.Record {
	out := append([]cnv.Record(nil), recs...)
	rare := 0
	for i := range out {
		out[i].IsRare = !db.Common(&out[i])
		if out[i].IsRare {
			rare++
		}
	}
	log.Printf("Stats: %d of %d records rare at reciprocal overlap %g",
		rare, len(out), db.opts.Threshold)
	return out
}
