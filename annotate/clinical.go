package annotate

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// UnmatchedKeyWarning reports a clinical-table key that cannot join one to
// one: a duplicated individual ID would fan each aggregate row out into
// several merged rows, so the merge refuses to run.
type UnmatchedKeyWarning struct {
	Path string
	ID   string
}

func (e *UnmatchedKeyWarning) Error() string {
	return fmt.Sprintf("%s: individual %q appears more than once in the clinical table", e.Path, e.ID)
}

// A ClinicalTable holds per-individual covariates.  The first column of the
// file is the individual ID; the remaining header names become Columns.  The
// ID column doubles as the cohort roster, in file order.
type ClinicalTable struct {
	Path    string
	Columns []string // covariate columns, ID excluded
	ids     []string
	rows    map[string][]string // covariate values, parallel to Columns
}

// ReadClinical parses a clinical-covariates table: tab separated, a header
// row, individual IDs in the first column.  A duplicated ID is an
// UnmatchedKeyWarning.  Gzipped input is transparently decompressed.
func ReadClinical(ctx context.Context, path string) (tbl *ClinicalTable, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := maybeGzip(path, in.Reader(ctx))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	tbl = &ClinicalTable{Path: path, rows: map[string][]string{}}
	scanner := lineScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if tbl.Columns == nil { // header
			if fields[0] == "" {
				return nil, errors.Errorf("%s: empty header", path)
			}
			tbl.Columns = fields[1:]
			continue
		}
		if len(fields) != len(tbl.Columns)+1 {
			return nil, errors.Errorf("%s:%d: row has %d columns, header has %d", path, lineno, len(fields), len(tbl.Columns)+1)
		}
		id := fields[0]
		if id == "" {
			return nil, errors.Errorf("%s:%d: empty individual ID", path, lineno)
		}
		if _, dup := tbl.rows[id]; dup {
			return nil, &UnmatchedKeyWarning{Path: path, ID: id}
		}
		tbl.ids = append(tbl.ids, id)
		tbl.rows[id] = fields[1:]
	}
	if serr := scanner.Err(); serr != nil {
		return nil, errors.Wrap(serr, path)
	}
	if tbl.Columns == nil {
		return nil, errors.Errorf("%s: empty clinical table", path)
	}
	log.Printf("Read %d individuals with %d covariates from %s", len(tbl.ids), len(tbl.Columns), path)
	return tbl, nil
}

// Len returns the number of individuals in the table.
func (t *ClinicalTable) Len() int { return len(t.ids) }

// IDs returns the cohort roster in file order.  The caller must not modify
// the returned slice.
func (t *ClinicalTable) IDs() []string { return t.ids }

// Row returns the covariate values of an individual.
func (t *ClinicalTable) Row(id string) ([]string, bool) {
	row, ok := t.rows[id]
	return row, ok
}

// A MergedRow is one aggregate row plus the individual's clinical
// covariates, parallel to the clinical table's Columns.  Clinical is nil
// when the individual has no clinical row; writers render that as empty
// cells.
type MergedRow struct {
	IndividualStats
	Clinical []string
}

// MergeClinical left-joins clinical covariates onto aggregate rows.  Every
// aggregate row is kept, in order.
func MergeClinical(stats []IndividualStats, clin *ClinicalTable) []MergedRow {
	out := make([]MergedRow, 0, len(stats))
	nUnmatched := 0
	for _, s := range stats {
		row := MergedRow{IndividualStats: s}
		if values, ok := clin.Row(s.ID); ok {
			row.Clinical = values
		} else {
			nUnmatched++
		}
		out = append(out, row)
	}
	log.Printf("Stats: %d of %d individuals lack clinical covariates", nUnmatched, len(stats))
	return out
}

// WriteMerged writes the merged artifact: the aggregate columns followed by
// the clinical covariate columns.
func WriteMerged(w io.Writer, rows []MergedRow, clinCols []string) error {
	tw := tsv.NewWriter(w)
	header := make([]string, 0, len(StatsColumns)+len(clinCols))
	header = append(header, StatsColumns...)
	header = append(header, clinCols...)
	tw.WriteString(strings.Join(header, "\t"))
	if err := tw.EndLine(); err != nil {
		return err
	}
	for i := range rows {
		if rows[i].Clinical != nil && len(rows[i].Clinical) != len(clinCols) {
			return errors.Errorf("individual %q: %d clinical values for %d columns",
				rows[i].IndividualStats.ID, len(rows[i].Clinical), len(clinCols))
		}
		writeStatsFields(tw, &rows[i].IndividualStats)
		for c := range clinCols {
			if rows[i].Clinical == nil {
				tw.WriteString("")
			} else {
				tw.WriteString(rows[i].Clinical[c])
			}
		}
		if err := tw.EndLine(); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeStatsFields(tw *tsv.Writer, s *IndividualStats) {
	v := reflect.ValueOf(s).Elem()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		switch f.Kind() {
		case reflect.String:
			tw.WriteString(f.String())
		case reflect.Int64:
			tw.WriteInt64(f.Int())
		case reflect.Float64:
			tw.WriteString(strconv.FormatFloat(f.Float(), 'g', -1, 64))
		default:
			log.Panicf("annotate: unhandled stats field kind %v", f.Kind())
		}
	}
}
