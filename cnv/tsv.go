package cnv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// SchemaMismatchError reports an artifact whose header row differs from the
// schema its reader expects.
type SchemaMismatchError struct {
	Path    string
	Got     []string
	Want    []string
	Missing []string // schema columns absent from the header
	Extra   []string // header columns not in the schema
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Missing) == 0 && len(e.Extra) == 0 {
		return fmt.Sprintf("%s: artifact columns out of order: got %v, want %v", e.Path, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: artifact header mismatch: missing columns %v, unexpected columns %v",
		e.Path, e.Missing, e.Extra)
}

// CheckHeader compares an artifact header row against a schema column list,
// returning a SchemaMismatchError unless they match exactly, in order.
func CheckHeader(path string, got, want []string) error {
	if len(got) == len(want) {
		same := true
		for i := range got {
			if got[i] != want[i] {
				same = false
				break
			}
		}
		if same {
			return nil
		}
	}
	have := make(map[string]bool, len(got))
	for _, c := range got {
		have[c] = true
	}
	wantSet := make(map[string]bool, len(want))
	err := &SchemaMismatchError{Path: path, Got: got, Want: want}
	for _, c := range want {
		wantSet[c] = true
		if !have[c] {
			err.Missing = append(err.Missing, c)
		}
	}
	for _, c := range got {
		if !wantSet[c] {
			err.Extra = append(err.Extra, c)
		}
	}
	return err
}

// ReadRecords parses a record artifact from r.  path is used in
// diagnostics only.  The header row must match Columns exactly; otherwise a
// SchemaMismatchError is returned before any row is parsed.
func ReadRecords(r io.Reader, path string) ([]Record, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err == io.EOF && header == "" {
		return nil, &SchemaMismatchError{Path: path, Want: Columns, Missing: Columns}
	}
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, path)
	}
	header = strings.TrimRight(header, "\r\n")
	if err := CheckHeader(path, strings.Split(header, "\t"), Columns); err != nil {
		return nil, err
	}

	tr := tsv.NewReader(br)
	var recs []Record
	for {
		var rec Record
		if err := tr.Read(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(err, "%s: row %d", path, len(recs)+2)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ReadRecordsPath opens path and parses it with ReadRecords.
func ReadRecordsPath(ctx context.Context, path string) (recs []Record, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	return ReadRecords(in.Reader(ctx), path)
}

// WriteRecords writes recs as a record artifact: a header row from the
// struct tags followed by one row per record.
func WriteRecords(w io.Writer, recs []Record) error {
	if len(recs) == 0 {
		// NewRowWriter emits the header lazily, but an empty artifact still
		// needs one for schema validation downstream.
		_, err := io.WriteString(w, strings.Join(Columns, "\t")+"\n")
		return err
	}
	tw := tsv.NewRowWriter(w)
	for i := range recs {
		if err := tw.Write(&recs[i]); err != nil {
			return err
		}
	}
	return tw.Flush()
}
