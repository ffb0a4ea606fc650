package annotate

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/biocohort/cnv/interval"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// A GeneSet holds gene symbols for membership tests.
type GeneSet map[string]bool

// maybeGzip layers a decompressor over r when path names a gzipped file.
func maybeGzip(path string, r io.Reader) (io.Reader, error) {
	if fileio.DetermineType(path) != fileio.Gzip {
		return r, nil
	}
	return gzip.NewReader(r)
}

func lineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	return scanner
}

// ReadGeneIDMap parses an Ensembl mart export: a tab-separated table whose
// first line is a header and whose first two columns are the gene stable ID
// and the gene name.  IDs with a blank name stay unmapped, and the first name
// listed for an ID wins.  Gzipped input is transparently decompressed.
func ReadGeneIDMap(ctx context.Context, path string) (m map[string]string, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := maybeGzip(path, in.Reader(ctx))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	m = map[string]string{}
	scanner := lineScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || lineno == 1 { // header
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, errors.Errorf("%s:%d: want at least 2 tab-separated columns, got %d", path, lineno, len(fields))
		}
		id, name := fields[0], strings.TrimSpace(fields[1])
		if name == "" {
			continue
		}
		if _, ok := m[id]; !ok {
			m[id] = name
		}
	}
	if serr := scanner.Err(); serr != nil {
		return nil, errors.Wrap(serr, path)
	}
	log.Printf("Read %d gene name mappings from %s", len(m), path)
	return m, nil
}

// ReadGeneSet parses a gene reference table: a tab-separated file whose first
// line is a header naming, among others, the column holding gene IDs.  IDs
// are translated through idmap (nil for none); untranslated IDs are kept as
// is.  Gzipped input is transparently decompressed.
func ReadGeneSet(ctx context.Context, path, column string, idmap map[string]string) (set GeneSet, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	r, err := maybeGzip(path, in.Reader(ctx))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	set = GeneSet{}
	scanner := lineScanner(r)
	lineno, col := 0, -1
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if col < 0 { // header
			for i, f := range fields {
				if f == column {
					col = i
					break
				}
			}
			if col < 0 {
				return nil, errors.Errorf("%s: no %q column in header %v", path, column, fields)
			}
			continue
		}
		if col >= len(fields) {
			return nil, errors.Errorf("%s:%d: row has %d columns, %q is column %d", path, lineno, len(fields), column, col+1)
		}
		id := strings.TrimSpace(fields[col])
		if id == "" {
			continue
		}
		if mapped, ok := idmap[id]; ok {
			id = mapped
		}
		set[id] = true
	}
	if serr := scanner.Err(); serr != nil {
		return nil, errors.Wrap(serr, path)
	}
	log.Printf("Read %d gene symbols from %s", len(set), path)
	return set, nil
}

// MapLabels translates reference-entry labels through idmap, leaving
// unmapped labels unchanged.  Gene tables keyed by Ensembl IDs become
// symbol-labeled this way, matching the gene sets.
func MapLabels(entries []interval.Entry, idmap map[string]string) []interval.Entry {
	out := append([]interval.Entry(nil), entries...)
	for i := range out {
		if name, ok := idmap[out[i].Label]; ok {
			out[i].Label = name
		}
	}
	return out
}
