package interval

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ReadOpts controls reference-table parsing.
type ReadOpts struct {
	// OneBased treats input coordinates as 1-based closed instead of the
	// 0-based half-open BED default.
	OneBased bool
}

// ReadBED parses a BED-style reference table: tab-separated chrom, start,
// end, and an optional name column used as the entry label.  Extra columns
// are ignored, as are empty lines and lines starting with "#", "track" or
// "browser".  Gzipped input is transparently decompressed.  Coordinates are
// converted to closed 1-based form.
func ReadBED(ctx context.Context, path string, opts ReadOpts) (entries []Entry, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return nil, errors.Wrap(err, path)
		}
		reader = gz
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || line[0] == '#' ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, errors.Errorf("%s:%d: want at least 3 tab-separated columns, got %d", path, lineno, len(fields))
		}
		start, perr := strconv.ParseInt(fields[1], 10, 64)
		if perr != nil {
			return nil, errors.Wrapf(perr, "%s:%d: bad start position", path, lineno)
		}
		end, perr := strconv.ParseInt(fields[2], 10, 64)
		if perr != nil {
			return nil, errors.Wrapf(perr, "%s:%d: bad end position", path, lineno)
		}
		if !opts.OneBased {
			start++
		}
		if start > end {
			return nil, errors.Errorf("%s:%d: interval start %d after end %d", path, lineno, start, end)
		}
		var label string
		if len(fields) > 3 {
			label = fields[3]
		}
		entries = append(entries, Entry{
			Interval: Interval{Chrom: fields[0], Start: start, End: end},
			Label:    label,
		})
	}
	if serr := scanner.Err(); serr != nil {
		return nil, errors.Wrap(serr, path)
	}
	return entries, nil
}

// ReadCytobands parses a UCSC cytoBand.txt(.gz) table: tab-separated chrom,
// chromStart, chromEnd, name, gieStain with 0-based half-open coordinates
// and no header row.  Entries are labeled with the band name, e.g. "p36.33".
func ReadCytobands(ctx context.Context, path string) ([]Entry, error) {
	return ReadBED(ctx, path, ReadOpts{})
}
