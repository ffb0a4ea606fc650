package cnv

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// infoEndRE extracts the symbolic-allele end coordinate from the INFO
// column.  The leading anchor keeps it from matching keys like CIEND.
var infoEndRE = regexp.MustCompile(`(?:^|;)END=(\d+)`)

// ReadVCF parses CNV calls from a single-sample VCF, plain or gzipped.  The
// sample identifier is taken from the last #CHROM header column; records use
// the INFO END coordinate, falling back to POS, and the CN, SM and BS sample
// values when the FORMAT declares them.
func ReadVCF(ctx context.Context, path string) (recs []Record, err error) {
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
	return ParseVCF(reader, path)
}

// ParseVCF scans a VCF stream.  Only symbolic <DEL>/<DUP> rows become
// records; reference rows (ALT ".") are counted and skipped.  Any other ALT
// is an error, as is a data row appearing before the #CHROM header.
func ParseVCF(r io.Reader, path string) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	var (
		recs     []Record
		sampleID string
		lineno   int
		skipped  int
	)
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			cols := strings.Split(line, "\t")
			if len(cols) < 10 {
				return nil, errors.Errorf("%s:%d: #CHROM header has %d columns, want at least 10", path, lineno, len(cols))
			}
			sampleID = cols[len(cols)-1]
			continue
		}
		if sampleID == "" {
			return nil, errors.Errorf("%s:%d: data row before #CHROM header", path, lineno)
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 10 {
			return nil, errors.Errorf("%s:%d: %d columns, want at least 10", path, lineno, len(fields))
		}
		alt := fields[4]
		if alt == "." {
			skipped++
			continue
		}
		typ, ok := ParseType(alt)
		if !ok {
			return nil, errors.Errorf("%s:%d: unsupported ALT %q, want <DEL> or <DUP>", path, lineno, alt)
		}
		pos, perr := strconv.ParseInt(fields[1], 10, 64)
		if perr != nil {
			return nil, errors.Wrapf(perr, "%s:%d: bad POS", path, lineno)
		}
		end := pos
		if m := infoEndRE.FindStringSubmatch(fields[7]); m != nil {
			if end, perr = strconv.ParseInt(m[1], 10, 64); perr != nil {
				return nil, errors.Wrapf(perr, "%s:%d: bad INFO END", path, lineno)
			}
		}
		if end < pos {
			return nil, errors.Errorf("%s:%d: END %d before POS %d", path, lineno, end, pos)
		}
		qual := 0.0
		if fields[5] != "." {
			if qual, perr = strconv.ParseFloat(fields[5], 64); perr != nil {
				return nil, errors.Wrapf(perr, "%s:%d: bad QUAL", path, lineno)
			}
		}
		format, sample := fields[8], fields[len(fields)-1]
		recs = append(recs, Record{
			ID:         sampleID,
			Chrom:      NormalizeChrom(fields[0]),
			Start:      pos,
			End:        end,
			Type:       typ,
			Qual:       qual,
			CopyNumber: formatInt(format, sample, "CN"),
			CopyRatio:  formatFloat(format, sample, "SM"),
			BinSupport: formatFloat(format, sample, "BS"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if sampleID == "" {
		return nil, errors.Errorf("%s: missing #CHROM header", path)
	}
	log.Printf("%s: parsed %d CNV records for sample %s, %d non-variant rows skipped",
		path, len(recs), sampleID, skipped)
	return recs, nil
}

// ListVCFs returns the *.vcf and *.vcf.gz paths under dir, sorted.
func ListVCFs(ctx context.Context, dir string) ([]string, error) {
	lister := file.List(ctx, dir, true /*recursive*/)
	var paths []string
	for lister.Scan() {
		p := lister.Path()
		if strings.HasSuffix(p, ".vcf") || strings.HasSuffix(p, ".vcf.gz") {
			paths = append(paths, p)
		}
	}
	if err := lister.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("%s: no .vcf or .vcf.gz files found", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadVCFDir parses every *.vcf and *.vcf.gz under dir, one sample per
// file, and concatenates their records.  Files are visited in path order so
// the result is stable.
func ReadVCFDir(ctx context.Context, dir string) ([]Record, error) {
	paths, err := ListVCFs(ctx, dir)
	if err != nil {
		return nil, err
	}
	var recs []Record
	for _, p := range paths {
		r, err := ReadVCF(ctx, p)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r...)
	}
	log.Printf("%s: %d CNV records from %d VCFs", dir, len(recs), len(paths))
	return recs, nil
}

// formatValue looks up a per-sample value by its FORMAT key.
func formatValue(format, sample, key string) (string, bool) {
	keys := strings.Split(format, ":")
	vals := strings.Split(sample, ":")
	for i, k := range keys {
		if k == key && i < len(vals) {
			if v := vals[i]; v != "" && v != "." {
				return v, true
			}
			return "", false
		}
	}
	return "", false
}

// formatInt extracts an integer sample value, -1 when absent or unparsable.
func formatInt(format, sample, key string) int64 {
	v, ok := formatValue(format, sample, key)
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// formatFloat extracts a float sample value, -1 when absent or unparsable.
func formatFloat(format, sample, key string) float64 {
	v, ok := formatValue(format, sample, key)
	if !ok {
		return -1
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return -1
	}
	return f
}
