// Package classify drives the external ClassifyCNV tool and folds its
// pathogenicity verdicts back into CNV records.
//
// The tool consumes a 4-column BED file (cnv.WriteBED), writes a
// Scoresheet.txt into a results directory of its own choosing, and prints
// that directory on stdout.  Each scoresheet row carries an ACMG
// classification, a numeric score and the dosage-sensitive genes the call
// touches, keyed by a chrom_start_end_type identifier that matches
// cnv.BEDKey.
package classify

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// ScoresheetName is the file ClassifyCNV writes inside its results
// directory.
const ScoresheetName = "Scoresheet.txt"

// resultsMarker precedes the results directory on the tool's stdout.
const resultsMarker = "Results saved to "

// Opts configures an external ClassifyCNV invocation.
type Opts struct {
	// Python is the interpreter used to launch the tool.
	Python string
	// ToolDir is the directory containing ClassifyCNV.py.
	ToolDir string
	// GenomeBuild is the reference build passed to the tool, e.g. "hg38".
	GenomeBuild string
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Python:      "python3",
	GenomeBuild: "hg38",
}

// Run classifies the calls in a BED file and returns the results
// directory the tool reports on stdout.  The tool's stderr is inherited so
// its progress output stays visible; stdout is captured and scanned for
// the directory line.
func Run(ctx context.Context, bedPath string, opts Opts) (string, error) {
	cmd := exec.CommandContext(ctx, opts.Python,
		filepath.Join(opts.ToolDir, "ClassifyCNV.py"),
		"--infile", bedPath,
		"--GenomeBuild", opts.GenomeBuild)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	log.Debug.Printf("running %s", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "classify: %s", strings.Join(cmd.Args, " "))
	}
	for _, line := range strings.Split(stdout.String(), "\n") {
		if i := strings.Index(line, resultsMarker); i >= 0 {
			return strings.TrimSpace(line[i+len(resultsMarker):]), nil
		}
	}
	return "", errors.Errorf("classify: no %q line in output of %s:\n%s",
		resultsMarker, strings.Join(cmd.Args, " "), stdout.String())
}

// Annotate runs the tool on a BED file and reads back its verdicts.
func Annotate(ctx context.Context, bedPath string, opts Opts) ([]Verdict, error) {
	dir, err := Run(ctx, bedPath, opts)
	if err != nil {
		return nil, err
	}
	return ReadScoresheet(ctx, filepath.Join(dir, ScoresheetName))
}
