package pipeline

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biocohort/cnv/cnv"
	"github.com/biocohort/cnv/taskgraph"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func testWriteFile(t *testing.T, dir, name, data string) string {
	path := filepath.Join(dir, name)
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0666))
	return path
}

func TestReadConfig(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := testWriteFile(t, dir, "config.yaml",
		"data_path: /cohort/vcf\n"+
			"result_path: /cohort/results\n"+
			"classifycnv_path: /opt/ClassifyCNV\n"+
			"cytobands: /refs/cytoBand.txt.gz\n"+
			"genes: /refs/genes.bed\n"+
			"brain_genes: /refs/brain.tsv\n"+
			"population_db: /refs/pop.txt\n"+
			"clinical: /cohort/clinical.tsv\n"+
			"long_min: 500000\n"+
			"filter:\n"+
			"  min_qual: 20\n")
	cfg, err := ReadConfig(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, cfg.DataPath, "/cohort/vcf")
	expect.EQ(t, cfg.LongMin, int64(500000))
	expect.EQ(t, cfg.Filter.MinQual, 20.0)
	// Untouched knobs keep their defaults.
	expect.True(t, cfg.Classify)
	expect.EQ(t, cfg.GenomeBuild, "hg38")
	expect.EQ(t, cfg.Filter.MinLen, int64(1000))
	expect.True(t, cfg.Filter.DropBenign)
	expect.EQ(t, cfg.Rarity.Threshold, 0.5)
	expect.EQ(t, cfg.Rarity.CommonFrac, 0.01)
	expect.EQ(t, cfg.Filter.ExcludeChroms, []string{"chrY"})
}

func TestReadConfigErrors(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	valid := "data_path: /v\n" +
		"result_path: /r\n" +
		"classifycnv_path: /c\n" +
		"cytobands: /cb\n" +
		"genes: /g\n" +
		"brain_genes: /b\n" +
		"population_db: /p\n" +
		"clinical: /cl\n"
	for _, test := range []struct {
		name, yaml, want string
	}{
		{"empty", "", "empty config"},
		{"unknown key", valid + "bogus_key: 1\n", "bogus_key"},
		{"missing clinical", strings.Replace(valid, "clinical: /cl\n", "", 1), "clinical is required"},
		{"no tool path", strings.Replace(valid, "classifycnv_path: /c\n", "", 1), "classifycnv_path is required"},
		{"benign without classify", valid + "classify: false\n", "drop_benign"},
		{"bad threshold", valid + "rarity:\n  threshold: 1.5\n", "rarity.threshold"},
		{"bad long cutoff", valid + "long_min: 0\n", "long_min"},
	} {
		path := testWriteFile(t, dir, "config.yaml", test.yaml)
		_, err := ReadConfig(ctx, path)
		if err == nil {
			t.Fatalf("%s: expected an error", test.name)
		}
		assert.HasSubstr(t, err.Error(), test.want)
	}
}

// testCohort lays out a two-individual cohort with every reference table
// the pipeline reads, classify off, and returns the decoded config.
func testCohort(t *testing.T, dir string) Config {
	ctx := vcontext.Background()
	vcfDir := filepath.Join(dir, "vcf")
	assert.NoError(t, os.Mkdir(vcfDir, 0777))
	testWriteFile(t, vcfDir, "sample_a.vcf",
		"##fileformat=VCFv4.2\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE_A\n"+
			"chr1\t10001\tcnvA\tN\t<DEL>\t50\tPASS\tSVTYPE=CNV;END=20000\tGT:SM:CN:BS\t0/1:0.4:1:0.9\n")
	testWriteFile(t, vcfDir, "sample_b.vcf",
		"##fileformat=VCFv4.2\n"+
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE_B\n"+
			"chr2\t100001\tcnvB\tN\t<DUP>\t99\tPASS\tSVTYPE=CNV;END=1200001\tGT:SM:CN:BS\t0/1:1.6:3:0.8\n")
	testWriteFile(t, dir, "cytoBand.txt",
		"chr1\t0\t40000000\tp36.33\tgneg\n"+
			"chr2\t0\t250000000\tq37.3\tgneg\n")
	testWriteFile(t, dir, "genes.bed", "chr1\t5000\t30000\tENSG01\n")
	testWriteFile(t, dir, "mart_export.txt",
		"Gene stable ID\tGene name\nENSG01\tSHANK3\n")
	testWriteFile(t, dir, "brain.tsv", "Ensembl\nENSG01\n")
	testWriteFile(t, dir, "pop.tsv",
		"chrom\tchromStart\tchromEnd\tvarType\tobservedGains\tobservedLosses\tsampleSize\n"+
			"chr9\t0\t10000\tLoss\t0\t500\t1000\n")
	testWriteFile(t, dir, "clinical.tsv", "ID\tsex\nSAMPLE_A\tF\nSAMPLE_B\tM\n")
	cfgPath := testWriteFile(t, dir, "config.yaml",
		"data_path: "+vcfDir+"\n"+
			"result_path: "+filepath.Join(dir, "results")+"\n"+
			"classify: false\n"+
			"cytobands: "+filepath.Join(dir, "cytoBand.txt")+"\n"+
			"genes: "+filepath.Join(dir, "genes.bed")+"\n"+
			"gene_id_map: "+filepath.Join(dir, "mart_export.txt")+"\n"+
			"brain_genes: "+filepath.Join(dir, "brain.tsv")+"\n"+
			"population_db: "+filepath.Join(dir, "pop.tsv")+"\n"+
			"clinical: "+filepath.Join(dir, "clinical.tsv")+"\n"+
			"filter:\n"+
			"  drop_benign: false\n")
	cfg, err := ReadConfig(ctx, cfgPath)
	assert.NoError(t, err)
	return cfg
}

func stageNames(p *Pipeline) []string {
	names := make([]string, 0, len(p.Artifacts))
	for _, a := range p.Artifacts {
		names = append(names, a.Name)
	}
	return names
}

func TestBuildStages(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	cfg := testCohort(t, dir)

	p, err := Build(ctx, cfg)
	assert.NoError(t, err)
	expect.EQ(t, stageNames(p), []string{
		"ingest", "bed", "cytobands", "genes", "rarity", "filter", "aggregate", "merge"})
	expect.EQ(t, p.Graph.NumTasks(), 8)

	// The optional stages appear when configured.
	full := cfg
	full.Classify = true
	full.ClassifyCNVPath = "/opt/ClassifyCNV"
	full.Filter.DropBenign = true
	full.Pathogenic = filepath.Join(dir, "pathogenic.tsv")
	p, err = Build(ctx, full)
	assert.NoError(t, err)
	// Pathogenic exclusion adds a second aggregation branch instead of
	// replacing the one over all filtered calls.
	expect.EQ(t, stageNames(p), []string{
		"ingest", "bed", "classify", "cytobands", "genes", "rarity", "filter",
		"aggregate", "merge", "pathogenic", "aggregate-uncertain", "merge-uncertain"})
	expect.EQ(t, p.Graph.NumTasks(), 12)

	merged, ok := p.Target("merge")
	expect.True(t, ok)
	expect.EQ(t, merged, filepath.Join(cfg.ResultPath, MergedFile))
	byFile, ok := p.Target(MergedFile)
	expect.True(t, ok)
	expect.EQ(t, byFile, merged)
	byPath, ok := p.Target(merged)
	expect.True(t, ok)
	expect.EQ(t, byPath, merged)
	_, ok = p.Target("nonesuch")
	expect.False(t, ok)
}

func TestResolveMinimal(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	cfg := testCohort(t, dir)

	p, err := Build(ctx, cfg)
	assert.NoError(t, err)
	target, ok := p.Target("rarity")
	expect.True(t, ok)
	order, err := p.Graph.ResolveOrder(ctx, []string{target})
	assert.NoError(t, err)
	names := make([]string, 0, len(order))
	for _, task := range order {
		names = append(names, task.Name)
	}
	// The BED hand-off and everything downstream of rarity stay out.
	expect.EQ(t, names, []string{"ingest", "cytobands", "genes", "rarity"})
}

func TestRunEndToEnd(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	cfg := testCohort(t, dir)

	p, err := Build(ctx, cfg)
	assert.NoError(t, err)
	stats, err := p.Graph.Run(ctx, nil, taskgraph.RunOpts{})
	assert.NoError(t, err)
	expect.EQ(t, stats, taskgraph.Stats{Ran: 8, Skipped: 0})

	data, err := ioutil.ReadFile(filepath.Join(cfg.ResultPath, MergedFile))
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	expect.EQ(t, len(lines), 3)
	expect.True(t, strings.HasPrefix(lines[0], "ID\tDEL_COUNT\t"))
	expect.True(t, strings.HasSuffix(lines[0], "\tsex"))

	// SAMPLE_A carries one rare deletion on the brain gene, SAMPLE_B one
	// long duplication; the clinical column rides along.
	rowA := strings.Split(lines[1], "\t")
	expect.EQ(t, rowA[0], "SAMPLE_A")
	expect.EQ(t, rowA[1], "1")  // DEL_COUNT
	expect.EQ(t, rowA[2], "50") // DEL_AVG_QUAL
	expect.EQ(t, rowA[18], "SHANK3")
	expect.EQ(t, rowA[22], "0") // DUP_COUNT
	expect.EQ(t, rowA[len(rowA)-1], "F")
	rowB := strings.Split(lines[2], "\t")
	expect.EQ(t, rowB[0], "SAMPLE_B")
	expect.EQ(t, rowB[1], "0")
	expect.EQ(t, rowB[22], "1")
	expect.EQ(t, rowB[25], "1") // DUP_LONG_COUNT
	expect.EQ(t, rowB[len(rowB)-1], "M")

	// A second run finds everything fresh.
	stats, err = p.Graph.Run(ctx, nil, taskgraph.RunOpts{})
	assert.NoError(t, err)
	expect.EQ(t, stats, taskgraph.Stats{Ran: 0, Skipped: 8})
}

func TestRunUncertainBranch(t *testing.T) {
	ctx := vcontext.Background()
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	cfg := testCohort(t, dir)

	// A known pathogenic deletion overlapping SAMPLE_A's call.
	path := filepath.Join(dir, "pathogenic.tsv")
	out, err := os.Create(path)
	assert.NoError(t, err)
	assert.NoError(t, cnv.WriteRecords(out, []cnv.Record{
		{ID: "SAMPLE_A", Chrom: "chr1", Start: 15000, End: 25000, Type: cnv.DEL},
	}))
	assert.NoError(t, out.Close())
	cfg.Pathogenic = path

	p, err := Build(ctx, cfg)
	assert.NoError(t, err)
	stats, err := p.Graph.Run(ctx, nil, taskgraph.RunOpts{})
	assert.NoError(t, err)
	expect.EQ(t, stats, taskgraph.Stats{Ran: 11, Skipped: 0})

	// The all-calls merge still counts SAMPLE_A's deletion; the uncertain
	// merge reports it excluded.
	for _, test := range []struct {
		file, delCount string
	}{
		{MergedFile, "1"},
		{UncertainMergedFile, "0"},
	} {
		data, err := ioutil.ReadFile(filepath.Join(cfg.ResultPath, test.file))
		assert.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		expect.EQ(t, len(lines), 3, "%s", test.file)
		rowA := strings.Split(lines[1], "\t")
		expect.EQ(t, rowA[0], "SAMPLE_A", "%s", test.file)
		expect.EQ(t, rowA[1], test.delCount, "%s", test.file)
	}
}
