package pipeline

import (
	"context"
	"io"

	"github.com/biocohort/cnv/annotate"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the pipeline settings file, YAML on disk.  Unknown keys are
// rejected, so a typo surfaces before anything runs.
//
// Minimal example:
//
//	data_path: /cohort/vcf
//	result_path: /cohort/results
//	classifycnv_path: /opt/ClassifyCNV
//	cytobands: /refs/cytoBand.txt.gz
//	genes: /refs/genes.bed
//	brain_genes: /refs/brain_genes.tsv
//	population_db: /refs/population_cnv.txt.gz
//	clinical: /cohort/clinical.tsv
type Config struct {
	// DataPath is the directory of per-individual VCFs (.vcf, .vcf.gz).
	DataPath string `yaml:"data_path"`
	// ResultPath is the directory every artifact is written under.
	ResultPath string `yaml:"result_path"`

	// Classify toggles the external ClassifyCNV stage.  When off the
	// classification and score columns stay empty, so filter.drop_benign
	// must be off too.
	Classify bool `yaml:"classify"`
	// ClassifyCNVPath is the directory containing ClassifyCNV.py.
	ClassifyCNVPath string `yaml:"classifycnv_path"`
	// GenomeBuild is the reference build passed to the classifier.
	GenomeBuild string `yaml:"genome_build"`
	// Python is the interpreter the classifier is launched with.
	Python string `yaml:"python"`

	// Cytobands is a UCSC cytoBand table.
	Cytobands string `yaml:"cytobands"`
	// Genes is a BED of gene spans, the name column holding the gene ID.
	Genes string `yaml:"genes"`
	// GeneIDMap optionally maps the BED's gene IDs to symbols (two leading
	// columns, ID then name, header skipped).
	GeneIDMap string `yaml:"gene_id_map"`
	// BrainGenes is a headered TSV naming brain-expressed genes.
	BrainGenes string `yaml:"brain_genes"`
	// BrainGeneColumn is the BrainGenes column holding the gene ID.
	BrainGeneColumn string `yaml:"brain_gene_column"`
	// DosageGenes optionally names dosage-sensitive genes the same way.
	// When set it overrides the dosage column the classifier verdicts
	// carry.
	DosageGenes string `yaml:"dosage_genes"`
	// DosageGeneColumn is the DosageGenes column holding the gene ID.
	DosageGeneColumn string `yaml:"dosage_gene_column"`
	// PopulationDB is a DGV-style population-frequency table.
	PopulationDB string `yaml:"population_db"`
	// Pathogenic optionally points at a record table of known-pathogenic
	// calls; cohort records overlapping one are excluded.
	Pathogenic string `yaml:"pathogenic"`
	// Clinical is the cohort covariate table; its ID column doubles as the
	// individual roster.
	Clinical string `yaml:"clinical"`

	// LongMin is the span in bases a record must exceed to be flagged
	// long.
	LongMin int64 `yaml:"long_min"`
	// Rarity controls population-database matching.
	Rarity annotate.RarityOpts `yaml:"rarity"`
	// Filter controls the hard record filters.
	Filter annotate.FilterOpts `yaml:"filter"`
}

// DefaultConfig sets the default values to Config.  ReadConfig starts from
// it, so a settings file only states what differs.
var DefaultConfig = Config{
	Classify:         true,
	GenomeBuild:      "hg38",
	Python:           "python3",
	BrainGeneColumn:  "Ensembl",
	DosageGeneColumn: "Ensembl",
	LongMin:          1_000_000,
	Rarity:           annotate.DefaultRarityOpts,
	Filter:           annotate.DefaultFilterOpts,
}

// ReadConfig decodes a YAML settings file over DefaultConfig and validates
// the result.
func ReadConfig(ctx context.Context, path string) (cfg Config, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return Config{}, err
	}
	defer file.CloseAndReport(ctx, in, &err)

	cfg = DefaultConfig
	dec := yaml.NewDecoder(in.Reader(ctx))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return Config{}, errors.Errorf("%s: empty config", path)
		}
		return Config{}, errors.Wrap(err, path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Validate checks that required paths are set and the knobs are coherent.
func (c *Config) Validate() error {
	required := []struct{ key, val string }{
		{"data_path", c.DataPath},
		{"result_path", c.ResultPath},
		{"cytobands", c.Cytobands},
		{"genes", c.Genes},
		{"brain_genes", c.BrainGenes},
		{"population_db", c.PopulationDB},
		{"clinical", c.Clinical},
	}
	for _, r := range required {
		if r.val == "" {
			return errors.Errorf("config: %s is required", r.key)
		}
	}
	if c.Classify && c.ClassifyCNVPath == "" {
		return errors.New("config: classifycnv_path is required when classify is on")
	}
	if !c.Classify && c.Filter.DropBenign {
		return errors.New("config: filter.drop_benign needs the classify stage; " +
			"only it fills the classification column")
	}
	if c.Rarity.Threshold <= 0 || c.Rarity.Threshold > 1 {
		return errors.Errorf("config: rarity.threshold %g outside (0, 1]", c.Rarity.Threshold)
	}
	if c.Rarity.CommonFrac < 0 || c.Rarity.CommonFrac >= 1 {
		return errors.Errorf("config: rarity.common_frac %g outside [0, 1)", c.Rarity.CommonFrac)
	}
	if c.LongMin <= 0 {
		return errors.Errorf("config: long_min %d must be positive", c.LongMin)
	}
	return nil
}
