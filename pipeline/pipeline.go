// Package pipeline assembles the CNV annotation stages into a task graph.
//
// Build turns a validated Config into a taskgraph.Graph whose tasks stream
// record tables between fixed artifact files under the result directory:
// VCF ingestion, the optional external classifier, the annotation stages,
// the hard filters, per-individual aggregation and the clinical merge.
// When pathogenic exclusion is configured the aggregation and merge run
// twice, over all filtered calls and over the uncertain remainder.
// Reference tables are task inputs, never outputs, so
// a missing download surfaces as a resolution error instead of a stage
// trying to fetch it.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/biocohort/cnv/annotate"
	"github.com/biocohort/cnv/classify"
	"github.com/biocohort/cnv/cnv"
	"github.com/biocohort/cnv/interval"
	"github.com/biocohort/cnv/taskgraph"
	"github.com/grailbio/base/traverse"
)

// Artifact filenames under Config.ResultPath, one per stage.
const (
	RecordsFile    = "records.tsv"          // ingested cohort calls
	BEDFile        = "calls.bed"            // classifier hand-off
	ClassifiedFile = "classified.tsv"       // records + classifier verdicts
	CytobandsFile  = "cytobands.tsv"        // + cytoband column
	GenesFile      = "genes.tsv"            // + gene, brain and dosage columns
	RarityFile     = "rarity.tsv"           // + rare and long flags
	FilteredFile   = "filtered.tsv"         // records passing the hard filters
	StatsFile      = "individual_stats.tsv" // per-individual aggregates
	MergedFile     = "merged.tsv"           // aggregates + clinical covariates

	// The uncertain branch repeats aggregation after dropping calls that
	// overlap a known-pathogenic variant.
	UncertainFile       = "uncertain.tsv"
	UncertainStatsFile  = "individual_stats_uncertain.tsv"
	UncertainMergedFile = "merged_uncertain.tsv"
)

// Artifact is one named pipeline output.
type Artifact struct {
	Name string // stage name, usable as a run target
	Path string
}

// Pipeline is a built task graph plus the artifact map behind it.
type Pipeline struct {
	Config    Config
	Graph     *taskgraph.Graph
	Artifacts []Artifact // stage order
}

// Target resolves a stage name, artifact filename or artifact path to the
// artifact path.  Anything else is not a pipeline artifact.
func (p *Pipeline) Target(s string) (string, bool) {
	for _, a := range p.Artifacts {
		if s == a.Name || s == a.Path || s == filepath.Base(a.Path) {
			return a.Path, true
		}
	}
	return "", false
}

// Build validates cfg and registers the stage tasks.  The input VCFs are
// scanned here so each one is a tracked task input; adding or touching a
// VCF makes the ingest stage stale.
func Build(ctx context.Context, cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vcfs, err := cnv.ListVCFs(ctx, cfg.DataPath)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Config: cfg, Graph: taskgraph.New()}
	art := func(name string) string { return filepath.Join(cfg.ResultPath, name) }
	register := func(name string, inputs []string, output string, action func(ctx context.Context) error) error {
		if err := p.Graph.Register(taskgraph.Task{
			Name:    name,
			Inputs:  inputs,
			Outputs: []string{output},
			Action:  action,
		}); err != nil {
			return err
		}
		p.Artifacts = append(p.Artifacts, Artifact{Name: name, Path: output})
		return nil
	}

	records := art(RecordsFile)
	if err := register("ingest", vcfs, records, func(ctx context.Context) error {
		recs, err := cnv.ReadVCFDir(ctx, cfg.DataPath)
		if err != nil {
			return err
		}
		return writeRecords(records, recs)
	}); err != nil {
		return nil, err
	}

	bed := art(BEDFile)
	if err := register("bed", []string{records}, bed, func(ctx context.Context) error {
		recs, err := cnv.ReadRecordsPath(ctx, records)
		if err != nil {
			return err
		}
		out, err := taskgraph.CreateAtomic(bed)
		if err != nil {
			return err
		}
		if err := cnv.WriteBED(out, recs); err != nil {
			out.Abort()
			return err
		}
		return out.Commit()
	}); err != nil {
		return nil, err
	}

	annotated := records
	if cfg.Classify {
		classified := art(ClassifiedFile)
		if err := register("classify", []string{bed, records}, classified, func(ctx context.Context) error {
			verdicts, err := classify.Annotate(ctx, bed, classify.Opts{
				Python:      cfg.Python,
				ToolDir:     cfg.ClassifyCNVPath,
				GenomeBuild: cfg.GenomeBuild,
			})
			if err != nil {
				return err
			}
			recs, err := cnv.ReadRecordsPath(ctx, records)
			if err != nil {
				return err
			}
			return writeRecords(classified, classify.Merge(recs, verdicts))
		}); err != nil {
			return nil, err
		}
		annotated = classified
	}

	banded := art(CytobandsFile)
	if err := register("cytobands", []string{annotated, cfg.Cytobands}, banded, func(ctx context.Context) error {
		recs, err := cnv.ReadRecordsPath(ctx, annotated)
		if err != nil {
			return err
		}
		bands, err := interval.ReadCytobands(ctx, cfg.Cytobands)
		if err != nil {
			return err
		}
		return writeRecords(banded, annotate.Cytobands(recs, interval.NewTable(bands)))
	}); err != nil {
		return nil, err
	}

	genes := art(GenesFile)
	geneInputs := []string{banded, cfg.Genes, cfg.BrainGenes}
	if cfg.GeneIDMap != "" {
		geneInputs = append(geneInputs, cfg.GeneIDMap)
	}
	if cfg.DosageGenes != "" {
		geneInputs = append(geneInputs, cfg.DosageGenes)
	}
	if err := register("genes", geneInputs, genes, func(ctx context.Context) error {
		recs, err := cnv.ReadRecordsPath(ctx, banded)
		if err != nil {
			return err
		}
		var idmap map[string]string
		if cfg.GeneIDMap != "" {
			if idmap, err = annotate.ReadGeneIDMap(ctx, cfg.GeneIDMap); err != nil {
				return err
			}
		}
		var entries []interval.Entry
		var brain, dosage annotate.GeneSet
		load := []func() error{
			func() (err error) {
				entries, err = interval.ReadBED(ctx, cfg.Genes, interval.ReadOpts{})
				return
			},
			func() (err error) {
				brain, err = annotate.ReadGeneSet(ctx, cfg.BrainGenes, cfg.BrainGeneColumn, idmap)
				return
			},
		}
		if cfg.DosageGenes != "" {
			load = append(load, func() (err error) {
				dosage, err = annotate.ReadGeneSet(ctx, cfg.DosageGenes, cfg.DosageGeneColumn, idmap)
				return
			})
		}
		if err := traverse.Each(len(load), func(i int) error { return load[i]() }); err != nil {
			return err
		}
		recs = annotate.Genes(recs, interval.NewTable(annotate.MapLabels(entries, idmap)))
		recs = annotate.Brain(recs, brain)
		if cfg.DosageGenes != "" {
			recs = annotate.Dosage(recs, dosage)
		}
		return writeRecords(genes, recs)
	}); err != nil {
		return nil, err
	}

	rarity := art(RarityFile)
	if err := register("rarity", []string{genes, cfg.PopulationDB}, rarity, func(ctx context.Context) error {
		recs, err := cnv.ReadRecordsPath(ctx, genes)
		if err != nil {
			return err
		}
		vars, err := annotate.ReadPopulationDB(ctx, cfg.PopulationDB)
		if err != nil {
			return err
		}
		recs = annotate.Rarity(recs, annotate.NewPopDB(vars, cfg.Rarity))
		recs = annotate.Long(recs, cfg.LongMin)
		return writeRecords(rarity, recs)
	}); err != nil {
		return nil, err
	}

	filtered := art(FilteredFile)
	if err := register("filter", []string{rarity}, filtered, func(ctx context.Context) error {
		recs, err := cnv.ReadRecordsPath(ctx, rarity)
		if err != nil {
			return err
		}
		return writeRecords(filtered, annotate.Filter(recs, cfg.Filter))
	}); err != nil {
		return nil, err
	}

	// summary registers an aggregate and a clinical-merge stage over one
	// record table.  It runs twice when pathogenic exclusion is on: once
	// over every filtered call and once over the uncertain remainder.
	summary := func(aggName, mergeName, source, stats, merged string) error {
		if err := register(aggName, []string{source, cfg.Clinical}, stats, func(ctx context.Context) error {
			recs, err := cnv.ReadRecordsPath(ctx, source)
			if err != nil {
				return err
			}
			clin, err := annotate.ReadClinical(ctx, cfg.Clinical)
			if err != nil {
				return err
			}
			out, err := taskgraph.CreateAtomic(stats)
			if err != nil {
				return err
			}
			if err := annotate.WriteStats(out, annotate.Aggregate(recs, clin.IDs())); err != nil {
				out.Abort()
				return err
			}
			return out.Commit()
		}); err != nil {
			return err
		}
		return register(mergeName, []string{stats, cfg.Clinical}, merged, func(ctx context.Context) error {
			st, err := annotate.ReadStatsPath(ctx, stats)
			if err != nil {
				return err
			}
			clin, err := annotate.ReadClinical(ctx, cfg.Clinical)
			if err != nil {
				return err
			}
			out, err := taskgraph.CreateAtomic(merged)
			if err != nil {
				return err
			}
			if err := annotate.WriteMerged(out, annotate.MergeClinical(st, clin), clin.Columns); err != nil {
				out.Abort()
				return err
			}
			return out.Commit()
		})
	}

	if err := summary("aggregate", "merge", filtered, art(StatsFile), art(MergedFile)); err != nil {
		return nil, err
	}

	if cfg.Pathogenic != "" {
		uncertain := art(UncertainFile)
		if err := register("pathogenic", []string{filtered, cfg.Pathogenic}, uncertain, func(ctx context.Context) error {
			recs, err := cnv.ReadRecordsPath(ctx, filtered)
			if err != nil {
				return err
			}
			known, err := cnv.ReadRecordsPath(ctx, cfg.Pathogenic)
			if err != nil {
				return err
			}
			return writeRecords(uncertain, annotate.ExcludePathogenic(recs, known))
		}); err != nil {
			return nil, err
		}
		if err := summary("aggregate-uncertain", "merge-uncertain", uncertain,
			art(UncertainStatsFile), art(UncertainMergedFile)); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// writeRecords stages a record table and renames it into place.
func writeRecords(path string, recs []cnv.Record) error {
	out, err := taskgraph.CreateAtomic(path)
	if err != nil {
		return err
	}
	if err := cnv.WriteRecords(out, recs); err != nil {
		out.Abort()
		return err
	}
	return out.Commit()
}
