// cnv-pipeline materializes cohort CNV artifacts: it ingests
// per-individual VCFs, runs the annotation, rarity, filter and exclusion
// stages, aggregates per individual and merges clinical covariates, all as
// tasks of a file-based graph that only re-runs what is out of date.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/biocohort/cnv/pipeline"
	"github.com/biocohort/cnv/taskgraph"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

func build(ctx context.Context, configPath string) (*pipeline.Pipeline, error) {
	cfg, err := pipeline.ReadConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}
	return pipeline.Build(ctx, cfg)
}

// targets maps the positional arguments onto artifact paths.  Stage names
// and artifact filenames resolve through the pipeline; anything else is
// passed through as a path for the graph to judge.
func targets(p *pipeline.Pipeline, argv []string) []string {
	out := make([]string, 0, len(argv))
	for _, arg := range argv {
		if path, ok := p.Target(arg); ok {
			out = append(out, path)
			continue
		}
		out = append(out, arg)
	}
	return out
}

// Exit codes, beyond the usual 0 and 1: invalid configuration or graph,
// a failing task action, and a missing prerequisite artifact are told
// apart so wrappers can retry or page accordingly.
const (
	exitInvalid = 2
	exitTask    = 3
	exitMissing = 4
)

// errCode classifies a resolve or run failure, looking through wrapping.
func errCode(err error) int {
	var (
		dup     *taskgraph.DuplicateOutputError
		cycle   *taskgraph.CycleError
		unknown *taskgraph.UnknownDependencyError
		missing *taskgraph.MissingArtifactError
	)
	switch {
	case errors.As(err, &dup), errors.As(err, &cycle):
		return exitInvalid
	case errors.As(err, &unknown), errors.As(err, &missing):
		return exitMissing
	}
	return exitTask
}

// fail prints err and converts it to the wanted exit code.
func fail(env *cmdline.Env, code int, err error) error {
	fmt.Fprintf(env.Stderr, "cnv-pipeline: %v\n", err)
	return cmdline.ErrExitCode(code)
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Bring target artifacts up to date",
		ArgsName: "[target ...]",
		ArgsLong: `
Each target is a stage name (for example "merge"), an artifact filename or
an artifact path.  Without targets the whole pipeline runs.`,
	}
	config := cmd.Flags.String("config", "config.yaml", "Pipeline settings file")
	force := cmd.Flags.Bool("force", false, "Run every resolved task even when its outputs are up to date")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		p, err := build(ctx, *config)
		if err != nil {
			return fail(env, exitInvalid, err)
		}
		if _, err := p.Graph.Run(ctx, targets(p, argv), taskgraph.RunOpts{Force: *force}); err != nil {
			return fail(env, errCode(err), err)
		}
		return nil
	})
	return cmd
}

func newCmdPlan() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "plan",
		Short:    "Print the task order for targets without running",
		ArgsName: "[target ...]",
	}
	config := cmd.Flags.String("config", "config.yaml", "Pipeline settings file")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		p, err := build(ctx, *config)
		if err != nil {
			return fail(env, exitInvalid, err)
		}
		order, err := p.Graph.ResolveOrder(ctx, targets(p, argv))
		if err != nil {
			return fail(env, errCode(err), err)
		}
		for _, task := range order {
			fmt.Fprintf(env.Stdout, "%s\t%s\n", task.Name, task.Outputs[0])
		}
		return nil
	})
	return cmd
}

func newCmdDescribe() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "describe",
		Short: "Print each stage's artifact path",
	}
	config := cmd.Flags.String("config", "config.yaml", "Pipeline settings file")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("describe takes no arguments, got %v", argv)
		}
		ctx := vcontext.Background()
		p, err := build(ctx, *config)
		if err != nil {
			return fail(env, exitInvalid, err)
		}
		for _, a := range p.Artifacts {
			fmt.Fprintf(env.Stdout, "%s\t%s\n", a.Name, a.Path)
		}
		return nil
	})
	return cmd
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	root := &cmdline.Command{
		Name:  "cnv-pipeline",
		Short: "Annotate, filter and aggregate cohort CNV calls",
		Long: `
cnv-pipeline turns a directory of per-individual CNV VCFs into merged
per-individual tables: calls are classified, annotated with cytobands and
genes, flagged rare against a population database, hard-filtered, cleared
of known-pathogenic overlaps, aggregated per individual and joined with
clinical covariates.  Stages form a dependency graph over files in the
result directory; a stage re-runs only when an input is newer than its
artifact.`,
		Children: []*cmdline.Command{newCmdRun(), newCmdPlan(), newCmdDescribe()},
	}
	shutdown := grail.Init()
	env := cmdline.EnvFromOS()
	err := cmdline.ParseAndRun(root, env, os.Args[1:])
	code := cmdline.ExitCode(err, env.Stderr)
	shutdown()
	os.Exit(code)
}
