// Package cmd implements sop's command-line entry point: a pipeline
// compiler/runner sitting underneath a thin cobra shell. Pipeline syntax
// ("stage flags... ! stage flags...", 4.E) doesn't fit cobra's own flag
// parser, so the root command disables it and hands argv to the argv/
// stageargs/plan layers instead; cobra is kept for the "version"
// subcommand and for --help/usage text.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/sop/internal/argv"
	"github.com/jmylchreest/sop/internal/jsonld"
	"github.com/jmylchreest/sop/internal/observability"
	"github.com/jmylchreest/sop/internal/plan"
	"github.com/jmylchreest/sop/internal/stage"
	"github.com/jmylchreest/sop/internal/stageargs"
	"github.com/jmylchreest/sop/internal/version"
)

var (
	logLevel         string
	logFormat        string
	defaultFormat    string
	jsonldContextDir string
	jsonldAllowRemote bool
)

// globalFlagArity names every global flag and whether it takes a value,
// so the hand-rolled scanner in parseGlobalFlags knows how much to
// consume. These flags may only appear before the pipeline's first
// stage shard; once parsing reaches a stage name, the rest of argv
// belongs to stageargs (4.E parses every stage's flags independently).
var globalFlagArity = map[string]bool{
	"--log-level":          true,
	"--log-format":         true,
	"--default-format":     true,
	"--jsonld-context-dir": true,
	"--jsonld-allow-remote": false,
}

// rootCmd is both the usage-text holder and, via RunE, the pipeline
// entry point. Flag parsing is disabled because the stage pipeline owns
// its own argv grammar (4.E).
var rootCmd = &cobra.Command{
	Use:                "sop",
	Short:              "stream RDF quads through a pipeline of composable stages",
	Version:            version.Short(),
	DisableFlagParsing: true,
	Long: `sop treats RDF quad streams as a universal interchange medium.

A pipeline is a sequence of stages separated by a literal "!" token, the
first a producer (parse) and the rest transformers or a terminal sink:

	sop parse data.ttl ! filter '?p = <http://example.org/knows>' ! serialize

Each stage's flags belong to that stage alone and are parsed
independently of every other stage's (4.E). Global flags (--log-level,
--jsonld-context-dir, ...) must appear before the first stage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(_ *cobra.Command, args []string) error {
		return runPipeline(args)
	},
}

// Execute runs sop and returns the process exit code: 2 for a usage
// error caught before any stage ran, 1 for any other failure, 0 on
// success (7).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sop:", err)
		if isUsageError(err) {
			return 2
		}
		return 1
	}
	return 0
}

func isUsageError(err error) bool {
	switch err.(type) {
	case *argv.UsageError, *plan.UsageError:
		return true
	default:
		return false
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// runPipeline is rootCmd's RunE body: it separates global flags from the
// stage pipeline, configures logging and the JSON-LD loader, splits and
// compiles the pipeline, and runs it to completion.
func runPipeline(args []string) error {
	rest, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.Config{Level: logLevel, Format: logFormat})
	observability.SetDefault(logger)

	if len(rest) == 0 {
		return rootCmd.Help()
	}

	shards, err := argv.SplitPipeline(rest)
	if err != nil {
		return err
	}

	specs := make([]plan.Spec, len(shards))
	for i, shard := range shards {
		spec, err := stageargs.Parse(shard)
		if err != nil {
			return err
		}
		specs[i] = spec
	}

	loader := jsonld.Composite{}
	if jsonldContextDir != "" {
		loader.Local = jsonld.NewLocalDirLoader(jsonldContextDir)
	}
	if jsonldAllowRemote {
		loader.URL = jsonld.NewURLLoader(nil)
	}

	constructors := stage.Constructors(loader)

	// Leave defaultFormat empty when --default-format wasn't given, so the
	// implicit default serializer falls back to its own per-4.H adaptive
	// rule (N-Quads for a generalized/multi-graph stream, Turtle
	// otherwise) instead of always forcing Turtle.
	p, err := plan.Compile(specs, constructors, defaultFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := observability.TimedOperation(ctx, logger, "pipeline_run")
	start := time.Now()
	runErr := p.Run(ctx)
	done()
	logger.Debug("pipeline finished", "elapsed", time.Since(start), "error", runErr)
	return runErr
}

// parseGlobalFlags scans the leading run of recognized global flags off
// args, stopping at the first token that isn't one (the first stage
// shard's stage name). Global flags never appear after this point; a
// per-stage flag happening to collide with a global flag's name (there
// are none in the schema today) is resolved in the stage's own favor
// once scanning has moved past the boundary.
func parseGlobalFlags(args []string) ([]string, error) {
	i := 0
	for i < len(args) {
		takesValue, known := globalFlagArity[args[i]]
		if !known {
			break
		}
		name := args[i]
		if takesValue {
			if i+1 >= len(args) {
				return nil, &argv.UsageError{Message: fmt.Sprintf("%s requires a value", name)}
			}
			if err := applyGlobalFlag(name, args[i+1]); err != nil {
				return nil, err
			}
			i += 2
		} else {
			if err := applyGlobalFlag(name, ""); err != nil {
				return nil, err
			}
			i++
		}
	}
	return args[i:], nil
}

func applyGlobalFlag(name, value string) error {
	switch name {
	case "--log-level":
		logLevel = value
	case "--log-format":
		logFormat = value
	case "--default-format":
		defaultFormat = value
	case "--jsonld-context-dir":
		jsonldContextDir = value
	case "--jsonld-allow-remote":
		jsonldAllowRemote = true
	default:
		return &argv.UsageError{Message: fmt.Sprintf("unknown global flag %q", name)}
	}
	return nil
}
