// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"cloak-scan/internal/config"
	"cloak-scan/internal/entity"
	"cloak-scan/internal/errs"
	"cloak-scan/internal/extract"
	"cloak-scan/internal/fusion"
	"cloak-scan/internal/masking"
	"cloak-scan/internal/observability"
	"cloak-scan/internal/pipeline"
	"cloak-scan/internal/residual"
	"cloak-scan/internal/rules"
	"cloak-scan/internal/tagger"
	"cloak-scan/internal/version"
)

const usageText = `cloak-scan - detect and mask PII in documents

Usage:
  cloak-scan [options] <file-or-directory> [...]

Options:
  -config string       configuration file (default: search standard locations)
  -mode string         masking mode: mask, redact, remove
  -entities string     comma-separated entity types to detect, or "all"
  -output string       directory for masked output documents
  -dry-run             detect and report without writing masked output
  -residual string     residual policy: warn, fail, block-output
  -concurrency int     detection worker count
  -recursive           descend into directories
  -review string       write pending review items to this JSON file
  -debug               emit per-operation JSON timing lines
  -no-color            disable colored output
  -version             print version and exit
`

// cliFlags holds command line flag values. Flags override the config file
// only when explicitly set.
type cliFlags struct {
	configFile  string
	mode        string
	entities    string
	outputDir   string
	dryRun      bool
	residual    string
	concurrency int
	recursive   bool
	reviewFile  string
	debug       bool
	noColor     bool
	showVersion bool
}

func main() {
	os.Exit(run())
}

func run() int {
	// Model paths and runtime knobs may come from the environment; a
	// missing .env is not an error.
	_ = godotenv.Load()

	flags := &cliFlags{}
	flag.StringVar(&flags.configFile, "config", "", "configuration file")
	flag.StringVar(&flags.mode, "mode", "", "masking mode: mask, redact, remove")
	flag.StringVar(&flags.entities, "entities", "", "comma-separated entity types, or all")
	flag.StringVar(&flags.outputDir, "output", "", "directory for masked output")
	flag.BoolVar(&flags.dryRun, "dry-run", false, "detect without writing output")
	flag.StringVar(&flags.residual, "residual", "", "residual policy: warn, fail, block-output")
	flag.IntVar(&flags.concurrency, "concurrency", 0, "detection worker count")
	flag.BoolVar(&flags.recursive, "recursive", false, "descend into directories")
	flag.StringVar(&flags.reviewFile, "review", "", "write pending review items to this JSON file")
	flag.BoolVar(&flags.debug, "debug", false, "emit timing output")
	flag.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	flag.BoolVar(&flags.showVersion, "version", false, "print version and exit")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usageText) }
	flag.Parse()

	if flags.showVersion {
		fmt.Println(version.Info())
		return 0
	}

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg := config.LoadConfigOrDefault(flags.configFile)
	applyFlags(cfg, flags)

	if cfg.Defaults.NoColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := observability.LevelOff
	if cfg.Defaults.Debug {
		level = observability.LevelDebug
	}
	observer := observability.NewStandardObserver(level, os.Stderr)

	p, cleanup, err := buildPipeline(cfg, observer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	defer cleanup()

	files, err := collectFiles(flag.Args(), flags.recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no supported files found")
		return 2
	}

	caps := extract.Caps{
		MaxRows:     cfg.Caps.MaxRows,
		MaxPDFPages: cfg.Caps.MaxPDFPages,
		MaxBytes:    cfg.Caps.MaxBytes,
	}

	exitCode := 0
	var pending []entity.ReviewItem
	for _, file := range files {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return 130
		}
		code := processOne(ctx, p, cfg, caps, file, &pending)
		if code > exitCode {
			exitCode = code
		}
	}

	if flags.reviewFile != "" && len(pending) > 0 {
		if err := writeReviewQueue(flags.reviewFile, pending); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing review queue: %v\n", err)
			if exitCode == 0 {
				exitCode = 1
			}
		}
	}

	if p.RuleOnly() {
		color.Yellow("Note: no ML model available, detection ran in rule-only mode")
	}
	return exitCode
}

// applyFlags lets explicitly-set flags override the config file.
func applyFlags(cfg *config.Config, flags *cliFlags) {
	if isFlagSet("mode") {
		cfg.Masking.Mode = flags.mode
	}
	if isFlagSet("entities") {
		cfg.Defaults.Entities = strings.Split(flags.entities, ",")
	}
	if isFlagSet("output") {
		cfg.Masking.OutputDir = flags.outputDir
	}
	if isFlagSet("dry-run") {
		cfg.Masking.DryRun = flags.dryRun
	}
	if isFlagSet("residual") {
		cfg.Validation.ResidualPolicy = flags.residual
	}
	if isFlagSet("concurrency") && flags.concurrency > 0 {
		cfg.Processing.Concurrency = flags.concurrency
	}
	if isFlagSet("debug") {
		cfg.Defaults.Debug = flags.debug
	}
	if isFlagSet("no-color") {
		cfg.Defaults.NoColor = flags.noColor
	}
	if isFlagSet("review") {
		cfg.Masking.ReviewQueue = true
	}
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// buildPipeline assembles the detection and masking stack from config.
func buildPipeline(cfg *config.Config, observer *observability.StandardObserver) (*pipeline.Pipeline, func(), error) {
	matcher := rules.NewMatcherForTypes(cfg.EnabledEntities(entity.AllTypes()))

	var primary, secondary tagger.Model
	var closers []func()
	if cfg.Models.PrimaryPath != "" {
		m, err := tagger.NewHugotModel(cfg.Models.PrimaryPath, "primary", cfg.Models.MaxSequenceLength)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: primary model unavailable: %v\n", err)
		} else {
			primary = m
			closers = append(closers, func() { _ = m.Close() })
		}
	}
	if cfg.Models.SecondaryPath != "" {
		m, err := tagger.NewHugotModel(cfg.Models.SecondaryPath, "secondary", cfg.Models.MaxSequenceLength)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: secondary model unavailable: %v\n", err)
		} else {
			secondary = m
			closers = append(closers, func() { _ = m.Close() })
		}
	}
	tag := tagger.New(primary, secondary, tagger.ParseAggregation(cfg.Detection.Aggregation), observer)

	engine := fusion.NewEngine(cfg.Detection.MinConfidence, cfg.Detection.QuestionableHigh)
	masker := masking.NewEngine(masking.ParseMode(cfg.Masking.Mode), cfg.Masking.PartialReveal)

	detect := func(ctx context.Context, unit entity.TextUnit) ([]entity.EntityMatch, error) {
		matches := matcher.Detect(unit)
		ml, err := tag.Detect(ctx, unit)
		if err != nil {
			return matches, err
		}
		return append(matches, ml...), nil
	}
	validator := residual.NewValidator(detect, engine, residual.ParsePolicy(cfg.Validation.ResidualPolicy))

	p := pipeline.New(pipeline.Options{
		Matcher:                matcher,
		Tagger:                 tag,
		Fusion:                 engine,
		Masker:                 masker,
		Residual:               validator,
		Observer:               observer,
		Concurrency:            cfg.Processing.Concurrency,
		AutoAcceptQuestionable: !cfg.Masking.ReviewQueue,
	})

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return p, cleanup, nil
}

// collectFiles expands the argument list into scannable files.
func collectFiles(args []string, recursive bool) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		if !recursive {
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if !e.IsDir() && supportedExt(e.Name()) {
					files = append(files, filepath.Join(arg, e.Name()))
				}
			}
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supportedExt(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func supportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text", ".log", ".md", ".csv", ".pdf":
		return true
	}
	return false
}

// processOne runs the pipeline over a single file and prints its summary.
// Returns the exit code contribution: 0 clean, 1 policy failure.
func processOne(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, caps extract.Caps, file string, pending *[]entity.ReviewItem) int {
	outputPath := ""
	if !cfg.Masking.DryRun {
		if err := os.MkdirAll(cfg.Masking.OutputDir, 0750); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		outputPath = filepath.Join(cfg.Masking.OutputDir, filepath.Base(file))
	}

	result, err := p.ProcessFile(ctx, file, outputPath, caps)
	if err != nil {
		switch err.(type) {
		case *errs.CapExceededError:
			// Over-cap inputs are skipped whole, never truncated.
			color.Yellow("SKIP %s: %v", file, err)
			return 0
		case *errs.PolicyViolation:
			color.Red("FAIL %s: %v", file, err)
			if result != nil && result.Report != nil {
				fmt.Println(result.Report.Summary())
			}
			return 1
		default:
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", file, err)
			return 1
		}
	}

	*pending = append(*pending, result.ReviewItems...)

	label := color.GreenString("OK")
	if result.Report.Residual > 0 {
		label = color.YellowString("WARN")
	}
	fmt.Printf("%s %s: %s\n", label, file, result.Report.Summary())
	if len(result.ReviewItems) > 0 {
		color.Yellow("  %d entit(ies) pending review, left unmasked", len(result.ReviewItems))
	}
	if result.OutputPath != "" {
		fmt.Printf("  masked output: %s\n", result.OutputPath)
	}
	return 0
}

// writeReviewQueue persists pending review items so a reviewer can accept
// or reject them in a follow-up run.
func writeReviewQueue(path string, items []entity.ReviewItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
