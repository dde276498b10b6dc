// Package main provides the entry point for the titer plot tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/serolab/titerplot/internal/config"
	"github.com/serolab/titerplot/internal/debug"
	"github.com/serolab/titerplot/internal/derive"
	"github.com/serolab/titerplot/internal/metrics"
	"github.com/serolab/titerplot/internal/pipeline"
	"github.com/serolab/titerplot/internal/progress"
	"github.com/serolab/titerplot/internal/report"
)

const defaultConfigPath = "config.toml"

type cliFlags struct {
	configPath    *string
	outputDir     *string
	sourceURL     *string
	inputFile     *string
	format        *string
	noProgress    *bool
	debugMode     *bool
	debugFullMode *bool
}

func parseFlags() *cliFlags {
	return &cliFlags{
		configPath:    flag.String("config", defaultConfigPath, "Path to configuration file"),
		outputDir:     flag.String("output", "", "Output directory for artifacts (overrides config)"),
		sourceURL:     flag.String("url", "", "Source page URL (overrides config)"),
		inputFile:     flag.String("input", "", "Read the page from a local HTML file instead of the network"),
		format:        flag.String("format", "all", "Artifacts to write: all, plot, md, json, csv"),
		noProgress:    flag.Bool("no-progress", false, "Disable progress bar (useful for CI)"),
		debugMode:     flag.Bool("debug", false, "Enable debug logging with stage timings and row counts"),
		debugFullMode: flag.Bool("debug-full", false, "Enable full debug logging with page snapshots"),
	}
}

// loadConfig falls back to the built-in defaults when the default config
// file is simply absent. An explicitly named file must exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

func main() {
	flags := parseFlags()
	flag.Parse()

	cfg, err := loadConfig(*flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *flags.outputDir != "" {
		cfg.General.OutputDir = *flags.outputDir
	}
	if *flags.sourceURL != "" {
		cfg.Source.URL = *flags.sourceURL
	}

	finalOutputDir, err := ensureOutputDir(cfg.General.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	cfg.General.OutputDir = finalOutputDir

	// Enable debug mode if debug-full is set
	enableDebug := *flags.debugMode || *flags.debugFullMode
	debugLogger := debug.NewLogger(enableDebug, *flags.debugFullMode, cfg.General.OutputDir)

	printBanner()

	if *flags.inputFile != "" {
		fmt.Printf("📄 Offline mode: reading %s\n\n", *flags.inputFile)
	}

	if enableDebug {
		if *flags.debugFullMode {
			fmt.Printf("🐛 Debug-full mode enabled: session trace + page snapshots\n")
			fmt.Printf("   Logging to: %s/\n\n", debugLogger.GetOutputPath())
		} else {
			fmt.Printf("🐛 Debug mode enabled: logging to %s/\n\n", debugLogger.GetOutputPath())
		}
	}

	prog := progress.NewTracker(pipeline.StageCount, !*flags.noProgress)

	runner := pipeline.NewRunner(cfg, prog, debugLogger)
	if *flags.inputFile != "" {
		runner.SetInputFile(*flags.inputFile)
	}

	ctx := context.Background()
	res, err := runner.Run(ctx)

	// A failed run still writes its debug trace before exiting
	finalizeDebugLog(debugLogger)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running pipeline: %v\n", err)
		os.Exit(1)
	}

	gen := report.NewGenerator(reportInput(res, runner.GetCollector()), cfg.General.OutputDir, plotOptions(cfg))
	generateReports(flags.format, gen, cfg.General.OutputDir)

	printSummary(res, runner.GetCollector())
}

func reportInput(res *pipeline.Result, collector *metrics.Collector) report.Input {
	return report.Input{
		Records: res.Records,
		Stats:   res.Stats,
		Stages:  collector.Results(),
		Meta: report.Meta{
			SourceURL:  res.Source.URL,
			FinalURL:   res.Source.FinalURL,
			PageTitle:  res.Source.Title,
			FetchedAt:  res.Source.FetchedAt,
			TableIndex: res.Source.TableIndex,
			Caption:    res.Source.Caption,
		},
	}
}

// finalizeDebugLog writes the debug session files for an enabled logger.
func finalizeDebugLog(logger *debug.Logger) {
	if !logger.IsEnabled() {
		return
	}
	if err := logger.Finalize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write debug log: %v\n", err)
		return
	}
	fmt.Printf("✓ Debug logs written to: %s/\n", logger.GetOutputPath())
}

func plotOptions(cfg *config.Config) report.PlotOptions {
	younger, elderly := derive.StratumLabels(derive.Options{ElderlyAge: cfg.Derive.ElderlyAge})
	return report.PlotOptions{
		Width:        cfg.Plot.Width,
		Height:       cfg.Plot.Height,
		Confidence:   cfg.Plot.Confidence,
		YoungerLabel: younger,
		ElderlyLabel: elderly,
	}
}

func printBanner() {
	fmt.Println(`
╔══════════════════════════════════════════════════════════════╗
║                   HAI Titer Shift Plotter                    ║
║      Fetch, reshape, and plot published HAI titer data       ║
╚══════════════════════════════════════════════════════════════╝`)
	fmt.Println()
}

func printSummary(res *pipeline.Result, collector *metrics.Collector) {
	fmt.Println("\n═══════════════════════════════════════════════════════════════")
	fmt.Println("                         RUN SUMMARY")
	fmt.Println("═══════════════════════════════════════════════════════════════")

	for _, st := range res.Stats {
		fmt.Printf("\n%s:\n", strings.ToUpper(st.Stratum))
		fmt.Printf("  Subjects: %d (%d complete pairs)\n", st.Subjects, st.CompletePairs)
		if st.GMTDay0 != nil && st.GMTDay21 != nil {
			fmt.Printf("  GMT: %.1f day 0, %.1f day 21\n", *st.GMTDay0, *st.GMTDay21)
		}
		if st.MeanIncrease != nil {
			fmt.Printf("  Mean log2 increase: %.2f\n", *st.MeanIncrease)
		}
		if st.Seroconversion != nil {
			fmt.Printf("  Seroconversion: %.0f%%\n", *st.Seroconversion*100)
		}
	}

	summary := collector.Summarize()
	fmt.Printf("\nStages: %d succeeded, %d failed in %v (slowest: %s)\n",
		summary.Succeeded, summary.Failed, summary.TotalDuration.Round(time.Millisecond), summary.SlowestStage)

	fmt.Println("\nReports generated successfully!")
	fmt.Println("View detailed results in the output directory.")
}

func generateReports(formatFlag *string, gen *report.Generator, outputDir string) {
	fmt.Println("\nGenerating reports...")

	formats := parseFormats(*formatFlag)
	for _, f := range formats {
		switch f {
		case "plot":
			if err := gen.GeneratePlot(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating plot: %v\n", err)
			} else {
				fmt.Printf("✓ Generated plot: %s/titer_shift.png\n", outputDir)
			}
		case "md":
			if err := gen.GenerateMarkdown(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating Markdown report: %v\n", err)
			} else {
				fmt.Printf("✓ Generated Markdown report: %s/report.md\n", outputDir)
			}
		case "json":
			if err := gen.GenerateJSON(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating JSON report: %v\n", err)
			} else {
				fmt.Printf("✓ Generated JSON report: %s/report.json\n", outputDir)
			}
		case "csv":
			if err := gen.GenerateCSV(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating CSV export: %v\n", err)
			} else {
				fmt.Printf("✓ Generated CSV export: %s/dataset.csv\n", outputDir)
			}
		case "all":
			if err := gen.GenerateAll(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating reports: %v\n", err)
			} else {
				fmt.Printf("✓ Generated all reports in: %s/\n", outputDir)
			}
		}
	}
}

func parseFormats(s string) []string {
	if s == "all" {
		return []string{"all"}
	}
	return strings.Split(s, ",")
}

// ensureOutputDir creates a timestamped subdirectory for artifacts
func ensureOutputDir(baseDir string) (string, error) {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	sessionDir := filepath.Join(baseDir, timestamp)

	if err := os.MkdirAll(sessionDir, 0750); err != nil {
		return "", err
	}

	return sessionDir, nil
}
