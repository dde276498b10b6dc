// Package pipeline drives one analysis run: fetch the source page, locate
// the titer table, reshape it into subject rows, normalize the values, and
// derive the plotted quantities.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/serolab/titerplot/internal/config"
	"github.com/serolab/titerplot/internal/dataset"
	"github.com/serolab/titerplot/internal/debug"
	"github.com/serolab/titerplot/internal/derive"
	"github.com/serolab/titerplot/internal/fetch"
	"github.com/serolab/titerplot/internal/htmltable"
	"github.com/serolab/titerplot/internal/metrics"
	"github.com/serolab/titerplot/internal/normalize"
	"github.com/serolab/titerplot/internal/progress"
	"github.com/serolab/titerplot/internal/reshape"
)

// StageCount is the number of pipeline stages, used to size progress bars.
const StageCount = 5

// Source describes where the dataset came from.
type Source struct {
	URL        string
	FinalURL   string
	Title      string
	FetchedAt  time.Time
	TableIndex int
	Caption    string
}

// Result is the outcome of a completed run.
type Result struct {
	Records []dataset.Record
	Stats   []derive.GroupStats
	Source  Source
}

// Runner executes the pipeline stages in order
type Runner struct {
	config      *config.Config
	client      *fetch.Client
	collector   *metrics.Collector
	progress    *progress.Tracker
	debugLogger *debug.Logger
	inputFile   string
}

// NewRunner creates a new pipeline runner
func NewRunner(cfg *config.Config, prog *progress.Tracker, debugLog *debug.Logger) *Runner {
	return &Runner{
		config:      cfg,
		client:      fetch.NewClient(cfg.General.UserAgent, cfg.General.TimeoutDuration()),
		collector:   metrics.NewCollector(),
		progress:    prog,
		debugLogger: debugLog,
	}
}

// SetInputFile switches the fetch stage to a local HTML file instead of
// the network.
func (r *Runner) SetInputFile(path string) {
	r.inputFile = path
}

// Run executes all stages against the configured source. The first stage
// failure aborts the run; later stages are meaningless without their input.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	source := r.config.Source.URL
	if r.inputFile != "" {
		source = r.inputFile
	}

	if r.progress != nil && r.progress.IsEnabled() {
		fmt.Println("Starting pipeline...")
	} else {
		fmt.Printf("Processing %s\n", source)
	}

	res := &Result{
		Source: Source{
			URL:        source,
			TableIndex: r.config.Source.TableIndex,
		},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.General.TimeoutDuration())
	defer cancel()

	var page *fetch.Page
	err := r.runStage("fetch", func() (int, int, error) {
		start := time.Now()
		var err error
		page, err = r.loadPage(timeoutCtx)
		if err != nil {
			return 0, 0, err
		}

		res.Source.FinalURL = page.FinalURL
		res.Source.Title = page.Title
		res.Source.FetchedAt = time.Now()

		if r.debugLogger != nil && r.debugLogger.IsEnabled() {
			r.debugLogger.LogFetch(page.URL, page.FinalURL, page.StatusCode, page.HTML, time.Since(start))
		}
		return 0, 0, nil
	})
	if err != nil {
		return nil, err
	}

	var table htmltable.Table
	err = r.runStage("locate", func() (int, int, error) {
		tables, err := htmltable.Parse(bytes.NewReader(page.HTML))
		if err != nil {
			return 0, 0, err
		}
		table, err = htmltable.Select(tables, r.config.Source.TableIndex)
		if err != nil {
			return len(tables), 0, err
		}
		return len(tables), len(table.Rows), nil
	})
	if err != nil {
		return nil, err
	}
	res.Source.Caption = table.Caption
	if r.debugLogger != nil && r.debugLogger.IsFullCapture() {
		r.debugLogger.LogStageData("table", table)
	}

	var raw []reshape.Record
	err = r.runStage("reshape", func() (int, int, error) {
		var err error
		raw, err = reshape.Rows(table.Rows, reshape.Options{HeaderRow: r.config.Source.HeaderRow})
		return len(table.Rows), len(raw), err
	})
	if err != nil {
		return nil, err
	}
	if r.debugLogger != nil && r.debugLogger.IsFullCapture() {
		r.debugLogger.LogStageData("reshaped", raw)
	}

	var records []dataset.Record
	err = r.runStage("normalize", func() (int, int, error) {
		var err error
		records, err = normalize.Records(raw, normalize.Options{
			BelowDetection: r.config.Normalize.BelowDetection,
			DetectionFloor: r.config.Normalize.DetectionFloor,
			NoSample:       r.config.Normalize.NoSample,
		})
		return len(raw), len(records), err
	})
	if err != nil {
		return nil, err
	}
	if r.debugLogger != nil && r.debugLogger.IsFullCapture() {
		r.debugLogger.LogStageData("dataset", records)
	}

	err = r.runStage("derive", func() (int, int, error) {
		opts := derive.Options{ElderlyAge: r.config.Derive.ElderlyAge}
		records = derive.Enrich(records, opts)
		res.Records = records
		res.Stats = derive.Summarize(records, opts)
		return len(records), len(records), nil
	})
	if err != nil {
		return nil, err
	}

	if r.progress != nil {
		r.progress.Finish()
	}
	if r.progress == nil || !r.progress.IsEnabled() {
		fmt.Printf("\nPipeline completed: %d subjects\n", len(res.Records))
	}

	return res, nil
}

func (r *Runner) loadPage(ctx context.Context) (*fetch.Page, error) {
	if r.inputFile != "" {
		return fetch.FromFile(r.inputFile)
	}
	return r.client.Fetch(ctx, r.config.Source.URL)
}

// runStage wraps one stage with progress reporting, debug logging, and
// metrics collection.
func (r *Runner) runStage(name string, fn func() (rowsIn, rowsOut int, err error)) error {
	if r.progress != nil {
		r.progress.StartStage(name)
	}

	var stageLog *debug.StageLog
	if r.debugLogger != nil && r.debugLogger.IsEnabled() {
		stageLog = r.debugLogger.StartStage(name)
	}

	start := time.Now()
	rowsIn, rowsOut, err := fn()
	duration := time.Since(start)

	result := metrics.StageResult{
		Stage:     name,
		Success:   err == nil,
		Duration:  duration,
		RowsIn:    rowsIn,
		RowsOut:   rowsOut,
		Timestamp: start,
	}
	if err != nil {
		result.Error = err.Error()
		result.ErrorCategory = categorizeError(err)
	}
	r.collector.Add(result)

	if stageLog != nil {
		r.debugLogger.EndStage(stageLog, rowsIn, rowsOut, err)
	}
	if r.progress != nil {
		r.progress.CompleteStage()
	}

	if r.progress == nil || !r.progress.IsEnabled() {
		switch {
		case err != nil:
			fmt.Printf("  ✗ %s failed: %v\n", name, err)
		case rowsIn == 0 && rowsOut == 0:
			fmt.Printf("  ✓ %s (%v)\n", name, duration.Round(time.Millisecond))
		default:
			fmt.Printf("  ✓ %s: %d rows in, %d rows out (%v)\n", name, rowsIn, rowsOut, duration.Round(time.Millisecond))
		}
	}

	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	return nil
}

// categorizeError buckets a stage error for reporting. Typed errors from
// the stage packages are checked first; the substring fallback catches
// transport errors surfaced as plain strings.
func categorizeError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, fetch.ErrBadStatus):
		return "http_status"
	case errors.Is(err, htmltable.ErrNoTables), errors.Is(err, htmltable.ErrTableIndex):
		return "extraction"
	case errors.Is(err, reshape.ErrColumnCount):
		return "schema"
	case errors.Is(err, normalize.ErrBadTiter), errors.Is(err, normalize.ErrBadAge):
		return "value"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline"):
		return "timeout"
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"), strings.Contains(errStr, "dns"):
		return "network"
	}

	return "other"
}

// GetCollector returns the metrics collector
func (r *Runner) GetCollector() *metrics.Collector {
	return r.collector
}

// EnsureOutputDir creates a timestamped session subdirectory for artifacts
func (r *Runner) EnsureOutputDir() error {
	// Create a timestamped subdirectory for this session
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	sessionDir := filepath.Join(r.config.General.OutputDir, timestamp)

	// Update config to use the session directory for this run
	r.config.General.OutputDir = sessionDir

	// #nosec G301 - 0750 is more restrictive than 0755 but still allows owner/group access
	return os.MkdirAll(sessionDir, 0750)
}
