// Package report renders the titer-shift plot and writes the Markdown,
// JSON, and CSV artifacts of a processed dataset.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/serolab/titerplot/internal/dataset"
	"github.com/serolab/titerplot/internal/derive"
	"github.com/serolab/titerplot/internal/metrics"
)

// Meta describes where the dataset came from.
type Meta struct {
	SourceURL  string    `json:"source_url"`
	FinalURL   string    `json:"final_url,omitempty"`
	PageTitle  string    `json:"page_title,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
	TableIndex int       `json:"table_index"`
	Caption    string    `json:"caption,omitempty"`
}

// Input bundles everything the generator writes out.
type Input struct {
	Records []dataset.Record
	Stats   []derive.GroupStats
	Stages  []metrics.StageResult
	Meta    Meta
}

// Generator creates report artifacts from a pipeline run
type Generator struct {
	in        Input
	outputDir string
	plotOpts  PlotOptions
}

// NewGenerator creates a new report generator
func NewGenerator(in Input, outputDir string, plotOpts PlotOptions) *Generator {
	return &Generator{
		in:        in,
		outputDir: outputDir,
		plotOpts:  plotOpts,
	}
}

// GenerateAll generates all report formats
func (g *Generator) GenerateAll() error {
	if err := g.GeneratePlot(); err != nil {
		return fmt.Errorf("failed to generate plot: %w", err)
	}
	if err := g.GenerateMarkdown(); err != nil {
		return fmt.Errorf("failed to generate markdown report: %w", err)
	}
	if err := g.GenerateJSON(); err != nil {
		return fmt.Errorf("failed to generate JSON report: %w", err)
	}
	if err := g.GenerateCSV(); err != nil {
		return fmt.Errorf("failed to generate CSV export: %w", err)
	}
	return nil
}

// GeneratePlot renders the scatter plot PNG
func (g *Generator) GeneratePlot() error {
	png, err := RenderScatter(g.in.Records, g.plotOpts)
	if err != nil {
		return err
	}

	outputPath := filepath.Join(g.outputDir, "titer_shift.png")
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, png, 0640)
}

// GenerateMarkdown creates a markdown summary report
func (g *Generator) GenerateMarkdown() error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	var sb strings.Builder
	sb.WriteString("# HAI Titer Shift Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", timestamp))

	sb.WriteString("## Source\n\n")
	sb.WriteString(fmt.Sprintf("- URL: %s\n", g.in.Meta.SourceURL))
	if g.in.Meta.FinalURL != "" && g.in.Meta.FinalURL != g.in.Meta.SourceURL {
		sb.WriteString(fmt.Sprintf("- Resolved to: %s\n", g.in.Meta.FinalURL))
	}
	if g.in.Meta.PageTitle != "" {
		sb.WriteString(fmt.Sprintf("- Page title: %s\n", g.in.Meta.PageTitle))
	}
	if !g.in.Meta.FetchedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("- Fetched: %s\n", g.in.Meta.FetchedAt.Format("2006-01-02 15:04:05")))
	}
	caption := g.in.Meta.Caption
	if caption == "" {
		caption = "(none)"
	}
	sb.WriteString(fmt.Sprintf("- Table %d, caption: %s\n\n", g.in.Meta.TableIndex, caption))

	// Cohort table
	sb.WriteString("## Cohort Summary\n\n")
	sb.WriteString("| Stratum | Subjects | Complete Pairs | GMT Day 0 | GMT Day 21 | Mean Log2 Increase | Seroconversion |\n")
	sb.WriteString("|---------|----------|----------------|-----------|------------|--------------------|----------------|\n")

	for _, st := range g.in.Stats {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %s | %s |\n",
			st.Stratum,
			st.Subjects,
			st.CompletePairs,
			formatOptional(st.GMTDay0, "%.1f"),
			formatOptional(st.GMTDay21, "%.1f"),
			formatOptional(st.MeanIncrease, "%.2f"),
			formatPercent(st.Seroconversion),
		))
	}

	sb.WriteString("\n")

	sb.WriteString("## Trend by Stratum\n\n")
	younger, elderly := splitStrata(g.in.Records)
	writeTrend(&sb, g.plotOpts.YoungerLabel, younger)
	writeTrend(&sb, g.plotOpts.ElderlyLabel, elderly)
	sb.WriteString("\n")

	sb.WriteString("## Pipeline Stages\n\n")
	sb.WriteString("| Stage | Status | Duration | Rows In | Rows Out |\n")
	sb.WriteString("|-------|--------|----------|---------|----------|\n")

	for _, r := range g.in.Stages {
		status := "✅ Pass"
		if !r.Success {
			status = fmt.Sprintf("❌ Fail (%s)", r.ErrorCategory)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %v | %d | %d |\n",
			r.Stage,
			status,
			r.Duration.Round(time.Millisecond),
			r.RowsIn,
			r.RowsOut,
		))
	}

	plottable := 0
	for _, r := range g.in.Records {
		if r.HasShift() {
			plottable++
		}
	}
	sb.WriteString(fmt.Sprintf("\n%d subjects processed, %d with complete day 0 and day 21 titers.\n",
		len(g.in.Records), plottable))

	// Write file
	outputPath := filepath.Join(g.outputDir, "report.md")
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, []byte(sb.String()), 0640)
}

// GenerateJSON creates a JSON report with raw data
func (g *Generator) GenerateJSON() error {
	trends := make(map[string]*TrendLine)
	younger, elderly := splitStrata(g.in.Records)
	for _, stratum := range []struct {
		label   string
		records []dataset.Record
	}{
		{g.plotOpts.YoungerLabel, younger},
		{g.plotOpts.ElderlyLabel, elderly},
	} {
		xs, ys := points(stratum.records)
		if tl, ok := FitTrend(xs, ys); ok {
			trends[stratum.label] = tl
		}
	}

	data := map[string]interface{}{
		"timestamp": time.Now(),
		"source":    g.in.Meta,
		"stats":     g.in.Stats,
		"trends":    trends,
		"stages":    g.in.Stages,
		"records":   g.in.Records,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	outputPath := filepath.Join(g.outputDir, "report.json")
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, jsonData, 0640)
}

// GenerateCSV exports the cleaned dataset, one row per subject
func (g *Generator) GenerateCSV() error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"key", "subject_id", "group", "age", "gender", "dose", "elderly",
		"hai_d0", "hai_d21", "hai_d42",
		"log2_hai_d0", "log2_hai_d21", "titerincrease",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range g.in.Records {
		row := []string{
			r.Key,
			r.ID,
			r.Group,
			strconv.Itoa(r.Age),
			r.Gender,
			r.Dose,
			strconv.FormatBool(r.Elderly),
			csvOptional(r.HAIDay0),
			csvOptional(r.HAIDay21),
			csvOptional(r.HAIDay42),
			csvOptional(r.LogHAIDay0),
			csvOptional(r.LogHAIDay21),
			csvOptional(r.TiterIncrease),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	outputPath := filepath.Join(g.outputDir, "dataset.csv")
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, buf.Bytes(), 0640)
}

func writeTrend(sb *strings.Builder, label string, records []dataset.Record) {
	xs, ys := points(records)
	tl, ok := FitTrend(xs, ys)
	if !ok {
		sb.WriteString(fmt.Sprintf("- **%s**: not enough complete pairs for a fit\n", label))
		return
	}
	sb.WriteString(fmt.Sprintf("- **%s**: slope %.3f, intercept %.3f, R² %.3f (n=%d)\n",
		label, tl.Slope, tl.Intercept, tl.R2, tl.N))
}

// formatOptional renders a possibly missing value for the markdown tables.
func formatOptional(v *float64, format string) string {
	if v == nil {
		return "NA"
	}
	return fmt.Sprintf(format, *v)
}

func formatPercent(v *float64) string {
	if v == nil {
		return "NA"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

// csvOptional renders a possibly missing value for the CSV export. Missing
// readings come out as NA, matching the convention of statistical tools.
func csvOptional(v *float64) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
