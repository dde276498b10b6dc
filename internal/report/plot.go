package report

import (
	"bytes"
	"errors"
	"fmt"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/serolab/titerplot/internal/dataset"
)

// ErrNoData indicates that no record carried both coordinates needed for
// the scatter plot.
var ErrNoData = errors.New("no plottable records")

const bandSamples = 40

// PlotOptions controls the rendered scatter plot. A Confidence of zero
// disables the trend confidence band.
type PlotOptions struct {
	Width        int
	Height       int
	Confidence   float64
	YoungerLabel string
	ElderlyLabel string
}

// RenderScatter draws baseline titer against titer increase on log2 scales,
// one color per age stratum, with a least squares trend and confidence band
// per stratum. It returns the encoded PNG.
func RenderScatter(records []dataset.Record, opts PlotOptions) ([]byte, error) {
	if opts.Width <= 0 {
		opts.Width = 900
	}
	if opts.Height <= 0 {
		opts.Height = 600
	}

	younger, elderly := splitStrata(records)
	yxs, yys := points(younger)
	exs, eys := points(elderly)

	allX := append(append([]float64{}, yxs...), exs...)
	allY := append(append([]float64{}, yys...), eys...)
	if len(allX) == 0 {
		return nil, ErrNoData
	}

	var series []chart.Series
	series = appendStratum(series, opts.YoungerLabel, yxs, yys, chart.ColorBlue, opts.Confidence)
	series = appendStratum(series, opts.ElderlyLabel, exs, eys, chart.ColorGreen, opts.Confidence)

	minX, maxX := minMax(allX)
	minY, maxY := minMax(allY)
	loX, hiX := niceAxisBounds(minX, maxX)
	loY, hiY := niceAxisBounds(minY, maxY)

	ch := chart.Chart{
		Title:      "HAI titer increase vs baseline titer",
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 24}},
		XAxis: chart.XAxis{
			Name:  "log2 HAI titer, day 0",
			Range: &chart.ContinuousRange{Min: loX, Max: hiX},
			Ticks: niceTicks(loX, hiX),
		},
		YAxis: chart.YAxis{
			Name:  "log2 titer increase, day 21 vs day 0",
			Range: &chart.ContinuousRange{Min: loY, Max: hiY},
			Ticks: niceTicks(loY, hiY),
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render plot: %w", err)
	}
	return buf.Bytes(), nil
}

// appendStratum adds the scatter series for one stratum, plus its trend
// line and confidence band when a fit is possible.
func appendStratum(series []chart.Series, name string, xs, ys []float64, col drawing.Color, level float64) []chart.Series {
	if len(xs) == 0 {
		return series
	}

	series = append(series, chart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style:   pointStyle(col),
	})

	tl, ok := FitTrend(xs, ys)
	if !ok {
		return series
	}

	lo, hi := minMax(xs)
	series = append(series, chart.ContinuousSeries{
		Name:    fmt.Sprintf("%s trend", name),
		XValues: []float64{lo, hi},
		YValues: []float64{tl.PredictAt(lo), tl.PredictAt(hi)},
		Style:   chart.Style{StrokeWidth: 2, StrokeColor: col},
	})

	if level <= 0 {
		return series
	}
	bandXs, upper, lower := bandPoints(tl, lo, hi, level)
	bandStyle := chart.Style{
		StrokeWidth:     1,
		StrokeColor:     col.WithAlpha(110),
		StrokeDashArray: []float64{5, 4},
	}
	series = append(series,
		chart.ContinuousSeries{XValues: bandXs, YValues: upper, Style: bandStyle},
		chart.ContinuousSeries{XValues: bandXs, YValues: lower, Style: bandStyle},
	)
	return series
}

// bandPoints samples the confidence band across [lo, hi]. The band curves
// away from the trend line toward the edges of the data.
func bandPoints(tl *TrendLine, lo, hi, level float64) (xs, upper, lower []float64) {
	step := (hi - lo) / bandSamples
	for i := 0; i <= bandSamples; i++ {
		x := lo + float64(i)*step
		y := tl.PredictAt(x)
		half := tl.ConfidenceBand(x, level)
		xs = append(xs, x)
		upper = append(upper, y+half)
		lower = append(lower, y-half)
	}
	return xs, upper, lower
}

// pointStyle returns a style that renders points only (no connecting line)
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		DotWidth:    4,
		DotColor:    col,
	}
}

// splitStrata partitions records by the elderly flag.
func splitStrata(records []dataset.Record) (younger, elderly []dataset.Record) {
	for _, r := range records {
		if r.Elderly {
			elderly = append(elderly, r)
		} else {
			younger = append(younger, r)
		}
	}
	return younger, elderly
}

// points extracts plot coordinates from records that carry both values.
func points(records []dataset.Record) (xs, ys []float64) {
	for _, r := range records {
		if !r.HasShift() {
			continue
		}
		xs = append(xs, *r.LogHAIDay0)
		ys = append(ys, *r.TiterIncrease)
	}
	return xs, ys
}

func minMax(vs []float64) (min, max float64) {
	min, max = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
