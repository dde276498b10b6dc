package report

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
)

// niceAxisBounds expands a data range to rounded limits so axis labels land
// on clean values.
func niceAxisBounds(min, max float64) (float64, float64) {
	if min > max {
		min, max = max, min
	}
	if min == max {
		min -= 1
		max += 1
	}

	span := max - min
	pad := span * 0.05
	step := niceStep(span / 5)

	lo := math.Floor((min-pad)/step) * step
	hi := math.Ceil((max+pad)/step) * step
	return lo, hi
}

// niceTicks builds chart ticks at nice intervals across [min, max].
func niceTicks(min, max float64) []chart.Tick {
	step := niceStep((max - min) / 5)
	if step <= 0 {
		return nil
	}

	var ticks []chart.Tick
	for v := min; v <= max+step/2; v += step {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v)})
	}
	return ticks
}

// niceStep rounds a raw step up to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	norm := raw / mag
	switch {
	case norm <= 1:
		return mag
	case norm <= 2:
		return 2 * mag
	case norm <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	if math.Abs(v) < 1 {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
