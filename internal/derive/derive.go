// Package derive attaches log-scale titers, the titer-increase metric, and
// cohort descriptors to normalized records.
package derive

import (
	"fmt"
	"math"

	"github.com/serolab/titerplot/internal/dataset"
)

// Options control the derived cohort descriptors.
type Options struct {
	// ElderlyAge is the minimum age, inclusive, of the elderly stratum.
	ElderlyAge int
}

// DefaultOptions uses the conventional 65-year elderly cutoff.
func DefaultOptions() Options {
	return Options{ElderlyAge: 65}
}

// Enrich returns a copy of records with the derived fields attached.
// Missing titers propagate: the log of a missing reading is missing, and
// the titer increase is missing when either endpoint is. Records are not
// mutated after this step.
func Enrich(records []dataset.Record, opts Options) []dataset.Record {
	enriched := make([]dataset.Record, len(records))
	for i, rec := range records {
		rec.Elderly = rec.Age >= opts.ElderlyAge
		rec.Key = fmt.Sprintf("%s_%s", rec.Group, rec.ID)
		rec.LogHAIDay0 = Log2(rec.HAIDay0)
		rec.LogHAIDay21 = Log2(rec.HAIDay21)
		rec.TiterIncrease = diff(rec.LogHAIDay21, rec.LogHAIDay0)
		enriched[i] = rec
	}
	return enriched
}

// Log2 is the base-2 logarithm lifted over missing values.
func Log2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return dataset.Float64(math.Log2(*v))
}

// StratumLabels returns the display labels for the two age strata.
func StratumLabels(opts Options) (younger, elderly string) {
	return fmt.Sprintf("under %d", opts.ElderlyAge), fmt.Sprintf("age %d+", opts.ElderlyAge)
}

func diff(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return dataset.Float64(*a - *b)
}
