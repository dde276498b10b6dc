package derive

import (
	"math"

	"github.com/serolab/titerplot/internal/dataset"
)

// seroconversionShift is the log2 fold change (a four-fold titer rise)
// conventionally read as seroconversion.
const seroconversionShift = 2

// GroupStats summarizes one age stratum of the cohort.
type GroupStats struct {
	Stratum       string `json:"stratum"`
	Elderly       bool   `json:"elderly"`
	Subjects      int    `json:"subjects"`
	CompletePairs int    `json:"complete_pairs"`

	// Geometric mean titers, computed over subjects with a reading at the
	// respective day.
	GMTDay0  *float64 `json:"gmt_d0,omitempty"`
	GMTDay21 *float64 `json:"gmt_d21,omitempty"`

	// MeanIncrease and Seroconversion are computed over complete
	// day-0/day-21 pairs only.
	MeanIncrease   *float64 `json:"mean_titer_increase,omitempty"`
	Seroconversion *float64 `json:"seroconversion_rate,omitempty"`
}

// Summarize computes per-stratum cohort statistics over enriched records.
// The seroconversion rate is the share of complete pairs with at least a
// four-fold titer rise.
func Summarize(records []dataset.Record, opts Options) []GroupStats {
	youngerLabel, elderlyLabel := StratumLabels(opts)
	younger := &stratumAccumulator{stratum: youngerLabel}
	elderly := &stratumAccumulator{stratum: elderlyLabel, elderly: true}

	for _, rec := range records {
		acc := younger
		if rec.Elderly {
			acc = elderly
		}
		acc.add(rec)
	}

	return []GroupStats{younger.stats(), elderly.stats()}
}

type stratumAccumulator struct {
	stratum   string
	elderly   bool
	subjects  int
	logDay0   []float64
	logDay21  []float64
	increases []float64
	converted int
}

func (a *stratumAccumulator) add(rec dataset.Record) {
	a.subjects++
	if rec.LogHAIDay0 != nil {
		a.logDay0 = append(a.logDay0, *rec.LogHAIDay0)
	}
	if rec.LogHAIDay21 != nil {
		a.logDay21 = append(a.logDay21, *rec.LogHAIDay21)
	}
	if rec.TiterIncrease != nil {
		a.increases = append(a.increases, *rec.TiterIncrease)
		if *rec.TiterIncrease >= seroconversionShift {
			a.converted++
		}
	}
}

func (a *stratumAccumulator) stats() GroupStats {
	s := GroupStats{
		Stratum:       a.stratum,
		Elderly:       a.elderly,
		Subjects:      a.subjects,
		CompletePairs: len(a.increases),
	}
	if len(a.logDay0) > 0 {
		s.GMTDay0 = dataset.Float64(math.Exp2(mean(a.logDay0)))
	}
	if len(a.logDay21) > 0 {
		s.GMTDay21 = dataset.Float64(math.Exp2(mean(a.logDay21)))
	}
	if len(a.increases) > 0 {
		s.MeanIncrease = dataset.Float64(mean(a.increases))
		s.Seroconversion = dataset.Float64(float64(a.converted) / float64(len(a.increases)))
	}
	return s
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
