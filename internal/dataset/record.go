// Package dataset defines the cleaned subject-level records produced by the
// pipeline and consumed by the derive and report stages.
package dataset

// Record is one study subject from the source immunogenicity table.
// Titer fields are pointers so a missing reading (no sample taken) is
// distinguishable from a measured value.
type Record struct {
	ID     string `json:"id"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Dose   string `json:"dose"`

	// Hemagglutination-inhibition titers on the reciprocal-dilution scale,
	// taken at day 0, day 21, and day 42 of the study.
	HAIDay0  *float64 `json:"hai_d0"`
	HAIDay21 *float64 `json:"hai_d21"`
	HAIDay42 *float64 `json:"hai_d42"`

	// Group is the cohort label recovered from the section header rows of
	// the source table.
	Group string `json:"group"`

	// Derived fields, attached by the derive package.
	Elderly       bool     `json:"elderly"`
	Key           string   `json:"key,omitempty"`
	LogHAIDay0    *float64 `json:"log_hai_d0,omitempty"`
	LogHAIDay21   *float64 `json:"log_hai_d21,omitempty"`
	TiterIncrease *float64 `json:"titerincrease,omitempty"`
}

// HasShift reports whether the record carries both coordinates used by the
// titer-shift plot.
func (r Record) HasShift() bool {
	return r.LogHAIDay0 != nil && r.TiterIncrease != nil
}

// Float64 returns a pointer to v, for building records with literal titer
// values.
func Float64(v float64) *float64 {
	return &v
}
