// Package normalize maps the raw sentinel strings of the source table onto
// numeric or missing values, producing typed subject records.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/serolab/titerplot/internal/dataset"
	"github.com/serolab/titerplot/internal/reshape"
)

// Options name the sentinel strings used by the source table and the
// numeric floor substituted for censored readings.
type Options struct {
	// BelowDetection is the sentinel for titers under the assay detection
	// threshold. Matching cells become DetectionFloor.
	BelowDetection string
	// DetectionFloor is the value recorded for below-detection titers. One
	// unit keeps the log2 transform at zero for censored readings.
	DetectionFloor float64
	// NoSample is the sentinel for readings where no sample was taken.
	// Matching cells become missing, not zero.
	NoSample string
}

// DefaultOptions matches the sentinel conventions of the source table.
func DefaultOptions() Options {
	return Options{
		BelowDetection: "<4",
		DetectionFloor: 1,
		NoSample:       "NS",
	}
}

// Records converts reshaped rows into typed records. No raw sentinel
// string survives into the output: every titer cell is mapped to a number
// or to missing, and anything unrecognized fails the run. A bad cell is a
// data-quality signal, not a recoverable fault.
func Records(rows []reshape.Record, opts Options) ([]dataset.Record, error) {
	records := make([]dataset.Record, 0, len(rows))

	for i, row := range rows {
		age, err := parseAge(row.Age)
		if err != nil {
			return nil, fmt.Errorf("row %d (subject %q): %w", i, row.ID, err)
		}

		rec := dataset.Record{
			ID:     row.ID,
			Age:    age,
			Gender: row.Gender,
			Dose:   row.Dose,
			Group:  row.Group,
		}

		titers := []struct {
			name string
			raw  string
			dst  **float64
		}{
			{"hai_d0", row.HAIDay0, &rec.HAIDay0},
			{"hai_d21", row.HAIDay21, &rec.HAIDay21},
			{"hai_d42", row.HAIDay42, &rec.HAIDay42},
		}
		for _, t := range titers {
			value, err := titer(t.raw, opts)
			if err != nil {
				return nil, fmt.Errorf("row %d (subject %q) %s: %w", i, row.ID, t.name, err)
			}
			*t.dst = value
		}

		records = append(records, rec)
	}

	return records, nil
}

// titer normalizes a single titer cell. The below-detection sentinel is
// checked before the no-sample sentinel; empty cells are missing.
func titer(raw string, opts Options) (*float64, error) {
	value := strings.TrimSpace(raw)

	switch {
	case value == "":
		return nil, nil
	case opts.BelowDetection != "" && value == opts.BelowDetection:
		return dataset.Float64(opts.DetectionFloor), nil
	case opts.NoSample != "" && value == opts.NoSample:
		return nil, nil
	}

	// ParseFloat also accepts NaN and Inf spellings.
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil, fmt.Errorf("%q: %w", raw, ErrBadTiter)
	}
	return &parsed, nil
}

func parseAge(raw string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%q: %w", raw, ErrBadAge)
	}
	return age, nil
}
