package derive

import (
	"math"
	"testing"

	"github.com/serolab/titerplot/internal/dataset"
)

const epsilon = 1e-9

func record(id, group string, age int, d0, d21 *float64) dataset.Record {
	return dataset.Record{
		ID:       id,
		Age:      age,
		Gender:   "F",
		Dose:     "15ug",
		HAIDay0:  d0,
		HAIDay21: d21,
		Group:    group,
	}
}

func TestEnrich_LogTitersAndIncrease(t *testing.T) {
	records := Enrich([]dataset.Record{
		record("001", "A", 32, dataset.Float64(1), dataset.Float64(40)),
	}, DefaultOptions())

	rec := records[0]
	if rec.LogHAIDay0 == nil || *rec.LogHAIDay0 != 0 {
		t.Errorf("expected log2(1) = 0, got %v", rec.LogHAIDay0)
	}
	want := math.Log2(40)
	if rec.LogHAIDay21 == nil || math.Abs(*rec.LogHAIDay21-want) > epsilon {
		t.Errorf("expected log2(40) = %v, got %v", want, rec.LogHAIDay21)
	}
	if rec.TiterIncrease == nil || math.Abs(*rec.TiterIncrease-want) > epsilon {
		t.Errorf("expected titer increase %v, got %v", want, rec.TiterIncrease)
	}
}

func TestEnrich_MissingPropagates(t *testing.T) {
	records := Enrich([]dataset.Record{
		record("001", "A", 32, dataset.Float64(4), nil),
		record("002", "A", 45, nil, dataset.Float64(40)),
	}, DefaultOptions())

	if records[0].LogHAIDay21 != nil {
		t.Errorf("expected log of missing titer to be missing, got %v", *records[0].LogHAIDay21)
	}
	if records[0].TiterIncrease != nil {
		t.Errorf("expected increase with missing day 21 to be missing, got %v", *records[0].TiterIncrease)
	}
	if records[0].LogHAIDay0 == nil {
		t.Error("expected present day 0 log to survive a missing day 21")
	}
	if records[1].TiterIncrease != nil {
		t.Errorf("expected increase with missing day 0 to be missing, got %v", *records[1].TiterIncrease)
	}
}

func TestEnrich_ElderlyBoundary(t *testing.T) {
	tests := []struct {
		age     int
		elderly bool
	}{
		{64, false},
		{65, true},
		{66, true},
	}

	for _, tt := range tests {
		records := Enrich([]dataset.Record{record("001", "A", tt.age, nil, nil)}, DefaultOptions())
		if records[0].Elderly != tt.elderly {
			t.Errorf("age %d: expected elderly=%v, got %v", tt.age, tt.elderly, records[0].Elderly)
		}
	}
}

func TestEnrich_CompositeKey(t *testing.T) {
	records := Enrich([]dataset.Record{record("014", "B", 71, nil, nil)}, DefaultOptions())
	if records[0].Key != "B_014" {
		t.Errorf("expected key B_014, got %q", records[0].Key)
	}
}

func TestEnrich_CustomElderlyAge(t *testing.T) {
	records := Enrich([]dataset.Record{record("001", "A", 62, nil, nil)}, Options{ElderlyAge: 60})
	if !records[0].Elderly {
		t.Error("expected 62 to be elderly with a 60-year cutoff")
	}
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	input := []dataset.Record{record("001", "A", 70, dataset.Float64(4), dataset.Float64(8))}
	Enrich(input, DefaultOptions())

	if input[0].Key != "" || input[0].LogHAIDay0 != nil {
		t.Errorf("input records were mutated: %+v", input[0])
	}
}

func TestLog2_Missing(t *testing.T) {
	if Log2(nil) != nil {
		t.Error("expected log of missing to be missing")
	}
}

func TestSummarize_Strata(t *testing.T) {
	records := Enrich([]dataset.Record{
		record("001", "A", 32, dataset.Float64(4), dataset.Float64(16)),  // increase 2, converted
		record("002", "A", 45, dataset.Float64(16), dataset.Float64(16)), // increase 0
		record("003", "B", 70, dataset.Float64(4), nil),                  // incomplete pair
		record("004", "B", 71, dataset.Float64(4), dataset.Float64(64)),  // increase 4, converted
	}, DefaultOptions())

	stats := Summarize(records, DefaultOptions())
	if len(stats) != 2 {
		t.Fatalf("expected 2 strata, got %d", len(stats))
	}

	younger, elderly := stats[0], stats[1]
	if younger.Elderly || !elderly.Elderly {
		t.Fatalf("strata out of order: %+v", stats)
	}
	if younger.Stratum != "under 65" || elderly.Stratum != "age 65+" {
		t.Errorf("unexpected stratum labels: %q, %q", younger.Stratum, elderly.Stratum)
	}

	if younger.Subjects != 2 || younger.CompletePairs != 2 {
		t.Errorf("younger counts wrong: %+v", younger)
	}
	if elderly.Subjects != 2 || elderly.CompletePairs != 1 {
		t.Errorf("elderly counts wrong: %+v", elderly)
	}

	// Younger day-0 titers 4 and 16: logs 2 and 4, GMT 2^3 = 8.
	if younger.GMTDay0 == nil || math.Abs(*younger.GMTDay0-8) > epsilon {
		t.Errorf("expected younger GMT day 0 of 8, got %v", younger.GMTDay0)
	}

	// One of two younger pairs converted, the single elderly pair did.
	if younger.Seroconversion == nil || math.Abs(*younger.Seroconversion-0.5) > epsilon {
		t.Errorf("expected younger seroconversion 0.5, got %v", younger.Seroconversion)
	}
	if elderly.Seroconversion == nil || math.Abs(*elderly.Seroconversion-1) > epsilon {
		t.Errorf("expected elderly seroconversion 1, got %v", elderly.Seroconversion)
	}
}

func TestSummarize_EmptyStratum(t *testing.T) {
	records := Enrich([]dataset.Record{
		record("001", "A", 32, dataset.Float64(4), dataset.Float64(16)),
	}, DefaultOptions())

	stats := Summarize(records, DefaultOptions())
	elderly := stats[1]
	if elderly.Subjects != 0 {
		t.Errorf("expected empty elderly stratum, got %d subjects", elderly.Subjects)
	}
	if elderly.GMTDay0 != nil || elderly.Seroconversion != nil {
		t.Errorf("expected missing aggregates for empty stratum: %+v", elderly)
	}
}

func TestStratumLabels(t *testing.T) {
	younger, elderly := StratumLabels(Options{ElderlyAge: 60})
	if younger != "under 60" || elderly != "age 60+" {
		t.Errorf("unexpected labels: %q, %q", younger, elderly)
	}
}
