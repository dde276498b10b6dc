package normalize

import (
	"errors"
	"strings"
	"testing"

	"github.com/serolab/titerplot/internal/reshape"
)

func rawRecord(id, age, d0, d21, d42 string) reshape.Record {
	return reshape.Record{
		ID:       id,
		Age:      age,
		Gender:   "F",
		Dose:     "15ug",
		HAIDay0:  d0,
		HAIDay21: d21,
		HAIDay42: d42,
		Group:    "A",
	}
}

func TestRecords_BelowDetectionSentinel(t *testing.T) {
	records, err := Records([]reshape.Record{rawRecord("001", "32", "<4", "40", "40")}, DefaultOptions())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	if records[0].HAIDay0 == nil {
		t.Fatal("expected below-detection titer to be numeric, got missing")
	}
	if *records[0].HAIDay0 != 1 {
		t.Errorf("expected below-detection titer normalized to 1, got %v", *records[0].HAIDay0)
	}
}

func TestRecords_NoSampleSentinel(t *testing.T) {
	records, err := Records([]reshape.Record{rawRecord("001", "32", "4", "NS", "40")}, DefaultOptions())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	if records[0].HAIDay21 != nil {
		t.Errorf("expected no-sample titer to be missing, got %v", *records[0].HAIDay21)
	}
}

func TestRecords_EmptyCellMissing(t *testing.T) {
	records, err := Records([]reshape.Record{rawRecord("001", "32", "4", "", "40")}, DefaultOptions())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	if records[0].HAIDay21 != nil {
		t.Errorf("expected empty cell to be missing, got %v", *records[0].HAIDay21)
	}
}

func TestRecords_NumericTiter(t *testing.T) {
	records, err := Records([]reshape.Record{rawRecord("001", "32", "4", "1280", "40")}, DefaultOptions())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	if *records[0].HAIDay0 != 4 || *records[0].HAIDay21 != 1280 {
		t.Errorf("numeric titers mismapped: %v, %v", *records[0].HAIDay0, *records[0].HAIDay21)
	}
}

func TestRecords_WhitespaceTrimmed(t *testing.T) {
	records, err := Records([]reshape.Record{rawRecord("001", " 32 ", " <4 ", " 40 ", "40")}, DefaultOptions())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	if records[0].Age != 32 {
		t.Errorf("expected age 32, got %d", records[0].Age)
	}
	if *records[0].HAIDay0 != 1 || *records[0].HAIDay21 != 40 {
		t.Errorf("expected padded cells normalized, got %v, %v", *records[0].HAIDay0, *records[0].HAIDay21)
	}
}

func TestRecords_BadTiter(t *testing.T) {
	_, err := Records([]reshape.Record{rawRecord("007", "32", "4", "x9", "40")}, DefaultOptions())
	if err == nil {
		t.Fatal("expected error for unparseable titer, got nil")
	}
	if !errors.Is(err, ErrBadTiter) {
		t.Errorf("expected ErrBadTiter, got %v", err)
	}
	if !strings.Contains(err.Error(), `subject "007"`) || !strings.Contains(err.Error(), "hai_d21") {
		t.Errorf("error should locate the bad cell: %v", err)
	}
}

func TestRecords_NegativeTiter(t *testing.T) {
	_, err := Records([]reshape.Record{rawRecord("001", "32", "-8", "40", "40")}, DefaultOptions())
	if !errors.Is(err, ErrBadTiter) {
		t.Errorf("expected ErrBadTiter for negative titer, got %v", err)
	}
}

func TestRecords_NonFiniteTiter(t *testing.T) {
	for _, cell := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "Infinity"} {
		_, err := Records([]reshape.Record{rawRecord("001", "32", cell, "40", "40")}, DefaultOptions())
		if !errors.Is(err, ErrBadTiter) {
			t.Errorf("expected ErrBadTiter for %q, got %v", cell, err)
		}
	}
}

func TestRecords_BadAge(t *testing.T) {
	_, err := Records([]reshape.Record{rawRecord("001", "unknown", "4", "40", "40")}, DefaultOptions())
	if err == nil {
		t.Fatal("expected error for unparseable age, got nil")
	}
	if !errors.Is(err, ErrBadAge) {
		t.Errorf("expected ErrBadAge, got %v", err)
	}
}

func TestRecords_FieldsCarriedOver(t *testing.T) {
	records, err := Records([]reshape.Record{rawRecord("014", "71", "8", "16", "16")}, DefaultOptions())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	rec := records[0]
	if rec.ID != "014" || rec.Age != 71 || rec.Gender != "F" || rec.Dose != "15ug" || rec.Group != "A" {
		t.Errorf("fields not carried over: %+v", rec)
	}
}

func TestRecords_CustomSentinels(t *testing.T) {
	opts := Options{BelowDetection: "<10", DetectionFloor: 5, NoSample: "n/a"}

	records, err := Records([]reshape.Record{rawRecord("001", "32", "<10", "n/a", "20")}, opts)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	if *records[0].HAIDay0 != 5 {
		t.Errorf("expected custom floor 5, got %v", *records[0].HAIDay0)
	}
	if records[0].HAIDay21 != nil {
		t.Errorf("expected custom no-sample sentinel to be missing, got %v", *records[0].HAIDay21)
	}
	// The default sentinels are no longer special.
	if _, err := Records([]reshape.Record{rawRecord("002", "32", "<4", "20", "20")}, opts); !errors.Is(err, ErrBadTiter) {
		t.Errorf("expected default sentinel to fail under custom options, got %v", err)
	}
}
