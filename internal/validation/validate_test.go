package validation

import (
	"strings"
	"testing"
)

type fakeTable struct {
	records [][5]float64 // frames, unsharpen, aq, target, crf
}

func (t fakeTable) Len() int { return len(t.records) }

func (t fakeTable) TotalFrames() int {
	var n int
	for _, r := range t.records {
		n += int(r[0])
	}
	return n
}

func (t fakeTable) RecordAt(g int) (int, float64, float64, float64, int) {
	r := t.records[g]
	return int(r[0]), r[1], r[2], r[3], int(r[4])
}

func goodTable() fakeTable {
	return fakeTable{records: [][5]float64{
		{400, 0.3, 1.25, 94.5, 27},
		{120, 0.0, 1.5, 96.0, 19},
		{1, 0.9, 1.0, 90.0, 41},
	}}
}

func TestValidTablePasses(t *testing.T) {
	tbl := goodTable()
	res := ValidateTable(tbl, 3, tbl.TotalFrames())
	if !res.Passed() {
		t.Fatalf("valid table failed: %+v", res.Failures())
	}
	if len(res.Steps) != 3 {
		t.Errorf("expected 3 steps, got %d", len(res.Steps))
	}
}

func TestLengthMismatch(t *testing.T) {
	tbl := goodTable()
	res := ValidateTable(tbl, 4, tbl.TotalFrames())
	if res.Passed() {
		t.Fatal("length mismatch should fail")
	}
	if res.Failures()[0].Name != "Table length" {
		t.Errorf("unexpected failing step: %+v", res.Failures()[0])
	}
}

func TestFrameMismatch(t *testing.T) {
	tbl := goodTable()
	res := ValidateTable(tbl, 3, tbl.TotalFrames()+5)
	if res.Passed() {
		t.Fatal("frame mismatch should fail")
	}
}

func TestRangeViolations(t *testing.T) {
	tests := []struct {
		name   string
		record [5]float64
		detail string
	}{
		{"crf low", [5]float64{100, 0.1, 1.1, 94, 18}, "crf"},
		{"crf high", [5]float64{100, 0.1, 1.1, 94, 42}, "crf"},
		{"aq low", [5]float64{100, 0.1, 0.9, 94, 25}, "aq"},
		{"target low", [5]float64{100, 0.1, 1.1, 89.9, 25}, "target"},
		{"target high", [5]float64{100, 0.1, 1.1, 96.1, 25}, "target"},
		{"unsharpen off grid", [5]float64{100, 0.25, 1.1, 94, 25}, "unsharpen"},
		{"unsharpen high", [5]float64{100, 1.0, 1.1, 94, 25}, "unsharpen"},
		{"zero frames", [5]float64{0, 0.1, 1.1, 94, 25}, "frame"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := fakeTable{records: [][5]float64{tt.record}}
			res := ValidateTable(tbl, 1, tbl.TotalFrames())
			if res.Passed() {
				t.Fatal("expected a range failure")
			}
			found := false
			for _, step := range res.Failures() {
				if strings.Contains(strings.ToLower(step.Details), tt.detail) {
					found = true
				}
			}
			if !found {
				t.Errorf("failure details do not mention %q: %+v", tt.detail, res.Failures())
			}
		})
	}
}

func TestUnknownExpectationsSkipped(t *testing.T) {
	tbl := goodTable()
	res := ValidateTable(tbl, -1, -1)
	if !res.Passed() {
		t.Errorf("negative expectations should skip the comparisons: %+v", res.Failures())
	}
}
