package match

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

// -----------------------------------------------------------------------------
// Weighted Levenshtein core
// -----------------------------------------------------------------------------

func TestPlainDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"žluť", "zlut", 2},
	}
	for _, tc := range tests {
		if got := plain.Distance(tc.a, tc.b); !near(got, tc.want) {
			t.Fatalf("plain.Distance(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestHeaderToFieldCosts(t *testing.T) {
	t.Parallel()

	if got := headerToField.Distance("First Name", "first_name"); !near(got, 0.3) {
		t.Fatalf("forward(First Name, first_name) = %v, want 0.3", got)
	}
	if got := headerToField.Distance("A", "b"); !near(got, 1) {
		t.Fatalf("forward(A, b) = %v, want 1 (not a case fold)", got)
	}
	if got := headerToField.Distance("a-b", "a_b"); !near(got, 0.1) {
		t.Fatalf("forward(a-b, a_b) = %v, want 0.1", got)
	}
	if got := headerToField.Distance("a_b", "a_b"); got != 0 {
		t.Fatalf("forward(a_b, a_b) = %v, want 0", got)
	}
}

func TestFieldToHeaderGuardCosts(t *testing.T) {
	t.Parallel()

	// Inserting header characters is free; the field must survive intact.
	if got := fieldToHeader.Distance("id", "record id value"); got != 0 {
		t.Fatalf("reverse(id, record id value) = %v, want 0", got)
	}
	// '_' may stand in for any separator.
	if got := fieldToHeader.Distance("zip_code", "zip code"); got != 0 {
		t.Fatalf("reverse(zip_code, zip code) = %v, want 0", got)
	}
	// Missing characters cost one each.
	if got := fieldToHeader.Distance("zip_code", "zip"); !near(got, 5) {
		t.Fatalf("reverse(zip_code, zip) = %v, want 5", got)
	}
}

// -----------------------------------------------------------------------------
// Public scoring functions
// -----------------------------------------------------------------------------

func TestThresholdRejection(t *testing.T) {
	t.Parallel()

	if got := HeaderToFieldName("xyz_totally_unrelated", "id"); !math.IsInf(got, 1) {
		t.Fatalf("HeaderToFieldName(xyz_totally_unrelated, id) = %v, want +Inf", got)
	}
	if got := HeaderToHumanName("xyz_totally_unrelated", "Identifier"); !math.IsInf(got, 1) {
		t.Fatalf("HeaderToHumanName(xyz_totally_unrelated, Identifier) = %v, want +Inf", got)
	}
}

func TestCaseAndSeparatorTolerance(t *testing.T) {
	t.Parallel()

	good := HeaderToFieldName("First Name", "first_name")
	bad := HeaderToFieldName("First Name", "zip_code")

	if math.IsInf(good, 1) || good > 1 {
		t.Fatalf("HeaderToFieldName(First Name, first_name) = %v, want small finite", good)
	}
	if !(good < bad) {
		t.Fatalf("want first_name (%v) < zip_code (%v)", good, bad)
	}
}

func TestHeaderToHumanName(t *testing.T) {
	t.Parallel()

	if got := HeaderToHumanName("First Name", "First Name"); got != 0 {
		t.Fatalf("exact = %v, want 0", got)
	}
	// 2 edits against a 10-rune reference: 2 < 2.5 is accepted.
	if got := HeaderToHumanName("first name", "First Name"); !near(got, 2) {
		t.Fatalf("case-only = %v, want 2", got)
	}
	// 3 edits against 10 runes: rejected.
	if got := HeaderToHumanName("first nam", "First Name"); !math.IsInf(got, 1) {
		t.Fatalf("three edits = %v, want +Inf", got)
	}
}

func TestEmptyStringsNeverMatch(t *testing.T) {
	t.Parallel()

	if got := HeaderToHumanName("", ""); !math.IsInf(got, 1) {
		t.Fatalf("HeaderToHumanName(\"\", \"\") = %v, want +Inf", got)
	}
	if got := HeaderToFieldName("", "x"); !math.IsInf(got, 1) {
		t.Fatalf("HeaderToFieldName(\"\", x) = %v, want +Inf", got)
	}
	if got := Badness("", "Name", "name"); !math.IsInf(got, 1) {
		t.Fatalf("Badness(empty header) = %v, want +Inf", got)
	}
}

func TestUnicodeNormalization(t *testing.T) {
	t.Parallel()

	// "Město" with a precomposed ě vs. e + combining caron.
	composed := "M\u011bsto"
	decomposed := "Me\u030csto"
	if got := HeaderToHumanName(decomposed, composed); got != 0 {
		t.Fatalf("HeaderToHumanName(NFD, NFC) = %v, want 0", got)
	}
}

func TestBadnessTakesMinimum(t *testing.T) {
	t.Parallel()

	// The human name is far away but the field name is close.
	got := Badness("zip code", "Postal Code Of Residence", "zip_code")
	if !near(got, 0.1) {
		t.Fatalf("Badness = %v, want 0.1 from the field-name distance", got)
	}
}
