package timeutil

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeNativeTime(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	got := Normalize(now)
	if got == nil || !got.Equal(now) {
		t.Fatalf("expected %v, got %v", now, got)
	}

	got = Normalize(&now)
	if got == nil || !got.Equal(now) {
		t.Fatalf("pointer input: expected %v, got %v", now, got)
	}
}

func TestNormalizeStrings(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-04T00:00:00Z", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)},
		{"2024-01-04T12:30:45.5Z", time.Date(2024, 1, 4, 12, 30, 45, 500000000, time.UTC)},
		{"2024-01-04", time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)},
		{"2024-01-04 09:15:00", time.Date(2024, 1, 4, 9, 15, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := Normalize(tc.input)
		if got == nil {
			t.Fatalf("Normalize(%q) returned nil", tc.input)
		}
		if !got.Equal(tc.want) {
			t.Errorf("Normalize(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNormalizeWrapperMaps(t *testing.T) {
	want := time.Unix(1704326400, 0).UTC()

	got := Normalize(map[string]any{"seconds": float64(1704326400), "nanos": float64(0)})
	if got == nil || !got.Equal(want) {
		t.Fatalf("seconds wrapper: got %v, want %v", got, want)
	}

	got = Normalize(map[string]any{"_seconds": float64(1704326400), "_nanoseconds": float64(0)})
	if got == nil || !got.Equal(want) {
		t.Fatalf("underscore wrapper: got %v, want %v", got, want)
	}
}

func TestNormalizeWrapperFromJSON(t *testing.T) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(`{"seconds": 1704326400, "nanos": 500}`), &decoded); err != nil {
		t.Fatal(err)
	}
	got := Normalize(decoded)
	if got == nil {
		t.Fatal("expected wrapper decoded from JSON to normalize")
	}
	if got.Unix() != 1704326400 {
		t.Errorf("got %v", got)
	}
}

func TestNormalizeRejectsAmbiguousInput(t *testing.T) {
	inputs := []any{
		"1704326400",          // numeric-looking string, not a tagged epoch
		float64(1704326400),   // bare number
		int64(1704326400),     // bare number
		"not a date",
		"",
		map[string]any{"millis": float64(12)},
		[]string{"2024-01-04"},
		time.Time{},
	}
	for _, input := range inputs {
		if got := Normalize(input); got != nil {
			t.Errorf("Normalize(%#v) = %v, want nil", input, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first := Normalize("2024-06-01T08:00:00Z")
	if first == nil {
		t.Fatal("first pass returned nil")
	}
	second := Normalize(*first)
	if second == nil || !second.Equal(*first) {
		t.Fatalf("re-normalizing a canonical instant changed it: %v vs %v", first, second)
	}
	third := Normalize(first)
	if third == nil || !third.Equal(*first) {
		t.Fatalf("re-normalizing a canonical pointer changed it: %v vs %v", first, third)
	}
}
