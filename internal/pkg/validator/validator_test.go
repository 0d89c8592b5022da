package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // v7
		"123e4567-e89b-12d3-a456-426614174000", // v1
		"0188D0F2-7B8C-7B4A-8A2B-6B8B8B8B8B8B", // uppercase
	}
	invalid := []string{
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",     // missing dashes
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // invalid hex
		"urn:uuid:123e4567-e89b-12d3-a456-426614174000",
		"",
	}
	for _, id := range valid {
		if !IsValidUUID(id) {
			t.Errorf("IsValidUUID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if IsValidUUID(id) {
			t.Errorf("IsValidUUID(%q) = true, want false", id)
		}
	}
}

func TestIsValidMonthAndYear(t *testing.T) {
	for _, m := range []int{1, 6, 12} {
		if !IsValidMonth(m) {
			t.Errorf("IsValidMonth(%d) = false, want true", m)
		}
	}
	for _, m := range []int{0, 13, -1} {
		if IsValidMonth(m) {
			t.Errorf("IsValidMonth(%d) = true, want false", m)
		}
	}
	if IsValidYear(1999) || !IsValidYear(2024) || IsValidYear(10000) {
		t.Errorf("IsValidYear bounds are wrong")
	}
}

func TestIsPercentage(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"0", true},
		{"12.5", true},
		{"100", true},
		{"100.01", false},
		{"-1", false},
	}
	for _, c := range cases {
		got := IsPercentage(decimal.RequireFromString(c.input))
		if got != c.want {
			t.Errorf("IsPercentage(%s) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"a", " b", "", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Unique() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Unique() = %v, want %v", got, want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Err() != nil {
		t.Fatalf("empty ValidationErrors should not be an error")
	}
	errs.Add("month", "must be between 1 and 12")
	errs.Add("year", "is required")
	if errs.Err() == nil {
		t.Fatalf("expected error")
	}
	if got := errs.Error(); got != "month: must be between 1 and 12; year: is required" {
		t.Errorf("Error() = %q", got)
	}
	if m := errs.ToMap(); m["year"] != "is required" {
		t.Errorf("ToMap() = %v", m)
	}
}
