package main

import (
	"testing"
	"time"
)

func TestParseDue(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) // a Friday

	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-15T17:00:00Z", time.Date(2024, 3, 15, 17, 0, 0, 0, time.UTC)},
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDue(tt.input, now)
			if err != nil {
				t.Fatalf("parseDue() failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseDue(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDue_NaturalLanguage(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	got, err := parseDue("tomorrow", now)
	if err != nil {
		t.Fatalf("parseDue() failed: %v", err)
	}
	if day := got.Format("2006-01-02"); day != "2024-03-02" {
		t.Errorf("parseDue(tomorrow) = %s, want 2024-03-02", day)
	}
}

func TestParseDue_Invalid(t *testing.T) {
	if _, err := parseDue("whenever", time.Now()); err == nil {
		t.Error("parseDue() should reject text with no date")
	}
}
