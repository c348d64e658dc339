package main

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	base := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC) // Wednesday

	tests := []struct {
		in   string
		want string
	}{
		{"", "2025-03-05"},
		{"2025-01-31", "2025-01-31"},
		{"today", "2025-03-05"},
		{"yesterday", "2025-03-04"},
		{"tomorrow", "2025-03-06"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDay(tt.in, base)
			if err != nil {
				t.Fatalf("parseDay(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseDay(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}

	if _, err := parseDay("qwerty", base); err == nil {
		t.Error("expected error for unparseable date")
	}
}
