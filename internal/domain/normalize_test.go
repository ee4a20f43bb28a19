package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanonicalDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"iso timestamp", "2024-03-05T10:00:00Z", "2024-03-05"},
		{"iso date", "2024-03-05", "2024-03-05"},
		{"brazilian format", "05/03/2024", "2024-03-05"},
		{"empty falls back to today", "", "2024-06-15"},
		{"whitespace only falls back to today", "   ", "2024-06-15"},
		{"datetime with space", "2024-03-05 08:30:00", "2024-03-05"},
		{"slash layout", "2024/03/05", "2024-03-05"},
		{"unparseable kept as-is", "not a date", "not a date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanonicalDate(tt.input, now)
			if got != tt.want {
				t.Errorf("CanonicalDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanonicalDate_Idempotent(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	inputs := []string{"2024-03-05T10:00:00Z", "05/03/2024", "", "garbage"}

	for _, in := range inputs {
		once := CanonicalDate(in, now)
		twice := CanonicalDate(once, now)
		if once != twice {
			t.Errorf("CanonicalDate not a fixed point for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCoerceEdited(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  bool
	}{
		{"bool true", true, true},
		{"bool false", false, false},
		{"upper string", "TRUE", true},
		{"lower string", "true", true},
		{"mixed case string", "True", false},
		{"false string", "FALSE", false},
		{"nil", nil, false},
		{"number", float64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceEdited(tt.input); got != tt.want {
				t.Errorf("CoerceEdited(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTransactionSigned(t *testing.T) {
	in := Transaction{Direction: DirectionIn, Amount: decimal.NewFromInt(150)}
	out := Transaction{Direction: DirectionOut, Amount: decimal.NewFromInt(40)}

	if !in.Signed().Equal(decimal.NewFromInt(150)) {
		t.Errorf("Entrada signed = %s, want 150", in.Signed())
	}
	if !out.Signed().Equal(decimal.NewFromInt(-40)) {
		t.Errorf("Saída signed = %s, want -40", out.Signed())
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail(" A@X.com "); got != "a@x.com" {
		t.Errorf("NormalizeEmail = %q, want %q", got, "a@x.com")
	}
}
