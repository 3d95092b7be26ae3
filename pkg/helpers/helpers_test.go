package helpers

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	for _, v := range b {
		if v != 0 {
			t.Fatalf("Zero() left %v", b)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals uint8
		want     string
	}{
		{1000000000, 9, "1"},
		{1500000000, 9, "1.5"},
		{123456789, 9, "0.123456789"},
		{1, 9, "0.000000001"},
		{0, 9, "0"},
		{100000000000, 9, "100"},
		{250, 2, "2.5"},
		{123, 0, "123"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatAmount(tt.amount, tt.decimals)
			if got != tt.want {
				t.Errorf("FormatAmount(%d, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"1", 9, 1000000000, false},
		{"0.5", 9, 500000000, false},
		{" 2.25 ", 9, 2250000000, false},
		{"0.000000001", 9, 1, false},
		{"0", 9, 0, false},
		{"100", 6, 100000000, false},
		{"123", 0, 123, false},
		{"0.0000000001", 9, 0, true},
		{"-1", 9, 0, true},
		{"invalid", 9, 0, true},
		{"1.2.3", 9, 0, true},
		{"", 9, 0, true},
		{"99999999999999999999", 9, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAmount(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%s, %d) = %d, want %d", tt.input, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseAmountNegative(t *testing.T) {
	_, err := ParseAmount("-0.5", 9)
	if !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("ParseAmount(-0.5) error = %v, want ErrNegativeAmount", err)
	}
}

func TestFormatParseRoundtrip(t *testing.T) {
	amounts := []uint64{1, 100, 12345678, 1000000000, 999999999999}

	for _, amount := range amounts {
		formatted := FormatAmount(amount, 9)
		parsed, err := ParseAmount(formatted, 9)
		if err != nil {
			t.Errorf("ParseAmount(%s) failed: %v", formatted, err)
			continue
		}
		if parsed != amount {
			t.Errorf("roundtrip failed: %d -> %s -> %d", amount, formatted, parsed)
		}
	}
}

func TestLamportsSOLConversion(t *testing.T) {
	if got := LamportsToSOL(2500000000); got != "2.5" {
		t.Errorf("LamportsToSOL(2500000000) = %s, want 2.5", got)
	}
	if got, err := ParseAmount("0.01", SOLDecimals); err != nil || got != 10000000 {
		t.Errorf("ParseAmount(0.01) = %d, %v, want 10000000, nil", got, err)
	}
}

func TestFromUIAmount(t *testing.T) {
	got, err := FromUIAmount(decimal.RequireFromString("3.75"), 2)
	if err != nil {
		t.Fatalf("FromUIAmount() error = %v", err)
	}
	if got != 375 {
		t.Errorf("FromUIAmount(3.75, 2) = %d, want 375", got)
	}
}

func TestPow10(t *testing.T) {
	tests := []struct {
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{0, 1, false},
		{2, 100, false},
		{9, 1000000000, false},
		{19, 10000000000000000000, false},
		{20, 0, true},
	}

	for _, tt := range tests {
		got, err := Pow10(tt.decimals)
		if (err != nil) != tt.wantErr {
			t.Errorf("Pow10(%d) error = %v, wantErr %v", tt.decimals, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Pow10(%d) = %d, want %d", tt.decimals, got, tt.want)
		}
	}
}
