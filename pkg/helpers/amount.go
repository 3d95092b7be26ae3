// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// SOLDecimals is the number of decimal places of the native token.
const SOLDecimals = 9

// ErrNegativeAmount is returned when parsing a negative amount string.
var ErrNegativeAmount = errors.New("amount must not be negative")

// FormatAmount formats an amount in base units as a decimal string.
// For example, FormatAmount(1500000000, 9) returns "1.5".
func FormatAmount(amount uint64, decimals uint8) string {
	return ToUIAmount(amount, decimals).String()
}

// ToUIAmount converts an amount in base units to a decimal in whole units.
func ToUIAmount(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0).Shift(-int32(decimals))
}

// ParseAmount parses a decimal string to base units.
// For example, ParseAmount("1.5", 9) returns 1500000000.
// More fractional digits than decimals is an error, not a silent truncation.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount string")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return FromUIAmount(d, decimals)
}

// FromUIAmount converts a whole-unit decimal to base units.
func FromUIAmount(d decimal.Decimal, decimals uint8) (uint64, error) {
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), decimals)
	}

	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("amount overflow: %s", d.String())
	}

	return n.Uint64(), nil
}

// LamportsToSOL converts lamports to a SOL string.
func LamportsToSOL(lamports uint64) string {
	return FormatAmount(lamports, SOLDecimals)
}

// Pow10 returns 10^decimals as a uint64 multiplier. Decimals above 19 overflow.
func Pow10(decimals uint8) (uint64, error) {
	if decimals > 19 {
		return 0, fmt.Errorf("decimals %d out of range", decimals)
	}
	result := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		result *= 10
	}
	return result, nil
}
