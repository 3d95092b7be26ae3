package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/klingsol/pkg/helpers"
)

// Errors returned before a transfer touches the network.
var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoBalance         = errors.New("balance unknown, refresh the account first")
	ErrInvalidRecipient  = errors.New("invalid recipient address")
	ErrInvalidMint       = errors.New("invalid mint address")
)

// ValidateTransfer checks amount against the available balance, both in base units.
func ValidateTransfer(amount, available uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > available {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientFunds, amount, available)
	}
	return nil
}

// ParseTransferAmount parses a whole-unit amount string into base units.
// Zero, negative and malformed amounts all return ErrInvalidAmount.
func ParseTransferAmount(s string, decimals uint8) (uint64, error) {
	d, err := parsePositive(s)
	if err != nil {
		return 0, err
	}

	amount, err := helpers.FromUIAmount(d, decimals)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

// RequirePositiveAmount rejects zero, negative and malformed amounts
// without knowing the token's decimals.
func RequirePositiveAmount(s string) error {
	_, err := parsePositive(s)
	return err
}

func parsePositive(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// CheckTransfer parses amount and validates it against available in one step.
func CheckTransfer(amount string, decimals uint8, available uint64) (uint64, error) {
	value, err := ParseTransferAmount(amount, decimals)
	if err != nil {
		return 0, err
	}
	if err := ValidateTransfer(value, available); err != nil {
		return 0, err
	}
	return value, nil
}

// ParseSOL parses a SOL amount such as "1.5" into lamports.
func ParseSOL(s string) (uint64, error) {
	return ParseTransferAmount(s, helpers.SOLDecimals)
}
