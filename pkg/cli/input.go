// Package cli parses and checks command line input
package cli

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"leverage_builder/internal/core"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned for malformed flags
var ErrInvalidInput = errors.New("invalid input")

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.]{1,16}$`)

// ValidateSymbol accepts short alphanumeric token symbols
func ValidateSymbol(input string) error {
	if !symbolPattern.MatchString(input) {
		return fmt.Errorf("%w: token symbol %q", ErrInvalidInput, input)
	}
	return nil
}

// ParseAddress parses a hex address; empty input yields the zero address
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: address %q", ErrInvalidInput, input)
	}
	return common.HexToAddress(input), nil
}

// ParseAmount parses a whole token amount and converts it to base units. Empty input is zero.
func ParseAmount(t core.Token, input string) (core.Amount, error) {
	v, err := parseNonNegative(input)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s amount: %w", t.Symbol, err)
	}
	return t.ToBaseUnits(v), nil
}

// ParsePercentage parses a fraction in [0, 1)
func ParsePercentage(input string) (core.Percentage, error) {
	v, err := parseNonNegative(input)
	if err != nil {
		return decimal.Zero, err
	}
	if v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: %s is not below 1", ErrInvalidInput, input)
	}
	return v, nil
}

// ParseDecimal parses a non-negative decimal; empty input is zero
func ParseDecimal(input string) (decimal.Decimal, error) {
	return parseNonNegative(input)
}

func parseNonNegative(input string) (decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, input)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidInput, input)
	}
	return v, nil
}
