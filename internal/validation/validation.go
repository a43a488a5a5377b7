// Package validation checks projected positions and returns findings as values. Nothing
// here fails: an unsafe projection is reported, the caller decides what to do with it.
package validation

import (
	"leverage_builder/internal/core"
	"leverage_builder/internal/position"

	"github.com/shopspring/decimal"
)

// Kind identifies a finding
type Kind string

const (
	NotEnoughLiquidity        Kind = "not-enough-liquidity"
	BorrowUndercollateralized Kind = "borrow-undercollateralized"
	WithdrawMoreThanAvailable Kind = "withdraw-more-than-available"
	DebtLessThanDustLimit     Kind = "debt-less-than-dust-limit"
	PriceAboveMomp            Kind = "price-above-momp"
	PriceBelowHtp             Kind = "price-below-htp"
	GenerateCloseToMaxLtv     Kind = "generate-close-to-max-ltv"
	PaybackExceedsBalance     Kind = "payback-amount-exceeds-debt-token-balance"
	SwapOutputBelowRepayment  Kind = "swap-output-below-flashloan-repayment"
)

// CloseToMaxLtvDistance is how near max LTV a projection may get before a warning
var CloseToMaxLtvDistance = decimal.RequireFromString("0.03")

// Finding is one validation error or warning
type Finding struct {
	Kind    Kind              `json:"name"`
	Details map[string]string `json:"data,omitempty"`
}

// Result collects findings
type Result struct {
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

func (r *Result) addError(kind Kind, details map[string]string) {
	r.Errors = append(r.Errors, Finding{Kind: kind, Details: details})
}

func (r *Result) addWarning(kind Kind, details map[string]string) {
	r.Warnings = append(r.Warnings, Finding{Kind: kind, Details: details})
}

// Merge appends the findings of other
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// HasErrors reports whether any error was found
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Has reports whether a finding of kind is present
func (r Result) Has(kind Kind) bool {
	for _, f := range append(r.Errors, r.Warnings...) {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// Borrow checks a projection that adds debt. Liquidity is checked first and, when short,
// the undercollateralization check is skipped.
func Borrow(target position.Position, borrowed core.Amount) Result {
	var r Result
	market := target.Market()
	if market == nil {
		return r
	}

	available := market.AvailableLiquidity()
	if available.LessThan(borrowed) {
		r.addError(NotEnoughLiquidity, map[string]string{
			"amount":    target.Debt.Token.FromBaseUnits(available).String(),
			"requested": target.Debt.Token.FromBaseUnits(borrowed).String(),
		})
	} else if ltv, max := target.RiskRatio().LoanToValue, market.MaxLoanToValue(); ltv.GreaterThan(max) {
		r.addError(BorrowUndercollateralized, map[string]string{
			"amount":         target.Debt.Token.FromBaseUnits(borrowed).String(),
			"loanToValue":    ltv.StringFixed(4),
			"maxLoanToValue": max.StringFixed(4),
		})
	}

	r.Merge(Dust(target))
	r.Merge(CloseToMaxLtv(target))
	return r
}

// Withdraw checks that requested collateral can leave the current position
func Withdraw(current position.Position, requested core.Amount) Result {
	var r Result
	available := current.CollateralAvailable()
	if requested.GreaterThan(available) {
		r.addError(WithdrawMoreThanAvailable, map[string]string{
			"amount":    current.Collateral.Token.FromBaseUnits(available).String(),
			"requested": current.Collateral.Token.FromBaseUnits(requested).String(),
		})
	}
	return r
}

// Dust flags remaining debt that is non-zero but under the market minimum
func Dust(target position.Position) Result {
	var r Result
	market := target.Market()
	if market == nil {
		return r
	}
	dust := market.DustLimit()
	debt := target.Debt.Amount
	if debt.IsPositive() && debt.LessThan(dust) {
		r.addError(DebtLessThanDustLimit, map[string]string{
			"minDebtAmount": target.Debt.Token.FromBaseUnits(dust).String(),
		})
	}
	return r
}

// CloseToMaxLtv warns when a projection with debt ends within CloseToMaxLtvDistance of max
// LTV without exceeding it
func CloseToMaxLtv(target position.Position) Result {
	var r Result
	market := target.Market()
	if market == nil || target.Debt.Amount.IsZero() {
		return r
	}
	ltv := target.RiskRatio().LoanToValue
	max := market.MaxLoanToValue()
	if ltv.LessThanOrEqual(max) && max.Sub(ltv).LessThanOrEqual(CloseToMaxLtvDistance) {
		r.addWarning(GenerateCloseToMaxLtv, map[string]string{
			"loanToValue":    ltv.StringFixed(4),
			"maxLoanToValue": max.StringFixed(4),
		})
	}
	return r
}

// AjnaPrice checks the price hint an Ajna call is placed at against the pool bands: above
// MOMP is an error, below HTP a warning
func AjnaPrice(price decimal.Decimal, bands position.PriceBands) Result {
	var r Result
	if bands.MOMP.IsPositive() && price.GreaterThan(bands.MOMP) {
		r.addError(PriceAboveMomp, map[string]string{
			"price": price.String(),
			"momp":  bands.MOMP.String(),
		})
	}
	if bands.HTP.IsPositive() && price.LessThan(bands.HTP) {
		r.addWarning(PriceBelowHtp, map[string]string{
			"price": price.String(),
			"htp":   bands.HTP.String(),
		})
	}
	return r
}

// Payback checks that the owner holds enough debt token for the repayment
func Payback(debt core.Token, amount, walletBalance core.Amount) Result {
	var r Result
	if amount.GreaterThan(walletBalance) {
		r.addError(PaybackExceedsBalance, map[string]string{
			"amount":  debt.FromBaseUnits(amount).String(),
			"balance": debt.FromBaseUnits(walletBalance).String(),
		})
	}
	return r
}

// Repayment checks that the guaranteed swap output repays the flashloan with its premium
func Repayment(debt core.Token, receiveAtLeast, required core.Amount) Result {
	var r Result
	if receiveAtLeast.LessThan(required) {
		r.addError(SwapOutputBelowRepayment, map[string]string{
			"amount":   debt.FromBaseUnits(receiveAtLeast).String(),
			"required": debt.FromBaseUnits(required).String(),
		})
	}
	return r
}
