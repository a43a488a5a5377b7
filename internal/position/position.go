// Package position models a collateral/debt position and projects the effect of operations
// on it. Every transition returns a new Position; derived metrics are computed on demand.
package position

import (
	"leverage_builder/internal/core"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// TokenAmount is an amount in base units of token
type TokenAmount struct {
	Token  core.Token
	Amount core.Amount
}

// Whole returns the amount in whole tokens
func (t TokenAmount) Whole() decimal.Decimal {
	return t.Token.FromBaseUnits(t.Amount)
}

// Position is a collateral and debt pair. Prices are per whole token in a common quote
// currency.
type Position struct {
	Collateral      TokenAmount
	Debt            TokenAmount
	CollateralPrice decimal.Decimal
	DebtPrice       decimal.Decimal

	market Market
}

// RiskRatio describes leverage three ways
type RiskRatio struct {
	LoanToValue            decimal.Decimal
	CollateralizationRatio decimal.Decimal
	Multiple               decimal.Decimal
}

// New builds a position; negative amounts are clamped to zero
func New(collateral, debt TokenAmount, collateralPrice, debtPrice decimal.Decimal, market Market) Position {
	collateral.Amount = nonNegative(collateral.Amount)
	debt.Amount = nonNegative(debt.Amount)
	return Position{
		Collateral:      collateral,
		Debt:            debt,
		CollateralPrice: collateralPrice,
		DebtPrice:       debtPrice,
		market:          market,
	}
}

func (p Position) Market() Market {
	return p.market
}

// WithMarket returns a copy bound to m
func (p Position) WithMarket(m Market) Position {
	p.market = m
	return p
}

func (p Position) Deposit(amount core.Amount) Position {
	p.Collateral.Amount = nonNegative(p.Collateral.Amount.Add(amount))
	return p
}

func (p Position) Withdraw(amount core.Amount) Position {
	p.Collateral.Amount = nonNegative(p.Collateral.Amount.Sub(amount))
	return p
}

func (p Position) Borrow(amount core.Amount) Position {
	p.Debt.Amount = nonNegative(p.Debt.Amount.Add(amount))
	return p
}

func (p Position) Payback(amount core.Amount) Position {
	p.Debt.Amount = nonNegative(p.Debt.Amount.Sub(amount))
	return p
}

// CollateralValue is the collateral in the quote currency
func (p Position) CollateralValue() decimal.Decimal {
	return p.Collateral.Whole().Mul(p.CollateralPrice)
}

// DebtValue is the debt in the quote currency
func (p Position) DebtValue() decimal.Decimal {
	return p.Debt.Whole().Mul(p.DebtPrice)
}

// PriceRatio is the collateral price expressed in debt token
func (p Position) PriceRatio() decimal.Decimal {
	if !p.DebtPrice.IsPositive() {
		return decimal.Zero
	}
	return p.CollateralPrice.Div(p.DebtPrice)
}

// RiskRatio reports the current leverage. A position with debt and no collateral reports
// an LTV of one and a zero multiple.
func (p Position) RiskRatio() RiskRatio {
	coll := p.CollateralValue()
	debt := p.DebtValue()

	var ltv decimal.Decimal
	switch {
	case debt.IsZero():
		ltv = decimal.Zero
	case !coll.IsPositive():
		ltv = one
	default:
		ltv = debt.Div(coll)
	}
	return riskRatioFromLTV(ltv)
}

// MaxRiskRatio is the risk ratio at the market's max loan to value
func (p Position) MaxRiskRatio() RiskRatio {
	if p.market == nil {
		return riskRatioFromLTV(decimal.Zero)
	}
	return riskRatioFromLTV(p.market.MaxLoanToValue())
}

func riskRatioFromLTV(ltv decimal.Decimal) RiskRatio {
	r := RiskRatio{LoanToValue: ltv}
	if ltv.IsPositive() {
		r.CollateralizationRatio = one.Div(ltv)
	}
	if ltv.LessThan(one) {
		r.Multiple = one.Div(one.Sub(ltv))
	}
	return r
}

// DebtAvailable is how much more can be borrowed at max LTV, in debt base units, floored
// at zero
func (p Position) DebtAvailable() core.Amount {
	if p.market == nil || !p.DebtPrice.IsPositive() {
		return decimal.Zero
	}
	room := p.CollateralValue().Mul(p.market.MaxLoanToValue()).Sub(p.DebtValue())
	return nonNegative(p.Debt.Token.ToBaseUnits(room.Div(p.DebtPrice)))
}

// CollateralAvailable is how much collateral can be withdrawn while staying at or under max
// LTV, in collateral base units, floored at zero
func (p Position) CollateralAvailable() core.Amount {
	if p.Debt.Amount.IsZero() {
		return p.Collateral.Amount
	}
	if p.market == nil || !p.market.MaxLoanToValue().IsPositive() || !p.CollateralPrice.IsPositive() {
		return decimal.Zero
	}
	required := p.DebtValue().Div(p.market.MaxLoanToValue()).Div(p.CollateralPrice)
	locked := required.Shift(p.Collateral.Token.Precision).Ceil()
	return nonNegative(p.Collateral.Amount.Sub(locked))
}

// LiquidationPrice is the collateral price, in the quote currency, at which the position
// reaches the liquidation threshold. Zero without debt or collateral.
func (p Position) LiquidationPrice() decimal.Decimal {
	coll := p.Collateral.Whole()
	if p.market == nil || coll.IsZero() || p.Debt.Amount.IsZero() {
		return decimal.Zero
	}
	lt := p.market.LiquidationThreshold()
	if !lt.IsPositive() {
		return decimal.Zero
	}
	return p.DebtValue().Div(coll.Mul(lt))
}

// BorrowForTargetLTV returns the extra debt, in debt base units, that takes the position to
// target once the borrowed amount is swapped into collateral at the current price ratio.
// swapFactor is (1-fee)(1-slippage). Zero when the position is already at or above target.
func (p Position) BorrowForTargetLTV(target, swapFactor decimal.Decimal) core.Amount {
	denom := one.Sub(target.Mul(swapFactor))
	if !denom.IsPositive() || !p.DebtPrice.IsPositive() {
		return decimal.Zero
	}
	value := target.Mul(p.CollateralValue()).Sub(p.DebtValue()).Div(denom)
	return nonNegative(p.Debt.Token.ToBaseUnits(value.Div(p.DebtPrice)))
}

// WithdrawForTargetLTV returns the collateral, in collateral base units, that takes the
// position to target once it is swapped into debt and repaid. Zero when the position is
// already at or below target.
func (p Position) WithdrawForTargetLTV(target, swapFactor decimal.Decimal) core.Amount {
	denom := swapFactor.Sub(target)
	if !denom.IsPositive() || !p.CollateralPrice.IsPositive() {
		return decimal.Zero
	}
	value := p.DebtValue().Sub(target.Mul(p.CollateralValue())).Div(denom)
	amount := p.Collateral.Token.ToBaseUnits(value.Div(p.CollateralPrice))
	if amount.GreaterThan(p.Collateral.Amount) {
		return p.Collateral.Amount
	}
	return nonNegative(amount)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
