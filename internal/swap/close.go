package swap

import (
	"context"
	"fmt"

	"leverage_builder/internal/core"
	apperrors "leverage_builder/pkg/errors"

	"github.com/shopspring/decimal"
)

// CloseRequest sizes the collateral sold to repay a position's debt
type CloseRequest struct {
	Collateral core.Token
	Debt       core.Token
	// OutstandingDebt and AvailableCollateral are base units
	OutstandingDebt     core.Amount
	AvailableCollateral core.Amount
	// FlashloanFee is the lender premium, in debt base units, the swap output must also cover
	FlashloanFee core.Amount
	// OraclePrice is the collateral price in debt token
	OraclePrice  decimal.Decimal
	Slippage     core.Percentage
	FeeBps       *int64
	SafetyMargin *decimal.Decimal
}

// CloseSizing is the final sizing together with the first-pass figures
type CloseSizing struct {
	*Sizing
	// Repay is the debt token the swap must guarantee: debt with margin plus the premium
	Repay       core.Amount
	Estimate    core.Amount
	Preflight   *core.SwapData
	MarketPrice decimal.Decimal
}

// Covered reports whether the guaranteed output repays the flashloan
func (c *CloseSizing) Covered() bool {
	return c.ReceiveAtLeast.GreaterThanOrEqual(c.Repay)
}

// RepayTarget is ceil(outstanding*(1+margin)) plus the lender premium
func RepayTarget(outstanding core.Amount, margin core.Percentage, premium core.Amount) core.Amount {
	return outstanding.Mul(decimal.NewFromInt(1).Add(margin)).Ceil().Add(premium)
}

// CollateralNeeded returns the collateral, in base units, whose sale at price (debt token
// per whole collateral) guarantees at least repay debt base units once the fee, slippage
// and every base unit floor are applied. The result is capped at available.
func CollateralNeeded(collateral, debt core.Token, repay, available core.Amount,
	price decimal.Decimal, feeBps int64, slippage core.Percentage) core.Amount {
	one := decimal.NewFromInt(1)
	keepFee := one.Sub(bpsFraction(feeBps))
	keepSlippage := one.Sub(slippage)
	if !price.IsPositive() || !keepFee.IsPositive() || !keepSlippage.IsPositive() {
		return available
	}
	side := FeeSide(collateral, debt)

	// walk back from the guaranteed output to the quoted input
	out := repay.Ceil()
	if side == TargetSide {
		out = out.Div(keepFee).Ceil()
	}
	out = out.Div(keepSlippage).Ceil()
	rate := price.Shift(debt.Precision - collateral.Precision)
	need := out.Div(rate).Ceil()
	if side == SourceSide {
		need = need.Div(keepFee).Ceil()
	}

	if need.GreaterThan(available) {
		return available
	}
	return need
}

// SizeCloseToCollateral runs the two-pass procedure: estimate with the oracle price, quote
// that estimate to learn the market price, re-estimate at market price and quote again.
// The second quote is final; prices may still move between the two requests.
func (s *Sizer) SizeCloseToCollateral(ctx context.Context, req CloseRequest) (*CloseSizing, error) {
	bps := s.fee(req.FeeBps)
	margin := s.safetyMargin
	if req.SafetyMargin != nil {
		margin = *req.SafetyMargin
	}

	repay := RepayTarget(req.OutstandingDebt, margin, req.FlashloanFee)

	estimate := CollateralNeeded(req.Collateral, req.Debt, repay, req.AvailableCollateral,
		req.OraclePrice, bps, req.Slippage)
	if !estimate.IsPositive() {
		sizing, err := s.Size(ctx, Request{From: req.Collateral, To: req.Debt, Amount: estimate, Slippage: req.Slippage, FeeBps: &bps})
		if err != nil {
			return nil, err
		}
		return &CloseSizing{Sizing: sizing, Repay: repay, Estimate: estimate, MarketPrice: req.OraclePrice}, nil
	}

	preflight, err := s.provider.GetSwapData(ctx, req.Collateral, req.Debt, estimate, req.Slippage)
	if err != nil {
		return nil, fmt.Errorf("%w: preflight %s -> %s: %v", apperrors.ErrQuoteFailed, req.Collateral.Symbol, req.Debt.Symbol, err)
	}
	marketPrice := preflight.MarketPrice()
	if !marketPrice.IsPositive() {
		marketPrice = req.OraclePrice
	}

	final := CollateralNeeded(req.Collateral, req.Debt, repay, req.AvailableCollateral,
		marketPrice, bps, req.Slippage)
	sizing, err := s.Size(ctx, Request{From: req.Collateral, To: req.Debt, Amount: final, Slippage: req.Slippage, FeeBps: &bps})
	if err != nil {
		return nil, err
	}

	res := &CloseSizing{Sizing: sizing, Repay: repay, Estimate: estimate, Preflight: preflight, MarketPrice: marketPrice}
	s.logger.Info("Close swap sized",
		"oracle_price", req.OraclePrice.String(),
		"market_price", marketPrice.String(),
		"estimate", estimate.String(),
		"final", final.String(),
		"repay", repay.String(),
		"covered", res.Covered())
	return res, nil
}
