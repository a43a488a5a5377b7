package strategy

import (
	"context"
	"fmt"

	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/position"
	"leverage_builder/internal/swap"
	"leverage_builder/internal/validation"
	apperrors "leverage_builder/pkg/errors"

	"github.com/shopspring/decimal"
)

// OpenRequest opens a multiplied position
type OpenRequest struct {
	Position
	DepositCollateral core.Amount
	DepositDebt       core.Amount
	// Multiple is collateral value over equity, 2 for a 2x position
	Multiple     decimal.Decimal
	Slippage     core.Percentage
	FeeBps       *int64
	PositionType string
}

// AdjustRequest moves an existing position to a target loan to value
type AdjustRequest struct {
	Position
	TargetLTV    decimal.Decimal
	Slippage     core.Percentage
	FeeBps       *int64
	ReturnNative bool
}

// LTVFromMultiple converts a multiple to the equivalent loan to value
func LTVFromMultiple(multiple decimal.Decimal) decimal.Decimal {
	if !multiple.GreaterThan(one) {
		return decimal.Zero
	}
	return one.Sub(one.Div(multiple))
}

// Open builds the open multiply operation: flashloan the debt side, swap it into collateral,
// deposit and borrow to repay
func (b *Builder) Open(ctx context.Context, req OpenRequest) (*Result, error) {
	intent := operations.IntentOpenMultiply
	if !req.Multiple.GreaterThan(one) {
		return nil, b.fail(ctx, req.Protocol, intent,
			fmt.Errorf("%w: multiple %s must exceed 1", apperrors.ErrInvalidArgument, req.Multiple))
	}
	if !req.DepositCollateral.IsPositive() && !req.DepositDebt.IsPositive() {
		return nil, b.fail(ctx, req.Protocol, intent,
			fmt.Errorf("%w: nothing deposited", apperrors.ErrInvalidArgument))
	}
	current, err := b.read(ctx, req.Position)
	if err != nil {
		return nil, b.fail(ctx, req.Protocol, intent, err)
	}
	return b.multiply(ctx, intent, multiplyParams{
		pos:          req.Position,
		current:      current,
		depositColl:  req.DepositCollateral,
		depositDebt:  req.DepositDebt,
		targetLTV:    LTVFromMultiple(req.Multiple),
		slippage:     req.Slippage,
		feeBps:       b.feeBps(req.FeeBps),
		positionType: req.PositionType,
	})
}

// Adjust moves the position up or down to req.TargetLTV
func (b *Builder) Adjust(ctx context.Context, req AdjustRequest) (*Result, error) {
	current, err := b.read(ctx, req.Position)
	if err != nil {
		return nil, b.fail(ctx, req.Protocol, operations.IntentAdjustRiskUp, err)
	}
	ltv := current.RiskRatio().LoanToValue
	switch {
	case req.TargetLTV.GreaterThan(ltv):
		return b.multiply(ctx, operations.IntentAdjustRiskUp, multiplyParams{
			pos:       req.Position,
			current:   current,
			targetLTV: req.TargetLTV,
			slippage:  req.Slippage,
			feeBps:    b.feeBps(req.FeeBps),
		})
	case req.TargetLTV.LessThan(ltv):
		return b.deleverage(ctx, req, current)
	default:
		return nil, b.fail(ctx, req.Protocol, operations.IntentAdjustRiskUp,
			fmt.Errorf("%w: position already at %s", apperrors.ErrInvalidArgument, ltv.StringFixed(4)))
	}
}

type multiplyParams struct {
	pos          Position
	current      position.Position
	depositColl  core.Amount
	depositDebt  core.Amount
	targetLTV    decimal.Decimal
	slippage     core.Percentage
	feeBps       int64
	positionType string
}

func (b *Builder) multiply(ctx context.Context, intent operations.Intent, p multiplyParams) (*Result, error) {
	pos := p.pos
	base := p.current.Deposit(p.depositColl)
	borrow := base.BorrowForTargetLTV(p.targetLTV, swapFactor(p.feeBps, p.slippage))
	if !borrow.IsPositive() && !p.depositDebt.IsPositive() {
		return nil, b.fail(ctx, pos.Protocol, intent,
			fmt.Errorf("%w: position is at or above target %s", apperrors.ErrInvalidArgument, p.targetLTV.StringFixed(4)))
	}

	swapColl, swapDebt, err := b.swapTokens(pos)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	bps := p.feeBps
	sizing, err := b.sizer.Size(ctx, swap.Request{
		From:     swapDebt,
		To:       swapColl,
		Amount:   borrow.Add(p.depositDebt),
		Slippage: p.slippage,
		FeeBps:   &bps,
	})
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	fl := operations.FlashloanArgs{Provider: b.opts.FlashloanProvider, Token: pos.Debt, Amount: core.BigInt(borrow)}
	if usesCollateralFlashloan(pos.Protocol) {
		fl.Amount = core.BigInt(collateralFlashloan(borrow, maxLTV(p.current)))
	}
	// every protocol borrows the lender premium on top of the swapped amount
	borrowed := borrow.Add(decimal.NewFromBigInt(operations.Premium(fl), 0))

	market := withAjnaPrice(pos, p.current)
	args := operations.MultiplyArgs{
		Proxy:             pos.Proxy,
		Collateral:        pos.Collateral,
		Debt:              pos.Debt,
		DepositCollateral: core.BigInt(p.depositColl),
		DepositDebt:       core.BigInt(p.depositDebt),
		Borrow:            core.BigInt(borrow),
		Flashloan:         fl,
		Swap:              sizing.SwapArgs(),
		Market:            market,
		PositionType:      p.positionType,
	}

	a, err := b.assembler(pos.Protocol)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	build := a.AdjustRiskUp
	if intent == operations.IntentOpenMultiply {
		build = a.OpenMultiply
	}
	op, err := build(args)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	target := base.Borrow(borrowed).Deposit(sizing.ReceiveAtLeast)
	findings := validation.Borrow(target, borrowed)
	findings.Merge(ajnaChecks(pos, market, p.current))

	return b.finish(ctx, outcome{
		intent:    intent,
		pos:       pos,
		op:        op,
		current:   p.current,
		target:    target,
		sizing:    sizing,
		flashloan: &fl,
		findings:  findings,
		value:     nativeValue(pos.Collateral, pos.Debt, p.depositColl, p.depositDebt),
	})
}
