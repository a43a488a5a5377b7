package strategy

import (
	"context"
	"fmt"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/operations/aave"
	"leverage_builder/internal/position"
	"leverage_builder/internal/swap"
	"leverage_builder/internal/validation"
	apperrors "leverage_builder/pkg/errors"

	"github.com/shopspring/decimal"
)

// CloseRequest closes a position. ToCollateral sells only the collateral needed to repay the
// debt; otherwise all collateral is sold and the owner receives debt token.
type CloseRequest struct {
	Position
	ToCollateral bool
	Slippage     core.Percentage
	FeeBps       *int64
	ReturnNative bool
}

// debtFlashloan sizes a flashloan whose repayment, premium included, fits in out
func debtFlashloan(out core.Amount, provider action.FlashloanProvider) core.Amount {
	bps := decimal.NewFromInt(10000)
	return out.Mul(bps).Div(bps.Add(decimal.NewFromInt(provider.FeeBps()))).Floor()
}

// valueInDebt converts a collateral amount to debt base units at the position's price ratio
func valueInDebt(p position.Position, collateral core.Amount) core.Amount {
	whole := p.Collateral.Token.FromBaseUnits(collateral).Mul(p.PriceRatio())
	return p.Debt.Token.ToBaseUnits(whole)
}

func (b *Builder) deleverage(ctx context.Context, req AdjustRequest, current position.Position) (*Result, error) {
	intent := operations.IntentAdjustRiskDown
	pos := req.Position
	bps := b.feeBps(req.FeeBps)

	withdraw := current.WithdrawForTargetLTV(req.TargetLTV, swapFactor(bps, req.Slippage))
	if !withdraw.IsPositive() {
		return nil, b.fail(ctx, pos.Protocol, intent,
			fmt.Errorf("%w: nothing to withdraw for target %s", apperrors.ErrInvalidArgument, req.TargetLTV.StringFixed(4)))
	}

	swapColl, swapDebt, err := b.swapTokens(pos)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	sizing, err := b.sizer.Size(ctx, swap.Request{
		From:     swapColl,
		To:       swapDebt,
		Amount:   withdraw,
		Slippage: req.Slippage,
		FeeBps:   &bps,
	})
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	fl := operations.FlashloanArgs{Provider: b.opts.FlashloanProvider, Token: pos.Debt}
	var repaid core.Amount
	if usesCollateralFlashloan(pos.Protocol) {
		fl.Amount = core.BigInt(collateralFlashloan(valueInDebt(current, withdraw), maxLTV(current)))
		held := aave.HeldBackPayback(sizing.SwapArgs(), operations.Premium(fl))
		repaid = decimal.NewFromBigInt(held, 0)
	} else {
		repaid = debtFlashloan(sizing.ReceiveAtLeast, b.opts.FlashloanProvider)
		fl.Amount = core.BigInt(repaid)
	}

	a, err := b.assembler(pos.Protocol)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	market := withAjnaPrice(pos, current)
	op, err := a.AdjustRiskDown(operations.DeleverageArgs{
		Proxy:        pos.Proxy,
		Collateral:   pos.Collateral,
		Debt:         pos.Debt,
		Withdraw:     core.BigInt(withdraw),
		Flashloan:    fl,
		Swap:         sizing.SwapArgs(),
		Market:       market,
		ReturnNative: req.ReturnNative,
	})
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	target := current.Payback(repaid).Withdraw(withdraw)
	findings := validation.Withdraw(current.Payback(repaid), withdraw)
	findings.Merge(validation.Dust(target))
	findings.Merge(validation.CloseToMaxLtv(target))
	findings.Merge(ajnaChecks(pos, market, current))

	return b.finish(ctx, outcome{
		intent:    intent,
		pos:       pos,
		op:        op,
		current:   current,
		target:    target,
		sizing:    sizing,
		flashloan: &fl,
		findings:  findings,
	})
}

// Close repays all debt with a flashloan, withdraws all collateral and swaps enough of it to
// cover the flashloan and its premium
func (b *Builder) Close(ctx context.Context, req CloseRequest) (*Result, error) {
	intent := operations.IntentClose
	pos := req.Position
	current, err := b.read(ctx, pos)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	if current.Collateral.Amount.IsZero() && current.Debt.Amount.IsZero() {
		return nil, b.fail(ctx, pos.Protocol, intent, fmt.Errorf("%w: position is empty", apperrors.ErrInvalidArgument))
	}
	swapColl, swapDebt, err := b.swapTokens(pos)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	// interest accrues until execution
	margin := b.opts.SafetyMargin
	debt := current.Debt.Amount.Mul(one.Add(margin)).Ceil()
	fl := operations.FlashloanArgs{Provider: b.opts.FlashloanProvider, Token: pos.Debt, Amount: core.BigInt(debt)}
	if usesCollateralFlashloan(pos.Protocol) {
		fl.Amount = core.BigInt(collateralFlashloan(debt, maxLTV(current)))
	}
	premium := decimal.NewFromBigInt(operations.Premium(fl), 0)
	repay := swap.RepayTarget(current.Debt.Amount, margin, premium)

	bps := b.feeBps(req.FeeBps)
	var (
		sizing  *swap.Sizing
		closing *swap.CloseSizing
	)
	if req.ToCollateral {
		closing, err = b.sizer.SizeCloseToCollateral(ctx, swap.CloseRequest{
			Collateral:          swapColl,
			Debt:                swapDebt,
			OutstandingDebt:     current.Debt.Amount,
			AvailableCollateral: current.Collateral.Amount,
			FlashloanFee:        premium,
			OraclePrice:         current.PriceRatio(),
			Slippage:            req.Slippage,
			FeeBps:              &bps,
			SafetyMargin:        &margin,
		})
		if closing != nil {
			sizing = closing.Sizing
		}
	} else {
		sizing, err = b.sizer.Size(ctx, swap.Request{
			From:     swapColl,
			To:       swapDebt,
			Amount:   current.Collateral.Amount,
			Slippage: req.Slippage,
			FeeBps:   &bps,
		})
	}
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	a, err := b.assembler(pos.Protocol)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	market := withAjnaPrice(pos, current)
	op, err := a.Close(operations.CloseArgs{
		Proxy:        pos.Proxy,
		Collateral:   pos.Collateral,
		Debt:         pos.Debt,
		Flashloan:    fl,
		Swap:         sizing.SwapArgs(),
		Market:       market,
		ReturnNative: req.ReturnNative,
	})
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	target := current.Payback(current.Debt.Amount).Withdraw(current.Collateral.Amount)
	// a close sized against capped collateral cannot repay
	findings := validation.Repayment(pos.Debt, sizing.ReceiveAtLeast, repay)
	findings.Merge(validation.Dust(target))
	findings.Merge(validation.CloseToMaxLtv(target))
	findings.Merge(ajnaChecks(pos, market, current))

	return b.finish(ctx, outcome{
		intent:    intent,
		pos:       pos,
		op:        op,
		current:   current,
		target:    target,
		sizing:    sizing,
		close:     closing,
		flashloan: &fl,
		findings:  findings,
	})
}
