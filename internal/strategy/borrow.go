package strategy

import (
	"context"
	"fmt"

	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/validation"
	apperrors "leverage_builder/pkg/errors"

	"github.com/shopspring/decimal"
)

// DepositBorrowRequest deposits collateral and/or borrows debt without a swap
type DepositBorrowRequest struct {
	Position
	Deposit      core.Amount
	Borrow       core.Amount
	ReturnNative bool
}

// PaybackWithdrawRequest repays debt and/or withdraws collateral without a swap
type PaybackWithdrawRequest struct {
	Position
	Payback     core.Amount
	Withdraw    core.Amount
	PaybackAll  bool
	WithdrawAll bool
	// WalletBalance of the debt token, checked against the payback when set
	WalletBalance *core.Amount
	ReturnNative  bool
}

func (b *Builder) DepositBorrow(ctx context.Context, req DepositBorrowRequest) (*Result, error) {
	intent := operations.IntentDepositBorrow
	pos := req.Position
	if !req.Deposit.IsPositive() && !req.Borrow.IsPositive() {
		return nil, b.fail(ctx, pos.Protocol, intent, fmt.Errorf("%w: nothing to deposit or borrow", apperrors.ErrInvalidArgument))
	}
	current, err := b.read(ctx, pos)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	a, err := b.assembler(pos.Protocol)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	market := withAjnaPrice(pos, current)
	op, err := a.DepositBorrow(operations.DepositBorrowArgs{
		Proxy:        pos.Proxy,
		Collateral:   pos.Collateral,
		Debt:         pos.Debt,
		Deposit:      core.BigInt(req.Deposit),
		Borrow:       core.BigInt(req.Borrow),
		Market:       market,
		ReturnNative: req.ReturnNative,
	})
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	target := current.Deposit(req.Deposit).Borrow(req.Borrow)
	var findings validation.Result
	if req.Borrow.IsPositive() {
		findings.Merge(validation.Borrow(target, req.Borrow))
		findings.Merge(ajnaChecks(pos, market, current))
	}

	return b.finish(ctx, outcome{
		intent:   intent,
		pos:      pos,
		op:       op,
		current:  current,
		target:   target,
		findings: findings,
		value:    nativeValue(pos.Collateral, pos.Debt, req.Deposit, decimal.Zero),
	})
}

func (b *Builder) PaybackWithdraw(ctx context.Context, req PaybackWithdrawRequest) (*Result, error) {
	intent := operations.IntentPaybackWithdraw
	pos := req.Position
	current, err := b.read(ctx, pos)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	payback := req.Payback
	if req.PaybackAll {
		// covers interest accrued until execution; the excess is returned
		payback = current.Debt.Amount.Mul(one.Add(b.opts.SafetyMargin)).Ceil()
	}
	withdraw := req.Withdraw
	if req.WithdrawAll {
		withdraw = current.Collateral.Amount
	}
	if !payback.IsPositive() && !withdraw.IsPositive() {
		return nil, b.fail(ctx, pos.Protocol, intent, fmt.Errorf("%w: nothing to pay back or withdraw", apperrors.ErrInvalidArgument))
	}

	a, err := b.assembler(pos.Protocol)
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}
	op, err := a.PaybackWithdraw(operations.PaybackWithdrawArgs{
		Proxy:        pos.Proxy,
		Collateral:   pos.Collateral,
		Debt:         pos.Debt,
		Payback:      core.BigInt(payback),
		Withdraw:     core.BigInt(withdraw),
		PaybackAll:   req.PaybackAll,
		WithdrawAll:  req.WithdrawAll,
		Market:       withAjnaPrice(pos, current),
		ReturnNative: req.ReturnNative,
	})
	if err != nil {
		return nil, b.fail(ctx, pos.Protocol, intent, err)
	}

	repaid := decimal.Min(payback, current.Debt.Amount)
	afterPayback := current.Payback(repaid)
	target := afterPayback.Withdraw(withdraw)

	findings := validation.Withdraw(afterPayback, withdraw)
	findings.Merge(validation.Dust(target))
	findings.Merge(validation.CloseToMaxLtv(target))
	if req.WalletBalance != nil {
		findings.Merge(validation.Payback(pos.Debt, payback, *req.WalletBalance))
	}

	return b.finish(ctx, outcome{
		intent:   intent,
		pos:      pos,
		op:       op,
		current:  current,
		target:   target,
		findings: findings,
		value:    nativeValue(pos.Collateral, pos.Debt, decimal.Zero, payback),
	})
}
