// Package ajna assembles Ajna operations. Ajna combines deposit with borrow and repay with
// withdraw in single pool calls, and every call carries a price hint used to pick the bucket.
package ajna

import (
	"fmt"
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
)

const (
	DepositBorrow = "AjnaDepositBorrow"
	RepayWithdraw = "AjnaRepayWithdraw"
	depositParam  = 1
)

var (
	depositBorrowArgs = action.Args("address", "uint256", "uint256", "bool", "uint256")
	repayWithdrawArgs = action.Args("address", "uint256", "uint256", "bool", "bool", "uint256")
)

// NewDepositBorrow pledges collateral and draws debt from pool in one call
func NewDepositBorrow(pool common.Address, deposit, borrow *big.Int, sumDeposits bool, price *big.Int) action.Action {
	return action.MustNew(DepositBorrow, depositBorrowArgs, 0, pool, deposit, borrow, sumDeposits, price)
}

// NewRepayWithdraw repays debt and pulls collateral from pool in one call
func NewRepayWithdraw(pool common.Address, withdraw, repay *big.Int, paybackAll, withdrawAll bool, price *big.Int) action.Action {
	return action.MustNew(RepayWithdraw, repayWithdrawArgs, 0, pool, withdraw, repay, paybackAll, withdrawAll, price)
}

// Assembler builds Ajna operations
type Assembler struct {
	addrs operations.Addresses
}

var _ operations.Assembler = (*Assembler)(nil)

func NewAssembler(reg core.IAddressRegistry) *Assembler {
	return &Assembler{addrs: operations.NewAddresses(reg)}
}

func (a *Assembler) Protocol() core.Protocol {
	return core.ProtocolAjna
}

func pool(m operations.MarketRef) (common.Address, *big.Int, error) {
	if m.Pool == (common.Address{}) {
		return common.Address{}, nil, fmt.Errorf("%w: ajna pool not set", apperrors.ErrInvalidArgument)
	}
	return m.Pool, operations.OrZero(m.Price), nil
}

func (a *Assembler) OpenMultiply(args operations.MultiplyArgs) (*action.Operation, error) {
	slots, err := a.multiply(args)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	positionType := args.PositionType
	if positionType == "" {
		positionType = operations.PositionTypeMultiply
	}
	slots = append(slots, action.Included(action.NewPositionCreated(string(core.ProtocolAjna), positionType, collAddr, debtAddr)))
	return operations.Finish(operations.Name(core.ProtocolAjna, operations.IntentOpenMultiply), slots...)
}

func (a *Assembler) AdjustRiskUp(args operations.MultiplyArgs) (*action.Operation, error) {
	slots, err := a.multiply(args)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(core.ProtocolAjna, operations.IntentAdjustRiskUp), slots...)
}

func (a *Assembler) multiply(args operations.MultiplyArgs) ([]action.Slot, error) {
	poolAddr, price, err := pool(args.Market)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}

	fl, err := operations.Flashloan(a.addrs, args.Proxy, args.Flashloan,
		action.Included(operations.SwapAction(debtAddr, collAddr, args.Swap)),
		action.Included(action.NewSetApproval(collAddr, poolAddr, operations.OrZero(args.DepositCollateral), true).
			WithDependency(action.SetApprovalAmountParam, 0, 0)),
		action.Included(NewDepositBorrow(poolAddr, new(big.Int), operations.RepayAmount(args.Flashloan), false, price).
			WithDependency(depositParam, 1, 0)),
	)
	if err != nil {
		return nil, err
	}

	slots := operations.InputLegs(args.Proxy, args.Collateral, args.Debt, collAddr, debtAddr,
		args.DepositCollateral, args.DepositDebt)
	return append(slots, action.Included(fl)), nil
}

func (a *Assembler) AdjustRiskDown(args operations.DeleverageArgs) (*action.Operation, error) {
	slots, err := a.decrease(args.Proxy, args.Collateral, args.Debt, args.Market, args.Flashloan, args.Swap,
		operations.OrZero(args.Withdraw), false, args.ReturnNative)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(core.ProtocolAjna, operations.IntentAdjustRiskDown), slots...)
}

func (a *Assembler) Close(args operations.CloseArgs) (*action.Operation, error) {
	slots, err := a.decrease(args.Proxy, args.Collateral, args.Debt, args.Market, args.Flashloan, args.Swap,
		new(big.Int), true, args.ReturnNative)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(core.ProtocolAjna, operations.IntentClose), slots...)
}

func (a *Assembler) decrease(proxy core.Proxy, collateral, debt core.Token, market operations.MarketRef,
	flArgs operations.FlashloanArgs, swap operations.SwapArgs, withdraw *big.Int, closing, returnNative bool) ([]action.Slot, error) {
	poolAddr, price, err := pool(market)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(collateral, debt)
	if err != nil {
		return nil, err
	}
	flAmount := operations.OrZero(flArgs.Amount)

	fl, err := operations.Flashloan(a.addrs, proxy, flArgs,
		action.Included(action.NewSetApproval(debtAddr, poolAddr, flAmount, false)),
		action.Included(NewRepayWithdraw(poolAddr, withdraw, flAmount, closing, closing, price)),
		action.Included(operations.SwapAction(collAddr, debtAddr, swap)),
	)
	if err != nil {
		return nil, err
	}

	slots := []action.Slot{action.Included(fl)}
	return append(slots, operations.ReturnLegs(collateral, debt, collAddr, debtAddr, returnNative)...), nil
}

// DepositBorrow pledges and/or draws in one pool call. The pool call itself is always
// present; either side may be zero.
func (a *Assembler) DepositBorrow(args operations.DepositBorrowArgs) (*action.Operation, error) {
	poolAddr, price, err := pool(args.Market)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	deposit := operations.OrZero(args.Deposit)
	borrow := operations.OrZero(args.Borrow)
	depositing := deposit.Sign() > 0
	borrowing := borrow.Sign() > 0
	if !depositing && !borrowing {
		return nil, fmt.Errorf("%w: nothing to deposit or borrow", apperrors.ErrInvalidArgument)
	}
	debtOut := debtAddr
	if args.Debt.IsNative() {
		debtOut = core.ETHAddress
	}

	return operations.Finish(operations.Name(core.ProtocolAjna, operations.IntentDepositBorrow),
		action.Optional(depositing && !args.Collateral.IsNative(), action.NewPullToken(collAddr, args.Proxy.Owner, deposit)),
		action.Optional(depositing && args.Collateral.IsNative(), action.NewWrapEth(deposit)),
		action.Optional(depositing, action.NewSetApproval(collAddr, poolAddr, deposit, false)),
		action.Included(NewDepositBorrow(poolAddr, deposit, borrow, false, price)),
		action.Optional(borrowing && args.Debt.IsNative(), action.NewUnwrapEth(borrow)),
		action.Optional(borrowing, action.NewReturnFunds(debtOut)),
	)
}

// PaybackWithdraw repays and/or withdraws in one pool call
func (a *Assembler) PaybackWithdraw(args operations.PaybackWithdrawArgs) (*action.Operation, error) {
	poolAddr, price, err := pool(args.Market)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	payback := operations.OrZero(args.Payback)
	withdraw := operations.OrZero(args.Withdraw)
	paying := payback.Sign() > 0
	withdrawing := withdraw.Sign() > 0 || args.WithdrawAll
	if !paying && !withdrawing {
		return nil, fmt.Errorf("%w: nothing to pay back or withdraw", apperrors.ErrInvalidArgument)
	}
	collOut, debtOut := collAddr, debtAddr
	unwrapColl := withdrawing && args.Collateral.IsNative()
	unwrapDebt := paying && args.Debt.IsNative()
	if unwrapColl {
		collOut = core.ETHAddress
	}
	if unwrapDebt {
		debtOut = core.ETHAddress
	}

	return operations.Finish(operations.Name(core.ProtocolAjna, operations.IntentPaybackWithdraw),
		action.Optional(paying && !args.Debt.IsNative(), action.NewPullToken(debtAddr, args.Proxy.Owner, payback)),
		action.Optional(paying && args.Debt.IsNative(), action.NewWrapEth(payback)),
		action.Optional(paying, action.NewSetApproval(debtAddr, poolAddr, payback, false)),
		action.Included(NewRepayWithdraw(poolAddr, withdraw, payback, args.PaybackAll, args.WithdrawAll, price)),
		action.Optional(unwrapColl || unwrapDebt, action.NewUnwrapEth(action.MaxUint256)),
		action.Optional(withdrawing, action.NewReturnFunds(collOut)),
		action.Optional(paying, action.NewReturnFunds(debtOut)),
	)
}
