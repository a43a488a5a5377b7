package operations

import (
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"

	"github.com/ethereum/go-ethereum/common"
)

// Lending builds the four primitive legs of a protocol with separate deposit, borrow,
// payback and withdraw actions, bound to one market and one proxy
type Lending interface {
	Spender() common.Address
	Deposit(asset common.Address, amount *big.Int) action.Action
	Borrow(asset common.Address, amount *big.Int) action.Action
	Withdraw(asset common.Address, amount *big.Int) action.Action
	Payback(asset common.Address, amount *big.Int, all bool) action.Action
}

// DepositBorrow assembles the plain deposit and/or borrow operation:
// pull, wrap, approve, deposit, borrow, unwrap, return. Every leg is optional.
func DepositBorrow(name string, l Lending, args DepositBorrowArgs, collAddr, debtAddr common.Address) (*action.Operation, error) {
	deposit := OrZero(args.Deposit)
	borrow := OrZero(args.Borrow)
	depositing := deposit.Sign() > 0
	borrowing := borrow.Sign() > 0

	debtOut := debtAddr
	if args.Debt.IsNative() {
		debtOut = core.ETHAddress
	}

	return Finish(name,
		action.Optional(depositing && !args.Collateral.IsNative(), action.NewPullToken(collAddr, args.Proxy.Owner, deposit)),
		action.Optional(depositing && args.Collateral.IsNative(), action.NewWrapEth(deposit)),
		action.Optional(depositing, action.NewSetApproval(collAddr, l.Spender(), deposit, false)),
		action.Optional(depositing, l.Deposit(collAddr, deposit)),
		action.Optional(borrowing, l.Borrow(debtAddr, borrow)),
		action.Optional(borrowing && args.Debt.IsNative(), action.NewUnwrapEth(borrow)),
		action.Optional(borrowing, action.NewReturnFunds(debtOut)),
	)
}

// PaybackWithdraw assembles the plain payback and/or withdraw operation:
// pull, wrap, approve, payback, withdraw, unwrap, return collateral, return debt.
// Whichever side is the native coin comes back unwrapped.
func PaybackWithdraw(name string, l Lending, args PaybackWithdrawArgs, collAddr, debtAddr common.Address) (*action.Operation, error) {
	payback := OrZero(args.Payback)
	withdraw := OrZero(args.Withdraw)
	paying := payback.Sign() > 0
	withdrawing := withdraw.Sign() > 0 || args.WithdrawAll

	withdrawAmount := withdraw
	if args.WithdrawAll {
		withdrawAmount = action.MaxUint256
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

	return Finish(name,
		action.Optional(paying && !args.Debt.IsNative(), action.NewPullToken(debtAddr, args.Proxy.Owner, payback)),
		action.Optional(paying && args.Debt.IsNative(), action.NewWrapEth(payback)),
		action.Optional(paying, action.NewSetApproval(debtAddr, l.Spender(), payback, false)),
		action.Optional(paying, l.Payback(debtAddr, payback, args.PaybackAll)),
		action.Optional(withdrawing, l.Withdraw(collAddr, withdrawAmount)),
		action.Optional(unwrapColl || unwrapDebt, action.NewUnwrapEth(action.MaxUint256)),
		action.Optional(withdrawing, action.NewReturnFunds(collOut)),
		action.Optional(paying, action.NewReturnFunds(debtOut)),
	)
}
