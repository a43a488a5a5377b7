// Package morphoblue assembles Morpho Blue operations. Multiply flows flashloan the loan token
// from Morpho itself, swap it to collateral, supply and borrow the flashloan back.
package morphoblue

import (
	"fmt"
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
)

// Assembler builds Morpho Blue operations
type Assembler struct {
	addrs operations.Addresses
}

var _ operations.Assembler = (*Assembler)(nil)

func NewAssembler(reg core.IAddressRegistry) *Assembler {
	return &Assembler{addrs: operations.NewAddresses(reg)}
}

func (a *Assembler) Protocol() core.Protocol {
	return core.ProtocolMorphoBlue
}

func (a *Assembler) lending(proxy core.Proxy, market operations.MarketRef) (lending, error) {
	if market.Morpho.LoanToken == (common.Address{}) {
		return lending{}, fmt.Errorf("%w: morpho market params not set", apperrors.ErrInvalidArgument)
	}
	morpho, err := a.addrs.Contract(ContractName)
	if err != nil {
		return lending{}, err
	}
	return lending{morpho: morpho, proxy: proxy.Address, market: market.Morpho}, nil
}

func (a *Assembler) OpenMultiply(args operations.MultiplyArgs) (*action.Operation, error) {
	slots, collAddr, debtAddr, err := a.multiply(args)
	if err != nil {
		return nil, err
	}
	positionType := args.PositionType
	if positionType == "" {
		positionType = operations.PositionTypeMultiply
	}
	slots = append(slots, action.Included(action.NewPositionCreated(string(core.ProtocolMorphoBlue), positionType, collAddr, debtAddr)))
	return operations.Finish(operations.Name(core.ProtocolMorphoBlue, operations.IntentOpenMultiply), slots...)
}

func (a *Assembler) AdjustRiskUp(args operations.MultiplyArgs) (*action.Operation, error) {
	slots, _, _, err := a.multiply(args)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(core.ProtocolMorphoBlue, operations.IntentAdjustRiskUp), slots...)
}

func (a *Assembler) multiply(args operations.MultiplyArgs) ([]action.Slot, common.Address, common.Address, error) {
	l, err := a.lending(args.Proxy, args.Market)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}

	fl, err := operations.Flashloan(a.addrs, args.Proxy, args.Flashloan,
		action.Included(operations.SwapAction(debtAddr, collAddr, args.Swap)),
		action.Included(action.NewSetApproval(collAddr, l.morpho, operations.OrZero(args.DepositCollateral), true).
			WithDependency(action.SetApprovalAmountParam, 0, 0)),
		action.Included(l.Deposit(collAddr, new(big.Int)).
			WithDependency(DepositAmountParam, 1, 0)),
		action.Included(l.Borrow(debtAddr, operations.RepayAmount(args.Flashloan))),
	)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}

	slots := operations.InputLegs(args.Proxy, args.Collateral, args.Debt, collAddr, debtAddr,
		args.DepositCollateral, args.DepositDebt)
	return append(slots, action.Included(fl)), collAddr, debtAddr, nil
}

// AdjustRiskDown repays with flashloaned debt, withdraws collateral and swaps it back to
// cover the flashloan
func (a *Assembler) AdjustRiskDown(args operations.DeleverageArgs) (*action.Operation, error) {
	slots, err := a.decrease(args.Proxy, args.Collateral, args.Debt, args.Market, args.Flashloan, args.Swap,
		operations.OrZero(args.Withdraw), false, args.ReturnNative)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(core.ProtocolMorphoBlue, operations.IntentAdjustRiskDown), slots...)
}

func (a *Assembler) Close(args operations.CloseArgs) (*action.Operation, error) {
	slots, err := a.decrease(args.Proxy, args.Collateral, args.Debt, args.Market, args.Flashloan, args.Swap,
		action.MaxUint256, true, args.ReturnNative)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(core.ProtocolMorphoBlue, operations.IntentClose), slots...)
}

func (a *Assembler) decrease(proxy core.Proxy, collateral, debt core.Token, market operations.MarketRef,
	flArgs operations.FlashloanArgs, swap operations.SwapArgs, withdraw *big.Int, paybackAll, returnNative bool) ([]action.Slot, error) {
	l, err := a.lending(proxy, market)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(collateral, debt)
	if err != nil {
		return nil, err
	}
	flAmount := operations.OrZero(flArgs.Amount)

	fl, err := operations.Flashloan(a.addrs, proxy, flArgs,
		action.Included(action.NewSetApproval(debtAddr, l.morpho, flAmount, false)),
		action.Included(l.Payback(debtAddr, flAmount, paybackAll)),
		action.Included(l.Withdraw(collAddr, withdraw)),
		action.Included(operations.SwapAction(collAddr, debtAddr, swap)),
	)
	if err != nil {
		return nil, err
	}

	slots := []action.Slot{action.Included(fl)}
	return append(slots, operations.ReturnLegs(collateral, debt, collAddr, debtAddr, returnNative)...), nil
}

func (a *Assembler) DepositBorrow(args operations.DepositBorrowArgs) (*action.Operation, error) {
	l, err := a.lending(args.Proxy, args.Market)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	return operations.DepositBorrow(operations.Name(core.ProtocolMorphoBlue, operations.IntentDepositBorrow), l, args, collAddr, debtAddr)
}

func (a *Assembler) PaybackWithdraw(args operations.PaybackWithdrawArgs) (*action.Operation, error) {
	l, err := a.lending(args.Proxy, args.Market)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	return operations.PaybackWithdraw(operations.Name(core.ProtocolMorphoBlue, operations.IntentPaybackWithdraw), l, args, collAddr, debtAddr)
}
