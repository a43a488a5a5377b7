// Package aave assembles Aave v2 and v3 operations.
//
// Multiply flows flashloan a token, deposit it, borrow against it, swap the borrowed debt
// into collateral, deposit that, then withdraw the flashloaned token to repay the lender.
// Decreasing flows run the same envelope with withdraw, swap and payback in the middle.
//
// The withdraw only returns the flashloaned amount. The lender premium is borrowed on top
// of the swap amount when multiplying, and held back from the payback when decreasing.
package aave

import (
	"fmt"
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	apperrors "leverage_builder/pkg/errors"
)

// Assembler builds operations for one Aave version
type Assembler struct {
	version core.Protocol
	names   names
	addrs   operations.Addresses
}

var _ operations.Assembler = (*Assembler)(nil)

// NewAssembler creates an assembler for core.ProtocolAaveV2 or core.ProtocolAaveV3
func NewAssembler(version core.Protocol, reg core.IAddressRegistry) (*Assembler, error) {
	n, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an Aave version", apperrors.ErrUnknownProtocol, version)
	}
	return &Assembler{version: version, names: n, addrs: operations.NewAddresses(reg)}, nil
}

// Protocol returns the Aave version
func (a *Assembler) Protocol() core.Protocol {
	return a.version
}

func (a *Assembler) lending(proxy core.Proxy) (lending, error) {
	pool, err := a.addrs.Contract(a.names.pool)
	if err != nil {
		return lending{}, err
	}
	return lending{names: a.names, pool: pool, proxy: proxy.Address}, nil
}

// OpenMultiply opens a leveraged position and emits PositionCreated
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
	slots = append(slots, action.Included(action.NewPositionCreated(string(a.version), positionType, collAddr, debtAddr)))
	return operations.Finish(operations.Name(a.version, operations.IntentOpenMultiply), slots...)
}

// AdjustRiskUp increases leverage of an existing position
func (a *Assembler) AdjustRiskUp(args operations.MultiplyArgs) (*action.Operation, error) {
	slots, err := a.multiply(args)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(a.version, operations.IntentAdjustRiskUp), slots...)
}

func (a *Assembler) multiply(args operations.MultiplyArgs) ([]action.Slot, error) {
	l, err := a.lending(args.Proxy)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	flAddr, err := a.addrs.ERC20(args.Flashloan.Token)
	if err != nil {
		return nil, err
	}
	flAmount := operations.OrZero(args.Flashloan.Amount)
	borrow := new(big.Int).Add(operations.OrZero(args.Borrow), operations.Premium(args.Flashloan))

	nested := []action.Slot{
		action.Included(action.NewSetApproval(flAddr, l.pool, flAmount, false)),
		action.Included(l.Deposit(flAddr, flAmount)),
		action.Included(l.Borrow(debtAddr, borrow)),
		action.Included(operations.SwapAction(debtAddr, collAddr, args.Swap)),
		action.Included(action.NewSetApproval(collAddr, l.pool, operations.OrZero(args.DepositCollateral), true).
			WithDependency(action.SetApprovalAmountParam, 3, 0)),
		action.Included(l.Deposit(collAddr, new(big.Int)).
			WithDependency(DepositAmountParam, 4, 0)),
	}
	if a.version == core.ProtocolAaveV3 {
		cat := args.Market.EModeCategory
		nested = append(nested, action.Optional(cat > 0, newSetEMode(cat)))
	}
	nested = append(nested, action.Included(l.Withdraw(flAddr, flAmount)))

	fl, err := operations.Flashloan(a.addrs, args.Proxy, args.Flashloan, nested...)
	if err != nil {
		return nil, err
	}

	slots := operations.InputLegs(args.Proxy, args.Collateral, args.Debt, collAddr, debtAddr,
		args.DepositCollateral, args.DepositDebt)
	return append(slots, action.Included(fl)), nil
}

// AdjustRiskDown withdraws collateral, swaps it to debt and repays
func (a *Assembler) AdjustRiskDown(args operations.DeleverageArgs) (*action.Operation, error) {
	slots, err := a.decrease(args.Proxy, args.Collateral, args.Debt, args.Flashloan, args.Swap,
		operations.OrZero(args.Withdraw), false, args.ReturnNative)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(a.version, operations.IntentAdjustRiskDown), slots...)
}

// Close withdraws all collateral, repays all debt and returns the remainder to the owner
func (a *Assembler) Close(args operations.CloseArgs) (*action.Operation, error) {
	slots, err := a.decrease(args.Proxy, args.Collateral, args.Debt, args.Flashloan, args.Swap,
		action.MaxUint256, true, args.ReturnNative)
	if err != nil {
		return nil, err
	}
	return operations.Finish(operations.Name(a.version, operations.IntentClose), slots...)
}

func (a *Assembler) decrease(proxy core.Proxy, collateral, debt core.Token, flArgs operations.FlashloanArgs,
	swap operations.SwapArgs, withdraw *big.Int, paybackAll, returnNative bool) ([]action.Slot, error) {
	l, err := a.lending(proxy)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(collateral, debt)
	if err != nil {
		return nil, err
	}
	flAddr, err := a.addrs.ERC20(flArgs.Token)
	if err != nil {
		return nil, err
	}
	flAmount := operations.OrZero(flArgs.Amount)

	// A full payback only draws the outstanding debt, so the premium stays behind. A partial
	// payback spends what it is approved for and must be capped below the swap output.
	approve := action.NewSetApproval(debtAddr, l.pool, new(big.Int), false).
		WithDependency(action.SetApprovalAmountParam, 3, 0)
	payback := l.Payback(debtAddr, new(big.Int), paybackAll).
		WithDependency(PaybackAmountParam, 4, 0)
	if premium := operations.Premium(flArgs); !paybackAll && premium.Sign() > 0 {
		amount := HeldBackPayback(swap, premium)
		approve = action.NewSetApproval(debtAddr, l.pool, amount, false)
		payback = l.Payback(debtAddr, amount, false)
	}

	fl, err := operations.Flashloan(a.addrs, proxy, flArgs,
		action.Included(action.NewSetApproval(flAddr, l.pool, flAmount, false)),
		action.Included(l.Deposit(flAddr, flAmount)),
		action.Included(l.Withdraw(collAddr, withdraw)),
		action.Included(operations.SwapAction(collAddr, debtAddr, swap)),
		action.Included(approve),
		action.Included(payback),
		action.Included(l.Withdraw(flAddr, flAmount)),
	)
	if err != nil {
		return nil, err
	}

	slots := []action.Slot{action.Included(fl)}
	return append(slots, operations.ReturnLegs(collateral, debt, collAddr, debtAddr, returnNative)...), nil
}

// HeldBackPayback is the partial payback that leaves premium of the guaranteed swap output
// in the proxy for the lender
func HeldBackPayback(swap operations.SwapArgs, premium *big.Int) *big.Int {
	amount := new(big.Int).Sub(operations.OrZero(swap.ReceiveAtLeast), premium)
	if amount.Sign() < 0 {
		return new(big.Int)
	}
	return amount
}

// DepositBorrow deposits and/or borrows without a swap
func (a *Assembler) DepositBorrow(args operations.DepositBorrowArgs) (*action.Operation, error) {
	l, err := a.lending(args.Proxy)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	return operations.DepositBorrow(operations.Name(a.version, operations.IntentDepositBorrow), l, args, collAddr, debtAddr)
}

// PaybackWithdraw repays and/or withdraws without a swap
func (a *Assembler) PaybackWithdraw(args operations.PaybackWithdrawArgs) (*action.Operation, error) {
	l, err := a.lending(args.Proxy)
	if err != nil {
		return nil, err
	}
	collAddr, debtAddr, err := a.addrs.Pair(args.Collateral, args.Debt)
	if err != nil {
		return nil, err
	}
	return operations.PaybackWithdraw(operations.Name(a.version, operations.IntentPaybackWithdraw), l, args, collAddr, debtAddr)
}
