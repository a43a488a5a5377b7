package operations

import (
	"fmt"
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// WETH is the registry name of the wrapped native coin
const WETH = "WETH"

// Addresses resolves token addresses for ERC20 actions, mapping the native coin to WETH
type Addresses struct {
	reg core.IAddressRegistry
}

// NewAddresses wraps an address registry
func NewAddresses(reg core.IAddressRegistry) Addresses {
	return Addresses{reg: reg}
}

// Contract resolves a symbolic contract name
func (a Addresses) Contract(name string) (common.Address, error) {
	addr, err := a.reg.Address(name)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve %s on %s: %w", name, a.reg.Network(), err)
	}
	return addr, nil
}

// ERC20 returns the token address actions operate on
func (a Addresses) ERC20(t core.Token) (common.Address, error) {
	if !t.IsNative() {
		return t.Address, nil
	}
	return a.Contract(WETH)
}

// ERC20Token returns t with the native coin replaced by WETH, the token swaps trade
func (a Addresses) ERC20Token(t core.Token) (core.Token, error) {
	if !t.IsNative() {
		return t, nil
	}
	addr, err := a.Contract(WETH)
	if err != nil {
		return core.Token{}, err
	}
	return core.Token{Symbol: WETH, Address: addr, Precision: t.Precision}, nil
}

// Pair resolves collateral and debt addresses at once
func (a Addresses) Pair(collateral, debt core.Token) (common.Address, common.Address, error) {
	coll, err := a.ERC20(collateral)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	dbt, err := a.ERC20(debt)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return coll, dbt, nil
}

// InputLegs pulls the user's deposits into the proxy: debt token, collateral token, then a
// wrap for whichever side is the native coin. Always three slots.
func InputLegs(proxy core.Proxy, collateral, debt core.Token, collAddr, debtAddr common.Address, depositColl, depositDebt *big.Int) []action.Slot {
	native := new(big.Int)
	if collateral.IsNative() && Positive(depositColl) {
		native.Add(native, depositColl)
	}
	if debt.IsNative() && Positive(depositDebt) {
		native.Add(native, depositDebt)
	}
	return []action.Slot{
		action.Optional(Positive(depositDebt) && !debt.IsNative(),
			action.NewPullToken(debtAddr, proxy.Owner, OrZero(depositDebt))),
		action.Optional(Positive(depositColl) && !collateral.IsNative(),
			action.NewPullToken(collAddr, proxy.Owner, OrZero(depositColl))),
		action.Optional(native.Sign() > 0, action.NewWrapEth(native)),
	}
}

// ReturnLegs hands leftovers back to the owner: an optional unwrap when the user asked for
// the native coin, then the debt and collateral balances. Always three slots.
func ReturnLegs(collateral, debt core.Token, collAddr, debtAddr common.Address, returnNative bool) []action.Slot {
	unwrap := returnNative && (collateral.IsNative() || debt.IsNative())
	debtOut, collOut := debtAddr, collAddr
	if unwrap && debt.IsNative() {
		debtOut = core.ETHAddress
	}
	if unwrap && collateral.IsNative() {
		collOut = core.ETHAddress
	}
	return []action.Slot{
		action.Optional(unwrap, action.NewUnwrapEth(action.MaxUint256)),
		action.Included(action.NewReturnFunds(debtOut)),
		action.Included(action.NewReturnFunds(collOut)),
	}
}

// SwapAction builds the swap leg from sized arguments
func SwapAction(from, to common.Address, s SwapArgs) action.Action {
	return action.NewSwap(action.SwapParams{
		FromAsset:             from,
		ToAsset:               to,
		Amount:                OrZero(s.Amount),
		ReceiveAtLeast:        OrZero(s.ReceiveAtLeast),
		FeeBps:                big.NewInt(s.FeeBps),
		Calldata:              s.Calldata,
		CollectFeeInFromToken: s.CollectFeeInFromToken,
	})
}

// Flashloan wraps nested in a TakeFlashloan action
func Flashloan(a Addresses, proxy core.Proxy, fl FlashloanArgs, nested ...action.Slot) (action.Action, error) {
	asset, err := a.ERC20(fl.Token)
	if err != nil {
		return action.Action{}, err
	}
	return action.WrapFlashloan(action.FlashloanSpec{
		Provider: fl.Provider,
		Asset:    asset,
		Amount:   OrZero(fl.Amount),
		IsDPM:    proxy.IsDPM,
		Actions:  nested,
	})
}

// Premium is the lender fee owed on top of the flashloan amount
func Premium(fl FlashloanArgs) *big.Int {
	return fl.Provider.Fee(decimal.NewFromBigInt(OrZero(fl.Amount), 0)).BigInt()
}

// RepayAmount is the flashloan amount plus the lender premium
func RepayAmount(fl FlashloanArgs) *big.Int {
	return new(big.Int).Add(OrZero(fl.Amount), Premium(fl))
}
