package aave

import (
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"

	"github.com/ethereum/go-ethereum/common"
)

// Action names per Aave version
type names struct {
	deposit  string
	borrow   string
	withdraw string
	payback  string
	pool     string
}

var versions = map[core.Protocol]names{
	core.ProtocolAaveV3: {
		deposit:  "AaveV3Deposit",
		borrow:   "AaveV3Borrow",
		withdraw: "AaveV3Withdraw",
		payback:  "AaveV3Payback",
		pool:     "AaveV3Pool",
	},
	core.ProtocolAaveV2: {
		deposit:  "AaveDeposit",
		borrow:   "AaveBorrow",
		withdraw: "AaveWithdraw",
		payback:  "AavePayback",
		pool:     "AaveV2LendingPool",
	},
}

// SetEMode is the Aave v3 e-mode action
const SetEMode = "AaveV3SetEMode"

var (
	depositArgs  = action.Args("address", "uint256", "bool", "bool")
	borrowArgs   = action.Args("address", "uint256", "address")
	withdrawArgs = action.Args("address", "uint256", "address")
	paybackArgs  = action.Args("address", "uint256", "bool", "address")
	eModeArgs    = action.Args("uint8")
)

// DepositAmountParam is the deposit parameter wired to an approval output
const DepositAmountParam = 1

// PaybackAmountParam is the payback parameter wired to an approval output
const PaybackAmountParam = 1

// lending binds the Aave legs to a pool and a proxy
type lending struct {
	names names
	pool  common.Address
	proxy common.Address
}

func (l lending) Spender() common.Address {
	return l.pool
}

// Deposit supplies asset and enables it as collateral. Output 0 is the supplied amount.
func (l lending) Deposit(asset common.Address, amount *big.Int) action.Action {
	return action.MustNew(l.names.deposit, depositArgs, 1, asset, amount, false, true)
}

// Borrow draws variable rate debt to the proxy. Output 0 is the borrowed amount.
func (l lending) Borrow(asset common.Address, amount *big.Int) action.Action {
	return action.MustNew(l.names.borrow, borrowArgs, 1, asset, amount, l.proxy)
}

// Withdraw redeems asset to the proxy; MaxUint256 withdraws the full balance
func (l lending) Withdraw(asset common.Address, amount *big.Int) action.Action {
	return action.MustNew(l.names.withdraw, withdrawArgs, 1, asset, amount, l.proxy)
}

// Payback repays debt on behalf of the proxy. Output 0 is the repaid amount.
func (l lending) Payback(asset common.Address, amount *big.Int, all bool) action.Action {
	return action.MustNew(l.names.payback, paybackArgs, 1, asset, amount, all, l.proxy)
}

func newSetEMode(category uint8) action.Action {
	return action.MustNew(SetEMode, eModeArgs, 0, category)
}
