package morphoblue

import (
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/operations"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	Deposit  = "MorphoBlueDeposit"
	Borrow   = "MorphoBlueBorrow"
	Withdraw = "MorphoBlueWithdraw"
	Payback  = "MorphoBluePayback"

	// Registry name of the Morpho Blue singleton
	ContractName = "MorphoBlue"
)

var marketParamsType = action.TupleType(
	abi.ArgumentMarshaling{Name: "loanToken", Type: "address"},
	abi.ArgumentMarshaling{Name: "collateralToken", Type: "address"},
	abi.ArgumentMarshaling{Name: "oracle", Type: "address"},
	abi.ArgumentMarshaling{Name: "irm", Type: "address"},
	abi.ArgumentMarshaling{Name: "lltv", Type: "uint256"},
)

var (
	depositArgs  = append(abi.Arguments{{Type: marketParamsType}}, action.Args("uint256", "bool")...)
	borrowArgs   = append(abi.Arguments{{Type: marketParamsType}}, action.Args("uint256")...)
	withdrawArgs = append(abi.Arguments{{Type: marketParamsType}}, action.Args("uint256")...)
	paybackArgs  = append(abi.Arguments{{Type: marketParamsType}}, action.Args("uint256", "address", "bool")...)
)

// DepositAmountParam is the deposit parameter wired to an approval output
const DepositAmountParam = 1

type lending struct {
	morpho common.Address
	proxy  common.Address
	market operations.MorphoMarketParams
}

func (l lending) params() operations.MorphoMarketParams {
	p := l.market
	p.Lltv = operations.OrZero(p.Lltv)
	return p
}

func (l lending) Spender() common.Address {
	return l.morpho
}

// Deposit supplies collateral to the market; asset is implied by the market params
func (l lending) Deposit(_ common.Address, amount *big.Int) action.Action {
	return action.MustNew(Deposit, depositArgs, 1, l.params(), amount, false)
}

func (l lending) Borrow(_ common.Address, amount *big.Int) action.Action {
	return action.MustNew(Borrow, borrowArgs, 1, l.params(), amount)
}

func (l lending) Withdraw(_ common.Address, amount *big.Int) action.Action {
	return action.MustNew(Withdraw, withdrawArgs, 1, l.params(), amount)
}

// Payback repays on behalf of the proxy; with all set the full borrow shares are repaid
func (l lending) Payback(_ common.Address, amount *big.Int, all bool) action.Action {
	return action.MustNew(Payback, paybackArgs, 1, l.params(), amount, l.proxy, all)
}
