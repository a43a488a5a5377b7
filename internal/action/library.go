package action

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Common action names, shared by every protocol
const (
	PullToken       = "PullToken_3"
	SendToken       = "SendToken_3"
	SetApproval     = "SetApproval_3"
	WrapEth         = "WrapEth_3"
	UnwrapEth       = "UnwrapEth_3"
	ReturnFunds     = "ReturnFunds_3"
	SwapAction      = "SwapAction_3"
	TakeFlashloan   = "TakeFlashloan_3"
	PositionCreated = "PositionCreated"
)

// MaxUint256 asks an action to use the full balance or the full debt
var MaxUint256 = new(big.Int).Set(math.MaxBig256)

var (
	pullTokenArgs       = Args("address", "address", "uint256")
	sendTokenArgs       = Args("address", "address", "uint256")
	setApprovalArgs     = Args("address", "address", "uint256", "bool")
	wrapEthArgs         = Args("uint256")
	returnFundsArgs     = Args("address")
	swapArgs            = Args("address", "address", "uint256", "uint256", "uint256", "bytes", "bool")
	positionCreatedArgs = Args("string", "string", "address", "address")
)

// Parameter slots that assemblers wire to earlier outputs
const (
	SetApprovalAmountParam = 2
	SendTokenAmountParam   = 2
)

// NewPullToken pulls amount of asset from owner into the proxy
func NewPullToken(asset, from common.Address, amount *big.Int) Action {
	return MustNew(PullToken, pullTokenArgs, 0, asset, from, amount)
}

// NewSendToken sends amount of asset from the proxy to to
func NewSendToken(asset, to common.Address, amount *big.Int) Action {
	return MustNew(SendToken, sendTokenArgs, 0, asset, to, amount)
}

// NewSetApproval approves delegate for amount of asset; with sumAmounts the executor adds a
// wired amount to the literal one. Output 0 is the approved amount.
func NewSetApproval(asset, delegate common.Address, amount *big.Int, sumAmounts bool) Action {
	return MustNew(SetApproval, setApprovalArgs, 1, asset, delegate, amount, sumAmounts)
}

// NewWrapEth wraps amount of the native coin held by the proxy
func NewWrapEth(amount *big.Int) Action {
	return MustNew(WrapEth, wrapEthArgs, 0, amount)
}

// NewUnwrapEth unwraps amount of WETH held by the proxy
func NewUnwrapEth(amount *big.Int) Action {
	return MustNew(UnwrapEth, wrapEthArgs, 0, amount)
}

// NewReturnFunds sends the proxy's full balance of asset back to the owner
func NewReturnFunds(asset common.Address) Action {
	return MustNew(ReturnFunds, returnFundsArgs, 0, asset)
}

// SwapParams are the parameters of a SwapAction
type SwapParams struct {
	FromAsset             common.Address
	ToAsset               common.Address
	Amount                *big.Int
	ReceiveAtLeast        *big.Int
	FeeBps                *big.Int
	Calldata              []byte
	CollectFeeInFromToken bool
}

// NewSwap swaps through the aggregator calldata. Output 0 is the received amount, net of a
// target side fee.
func NewSwap(p SwapParams) Action {
	data := p.Calldata
	if data == nil {
		data = []byte{}
	}
	return MustNew(SwapAction, swapArgs, 1,
		p.FromAsset, p.ToAsset, p.Amount, p.ReceiveAtLeast, p.FeeBps, data, p.CollectFeeInFromToken)
}

// NewPositionCreated emits the position-created marker event
func NewPositionCreated(protocol, positionType string, collateral, debt common.Address) Action {
	return MustNew(PositionCreated, positionCreatedArgs, 0, protocol, positionType, collateral, debt)
}
