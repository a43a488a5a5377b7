package operations

import (
	"fmt"
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"

	"github.com/ethereum/go-ethereum/common"
)

// Intent is a user-level change to a position
type Intent string

const (
	IntentOpenMultiply    Intent = "OpenPosition"
	IntentAdjustRiskUp    Intent = "AdjustRiskUp"
	IntentAdjustRiskDown  Intent = "AdjustRiskDown"
	IntentClose           Intent = "ClosePosition"
	IntentDepositBorrow   Intent = "DepositBorrow"
	IntentPaybackWithdraw Intent = "PaybackWithdraw"
)

// Name returns the registered operation name for a protocol and intent
func Name(p core.Protocol, intent Intent) string {
	return string(p) + string(intent)
}

// PositionTypeMultiply tags positions opened through the multiply flow
const PositionTypeMultiply = "Multiply"

// FlashloanArgs selects the lender, the borrowed token and the amount in base units
type FlashloanArgs struct {
	Provider action.FlashloanProvider
	Token    core.Token
	Amount   *big.Int
}

// SwapArgs are the sized swap parameters. Amount includes a source side fee, which the swap
// action deducts before trading.
type SwapArgs struct {
	Amount                *big.Int
	ReceiveAtLeast        *big.Int
	FeeBps                int64
	CollectFeeInFromToken bool
	Calldata              []byte
}

// MorphoMarketParams identifies a Morpho Blue market
type MorphoMarketParams struct {
	LoanToken       common.Address
	CollateralToken common.Address
	Oracle          common.Address
	Irm             common.Address
	Lltv            *big.Int
}

// MarketRef carries the protocol specific market identity
type MarketRef struct {
	// Ajna pool and the price hint (WAD) used to place the loan
	Pool  common.Address
	Price *big.Int

	Morpho MorphoMarketParams

	// Aave v3 e-mode category, 0 leaves the account's category unchanged
	EModeCategory uint8
}

// MultiplyArgs drive OpenMultiply and AdjustRiskUp
type MultiplyArgs struct {
	Proxy             core.Proxy
	Collateral        core.Token
	Debt              core.Token
	DepositCollateral *big.Int
	DepositDebt       *big.Int
	Borrow            *big.Int
	Flashloan         FlashloanArgs
	Swap              SwapArgs
	Market            MarketRef
	PositionType      string
}

// DeleverageArgs drive AdjustRiskDown
type DeleverageArgs struct {
	Proxy        core.Proxy
	Collateral   core.Token
	Debt         core.Token
	Withdraw     *big.Int
	Flashloan    FlashloanArgs
	Swap         SwapArgs
	Market       MarketRef
	ReturnNative bool
}

// CloseArgs drive Close, either to collateral or to debt. The difference is carried by the
// swap amount only.
type CloseArgs struct {
	Proxy        core.Proxy
	Collateral   core.Token
	Debt         core.Token
	Flashloan    FlashloanArgs
	Swap         SwapArgs
	Market       MarketRef
	ReturnNative bool
}

// DepositBorrowArgs drive the plain deposit and/or borrow operation
type DepositBorrowArgs struct {
	Proxy        core.Proxy
	Collateral   core.Token
	Debt         core.Token
	Deposit      *big.Int
	Borrow       *big.Int
	Market       MarketRef
	ReturnNative bool
}

// PaybackWithdrawArgs drive the plain payback and/or withdraw operation
type PaybackWithdrawArgs struct {
	Proxy        core.Proxy
	Collateral   core.Token
	Debt         core.Token
	Payback      *big.Int
	Withdraw     *big.Int
	PaybackAll   bool
	WithdrawAll  bool
	Market       MarketRef
	ReturnNative bool
}

// Assembler turns intents into operations for one protocol
type Assembler interface {
	Protocol() core.Protocol
	OpenMultiply(args MultiplyArgs) (*action.Operation, error)
	AdjustRiskUp(args MultiplyArgs) (*action.Operation, error)
	AdjustRiskDown(args DeleverageArgs) (*action.Operation, error)
	Close(args CloseArgs) (*action.Operation, error)
	DepositBorrow(args DepositBorrowArgs) (*action.Operation, error)
	PaybackWithdraw(args PaybackWithdrawArgs) (*action.Operation, error)
}

// Positive reports whether x is set and greater than zero
func Positive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}

// OrZero returns x, or a fresh zero when x is nil
func OrZero(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}

// Finish validates dependencies, builds the operation and checks it against the registry
func Finish(name string, slots ...action.Slot) (*action.Operation, error) {
	op, err := action.NewOperation(name, slots...)
	if err != nil {
		return nil, err
	}
	if err := Definitions().Verify(op); err != nil {
		return nil, fmt.Errorf("assemble %s: %w", name, err)
	}
	return op, nil
}
