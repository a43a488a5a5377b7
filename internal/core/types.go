package core

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Protocol identifies a lending protocol family
type Protocol string

const (
	ProtocolAaveV2     Protocol = "AaveV2"
	ProtocolAaveV3     Protocol = "AaveV3"
	ProtocolAjna       Protocol = "Ajna"
	ProtocolMorphoBlue Protocol = "MorphoBlue"
)

// Protocols lists every supported protocol
var Protocols = []Protocol{ProtocolAaveV2, ProtocolAaveV3, ProtocolAjna, ProtocolMorphoBlue}

// ParseProtocol resolves a protocol name case-insensitively
func ParseProtocol(name string) (Protocol, bool) {
	for _, p := range Protocols {
		if strings.EqualFold(string(p), name) {
			return p, true
		}
	}
	return "", false
}

// Token describes an ERC20 (or the native coin) with its decimals
type Token struct {
	Symbol    string
	Address   common.Address
	Precision int32
}

// ETHAddress is the pseudo address aggregators use for the native coin
var ETHAddress = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// IsNative reports whether the token is the chain's native coin
func (t Token) IsNative() bool {
	return t.Address == ETHAddress || strings.EqualFold(t.Symbol, "ETH")
}

// Amount is an integer amount in a token's base units
type Amount = decimal.Decimal

// Percentage is a fraction, 0.01 == 1%
type Percentage = decimal.Decimal

// ToBaseUnits converts a whole-token amount to base units, rounding down
func (t Token) ToBaseUnits(whole decimal.Decimal) Amount {
	return whole.Shift(t.Precision).Floor()
}

// FromBaseUnits converts a base unit amount to whole tokens
func (t Token) FromBaseUnits(amount Amount) decimal.Decimal {
	return amount.Shift(-t.Precision)
}

// BigInt converts a base unit amount to *big.Int for ABI encoding, clamping negatives to zero
func BigInt(amount Amount) *big.Int {
	if amount.IsNegative() {
		return new(big.Int)
	}
	return amount.Floor().BigInt()
}

// Proxy describes the smart account that executes the operation
type Proxy struct {
	Address common.Address
	Owner   common.Address
	IsDPM   bool
}

// SwapData is a quote returned by a swap aggregator
type SwapData struct {
	FromToken        Token
	ToToken          Token
	FromTokenAmount  Amount
	ToTokenAmount    Amount
	MinToTokenAmount Amount
	ExchangeCalldata []byte
}

// MarketPrice returns the executed price in whole toToken per whole fromToken
func (s *SwapData) MarketPrice() decimal.Decimal {
	from := s.FromToken.FromBaseUnits(s.FromTokenAmount)
	if from.IsZero() {
		return decimal.Zero
	}
	return s.ToToken.FromBaseUnits(s.ToTokenAmount).Div(from)
}
