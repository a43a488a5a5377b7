package swap

import (
	"strings"

	"leverage_builder/internal/core"

	"github.com/shopspring/decimal"
)

// DefaultFeeBps is the protocol swap fee unless a caller overrides it
const DefaultFeeBps int64 = 20

// Side is the token a swap fee is collected in
type Side int

const (
	SourceSide Side = iota
	TargetSide
)

func (s Side) String() string {
	if s == TargetSide {
		return "target"
	}
	return "source"
}

var stablecoins = map[string]bool{
	"USDC": true, "USDT": true, "DAI": true, "SDAI": true, "LUSD": true,
	"GHO": true, "FRAX": true, "USDE": true, "PYUSD": true, "CRVUSD": true,
}

var ethLike = map[string]bool{"ETH": true, "WETH": true}

// FeeSide picks where the fee is taken: a stablecoin side first, then an ETH side, else the
// source token
func FeeSide(from, to core.Token) Side {
	f, t := strings.ToUpper(from.Symbol), strings.ToUpper(to.Symbol)
	switch {
	case stablecoins[f]:
		return SourceSide
	case stablecoins[t]:
		return TargetSide
	case ethLike[f]:
		return SourceSide
	case ethLike[t]:
		return TargetSide
	default:
		return SourceSide
	}
}

func bpsFraction(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).Div(decimal.NewFromInt(10000))
}

// SourceFee is floor(amount * bps / 10000) and the remaining amount, clamped at zero
func SourceFee(amount core.Amount, bps int64) (fee, after core.Amount) {
	fee = amount.Mul(bpsFraction(bps)).Floor()
	after = amount.Sub(fee)
	if after.IsNegative() {
		after = decimal.Zero
	}
	return fee, after
}

// ApplyTargetFee returns floor(minOut * (1 - bps/10000))
func ApplyTargetFee(minOut core.Amount, bps int64) core.Amount {
	out := minOut.Mul(decimal.NewFromInt(1).Sub(bpsFraction(bps))).Floor()
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
