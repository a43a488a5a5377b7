package chain

import (
	"context"
	"fmt"

	"leverage_builder/internal/action"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/operations/morphoblue"
	"leverage_builder/internal/position"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

const morphoABI = `[
{"name":"position","type":"function","stateMutability":"view",
 "inputs":[{"name":"id","type":"bytes32"},{"name":"user","type":"address"}],
 "outputs":[{"name":"supplyShares","type":"uint256"},{"name":"borrowShares","type":"uint128"},
  {"name":"collateral","type":"uint128"}]},
{"name":"market","type":"function","stateMutability":"view",
 "inputs":[{"name":"id","type":"bytes32"}],
 "outputs":[{"name":"totalSupplyAssets","type":"uint128"},{"name":"totalSupplyShares","type":"uint128"},
  {"name":"totalBorrowAssets","type":"uint128"},{"name":"totalBorrowShares","type":"uint128"},
  {"name":"lastUpdate","type":"uint128"},{"name":"fee","type":"uint128"}]}
]`

const morphoOracleABI = `[
{"name":"price","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	morpho       = mustABI(morphoABI)
	morphoOracle = mustABI(morphoOracleABI)

	marketIDArgs = action.Args("address", "address", "address", "address", "uint256")

	// share accounting offsets used by Morpho Blue
	virtualShares = decimal.New(1, 6)
	virtualAssets = decimal.NewFromInt(1)
)

// MarketID is keccak256 of the abi encoded market params
func MarketID(p operations.MorphoMarketParams) (common.Hash, error) {
	packed, err := marketIDArgs.Pack(p.LoanToken, p.CollateralToken, p.Oracle, p.Irm, operations.OrZero(p.Lltv))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: market id: %v", apperrors.ErrInvalidArgument, err)
	}
	return crypto.Keccak256Hash(packed), nil
}

// borrowAssets converts borrow shares to assets rounding up
func borrowAssets(shares, totalAssets, totalShares decimal.Decimal) decimal.Decimal {
	num := shares.Mul(totalAssets.Add(virtualAssets))
	return num.Div(totalShares.Add(virtualShares)).Ceil()
}

func (r *Reader) readMorpho(ctx context.Context, q Query) (position.Position, error) {
	addr, err := r.addrs.Contract(morphoblue.ContractName)
	if err != nil {
		return position.Position{}, err
	}
	params := q.Market.Morpho
	if params.LoanToken == (common.Address{}) {
		return position.Position{}, fmt.Errorf("%w: morpho market params not set", apperrors.ErrInvalidArgument)
	}
	id, err := MarketID(params)
	if err != nil {
		return position.Position{}, err
	}

	out, err := r.call(ctx, morpho, addr, "position", id, q.Proxy)
	if err != nil {
		return position.Position{}, err
	}
	pos, err := bigs(out, 1, 2)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, morpho, addr, "market", id)
	if err != nil {
		return position.Position{}, err
	}
	mkt, err := bigs(out, 0, 2, 3)
	if err != nil {
		return position.Position{}, err
	}

	collPrice, debtPrice := q.CollateralPrice, q.DebtPrice
	if collPrice.IsZero() || debtPrice.IsZero() {
		out, err = r.call(ctx, morphoOracle, params.Oracle, "price")
		if err != nil {
			return position.Position{}, err
		}
		raw, err := bigs(out, 0)
		if err != nil {
			return position.Position{}, err
		}
		// scaled by 1e36 and adjusted for the decimals difference; quoted in the loan token
		collPrice = raw[0].Shift(-36 + q.Collateral.Precision - q.Debt.Precision)
		debtPrice = decimal.NewFromInt(1)
	}

	lltv := decimal.NewFromBigInt(operations.OrZero(params.Lltv), -18)
	market := position.LendingMarket{
		Label:     "MorphoBlue " + id.Hex(),
		MaxLTV:    lltv,
		LiqThresh: lltv,
		Liquidity: decimal.Max(mkt[0].Sub(mkt[1]), decimal.Zero),
	}
	return position.New(
		position.TokenAmount{Token: q.Collateral, Amount: pos[1]},
		position.TokenAmount{Token: q.Debt, Amount: borrowAssets(pos[0], mkt[1], mkt[2])},
		collPrice, debtPrice, market,
	), nil
}
