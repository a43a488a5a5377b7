package chain

import (
	"context"

	"leverage_builder/internal/position"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const dataProviderABI = `[
{"name":"getUserReserveData","type":"function","stateMutability":"view",
 "inputs":[{"name":"asset","type":"address"},{"name":"user","type":"address"}],
 "outputs":[{"name":"currentATokenBalance","type":"uint256"},{"name":"currentStableDebt","type":"uint256"},
  {"name":"currentVariableDebt","type":"uint256"},{"name":"principalStableDebt","type":"uint256"},
  {"name":"scaledVariableDebt","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},
  {"name":"liquidityRate","type":"uint256"},{"name":"stableRateLastUpdated","type":"uint40"},
  {"name":"usageAsCollateralEnabled","type":"bool"}]},
{"name":"getReserveConfigurationData","type":"function","stateMutability":"view",
 "inputs":[{"name":"asset","type":"address"}],
 "outputs":[{"name":"decimals","type":"uint256"},{"name":"ltv","type":"uint256"},
  {"name":"liquidationThreshold","type":"uint256"},{"name":"liquidationBonus","type":"uint256"},
  {"name":"reserveFactor","type":"uint256"},{"name":"usageAsCollateralEnabled","type":"bool"},
  {"name":"borrowingEnabled","type":"bool"},{"name":"stableBorrowRateEnabled","type":"bool"},
  {"name":"isActive","type":"bool"},{"name":"isFrozen","type":"bool"}]}
]`

// v3 reports total aToken supply and both debts; available liquidity is the difference
const reserveDataV3ABI = `[
{"name":"getReserveData","type":"function","stateMutability":"view",
 "inputs":[{"name":"asset","type":"address"}],
 "outputs":[{"name":"unbacked","type":"uint256"},{"name":"accruedToTreasuryScaled","type":"uint256"},
  {"name":"totalAToken","type":"uint256"},{"name":"totalStableDebt","type":"uint256"},
  {"name":"totalVariableDebt","type":"uint256"},{"name":"liquidityRate","type":"uint256"},
  {"name":"variableBorrowRate","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},
  {"name":"averageStableBorrowRate","type":"uint256"},{"name":"liquidityIndex","type":"uint256"},
  {"name":"variableBorrowIndex","type":"uint256"},{"name":"lastUpdateTimestamp","type":"uint40"}]}
]`

const reserveDataV2ABI = `[
{"name":"getReserveData","type":"function","stateMutability":"view",
 "inputs":[{"name":"asset","type":"address"}],
 "outputs":[{"name":"availableLiquidity","type":"uint256"},{"name":"totalStableDebt","type":"uint256"},
  {"name":"totalVariableDebt","type":"uint256"},{"name":"liquidityRate","type":"uint256"},
  {"name":"variableBorrowRate","type":"uint256"},{"name":"stableBorrowRate","type":"uint256"},
  {"name":"averageStableBorrowRate","type":"uint256"},{"name":"liquidityIndex","type":"uint256"},
  {"name":"variableBorrowIndex","type":"uint256"},{"name":"lastUpdateTimestamp","type":"uint40"}]}
]`

const oracleABI = `[
{"name":"getAssetPrice","type":"function","stateMutability":"view",
 "inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	dataProvider  = mustABI(dataProviderABI)
	reserveDataV3 = mustABI(reserveDataV3ABI)
	reserveDataV2 = mustABI(reserveDataV2ABI)
	aaveOracle    = mustABI(oracleABI)
)

type aaveDeployment struct {
	label         string
	dataProvider  string
	oracle        string
	reserveData   abi.ABI
	priceDecimals int32
	liquidity     func(out []interface{}) (decimal.Decimal, error)
}

var aaveV3 = aaveDeployment{
	label:         "AaveV3",
	dataProvider:  "AaveV3PoolDataProvider",
	oracle:        "AaveV3Oracle",
	reserveData:   reserveDataV3,
	priceDecimals: 8, // USD
	liquidity: func(out []interface{}) (decimal.Decimal, error) {
		v, err := bigs(out, 2, 3, 4)
		if err != nil {
			return decimal.Zero, err
		}
		return v[0].Sub(v[1]).Sub(v[2]), nil
	},
}

var aaveV2 = aaveDeployment{
	label:         "AaveV2",
	dataProvider:  "AaveV2PoolDataProvider",
	oracle:        "AaveV2Oracle",
	reserveData:   reserveDataV2,
	priceDecimals: 18, // ETH
	liquidity: func(out []interface{}) (decimal.Decimal, error) {
		v, err := bigs(out, 0)
		if err != nil {
			return decimal.Zero, err
		}
		return v[0], nil
	},
}

func (r *Reader) readAave(ctx context.Context, q Query, d aaveDeployment) (position.Position, error) {
	provider, err := r.addrs.Contract(d.dataProvider)
	if err != nil {
		return position.Position{}, err
	}
	oracle, err := r.addrs.Contract(d.oracle)
	if err != nil {
		return position.Position{}, err
	}
	coll, debt, err := r.addrs.Pair(q.Collateral, q.Debt)
	if err != nil {
		return position.Position{}, err
	}

	out, err := r.call(ctx, dataProvider, provider, "getUserReserveData", coll, q.Proxy)
	if err != nil {
		return position.Position{}, err
	}
	collBalance, err := bigs(out, 0)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, dataProvider, provider, "getUserReserveData", debt, q.Proxy)
	if err != nil {
		return position.Position{}, err
	}
	debts, err := bigs(out, 1, 2)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, dataProvider, provider, "getReserveConfigurationData", coll)
	if err != nil {
		return position.Position{}, err
	}
	risk, err := bigs(out, 1, 2)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, d.reserveData, provider, "getReserveData", debt)
	if err != nil {
		return position.Position{}, err
	}
	liquidity, err := d.liquidity(out)
	if err != nil {
		return position.Position{}, err
	}

	collPrice, debtPrice := q.CollateralPrice, q.DebtPrice
	if collPrice.IsZero() || debtPrice.IsZero() {
		if collPrice, err = r.aavePrice(ctx, oracle, coll, d.priceDecimals); err != nil {
			return position.Position{}, err
		}
		if debtPrice, err = r.aavePrice(ctx, oracle, debt, d.priceDecimals); err != nil {
			return position.Position{}, err
		}
	}

	market := position.LendingMarket{
		Label:     d.label + " " + q.Collateral.Symbol + "/" + q.Debt.Symbol,
		MaxLTV:    risk[0].Shift(-4),
		LiqThresh: risk[1].Shift(-4),
		Liquidity: decimal.Max(liquidity, decimal.Zero),
	}
	return position.New(
		position.TokenAmount{Token: q.Collateral, Amount: collBalance[0]},
		position.TokenAmount{Token: q.Debt, Amount: debts[0].Add(debts[1])},
		collPrice, debtPrice, market,
	), nil
}

func (r *Reader) aavePrice(ctx context.Context, oracle, asset common.Address, decimals int32) (decimal.Decimal, error) {
	out, err := r.call(ctx, aaveOracle, oracle, "getAssetPrice", asset)
	if err != nil {
		return decimal.Zero, err
	}
	v, err := bigs(out, 0)
	if err != nil {
		return decimal.Zero, err
	}
	return v[0].Shift(-decimals), nil
}
