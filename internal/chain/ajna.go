package chain

import (
	"context"
	"fmt"

	"leverage_builder/internal/position"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PoolInfoUtils is the registry name of the Ajna view helper
const PoolInfoUtils = "AjnaPoolInfoUtils"

const poolInfoUtilsABI = `[
{"name":"borrowerInfo","type":"function","stateMutability":"view",
 "inputs":[{"name":"ajnaPool_","type":"address"},{"name":"borrower_","type":"address"}],
 "outputs":[{"name":"debt_","type":"uint256"},{"name":"collateral_","type":"uint256"},{"name":"t0Np_","type":"uint256"}]},
{"name":"poolPricesInfo","type":"function","stateMutability":"view",
 "inputs":[{"name":"ajnaPool_","type":"address"}],
 "outputs":[{"name":"hpb_","type":"uint256"},{"name":"hpbIndex_","type":"uint256"},
  {"name":"htp_","type":"uint256"},{"name":"htpIndex_","type":"uint256"},
  {"name":"lup_","type":"uint256"},{"name":"lupIndex_","type":"uint256"}]},
{"name":"momp","type":"function","stateMutability":"view",
 "inputs":[{"name":"ajnaPool_","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"poolLoansInfo","type":"function","stateMutability":"view",
 "inputs":[{"name":"ajnaPool_","type":"address"}],
 "outputs":[{"name":"poolSize_","type":"uint256"},{"name":"loansCount_","type":"uint256"},
  {"name":"maxBorrower_","type":"address"},{"name":"pendingInflator_","type":"uint256"},
  {"name":"pendingInterestFactor_","type":"uint256"}]}
]`

const ajnaPoolABI = `[
{"name":"debtInfo","type":"function","stateMutability":"view","inputs":[],
 "outputs":[{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"},{"name":"","type":"uint256"}]}
]`

var (
	poolInfo = mustABI(poolInfoUtilsABI)
	ajnaPool = mustABI(ajnaPoolABI)

	// minimum debt is a tenth of the average loan
	ajnaDustFraction = decimal.New(1, -1)
)

// readAjna reads borrower state and pool prices. Amounts and prices are WAD scaled.
func (r *Reader) readAjna(ctx context.Context, q Query) (position.Position, error) {
	if q.Market.Pool == (common.Address{}) {
		return position.Position{}, fmt.Errorf("%w: ajna pool not set", apperrors.ErrInvalidArgument)
	}
	if q.CollateralPrice.IsZero() || q.DebtPrice.IsZero() {
		return position.Position{}, fmt.Errorf("%w: ajna reads need collateral and debt prices", apperrors.ErrInvalidArgument)
	}
	utils, err := r.addrs.Contract(PoolInfoUtils)
	if err != nil {
		return position.Position{}, err
	}
	pool := q.Market.Pool

	out, err := r.call(ctx, poolInfo, utils, "borrowerInfo", pool, q.Proxy)
	if err != nil {
		return position.Position{}, err
	}
	borrower, err := bigs(out, 0, 1)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, poolInfo, utils, "poolPricesInfo", pool)
	if err != nil {
		return position.Position{}, err
	}
	prices, err := bigs(out, 2, 4)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, poolInfo, utils, "momp", pool)
	if err != nil {
		return position.Position{}, err
	}
	momp, err := bigs(out, 0)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, poolInfo, utils, "poolLoansInfo", pool)
	if err != nil {
		return position.Position{}, err
	}
	loans, err := bigs(out, 0, 1)
	if err != nil {
		return position.Position{}, err
	}

	out, err = r.call(ctx, ajnaPool, pool, "debtInfo")
	if err != nil {
		return position.Position{}, err
	}
	poolDebt, err := bigs(out, 0)
	if err != nil {
		return position.Position{}, err
	}

	dust := decimal.Zero
	if loans[1].IsPositive() {
		dust = poolDebt[0].Div(loans[1]).Mul(ajnaDustFraction)
	}

	market := position.AjnaMarket{
		Pool: pool.Hex(),
		Bands: position.PriceBands{
			HTP:  prices[0].Shift(-18),
			LUP:  prices[1].Shift(-18),
			MOMP: momp[0].Shift(-18),
		},
		MarketPrice: q.CollateralPrice.Div(q.DebtPrice),
		Dust:        wadToBase(dust, q.Debt),
		Liquidity:   wadToBase(decimal.Max(loans[0].Sub(poolDebt[0]), decimal.Zero), q.Debt),
	}
	return position.New(
		position.TokenAmount{Token: q.Collateral, Amount: wadToBase(borrower[1], q.Collateral)},
		position.TokenAmount{Token: q.Debt, Amount: wadToBase(borrower[0], q.Debt)},
		q.CollateralPrice, q.DebtPrice, market,
	), nil
}
