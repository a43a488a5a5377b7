package strategy

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"leverage_builder/internal/action"
	"leverage_builder/internal/chain"
	"leverage_builder/internal/core"
	"leverage_builder/internal/mock"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/position"
	"leverage_builder/internal/validation"
	apperrors "leverage_builder/pkg/errors"
	"leverage_builder/pkg/logging"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type mockReader struct {
	testifymock.Mock
}

func (m *mockReader) ReadPosition(ctx context.Context, q chain.Query) (position.Position, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(position.Position), args.Error(1)
}

var proxy = core.Proxy{
	Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
	Owner:   common.HexToAddress("0x2222222222222222222222222222222222222222"),
	IsDPM:   true,
}

var lendingMarket = position.LendingMarket{
	Label:     "test",
	MaxLTV:    d("0.8"),
	LiqThresh: d("0.83"),
	Liquidity: d("1e15"),
}

var ajnaMarket = position.AjnaMarket{
	Pool:        mock.AjnaPool.Hex(),
	Bands:       position.PriceBands{HTP: d("1000"), LUP: d("1800"), MOMP: d("1900")},
	MarketPrice: d("2000"),
	Liquidity:   d("1e12"),
}

var morphoParams = operations.MorphoMarketParams{
	LoanToken:       mock.USDC.Address,
	CollateralToken: mock.WETH.Address,
	Oracle:          common.HexToAddress("0x0a"),
	Irm:             common.HexToAddress("0x0b"),
	Lltv:            big.NewInt(860000000000000000),
}

func pos(coll core.Token, collAmount string, debt core.Token, debtAmount string, m position.Market) position.Position {
	return position.New(
		position.TokenAmount{Token: coll, Amount: d(collAmount)},
		position.TokenAmount{Token: debt, Amount: d(debtAmount)},
		d("2000"), d("1"), m,
	)
}

func newQuotes(ethPrice string) *mock.MockSwapDataProvider {
	q := mock.NewMockSwapDataProvider()
	q.SetPrice("WETH", d(ethPrice))
	q.SetPrice("USDC", d("1"))
	return q
}

func newBuilder(t *testing.T, reader PositionReader, quotes core.ISwapDataProvider) *Builder {
	t.Helper()
	b, err := NewBuilder(mock.NewMockAddressRegistry(), reader, quotes, DefaultOptions(), logging.NewNopLogger())
	require.NoError(t, err)
	return b
}

func readerFor(p position.Position) *mockReader {
	r := &mockReader{}
	r.On("ReadPosition", testifymock.Anything, testifymock.Anything).Return(p, nil)
	return r
}

func nestedNames(a action.Action) []string {
	out := make([]string, len(a.Nested))
	for i, s := range a.Nested {
		out[i] = s.Name()
	}
	return out
}

func TestOpen_AaveV3EthUsdc2x(t *testing.T) {
	reader := readerFor(pos(mock.ETH, "0", mock.USDC, "0", lendingMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.Open(context.Background(), OpenRequest{
		Position:          Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.ETH, Debt: mock.USDC},
		DepositCollateral: d("1e18"),
		Multiple:          d("2"),
		Slippage:          d("0.01"),
	})
	require.NoError(t, err)

	op := res.Operation
	assert.Equal(t, "AaveV3OpenPosition", op.Name)
	assert.Equal(t, []string{
		action.PullToken, action.PullToken, action.WrapEth, action.TakeFlashloan, action.PositionCreated,
	}, op.Names())
	assert.Equal(t, []string{
		action.SetApproval, "AaveV3Deposit", "AaveV3Borrow", action.SwapAction,
		action.SetApproval, "AaveV3Deposit", "AaveV3SetEMode", "AaveV3Withdraw",
	}, nestedNames(op.Slots[3].Action()))

	sim := res.Simulation
	assert.NotEmpty(t, sim.ID)
	assert.False(t, sim.Validation.HasErrors(), "%+v", sim.Validation)
	assert.InDelta(t, 0.5, sim.Target.RiskRatio().LoanToValue.InexactFloat64(), 0.01)
	assert.True(t, sim.Target.RiskRatio().LoanToValue.LessThan(lendingMarket.MaxLTV))
	assert.True(t, sim.Target.Collateral.Amount.GreaterThan(d("1.9e18")))

	// the flashloan backs the borrow at max LTV
	require.NotNil(t, sim.Flashloan)
	assert.Equal(t, action.ProviderBalancer, sim.Flashloan.Provider)
	borrow := sim.Target.Debt.Amount
	assert.True(t, decimal.NewFromBigInt(sim.Flashloan.Amount, 0).Equal(borrow.Div(d("0.8")).Ceil()))

	assert.Equal(t, mock.Executor, res.Tx.To)
	assert.Equal(t, "1000000000000000000", res.Tx.Value.String())
	calls, name, err := action.DecodeExecutorCalldata(res.Tx.Data)
	require.NoError(t, err)
	assert.Equal(t, "AaveV3OpenPosition", name)
	assert.Len(t, calls, 5)

	reader.AssertExpectations(t)
}

var swapParams = action.Args("address", "address", "uint256", "uint256", "uint256", "bytes", "bool")

func swapAssets(t *testing.T, a action.Action) (from, to common.Address) {
	t.Helper()
	require.Equal(t, action.SwapAction, a.Name)
	vals, err := swapParams.Unpack(a.Params)
	require.NoError(t, err)
	return vals[0].(common.Address), vals[1].(common.Address)
}

// the aggregator must route the same ERC20s the swap action trades
func TestSwapQuotedInTradedTokens(t *testing.T) {
	t.Run("open ETH collateral", func(t *testing.T) {
		quotes := newQuotes("2000")
		b := newBuilder(t, readerFor(pos(mock.ETH, "0", mock.USDC, "0", lendingMarket)), quotes)
		res, err := b.Open(context.Background(), OpenRequest{
			Position:          Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.ETH, Debt: mock.USDC},
			DepositCollateral: d("1e18"),
			Multiple:          d("2"),
			Slippage:          d("0.01"),
		})
		require.NoError(t, err)

		from, to := swapAssets(t, res.Operation.Slots[3].Action().Nested[3].Action())
		calls := quotes.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, from, calls[0].FromAddress)
		assert.Equal(t, to, calls[0].ToAddress)
		assert.Equal(t, mock.WETH.Address, calls[0].ToAddress)
		assert.Equal(t, "WETH", res.Simulation.Swap.To.Symbol)
	})

	t.Run("close ETH debt to collateral", func(t *testing.T) {
		quotes := newQuotes("2000")
		quotes.SetPrice("WSTETH", d("2300"))
		current := position.New(
			position.TokenAmount{Token: mock.WSTETH, Amount: d("10e18")},
			position.TokenAmount{Token: mock.ETH, Amount: d("5e18")},
			d("2300"), d("2000"), lendingMarket,
		)
		b := newBuilder(t, readerFor(current), quotes)
		res, err := b.Close(context.Background(), CloseRequest{
			Position:     Position{Protocol: core.ProtocolMorphoBlue, Proxy: proxy, Collateral: mock.WSTETH, Debt: mock.ETH, Market: operations.MarketRef{Morpho: morphoParams}},
			ToCollateral: true,
			Slippage:     d("0.01"),
		})
		require.NoError(t, err)

		from, to := swapAssets(t, res.Operation.Slots[0].Action().Nested[3].Action())
		calls := quotes.Calls()
		require.Len(t, calls, 2)
		for _, c := range calls {
			assert.Equal(t, from, c.FromAddress)
			assert.Equal(t, to, c.ToAddress)
			assert.NotEqual(t, core.ETHAddress, c.ToAddress)
		}
	})
}

func newBuilderWith(t *testing.T, reader PositionReader, quotes core.ISwapDataProvider, provider action.FlashloanProvider) *Builder {
	t.Helper()
	opts := DefaultOptions()
	opts.FlashloanProvider = provider
	b, err := NewBuilder(mock.NewMockAddressRegistry(), reader, quotes, opts, logging.NewNopLogger())
	require.NoError(t, err)
	return b
}

var flashloanProviders = []action.FlashloanProvider{
	action.ProviderBalancer, action.ProviderMakerDSS, action.ProviderAaveV3, action.ProviderMorphoBlue,
}

var decreaseMarkets = []struct {
	protocol core.Protocol
	market   position.Market
	ref      operations.MarketRef
}{
	{core.ProtocolAaveV3, lendingMarket, operations.MarketRef{}},
	{core.ProtocolAaveV2, lendingMarket, operations.MarketRef{}},
	{core.ProtocolMorphoBlue, lendingMarket, operations.MarketRef{Morpho: morphoParams}},
	{core.ProtocolAjna, ajnaMarket, operations.MarketRef{Pool: mock.AjnaPool}},
}

func TestClose_SwapCoversFlashloanAndPremium(t *testing.T) {
	for _, m := range decreaseMarkets {
		for _, provider := range flashloanProviders {
			t.Run(string(m.protocol)+"/"+provider.String(), func(t *testing.T) {
				reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "1000e6", m.market))
				b := newBuilderWith(t, reader, newQuotes("1950"), provider)

				res, err := b.Close(context.Background(), CloseRequest{
					Position:     Position{Protocol: m.protocol, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: m.ref},
					ToCollateral: true,
					Slippage:     d("0.01"),
				})
				require.NoError(t, err)

				sim := res.Simulation
				premium := decimal.NewFromBigInt(operations.Premium(*sim.Flashloan), 0)
				assert.True(t, sim.Close.Repay.Equal(d("1001e6").Add(premium)), sim.Close.Repay.String())
				assert.True(t, sim.Swap.ReceiveAtLeast.GreaterThanOrEqual(sim.Close.Repay),
					"receive at least %s, repay %s", sim.Swap.ReceiveAtLeast, sim.Close.Repay)
				if m.protocol == core.ProtocolMorphoBlue || m.protocol == core.ProtocolAjna {
					repay := decimal.NewFromBigInt(operations.RepayAmount(*sim.Flashloan), 0)
					assert.True(t, sim.Swap.ReceiveAtLeast.GreaterThanOrEqual(repay))
				}
				assert.False(t, sim.Validation.Has(validation.SwapOutputBelowRepayment))
			})
		}
	}
}

func TestAdjustDown_RepaysFlashloanAndPremium(t *testing.T) {
	for _, m := range decreaseMarkets {
		for _, provider := range flashloanProviders {
			t.Run(string(m.protocol)+"/"+provider.String(), func(t *testing.T) {
				current := pos(mock.WETH, "2e18", mock.USDC, "2000e6", m.market)
				b := newBuilderWith(t, readerFor(current), newQuotes("2000"), provider)

				res, err := b.Adjust(context.Background(), AdjustRequest{
					Position:  Position{Protocol: m.protocol, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: m.ref},
					TargetLTV: d("0.3"),
					Slippage:  d("0.01"),
				})
				require.NoError(t, err)

				sim := res.Simulation
				premium := decimal.NewFromBigInt(operations.Premium(*sim.Flashloan), 0)
				repaid := current.Debt.Amount.Sub(sim.Target.Debt.Amount)
				if usesCollateralFlashloan(m.protocol) {
					// the premium is held back from the payback
					assert.True(t, repaid.Add(premium).Equal(sim.Swap.ReceiveAtLeast))
				} else {
					repay := decimal.NewFromBigInt(operations.RepayAmount(*sim.Flashloan), 0)
					assert.True(t, sim.Swap.ReceiveAtLeast.GreaterThanOrEqual(repay),
						"receive at least %s, repay %s", sim.Swap.ReceiveAtLeast, repay)
				}
			})
		}
	}
}

func TestClose_UnderwaterReportsShortRepayment(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "1950e6", lendingMarket))
	b := newBuilder(t, reader, newQuotes("1950"))

	res, err := b.Close(context.Background(), CloseRequest{
		Position:     Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC},
		ToCollateral: true,
		Slippage:     d("0.01"),
	})
	require.NoError(t, err)

	sim := res.Simulation
	assert.True(t, sim.Swap.AmountBeforeFees.Equal(d("1e18")), "sizing is capped at the available collateral")
	assert.False(t, sim.Close.Covered())
	assert.True(t, sim.Validation.HasErrors())
	assert.True(t, sim.Validation.Has(validation.SwapOutputBelowRepayment))
}

func TestClose_AjnaToCollateralTwoPass(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "1000e6", ajnaMarket))
	quotes := newQuotes("1950")
	b := newBuilder(t, reader, quotes)

	res, err := b.Close(context.Background(), CloseRequest{
		Position:     Position{Protocol: core.ProtocolAjna, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: operations.MarketRef{Pool: mock.AjnaPool}},
		ToCollateral: true,
		Slippage:     d("0.01"),
	})
	require.NoError(t, err)

	assert.Equal(t, "AjnaClosePosition", res.Operation.Name)
	cs := res.Simulation.Close
	require.NotNil(t, cs)
	assert.Equal(t, "1950.00", cs.MarketPrice.StringFixed(2))
	assert.True(t, res.Simulation.Swap.AmountBeforeFees.GreaterThan(cs.Estimate),
		"final %s should exceed the oracle estimate %s", res.Simulation.Swap.AmountBeforeFees, cs.Estimate)
	assert.Len(t, quotes.Calls(), 2)

	assert.Equal(t, "1001000000", res.Simulation.Flashloan.Amount.String())
	repay := decimal.NewFromBigInt(operations.RepayAmount(*res.Simulation.Flashloan), 0)
	assert.True(t, res.Simulation.Swap.ReceiveAtLeast.GreaterThanOrEqual(repay),
		"receive at least %s below flashloan repayment %s", res.Simulation.Swap.ReceiveAtLeast, repay)
	assert.False(t, res.Simulation.Validation.HasErrors())
	assert.True(t, res.Simulation.Target.Debt.Amount.IsZero())
	assert.True(t, res.Simulation.Target.Collateral.Amount.IsZero())
	assert.Equal(t, "0", res.Tx.Value.String())
}

func TestClose_ToDebtSellsAllCollateral(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "1000e6", lendingMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.Close(context.Background(), CloseRequest{
		Position: Position{Protocol: core.ProtocolAaveV2, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC},
		Slippage: d("0.005"),
	})
	require.NoError(t, err)
	assert.Equal(t, "AaveV2ClosePosition", res.Operation.Name)
	assert.Nil(t, res.Simulation.Close)
	assert.True(t, res.Simulation.Swap.AmountBeforeFees.Equal(d("1e18")))
}

func TestAdjust_MorphoDown(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "2e18", mock.USDC, "2000e6", position.LendingMarket{
		Label: "morpho", MaxLTV: d("0.86"), LiqThresh: d("0.86"), Liquidity: d("1e12"),
	}))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.Adjust(context.Background(), AdjustRequest{
		Position:  Position{Protocol: core.ProtocolMorphoBlue, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: operations.MarketRef{Morpho: morphoParams}},
		TargetLTV: d("0.3"),
		Slippage:  d("0.01"),
	})
	require.NoError(t, err)

	assert.Equal(t, "MorphoBlueAdjustRiskDown", res.Operation.Name)
	assert.InDelta(t, 0.3, res.Simulation.Target.RiskRatio().LoanToValue.InexactFloat64(), 0.01)
	assert.False(t, res.Simulation.Validation.HasErrors())

	// the flashloan is repaid from the swap output
	fl := decimal.NewFromBigInt(res.Simulation.Flashloan.Amount, 0)
	assert.True(t, fl.LessThanOrEqual(res.Simulation.Swap.ReceiveAtLeast))
}

func TestAdjust_AaveUp(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "2e18", mock.USDC, "2000e6", lendingMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.Adjust(context.Background(), AdjustRequest{
		Position:  Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC},
		TargetLTV: d("0.6"),
		Slippage:  d("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "AaveV3AdjustRiskUp", res.Operation.Name)
	assert.InDelta(t, 0.6, res.Simulation.Target.RiskRatio().LoanToValue.InexactFloat64(), 0.01)
	assert.Equal(t, "0", res.Tx.Value.String())
}

func TestAdjust_AlreadyAtTarget(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "1000e6", lendingMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	_, err := b.Adjust(context.Background(), AdjustRequest{
		Position:  Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC},
		TargetLTV: d("0.5"),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestOpen_AjnaPriceAboveMomp(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "0", mock.USDC, "0", ajnaMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.Open(context.Background(), OpenRequest{
		Position: Position{
			Protocol: core.ProtocolAjna, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC,
			Market: operations.MarketRef{Pool: mock.AjnaPool, Price: d("1950e18").BigInt()},
		},
		DepositCollateral: d("1e18"),
		Multiple:          d("1.5"),
		Slippage:          d("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "AjnaOpenPosition", res.Operation.Name)
	assert.True(t, res.Simulation.Validation.Has(validation.PriceAboveMomp))
}

func TestOpen_AjnaDefaultsPriceToLup(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "0", mock.USDC, "0", ajnaMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.Open(context.Background(), OpenRequest{
		Position:          Position{Protocol: core.ProtocolAjna, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: operations.MarketRef{Pool: mock.AjnaPool}},
		DepositCollateral: d("1e18"),
		Multiple:          d("1.5"),
		Slippage:          d("0.01"),
	})
	require.NoError(t, err)
	assert.False(t, res.Simulation.Validation.Has(validation.PriceAboveMomp))
	assert.False(t, res.Simulation.Validation.Has(validation.PriceBelowHtp))
}

func TestDepositBorrow_NotEnoughLiquidity(t *testing.T) {
	market := lendingMarket
	market.Liquidity = d("100e6")
	reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "0", market))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.DepositBorrow(context.Background(), DepositBorrowRequest{
		Position: Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC},
		Borrow:   d("5000e6"),
	})
	require.NoError(t, err)
	assert.Equal(t, "AaveV3DepositBorrow", res.Operation.Name)
	assert.True(t, res.Simulation.Validation.Has(validation.NotEnoughLiquidity))
	assert.False(t, res.Simulation.Validation.Has(validation.BorrowUndercollateralized))
}

func TestDepositBorrow_NativeDepositSetsValue(t *testing.T) {
	reader := readerFor(pos(mock.ETH, "0", mock.USDC, "0", lendingMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.DepositBorrow(context.Background(), DepositBorrowRequest{
		Position: Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.ETH, Debt: mock.USDC},
		Deposit:  d("2e18"),
		Borrow:   d("1000e6"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", res.Tx.Value.String())
	assert.False(t, res.Simulation.Validation.HasErrors())
}

func TestPaybackWithdraw_Findings(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "1000e6", lendingMarket))
	b := newBuilder(t, reader, newQuotes("2000"))
	balance := d("100e6")

	res, err := b.PaybackWithdraw(context.Background(), PaybackWithdrawRequest{
		Position:      Position{Protocol: core.ProtocolMorphoBlue, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: operations.MarketRef{Morpho: morphoParams}},
		Payback:       d("200e6"),
		Withdraw:      d("9e17"),
		WalletBalance: &balance,
	})
	require.NoError(t, err)
	assert.Equal(t, "MorphoBluePaybackWithdraw", res.Operation.Name)
	assert.True(t, res.Simulation.Validation.Has(validation.PaybackExceedsBalance))
	assert.True(t, res.Simulation.Validation.Has(validation.WithdrawMoreThanAvailable))
}

func TestPaybackWithdraw_All(t *testing.T) {
	reader := readerFor(pos(mock.WETH, "1e18", mock.USDC, "1000e6", lendingMarket))
	b := newBuilder(t, reader, newQuotes("2000"))

	res, err := b.PaybackWithdraw(context.Background(), PaybackWithdrawRequest{
		Position:    Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC},
		PaybackAll:  true,
		WithdrawAll: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Simulation.Validation.HasErrors())
	assert.True(t, res.Simulation.Target.Debt.Amount.IsZero())
	assert.True(t, res.Simulation.Target.Collateral.Amount.IsZero())
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		reader := &mockReader{}
		reader.On("ReadPosition", testifymock.Anything, testifymock.Anything).
			Return(position.Position{}, apperrors.ErrStateRead)
		b := newBuilder(t, reader, newQuotes("2000"))
		_, err := b.Close(context.Background(), CloseRequest{
			Position: Position{Protocol: core.ProtocolAaveV3, Collateral: mock.WETH, Debt: mock.USDC},
		})
		assert.ErrorIs(t, err, apperrors.ErrStateRead)
	})

	t.Run("quote failure", func(t *testing.T) {
		quotes := newQuotes("2000")
		quotes.SetError(errors.New("aggregator down"))
		b := newBuilder(t, readerFor(pos(mock.WETH, "0", mock.USDC, "0", lendingMarket)), quotes)
		_, err := b.Open(context.Background(), OpenRequest{
			Position:          Position{Protocol: core.ProtocolAaveV3, Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC},
			DepositCollateral: d("1e18"),
			Multiple:          d("2"),
		})
		assert.ErrorIs(t, err, apperrors.ErrQuoteFailed)
	})

	t.Run("unknown protocol", func(t *testing.T) {
		b := newBuilder(t, &mockReader{}, newQuotes("2000"))
		_, err := b.Close(context.Background(), CloseRequest{Position: Position{Protocol: "Compound"}})
		assert.ErrorIs(t, err, apperrors.ErrUnknownProtocol)
	})

	t.Run("bad multiple", func(t *testing.T) {
		b := newBuilder(t, &mockReader{}, newQuotes("2000"))
		_, err := b.Open(context.Background(), OpenRequest{
			Position:          Position{Protocol: core.ProtocolAaveV3},
			DepositCollateral: d("1e18"),
			Multiple:          d("1"),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})

	t.Run("missing executor", func(t *testing.T) {
		reg := mock.NewMockAddressRegistry()
		reg.Remove(ExecutorName)
		_, err := NewBuilder(reg, &mockReader{}, newQuotes("2000"), DefaultOptions(), logging.NewNopLogger())
		assert.ErrorIs(t, err, apperrors.ErrMissingAddress)
	})
}

func TestLTVFromMultiple(t *testing.T) {
	assert.True(t, LTVFromMultiple(d("2")).Equal(d("0.5")))
	assert.True(t, LTVFromMultiple(d("4")).Equal(d("0.75")))
	assert.True(t, LTVFromMultiple(d("1")).IsZero())
}
