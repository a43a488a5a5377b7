package ajna

import (
	"math/big"
	"testing"

	"leverage_builder/internal/action"
	"leverage_builder/internal/core"
	"leverage_builder/internal/mock"
	"leverage_builder/internal/operations"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	proxy  = core.Proxy{Address: common.HexToAddress("0x01"), Owner: common.HexToAddress("0x02"), IsDPM: true}
	market = operations.MarketRef{Pool: mock.AjnaPool, Price: new(big.Int).Mul(big.NewInt(2000), big.NewInt(1e18))}
)

func TestOpenMultiply_Layout(t *testing.T) {
	a := NewAssembler(mock.NewMockAddressRegistry())
	op, err := a.OpenMultiply(operations.MultiplyArgs{
		Proxy:             proxy,
		Collateral:        mock.WETH,
		Debt:              mock.USDC,
		DepositCollateral: big.NewInt(1e18),
		Flashloan:         operations.FlashloanArgs{Provider: action.ProviderBalancer, Token: mock.USDC, Amount: big.NewInt(2000e6)},
		Swap:              operations.SwapArgs{Amount: big.NewInt(2000e6), ReceiveAtLeast: big.NewInt(98e16), FeeBps: 20},
		Market:            market,
	})
	require.NoError(t, err)

	assert.Equal(t, "AjnaOpenPosition", op.Name)
	nested := op.Slots[3].Action().Nested
	require.Len(t, nested, 3)
	assert.Equal(t, DepositBorrow, nested[2].Name())

	want, err := depositBorrowArgs.Pack(mock.AjnaPool, new(big.Int), big.NewInt(2000e6), false, market.Price)
	require.NoError(t, err)
	assert.Equal(t, want, nested[2].Action().Params)
}

func TestClose_RepaysAndWithdrawsAll(t *testing.T) {
	a := NewAssembler(mock.NewMockAddressRegistry())
	op, err := a.Close(operations.CloseArgs{
		Proxy:        proxy,
		Collateral:   mock.ETH,
		Debt:         mock.USDC,
		Flashloan:    operations.FlashloanArgs{Provider: action.ProviderBalancer, Token: mock.USDC, Amount: big.NewInt(1001e6)},
		Swap:         operations.SwapArgs{Amount: big.NewInt(52e16), ReceiveAtLeast: big.NewInt(1001e6), FeeBps: 20},
		Market:       market,
		ReturnNative: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "AjnaClosePosition", op.Name)
	assert.True(t, op.Slots[1].IsIncluded(), "ETH collateral is unwrapped")

	want, err := repayWithdrawArgs.Pack(mock.AjnaPool, new(big.Int), big.NewInt(1001e6), true, true, market.Price)
	require.NoError(t, err)
	assert.Equal(t, want, op.Slots[0].Action().Nested[1].Action().Params)
}

func TestDepositBorrow_RequiresAnAmount(t *testing.T) {
	a := NewAssembler(mock.NewMockAddressRegistry())
	_, err := a.DepositBorrow(operations.DepositBorrowArgs{Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: market})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestPaybackWithdraw_IndexStability(t *testing.T) {
	a := NewAssembler(mock.NewMockAddressRegistry())
	base := operations.PaybackWithdrawArgs{Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC, Market: market}

	pay := base
	pay.Payback = big.NewInt(100e6)
	wd := base
	wd.Withdraw = big.NewInt(1e17)

	opPay, err := a.PaybackWithdraw(pay)
	require.NoError(t, err)
	opWd, err := a.PaybackWithdraw(wd)
	require.NoError(t, err)

	assert.Equal(t, opPay.Names(), opWd.Names())
	idx := opPay.Find(RepayWithdraw)
	assert.Equal(t, idx, opWd.Find(RepayWithdraw))
	assert.True(t, opPay.Slots[idx].IsIncluded())
	assert.True(t, opWd.Slots[idx].IsIncluded())
}

func TestAssembler_RequiresPool(t *testing.T) {
	a := NewAssembler(mock.NewMockAddressRegistry())
	_, err := a.AdjustRiskDown(operations.DeleverageArgs{Proxy: proxy, Collateral: mock.WETH, Debt: mock.USDC})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestMultiply_BorrowRepaysPremiumForEveryProvider(t *testing.T) {
	providers := []action.FlashloanProvider{
		action.ProviderBalancer, action.ProviderMakerDSS, action.ProviderAaveV3, action.ProviderMorphoBlue,
	}
	for _, provider := range providers {
		t.Run(provider.String(), func(t *testing.T) {
			fl := operations.FlashloanArgs{Provider: provider, Token: mock.USDC, Amount: big.NewInt(2000e6)}
			op, err := NewAssembler(mock.NewMockAddressRegistry()).AdjustRiskUp(operations.MultiplyArgs{
				Proxy:      proxy,
				Collateral: mock.WETH,
				Debt:       mock.USDC,
				Flashloan:  fl,
				Swap:       operations.SwapArgs{Amount: big.NewInt(2000e6), ReceiveAtLeast: big.NewInt(98e16), FeeBps: 20},
				Market:     market,
			})
			require.NoError(t, err)

			vals, err := depositBorrowArgs.Unpack(op.Slots[3].Action().Nested[2].Action().Params)
			require.NoError(t, err)
			assert.Equal(t, operations.RepayAmount(fl), vals[2].(*big.Int))
		})
	}
}

func TestPaybackWithdraw_NativeDebtReturnsEth(t *testing.T) {
	a := NewAssembler(mock.NewMockAddressRegistry())
	op, err := a.PaybackWithdraw(operations.PaybackWithdrawArgs{
		Proxy:      proxy,
		Collateral: mock.WSTETH,
		Debt:       mock.ETH,
		Payback:    big.NewInt(1e18),
		Market:     market,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		action.PullToken, action.WrapEth, action.SetApproval, RepayWithdraw,
		action.UnwrapEth, action.ReturnFunds, action.ReturnFunds,
	}, op.Names())
	assert.True(t, op.Slots[1].IsIncluded())
	assert.True(t, op.Slots[4].IsIncluded(), "leftover WETH is unwrapped")
	assert.False(t, op.Slots[5].IsIncluded(), "nothing withdrawn")
	assert.Equal(t, action.NewReturnFunds(core.ETHAddress).Params, op.Slots[6].Action().Params)
}
