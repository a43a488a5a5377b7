package operations_test

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

var intents = []operations.Intent{
	operations.IntentOpenMultiply,
	operations.IntentAdjustRiskUp,
	operations.IntentAdjustRiskDown,
	operations.IntentClose,
	operations.IntentDepositBorrow,
	operations.IntentPaybackWithdraw,
}

func TestDefinitions_CoverEveryProtocolAndIntent(t *testing.T) {
	reg := operations.Definitions()
	for _, p := range core.Protocols {
		for _, in := range intents {
			_, err := reg.Get(operations.Name(p, in))
			assert.NoError(t, err, "missing %s", operations.Name(p, in))
		}
	}
	assert.Len(t, reg.Names(), len(core.Protocols)*len(intents))
}

func TestParseRegistry_RejectsDuplicates(t *testing.T) {
	_, err := operations.ParseRegistry([]byte(`
operations:
  - name: A
    actions: [{name: PullToken_3}]
  - name: A
    actions: [{name: PullToken_3}]
`))
	assert.Error(t, err)
}

func TestRegistry_Verify(t *testing.T) {
	reg, err := operations.ParseRegistry([]byte(`
operations:
  - name: Test
    actions:
      - name: PullToken_3
        optional: true
      - name: ReturnFunds_3
`))
	require.NoError(t, err)

	pull := action.NewPullToken(mock.USDC.Address, common.Address{}, big.NewInt(1))
	ret := action.NewReturnFunds(mock.USDC.Address)

	tests := []struct {
		name    string
		op      *action.Operation
		wantErr error
	}{
		{"matches", &action.Operation{Name: "Test", Slots: []action.Slot{action.Included(pull), action.Included(ret)}}, nil},
		{"optional inert", &action.Operation{Name: "Test", Slots: []action.Slot{action.Inert(pull), action.Included(ret)}}, nil},
		{"required inert", &action.Operation{Name: "Test", Slots: []action.Slot{action.Included(pull), action.Inert(ret)}}, apperrors.ErrDefinitionMismatch},
		{"wrong order", &action.Operation{Name: "Test", Slots: []action.Slot{action.Included(ret), action.Included(pull)}}, apperrors.ErrDefinitionMismatch},
		{"missing slot", &action.Operation{Name: "Test", Slots: []action.Slot{action.Included(ret)}}, apperrors.ErrDefinitionMismatch},
		{"unknown", &action.Operation{Name: "Other"}, apperrors.ErrUnknownOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Verify(tt.op)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type fakeLending struct{}

func (fakeLending) Spender() common.Address { return mock.AaveV3Pool }
func (fakeLending) Deposit(asset common.Address, amount *big.Int) action.Action {
	return action.MustNew("AaveV3Deposit", action.Args("address", "uint256"), 1, asset, amount)
}
func (fakeLending) Borrow(asset common.Address, amount *big.Int) action.Action {
	return action.MustNew("AaveV3Borrow", action.Args("address", "uint256"), 1, asset, amount)
}
func (fakeLending) Withdraw(asset common.Address, amount *big.Int) action.Action {
	return action.MustNew("AaveV3Withdraw", action.Args("address", "uint256"), 1, asset, amount)
}
func (fakeLending) Payback(asset common.Address, amount *big.Int, all bool) action.Action {
	return action.MustNew("AaveV3Payback", action.Args("address", "uint256", "bool"), 1, asset, amount, all)
}

func TestDepositBorrow_OptionalLegsKeepIndices(t *testing.T) {
	name := operations.Name(core.ProtocolAaveV3, operations.IntentDepositBorrow)
	base := operations.DepositBorrowArgs{
		Proxy:      core.Proxy{Address: common.HexToAddress("0x01"), Owner: common.HexToAddress("0x02")},
		Collateral: mock.WETH,
		Debt:       mock.USDC,
	}

	depositOnly := base
	depositOnly.Deposit = big.NewInt(1e18)
	borrowOnly := base
	borrowOnly.Borrow = big.NewInt(1000e6)

	a, err := operations.DepositBorrow(name, fakeLending{}, depositOnly, mock.WETH.Address, mock.USDC.Address)
	require.NoError(t, err)
	b, err := operations.DepositBorrow(name, fakeLending{}, borrowOnly, mock.WETH.Address, mock.USDC.Address)
	require.NoError(t, err)

	require.Equal(t, a.Names(), b.Names())
	borrowIdx := a.Find("AaveV3Borrow")
	require.Equal(t, borrowIdx, b.Find("AaveV3Borrow"))
	assert.False(t, a.Slots[borrowIdx].IsIncluded())
	assert.True(t, b.Slots[borrowIdx].IsIncluded())

	depositIdx := a.Find("AaveV3Deposit")
	assert.True(t, a.Slots[depositIdx].IsIncluded())
	assert.False(t, b.Slots[depositIdx].IsIncluded())
}

func TestDepositBorrow_NativeCollateralWraps(t *testing.T) {
	args := operations.DepositBorrowArgs{
		Proxy:      core.Proxy{Address: common.HexToAddress("0x01"), Owner: common.HexToAddress("0x02")},
		Collateral: mock.ETH,
		Debt:       mock.USDC,
		Deposit:    big.NewInt(1e18),
	}
	op, err := operations.DepositBorrow(operations.Name(core.ProtocolAaveV3, operations.IntentDepositBorrow),
		fakeLending{}, args, mock.WETH.Address, mock.USDC.Address)
	require.NoError(t, err)

	assert.False(t, op.Slots[op.Find(action.PullToken)].IsIncluded())
	assert.True(t, op.Slots[op.Find(action.WrapEth)].IsIncluded())
}

func TestPaybackWithdraw_WithdrawAllUsesMax(t *testing.T) {
	var gotAmount *big.Int
	l := recordingLending{onWithdraw: func(a *big.Int) { gotAmount = a }}
	args := operations.PaybackWithdrawArgs{
		Proxy:       core.Proxy{Address: common.HexToAddress("0x01"), Owner: common.HexToAddress("0x02")},
		Collateral:  mock.WETH,
		Debt:        mock.USDC,
		WithdrawAll: true,
	}
	op, err := operations.PaybackWithdraw(operations.Name(core.ProtocolAaveV3, operations.IntentPaybackWithdraw),
		l, args, mock.WETH.Address, mock.USDC.Address)
	require.NoError(t, err)

	assert.Equal(t, 0, action.MaxUint256.Cmp(gotAmount))
	assert.True(t, op.Slots[op.Find("AaveV3Withdraw")].IsIncluded())
	assert.False(t, op.Slots[op.Find("AaveV3Payback")].IsIncluded())
}

type recordingLending struct {
	fakeLending
	onWithdraw func(*big.Int)
}

func (r recordingLending) Withdraw(asset common.Address, amount *big.Int) action.Action {
	r.onWithdraw(amount)
	return r.fakeLending.Withdraw(asset, amount)
}

func TestRepayAmount(t *testing.T) {
	fl := operations.FlashloanArgs{Provider: action.ProviderAaveV3, Token: mock.USDC, Amount: big.NewInt(10_000)}
	assert.Equal(t, "10005", operations.RepayAmount(fl).String())

	fl.Provider = action.ProviderBalancer
	assert.Equal(t, "10000", operations.RepayAmount(fl).String())
}

func TestAddresses_NativeMapsToWETH(t *testing.T) {
	addrs := operations.NewAddresses(mock.NewMockAddressRegistry())
	got, err := addrs.ERC20(mock.ETH)
	require.NoError(t, err)
	assert.Equal(t, mock.WETH.Address, got)

	reg := mock.NewMockAddressRegistry()
	reg.Remove(operations.WETH)
	_, err = operations.NewAddresses(reg).ERC20(mock.ETH)
	assert.ErrorIs(t, err, apperrors.ErrMissingAddress)
}
