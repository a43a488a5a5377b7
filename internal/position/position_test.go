package position

import (
	"testing"

	"leverage_builder/internal/core"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	weth = core.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Precision: 18}
	usdc = core.Token{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Precision: 6}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func aaveMarket() LendingMarket {
	return LendingMarket{
		Label:     "AaveV3 WETH/USDC",
		MaxLTV:    d("0.8"),
		LiqThresh: d("0.825"),
		Dust:      decimal.Zero,
		Liquidity: d("1000000000000"),
	}
}

// 10 ETH at 2000, 8000 USDC debt: LTV 0.4
func testPosition() Position {
	return New(
		TokenAmount{Token: weth, Amount: d("10e18")},
		TokenAmount{Token: usdc, Amount: d("8000e6")},
		d("2000"), d("1"), aaveMarket(),
	)
}

func TestPosition_RoundTrip(t *testing.T) {
	p := testPosition()

	assert.Equal(t, p, p.Deposit(d("3e18")).Withdraw(d("3e18")))
	assert.Equal(t, p, p.Borrow(d("500e6")).Payback(d("500e6")))
	assert.Equal(t, p, p.Withdraw(d("1e18")).Deposit(d("1e18")))
}

func TestPosition_TransitionsDoNotMutate(t *testing.T) {
	p := testPosition()
	_ = p.Borrow(d("1000e6"))
	assert.True(t, p.Debt.Amount.Equal(d("8000e6")))
}

func TestPosition_AmountsNeverNegative(t *testing.T) {
	p := testPosition().Withdraw(d("11e18")).Payback(d("9000e6"))
	assert.True(t, p.Collateral.Amount.IsZero())
	assert.True(t, p.Debt.Amount.IsZero())
}

func TestPosition_RiskRatio(t *testing.T) {
	r := testPosition().RiskRatio()
	assert.True(t, r.LoanToValue.Equal(d("0.4")), r.LoanToValue.String())
	assert.True(t, r.CollateralizationRatio.Equal(d("2.5")))
	assert.Equal(t, "1.6667", r.Multiple.StringFixed(4))

	empty := New(TokenAmount{Token: weth}, TokenAmount{Token: usdc}, d("2000"), d("1"), aaveMarket())
	assert.True(t, empty.RiskRatio().LoanToValue.IsZero())
	assert.True(t, empty.RiskRatio().Multiple.Equal(d("1")))
}

func TestPosition_Availability(t *testing.T) {
	p := testPosition()
	// 20000 * 0.8 - 8000
	assert.True(t, p.DebtAvailable().Equal(d("8000e6")), p.DebtAvailable().String())
	// 10 - 8000/0.8/2000
	assert.True(t, p.CollateralAvailable().Equal(d("5e18")), p.CollateralAvailable().String())

	over := p.Borrow(d("10000e6"))
	assert.True(t, over.DebtAvailable().IsZero())
	assert.True(t, over.CollateralAvailable().IsZero())
}

func TestPosition_LiquidationPrice(t *testing.T) {
	// 8000 / (10 * 0.825)
	assert.Equal(t, "969.70", testPosition().LiquidationPrice().StringFixed(2))
}

func TestPosition_TargetLTV(t *testing.T) {
	p := testPosition()
	k := d("0.98")

	add := p.BorrowForTargetLTV(d("0.6"), k)
	projected := p.Borrow(add).Deposit(weth.ToBaseUnits(usdc.FromBaseUnits(add).Mul(k).Div(d("2000"))))
	assert.Equal(t, "0.600", projected.RiskRatio().LoanToValue.StringFixed(3))

	x := p.WithdrawForTargetLTV(d("0.2"), k)
	down := p.Withdraw(x).Payback(usdc.ToBaseUnits(weth.FromBaseUnits(x).Mul(d("2000")).Mul(k)))
	assert.Equal(t, "0.200", down.RiskRatio().LoanToValue.StringFixed(3))

	assert.True(t, p.BorrowForTargetLTV(d("0.3"), k).IsZero())
	assert.True(t, p.WithdrawForTargetLTV(d("0.5"), k).IsZero())
}

func TestAjnaMarket_MaxLTVFromLUP(t *testing.T) {
	m := AjnaMarket{Bands: PriceBands{HTP: d("1200"), LUP: d("1600"), MOMP: d("1800")}, MarketPrice: d("2000")}
	assert.True(t, m.MaxLoanToValue().Equal(d("0.8")))
	assert.True(t, m.LiquidationThreshold().Equal(d("0.8")))

	m.MarketPrice = decimal.Zero
	assert.True(t, m.MaxLoanToValue().IsZero())
}
