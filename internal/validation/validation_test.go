package validation

import (
	"testing"

	"leverage_builder/internal/mock"
	"leverage_builder/internal/position"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func market(liquidity string) position.LendingMarket {
	return position.LendingMarket{
		Label:     "test",
		MaxLTV:    d("0.8"),
		LiqThresh: d("0.85"),
		Dust:      d("500e6"),
		Liquidity: d(liquidity),
	}
}

func pos(collateral, debt string, m position.Market) position.Position {
	return position.New(
		position.TokenAmount{Token: mock.WETH, Amount: d(collateral)},
		position.TokenAmount{Token: mock.USDC, Amount: d(debt)},
		d("2000"), d("1"), m,
	)
}

func TestBorrow_LiquidityBoundary(t *testing.T) {
	target := pos("1e18", "1000e6", market("1000e6"))

	// available == requested passes
	r := Borrow(target, d("1000e6"))
	assert.False(t, r.Has(NotEnoughLiquidity))

	// one base unit short fails
	r = Borrow(target, d("1000000001"))
	assert.True(t, r.Has(NotEnoughLiquidity))
}

func TestBorrow_LiquiditySuppressesUndercollateralized(t *testing.T) {
	// LTV 0.9 above max 0.8 and not enough liquidity
	target := pos("1e18", "1800e6", market("100e6"))
	r := Borrow(target, d("1800e6"))

	assert.True(t, r.Has(NotEnoughLiquidity))
	assert.False(t, r.Has(BorrowUndercollateralized))

	target = pos("1e18", "1800e6", market("1e12"))
	r = Borrow(target, d("1800e6"))
	assert.False(t, r.Has(NotEnoughLiquidity))
	assert.True(t, r.Has(BorrowUndercollateralized))
	assert.Equal(t, "0.9000", r.Errors[0].Details["loanToValue"])
}

func TestBorrow_CloseToMaxWarning(t *testing.T) {
	// LTV 0.78, within 0.03 of 0.8
	r := Borrow(pos("1e18", "1560e6", market("1e12")), d("1560e6"))
	assert.False(t, r.HasErrors())
	assert.True(t, r.Has(GenerateCloseToMaxLtv))

	// LTV 0.5 is far away
	r = Borrow(pos("1e18", "1000e6", market("1e12")), d("1000e6"))
	assert.Empty(t, r.Warnings)
}

func TestDust(t *testing.T) {
	assert.True(t, Dust(pos("1e18", "100e6", market("1e12"))).Has(DebtLessThanDustLimit))
	assert.False(t, Dust(pos("1e18", "0", market("1e12"))).Has(DebtLessThanDustLimit))
	assert.False(t, Dust(pos("1e18", "500e6", market("1e12"))).Has(DebtLessThanDustLimit))
}

func TestWithdraw(t *testing.T) {
	current := pos("1e18", "800e6", market("1e12"))
	// locked: 800 / 0.8 / 2000 = 0.5 ETH
	assert.False(t, Withdraw(current, d("5e17")).HasErrors())
	assert.True(t, Withdraw(current, d("500000000000000001")).Has(WithdrawMoreThanAvailable))
}

func TestAjnaPrice(t *testing.T) {
	bands := position.PriceBands{HTP: d("1200"), LUP: d("1600"), MOMP: d("1800")}

	r := AjnaPrice(d("1900"), bands)
	assert.True(t, r.Has(PriceAboveMomp))
	assert.True(t, r.HasErrors())

	r = AjnaPrice(d("1100"), bands)
	assert.False(t, r.HasErrors())
	assert.True(t, r.Has(PriceBelowHtp))

	r = AjnaPrice(d("1600"), bands)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.Warnings)
}

func TestPayback(t *testing.T) {
	assert.True(t, Payback(mock.USDC, d("100e6"), d("99e6")).Has(PaybackExceedsBalance))
	assert.False(t, Payback(mock.USDC, d("100e6"), d("100e6")).HasErrors())
}

func TestRepayment(t *testing.T) {
	r := Repayment(mock.USDC, d("1000999999"), d("1001000000"))
	assert.True(t, r.Has(SwapOutputBelowRepayment))
	assert.Equal(t, "1001", r.Errors[0].Details["required"])

	assert.False(t, Repayment(mock.USDC, d("1001000000"), d("1001000000")).HasErrors())
}
