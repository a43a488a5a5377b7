package position

import (
	"leverage_builder/internal/core"

	"github.com/shopspring/decimal"
)

// Market exposes the risk parameters of the market a position lives in
type Market interface {
	Name() string
	MaxLoanToValue() decimal.Decimal
	LiquidationThreshold() decimal.Decimal
	// DustLimit is the minimum non-zero debt, in debt base units
	DustLimit() core.Amount
	// AvailableLiquidity is the borrowable debt left in the market, in debt base units
	AvailableLiquidity() core.Amount
}

// PriceBands are Ajna pool reference prices, in debt token per whole collateral
type PriceBands struct {
	HTP  decimal.Decimal // highest threshold price
	LUP  decimal.Decimal // lowest utilized price
	MOMP decimal.Decimal // most optimistic matching price
}

// BandedMarket is a Market priced by deposit buckets
type BandedMarket interface {
	Market
	PriceBands() PriceBands
}

// LendingMarket is a pooled market with fixed risk parameters (Aave reserves, Morpho Blue markets)
type LendingMarket struct {
	Label     string
	MaxLTV    decimal.Decimal
	LiqThresh decimal.Decimal
	Dust      core.Amount
	Liquidity core.Amount
}

func (m LendingMarket) Name() string                          { return m.Label }
func (m LendingMarket) MaxLoanToValue() decimal.Decimal       { return m.MaxLTV }
func (m LendingMarket) LiquidationThreshold() decimal.Decimal { return m.LiqThresh }
func (m LendingMarket) DustLimit() core.Amount                { return m.Dust }
func (m LendingMarket) AvailableLiquidity() core.Amount       { return m.Liquidity }

// AjnaMarket derives its max loan to value from the pool's LUP. MarketPrice is the
// collateral price in debt token, so LUP/MarketPrice is the highest LTV a loan can take
// before it would be above the LUP.
type AjnaMarket struct {
	Pool        string
	Bands       PriceBands
	MarketPrice decimal.Decimal
	Dust        core.Amount
	Liquidity   core.Amount
}

func (m AjnaMarket) Name() string { return m.Pool }

func (m AjnaMarket) MaxLoanToValue() decimal.Decimal {
	if !m.MarketPrice.IsPositive() {
		return decimal.Zero
	}
	ltv := m.Bands.LUP.Div(m.MarketPrice)
	if ltv.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return ltv
}

// LiquidationThreshold equals max LTV: an Ajna loan is kickable once it crosses the LUP
func (m AjnaMarket) LiquidationThreshold() decimal.Decimal { return m.MaxLoanToValue() }
func (m AjnaMarket) DustLimit() core.Amount                { return m.Dust }
func (m AjnaMarket) AvailableLiquidity() core.Amount       { return m.Liquidity }
func (m AjnaMarket) PriceBands() PriceBands                { return m.Bands }
