package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"leverage_builder/internal/core"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// QuoteCall records one GetSwapData request
type QuoteCall struct {
	From        string
	To          string
	FromAddress common.Address
	ToAddress   common.Address
	Amount      core.Amount
	Slippage    core.Percentage
}

// MockSwapDataProvider quotes at fixed USD prices per symbol
type MockSwapDataProvider struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  []QuoteCall
	err    error
}

func NewMockSwapDataProvider() *MockSwapDataProvider {
	return &MockSwapDataProvider{prices: make(map[string]decimal.Decimal)}
}

// SetPrice sets the market price of symbol in USD
func (m *MockSwapDataProvider) SetPrice(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[strings.ToUpper(symbol)] = price
}

// SetError makes every following quote fail
func (m *MockSwapDataProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the recorded requests
func (m *MockSwapDataProvider) Calls() []QuoteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QuoteCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockSwapDataProvider) price(t core.Token) (decimal.Decimal, bool) {
	sym := strings.ToUpper(t.Symbol)
	if p, ok := m.prices[sym]; ok {
		return p, true
	}
	// wrapped and native share a price
	if sym == "ETH" {
		p, ok := m.prices["WETH"]
		return p, ok
	}
	if sym == "WETH" {
		p, ok := m.prices["ETH"]
		return p, ok
	}
	return decimal.Zero, false
}

func (m *MockSwapDataProvider) GetSwapData(ctx context.Context, from, to core.Token, amount core.Amount, slippage core.Percentage) (*core.SwapData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, QuoteCall{
		From:        from.Symbol,
		To:          to.Symbol,
		FromAddress: from.Address,
		ToAddress:   to.Address,
		Amount:      amount,
		Slippage:    slippage,
	})
	if m.err != nil {
		return nil, m.err
	}
	pf, ok := m.price(from)
	if !ok {
		return nil, fmt.Errorf("no price for %s", from.Symbol)
	}
	pt, ok := m.price(to)
	if !ok || pt.IsZero() {
		return nil, fmt.Errorf("no price for %s", to.Symbol)
	}

	whole := from.FromBaseUnits(amount).Mul(pf).Div(pt)
	toAmount := to.ToBaseUnits(whole)
	return &core.SwapData{
		FromToken:        from,
		ToToken:          to,
		FromTokenAmount:  amount,
		ToTokenAmount:    toAmount,
		MinToTokenAmount: toAmount.Mul(decimal.NewFromInt(1).Sub(slippage)).Floor(),
		ExchangeCalldata: []byte("mock-swap:" + from.Symbol + ":" + to.Symbol),
	}, nil
}
