package cli

import (
	"fmt"
	"math/big"

	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/strategy"
	input "leverage_builder/pkg/cli"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// PositionFlags identify the position a command acts on
type PositionFlags struct {
	Protocol   string
	Collateral string
	Debt       string
	Proxy      string
	Owner      string
	DPM        bool

	CollateralPrice string
	DebtPrice       string

	// Ajna
	Pool  string
	Price string

	// Morpho Blue
	MorphoOracle string
	MorphoIrm    string
	MorphoLltv   string

	// Aave v3
	EMode uint8
}

func (f *PositionFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.Protocol, "protocol", "", "lending protocol (AaveV2|AaveV3|Ajna|MorphoBlue)")
	fs.StringVar(&f.Collateral, "collateral", "", "collateral token symbol")
	fs.StringVar(&f.Debt, "debt", "", "debt token symbol")
	fs.StringVar(&f.Proxy, "proxy", "", "proxy account executing the operation")
	fs.StringVar(&f.Owner, "owner", "", "proxy owner receiving returned funds")
	fs.BoolVar(&f.DPM, "dpm", false, "proxy is a DPM account")
	fs.StringVar(&f.CollateralPrice, "collateral-price", "", "collateral price override in the quote currency")
	fs.StringVar(&f.DebtPrice, "debt-price", "", "debt price override in the quote currency")
	fs.StringVar(&f.Pool, "pool", "", "Ajna pool address")
	fs.StringVar(&f.Price, "price", "", "Ajna price hint per whole collateral, defaults to the pool LUP")
	fs.StringVar(&f.MorphoOracle, "morpho-oracle", "", "Morpho Blue market oracle")
	fs.StringVar(&f.MorphoIrm, "morpho-irm", "", "Morpho Blue market interest rate model")
	fs.StringVar(&f.MorphoLltv, "morpho-lltv", "", "Morpho Blue market LLTV as a fraction, e.g. 0.86")
	fs.Uint8Var(&f.EMode, "emode", 0, "Aave v3 e-mode category to enter")
	_ = cmd.MarkFlagRequired("protocol")
	_ = cmd.MarkFlagRequired("collateral")
	_ = cmd.MarkFlagRequired("debt")
	_ = cmd.MarkFlagRequired("proxy")
}

// Resolve turns the flags into a strategy position using the network's tokens
func (f *PositionFlags) Resolve(reg core.IAddressRegistry) (strategy.Position, error) {
	var p strategy.Position

	protocol, ok := core.ParseProtocol(f.Protocol)
	if !ok {
		return p, fmt.Errorf("%w: protocol %q", input.ErrInvalidInput, f.Protocol)
	}
	p.Protocol = protocol

	for _, s := range []struct {
		symbol string
		dst    *core.Token
	}{{f.Collateral, &p.Collateral}, {f.Debt, &p.Debt}} {
		if err := input.ValidateSymbol(s.symbol); err != nil {
			return p, err
		}
		t, err := reg.Token(s.symbol)
		if err != nil {
			return p, err
		}
		*s.dst = t
	}
	if p.Collateral.Address == p.Debt.Address {
		return p, fmt.Errorf("%w: collateral and debt are both %s", input.ErrInvalidInput, p.Debt.Symbol)
	}

	proxy, err := input.ParseAddress(f.Proxy)
	if err != nil {
		return p, err
	}
	owner, err := input.ParseAddress(f.Owner)
	if err != nil {
		return p, err
	}
	if owner == (common.Address{}) {
		owner = proxy
	}
	p.Proxy = core.Proxy{Address: proxy, Owner: owner, IsDPM: f.DPM}

	if p.CollateralPrice, err = input.ParseDecimal(f.CollateralPrice); err != nil {
		return p, fmt.Errorf("collateral price: %w", err)
	}
	if p.DebtPrice, err = input.ParseDecimal(f.DebtPrice); err != nil {
		return p, fmt.Errorf("debt price: %w", err)
	}

	p.Market, err = f.market(p)
	return p, err
}

func (f *PositionFlags) market(p strategy.Position) (operations.MarketRef, error) {
	var m operations.MarketRef
	var err error

	switch p.Protocol {
	case core.ProtocolAjna:
		if m.Pool, err = input.ParseAddress(f.Pool); err != nil {
			return m, err
		}
		price, err := input.ParseDecimal(f.Price)
		if err != nil {
			return m, fmt.Errorf("price: %w", err)
		}
		if price.IsPositive() {
			m.Price = wad(price)
		}
	case core.ProtocolMorphoBlue:
		m.Morpho.LoanToken = p.Debt.Address
		m.Morpho.CollateralToken = p.Collateral.Address
		if m.Morpho.Oracle, err = input.ParseAddress(f.MorphoOracle); err != nil {
			return m, err
		}
		if m.Morpho.Irm, err = input.ParseAddress(f.MorphoIrm); err != nil {
			return m, err
		}
		lltv, err := input.ParsePercentage(f.MorphoLltv)
		if err != nil {
			return m, fmt.Errorf("morpho lltv: %w", err)
		}
		m.Morpho.Lltv = wad(lltv)
	case core.ProtocolAaveV3:
		m.EModeCategory = f.EMode
	}
	return m, nil
}

func wad(d decimal.Decimal) *big.Int {
	return d.Shift(18).Floor().BigInt()
}

// SwapFlags are shared by every command that trades
type SwapFlags struct {
	Slippage string
	FeeBps   int64
}

func (f *SwapFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Slippage, "slippage", "", "max slippage as a fraction, defaults to strategy.slippage")
	cmd.Flags().Int64Var(&f.FeeBps, "fee-bps", -1, "swap fee in bps, defaults to strategy.fee_bps")
}

// Resolve returns the slippage and the fee override, nil when the default applies
func (f *SwapFlags) Resolve(fallback core.Percentage) (core.Percentage, *int64, error) {
	slippage := fallback
	if f.Slippage != "" {
		s, err := input.ParsePercentage(f.Slippage)
		if err != nil {
			return slippage, nil, fmt.Errorf("slippage: %w", err)
		}
		slippage = s
	}
	if f.FeeBps < 0 {
		return slippage, nil, nil
	}
	if f.FeeBps > 10000 {
		return slippage, nil, fmt.Errorf("%w: fee %d bps", input.ErrInvalidInput, f.FeeBps)
	}
	fee := f.FeeBps
	return slippage, &fee, nil
}
