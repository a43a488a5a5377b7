// Package strategy turns a desired position change into an executable operation and a
// pre-trade simulation. It reads the current position, sizes the swap, assembles the
// operation, projects the target position and validates it. Nothing is submitted.
package strategy

import (
	"context"
	"fmt"
	"math/big"

	"leverage_builder/internal/action"
	"leverage_builder/internal/chain"
	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/operations/aave"
	"leverage_builder/internal/operations/ajna"
	"leverage_builder/internal/operations/morphoblue"
	"leverage_builder/internal/position"
	"leverage_builder/internal/swap"
	"leverage_builder/internal/validation"
	apperrors "leverage_builder/pkg/errors"
	"leverage_builder/pkg/telemetry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutorName is the registry name of the contract executing operations
const ExecutorName = "OperationExecutor"

var one = decimal.NewFromInt(1)

// PositionReader reads the current position and its market
type PositionReader interface {
	ReadPosition(ctx context.Context, q chain.Query) (position.Position, error)
}

// Options are the defaults applied to every call
type Options struct {
	FeeBps            int64
	SafetyMargin      decimal.Decimal
	FlashloanProvider action.FlashloanProvider
}

// DefaultOptions returns 20 bps fee, 0.1% safety margin and Balancer flashloans
func DefaultOptions() Options {
	return Options{
		FeeBps:            swap.DefaultFeeBps,
		SafetyMargin:      swap.DefaultSafetyMargin,
		FlashloanProvider: action.ProviderBalancer,
	}
}

// Position identifies the position a request acts on
type Position struct {
	Protocol   core.Protocol
	Proxy      core.Proxy
	Collateral core.Token
	Debt       core.Token
	Market     operations.MarketRef
	// Optional quote currency prices, required for Ajna
	CollateralPrice decimal.Decimal
	DebtPrice       decimal.Decimal
}

func (p Position) query() chain.Query {
	return chain.Query{
		Protocol:        p.Protocol,
		Proxy:           p.Proxy.Address,
		Collateral:      p.Collateral,
		Debt:            p.Debt,
		Market:          p.Market,
		CollateralPrice: p.CollateralPrice,
		DebtPrice:       p.DebtPrice,
	}
}

// Simulation is the projected effect of an operation
type Simulation struct {
	ID        string
	Operation string
	Position  position.Position
	Target    position.Position
	Swap      *swap.Sizing
	// Close holds the two-pass figures of a close to collateral
	Close      *swap.CloseSizing
	Flashloan  *operations.FlashloanArgs
	Validation validation.Result
}

// Tx is the unsigned call to the executor
type Tx struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Result of a strategy call
type Result struct {
	Simulation Simulation
	Tx         Tx
	Operation  *action.Operation
}

// Builder runs strategies for every supported protocol
type Builder struct {
	reader     PositionReader
	sizer      *swap.Sizer
	assemblers map[core.Protocol]operations.Assembler
	addrs      operations.Addresses
	executor   common.Address
	opts       Options
	logger     core.ILogger
}

// NewBuilder wires assemblers for every protocol against reg
func NewBuilder(reg core.IAddressRegistry, reader PositionReader, quotes core.ISwapDataProvider, opts Options, logger core.ILogger) (*Builder, error) {
	executor, err := reg.Address(ExecutorName)
	if err != nil {
		return nil, fmt.Errorf("resolve executor: %w", err)
	}

	assemblers := map[core.Protocol]operations.Assembler{
		core.ProtocolAjna:       ajna.NewAssembler(reg),
		core.ProtocolMorphoBlue: morphoblue.NewAssembler(reg),
	}
	for _, v := range []core.Protocol{core.ProtocolAaveV2, core.ProtocolAaveV3} {
		a, err := aave.NewAssembler(v, reg)
		if err != nil {
			return nil, err
		}
		assemblers[v] = a
	}

	return &Builder{
		reader:     reader,
		sizer:      swap.NewSizer(quotes, opts.FeeBps, opts.SafetyMargin, logger),
		assemblers: assemblers,
		addrs:      operations.NewAddresses(reg),
		executor:   executor,
		opts:       opts,
		logger:     logger.WithField("component", "strategy"),
	}, nil
}

func (b *Builder) assembler(p core.Protocol) (operations.Assembler, error) {
	a, ok := b.assemblers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownProtocol, p)
	}
	return a, nil
}

func (b *Builder) read(ctx context.Context, p Position) (position.Position, error) {
	if _, err := b.assembler(p.Protocol); err != nil {
		return position.Position{}, err
	}
	pos, err := b.reader.ReadPosition(ctx, p.query())
	if err != nil {
		return position.Position{}, fmt.Errorf("read %s position: %w", p.Protocol, err)
	}
	return pos, nil
}

// swapTokens returns the collateral and debt tokens as the swap action trades them, with
// the native coin quoted as WETH
func (b *Builder) swapTokens(p Position) (collateral, debt core.Token, err error) {
	if collateral, err = b.addrs.ERC20Token(p.Collateral); err != nil {
		return core.Token{}, core.Token{}, err
	}
	if debt, err = b.addrs.ERC20Token(p.Debt); err != nil {
		return core.Token{}, core.Token{}, err
	}
	return collateral, debt, nil
}

func (b *Builder) feeBps(override *int64) int64 {
	if override != nil {
		return *override
	}
	return b.opts.FeeBps
}

// swapFactor is the share of value left after fee and slippage
func swapFactor(feeBps int64, slippage core.Percentage) decimal.Decimal {
	fee := decimal.NewFromInt(feeBps).Div(decimal.NewFromInt(10000))
	return one.Sub(fee).Mul(one.Sub(slippage))
}

// usesCollateralFlashloan reports whether the protocol deposits the flashloaned token as
// temporary collateral instead of borrowing to repay it
func usesCollateralFlashloan(p core.Protocol) bool {
	return p == core.ProtocolAaveV2 || p == core.ProtocolAaveV3
}

// collateralFlashloan sizes a debt token flashloan that, deposited as collateral, backs value
// (debt base units) at the market's max LTV
func collateralFlashloan(value core.Amount, ltv decimal.Decimal) core.Amount {
	if !ltv.IsPositive() {
		return value.Ceil()
	}
	return value.Div(ltv).Ceil()
}

func maxLTV(p position.Position) decimal.Decimal {
	if p.Market() == nil {
		return decimal.Zero
	}
	return p.Market().MaxLoanToValue()
}

// withAjnaPrice fills a missing Ajna price hint with the pool LUP
func withAjnaPrice(p Position, current position.Position) operations.MarketRef {
	m := p.Market
	if p.Protocol != core.ProtocolAjna || (m.Price != nil && m.Price.Sign() > 0) {
		return m
	}
	if banded, ok := current.Market().(position.BandedMarket); ok {
		m.Price = core.BigInt(banded.PriceBands().LUP.Shift(18))
	}
	return m
}

// ajnaChecks validates the price hint against the pool bands
func ajnaChecks(p Position, market operations.MarketRef, current position.Position) validation.Result {
	banded, ok := current.Market().(position.BandedMarket)
	if p.Protocol != core.ProtocolAjna || !ok || market.Price == nil {
		return validation.Result{}
	}
	return validation.AjnaPrice(decimal.NewFromBigInt(market.Price, -18), banded.PriceBands())
}

// nativeValue is the native coin the owner attaches for the given deposits
func nativeValue(collateral, debt core.Token, depositColl, depositDebt core.Amount) *big.Int {
	v := new(big.Int)
	if collateral.IsNative() {
		v.Add(v, core.BigInt(depositColl))
	}
	if debt.IsNative() {
		v.Add(v, core.BigInt(depositDebt))
	}
	return v
}

type outcome struct {
	intent    operations.Intent
	pos       Position
	op        *action.Operation
	current   position.Position
	target    position.Position
	sizing    *swap.Sizing
	close     *swap.CloseSizing
	flashloan *operations.FlashloanArgs
	findings  validation.Result
	value     *big.Int
}

// finish encodes the executor call, records metrics and logs the simulation
func (b *Builder) finish(ctx context.Context, o outcome) (*Result, error) {
	data, err := action.ExecutorCalldata(o.op)
	if err != nil {
		return nil, b.fail(ctx, o.pos.Protocol, o.intent, fmt.Errorf("encode %s: %w", o.op.Name, err))
	}
	if o.value == nil {
		o.value = new(big.Int)
	}

	sim := Simulation{
		ID:         uuid.NewString(),
		Operation:  o.op.Name,
		Position:   o.current,
		Target:     o.target,
		Swap:       o.sizing,
		Close:      o.close,
		Flashloan:  o.flashloan,
		Validation: o.findings,
	}

	m := telemetry.GetGlobalMetrics()
	m.RecordBuild(ctx, string(o.pos.Protocol), string(o.intent), len(o.op.Slots))
	for _, f := range o.findings.Errors {
		m.RecordFinding(ctx, string(f.Kind), "error")
	}
	for _, f := range o.findings.Warnings {
		m.RecordFinding(ctx, string(f.Kind), "warning")
	}

	b.logger.Info("Operation built",
		"simulation_id", sim.ID,
		"operation", sim.Operation,
		"actions", len(o.op.Slots),
		"ltv", o.current.RiskRatio().LoanToValue.StringFixed(4),
		"target_ltv", o.target.RiskRatio().LoanToValue.StringFixed(4),
		"errors", len(o.findings.Errors),
		"warnings", len(o.findings.Warnings))

	return &Result{
		Simulation: sim,
		Tx:         Tx{To: b.executor, Data: data, Value: o.value},
		Operation:  o.op,
	}, nil
}

func (b *Builder) fail(ctx context.Context, p core.Protocol, intent operations.Intent, err error) error {
	telemetry.GetGlobalMetrics().RecordFailure(ctx, string(p), string(intent))
	b.logger.Warn("Strategy failed", "protocol", p, "intent", intent, "error", err)
	return err
}
