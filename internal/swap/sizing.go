// Package swap sizes the swap leg of multiply, deleverage and close operations against a quote
// provider. All amounts are base units; rounding always favours the protocol.
package swap

import (
	"context"
	"fmt"

	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	apperrors "leverage_builder/pkg/errors"

	"github.com/shopspring/decimal"
)

// DefaultSafetyMargin is the headroom added over outstanding debt when closing to collateral
var DefaultSafetyMargin = decimal.RequireFromString("0.001")

// Request sizes a swap of Amount (before fees) from From to To
type Request struct {
	From     core.Token
	To       core.Token
	Amount   core.Amount
	Slippage core.Percentage
	// FeeBps overrides the sizer default when set
	FeeBps *int64
}

// Sizing is a quoted, fee-adjusted swap
type Sizing struct {
	From             core.Token
	To               core.Token
	FeeBps           int64
	CollectFeeFrom   Side
	Slippage         core.Percentage
	AmountBeforeFees core.Amount
	SourceFee        core.Amount
	// Amount is what the aggregator swaps, source fee excluded
	Amount         core.Amount
	Quote          *core.SwapData
	MinToAmount    core.Amount
	TargetFee      core.Amount
	ReceiveAtLeast core.Amount
}

// SwapArgs converts the sizing into assembler arguments
func (s *Sizing) SwapArgs() operations.SwapArgs {
	args := operations.SwapArgs{
		Amount:                core.BigInt(s.AmountBeforeFees),
		ReceiveAtLeast:        core.BigInt(s.ReceiveAtLeast),
		FeeBps:                s.FeeBps,
		CollectFeeInFromToken: s.CollectFeeFrom == SourceSide,
	}
	if s.Quote != nil {
		args.Calldata = s.Quote.ExchangeCalldata
	}
	return args
}

// Sizer sizes swaps against a quote provider
type Sizer struct {
	provider     core.ISwapDataProvider
	feeBps       int64
	safetyMargin decimal.Decimal
	logger       core.ILogger
}

// NewSizer creates a sizer; feeBps and safetyMargin are the defaults for every request
func NewSizer(provider core.ISwapDataProvider, feeBps int64, safetyMargin decimal.Decimal, logger core.ILogger) *Sizer {
	return &Sizer{
		provider:     provider,
		feeBps:       feeBps,
		safetyMargin: safetyMargin,
		logger:       logger.WithField("component", "swap_sizer"),
	}
}

func (s *Sizer) fee(override *int64) int64 {
	if override != nil {
		return *override
	}
	return s.feeBps
}

// Size quotes the swap and applies fee policy and slippage. A zero amount after fees
// yields a zero sizing without a quote.
func (s *Sizer) Size(ctx context.Context, req Request) (*Sizing, error) {
	bps := s.fee(req.FeeBps)
	side := FeeSide(req.From, req.To)

	out := &Sizing{
		From:             req.From,
		To:               req.To,
		FeeBps:           bps,
		CollectFeeFrom:   side,
		Slippage:         req.Slippage,
		AmountBeforeFees: req.Amount.Floor(),
		Amount:           req.Amount.Floor(),
		SourceFee:        decimal.Zero,
		MinToAmount:      decimal.Zero,
		TargetFee:        decimal.Zero,
		ReceiveAtLeast:   decimal.Zero,
	}
	if side == SourceSide {
		out.SourceFee, out.Amount = SourceFee(out.AmountBeforeFees, bps)
	}
	if !out.Amount.IsPositive() {
		out.Amount = decimal.Zero
		return out, nil
	}

	quote, err := s.provider.GetSwapData(ctx, req.From, req.To, out.Amount, req.Slippage)
	if err != nil {
		return nil, fmt.Errorf("%w: %s -> %s: %v", apperrors.ErrQuoteFailed, req.From.Symbol, req.To.Symbol, err)
	}
	out.Quote = quote

	minTo := quote.MinToTokenAmount
	if minTo.IsZero() {
		minTo = quote.ToTokenAmount.Mul(decimal.NewFromInt(1).Sub(req.Slippage)).Floor()
	}
	out.MinToAmount = minTo
	out.ReceiveAtLeast = minTo
	if side == TargetSide {
		out.ReceiveAtLeast = ApplyTargetFee(minTo, bps)
		out.TargetFee = minTo.Sub(out.ReceiveAtLeast)
	}

	s.logger.Debug("Swap sized",
		"from", req.From.Symbol,
		"to", req.To.Symbol,
		"amount", out.Amount.String(),
		"receive_at_least", out.ReceiveAtLeast.String(),
		"fee_side", side.String())
	return out, nil
}
