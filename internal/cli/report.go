package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"leverage_builder/internal/operations"
	"leverage_builder/internal/position"
	"leverage_builder/internal/strategy"
	"leverage_builder/internal/validation"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // strategy error or a simulation with validation errors
	ExitCommandError = 2 // bad flags, config or startup failure
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error, ExitFailure when it carries none.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// PositionView is a position in whole tokens
type PositionView struct {
	Collateral       string `json:"collateral"`
	Debt             string `json:"debt"`
	LoanToValue      string `json:"ltv"`
	MaxLoanToValue   string `json:"max_ltv"`
	Multiple         string `json:"multiple"`
	LiquidationPrice string `json:"liquidation_price"`
}

// SwapView is the sized swap leg
type SwapView struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Amount         string `json:"amount"`
	FeeBps         int64  `json:"fee_bps"`
	FeeToken       string `json:"fee_token"`
	ReceiveAtLeast string `json:"receive_at_least"`
	Slippage       string `json:"slippage"`
}

// CloseView holds the two-pass close figures
type CloseView struct {
	Estimate    string `json:"oracle_estimate"`
	MarketPrice string `json:"market_price"`
	Repay       string `json:"repay"`
}

// FlashloanView is the flashloan wrapping the operation
type FlashloanView struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
}

// TxView is the unsigned executor call
type TxView struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

// Report is the printable form of a strategy result
type Report struct {
	ID        string               `json:"id"`
	Operation string               `json:"operation"`
	Actions   []string             `json:"actions"`
	Current   PositionView         `json:"current"`
	Target    PositionView         `json:"target"`
	Swap      *SwapView            `json:"swap,omitempty"`
	Close     *CloseView           `json:"close,omitempty"`
	Flashloan *FlashloanView       `json:"flashloan,omitempty"`
	Errors    []validation.Finding `json:"errors"`
	Warnings  []validation.Finding `json:"warnings"`
	Tx        TxView               `json:"tx"`
}

// NewReport renders amounts in whole tokens
func NewReport(res *strategy.Result) Report {
	sim := res.Simulation
	r := Report{
		ID:        sim.ID,
		Operation: sim.Operation,
		Current:   positionView(sim.Position),
		Target:    positionView(sim.Target),
		Errors:    sim.Validation.Errors,
		Warnings:  sim.Validation.Warnings,
		Tx: TxView{
			To:    res.Tx.To.Hex(),
			Value: "0",
			Data:  hexutil.Encode(res.Tx.Data),
		},
	}
	if res.Tx.Value != nil {
		r.Tx.Value = res.Tx.Value.String()
	}
	if res.Operation != nil {
		r.Actions = res.Operation.Names()
	}
	if r.Errors == nil {
		r.Errors = []validation.Finding{}
	}
	if r.Warnings == nil {
		r.Warnings = []validation.Finding{}
	}

	if s := sim.Swap; s != nil {
		feeToken := s.To.Symbol
		if s.SourceFee.IsPositive() {
			feeToken = s.From.Symbol
		}
		r.Swap = &SwapView{
			From:           s.From.Symbol,
			To:             s.To.Symbol,
			Amount:         s.From.FromBaseUnits(s.AmountBeforeFees).String(),
			FeeBps:         s.FeeBps,
			FeeToken:       feeToken,
			ReceiveAtLeast: s.To.FromBaseUnits(s.ReceiveAtLeast).String(),
			Slippage:       s.Slippage.String(),
		}
	}
	if c := sim.Close; c != nil {
		r.Close = &CloseView{
			Estimate:    c.From.FromBaseUnits(c.Estimate).String(),
			MarketPrice: c.MarketPrice.StringFixed(6),
			Repay:       c.To.FromBaseUnits(c.Repay).String(),
		}
	}
	if f := sim.Flashloan; f != nil {
		r.Flashloan = &FlashloanView{
			Provider: f.Provider.String(),
			Token:    f.Token.Symbol,
			Amount:   f.Token.FromBaseUnits(decimal.NewFromBigInt(operations.OrZero(f.Amount), 0)).String(),
		}
	}
	return r
}

func positionView(p position.Position) PositionView {
	risk := p.RiskRatio()
	v := PositionView{
		Collateral:       fmt.Sprintf("%s %s", p.Collateral.Whole().String(), p.Collateral.Token.Symbol),
		Debt:             fmt.Sprintf("%s %s", p.Debt.Whole().String(), p.Debt.Token.Symbol),
		LoanToValue:      risk.LoanToValue.StringFixed(4),
		Multiple:         risk.Multiple.StringFixed(4),
		LiquidationPrice: p.LiquidationPrice().StringFixed(2),
		MaxLoanToValue:   "0",
	}
	if p.Market() != nil {
		v.MaxLoanToValue = p.Market().MaxLoanToValue().StringFixed(4)
	}
	return v
}

// Write prints the report as JSON or colored text
func (r Report) Write(w io.Writer, format string, useColor bool) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return r.writeText(w, useColor)
}

type palette struct {
	title, label, good, warn, bad *color.Color
}

func newPalette(useColor bool) palette {
	p := palette{
		title: color.New(color.FgCyan, color.Bold),
		label: color.New(color.Faint),
		good:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed, color.Bold),
	}
	if !useColor {
		for _, c := range []*color.Color{p.title, p.label, p.good, p.warn, p.bad} {
			c.DisableColor()
		}
	}
	return p
}

func (r Report) writeText(w io.Writer, useColor bool) error {
	p := newPalette(useColor)
	ew := &errWriter{w: w}

	p.title.Fprintf(ew, "%s", r.Operation)
	fmt.Fprintf(ew, "  (%s)\n", r.ID)
	fmt.Fprintf(ew, "  actions: %s\n\n", strings.Join(r.Actions, " > "))

	fmt.Fprintf(ew, "  %-18s %-28s %-28s\n", "", "current", "target")
	row := func(name, cur, tgt string) {
		p.label.Fprintf(ew, "  %-18s", name)
		fmt.Fprintf(ew, " %-28s %-28s\n", cur, tgt)
	}
	row("collateral", r.Current.Collateral, r.Target.Collateral)
	row("debt", r.Current.Debt, r.Target.Debt)
	row("ltv", r.Current.LoanToValue, r.Target.LoanToValue)
	row("max ltv", r.Current.MaxLoanToValue, r.Target.MaxLoanToValue)
	row("multiple", r.Current.Multiple, r.Target.Multiple)
	row("liquidation price", r.Current.LiquidationPrice, r.Target.LiquidationPrice)

	if s := r.Swap; s != nil {
		fmt.Fprintln(ew)
		p.title.Fprintln(ew, "swap")
		fmt.Fprintf(ew, "  %s %s -> at least %s %s\n", s.Amount, s.From, s.ReceiveAtLeast, s.To)
		fmt.Fprintf(ew, "  fee %d bps in %s, slippage %s\n", s.FeeBps, s.FeeToken, s.Slippage)
	}
	if c := r.Close; c != nil {
		fmt.Fprintf(ew, "  oracle estimate %s, market price %s, repays %s\n", c.Estimate, c.MarketPrice, c.Repay)
	}
	if f := r.Flashloan; f != nil {
		fmt.Fprintln(ew)
		p.title.Fprintln(ew, "flashloan")
		fmt.Fprintf(ew, "  %s %s from %s\n", f.Amount, f.Token, f.Provider)
	}

	fmt.Fprintln(ew)
	if len(r.Errors) == 0 && len(r.Warnings) == 0 {
		p.good.Fprintln(ew, "validation passed")
	}
	for _, f := range r.Errors {
		p.bad.Fprintf(ew, "error   %s", f.Kind)
		fmt.Fprintf(ew, " %s\n", details(f.Details))
	}
	for _, f := range r.Warnings {
		p.warn.Fprintf(ew, "warning %s", f.Kind)
		fmt.Fprintf(ew, " %s\n", details(f.Details))
	}

	fmt.Fprintln(ew)
	p.title.Fprintln(ew, "transaction")
	fmt.Fprintf(ew, "  to    %s\n  value %s\n  data  %s\n", r.Tx.To, r.Tx.Value, r.Tx.Data)
	return ew.err
}

func details(d map[string]string) string {
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + d[k]
	}
	return strings.Join(parts, " ")
}

// errWriter keeps the first write error so the report body stays linear
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(b []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(b)
	e.err = err
	return n, err
}
