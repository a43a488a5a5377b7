package cli

import (
	"context"
	"fmt"

	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/strategy"
	input "leverage_builder/pkg/cli"

	"github.com/spf13/cobra"
)

type buildFunc func(ctx context.Context, app *App, pos strategy.Position) (*strategy.Result, error)

// execute wires the app, resolves the position, runs build and prints the report. A
// simulation with validation errors is printed and then reported through the exit code.
func execute(cmd *cobra.Command, opts *RootOptions, pf *PositionFlags, build buildFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := opts.newApp(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "startup failed", err)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			app.Logger.Warn("Shutdown failed", "error", err)
		}
	}()

	pos, err := pf.Resolve(app.Registry)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid position", err)
	}

	res, err := build(ctx, app, pos)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", cmd.Name()), err)
	}

	report := NewReport(res)
	if err := report.Write(cmd.OutOrStdout(), opts.Format, !opts.NoColor); err != nil {
		return WrapExitError(ExitCommandError, "write report", err)
	}
	if res.Simulation.Validation.HasErrors() {
		return NewExitError(ExitFailure, fmt.Sprintf("simulation has %d validation error(s)", len(res.Simulation.Validation.Errors)))
	}
	return nil
}

// OpenOptions holds flags for the open command.
type OpenOptions struct {
	*RootOptions
	Position          PositionFlags
	Swap              SwapFlags
	DepositCollateral string
	DepositDebt       string
	Multiple          string
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a multiply position",
		Long: `Open a multiply position: deposit, flashloan, swap debt into collateral and borrow
back the flashloan.

Example:
  leverage open --protocol AaveV3 --collateral WETH --debt USDC --proxy 0x... \
    --deposit-collateral 1 --multiple 2 --slippage 0.01`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts.RootOptions, &opts.Position, opts.build)
		},
	}

	opts.Position.bind(cmd)
	opts.Swap.bind(cmd)
	cmd.Flags().StringVar(&opts.DepositCollateral, "deposit-collateral", "", "collateral to deposit, whole tokens")
	cmd.Flags().StringVar(&opts.DepositDebt, "deposit-debt", "", "debt token to deposit and swap, whole tokens")
	cmd.Flags().StringVar(&opts.Multiple, "multiple", "", "target multiple, e.g. 2 for 2x")
	_ = cmd.MarkFlagRequired("multiple")

	return cmd
}

func (o *OpenOptions) build(ctx context.Context, app *App, pos strategy.Position) (*strategy.Result, error) {
	depositColl, err := input.ParseAmount(pos.Collateral, o.DepositCollateral)
	if err != nil {
		return nil, err
	}
	depositDebt, err := input.ParseAmount(pos.Debt, o.DepositDebt)
	if err != nil {
		return nil, err
	}
	multiple, err := input.ParseDecimal(o.Multiple)
	if err != nil {
		return nil, fmt.Errorf("multiple: %w", err)
	}
	slippage, fee, err := o.Swap.Resolve(app.DefaultSlippage())
	if err != nil {
		return nil, err
	}
	return app.Builder.Open(ctx, strategy.OpenRequest{
		Position:          pos,
		DepositCollateral: depositColl,
		DepositDebt:       depositDebt,
		Multiple:          multiple,
		Slippage:          slippage,
		FeeBps:            fee,
		PositionType:      operations.PositionTypeMultiply,
	})
}

// AdjustOptions holds flags for the adjust command.
type AdjustOptions struct {
	*RootOptions
	Position     PositionFlags
	Swap         SwapFlags
	TargetLTV    string
	ReturnNative bool
}

// NewAdjustCommand creates the adjust command.
func NewAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdjustOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Move a position to a target loan to value",
		Long: `Move a position to a target loan to value. A higher target borrows and buys
collateral, a lower one sells collateral and repays debt.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts.RootOptions, &opts.Position, opts.build)
		},
	}

	opts.Position.bind(cmd)
	opts.Swap.bind(cmd)
	cmd.Flags().StringVar(&opts.TargetLTV, "target-ltv", "", "target loan to value as a fraction")
	cmd.Flags().BoolVar(&opts.ReturnNative, "return-native", false, "unwrap WETH returned to the owner")
	_ = cmd.MarkFlagRequired("target-ltv")

	return cmd
}

func (o *AdjustOptions) build(ctx context.Context, app *App, pos strategy.Position) (*strategy.Result, error) {
	target, err := input.ParsePercentage(o.TargetLTV)
	if err != nil {
		return nil, fmt.Errorf("target ltv: %w", err)
	}
	slippage, fee, err := o.Swap.Resolve(app.DefaultSlippage())
	if err != nil {
		return nil, err
	}
	return app.Builder.Adjust(ctx, strategy.AdjustRequest{
		Position:     pos,
		TargetLTV:    target,
		Slippage:     slippage,
		FeeBps:       fee,
		ReturnNative: o.ReturnNative,
	})
}

// CloseOptions holds flags for the close command.
type CloseOptions struct {
	*RootOptions
	Position     PositionFlags
	Swap         SwapFlags
	To           string
	ReturnNative bool
}

// NewCloseCommand creates the close command.
func NewCloseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CloseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a position",
		Long: `Close a position. --to collateral sells just enough collateral to repay the debt,
--to debt sells all of it.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts.RootOptions, &opts.Position, opts.build)
		},
	}

	opts.Position.bind(cmd)
	opts.Swap.bind(cmd)
	cmd.Flags().StringVar(&opts.To, "to", "collateral", "token the owner receives (collateral|debt)")
	cmd.Flags().BoolVar(&opts.ReturnNative, "return-native", false, "unwrap WETH returned to the owner")

	return cmd
}

func (o *CloseOptions) build(ctx context.Context, app *App, pos strategy.Position) (*strategy.Result, error) {
	var toCollateral bool
	switch o.To {
	case "collateral":
		toCollateral = true
	case "debt":
	default:
		return nil, fmt.Errorf("%w: --to %q must be collateral or debt", input.ErrInvalidInput, o.To)
	}
	slippage, fee, err := o.Swap.Resolve(app.DefaultSlippage())
	if err != nil {
		return nil, err
	}
	return app.Builder.Close(ctx, strategy.CloseRequest{
		Position:     pos,
		ToCollateral: toCollateral,
		Slippage:     slippage,
		FeeBps:       fee,
		ReturnNative: o.ReturnNative,
	})
}

// DepositBorrowOptions holds flags for the deposit-borrow command.
type DepositBorrowOptions struct {
	*RootOptions
	Position     PositionFlags
	Deposit      string
	Borrow       string
	ReturnNative bool
}

// NewDepositBorrowCommand creates the deposit-borrow command.
func NewDepositBorrowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DepositBorrowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:          "deposit-borrow",
		Short:        "Deposit collateral and/or borrow debt without a swap",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts.RootOptions, &opts.Position, opts.build)
		},
	}

	opts.Position.bind(cmd)
	cmd.Flags().StringVar(&opts.Deposit, "deposit", "", "collateral to deposit, whole tokens")
	cmd.Flags().StringVar(&opts.Borrow, "borrow", "", "debt to borrow, whole tokens")
	cmd.Flags().BoolVar(&opts.ReturnNative, "return-native", false, "unwrap borrowed WETH")

	return cmd
}

func (o *DepositBorrowOptions) build(ctx context.Context, app *App, pos strategy.Position) (*strategy.Result, error) {
	deposit, err := input.ParseAmount(pos.Collateral, o.Deposit)
	if err != nil {
		return nil, err
	}
	borrow, err := input.ParseAmount(pos.Debt, o.Borrow)
	if err != nil {
		return nil, err
	}
	return app.Builder.DepositBorrow(ctx, strategy.DepositBorrowRequest{
		Position:     pos,
		Deposit:      deposit,
		Borrow:       borrow,
		ReturnNative: o.ReturnNative,
	})
}

// PaybackWithdrawOptions holds flags for the payback-withdraw command.
type PaybackWithdrawOptions struct {
	*RootOptions
	Position      PositionFlags
	Payback       string
	Withdraw      string
	PaybackAll    bool
	WithdrawAll   bool
	WalletBalance string
	ReturnNative  bool
}

// NewPaybackWithdrawCommand creates the payback-withdraw command.
func NewPaybackWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PaybackWithdrawOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:          "payback-withdraw",
		Short:        "Repay debt and/or withdraw collateral without a swap",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts.RootOptions, &opts.Position, opts.build)
		},
	}

	opts.Position.bind(cmd)
	cmd.Flags().StringVar(&opts.Payback, "payback", "", "debt to repay, whole tokens")
	cmd.Flags().StringVar(&opts.Withdraw, "withdraw", "", "collateral to withdraw, whole tokens")
	cmd.Flags().BoolVar(&opts.PaybackAll, "payback-all", false, "repay the whole debt")
	cmd.Flags().BoolVar(&opts.WithdrawAll, "withdraw-all", false, "withdraw all collateral")
	cmd.Flags().StringVar(&opts.WalletBalance, "wallet-balance", "", "owner's debt token balance, checked against the payback")
	cmd.Flags().BoolVar(&opts.ReturnNative, "return-native", false, "unwrap withdrawn WETH")
	cmd.MarkFlagsMutuallyExclusive("payback", "payback-all")
	cmd.MarkFlagsMutuallyExclusive("withdraw", "withdraw-all")

	return cmd
}

func (o *PaybackWithdrawOptions) build(ctx context.Context, app *App, pos strategy.Position) (*strategy.Result, error) {
	payback, err := input.ParseAmount(pos.Debt, o.Payback)
	if err != nil {
		return nil, err
	}
	withdraw, err := input.ParseAmount(pos.Collateral, o.Withdraw)
	if err != nil {
		return nil, err
	}
	var balance *core.Amount
	if o.WalletBalance != "" {
		b, err := input.ParseAmount(pos.Debt, o.WalletBalance)
		if err != nil {
			return nil, err
		}
		balance = &b
	}
	return app.Builder.PaybackWithdraw(ctx, strategy.PaybackWithdrawRequest{
		Position:      pos,
		Payback:       payback,
		Withdraw:      withdraw,
		PaybackAll:    o.PaybackAll,
		WithdrawAll:   o.WithdrawAll,
		WalletBalance: balance,
		ReturnNative:  o.ReturnNative,
	})
}
