package cli

import (
	"bytes"
	"context"
	"testing"

	"leverage_builder/internal/chain"
	"leverage_builder/internal/core"
	"leverage_builder/internal/health"
	"leverage_builder/internal/mock"
	"leverage_builder/internal/position"
	"leverage_builder/internal/strategy"
	"leverage_builder/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

const proxyHex = "0x1111111111111111111111111111111111111111"

type staticReader struct {
	pos     position.Position
	queries []chain.Query
}

func (r *staticReader) ReadPosition(_ context.Context, q chain.Query) (position.Position, error) {
	r.queries = append(r.queries, q)
	return r.pos, nil
}

var testMarket = position.LendingMarket{
	Label:     "test",
	MaxLTV:    d("0.8"),
	LiqThresh: d("0.83"),
	Liquidity: d("1e15"),
}

func wethUSDC(coll, debt string) position.Position {
	return position.New(
		position.TokenAmount{Token: mock.WETH, Amount: d(coll)},
		position.TokenAmount{Token: mock.USDC, Amount: d(debt)},
		d("2000"), d("1"), testMarket,
	)
}

func testApp(reader strategy.PositionReader) func(*RootOptions) (*App, error) {
	return func(*RootOptions) (*App, error) {
		quotes := mock.NewMockSwapDataProvider()
		quotes.SetPrice("WETH", d("2000"))
		quotes.SetPrice("USDC", d("1"))

		reg := mock.NewMockAddressRegistry()
		logger := logging.NewNopLogger()
		b, err := strategy.NewBuilder(reg, reader, quotes, strategy.DefaultOptions(), logger)
		if err != nil {
			return nil, err
		}
		hm := health.NewManager(nil)
		for _, p := range core.Protocols {
			hm.Register("registry/"+string(p), health.RegistryCheck(reg, chain.Contracts(p)...))
		}
		return &App{Registry: reg, Builder: b, Health: hm, Logger: logger}, nil
	}
}

func run(t *testing.T, reader strategy.PositionReader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(testApp(reader))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "leverage", cmd.Use)
	assert.Contains(t, cmd.Long, "Nothing is submitted")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"open", "adjust", "close", "deposit-borrow", "payback-withdraw"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
			for _, flag := range []string{"protocol", "collateral", "debt", "proxy", "owner", "pool", "morpho-lltv", "emode"} {
				assert.NotNil(t, sub.Flags().Lookup(flag), "flag %s", flag)
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	config := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "c", config.Shorthand)
}

func TestOpen_JSON(t *testing.T) {
	reader := &staticReader{pos: wethUSDC("0", "0")}
	out, err := run(t, reader, "open",
		"--protocol", "aavev3", "--collateral", "WETH", "--debt", "USDC", "--proxy", proxyHex,
		"--deposit-collateral", "1", "--multiple", "2", "--slippage", "0.01", "--format", "json")
	require.NoError(t, err)

	var r Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "AaveV3OpenPosition", r.Operation)
	assert.Equal(t, mock.Executor.Hex(), r.Tx.To)
	assert.Equal(t, "0", r.Tx.Value)
	assert.Contains(t, r.Tx.Data, "0x")
	require.NotNil(t, r.Flashloan)
	assert.Equal(t, "USDC", r.Flashloan.Token)
	require.NotNil(t, r.Swap)
	assert.Equal(t, "USDC", r.Swap.From)
	assert.Equal(t, "WETH", r.Swap.To)
	assert.InDelta(t, 0.5, d(r.Target.LoanToValue).InexactFloat64(), 0.02)
	assert.Empty(t, r.Errors)

	require.Len(t, reader.queries, 1)
	assert.Equal(t, core.ProtocolAaveV3, reader.queries[0].Protocol)
	assert.Equal(t, reader.queries[0].Proxy.Hex(), proxyHex)
}

func TestClose_Text(t *testing.T) {
	reader := &staticReader{pos: wethUSDC("1e18", "1000e6")}
	out, err := run(t, reader, "close",
		"--protocol", "AaveV2", "--collateral", "WETH", "--debt", "USDC", "--proxy", proxyHex,
		"--to", "debt", "--slippage", "0.005", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "AaveV2ClosePosition")
	assert.Contains(t, out, "swap")
	assert.Contains(t, out, "transaction")
	assert.Contains(t, out, mock.Executor.Hex())
}

func TestDepositBorrow_ValidationErrorExitCode(t *testing.T) {
	reader := &staticReader{pos: wethUSDC("1e18", "0")}
	out, err := run(t, reader, "deposit-borrow",
		"--protocol", "AaveV3", "--collateral", "WETH", "--debt", "USDC", "--proxy", proxyHex,
		"--borrow", "1900", "--no-color")
	require.Error(t, err)

	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "borrow-undercollateralized")
	assert.Contains(t, out, "transaction")
}

func TestCommandErrors(t *testing.T) {
	reader := &staticReader{pos: wethUSDC("1e18", "1000e6")}
	base := []string{"--collateral", "WETH", "--debt", "USDC", "--proxy", proxyHex}

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown protocol", append([]string{"adjust", "--protocol", "Compound", "--target-ltv", "0.5"}, base...), ExitCommandError},
		{"bad close target", append([]string{"close", "--protocol", "AaveV3", "--to", "eth"}, base...), ExitFailure},
		{"bad slippage", append([]string{"adjust", "--protocol", "AaveV3", "--target-ltv", "0.5", "--slippage", "2"}, base...), ExitFailure},
		{"bad format", append([]string{"adjust", "--protocol", "AaveV3", "--target-ltv", "0.5", "--format", "xml"}, base...), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, reader, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestCheck(t *testing.T) {
	out, err := run(t, &staticReader{}, "check", "--no-color")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ok   registry/AaveV3")
	assert.Contains(t, out, "FAIL registry/AaveV2")
	assert.Contains(t, out, "AaveV2PoolDataProvider")

	out, err = run(t, &staticReader{}, "check", "--format", "json")
	require.Error(t, err)
	var statuses []health.Status
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	assert.Len(t, statuses, len(core.Protocols))
}
