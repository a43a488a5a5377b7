package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"leverage_builder/internal/action"
	"leverage_builder/internal/chain"
	"leverage_builder/internal/config"
	"leverage_builder/internal/core"
	"leverage_builder/internal/health"
	"leverage_builder/internal/strategy"
	"leverage_builder/internal/swap/oneinch"
	"leverage_builder/pkg/logging"
	"leverage_builder/pkg/telemetry"

	"github.com/ethereum/go-ethereum/ethclient"
)

const serviceName = "leverage_builder"

// App is the wired process: configuration, logger, registry and strategy builder
type App struct {
	Config   *config.Config
	Registry core.IAddressRegistry
	Builder  *strategy.Builder
	Health   *health.Manager
	Logger   core.ILogger

	closers []func(context.Context) error
}

// NewApp loads the configuration and wires every collaborator of the strategy builder
func NewApp(opts *RootOptions) (*App, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg}

	// Telemetry goes first so the logger bridge picks up the log provider
	if cfg.Telemetry.EnableMetrics {
		tel, err := telemetry.Setup(serviceName, telemetry.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		app.closers = append(app.closers, tel.Shutdown)
	}

	level := cfg.App.LogLevel
	if opts.Verbose {
		level = "DEBUG"
	}
	zl, err := logging.NewZapLogger(level)
	if err != nil {
		return nil, err
	}
	app.Logger = zl
	app.closers = append(app.closers, func(context.Context) error {
		_ = zl.Sync()
		return nil
	})

	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	app.Registry = reg

	network := cfg.Networks[reg.Network()]
	rpc, err := chain.Dial(context.Background(), network.RPCURL)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, func(context.Context) error {
		rpc.Close()
		return nil
	})

	executor, err := reg.Address(strategy.ExecutorName)
	if err != nil {
		return nil, err
	}
	quotes := oneinch.NewClient(oneinch.Config{
		BaseURL:    cfg.Aggregator.BaseURL,
		APIKey:     string(cfg.Aggregator.APIKey),
		Timeout:    time.Duration(cfg.Aggregator.TimeoutSeconds) * time.Second,
		RateLimit:  cfg.Aggregator.RateLimit,
		MaxRetries: cfg.Aggregator.MaxRetries,
		Executor:   executor,
	}, zl)

	provider, err := action.ParseFlashloanProvider(cfg.Strategy.FlashloanProvider)
	if err != nil {
		return nil, fmt.Errorf("strategy.flashloan_provider: %w", err)
	}

	builder, err := strategy.NewBuilder(reg, chain.NewReader(rpc, reg, zl), quotes, strategy.Options{
		FeeBps:            cfg.Strategy.FeeBps,
		SafetyMargin:      cfg.SafetyMargin(),
		FlashloanProvider: provider,
	}, zl)
	if err != nil {
		return nil, err
	}
	app.Builder = builder
	app.Health = newHealth(reg, rpc, network.ChainID, zl)

	zl.Debug("App wired",
		"network", reg.Network(),
		"chain_id", network.ChainID,
		"executor", executor.Hex(),
		"flashloan_provider", provider.String(),
	)
	return app, nil
}

func newHealth(reg core.IAddressRegistry, rpc *ethclient.Client, chainID int64, logger core.ILogger) *health.Manager {
	hm := health.NewManager(logger)
	hm.Register("rpc", health.ChainIDCheck(rpc, chainID))
	hm.Register("executor", health.CodeCheck(rpc, reg, strategy.ExecutorName))
	for _, p := range core.Protocols {
		hm.Register("registry/"+string(p), health.RegistryCheck(reg, chain.Contracts(p)...))
	}
	return hm
}

// Close releases the RPC connection and flushes telemetry, last opened first
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DefaultSlippage is the configured slippage, zero when no config is loaded
func (a *App) DefaultSlippage() core.Percentage {
	if a.Config == nil {
		return core.Percentage{}
	}
	return a.Config.Slippage()
}
