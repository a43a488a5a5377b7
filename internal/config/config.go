// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"leverage_builder/internal/action"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App        AppConfig                `yaml:"app"`
	Networks   map[string]NetworkConfig `yaml:"networks"`
	Aggregator AggregatorConfig         `yaml:"aggregator"`
	Strategy   StrategyConfig           `yaml:"strategy"`
	Telemetry  TelemetryConfig          `yaml:"telemetry"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	EnableMetrics bool `yaml:"enable_metrics"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Network  string `yaml:"network"`
	LogLevel string `yaml:"log_level"`
}

// NetworkConfig holds the deployment of one chain
type NetworkConfig struct {
	ChainID   int64                  `yaml:"chain_id"`
	RPCURL    string                 `yaml:"rpc_url"`
	Contracts map[string]string      `yaml:"contracts"` // symbolic name -> address
	Tokens    map[string]TokenConfig `yaml:"tokens"`    // symbol -> token
}

// TokenConfig describes one ERC20
type TokenConfig struct {
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
}

// AggregatorConfig configures the swap quote API
type AggregatorConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         Secret  `yaml:"api_key"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimit      float64 `yaml:"rate_limit"` // requests per second
	MaxRetries     int     `yaml:"max_retries"`
}

// StrategyConfig holds defaults applied to every strategy call
type StrategyConfig struct {
	FeeBps            int64  `yaml:"fee_bps"`
	SafetyMargin      string `yaml:"safety_margin"`
	Slippage          string `yaml:"slippage"`
	FlashloanProvider string `yaml:"flashloan_provider"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML content
func ParseConfig(data []byte) (*Config, error) {
	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	config.Networks = nil
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAppConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	for _, err := range c.validateNetworks() {
		errors = append(errors, err.Error())
	}

	if err := c.validateAggregatorConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.validateStrategyConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.App.LogLevel)) {
		return ValidationError{
			Field:   "app.log_level",
			Value:   c.App.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}

	if _, ok := c.Networks[c.App.Network]; !ok {
		return ValidationError{
			Field:   "app.network",
			Value:   c.App.Network,
			Message: "network configuration not found in networks section",
		}
	}
	return nil
}

func (c *Config) validateNetworks() []error {
	var errs []error
	for name, n := range c.Networks {
		for contract, addr := range n.Contracts {
			if !common.IsHexAddress(addr) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("networks.%s.contracts.%s", name, contract),
					Value:   addr,
					Message: "not a hex address",
				})
			}
		}
		for symbol, tok := range n.Tokens {
			if !common.IsHexAddress(tok.Address) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("networks.%s.tokens.%s.address", name, symbol),
					Value:   tok.Address,
					Message: "not a hex address",
				})
			}
			if tok.Decimals < 0 || tok.Decimals > 36 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("networks.%s.tokens.%s.decimals", name, symbol),
					Value:   tok.Decimals,
					Message: "decimals must be between 0 and 36",
				})
			}
		}
	}
	return errs
}

func (c *Config) validateAggregatorConfig() error {
	if c.Aggregator.BaseURL == "" {
		return ValidationError{
			Field:   "aggregator.base_url",
			Message: "aggregator base URL is required",
		}
	}
	if c.Aggregator.RateLimit < 0 {
		return ValidationError{
			Field:   "aggregator.rate_limit",
			Value:   c.Aggregator.RateLimit,
			Message: "rate limit must not be negative",
		}
	}
	return nil
}

func (c *Config) validateStrategyConfig() error {
	if c.Strategy.FeeBps < 0 || c.Strategy.FeeBps > 10000 {
		return ValidationError{
			Field:   "strategy.fee_bps",
			Value:   c.Strategy.FeeBps,
			Message: "fee must be between 0 and 10000 bps",
		}
	}
	if _, err := action.ParseFlashloanProvider(c.Strategy.FlashloanProvider); err != nil {
		return ValidationError{
			Field:   "strategy.flashloan_provider",
			Value:   c.Strategy.FlashloanProvider,
			Message: "must be one of MakerDSS, Balancer, AaveV3, MorphoBlue",
		}
	}
	for field, v := range map[string]string{
		"strategy.safety_margin": c.Strategy.SafetyMargin,
		"strategy.slippage":      c.Strategy.Slippage,
	} {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return ValidationError{
				Field:   field,
				Value:   v,
				Message: "must be a fraction in [0, 1)",
			}
		}
	}
	return nil
}

// SafetyMargin returns the configured close safety margin
func (c *Config) SafetyMargin() decimal.Decimal {
	return decimal.RequireFromString(c.Strategy.SafetyMargin)
}

// Slippage returns the configured default slippage
func (c *Config) Slippage() decimal.Decimal {
	return decimal.RequireFromString(c.Strategy.Slippage)
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	configCopy := *c
	configCopy.Networks = make(map[string]NetworkConfig, len(c.Networks))
	for name, n := range c.Networks {
		n.RPCURL = maskString(n.RPCURL)
		configCopy.Networks[name] = n
	}

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Network:  "mainnet",
			LogLevel: "INFO",
		},
		Networks: map[string]NetworkConfig{
			"mainnet": {
				ChainID: 1,
				RPCURL:  "http://localhost:8545",
				Contracts: map[string]string{
					"OperationExecutor":      "0x5Ba5F5BE2F2eC31f3A2Dbc1ac5c8a1Eb9C8E2c55",
					"WETH":                   "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
					"AaveV3Pool":             "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2",
					"AaveV3PoolDataProvider": "0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3",
					"AaveV3Oracle":           "0x54586bE62E3c3580375aE3723C145253060Ca0C2",
					"AaveV2LendingPool":      "0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9",
					"AaveV2PoolDataProvider": "0x057835Ad21a177dbdd3090bB1CAE03EaCF78Fc6d",
					"AaveV2Oracle":           "0xA50ba011c48153De246E5192C8f9258A2ba79Ca9",
					"MorphoBlue":             "0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb",
					"AjnaPoolInfoUtils":      "0x30c5eF2997d6a882DE52c4ec01B6D0a5e5B4fAAE",
				},
				Tokens: map[string]TokenConfig{
					"WETH":   {Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
					"USDC":   {Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
					"DAI":    {Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Decimals: 18},
					"WBTC":   {Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Decimals: 8},
					"WSTETH": {Address: "0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0", Decimals: 18},
				},
			},
		},
		Aggregator: AggregatorConfig{
			BaseURL:        "https://api.1inch.dev/swap/v5.2/1",
			TimeoutSeconds: 10,
			RateLimit:      1,
			MaxRetries:     3,
		},
		Strategy: StrategyConfig{
			FeeBps:            20,
			SafetyMargin:      "0.001",
			Slippage:          "0.005",
			FlashloanProvider: "Balancer",
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: false,
		},
	}
}
