// Package oneinch implements the swap quote capability against a 1inch-style aggregator API
package oneinch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leverage_builder/internal/core"
	apperrors "leverage_builder/pkg/errors"
	"leverage_builder/pkg/http"
	"leverage_builder/pkg/telemetry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config for the aggregator client
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
	// Executor is the account performing the swap, passed as the taker
	Executor common.Address
	// Protocols optionally restricts routing, comma separated
	Protocols string
}

type swapResponse struct {
	ToAmount  string `json:"toAmount"`
	ToToken   token  `json:"toToken"`
	FromToken token  `json:"fromToken"`
	Tx        struct {
		Data string `json:"data"`
	} `json:"tx"`
}

type token struct {
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
}

// Client quotes swaps over HTTP
type Client struct {
	http     *http.Client
	executor common.Address
	routes   string
	logger   core.ILogger
}

var _ core.ISwapDataProvider = (*Client)(nil)

func NewClient(cfg Config, logger core.ILogger) *Client {
	return &Client{
		http: http.NewClient(strings.TrimRight(cfg.BaseURL, "/"), http.Options{
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			RateLimit:  cfg.RateLimit,
			Signer:     http.BearerSigner{Token: cfg.APIKey},
		}),
		executor: cfg.Executor,
		routes:   cfg.Protocols,
		logger:   logger.WithField("component", "oneinch"),
	}
}

// GetSwapData requests a swap of amount base units of from into to
func (c *Client) GetSwapData(ctx context.Context, from, to core.Token, amount core.Amount, slippage core.Percentage) (*core.SwapData, error) {
	start := time.Now()
	defer func() {
		telemetry.GetGlobalMetrics().RecordQuoteLatency(ctx, float64(time.Since(start).Milliseconds()), "oneinch")
	}()

	params := map[string]string{
		"src":              from.Address.Hex(),
		"dst":              to.Address.Hex(),
		"amount":           amount.Floor().String(),
		"from":             c.executor.Hex(),
		"slippage":         slippage.Shift(2).String(),
		"disableEstimate":  "true",
		"allowPartialFill": "false",
	}
	if c.routes != "" {
		params["protocols"] = c.routes
	}

	body, err := c.http.Get(ctx, "/swap", params)
	if err != nil {
		c.logger.Warn("Quote request failed", "from", from.Symbol, "to", to.Symbol, "error", err)
		return nil, fmt.Errorf("%w: %s->%s: %v", apperrors.ErrQuoteFailed, from.Symbol, to.Symbol, err)
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", apperrors.ErrQuoteFailed, err)
	}

	toAmount, err := decimal.NewFromString(resp.ToAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: bad toAmount %q", apperrors.ErrQuoteFailed, resp.ToAmount)
	}
	calldata, err := hexutil.Decode(resp.Tx.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: bad calldata: %v", apperrors.ErrQuoteFailed, err)
	}

	c.logger.Debug("Quote received", "from", from.Symbol, "to", to.Symbol, "amount", amount.String(), "toAmount", toAmount.String())

	return &core.SwapData{
		FromToken:        from,
		ToToken:          to,
		FromTokenAmount:  amount,
		ToTokenAmount:    toAmount,
		MinToTokenAmount: toAmount.Mul(decimal.NewFromInt(1).Sub(slippage)).Floor(),
		ExchangeCalldata: calldata,
	}, nil
}
