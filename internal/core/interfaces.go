// Package core defines the core interfaces and shared value types of the operation builder
package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ISwapDataProvider retrieves swap quotes and exchange calldata from an aggregator
type ISwapDataProvider interface {
	GetSwapData(ctx context.Context, from, to Token, amount Amount, slippage Percentage) (*SwapData, error)
}

// IAddressRegistry resolves symbolic contract names to deployed addresses for one network
type IAddressRegistry interface {
	Network() string
	Address(name string) (common.Address, error)
	Token(symbol string) (Token, error)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
