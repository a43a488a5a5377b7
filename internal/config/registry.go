package config

import (
	"fmt"
	"strings"

	"leverage_builder/internal/core"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
)

// ConfigError reports a missing or unusable configuration entry
type ConfigError struct {
	Network string
	Name    string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error on %s for %s: %v", e.Network, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Registry resolves contracts and tokens of one network
type Registry struct {
	network   string
	contracts map[string]common.Address
	tokens    map[string]core.Token
}

var _ core.IAddressRegistry = (*Registry)(nil)

// Registry builds the address registry of the configured network
func (c *Config) Registry() (*Registry, error) {
	return c.RegistryFor(c.App.Network)
}

// RegistryFor builds the address registry of network
func (c *Config) RegistryFor(network string) (*Registry, error) {
	n, ok := c.Networks[network]
	if !ok {
		return nil, &ConfigError{Network: network, Name: "network", Err: apperrors.ErrMissingAddress}
	}

	r := &Registry{
		network:   network,
		contracts: make(map[string]common.Address, len(n.Contracts)),
		tokens:    make(map[string]core.Token, len(n.Tokens)+1),
	}
	for name, addr := range n.Contracts {
		r.contracts[name] = common.HexToAddress(addr)
	}
	for symbol, t := range n.Tokens {
		sym := strings.ToUpper(symbol)
		r.tokens[sym] = core.Token{Symbol: sym, Address: common.HexToAddress(t.Address), Precision: t.Decimals}
	}
	r.tokens["ETH"] = core.Token{Symbol: "ETH", Address: core.ETHAddress, Precision: 18}
	return r, nil
}

func (r *Registry) Network() string {
	return r.network
}

func (r *Registry) Address(name string) (common.Address, error) {
	addr, ok := r.contracts[name]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, &ConfigError{Network: r.network, Name: name, Err: apperrors.ErrMissingAddress}
	}
	return addr, nil
}

func (r *Registry) Token(symbol string) (core.Token, error) {
	t, ok := r.tokens[strings.ToUpper(symbol)]
	if !ok {
		return core.Token{}, &ConfigError{Network: r.network, Name: symbol, Err: apperrors.ErrUnknownToken}
	}
	return t, nil
}
