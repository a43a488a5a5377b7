package mock

import (
	"fmt"
	"strings"
	"sync"

	"leverage_builder/internal/core"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
)

// Mainnet addresses used across tests
var (
	WETH       = core.Token{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Precision: 18}
	ETH        = core.Token{Symbol: "ETH", Address: core.ETHAddress, Precision: 18}
	USDC       = core.Token{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Precision: 6}
	DAI        = core.Token{Symbol: "DAI", Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), Precision: 18}
	WBTC       = core.Token{Symbol: "WBTC", Address: common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), Precision: 8}
	WSTETH     = core.Token{Symbol: "WSTETH", Address: common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0"), Precision: 18}
	AaveV3Pool = common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2")
	AaveV2Pool = common.HexToAddress("0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9")
	MorphoBlue = common.HexToAddress("0xBBBBBbbBBb9cC5e90e3b3Af64bdAF62C37EEFFCb")
	AjnaPool   = common.HexToAddress("0x3BA6A019eD5541b5F5555d8593080042Cf3ae5f4")
	Executor   = common.HexToAddress("0x5Ba5F5BE2F2eC31f3A2Dbc1ac5c8a1Eb9C8E2c55")

	AaveV3DataProvider = common.HexToAddress("0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3")
	AaveV3Oracle       = common.HexToAddress("0x54586bE62E3c3580375aE3723C145253060Ca0C2")
	AjnaPoolInfoUtils  = common.HexToAddress("0x30c5eF2997d6a882DE52c4ec01B6D0a5e5B4fAAE")
)

// MockAddressRegistry implements core.IAddressRegistry over in-memory maps
type MockAddressRegistry struct {
	mu        sync.RWMutex
	network   string
	contracts map[string]common.Address
	tokens    map[string]core.Token
}

// NewMockAddressRegistry returns a registry preloaded with mainnet addresses
func NewMockAddressRegistry() *MockAddressRegistry {
	r := &MockAddressRegistry{
		network: "mainnet",
		contracts: map[string]common.Address{
			"WETH":              WETH.Address,
			"AaveV3Pool":        AaveV3Pool,
			"AaveV2LendingPool": AaveV2Pool,
			"MorphoBlue":        MorphoBlue,
			"OperationExecutor": Executor,

			"AaveV3PoolDataProvider": AaveV3DataProvider,
			"AaveV3Oracle":           AaveV3Oracle,
			"AjnaPoolInfoUtils":      AjnaPoolInfoUtils,
		},
		tokens: make(map[string]core.Token),
	}
	for _, t := range []core.Token{WETH, ETH, USDC, DAI, WBTC, WSTETH} {
		r.tokens[t.Symbol] = t
	}
	return r
}

func (r *MockAddressRegistry) Network() string {
	return r.network
}

func (r *MockAddressRegistry) Address(name string) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.contracts[name]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", apperrors.ErrMissingAddress, name)
	}
	return addr, nil
}

func (r *MockAddressRegistry) Token(symbol string) (core.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[strings.ToUpper(symbol)]
	if !ok {
		return core.Token{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownToken, symbol)
	}
	return t, nil
}

// SetAddress overrides or adds a contract address
func (r *MockAddressRegistry) SetAddress(name string, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[name] = addr
}

// Remove drops a contract, simulating missing configuration
func (r *MockAddressRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contracts, name)
}
