package action

import (
	"fmt"
	"math/big"
	"strings"

	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FlashloanProvider selects the lender the executor borrows from
type FlashloanProvider uint8

const (
	ProviderMakerDSS FlashloanProvider = iota
	ProviderBalancer
	ProviderAaveV3
	ProviderMorphoBlue
)

var providerNames = map[FlashloanProvider]string{
	ProviderMakerDSS:   "MakerDSS",
	ProviderBalancer:   "Balancer",
	ProviderAaveV3:     "AaveV3",
	ProviderMorphoBlue: "MorphoBlue",
}

var providerFeeBps = map[FlashloanProvider]int64{
	ProviderMakerDSS:   0,
	ProviderBalancer:   0,
	ProviderAaveV3:     5,
	ProviderMorphoBlue: 0,
}

func (p FlashloanProvider) String() string {
	if n, ok := providerNames[p]; ok {
		return n
	}
	return fmt.Sprintf("FlashloanProvider(%d)", uint8(p))
}

// ParseFlashloanProvider resolves a provider by name, case-insensitively
func ParseFlashloanProvider(name string) (FlashloanProvider, error) {
	for p, n := range providerNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: flashloan provider %q", apperrors.ErrInvalidArgument, name)
}

// FeeBps is the lender premium in basis points
func (p FlashloanProvider) FeeBps() int64 {
	return providerFeeBps[p]
}

// Fee returns the premium owed on amount, rounded up
func (p FlashloanProvider) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(p.FeeBps())).Div(decimal.NewFromInt(10000)).Ceil()
}

// FlashloanSpec describes a flashloan and the actions run inside the lender callback.
// The nested list must hand back Amount plus the provider fee; nothing here verifies that.
type FlashloanSpec struct {
	Provider FlashloanProvider
	Asset    common.Address
	Amount   *big.Int
	IsDPM    bool
	Actions  []Slot
}

var flashloanArgs = abi.Arguments{
	{Type: mustType("uint256")},
	{Type: mustType("address")},
	{Type: mustType("bool")},
	{Type: mustType("bool")},
	{Type: mustType("uint8")},
	{Type: CallsType},
}

// WrapFlashloan builds the TakeFlashloan action around a nested action list. Dependency
// indices inside the nested list are local to it.
func WrapFlashloan(spec FlashloanSpec) (Action, error) {
	if spec.Amount == nil || spec.Amount.Sign() < 0 {
		return Action{}, fmt.Errorf("%w: flashloan amount must be non-negative", apperrors.ErrInvalidArgument)
	}
	if len(spec.Actions) == 0 {
		return Action{}, fmt.Errorf("%w: flashloan without nested actions", apperrors.ErrInvalidArgument)
	}
	calls, err := EncodeCalls(spec.Actions)
	if err != nil {
		return Action{}, fmt.Errorf("flashloan callback: %w", err)
	}

	a, err := New(TakeFlashloan, flashloanArgs, 0,
		spec.Amount, spec.Asset, true, spec.IsDPM, uint8(spec.Provider), calls)
	if err != nil {
		return Action{}, err
	}
	a.Nested = spec.Actions
	return a, nil
}
