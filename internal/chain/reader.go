// Package chain reads current positions and market parameters from lending protocols over
// JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"leverage_builder/internal/core"
	"leverage_builder/internal/operations"
	"leverage_builder/internal/position"
	apperrors "leverage_builder/pkg/errors"
	"leverage_builder/pkg/telemetry"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// Query identifies the position to read
type Query struct {
	Protocol   core.Protocol
	Proxy      common.Address
	Collateral core.Token
	Debt       core.Token
	Market     operations.MarketRef

	// Quote currency prices. Required for Ajna, which carries no oracle; optional elsewhere
	// where they override the on-chain oracle.
	CollateralPrice decimal.Decimal
	DebtPrice       decimal.Decimal
}

// Reader dispatches position reads to the protocol specific reader
type Reader struct {
	caller bind.ContractCaller
	addrs  operations.Addresses
	logger core.ILogger
}

// Dial connects to an RPC endpoint
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", apperrors.ErrStateRead, rpcURL, err)
	}
	return client, nil
}

func NewReader(caller bind.ContractCaller, reg core.IAddressRegistry, logger core.ILogger) *Reader {
	return &Reader{
		caller: caller,
		addrs:  operations.NewAddresses(reg),
		logger: logger.WithField("component", "chain_reader"),
	}
}

// Contracts lists the registry names that reading and assembling p depend on
func Contracts(p core.Protocol) []string {
	switch p {
	case core.ProtocolAaveV3:
		return []string{"AaveV3Pool", aaveV3.dataProvider, aaveV3.oracle}
	case core.ProtocolAaveV2:
		return []string{"AaveV2LendingPool", aaveV2.dataProvider, aaveV2.oracle}
	case core.ProtocolMorphoBlue:
		return []string{"MorphoBlue"}
	case core.ProtocolAjna:
		return []string{PoolInfoUtils}
	}
	return nil
}

// ReadPosition returns the current position of q.Proxy with its market bound
func (r *Reader) ReadPosition(ctx context.Context, q Query) (position.Position, error) {
	start := time.Now()
	defer func() {
		telemetry.GetGlobalMetrics().RecordStateReadLatency(ctx, float64(time.Since(start).Milliseconds()), string(q.Protocol))
	}()

	var (
		pos position.Position
		err error
	)
	switch q.Protocol {
	case core.ProtocolAaveV3:
		pos, err = r.readAave(ctx, q, aaveV3)
	case core.ProtocolAaveV2:
		pos, err = r.readAave(ctx, q, aaveV2)
	case core.ProtocolMorphoBlue:
		pos, err = r.readMorpho(ctx, q)
	case core.ProtocolAjna:
		pos, err = r.readAjna(ctx, q)
	default:
		return position.Position{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownProtocol, q.Protocol)
	}
	if err != nil {
		r.logger.Warn("Position read failed", "protocol", q.Protocol, "proxy", q.Proxy.Hex(), "error", err)
		return position.Position{}, err
	}
	r.logger.Debug("Position read", "protocol", q.Protocol, "proxy", q.Proxy.Hex(),
		"collateral", pos.Collateral.Amount.String(), "debt", pos.Debt.Amount.String())
	return pos, nil
}

// call invokes a view method and returns its unpacked outputs
func (r *Reader) call(ctx context.Context, parsed abi.ABI, addr common.Address, method string, args ...interface{}) ([]interface{}, error) {
	contract := bind.NewBoundContract(addr, parsed, r.caller, nil, nil)
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%w: %s at %s: %v", apperrors.ErrStateRead, method, addr.Hex(), err)
	}
	return out, nil
}

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func bigAt(out []interface{}, i int) (*big.Int, error) {
	if i >= len(out) {
		return nil, fmt.Errorf("%w: missing output %d", apperrors.ErrStateRead, i)
	}
	v, ok := out[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: output %d is %T", apperrors.ErrStateRead, i, out[i])
	}
	return v, nil
}

// bigs extracts the listed integer outputs
func bigs(out []interface{}, idx ...int) ([]decimal.Decimal, error) {
	res := make([]decimal.Decimal, len(idx))
	for n, i := range idx {
		v, err := bigAt(out, i)
		if err != nil {
			return nil, err
		}
		res[n] = decimal.NewFromBigInt(v, 0)
	}
	return res, nil
}

// wadToBase converts an 18 decimal fixed point amount to base units of t
func wadToBase(wad decimal.Decimal, t core.Token) core.Amount {
	return wad.Shift(t.Precision - 18).Floor()
}
