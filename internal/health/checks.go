package health

import (
	"context"
	"fmt"
	"math/big"

	"leverage_builder/internal/core"
	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/common"
)

// ChainIDReader is the part of ethclient.Client the chain id check needs
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// CodeReader is the part of bind.ContractCaller the code check needs
type CodeReader interface {
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
}

// RegistryCheck fails when any of names is not configured
func RegistryCheck(reg core.IAddressRegistry, names ...string) Check {
	return func(context.Context) error {
		var missing []string
		for _, name := range names {
			if _, err := reg.Address(name); err != nil {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w on %s: %v", apperrors.ErrMissingAddress, reg.Network(), missing)
		}
		return nil
	}
}

// ChainIDCheck fails when the RPC endpoint serves another chain
func ChainIDCheck(client ChainIDReader, want int64) Check {
	return func(ctx context.Context) error {
		id, err := client.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("%w: chain id: %v", apperrors.ErrStateRead, err)
		}
		if id.Cmp(big.NewInt(want)) != 0 {
			return fmt.Errorf("rpc serves chain %s, configured %d", id, want)
		}
		return nil
	}
}

// CodeCheck fails when the contract named name has no code deployed
func CodeCheck(client CodeReader, reg core.IAddressRegistry, name string) Check {
	return func(ctx context.Context) error {
		addr, err := reg.Address(name)
		if err != nil {
			return err
		}
		code, err := client.CodeAt(ctx, addr, nil)
		if err != nil {
			return fmt.Errorf("%w: code at %s: %v", apperrors.ErrStateRead, addr.Hex(), err)
		}
		if len(code) == 0 {
			return fmt.Errorf("%s at %s has no code", name, addr.Hex())
		}
		return nil
	}
}
