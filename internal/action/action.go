// Package action models the atomic instructions executed by the on-chain operation executor.
//
// An Action names its target by keccak256(name), carries ABI-encoded parameters and may read
// some of its parameters from outputs of earlier actions in the same list. Lists are built
// from Slots: a slot always exists, but may be Inert, in which case the executor skips it.
// Keeping inert slots in place keeps every dependency index stable no matter which optional
// legs are active.
package action

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Dependency wires one parameter of an action to an output of an earlier action
type Dependency struct {
	ParamSlot    int
	SourceAction int
	SourceOutput int
}

// Action is a single instruction descriptor
type Action struct {
	Name         string
	TargetHash   common.Hash
	Params       []byte
	ParamCount   int
	OutputCount  int
	Dependencies []Dependency

	// Nested holds the inner list for actions that execute a callback (flashloans)
	Nested []Slot
}

// Hash returns the executor registry identifier for an action name
func Hash(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name))
}

// New ABI-encodes values against args and returns the action.
// outputs is the number of values the action writes to operation storage.
func New(name string, args abi.Arguments, outputs int, values ...interface{}) (Action, error) {
	params, err := args.Pack(values...)
	if err != nil {
		return Action{}, fmt.Errorf("encode %s params: %w", name, err)
	}
	return Action{
		Name:        name,
		TargetHash:  Hash(name),
		Params:      params,
		ParamCount:  len(args),
		OutputCount: outputs,
	}, nil
}

// MustNew is New for constructors whose argument types are fixed at compile time.
// A packing failure there is a programming error.
func MustNew(name string, args abi.Arguments, outputs int, values ...interface{}) Action {
	a, err := New(name, args, outputs, values...)
	if err != nil {
		panic(err)
	}
	return a
}

// WithDependency returns a copy of the action that reads paramSlot from the given output
// of an earlier action in the enclosing list
func (a Action) WithDependency(paramSlot, sourceAction, sourceOutput int) Action {
	deps := make([]Dependency, len(a.Dependencies), len(a.Dependencies)+1)
	copy(deps, a.Dependencies)
	a.Dependencies = append(deps, Dependency{
		ParamSlot:    paramSlot,
		SourceAction: sourceAction,
		SourceOutput: sourceOutput,
	})
	return a
}

// Slot is a fixed position in an action list: Included(Action) or Inert(Action)
type Slot struct {
	action   Action
	included bool
}

// Included marks an action as executed
func Included(a Action) Slot {
	return Slot{action: a, included: true}
}

// Inert keeps the slot but the executor skips it
func Inert(a Action) Slot {
	return Slot{action: a}
}

// Optional is Included when cond holds and Inert otherwise
func Optional(cond bool, a Action) Slot {
	if cond {
		return Included(a)
	}
	return Inert(a)
}

// Action returns the action held by the slot, inert or not
func (s Slot) Action() Action {
	return s.action
}

// IsIncluded reports whether the executor will run the slot
func (s Slot) IsIncluded() bool {
	return s.included
}

// Name is a shortcut for Action().Name
func (s Slot) Name() string {
	return s.action.Name
}
