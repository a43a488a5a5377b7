package action

import (
	"fmt"
	"strings"

	apperrors "leverage_builder/pkg/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Call is the executor wire shape of one slot
type Call struct {
	TargetHash [32]byte
	CallData   []byte
	ParamsMap  []uint8
	Skipped    bool
}

var callComponents = []abi.ArgumentMarshaling{
	{Name: "targetHash", Type: "bytes32"},
	{Name: "callData", Type: "bytes"},
	{Name: "paramsMap", Type: "uint8[]"},
	{Name: "skipped", Type: "bool"},
}

// CallsType is the ABI type of an encoded action list
var CallsType = mustType("tuple[]", callComponents...)

// ExecutorABI is the entry point of the operation executor
const ExecutorABI = `[{
	"type": "function",
	"name": "executeOp",
	"stateMutability": "payable",
	"inputs": [
		{"name": "calls", "type": "tuple[]", "components": [
			{"name": "targetHash", "type": "bytes32"},
			{"name": "callData", "type": "bytes"},
			{"name": "paramsMap", "type": "uint8[]"},
			{"name": "skipped", "type": "bool"}
		]},
		{"name": "operationName", "type": "string"}
	],
	"outputs": []
}]`

var executorABI = mustParseABI(ExecutorABI)

// EncodeCalls converts one list scope to wire calls.
//
// Storage is allocated per slot: slot i owns OutputCount entries starting right after the
// entries of slot i-1, whether or not either is skipped. A paramsMap entry is 0 for a literal
// parameter and 1+storage index for a wired one.
func EncodeCalls(slots []Slot) ([]Call, error) {
	if err := ValidateDependencies(slots); err != nil {
		return nil, err
	}

	offsets := make([]int, len(slots))
	next := 0
	for i, s := range slots {
		offsets[i] = next
		next += s.Action().OutputCount
	}

	calls := make([]Call, len(slots))
	for i, s := range slots {
		a := s.Action()
		paramsMap := make([]uint8, a.ParamCount)
		for _, d := range a.Dependencies {
			idx := offsets[d.SourceAction] + d.SourceOutput + 1
			if idx > 255 {
				return nil, fmt.Errorf("%w: storage index %d overflows uint8", apperrors.ErrInvalidDependency, idx)
			}
			paramsMap[d.ParamSlot] = uint8(idx)
		}
		calls[i] = Call{
			TargetHash: a.TargetHash,
			CallData:   a.Params,
			ParamsMap:  paramsMap,
			Skipped:    !s.IsIncluded(),
		}
	}
	return calls, nil
}

// ExecutorCalldata encodes executeOp(calls, operationName) for the operation
func ExecutorCalldata(op *Operation) ([]byte, error) {
	calls, err := EncodeCalls(op.Slots)
	if err != nil {
		return nil, fmt.Errorf("operation %s: %w", op.Name, err)
	}
	data, err := executorABI.Pack("executeOp", calls, op.Name)
	if err != nil {
		return nil, fmt.Errorf("pack executeOp: %w", err)
	}
	return data, nil
}

// DecodeExecutorCalldata is the inverse of ExecutorCalldata, used to inspect payloads
func DecodeExecutorCalldata(data []byte) ([]Call, string, error) {
	method, err := executorABI.MethodById(data)
	if err != nil {
		return nil, "", err
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, "", err
	}
	if len(values) != 2 {
		return nil, "", fmt.Errorf("executeOp: unexpected %d inputs", len(values))
	}
	calls := *abi.ConvertType(values[0], new([]Call)).(*[]Call)
	name, ok := values[1].(string)
	if !ok {
		return nil, "", fmt.Errorf("executeOp: operation name is %T", values[1])
	}
	return calls, name, nil
}

func mustType(t string, components ...abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Args builds an argument list from solidity type names
func Args(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: mustType(t)}
	}
	return args
}

// TupleType builds a struct ABI type; Go values packed into it need fields named after the
// components in CamelCase
func TupleType(components ...abi.ArgumentMarshaling) abi.Type {
	return mustType("tuple", components...)
}
