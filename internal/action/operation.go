package action

import (
	"fmt"

	apperrors "leverage_builder/pkg/errors"
)

// Operation is a named, ordered action list matching an executor-registered definition
type Operation struct {
	Name  string
	Slots []Slot
}

// NewOperation validates the dependency maps of slots and returns the operation
func NewOperation(name string, slots ...Slot) (*Operation, error) {
	if err := ValidateDependencies(slots); err != nil {
		return nil, fmt.Errorf("operation %s: %w", name, err)
	}
	return &Operation{Name: name, Slots: slots}, nil
}

// ValidateDependencies checks every dependency of every slot in a single list scope:
// the source must sit strictly before the dependent action, the parameter and output slots
// must exist, and each parameter may be wired once. Nested lists were validated when their
// wrapping action was built.
func ValidateDependencies(slots []Slot) error {
	for i, slot := range slots {
		a := slot.Action()
		seen := make(map[int]bool, len(a.Dependencies))
		for _, d := range a.Dependencies {
			if d.SourceAction < 0 || d.SourceAction >= i {
				return fmt.Errorf("%w: %s at %d reads from action %d", apperrors.ErrInvalidDependency, a.Name, i, d.SourceAction)
			}
			if d.ParamSlot < 0 || d.ParamSlot >= a.ParamCount {
				return fmt.Errorf("%w: %s has no param slot %d", apperrors.ErrInvalidDependency, a.Name, d.ParamSlot)
			}
			src := slots[d.SourceAction].Action()
			if d.SourceOutput < 0 || d.SourceOutput >= src.OutputCount {
				return fmt.Errorf("%w: %s has no output %d", apperrors.ErrInvalidDependency, src.Name, d.SourceOutput)
			}
			if seen[d.ParamSlot] {
				return fmt.Errorf("%w: %s param slot %d wired twice", apperrors.ErrInvalidDependency, a.Name, d.ParamSlot)
			}
			seen[d.ParamSlot] = true
		}
	}
	return nil
}

// Names lists the top-level action names in order
func (o *Operation) Names() []string {
	names := make([]string, len(o.Slots))
	for i, s := range o.Slots {
		names[i] = s.Name()
	}
	return names
}

// Find returns the index of the first top-level slot named name, or -1
func (o *Operation) Find(name string) int {
	for i, s := range o.Slots {
		if s.Name() == name {
			return i
		}
	}
	return -1
}
