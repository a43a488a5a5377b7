// Package operations holds the executor-registered operation definitions and the argument
// types shared by the per-protocol assemblers.
package operations

import (
	_ "embed"
	"fmt"
	"sync"

	"leverage_builder/internal/action"
	apperrors "leverage_builder/pkg/errors"

	"gopkg.in/yaml.v3"
)

//go:embed definitions.yaml
var definitionsYAML []byte

// ActionDefinition is one slot of a registered operation
type ActionDefinition struct {
	Name     string             `yaml:"name"`
	Optional bool               `yaml:"optional"`
	Nested   []ActionDefinition `yaml:"nested"`
}

// Definition is an operation as registered with the executor
type Definition struct {
	Name    string             `yaml:"name"`
	Actions []ActionDefinition `yaml:"actions"`
}

// Registry maps operation names to their definitions
type Registry struct {
	defs map[string]Definition
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Definitions returns the registry built from the embedded definitions
func Definitions() *Registry {
	defaultOnce.Do(func() {
		r, err := ParseRegistry(definitionsYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded operation definitions: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// ParseRegistry loads definitions from YAML
func ParseRegistry(data []byte) (*Registry, error) {
	var doc struct {
		Operations []Definition `yaml:"operations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse operation definitions: %w", err)
	}

	r := &Registry{defs: make(map[string]Definition, len(doc.Operations))}
	for _, d := range doc.Operations {
		if d.Name == "" {
			return nil, fmt.Errorf("operation definition without name")
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("duplicate operation definition %s", d.Name)
		}
		r.defs[d.Name] = d
	}
	return r, nil
}

// Get returns the definition registered under name
func (r *Registry) Get(name string) (Definition, error) {
	d, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownOperation, name)
	}
	return d, nil
}

// Names returns all registered operation names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	return names
}

// Verify checks op against its definition slot for slot: same names in the same order,
// required actions included, optional ones present. Flashloan callbacks are checked
// recursively.
func (r *Registry) Verify(op *action.Operation) error {
	def, err := r.Get(op.Name)
	if err != nil {
		return err
	}
	if err := verifySlots(op.Name, def.Actions, op.Slots); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDefinitionMismatch, err)
	}
	return nil
}

func verifySlots(path string, defs []ActionDefinition, slots []action.Slot) error {
	if len(defs) != len(slots) {
		return fmt.Errorf("%s: %d slots, definition has %d", path, len(slots), len(defs))
	}
	for i, d := range defs {
		s := slots[i]
		if s.Name() != d.Name {
			return fmt.Errorf("%s[%d]: got %s, want %s", path, i, s.Name(), d.Name)
		}
		if !d.Optional && !s.IsIncluded() {
			return fmt.Errorf("%s[%d]: required action %s is inert", path, i, d.Name)
		}
		nested := s.Action().Nested
		if len(d.Nested) > 0 || len(nested) > 0 {
			if err := verifySlots(fmt.Sprintf("%s[%d]", path, i), d.Nested, nested); err != nil {
				return err
			}
		}
	}
	return nil
}
