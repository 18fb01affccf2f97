// Package plan applies declarative architecture plans to a graph and
// reports their effect as a structural diff.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidOperation is returned for operations that cannot be applied:
// an unknown op or a missing required field.
var ErrInvalidOperation = errors.New("invalid plan operation")

// Operation kinds.
const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpMove   = "move"
)

// DefaultLayer is used when an operation names no layer, and its level
// for layers that are not recognized.
const DefaultLayer = "C2"

// layerLevels maps layer labels to abstraction levels; the highest label
// maps to the highest level.
var layerLevels = map[string]int{
	"C1": 3,
	"C2": 2,
	"C3": 1,
}

// LevelForLayer returns the abstraction level of a layer label.
func LevelForLayer(layer string) int {
	if level, ok := layerLevels[layer]; ok {
		return level
	}
	return layerLevels[DefaultLayer]
}

// Plan is a named list of operations. Plans are read-only input.
type Plan struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Operations  []Operation `json:"operations" yaml:"operations"`
}

// Operation is one add, remove or move step. Which fields apply depends
// on Op.
type Operation struct {
	Op string `json:"op" yaml:"op"`

	// Name and Layer are used by add.
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Layer     string   `json:"layer,omitempty" yaml:"layer,omitempty"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// ID is the target of remove and move.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// ToLayer is the new layer of a moved node.
	ToLayer string `json:"to_layer,omitempty" yaml:"to_layer,omitempty"`
}

// validate checks that the operation carries the fields its op needs.
func (op Operation) validate() error {
	switch op.Op {
	case OpAdd:
		if op.Name == "" {
			return fmt.Errorf("%w: add requires a name", ErrInvalidOperation)
		}
	case OpRemove, OpMove:
		if op.ID == "" {
			return fmt.Errorf("%w: %s requires an id", ErrInvalidOperation, op.Op)
		}
	case "":
		return fmt.Errorf("%w: missing op", ErrInvalidOperation)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
	return nil
}

// Load reads a plan file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	p, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a plan document. ext selects the format as in Load.
func Parse(data []byte, ext string) (*Plan, error) {
	var p Plan
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}
