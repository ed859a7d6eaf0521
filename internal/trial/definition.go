// Package trial loads trial definitions and the counter logs they point at.
package trial

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFile is returned when a definition or log path cannot be read.
	ErrMissingFile = errors.New("missing file")
	// ErrInvalidDefinition is returned when a trial definition fails validation.
	ErrInvalidDefinition = errors.New("invalid trial definition")
)

// RunPaths points at the two logs recorded for one trial.
type RunPaths struct {
	Producer string `yaml:"producer"`
	Consumer string `yaml:"consumer"`
}

// Condition is a labeled set of repeated trials.
type Condition struct {
	Name string     `yaml:"name"`
	Runs []RunPaths `yaml:"runs"`
}

// Definition is a validated trial definition with every path resolved.
type Definition struct {
	Path       string
	Conditions []Condition
}

// ConditionNames returns the condition labels in definition order.
func (d *Definition) ConditionNames() []string {
	names := make([]string, len(d.Conditions))
	for i, c := range d.Conditions {
		names[i] = c.Name
	}
	return names
}

type namedDefinition struct {
	Conditions []Condition `yaml:"conditions"`
}

// LoadDefinition reads a trial definition from path.
//
// Two shapes are accepted: a bare list of condition groups, each a list of
// {producer, consumer} pairs, labeled by position from labels; or a mapping with a
// "conditions" list of {name, runs}. JSON works too. Relative log paths are resolved
// against the directory of the definition file.
func LoadDefinition(path string, labels []string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingFile, path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, path, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: %s: empty document", ErrInvalidDefinition, path)
	}

	var conditions []Condition
	switch root.Content[0].Kind {
	case yaml.SequenceNode:
		var groups [][]RunPaths
		if err := decodeStrict(data, &groups); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, path, err)
		}
		for i, runs := range groups {
			name := fmt.Sprintf("condition-%d", i+1)
			if i < len(labels) && labels[i] != "" {
				name = labels[i]
			}
			conditions = append(conditions, Condition{Name: name, Runs: runs})
		}
	case yaml.MappingNode:
		var named namedDefinition
		if err := decodeStrict(data, &named); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, path, err)
		}
		conditions = named.Conditions
	default:
		return nil, fmt.Errorf("%w: %s: expected a list or a mapping", ErrInvalidDefinition, path)
	}

	def := &Definition{Path: path, Conditions: conditions}
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, path, err)
	}
	def.resolve(filepath.Dir(path))
	return def, nil
}

func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

func (d *Definition) validate() error {
	if len(d.Conditions) == 0 {
		return errors.New("no conditions")
	}
	seen := make(map[string]bool, len(d.Conditions))
	for i, c := range d.Conditions {
		if c.Name == "" {
			return fmt.Errorf("condition %d has no name", i+1)
		}
		if seen[c.Name] {
			return fmt.Errorf("condition %q listed twice", c.Name)
		}
		seen[c.Name] = true
		if len(c.Runs) == 0 {
			return fmt.Errorf("condition %q has no runs", c.Name)
		}
		for j, r := range c.Runs {
			if r.Producer == "" || r.Consumer == "" {
				return fmt.Errorf("condition %q run %d needs both producer and consumer", c.Name, j+1)
			}
		}
	}
	return nil
}

func (d *Definition) resolve(base string) {
	for i := range d.Conditions {
		for j := range d.Conditions[i].Runs {
			r := &d.Conditions[i].Runs[j]
			r.Producer = resolvePath(base, r.Producer)
			r.Consumer = resolvePath(base, r.Consumer)
		}
	}
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
