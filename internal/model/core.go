package model

import (
	"gopkg.in/yaml.v3"

	"go-migrate-pipeline/internal/errors"
)

// MigrationDefinition is one declarative migration as written in a YAML file.
type MigrationDefinition struct {
	ID           string                 `yaml:"id" json:"id"`
	Label        string                 `yaml:"label" json:"label"`
	Group        string                 `yaml:"migration_group" json:"migration_group,omitempty"`
	Tags         []string               `yaml:"migration_tags" json:"migration_tags,omitempty"`
	Dependencies Dependencies           `yaml:"migration_dependencies" json:"migration_dependencies"`
	Source       map[string]interface{} `yaml:"source" json:"source"`
	Process      ProcessMap             `yaml:"process" json:"process"`
	Destination  map[string]interface{} `yaml:"destination" json:"destination"`
	File         string                 `yaml:"-" json:"file,omitempty"`
}

// Dependencies lists migrations that must (required) or should (optional)
// run before this one.
type Dependencies struct {
	Required []string `yaml:"required" json:"required"`
	Optional []string `yaml:"optional" json:"optional"`
}

// SourcePlugin returns the source plugin id.
func (d *MigrationDefinition) SourcePlugin() string {
	s, _ := d.Source["plugin"].(string)
	return s
}

// DestinationPlugin returns the destination plugin id.
func (d *MigrationDefinition) DestinationPlugin() string {
	s, _ := d.Destination["plugin"].(string)
	return s
}

// ProcessStep is one process plugin invocation. Config carries every key of
// the step, including "plugin" and the optional "source".
type ProcessStep struct {
	Plugin string                 `json:"plugin"`
	Config map[string]interface{} `json:"config"`
}

// FieldProcess is the plugin chain of one destination field.
type FieldProcess struct {
	Destination string        `json:"destination"`
	Steps       []ProcessStep `json:"steps"`
}

// ProcessMap keeps destination fields in the order they were declared.
type ProcessMap []FieldProcess

// UnmarshalYAML accepts the three shapes a field may take:
//
//	title: source_title            # shorthand for a single get
//	name: {plugin: trim, source: n}
//	mail: [{plugin: get, source: m}, {plugin: lowercase}]
func (p *ProcessMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.InvalidConfig("line %d: process must be a mapping of destination fields", node.Line)
	}

	out := make(ProcessMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		steps, err := decodeSteps(value)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "process field %q", key.Value), errors.ErrInvalidConfig)
		}
		out = append(out, FieldProcess{Destination: key.Value, Steps: steps})
	}

	*p = out
	return nil
}

func decodeSteps(node *yaml.Node) ([]ProcessStep, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []ProcessStep{{
			Plugin: "get",
			Config: map[string]interface{}{"plugin": "get", "source": node.Value},
		}}, nil
	case yaml.MappingNode:
		step, err := decodeStep(node)
		if err != nil {
			return nil, err
		}
		return []ProcessStep{step}, nil
	case yaml.SequenceNode:
		steps := make([]ProcessStep, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode {
				return nil, errors.InvalidConfig("line %d: each step must be a mapping", item.Line)
			}
			step, err := decodeStep(item)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
		}
		return steps, nil
	}
	return nil, errors.InvalidConfig("line %d: unsupported process value", node.Line)
}

func decodeStep(node *yaml.Node) (ProcessStep, error) {
	cfg := map[string]interface{}{}
	if err := node.Decode(&cfg); err != nil {
		return ProcessStep{}, err
	}
	name, _ := cfg["plugin"].(string)
	return ProcessStep{Plugin: name, Config: cfg}, nil
}
