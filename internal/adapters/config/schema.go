package config

import (
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Pipelinefile represents the structure of a petal.yaml file.
type Pipelinefile struct {
	Name     string                 `yaml:"name"`
	On       map[string]*TriggerDTO `yaml:"on"`
	Defaults DefaultsDTO            `yaml:"defaults"`
	Env      ScalarMap              `yaml:"env"`
	Steps    []*StepDTO             `yaml:"steps"`
}

// TriggerDTO filters an event by branch. A null trigger matches every branch.
type TriggerDTO struct {
	Branches []string `yaml:"branches"`
}

// DefaultsDTO holds settings shared by every run step.
type DefaultsDTO struct {
	Shell            ShellDTO `yaml:"shell"`
	WorkingDirectory string   `yaml:"working-directory"`
}

// StepDTO represents a step definition in the pipeline file.
type StepDTO struct {
	ID               string     `yaml:"id"`
	Name             string     `yaml:"name"`
	Uses             string     `yaml:"uses"`
	Run              string     `yaml:"run"`
	Branch           *BranchDTO `yaml:"branch"`
	With             ScalarMap  `yaml:"with"`
	Env              ScalarMap  `yaml:"env"`
	ContinueOnError  bool       `yaml:"continue-on-error"`
	TimeoutMinutes   float64    `yaml:"timeout-minutes"`
	WorkingDirectory string     `yaml:"working-directory"`
	Shell            ShellDTO   `yaml:"shell"`
}

// BranchDTO represents the create-or-update conditional.
type BranchDTO struct {
	Exists string `yaml:"exists"`
	Then   string `yaml:"then"`
	Else   string `yaml:"else"`
}

// ScalarMap decodes a mapping of scalars keeping each value's source text,
// so `python-version: 3.10` stays "3.10" and `true` stays "true".
type ScalarMap map[string]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *ScalarMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return zerr.With(zerr.New("expected a mapping"), "line", node.Line)
	}

	out := make(ScalarMap, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return zerr.With(zerr.New("expected a scalar value"), "key", key.Value)
		}
		if value.ShortTag() == "!!null" {
			out[key.Value] = ""
			continue
		}
		out[key.Value] = value.Value
	}
	*m = out
	return nil
}

// ShellDTO accepts either a command line ("bash -el -c") or an argv list.
type ShellDTO []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *ShellDTO) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = strings.Fields(node.Value)
		return nil
	case yaml.SequenceNode:
		var argv []string
		if err := node.Decode(&argv); err != nil {
			return err
		}
		*s = argv
		return nil
	default:
		return zerr.With(zerr.New("shell must be a string or a list"), "line", node.Line)
	}
}
