package simulation

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Parameter types understood by the prompts and Parse
const (
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeString   = "string"
	TypeBoolean  = "boolean"
	TypeDuration = "duration"
	TypeList     = "list"
)

// Definition is the scenario description loaded from simulation.yaml
type Definition struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Version     string      `yaml:"version"`
	Category    string      `yaml:"category"`
	Parameters  []Parameter `yaml:"parameters"`
}

// Parameter defines a configurable parameter of a scenario
type Parameter struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"` // integer, float, string, duration, boolean, list
	Description string      `yaml:"description"`
	Default     interface{} `yaml:"default"`
	Required    bool        `yaml:"required"`
	Min         interface{} `yaml:"min,omitempty"`
	Max         interface{} `yaml:"max,omitempty"`
	Options     []string    `yaml:"options,omitempty"` // For string enums
}

// LoadDefinition reads a simulation.yaml file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse simulation definition: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("simulation definition %s has no name", path)
	}
	for _, p := range def.Parameters {
		if err := p.validType(); err != nil {
			return nil, err
		}
	}
	return &def, nil
}

// Defaults returns the default value of every parameter that has one
func (d *Definition) Defaults() map[string]interface{} {
	out := make(map[string]interface{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Parameter looks up a parameter by name
func (d *Definition) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

func (p Parameter) validType() error {
	switch p.Type {
	case TypeInteger, TypeFloat, TypeString, TypeBoolean, TypeDuration, TypeList:
		return nil
	}
	return fmt.Errorf("parameter %s has unsupported type %q", p.Name, p.Type)
}

// Parse converts text input into the parameter's type and checks its
// range and options
func (p Parameter) Parse(value string) (interface{}, error) {
	value = strings.TrimSpace(value)
	switch p.Type {
	case TypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid integer: %w", err)
		}
		return n, p.CheckRange(float64(n))
	case TypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %w", err)
		}
		return f, p.CheckRange(f)
	case TypeString:
		if len(p.Options) > 0 && !contains(p.Options, value) {
			return nil, fmt.Errorf("value must be one of %s", strings.Join(p.Options, ", "))
		}
		return value, nil
	case TypeBoolean:
		return strconv.ParseBool(value)
	case TypeDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid duration format (use formats like 5m, 1h30m, 30s)")
		}
		return d, nil
	case TypeList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item == "" {
				continue
			}
			if len(p.Options) > 0 && !contains(p.Options, item) {
				return nil, fmt.Errorf("%s is not one of %s", item, strings.Join(p.Options, ", "))
			}
			items = append(items, item)
		}
		return items, nil
	}
	return nil, p.validType()
}

// CheckRange enforces Min and Max for numeric parameters
func (p Parameter) CheckRange(v float64) error {
	if p.Min != nil {
		if minRange, ok := toFloat64(p.Min); ok && v < minRange {
			return fmt.Errorf("value must be at least %g", minRange)
		}
	}
	if p.Max != nil {
		if maxRange, ok := toFloat64(p.Max); ok && v > maxRange {
			return fmt.Errorf("value must be at most %g", maxRange)
		}
	}
	return nil
}

// DefaultString renders the default for a text prompt
func (p Parameter) DefaultString() string {
	switch v := p.Default.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	case float64:
		if p.Type == TypeInteger {
			return strconv.Itoa(int(v))
		}
	}
	return fmt.Sprintf("%v", p.Default)
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	}
	return 0, false
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
