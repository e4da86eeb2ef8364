package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Interpreter describes an external program that reads a script on stdin.
type Interpreter struct {
	Name        string            `yaml:"name" json:"name" mapstructure:"name"`
	Command     string            `yaml:"command" json:"command" mapstructure:"command"`
	Args        []string          `yaml:"args" json:"args" mapstructure:"args"`
	Environment map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	Description string            `yaml:"description" json:"description" mapstructure:"description"`
}

// ConfigFile represents the structure of interpreters.yaml.
type ConfigFile struct {
	Interpreters []Interpreter `yaml:"interpreters" json:"interpreters"`
}

// LoadInterpreters reads a configuration file (YAML or JSON) and returns a
// map of interpreter names to definitions. A missing file yields an empty map.
func LoadInterpreters(path string) (map[string]Interpreter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Interpreter{}, nil
		}
		return nil, fmt.Errorf("failed to read interpreters config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	interps := make(map[string]Interpreter)
	for _, it := range cfg.Interpreters {
		if it.Name == "" || it.Command == "" {
			continue
		}
		interps[it.Name] = it
	}
	return interps, nil
}
