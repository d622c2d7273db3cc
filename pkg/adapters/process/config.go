package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessConfig declares one external command exposed to the model as a tool.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	// Parameters is the JSON schema advertised to the model.
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
}

// ConfigFile is the layout of tools.yaml.
type ConfigFile struct {
	Tools []ProcessConfig `yaml:"tools" json:"tools"`
}

// LoadTools reads a YAML or JSON tools file. A missing file yields no tools.
func LoadTools(path string) ([]ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	seen := make(map[string]bool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		switch {
		case t.Name == "":
			return nil, errors.New("tool without name")
		case t.Command == "":
			return nil, fmt.Errorf("tool %q has no command", t.Name)
		case seen[t.Name]:
			return nil, fmt.Errorf("tool %q declared twice", t.Name)
		}
		seen[t.Name] = true
	}
	return cfg.Tools, nil
}
