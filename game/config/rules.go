package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/parcel-run/game/engine"
)

// RulesFile is the on-disk shape of rules.yaml
type RulesFile struct {
	Symbols struct {
		Start       string `yaml:"start"`
		Wall        string `yaml:"wall"`
		Destination string `yaml:"destination"`
		Road        string `yaml:"road"`
	} `yaml:"symbols"`
	Costs struct {
		DefaultMove int `yaml:"default_move"`
		Hint        int `yaml:"hint"`
	} `yaml:"costs"`
}

// LoadRules reads rules from a YAML file. Fields left out keep their defaults.
func LoadRules(path string) (*engine.Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(raw)
}

// ParseRules decodes and validates a rules document
func ParseRules(raw []byte) (*engine.Rules, error) {
	var f RulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("rules.yaml: %w", err)
	}

	rules := engine.DefaultRules()
	symbols := []struct {
		name string
		val  string
		dst  *byte
	}{
		{"start", f.Symbols.Start, &rules.Start},
		{"wall", f.Symbols.Wall, &rules.Wall},
		{"destination", f.Symbols.Destination, &rules.Destination},
		{"road", f.Symbols.Road, &rules.Road},
	}
	for _, s := range symbols {
		if s.val == "" {
			continue
		}
		if len(s.val) != 1 {
			return nil, fmt.Errorf("rules.yaml: %s symbol must be a single character, got %q", s.name, s.val)
		}
		*s.dst = s.val[0]
	}
	if f.Costs.DefaultMove != 0 {
		rules.DefaultMoveCost = f.Costs.DefaultMove
	}
	if f.Costs.Hint != 0 {
		rules.HintCost = f.Costs.Hint
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}
