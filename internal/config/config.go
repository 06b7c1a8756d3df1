// Package config loads the per-project configuration document of §3.2.
// It is grounded on the teacher's internal/config (yaml.v3-backed,
// Default()/Load() shape) generalized from the teacher's six-key
// schema to the full recognized-options table, and it changes the
// teacher's permissive yaml.Unmarshal behavior in one deliberate way:
// the distilled schema requires unknown top-level keys to be rejected
// rather than silently ignored, so Load decodes into a yaml.Node first
// and diffs its top-level mapping keys against the known set before
// decoding into the typed Config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

var knownTopLevelKeys = map[string]bool{
	"project_directory":  true,
	"project_key":        true,
	"hierarchy":          true,
	"types":              true,
	"workflows":          true,
	"initial_status":     true,
	"priorities":         true,
	"default_priority":   true,
	"status_colors":      true,
	"type_colors":        true,
	"virtual_projects":   true,
	"legacy_compat":      true,
	"assignee":           true,
	"legacy_type_aliases": true,
}

// Default returns the built-in default configuration used to fill in
// missing optional keys.
func Default() *model.Config {
	return &model.Config{
		ProjectDirectory: "project",
		ProjectKey:       "proj",
		Hierarchy:        []string{"epic", "story", "task"},
		Types:            []string{"bug", "chore"},
		Workflows: map[string]model.WorkflowTransitions{
			"default": {
				"open":        {"in_progress", "closed"},
				"in_progress": {"open", "closed"},
				"closed":      {"open"},
			},
		},
		InitialStatus:   "open",
		Priorities: map[int]model.Priority{
			0: {Name: "low"},
			1: {Name: "medium"},
			2: {Name: "high"},
		},
		DefaultPriority: 1,
		LegacyTypeAliases: map[string]string{
			"feature": "story",
			"message": "task",
		},
	}
}

// Load reads and parses the configuration document at path, rejecting
// unknown top-level keys and failing with configuration_error if any
// required key (per §6.2) is missing.
func Load(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, beaconerr.Wrap(beaconerr.ConfigurationError, err)
	}
	return Parse(data)
}

// Parse decodes data as a configuration document, applying the same
// strict-unknown-key and required-key checks as Load.
func Parse(data []byte) (*model.Config, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, beaconerr.Wrap(beaconerr.ConfigurationError, err)
	}
	if err := rejectUnknownKeys(&node); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, beaconerr.Wrap(beaconerr.ConfigurationError, err)
	}
	if err := requireKeys(data); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rejectUnknownKeys walks the parsed document's top-level mapping and
// fails on any key not in knownTopLevelKeys.
func rejectUnknownKeys(root *yaml.Node) error {
	if len(root.Content) == 0 {
		return nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return beaconerr.New(beaconerr.ConfigurationError, "configuration document must be a mapping")
	}
	for i := 0; i < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if !knownTopLevelKeys[key] {
			return beaconerr.Newf(beaconerr.ConfigurationError, "unrecognized configuration key %q", key)
		}
	}
	return nil
}

// requiredKeys lists the keys §6.2 calls out as required; their
// absence fails even though the typed default would otherwise fill a
// plausible-looking zero value.
var requiredKeys = []string{
	"project_directory", "project_key", "hierarchy", "workflows",
	"initial_status", "priorities", "default_priority",
}

func requireKeys(data []byte) error {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return beaconerr.Wrap(beaconerr.ConfigurationError, err)
	}
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return beaconerr.Newf(beaconerr.ConfigurationError, "missing required configuration key %q", key)
		}
	}
	if _, ok := raw["workflows"]; ok {
		var workflows map[string]model.WorkflowTransitions
		if err := yaml.Unmarshal(data, &struct {
			Workflows *map[string]model.WorkflowTransitions `yaml:"workflows"`
		}{&workflows}); err != nil {
			return beaconerr.Wrap(beaconerr.ConfigurationError, err)
		}
		if _, ok := workflows["default"]; !ok {
			return beaconerr.New(beaconerr.ConfigurationError, "missing required configuration key \"workflows.default\"")
		}
	}
	return nil
}

// Encode renders cfg back to YAML for writing to the marker file.
func Encode(cfg *model.Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, beaconerr.Wrap(beaconerr.ConfigurationError, fmt.Errorf("encoding configuration: %w", err))
	}
	return data, nil
}
