package model

import "beacon/internal/beaconerr"

// Priority describes one entry of the configured priority mapping.
type Priority struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// WorkflowTransitions maps a status to the set of statuses it may move to.
type WorkflowTransitions map[string][]string

// VirtualProject is one additional project root composed into queries
// under its own label.
type VirtualProject struct {
	Label string `yaml:"label" json:"label"`
	Path  string `yaml:"path" json:"path"`
}

// Config is the fully-parsed per-project configuration document. Field
// names mirror the recognized options table; yaml tags match the
// on-disk keys exactly, since unknown top-level keys must be rejected
// at load time rather than silently accepted here.
type Config struct {
	ProjectDirectory string                         `yaml:"project_directory" json:"project_directory"`
	ProjectKey       string                         `yaml:"project_key" json:"project_key"`
	Hierarchy        []string                       `yaml:"hierarchy" json:"hierarchy"`
	Types            []string                       `yaml:"types,omitempty" json:"types,omitempty"`
	Workflows        map[string]WorkflowTransitions `yaml:"workflows" json:"workflows"`
	InitialStatus    string                         `yaml:"initial_status" json:"initial_status"`
	Priorities       map[int]Priority               `yaml:"priorities" json:"priorities"`
	DefaultPriority  int                            `yaml:"default_priority" json:"default_priority"`
	StatusColors     map[string]string              `yaml:"status_colors,omitempty" json:"status_colors,omitempty"`
	TypeColors       map[string]string              `yaml:"type_colors,omitempty" json:"type_colors,omitempty"`
	VirtualProjects  []VirtualProject               `yaml:"virtual_projects,omitempty" json:"virtual_projects,omitempty"`
	LegacyCompat     bool                           `yaml:"legacy_compat,omitempty" json:"legacy_compat,omitempty"`
	Assignee         string                         `yaml:"assignee,omitempty" json:"assignee,omitempty"`

	// LegacyTypeAliases maps a legacy-format type name to the
	// hierarchical or non-hierarchical type it migrates to. It is not
	// part of the distilled schema's recognized-options table; it
	// supplements it so the default alias table the legacy migrator
	// needs is configurable rather than hardcoded.
	LegacyTypeAliases map[string]string `yaml:"legacy_type_aliases,omitempty" json:"legacy_type_aliases,omitempty"`
}

// AllowedColors is the enumerated palette that status_colors and
// type_colors values must be drawn from.
var AllowedColors = map[string]bool{
	"red": true, "orange": true, "yellow": true, "green": true,
	"blue": true, "purple": true, "gray": true, "grey": true,
	"cyan": true, "magenta": true, "black": true, "white": true,
}

// HierarchyParent returns the type that may parent childType according
// to the ordered hierarchy, or "" if childType is the root of the
// hierarchy.
func (c *Config) HierarchyParent(childType string) string {
	for i, t := range c.Hierarchy {
		if t == childType {
			if i == 0 {
				return ""
			}
			return c.Hierarchy[i-1]
		}
	}
	return ""
}

// IsHierarchical reports whether issueType is one of the ordered
// hierarchy types rather than a non-hierarchical type.
func (c *Config) IsHierarchical(issueType string) bool {
	for _, t := range c.Hierarchy {
		if t == issueType {
			return true
		}
	}
	return false
}

// AllowsParent reports whether an issue of childType may have parentType
// as its parent, per the hierarchy/types rules of §3.2.
func (c *Config) AllowsParent(parentType, childType string) bool {
	if c.IsHierarchical(childType) {
		return c.HierarchyParent(childType) == parentType
	}
	// Non-hierarchical types may be parented by any hierarchy type
	// except the leaf (the last entry).
	for i, t := range c.Hierarchy {
		if t == parentType {
			return i < len(c.Hierarchy)-1
		}
	}
	return false
}

// Validate checks the invariants listed in §3.2: hierarchy non-empty, no
// duplicate type names, a default workflow present, default_priority
// resolvable, and color values restricted to the allowed palette.
func (c *Config) Validate() error {
	if len(c.Hierarchy) == 0 {
		return beaconerr.New(beaconerr.ConfigurationError, "hierarchy must be non-empty")
	}
	seen := map[string]bool{}
	for _, t := range append(append([]string{}, c.Hierarchy...), c.Types...) {
		if seen[t] {
			return beaconerr.Newf(beaconerr.ConfigurationError, "duplicate issue type %q across hierarchy and types", t)
		}
		seen[t] = true
	}
	if _, ok := c.Workflows["default"]; !ok {
		return beaconerr.New(beaconerr.ConfigurationError, "workflows must define a \"default\" workflow")
	}
	if _, ok := c.Workflows["default"][c.InitialStatus]; !ok {
		return beaconerr.Newf(beaconerr.ConfigurationError, "initial_status %q must appear in the default workflow", c.InitialStatus)
	}
	if _, ok := c.Priorities[c.DefaultPriority]; !ok {
		return beaconerr.Newf(beaconerr.ConfigurationError, "default_priority %d must be a key in priorities", c.DefaultPriority)
	}
	for name, color := range c.StatusColors {
		if !AllowedColors[color] {
			return beaconerr.Newf(beaconerr.ConfigurationError, "status_colors[%q]: unrecognized color %q", name, color)
		}
	}
	for name, color := range c.TypeColors {
		if !AllowedColors[color] {
			return beaconerr.Newf(beaconerr.ConfigurationError, "type_colors[%q]: unrecognized color %q", name, color)
		}
	}
	seenLabels := map[string]bool{c.ProjectKey: true}
	for _, vp := range c.VirtualProjects {
		if seenLabels[vp.Label] {
			return beaconerr.Newf(beaconerr.ConfigurationError, "virtual project label %q is not unique", vp.Label)
		}
		seenLabels[vp.Label] = true
	}
	return nil
}
