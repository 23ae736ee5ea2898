package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a named set of generation parameter overrides stored as YAML.
// Unset fields keep the value from the environment defaults.
//
// Example file:
//
//	model: flux-dev
//	size: auto
//	count: 4
//	guidance_scale: 6.5
type Preset struct {
	Model         *string  `yaml:"model"`
	Size          *string  `yaml:"size"`
	Count         *int     `yaml:"count"`
	GuidanceScale *float64 `yaml:"guidance_scale"`
	Steps         *int     `yaml:"steps"`
	Strength      *float64 `yaml:"strength"`
}

// LoadPreset reads and parses a preset file.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrPresetFile(path, err.Error())
	}

	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, ErrPresetFile(path, err.Error())
	}
	if p.Count != nil && (*p.Count < 1 || *p.Count > 20) {
		return nil, ErrPresetFile(path, fmt.Sprintf("count %d outside 1-20", *p.Count))
	}
	return &p, nil
}

// Apply returns defaults with the preset's set fields layered on top.
func (p *Preset) Apply(d GenerationDefaults) GenerationDefaults {
	if p == nil {
		return d
	}
	if p.Model != nil {
		d.Model = *p.Model
	}
	if p.Size != nil {
		d.Size = *p.Size
	}
	if p.Count != nil {
		d.Count = *p.Count
	}
	if p.GuidanceScale != nil {
		d.GuidanceScale = *p.GuidanceScale
	}
	if p.Steps != nil {
		d.Steps = *p.Steps
	}
	if p.Strength != nil {
		d.Strength = *p.Strength
	}
	return d
}
