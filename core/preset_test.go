package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePreset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadPreset_Apply(t *testing.T) {
	path := writePreset(t, "model: flux-dev\nsize: auto\ncount: 4\nguidance_scale: 6.5\n")

	p, err := LoadPreset(path)
	require.NoError(t, err)

	base := GenerationDefaults{Model: "dall-e-3", Size: "1024x1024", Count: 1, GuidanceScale: 7.5, Steps: 30, Strength: 0.8}
	got := p.Apply(base)

	assert.Equal(t, "flux-dev", got.Model)
	assert.Equal(t, "auto", got.Size)
	assert.Equal(t, 4, got.Count)
	assert.InDelta(t, 6.5, got.GuidanceScale, 1e-9)
	assert.Equal(t, 30, got.Steps, "unset fields keep defaults")
	assert.InDelta(t, 0.8, got.Strength, 1e-9)
}

func TestLoadPreset_Errors(t *testing.T) {
	_, err := LoadPreset(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, ErrCodePresetFile, GetErrorCode(err))

	_, err = LoadPreset(writePreset(t, "count: [1, 2"))
	assert.Equal(t, ErrCodePresetFile, GetErrorCode(err))

	_, err = LoadPreset(writePreset(t, "count: 25\n"))
	assert.Equal(t, ErrCodePresetFile, GetErrorCode(err))
}

func TestPreset_ApplyNil(t *testing.T) {
	var p *Preset
	base := GenerationDefaults{Model: "m"}
	assert.Equal(t, base, p.Apply(base))
}
