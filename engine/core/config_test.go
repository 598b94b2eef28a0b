package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesOriginalWindow(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Subsurface Scattering", cfg.Window.Title)
	assert.Equal(t, uint32(1600), cfg.Window.Width)
	assert.Equal(t, uint32(900), cfg.Window.Height)
	assert.Equal(t, uint32(2), cfg.Renderer.FramesInFlight)
	assert.Equal(t, float32(60), cfg.Camera.FovY)
	assert.Equal(t, float32(40), cfg.Light.FovY)
	assert.Equal(t, [3]float32{0, 0.3, 0}, cfg.Light.Target)
}

func TestParseConfigOverridesOnlyPresentKeys(t *testing.T) {
	cfg := DefaultConfig()
	doc := []byte(`
[renderer]
frames_in_flight = 3
shadow_cull = "none"

[shading]
radius = 0.2
`)
	require.NoError(t, ParseConfig(doc, cfg))

	assert.Equal(t, uint32(3), cfg.Renderer.FramesInFlight)
	assert.Equal(t, "none", cfg.Renderer.ShadowCull)
	assert.Equal(t, float32(0.2), cfg.Shading.Radius)
	// untouched
	assert.Equal(t, uint32(2048), cfg.Renderer.ShadowMapSize)
	assert.Equal(t, DefaultShadingConfig().Translucency, cfg.Shading.Translucency)
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"too many frames", "[renderer]\nframes_in_flight = 4\n"},
		{"zero frames", "[renderer]\nframes_in_flight = 0\n"},
		{"shadow size not power of two", "[renderer]\nshadow_map_size = 1000\n"},
		{"unknown cull", "[renderer]\nshadow_cull = \"front\"\n"},
		{"negative radius", "[shading]\nradius = -1.0\n"},
		{"unknown key", "[renderer]\nmsaa = 4\n"},
		{"near after far", "[camera]\nnear = 10.0\nfar = 1.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseConfig([]byte(tt.doc), DefaultConfig())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\ntitle = \"SSS\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "SSS", cfg.Window.Title)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseShadingIgnoresOtherTables(t *testing.T) {
	s, err := ParseShading([]byte("[window]\nwidth = 1\n[shading]\ntranslucency = 2.5\n"))
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), s.Translucency)
	assert.Equal(t, DefaultShadingConfig().Radius, s.Radius)
}
