package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	m, err := cfg.VelocityModel()
	require.NoError(t, err)
	assert.Equal(t, 100, m.NZ())
	assert.Equal(t, 4000.0, m.True.At(50, 10))
	assert.Equal(t, 3000.0, m.True.At(52, 10))
	assert.Equal(t, 3000.0, m.Background.At(50, 10))

	w, err := cfg.WaveConfig()
	require.NoError(t, err)
	assert.Equal(t, "FD4", w.Scheme.Name)
	assert.Len(t, cfg.Sources(), 100)
	assert.False(t, cfg.Store.Enabled(), "nothing is persisted by default")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[model]
nz = 60
nx = 40

[[model.layers]]
top = 10
bottom = 12
velocity = 3500

[[model.layers]]
top = 30
bottom = 33
velocity = 4500

[simulation]
scheme = "fd6"

[rtm]
normalize = true
retention = "store"

[store]
in_memory = true

[survey]
step = 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Model.NZ)
	assert.Equal(t, 24.0, cfg.Model.DX, "untouched keys keep their default")
	require.Len(t, cfg.Model.Layers, 2)
	assert.Equal(t, 4500.0, cfg.Model.Layers[1].Velocity)
	assert.Equal(t, "FD6", cfg.Simulation.Scheme)
	assert.True(t, cfg.RTMConfig().Normalize)
	assert.Equal(t, 10, cfg.RTMConfig().Stride)
	assert.Equal(t, []int{0, 10, 20, 30}, cfg.Sources())
	assert.True(t, cfg.Store.Enabled())
}

func TestLoadKeepsDefaultLayersWhenAbsent(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[kirchhoff]\naperture_deg = 45\n"))
	require.NoError(t, err)
	assert.Equal(t, Default().Model.Layers, cfg.Model.Layers)
	assert.Equal(t, 45.0, cfg.KirchhoffConfig(2).ApertureDeg)
	assert.Equal(t, 2, cfg.KirchhoffConfig(2).Workers)
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "[model]\ncolour = \"red\"\n",
		"bad scheme":      "[simulation]\nscheme = \"FD8\"\n",
		"zero velocity":   "[model]\nvelocity = 0\n",
		"inverted layer":  "[[model.layers]]\ntop = 20\nbottom = 10\nvelocity = 4000\n",
		"layer too deep":  "[[model.layers]]\ntop = 90\nbottom = 120\nvelocity = 4000\n",
		"source outside":  "[survey]\nsources = [3, 100]\n",
		"bad retention":   "[rtm]\nretention = \"tape\"\n",
		"aperture > 90":   "[kirchhoff]\naperture_deg = 120\n",
		"store no target": "[rtm]\nretention = \"store\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
