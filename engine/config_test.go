package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vkframe.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigMissingFileGivesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
name = "cubes"
demo = "textured-cube"
width = 1920
height = 1080
backend = "sdl"
samples = 4
present_mode = "fifo"
clear_color = [0.0, 0.5, 1.0, 1.0]

[capture]
path = "out/frame.png"
`)
	cfg := LoadConfig(path)

	assert.Equal(t, "cubes", cfg.Name)
	assert.Equal(t, "textured-cube", cfg.Demo)
	assert.Equal(t, uint32(1920), cfg.StartWidth)
	assert.Equal(t, uint32(1080), cfg.StartHeight)
	assert.Equal(t, "sdl", cfg.Backend)
	assert.Equal(t, driver.SampleCount(4), cfg.Samples)
	assert.Equal(t, [4]float32{0, 0.5, 1, 1}, cfg.ClearColor)
	assert.Equal(t, "out/frame.png", cfg.Capture.Path)
	assert.Equal(t, uint64(1), cfg.Capture.Frame)
	assert.Equal(t, "assets", cfg.AssetsDir, "unset keys keep their default")

	mode := cfg.PreferredPresentMode()
	require.NotNil(t, mode)
	assert.Equal(t, driver.PresentModeFifo, *mode)
}

func TestLoadConfigMalformedFileGivesDefaults(t *testing.T) {
	cfg := LoadConfig(writeConfig(t, "width = \"wide\"\nname = [1,"))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigSanitizesValues(t *testing.T) {
	cfg := LoadConfig(writeConfig(t, "samples = 3\nwidth = 0\nname = \"\""))
	assert.Equal(t, driver.SampleCount(1), cfg.Samples)
	assert.Equal(t, DefaultConfig().StartWidth, cfg.StartWidth)
	assert.Equal(t, DefaultConfig().Name, cfg.Name)
}

func TestParseSampleCount(t *testing.T) {
	cases := map[string]driver.SampleCount{
		"1":   1,
		"4":   4,
		" 8 ": 8,
		"64":  64,
		"3":   1,
		"128": 1,
		"0":   1,
		"-4":  1,
		"x4":  1,
		"":    1,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSampleCount(in), "%q", in)
	}
}

func TestPreferredPresentModeUnknown(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, cfg.PreferredPresentMode())
	cfg.PresentMode = "vsync-ish"
	assert.Nil(t, cfg.PreferredPresentMode())
	cfg.PresentMode = "MAILBOX"
	assert.Equal(t, driver.PresentModeMailbox, *cfg.PreferredPresentMode())
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "demo = \"triangle\"\nsamples = 2\nwidth = 640\n")

	cfg, err := ParseFlags("vkframe", []string{"-config", path, "-samples", "banana", "-height", "480", "-capture", "shot.bmp", "-capture-frame", "5"})
	require.NoError(t, err)

	assert.Equal(t, "triangle", cfg.Demo)
	assert.Equal(t, driver.SampleCount(1), cfg.Samples, "malformed flag falls back to 1")
	assert.Equal(t, uint32(640), cfg.StartWidth)
	assert.Equal(t, uint32(480), cfg.StartHeight)
	assert.Equal(t, "shot.bmp", cfg.Capture.Path)
	assert.Equal(t, uint64(5), cfg.Capture.Frame)
}

func TestParseFlagsUnsetFlagsKeepFileValues(t *testing.T) {
	path := writeConfig(t, "samples = 8\nbackend = \"sdl\"\n")
	cfg, err := ParseFlags("vkframe", []string{"-config", path, "-demo", "cube"})
	require.NoError(t, err)
	assert.Equal(t, driver.SampleCount(8), cfg.Samples)
	assert.Equal(t, "sdl", cfg.Backend)
	assert.Equal(t, "cube", cfg.Demo)
}

func TestParseFlagsRejectsUnknownFlags(t *testing.T) {
	_, err := ParseFlags("vkframe", []string{"-bogus"})
	assert.Error(t, err)
}
