package engine

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/platform"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// DefaultConfigFile is read when -config is not given.
const DefaultConfigFile = "vkframe.toml"

type CaptureConfig struct {
	// Path of the image file, its extension selects the encoder. Empty or a
	// directory generates a name.
	Path string `toml:"path"`
	// Frame is the 1-based frame to capture, zero disables the capture.
	Frame uint64 `toml:"frame"`
}

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Demo selects the game to run.
	Demo string `toml:"demo"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"height"`
	// Backend is the window library, glfw or sdl.
	Backend string `toml:"backend"`
	// Samples is the requested MSAA sample count.
	Samples driver.SampleCount `toml:"samples"`
	// PresentMode overrides the default present mode precedence when
	// supported, e.g. FIFO.
	PresentMode string `toml:"present_mode"`
	Validation  bool   `toml:"validation"`
	LogLevel    string `toml:"log_level"`
	AssetsDir   string `toml:"assets_dir"`
	// Texture is the image asset sampled by the textured cube. Empty uses a
	// generated checkerboard.
	Texture string `toml:"texture"`
	// AcquireTimeoutMS bounds image acquisition, zero waits forever.
	AcquireTimeoutMS uint64        `toml:"acquire_timeout_ms"`
	ClearColor       [4]float32    `toml:"clear_color"`
	Capture          CaptureConfig `toml:"capture"`
}

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Name:        "vkframe",
		Demo:        "cube",
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		Backend:     platform.BackendGLFW,
		Samples:     1,
		LogLevel:    "info",
		AssetsDir:   "assets",
		ClearColor:  [4]float32{0.1, 0.1, 0.12, 1},
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file yields
// the defaults; an unreadable or malformed one is logged and ignored.
func LoadConfig(path string) *ApplicationConfig {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		core.LogDebug("no config file at %s, using defaults", path)
		return cfg
	}
	if err != nil {
		core.LogWarn("config %s unreadable, using defaults: %s", path, err)
		return cfg
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			core.LogWarn("config %s:%d:%d: %s, using defaults", path, row, col, derr)
		} else {
			core.LogWarn("config %s: %s, using defaults", path, err)
		}
		return DefaultConfig()
	}
	cfg.sanitize()
	return cfg
}

// ParseSampleCount accepts a power of two between 1 and 64. Anything else
// is logged and replaced by 1.
func ParseSampleCount(s string) driver.SampleCount {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || !driver.SampleCount(n).Valid() {
		core.LogWarn("invalid sample count %q, using 1", s)
		return 1
	}
	return driver.SampleCount(n)
}

// PreferredPresentMode returns the configured present mode, nil when none
// or an unknown one is set.
func (c *ApplicationConfig) PreferredPresentMode() *driver.PresentMode {
	if c.PresentMode == "" {
		return nil
	}
	m, ok := driver.ParsePresentMode(strings.ToUpper(c.PresentMode))
	if !ok {
		core.LogWarn("unknown present mode %q, using the default precedence", c.PresentMode)
		return nil
	}
	return &m
}

func (c *ApplicationConfig) sanitize() {
	if !c.Samples.Valid() {
		core.LogWarn("invalid sample count %d, using 1", c.Samples)
		c.Samples = 1
	}
	if c.StartWidth == 0 || c.StartHeight == 0 {
		core.LogWarn("invalid window size %dx%d, using defaults", c.StartWidth, c.StartHeight)
		d := DefaultConfig()
		c.StartWidth, c.StartHeight = d.StartWidth, d.StartHeight
	}
	if c.Name == "" {
		c.Name = DefaultConfig().Name
	}
	// asking for a file without a frame captures the first one
	if c.Capture.Path != "" && c.Capture.Frame == 0 {
		c.Capture.Frame = 1
	}
}

// ParseFlags builds the configuration from the command line: the file
// named by -config is loaded first, then every flag explicitly set
// overrides it.
func ParseFlags(name string, args []string) (*ApplicationConfig, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", DefaultConfigFile, "TOML configuration file")
	demo := fs.String("demo", "", "demo to run: triangle, cube or textured-cube")
	samples := fs.String("samples", "", "MSAA sample count")
	width := fs.Uint("width", 0, "window width")
	height := fs.Uint("height", 0, "window height")
	backend := fs.String("backend", "", "window backend: glfw or sdl")
	capturePath := fs.String("capture", "", "write the captured frame to this file")
	captureFrame := fs.Uint64("capture-frame", 0, "1-based frame to capture")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	validation := fs.Bool("validation", false, "enable the Vulkan validation layers")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}

	cfg := LoadConfig(*configPath)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "demo":
			cfg.Demo = *demo
		case "samples":
			cfg.Samples = ParseSampleCount(*samples)
		case "width":
			cfg.StartWidth = uint32(*width)
		case "height":
			cfg.StartHeight = uint32(*height)
		case "backend":
			cfg.Backend = *backend
		case "capture":
			cfg.Capture.Path = *capturePath
		case "capture-frame":
			cfg.Capture.Frame = *captureFrame
		case "log-level":
			cfg.LogLevel = *logLevel
		case "validation":
			cfg.Validation = *validation
		}
	})
	cfg.sanitize()
	return cfg, nil
}
