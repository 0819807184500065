package engine

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/platform"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver/fake"
	"github.com/spaghettifunk/vkframe/engine/renderer/frame"
)

type fakeDevice struct {
	*fake.Device
	surface   driver.Surface
	destroyed bool
}

func (d *fakeDevice) Surface() driver.Surface { return d.surface }
func (d *fakeDevice) Destroy()                { d.destroyed = true }

// scriptedWindow stays open for a number of pumps and runs the scripted
// step, if any, on each pump.
type scriptedWindow struct {
	bus           *core.EventBus
	input         *core.Input
	pumps         int
	open          int
	width, height uint32
	steps         map[int]func(w *scriptedWindow)
	until         func() bool
	destroyed     bool
}

func (w *scriptedWindow) ProcAddr() unsafe.Pointer                   { return nil }
func (w *scriptedWindow) RequiredExtensions() []string               { return nil }
func (w *scriptedWindow) CreateSurface(interface{}) (uintptr, error) { return 1, nil }
func (w *scriptedWindow) DrawableSize() (uint32, uint32)             { return w.width, w.height }
func (w *scriptedWindow) ShouldClose() bool                          { return w.pumps > w.open }
func (w *scriptedWindow) Input() *core.Input                         { return w.input }
func (w *scriptedWindow) Destroy()                                   { w.destroyed = true }

func (w *scriptedWindow) PumpMessages() bool {
	w.pumps++
	if step, ok := w.steps[w.pumps]; ok {
		step(w)
	}
	if w.until != nil {
		if w.until() {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return !w.ShouldClose()
}

func (w *scriptedWindow) fire(code core.SystemEventCode, u32 ...uint32) {
	ctx := core.EventContext{}
	copy(ctx.Data.U32[:], u32)
	w.bus.Fire(code, w, ctx)
}

type testGame struct {
	resizes  []frame.SurfaceInfo
	frames   int
	changed  []string
	buffer   driver.Buffer
	shutdown bool
	dev      driver.Device
}

func (tg *testGame) game(cfg *ApplicationConfig) *Game {
	return &Game{
		ApplicationConfig: cfg,
		FnInitialize: func(ctx *Context) error {
			tg.dev = ctx.Device
			b, err := ctx.Device.CreateBuffer(driver.BufferDesc{Size: 64, Usage: driver.BufferUniform, HostVisible: true}, nil)
			tg.buffer = b
			return err
		},
		FnOnResize: func(info frame.SurfaceInfo) error {
			tg.resizes = append(tg.resizes, info)
			return nil
		},
		FnUpdate: func(cb driver.CommandBuffer, slot uint32, delta float64) error {
			tg.frames++
			return nil
		},
		FnRender: func(cb driver.CommandBuffer, slot uint32) error {
			tg.dev.CmdDraw(cb, 3)
			return nil
		},
		FnAssetChanged: func(name string) error {
			tg.changed = append(tg.changed, name)
			return nil
		},
		FnShutdown: func() error {
			tg.shutdown = true
			tg.dev.DestroyBuffer(tg.buffer)
			return nil
		},
	}
}

type harness struct {
	engine *Engine
	window *scriptedWindow
	dev    *fakeDevice
	game   *testGame
}

func newHarness(t *testing.T, cfg *ApplicationConfig, win *scriptedWindow) *harness {
	t.Helper()
	if cfg.AssetsDir == DefaultConfig().AssetsDir {
		cfg.AssetsDir = t.TempDir()
	}
	h := &harness{window: win, game: &testGame{}}
	h.dev = &fakeDevice{Device: fake.New(fake.DefaultConfig())}
	h.dev.surface = h.dev.NewSurface()
	if win.width == 0 && win.height == 0 {
		win.width, win.height = 800, 600
	}
	win.input = core.NewInput()

	e, err := New(h.game.game(cfg))
	require.NoError(t, err)
	e.openWindow = func(_ *ApplicationConfig, bus *core.EventBus) (platform.Window, error) {
		win.bus = bus
		return win, nil
	}
	e.openDevice = func(*ApplicationConfig, platform.Window) (Device, error) {
		return h.dev, nil
	}
	h.engine = e
	return h
}

func TestEngineRunsUntilWindowCloses(t *testing.T) {
	h := newHarness(t, DefaultConfig(), &scriptedWindow{open: 5})
	require.NoError(t, h.engine.Initialize())
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 5, h.game.frames)
	require.Len(t, h.game.resizes, 1)
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, h.game.resizes[0].Extent)
	assert.Equal(t, 5, h.dev.Count("present"))

	require.NoError(t, h.engine.Shutdown())
	assert.True(t, h.game.shutdown)
	assert.True(t, h.dev.destroyed)
	assert.True(t, h.window.destroyed)
	assert.Zero(t, h.dev.Live())
	assert.Empty(t, h.dev.Violations())
}

func TestEngineEscapeQuits(t *testing.T) {
	win := &scriptedWindow{open: 100, steps: map[int]func(*scriptedWindow){
		3: func(w *scriptedWindow) { w.fire(core.EVENT_CODE_KEY_PRESSED, uint32(core.KEY_ESCAPE)) },
	}}
	h := newHarness(t, DefaultConfig(), win)
	require.NoError(t, h.engine.Initialize())
	defer h.engine.Shutdown()

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 3, h.game.frames, "the frame of the pump that saw the key still renders")
}

func TestEngineResizeRecreatesSwapchain(t *testing.T) {
	var h *harness
	win := &scriptedWindow{open: 6, steps: map[int]func(*scriptedWindow){
		3: func(w *scriptedWindow) {
			caps := fake.DefaultConfig().Capabilities
			caps.CurrentExtent = driver.Extent{Width: 1024, Height: 768}
			h.dev.SetCapabilities(caps)
			w.width, w.height = 1024, 768
			w.fire(core.EVENT_CODE_RESIZED, 1024, 768)
		},
	}}
	h = newHarness(t, DefaultConfig(), win)
	require.NoError(t, h.engine.Initialize())
	defer h.engine.Shutdown()

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 1, h.engine.swapchain.Recreations())
	assert.Equal(t, driver.Extent{Width: 1024, Height: 768}, h.engine.swapchain.Extent())
	w, ht := h.engine.GetFramebufferSize()
	assert.Equal(t, [2]uint32{1024, 768}, [2]uint32{w, ht})
	require.Len(t, h.game.resizes, 2)
	assert.InDelta(t, 4.0/3.0, h.game.resizes[1].Aspect, 1e-6)
	assert.Empty(t, h.dev.Violations())
}

func TestEngineMinimizedWindowRendersNothing(t *testing.T) {
	win := &scriptedWindow{open: 6, steps: map[int]func(*scriptedWindow){
		2: func(w *scriptedWindow) {
			w.width, w.height = 0, 0
			w.fire(core.EVENT_CODE_RESIZED, 0, 0)
		},
		5: func(w *scriptedWindow) {
			w.width, w.height = 800, 600
			w.fire(core.EVENT_CODE_RESIZED, 800, 600)
		},
	}}
	h := newHarness(t, DefaultConfig(), win)
	require.NoError(t, h.engine.Initialize())
	defer h.engine.Shutdown()

	require.NoError(t, h.engine.Run(context.Background()))
	// pumps 2, 3 and 4 see an empty drawable
	assert.Equal(t, 3, h.game.frames)
	assert.Empty(t, h.dev.Violations())
}

func TestEngineCapturesFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capture = CaptureConfig{Path: filepath.Join(t.TempDir(), "frame.png"), Frame: 2}
	h := newHarness(t, cfg, &scriptedWindow{open: 3})
	require.NoError(t, h.engine.Initialize())
	defer h.engine.Shutdown()
	require.NoError(t, h.engine.Run(context.Background()))

	f, err := os.Open(cfg.Capture.Path)
	require.NoError(t, err)
	defer f.Close()
	pc, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 800, pc.Width)
	assert.Equal(t, 600, pc.Height)
	assert.Equal(t, 1, h.dev.Count("readImage"))
}

func TestEngineForwardsAssetChanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetsDir = t.TempDir()
	shader := filepath.Join(cfg.AssetsDir, "tri.vert.spv")
	require.NoError(t, os.WriteFile(shader, []byte{3, 2, 0x23, 7}, 0o644))

	var h *harness
	win := &scriptedWindow{open: 1 << 20, steps: map[int]func(*scriptedWindow){
		2: func(*scriptedWindow) {
			require.NoError(t, os.WriteFile(shader, []byte{3, 2, 0x23, 7, 0, 0, 0, 0}, 0o644))
		},
	}}
	deadline := time.Now().Add(5 * time.Second)
	win.until = func() bool { return len(h.game.changed) > 0 || time.Now().After(deadline) }
	h = newHarness(t, cfg, win)
	require.NoError(t, h.engine.Initialize())
	defer h.engine.Shutdown()

	require.NoError(t, h.engine.Run(context.Background()))
	require.NotEmpty(t, h.game.changed)
	assert.Equal(t, "tri.vert.spv", h.game.changed[0])
}

func TestEngineContextCancelStopsRun(t *testing.T) {
	h := newHarness(t, DefaultConfig(), &scriptedWindow{open: 1 << 20})
	require.NoError(t, h.engine.Initialize())
	defer h.engine.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	h.window.steps = map[int]func(*scriptedWindow){4: func(*scriptedWindow) { cancel() }}
	require.NoError(t, h.engine.Run(ctx))
	assert.Equal(t, 4, h.game.frames)
}

func TestEngineInitializeFailureShutsDownCleanly(t *testing.T) {
	h := newHarness(t, DefaultConfig(), &scriptedWindow{open: 1})
	boom := errors.New("no vulkan")
	h.engine.openDevice = func(*ApplicationConfig, platform.Window) (Device, error) { return nil, boom }

	assert.ErrorIs(t, h.engine.Initialize(), boom)
	assert.Error(t, h.engine.Run(context.Background()))
	assert.NoError(t, h.engine.Shutdown())
	assert.True(t, h.window.destroyed)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(&Game{})
	assert.Error(t, err)
}
