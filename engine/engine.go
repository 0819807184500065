package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/vkframe/engine/assets"
	"github.com/spaghettifunk/vkframe/engine/capture"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/platform"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/frame"
	"github.com/spaghettifunk/vkframe/engine/renderer/swapchain"
	"github.com/spaghettifunk/vkframe/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Device is a driver.Device bound to the surface of one window.
type Device interface {
	driver.Device
	Surface() driver.Surface
	Destroy()
}

type (
	windowOpener func(cfg *ApplicationConfig, bus *core.EventBus) (platform.Window, error)
	deviceOpener func(cfg *ApplicationConfig, win platform.Window) (Device, error)
)

func openWindow(cfg *ApplicationConfig, bus *core.EventBus) (platform.Window, error) {
	return platform.New(cfg.Backend, platform.WindowConfig{
		Title:  cfg.Name,
		X:      cfg.StartPosX,
		Y:      cfg.StartPosY,
		Width:  cfg.StartWidth,
		Height: cfg.StartHeight,
	}, bus)
}

func openDevice(cfg *ApplicationConfig, win platform.Window) (Device, error) {
	backend, err := vulkan.New(vulkan.Config{
		ApplicationName: cfg.Name,
		Validation:      cfg.Validation,
	}, win)
	if err != nil {
		return nil, err
	}
	return backend, nil
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig
	runID        uuid.UUID

	events       *core.EventBus
	window       platform.Window
	assetManager *assets.AssetManager
	device       Device
	swapchain    *swapchain.Manager
	loop         *frame.Loop

	width  uint32
	height uint32
	cancel context.CancelFunc

	openWindow windowOpener
	openDevice deviceOpener
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, errors.New("game without application config")
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.ApplicationConfig,
		runID:        uuid.New(),
		events:       core.NewEventBus(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
		openWindow:   openWindow,
		openDevice:   openDevice,
	}, nil
}

// Initialize opens the window and the device, builds the swapchain, lets
// the game create its resources and prepares the frame loop. Shutdown
// releases whatever was created, also after a failed Initialize.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting
	cfg := e.config
	if cfg.LogLevel != "" {
		core.SetLogLevel(cfg.LogLevel)
	}
	core.LogInfo("%s run %s, demo %s", cfg.Name, e.runID, cfg.Demo)

	// register some events
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	window, err := e.openWindow(cfg, e.events)
	if err != nil {
		return errors.Wrap(err, "open window")
	}
	e.window = window
	e.width, e.height = window.DrawableSize()

	am, err := assets.NewAssetManager()
	if err != nil {
		return err
	}
	e.assetManager = am
	if err := am.Initialize(cfg.AssetsDir); err != nil {
		return err
	}

	e.currentStage = EngineStageInitializing
	dev, err := e.openDevice(cfg, window)
	if err != nil {
		return errors.Wrap(err, "open device")
	}
	e.device = dev

	e.swapchain = swapchain.New(dev, swapchain.Config{
		Width:          e.width,
		Height:         e.height,
		Samples:        cfg.Samples,
		PresentMode:    cfg.PreferredPresentMode(),
		AcquireTimeout: e.acquireTimeout(),
		Readback:       cfg.Capture.Frame > 0,
	})
	if err := e.swapchain.Initialize(dev.Surface()); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(&Context{
			Config:    cfg,
			Device:    dev,
			Swapchain: e.swapchain,
			Assets:    am,
			Events:    e.events,
			Input:     window.Input(),
		}); err != nil {
			return errors.Wrap(err, "initialize game")
		}
	}

	opts := frame.Options{
		ClearColor:     cfg.ClearColor,
		ClearDepth:     1,
		AcquireTimeout: e.acquireTimeout(),
		BeforeFrame:    e.beforeFrame,
	}
	if cfg.Capture.Frame > 0 {
		opts.Capture = &frame.Capture{
			Frame: cfg.Capture.Frame,
			Sink:  capture.Sink(capture.Resolve(cfg.Capture.Path)),
		}
	}
	loop, err := frame.New(dev, e.swapchain, e.gameInstance, opts)
	if err != nil {
		return err
	}
	e.loop = loop

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) acquireTimeout() uint64 {
	if e.config.AcquireTimeoutMS == 0 {
		return driver.Infinite
	}
	return e.config.AcquireTimeoutMS * uint64(time.Millisecond)
}

// Run renders until the window closes, a quit event fires or ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.Newf("run in stage %d", e.currentStage)
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	e.currentStage = EngineStageRunning
	err := e.loop.Run(ctx, e.window)
	m := e.loop.Metrics()
	core.LogInfo("%d frames, %d skipped, %.1f fps, %d swapchain recreations",
		e.loop.FrameCount(), e.loop.Skipped(), m.FPS(), e.swapchain.Recreations())
	return err
}

func (e *Engine) beforeFrame() error {
	for _, name := range e.assetManager.Poll() {
		ctx := core.EventContext{}
		ctx.Data.S = name
		e.events.Fire(core.EVENT_CODE_ASSET_CHANGED, e, ctx)
	}
	return nil
}

// Shutdown tears everything down in reverse creation order.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs error
	if e.loop != nil {
		e.loop.Close()
		e.loop = nil
	}
	if e.device != nil {
		if err := e.device.WaitIdle(); err != nil {
			core.LogError("wait idle before shutdown: %v", err)
		}
		if e.gameInstance.FnShutdown != nil {
			errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown())
		}
	}
	if e.swapchain != nil {
		e.swapchain.Destroy()
		e.swapchain = nil
	}
	if e.device != nil {
		e.device.Destroy()
		e.device = nil
	}
	if e.assetManager != nil {
		errs = errors.CombineErrors(errs, e.assetManager.Close())
		e.assetManager = nil
	}
	if e.window != nil {
		e.window.Destroy()
		e.window = nil
	}
	e.events.Shutdown()
	e.currentStage = EngineStageUninitialized
	return errs
}

// GetFramebufferSize returns the width and height (in this order) of the
// last drawable size reported by the window.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		if e.cancel != nil {
			e.cancel()
		}
	}
	// other listeners may want to know as well
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U32[0]) == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		// Block anything else from processing this.
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending rendering.")
		return false
	}
	if e.swapchain != nil {
		e.swapchain.Resize(width, height)
	}
	return false
}

func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	name := data.Data.S
	core.LogInfo("asset %s changed", name)
	if e.gameInstance.FnAssetChanged == nil {
		return false
	}
	if err := e.gameInstance.FnAssetChanged(name); err != nil {
		// keep running with the previous version
		core.LogError("reload %s: %v", name, err)
	}
	return false
}
