package platform

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/spaghettifunk/vkframe/engine/core"
)

type sdlWindow struct {
	window *sdl.Window
	events *dispatcher
}

func newSDLWindow(cfg WindowConfig, bus *core.EventBus) (*sdlWindow, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "failed to initialize sdl")
	}

	x, y := int32(sdl.WINDOWPOS_UNDEFINED), int32(sdl.WINDOWPOS_UNDEFINED)
	if cfg.X != 0 || cfg.Y != 0 {
		x, y = int32(cfg.X), int32(cfg.Y)
	}
	window, err := sdl.CreateWindow(cfg.Title, x, y, int32(cfg.Width), int32(cfg.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_VULKAN)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "failed to create window")
	}

	w := &sdlWindow{window: window}
	dw, dh := w.DrawableSize()
	w.events = newDispatcher(w, bus, dw, dh)

	core.LogInfo("sdl v%d.%d.%d window %dx%d", sdl.MAJOR_VERSION, sdl.MINOR_VERSION, sdl.PATCHLEVEL, dw, dh)
	return w, nil
}

func (w *sdlWindow) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

func (w *sdlWindow) RequiredExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *sdlWindow) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := w.window.VulkanCreateSurface(instance)
	if err != nil {
		return 0, errors.Wrap(err, "sdl surface")
	}
	return uintptr(surface), nil
}

func (w *sdlWindow) PumpMessages() bool {
	w.events.input.Update()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			w.events.quit()
		case *sdl.WindowEvent:
			switch ev.Event {
			case sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
				w.events.resized(w.DrawableSize())
			case sdl.WINDOWEVENT_CLOSE:
				w.events.quit()
			}
		case *sdl.KeyboardEvent:
			if ev.Repeat != 0 {
				continue
			}
			w.events.key(sdlKeyCode(ev.Keysym.Sym), ev.Type == sdl.KEYDOWN)
		}
	}
	w.events.flush()
	return !w.ShouldClose()
}

func (w *sdlWindow) DrawableSize() (uint32, uint32) {
	if w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return 0, 0
	}
	width, height := w.window.VulkanGetDrawableSize()
	return uint32(width), uint32(height)
}

func (w *sdlWindow) ShouldClose() bool {
	return w.events.closing
}

func (w *sdlWindow) Input() *core.Input {
	return w.events.input
}

func (w *sdlWindow) Destroy() {
	if w.window != nil {
		if err := w.window.Destroy(); err != nil {
			core.LogWarn("sdl window destroy: %s", err)
		}
		w.window = nil
	}
	sdl.Quit()
}

func sdlKeyCode(sym sdl.Keycode) core.KeyCode {
	switch {
	case sym >= sdl.K_a && sym <= sdl.K_z:
		return core.KEY_A + core.KeyCode(sym-sdl.K_a)
	case sym >= sdl.K_0 && sym <= sdl.K_9:
		return core.KEY_0 + core.KeyCode(sym-sdl.K_0)
	case sym >= sdl.K_F1 && sym <= sdl.K_F12:
		return core.KEY_F1 + core.KeyCode(sym-sdl.K_F1)
	}
	switch sym {
	case sdl.K_ESCAPE:
		return core.KEY_ESCAPE
	case sdl.K_SPACE:
		return core.KEY_SPACE
	case sdl.K_RETURN:
		return core.KEY_ENTER
	case sdl.K_TAB:
		return core.KEY_TAB
	case sdl.K_BACKSPACE:
		return core.KEY_BACKSPACE
	case sdl.K_LEFT:
		return core.KEY_LEFT
	case sdl.K_RIGHT:
		return core.KEY_RIGHT
	case sdl.K_UP:
		return core.KEY_UP
	case sdl.K_DOWN:
		return core.KEY_DOWN
	}
	return core.KEY_UNKNOWN
}
