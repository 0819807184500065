// Package platform opens the window the renderer presents into. GLFW and
// SDL2 are supported; both report resize, key and close events through a
// core.EventBus while their messages are pumped.
package platform

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
)

const (
	BackendGLFW = "glfw"
	BackendSDL  = "sdl"
)

var ErrUnsupportedBackend = errors.New("unsupported window backend")

func init() {
	// GLFW and SDL event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Window is the capability set the engine needs from a platform window.
type Window interface {
	// ProcAddr returns vkGetInstanceProcAddr as loaded by the window
	// library.
	ProcAddr() unsafe.Pointer
	// RequiredExtensions lists the instance extensions needed to present
	// into this window.
	RequiredExtensions() []string
	// CreateSurface creates a VkSurfaceKHR for the given VkInstance.
	CreateSurface(instance interface{}) (uintptr, error)
	// PumpMessages processes pending window events, fires them on the
	// event bus and returns false once the window should close.
	PumpMessages() bool
	// DrawableSize is the framebuffer size in pixels. It is 0x0 while the
	// window is minimized.
	DrawableSize() (width, height uint32)
	ShouldClose() bool
	Input() *core.Input
	Destroy()
}

type WindowConfig struct {
	Title         string
	X, Y          uint32
	Width, Height uint32
}

// New opens a window with the named backend.
func New(backend string, cfg WindowConfig, bus *core.EventBus) (Window, error) {
	switch backend {
	case BackendGLFW, "":
		w, err := newGLFWWindow(cfg, bus)
		if err != nil {
			return nil, err
		}
		return w, nil
	case BackendSDL:
		w, err := newSDLWindow(cfg, bus)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "%q", backend)
	}
}
