package platform

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/vkframe/engine/core"
)

type glfwWindow struct {
	window *glfw.Window
	events *dispatcher
}

func newGLFWWindow(cfg WindowConfig, bus *core.EventBus) (*glfwWindow, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "failed to create window")
	}

	w := &glfwWindow{window: window}
	fw, fh := window.GetFramebufferSize()
	w.events = newDispatcher(w, bus, uint32(fw), uint32(fh))

	window.SetKeyCallback(w.keyCallback)
	window.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	window.SetCloseCallback(w.closeCallback)
	if cfg.X != 0 || cfg.Y != 0 {
		window.SetPos(int(cfg.X), int(cfg.Y))
	}
	window.Show()

	core.LogInfo("glfw %s window %dx%d", glfw.GetVersionString(), fw, fh)
	return w, nil
}

func (w *glfwWindow) ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *glfwWindow) RequiredExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

func (w *glfwWindow) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "glfw surface")
	}
	return surface, nil
}

func (w *glfwWindow) PumpMessages() bool {
	w.events.input.Update()
	glfw.PollEvents()
	w.events.flush()
	return !w.ShouldClose()
}

func (w *glfwWindow) DrawableSize() (uint32, uint32) {
	width, height := w.window.GetFramebufferSize()
	return uint32(width), uint32(height)
}

func (w *glfwWindow) ShouldClose() bool {
	return w.events.closing || w.window.ShouldClose()
}

func (w *glfwWindow) Input() *core.Input {
	return w.events.input
}

func (w *glfwWindow) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	glfw.Terminate()
}

func (w *glfwWindow) keyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	w.events.key(glfwKeyCode(key), action == glfw.Press)
}

func (w *glfwWindow) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.events.resized(uint32(width), uint32(height))
}

func (w *glfwWindow) closeCallback(_ *glfw.Window) {
	w.events.quit()
}

func glfwKeyCode(key glfw.Key) core.KeyCode {
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return core.KEY_A + core.KeyCode(key-glfw.KeyA)
	case key >= glfw.Key0 && key <= glfw.Key9:
		return core.KEY_0 + core.KeyCode(key-glfw.Key0)
	case key >= glfw.KeyF1 && key <= glfw.KeyF12:
		return core.KEY_F1 + core.KeyCode(key-glfw.KeyF1)
	}
	switch key {
	case glfw.KeyEscape:
		return core.KEY_ESCAPE
	case glfw.KeySpace:
		return core.KEY_SPACE
	case glfw.KeyEnter:
		return core.KEY_ENTER
	case glfw.KeyTab:
		return core.KEY_TAB
	case glfw.KeyBackspace:
		return core.KEY_BACKSPACE
	case glfw.KeyLeft:
		return core.KEY_LEFT
	case glfw.KeyRight:
		return core.KEY_RIGHT
	case glfw.KeyUp:
		return core.KEY_UP
	case glfw.KeyDown:
		return core.KEY_DOWN
	}
	return core.KEY_UNKNOWN
}
