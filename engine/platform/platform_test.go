package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/spaghettifunk/vkframe/engine/core"
)

type received struct {
	code core.SystemEventCode
	data core.EventContext
}

func listen(bus *core.EventBus, codes ...core.SystemEventCode) *[]received {
	var got []received
	for _, c := range codes {
		bus.Register(c, &got, func(code core.SystemEventCode, _, _ interface{}, data core.EventContext) bool {
			got = append(got, received{code: code, data: data})
			return false
		})
	}
	return &got
}

func TestDispatcherFiresOnFlushInOrder(t *testing.T) {
	bus := core.NewEventBus()
	got := listen(bus, core.EVENT_CODE_RESIZED, core.EVENT_CODE_KEY_PRESSED, core.EVENT_CODE_KEY_RELEASED)
	d := newDispatcher("win", bus, 800, 600)

	d.resized(1024, 768)
	d.key(core.KEY_A, true)
	d.key(core.KEY_A, false)
	assert.Empty(t, *got, "nothing fires before flush")

	d.flush()
	require.Len(t, *got, 3)
	assert.Equal(t, core.EVENT_CODE_RESIZED, (*got)[0].code)
	assert.Equal(t, uint32(1024), (*got)[0].data.Data.U32[0])
	assert.Equal(t, uint32(768), (*got)[0].data.Data.U32[1])
	assert.Equal(t, core.EVENT_CODE_KEY_PRESSED, (*got)[1].code)
	assert.Equal(t, uint32(core.KEY_A), (*got)[1].data.Data.U32[0])
	assert.Equal(t, core.EVENT_CODE_KEY_RELEASED, (*got)[2].code)
}

func TestDispatcherSkipsUnchangedState(t *testing.T) {
	bus := core.NewEventBus()
	got := listen(bus, core.EVENT_CODE_RESIZED, core.EVENT_CODE_KEY_PRESSED)
	d := newDispatcher("win", bus, 800, 600)

	d.resized(800, 600)
	d.key(core.KEY_UNKNOWN, true)
	d.key(core.KEY_SPACE, true)
	d.key(core.KEY_SPACE, true)
	d.flush()

	require.Len(t, *got, 1)
	assert.Equal(t, core.EVENT_CODE_KEY_PRESSED, (*got)[0].code)
}

func TestDispatcherQuitOnce(t *testing.T) {
	bus := core.NewEventBus()
	got := listen(bus, core.EVENT_CODE_APPLICATION_QUIT)
	d := newDispatcher("win", bus, 1, 1)

	d.quit()
	d.quit()
	d.flush()

	assert.True(t, d.closing)
	assert.Len(t, *got, 1)
}

func TestDispatcherDropsOverflow(t *testing.T) {
	bus := core.NewEventBus()
	got := listen(bus, core.EVENT_CODE_RESIZED)
	d := newDispatcher("win", bus, 0, 0)

	for i := 1; i <= maxPendingEvents+10; i++ {
		d.resized(uint32(i), 1)
	}
	d.flush()
	assert.Len(t, *got, maxPendingEvents)
	assert.True(t, d.pending.IsEmpty())
}

func TestGLFWKeyCodes(t *testing.T) {
	assert.Equal(t, core.KEY_A, glfwKeyCode(glfw.KeyA))
	assert.Equal(t, core.KEY_Z, glfwKeyCode(glfw.KeyZ))
	assert.Equal(t, core.KEY_9, glfwKeyCode(glfw.Key9))
	assert.Equal(t, core.KEY_F12, glfwKeyCode(glfw.KeyF12))
	assert.Equal(t, core.KEY_ESCAPE, glfwKeyCode(glfw.KeyEscape))
	assert.Equal(t, core.KEY_UNKNOWN, glfwKeyCode(glfw.KeyCapsLock))
}

func TestSDLKeyCodes(t *testing.T) {
	assert.Equal(t, core.KEY_A, sdlKeyCode(sdl.K_a))
	assert.Equal(t, core.KEY_P, sdlKeyCode(sdl.K_p))
	assert.Equal(t, core.KEY_0, sdlKeyCode(sdl.K_0))
	assert.Equal(t, core.KEY_F1, sdlKeyCode(sdl.K_F1))
	assert.Equal(t, core.KEY_ENTER, sdlKeyCode(sdl.K_RETURN))
	assert.Equal(t, core.KEY_UNKNOWN, sdlKeyCode(sdl.K_CAPSLOCK))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New("wayland-direct", WindowConfig{Width: 1, Height: 1}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedBackend)
}
