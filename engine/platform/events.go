package platform

import (
	"github.com/spaghettifunk/vkframe/engine/containers"
	"github.com/spaghettifunk/vkframe/engine/core"
)

// maxPendingEvents bounds the events buffered between two pumps.
const maxPendingEvents = 64

type pendingEvent struct {
	code    core.SystemEventCode
	context core.EventContext
}

// dispatcher buffers native window events and fires them on the bus once
// the native poll returns, so listeners never run inside a library
// callback.
type dispatcher struct {
	sender  interface{}
	bus     *core.EventBus
	input   *core.Input
	pending *containers.RingQueue[pendingEvent]

	width, height uint32
	closing       bool
}

func newDispatcher(sender interface{}, bus *core.EventBus, width, height uint32) *dispatcher {
	return &dispatcher{
		sender:  sender,
		bus:     bus,
		input:   core.NewInput(),
		pending: containers.NewRingQueue[pendingEvent](maxPendingEvents),
		width:   width,
		height:  height,
	}
}

func (d *dispatcher) push(code core.SystemEventCode, ctx core.EventContext) {
	if err := d.pending.Enqueue(pendingEvent{code: code, context: ctx}); err != nil {
		core.LogWarn("dropping window event %d: %s", code, err)
	}
}

func (d *dispatcher) resized(width, height uint32) {
	if width == d.width && height == d.height {
		return
	}
	d.width, d.height = width, height
	ctx := core.EventContext{}
	ctx.Data.U32[0] = width
	ctx.Data.U32[1] = height
	d.push(core.EVENT_CODE_RESIZED, ctx)
}

func (d *dispatcher) key(k core.KeyCode, pressed bool) {
	if !d.input.ProcessKey(k, pressed) {
		return
	}
	code := core.EVENT_CODE_KEY_RELEASED
	if pressed {
		code = core.EVENT_CODE_KEY_PRESSED
	}
	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(k)
	d.push(code, ctx)
}

func (d *dispatcher) quit() {
	if d.closing {
		return
	}
	d.closing = true
	d.push(core.EVENT_CODE_APPLICATION_QUIT, core.EventContext{})
}

// flush fires every buffered event in arrival order.
func (d *dispatcher) flush() {
	for !d.pending.IsEmpty() {
		e, err := d.pending.Dequeue()
		if err != nil {
			return
		}
		if d.bus != nil {
			d.bus.Fire(e.code, d.sender, e.context)
		}
	}
}
