package core

// EventContext carries the payload of a fired event.
type EventContext struct {
	Data struct {
		U32 [4]uint32
		I32 [4]int32
		F32 [4]float32
		S   string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	// Context usage: key := data.Data.U32[0]
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	// Context usage: key := data.Data.U32[0]
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Drawable size changed.
	// Context usage: width, height := data.Data.U32[0], data.Data.U32[1]
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A watched asset was written on disk.
	// Context usage: name := data.Data.S
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events synchronously on the calling goroutine.
type EventBus struct {
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

// Register listens for events sent with the provided code. A listener can
// be registered only once per code; duplicates return false.
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code < 0 || code >= MAX_MESSAGE_CODES || onEvent == nil {
		return false
	}
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the listener for the provided code. Returns false when
// no matching registration exists.
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire sends an event to listeners of the given code. If a handler returns
// true the event is considered handled and is not passed on.
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	for _, e := range b.registered[code] {
		if e.callback(code, sender, e.listener, context) {
			return true
		}
	}
	return false
}

// Shutdown drops every registration.
func (b *EventBus) Shutdown() {
	b.registered = make(map[SystemEventCode][]*registeredEvent)
}
