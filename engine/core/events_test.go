package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusFireStopsWhenHandled(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	first, second := "first", "second"
	assert.True(t, bus.Register(EVENT_CODE_RESIZED, first, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, listener.(string))
		return data.Data.U32[0] == 0
	}))
	assert.True(t, bus.Register(EVENT_CODE_RESIZED, second, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, listener.(string))
		return true
	}))

	ctx := EventContext{}
	ctx.Data.U32[0] = 800
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{}))
	assert.Equal(t, []string{"first"}, calls)
}

func TestEventBusRegisterRejectsDuplicates(t *testing.T) {
	bus := NewEventBus()
	fn := func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }

	assert.True(t, bus.Register(EVENT_CODE_APPLICATION_QUIT, "engine", fn))
	assert.False(t, bus.Register(EVENT_CODE_APPLICATION_QUIT, "engine", fn))
	assert.False(t, bus.Register(EVENT_CODE_APPLICATION_QUIT, "engine", nil))

	assert.True(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, "engine"))
	assert.False(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, "engine"))
	assert.False(t, bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
}

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT), m.Frames())

	for i := 0; i < 100; i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 100.0, m.FPS(), 1.0)
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	c.Update()
	assert.GreaterOrEqual(t, c.Elapsed(), 0.0)
	c.Stop()
	e := c.Elapsed()
	c.Update()
	assert.Equal(t, e, c.Elapsed())
}
