package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputTracksKeyTransitions(t *testing.T) {
	in := NewInput()

	assert.True(t, in.ProcessKey(KEY_ESCAPE, true))
	assert.False(t, in.ProcessKey(KEY_ESCAPE, true), "repeat is not a change")
	assert.True(t, in.IsKeyDown(KEY_ESCAPE))
	assert.True(t, in.KeyPressedThisFrame(KEY_ESCAPE))

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_ESCAPE))
	assert.False(t, in.KeyPressedThisFrame(KEY_ESCAPE))

	assert.True(t, in.ProcessKey(KEY_ESCAPE, false))
	assert.True(t, in.IsKeyUp(KEY_ESCAPE))
}

func TestInputIgnoresUnknownKeys(t *testing.T) {
	in := NewInput()
	assert.False(t, in.ProcessKey(KEY_UNKNOWN, true))
	assert.False(t, in.ProcessKey(KEYS_MAX_KEYS+3, true))
	assert.False(t, in.IsKeyDown(KEYS_MAX_KEYS+3))
}
