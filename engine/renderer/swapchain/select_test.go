package swapchain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

func TestChoosePresentMode(t *testing.T) {
	tests := []struct {
		name  string
		modes []driver.PresentMode
		want  driver.PresentMode
	}{
		{"mailbox beats fifo", []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox}, driver.PresentModeMailbox},
		{"fifo beats immediate", []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeImmediate}, driver.PresentModeFifo},
		{"fifo beats immediate in any order", []driver.PresentMode{driver.PresentModeImmediate, driver.PresentModeFifo}, driver.PresentModeFifo},
		{"immediate alone", []driver.PresentMode{driver.PresentModeImmediate}, driver.PresentModeImmediate},
		{"first otherwise", []driver.PresentMode{driver.PresentModeFifoRelaxed}, driver.PresentModeFifoRelaxed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, choosePresentMode(tt.modes, nil))
		})
	}

	immediate := driver.PresentModeImmediate
	assert.Equal(t, driver.PresentModeImmediate,
		choosePresentMode([]driver.PresentMode{driver.PresentModeMailbox, driver.PresentModeImmediate}, &immediate))
	assert.Equal(t, driver.PresentModeMailbox,
		choosePresentMode([]driver.PresentMode{driver.PresentModeMailbox}, &immediate))
}

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := driver.SurfaceFormat{Format: driver.FormatB8G8R8A8Srgb}
	rgba := driver.SurfaceFormat{Format: driver.FormatR8G8B8A8Unorm}

	assert.Equal(t, DefaultSurfaceFormat, chooseSurfaceFormat([]driver.SurfaceFormat{srgb, DefaultSurfaceFormat}, DefaultSurfaceFormat))
	assert.Equal(t, rgba, chooseSurfaceFormat([]driver.SurfaceFormat{rgba, srgb}, DefaultSurfaceFormat))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(driver.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 3}))
	assert.Equal(t, uint32(3), chooseImageCount(driver.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 3}))
	assert.Equal(t, uint32(5), chooseImageCount(driver.SurfaceCapabilities{MinImageCount: 4, MaxImageCount: 0}))
}

func TestChooseExtent(t *testing.T) {
	caps := driver.SurfaceCapabilities{
		CurrentExtent:  driver.Extent{Width: driver.UndefinedExtent, Height: driver.UndefinedExtent},
		MinImageExtent: driver.Extent{Width: 1, Height: 1},
		MaxImageExtent: driver.Extent{Width: 4096, Height: 4096},
	}
	assert.Equal(t, driver.Extent{Width: 4096, Height: 600}, chooseExtent(caps, driver.Extent{Width: 8000, Height: 600}))
	assert.Equal(t, driver.Extent{Width: 1, Height: 1}, chooseExtent(caps, driver.Extent{}))

	caps.CurrentExtent = driver.Extent{Width: 1024, Height: 768}
	assert.Equal(t, caps.CurrentExtent, chooseExtent(caps, driver.Extent{Width: 8000, Height: 600}))
}

func TestSanitizeSamples(t *testing.T) {
	upTo4 := driver.SampleCountFlags(1 | 2 | 4)

	assert.Equal(t, driver.SampleCount(4), SanitizeSamples(8, upTo4))
	assert.Equal(t, driver.SampleCount(1), SanitizeSamples(3, upTo4))
	assert.Equal(t, driver.SampleCount(1), SanitizeSamples(0, upTo4))
	assert.Equal(t, driver.SampleCount(1), SanitizeSamples(128, upTo4))
	assert.Equal(t, driver.SampleCount(2), SanitizeSamples(2, upTo4))
	assert.Equal(t, driver.SampleCount(1), SanitizeSamples(64, driver.SampleCountFlags(1)))
}
