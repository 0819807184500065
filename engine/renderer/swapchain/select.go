package swapchain

import (
	"github.com/spaghettifunk/vkframe/engine/math"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// DefaultSurfaceFormat is picked whenever the surface supports it.
var DefaultSurfaceFormat = driver.SurfaceFormat{
	Format:     driver.FormatB8G8R8A8Unorm,
	ColorSpace: driver.ColorSpaceSrgbNonlinear,
}

// depthCandidates in order of preference.
var depthCandidates = []driver.Format{
	driver.FormatD32Float,
	driver.FormatD32FloatS8Uint,
	driver.FormatD24UnormS8Uint,
}

// chooseSurfaceFormat returns preferred if available, else the first
// format reported. formats must not be empty.
func chooseSurfaceFormat(formats []driver.SurfaceFormat, preferred driver.SurfaceFormat) driver.SurfaceFormat {
	for _, f := range formats {
		if f == preferred {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode prefers MAILBOX, then FIFO, then IMMEDIATE, falling
// back to the first reported mode. A non-nil preferred mode wins when the
// surface supports it. modes must not be empty.
func choosePresentMode(modes []driver.PresentMode, preferred *driver.PresentMode) driver.PresentMode {
	has := func(m driver.PresentMode) bool {
		for _, pm := range modes {
			if pm == m {
				return true
			}
		}
		return false
	}
	if preferred != nil && has(*preferred) {
		return *preferred
	}
	for _, m := range []driver.PresentMode{driver.PresentModeMailbox, driver.PresentModeFifo, driver.PresentModeImmediate} {
		if has(m) {
			return m
		}
	}
	return modes[0]
}

// chooseImageCount asks for one image more than the minimum, bounded by the
// maximum. A maximum of zero means there is no limit.
func chooseImageCount(caps driver.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// chooseExtent uses the surface's current extent when it is defined,
// otherwise the requested size clamped into the supported range.
func chooseExtent(caps driver.SurfaceCapabilities, requested driver.Extent) driver.Extent {
	if caps.CurrentExtent.Width != driver.UndefinedExtent {
		return caps.CurrentExtent
	}
	return driver.Extent{
		Width:  math.Clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseDepthFormat returns the first candidate usable as a depth-stencil
// attachment with optimal tiling.
func chooseDepthFormat(dev driver.Presenter) (driver.Format, bool) {
	for _, f := range depthCandidates {
		if dev.SupportsDepthAttachment(f) {
			return f, true
		}
	}
	return driver.FormatUndefined, false
}

// SanitizeSamples walks down from requested by halving until the device
// supports the count. Values that are not a power of two in [1, 64] give 1.
func SanitizeSamples(requested driver.SampleCount, supported driver.SampleCountFlags) driver.SampleCount {
	if !requested.Valid() {
		return 1
	}
	s := requested
	for s > 1 && !supported.Has(s) {
		s >>= 1
	}
	return s
}
