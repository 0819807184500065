package engine

import (
	"github.com/spaghettifunk/vkframe/engine/assets"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/frame"
	"github.com/spaghettifunk/vkframe/engine/renderer/swapchain"
)

// Context is what a game can reach while it runs.
type Context struct {
	Config    *ApplicationConfig
	Device    driver.Device
	Swapchain *swapchain.Manager
	Assets    *assets.AssetManager
	Events    *core.EventBus
	Input     *core.Input
}

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnOnResize        OnResize
	FnUpdate          Update
	FnRender          Render
	FnAssetChanged    AssetChanged
	FnShutdown        Shutdown
}

// Initialize creates the device resources of the game.
type Initialize func(ctx *Context) error

// OnResize runs after the framebuffers were rebuilt. Pipelines must be
// recreated when info.RenderPassChanged is set.
type OnResize func(info frame.SurfaceInfo) error

// Update writes per-slot host data and records state bound before the
// render pass.
type Update func(cb driver.CommandBuffer, slot uint32, deltaTime float64) error

// Render records the draw calls of a frame inside the render pass.
type Render func(cb driver.CommandBuffer, slot uint32) error

// AssetChanged is called between frames for every asset written on disk.
type AssetChanged func(name string) error

// Shutdown releases the device resources of the game. The device is idle.
type Shutdown func() error

var _ frame.Renderer = (*Game)(nil)

func (g *Game) Resize(info frame.SurfaceInfo) error {
	if g.FnOnResize == nil {
		return nil
	}
	return g.FnOnResize(info)
}

func (g *Game) Bind(cb driver.CommandBuffer, slot uint32, delta float64) error {
	if g.FnUpdate == nil {
		return nil
	}
	return g.FnUpdate(cb, slot, delta)
}

func (g *Game) Draw(cb driver.CommandBuffer, slot uint32) error {
	if g.FnRender == nil {
		return nil
	}
	return g.FnRender(cb, slot)
}
