package testbed

import (
	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/frame"
)

type triangle struct {
	ctx      *engine.Context
	pipeline *pipeline
	vertices driver.Buffer
}

// NewTriangle draws a single vertex colored triangle with no transform.
func NewTriangle(cfg *engine.ApplicationConfig) *engine.Game {
	t := &triangle{}
	return &engine.Game{
		ApplicationConfig: cfg,
		State:             t,
		FnInitialize:      t.initialize,
		FnOnResize:        t.resize,
		FnUpdate:          t.update,
		FnRender:          t.render,
		FnAssetChanged:    t.assetChanged,
		FnShutdown:        t.shutdown,
	}
}

func (t *triangle) initialize(ctx *engine.Context) error {
	t.ctx = ctx
	stride, attributes := colorVertexLayout()
	t.pipeline = newPipeline(ctx, pipelineConfig{
		vertexShader:   "shaders/triangle.vert.spv",
		fragmentShader: "shaders/triangle.frag.spv",
		stride:         stride,
		attributes:     attributes,
	})

	data, err := toBytes(triangleVertices)
	if err != nil {
		return err
	}
	t.vertices, err = ctx.Device.CreateBuffer(driver.BufferDesc{Size: uint64(len(data)), Usage: driver.BufferVertex}, data)
	return err
}

func (t *triangle) resize(info frame.SurfaceInfo) error {
	_, err := t.pipeline.ensure(info.RenderPass, info.Samples, info.RenderPassChanged)
	return err
}

func (t *triangle) update(cb driver.CommandBuffer, _ uint32, _ float64) error {
	t.ctx.Device.CmdBindPipeline(cb, t.pipeline.handle)
	return nil
}

func (t *triangle) render(cb driver.CommandBuffer, _ uint32) error {
	t.ctx.Device.CmdBindVertexBuffer(cb, t.vertices)
	t.ctx.Device.CmdDraw(cb, uint32(len(triangleVertices)))
	return nil
}

func (t *triangle) assetChanged(name string) error {
	reloaded, err := t.pipeline.reload(name)
	if reloaded {
		core.LogInfo("reloaded %s", name)
	}
	return err
}

func (t *triangle) shutdown() error {
	if t.pipeline != nil {
		t.pipeline.destroy()
	}
	if t.vertices != 0 {
		t.ctx.Device.DestroyBuffer(t.vertices)
		t.vertices = 0
	}
	return nil
}
