package testbed

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/math"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/frame"
)

const (
	cubeFovY      = 45
	cubeNear      = 0.1
	cubeFar       = 100
	cubeDegPerSec = 90
)

var (
	cubeEye  = mgl32.Vec3{2.5, 2.5, 4}
	cubeAxis = mgl32.Vec3{0.3, 1, 0.2}
)

// mvpSize is the size of the push constant block, one column major mat4.
const mvpSize = 16 * 4

type cube struct {
	ctx      *engine.Context
	pipeline *pipeline
	vertices driver.Buffer
	indices  driver.Buffer
	count    uint32

	elapsed float64
	view    mgl32.Mat4
	proj    mgl32.Mat4
}

// NewCube draws a rotating cube with one color per face. The model view
// projection matrix is pushed as a push constant every frame.
func NewCube(cfg *engine.ApplicationConfig) *engine.Game {
	c := &cube{}
	return &engine.Game{
		ApplicationConfig: cfg,
		State:             c,
		FnInitialize:      c.initialize,
		FnOnResize:        c.resize,
		FnUpdate:          c.update,
		FnRender:          c.render,
		FnAssetChanged:    c.assetChanged,
		FnShutdown:        c.shutdown,
	}
}

func (c *cube) initialize(ctx *engine.Context) error {
	c.ctx = ctx
	stride, attributes := colorVertexLayout()
	c.pipeline = newPipeline(ctx, pipelineConfig{
		vertexShader:   "shaders/cube.vert.spv",
		fragmentShader: "shaders/cube.frag.spv",
		stride:         stride,
		attributes:     attributes,
		pushConstants:  mvpSize,
		cullBackFaces:  true,
		depthTest:      true,
	})
	c.view = mgl32.LookAtV(cubeEye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	c.proj = math.Perspective(cubeFovY, 1, cubeNear, cubeFar)

	var err error
	c.vertices, c.indices, c.count, err = uploadCube(ctx.Device, coloredCubeVertices(1))
	return err
}

func (c *cube) resize(info frame.SurfaceInfo) error {
	c.proj = math.Perspective(cubeFovY, info.Aspect, cubeNear, cubeFar)
	_, err := c.pipeline.ensure(info.RenderPass, info.Samples, info.RenderPassChanged)
	return err
}

func (c *cube) update(cb driver.CommandBuffer, _ uint32, delta float64) error {
	c.elapsed += delta
	model := math.Spin(c.elapsed, cubeDegPerSec, cubeAxis)
	mvp := c.proj.Mul4(c.view).Mul4(model)
	data, err := toBytes(mvp)
	if err != nil {
		return err
	}
	c.ctx.Device.CmdBindPipeline(cb, c.pipeline.handle)
	c.ctx.Device.CmdPushConstants(cb, c.pipeline.handle, data)
	return nil
}

func (c *cube) render(cb driver.CommandBuffer, _ uint32) error {
	c.ctx.Device.CmdBindVertexBuffer(cb, c.vertices)
	c.ctx.Device.CmdBindIndexBuffer(cb, c.indices, driver.IndexUint16)
	c.ctx.Device.CmdDrawIndexed(cb, c.count)
	return nil
}

func (c *cube) assetChanged(name string) error {
	reloaded, err := c.pipeline.reload(name)
	if reloaded {
		core.LogInfo("reloaded %s", name)
	}
	return err
}

func (c *cube) shutdown() error {
	if c.pipeline != nil {
		c.pipeline.destroy()
	}
	destroyBuffers(c.ctx, &c.vertices, &c.indices)
	return nil
}

// uploadCube creates device local vertex and index buffers for a cube mesh.
func uploadCube(dev driver.Device, vertices interface{}) (driver.Buffer, driver.Buffer, uint32, error) {
	vdata, err := toBytes(vertices)
	if err != nil {
		return 0, 0, 0, err
	}
	indices := cubeIndices()
	idata, err := toBytes(indices)
	if err != nil {
		return 0, 0, 0, err
	}

	vb, err := dev.CreateBuffer(driver.BufferDesc{Size: uint64(len(vdata)), Usage: driver.BufferVertex}, vdata)
	if err != nil {
		return 0, 0, 0, err
	}
	ib, err := dev.CreateBuffer(driver.BufferDesc{Size: uint64(len(idata)), Usage: driver.BufferIndex}, idata)
	if err != nil {
		dev.DestroyBuffer(vb)
		return 0, 0, 0, err
	}
	return vb, ib, uint32(len(indices)), nil
}

func destroyBuffers(ctx *engine.Context, buffers ...*driver.Buffer) {
	if ctx == nil {
		return
	}
	for _, b := range buffers {
		if *b != 0 {
			ctx.Device.DestroyBuffer(*b)
			*b = 0
		}
	}
}
