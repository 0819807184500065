package testbed

import (
	"image"
	"image/color"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/math"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/frame"
)

const (
	uniformBinding = 0
	textureBinding = 1
)

// cameraUniform mirrors the uniform block of textured.vert.
type cameraUniform struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

const cameraUniformSize = 3 * mvpSize

type texturedCube struct {
	ctx      *engine.Context
	pipeline *pipeline
	vertices driver.Buffer
	indices  driver.Buffer
	count    uint32
	texture  driver.Texture

	// one uniform buffer and descriptor set per swapchain image
	uniforms []driver.Buffer
	sets     []driver.DescriptorSet

	elapsed float64
	view    mgl32.Mat4
	proj    mgl32.Mat4
}

// NewTexturedCube draws a rotating cube sampling a texture. The matrices
// are written to a per image uniform buffer. The texture comes from
// ApplicationConfig.Texture, or is a generated checkerboard.
func NewTexturedCube(cfg *engine.ApplicationConfig) *engine.Game {
	c := &texturedCube{}
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

func (c *texturedCube) initialize(ctx *engine.Context) error {
	c.ctx = ctx
	stride, attributes := texturedVertexLayout()
	c.pipeline = newPipeline(ctx, pipelineConfig{
		vertexShader:   "shaders/textured.vert.spv",
		fragmentShader: "shaders/textured.frag.spv",
		stride:         stride,
		attributes:     attributes,
		bindings: []driver.DescriptorBinding{
			{Binding: uniformBinding, Type: driver.DescriptorUniformBuffer, Stages: driver.ShaderVertex},
			{Binding: textureBinding, Type: driver.DescriptorCombinedImageSampler, Stages: driver.ShaderFragment},
		},
		cullBackFaces: true,
		depthTest:     true,
	})
	c.view = mgl32.LookAtV(cubeEye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	c.proj = math.Perspective(cubeFovY, 1, cubeNear, cubeFar)

	var err error
	c.vertices, c.indices, c.count, err = uploadCube(ctx.Device, texturedCubeVertices(1))
	if err != nil {
		return err
	}

	img, err := c.loadTexture()
	if err != nil {
		return err
	}
	c.texture, err = ctx.Device.CreateTexture(img)
	return err
}

func (c *texturedCube) loadTexture() (*image.RGBA, error) {
	if c.ctx.Config.Texture == "" {
		return checkerboard(256, 32), nil
	}
	return c.ctx.Assets.LoadImage(c.ctx.Config.Texture, false)
}

func (c *texturedCube) resize(info frame.SurfaceInfo) error {
	c.proj = math.Perspective(cubeFovY, info.Aspect, cubeNear, cubeFar)

	// Descriptor sets live in the pool of their pipeline, so a new image
	// count is handled by rebuilding the pipeline as well.
	slotsChanged := len(c.uniforms) != info.ImageCount
	if slotsChanged {
		if err := c.resizeUniforms(info.ImageCount); err != nil {
			return err
		}
	}
	rebuilt, err := c.pipeline.ensure(info.RenderPass, info.Samples, info.RenderPassChanged || slotsChanged)
	if err != nil {
		return err
	}
	if rebuilt {
		return c.allocateSets()
	}
	return nil
}

func (c *texturedCube) resizeUniforms(n int) error {
	destroyBuffers(c.ctx, bufferRefs(c.uniforms)...)
	c.uniforms = c.uniforms[:0]
	for i := 0; i < n; i++ {
		b, err := c.ctx.Device.CreateBuffer(driver.BufferDesc{
			Size:        cameraUniformSize,
			Usage:       driver.BufferUniform,
			HostVisible: true,
		}, nil)
		if err != nil {
			return err
		}
		c.uniforms = append(c.uniforms, b)
	}
	return nil
}

// allocateSets points a fresh set per slot at its uniform buffer and the
// texture. Sets of the previous pipeline were freed with it.
func (c *texturedCube) allocateSets() error {
	c.sets = c.sets[:0]
	for _, ub := range c.uniforms {
		set, err := c.ctx.Device.AllocateDescriptorSet(c.pipeline.handle)
		if err != nil {
			return err
		}
		if err := c.ctx.Device.WriteUniformDescriptor(set, uniformBinding, ub); err != nil {
			return err
		}
		if err := c.ctx.Device.WriteTextureDescriptor(set, textureBinding, c.texture); err != nil {
			return err
		}
		c.sets = append(c.sets, set)
	}
	return nil
}

func (c *texturedCube) update(cb driver.CommandBuffer, slot uint32, delta float64) error {
	if int(slot) >= len(c.sets) {
		return errors.Newf("no descriptor set for slot %d", slot)
	}
	c.elapsed += delta
	data, err := toBytes(cameraUniform{
		Model: math.Spin(c.elapsed, cubeDegPerSec, cubeAxis),
		View:  c.view,
		Proj:  c.proj,
	})
	if err != nil {
		return err
	}
	if err := c.ctx.Device.WriteBuffer(c.uniforms[slot], 0, data); err != nil {
		return err
	}
	c.ctx.Device.CmdBindPipeline(cb, c.pipeline.handle)
	c.ctx.Device.CmdBindDescriptorSet(cb, c.pipeline.handle, c.sets[slot])
	return nil
}

func (c *texturedCube) render(cb driver.CommandBuffer, _ uint32) error {
	c.ctx.Device.CmdBindVertexBuffer(cb, c.vertices)
	c.ctx.Device.CmdBindIndexBuffer(cb, c.indices, driver.IndexUint16)
	c.ctx.Device.CmdDrawIndexed(cb, c.count)
	return nil
}

func (c *texturedCube) assetChanged(name string) error {
	if name == c.ctx.Config.Texture && name != "" {
		return c.reloadTexture()
	}
	reloaded, err := c.pipeline.reload(name)
	if err != nil || !reloaded {
		return err
	}
	core.LogInfo("reloaded %s", name)
	return c.allocateSets()
}

// reloadTexture swaps the texture in place. On a decode error the old
// texture stays bound.
func (c *texturedCube) reloadTexture() error {
	img, err := c.loadTexture()
	if err != nil {
		return err
	}
	if err := c.ctx.Device.WaitIdle(); err != nil {
		return err
	}
	texture, err := c.ctx.Device.CreateTexture(img)
	if err != nil {
		return err
	}
	for _, set := range c.sets {
		if err := c.ctx.Device.WriteTextureDescriptor(set, textureBinding, texture); err != nil {
			c.ctx.Device.DestroyTexture(texture)
			return err
		}
	}
	c.ctx.Device.DestroyTexture(c.texture)
	c.texture = texture
	core.LogInfo("reloaded texture %s", c.ctx.Config.Texture)
	return nil
}

func (c *texturedCube) shutdown() error {
	if c.pipeline != nil {
		c.pipeline.destroy()
	}
	c.sets = nil
	destroyBuffers(c.ctx, bufferRefs(c.uniforms)...)
	c.uniforms = nil
	destroyBuffers(c.ctx, &c.vertices, &c.indices)
	if c.texture != 0 {
		c.ctx.Device.DestroyTexture(c.texture)
		c.texture = 0
	}
	return nil
}

func bufferRefs(buffers []driver.Buffer) []*driver.Buffer {
	refs := make([]*driver.Buffer, len(buffers))
	for i := range buffers {
		refs[i] = &buffers[i]
	}
	return refs
}

// checkerboard generates a size x size texture of cell x cell squares.
func checkerboard(size, cell int) *image.RGBA {
	light := color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	dark := color.RGBA{R: 0x30, G: 0x60, B: 0xa0, A: 0xff}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
