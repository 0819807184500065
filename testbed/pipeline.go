package testbed

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

type pipelineConfig struct {
	vertexShader   string
	fragmentShader string
	stride         uint32
	attributes     []driver.VertexAttribute
	bindings       []driver.DescriptorBinding
	pushConstants  uint32
	cullBackFaces  bool
	depthTest      bool
}

// pipeline rebuilds a graphics pipeline from its shader assets whenever the
// render pass changes or a shader is written on disk.
type pipeline struct {
	ctx        *engine.Context
	cfg        pipelineConfig
	handle     driver.Pipeline
	renderPass driver.RenderPass
	samples    driver.SampleCount
}

func newPipeline(ctx *engine.Context, cfg pipelineConfig) *pipeline {
	return &pipeline{ctx: ctx, cfg: cfg}
}

// build creates the pipeline for rp. The previous pipeline, and the
// descriptor sets allocated from it, are destroyed only once the new one
// exists, so a broken shader keeps the old pipeline alive.
func (p *pipeline) build(rp driver.RenderPass, samples driver.SampleCount) error {
	vert, err := p.ctx.Assets.LoadShader(p.cfg.vertexShader)
	if err != nil {
		return err
	}
	frag, err := p.ctx.Assets.LoadShader(p.cfg.fragmentShader)
	if err != nil {
		return err
	}
	handle, err := p.ctx.Device.CreatePipeline(driver.PipelineDesc{
		RenderPass: rp,
		Samples:    samples,
		Shaders: []driver.ShaderDesc{
			{Stage: driver.ShaderVertex, Code: vert},
			{Stage: driver.ShaderFragment, Code: frag},
		},
		VertexStride:     p.cfg.stride,
		Attributes:       p.cfg.attributes,
		Bindings:         p.cfg.bindings,
		PushConstantSize: p.cfg.pushConstants,
		CullBackFaces:    p.cfg.cullBackFaces,
		DepthTest:        p.cfg.depthTest,
	})
	if err != nil {
		return errors.Wrapf(err, "pipeline %s + %s", p.cfg.vertexShader, p.cfg.fragmentShader)
	}
	p.destroy()
	p.handle, p.renderPass, p.samples = handle, rp, samples
	return nil
}

// ensure builds the pipeline on first use and whenever the render pass was
// recreated. It reports whether a new pipeline was built.
func (p *pipeline) ensure(rp driver.RenderPass, samples driver.SampleCount, renderPassChanged bool) (bool, error) {
	if p.handle != 0 && !renderPassChanged && rp == p.renderPass && samples == p.samples {
		return false, nil
	}
	return true, p.build(rp, samples)
}

// reload rebuilds the pipeline if name is one of its shaders. The device
// is drained first since the old pipeline may still be in use.
func (p *pipeline) reload(name string) (bool, error) {
	if p.handle == 0 || (name != p.cfg.vertexShader && name != p.cfg.fragmentShader) {
		return false, nil
	}
	if err := p.ctx.Device.WaitIdle(); err != nil {
		return false, err
	}
	if err := p.build(p.renderPass, p.samples); err != nil {
		return false, err
	}
	return true, nil
}

func (p *pipeline) destroy() {
	if p.handle != 0 {
		p.ctx.Device.DestroyPipeline(p.handle)
		p.handle = 0
	}
}
