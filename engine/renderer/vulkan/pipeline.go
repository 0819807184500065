package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// CreatePipeline builds a triangle list graphics pipeline with dynamic
// viewport and scissor. The shader modules are released once the pipeline
// exists.
func (b *VulkanBackend) CreatePipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	renderPass, err := b.renderPass(desc.RenderPass)
	if err != nil {
		return 0, err
	}
	if len(desc.Shaders) == 0 {
		return 0, errors.New("pipeline has no shader stages")
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(desc.Shaders))
	modules := make([]vk.ShaderModule, 0, len(desc.Shaders))
	defer func() {
		for _, m := range modules {
			vk.DestroyShaderModule(b.logical(), m, b.context.Allocator)
		}
	}()
	for _, sd := range desc.Shaders {
		st, err := b.createShaderStage(sd)
		if err != nil {
			return 0, errors.Wrapf(err, "shader stage %d", sd.Stage)
		}
		modules = append(modules, st.module)
		stages = append(stages, st.info)
	}

	obj := pipelineObject{}
	if obj.setLayout, obj.pool, err = b.createSetLayout(desc.Bindings); err != nil {
		return 0, err
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{obj.setLayout},
	}
	if desc.PushConstantSize > 0 {
		obj.pushStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit)
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: obj.pushStages,
			Size:       desc.PushConstantSize,
		}}
	}
	if res := vk.CreatePipelineLayout(b.logical(), &layoutInfo, b.context.Allocator, &obj.layout); res != vk.Success {
		b.destroyPipeline(obj)
		return 0, resultError(res, "create pipeline layout")
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(desc.Attributes))
	for i, a := range desc.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   vkVertexFormats[a.Format],
			Offset:   a.Offset,
		}
	}
	vertexInput := &vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if desc.VertexStride > 0 {
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInput.PVertexAttributeDescriptions = attributes
	}

	cull := vk.CullModeFlags(vk.CullModeNone)
	if desc.CullBackFaces {
		cull = vk.CullModeFlags(vk.CullModeBackBit)
	}
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	depthTest := vk.Bool32(vk.False)
	if desc.DepthTest {
		depthTest = vk.True
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:             vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:        uint32(len(stages)),
		PStages:           stages,
		PVertexInputState: vertexInput,
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    cull,
			FrontFace:   vk.FrontFaceCounterClockwise,
			LineWidth:   1,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCountFlagBits(samples),
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:  depthTest,
			DepthWriteEnable: depthTest,
			DepthCompareOp:   vk.CompareOpLessOrEqual,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
			}},
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
		},
		Layout:     obj.layout,
		RenderPass: renderPass,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(b.logical(), vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, b.context.Allocator, pipelines); res != vk.Success {
		b.destroyPipeline(obj)
		return 0, resultError(res, "create graphics pipeline")
	}
	obj.handle = pipelines[0]
	return driver.Pipeline(b.pipelines.Insert(obj)), nil
}

func (b *VulkanBackend) destroyPipeline(obj pipelineObject) {
	if obj.handle != vk.NullPipeline {
		vk.DestroyPipeline(b.logical(), obj.handle, b.context.Allocator)
	}
	if obj.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(b.logical(), obj.layout, b.context.Allocator)
	}
	if obj.pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(b.logical(), obj.pool, b.context.Allocator)
	}
	if obj.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(b.logical(), obj.setLayout, b.context.Allocator)
	}
}

// DestroyPipeline also releases the descriptor sets allocated from it.
func (b *VulkanBackend) DestroyPipeline(p driver.Pipeline) {
	obj, ok := b.pipelines.Remove(uint32(p))
	if !ok {
		return
	}
	b.descriptorSets.Each(func(idx uint32, ds descriptorSetObject) {
		if ds.pipeline == p {
			b.descriptorSets.Remove(idx)
		}
	})
	b.destroyPipeline(obj)
}
