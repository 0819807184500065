package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// CreateRenderPass builds a single subpass pass. Without multisampling the
// attachments are [color, depth]; with it they are [multisample color,
// depth, resolve], the resolve target being the presentable image. Color
// ends in COLOR_ATTACHMENT layout and the caller transitions it for
// presentation.
func (b *VulkanBackend) CreateRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	msaa := samples > 1

	color := vk.AttachmentDescription{
		Format:         toVkFormat(desc.ColorFormat),
		Samples:        vk.SampleCountFlagBits(samples),
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	}
	if msaa {
		color.StoreOp = vk.AttachmentStoreOpDontCare
	}
	depth := vk.AttachmentDescription{
		Format:         toVkFormat(desc.DepthFormat),
		Samples:        vk.SampleCountFlagBits(samples),
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	attachments := []vk.AttachmentDescription{color, depth}
	isDepth := []bool{false, true}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
		PDepthStencilAttachment: &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}
	if msaa {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         toVkFormat(desc.ColorFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		isDepth = append(isDepth, false)
		subpass.PResolveAttachments = []vk.AttachmentReference{{
			Attachment: 2,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var rp vk.RenderPass
	if res := vk.CreateRenderPass(b.logical(), &info, b.context.Allocator, &rp); res != vk.Success {
		return 0, resultError(res, "create render pass")
	}
	return driver.RenderPass(b.renderPasses.Insert(renderPassObject{handle: rp, depth: isDepth})), nil
}

func (b *VulkanBackend) DestroyRenderPass(rp driver.RenderPass) {
	if obj, ok := b.renderPasses.Remove(uint32(rp)); ok {
		vk.DestroyRenderPass(b.logical(), obj.handle, b.context.Allocator)
	}
}

func (b *VulkanBackend) CmdBeginRenderPass(cb driver.CommandBuffer, rp driver.RenderPass, fb driver.Framebuffer, extent driver.Extent, clears []driver.ClearValue) {
	cmd, ok := b.commandBuffers.Get(uint32(cb))
	if !ok {
		return
	}
	pass, ok := b.renderPasses.Get(uint32(rp))
	if !ok {
		return
	}
	framebuffer, ok := b.framebuffers.Get(uint32(fb))
	if !ok {
		return
	}
	values := make([]vk.ClearValue, len(clears))
	for i, c := range clears {
		if i < len(pass.depth) && pass.depth[i] {
			values[i].SetDepthStencil(c.Depth, c.Stencil)
		} else {
			values[i].SetColor(c.Color[:])
		}
	}
	vk.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass.handle,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: extent2D(extent),
		},
		ClearValueCount: uint32(len(values)),
		PClearValues:    values,
	}, vk.SubpassContentsInline)
}

func (b *VulkanBackend) CmdEndRenderPass(cb driver.CommandBuffer) {
	if cmd, ok := b.commandBuffers.Get(uint32(cb)); ok {
		vk.CmdEndRenderPass(cmd)
	}
}

// renderPass is used by pipeline creation.
func (b *VulkanBackend) renderPass(rp driver.RenderPass) (vk.RenderPass, error) {
	obj, ok := b.renderPasses.Get(uint32(rp))
	if !ok {
		return vk.NullRenderPass, errors.Wrapf(driver.ErrUnknownHandle, "render pass %d", rp)
	}
	return obj.handle, nil
}
