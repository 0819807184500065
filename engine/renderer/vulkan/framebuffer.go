package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

func (b *VulkanBackend) CreateFramebuffer(rp driver.RenderPass, attachments []driver.ImageView, extent driver.Extent) (driver.Framebuffer, error) {
	pass, err := b.renderPass(rp)
	if err != nil {
		return 0, err
	}
	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		v, ok := b.views.Get(uint32(a))
		if !ok {
			return 0, errors.Wrapf(driver.ErrUnknownHandle, "image view %d", a)
		}
		views[i] = v
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(b.logical(), &info, b.context.Allocator, &fb); res != vk.Success {
		return 0, resultError(res, "create framebuffer")
	}
	return driver.Framebuffer(b.framebuffers.Insert(fb)), nil
}

func (b *VulkanBackend) DestroyFramebuffer(fb driver.Framebuffer) {
	if h, ok := b.framebuffers.Remove(uint32(fb)); ok {
		vk.DestroyFramebuffer(b.logical(), h, b.context.Allocator)
	}
}
