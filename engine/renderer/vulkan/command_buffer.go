package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// AllocateCommandBuffers allocates primary command buffers from the
// graphics pool. They can be reset individually.
func (b *VulkanBackend) AllocateCommandBuffers(n int) ([]driver.CommandBuffer, error) {
	if n <= 0 {
		return nil, nil
	}
	raw := make([]vk.CommandBuffer, n)
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}
	if res := vk.AllocateCommandBuffers(b.logical(), &info, raw); res != vk.Success {
		return nil, resultError(res, "allocate command buffers")
	}
	out := make([]driver.CommandBuffer, n)
	for i, cb := range raw {
		out[i] = driver.CommandBuffer(b.commandBuffers.Insert(cb))
	}
	return out, nil
}

func (b *VulkanBackend) FreeCommandBuffers(cbs []driver.CommandBuffer) {
	raw := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		if h, ok := b.commandBuffers.Remove(uint32(cb)); ok {
			raw = append(raw, h)
		}
	}
	if len(raw) > 0 {
		vk.FreeCommandBuffers(b.logical(), b.device.GraphicsCommandPool, uint32(len(raw)), raw)
	}
}

func (b *VulkanBackend) cmd(cb driver.CommandBuffer) (vk.CommandBuffer, error) {
	h, ok := b.commandBuffers.Get(uint32(cb))
	if !ok {
		return nil, errors.Wrapf(driver.ErrUnknownHandle, "command buffer %d", cb)
	}
	return h, nil
}

func (b *VulkanBackend) BeginCommandBuffer(cb driver.CommandBuffer, oneTime bool) error {
	h, err := b.cmd(cb)
	if err != nil {
		return err
	}
	info := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if oneTime {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return resultError(vk.BeginCommandBuffer(h, &info), "begin command buffer")
}

func (b *VulkanBackend) EndCommandBuffer(cb driver.CommandBuffer) error {
	h, err := b.cmd(cb)
	if err != nil {
		return err
	}
	return resultError(vk.EndCommandBuffer(h), "end command buffer")
}

func (b *VulkanBackend) ResetCommandBuffer(cb driver.CommandBuffer) error {
	h, err := b.cmd(cb)
	if err != nil {
		return err
	}
	return resultError(vk.ResetCommandBuffer(h, 0), "reset command buffer")
}

func (b *VulkanBackend) CmdImageBarrier(cb driver.CommandBuffer, img driver.Image, aspect driver.Aspect, from, to driver.ImageLayout) {
	h, err := b.cmd(cb)
	if err != nil {
		return
	}
	obj, ok := b.images.Get(uint32(img))
	if !ok {
		return
	}
	b.barrier(h, obj.handle, toVkAspect(aspect), from, to)
}

func (b *VulkanBackend) barrier(cmd vk.CommandBuffer, img vk.Image, aspect vk.ImageAspectFlags, from, to driver.ImageLayout) {
	srcAccess, srcStage := layoutAccess(from)
	dstAccess, dstStage := layoutAccess(to)
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage),
		0, 0, nil, 0, nil, 1,
		[]vk.ImageMemoryBarrier{{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(srcAccess),
			DstAccessMask:       vk.AccessFlags(dstAccess),
			OldLayout:           toVkLayout(from),
			NewLayout:           toVkLayout(to),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspect,
				LevelCount: 1,
				LayerCount: 1,
			},
		}})
}

// CmdSetViewport covers the whole extent with both the viewport and the
// scissor.
func (b *VulkanBackend) CmdSetViewport(cb driver.CommandBuffer, extent driver.Extent) {
	h, err := b.cmd(cb)
	if err != nil {
		return
	}
	vk.CmdSetViewport(h, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(h, 0, 1, []vk.Rect2D{{Extent: extent2D(extent)}})
}

func (b *VulkanBackend) CmdBindPipeline(cb driver.CommandBuffer, p driver.Pipeline) {
	h, err := b.cmd(cb)
	if err != nil {
		return
	}
	if obj, ok := b.pipelines.Get(uint32(p)); ok {
		vk.CmdBindPipeline(h, vk.PipelineBindPointGraphics, obj.handle)
	}
}

func (b *VulkanBackend) CmdBindDescriptorSet(cb driver.CommandBuffer, p driver.Pipeline, set driver.DescriptorSet) {
	h, err := b.cmd(cb)
	if err != nil {
		return
	}
	pl, ok := b.pipelines.Get(uint32(p))
	if !ok {
		return
	}
	ds, ok := b.descriptorSets.Get(uint32(set))
	if !ok {
		return
	}
	vk.CmdBindDescriptorSets(h, vk.PipelineBindPointGraphics, pl.layout, 0, 1, []vk.DescriptorSet{ds.handle}, 0, nil)
}

func (b *VulkanBackend) CmdPushConstants(cb driver.CommandBuffer, p driver.Pipeline, data []byte) {
	if len(data) == 0 {
		return
	}
	h, err := b.cmd(cb)
	if err != nil {
		return
	}
	if pl, ok := b.pipelines.Get(uint32(p)); ok {
		vk.CmdPushConstants(h, pl.layout, pl.pushStages, 0, uint32(len(data)), unsafe.Pointer(&data[0]))
	}
}

func (b *VulkanBackend) CmdBindVertexBuffer(cb driver.CommandBuffer, buf driver.Buffer) {
	h, err := b.cmd(cb)
	if err != nil {
		return
	}
	if obj, ok := b.buffers.Get(uint32(buf)); ok {
		vk.CmdBindVertexBuffers(h, 0, 1, []vk.Buffer{obj.handle}, []vk.DeviceSize{0})
	}
}

func (b *VulkanBackend) CmdBindIndexBuffer(cb driver.CommandBuffer, buf driver.Buffer, t driver.IndexType) {
	h, err := b.cmd(cb)
	if err != nil {
		return
	}
	obj, ok := b.buffers.Get(uint32(buf))
	if !ok {
		return
	}
	indexType := vk.IndexTypeUint16
	if t == driver.IndexUint32 {
		indexType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(h, obj.handle, 0, indexType)
}

func (b *VulkanBackend) CmdDraw(cb driver.CommandBuffer, vertexCount uint32) {
	if h, err := b.cmd(cb); err == nil {
		vk.CmdDraw(h, vertexCount, 1, 0, 0)
	}
}

func (b *VulkanBackend) CmdDrawIndexed(cb driver.CommandBuffer, indexCount uint32) {
	if h, err := b.cmd(cb); err == nil {
		vk.CmdDrawIndexed(h, indexCount, 1, 0, 0, 0)
	}
}
