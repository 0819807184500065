package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// maxDescriptorSets bounds the sets one pipeline can allocate, enough for
// one set per swapchain slot with room to spare.
const maxDescriptorSets = 16

func (b *VulkanBackend) createSetLayout(bindings []driver.DescriptorBinding) (vk.DescriptorSetLayout, vk.DescriptorPool, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	counts := map[vk.DescriptorType]uint32{}
	for i, binding := range bindings {
		t := toVkDescriptorType(binding.Type)
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         binding.Binding,
			DescriptorType:  t,
			DescriptorCount: 1,
			StageFlags:      toVkShaderStages(binding.Stages),
		}
		counts[t]++
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(b.logical(), &layoutInfo, b.context.Allocator, &layout); res != vk.Success {
		return vk.NullDescriptorSetLayout, vk.NullDescriptorPool, resultError(res, "create descriptor set layout")
	}
	if len(bindings) == 0 {
		return layout, vk.NullDescriptorPool, nil
	}

	sizes := make([]vk.DescriptorPoolSize, 0, len(counts))
	for t, n := range counts {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: n * maxDescriptorSets})
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxDescriptorSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(b.logical(), &poolInfo, b.context.Allocator, &pool); res != vk.Success {
		vk.DestroyDescriptorSetLayout(b.logical(), layout, b.context.Allocator)
		return vk.NullDescriptorSetLayout, vk.NullDescriptorPool, resultError(res, "create descriptor pool")
	}
	return layout, pool, nil
}

// AllocateDescriptorSet allocates a set matching the layout of p. Sets are
// released together with the pipeline.
func (b *VulkanBackend) AllocateDescriptorSet(p driver.Pipeline) (driver.DescriptorSet, error) {
	pl, ok := b.pipelines.Get(uint32(p))
	if !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "pipeline %d", p)
	}
	if pl.pool == vk.NullDescriptorPool {
		return 0, errors.Newf("pipeline %d has no descriptor bindings", p)
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pl.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{pl.setLayout},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(b.logical(), &info, &set); res != vk.Success {
		return 0, resultError(res, "allocate descriptor set")
	}
	return driver.DescriptorSet(b.descriptorSets.Insert(descriptorSetObject{handle: set, pipeline: p})), nil
}

func (b *VulkanBackend) WriteUniformDescriptor(set driver.DescriptorSet, binding uint32, buf driver.Buffer) error {
	ds, ok := b.descriptorSets.Get(uint32(set))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "descriptor set %d", set)
	}
	obj, ok := b.buffers.Get(uint32(buf))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "buffer %d", buf)
	}
	vk.UpdateDescriptorSets(b.logical(), 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          ds.handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: obj.handle,
			Range:  vk.DeviceSize(obj.size),
		}},
	}}, 0, nil)
	return nil
}

func (b *VulkanBackend) WriteTextureDescriptor(set driver.DescriptorSet, binding uint32, t driver.Texture) error {
	ds, ok := b.descriptorSets.Get(uint32(set))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "descriptor set %d", set)
	}
	tex, ok := b.textures.Get(uint32(t))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "texture %d", t)
	}
	vk.UpdateDescriptorSets(b.logical(), 1, []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          ds.handle,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     tex.sampler,
			ImageView:   tex.view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}}, 0, nil)
	return nil
}
