package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// createVkImage creates an optimally tiled 2D image backed by its own
// device-local allocation.
func (b *VulkanBackend) createVkImage(extent driver.Extent, format vk.Format, usage vk.ImageUsageFlags, samples driver.SampleCount) (vk.Image, vk.DeviceMemory, error) {
	if samples == 0 {
		samples = 1
	}
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCountFlagBits(samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(b.logical(), &info, b.context.Allocator, &img); res != vk.Success {
		return vk.NullImage, vk.NullDeviceMemory, resultError(res, "create image")
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.logical(), img, &reqs)
	reqs.Deref()
	memType, ok := b.device.FindMemoryIndex(reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		vk.DestroyImage(b.logical(), img, b.context.Allocator)
		return vk.NullImage, vk.NullDeviceMemory, errors.New("no device local memory type for image")
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(b.logical(), &allocInfo, b.context.Allocator, &mem); res != vk.Success {
		vk.DestroyImage(b.logical(), img, b.context.Allocator)
		return vk.NullImage, vk.NullDeviceMemory, resultError(res, "allocate image memory")
	}
	if res := vk.BindImageMemory(b.logical(), img, mem, 0); res != vk.Success {
		vk.FreeMemory(b.logical(), mem, b.context.Allocator)
		vk.DestroyImage(b.logical(), img, b.context.Allocator)
		return vk.NullImage, vk.NullDeviceMemory, resultError(res, "bind image memory")
	}
	return img, mem, nil
}

func (b *VulkanBackend) createVkView(img vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(b.logical(), &info, b.context.Allocator, &view); res != vk.Success {
		return vk.NullImageView, resultError(res, "create image view")
	}
	return view, nil
}

func (b *VulkanBackend) CreateImage(desc driver.ImageDesc) (driver.Image, error) {
	img, mem, err := b.createVkImage(desc.Extent, toVkFormat(desc.Format), toVkImageUsage(desc.Usage), desc.Samples)
	if err != nil {
		return 0, err
	}
	return driver.Image(b.images.Insert(imageObject{handle: img, memory: mem})), nil
}

func (b *VulkanBackend) DestroyImage(img driver.Image) {
	obj, ok := b.images.Get(uint32(img))
	if !ok || obj.memory == vk.NullDeviceMemory {
		// swapchain images go away with their swapchain
		return
	}
	b.images.Remove(uint32(img))
	vk.DestroyImage(b.logical(), obj.handle, b.context.Allocator)
	vk.FreeMemory(b.logical(), obj.memory, b.context.Allocator)
}

func (b *VulkanBackend) CreateImageView(img driver.Image, f driver.Format, aspect driver.Aspect) (driver.ImageView, error) {
	obj, ok := b.images.Get(uint32(img))
	if !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "image %d", img)
	}
	view, err := b.createVkView(obj.handle, toVkFormat(f), toVkAspect(aspect))
	if err != nil {
		return 0, err
	}
	return driver.ImageView(b.views.Insert(view)), nil
}

func (b *VulkanBackend) DestroyImageView(v driver.ImageView) {
	if view, ok := b.views.Remove(uint32(v)); ok {
		vk.DestroyImageView(b.logical(), view, b.context.Allocator)
	}
}
