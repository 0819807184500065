package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

func (b *VulkanBackend) vkSurface(s driver.Surface) (vk.Surface, error) {
	surface, ok := b.surfaces.Get(uint32(s))
	if !ok {
		return vk.NullSurface, errors.Wrapf(driver.ErrUnknownHandle, "surface %d", s)
	}
	return surface, nil
}

func (b *VulkanBackend) SurfaceFormats(s driver.Surface) ([]driver.SurfaceFormat, error) {
	surface, err := b.vkSurface(s)
	if err != nil {
		return nil, err
	}
	pd := b.device.PhysicalDevice
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, nil); res != vk.Success {
		return nil, resultError(res, "get surface formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	if count > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &count, formats); res != vk.Success {
			return nil, resultError(res, "get surface formats")
		}
	}
	out := make([]driver.SurfaceFormat, 0, count)
	for i := range formats {
		formats[i].Deref()
		f, ok := fromVkFormat(formats[i].Format)
		if !ok {
			continue
		}
		cs, ok := fromVkColorSpace(formats[i].ColorSpace)
		if !ok {
			continue
		}
		out = append(out, driver.SurfaceFormat{Format: f, ColorSpace: cs})
	}
	if len(out) == 0 && count > 0 {
		core.LogWarn("surface reports %d formats, none of them usable", count)
	}
	return out, nil
}

func (b *VulkanBackend) SurfacePresentModes(s driver.Surface) ([]driver.PresentMode, error) {
	surface, err := b.vkSurface(s)
	if err != nil {
		return nil, err
	}
	pd := b.device.PhysicalDevice
	var count uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, nil); res != vk.Success {
		return nil, resultError(res, "get present modes")
	}
	modes := make([]vk.PresentMode, count)
	if count > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &count, modes); res != vk.Success {
			return nil, resultError(res, "get present modes")
		}
	}
	out := make([]driver.PresentMode, 0, count)
	for _, m := range modes {
		if dm, ok := fromVkPresentMode(m); ok {
			out = append(out, dm)
		}
	}
	return out, nil
}

func (b *VulkanBackend) vkCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(b.device.PhysicalDevice, surface, &caps); res != vk.Success {
		return caps, resultError(res, "get surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func (b *VulkanBackend) SurfaceCapabilities(s driver.Surface) (driver.SurfaceCapabilities, error) {
	surface, err := b.vkSurface(s)
	if err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	caps, err := b.vkCapabilities(surface)
	if err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	return driver.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  driver.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent: driver.Extent{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent: driver.Extent{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}, nil
}

func (b *VulkanBackend) SupportsDepthAttachment(f driver.Format) bool {
	if !f.IsDepth() {
		return false
	}
	return b.device.supportsDepth(toVkFormat(f))
}

func (b *VulkanBackend) SampleCounts() driver.SampleCountFlags {
	return b.device.sampleCounts()
}

// compositeAlpha prefers an opaque surface and falls back to whatever
// the surface supports.
func compositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, bit := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if supported&vk.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func (b *VulkanBackend) CreateSwapchain(desc driver.SwapchainDesc) (driver.Swapchain, error) {
	surface, err := b.vkSurface(desc.Surface)
	if err != nil {
		return 0, err
	}
	caps, err := b.vkCapabilities(surface)
	if err != nil {
		return 0, err
	}
	old := vk.NullSwapchain
	if desc.Old != 0 {
		o, ok := b.swapchains.Get(uint32(desc.Old))
		if !ok {
			return 0, errors.Wrapf(driver.ErrUnknownHandle, "swapchain %d", desc.Old)
		}
		old = o.handle
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    desc.ImageCount,
		ImageFormat:      toVkFormat(desc.Format.Format),
		ImageColorSpace:  vkColorSpaces[desc.Format.ColorSpace],
		ImageExtent:      extent2D(desc.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       toVkImageUsage(desc.Usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   compositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:      vkPresentModes[desc.PresentMode],
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	if b.device.GraphicsQueueIndex != b.device.PresentQueueIndex {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = 2
		info.PQueueFamilyIndices = []uint32{b.device.GraphicsQueueIndex, b.device.PresentQueueIndex}
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(b.logical(), &info, b.context.Allocator, &handle); res != vk.Success {
		return 0, resultError(res, "create swapchain")
	}

	var count uint32
	if res := vk.GetSwapchainImages(b.logical(), handle, &count, nil); res != vk.Success {
		vk.DestroySwapchain(b.logical(), handle, b.context.Allocator)
		return 0, resultError(res, "get swapchain images")
	}
	raw := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(b.logical(), handle, &count, raw); res != vk.Success {
		vk.DestroySwapchain(b.logical(), handle, b.context.Allocator)
		return 0, resultError(res, "get swapchain images")
	}
	obj := swapchainObject{handle: handle, images: make([]driver.Image, count)}
	for i, img := range raw {
		obj.images[i] = driver.Image(b.images.Insert(imageObject{handle: img, memory: vk.NullDeviceMemory}))
	}
	core.LogDebug("swapchain created: %s, %d images, %s", desc.Extent, count, desc.PresentMode)
	return driver.Swapchain(b.swapchains.Insert(obj)), nil
}

func (b *VulkanBackend) DestroySwapchain(sc driver.Swapchain) {
	obj, ok := b.swapchains.Remove(uint32(sc))
	if !ok {
		return
	}
	for _, img := range obj.images {
		b.images.Remove(uint32(img))
	}
	vk.DestroySwapchain(b.logical(), obj.handle, b.context.Allocator)
}

func (b *VulkanBackend) SwapchainImages(sc driver.Swapchain) ([]driver.Image, error) {
	obj, ok := b.swapchains.Get(uint32(sc))
	if !ok {
		return nil, errors.Wrapf(driver.ErrUnknownHandle, "swapchain %d", sc)
	}
	return append([]driver.Image(nil), obj.images...), nil
}

func (b *VulkanBackend) AcquireNextImage(sc driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	obj, ok := b.swapchains.Get(uint32(sc))
	if !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "swapchain %d", sc)
	}
	sem, ok := b.semaphores.Get(uint32(signal))
	if !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "semaphore %d", signal)
	}
	var index uint32
	res := vk.AcquireNextImage(b.logical(), obj.handle, timeout, sem, vk.NullFence, &index)
	switch res {
	case vk.Success:
		return index, nil
	case vk.Suboptimal:
		return index, resultError(res, "acquire next image")
	}
	return 0, resultError(res, "acquire next image")
}

func (b *VulkanBackend) Present(q driver.Queue, sc driver.Swapchain, index uint32, wait driver.Semaphore) error {
	queue, err := b.queue(q)
	if err != nil {
		return err
	}
	obj, ok := b.swapchains.Get(uint32(sc))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "swapchain %d", sc)
	}
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{obj.handle},
		PImageIndices:  []uint32{index},
	}
	if wait != 0 {
		sem, ok := b.semaphores.Get(uint32(wait))
		if !ok {
			return errors.Wrapf(driver.ErrUnknownHandle, "semaphore %d", wait)
		}
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{sem}
	}
	return resultError(vk.QueuePresent(queue, &presentInfo), "queue present")
}
