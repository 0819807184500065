package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

const portabilitySubset = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	anisotropy bool
}

type queueFamilies struct {
	graphics, present       uint32
	hasGraphics, hasPresent bool
}

// selectPhysicalDevice picks the first discrete GPU able to render and
// present to surface, falling back to any suitable device.
func selectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*VulkanDevice, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success {
		return nil, driver.Fatal(resultError(res, "enumerate physical devices"))
	}
	if count == 0 {
		return nil, driver.Fatal(errors.Wrap(driver.ErrNoDevice, "no devices which support Vulkan were found"))
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, devices); res != vk.Success {
		return nil, driver.Fatal(resultError(res, "enumerate physical devices"))
	}

	var chosen *VulkanDevice
	for _, pd := range devices {
		dev, ok := deviceMeetsRequirements(pd, surface)
		if !ok {
			continue
		}
		if chosen == nil || (dev.Properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu &&
			chosen.Properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu) {
			chosen = dev
		}
	}
	if chosen == nil {
		return nil, driver.Fatal(errors.Wrap(driver.ErrNoDevice, "no physical device meets the requirements"))
	}

	props := chosen.Properties
	core.LogInfo("Selected device: '%s'.", vk.ToString(props.DeviceName[:]))
	switch props.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo("Vulkan API version: %d.%d.%d",
		vk.Version(props.ApiVersion).Major(),
		vk.Version(props.ApiVersion).Minor(),
		vk.Version(props.ApiVersion).Patch())
	for j := uint32(0); j < chosen.Memory.MemoryHeapCount; j++ {
		heap := chosen.Memory.MemoryHeaps[j]
		heap.Deref()
		gib := float64(heap.Size) / 1024 / 1024 / 1024
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", gib)
		}
	}
	return chosen, nil
}

func deviceMeetsRequirements(pd vk.PhysicalDevice, surface vk.Surface) (*VulkanDevice, bool) {
	dev := &VulkanDevice{PhysicalDevice: pd}
	vk.GetPhysicalDeviceProperties(pd, &dev.Properties)
	dev.Properties.Deref()
	dev.Properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(pd, &dev.Features)
	dev.Features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(pd, &dev.Memory)
	dev.Memory.Deref()
	name := vk.ToString(dev.Properties.DeviceName[:])

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)

	var qf queueFamilies
	for i := range families {
		families[i].Deref()
		idx := uint32(i)
		graphics := vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0
		var present vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(pd, idx, surface, &present); res != vk.Success {
			return nil, false
		}
		// a family doing both avoids concurrent sharing of swapchain images
		if graphics && present == vk.True {
			qf = queueFamilies{graphics: idx, present: idx, hasGraphics: true, hasPresent: true}
			break
		}
		if graphics && !qf.hasGraphics {
			qf.graphics, qf.hasGraphics = idx, true
		}
		if present == vk.True && !qf.hasPresent {
			qf.present, qf.hasPresent = idx, true
		}
	}
	if !qf.hasGraphics || !qf.hasPresent {
		core.LogInfo("Device '%s' lacks graphics or present queues, skipping.", name)
		return nil, false
	}
	if !hasDeviceExtension(pd, vk.KhrSwapchainExtensionName) {
		core.LogInfo("Device '%s' does not support swapchains, skipping.", name)
		return nil, false
	}

	var formatCount, modeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil)
	if formatCount == 0 || modeCount == 0 {
		core.LogInfo("Required swapchain support not present on '%s', skipping.", name)
		return nil, false
	}

	dev.GraphicsQueueIndex = qf.graphics
	dev.PresentQueueIndex = qf.present
	dev.anisotropy = dev.Features.SamplerAnisotropy == vk.True
	core.LogDebug("Device '%s': graphics family %d, present family %d", name, qf.graphics, qf.present)
	return dev, true
}

func hasDeviceExtension(pd vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	exts := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, exts); res != vk.Success {
		return false
	}
	for i := range exts {
		exts[i].Deref()
		if vk.ToString(exts[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

// create builds the logical device, fetches its queues and creates the
// graphics command pool.
func (d *VulkanDevice) create(allocator *vk.AllocationCallbacks) error {
	core.LogInfo("Creating logical device...")

	indices := []uint32{d.GraphicsQueueIndex}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		indices = append(indices, d.PresentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, idx := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	features := vk.PhysicalDeviceFeatures{}
	if d.anisotropy {
		features.SamplerAnisotropy = vk.True
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(d.PhysicalDevice, portabilitySubset) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	var device vk.Device
	if res := vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, allocator, &device); res != vk.Success {
		return driver.Fatal(resultError(res, "create logical device"))
	}
	d.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var graphics, present vk.Queue
	vk.GetDeviceQueue(device, d.GraphicsQueueIndex, 0, &graphics)
	vk.GetDeviceQueue(device, d.PresentQueueIndex, 0, &present)
	d.GraphicsQueue, d.PresentQueue = graphics, present

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device, &poolCreateInfo, allocator, &pool); res != vk.Success {
		return driver.Fatal(resultError(res, "create graphics command pool"))
	}
	d.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

func (d *VulkanDevice) destroy(allocator *vk.AllocationCallbacks) {
	d.GraphicsQueue = nil
	d.PresentQueue = nil
	if d.GraphicsCommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, allocator)
		d.GraphicsCommandPool = vk.NullCommandPool
	}
	if d.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, allocator)
		d.LogicalDevice = nil
	}
	d.PhysicalDevice = nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has all of propertyFlags.
func (d *VulkanDevice) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		d.Memory.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(d.Memory.MemoryTypes[i].PropertyFlags)
		if typeFilter&(1<<i) != 0 && flags&propertyFlags == propertyFlags {
			return i, true
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, false
}

// supportsDepth reports whether f works as an optimally tiled depth-stencil
// attachment.
func (d *VulkanDevice) supportsDepth(f vk.Format) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, f, &props)
	props.Deref()
	bit := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return props.OptimalTilingFeatures&bit == bit
}

// sampleCounts is the set of counts usable by both color and depth
// attachments.
func (d *VulkanDevice) sampleCounts() driver.SampleCountFlags {
	limits := d.Properties.Limits
	return driver.SampleCountFlags(limits.FramebufferColorSampleCounts & limits.FramebufferDepthSampleCounts)
}
