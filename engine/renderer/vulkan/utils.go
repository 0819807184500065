package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

var resultNames = map[vk.Result]string{
	vk.Success:                          "VK_SUCCESS",
	vk.NotReady:                         "VK_NOT_READY",
	vk.Timeout:                          "VK_TIMEOUT",
	vk.EventSet:                         "VK_EVENT_SET",
	vk.EventReset:                       "VK_EVENT_RESET",
	vk.Incomplete:                       "VK_INCOMPLETE",
	vk.Suboptimal:                       "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:             "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:           "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed:        "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:                  "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:             "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:             "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:         "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:           "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:          "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:              "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:          "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:              "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorSurfaceLost:                 "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:           "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:                   "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorIncompatibleDisplay:         "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR",
	vk.ErrorOutOfPoolMemory:             "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorFullScreenExclusiveModeLost: "VK_ERROR_FULL_SCREEN_EXCLUSIVE_MODE_LOST_EXT",
	vk.ErrorUnknown:                     "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if s, ok := resultNames[result]; ok {
		return s
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// resultError converts a failed call into an error the swapchain manager
// and the frame loop can classify. It returns nil for vk.Success.
func resultError(res vk.Result, op string) error {
	var cause error
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal:
		cause = driver.ErrSuboptimal
	case vk.ErrorOutOfDate:
		cause = driver.ErrOutOfDate
	case vk.Timeout:
		cause = driver.ErrTimeout
	case vk.NotReady:
		cause = driver.ErrNotReady
	case vk.ErrorSurfaceLost:
		cause = driver.ErrSurfaceLost
	case vk.ErrorDeviceLost:
		return driver.Fatal(errors.Wrapf(driver.ErrDeviceLost, "%s", op))
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory, vk.ErrorInitializationFailed:
		return driver.Fatal(errors.Newf("%s: %s", op, VulkanResultString(res)))
	default:
		return errors.Newf("%s: %s", op, VulkanResultString(res))
	}
	return errors.Wrapf(cause, "%s", op)
}

const endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != endChar {
		return s + string(endChar)
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

var vkFormats = map[driver.Format]vk.Format{
	driver.FormatUndefined:      vk.FormatUndefined,
	driver.FormatB8G8R8A8Unorm:  vk.FormatB8g8r8a8Unorm,
	driver.FormatB8G8R8A8Srgb:   vk.FormatB8g8r8a8Srgb,
	driver.FormatR8G8B8A8Unorm:  vk.FormatR8g8b8a8Unorm,
	driver.FormatR8G8B8A8Srgb:   vk.FormatR8g8b8a8Srgb,
	driver.FormatD16Unorm:       vk.FormatD16Unorm,
	driver.FormatD32Float:       vk.FormatD32Sfloat,
	driver.FormatD32FloatS8Uint: vk.FormatD32SfloatS8Uint,
	driver.FormatD24UnormS8Uint: vk.FormatD24UnormS8Uint,
}

func toVkFormat(f driver.Format) vk.Format {
	return vkFormats[f]
}

func fromVkFormat(f vk.Format) (driver.Format, bool) {
	for df, vf := range vkFormats {
		if vf == f && df != driver.FormatUndefined {
			return df, true
		}
	}
	return driver.FormatUndefined, false
}

var vkColorSpaces = map[driver.ColorSpace]vk.ColorSpace{
	driver.ColorSpaceSrgbNonlinear:      vk.ColorSpaceSrgbNonlinear,
	driver.ColorSpaceExtendedSrgbLinear: vk.ColorSpaceExtendedSrgbLinear,
	driver.ColorSpaceHdr10St2084:        vk.ColorSpaceHdr10St2084,
}

func fromVkColorSpace(cs vk.ColorSpace) (driver.ColorSpace, bool) {
	for dc, vc := range vkColorSpaces {
		if vc == cs {
			return dc, true
		}
	}
	return 0, false
}

var vkPresentModes = map[driver.PresentMode]vk.PresentMode{
	driver.PresentModeImmediate:   vk.PresentModeImmediate,
	driver.PresentModeMailbox:     vk.PresentModeMailbox,
	driver.PresentModeFifo:        vk.PresentModeFifo,
	driver.PresentModeFifoRelaxed: vk.PresentModeFifoRelaxed,
}

func fromVkPresentMode(m vk.PresentMode) (driver.PresentMode, bool) {
	for dm, vm := range vkPresentModes {
		if vm == m {
			return dm, true
		}
	}
	return 0, false
}

var vkLayouts = [...]vk.ImageLayout{
	driver.LayoutUndefined:              vk.ImageLayoutUndefined,
	driver.LayoutColorAttachment:        vk.ImageLayoutColorAttachmentOptimal,
	driver.LayoutDepthStencilAttachment: vk.ImageLayoutDepthStencilAttachmentOptimal,
	driver.LayoutShaderReadOnly:         vk.ImageLayoutShaderReadOnlyOptimal,
	driver.LayoutTransferSrc:            vk.ImageLayoutTransferSrcOptimal,
	driver.LayoutTransferDst:            vk.ImageLayoutTransferDstOptimal,
	driver.LayoutPresentSrc:             vk.ImageLayoutPresentSrc,
}

func toVkLayout(l driver.ImageLayout) vk.ImageLayout {
	return vkLayouts[l]
}

// layoutAccess returns the access mask and pipeline stage that touch an
// image in layout l, used for both sides of a barrier.
func layoutAccess(l driver.ImageLayout) (vk.AccessFlagBits, vk.PipelineStageFlagBits) {
	switch l {
	case driver.LayoutColorAttachment:
		return vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit, vk.PipelineStageColorAttachmentOutputBit
	case driver.LayoutDepthStencilAttachment:
		return vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit, vk.PipelineStageEarlyFragmentTestsBit
	case driver.LayoutShaderReadOnly:
		return vk.AccessShaderReadBit, vk.PipelineStageFragmentShaderBit
	case driver.LayoutTransferSrc:
		return vk.AccessTransferReadBit, vk.PipelineStageTransferBit
	case driver.LayoutTransferDst:
		return vk.AccessTransferWriteBit, vk.PipelineStageTransferBit
	case driver.LayoutPresentSrc:
		return 0, vk.PipelineStageBottomOfPipeBit
	}
	return 0, vk.PipelineStageTopOfPipeBit
}

func toVkImageUsage(u driver.ImageUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlagBits
	if u&driver.UsageColorAttachment != 0 {
		out |= vk.ImageUsageColorAttachmentBit
	}
	if u&driver.UsageDepthStencilAttachment != 0 {
		out |= vk.ImageUsageDepthStencilAttachmentBit
	}
	if u&driver.UsageTransientAttachment != 0 {
		out |= vk.ImageUsageTransientAttachmentBit
	}
	if u&driver.UsageSampled != 0 {
		out |= vk.ImageUsageSampledBit
	}
	if u&driver.UsageTransferSrc != 0 {
		out |= vk.ImageUsageTransferSrcBit
	}
	if u&driver.UsageTransferDst != 0 {
		out |= vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(out)
}

func toVkAspect(a driver.Aspect) vk.ImageAspectFlags {
	var out vk.ImageAspectFlagBits
	if a&driver.AspectColor != 0 {
		out |= vk.ImageAspectColorBit
	}
	if a&driver.AspectDepth != 0 {
		out |= vk.ImageAspectDepthBit
	}
	if a&driver.AspectStencil != 0 {
		out |= vk.ImageAspectStencilBit
	}
	return vk.ImageAspectFlags(out)
}

func toVkStages(s driver.PipelineStage) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	if s&driver.StageTopOfPipe != 0 {
		out |= vk.PipelineStageTopOfPipeBit
	}
	if s&driver.StageColorAttachmentOutput != 0 {
		out |= vk.PipelineStageColorAttachmentOutputBit
	}
	if s&driver.StageEarlyFragmentTests != 0 {
		out |= vk.PipelineStageEarlyFragmentTestsBit
	}
	if s&driver.StageFragmentShader != 0 {
		out |= vk.PipelineStageFragmentShaderBit
	}
	if s&driver.StageTransfer != 0 {
		out |= vk.PipelineStageTransferBit
	}
	if s&driver.StageBottomOfPipe != 0 {
		out |= vk.PipelineStageBottomOfPipeBit
	}
	if out == 0 {
		out = vk.PipelineStageTopOfPipeBit
	}
	return vk.PipelineStageFlags(out)
}

func toVkShaderStages(s driver.ShaderStage) vk.ShaderStageFlags {
	var out vk.ShaderStageFlagBits
	if s&driver.ShaderVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if s&driver.ShaderFragment != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageFlags(out)
}

func toVkBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	var out vk.BufferUsageFlagBits
	if u&driver.BufferVertex != 0 {
		out |= vk.BufferUsageVertexBufferBit
	}
	if u&driver.BufferIndex != 0 {
		out |= vk.BufferUsageIndexBufferBit
	}
	if u&driver.BufferUniform != 0 {
		out |= vk.BufferUsageUniformBufferBit
	}
	if u&driver.BufferTransferSrc != 0 {
		out |= vk.BufferUsageTransferSrcBit
	}
	if u&driver.BufferTransferDst != 0 {
		out |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(out)
}

var vkVertexFormats = [...]vk.Format{
	driver.VertexFloat2: vk.FormatR32g32Sfloat,
	driver.VertexFloat3: vk.FormatR32g32b32Sfloat,
	driver.VertexFloat4: vk.FormatR32g32b32a32Sfloat,
}

func toVkDescriptorType(t driver.DescriptorType) vk.DescriptorType {
	if t == driver.DescriptorCombinedImageSampler {
		return vk.DescriptorTypeCombinedImageSampler
	}
	return vk.DescriptorTypeUniformBuffer
}

func extent2D(e driver.Extent) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}
