package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// VulkanContext holds the instance level state shared by every device
// object.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	debugCallback vk.DebugReportCallback
	validation    bool
}

func newContext(appName string, extensions []string, validation bool) (*VulkanContext, error) {
	if err := vk.Init(); err != nil {
		return nil, driver.Fatal(errors.Wrap(err, "initialize vulkan loader"))
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("vkframe"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	required := append([]string{"VK_KHR_surface"}, extensions...)
	if runtime.GOOS == "darwin" {
		required = append(required, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if validation {
		if !layerAvailable(validationLayer) {
			core.LogWarn("validation layer %s is not installed, continuing without it", validationLayer)
			validation = false
		} else {
			layers = append(layers, validationLayer)
			required = append(required, vk.ExtDebugReportExtensionName)
		}
	}
	for _, ext := range required {
		core.LogDebug("instance extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(required))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(required)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	ctx := &VulkanContext{validation: validation}
	if res := vk.CreateInstance(&createInfo, ctx.Allocator, &ctx.Instance); res != vk.Success {
		if res == vk.ErrorIncompatibleDriver {
			return nil, driver.Fatal(errors.Wrap(driver.ErrNoDevice, "create instance"))
		}
		return nil, driver.Fatal(resultError(res, "create instance"))
	}
	if err := vk.InitInstance(ctx.Instance); err != nil {
		return nil, driver.Fatal(errors.Wrap(err, "load instance functions"))
	}
	core.LogInfo("Vulkan instance created.")

	if validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		if res := vk.CreateDebugReportCallback(ctx.Instance, &debugCreateInfo, ctx.Allocator, &ctx.debugCallback); res != vk.Success {
			core.LogWarn("debug report callback unavailable: %s", VulkanResultString(res))
		} else {
			core.LogDebug("Vulkan debugger created.")
		}
	}
	return ctx, nil
}

func (vc *VulkanContext) destroy() {
	if vc.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugCallback, vc.Allocator)
		vc.debugCallback = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func layerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if vk.ToString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
