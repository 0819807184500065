package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

func (b *VulkanBackend) CreateSemaphore() (driver.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(b.logical(), &info, b.context.Allocator, &sem); res != vk.Success {
		return 0, resultError(res, "create semaphore")
	}
	return driver.Semaphore(b.semaphores.Insert(sem)), nil
}

func (b *VulkanBackend) DestroySemaphore(s driver.Semaphore) {
	if sem, ok := b.semaphores.Remove(uint32(s)); ok {
		vk.DestroySemaphore(b.logical(), sem, b.context.Allocator)
	}
}

func (b *VulkanBackend) CreateFence(signaled bool) (driver.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(b.logical(), &info, b.context.Allocator, &fence); res != vk.Success {
		return 0, resultError(res, "create fence")
	}
	return driver.Fence(b.fences.Insert(fence)), nil
}

func (b *VulkanBackend) DestroyFence(f driver.Fence) {
	if fence, ok := b.fences.Remove(uint32(f)); ok {
		vk.DestroyFence(b.logical(), fence, b.context.Allocator)
	}
}

func (b *VulkanBackend) WaitFence(f driver.Fence, timeout uint64) error {
	fence, ok := b.fences.Get(uint32(f))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "fence %d", f)
	}
	res := vk.WaitForFences(b.logical(), 1, []vk.Fence{fence}, vk.True, timeout)
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("fence %d wait timed out", f)
	case vk.ErrorDeviceLost:
		core.LogError("fence %d wait: VK_ERROR_DEVICE_LOST", f)
	}
	return resultError(res, "wait for fence")
}

func (b *VulkanBackend) ResetFence(f driver.Fence) error {
	fence, ok := b.fences.Get(uint32(f))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "fence %d", f)
	}
	return resultError(vk.ResetFences(b.logical(), 1, []vk.Fence{fence}), "reset fence")
}
