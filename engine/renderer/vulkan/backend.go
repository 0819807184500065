// Package vulkan implements the driver interfaces on top of goki/vulkan.
// Device objects live in per-kind arenas and are handed out as the typed
// indices of the driver package.
package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/vkframe/engine/containers"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

// SurfaceSource is the part of a platform window the backend needs to
// bootstrap Vulkan and create a presentation surface.
type SurfaceSource interface {
	ProcAddr() unsafe.Pointer
	RequiredExtensions() []string
	CreateSurface(instance interface{}) (uintptr, error)
}

type Config struct {
	ApplicationName string
	Validation      bool
}

const (
	graphicsQueue driver.Queue = 1
	presentQueue  driver.Queue = 2
)

type imageObject struct {
	handle vk.Image
	// memory is null for images owned by a swapchain
	memory vk.DeviceMemory
}

type swapchainObject struct {
	handle vk.Swapchain
	images []driver.Image
}

type renderPassObject struct {
	handle vk.RenderPass
	// depth marks the attachments cleared with depth/stencil values
	depth []bool
}

type bufferObject struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	mapped unsafe.Pointer
}

type textureObject struct {
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler
}

type pipelineObject struct {
	handle     vk.Pipeline
	layout     vk.PipelineLayout
	setLayout  vk.DescriptorSetLayout
	pool       vk.DescriptorPool
	pushStages vk.ShaderStageFlags
}

type descriptorSetObject struct {
	handle   vk.DescriptorSet
	pipeline driver.Pipeline
}

type VulkanBackend struct {
	context  *VulkanContext
	device   *VulkanDevice
	transfer *transferContext
	surface  driver.Surface

	surfaces       *containers.Arena[vk.Surface]
	swapchains     *containers.Arena[swapchainObject]
	images         *containers.Arena[imageObject]
	views          *containers.Arena[vk.ImageView]
	renderPasses   *containers.Arena[renderPassObject]
	framebuffers   *containers.Arena[vk.Framebuffer]
	commandBuffers *containers.Arena[vk.CommandBuffer]
	fences         *containers.Arena[vk.Fence]
	semaphores     *containers.Arena[vk.Semaphore]
	buffers        *containers.Arena[bufferObject]
	textures       *containers.Arena[textureObject]
	pipelines      *containers.Arena[pipelineObject]
	descriptorSets *containers.Arena[descriptorSetObject]
}

var _ driver.Device = (*VulkanBackend)(nil)

// New loads Vulkan through win, creates the instance, a surface for win and
// a logical device able to render and present to it.
func New(cfg Config, win SurfaceSource) (*VulkanBackend, error) {
	procAddr := win.ProcAddr()
	if procAddr == nil {
		return nil, driver.Fatal(errors.Wrap(driver.ErrNoDevice, "vkGetInstanceProcAddr is unavailable"))
	}
	vk.SetGetInstanceProcAddr(procAddr)

	b := &VulkanBackend{
		surfaces:       containers.NewArena[vk.Surface](),
		swapchains:     containers.NewArena[swapchainObject](),
		images:         containers.NewArena[imageObject](),
		views:          containers.NewArena[vk.ImageView](),
		renderPasses:   containers.NewArena[renderPassObject](),
		framebuffers:   containers.NewArena[vk.Framebuffer](),
		commandBuffers: containers.NewArena[vk.CommandBuffer](),
		fences:         containers.NewArena[vk.Fence](),
		semaphores:     containers.NewArena[vk.Semaphore](),
		buffers:        containers.NewArena[bufferObject](),
		textures:       containers.NewArena[textureObject](),
		pipelines:      containers.NewArena[pipelineObject](),
		descriptorSets: containers.NewArena[descriptorSetObject](),
	}

	ctx, err := newContext(cfg.ApplicationName, win.RequiredExtensions(), cfg.Validation)
	if err != nil {
		return nil, err
	}
	b.context = ctx

	core.LogDebug("Creating Vulkan surface...")
	ptr, err := win.CreateSurface(ctx.Instance)
	if err != nil {
		b.Destroy()
		return nil, driver.Fatal(errors.Wrap(err, "create window surface"))
	}
	surface := vk.SurfaceFromPointer(ptr)
	b.surface = driver.Surface(b.surfaces.Insert(surface))

	dev, err := selectPhysicalDevice(ctx.Instance, surface)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	if err := dev.create(ctx.Allocator); err != nil {
		b.Destroy()
		return nil, err
	}
	b.device = dev

	if b.transfer, err = newTransferContext(dev, ctx.Allocator); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// Surface returns the surface created for the window passed to New.
func (b *VulkanBackend) Surface() driver.Surface {
	return b.surface
}

func (b *VulkanBackend) logical() vk.Device {
	return b.device.LogicalDevice
}

// Destroy releases every object still alive, then the device and the
// instance.
func (b *VulkanBackend) Destroy() {
	if b.device != nil && b.device.LogicalDevice != nil {
		vk.DeviceWaitIdle(b.device.LogicalDevice)
		b.releaseAll()
		if b.transfer != nil {
			b.transfer.destroy(b.device.LogicalDevice, b.context.Allocator)
			b.transfer = nil
		}
		b.device.destroy(b.context.Allocator)
	}
	if b.context != nil {
		b.surfaces.Each(func(idx uint32, s vk.Surface) {
			vk.DestroySurface(b.context.Instance, s, b.context.Allocator)
			b.surfaces.Remove(idx)
		})
		b.context.destroy()
	}
	core.LogInfo("Vulkan backend destroyed.")
}

func (b *VulkanBackend) releaseAll() {
	leaked := b.descriptorSets.Len() + b.pipelines.Len() + b.textures.Len() + b.buffers.Len() +
		b.framebuffers.Len() + b.renderPasses.Len() + b.views.Len() + b.images.Len() +
		b.swapchains.Len() + b.fences.Len() + b.semaphores.Len() + b.commandBuffers.Len()
	if leaked > 0 {
		core.LogDebug("releasing %d device objects still alive at shutdown", leaked)
	}
	b.pipelines.Each(func(idx uint32, _ pipelineObject) { b.DestroyPipeline(driver.Pipeline(idx)) })
	b.textures.Each(func(idx uint32, _ textureObject) { b.DestroyTexture(driver.Texture(idx)) })
	b.buffers.Each(func(idx uint32, _ bufferObject) { b.DestroyBuffer(driver.Buffer(idx)) })
	b.framebuffers.Each(func(idx uint32, _ vk.Framebuffer) { b.DestroyFramebuffer(driver.Framebuffer(idx)) })
	b.renderPasses.Each(func(idx uint32, _ renderPassObject) { b.DestroyRenderPass(driver.RenderPass(idx)) })
	b.views.Each(func(idx uint32, _ vk.ImageView) { b.DestroyImageView(driver.ImageView(idx)) })
	b.swapchains.Each(func(idx uint32, _ swapchainObject) { b.DestroySwapchain(driver.Swapchain(idx)) })
	b.images.Each(func(idx uint32, _ imageObject) { b.DestroyImage(driver.Image(idx)) })
	b.fences.Each(func(idx uint32, _ vk.Fence) { b.DestroyFence(driver.Fence(idx)) })
	b.semaphores.Each(func(idx uint32, _ vk.Semaphore) { b.DestroySemaphore(driver.Semaphore(idx)) })
	var cbs []driver.CommandBuffer
	b.commandBuffers.Each(func(idx uint32, _ vk.CommandBuffer) { cbs = append(cbs, driver.CommandBuffer(idx)) })
	b.FreeCommandBuffers(cbs)
}

func (b *VulkanBackend) Queue(kind driver.QueueKind) driver.Queue {
	if kind == driver.QueuePresent {
		return presentQueue
	}
	return graphicsQueue
}

func (b *VulkanBackend) queue(q driver.Queue) (vk.Queue, error) {
	switch q {
	case graphicsQueue:
		return b.device.GraphicsQueue, nil
	case presentQueue:
		return b.device.PresentQueue, nil
	}
	return nil, errors.Wrapf(driver.ErrUnknownHandle, "queue %d", q)
}

func (b *VulkanBackend) Submit(q driver.Queue, info driver.SubmitInfo) error {
	queue, err := b.queue(q)
	if err != nil {
		return err
	}
	cb, ok := b.commandBuffers.Get(uint32(info.CommandBuffer))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "command buffer %d", info.CommandBuffer)
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if info.Wait != 0 {
		sem, ok := b.semaphores.Get(uint32(info.Wait))
		if !ok {
			return errors.Wrapf(driver.ErrUnknownHandle, "semaphore %d", info.Wait)
		}
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{sem}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{toVkStages(info.WaitStage)}
	}
	if info.Signal != 0 {
		sem, ok := b.semaphores.Get(uint32(info.Signal))
		if !ok {
			return errors.Wrapf(driver.ErrUnknownHandle, "semaphore %d", info.Signal)
		}
		submit.SignalSemaphoreCount = 1
		submit.PSignalSemaphores = []vk.Semaphore{sem}
	}
	fence := vk.NullFence
	if info.Fence != 0 {
		if fence, ok = b.fences.Get(uint32(info.Fence)); !ok {
			return errors.Wrapf(driver.ErrUnknownHandle, "fence %d", info.Fence)
		}
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submit}, fence); res != vk.Success {
		return resultError(res, "queue submit")
	}
	return nil
}

func (b *VulkanBackend) WaitIdle() error {
	if res := vk.DeviceWaitIdle(b.logical()); res != vk.Success {
		return resultError(res, "wait device idle")
	}
	return nil
}

// transferContext owns the command pool and fence used for one-shot
// uploads, layout transitions and readbacks.
type transferContext struct {
	pool  vk.CommandPool
	fence vk.Fence
	queue vk.Queue
}

func newTransferContext(dev *VulkanDevice, allocator *vk.AllocationCallbacks) (*transferContext, error) {
	tc := &transferContext{queue: dev.GraphicsQueue}
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dev.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	if res := vk.CreateCommandPool(dev.LogicalDevice, &poolInfo, allocator, &tc.pool); res != vk.Success {
		return nil, driver.Fatal(resultError(res, "create transfer command pool"))
	}
	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if res := vk.CreateFence(dev.LogicalDevice, &fenceInfo, allocator, &tc.fence); res != vk.Success {
		vk.DestroyCommandPool(dev.LogicalDevice, tc.pool, allocator)
		return nil, driver.Fatal(resultError(res, "create transfer fence"))
	}
	return tc, nil
}

func (tc *transferContext) destroy(dev vk.Device, allocator *vk.AllocationCallbacks) {
	vk.DestroyFence(dev, tc.fence, allocator)
	vk.DestroyCommandPool(dev, tc.pool, allocator)
}

func (b *VulkanBackend) Immediate(fn func(cb driver.CommandBuffer) error) error {
	dev := b.logical()
	tc := b.transfer

	cbs := make([]vk.CommandBuffer, 1)
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        tc.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	if res := vk.AllocateCommandBuffers(dev, &allocInfo, cbs); res != vk.Success {
		return resultError(res, "allocate transfer command buffer")
	}
	handle := driver.CommandBuffer(b.commandBuffers.Insert(cbs[0]))
	defer func() {
		b.commandBuffers.Remove(uint32(handle))
		vk.FreeCommandBuffers(dev, tc.pool, 1, cbs)
	}()

	if err := b.BeginCommandBuffer(handle, true); err != nil {
		return err
	}
	if err := fn(handle); err != nil {
		vk.EndCommandBuffer(cbs[0])
		return err
	}
	if err := b.EndCommandBuffer(handle); err != nil {
		return err
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    cbs,
	}
	if res := vk.QueueSubmit(tc.queue, 1, []vk.SubmitInfo{submit}, tc.fence); res != vk.Success {
		return resultError(res, "submit transfer")
	}
	res := vk.WaitForFences(dev, 1, []vk.Fence{tc.fence}, vk.True, driver.Infinite)
	vk.ResetFences(dev, 1, []vk.Fence{tc.fence})
	return resultError(res, "wait for transfer")
}
