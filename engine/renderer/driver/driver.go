// Package driver defines the device surface used by the swapchain manager
// and the frame loop. Objects are referenced through typed handles; a
// device implementation owns the real objects and their lifetimes.
package driver

import "image"

// Presenter negotiates surfaces and drives the swapchain.
type Presenter interface {
	SurfaceFormats(s Surface) ([]SurfaceFormat, error)
	SurfacePresentModes(s Surface) ([]PresentMode, error)
	SurfaceCapabilities(s Surface) (SurfaceCapabilities, error)
	// SupportsDepthAttachment reports whether f can be used as a
	// depth-stencil attachment with optimal tiling.
	SupportsDepthAttachment(f Format) bool
	// SampleCounts returns the sample counts usable for both color and
	// depth framebuffer attachments.
	SampleCounts() SampleCountFlags

	CreateSwapchain(desc SwapchainDesc) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	// AcquireNextImage returns ErrSuboptimal together with a valid index
	// when the image can still be used. ErrOutOfDate and ErrTimeout carry
	// no index.
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, error)
	Present(q Queue, sc Swapchain, index uint32, wait Semaphore) error
}

// Allocator creates and destroys device objects.
type Allocator interface {
	CreateImage(desc ImageDesc) (Image, error)
	DestroyImage(img Image)
	CreateImageView(img Image, f Format, aspect Aspect) (ImageView, error)
	DestroyImageView(v ImageView)
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)
	CreateFramebuffer(rp RenderPass, attachments []ImageView, extent Extent) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateBuffer(desc BufferDesc, data []byte) (Buffer, error)
	WriteBuffer(b Buffer, offset uint64, data []byte) error
	DestroyBuffer(b Buffer)
	CreateTexture(img *image.RGBA) (Texture, error)
	DestroyTexture(t Texture)

	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)
	AllocateDescriptorSet(p Pipeline) (DescriptorSet, error)
	WriteUniformDescriptor(set DescriptorSet, binding uint32, b Buffer) error
	WriteTextureDescriptor(set DescriptorSet, binding uint32, t Texture) error
}

// Synchronizer owns fences and semaphores.
type Synchronizer interface {
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	// WaitFence returns ErrTimeout when the fence is still unsignaled
	// after timeout nanoseconds.
	WaitFence(f Fence, timeout uint64) error
	ResetFence(f Fence) error
	WaitIdle() error
}

// Recorder allocates command buffers and records commands into them.
type Recorder interface {
	AllocateCommandBuffers(n int) ([]CommandBuffer, error)
	FreeCommandBuffers(cbs []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, oneTime bool) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	CmdImageBarrier(cb CommandBuffer, img Image, aspect Aspect, from, to ImageLayout)
	CmdBeginRenderPass(cb CommandBuffer, rp RenderPass, fb Framebuffer, extent Extent, clears []ClearValue)
	CmdEndRenderPass(cb CommandBuffer)
	CmdSetViewport(cb CommandBuffer, extent Extent)
	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdBindDescriptorSet(cb CommandBuffer, p Pipeline, set DescriptorSet)
	CmdPushConstants(cb CommandBuffer, p Pipeline, data []byte)
	CmdBindVertexBuffer(cb CommandBuffer, b Buffer)
	CmdBindIndexBuffer(cb CommandBuffer, b Buffer, t IndexType)
	CmdDraw(cb CommandBuffer, vertexCount uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount uint32)
}

// Submitter hands recorded work to the device queues.
type Submitter interface {
	Queue(kind QueueKind) Queue
	Submit(q Queue, info SubmitInfo) error
	// Immediate records fn into a one-shot command buffer of the transfer
	// context, submits it and waits for completion.
	Immediate(fn func(cb CommandBuffer) error) error
	// ReadImage copies a color image in the given layout back to host
	// memory. The image is left in the same layout.
	ReadImage(img Image, f Format, extent Extent, layout ImageLayout) (*image.RGBA, error)
}

type Device interface {
	Presenter
	Allocator
	Synchronizer
	Recorder
	Submitter
}
