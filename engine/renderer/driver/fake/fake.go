// Package fake provides an in-memory driver.Device. Submissions complete in
// order, either when waited on or after a configurable number of later
// submissions. Every protocol misuse the Vulkan validation layers would
// flag for the swapchain/frame path is recorded as a violation.
package fake

import (
	"fmt"
	"image"
	"image/color"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/containers"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

type Config struct {
	Formats      []driver.SurfaceFormat
	PresentModes []driver.PresentMode
	Capabilities driver.SurfaceCapabilities
	// DepthFormats lists the formats usable as depth-stencil attachments.
	DepthFormats []driver.Format
	SampleCounts driver.SampleCountFlags
	// Latency is the number of submissions that may be in flight before the
	// oldest one completes by itself. Zero means submissions only complete
	// when waited on.
	Latency int
}

func DefaultConfig() Config {
	return Config{
		Formats: []driver.SurfaceFormat{
			{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceSrgbNonlinear},
			{Format: driver.FormatB8G8R8A8Unorm, ColorSpace: driver.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox},
		Capabilities: driver.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  3,
			CurrentExtent:  driver.Extent{Width: 800, Height: 600},
			MinImageExtent: driver.Extent{Width: 1, Height: 1},
			MaxImageExtent: driver.Extent{Width: 4096, Height: 4096},
		},
		DepthFormats: []driver.Format{driver.FormatD32Float, driver.FormatD24UnormS8Uint},
		SampleCounts: driver.SampleCountFlags(1 | 2 | 4),
		Latency:      1,
	}
}

type swapchain struct {
	desc     driver.SwapchainDesc
	images   []driver.Image
	next     uint32
	acquired map[uint32]bool
	retired  bool
}

type imageState struct {
	desc      driver.ImageDesc
	swapchain driver.Swapchain
	layout    driver.ImageLayout
}

type framebuffer struct {
	renderPass  driver.RenderPass
	attachments []driver.ImageView
	extent      driver.Extent
}

type view struct {
	image driver.Image
}

type semaphore struct {
	signaled bool
	// acquiredFrom is the swapchain whose image acquisition will signal the
	// semaphore, zero for queue signals.
	acquiredFrom driver.Swapchain
}

type fence struct {
	signaled bool
	pending  *submission
}

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbPending
)

type commandBuffer struct {
	state       cbState
	commands    []string
	framebuffer driver.Framebuffer
}

type submission struct {
	seq  int
	info driver.SubmitInfo
}

type pipeline struct {
	desc driver.PipelineDesc
}

// Device implements driver.Device.
type Device struct {
	cfg Config

	surfaces     *containers.Arena[struct{}]
	swapchains   *containers.Arena[*swapchain]
	images       *containers.Arena[*imageState]
	views        *containers.Arena[*view]
	renderPasses *containers.Arena[driver.RenderPassDesc]
	framebuffers *containers.Arena[*framebuffer]
	semaphores   *containers.Arena[*semaphore]
	fences       *containers.Arena[*fence]
	cbs          *containers.Arena[*commandBuffer]
	buffers      *containers.Arena[[]byte]
	textures     *containers.Arena[*image.RGBA]
	pipelines    *containers.Arena[*pipeline]
	sets         *containers.Arena[driver.Pipeline]

	pending    []*submission
	submitSeq  int
	events     []string
	violations []string

	acquireCalls int
	presentCalls int
	failAcquire  map[int]error
	failPresent  map[int]error
}

var _ driver.Device = (*Device)(nil)

func New(cfg Config) *Device {
	return &Device{
		cfg:          cfg,
		surfaces:     containers.NewArena[struct{}](),
		swapchains:   containers.NewArena[*swapchain](),
		images:       containers.NewArena[*imageState](),
		views:        containers.NewArena[*view](),
		renderPasses: containers.NewArena[driver.RenderPassDesc](),
		framebuffers: containers.NewArena[*framebuffer](),
		semaphores:   containers.NewArena[*semaphore](),
		fences:       containers.NewArena[*fence](),
		cbs:          containers.NewArena[*commandBuffer](),
		buffers:      containers.NewArena[[]byte](),
		textures:     containers.NewArena[*image.RGBA](),
		pipelines:    containers.NewArena[*pipeline](),
		sets:         containers.NewArena[driver.Pipeline](),
		failAcquire:  make(map[int]error),
		failPresent:  make(map[int]error),
	}
}

// NewSurface registers a surface handle.
func (d *Device) NewSurface() driver.Surface {
	return driver.Surface(d.surfaces.Insert(struct{}{}))
}

// SetCapabilities replaces the reported surface capabilities, as a window
// resize would.
func (d *Device) SetCapabilities(caps driver.SurfaceCapabilities) {
	d.cfg.Capabilities = caps
}

// FailAcquireAt makes the n-th AcquireNextImage call (1-based) return err.
// driver.ErrSuboptimal still acquires an image.
func (d *Device) FailAcquireAt(n int, err error) {
	d.failAcquire[n] = err
}

// FailPresentAt makes the n-th Present call (1-based) return err. The image
// is still released back to the swapchain.
func (d *Device) FailPresentAt(n int, err error) {
	d.failPresent[n] = err
}

// Events returns the ordered log of significant calls.
func (d *Device) Events() []string {
	return append([]string(nil), d.events...)
}

// Count returns how many events named kind were logged.
func (d *Device) Count(kind string) int {
	n := 0
	for _, e := range d.events {
		if e == kind {
			n++
		}
	}
	return n
}

// Violations returns every protocol misuse observed so far.
func (d *Device) Violations() []string {
	return append([]string(nil), d.violations...)
}

// InFlight returns the number of command buffers in flight right now.
func (d *Device) InFlight() int {
	return len(d.pending)
}

// Live returns the number of device objects not yet destroyed, surfaces
// excluded.
func (d *Device) Live() int {
	return d.swapchains.Len() + d.images.Len() + d.views.Len() + d.renderPasses.Len() +
		d.framebuffers.Len() + d.semaphores.Len() + d.fences.Len() + d.cbs.Len() +
		d.buffers.Len() + d.textures.Len() + d.pipelines.Len() + d.sets.Len()
}

// ImageLayout reports the tracked layout of img.
func (d *Device) ImageLayout(img driver.Image) driver.ImageLayout {
	if st, ok := d.images.Get(uint32(img)); ok {
		return st.layout
	}
	return driver.LayoutUndefined
}

// Commands returns the commands recorded into cb since its last reset.
func (d *Device) Commands(cb driver.CommandBuffer) []string {
	if c, ok := d.cbs.Get(uint32(cb)); ok {
		return append([]string(nil), c.commands...)
	}
	return nil
}

func (d *Device) logEvent(kind string) {
	d.events = append(d.events, kind)
}

func (d *Device) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) SurfaceFormats(s driver.Surface) ([]driver.SurfaceFormat, error) {
	if _, ok := d.surfaces.Get(uint32(s)); !ok {
		return nil, errors.Wrapf(driver.ErrUnknownHandle, "surface %d", s)
	}
	return append([]driver.SurfaceFormat(nil), d.cfg.Formats...), nil
}

func (d *Device) SurfacePresentModes(s driver.Surface) ([]driver.PresentMode, error) {
	if _, ok := d.surfaces.Get(uint32(s)); !ok {
		return nil, errors.Wrapf(driver.ErrUnknownHandle, "surface %d", s)
	}
	return append([]driver.PresentMode(nil), d.cfg.PresentModes...), nil
}

func (d *Device) SurfaceCapabilities(s driver.Surface) (driver.SurfaceCapabilities, error) {
	if _, ok := d.surfaces.Get(uint32(s)); !ok {
		return driver.SurfaceCapabilities{}, errors.Wrapf(driver.ErrUnknownHandle, "surface %d", s)
	}
	return d.cfg.Capabilities, nil
}

func (d *Device) SupportsDepthAttachment(f driver.Format) bool {
	for _, df := range d.cfg.DepthFormats {
		if df == f {
			return true
		}
	}
	return false
}

func (d *Device) SampleCounts() driver.SampleCountFlags {
	return d.cfg.SampleCounts
}

func (d *Device) CreateSwapchain(desc driver.SwapchainDesc) (driver.Swapchain, error) {
	caps := d.cfg.Capabilities
	if desc.ImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && desc.ImageCount > caps.MaxImageCount) {
		return 0, errors.Newf("image count %d outside [%d, %d]", desc.ImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	if desc.Extent.Width < caps.MinImageExtent.Width || desc.Extent.Width > caps.MaxImageExtent.Width ||
		desc.Extent.Height < caps.MinImageExtent.Height || desc.Extent.Height > caps.MaxImageExtent.Height {
		return 0, errors.Newf("extent %s outside [%s, %s]", desc.Extent, caps.MinImageExtent, caps.MaxImageExtent)
	}
	if !d.hasFormat(desc.Format) {
		return 0, errors.Newf("format %s not supported", desc.Format.Format)
	}
	if !d.hasPresentMode(desc.PresentMode) {
		return 0, errors.Newf("present mode %s not supported", desc.PresentMode)
	}
	if desc.Old != 0 {
		old, ok := d.swapchains.Get(uint32(desc.Old))
		if !ok {
			return 0, errors.Wrapf(driver.ErrUnknownHandle, "old swapchain %d", desc.Old)
		}
		old.retired = true
	}

	sc := &swapchain{desc: desc, acquired: make(map[uint32]bool)}
	handle := driver.Swapchain(d.swapchains.Insert(sc))
	for i := uint32(0); i < desc.ImageCount; i++ {
		img := d.images.Insert(&imageState{
			desc:      driver.ImageDesc{Extent: desc.Extent, Format: desc.Format.Format, Usage: desc.Usage, Samples: 1},
			swapchain: handle,
		})
		sc.images = append(sc.images, driver.Image(img))
	}
	d.logEvent("createSwapchain")
	return handle, nil
}

func (d *Device) hasFormat(f driver.SurfaceFormat) bool {
	for _, sf := range d.cfg.Formats {
		if sf == f {
			return true
		}
	}
	return false
}

func (d *Device) hasPresentMode(m driver.PresentMode) bool {
	for _, pm := range d.cfg.PresentModes {
		if pm == m {
			return true
		}
	}
	return false
}

func (d *Device) DestroySwapchain(h driver.Swapchain) {
	sc, ok := d.swapchains.Remove(uint32(h))
	if !ok {
		d.violate("destroy of unknown swapchain %d", h)
		return
	}
	for _, img := range sc.images {
		d.images.Remove(uint32(img))
	}
	d.logEvent("destroySwapchain")
}

func (d *Device) SwapchainImages(h driver.Swapchain) ([]driver.Image, error) {
	sc, ok := d.swapchains.Get(uint32(h))
	if !ok {
		return nil, errors.Wrapf(driver.ErrUnknownHandle, "swapchain %d", h)
	}
	return append([]driver.Image(nil), sc.images...), nil
}

func (d *Device) AcquireNextImage(h driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	d.acquireCalls++
	d.logEvent("acquire")
	injected, ok := d.failAcquire[d.acquireCalls]
	if ok && !errors.Is(injected, driver.ErrSuboptimal) {
		return 0, injected
	}
	sc, ok := d.swapchains.Get(uint32(h))
	if !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "swapchain %d", h)
	}
	if sc.retired {
		return 0, driver.ErrOutOfDate
	}
	sem, ok := d.semaphores.Get(uint32(signal))
	if !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "semaphore %d", signal)
	}
	if sem.signaled {
		d.violate("acquire signals semaphore %d which is already signaled", signal)
	}
	idx := sc.next
	if sc.acquired[idx] {
		d.violate("image %d of swapchain %d acquired twice", idx, h)
	}
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	sc.acquired[idx] = true
	sem.signaled = true
	sem.acquiredFrom = h
	return idx, injected
}

func (d *Device) Present(q driver.Queue, h driver.Swapchain, index uint32, wait driver.Semaphore) error {
	d.presentCalls++
	d.logEvent("present")
	sc, ok := d.swapchains.Get(uint32(h))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "swapchain %d", h)
	}
	if !sc.acquired[index] {
		d.violate("present of image %d which is not acquired", index)
	}
	delete(sc.acquired, index)
	if int(index) < len(sc.images) {
		if layout := d.ImageLayout(sc.images[index]); layout != driver.LayoutPresentSrc {
			d.violate("present of image %d in layout %s", index, layout)
		}
	}
	if sem, ok := d.semaphores.Get(uint32(wait)); !ok || !sem.signaled {
		d.violate("present waits on semaphore %d that will never be signaled", wait)
	} else {
		sem.signaled, sem.acquiredFrom = false, 0
	}
	if err, ok := d.failPresent[d.presentCalls]; ok {
		return err
	}
	if sc.retired {
		return driver.ErrOutOfDate
	}
	return nil
}

func (d *Device) CreateImage(desc driver.ImageDesc) (driver.Image, error) {
	if !d.cfg.SampleCounts.Has(desc.Samples) {
		return 0, errors.Newf("%d samples not supported", desc.Samples)
	}
	return driver.Image(d.images.Insert(&imageState{desc: desc})), nil
}

func (d *Device) DestroyImage(img driver.Image) {
	st, ok := d.images.Get(uint32(img))
	if !ok {
		d.violate("destroy of unknown image %d", img)
		return
	}
	if st.swapchain != 0 {
		d.violate("destroy of swapchain owned image %d", img)
		return
	}
	d.images.Remove(uint32(img))
}

func (d *Device) CreateImageView(img driver.Image, f driver.Format, aspect driver.Aspect) (driver.ImageView, error) {
	if _, ok := d.images.Get(uint32(img)); !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "image %d", img)
	}
	return driver.ImageView(d.views.Insert(&view{image: img})), nil
}

func (d *Device) DestroyImageView(v driver.ImageView) {
	if _, ok := d.views.Remove(uint32(v)); !ok {
		d.violate("destroy of unknown image view %d", v)
	}
}

func (d *Device) CreateRenderPass(desc driver.RenderPassDesc) (driver.RenderPass, error) {
	d.logEvent("createRenderPass")
	return driver.RenderPass(d.renderPasses.Insert(desc)), nil
}

func (d *Device) DestroyRenderPass(rp driver.RenderPass) {
	if _, ok := d.renderPasses.Remove(uint32(rp)); !ok {
		d.violate("destroy of unknown render pass %d", rp)
	}
}

func (d *Device) CreateFramebuffer(rp driver.RenderPass, attachments []driver.ImageView, extent driver.Extent) (driver.Framebuffer, error) {
	if _, ok := d.renderPasses.Get(uint32(rp)); !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "render pass %d", rp)
	}
	for _, a := range attachments {
		if _, ok := d.views.Get(uint32(a)); !ok {
			return 0, errors.Wrapf(driver.ErrUnknownHandle, "image view %d", a)
		}
	}
	d.logEvent("createFramebuffer")
	return driver.Framebuffer(d.framebuffers.Insert(&framebuffer{
		renderPass:  rp,
		attachments: append([]driver.ImageView(nil), attachments...),
		extent:      extent,
	})), nil
}

func (d *Device) DestroyFramebuffer(fb driver.Framebuffer) {
	for _, s := range d.pending {
		if c, ok := d.cbs.Get(uint32(s.info.CommandBuffer)); ok && c.framebuffer == fb {
			d.violate("destroy of framebuffer %d used by a command buffer in flight", fb)
		}
	}
	if _, ok := d.framebuffers.Remove(uint32(fb)); !ok {
		d.violate("destroy of unknown framebuffer %d", fb)
	}
}

// FramebufferExtent returns the extent a framebuffer was created with.
func (d *Device) FramebufferExtent(fb driver.Framebuffer) (driver.Extent, bool) {
	f, ok := d.framebuffers.Get(uint32(fb))
	if !ok {
		return driver.Extent{}, false
	}
	return f.extent, true
}

func (d *Device) CreateBuffer(desc driver.BufferDesc, data []byte) (driver.Buffer, error) {
	if uint64(len(data)) > desc.Size {
		return 0, errors.Newf("initial data of %d bytes exceeds buffer size %d", len(data), desc.Size)
	}
	buf := make([]byte, desc.Size)
	copy(buf, data)
	return driver.Buffer(d.buffers.Insert(buf)), nil
}

func (d *Device) WriteBuffer(b driver.Buffer, offset uint64, data []byte) error {
	buf, ok := d.buffers.Get(uint32(b))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "buffer %d", b)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

// BufferData returns the current contents of a buffer.
func (d *Device) BufferData(b driver.Buffer) []byte {
	buf, _ := d.buffers.Get(uint32(b))
	return buf
}

func (d *Device) DestroyBuffer(b driver.Buffer) {
	if _, ok := d.buffers.Remove(uint32(b)); !ok {
		d.violate("destroy of unknown buffer %d", b)
	}
}

func (d *Device) CreateTexture(img *image.RGBA) (driver.Texture, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, errors.New("empty texture")
	}
	return driver.Texture(d.textures.Insert(img)), nil
}

func (d *Device) DestroyTexture(t driver.Texture) {
	if _, ok := d.textures.Remove(uint32(t)); !ok {
		d.violate("destroy of unknown texture %d", t)
	}
}

func (d *Device) CreatePipeline(desc driver.PipelineDesc) (driver.Pipeline, error) {
	if _, ok := d.renderPasses.Get(uint32(desc.RenderPass)); !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "render pass %d", desc.RenderPass)
	}
	if len(desc.Shaders) == 0 {
		return 0, errors.New("pipeline without shader stages")
	}
	d.logEvent("createPipeline")
	return driver.Pipeline(d.pipelines.Insert(&pipeline{desc: desc})), nil
}

func (d *Device) DestroyPipeline(p driver.Pipeline) {
	if _, ok := d.pipelines.Remove(uint32(p)); !ok {
		d.violate("destroy of unknown pipeline %d", p)
		return
	}
	var owned []uint32
	d.sets.Each(func(idx uint32, owner driver.Pipeline) {
		if owner == p {
			owned = append(owned, idx)
		}
	})
	for _, idx := range owned {
		d.sets.Remove(idx)
	}
}

func (d *Device) AllocateDescriptorSet(p driver.Pipeline) (driver.DescriptorSet, error) {
	pl, ok := d.pipelines.Get(uint32(p))
	if !ok {
		return 0, errors.Wrapf(driver.ErrUnknownHandle, "pipeline %d", p)
	}
	if len(pl.desc.Bindings) == 0 {
		return 0, errors.New("pipeline has no descriptor bindings")
	}
	return driver.DescriptorSet(d.sets.Insert(p)), nil
}

func (d *Device) WriteUniformDescriptor(set driver.DescriptorSet, binding uint32, b driver.Buffer) error {
	if _, ok := d.sets.Get(uint32(set)); !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "descriptor set %d", set)
	}
	if _, ok := d.buffers.Get(uint32(b)); !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "buffer %d", b)
	}
	return nil
}

func (d *Device) WriteTextureDescriptor(set driver.DescriptorSet, binding uint32, t driver.Texture) error {
	if _, ok := d.sets.Get(uint32(set)); !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "descriptor set %d", set)
	}
	if _, ok := d.textures.Get(uint32(t)); !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "texture %d", t)
	}
	return nil
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	return driver.Semaphore(d.semaphores.Insert(&semaphore{})), nil
}

// DestroySemaphore reports semaphores with a pending signal. A pending
// acquire is only dropped with the swapchain that issued it.
func (d *Device) DestroySemaphore(s driver.Semaphore) {
	sem, ok := d.semaphores.Remove(uint32(s))
	if !ok {
		d.violate("destroy of unknown semaphore %d", s)
		return
	}
	if !sem.signaled {
		return
	}
	if sem.acquiredFrom == 0 {
		d.violate("destroy of semaphore %d with a pending queue signal", s)
		return
	}
	if _, live := d.swapchains.Get(uint32(sem.acquiredFrom)); live {
		d.violate("destroy of semaphore %d with a pending acquire on swapchain %d", s, sem.acquiredFrom)
	}
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	return driver.Fence(d.fences.Insert(&fence{signaled: signaled})), nil
}

func (d *Device) DestroyFence(f driver.Fence) {
	fe, ok := d.fences.Get(uint32(f))
	if !ok {
		d.violate("destroy of unknown fence %d", f)
		return
	}
	if fe.pending != nil {
		d.violate("destroy of fence %d still in flight", f)
	}
	d.fences.Remove(uint32(f))
}

func (d *Device) WaitFence(f driver.Fence, timeout uint64) error {
	fe, ok := d.fences.Get(uint32(f))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "fence %d", f)
	}
	if fe.pending != nil {
		d.completeThrough(fe.pending.seq)
	}
	if !fe.signaled {
		if timeout == driver.Infinite {
			d.violate("wait on fence %d that will never be signaled", f)
		}
		return driver.ErrTimeout
	}
	return nil
}

func (d *Device) ResetFence(f driver.Fence) error {
	fe, ok := d.fences.Get(uint32(f))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "fence %d", f)
	}
	if fe.pending != nil {
		d.violate("reset of fence %d still in flight", f)
	}
	fe.signaled = false
	return nil
}

func (d *Device) WaitIdle() error {
	d.logEvent("waitIdle")
	if len(d.pending) > 0 {
		d.completeThrough(d.pending[len(d.pending)-1].seq)
	}
	return nil
}

func (d *Device) AllocateCommandBuffers(n int) ([]driver.CommandBuffer, error) {
	out := make([]driver.CommandBuffer, n)
	for i := range out {
		out[i] = driver.CommandBuffer(d.cbs.Insert(&commandBuffer{}))
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(cbs []driver.CommandBuffer) {
	for _, cb := range cbs {
		c, ok := d.cbs.Get(uint32(cb))
		if !ok {
			d.violate("free of unknown command buffer %d", cb)
			continue
		}
		if c.state == cbPending {
			d.violate("free of command buffer %d still in flight", cb)
		}
		d.cbs.Remove(uint32(cb))
	}
}

func (d *Device) BeginCommandBuffer(cb driver.CommandBuffer, oneTime bool) error {
	c, ok := d.cbs.Get(uint32(cb))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "command buffer %d", cb)
	}
	if c.state == cbPending {
		d.violate("begin of command buffer %d still in flight", cb)
	}
	c.state = cbRecording
	c.commands = c.commands[:0]
	c.framebuffer = 0
	return nil
}

func (d *Device) EndCommandBuffer(cb driver.CommandBuffer) error {
	c, ok := d.cbs.Get(uint32(cb))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "command buffer %d", cb)
	}
	if c.state != cbRecording {
		return errors.Newf("end of command buffer %d which is not recording", cb)
	}
	c.state = cbExecutable
	return nil
}

func (d *Device) ResetCommandBuffer(cb driver.CommandBuffer) error {
	c, ok := d.cbs.Get(uint32(cb))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "command buffer %d", cb)
	}
	if c.state == cbPending {
		d.violate("reset of command buffer %d still in flight", cb)
	}
	c.state = cbInitial
	c.commands = c.commands[:0]
	c.framebuffer = 0
	return nil
}

func (d *Device) record(cb driver.CommandBuffer, cmd string) *commandBuffer {
	c, ok := d.cbs.Get(uint32(cb))
	if !ok {
		d.violate("%s recorded into unknown command buffer %d", cmd, cb)
		return nil
	}
	if c.state != cbRecording {
		d.violate("%s recorded into command buffer %d which is not recording", cmd, cb)
	}
	c.commands = append(c.commands, cmd)
	return c
}

func (d *Device) CmdImageBarrier(cb driver.CommandBuffer, img driver.Image, aspect driver.Aspect, from, to driver.ImageLayout) {
	d.record(cb, fmt.Sprintf("barrier %s->%s", from, to))
	st, ok := d.images.Get(uint32(img))
	if !ok {
		d.violate("barrier on unknown image %d", img)
		return
	}
	if from != driver.LayoutUndefined && from != st.layout {
		d.violate("barrier on image %d from %s but image is %s", img, from, st.layout)
	}
	st.layout = to
}

func (d *Device) CmdBeginRenderPass(cb driver.CommandBuffer, rp driver.RenderPass, fb driver.Framebuffer, extent driver.Extent, clears []driver.ClearValue) {
	d.logEvent("beginRenderPass")
	c := d.record(cb, "beginRenderPass")
	f, ok := d.framebuffers.Get(uint32(fb))
	if !ok {
		d.violate("render pass begun on unknown framebuffer %d", fb)
		return
	}
	if f.renderPass != rp {
		d.violate("framebuffer %d used with render pass %d but built for %d", fb, rp, f.renderPass)
	}
	if f.extent != extent {
		d.violate("render area %s differs from framebuffer extent %s", extent, f.extent)
	}
	if len(clears) != len(f.attachments) {
		d.violate("%d clear values for %d attachments", len(clears), len(f.attachments))
	}
	if c != nil {
		c.framebuffer = fb
	}
}

func (d *Device) CmdEndRenderPass(cb driver.CommandBuffer) {
	c := d.record(cb, "endRenderPass")
	if c == nil {
		return
	}
	f, ok := d.framebuffers.Get(uint32(c.framebuffer))
	if !ok {
		return
	}
	// every attachment ends in its attachment optimal layout
	for _, a := range f.attachments {
		v, ok := d.views.Get(uint32(a))
		if !ok {
			continue
		}
		if st, ok := d.images.Get(uint32(v.image)); ok {
			if st.desc.Format.IsDepth() {
				st.layout = driver.LayoutDepthStencilAttachment
			} else {
				st.layout = driver.LayoutColorAttachment
			}
		}
	}
}

func (d *Device) CmdSetViewport(cb driver.CommandBuffer, extent driver.Extent) {
	d.record(cb, "setViewport")
}

func (d *Device) CmdBindPipeline(cb driver.CommandBuffer, p driver.Pipeline) {
	d.record(cb, "bindPipeline")
	if _, ok := d.pipelines.Get(uint32(p)); !ok {
		d.violate("bind of unknown pipeline %d", p)
	}
}

func (d *Device) CmdBindDescriptorSet(cb driver.CommandBuffer, p driver.Pipeline, set driver.DescriptorSet) {
	d.record(cb, "bindDescriptorSet")
	if _, ok := d.sets.Get(uint32(set)); !ok {
		d.violate("bind of unknown descriptor set %d", set)
	}
}

func (d *Device) CmdPushConstants(cb driver.CommandBuffer, p driver.Pipeline, data []byte) {
	d.record(cb, "pushConstants")
	pl, ok := d.pipelines.Get(uint32(p))
	if !ok {
		d.violate("push constants for unknown pipeline %d", p)
		return
	}
	if uint32(len(data)) > pl.desc.PushConstantSize {
		d.violate("push of %d bytes exceeds range of %d", len(data), pl.desc.PushConstantSize)
	}
}

func (d *Device) CmdBindVertexBuffer(cb driver.CommandBuffer, b driver.Buffer) {
	d.record(cb, "bindVertexBuffer")
}

func (d *Device) CmdBindIndexBuffer(cb driver.CommandBuffer, b driver.Buffer, t driver.IndexType) {
	d.record(cb, "bindIndexBuffer")
}

func (d *Device) CmdDraw(cb driver.CommandBuffer, vertexCount uint32) {
	d.record(cb, fmt.Sprintf("draw %d", vertexCount))
}

func (d *Device) CmdDrawIndexed(cb driver.CommandBuffer, indexCount uint32) {
	d.record(cb, fmt.Sprintf("drawIndexed %d", indexCount))
}

func (d *Device) Queue(kind driver.QueueKind) driver.Queue {
	return driver.Queue(kind + 1)
}

func (d *Device) Submit(q driver.Queue, info driver.SubmitInfo) error {
	d.logEvent("submit")
	c, ok := d.cbs.Get(uint32(info.CommandBuffer))
	if !ok {
		return errors.Wrapf(driver.ErrUnknownHandle, "command buffer %d", info.CommandBuffer)
	}
	switch c.state {
	case cbPending:
		d.violate("submit of command buffer %d already in flight", info.CommandBuffer)
	case cbExecutable:
	default:
		d.violate("submit of command buffer %d which is not executable", info.CommandBuffer)
	}
	if info.Wait != 0 {
		if sem, ok := d.semaphores.Get(uint32(info.Wait)); !ok || !sem.signaled {
			d.violate("submit waits on semaphore %d that will never be signaled", info.Wait)
		} else {
			sem.signaled, sem.acquiredFrom = false, 0
		}
	}
	if info.Signal != 0 {
		sem, ok := d.semaphores.Get(uint32(info.Signal))
		if !ok {
			return errors.Wrapf(driver.ErrUnknownHandle, "semaphore %d", info.Signal)
		}
		if sem.signaled {
			d.violate("submit signals semaphore %d which is already signaled", info.Signal)
		}
		sem.signaled = true
	}
	d.submitSeq++
	s := &submission{seq: d.submitSeq, info: info}
	if info.Fence != 0 {
		fe, ok := d.fences.Get(uint32(info.Fence))
		if !ok {
			return errors.Wrapf(driver.ErrUnknownHandle, "fence %d", info.Fence)
		}
		if fe.signaled || fe.pending != nil {
			d.violate("submit with fence %d that is not unsignaled", info.Fence)
		}
		fe.pending = s
	}
	c.state = cbPending
	d.pending = append(d.pending, s)

	if d.cfg.Latency > 0 {
		for len(d.pending) > d.cfg.Latency {
			d.completeThrough(d.pending[0].seq)
		}
	}
	return nil
}

// completeThrough retires every pending submission up to seq, in order.
func (d *Device) completeThrough(seq int) {
	n := 0
	for _, s := range d.pending {
		if s.seq > seq {
			break
		}
		if c, ok := d.cbs.Get(uint32(s.info.CommandBuffer)); ok && c.state == cbPending {
			c.state = cbExecutable
		}
		if fe, ok := d.fences.Get(uint32(s.info.Fence)); ok && fe.pending == s {
			fe.pending = nil
			fe.signaled = true
		}
		n++
	}
	d.pending = d.pending[n:]
}

func (d *Device) Immediate(fn func(cb driver.CommandBuffer) error) error {
	d.logEvent("immediate")
	cbs, _ := d.AllocateCommandBuffers(1)
	defer d.FreeCommandBuffers(cbs)
	if err := d.BeginCommandBuffer(cbs[0], true); err != nil {
		return err
	}
	if err := fn(cbs[0]); err != nil {
		return err
	}
	if err := d.EndCommandBuffer(cbs[0]); err != nil {
		return err
	}
	// queue wait idle
	if len(d.pending) > 0 {
		d.completeThrough(d.pending[len(d.pending)-1].seq)
	}
	return nil
}

func (d *Device) writesImage(c *commandBuffer, img driver.Image) bool {
	f, ok := d.framebuffers.Get(uint32(c.framebuffer))
	if !ok {
		return false
	}
	for _, a := range f.attachments {
		if v, ok := d.views.Get(uint32(a)); ok && v.image == img {
			return true
		}
	}
	return false
}

// ReadImage returns an image filled with a color derived from the handle.
func (d *Device) ReadImage(img driver.Image, f driver.Format, extent driver.Extent, layout driver.ImageLayout) (*image.RGBA, error) {
	d.logEvent("readImage")
	st, ok := d.images.Get(uint32(img))
	if !ok {
		return nil, errors.Wrapf(driver.ErrUnknownHandle, "image %d", img)
	}
	if st.layout != layout {
		d.violate("read of image %d in layout %s but image is %s", img, layout, st.layout)
	}
	for _, s := range d.pending {
		if c, ok := d.cbs.Get(uint32(s.info.CommandBuffer)); ok && d.writesImage(c, img) {
			d.violate("read of image %d while a command buffer writing it is in flight", img)
		}
	}
	out := image.NewRGBA(image.Rect(0, 0, int(extent.Width), int(extent.Height)))
	fill := color.RGBA{R: uint8(img * 40), G: 0x80, B: 0x20, A: 0xff}
	for y := 0; y < int(extent.Height); y++ {
		for x := 0; x < int(extent.Width); x++ {
			out.SetRGBA(x, y, fill)
		}
	}
	return out, nil
}
