// Package swapchain owns the presentable images of a surface together with
// the attachments and framebuffers built on top of them, and drives the
// acquire/present cycle including recreation when the surface changes.
package swapchain

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateImageAcquired
	StateRecreating
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateImageAcquired:
		return "image-acquired"
	case StateRecreating:
		return "recreating"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNoSurfaceFormats = driver.Fatal(errors.New("surface reports no formats"))
	ErrNoPresentModes   = driver.Fatal(errors.New("surface reports no present modes"))
	ErrNoDepthFormat    = driver.Fatal(errors.New("no supported depth format"))
	ErrInvalidState     = errors.New("invalid swapchain state")
	// ErrAcquireTimeout is returned when no image became available in time.
	// The frame should be skipped and acquisition retried.
	ErrAcquireTimeout = errors.Mark(errors.New("timed out acquiring swapchain image"), driver.ErrTimeout)
	// ErrZeroExtent is returned by Recreate while the drawable is empty. The
	// current chain is kept and stays stale.
	ErrZeroExtent = errors.New("surface extent is zero")
)

// PresentError reports a failed acquire or present that does not call for
// recreation. The swapchain remains usable.
type PresentError struct {
	Op  string
	Err error
}

func (e *PresentError) Error() string {
	return fmt.Sprintf("swapchain %s: %v", e.Op, e.Err)
}

func (e *PresentError) Unwrap() error {
	return e.Err
}

type Config struct {
	// Width and Height are used when the surface lets the swapchain decide
	// its extent.
	Width, Height uint32
	// Samples is the requested MSAA sample count.
	Samples driver.SampleCount
	// SurfaceFormat overrides DefaultSurfaceFormat when its format is set.
	SurfaceFormat driver.SurfaceFormat
	// PresentMode, if set and supported, bypasses the default precedence.
	PresentMode *driver.PresentMode
	// AcquireTimeout bounds the acquisition issued right after a present,
	// in nanoseconds. Zero means no timeout.
	AcquireTimeout uint64
	// Readback makes presentable images usable as copy sources.
	Readback bool
}

// Attachment is an image owned by the manager together with its view.
type Attachment struct {
	Image driver.Image
	View  driver.ImageView
}

// Slot groups everything tied to one presentable image.
type Slot struct {
	Index       uint32
	Image       driver.Image
	View        driver.ImageView
	Depth       Attachment
	Multisample Attachment
	Framebuffer driver.Framebuffer
}

type Manager struct {
	dev driver.Device
	cfg Config

	surface     driver.Surface
	handle      driver.Swapchain
	format      driver.SurfaceFormat
	depthFormat driver.Format
	presentMode driver.PresentMode
	extent      driver.Extent
	samples     driver.SampleCount
	renderPass  driver.RenderPass
	slots       []Slot

	imageAcquired driver.Semaphore
	renderingDone driver.Semaphore

	requested         driver.Extent
	current           uint32
	state             State
	dirty             bool
	stale             bool
	renderPassChanged bool
	recreations       int
}

func New(dev driver.Device, cfg Config) *Manager {
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = driver.Infinite
	}
	return &Manager{
		dev:       dev,
		cfg:       cfg,
		requested: driver.Extent{Width: cfg.Width, Height: cfg.Height},
	}
}

// Initialize negotiates the surface configuration and builds the chain.
// Framebuffers are left dirty; call SetupFramebuffers before rendering.
func (m *Manager) Initialize(surface driver.Surface) error {
	if m.state != StateUninitialized {
		return errors.Wrapf(ErrInvalidState, "initialize in state %s", m.state)
	}
	m.surface = surface
	return m.initialize(0)
}

func (m *Manager) initialize(old driver.Swapchain) error {
	formats, err := m.dev.SurfaceFormats(m.surface)
	if err != nil {
		return driver.Fatal(errors.Wrap(err, "query surface formats"))
	}
	if len(formats) == 0 {
		return ErrNoSurfaceFormats
	}
	modes, err := m.dev.SurfacePresentModes(m.surface)
	if err != nil {
		return driver.Fatal(errors.Wrap(err, "query present modes"))
	}
	if len(modes) == 0 {
		return ErrNoPresentModes
	}
	caps, err := m.dev.SurfaceCapabilities(m.surface)
	if err != nil {
		return driver.Fatal(errors.Wrap(err, "query surface capabilities"))
	}
	depth, ok := chooseDepthFormat(m.dev)
	if !ok {
		return ErrNoDepthFormat
	}

	preferred := DefaultSurfaceFormat
	if m.cfg.SurfaceFormat.Format != driver.FormatUndefined {
		preferred = m.cfg.SurfaceFormat
	}
	format := chooseSurfaceFormat(formats, preferred)
	mode := choosePresentMode(modes, m.cfg.PresentMode)
	extent := chooseExtent(caps, m.requested)
	count := chooseImageCount(caps)
	samples := SanitizeSamples(m.cfg.Samples, m.dev.SampleCounts())
	if m.cfg.Samples != 0 && samples != m.cfg.Samples {
		core.LogWarn("%d samples requested, using %d", m.cfg.Samples, samples)
	}

	m.renderPassChanged = false
	if m.renderPass == 0 || format.Format != m.format.Format || depth != m.depthFormat || samples != m.samples {
		if m.renderPass != 0 {
			m.dev.DestroyRenderPass(m.renderPass)
			m.renderPass = 0
		}
		rp, err := m.dev.CreateRenderPass(driver.RenderPassDesc{
			ColorFormat: format.Format,
			DepthFormat: depth,
			Samples:     samples,
		})
		if err != nil {
			return driver.Fatal(errors.Wrap(err, "create render pass"))
		}
		m.renderPass = rp
		m.renderPassChanged = true
	}

	usage := driver.UsageColorAttachment
	if m.cfg.Readback {
		usage |= driver.UsageTransferSrc
	}
	handle, err := m.dev.CreateSwapchain(driver.SwapchainDesc{
		Surface:     m.surface,
		Format:      format,
		PresentMode: mode,
		Extent:      extent,
		ImageCount:  count,
		Usage:       usage,
		Old:         old,
	})
	if err != nil {
		return driver.Fatal(errors.Wrap(err, "create swapchain"))
	}
	if old != 0 {
		m.dev.DestroySwapchain(old)
	}
	m.handle = handle
	m.format = format
	m.depthFormat = depth
	m.presentMode = mode
	m.extent = extent
	m.samples = samples

	images, err := m.dev.SwapchainImages(handle)
	if err != nil {
		return driver.Fatal(errors.Wrap(err, "get swapchain images"))
	}
	m.slots = make([]Slot, 0, len(images))
	for i, img := range images {
		m.slots = append(m.slots, Slot{Index: uint32(i), Image: img})
		slot := &m.slots[i]

		if slot.View, err = m.dev.CreateImageView(img, format.Format, driver.AspectColor); err != nil {
			return driver.Fatal(errors.Wrapf(err, "create view for swapchain image %d", i))
		}
		if slot.Depth, err = m.createAttachment(depth, driver.UsageDepthStencilAttachment); err != nil {
			return driver.Fatal(errors.Wrapf(err, "create depth attachment %d", i))
		}
		if samples > 1 {
			usage := driver.UsageColorAttachment | driver.UsageTransientAttachment
			if slot.Multisample, err = m.createAttachment(format.Format, usage); err != nil {
				return driver.Fatal(errors.Wrapf(err, "create multisample attachment %d", i))
			}
		}
	}

	if m.imageAcquired, err = m.dev.CreateSemaphore(); err != nil {
		return driver.Fatal(errors.Wrap(err, "create image acquired semaphore"))
	}
	if m.renderingDone, err = m.dev.CreateSemaphore(); err != nil {
		return driver.Fatal(errors.Wrap(err, "create rendering done semaphore"))
	}

	m.dirty = true
	m.stale = false
	m.state = StateReady
	core.LogInfo("swapchain ready: %d images %s %s %s, depth %s, %dx msaa",
		len(m.slots), extent, format.Format, mode, depth, samples)
	return nil
}

func (m *Manager) createAttachment(f driver.Format, usage driver.ImageUsage) (Attachment, error) {
	img, err := m.dev.CreateImage(driver.ImageDesc{
		Extent:  m.extent,
		Format:  f,
		Usage:   usage,
		Samples: m.samples,
	})
	if err != nil {
		return Attachment{}, err
	}
	view, err := m.dev.CreateImageView(img, f, driver.AspectFor(f))
	if err != nil {
		m.dev.DestroyImage(img)
		return Attachment{}, err
	}
	return Attachment{Image: img, View: view}, nil
}

// AcquireNext requests the next presentable image. Out-of-date chains are
// recreated and leave the manager Ready without an image.
func (m *Manager) AcquireNext(timeout uint64) error {
	if m.state != StateReady {
		return errors.Wrapf(ErrInvalidState, "acquire in state %s", m.state)
	}
	idx, err := m.dev.AcquireNextImage(m.handle, timeout, m.imageAcquired)
	switch {
	case err == nil:
	case errors.Is(err, driver.ErrSuboptimal):
		// the image is usable, rebuild after it is presented
		m.stale = true
	case errors.Is(err, driver.ErrOutOfDate):
		core.LogDebug("swapchain out of date on acquire")
		return m.Recreate()
	case driver.Classify(err) == driver.OutcomeTimeout:
		return ErrAcquireTimeout
	case errors.Is(err, driver.ErrFatal), errors.Is(err, driver.ErrDeviceLost):
		return driver.Fatal(errors.Wrap(err, "acquire next image"))
	default:
		return &PresentError{Op: "acquire", Err: err}
	}
	m.current = idx
	m.state = StateImageAcquired
	return nil
}

// Present queues the current image for display once rendering is done, then
// acquires the next one. Stale chains are recreated instead.
func (m *Manager) Present(q driver.Queue) error {
	if m.state != StateImageAcquired {
		return errors.Wrapf(ErrInvalidState, "present in state %s", m.state)
	}
	err := m.dev.Present(q, m.handle, m.current, m.renderingDone)
	m.state = StateReady
	switch {
	case err == nil && !m.stale:
		return m.AcquireNext(m.cfg.AcquireTimeout)
	case err == nil, driver.Classify(err) == driver.OutcomeStale:
		core.LogDebug("swapchain stale on present")
		return m.Recreate()
	case errors.Is(err, driver.ErrFatal), errors.Is(err, driver.ErrDeviceLost):
		return driver.Fatal(errors.Wrap(err, "present"))
	}
	return &PresentError{Op: "present", Err: err}
}

// Recreate rebuilds the chain for the current surface state, reusing only
// the surface and, when formats are unchanged, the render pass.
func (m *Manager) Recreate() error {
	switch m.state {
	case StateUninitialized, StateDestroyed:
		return errors.Wrapf(ErrInvalidState, "recreate in state %s", m.state)
	}
	caps, err := m.dev.SurfaceCapabilities(m.surface)
	if err != nil {
		return driver.Fatal(errors.Wrap(err, "query surface capabilities"))
	}
	if chooseExtent(caps, m.requested).IsZero() {
		m.stale = true
		return ErrZeroExtent
	}

	m.state = StateRecreating
	if err := m.dev.WaitIdle(); err != nil {
		return driver.Fatal(errors.Wrap(err, "wait idle before recreate"))
	}
	m.destroySlots()
	m.destroySemaphores()
	if err := m.initialize(m.handle); err != nil {
		return err
	}
	m.recreations++
	return nil
}

// SetupFramebuffers records the initial layout transition of every
// presentable image into cb and builds one framebuffer per slot.
func (m *Manager) SetupFramebuffers(cb driver.CommandBuffer) error {
	if m.state != StateReady && m.state != StateImageAcquired {
		return errors.Wrapf(ErrInvalidState, "setup framebuffers in state %s", m.state)
	}
	for i := range m.slots {
		slot := &m.slots[i]
		m.dev.CmdImageBarrier(cb, slot.Image, driver.AspectColor, driver.LayoutUndefined, driver.LayoutColorAttachment)

		if slot.Framebuffer != 0 {
			m.dev.DestroyFramebuffer(slot.Framebuffer)
			slot.Framebuffer = 0
		}
		fb, err := m.dev.CreateFramebuffer(m.renderPass, m.attachments(slot), m.extent)
		if err != nil {
			return driver.Fatal(errors.Wrapf(err, "create framebuffer %d", i))
		}
		slot.Framebuffer = fb
	}
	m.dirty = false
	return nil
}

// attachments lists the views of a slot in render pass order.
func (m *Manager) attachments(slot *Slot) []driver.ImageView {
	if m.samples > 1 {
		return []driver.ImageView{slot.Multisample.View, slot.Depth.View, slot.View}
	}
	return []driver.ImageView{slot.View, slot.Depth.View}
}

// ClearValues returns one clear value per framebuffer attachment.
func (m *Manager) ClearValues(color [4]float32, depth float32) []driver.ClearValue {
	c := driver.ClearValue{Color: color}
	d := driver.ClearDepth(depth, 0)
	if m.samples > 1 {
		return []driver.ClearValue{c, d, c}
	}
	return []driver.ClearValue{c, d}
}

// Resize records a new drawable size. The chain is rebuilt at the next
// safe point.
func (m *Manager) Resize(width, height uint32) {
	m.requested = driver.Extent{Width: width, Height: height}
	m.stale = true
}

// Destroy releases every object except the surface.
func (m *Manager) Destroy() {
	if m.state == StateDestroyed {
		return
	}
	if m.state != StateUninitialized {
		if err := m.dev.WaitIdle(); err != nil {
			core.LogError("wait idle before swapchain destroy: %v", err)
		}
	}
	m.destroySlots()
	// an image may still be acquired; its pending signal goes away with the
	// swapchain, so the semaphores are released last
	if m.handle != 0 {
		m.dev.DestroySwapchain(m.handle)
		m.handle = 0
	}
	m.destroySemaphores()
	if m.renderPass != 0 {
		m.dev.DestroyRenderPass(m.renderPass)
		m.renderPass = 0
	}
	m.state = StateDestroyed
}

func (m *Manager) destroySlots() {
	for i := range m.slots {
		slot := &m.slots[i]
		if slot.Framebuffer != 0 {
			m.dev.DestroyFramebuffer(slot.Framebuffer)
		}
		m.destroyAttachment(slot.Multisample)
		m.destroyAttachment(slot.Depth)
		// the image itself belongs to the swapchain
		if slot.View != 0 {
			m.dev.DestroyImageView(slot.View)
		}
	}
	m.slots = nil
}

func (m *Manager) destroyAttachment(a Attachment) {
	if a.View != 0 {
		m.dev.DestroyImageView(a.View)
	}
	if a.Image != 0 {
		m.dev.DestroyImage(a.Image)
	}
}

func (m *Manager) destroySemaphores() {
	if m.imageAcquired != 0 {
		m.dev.DestroySemaphore(m.imageAcquired)
		m.imageAcquired = 0
	}
	if m.renderingDone != 0 {
		m.dev.DestroySemaphore(m.renderingDone)
		m.renderingDone = 0
	}
}

func (m *Manager) State() State {
	return m.state
}

// Current is the index of the acquired slot. Only meaningful in
// StateImageAcquired.
func (m *Manager) Current() uint32 {
	return m.current
}

func (m *Manager) ImageCount() int {
	return len(m.slots)
}

func (m *Manager) Slot(i uint32) Slot {
	return m.slots[i]
}

func (m *Manager) Framebuffer(i uint32) driver.Framebuffer {
	return m.slots[i].Framebuffer
}

func (m *Manager) Extent() driver.Extent {
	return m.extent
}

func (m *Manager) Format() driver.SurfaceFormat {
	return m.format
}

func (m *Manager) DepthFormat() driver.Format {
	return m.depthFormat
}

func (m *Manager) PresentMode() driver.PresentMode {
	return m.presentMode
}

func (m *Manager) Samples() driver.SampleCount {
	return m.samples
}

func (m *Manager) RenderPass() driver.RenderPass {
	return m.renderPass
}

// RenderPassChanged reports whether the last (re)initialization replaced
// the render pass, invalidating pipelines built against it.
func (m *Manager) RenderPassChanged() bool {
	return m.renderPassChanged
}

func (m *Manager) ImageAcquired() driver.Semaphore {
	return m.imageAcquired
}

func (m *Manager) RenderingDone() driver.Semaphore {
	return m.renderingDone
}

// FramebuffersDirty is set by every (re)initialization until
// SetupFramebuffers runs.
func (m *Manager) FramebuffersDirty() bool {
	return m.dirty
}

// Stale reports a pending resize or a suboptimal acquire.
func (m *Manager) Stale() bool {
	return m.stale
}

func (m *Manager) Recreations() int {
	return m.recreations
}
