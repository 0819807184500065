// Package frame drives per-frame command recording, submission and
// presentation on top of a swapchain.Manager.
//
// Every presentable image owns one command buffer and one fence. A command
// buffer is re-recorded only after the fence of its last submission has
// been observed signaled, so at most one submission per slot is in flight.
package frame

import (
	"context"
	"image"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/math"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/swapchain"
)

// suspendedPoll is how long Run sleeps between event pumps while the
// drawable is empty.
const suspendedPoll = 16 * time.Millisecond

// metricsEvery is the number of frames between two metrics log lines.
const metricsEvery = 600

// SurfaceInfo describes the framebuffers a Renderer draws into.
type SurfaceInfo struct {
	Extent     driver.Extent
	Aspect     float32
	RenderPass driver.RenderPass
	// RenderPassChanged is set when pipelines built against a previous
	// render pass must be rebuilt.
	RenderPassChanged bool
	Samples           driver.SampleCount
	ImageCount        int
}

// Renderer records the content of a frame.
type Renderer interface {
	// Resize is called after the framebuffers are rebuilt, only when the
	// new aspect ratio is usable.
	Resize(info SurfaceInfo) error
	// Bind records pipeline, descriptor and push constant state before the
	// render pass begins. Per-slot host resources may be written here.
	Bind(cb driver.CommandBuffer, slot uint32, delta float64) error
	// Draw records vertex/index bindings and draw calls inside the render
	// pass.
	Draw(cb driver.CommandBuffer, slot uint32) error
}

// Window is the part of the platform the loop polls.
type Window interface {
	// PumpMessages processes pending events and returns false once the
	// window asked to close.
	PumpMessages() bool
	DrawableSize() (width, height uint32)
}

// Capture requests a read back of one presented frame.
type Capture struct {
	// Frame is the 1-based number of the frame to capture.
	Frame uint64
	Sink  func(img *image.RGBA) error
}

type Options struct {
	ClearColor [4]float32
	ClearDepth float32
	// AcquireTimeout in nanoseconds, zero waits forever.
	AcquireTimeout uint64
	Capture        *Capture
	// BeforeFrame runs between frames, after events were pumped.
	BeforeFrame func() error
}

type Loop struct {
	dev      driver.Device
	sc       *swapchain.Manager
	renderer Renderer
	opts     Options

	graphics driver.Queue
	present  driver.Queue

	commandBuffers []driver.CommandBuffer
	fences         []driver.Fence
	inFlight       []bool

	frameCount  uint64
	skipped     uint64
	passChanged bool

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64
}

// New allocates one command buffer and one fence per slot of an
// initialized swapchain.
func New(dev driver.Device, sc *swapchain.Manager, renderer Renderer, opts Options) (*Loop, error) {
	if sc.State() == swapchain.StateUninitialized || sc.State() == swapchain.StateDestroyed {
		return nil, errors.Wrapf(swapchain.ErrInvalidState, "frame loop on swapchain in state %s", sc.State())
	}
	if opts.AcquireTimeout == 0 {
		opts.AcquireTimeout = driver.Infinite
	}
	l := &Loop{
		dev:      dev,
		sc:       sc,
		renderer: renderer,
		opts:     opts,
		graphics: dev.Queue(driver.QueueGraphics),
		present:  dev.Queue(driver.QueuePresent),
		clock:    core.NewClock(),
		metrics:  core.NewMetrics(),
	}
	if err := l.allocate(sc.ImageCount()); err != nil {
		return nil, err
	}
	l.clock.Start()
	return l, nil
}

func (l *Loop) allocate(n int) error {
	cbs, err := l.dev.AllocateCommandBuffers(n)
	if err != nil {
		return driver.Fatal(errors.Wrap(err, "allocate command buffers"))
	}
	l.commandBuffers = cbs
	l.fences = make([]driver.Fence, 0, n)
	for i := 0; i < n; i++ {
		f, err := l.dev.CreateFence(false)
		if err != nil {
			return driver.Fatal(errors.Wrapf(err, "create fence %d", i))
		}
		l.fences = append(l.fences, f)
	}
	l.inFlight = make([]bool, n)
	return nil
}

// release frees per-slot objects. The device must be idle.
func (l *Loop) release() {
	if len(l.commandBuffers) > 0 {
		l.dev.FreeCommandBuffers(l.commandBuffers)
	}
	for _, f := range l.fences {
		l.dev.DestroyFence(f)
	}
	l.commandBuffers = nil
	l.fences = nil
	l.inFlight = nil
}

// Frame runs one iteration: rebuild if needed, acquire, record, submit,
// present. Presentation errors and acquire timeouts skip the frame and
// return nil; any other error is fatal.
func (l *Loop) Frame() error {
	// An image acquired before the chain went stale is still rendered and
	// presented. Present then recreates the chain.
	if l.sc.Stale() && l.sc.State() == swapchain.StateReady {
		if err := l.sc.Recreate(); err != nil {
			if errors.Is(err, swapchain.ErrZeroExtent) {
				l.skipped++
				return nil
			}
			return err
		}
	}
	if l.sc.FramebuffersDirty() {
		if err := l.rebuild(); err != nil {
			return err
		}
	}
	if l.sc.State() != swapchain.StateImageAcquired {
		if err := l.sc.AcquireNext(l.opts.AcquireTimeout); err != nil {
			if err := l.recover(err); err != nil {
				return err
			}
			l.skipped++
			return nil
		}
		if l.sc.State() != swapchain.StateImageAcquired {
			// recreated, pick it up next frame
			l.skipped++
			return nil
		}
	}

	i := l.sc.Current()
	if l.inFlight[i] {
		if err := l.prepare(i); err != nil {
			return err
		}
	}
	if err := l.record(i); err != nil {
		return err
	}
	if err := l.dev.Submit(l.graphics, driver.SubmitInfo{
		CommandBuffer: l.commandBuffers[i],
		Wait:          l.sc.ImageAcquired(),
		WaitStage:     driver.StageColorAttachmentOutput,
		Signal:        l.sc.RenderingDone(),
		Fence:         l.fences[i],
	}); err != nil {
		return driver.Fatal(errors.Wrapf(err, "submit slot %d", i))
	}
	l.inFlight[i] = true
	l.frameCount++

	if err := l.capture(i); err != nil {
		return err
	}

	// the frame is submitted, a failure from here on only delays the next one
	if err := l.sc.Present(l.present); err != nil {
		if err := l.recover(err); err != nil {
			return err
		}
	}

	// the slot acquired by Present is the next one to be re-recorded
	if l.sc.State() == swapchain.StateImageAcquired {
		return l.prepare(l.sc.Current())
	}
	return nil
}

// recover logs the errors the loop survives and returns the others.
func (l *Loop) recover(err error) error {
	var perr *swapchain.PresentError
	switch {
	case errors.As(err, &perr):
		core.LogError("%v", err)
	case errors.Is(err, swapchain.ErrAcquireTimeout):
		core.LogDebug("no swapchain image available")
	case errors.Is(err, swapchain.ErrZeroExtent):
	default:
		return err
	}
	return nil
}

// prepare makes slot i safe to re-record: waits for and resets its fence if
// a submission is pending and resets its command buffer.
func (l *Loop) prepare(i uint32) error {
	if l.inFlight[i] {
		if err := l.dev.WaitFence(l.fences[i], driver.Infinite); err != nil {
			return driver.Fatal(errors.Wrapf(err, "wait fence %d", i))
		}
		if err := l.dev.ResetFence(l.fences[i]); err != nil {
			return driver.Fatal(errors.Wrapf(err, "reset fence %d", i))
		}
		l.inFlight[i] = false
	}
	if err := l.dev.ResetCommandBuffer(l.commandBuffers[i]); err != nil {
		return driver.Fatal(errors.Wrapf(err, "reset command buffer %d", i))
	}
	return nil
}

// rebuild runs after every swapchain (re)initialization.
func (l *Loop) rebuild() error {
	if err := l.dev.WaitIdle(); err != nil {
		return driver.Fatal(errors.Wrap(err, "wait idle before framebuffer rebuild"))
	}
	if n := l.sc.ImageCount(); n != len(l.commandBuffers) {
		core.LogDebug("image count changed from %d to %d", len(l.commandBuffers), n)
		l.release()
		if err := l.allocate(n); err != nil {
			return err
		}
	} else {
		for i := range l.commandBuffers {
			if err := l.prepare(uint32(i)); err != nil {
				return err
			}
		}
	}
	if err := l.dev.Immediate(l.sc.SetupFramebuffers); err != nil {
		return driver.Fatal(errors.Wrap(err, "setup framebuffers"))
	}

	l.passChanged = l.passChanged || l.sc.RenderPassChanged()
	extent := l.sc.Extent()
	aspect, ok := math.AspectRatio(extent.Width, extent.Height)
	if !ok {
		core.LogWarn("extent %s has no usable aspect ratio, keeping previous projection", extent)
		return nil
	}
	info := SurfaceInfo{
		Extent:            extent,
		Aspect:            aspect,
		RenderPass:        l.sc.RenderPass(),
		RenderPassChanged: l.passChanged,
		Samples:           l.sc.Samples(),
		ImageCount:        l.sc.ImageCount(),
	}
	if err := l.renderer.Resize(info); err != nil {
		return errors.Wrap(err, "resize renderer")
	}
	l.passChanged = false
	return nil
}

func (l *Loop) record(i uint32) error {
	cb := l.commandBuffers[i]
	if err := l.dev.BeginCommandBuffer(cb, false); err != nil {
		return driver.Fatal(errors.Wrapf(err, "begin command buffer %d", i))
	}
	if err := l.renderer.Bind(cb, i, l.tick()); err != nil {
		return errors.Wrap(err, "bind frame state")
	}

	slot := l.sc.Slot(i)
	extent := l.sc.Extent()
	l.dev.CmdBeginRenderPass(cb, l.sc.RenderPass(), slot.Framebuffer, extent,
		l.sc.ClearValues(l.opts.ClearColor, l.opts.ClearDepth))
	l.dev.CmdSetViewport(cb, extent)
	if err := l.renderer.Draw(cb, i); err != nil {
		return errors.Wrap(err, "draw frame")
	}
	l.dev.CmdEndRenderPass(cb)
	l.dev.CmdImageBarrier(cb, slot.Image, driver.AspectColor, driver.LayoutColorAttachment, driver.LayoutPresentSrc)

	if err := l.dev.EndCommandBuffer(cb); err != nil {
		return driver.Fatal(errors.Wrapf(err, "end command buffer %d", i))
	}
	return nil
}

// tick returns the seconds elapsed since the previous frame.
func (l *Loop) tick() float64 {
	l.clock.Update()
	now := l.clock.Elapsed()
	delta := now - l.lastTime
	l.lastTime = now
	l.metrics.Update(delta)
	if l.metrics.Frames()%metricsEvery == 0 {
		core.LogDebug("%.1f fps, %.2f ms/frame", l.metrics.FPS(), l.metrics.FrameTime())
	}
	return delta
}

func (l *Loop) capture(i uint32) error {
	c := l.opts.Capture
	if c == nil || c.Frame != l.frameCount {
		return nil
	}
	if err := l.prepare(i); err != nil {
		return err
	}
	slot := l.sc.Slot(i)
	img, err := l.dev.ReadImage(slot.Image, l.sc.Format().Format, l.sc.Extent(), driver.LayoutPresentSrc)
	if err != nil {
		core.LogError("read back frame %d: %v", l.frameCount, err)
		return nil
	}
	if err := c.Sink(img); err != nil {
		core.LogError("capture frame %d: %v", l.frameCount, err)
		return nil
	}
	core.LogInfo("captured frame %d", l.frameCount)
	return nil
}

// Run pumps window events and renders until the window closes or ctx is
// cancelled. Frames are skipped while the drawable is empty. The device is
// idle when Run returns.
func (l *Loop) Run(ctx context.Context, win Window) error {
	for {
		select {
		case <-ctx.Done():
			return l.drain()
		default:
		}
		if !win.PumpMessages() {
			return l.drain()
		}
		if w, h := win.DrawableSize(); w == 0 || h == 0 {
			time.Sleep(suspendedPoll)
			continue
		}
		if l.opts.BeforeFrame != nil {
			if err := l.opts.BeforeFrame(); err != nil {
				l.drain()
				return err
			}
		}
		if err := l.Frame(); err != nil {
			l.drain()
			return err
		}
	}
}

func (l *Loop) drain() error {
	if err := l.dev.WaitIdle(); err != nil {
		return driver.Fatal(errors.Wrap(err, "wait idle"))
	}
	return nil
}

// Close waits for the device and releases the per-slot objects.
func (l *Loop) Close() {
	if err := l.dev.WaitIdle(); err != nil {
		core.LogError("wait idle before frame loop close: %v", err)
	}
	for i := range l.inFlight {
		l.inFlight[i] = false
	}
	l.release()
}

// FrameCount is the number of frames submitted so far.
func (l *Loop) FrameCount() uint64 {
	return l.frameCount
}

// FrameIndex is the round-robin slot position of the next frame.
func (l *Loop) FrameIndex() uint32 {
	if len(l.commandBuffers) == 0 {
		return 0
	}
	return uint32(l.frameCount % uint64(len(l.commandBuffers)))
}

// Skipped is the number of iterations that did not submit a frame.
func (l *Loop) Skipped() uint64 {
	return l.skipped
}

func (l *Loop) Metrics() *core.Metrics {
	return l.metrics
}
