package swapchain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver/fake"
)

func newManager(t *testing.T, fcfg fake.Config, cfg Config) (*fake.Device, *Manager) {
	t.Helper()
	dev := fake.New(fcfg)
	m := New(dev, cfg)
	require.NoError(t, m.Initialize(dev.NewSurface()))
	return dev, m
}

func setup(t *testing.T, dev *fake.Device, m *Manager) {
	t.Helper()
	require.NoError(t, dev.Immediate(m.SetupFramebuffers))
}

// render submits a command buffer that only moves the acquired image to
// the present layout, honoring both semaphores.
func render(t *testing.T, dev *fake.Device, m *Manager, cb driver.CommandBuffer) {
	t.Helper()
	require.Equal(t, StateImageAcquired, m.State())
	require.NoError(t, dev.BeginCommandBuffer(cb, true))
	dev.CmdImageBarrier(cb, m.Slot(m.Current()).Image, driver.AspectColor, driver.LayoutUndefined, driver.LayoutPresentSrc)
	require.NoError(t, dev.EndCommandBuffer(cb))
	require.NoError(t, dev.Submit(dev.Queue(driver.QueueGraphics), driver.SubmitInfo{
		CommandBuffer: cb,
		Wait:          m.ImageAcquired(),
		WaitStage:     driver.StageColorAttachmentOutput,
		Signal:        m.RenderingDone(),
	}))
	require.NoError(t, dev.WaitIdle())
}

func TestInitializeNegotiatesSurface(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{Width: 640, Height: 480, Samples: 1})

	assert.Equal(t, StateReady, m.State())
	assert.Equal(t, 3, m.ImageCount())
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, m.Extent())
	assert.Equal(t, DefaultSurfaceFormat, m.Format())
	assert.Equal(t, driver.PresentModeMailbox, m.PresentMode())
	assert.Equal(t, driver.FormatD32Float, m.DepthFormat())
	assert.Equal(t, driver.SampleCount(1), m.Samples())
	assert.True(t, m.FramebuffersDirty())
	assert.True(t, m.RenderPassChanged())
	assert.NotZero(t, m.RenderPass())
	assert.NotZero(t, m.ImageAcquired())
	assert.NotZero(t, m.RenderingDone())

	setup(t, dev, m)
	assert.False(t, m.FramebuffersDirty())
	for i := 0; i < m.ImageCount(); i++ {
		slot := m.Slot(uint32(i))
		assert.Equal(t, driver.LayoutColorAttachment, dev.ImageLayout(slot.Image))
		assert.Zero(t, slot.Multisample.Image)
		ext, ok := dev.FramebufferExtent(slot.Framebuffer)
		require.True(t, ok)
		assert.Equal(t, m.Extent(), ext)
	}
	assert.Len(t, m.ClearValues([4]float32{}, 1), 2)
	assert.Empty(t, dev.Violations())
}

func TestInitializeUsesRequestedSizeWhenSurfaceIsUndefined(t *testing.T) {
	fcfg := fake.DefaultConfig()
	fcfg.Capabilities.CurrentExtent = driver.Extent{Width: driver.UndefinedExtent, Height: driver.UndefinedExtent}

	_, m := newManager(t, fcfg, Config{Width: 8000, Height: 600})
	assert.Equal(t, driver.Extent{Width: 4096, Height: 600}, m.Extent())
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fake.Config)
		want   error
	}{
		{"no formats", func(c *fake.Config) { c.Formats = nil }, ErrNoSurfaceFormats},
		{"no present modes", func(c *fake.Config) { c.PresentModes = nil }, ErrNoPresentModes},
		{"no depth format", func(c *fake.Config) { c.DepthFormats = []driver.Format{driver.FormatD16Unorm} }, ErrNoDepthFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fcfg := fake.DefaultConfig()
			tt.mutate(&fcfg)
			dev := fake.New(fcfg)
			m := New(dev, Config{})
			err := m.Initialize(dev.NewSurface())
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, driver.OutcomeFatal, driver.Classify(err))
		})
	}
}

func TestDepthFormatFallsBack(t *testing.T) {
	fcfg := fake.DefaultConfig()
	fcfg.DepthFormats = []driver.Format{driver.FormatD24UnormS8Uint}
	_, m := newManager(t, fcfg, Config{})
	assert.Equal(t, driver.FormatD24UnormS8Uint, m.DepthFormat())
}

func TestMultisampleAttachments(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{Samples: 8})
	assert.Equal(t, driver.SampleCount(4), m.Samples())
	setup(t, dev, m)

	for i := 0; i < m.ImageCount(); i++ {
		assert.NotZero(t, m.Slot(uint32(i)).Multisample.Image)
		assert.NotZero(t, m.Slot(uint32(i)).Multisample.View)
	}
	assert.Len(t, m.ClearValues([4]float32{}, 1), 3)
	assert.Empty(t, dev.Violations())
}

func TestAcquirePresentCycle(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)
	cbs, err := dev.AllocateCommandBuffers(1)
	require.NoError(t, err)

	require.NoError(t, m.AcquireNext(driver.Infinite))
	for want := uint32(0); want < 7; want++ {
		require.Equal(t, want%3, m.Current())
		render(t, dev, m, cbs[0])
		require.NoError(t, m.Present(dev.Queue(driver.QueuePresent)))
		assert.Equal(t, StateImageAcquired, m.State())
	}
	assert.Zero(t, m.Recreations())
	assert.Empty(t, dev.Violations())
}

func TestAcquireTwiceIsRejected(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	require.NoError(t, m.AcquireNext(driver.Infinite))
	assert.ErrorIs(t, m.AcquireNext(driver.Infinite), ErrInvalidState)
	assert.Empty(t, dev.Violations())
}

func TestPresentOutOfDateRecreates(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)
	cbs, _ := dev.AllocateCommandBuffers(1)
	dev.FailPresentAt(1, driver.ErrOutOfDate)

	require.NoError(t, m.AcquireNext(driver.Infinite))
	render(t, dev, m, cbs[0])
	require.NoError(t, m.Present(dev.Queue(driver.QueuePresent)))

	assert.Equal(t, 1, m.Recreations())
	assert.Equal(t, StateReady, m.State())
	assert.True(t, m.FramebuffersDirty())
	assert.False(t, m.RenderPassChanged())
	assert.Equal(t, 1, dev.Count("destroySwapchain"))

	setup(t, dev, m)
	require.NoError(t, m.AcquireNext(driver.Infinite))
	assert.Equal(t, uint32(0), m.Current())
	assert.Empty(t, dev.Violations())
}

func TestAcquireOutOfDateRecreates(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	dev.FailAcquireAt(1, driver.ErrOutOfDate)

	require.NoError(t, m.AcquireNext(driver.Infinite))
	assert.Equal(t, StateReady, m.State())
	assert.Equal(t, 1, m.Recreations())
}

func TestSuboptimalAcquireRecreatesAfterPresent(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)
	cbs, _ := dev.AllocateCommandBuffers(1)
	dev.FailAcquireAt(1, driver.ErrSuboptimal)

	require.NoError(t, m.AcquireNext(driver.Infinite))
	assert.Equal(t, StateImageAcquired, m.State())
	assert.True(t, m.Stale())

	render(t, dev, m, cbs[0])
	require.NoError(t, m.Present(dev.Queue(driver.QueuePresent)))
	assert.Equal(t, 1, m.Recreations())
	assert.Equal(t, StateReady, m.State())
	assert.False(t, m.Stale())
	assert.Empty(t, dev.Violations())
}

func TestResizeMidFrameRecreatesAfterPresent(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)
	cbs, _ := dev.AllocateCommandBuffers(1)

	require.NoError(t, m.AcquireNext(driver.Infinite))
	m.Resize(1024, 768)
	assert.True(t, m.Stale())
	render(t, dev, m, cbs[0])
	require.NoError(t, m.Present(dev.Queue(driver.QueuePresent)))
	assert.Equal(t, 1, m.Recreations())
	assert.False(t, m.Stale())
	assert.Empty(t, dev.Violations())
}

func TestRecreateWithHeldImageIsReported(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)
	require.NoError(t, m.AcquireNext(driver.Infinite))

	// the acquire still has to signal imageAcquired when it is destroyed
	require.NoError(t, m.Recreate())
	require.Len(t, dev.Violations(), 1)
	assert.Contains(t, dev.Violations()[0], "pending acquire")
}

func TestAcquireTimeoutIsRecoverable(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	dev.FailAcquireAt(1, driver.ErrTimeout)

	err := m.AcquireNext(10)
	assert.ErrorIs(t, err, ErrAcquireTimeout)
	assert.Equal(t, driver.OutcomeTimeout, driver.Classify(err))
	assert.Equal(t, StateReady, m.State())

	require.NoError(t, m.AcquireNext(10))
	assert.Equal(t, StateImageAcquired, m.State())
}

func TestPresentErrors(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)
	cbs, _ := dev.AllocateCommandBuffers(1)
	dev.FailPresentAt(1, driver.ErrSurfaceLost)
	dev.FailAcquireAt(2, errors.New("driver hiccup"))

	require.NoError(t, m.AcquireNext(driver.Infinite))
	render(t, dev, m, cbs[0])
	err := m.Present(dev.Queue(driver.QueuePresent))

	var perr *PresentError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "present", perr.Op)
	assert.ErrorIs(t, err, driver.ErrSurfaceLost)
	assert.Equal(t, StateReady, m.State())

	err = m.AcquireNext(driver.Infinite)
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "acquire", perr.Op)
	assert.Equal(t, StateReady, m.State())
	assert.Zero(t, m.Recreations())
}

func TestDeviceLostIsFatal(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	dev.FailAcquireAt(1, driver.ErrDeviceLost)

	err := m.AcquireNext(driver.Infinite)
	assert.Equal(t, driver.OutcomeFatal, driver.Classify(err))
	var perr *PresentError
	assert.False(t, errors.As(err, &perr))
}

func TestRecreateIsIdempotent(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)

	require.NoError(t, m.Recreate())
	setup(t, dev, m)
	onceCount, onceExtent := m.ImageCount(), m.Extent()
	live := dev.Live()

	require.NoError(t, m.Recreate())
	setup(t, dev, m)
	assert.Equal(t, onceCount, m.ImageCount())
	assert.Equal(t, onceExtent, m.Extent())
	assert.Equal(t, live, dev.Live())
	assert.Equal(t, 2, m.Recreations())
	assert.Empty(t, dev.Violations())
}

func TestResizePicksUpNewCapabilities(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{Samples: 2})
	setup(t, dev, m)

	caps := fake.DefaultConfig().Capabilities
	caps.CurrentExtent = driver.Extent{Width: 1280, Height: 720}
	caps.MinImageCount = 3
	caps.MaxImageCount = 0
	dev.SetCapabilities(caps)
	m.Resize(1280, 720)

	require.NoError(t, m.Recreate())
	setup(t, dev, m)
	assert.Equal(t, driver.Extent{Width: 1280, Height: 720}, m.Extent())
	assert.Equal(t, 4, m.ImageCount())
	assert.False(t, m.Stale())
	assert.Empty(t, dev.Violations())
}

func TestRecreateWithZeroExtentKeepsChain(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{})
	setup(t, dev, m)

	caps := fake.DefaultConfig().Capabilities
	caps.CurrentExtent = driver.Extent{Width: 0, Height: 0}
	dev.SetCapabilities(caps)
	m.Resize(0, 0)

	assert.ErrorIs(t, m.Recreate(), ErrZeroExtent)
	assert.True(t, m.Stale())
	assert.Equal(t, StateReady, m.State())
	assert.False(t, m.FramebuffersDirty())
	assert.Zero(t, m.Recreations())
}

func TestDestroyReleasesEverything(t *testing.T) {
	dev, m := newManager(t, fake.DefaultConfig(), Config{Samples: 4})
	setup(t, dev, m)
	require.NoError(t, m.AcquireNext(driver.Infinite))

	m.Destroy()
	assert.Equal(t, StateDestroyed, m.State())
	assert.Zero(t, dev.Live())
	assert.ErrorIs(t, m.Recreate(), ErrInvalidState)
	assert.ErrorIs(t, m.AcquireNext(0), ErrInvalidState)
	m.Destroy()
	assert.Empty(t, dev.Violations())
}
