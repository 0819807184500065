package testbed

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkframe/engine"
	"github.com/spaghettifunk/vkframe/engine/assets"
	"github.com/spaghettifunk/vkframe/engine/core"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
	"github.com/spaghettifunk/vkframe/engine/renderer/driver/fake"
	"github.com/spaghettifunk/vkframe/engine/renderer/frame"
	"github.com/spaghettifunk/vkframe/engine/renderer/swapchain"
)

var shaderNames = []string{
	"triangle.vert.spv", "triangle.frag.spv",
	"cube.vert.spv", "cube.frag.spv",
	"textured.vert.spv", "textured.frag.spv",
}

func spirv(words int) []byte {
	out := make([]byte, 4*words)
	binary.LittleEndian.PutUint32(out, 0x07230203)
	return out
}

func writeAssets(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shaders"), 0o755))
	for _, name := range shaderNames {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", name), spirv(8), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0o755))
	writePNG(t, filepath.Join(dir, "textures", "crate.png"), 8, color.RGBA{R: 200, A: 255})
}

func writePNG(t *testing.T, path string, size int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// tap snapshots the commands of the last frame once the game drew.
type tap struct {
	*engine.Game
	dev  *fake.Device
	last []string
}

func (t *tap) Draw(cb driver.CommandBuffer, slot uint32) error {
	if err := t.Game.Draw(cb, slot); err != nil {
		return err
	}
	t.last = t.dev.Commands(cb)
	return nil
}

type rig struct {
	dir    string
	cfg    *engine.ApplicationConfig
	dev    *fake.Device
	sc     *swapchain.Manager
	assets *assets.AssetManager
	game   *engine.Game
	tap    *tap
	loop   *frame.Loop
}

func newRig(t *testing.T, demo string, configure func(cfg *engine.ApplicationConfig)) *rig {
	t.Helper()
	r := &rig{dir: t.TempDir()}
	writeAssets(t, r.dir)

	r.cfg = engine.DefaultConfig()
	r.cfg.Demo = demo
	r.cfg.AssetsDir = r.dir
	if configure != nil {
		configure(r.cfg)
	}

	var err error
	r.assets, err = assets.NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, r.assets.Initialize(r.dir))

	r.dev = fake.New(fake.DefaultConfig())
	r.sc = swapchain.New(r.dev, swapchain.Config{Width: 800, Height: 600, Samples: 4})
	require.NoError(t, r.sc.Initialize(r.dev.NewSurface()))

	r.game, err = New(r.cfg)
	require.NoError(t, err)
	require.NoError(t, r.game.FnInitialize(&engine.Context{
		Config:    r.cfg,
		Device:    r.dev,
		Swapchain: r.sc,
		Assets:    r.assets,
		Events:    core.NewEventBus(),
		Input:     core.NewInput(),
	}))

	r.tap = &tap{Game: r.game, dev: r.dev}
	r.loop, err = frame.New(r.dev, r.sc, r.tap, frame.Options{ClearDepth: 1})
	require.NoError(t, err)
	return r
}

func (r *rig) frames(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, r.loop.Frame())
	}
}

// close tears everything down the way the engine does and checks that no
// device object leaked.
func (r *rig) close(t *testing.T) {
	t.Helper()
	r.loop.Close()
	require.NoError(t, r.game.FnShutdown())
	r.sc.Destroy()
	require.NoError(t, r.assets.Close())

	assert.Empty(t, r.dev.Violations())
	assert.Zero(t, r.dev.Live())
}

func TestNewSelectsDemo(t *testing.T) {
	for _, name := range Names() {
		cfg := engine.DefaultConfig()
		cfg.Demo = name
		g, err := New(cfg)
		require.NoError(t, err, name)
		assert.Same(t, cfg, g.ApplicationConfig)
		assert.NotNil(t, g.FnInitialize)
		assert.NotNil(t, g.FnShutdown)
	}
	assert.Equal(t, []string{DemoCube, DemoTexturedCube, DemoTriangle}, Names())
}

func TestNewRejectsUnknownDemo(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Demo = "teapot"
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrUnknownDemo)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestTriangleFrames(t *testing.T) {
	r := newRig(t, DemoTriangle, nil)
	r.frames(t, 5)

	assert.Equal(t, []string{
		"bindPipeline",
		"beginRenderPass",
		"setViewport",
		"bindVertexBuffer",
		"draw 3",
	}, r.tap.last)
	assert.Equal(t, 1, r.dev.Count("createPipeline"))
	r.close(t)
}

func TestCubeFrames(t *testing.T) {
	r := newRig(t, DemoCube, nil)
	r.frames(t, 5)

	assert.Equal(t, []string{
		"bindPipeline",
		"pushConstants",
		"beginRenderPass",
		"setViewport",
		"bindVertexBuffer",
		"bindIndexBuffer",
		"drawIndexed 36",
	}, r.tap.last)

	c := r.game.State.(*cube)
	assert.Positive(t, c.elapsed)
	assert.InDelta(t, 800.0/600.0, -c.proj.At(1, 1)/c.proj.At(0, 0), 1e-5)
	r.close(t)
}

func TestTexturedCubeFrames(t *testing.T) {
	r := newRig(t, DemoTexturedCube, nil)
	r.frames(t, 6)

	assert.Equal(t, []string{
		"bindPipeline",
		"bindDescriptorSet",
		"beginRenderPass",
		"setViewport",
		"bindVertexBuffer",
		"bindIndexBuffer",
		"drawIndexed 36",
	}, r.tap.last)

	c := r.game.State.(*texturedCube)
	require.Len(t, c.uniforms, r.sc.ImageCount())
	require.Len(t, c.sets, r.sc.ImageCount())
	written := r.dev.BufferData(c.uniforms[0])
	require.Len(t, written, cameraUniformSize)
	assert.NotEqual(t, make([]byte, cameraUniformSize), written)
	r.close(t)
}

func TestTexturedCubeFollowsImageCount(t *testing.T) {
	r := newRig(t, DemoTexturedCube, nil)
	r.frames(t, 3)
	require.Equal(t, 3, r.sc.ImageCount())

	r.dev.SetCapabilities(driver.SurfaceCapabilities{
		MinImageCount:  1,
		MaxImageCount:  2,
		CurrentExtent:  driver.Extent{Width: 1024, Height: 768},
		MinImageExtent: driver.Extent{Width: 1, Height: 1},
		MaxImageExtent: driver.Extent{Width: 4096, Height: 4096},
	})
	r.sc.Resize(1024, 768)
	r.frames(t, 4)

	c := r.game.State.(*texturedCube)
	assert.Equal(t, 2, r.sc.ImageCount())
	assert.Len(t, c.uniforms, 2)
	assert.Len(t, c.sets, 2)
	assert.Equal(t, 2, r.dev.Count("createPipeline"))
	r.close(t)
}

func TestResizeKeepsPipeline(t *testing.T) {
	r := newRig(t, DemoCube, nil)
	r.frames(t, 2)

	caps := fake.DefaultConfig().Capabilities
	caps.CurrentExtent = driver.Extent{Width: 1024, Height: 512}
	r.dev.SetCapabilities(caps)
	r.sc.Resize(1024, 512)
	r.frames(t, 2)

	c := r.game.State.(*cube)
	assert.Equal(t, 1, r.dev.Count("createPipeline"))
	assert.InDelta(t, 2.0, -c.proj.At(1, 1)/c.proj.At(0, 0), 1e-5)
	r.close(t)
}

func TestShaderReload(t *testing.T) {
	for _, demo := range Names() {
		t.Run(demo, func(t *testing.T) {
			r := newRig(t, demo, nil)
			r.frames(t, 2)

			require.NoError(t, r.game.FnAssetChanged("textures/unrelated.png"))
			assert.Equal(t, 1, r.dev.Count("createPipeline"))

			name := "shaders/" + map[string]string{
				DemoTriangle:     "triangle",
				DemoCube:         "cube",
				DemoTexturedCube: "textured",
			}[demo] + ".frag.spv"
			require.NoError(t, r.game.FnAssetChanged(name))
			assert.Equal(t, 2, r.dev.Count("createPipeline"))

			r.frames(t, 3)
			r.close(t)
		})
	}
}

func TestBrokenShaderKeepsPreviousPipeline(t *testing.T) {
	r := newRig(t, DemoCube, nil)
	r.frames(t, 2)

	require.NoError(t, os.WriteFile(filepath.Join(r.dir, "shaders", "cube.vert.spv"), []byte{1, 2, 3}, 0o644))
	assert.Error(t, r.game.FnAssetChanged("shaders/cube.vert.spv"))
	assert.Equal(t, 1, r.dev.Count("createPipeline"))

	r.frames(t, 3)
	assert.Equal(t, "drawIndexed 36", r.tap.last[len(r.tap.last)-1])
	r.close(t)
}

func TestTextureFromAssets(t *testing.T) {
	r := newRig(t, DemoTexturedCube, func(cfg *engine.ApplicationConfig) {
		cfg.Texture = "textures/crate.png"
	})
	r.frames(t, 2)
	live := r.dev.Live()

	writePNG(t, filepath.Join(r.dir, "textures", "crate.png"), 16, color.RGBA{B: 200, A: 255})
	require.NoError(t, r.game.FnAssetChanged("textures/crate.png"))
	assert.Equal(t, live, r.dev.Live(), "old texture is released")
	assert.Equal(t, 1, r.dev.Count("createPipeline"))

	r.frames(t, 2)
	r.close(t)
}

func TestMissingTextureFailsInitialize(t *testing.T) {
	dir := t.TempDir()
	writeAssets(t, dir)
	am, err := assets.NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	defer am.Close()

	cfg := engine.DefaultConfig()
	cfg.Demo = DemoTexturedCube
	cfg.Texture = "textures/missing.png"
	g, err := New(cfg)
	require.NoError(t, err)

	dev := fake.New(fake.DefaultConfig())
	err = g.FnInitialize(&engine.Context{Config: cfg, Device: dev, Assets: am})
	assert.ErrorIs(t, err, assets.ErrAssetNotFound)
	require.NoError(t, g.FnShutdown())
	assert.Zero(t, dev.Live())
}

func TestCubeGeometry(t *testing.T) {
	vertices := coloredCubeVertices(1)
	indices := cubeIndices()
	require.Len(t, vertices, 24)
	require.Len(t, indices, 36)

	// every triangle winds counter clockwise seen from outside the cube
	for i := 0; i < len(indices); i += 3 {
		a := vertices[indices[i]].Position
		b := vertices[indices[i+1]].Position
		c := vertices[indices[i+2]].Position
		normal := b.Sub(a).Cross(c.Sub(a))
		center := a.Add(b).Add(c).Mul(1.0 / 3)
		assert.Positive(t, normal.Dot(center), "triangle %d", i/3)
	}

	data, err := toBytes(texturedCubeVertices(0.5))
	require.NoError(t, err)
	stride, attributes := texturedVertexLayout()
	assert.Len(t, data, 24*int(stride))
	assert.Equal(t, uint32(12), attributes[1].Offset)
	assert.Equal(t, float32(0.5), mgl32.Abs(texturedCubeVertices(0.5)[0].Position[0]))
}

func TestCheckerboard(t *testing.T) {
	img := checkerboard(64, 16)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
	assert.Equal(t, img.RGBAAt(0, 0), img.RGBAAt(16, 16))
	assert.NotEqual(t, img.RGBAAt(0, 0), img.RGBAAt(16, 0))
}
