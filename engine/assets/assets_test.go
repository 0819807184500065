package assets

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/vkframe/engine/assets/loaders"
)

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(out, 0x07230203)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*(i+1):], w)
	}
	return out
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 7, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shaders"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "textures"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "tri.vert.spv"), spirv(1, 2, 3), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "tri.vert"), []byte("#version 450"), 0o644))
	writePNG(t, filepath.Join(dir, "textures", "grid.png"), 4, 3)

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	t.Cleanup(func() { am.Close() })
	return am, dir
}

func TestInitializeIndexesKnownTypes(t *testing.T) {
	am, _ := newManager(t)
	assert.Equal(t, 2, am.Len(), "glsl sources are not assets")
}

func TestInitializeRejectsMissingDirectory(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	defer am.Close()
	assert.Error(t, am.Initialize(filepath.Join(t.TempDir(), "nope")))
}

func TestLoadShader(t *testing.T) {
	am, _ := newManager(t)
	code, err := am.LoadShader("shaders/tri.vert.spv")
	require.NoError(t, err)
	assert.Equal(t, spirv(1, 2, 3), code)

	_, err = am.LoadShader("shaders/missing.spv")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = am.LoadShader("textures/grid.png")
	assert.Error(t, err)
}

func TestLoadShaderRejectsTruncatedCode(t *testing.T) {
	am, dir := newManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "tri.vert.spv"), []byte{3, 2, 0x23}, 0o644))
	_, err := am.LoadShader("shaders/tri.vert.spv")
	assert.ErrorIs(t, err, loaders.ErrInvalidShader)
}

func TestLoadImage(t *testing.T) {
	am, _ := newManager(t)
	img, err := am.LoadImage("textures/grid.png", false)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	assert.Equal(t, color.RGBA{R: 30, G: 20, B: 7, A: 255}, img.RGBAAt(3, 2))

	flipped, err := am.LoadImage("textures/grid.png", true)
	require.NoError(t, err)
	assert.Equal(t, img.RGBAAt(3, 2), flipped.RGBAAt(3, 0))
}

func TestPollReportsWrites(t *testing.T) {
	am, dir := newManager(t)
	assert.Empty(t, am.Poll())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "tri.vert.spv"), spirv(9), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "notes.txt"), []byte("x"), 0o644))

	var changed []string
	require.Eventually(t, func() bool {
		changed = append(changed, am.Poll()...)
		return len(changed) > 0
	}, 5*time.Second, 10*time.Millisecond)

	// writes may be split into several events; they are reported once per poll
	for _, c := range changed {
		assert.Equal(t, "shaders/tri.vert.spv", c)
	}

	code, err := am.LoadShader("shaders/tri.vert.spv")
	require.NoError(t, err)
	assert.Equal(t, spirv(9), code)
}

func TestRemovedAssetsLeaveTheIndex(t *testing.T) {
	am, dir := newManager(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "textures", "grid.png")))

	require.Eventually(t, func() bool { return am.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	_, err := am.LoadImage("textures/grid.png", false)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestCloseIsIdempotent(t *testing.T) {
	am, _ := newManager(t)
	assert.NoError(t, am.Close())
	assert.NoError(t, am.Close())
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, loaders.ResourceTypeShader, loaders.TypeOf("a/b.frag.spv"))
	assert.Equal(t, loaders.ResourceTypeImage, loaders.TypeOf("x.jpeg"))
	assert.Equal(t, loaders.ResourceTypeImage, loaders.TypeOf("x.tiff"))
	assert.Equal(t, loaders.ResourceTypeNone, loaders.TypeOf("x.glsl"))
}
