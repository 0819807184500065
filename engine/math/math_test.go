package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(4096), Clamp(uint32(8000), 1, 4096))
	assert.Equal(t, uint32(600), Clamp(uint32(600), 1, 4096))
	assert.Equal(t, -1.0, Clamp(-3.0, -1.0, 1.0))
}

func TestAspectRatio(t *testing.T) {
	r, ok := AspectRatio(800, 600)
	assert.True(t, ok)
	assert.InDelta(t, 4.0/3.0, r, 1e-6)

	_, ok = AspectRatio(800, 0)
	assert.False(t, ok)
	_, ok = AspectRatio(0, 0)
	assert.False(t, ok)
	_, ok = AspectRatio(0, 600)
	assert.False(t, ok)
}

func TestPerspectiveMapsNearAndFar(t *testing.T) {
	p := Perspective(45, 1, 0.1, 10)

	near := p.Mul4x1(mgl32.Vec4{0, 0, -0.1, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, -10, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-5)

	up := p.Mul4x1(mgl32.Vec4{0, 1, -1, 1})
	assert.Less(t, up.Y(), float32(0))
}

func TestPerspectiveOnlyFlipsYAndRemapsDepth(t *testing.T) {
	gl := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.5, 100)
	vk := Perspective(60, 16.0/9.0, 0.5, 100)

	assert.Equal(t, gl.Col(0), vk.Col(0))
	assert.Equal(t, gl.Col(1).Mul(-1), vk.Col(1))
	assert.Equal(t, gl.At(3, 2), vk.At(3, 2))
	assert.InDelta(t, (gl.At(2, 2)-1)/2, vk.At(2, 2), 1e-6)
}

func TestSpinIsPeriodic(t *testing.T) {
	axis := mgl32.Vec3{0, 1, 0}
	a := Spin(0.5, 90, axis)
	b := Spin(4.5, 90, axis)
	assert.True(t, a.ApproxEqualThreshold(b, 1e-4))
}
