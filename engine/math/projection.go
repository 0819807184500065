package math

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// AspectRatio returns width/height and whether the ratio is usable, that is
// finite and strictly positive.
func AspectRatio(width, height uint32) (float32, bool) {
	ratio := float64(width) / float64(height)
	if stdmath.IsInf(ratio, 0) || stdmath.IsNaN(ratio) || ratio <= 0 {
		return 0, false
	}
	return float32(ratio), true
}

// vulkanClip maps OpenGL clip space to Vulkan's: Y down, depth in [0, 1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Perspective is mgl32.Perspective corrected for Vulkan clip space.
func Perspective(fovyDeg, aspect, near, far float32) mgl32.Mat4 {
	return vulkanClip.Mul4(mgl32.Perspective(mgl32.DegToRad(fovyDeg), aspect, near, far))
}

// Spin returns a model matrix rotating around the given axis at degPerSec.
func Spin(seconds float64, degPerSec float32, axis mgl32.Vec3) mgl32.Mat4 {
	period := 360.0 / float64(degPerSec)
	angle := float32(stdmath.Mod(seconds, period)) * mgl32.DegToRad(degPerSec)
	return mgl32.HomogRotate3D(angle, axis.Normalize())
}
