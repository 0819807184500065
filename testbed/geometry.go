package testbed

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/vkframe/engine/renderer/driver"
)

type ColorVertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

func colorVertexLayout() (uint32, []driver.VertexAttribute) {
	var v ColorVertex
	return uint32(unsafe.Sizeof(v)), []driver.VertexAttribute{
		{Location: 0, Format: driver.VertexFloat3, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Format: driver.VertexFloat3, Offset: uint32(unsafe.Offsetof(v.Color))},
	}
}

type TexturedVertex struct {
	Position mgl32.Vec3
	TexCoord mgl32.Vec2
}

func texturedVertexLayout() (uint32, []driver.VertexAttribute) {
	var v TexturedVertex
	return uint32(unsafe.Sizeof(v)), []driver.VertexAttribute{
		{Location: 0, Format: driver.VertexFloat3, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Format: driver.VertexFloat2, Offset: uint32(unsafe.Offsetof(v.TexCoord))},
	}
}

// Triangle in clip space, drawn without any transform.
var triangleVertices = []ColorVertex{
	{Position: mgl32.Vec3{0, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}},
	{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 1, 0}},
	{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}},
}

// cubeFaces lists the corners of each face of the unit cube, counter
// clockwise when looking at the face from outside.
var cubeFaces = [6][4]mgl32.Vec3{
	{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}},     // +Z
	{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}}, // -Z
	{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}},     // +X
	{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}}, // -X
	{{-1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {-1, 1, -1}},     // +Y
	{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}}, // -Y
}

var faceColors = [6]mgl32.Vec3{
	{0.9, 0.2, 0.2},
	{0.2, 0.9, 0.2},
	{0.2, 0.2, 0.9},
	{0.9, 0.9, 0.2},
	{0.9, 0.2, 0.9},
	{0.2, 0.9, 0.9},
}

var faceTexCoords = [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

func coloredCubeVertices(halfExtent float32) []ColorVertex {
	out := make([]ColorVertex, 0, 24)
	for f, face := range cubeFaces {
		for _, p := range face {
			out = append(out, ColorVertex{Position: p.Mul(halfExtent), Color: faceColors[f]})
		}
	}
	return out
}

func texturedCubeVertices(halfExtent float32) []TexturedVertex {
	out := make([]TexturedVertex, 0, 24)
	for _, face := range cubeFaces {
		for i, p := range face {
			out = append(out, TexturedVertex{Position: p.Mul(halfExtent), TexCoord: faceTexCoords[i]})
		}
	}
	return out
}

// cubeIndices splits every face in two triangles.
func cubeIndices() []uint16 {
	out := make([]uint16, 0, 36)
	for f := uint16(0); f < 6; f++ {
		b := f * 4
		out = append(out, b, b+1, b+2, b+2, b+3, b)
	}
	return out
}

// toBytes packs fixed size data in little endian order, as the device
// reads it.
func toBytes(data interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, binary.Size(data)))
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
