package loaders

import "path/filepath"

type ResourceType int

const (
	ResourceTypeNone ResourceType = iota
	// SPIR-V byte code compiled by glslc.
	ResourceTypeShader
	// Any image decodable by the image loader.
	ResourceTypeImage
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	default:
		return "none"
	}
}

// Resource is a loaded asset. Data holds []byte for shaders and
// *image.RGBA for images.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}

// TypeOf determines the resource type of a file from its extension.
func TypeOf(path string) ResourceType {
	switch filepath.Ext(path) {
	case ".spv":
		return ResourceTypeShader
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff":
		return ResourceTypeImage
	default:
		return ResourceTypeNone
	}
}
