package loaders

import (
	"bufio"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

type ImageParams struct {
	// FlipY stores the rows bottom up.
	FlipY bool
}

type ImageLoader struct{}

// Load decodes an image file into tightly packed RGBA pixels.
func (il *ImageLoader) Load(name, path string, params interface{}) (*Resource, error) {
	var p ImageParams
	if typed, ok := params.(*ImageParams); ok && typed != nil {
		p = *typed
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", name)
	}
	defer f.Close()

	src, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", name)
	}

	img := ToRGBA(src)
	if p.FlipY {
		flipRows(img)
	}
	b := img.Bounds()
	return &Resource{
		Name:     name,
		FullPath: path,
		Type:     ResourceTypeImage,
		DataSize: uint64(b.Dx() * b.Dy() * 4),
		Data:     img,
	}, nil
}

func (il *ImageLoader) Unload(*Resource) error {
	return nil
}

// ToRGBA returns src as an *image.RGBA anchored at the origin, converting
// it when needed.
func ToRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == rgba.Rect.Dx()*4 {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func flipRows(img *image.RGBA) {
	h := img.Rect.Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
