// Package capture writes read back frames to disk. The encoder is picked
// from the file extension.
package capture

import (
	"bufio"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var ErrUnsupportedFormat = errors.New("unsupported capture format")

// Encoder writes img to w.
type Encoder func(w io.Writer, img *image.RGBA) error

var encoders = map[string]Encoder{
	".png": func(w io.Writer, img *image.RGBA) error {
		return png.Encode(w, img)
	},
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".bmp": func(w io.Writer, img *image.RGBA) error {
		return bmp.Encode(w, img)
	},
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
	".raw":  encodeRaw,
}

func encodeJPEG(w io.Writer, img *image.RGBA) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
}

func encodeTIFF(w io.Writer, img *image.RGBA) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// encodeRaw writes tightly packed RGBA rows, top to bottom.
func encodeRaw(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	rowLen := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := w.Write(img.Pix[off : off+rowLen]); err != nil {
			return err
		}
	}
	return nil
}

// Supported reports whether path has an extension Save can encode.
func Supported(path string) bool {
	_, ok := encoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Resolve turns an empty path or a directory into a file path with a
// generated name. Other paths are returned unchanged.
func Resolve(path string) string {
	name := "capture-" + uuid.NewString() + ".png"
	if path == "" {
		return name
	}
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return filepath.Join(path, name)
	}
	return path
}

// Save encodes img into path.
func Save(path string, img *image.RGBA) error {
	enc, ok := encoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return errors.Wrapf(ErrUnsupportedFormat, "%q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create capture file")
	}
	w := bufio.NewWriter(f)
	if err := enc(w, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

// Sink returns a function saving every image it receives to path.
func Sink(path string) func(img *image.RGBA) error {
	return func(img *image.RGBA) error {
		return Save(path, img)
	}
}
