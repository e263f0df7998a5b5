package media

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// JPEGQuality is used whenever a resized image is encoded as JPEG
	JPEGQuality = 90

	// MaxImagePixels rejects images whose header claims more pixels than this
	MaxImagePixels = 89478485
)

// BoundingBox is the largest width and height an image may have at rest
type BoundingBox struct {
	Width  int
	Height int
}

var (
	FileBox   = BoundingBox{Width: 320, Height: 240}
	AvatarBox = BoundingBox{Width: 100, Height: 100}
)

// Fits reports whether a w×h image already fits inside the box
func (b BoundingBox) Fits(w, h int) bool {
	return w <= b.Width && h <= b.Height
}

// Thumbnail returns the dimensions of a w×h image shrunk proportionally to
// fit the box. Images that already fit are returned unchanged.
func (b BoundingBox) Thumbnail(w, h int) (int, int) {
	if b.Fits(w, h) {
		return w, h
	}
	// scale = min(Width/w, Height/h), compared without floats so the
	// limiting side lands exactly on the box edge
	if b.Width*h <= b.Height*w {
		return b.Width, max(h*b.Width/w, 1)
	}
	return max(w*b.Height/h, 1), b.Height
}

// NormalizeImage decodes the upload and, if it is larger than box, returns a
// new Upload holding the downscaled and re-encoded image. Uploads that fit
// are returned as-is.
func NormalizeImage(u *Upload, box BoundingBox) (*Upload, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Content))
	if err != nil {
		return nil, imageProcessing(err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, imageProcessing(fmt.Errorf("image size (%d pixels) exceeds limit of %d pixels", cfg.Width*cfg.Height, MaxImagePixels))
	}

	src, format, err := image.Decode(bytes.NewReader(u.Content))
	if err != nil {
		return nil, imageProcessing(err)
	}

	bounds := src.Bounds()
	if box.Fits(bounds.Dx(), bounds.Dy()) {
		return u, nil
	}

	w, h := box.Thumbnail(bounds.Dx(), bounds.Dy())
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	if strings.HasSuffix(u.Name, ".jpg") {
		format = "jpeg"
	}

	var buf bytes.Buffer
	if err := encode(&buf, dst, format); err != nil {
		return nil, imageProcessing(err)
	}

	return &Upload{
		Name:        u.Name,
		ContentType: u.ContentType,
		Content:     buf.Bytes(),
	}, nil
}

func encode(buf *bytes.Buffer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		return png.Encode(buf, img)
	case "gif":
		return gif.Encode(buf, img, nil)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
