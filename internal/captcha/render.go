package captcha

import (
	"bytes"
	"math"
	"math/rand/v2"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	imageWidth  = 180
	imageHeight = 60
	fontSize    = 34
	noiseDots   = 600
	noiseLines  = 3
)

var regularFont, _ = truetype.Parse(goregular.TTF)

// Render draws text onto a noisy PNG
func Render(text string) ([]byte, error) {
	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetRGB(0.97, 0.97, 0.97)
	dc.Clear()

	for i := 0; i < noiseDots; i++ {
		dc.SetRGBA(rand.Float64(), rand.Float64(), rand.Float64(), 0.3)
		dc.DrawPoint(rand.Float64()*imageWidth, rand.Float64()*imageHeight, 1)
		dc.Fill()
	}

	dc.SetFontFace(truetype.NewFace(regularFont, &truetype.Options{Size: fontSize}))

	n := float64(len(text))
	step := float64(imageWidth) / (n + 1)
	for i, ch := range text {
		fi := float64(i)
		dc.SetRGB(0.1+0.6*fi/n, 0.1+0.5*(n-fi)/n, 0.2+0.5*math.Abs(math.Sin(fi)))

		x := step * (fi + 1)
		y := float64(imageHeight)/2 + 6*math.Sin(fi)
		angle := -0.25 + 0.5*rand.Float64()

		dc.RotateAbout(angle, x, y)
		dc.DrawStringAnchored(string(ch), x, y, 0.5, 0.5)
		dc.RotateAbout(-angle, x, y)
	}

	dc.SetRGBA(0.5, 0.5, 0.5, 0.6)
	dc.SetLineWidth(1.5)
	for i := 0; i < noiseLines; i++ {
		dc.DrawLine(0, rand.Float64()*imageHeight, imageWidth, rand.Float64()*imageHeight)
		dc.Stroke()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
