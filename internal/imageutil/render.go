package imageutil

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const renderMargin = 10

// RenderText draws black text on a white background using the 7x13 bitmap
// face, one line per "\n", and enlarges the result by scale with nearest
// neighbour sampling so glyph edges stay sharp. It is used to generate sample
// requests without a fixture file.
func RenderText(text string, scale int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	lines := strings.Split(text, "\n")

	width := 0
	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > width {
			width = w
		}
	}
	lineHeight := face.Metrics().Height.Ceil()
	height := lineHeight * len(lines)

	img := image.NewRGBA(image.Rect(0, 0, width+2*renderMargin, height+2*renderMargin))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	for i, line := range lines {
		d.Dot = fixed.P(renderMargin, renderMargin+face.Metrics().Ascent.Ceil()+i*lineHeight)
		d.DrawString(line)
	}

	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*scale, b.Dy()*scale, imaging.NearestNeighbor)
}
