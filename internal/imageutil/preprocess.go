package imageutil

import (
	"image"

	"github.com/disintegration/imaging"
)

// minOCRDimension is the side length below which images are upscaled before
// recognition; tesseract loses glyphs on very small text.
const minOCRDimension = 300

// Preprocess returns a grayscale, contrast-boosted, sharpened copy of img,
// doubled in size when either side is shorter than minOCRDimension.
func Preprocess(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() < minOCRDimension || bounds.Dy() < minOCRDimension {
		img = imaging.Resize(img, bounds.Dx()*2, bounds.Dy()*2, imaging.Lanczos)
	}

	gray := imaging.Grayscale(img)
	contrast := imaging.AdjustContrast(gray, 10)
	return imaging.Sharpen(contrast, 1.1)
}
