package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"ocr-service/internal/imageutil"
)

// TesseractEngine implements Engine with a local Tesseract installation.
// A fresh client is created per call: gosseract clients are not safe for
// concurrent use and requests are served in parallel.
type TesseractEngine struct {
	languages     []string
	pageSegMode   int
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed engine. A negative
// pageSegMode leaves Tesseract's automatic segmentation in place.
func NewTesseractEngine(languages []string, pageSegMode int) *TesseractEngine {
	return &TesseractEngine{
		languages:     languages,
		pageSegMode:   pageSegMode,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return EngineTesseract }

// ExtractText runs Tesseract on img. Tesseract cannot be interrupted, so ctx
// is only checked before the call starts.
func (e *TesseractEngine) ExtractText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", extractionFailed(e.Name(), err, "request canceled before recognition")
	}

	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return "", extractionFailed(e.Name(), err, "")
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", extractionFailed(e.Name(), err, "set languages")
		}
	}
	if e.pageSegMode >= 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.pageSegMode)); err != nil {
			return "", extractionFailed(e.Name(), err, fmt.Sprintf("set page segmentation mode %d", e.pageSegMode))
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", extractionFailed(e.Name(), err, "set image")
	}

	text, err := c.Text()
	if err != nil {
		return "", extractionFailed(e.Name(), err, "")
	}
	return text, nil
}

// Close is a no-op; clients are released after each call.
func (e *TesseractEngine) Close() error {
	return nil
}
