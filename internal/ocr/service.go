// Package ocr provides text extraction from decoded images.
//
// Three engines implement Engine:
//   - tesseract: local Tesseract through gosseract (default; needs libtesseract)
//   - vision: Google Cloud Vision document text detection
//   - documentai: a Google Document AI OCR processor
//
// Cloud engines read credentials from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path) and fall back to application
// default credentials.
//
// Engines do not trim or post-process the text they return; callers decide
// how to present it.
package ocr

import (
	"context"
	"fmt"
	"image"
)

// Engine type identifiers accepted by NewEngine.
const (
	EngineTesseract  = "tesseract"
	EngineVision     = "vision"
	EngineDocumentAI = "documentai"
)

// Engine defines the interface for OCR text extraction.
type Engine interface {
	// Name returns the engine type identifier.
	Name() string

	// ExtractText returns the raw text recognized in img.
	// Failures match ErrOCRFailed.
	ExtractText(ctx context.Context, img image.Image) (string, error)

	// Close releases clients held by the engine.
	Close() error
}

// EngineConfig holds the settings for every engine type; each engine reads
// only the fields it needs.
type EngineConfig struct {
	// Type selects the engine (EngineTesseract, EngineVision, EngineDocumentAI).
	Type string

	// Languages are tesseract language codes, e.g. "eng" or "deu".
	Languages []string

	// PageSegMode is the tesseract page segmentation mode; negative keeps the default.
	PageSegMode int

	// ProjectID, Location and DocumentAIProcessorID address the Document AI processor.
	ProjectID             string
	Location              string
	DocumentAIProcessorID string
}

// NewEngine constructs the engine selected by cfg.Type.
func NewEngine(ctx context.Context, cfg EngineConfig) (Engine, error) {
	switch cfg.Type {
	case EngineTesseract, "":
		return NewTesseractEngine(cfg.Languages, cfg.PageSegMode), nil
	case EngineVision:
		engine, err := NewVisionEngine(ctx)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case EngineDocumentAI:
		engine, err := NewDocumentAIEngine(ctx, cfg.ProjectID, cfg.Location, cfg.DocumentAIProcessorID)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, WrapOCRError(cfg.Type, "NewEngine", ErrUnknownEngine, fmt.Sprintf("engine type %q", cfg.Type))
	}
}
