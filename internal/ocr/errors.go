package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrOCRFailed is returned when the engine fails to extract text from an image.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrUnknownEngine is returned when the configured engine type is not recognized.
	ErrUnknownEngine = errors.New("unknown OCR engine")

	// ErrMissingCredentials is returned when a cloud engine cannot find
	// GOOGLE_APPLICATION_CREDENTIALS, GOOGLE_CREDENTIALS or application default credentials.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidConfiguration is returned when engine settings are incomplete.
	ErrInvalidConfiguration = errors.New("invalid OCR engine configuration")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "ExtractText", "NewVisionEngine").
	Op string

	// Engine is the name of the engine that reported the failure.
	Engine string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s %s failed: %s: %v", e.Engine, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s %s failed: %v", e.Engine, e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(engine, op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return &OCRError{Op: op, Engine: engine, Err: err, Details: details}
}

// extractionFailed marks err as an engine failure so callers can match
// ErrOCRFailed while keeping the engine's own message.
func extractionFailed(engine string, err error, details string) error {
	return WrapOCRError(engine, "ExtractText", fmt.Errorf("%w: %w", ErrOCRFailed, err), details)
}
