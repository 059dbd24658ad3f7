package imageutil

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidImage is the single error kind reported for any input that
	// cannot be turned into an image.
	ErrInvalidImage = errors.New("invalid image")

	// ErrInvalidEncoding is returned when the input is not valid base64.
	ErrInvalidEncoding = errors.New("invalid base64 encoding")

	// ErrInvalidImageData is returned when the decoded bytes are not a supported image format.
	ErrInvalidImageData = errors.New("unsupported or corrupted image data")
)

// InvalidImageError carries the stage that failed and the underlying cause.
// It matches ErrInvalidImage and the stage sentinel with errors.Is.
type InvalidImageError struct {
	// Kind is ErrInvalidEncoding or ErrInvalidImageData.
	Kind error

	// Err is the error reported by the base64 or image decoder.
	Err error
}

// Error implements the error interface.
func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("Invalid Base64 image: %v", e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *InvalidImageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidImage or the failed stage.
func (e *InvalidImageError) Is(target error) bool {
	return target == ErrInvalidImage || target == e.Kind
}

func newInvalidImageError(kind, err error) *InvalidImageError {
	return &InvalidImageError{Kind: kind, Err: err}
}
