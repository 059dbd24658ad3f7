// Package imageutil turns request payloads into images and back.
//
// Supported input formats are the ones registered with the standard image
// package: PNG, JPEG and GIF from the standard library, BMP and TIFF through
// github.com/disintegration/imaging, and WebP from golang.org/x/image.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DecodeBase64 decodes a base64 string into an image.
//
// The input must be padded standard base64; whitespace and line breaks are
// ignored. Failures are returned as *InvalidImageError.
func DecodeBase64(s string) (image.Image, error) {
	raw, err := decodeBase64String(s)
	if err != nil {
		return nil, newInvalidImageError(ErrInvalidEncoding, err)
	}
	return DecodeBytes(raw)
}

// DecodeBytes parses raw image bytes. EXIF orientation is applied to JPEGs so
// rotated photos reach the OCR engine upright.
func DecodeBytes(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, newInvalidImageError(ErrInvalidImageData, errors.New("cannot identify image file: empty input"))
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, newInvalidImageError(ErrInvalidImageData, fmt.Errorf("cannot identify image file: %w", err))
	}
	return img, nil
}

// EncodeBase64File reads an image file and returns its standard base64 encoding.
// The file must decode as an image so that broken fixtures are caught before
// they are sent anywhere.
func EncodeBase64File(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	if _, err := DecodeBytes(raw); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodePNG serializes an image as PNG, the lossless format every engine accepts.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeBase64String(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(s)
}
