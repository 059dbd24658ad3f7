package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"ocr-service/internal/imageutil"
	"ocr-service/internal/logger"
)

const (
	readyMessage        = "OCR service ready"
	missingImageMessage = "Missing 'image' field"
)

var errImageNotString = errors.New("'image' must be a base64 string")

type infoResponse struct {
	Message string `json:"message"`
}

type successResponse struct {
	Status string `json:"status"`
	Text   string `json:"text"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type badRequestResponse struct {
	Error string `json:"error"`
}

// Home answers GET / without consulting the engine.
func (s *Server) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, infoResponse{Message: readyMessage})
}

// OCR handles POST /ocr: {"image": "<base64>"} -> {"status":"success","text":...}.
func (s *Server) OCR(c echo.Context) error {
	log := logger.WithRequestID("server", c.Response().Header().Get(echo.HeaderXRequestID))

	encoded, present, err := s.readImageField(c)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read OCR request")
		return failure(c, err)
	}
	if !present {
		return c.JSON(http.StatusBadRequest, badRequestResponse{Error: missingImageMessage})
	}

	img, err := imageutil.DecodeBase64(encoded)
	if err != nil {
		log.Warn().Err(err).Int("payload_length", len(encoded)).Msg("Rejected invalid image")
		return failure(c, err)
	}
	if s.cfg.Preprocess {
		img = imageutil.Preprocess(img)
	}

	text, err := s.engine.ExtractText(c.Request().Context(), img)
	if err != nil {
		log.Error().Err(err).Str("engine", s.engine.Name()).Msg("OCR extraction failed")
		return failure(c, err)
	}

	text = strings.TrimSpace(text)
	log.Debug().
		Str("engine", s.engine.Name()).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int("text_length", len(text)).
		Msg("OCR extraction completed")

	return c.JSON(http.StatusOK, successResponse{Status: "success", Text: text})
}

// readImageField returns the raw "image" value and whether the request carried
// one. An empty body, JSON null, and JSON values that are not objects all
// count as a missing field. Malformed JSON is an error.
func (s *Server) readImageField(c echo.Context) (string, bool, error) {
	req := c.Request()
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, s.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", false, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return "", false, fmt.Errorf("read request body: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return "", false, nil
	}
	if !json.Valid(body) {
		return "", false, errors.New("failed to decode JSON object: request body is not valid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false, nil
	}
	raw, ok := fields["image"]
	if !ok {
		return "", false, nil
	}

	var encoded string
	if bytes.Equal(raw, []byte("null")) {
		return "", true, errImageNotString
	}
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return "", true, errImageNotString
	}
	return encoded, true, nil
}

func failure(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, errorResponse{Status: "error", Message: err.Error()})
}
