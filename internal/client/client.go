// Package client calls a running OCR service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultURL is the endpoint of a locally running service.
	DefaultURL = "http://localhost:8001/ocr"

	defaultTimeout = 5 * time.Minute
)

// ErrServiceFailed is returned when the service answers with anything other
// than a 200 {"status":"success"} reply.
var ErrServiceFailed = errors.New("OCR service reported a failure")

// Request is the body accepted by POST /ocr.
type Request struct {
	Image string `json:"image"`
}

// Response is the union of the service's success and error bodies.
type Response struct {
	Status  string `json:"status,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is a decoded reply together with its HTTP status and raw body.
type Result struct {
	StatusCode int
	Response   Response
	Body       []byte
}

// Client posts base64 images to the OCR endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New returns a client for url; an empty url means DefaultURL and a
// non-positive timeout means five minutes.
func New(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Send posts req and returns whatever the service answered. Transport errors
// and non-JSON replies are errors; service-side failures are not.
func (c *Client) Send(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := &Result{StatusCode: resp.StatusCode, Body: body}
	if err := json.Unmarshal(body, &result.Response); err != nil {
		return result, fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	return result, nil
}

// ExtractText returns the recognized text, or ErrServiceFailed carrying the
// service's own message.
func (c *Client) ExtractText(ctx context.Context, base64Image string) (string, error) {
	result, err := c.Send(ctx, Request{Image: base64Image})
	if err != nil {
		return "", err
	}
	return result.Text()
}

// Text returns the extracted text of a successful reply.
func (r *Result) Text() (string, error) {
	if r.StatusCode == http.StatusOK && r.Response.Status == "success" {
		return r.Response.Text, nil
	}
	msg := r.Response.Message
	if msg == "" {
		msg = r.Response.Error
	}
	return "", fmt.Errorf("%w: status %d: %s", ErrServiceFailed, r.StatusCode, msg)
}
