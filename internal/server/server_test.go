package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ocr-service/internal/imageutil"
	"ocr-service/internal/ocr"
)

type fakeEngine struct {
	mu    sync.Mutex
	text  string
	err   error
	panic bool
	calls int
	last  image.Image
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) ExtractText(_ context.Context, img image.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = img
	if f.panic {
		panic("engine crashed")
	}
	return f.text, f.err
}

func (f *fakeEngine) Close() error { return nil }

func newTestServer(t *testing.T, engine ocr.Engine, cfg Config) *Server {
	t.Helper()
	s, err := New(cfg, engine)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func encodedPNG(t *testing.T, text string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, imageutil.RenderText(text, 4)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// paddedEncodedPNG returns a rendered PNG whose standard base64 encoding ends
// in padding, so that dropping the padding changes the payload.
func paddedEncodedPNG(t *testing.T) string {
	t.Helper()
	for text := "P"; len(text) < 24; text += "P" {
		if enc := encodedPNG(t, text); strings.HasSuffix(enc, "=") {
			return enc
		}
	}
	t.Fatal("no rendered PNG produced a padded encoding")
	return ""
}

func jsonBody(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON (%d): %q", rec.Code, rec.Body.String())
	}
	return rec, decoded
}

func TestHome(t *testing.T) {
	// The engine always fails; the info endpoint must not care.
	s := newTestServer(t, &fakeEngine{err: errors.New("engine offline")}, Config{})

	rec, body := do(t, s.Handler(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(body) != 1 || body["message"] != "OCR service ready" {
		t.Errorf("body = %v", body)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestOCR_Success(t *testing.T) {
	engine := &fakeEngine{text: "\n  HELLO WORLD \n\f"}
	s := newTestServer(t, engine, Config{})

	rec, body := do(t, s.Handler(), http.MethodPost, "/ocr", jsonBody(t, map[string]string{"image": encodedPNG(t, "HELLO")}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}
	if body["status"] != "success" || body["text"] != "HELLO WORLD" {
		t.Errorf("body = %v", body)
	}
	if len(body) != 2 {
		t.Errorf("unexpected extra fields: %v", body)
	}
	if engine.calls != 1 {
		t.Errorf("engine called %d times, want 1", engine.calls)
	}
}

func TestOCR_EmptyTextIsSuccess(t *testing.T) {
	s := newTestServer(t, &fakeEngine{text: " \n "}, Config{})

	rec, body := do(t, s.Handler(), http.MethodPost, "/ocr", jsonBody(t, map[string]string{"image": encodedPNG(t, "")}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if text, ok := body["text"].(string); !ok || text != "" {
		t.Errorf("text = %#v, want empty string", body["text"])
	}
}

func TestOCR_MissingImage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no body", body: ""},
		{name: "whitespace body", body: "  \n"},
		{name: "empty object", body: "{}"},
		{name: "other fields", body: `{"img": "abc", "lang": "eng"}`},
		{name: "json null", body: "null"},
		{name: "json array", body: `["image"]`},
		{name: "json string", body: `"image"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{text: "unused"}
			s := newTestServer(t, engine, Config{})

			rec, body := do(t, s.Handler(), http.MethodPost, "/ocr", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if len(body) != 1 || body["error"] != "Missing 'image' field" {
				t.Errorf("body = %v", body)
			}
			if engine.calls != 0 {
				t.Error("engine must not be called for a missing field")
			}
		})
	}
}

func TestOCR_Failures(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		engine      *fakeEngine
		wantMessage string
	}{
		{
			name:        "invalid base64",
			body:        `{"image": "%%% definitely not base64 %%%"}`,
			engine:      &fakeEngine{},
			wantMessage: "Invalid Base64 image",
		},
		{
			name:        "base64 of non-image bytes",
			body:        jsonBody(t, map[string]string{"image": base64.StdEncoding.EncodeToString([]byte("not an image"))}),
			engine:      &fakeEngine{},
			wantMessage: "Invalid Base64 image",
		},
		{
			name:        "base64 without padding",
			body:        jsonBody(t, map[string]string{"image": strings.TrimRight(paddedEncodedPNG(t), "=")}),
			engine:      &fakeEngine{},
			wantMessage: "Invalid Base64 image",
		},
		{
			name:        "data uri header",
			body:        jsonBody(t, map[string]string{"image": "data:image/png;base64," + paddedEncodedPNG(t)}),
			engine:      &fakeEngine{},
			wantMessage: "Invalid Base64 image",
		},
		{
			name:        "empty image string",
			body:        `{"image": ""}`,
			engine:      &fakeEngine{},
			wantMessage: "Invalid Base64 image",
		},
		{
			name:        "image is a number",
			body:        `{"image": 42}`,
			engine:      &fakeEngine{},
			wantMessage: "'image' must be a base64 string",
		},
		{
			name:        "image is null",
			body:        `{"image": null}`,
			engine:      &fakeEngine{},
			wantMessage: "'image' must be a base64 string",
		},
		{
			name:        "malformed json",
			body:        `{"image": `,
			engine:      &fakeEngine{},
			wantMessage: "not valid JSON",
		},
		{
			name:        "engine failure",
			body:        jsonBody(t, map[string]string{"image": encodedPNG(t, "X")}),
			engine:      &fakeEngine{err: errors.New("tesseract: failed to load language 'eng'")},
			wantMessage: "failed to load language 'eng'",
		},
		{
			name:        "engine panic",
			body:        jsonBody(t, map[string]string{"image": encodedPNG(t, "X")}),
			engine:      &fakeEngine{panic: true},
			wantMessage: "engine crashed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.engine, Config{})

			rec, body := do(t, s.Handler(), http.MethodPost, "/ocr", tt.body)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500 (body %v)", rec.Code, body)
			}
			if body["status"] != "error" {
				t.Errorf("status field = %v, want error", body["status"])
			}
			msg, _ := body["message"].(string)
			if !strings.Contains(msg, tt.wantMessage) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.wantMessage)
			}
		})
	}
}

func TestOCR_PanicLoggedThroughZerolog(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = prev })

	s := newTestServer(t, &fakeEngine{panic: true}, Config{})
	var echoLogs bytes.Buffer
	s.echo.Logger.SetOutput(&echoLogs)

	rec, _ := do(t, s.Handler(), http.MethodPost, "/ocr", jsonBody(t, map[string]string{"image": encodedPNG(t, "X")}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if entry["message"] == "Recovered from panic" {
			found = true
			if entry["error"] != "engine crashed" || entry["component"] != "server" {
				t.Errorf("panic entry = %v", entry)
			}
			if stack, _ := entry["stack"].(string); stack == "" {
				t.Error("panic entry has no stack")
			}
		}
	}
	if !found {
		t.Errorf("no panic entry in zerolog output: %s", logs.String())
	}
	if echoLogs.Len() != 0 {
		t.Errorf("panic leaked to the echo logger: %s", echoLogs.String())
	}
}

func TestOCR_BodyTooLarge(t *testing.T) {
	engine := &fakeEngine{}
	s := newTestServer(t, engine, Config{MaxBodySize: "1K"})

	payload := jsonBody(t, map[string]string{"image": strings.Repeat("A", 4096)})
	rec, body := do(t, s.Handler(), http.MethodPost, "/ocr", payload)
	if rec.Code != http.StatusInternalServerError || body["status"] != "error" {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}
	if engine.calls != 0 {
		t.Error("engine called for oversized body")
	}
}

func TestOCR_Idempotent(t *testing.T) {
	s := newTestServer(t, &fakeEngine{text: "same text\n"}, Config{})
	payload := jsonBody(t, map[string]string{"image": encodedPNG(t, "SAME")})

	_, first := do(t, s.Handler(), http.MethodPost, "/ocr", payload)
	_, second := do(t, s.Handler(), http.MethodPost, "/ocr", payload)
	if first["text"] != second["text"] {
		t.Errorf("responses differ: %v vs %v", first, second)
	}
}

func TestOCR_Preprocess(t *testing.T) {
	engine := &fakeEngine{text: "ok"}
	s := newTestServer(t, engine, Config{Preprocess: true})

	src := imageutil.RenderText("HI", 1)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}
	payload := jsonBody(t, map[string]string{"image": base64.StdEncoding.EncodeToString(buf.Bytes())})

	if rec, _ := do(t, s.Handler(), http.MethodPost, "/ocr", payload); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, want := engine.last.Bounds().Dx(), src.Bounds().Dx()*2; got != want {
		t.Errorf("engine saw width %d, want upscaled %d", got, want)
	}
}

func TestUnknownRouteIsJSON(t *testing.T) {
	s := newTestServer(t, &fakeEngine{}, Config{})

	rec, body := do(t, s.Handler(), http.MethodGet, "/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body["error"] == nil {
		t.Errorf("body = %v", body)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := New(Config{MaxBodySize: "lots"}, &fakeEngine{}); err == nil {
		t.Error("expected error for unparsable body size")
	}
}

func TestOCR_TesseractReadsHello(t *testing.T) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
	s := newTestServer(t, ocr.NewTesseractEngine([]string{"eng"}, -1), Config{})

	rec, body := do(t, s.Handler(), http.MethodPost, "/ocr", jsonBody(t, map[string]string{"image": encodedPNG(t, "HELLO")}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}
	text, _ := body["text"].(string)
	if !strings.Contains(strings.ToUpper(text), "HELLO") {
		t.Errorf("text = %q, want it to contain HELLO", text)
	}
	if text != strings.TrimSpace(text) {
		t.Errorf("text %q has surrounding whitespace", text)
	}
}
