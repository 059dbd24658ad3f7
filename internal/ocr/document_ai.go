package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"ocr-service/internal/imageutil"
)

// documentProcessor is the subset of *documentai.DocumentProcessorClient used by DocumentAIEngine.
type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIEngine implements Engine with a Document AI OCR processor.
type DocumentAIEngine struct {
	client        documentProcessor
	processorName string
}

// NewDocumentAIEngine creates an engine for the processor
// projects/{projectID}/locations/{location}/processors/{processorID}.
func NewDocumentAIEngine(ctx context.Context, projectID, location, processorID string) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if projectID == "" || processorID == "" {
		return nil, WrapOCRError(EngineDocumentAI, op, ErrInvalidConfiguration, "project ID and processor ID are required")
	}
	if location == "" {
		location = "us"
	}

	// Processors are only reachable through their regional endpoint.
	clientOptions := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", location)),
	}
	hasCredentials := true
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	} else {
		hasCredentials = false
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if !hasCredentials {
			return nil, WrapOCRError(EngineDocumentAI, op, ErrMissingCredentials, err.Error())
		}
		return nil, WrapOCRError(EngineDocumentAI, op, err, fmt.Sprintf("failed to create Document AI client for location: %s", location))
	}

	return newDocumentAIEngineWithClient(client, processorName(projectID, location, processorID)), nil
}

func newDocumentAIEngineWithClient(client documentProcessor, name string) *DocumentAIEngine {
	return &DocumentAIEngine{client: client, processorName: name}
}

func processorName(projectID, location, processorID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", projectID, location, processorID)
}

func (d *DocumentAIEngine) Name() string { return EngineDocumentAI }

// ExtractText submits img as an inline PNG document and returns Document.Text.
func (d *DocumentAIEngine) ExtractText(ctx context.Context, img image.Image) (string, error) {
	content, err := imageutil.EncodePNG(img)
	if err != nil {
		return "", extractionFailed(d.Name(), err, "")
	}

	req := &documentaipb.ProcessRequest{
		Name: d.processorName,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return "", extractionFailed(d.Name(), err, fmt.Sprintf("processor %s", d.processorName))
	}
	doc := resp.GetDocument()
	if doc == nil {
		return "", extractionFailed(d.Name(), errors.New("no document in response"), "")
	}
	if docErr := doc.GetError(); docErr != nil {
		return "", extractionFailed(d.Name(), errors.New(docErr.GetMessage()), "Document AI error")
	}

	return doc.GetText(), nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
