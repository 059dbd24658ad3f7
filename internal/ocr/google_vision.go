package ocr

import (
	"context"
	"errors"
	"image"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"ocr-service/internal/imageutil"
)

// imageAnnotator is the subset of *vision.ImageAnnotatorClient used by VisionEngine.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// VisionEngine implements Engine using Google Cloud Vision API.
type VisionEngine struct {
	client imageAnnotator
}

// NewVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(EngineVision, op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(EngineVision, op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(EngineVision, op, ErrMissingCredentials, err.Error())
		}
	}

	return &VisionEngine{client: client}, nil
}

func newVisionEngineWithClient(client imageAnnotator) *VisionEngine {
	return &VisionEngine{client: client}
}

func (v *VisionEngine) Name() string { return EngineVision }

// ExtractText sends img as PNG for document text detection and returns the
// full text annotation. An image without text yields an empty string.
func (v *VisionEngine) ExtractText(ctx context.Context, img image.Image) (string, error) {
	content, err := imageutil.EncodePNG(img)
	if err != nil {
		return "", extractionFailed(v.Name(), err, "")
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", extractionFailed(v.Name(), err, "Vision API call failed")
	}
	if len(resp.GetResponses()) == 0 {
		return "", extractionFailed(v.Name(), errors.New("empty response"), "no response from Vision API")
	}

	imgResp := resp.GetResponses()[0]
	if apiErr := imgResp.GetError(); apiErr != nil {
		return "", extractionFailed(v.Name(), errors.New(apiErr.GetMessage()), "Vision API error")
	}

	return imgResp.GetFullTextAnnotation().GetText(), nil
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
