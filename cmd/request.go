package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ocr-service/internal/client"
	"ocr-service/internal/imageutil"
	"ocr-service/internal/logger"
)

var requestCmd = &cobra.Command{
	Use:   "request [request.json]",
	Short: "Send an OCR request to a running service",
	Long: `POST a request payload to the OCR endpoint and print the HTTP status and
response body. The payload is read from a JSON file (default
test_request.json) or built on the fly from --image.

The command fails unless the service answers 200 with "status": "success".`,
	Example: `  # Send the payload written by "encode"
  ocr-service request

  # Encode and send an image in one step
  ocr-service request --image receipt.jpg --url http://ocr:8001/ocr`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)

	requestCmd.Flags().String("url", client.DefaultURL, "OCR endpoint URL (default from OCR_SERVICE_URL)")
	requestCmd.Flags().String("image", "", "Encode this image file instead of reading a request file")
	requestCmd.Flags().Int("timeout", 300, "Request timeout in seconds")
}

func runRequest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("request")

	url, _ := cmd.Flags().GetString("url")
	if !cmd.Flags().Changed("url") {
		url = envOr("OCR_SERVICE_URL", url)
	}
	imagePath, _ := cmd.Flags().GetString("image")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	req, err := buildRequest(args, imagePath)
	if err != nil {
		return err
	}

	log.Debug().Str("url", url).Int("payload_length", len(req.Image)).Msg("Sending OCR request")

	c := client.New(url, time.Duration(timeoutSecs)*time.Second)
	result, err := c.Send(context.Background(), req)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("OCR request failed")
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Status:", result.StatusCode)
	fmt.Fprintln(out, "Response:", string(result.Body))

	text, err := result.Text()
	if err != nil {
		return err
	}
	log.Info().Int("text_length", len(text)).Msg("OCR request succeeded")
	return nil
}

func buildRequest(args []string, imagePath string) (client.Request, error) {
	if imagePath != "" {
		if len(args) > 0 {
			return client.Request{}, fmt.Errorf("pass either a request file or --image, not both")
		}
		encoded, err := imageutil.EncodeBase64File(imagePath)
		if err != nil {
			return client.Request{}, err
		}
		return client.Request{Image: encoded}, nil
	}

	path := "test_request.json"
	if len(args) == 1 {
		path = args[0]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return client.Request{}, fmt.Errorf("failed to read request file: %w", err)
	}
	var req client.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return client.Request{}, fmt.Errorf("failed to parse request file %s: %w", path, err)
	}
	return req, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
