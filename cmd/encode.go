package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocr-service/internal/client"
	"ocr-service/internal/imageutil"
	"ocr-service/internal/logger"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [image-file]",
	Short: "Write an OCR request payload for an image",
	Long: `Encode an image file as base64 and write {"image": "<base64>"} as JSON,
ready to be sent with the request command or curl.

With --text no file is needed: a synthetic image containing the given text
is rendered instead.`,
	Example: `  # Build test_request.json from sample.png
  ocr-service encode sample.png

  # Render "HELLO" and print the payload
  ocr-service encode --text HELLO -o -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringP("output", "o", "test_request.json", "Output file path (- for stdout)")
	encodeCmd.Flags().String("text", "", "Render this text into an image instead of reading a file")
	encodeCmd.Flags().Int("scale", 4, "Scale factor for --text rendering")
}

func runEncode(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("encode")

	outputPath, _ := cmd.Flags().GetString("output")
	text, _ := cmd.Flags().GetString("text")
	scale, _ := cmd.Flags().GetInt("scale")

	var encoded string
	switch {
	case len(args) == 1 && text != "":
		return fmt.Errorf("pass either an image file or --text, not both")
	case len(args) == 1:
		var err error
		encoded, err = imageutil.EncodeBase64File(args[0])
		if err != nil {
			log.Error().Err(err).Str("file", args[0]).Msg("Failed to encode image")
			return err
		}
	case text != "":
		png, err := imageutil.EncodePNG(imageutil.RenderText(text, scale))
		if err != nil {
			return err
		}
		encoded = base64.StdEncoding.EncodeToString(png)
	default:
		return fmt.Errorf("an image file or --text is required")
	}

	payload, err := marshalRequest(client.Request{Image: encoded})
	if err != nil {
		return err
	}

	if outputPath == "-" {
		_, err = cmd.OutOrStdout().Write(payload)
		return err
	}
	if err := os.WriteFile(outputPath, payload, 0644); err != nil {
		log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write request file")
		return fmt.Errorf("failed to write request file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(payload)).
		Msg("Request payload written")
	fmt.Fprintf(cmd.OutOrStdout(), "%s generated successfully\n", outputPath)
	return nil
}

func marshalRequest(req client.Request) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return buf.Bytes(), nil
}
