package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocr-service/internal/imageutil"
	"ocr-service/internal/logger"
	"ocr-service/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract [image-file]",
	Short: "Run OCR on a local image without starting the server",
	Long: `Decode a local image file and run it through the configured OCR engine,
exactly as the HTTP service would, then print the trimmed text.

The engine is chosen with OCR_ENGINE or --engine; the cloud engines need
GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.`,
	Example: `  # Extract text to stdout with tesseract
  ocr-service extract scan.png

  # Use Google Cloud Vision and save the result as JSON
  ocr-service extract scan.png --engine vision --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput represents the JSON output structure when --json flag is used
type ExtractOutput struct {
	Status             string `json:"status"`
	Text               string `json:"text"`
	Engine             string `json:"engine"`
	FileName           string `json:"file_name"`
	FileSize           int64  `json:"file_size"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	ProcessingDuration string `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().String("engine", "", "OCR engine: tesseract, vision, documentai (overrides OCR_ENGINE)")
	extractCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	imagePath := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fileInfo, err := validateImageFile(imagePath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	engine, err := ocr.NewEngine(ctx, cfg.GetEngineConfig())
	if err != nil {
		log.Error().Err(err).Str("engine", cfg.Engine).Msg("Failed to create OCR engine")
		return fmt.Errorf("failed to create OCR engine: %w", err)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engine")
		}
	}()

	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	img, err := imageutil.DecodeBytes(raw)
	if err != nil {
		log.Error().Err(err).Str("file", imagePath).Msg("Failed to decode image")
		return err
	}
	if cfg.Preprocess {
		img = imageutil.Preprocess(img)
	}

	startTime := time.Now()
	text, err := engine.ExtractText(ctx, img)
	if err != nil {
		return handleExtractError(err, log)
	}
	text = strings.TrimSpace(text)
	duration := time.Since(startTime)

	log.Info().
		Str("engine", engine.Name()).
		Dur("duration", duration).
		Int("text_length", len(text)).
		Msg("OCR processing completed successfully")

	var output []byte
	if jsonOutput {
		output, err = json.MarshalIndent(ExtractOutput{
			Status:             "success",
			Text:               text,
			Engine:             engine.Name(),
			FileName:           filepath.Base(fileInfo.Name()),
			FileSize:           fileInfo.Size(),
			Width:              img.Bounds().Dx(),
			Height:             img.Bounds().Dy(),
			ProcessingDuration: duration.String(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	} else {
		output = []byte(text)
	}

	return writeOutput(cmd, output, outputPath, log)
}

// validateImageFile checks that the path is a readable, non-empty regular file.
func validateImageFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("image file is empty: %s", path)
	}
	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling OCR processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleExtractError provides user-friendly error messages for OCR failures
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %w", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account can call the OCR API: %w", err)
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

func writeOutput(cmd *cobra.Command, data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		out := cmd.OutOrStdout()
		if _, err := out.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		_, err := fmt.Fprintln(out)
		return err
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("OCR results written to file")
	return nil
}
