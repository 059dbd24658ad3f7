package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocr-service/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "ocr-service",
	Short: "OCR service - extract text from base64-encoded images over HTTP",
	Long: `ocr-service runs a small HTTP service that accepts a base64-encoded image
and returns the text recognized in it.

Besides the server itself it ships helpers to build request payloads,
send them to a running service and OCR local files directly.`,
	Version:      version,
	SilenceUsage: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
