package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocr-service/internal/config"
	"ocr-service/internal/logger"
	"ocr-service/internal/ocr"
	"ocr-service/internal/server"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the OCR HTTP service",
	Long: `Start the HTTP service.

Endpoints:
  GET  /      {"message": "OCR service ready"}
  POST /ocr   {"image": "<base64>"} -> {"status": "success", "text": "..."}

Configuration is read from the environment (and .env):
  HOST, PORT                 listen address (default 0.0.0.0:8001)
  OCR_ENGINE                 tesseract (default), vision or documentai
  OCR_PREPROCESS             enhance images before recognition (default false)
  TESSERACT_LANGUAGES        comma separated tesseract languages (default eng)
  TESSERACT_PSM              tesseract page segmentation mode
  MAX_BODY_SIZE              largest accepted request body (default 32M)`,
	Example: `  # Serve with tesseract on the default port
  ocr-service serve

  # Serve Google Cloud Vision results on port 9000
  ocr-service serve --engine vision --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Listen host (overrides HOST)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides PORT)")
	serveCmd.Flags().String("engine", "", "OCR engine: tesseract, vision, documentai (overrides OCR_ENGINE)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	srv, err := server.New(cfg.GetServerConfig(), engine)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Received interrupt signal, shutting down")
	}

	return shutdown(srv, log)
}

func shutdown(srv *server.Server, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("engine") {
		engine, _ := cmd.Flags().GetString("engine")
		cfg.Engine = strings.ToLower(engine)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}
