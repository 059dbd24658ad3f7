package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"ocr-service/internal/logger"
	"ocr-service/internal/ocr"
	"ocr-service/internal/server"
)

type Config struct {
	// HTTP Server Configuration
	Host        string
	Port        int
	MaxBodySize string

	// OCR Engine Configuration
	Engine             string
	Preprocess         bool
	TesseractLanguages []string
	TesseractPSM       int

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8001"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	psm, err := strconv.Atoi(getEnv("TESSERACT_PSM", "-1"))
	if err != nil {
		return nil, fmt.Errorf("invalid TESSERACT_PSM: %w", err)
	}
	preprocess, err := strconv.ParseBool(getEnv("OCR_PREPROCESS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_PREPROCESS: %w", err)
	}

	config := &Config{
		Host:                  getEnv("HOST", "0.0.0.0"),
		Port:                  port,
		MaxBodySize:           getEnv("MAX_BODY_SIZE", "32M"),
		Engine:                strings.ToLower(getEnv("OCR_ENGINE", ocr.EngineTesseract)),
		Preprocess:            preprocess,
		TesseractLanguages:    splitList(getEnv("TESSERACT_LANGUAGES", "eng")),
		TesseractPSM:          psm,
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the settings that can be wrong independently of the engine
// backend actually being reachable. It is exported so CLI flag overrides can
// be re-checked.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.Engine {
	case ocr.EngineTesseract:
		if len(c.TesseractLanguages) == 0 {
			return fmt.Errorf("TESSERACT_LANGUAGES must name at least one language")
		}
		if c.TesseractPSM < -1 || c.TesseractPSM > 13 {
			return fmt.Errorf("TESSERACT_PSM must be between 0 and 13, or -1 for the default, got %d", c.TesseractPSM)
		}
	case ocr.EngineVision:
	case ocr.EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the %s engine", c.Engine)
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the %s engine", c.Engine)
		}
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q (expected %s, %s or %s)",
			c.Engine, ocr.EngineTesseract, ocr.EngineVision, ocr.EngineDocumentAI)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// GetServerConfig returns the HTTP listener settings.
func (c *Config) GetServerConfig() server.Config {
	return server.Config{
		Addr:        net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		MaxBodySize: c.MaxBodySize,
		Preprocess:  c.Preprocess,
	}
}

// GetEngineConfig returns the settings needed to construct the OCR engine.
func (c *Config) GetEngineConfig() ocr.EngineConfig {
	return ocr.EngineConfig{
		Type:                  c.Engine,
		Languages:             c.TesseractLanguages,
		PageSegMode:           c.TesseractPSM,
		ProjectID:             c.GoogleCloudProject,
		Location:              c.GoogleCloudLocation,
		DocumentAIProcessorID: c.DocumentAIProcessorID,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
