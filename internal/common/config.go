package common

import (
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	OCR   OCRConfig
	Batch BatchConfig
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext   string
	Pdftoppm    string
	Tesseract   string
	Language    string
	DPI         int
	PSM         int
	OEM         int
	MaxPages    int
	TessdataDir string
	PageJobs    int
}

// BatchConfig holds batch-driver configuration
type BatchConfig struct {
	OutputDir   string
	Workers     int
	JournalPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		OCR: OCRConfig{
			Pdftotext:   getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Language:    getEnv("OCR_LANG", "chi_sim+eng"),
			DPI:         getEnvAsInt("OCR_DPI", 300),
			PSM:         getEnvAsInt("OCR_PSM", 6),
			OEM:         getEnvAsInt("OCR_OEM", 3),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 0),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			PageJobs:    getEnvAsInt("OCR_PAGE_JOBS", 4),
		},
		Batch: BatchConfig{
			OutputDir:   getEnv("OUTPUT_DIR", "output"),
			Workers:     getEnvAsInt("BATCH_WORKERS", 1),
			JournalPath: getEnv("JOURNAL_PATH", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
