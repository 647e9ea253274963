package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	require.Equal(t, "pdftotext", cfg.OCR.Pdftotext)
	require.Equal(t, "tesseract", cfg.OCR.Tesseract)
	require.Equal(t, "chi_sim+eng", cfg.OCR.Language)
	require.Equal(t, 300, cfg.OCR.DPI)
	require.Equal(t, "output", cfg.Batch.OutputDir)
	require.Equal(t, 1, cfg.Batch.Workers)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OCR_DPI", "450")
	t.Setenv("OCR_LANG", "eng")
	t.Setenv("BATCH_WORKERS", "8")

	cfg := LoadConfig()
	require.Equal(t, 450, cfg.OCR.DPI)
	require.Equal(t, "eng", cfg.OCR.Language)
	require.Equal(t, 8, cfg.Batch.Workers)
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("OCR_DPI", "not-a-number")
	cfg := LoadConfig()
	require.Equal(t, 300, cfg.OCR.DPI)
}

func TestIsSetupError(t *testing.T) {
	require.True(t, IsSetupError(WrapError(ErrSetup, "context")))
	require.False(t, IsSetupError(ErrConversion))
	require.False(t, IsSetupError(nil))
}
