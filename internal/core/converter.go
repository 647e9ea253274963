package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ocrkit/pdf2txt/internal/common"
	"github.com/ocrkit/pdf2txt/internal/ocr"
	"github.com/ocrkit/pdf2txt/internal/textfilter"
)

// TextExtractor is what the converter needs from the OCR layer.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// Converter coordinates extraction (text layer or OCR) and content
// filtering, then writes the output artifact.
type Converter struct {
	logger    *slog.Logger
	extractor TextExtractor
	filter    bool
}

// Result describes one completed conversion.
type Result struct {
	OutputPath string
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Pages      int
	Bytes      int
	Filtered   bool // false when the protection threshold restored raw text
	Duration   time.Duration
	Warnings   []string
}

func NewConverter(extractor TextExtractor, filter bool, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{logger: logger, extractor: extractor, filter: filter}
}

// Convert extracts text from src and writes it to dst. The output file is
// only left behind on success; callers may still find a partial file after
// a crash, which the batch driver treats as converted, so Convert verifies
// the artifact is non-empty before returning.
func (c *Converter) Convert(ctx context.Context, src, dst string) (Result, error) {
	start := time.Now()
	logger := c.logger
	if rid := common.RunIDFromContext(ctx); rid != "" {
		logger = logger.With("run_id", rid)
	}

	ext, err := c.extractor.Extract(ctx, src)
	if err != nil {
		return Result{Warnings: ext.Warnings}, common.WrapError(err, "extract")
	}
	for _, w := range ext.Warnings {
		logger.Warn("extraction warning", "source", src, "warning", w)
	}

	text := ext.Text
	filtered := false
	if c.filter {
		out := textfilter.Apply(text)
		filtered = out != text
		text = out
	}
	if strings.TrimSpace(text) == "" {
		return Result{Warnings: ext.Warnings}, common.ErrEmptyOutput
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return Result{Warnings: ext.Warnings}, common.WrapError(err, "write output")
	}
	if fi, err := os.Stat(dst); err != nil || fi.Size() == 0 {
		return Result{Warnings: ext.Warnings}, fmt.Errorf("output verification failed: %w", common.ErrEmptyOutput)
	}

	res := Result{
		OutputPath: dst,
		Method:     ext.Method,
		Pages:      ext.Pages,
		Bytes:      len(text),
		Filtered:   filtered,
		Duration:   time.Since(start),
		Warnings:   ext.Warnings,
	}
	logger.Info("converted",
		"source", src,
		"output", dst,
		"method", res.Method,
		"pages", res.Pages,
		"bytes", res.Bytes,
		"filtered", res.Filtered,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
