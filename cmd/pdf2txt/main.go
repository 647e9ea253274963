// Command pdf2txt converts a single PDF or image file to text. PDFs with
// a usable text layer are extracted directly; scanned PDFs are rasterized
// and OCR'd page by page.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ocrkit/pdf2txt/constants"
	"github.com/ocrkit/pdf2txt/internal/common"
	"github.com/ocrkit/pdf2txt/internal/core"
	"github.com/ocrkit/pdf2txt/internal/ocr"
	"github.com/ocrkit/pdf2txt/internal/textfilter"
)

func main() {
	_ = godotenv.Load()

	var (
		output  = flag.String("o", "", "output file path (default <stem>_converted.txt)")
		dpi     = flag.Int("dpi", 400, "rasterization DPI for scanned PDFs")
		lang    = flag.String("lang", "", "tesseract language set (default from OCR_LANG)")
		jobs    = flag.Int("jobs", 4, "parallel page OCR workers")
		raw     = flag.Bool("raw", false, "skip the content filter, keep raw OCR text")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: pdf2txt [flags] <input>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	input := flag.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *lang != "" {
		cfg.OCR.Language = *lang
	}

	out := *output
	if out == "" {
		base := filepath.Base(input)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		out = stem + constants.OutputSuffix
	}

	if _, err := os.Stat(input); err != nil {
		fmt.Fprintf(os.Stderr, "input not readable: %v\n", err)
		os.Exit(1)
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:   cfg.OCR.Pdftotext,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		DPI:         *dpi,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
		MaxPages:    cfg.OCR.MaxPages,
		TessdataDir: cfg.OCR.TessdataDir,
		PageJobs:    *jobs,
	}, logger)
	converter := core.NewConverter(extractor, !*raw, logger)

	res, err := converter.Convert(context.Background(), input, out)
	if err != nil {
		logger.Error("conversion failed", "input", input, "error", err)
		fmt.Fprintf(os.Stderr, "conversion failed: %v\n", err)
		os.Exit(1)
	}

	text, _ := os.ReadFile(out)
	fmt.Printf("Converted: %s\n", res.OutputPath)
	fmt.Printf("- Method: %s\n", res.Method)
	fmt.Printf("- Pages:  %d\n", res.Pages)
	fmt.Printf("- Chars:  %d\n", textfilter.ContentChars(string(text)))
}
