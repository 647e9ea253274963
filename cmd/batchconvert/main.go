// Command batchconvert walks a folder of PDFs (and optionally images),
// converts each to text via the OCR pipeline, skips files whose output
// already exists, and prints a pass/fail summary.
//
//	batchconvert [flags] <source_dir>
//
// Individual conversion failures are reported and counted, never fatal;
// the exit code is non-zero only for setup errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ocrkit/pdf2txt/internal/batch"
	"github.com/ocrkit/pdf2txt/internal/common"
	"github.com/ocrkit/pdf2txt/internal/core"
	"github.com/ocrkit/pdf2txt/internal/journal"
	"github.com/ocrkit/pdf2txt/internal/ocr"
	"github.com/ocrkit/pdf2txt/internal/profile"
	"github.com/ocrkit/pdf2txt/internal/report"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	_ = godotenv.Load()

	var (
		filter      = flag.String("filter", "", "only convert files whose name contains this substring")
		workers     = flag.Int("worker", 0, "worker pool size (default from BATCH_WORKERS or 1)")
		force       = flag.Bool("force", false, "reconvert files whose output already exists")
		outDir      = flag.String("out", "", "output directory (default from OUTPUT_DIR or ./output)")
		reportPath  = flag.String("report", "", "write an XLSX run report to this path")
		journalPath = flag.String("journal", "", "record the run in this SQLite journal")
		profilePath = flag.String("profile", "", "JSON conversion profile")
		dpi         = flag.Int("dpi", 0, "rasterization DPI (default from OCR_DPI or 300)")
		lang        = flag.String("lang", "", "tesseract language set (default from OCR_LANG)")
		raw         = flag.Bool("raw", false, "skip the content filter, keep raw OCR text")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		printError("usage: batchconvert [flags] <source_dir>\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	sourceDir := flag.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	// precedence: env < profile < explicit flags
	var prof *profile.Profile
	if *profilePath != "" {
		p, err := profile.Load(*profilePath)
		if err != nil {
			logger.Error("failed to load profile", "path", *profilePath, "error", err)
			os.Exit(1)
		}
		prof = p
		if p.DPI > 0 {
			cfg.OCR.DPI = p.DPI
		}
		if p.Language != "" {
			cfg.OCR.Language = p.Language
		}
		if p.PSM > 0 {
			cfg.OCR.PSM = p.PSM
		}
		if p.OEM > 0 {
			cfg.OCR.OEM = p.OEM
		}
		if p.MaxPages > 0 {
			cfg.OCR.MaxPages = p.MaxPages
		}
		if p.Workers > 0 {
			cfg.Batch.Workers = p.Workers
		}
	}
	if *dpi > 0 {
		cfg.OCR.DPI = *dpi
	}
	if *lang != "" {
		cfg.OCR.Language = *lang
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *outDir != "" {
		cfg.Batch.OutputDir = *outDir
	}
	if *journalPath != "" {
		cfg.Batch.JournalPath = *journalPath
	}

	ctx := context.Background()
	startedAt := time.Now()

	var rec batch.Recorder
	if cfg.Batch.JournalPath != "" {
		j, err := journal.Open(cfg.Batch.JournalPath, logger)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Batch.JournalPath, "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := j.Close(); cerr != nil {
				logger.Error("close journal", "error", cerr)
			}
		}()
		rec = j
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:   cfg.OCR.Pdftotext,
		Pdftoppm:    cfg.OCR.Pdftoppm,
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		DPI:         cfg.OCR.DPI,
		PSM:         cfg.OCR.PSM,
		OEM:         cfg.OCR.OEM,
		MaxPages:    cfg.OCR.MaxPages,
		TessdataDir: cfg.OCR.TessdataDir,
		PageJobs:    cfg.OCR.PageJobs,
	}, logger)

	useFilter := !*raw
	if prof != nil && prof.NoFilter {
		useFilter = false
	}
	converter := core.NewConverter(extractor, useFilter, logger)

	var exts map[string]struct{}
	if prof != nil {
		exts = prof.ExtensionSet()
	}
	driver := batch.NewDriver(batch.Config{
		SourceDir:  sourceDir,
		OutputDir:  cfg.Batch.OutputDir,
		Filter:     *filter,
		Workers:    cfg.Batch.Workers,
		Force:      *force,
		Extensions: exts,
	}, func(ctx context.Context, src, dst string) error {
		_, err := converter.Convert(ctx, src, dst)
		return err
	}, rec, logger)

	summary, tasks, err := driver.Run(ctx)
	if err != nil {
		logger.Error("batch run failed", "error", err)
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	if *reportPath != "" {
		if err := report.WriteXLSX(*reportPath, tasks, summary, startedAt); err != nil {
			logger.Error("failed to write report", "path", *reportPath, "error", err)
			os.Exit(1)
		}
		logger.Info("report written", "path", *reportPath)
	}

	logger.Info("batch conversion complete",
		"discovered", summary.Discovered,
		"skipped", summary.Skipped,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration_ms", time.Since(startedAt).Milliseconds())

	fmt.Printf("Batch conversion complete!\n")
	fmt.Printf("- Discovered: %d\n", summary.Discovered)
	fmt.Printf("- Skipped:    %d\n", summary.Skipped)
	fmt.Printf("- Succeeded:  %d\n", summary.Succeeded)
	fmt.Printf("- Failed:     %d\n", summary.Failed)
	fmt.Printf("- Output dir: %s\n", cfg.Batch.OutputDir)
	if summary.Failed > 0 {
		printError("warning: %d file(s) failed to convert, see log above\n", summary.Failed)
	}
}
