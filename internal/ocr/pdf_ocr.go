package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/ocrkit/pdf2txt/constants"
	"github.com/ocrkit/pdf2txt/internal/preprocess"
)

// dpiLadder is the fallback sequence tried when rasterization fails;
// lower resolutions keep oversized pages renderable.
var dpiLadder = []int{250, 200, 150}

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	text, pages, warns, err := e.pdfToText(ctx, path)
	if err == nil && textYieldPerPage(text, pages) >= e.cfg.MinTextPerPage {
		return ExtractionResult{
			Text:       Normalize(text),
			Pages:      pages,
			SourceType: constants.PDF,
			Method:     "pdf-text",
			Language:   e.cfg.Language,
			Warnings:   warns,
		}, nil
	}
	if err != nil {
		warns = append(warns, fmt.Sprintf("pdftotext failed, falling back to OCR: %v", err))
	} else {
		e.logger.Debug("text layer too sparse, rasterizing", "path", path, "pages", pages)
	}

	text, pages, dpi, ocrWarns, err := e.pdfToOCR(ctx, path)
	warns = append(warns, ocrWarns...)
	if err != nil {
		return ExtractionResult{SourceType: constants.PDF, Warnings: warns}, err
	}
	return ExtractionResult{
		Text:       Normalize(text),
		Pages:      pages,
		SourceType: constants.PDF,
		Method:     "pdf-ocr",
		Language:   e.cfg.Language,
		DPI:        dpi,
		Warnings:   warns,
	}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

// pdfToOCR rasterizes the PDF and runs tesseract on each page. On
// rasterization failure the DPI ladder is walked down before giving up.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages, dpi int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "p2t-pages-*")
	if err != nil {
		return "", 0, 0, nil, err
	}
	defer func(dir string) {
		if rerr := os.RemoveAll(dir); rerr != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", rerr)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")

	var warns []string
	var rasterErr error
	dpi = 0
	for _, d := range dpiCandidates(e.cfg.DPI) {
		// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
		_, errb, rerr := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", d), "-png", path, prefix)
		if rerr == nil {
			dpi = d
			rasterErr = nil
			break
		}
		rasterErr = rerr
		warns = append(warns, fmt.Sprintf("pdftoppm at %d dpi: %v: %s", d, rerr, truncate(string(errb), 1<<10)))
		if ctx.Err() != nil {
			break
		}
	}
	if rasterErr != nil {
		return "", 0, 0, warns, fmt.Errorf("rasterization failed at all DPI levels: %w", rasterErr)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, dpi, append(warns, "pdftoppm produced no images"), fmt.Errorf("no pages rendered")
	}

	// OCR pages in parallel; each page writes into its own slot so the
	// merge below stays in page order.
	texts := make([]string, len(matches))
	pageWarns := make([][]string, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PageJobs)
	for i, img := range matches {
		i, img := i, img
		g.Go(func() error {
			txt, w, perr := e.ocrPage(gctx, img)
			if perr != nil {
				pageWarns[i] = append(w, fmt.Sprintf("page %d: %v", i+1, perr))
				return nil // page failures degrade output, they do not abort the document
			}
			texts[i] = txt
			pageWarns[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, dpi, warns, err
	}

	var b strings.Builder
	for i, txt := range texts {
		warns = append(warns, pageWarns[i]...)
		if strings.TrimSpace(txt) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n", i+1)
		b.WriteString(txt)
		b.WriteString("\n")
	}
	return b.String(), len(matches), dpi, warns, nil
}

// ocrPage enhances a single rasterized page and feeds it to tesseract.
// Enhancement failures are downgraded to warnings, OCR then runs on the
// raw rasterization. Very tall pages (long scrolling scans) are cut
// into overlapping bands first, tesseract misreads layouts past a few
// thousand pixels of height.
func (e *Extractor) ocrPage(ctx context.Context, img string) (string, []string, error) {
	var warns []string
	target := img
	if !e.cfg.DisablePreprocess {
		pp := strings.TrimSuffix(img, ".png") + ".pp.png"
		if err := preprocess.EnhanceFile(img, pp, e.cfg.Preprocess); err != nil {
			warns = append(warns, fmt.Sprintf("preprocess %s: %v", filepath.Base(img), err))
		} else {
			target = pp
		}
	}

	chunks, err := preprocess.SplitTallFile(target, e.cfg.Preprocess)
	if err != nil {
		warns = append(warns, fmt.Sprintf("split %s: %v", filepath.Base(target), err))
		chunks = []string{target}
	}
	if len(chunks) == 1 {
		txt, w, err := e.tesseractOCR(ctx, chunks[0])
		return txt, append(warns, w...), err
	}

	var b strings.Builder
	var lastErr error
	ok := 0
	for i, chunk := range chunks {
		txt, w, cerr := e.tesseractOCR(ctx, chunk)
		warns = append(warns, w...)
		if cerr != nil {
			warns = append(warns, fmt.Sprintf("chunk %d of %s: %v", i+1, filepath.Base(target), cerr))
			lastErr = cerr
			continue
		}
		ok++
		b.WriteString(txt)
	}
	if ok == 0 {
		return "", warns, lastErr
	}
	return b.String(), warns, nil
}

func dpiCandidates(dpi int) []int {
	out := []int{dpi}
	for _, d := range dpiLadder {
		if d < dpi {
			out = append(out, d)
		}
	}
	return out
}

// textYieldPerPage counts printable non-space characters per page; a low
// yield means the text layer is missing or junk and the PDF is scanned.
func textYieldPerPage(text string, pages int) int {
	if pages <= 0 {
		pages = 1
	}
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) && unicode.IsPrint(r) {
			n++
		}
	}
	return n / pages
}
