package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ocrkit/pdf2txt/constants"
	"github.com/ocrkit/pdf2txt/internal/preprocess"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	var warns []string
	target := path
	if !e.cfg.DisablePreprocess {
		pp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".pp.png")
		if err := preprocess.EnhanceFile(path, pp, e.cfg.Preprocess); err != nil {
			warns = append(warns, fmt.Sprintf("preprocess: %v", err))
		} else {
			target = pp
			defer preprocess.Remove(pp)
		}
	}

	txt, warn, err := e.tesseractOCR(ctx, target)
	warns = append(warns, warn...)
	if err != nil {
		return ExtractionResult{SourceType: constants.IMAGE, Warnings: warns}, err
	}

	return ExtractionResult{
		Text:       Normalize(txt),
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Language:   e.cfg.Language,
		Warnings:   warns,
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// the '|' glyph is almost always scan noise on ruled paper; the
	// xheight and linesize knobs keep dense CJK scans from being
	// misjoined into giant lines
	args = append(args,
		"-c", "tessedit_char_blacklist=|",
		"-c", "preserve_interword_spaces=1",
		"-c", "textord_really_old_xheight=1",
		"-c", "textord_min_linesize=2.5",
	)

	// tesseract <file> stdout -l <lang> --psm 6 --oem 3 ...
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return strings.TrimRight(txt, "\n") + "\n", nil, nil
}
