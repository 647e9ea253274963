package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocrkit/pdf2txt/internal/preprocess"
)

// fakeRunner scripts subprocess behavior per binary name.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	onRun func(name string, args []string) (stdout, stderr []byte, err error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	return f.onRun(name, args)
}

func (f *fakeRunner) callsFor(bin string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] == bin {
			out = append(out, c)
		}
	}
	return out
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(1, 1, color.NRGBA{A: 0xff}) // one dark pixel, some contrast to work on
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// testConfig keeps preprocessing cheap on the tiny fixture images.
func testConfig() Config {
	return Config{
		Preprocess: preprocess.Options{TargetHeight: 8, MaxWidth: 64},
	}
}

func newTestExtractor(t *testing.T, cfg Config, fr *fakeRunner) *Extractor {
	t.Helper()
	e := NewExtractor(cfg, nil)
	e.runner = fr
	return e
}

func TestExtractUsesTextLayerWhenDense(t *testing.T) {
	longText := strings.Repeat("plenty of extractable text here ", 10)
	fr := &fakeRunner{onRun: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "pdftotext", name)
		return []byte(longText), nil, nil
	}}
	e := newTestExtractor(t, testConfig(), fr)

	res, err := e.Extract(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Equal(t, "pdf-text", res.Method)
	require.Equal(t, 1, res.Pages)
	require.Contains(t, res.Text, "plenty of extractable text")
	require.Empty(t, fr.callsFor("pdftoppm"), "dense text layer must not rasterize")
}

func TestExtractFallsBackToOCRWhenSparse(t *testing.T) {
	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte(" \f "), nil, nil // two pages, no text layer
		case "pdftoppm":
			prefix := args[len(args)-1]
			writePNG(t, prefix+"-1.png")
			writePNG(t, prefix+"-2.png")
			return nil, nil, nil
		case "tesseract":
			page := "one"
			if strings.Contains(filepath.Base(args[0]), "-2") {
				page = "two"
			}
			return []byte("page text " + page + "\n"), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected binary %s", name)
	}
	e := newTestExtractor(t, testConfig(), fr)

	res, err := e.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)
	require.Equal(t, "pdf-ocr", res.Method)
	require.Equal(t, 2, res.Pages)
	require.Equal(t, 300, res.DPI)

	one := strings.Index(res.Text, "page text one")
	two := strings.Index(res.Text, "page text two")
	require.GreaterOrEqual(t, one, 0)
	require.Greater(t, two, one, "pages must merge in order")
	require.Contains(t, res.Text, "--- Page 1 ---")
	require.Contains(t, res.Text, "--- Page 2 ---")
}

func TestDPIFallbackLadder(t *testing.T) {
	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return nil, nil, nil
		case "pdftoppm":
			if args[1] == "300" {
				return nil, []byte("image too large"), errors.New("exit status 1")
			}
			prefix := args[len(args)-1]
			writePNG(t, prefix+"-1.png")
			return nil, nil, nil
		case "tesseract":
			return []byte("recovered text\n"), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected binary %s", name)
	}
	e := newTestExtractor(t, testConfig(), fr)

	res, err := e.Extract(context.Background(), "big-scan.pdf")
	require.NoError(t, err)
	require.Equal(t, "pdf-ocr", res.Method)
	require.Equal(t, 250, res.DPI)
	require.NotEmpty(t, res.Warnings)

	ppm := fr.callsFor("pdftoppm")
	require.Len(t, ppm, 2)
	require.Equal(t, "300", ppm[0][2])
	require.Equal(t, "250", ppm[1][2])
}

func TestRasterizationExhaustsLadder(t *testing.T) {
	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		if name == "pdftotext" {
			return nil, nil, nil
		}
		return nil, []byte("boom"), errors.New("exit status 1")
	}
	e := newTestExtractor(t, testConfig(), fr)

	_, err := e.Extract(context.Background(), "scan.pdf")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rasterization failed at all DPI levels")
	require.Len(t, fr.callsFor("pdftoppm"), 4) // 300, 250, 200, 150
}

func TestMaxPagesLimitsOCR(t *testing.T) {
	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return nil, nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for i := 1; i <= 3; i++ {
				writePNG(t, fmt.Sprintf("%s-%d.png", prefix, i))
			}
			return nil, nil, nil
		case "tesseract":
			return []byte("text\n"), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected binary %s", name)
	}
	cfg := testConfig()
	cfg.MaxPages = 2
	e := newTestExtractor(t, cfg, fr)

	res, err := e.Extract(context.Background(), "long.pdf")
	require.NoError(t, err)
	require.Equal(t, 2, res.Pages)
	require.Len(t, fr.callsFor("tesseract"), 2)
}

func TestPageFailureDegradesNotAborts(t *testing.T) {
	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return nil, nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			writePNG(t, prefix+"-1.png")
			writePNG(t, prefix+"-2.png")
			return nil, nil, nil
		case "tesseract":
			if strings.Contains(filepath.Base(args[0]), "-1") {
				return nil, []byte("bad page"), errors.New("exit status 1")
			}
			return []byte("second page text\n"), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected binary %s", name)
	}
	e := newTestExtractor(t, testConfig(), fr)

	res, err := e.Extract(context.Background(), "scan.pdf")
	require.NoError(t, err)
	require.Equal(t, 2, res.Pages)
	require.Contains(t, res.Text, "second page text")
	require.NotContains(t, res.Text, "--- Page 1 ---")
	require.NotEmpty(t, res.Warnings)
}

func TestExtractImage(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "photo.png")
	writePNG(t, img)

	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "tesseract", name)
		return []byte("image text\n"), nil, nil
	}
	cfg := testConfig()
	cfg.Language = "eng"
	cfg.TessdataDir = "/usr/share/tessdata"
	e := newTestExtractor(t, cfg, fr)

	res, err := e.Extract(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, "image-ocr", res.Method)
	require.Equal(t, 1, res.Pages)
	require.Equal(t, "image text", res.Text)

	calls := fr.callsFor("tesseract")
	require.Len(t, calls, 1)
	args := strings.Join(calls[0][1:], " ")
	require.Contains(t, args, "stdout -l eng")
	require.Contains(t, args, "--psm 6")
	require.Contains(t, args, "--oem 3")
	require.Contains(t, args, "--tessdata-dir /usr/share/tessdata")
	require.Contains(t, args, "tessedit_char_blacklist=|")
	require.Contains(t, args, "preserve_interword_spaces=1")
	require.Contains(t, args, "textord_really_old_xheight=1")
	require.Contains(t, args, "textord_min_linesize=2.5")
}

func writeTallPNG(t *testing.T, path string, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestTallPageOCRsInChunks(t *testing.T) {
	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return nil, nil, nil
		case "pdftoppm":
			writeTallPNG(t, args[len(args)-1]+"-1.png", 30)
			return nil, nil, nil
		case "tesseract":
			// echo back which band is being read
			base := filepath.Base(args[0])
			return []byte("band " + base + "\n"), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected binary %s", name)
	}
	cfg := testConfig()
	cfg.Preprocess.MaxChunkHeight = 16
	cfg.Preprocess.ChunkOverlap = 4
	e := newTestExtractor(t, cfg, fr)

	res, err := e.Extract(context.Background(), "scroll.pdf")
	require.NoError(t, err)
	require.Equal(t, "pdf-ocr", res.Method)
	require.Equal(t, 1, res.Pages)

	// a 30px page with 16px bands at 12px steps yields three bands
	require.Len(t, fr.callsFor("tesseract"), 3)
	c1 := strings.Index(res.Text, "band page-1.pp.c01.png")
	c2 := strings.Index(res.Text, "band page-1.pp.c02.png")
	c3 := strings.Index(res.Text, "band page-1.pp.c03.png")
	require.GreaterOrEqual(t, c1, 0)
	require.Greater(t, c2, c1, "bands merge top to bottom")
	require.Greater(t, c3, c2)
}

func TestTallPageSurvivesOneBadChunk(t *testing.T) {
	fr := &fakeRunner{}
	fr.onRun = func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return nil, nil, nil
		case "pdftoppm":
			writeTallPNG(t, args[len(args)-1]+"-1.png", 30)
			return nil, nil, nil
		case "tesseract":
			if strings.Contains(args[0], ".c02.") {
				return nil, []byte("bad band"), errors.New("exit status 1")
			}
			return []byte("band text\n"), nil, nil
		}
		return nil, nil, fmt.Errorf("unexpected binary %s", name)
	}
	cfg := testConfig()
	cfg.Preprocess.MaxChunkHeight = 16
	cfg.Preprocess.ChunkOverlap = 4
	e := newTestExtractor(t, cfg, fr)

	res, err := e.Extract(context.Background(), "scroll.pdf")
	require.NoError(t, err)
	require.Contains(t, res.Text, "band text")
	require.NotEmpty(t, res.Warnings)
}

func TestUnsupportedExtension(t *testing.T) {
	e := newTestExtractor(t, testConfig(), &fakeRunner{onRun: func(string, []string) ([]byte, []byte, error) {
		return nil, nil, nil
	}})
	_, err := e.Extract(context.Background(), "doc.docx")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported extension")
}

func TestNormalize(t *testing.T) {
	in := "line one  with   gaps\t\ttabbed\r\nnext\n\n\n\n\nfar away   \n----\nend"
	out := Normalize(in)
	require.NotContains(t, out, "\r")
	require.NotContains(t, out, "\t")
	require.NotContains(t, out, "  ")
	require.NotContains(t, out, "\n\n\n")
	require.Contains(t, out, "line one with gaps tabbed")
	require.Contains(t, out, "end")
}
