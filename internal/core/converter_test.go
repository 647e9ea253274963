package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ocrkit/pdf2txt/internal/common"
	"github.com/ocrkit/pdf2txt/internal/ocr"
)

type fakeExtractor struct {
	res ocr.ExtractionResult
	err error
}

func (f *fakeExtractor) Extract(context.Context, string) (ocr.ExtractionResult, error) {
	return f.res, f.err
}

func TestConvertWritesArtifact(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a_converted.txt")
	c := NewConverter(&fakeExtractor{res: ocr.ExtractionResult{
		Text:   "extracted body text",
		Pages:  3,
		Method: "pdf-text",
	}}, false, nil)

	res, err := c.Convert(context.Background(), "a.pdf", dst)
	require.NoError(t, err)
	require.Equal(t, dst, res.OutputPath)
	require.Equal(t, 3, res.Pages)
	require.False(t, res.Filtered)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "extracted body text\n", string(data))
}

func TestConvertPropagatesExtractError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a_converted.txt")
	c := NewConverter(&fakeExtractor{err: errors.New("no pages rendered")}, false, nil)

	_, err := c.Convert(context.Background(), "a.pdf", dst)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no pages rendered")

	_, serr := os.Stat(dst)
	require.True(t, os.IsNotExist(serr), "failed conversion must not write output")
}

func TestConvertRejectsEmptyText(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a_converted.txt")
	c := NewConverter(&fakeExtractor{res: ocr.ExtractionResult{Text: "  \n "}}, false, nil)

	_, err := c.Convert(context.Background(), "a.pdf", dst)
	require.ErrorIs(t, err, common.ErrEmptyOutput)
}

func TestConvertAppliesFilter(t *testing.T) {
	// enough CJK body that the protection threshold keeps the filtered text
	body := strings.Repeat("这是一段很正常的正文内容，包含许多汉字以确保总量超过保护阈值，避免回退。\n", 200)
	raw := body + "2023年5月1日\n"

	dst := filepath.Join(t.TempDir(), "a_converted.txt")
	c := NewConverter(&fakeExtractor{res: ocr.ExtractionResult{Text: raw, Pages: 1, Method: "pdf-ocr"}}, true, nil)

	res, err := c.Convert(context.Background(), "a.pdf", dst)
	require.NoError(t, err)
	require.True(t, res.Filtered)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.NotContains(t, string(data), "2023年5月1日")
}
