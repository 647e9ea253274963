// Package report renders a batch run as an XLSX workbook.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ocrkit/pdf2txt/internal/batch"
)

const sheet = "Conversions"

// BuildXLSX returns a workbook (as bytes) with one row per task and the
// run summary on top.
func BuildXLSX(tasks []batch.Task, summary batch.Summary, startedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet so the workbook opens on ours
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	summaryLine := fmt.Sprintf("Run %s — discovered %d, skipped %d, succeeded %d, failed %d",
		startedAt.Format("2006-01-02 15:04:05"),
		summary.Discovered, summary.Skipped, summary.Succeeded, summary.Failed)
	if err := f.SetCellValue(sheet, "A1", summaryLine); err != nil {
		return nil, err
	}

	headers := []string{"Source", "Output", "Status", "Error", "Bytes", "Duration (ms)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 3
	for _, t := range tasks {
		values := []any{t.Source, t.Output, string(t.Status), t.Err, t.Bytes, t.Duration.Milliseconds()}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteXLSX builds the workbook and writes it to path.
func WriteXLSX(path string, tasks []batch.Task, summary batch.Summary, startedAt time.Time) error {
	b, err := BuildXLSX(tasks, summary, startedAt)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
