// Package batch implements the folder conversion driver: discover source
// files, skip already-converted ones, run conversions on a bounded worker
// pool, and aggregate per-task results into a run summary.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ocrkit/pdf2txt/constants"
	"github.com/ocrkit/pdf2txt/internal/common"
)

// Task is one source file's trip through the driver. Workers write only
// their own task, the coordinator aggregates after the pool drains; no
// counters are shared across goroutines.
type Task struct {
	Source   string
	Output   string
	Status   constants.TaskStatus
	Err      string
	Bytes    int64
	Duration time.Duration
}

// Summary holds the aggregate counts reported at run end.
type Summary struct {
	Discovered int
	Skipped    int
	Succeeded  int
	Failed     int
}

// ConvertFunc performs one conversion. It must either write a non-empty
// artifact at dst and return nil, or return an error; the driver removes
// whatever a failed call left at dst.
type ConvertFunc func(ctx context.Context, src, dst string) error

// Recorder persists run bookkeeping. Optional; bookkeeping never changes
// skip semantics.
type Recorder interface {
	BeginRun(ctx context.Context, sourceDir string) (uuid.UUID, error)
	RecordTask(ctx context.Context, runID uuid.UUID, t Task) error
	FinishRun(ctx context.Context, runID uuid.UUID, s Summary) error
}

type Config struct {
	SourceDir  string
	OutputDir  string              // default "output"
	Filter     string              // substring match on the base file name
	Workers    int                 // pool size, default 1
	Force      bool                // reconvert even when output exists
	Extensions map[string]struct{} // normalized, sans '.'; nil -> {"pdf"}
}

type Driver struct {
	cfg     Config
	convert ConvertFunc
	logger  *slog.Logger
	journal Recorder
}

func NewDriver(cfg Config, convert ConvertFunc, journal Recorder, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Extensions == nil {
		cfg.Extensions = map[string]struct{}{"pdf": {}}
	}
	return &Driver{cfg: cfg, convert: convert, logger: logger, journal: journal}
}

// OutputPath maps a source file to its deterministic output path.
func (d *Driver) OutputPath(src string) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(d.cfg.OutputDir, stem+constants.OutputSuffix)
}

// Discover lists matching files in the source directory, sorted
// lexicographically by name for deterministic, resumable ordering.
func (d *Driver) Discover() ([]Task, error) {
	entries, err := os.ReadDir(d.cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: read source directory: %v", common.ErrSetup, err)
	}

	var tasks []Task
	// os.ReadDir returns entries sorted by name already
	for _, ent := range entries {
		if ent.IsDir() || isHidden(ent.Name()) {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(ent.Name()))
		if _, ok := d.cfg.Extensions[ext]; !ok {
			continue
		}
		if d.cfg.Filter != "" && !strings.Contains(ent.Name(), d.cfg.Filter) {
			continue
		}
		src := filepath.Join(d.cfg.SourceDir, ent.Name())
		tasks = append(tasks, Task{
			Source: src,
			Output: d.OutputPath(src),
			Status: constants.TaskPending,
		})
	}
	return tasks, nil
}

// Run executes the whole batch. Individual conversion failures are
// recorded, never propagated; the returned error is non-nil only for
// fatal setup problems.
func (d *Driver) Run(ctx context.Context) (Summary, []Task, error) {
	tasks, err := d.Discover()
	if err != nil {
		return Summary{}, nil, err
	}
	d.logger.Info("discovered source files", "dir", d.cfg.SourceDir, "count", len(tasks))

	if err := os.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
		return Summary{}, nil, fmt.Errorf("%w: create output directory: %v", common.ErrSetup, err)
	}

	var runID uuid.UUID
	if d.journal != nil {
		if runID, err = d.journal.BeginRun(ctx, d.cfg.SourceDir); err != nil {
			return Summary{}, nil, fmt.Errorf("%w: journal: %v", common.ErrSetup, err)
		}
		ctx = common.WithRunID(ctx, runID.String())
	}

	// plan: decide skips up front so the pool only sees real work
	for i := range tasks {
		if d.cfg.Force {
			continue
		}
		// an empty artifact is a crash leftover, not a finished conversion
		if fi, err := os.Stat(tasks[i].Output); err == nil && fi.Size() > 0 {
			tasks[i].Status = constants.TaskSkipped
			d.logger.Info("skipping, output exists",
				"index", i+1, "total", len(tasks), "source", tasks[i].Source)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i := range tasks {
		if tasks[i].Status == constants.TaskSkipped {
			continue
		}
		i := i
		g.Go(func() error {
			d.runTask(gctx, i+1, len(tasks), &tasks[i])
			return nil // task failures are isolated, the pool always drains
		})
	}
	_ = g.Wait()

	summary := Summary{Discovered: len(tasks)}
	for i := range tasks {
		switch tasks[i].Status {
		case constants.TaskSkipped:
			summary.Skipped++
		case constants.TaskSucceeded:
			summary.Succeeded++
		case constants.TaskFailed:
			summary.Failed++
		}
		if d.journal != nil {
			if jerr := d.journal.RecordTask(ctx, runID, tasks[i]); jerr != nil {
				d.logger.Warn("journal task record failed", "source", tasks[i].Source, "error", jerr)
			}
		}
	}
	if d.journal != nil {
		if jerr := d.journal.FinishRun(ctx, runID, summary); jerr != nil {
			d.logger.Warn("journal run record failed", "run_id", runID, "error", jerr)
		}
	}
	return summary, tasks, nil
}

func (d *Driver) runTask(ctx context.Context, index, total int, t *Task) {
	d.logger.Info("converting",
		"index", index, "total", total,
		"source", filepath.Base(t.Source), "output", filepath.Base(t.Output))

	start := time.Now()
	err := d.convert(ctx, t.Source, t.Output)
	t.Duration = time.Since(start)
	if err == nil {
		if fi, serr := os.Stat(t.Output); serr == nil && fi.Size() > 0 {
			t.Status = constants.TaskSucceeded
			t.Bytes = fi.Size()
			return
		}
		err = common.ErrEmptyOutput
	}

	// a failed task must not leave a partial artifact behind, the next
	// run's skip check would mistake it for a finished conversion
	if rerr := os.Remove(t.Output); rerr != nil && !os.IsNotExist(rerr) {
		d.logger.Warn("failed to remove partial output", "output", t.Output, "error", rerr)
	}
	t.Status = constants.TaskFailed
	t.Err = err.Error()
	d.logger.Error("conversion failed", "source", t.Source, "error", err)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
