package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/gateway"
)

// CanceledDetail is the ErrorDetail of files skipped by a canceled batch
const CanceledDetail = "batch canceled"

// Converter is the part of the gateway client the runner needs
type Converter interface {
	ConvertFile(ctx context.Context, req gateway.ConvertRequest) (*gateway.ConvertResponse, error)
}

// Storage is where sources are resolved and outputs written
type Storage interface {
	Abs(p string) string
	Exists(p string) bool
	CreateFolder(p string) error
	WriteFile(p string, content []byte) error
}

// Runner converts files one after another. A failing file never stops the
// batch.
type Runner struct {
	conv  Converter
	store Storage
	now   func() time.Time

	// OnResult, if set, is called after each file with its 1-based position
	OnResult func(n, total int, res Result)
}

// NewRunner creates a runner
func NewRunner(conv Converter, store Storage) *Runner {
	return &Runner{conv: conv, store: store, now: time.Now}
}

// Run converts paths in order. Cancelling ctx stops the batch; files not
// yet converted are reported failed with CanceledDetail.
func (r *Runner) Run(ctx context.Context, paths []string, format Format, dest Destination) Report {
	report := Report{
		ID:          uuid.NewString(),
		Format:      format,
		Destination: dest.String(),
		StartedAt:   r.now(),
		Results:     make([]Result, 0, len(paths)),
	}
	log := internal.Logger().With("batch", report.ID)
	log.Info("starting batch", "files", len(paths), "format", format, "destination", dest)

	b := &batch{Runner: r, format: format, dest: dest}
	for i, src := range paths {
		var res Result
		if report.Canceled || ctx.Err() != nil {
			report.Canceled = true
			res = Result{SourcePath: src, OutputFormat: format, Status: StatusFailed, ErrorDetail: CanceledDetail}
		} else {
			res = b.convert(ctx, src)
			if res.ErrorDetail == CanceledDetail {
				report.Canceled = true
			}
		}

		if res.Status == StatusFailed && res.ErrorDetail != CanceledDetail {
			log.Warn("conversion failed", "file", src, "err", res.ErrorDetail)
		} else {
			log.Debug("converted", "file", src, "to", res.DestinationPath)
		}
		report.add(res)
		if r.OnResult != nil {
			r.OnResult(i+1, len(paths), res)
		}
	}

	report.FinishedAt = r.now()
	log.Info("batch finished", "succeeded", report.Succeeded, "failed", report.Failed, "canceled", report.Canceled)
	return report
}

// RunTaskSet runs the queued files and clears the set unless the batch
// was canceled
func (r *Runner) RunTaskSet(ctx context.Context, set *TaskSet, format Format, dest Destination) Report {
	report := r.Run(ctx, set.Paths(), format, dest)
	if !report.Canceled {
		set.Clear()
	}
	return report
}

// batch holds per-run state
type batch struct {
	*Runner
	format      Format
	dest        Destination
	folderReady bool
}

func (b *batch) convert(ctx context.Context, src string) Result {
	res := Result{SourcePath: src, OutputFormat: b.format, Status: StatusFailed}

	resp, err := b.conv.ConvertFile(ctx, gateway.ConvertRequest{
		FilePath:     b.store.Abs(src),
		OutputFormat: string(b.format),
	})
	if err != nil {
		if gateway.IsCanceled(err) {
			res.ErrorDetail = CanceledDetail
		} else {
			res.ErrorDetail = err.Error()
		}
		return res
	}
	if resp.Content == "" {
		res.Status = StatusSucceeded
		return res
	}

	if err := b.ensureFolder(); err != nil {
		res.ErrorDetail = err.Error()
		return res
	}
	target, err := ResolveDestination(src, b.format, b.dest, b.store.Exists)
	if err != nil {
		res.ErrorDetail = err.Error()
		return res
	}
	if err := b.store.WriteFile(target, []byte(resp.Content)); err != nil {
		res.ErrorDetail = err.Error()
		return res
	}

	res.Status = StatusSucceeded
	res.DestinationPath = target
	res.Bytes = len(resp.Content)
	return res
}

// ensureFolder creates the dedicated folder before the first write
func (b *batch) ensureFolder() error {
	if b.dest.Policy != DedicatedFolder || b.folderReady {
		return nil
	}
	if !b.store.Exists(b.dest.Folder) {
		if err := b.store.CreateFolder(b.dest.Folder); err != nil {
			return fmt.Errorf("creating output folder: %w", err)
		}
	}
	b.folderReady = true
	return nil
}
