package worker

import (
	"context"
	"time"

	"github.com/opsmith-lab/taskmill/pkg/usecase"
	"github.com/opsmith-lab/taskmill/pkg/utils/logging"
)

// ArchivalWorker periodically moves stale tasks to the archive.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type ArchivalWorker struct {
	archival  *usecase.ArchivalUseCase
	retention time.Duration
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewArchivalWorker creates a worker that archives tasks untouched for longer
// than retention, checking every interval.
func NewArchivalWorker(archival *usecase.ArchivalUseCase, retention, interval time.Duration) *ArchivalWorker {
	return &ArchivalWorker{
		archival:  archival,
		retention: retention,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background archival loop. It does not block.
func (w *ArchivalWorker) Start(ctx context.Context) error {
	logging.Default().Info("Archival worker starting",
		"retention", w.retention.String(),
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *ArchivalWorker) Stop() {
	logging.Default().Info("Archival worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Archival worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *ArchivalWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Initial run so a restart does not delay archival by a full interval.
	if err := w.runOnce(ctx); err != nil {
		logging.Default().Error("Initial archival run failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.runOnce(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("Archival run failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			logging.Default().Info("Archival worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Archival worker context cancelled")
			return
		}
	}
}

// runOnce performs a single archival cycle
func (w *ArchivalWorker) runOnce(ctx context.Context) error {
	startTime := time.Now()
	cutoff := startTime.UTC().Add(-w.retention)

	moved, err := w.archival.ArchiveTasksOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	if moved > 0 {
		logging.Default().Info("Archival run completed",
			"archived", moved,
			"cutoff", cutoff,
			"duration", time.Since(startTime).String())
	}
	return nil
}
