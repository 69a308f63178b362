package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/config"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/docstore"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/postgres"
)

// ScoreSource yields the current ranked members of a field's index.
// Satisfied by leaderboard.Projector.
type ScoreSource interface {
	Scores(ctx context.Context, field string) ([]docstore.RankedEntry, error)
}

// SnapshotWorker periodically persists the live ranking into the
// PostgreSQL snapshot table, so score history survives the document
// store and can be queried offline.
type SnapshotWorker struct {
	source  ScoreSource
	audit   *postgres.AuditLog
	field   string
	config  *config.SnapshotConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSnapshotWorker creates a new snapshot worker for one ranking field.
func NewSnapshotWorker(
	source ScoreSource,
	audit *postgres.AuditLog,
	field string,
	cfg *config.SnapshotConfig,
	logger *slog.Logger,
) *SnapshotWorker {
	return &SnapshotWorker{
		source: source,
		audit:  audit,
		field:  field,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background snapshot process.
func (w *SnapshotWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("snapshot worker started", "interval", w.config.Interval, "field", w.field)

	go w.run(ctx)
	return nil
}

// Stop stops the background snapshot process.
func (w *SnapshotWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("snapshot worker stopped")
	return nil
}

// run is the main worker loop.
func (w *SnapshotWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.snapshot(ctx)
		}
	}
}

// Snapshot persists the current ranking once. Exposed so the bootstrap
// can take an initial snapshot before the ticker fires.
func (w *SnapshotWorker) Snapshot(ctx context.Context) error {
	entries, err := w.source.Scores(ctx, w.field)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		w.logger.Debug("no scores to snapshot", "field", w.field)
		return nil
	}

	batchSize := w.config.BatchSize
	if batchSize == 0 {
		batchSize = 1000
	}

	batch := make(map[string]float64, batchSize)
	for _, entry := range entries {
		batch[entry.Member] = entry.Score
		if len(batch) >= batchSize {
			if err := w.audit.UpsertSnapshots(ctx, w.field, batch); err != nil {
				return err
			}
			batch = make(map[string]float64, batchSize)
		}
	}
	if len(batch) > 0 {
		if err := w.audit.UpsertSnapshots(ctx, w.field, batch); err != nil {
			return err
		}
	}

	w.logger.Debug("ranking snapshot persisted", "field", w.field, "records", len(entries))
	return nil
}

func (w *SnapshotWorker) snapshot(ctx context.Context) {
	w.logger.Info("starting snapshot cycle", "field", w.field)
	startTime := time.Now()

	if err := w.Snapshot(ctx); err != nil {
		w.logger.Error("failed to snapshot ranking", "field", w.field, "error", err)
		return
	}

	w.logger.Info("snapshot cycle completed", "duration", time.Since(startTime))
}
