package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/core"
	"kharcha/internal/events"
	"kharcha/internal/sheets"
)

// Exporter produces the export view. services.Aggregator satisfies it.
type Exporter interface {
	Export(ctx context.Context) ([]core.DailyExpense, error)
}

// MirrorWorker keeps a spreadsheet in step with the export view. Events only
// trigger a recompute; the store stays the source of truth.
type MirrorWorker struct {
	exporter Exporter
	writer   sheets.ExportWriter

	// mu serializes mirror passes so bursts of events collapse into one write.
	mu       sync.Mutex
	lastHash string
}

func NewMirrorWorker(exporter Exporter, writer sheets.ExportWriter) *MirrorWorker {
	return &MirrorWorker{
		exporter: exporter,
		writer:   writer,
	}
}

// Mirror recomputes the export and writes it when it differs from the last
// successful write. It reports whether a write happened.
func (w *MirrorWorker) Mirror(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows, err := w.exporter.Export(ctx)
	if err != nil {
		return false, fmt.Errorf("compute export: %w", err)
	}
	hash, err := exportHash(rows)
	if err != nil {
		return false, err
	}
	if hash == w.lastHash {
		slog.DebugContext(ctx, "Export unchanged, skipping mirror", "rows", len(rows))
		return false, nil
	}

	if err := w.writer.WriteExport(ctx, rows); err != nil {
		return false, fmt.Errorf("write export: %w", err)
	}
	w.lastHash = hash
	return true, nil
}

// HandleEvent is the events.Handler of the worker. A failed mirror is logged
// and not returned: the export hash stays stale, so the next event or tick
// writes again, and the consumer is never torn down by a sheet outage.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev events.ChangeEvent) error {
	slog.InfoContext(ctx, "Processing change event",
		"event_id", ev.ID,
		"kind", ev.Kind,
		"dates", ev.Dates,
		"inserted", ev.Inserted,
		"updated", ev.Updated,
		"deleted", ev.Deleted)

	if _, err := w.Mirror(ctx); err != nil {
		slog.ErrorContext(ctx, "Event mirror failed", "event_id", ev.ID, "error", err)
	}
	return nil
}

// Run mirrors once at startup, then consumes events (when consumer is not
// nil) and re-mirrors every interval until ctx is cancelled or the consumer
// itself fails. Mirror failures never stop it.
func (w *MirrorWorker) Run(ctx context.Context, consumer events.Consumer, interval time.Duration) error {
	if _, err := w.Mirror(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup mirror failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			return consumer.Consume(gctx, w.HandleEvent)
		})
	}

	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case <-ticker.C:
					if _, err := w.Mirror(gctx); err != nil {
						slog.ErrorContext(gctx, "Periodic mirror failed", "error", err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func exportHash(rows []core.DailyExpense) (string, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("hash export: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
