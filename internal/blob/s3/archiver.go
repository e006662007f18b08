package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seoulquant/kimparb/internal/domain"
)

// SnapshotArchiver implements domain.Archiver: it buffers orderbook snapshots
// in memory and periodically uploads the batch to S3 as one JSONL object per
// flush, keyed by venue and timestamp.
//
// Deletion or compaction of old archive objects is intentionally NOT handled
// here; bucket lifecycle rules own retention.
type SnapshotArchiver struct {
	writer domain.BlobWriter
	prefix string
	every  time.Duration
	logger *slog.Logger

	mu  sync.Mutex
	buf []domain.OrderBookSnapshot
}

// NewSnapshotArchiver creates an archiver flushing on the given interval.
// prefix namespaces the objects, e.g. "orderbooks".
func NewSnapshotArchiver(writer domain.BlobWriter, prefix string, every time.Duration, logger *slog.Logger) *SnapshotArchiver {
	if every <= 0 {
		every = 5 * time.Minute
	}
	return &SnapshotArchiver{
		writer: writer,
		prefix: prefix,
		every:  every,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

var _ domain.Archiver = (*SnapshotArchiver)(nil)

// Add buffers one snapshot for the next flush. It never blocks on I/O.
func (a *SnapshotArchiver) Add(snapshot domain.OrderBookSnapshot) {
	a.mu.Lock()
	a.buf = append(a.buf, snapshot)
	a.mu.Unlock()
}

// Flush serializes the buffered snapshots to JSONL and uploads them as one
// object. The buffer is drained before the upload; a failed upload drops the
// batch rather than growing memory without bound.
func (a *SnapshotArchiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.buf
	a.buf = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	buf, err := marshalJSONL(batch)
	if err != nil {
		return fmt.Errorf("s3blob: marshal snapshots: %w", err)
	}

	key := archiveKey(a.prefix, batch[len(batch)-1].Timestamp)
	if err := a.writer.Write(ctx, key, buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: flush %d snapshots: %w", len(batch), err)
	}

	a.logger.Debug("snapshot batch archived",
		slog.String("key", key),
		slog.Int("count", len(batch)),
	)
	return nil
}

// Run flushes on the configured interval until ctx is cancelled, with a final
// flush on shutdown.
func (a *SnapshotArchiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.Flush(flushCtx); err != nil {
				a.logger.Error("final flush failed", slog.String("error", err.Error()))
			}
			return ctx.Err()
		case <-ticker.C:
			if err := a.Flush(ctx); err != nil {
				a.logger.Error("flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archiveKey builds "prefix/YYYY/MM/DD/HHMMSS.jsonl" from the batch time.
func archiveKey(prefix string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("%s/%s/%s.jsonl", prefix, at.Format("2006/01/02"), at.Format("150405"))
}

// marshalJSONL encodes each element as one JSON line.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
