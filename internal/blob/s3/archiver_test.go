package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulquant/kimparb/internal/domain"
)

// memWriter captures uploads in memory.
type memWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string][]byte)}
}

func (m *memWriter) Write(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func testSnapshot(venue domain.Venue, at time.Time) domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Venue:     venue,
		Symbol:    "KRW-XRP",
		Bids:      []domain.PriceLevel{{Price: 3100, Quantity: 10}},
		Asks:      []domain.PriceLevel{{Price: 3101, Quantity: 5}},
		Timestamp: at,
	}
}

func TestFlushWritesJSONLBatch(t *testing.T) {
	w := newMemWriter()
	a := NewSnapshotArchiver(w, "orderbooks", time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	at := time.Date(2026, 8, 26, 12, 30, 45, 0, time.UTC)
	a.Add(testSnapshot(domain.VenueUpbit, at.Add(-time.Second)))
	a.Add(testSnapshot(domain.VenueBinance, at))

	require.NoError(t, a.Flush(context.Background()))

	data, ok := w.objects["orderbooks/2026/08/26/123045.jsonl"]
	require.True(t, ok, "expected key derived from newest snapshot, got %v", keys(w))

	var lines int
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var snap domain.OrderBookSnapshot
		require.NoError(t, json.Unmarshal(sc.Bytes(), &snap))
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestFlushEmptyBufferIsNoop(t *testing.T) {
	w := newMemWriter()
	a := NewSnapshotArchiver(w, "orderbooks", time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, a.Flush(context.Background()))
	assert.Empty(t, w.objects)
}

func TestFlushDrainsBuffer(t *testing.T) {
	w := newMemWriter()
	a := NewSnapshotArchiver(w, "orderbooks", time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	a.Add(testSnapshot(domain.VenueUpbit, time.Now()))
	require.NoError(t, a.Flush(context.Background()))
	require.Len(t, w.objects, 1)

	// Second flush has nothing left to write.
	require.NoError(t, a.Flush(context.Background()))
	assert.Len(t, w.objects, 1)
}

func keys(m *memWriter) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	return out
}
