package fx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulquant/kimparb/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateSeededWithDefault(t *testing.T) {
	p := NewPoller(Config{DefaultRate: 1400}, discardLogger())

	rate, err := p.Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1400.0, rate.Rate)
	assert.Equal(t, "default", rate.Source)
}

func TestPollUpdatesRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"code":"FRX.KRWUSD","basePrice":1481.5,"timestamp":1724650000000}]`))
	}))
	defer srv.Close()

	p := NewPoller(Config{URL: srv.URL, DefaultRate: 1400}, discardLogger())

	var notified atomic.Bool
	p.OnRate(func(r domain.FxRate) {
		assert.Equal(t, 1481.5, r.Rate)
		notified.Store(true)
	})

	p.poll(context.Background())

	rate, err := p.Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1481.5, rate.Rate)
	assert.Equal(t, "FRX.KRWUSD", rate.Source)
	assert.True(t, notified.Load())
}

func TestPollFailureKeepsPreviousRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPoller(Config{URL: srv.URL, DefaultRate: 1400}, discardLogger())
	p.poll(context.Background())

	rate, err := p.Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1400.0, rate.Rate)
}

func TestRateStaleAfterWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"code":"FRX.KRWUSD","basePrice":1481.5,"timestamp":1}]`))
	}))
	defer srv.Close()

	p := NewPoller(Config{URL: srv.URL, DefaultRate: 1400, StaleAfter: time.Minute}, discardLogger())
	p.poll(context.Background()) // timestamp 1 ms epoch, ancient

	_, err := p.Rate(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPollRejectsNonPositiveRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"code":"FRX.KRWUSD","basePrice":0}]`))
	}))
	defer srv.Close()

	p := NewPoller(Config{URL: srv.URL, DefaultRate: 1400}, discardLogger())
	p.poll(context.Background())

	rate, err := p.Rate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1400.0, rate.Rate) // bad payload never replaces the seed
}
