package archive

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sizedServer serves /<n> as n bytes of 'x' and tracks peak concurrency.
func sizedServer(t *testing.T, delay time.Duration) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(delay)

		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Write(bytes.Repeat([]byte("x"), n))
	}))
	t.Cleanup(srv.Close)
	return srv, &peak
}

func TestDownloadBatchesAndReportsProgress(t *testing.T) {
	srv, peak := sizedServer(t, 20*time.Millisecond)
	dir := t.TempDir()

	var plans []Plan
	for i, size := range []uint64{10, 20, 30, 40} {
		plans = append(plans, Plan{
			URL:  srv.URL + "/" + strconv.FormatUint(size, 10),
			Size: size,
			Path: filepath.Join(dir, "nested", "a"+strconv.Itoa(i)+".jar"),
		})
	}

	var mu sync.Mutex
	var updates []float64
	d := NewDownloader(DownloaderOptions{})
	err := d.Download(context.Background(), plans, 2, func(f float64) {
		mu.Lock()
		updates = append(updates, f)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.Len(t, updates, 4)
	assert.InDelta(t, 0.3, updates[1], 1e-9, "first batch should complete 30 of 100 bytes")
	assert.InDelta(t, 1.0, updates[3], 1e-9)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i], updates[i-1])
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))

	for _, p := range plans {
		data, err := os.ReadFile(p.Path)
		require.NoError(t, err)
		assert.Len(t, data, int(p.Size))
	}
}

func TestDownloadZeroSizeReportsComplete(t *testing.T) {
	srv, _ := sizedServer(t, 0)
	dir := t.TempDir()

	plans := []Plan{
		{URL: srv.URL + "/0", Path: filepath.Join(dir, "a.jar")},
		{URL: srv.URL + "/0", Path: filepath.Join(dir, "b.jar")},
	}

	var updates []float64
	var mu sync.Mutex
	err := NewDownloader(DownloaderOptions{}).Download(context.Background(), plans, 10, func(f float64) {
		mu.Lock()
		updates = append(updates, f)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, updates)
}

func TestDownloadFailureKeepsWrittenFiles(t *testing.T) {
	srv, _ := sizedServer(t, 0)
	dir := t.TempDir()

	plans := []Plan{
		{URL: srv.URL + "/5", Size: 5, Path: filepath.Join(dir, "ok.jar")},
		{URL: srv.URL + "/missing", Size: 5, Path: filepath.Join(dir, "missing.jar")},
		{URL: srv.URL + "/5", Size: 5, Path: filepath.Join(dir, "later.jar")},
	}

	err := NewDownloader(DownloaderOptions{}).Download(context.Background(), plans, 2, nil)
	require.Error(t, err)
	assert.Equal(t, KindTransfer, KindOf(err))

	assert.True(t, fileExists(plans[0].Path), "sibling in failed batch should be written")
	assert.False(t, fileExists(plans[1].Path))
	assert.False(t, fileExists(plans[2].Path), "later batches must not start")
}

func TestDownloadTimeout(t *testing.T) {
	srv, _ := sizedServer(t, 500*time.Millisecond)

	plans := []Plan{{URL: srv.URL + "/1", Size: 1, Path: filepath.Join(t.TempDir(), "slow.jar")}}
	err := NewDownloader(DownloaderOptions{Timeout: 20 * time.Millisecond}).Download(context.Background(), plans, 1, nil)
	require.Error(t, err)
	assert.Equal(t, KindTransfer, KindOf(err))
}

func TestDownloadEmptyPlan(t *testing.T) {
	called := false
	err := NewDownloader(DownloaderOptions{}).Download(context.Background(), nil, 4, func(float64) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
}
