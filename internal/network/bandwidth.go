// Package network provides global bandwidth limiting for archive transfers.
package network

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// BandwidthManager handles global speed limiting with zero overhead when disabled
type BandwidthManager struct {
	globalLimiter *rate.Limiter
	limitEnabled  atomic.Bool
	mu            sync.RWMutex
	burst         int
}

// NewBandwidthManager creates a new bandwidth manager with no limits
func NewBandwidthManager() *BandwidthManager {
	return &BandwidthManager{
		globalLimiter: rate.NewLimiter(rate.Inf, 0),
	}
}

// SetLimit updates the global speed limit in bytes per second.
// 0 means unlimited.
func (bm *BandwidthManager) SetLimit(bytesPerSec int64) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bytesPerSec <= 0 {
		bm.limitEnabled.Store(false)
		bm.globalLimiter.SetLimit(rate.Inf)
		bm.burst = 0
		return
	}
	bm.globalLimiter.SetLimit(rate.Limit(bytesPerSec))
	bm.globalLimiter.SetBurst(int(bytesPerSec)) // Allow 1s burst
	bm.burst = int(bytesPerSec)
	bm.limitEnabled.Store(true)
}

// Limit returns the current limit in bytes per second, 0 when unlimited.
func (bm *BandwidthManager) Limit() int64 {
	if !bm.limitEnabled.Load() {
		return 0
	}
	bm.mu.RLock()
	defer bm.mu.RUnlock()
	return int64(bm.burst)
}

// Wait blocks until the requested bytes can be consumed.
// Returns immediately if the limit is disabled.
func (bm *BandwidthManager) Wait(ctx context.Context, bytes int) error {
	if !bm.limitEnabled.Load() {
		return nil
	}

	// SetLimit may have disabled the limit since the check above
	bm.mu.RLock()
	enabled, burst := bm.limitEnabled.Load(), bm.burst
	bm.mu.RUnlock()
	if !enabled || burst <= 0 {
		return nil
	}

	// WaitN rejects requests larger than the burst
	for bytes > 0 {
		n := min(bytes, burst)
		if err := bm.globalLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// Reader wraps r so that every read is charged against the global limit.
func (bm *BandwidthManager) Reader(ctx context.Context, r io.Reader) io.Reader {
	return &limitedReader{ctx: ctx, r: r, bm: bm}
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	bm  *BandwidthManager
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := lr.bm.Wait(lr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
