package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rtranslator/internal/filesystem"
	"rtranslator/internal/network"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// DownloaderOptions configures a Downloader. Zero values select defaults.
type DownloaderOptions struct {
	Client    *http.Client
	Bandwidth *network.BandwidthManager
	// Timeout bounds each transfer. 0 disables the deadline.
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// Downloader fetches planned archives in bounded batches.
type Downloader struct {
	client    *http.Client
	bandwidth *network.BandwidthManager
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger
}

// NewTransferClient returns an http.Client with a shared connection pool and
// no overall timeout; deadlines come from request contexts.
func NewTransferClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}

func NewDownloader(opts DownloaderOptions) *Downloader {
	d := &Downloader{
		client:    opts.Client,
		bandwidth: opts.Bandwidth,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
	if d.client == nil {
		d.client = NewTransferClient()
	}
	if d.bandwidth == nil {
		d.bandwidth = network.NewBandwidthManager()
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Download fetches every plan to its Path, at most limit at a time. Batches
// run to completion before the next one starts. onProgress receives the
// completed share of planned bytes after each finished transfer, and 1 when
// nothing has a known size. A failed transfer fails the whole download once
// its batch has drained; files already written stay on disk.
func (d *Downloader) Download(ctx context.Context, plans []Plan, limit int, onProgress func(float64)) error {
	if len(plans) == 0 {
		return nil
	}
	limit = max(limit, 1)

	var total uint64
	paths := make([]string, len(plans))
	for i, p := range plans {
		total += p.Size
		paths[i] = p.Path
	}
	if err := filesystem.PrepareDirs(paths, total); err != nil {
		return newError(KindTransfer, "prepare staging", err)
	}

	var (
		mu        sync.Mutex
		completed uint64
	)
	report := func(size uint64) {
		mu.Lock()
		defer mu.Unlock()
		completed += size
		fraction := 1.0
		if total > 0 {
			fraction = float64(completed) / float64(total)
		}
		if onProgress != nil {
			onProgress(fraction)
		}
	}

	d.logger.Debug("downloading archives", "count", len(plans), "size", humanize.Bytes(total), "limit", limit)

	for start := 0; start < len(plans); start += limit {
		batch := plans[start:min(start+limit, len(plans))]

		var g errgroup.Group
		for _, p := range batch {
			g.Go(func() error {
				if err := d.fetch(ctx, p); err != nil {
					return newError(KindTransfer, p.URL, err)
				}
				report(p.Size)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) fetch(ctx context.Context, p Plan) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode)
	}

	data, err := io.ReadAll(d.bandwidth.Reader(ctx, resp.Body))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	return writeFileAtomic(p.Path, data)
}

// writeFileAtomic writes data next to path and renames it into place so a
// partially written archive is never visible under its final name.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".part-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func statusError(status int) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("file not found on server (404)")
	case http.StatusForbidden:
		return fmt.Errorf("access denied by server (403)")
	case http.StatusTooManyRequests:
		return fmt.Errorf("too many requests (429)")
	default:
		return fmt.Errorf("server returned status %d", status)
	}
}
