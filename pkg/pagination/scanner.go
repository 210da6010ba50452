package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/picsum-gallery/pkg/logging"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

// ScanConfig holds scanner configuration.
type ScanConfig struct {
	// PageSize is the limit requested per list page.
	PageSize int
	// PageLimit is the last page the scan may request.
	PageLimit int
	// Concurrency is how many pages are fetched in parallel per window.
	// 1 requests pages strictly one after another; higher values trade
	// request order for latency.
	Concurrency int
	// Timeout per page fetch.
	Timeout time.Duration
}

// DefaultScanConfig covers the first 1000 catalog entries.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		PageSize:    100,
		PageLimit:   10,
		Concurrency: 1,
		Timeout:     15 * time.Second,
	}
}

// VisitFunc receives each scanned page in order. Returning true stops the scan.
type VisitFunc func(page int, photos []photo.Photo) bool

// Scanner walks the photo list page by page.
type Scanner struct {
	fetcher Fetcher
	config  ScanConfig
	logger  zerolog.Logger
}

// NewScanner creates a scanner. Zero config fields take their defaults.
func NewScanner(fetcher Fetcher, config ScanConfig) *Scanner {
	defaults := DefaultScanConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.PageLimit <= 0 {
		config.PageLimit = defaults.PageLimit
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Scanner{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("pagination"),
	}
}

// Config returns the effective configuration.
func (s *Scanner) Config() ScanConfig {
	return s.config
}

type pageResult struct {
	photos []photo.Photo
	err    error
}

// Scan visits pages 1..PageLimit in increasing order. It stops at the
// first page visit accepts, at a short page (end of catalog), at the page
// limit, or at the first failed page in order. The returned count is the
// number of pages visited.
func (s *Scanner) Scan(ctx context.Context, visit VisitFunc) (int, error) {
	start := time.Now()
	scanned := 0

	for first := 1; first <= s.config.PageLimit; first += s.config.Concurrency {
		last := min(first+s.config.Concurrency-1, s.config.PageLimit)
		results := s.fetchWindow(ctx, first, last)

		for i, res := range results {
			page := first + i
			if res.err != nil {
				s.logger.Warn().
					Err(res.err).
					Int("page", page).
					Int("pages_scanned", scanned).
					Msg("Scan aborted on failed page")
				return scanned, fmt.Errorf("scan page %d: %w", page, res.err)
			}

			scanned++
			if visit(page, res.photos) {
				s.logger.Debug().
					Int("page", page).
					Dur("duration", time.Since(start)).
					Msg("Scan matched")
				return scanned, nil
			}
			if len(res.photos) < s.config.PageSize {
				s.logger.Debug().
					Int("page", page).
					Int("pages_scanned", scanned).
					Msg("Scan reached end of catalog")
				return scanned, nil
			}
		}
	}

	s.logger.Debug().
		Int("pages_scanned", scanned).
		Dur("duration", time.Since(start)).
		Msg("Scan reached page limit")
	return scanned, nil
}

// fetchWindow fetches pages first..last in parallel. Every page gets its
// own result slot so a failure on a later page cannot mask a match on an
// earlier one. A short page marks the end of the catalog and cancels the
// pages after it.
func (s *Scanner) fetchWindow(ctx context.Context, first, last int) []pageResult {
	n := last - first + 1
	results := make([]pageResult, n)

	ctxs := make([]context.Context, n)
	cancels := make([]context.CancelFunc, n)
	for i := range n {
		ctxs[i], cancels[i] = context.WithCancel(ctx)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i := range n {
		page := first + i
		g.Go(func() error {
			if err := ctxs[i].Err(); err != nil {
				results[i] = pageResult{err: err}
				return nil
			}
			pageCtx, cancel := context.WithTimeout(ctxs[i], s.config.Timeout)
			defer cancel()

			photos, err := s.fetcher.ListPhotos(pageCtx, page, s.config.PageSize)
			results[i] = pageResult{photos: photos, err: err}
			if err == nil && len(photos) < s.config.PageSize {
				for _, later := range cancels[i+1:] {
					later()
				}
			}
			return nil
		})
	}
	g.Wait()

	return results
}
