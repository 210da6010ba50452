package pagination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/picsum-gallery/pkg/logging"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

// DefaultPageSize is the gallery page size.
const DefaultPageSize = 20

var (
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("gallery closed")

	// ErrSuperseded is returned to callers waiting on a load whose result
	// was discarded by Refresh.
	ErrSuperseded = errors.New("load superseded by refresh")
)

// Prometheus metrics for gallery loads.
var (
	galleryLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picsum_gallery_loads_total",
		Help: "Completed page loads by result (page, end, error, discarded)",
	}, []string{"result"})

	galleryLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "picsum_gallery_load_duration_seconds",
		Help:    "Duration of page loads",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	galleryJoinedLoadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picsum_gallery_joined_loads_total",
		Help: "LoadNext calls that joined an in-flight load instead of issuing a request",
	})

	galleryDuplicatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "picsum_gallery_duplicates_dropped_total",
		Help: "Photos dropped because their id was already in the gallery",
	})
)

// Status is the controller's load state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusExhausted Status = "exhausted"
	StatusErrored   Status = "errored"
)

// Fetcher fetches one page of the photo list.
type Fetcher interface {
	ListPhotos(ctx context.Context, page, pageSize int) ([]photo.Photo, error)
}

// Config holds controller configuration.
type Config struct {
	// PageSize is requested per page. A page shorter than this ends the gallery.
	PageSize int
	// LoadTimeout bounds a single page load. Zero means no bound beyond
	// the fetcher's own.
	LoadTimeout time.Duration
}

// Snapshot is an immutable copy of the gallery state.
type Snapshot struct {
	Items      []photo.Photo `json:"items"`
	Page       int           `json:"page"`
	HasMore    bool          `json:"has_more"`
	IsFetching bool          `json:"is_fetching"`
	Err        error         `json:"-"`
	Message    string        `json:"message,omitempty"`
	Status     Status        `json:"status"`
}

// call is one in-flight page load. err is written before done is closed.
type call struct {
	page   int
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

func (c *call) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Controller owns one gallery's pagination state.
type Controller struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger

	base context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	items      []photo.Photo
	seen       map[string]struct{}
	page       int
	hasMore    bool
	err        error
	inflight   *call
	generation uint64
	closed     bool
}

// New creates a controller with nothing loaded. The first LoadNext
// requests page 1.
func New(fetcher Fetcher, config Config) *Controller {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}

	base, stop := context.WithCancel(context.Background())
	return &Controller{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("pagination"),
		base:    base,
		stop:    stop,
		seen:    make(map[string]struct{}),
		hasMore: true,
	}
}

// PageSize returns the configured page size.
func (c *Controller) PageSize() int {
	return c.config.PageSize
}

// LoadNext loads the page after the last loaded one. If a load is already
// running it waits for that load and returns its result. It is a no-op
// once the gallery is exhausted.
//
// ctx only bounds the wait: a shared load keeps running when one waiter
// gives up.
func (c *Controller) LoadNext(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if cl := c.inflight; cl != nil {
		c.mu.Unlock()
		galleryJoinedLoadsTotal.Inc()
		c.logger.Debug().Int("page", cl.page).Msg("Joining in-flight load")
		return cl.wait(ctx)
	}
	if !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	cl := c.startLocked(c.page+1, nil)
	c.mu.Unlock()

	return cl.wait(ctx)
}

// Refresh discards the gallery and loads page 1. A running load is
// cancelled and finishes before page 1 is requested; its result is dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	var after <-chan struct{}
	if old := c.inflight; old != nil {
		old.cancel()
		after = old.done
	}

	c.generation++
	c.items = nil
	c.seen = make(map[string]struct{})
	c.page = 0
	c.hasMore = true
	c.err = nil
	c.inflight = nil

	c.logger.Info().Msg("Gallery refresh")
	cl := c.startLocked(1, after)
	c.mu.Unlock()

	return cl.wait(ctx)
}

// Close cancels any running load and waits for it. Results that arrive
// afterwards are dropped.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	cl := c.inflight
	c.inflight = nil
	c.mu.Unlock()

	c.stop()
	if cl != nil {
		<-cl.done
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Items:      append([]photo.Photo(nil), c.items...),
		Page:       c.page,
		HasMore:    c.hasMore,
		IsFetching: c.inflight != nil,
		Err:        c.err,
	}
	switch {
	case snap.IsFetching:
		snap.Status = StatusLoading
	case snap.Err != nil:
		snap.Status = StatusErrored
		snap.Message = ErrorMessage(snap.Err)
	case !snap.HasMore:
		snap.Status = StatusExhausted
	default:
		snap.Status = StatusIdle
	}
	return snap
}

// ErrorMessage turns a load error into text fit for the gallery view.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "The photo service took too long to respond. Please try again."
	case errors.Is(err, context.Canceled):
		return "Loading was cancelled."
	default:
		return "Failed to load photos. Please try again."
	}
}

// startLocked registers and launches a load of page. If after is non-nil
// the request waits for it to close first. c.mu must be held.
func (c *Controller) startLocked(page int, after <-chan struct{}) *call {
	ctx, cancel := context.WithCancel(c.base)
	if c.config.LoadTimeout > 0 {
		ctx, cancel = withTimeout(ctx, cancel, c.config.LoadTimeout)
	}

	cl := &call{
		page:   page,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	c.err = nil
	c.inflight = cl

	go c.run(ctx, cl, c.generation, after)
	return cl
}

func withTimeout(parent context.Context, parentCancel context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		cancel()
		parentCancel()
	}
}

func (c *Controller) run(ctx context.Context, cl *call, generation uint64, after <-chan struct{}) {
	defer close(cl.done)
	defer cl.cancel()

	if after != nil {
		<-after
	}

	start := time.Now()
	c.logger.Debug().Int("page", cl.page).Msg("Loading page")

	var photos []photo.Photo
	err := ctx.Err()
	if err == nil {
		photos, err = c.fetcher.ListPhotos(ctx, cl.page, c.config.PageSize)
	}
	galleryLoadDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight == cl {
		c.inflight = nil
	}

	if c.closed || generation != c.generation {
		galleryLoadsTotal.WithLabelValues("discarded").Inc()
		c.logger.Debug().Int("page", cl.page).Msg("Discarding superseded load")
		if c.closed {
			cl.err = ErrClosed
		} else {
			cl.err = ErrSuperseded
		}
		return
	}

	if err != nil {
		c.err = err
		cl.err = err
		galleryLoadsTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Int("page", cl.page).Msg("Page load failed")
		return
	}

	added := c.appendLocked(photos)
	c.page = cl.page
	if len(photos) < c.config.PageSize {
		c.hasMore = false
		galleryLoadsTotal.WithLabelValues("end").Inc()
		c.logger.Info().
			Int("page", cl.page).
			Int("items", len(c.items)).
			Msg("Reached end of gallery")
	} else {
		galleryLoadsTotal.WithLabelValues("page").Inc()
	}

	c.logger.Debug().
		Int("page", cl.page).
		Int("received", len(photos)).
		Int("added", added).
		Dur("duration", time.Since(start)).
		Msg("Page applied")
}

// appendLocked appends photos whose ids are not yet present and returns
// how many were added.
func (c *Controller) appendLocked(photos []photo.Photo) int {
	added := 0
	for _, p := range photos {
		if _, dup := c.seen[p.ID]; dup {
			galleryDuplicatesDropped.Inc()
			continue
		}
		c.seen[p.ID] = struct{}{}
		c.items = append(c.items, p)
		added++
	}
	return added
}
