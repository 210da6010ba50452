// Package scroll turns viewport movement into gallery loads.
//
// A Trigger watches the sentinel row that sits after the last photo. When
// the sentinel comes within the viewport plus a pre-trigger margin it asks
// the gallery for the next page, then disarms until that load completes.
package scroll

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/picsum-gallery/pkg/logging"
	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
)

// DefaultMargin is the pre-trigger distance in rows.
const DefaultMargin = 3

// Loader is the gallery side of the trigger.
type Loader interface {
	LoadNext(ctx context.Context) error
	Snapshot() pagination.Snapshot
}

// Viewport describes the visible window over the gallery rows.
type Viewport struct {
	// Offset is the first visible row.
	Offset int
	// Height is the number of visible rows.
	Height int
	// Total is the number of rows holding photos. The sentinel is row Total.
	Total int
}

// SentinelVisible reports whether the sentinel row lies within the
// viewport extended by margin rows.
func (v Viewport) SentinelVisible(margin int) bool {
	if v.Height <= 0 {
		return false
	}
	if margin < 0 {
		margin = 0
	}
	return v.Total < v.Offset+v.Height+margin
}

// Trigger fires LoadNext when the sentinel becomes visible.
type Trigger struct {
	loader Loader
	margin int
	logger zerolog.Logger

	mu    sync.Mutex
	armed bool
}

// New creates an armed trigger. A negative margin selects DefaultMargin.
func New(loader Loader, margin int) *Trigger {
	if margin < 0 {
		margin = DefaultMargin
	}
	return &Trigger{
		loader: loader,
		margin: margin,
		logger: logging.NewLogger("scroll"),
		armed:  true,
	}
}

// Margin returns the pre-trigger distance in rows.
func (t *Trigger) Margin() int {
	return t.margin
}

// Armed reports whether the next visible sentinel will fire a load.
func (t *Trigger) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Observe reports a viewport change. It returns nil when nothing fires.
// Otherwise the load runs in the background and its result is delivered
// on the returned channel, after the trigger has re-armed.
func (t *Trigger) Observe(ctx context.Context, vp Viewport) <-chan error {
	if !vp.SentinelVisible(t.margin) {
		return nil
	}

	t.mu.Lock()
	if !t.armed {
		t.mu.Unlock()
		return nil
	}
	snap := t.loader.Snapshot()
	if !snap.HasMore || snap.IsFetching {
		t.mu.Unlock()
		return nil
	}
	t.armed = false
	t.mu.Unlock()

	t.logger.Debug().
		Int("offset", vp.Offset).
		Int("height", vp.Height).
		Int("total", vp.Total).
		Int("page", snap.Page+1).
		Msg("Sentinel visible, loading next page")

	result := make(chan error, 1)
	go func() {
		err := t.loader.LoadNext(ctx)

		t.mu.Lock()
		t.armed = true
		t.mu.Unlock()

		result <- err
		close(result)
	}()
	return result
}
