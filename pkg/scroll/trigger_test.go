package scroll

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeLoader counts LoadNext calls and optionally blocks them.
type fakeLoader struct {
	mu       sync.Mutex
	snapshot pagination.Snapshot
	calls    int
	err      error
	gate     chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{snapshot: pagination.Snapshot{HasMore: true, Status: pagination.StatusIdle}}
}

func (f *fakeLoader) LoadNext(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeLoader) Snapshot() pagination.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	require.NotNil(t, ch, "trigger did not fire")
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("load result never delivered")
		return nil
	}
}

func TestViewport_SentinelVisible(t *testing.T) {
	tests := []struct {
		name   string
		vp     Viewport
		margin int
		want   bool
	}{
		{"empty gallery", Viewport{Offset: 0, Height: 10, Total: 0}, 0, true},
		{"sentinel inside viewport", Viewport{Offset: 0, Height: 10, Total: 8}, 0, true},
		{"sentinel just below viewport", Viewport{Offset: 0, Height: 10, Total: 10}, 0, false},
		{"sentinel within margin", Viewport{Offset: 0, Height: 10, Total: 12}, 3, true},
		{"sentinel beyond margin", Viewport{Offset: 0, Height: 10, Total: 13}, 3, false},
		{"scrolled to bottom", Viewport{Offset: 40, Height: 10, Total: 50}, 0, false},
		{"scrolled past last row", Viewport{Offset: 41, Height: 10, Total: 50}, 0, true},
		{"zero height", Viewport{Offset: 0, Height: 0, Total: 0}, 3, false},
		{"negative margin treated as zero", Viewport{Offset: 0, Height: 10, Total: 10}, -5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vp.SentinelVisible(tt.margin))
		})
	}
}

func TestNew_DefaultMargin(t *testing.T) {
	assert.Equal(t, DefaultMargin, New(newFakeLoader(), -1).Margin())
	assert.Equal(t, 0, New(newFakeLoader(), 0).Margin())
	assert.True(t, New(newFakeLoader(), 1).Armed())
}

func TestTrigger_NotVisibleDoesNothing(t *testing.T) {
	loader := newFakeLoader()
	trigger := New(loader, 2)

	ch := trigger.Observe(context.Background(), Viewport{Offset: 0, Height: 10, Total: 40})
	assert.Nil(t, ch)
	assert.Equal(t, 0, loader.callCount())
	assert.True(t, trigger.Armed())
}

func TestTrigger_FiresAndRearms(t *testing.T) {
	loader := newFakeLoader()
	trigger := New(loader, 2)
	vp := Viewport{Offset: 30, Height: 10, Total: 40}

	require.NoError(t, wait(t, trigger.Observe(context.Background(), vp)))
	assert.Equal(t, 1, loader.callCount())
	assert.True(t, trigger.Armed())

	require.NoError(t, wait(t, trigger.Observe(context.Background(), vp)))
	assert.Equal(t, 2, loader.callCount())
}

func TestTrigger_DisarmedWhileLoading(t *testing.T) {
	loader := newFakeLoader()
	loader.gate = make(chan struct{})
	trigger := New(loader, 2)
	vp := Viewport{Offset: 30, Height: 10, Total: 40}

	ch := trigger.Observe(context.Background(), vp)
	require.NotNil(t, ch)
	assert.False(t, trigger.Armed())

	for i := 0; i < 5; i++ {
		assert.Nil(t, trigger.Observe(context.Background(), vp))
	}

	close(loader.gate)
	require.NoError(t, wait(t, ch))
	assert.Equal(t, 1, loader.callCount())
	assert.True(t, trigger.Armed())
}

func TestTrigger_RespectsGalleryState(t *testing.T) {
	vp := Viewport{Offset: 0, Height: 10, Total: 5}

	exhausted := newFakeLoader()
	exhausted.snapshot = pagination.Snapshot{HasMore: false, Status: pagination.StatusExhausted}
	assert.Nil(t, New(exhausted, 0).Observe(context.Background(), vp))
	assert.Equal(t, 0, exhausted.callCount())

	loading := newFakeLoader()
	loading.snapshot = pagination.Snapshot{HasMore: true, IsFetching: true, Status: pagination.StatusLoading}
	assert.Nil(t, New(loading, 0).Observe(context.Background(), vp))
	assert.Equal(t, 0, loading.callCount())
}

func TestTrigger_RearmsAfterFailure(t *testing.T) {
	loader := newFakeLoader()
	loader.err = errors.New("boom")
	trigger := New(loader, 0)
	vp := Viewport{Offset: 0, Height: 10, Total: 5}

	err := wait(t, trigger.Observe(context.Background(), vp))
	assert.EqualError(t, err, "boom")
	assert.True(t, trigger.Armed())
}

// pagedFetcher serves a catalog of total photos.
type pagedFetcher struct {
	total int
}

func (p pagedFetcher) ListPhotos(ctx context.Context, page, pageSize int) ([]photo.Photo, error) {
	var photos []photo.Photo
	for i := (page - 1) * pageSize; i < page*pageSize && i < p.total; i++ {
		photos = append(photos, photo.Photo{ID: strconv.Itoa(i), Width: 1, Height: 1})
	}
	return photos, nil
}

func TestTrigger_DrivesController(t *testing.T) {
	ctrl := pagination.New(pagedFetcher{total: 47}, pagination.Config{PageSize: 20})
	defer ctrl.Close()

	trigger := New(ctrl, DefaultMargin)
	ctx := context.Background()

	// One photo per row, ten visible rows; scroll to the bottom after every load.
	for i := 0; i < 10; i++ {
		total := len(ctrl.Snapshot().Items)
		vp := Viewport{Offset: max(0, total-10), Height: 10, Total: total}
		ch := trigger.Observe(ctx, vp)
		if ch == nil {
			break
		}
		require.NoError(t, wait(t, ch))
	}

	snap := ctrl.Snapshot()
	assert.Len(t, snap.Items, 47)
	assert.Equal(t, 3, snap.Page)
	assert.False(t, snap.HasMore)
	assert.Nil(t, trigger.Observe(ctx, Viewport{Offset: 37, Height: 10, Total: 47}))
}
