package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/picsum-gallery/pkg/logging"
	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

var picsumLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "picsum_lookups_total",
	Help: "Single-photo lookup attempts by step and result",
}, []string{"step", "result"})

// LookupStep is one way of locating a photo by id.
type LookupStep interface {
	Name() string
	Lookup(ctx context.Context, id string) (photo.Photo, error)
}

// Resolver runs lookup steps in order. Any failure of a step falls
// through to the next one; the last step's error is returned.
type Resolver struct {
	steps  []LookupStep
	logger zerolog.Logger
}

// NewResolver creates a resolver over steps.
func NewResolver(steps ...LookupStep) *Resolver {
	return &Resolver{
		steps:  steps,
		logger: logging.NewLogger("picsum-client"),
	}
}

// Steps returns the step names in order.
func (r *Resolver) Steps() []string {
	names := make([]string, 0, len(r.steps))
	for _, step := range r.steps {
		names = append(names, step.Name())
	}
	return names
}

// Resolve returns the first photo any step finds.
func (r *Resolver) Resolve(ctx context.Context, id string) (photo.Photo, error) {
	if len(r.steps) == 0 {
		return photo.Photo{}, fmt.Errorf("no lookup steps configured")
	}

	var lastErr error
	for i, step := range r.steps {
		p, err := step.Lookup(ctx, id)
		if err == nil {
			picsumLookupsTotal.WithLabelValues(step.Name(), "found").Inc()
			return p, nil
		}
		lastErr = err

		result := "error"
		if errors.Is(err, ErrNotFound) {
			result = "not_found"
		}
		picsumLookupsTotal.WithLabelValues(step.Name(), result).Inc()

		if ctx.Err() != nil {
			return photo.Photo{}, asNetworkError(step.Name(), err)
		}

		if i < len(r.steps)-1 {
			r.logger.Debug().
				Err(err).
				Str("id", id).
				Str("step", step.Name()).
				Str("next", r.steps[i+1].Name()).
				Msg("Lookup step failed, falling through")
		}
	}

	return photo.Photo{}, lastErr
}

// DirectLookup asks the info endpoint for the photo.
type DirectLookup struct {
	client *Client
}

// NewDirectLookup creates the info endpoint step.
func NewDirectLookup(c *Client) DirectLookup {
	return DirectLookup{client: c}
}

// Name implements LookupStep.
func (DirectLookup) Name() string { return "direct" }

// Lookup implements LookupStep.
func (d DirectLookup) Lookup(ctx context.Context, id string) (photo.Photo, error) {
	return d.client.PhotoInfo(ctx, id)
}

// ScanLookup walks the list pages until it sees the id.
type ScanLookup struct {
	scanner *pagination.Scanner
}

// NewScanLookup creates the list scan step.
func NewScanLookup(scanner *pagination.Scanner) ScanLookup {
	return ScanLookup{scanner: scanner}
}

// Name implements LookupStep.
func (ScanLookup) Name() string { return "scan" }

// Lookup implements LookupStep. It returns *NotFoundError when the scan
// ends without a match and *NetworkError when a page fails.
func (s ScanLookup) Lookup(ctx context.Context, id string) (photo.Photo, error) {
	var found photo.Photo
	var ok bool

	scanned, err := s.scanner.Scan(ctx, func(page int, photos []photo.Photo) bool {
		for _, p := range photos {
			if p.ID == id {
				found, ok = p, true
				return true
			}
		}
		return false
	})
	if ok {
		return found, nil
	}
	if err != nil {
		return photo.Photo{}, asNetworkError("scan", err)
	}
	return photo.Photo{}, &NotFoundError{ID: id, PagesScanned: scanned}
}
