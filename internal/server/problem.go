package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/picsum-gallery/pkg/client"
	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound    = "https://picsum-gallery.dev/problems/not-found"
	ProblemTypeBadRequest  = "https://picsum-gallery.dev/problems/bad-request"
	ProblemTypeInternal    = "https://picsum-gallery.dev/problems/internal-error"
	ProblemTypeRateLimited = "https://picsum-gallery.dev/problems/rate-limited"
	ProblemTypeUpstream    = "https://picsum-gallery.dev/problems/upstream-error"
	ProblemTypeTimeout     = "https://picsum-gallery.dev/problems/upstream-timeout"
	ProblemTypeGone        = "https://picsum-gallery.dev/problems/gallery-closed"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: instance,
	})
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeBadRequest,
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: instance,
	})
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: instance,
	})
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeRateLimited,
		Title:    "Too Many Requests",
		Status:   http.StatusTooManyRequests,
		Detail:   detail,
		Instance: instance,
	})
}

// BadGateway writes a 502 problem response for photo service failures.
func BadGateway(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeUpstream,
		Title:    "Bad Gateway",
		Status:   http.StatusBadGateway,
		Detail:   detail,
		Instance: instance,
	})
}

// GatewayTimeout writes a 504 problem response.
func GatewayTimeout(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeTimeout,
		Title:    "Gateway Timeout",
		Status:   http.StatusGatewayTimeout,
		Detail:   detail,
		Instance: instance,
	})
}

// Gone writes a 410 problem response for a gallery torn down mid-request.
func Gone(w http.ResponseWriter, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     ProblemTypeGone,
		Title:    "Gone",
		Status:   http.StatusGone,
		Detail:   detail,
		Instance: instance,
	})
}

// WriteError maps client and gallery errors onto problem responses.
func WriteError(w http.ResponseWriter, err error, instance string) {
	var netErr *client.NetworkError
	switch {
	case errors.Is(err, client.ErrInvalidArgument):
		BadRequest(w, err.Error(), instance)
	case errors.Is(err, client.ErrNotFound):
		NotFound(w, err.Error(), instance)
	case errors.Is(err, pagination.ErrClosed), errors.Is(err, pagination.ErrSuperseded):
		Gone(w, err.Error(), instance)
	case errors.Is(err, context.DeadlineExceeded):
		GatewayTimeout(w, pagination.ErrorMessage(err), instance)
	case errors.Is(err, client.ErrRateLimited):
		RateLimited(w, err.Error(), instance)
	case errors.As(err, &netErr):
		if netErr.ErrorClass == client.ErrorClassRateLimit {
			RateLimited(w, err.Error(), instance)
			return
		}
		BadGateway(w, err.Error(), instance)
	default:
		InternalError(w, err.Error(), instance)
	}
}
