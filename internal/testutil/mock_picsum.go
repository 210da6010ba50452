// Package testutil provides testing utilities for the picsum gallery.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

// MockResponse defines the behavior for a canned mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPicsum is a configurable in-process Lorem Picsum server. It serves
// a fixed catalog through the list and info endpoints.
type MockPicsum struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	catalog  []photo.Photo

	infoStatus int
	pageFaults map[int][]int
	delay      time.Duration
	hold       chan struct{}

	// Tracking
	RequestCount      int
	ConditionalCount  int
	ListPages         []int
	InfoIDs           []string
	LastRequestHeader http.Header
}

// NewMockPicsum creates a mock server over the given catalog.
func NewMockPicsum(catalog []photo.Photo) *MockPicsum {
	mock := &MockPicsum{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		catalog:    catalog,
		pageFaults: make(map[int][]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/list", mock.listHandler)
	mux.HandleFunc("GET /list", mock.listHandler)
	mux.HandleFunc("GET /id/{id}/info", mock.infoHandler)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.ConditionalCount++
		}
		handler, exists := mock.handlers[r.URL.Path]
		delay := mock.delay
		hold := mock.hold
		mock.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if delay > 0 {
			time.Sleep(delay)
		}

		if exists {
			handler(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	}))

	return mock
}

// Catalog builds n photos with ids "0".."n-1".
func Catalog(n int) []photo.Photo {
	photos := make([]photo.Photo, 0, n)
	for i := 0; i < n; i++ {
		photos = append(photos, Photo(strconv.Itoa(i)))
	}
	return photos
}

// Photo builds one catalog entry for id.
func Photo(id string) photo.Photo {
	return photo.Photo{
		ID:          id,
		Author:      "Author " + id,
		Width:       5000,
		Height:      3333,
		URL:         "https://unsplash.com/photos/" + id,
		DownloadURL: fmt.Sprintf("https://picsum.photos/id/%s/5000/3333", id),
	}
}

// URL returns the mock server URL.
func (m *MockPicsum) URL() string {
	return m.server.URL
}

// Close shuts down the mock server. Held requests are released first.
func (m *MockPicsum) Close() {
	m.Release()
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPicsum) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.ListPages = nil
	m.InfoIDs = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockPicsum) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockPicsum) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCatalog replaces the served catalog.
func (m *MockPicsum) SetCatalog(catalog []photo.Photo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = catalog
}

// SetInfoStatus makes every info request fail with status. Zero restores
// normal behaviour.
func (m *MockPicsum) SetInfoStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoStatus = status
}

// FailPage queues failure statuses for a list page. Each request for the
// page consumes one status; once the queue is empty the page is served.
func (m *MockPicsum) FailPage(page int, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageFaults[page] = append(m.pageFaults[page], statuses...)
}

// SetDelay delays every response.
func (m *MockPicsum) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Hold blocks every subsequent request until Release is called.
func (m *MockPicsum) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hold == nil {
		m.hold = make(chan struct{})
	}
}

// Release unblocks held requests.
func (m *MockPicsum) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hold != nil {
		close(m.hold)
		m.hold = nil
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPicsum) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockPicsum) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetListPages returns the list pages requested, in arrival order.
func (m *MockPicsum) GetListPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.ListPages...)
}

// GetInfoIDs returns the ids requested from the info endpoint.
func (m *MockPicsum) GetInfoIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.InfoIDs...)
}

func (m *MockPicsum) listHandler(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 30
	}

	m.mu.Lock()
	m.ListPages = append(m.ListPages, page)
	var fault int
	if queue := m.pageFaults[page]; len(queue) > 0 {
		fault = queue[0]
		m.pageFaults[page] = queue[1:]
	}
	catalog := m.catalog
	m.mu.Unlock()

	if fault != 0 {
		writeError(w, fault)
		return
	}

	start := (page - 1) * limit
	end := start + limit
	if start > len(catalog) {
		start = len(catalog)
	}
	if end > len(catalog) {
		end = len(catalog)
	}

	etag := fmt.Sprintf(`"list-%d-%d-%d"`, page, limit, len(catalog))
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("Cache-Control", "max-age=60")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, catalog[start:end])
}

func (m *MockPicsum) infoHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m.mu.Lock()
	m.InfoIDs = append(m.InfoIDs, id)
	status := m.infoStatus
	catalog := m.catalog
	m.mu.Unlock()

	if status != 0 {
		writeError(w, status)
		return
	}

	for _, p := range catalog {
		if p.ID == id {
			writeJSON(w, p)
			return
		}
	}
	writeError(w, http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=60")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	fmt.Fprintln(w, http.StatusText(status))
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":          `"test-etag-123"`,
			"Cache-Control": "max-age=300",
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "Too Many Requests",
		Headers: map[string]string{
			"Retry-After": retryAfter,
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       "Internal Server Error",
	}
}
