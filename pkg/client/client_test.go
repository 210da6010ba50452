package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/picsum-gallery/internal/testutil"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
)

const testUserAgent = "PicsumGalleryTest/1.0.0 (test@example.com)"

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

// testConfig points a fast, unpaced client at baseURL.
func testConfig(redisClient *redis.Client, baseURL string) Config {
	cfg := DefaultConfig(redisClient, testUserAgent)
	cfg.BaseURL = baseURL
	cfg.RateLimit = 0
	cfg.Retry = fastRetry()
	cfg.Timeout = 5 * time.Second
	cfg.ScanPageSize = 10
	cfg.ScanPageLimit = 5
	cfg.ScanConcurrency = 1
	return cfg
}

func newTestClient(t *testing.T, mock *testutil.MockPicsum) *Client {
	t.Helper()
	c, err := New(testConfig(nil, mock.URL()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	valid := testConfig(nil, "https://picsum.photos")

	tests := []struct {
		name     string
		mutate   func(cfg *Config)
		errorMsg string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *Config) {},
		},
		{
			name:   "valid config with trailing slash",
			mutate: func(cfg *Config) { cfg.BaseURL = "https://picsum.photos/" },
		},
		{
			name:     "empty user agent",
			mutate:   func(cfg *Config) { cfg.UserAgent = "" },
			errorMsg: "user-agent is required",
		},
		{
			name:     "relative base url",
			mutate:   func(cfg *Config) { cfg.BaseURL = "picsum.photos" },
			errorMsg: `base url must be an absolute http(s) url (got "picsum.photos")`,
		},
		{
			name:     "unsupported scheme",
			mutate:   func(cfg *Config) { cfg.BaseURL = "ftp://picsum.photos" },
			errorMsg: `base url must be an absolute http(s) url (got "ftp://picsum.photos")`,
		},
		{
			name:     "list path without slash",
			mutate:   func(cfg *Config) { cfg.ListPath = "v2/list" },
			errorMsg: `list path must start with / (got "v2/list")`,
		},
		{
			name:     "negative rate limit",
			mutate:   func(cfg *Config) { cfg.RateLimit = -1 },
			errorMsg: "rate_limit must be >= 0 (got -1)",
		},
		{
			name:     "zero attempts",
			mutate:   func(cfg *Config) { cfg.Retry.MaxAttempts = 0 },
			errorMsg: "max_attempts must be >= 1 (got 0)",
		},
		{
			name:     "zero scan page limit",
			mutate:   func(cfg *Config) { cfg.ScanPageLimit = 0 },
			errorMsg: "scan_page_limit must be >= 1 (got 0)",
		},
		{
			name:     "zero scan page size",
			mutate:   func(cfg *Config) { cfg.ScanPageSize = 0 },
			errorMsg: "scan_page_size must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			client, err := New(cfg)

			if tt.errorMsg != "" {
				if err == nil {
					t.Fatalf("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Client is nil")
			}
			if client.GetCache() != nil {
				t.Error("cache should be disabled without Redis")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	cfg := DefaultConfig(redisClient, testUserAgent)

	if cfg.Redis != redisClient {
		t.Error("Redis client not set correctly")
	}
	if cfg.UserAgent != testUserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, testUserAgent)
	}
	if cfg.BaseURL != photo.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, photo.DefaultBaseURL)
	}
	if cfg.ListPath != DefaultListPath {
		t.Errorf("ListPath = %q, want %q", cfg.ListPath, DefaultListPath)
	}
	if cfg.RateLimit <= 0 {
		t.Errorf("RateLimit = %v, should be > 0", cfg.RateLimit)
	}
	if cfg.ScanPageSize*cfg.ScanPageLimit < 1000 {
		t.Errorf("scan budget %d x %d should cover 1000 photos", cfg.ScanPageLimit, cfg.ScanPageSize)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{http.StatusBadRequest, ErrorClassClient},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusNotModified, ErrorClassClient},
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusServiceUnavailable, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/v2/list":     "/v2/list",
		"/list":        "/list",
		"/id/237/info": "/id/{id}/info",
		"/id/0/info":   "/id/{id}/info",
		"/id/237/300":  "/id/237/300",
	}
	for path, want := range tests {
		if got := endpointLabel(path); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestListPhotos_Success(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	c := newTestClient(t, mock)

	photos, err := c.ListPhotos(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if len(photos) != 10 {
		t.Fatalf("len(photos) = %d, want 10", len(photos))
	}
	if photos[0].ID != "10" || photos[9].ID != "19" {
		t.Errorf("page 2 ids = %s..%s, want 10..19", photos[0].ID, photos[9].ID)
	}
	if photos[0].Author != "Author 10" || photos[0].Width != 5000 || photos[0].Height != 3333 {
		t.Errorf("unexpected record %+v", photos[0])
	}
	if photos[0].DownloadURL == "" || photos[0].URL == "" {
		t.Error("optional links not decoded")
	}

	if got := mock.GetListPages(); len(got) != 1 || got[0] != 2 {
		t.Errorf("ListPages = %v, want [2]", got)
	}
	if ua := mock.LastRequestHeader.Get("User-Agent"); ua != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", ua, testUserAgent)
	}
}

func TestListPhotos_EmptyPage(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	c := newTestClient(t, mock)

	photos, err := c.ListPhotos(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if photos == nil || len(photos) != 0 {
		t.Errorf("photos = %#v, want empty non-nil slice", photos)
	}
}

func TestListPhotos_InvalidArguments(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	c := newTestClient(t, mock)

	tests := []struct {
		name     string
		page     int
		pageSize int
	}{
		{"zero page", 0, 20},
		{"negative page", -1, 20},
		{"zero size", 1, 0},
		{"negative size", 1, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ListPhotos(context.Background(), tt.page, tt.pageSize)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	}

	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("invalid arguments reached the network: %d requests", n)
	}
}

func TestListPhotos_LegacyListPath(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(5))
	defer mock.Close()

	cfg := testConfig(nil, mock.URL())
	cfg.ListPath = "/list"
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	photos, err := c.ListPhotos(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if len(photos) != 5 {
		t.Errorf("len(photos) = %d, want 5", len(photos))
	}
}

func TestListPhotos_ServerErrorRetried(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	mock.FailPage(1, http.StatusInternalServerError, http.StatusBadGateway)
	c := newTestClient(t, mock)

	photos, err := c.ListPhotos(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if len(photos) != 10 {
		t.Errorf("len(photos) = %d, want 10", len(photos))
	}
	if n := mock.GetRequestCount(); n != 3 {
		t.Errorf("request count = %d, want 3", n)
	}
}

func TestListPhotos_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	mock.FailPage(1, 500, 500, 500)
	c := newTestClient(t, mock)

	_, err := c.ListPhotos(context.Background(), 1, 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("errors.Is(err, ErrNetwork) = false: %v", err)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("errors.Is(err, ErrRetryExhausted) = false: %v", err)
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error %T is not a NetworkError", err)
	}
	if netErr.StatusCode != 500 || netErr.ErrorClass != ErrorClassServer {
		t.Errorf("NetworkError = %+v, want status 500 class server", netErr)
	}
	if netErr.Endpoint != "/v2/list" {
		t.Errorf("Endpoint = %q, want /v2/list", netErr.Endpoint)
	}
}

func TestListPhotos_ClientErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	mock.FailPage(1, http.StatusBadRequest)
	c := newTestClient(t, mock)

	_, err := c.ListPhotos(context.Background(), 1, 10)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
	if netErr.StatusCode != http.StatusBadRequest || netErr.ErrorClass != ErrorClassClient {
		t.Errorf("NetworkError = %+v", netErr)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

func TestListPhotos_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	cfg := testConfig(nil, baseURL)
	cfg.Retry.MaxAttempts = 2
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.ListPhotos(context.Background(), 1, 10)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
	if netErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q, want network", netErr.ErrorClass)
	}
	if netErr.Err == nil {
		t.Error("transport cause not wrapped")
	}
}

func TestListPhotos_MalformedBody(t *testing.T) {
	mock := testutil.NewMockPicsum(nil)
	defer mock.Close()
	mock.SetResponse("/v2/list", testutil.NewHealthyResponse(`{"not": "a list"`))
	c := newTestClient(t, mock)

	_, err := c.ListPhotos(context.Background(), 1, 10)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
	if netErr.ErrorClass != ErrorClassServer || netErr.Message != "decode response" {
		t.Errorf("NetworkError = %+v", netErr)
	}
}

func TestListPhotos_IntegerIDs(t *testing.T) {
	mock := testutil.NewMockPicsum(nil)
	defer mock.Close()
	mock.SetResponse("/v2/list", testutil.NewHealthyResponse(
		`[{"id":7,"author":"A","width":10,"height":10,"url":"u"},{"id":"8","author":"B","width":20,"height":10}]`))
	c := newTestClient(t, mock)

	photos, err := c.ListPhotos(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if len(photos) != 2 {
		t.Fatalf("got %d photos, want 2", len(photos))
	}
	if photos[0].ID != "7" || photos[1].ID != "8" {
		t.Errorf("ids = %q, %q; want 7, 8", photos[0].ID, photos[1].ID)
	}
}

func TestPhotoInfo_IntegerID(t *testing.T) {
	mock := testutil.NewMockPicsum(nil)
	defer mock.Close()
	mock.SetResponse("/id/42/info", testutil.NewHealthyResponse(`{"id":42,"author":"A","width":30,"height":20}`))
	c := newTestClient(t, mock)

	p, err := c.GetPhoto(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetPhoto() error = %v", err)
	}
	if p.ID != "42" || p.AspectRatio() != "1.50:1" {
		t.Errorf("photo = %+v", p)
	}
}

func TestDo_RateLimitCooldownBlocks(t *testing.T) {
	mock := testutil.NewMockPicsum(nil)
	defer mock.Close()
	mock.SetResponse("/v2/list", testutil.NewRateLimitResponse("30"))

	cfg := testConfig(nil, mock.URL())
	cfg.Retry.MaxAttempts = 1
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.ListPhotos(context.Background(), 1, 10)
	var netErr *NetworkError
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("first error = %v, want 429 NetworkError", err)
	}
	if netErr.ErrorClass != ErrorClassRateLimit {
		t.Errorf("ErrorClass = %q, want rate_limit", netErr.ErrorClass)
	}

	_, err = c.ListPhotos(context.Background(), 1, 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("second error = %v, want ErrRateLimited", err)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("cooldown block should still be a NetworkError: %v", err)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1 (second call blocked locally)", n)
	}
}

// sequenceServer answers each request with the next status in statuses
// (200 with an empty list once they run out) and records arrival times.
func sequenceServer(t *testing.T, statuses ...int) (*httptest.Server, func() []time.Time) {
	t.Helper()
	var mu sync.Mutex
	var arrivals []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n := len(arrivals)
		arrivals = append(arrivals, time.Now())
		mu.Unlock()

		if n < len(statuses) {
			if statuses[n] == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "1")
			}
			w.WriteHeader(statuses[n])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	return server, func() []time.Time {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Time(nil), arrivals...)
	}
}

func TestDo_RetryWaitsOutRetryAfter(t *testing.T) {
	server, arrivals := sequenceServer(t, http.StatusTooManyRequests)

	cfg := testConfig(nil, server.URL)
	cfg.Retry.MaxBackoff = 2 * time.Second
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.ListPhotos(context.Background(), 1, 10); err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}

	got := arrivals()
	if len(got) != 2 {
		t.Fatalf("requests = %d, want 2", len(got))
	}
	if gap := got[1].Sub(got[0]); gap < 900*time.Millisecond {
		t.Errorf("retry sent %v after the 429, before Retry-After elapsed", gap)
	}
}

func TestDo_RetryStopsOnLongCooldown(t *testing.T) {
	mock := testutil.NewMockPicsum(nil)
	defer mock.Close()
	mock.SetResponse("/v2/list", testutil.NewRateLimitResponse("30"))
	c := newTestClient(t, mock)

	start := time.Now()
	_, err := c.ListPhotos(context.Background(), 1, 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1 (retries blocked by cooldown)", n)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ListPhotos() took %v, should give up without waiting 30s", elapsed)
	}
}

func TestDo_RetryTakesRateLimitToken(t *testing.T) {
	server, arrivals := sequenceServer(t, http.StatusInternalServerError)

	cfg := testConfig(nil, server.URL)
	cfg.RateLimit = 5
	cfg.Burst = 1
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.ListPhotos(context.Background(), 1, 10); err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}

	got := arrivals()
	if len(got) != 2 {
		t.Fatalf("requests = %d, want 2", len(got))
	}
	if gap := got[1].Sub(got[0]); gap < 150*time.Millisecond {
		t.Errorf("retry sent %v after the first request, ignoring 5 rps pacing", gap)
	}
}

func TestDo_UserAgentAndAccept(t *testing.T) {
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c, err := New(testConfig(nil, server.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := c.Get(context.Background(), "/v2/list", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if headers.Get("User-Agent") != testUserAgent {
		t.Errorf("User-Agent = %q", headers.Get("User-Agent"))
	}
	if headers.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", headers.Get("Accept"))
	}
}

func TestPhotoInfo(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	c := newTestClient(t, mock)

	p, err := c.PhotoInfo(context.Background(), "7")
	if err != nil {
		t.Fatalf("PhotoInfo() error = %v", err)
	}
	if p != testutil.Photo("7") {
		t.Errorf("PhotoInfo() = %+v, want %+v", p, testutil.Photo("7"))
	}

	_, err = c.PhotoInfo(context.Background(), "999")
	var netErr *NetworkError
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusNotFound {
		t.Errorf("PhotoInfo(999) error = %v, want 404 NetworkError", err)
	}
}

func TestPhotoInfo_MismatchedID(t *testing.T) {
	mock := testutil.NewMockPicsum(nil)
	defer mock.Close()
	body, _ := json.Marshal(testutil.Photo("8"))
	mock.SetResponse("/id/7/info", testutil.NewHealthyResponse(string(body)))
	c := newTestClient(t, mock)

	if _, err := c.PhotoInfo(context.Background(), "7"); !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want NetworkError for mismatched id", err)
	}
}

func TestGetPhoto_InvalidID(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(3))
	defer mock.Close()
	c := newTestClient(t, mock)

	for _, id := range []string{"", "  ", "1/2", "1?x", "1#x"} {
		if _, err := c.GetPhoto(context.Background(), id); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("GetPhoto(%q) error = %v, want ErrInvalidArgument", id, err)
		}
	}
	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("invalid ids reached the network: %d requests", n)
	}
}

func TestGetPhoto_DirectLookup(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	c := newTestClient(t, mock)

	p, err := c.GetPhoto(context.Background(), "25")
	if err != nil {
		t.Fatalf("GetPhoto() error = %v", err)
	}
	if p.ID != "25" {
		t.Errorf("ID = %q, want 25", p.ID)
	}
	if pages := mock.GetListPages(); len(pages) != 0 {
		t.Errorf("direct hit should not scan, requested pages %v", pages)
	}
}

func TestGetPhoto_FallsBackToScan(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	mock.SetInfoStatus(http.StatusBadRequest)
	c := newTestClient(t, mock)

	p, err := c.GetPhoto(context.Background(), "25")
	if err != nil {
		t.Fatalf("GetPhoto() error = %v", err)
	}
	if p != testutil.Photo("25") {
		t.Errorf("GetPhoto() = %+v", p)
	}

	if ids := mock.GetInfoIDs(); len(ids) != 1 || ids[0] != "25" {
		t.Errorf("info requests = %v, want [25]", ids)
	}
	pages := mock.GetListPages()
	if len(pages) != 3 || pages[0] != 1 || pages[1] != 2 || pages[2] != 3 {
		t.Errorf("scanned pages = %v, want [1 2 3]", pages)
	}
}

func TestGetPhoto_NotFound(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	c := newTestClient(t, mock)

	_, err := c.GetPhoto(context.Background(), "999")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error %T is not a NotFoundError", err)
	}
	if nf.ID != "999" {
		t.Errorf("ID = %q, want 999", nf.ID)
	}
	// Pages 1-3 are full, page 4 is empty: end of catalog.
	if nf.PagesScanned != 4 {
		t.Errorf("PagesScanned = %d, want 4", nf.PagesScanned)
	}
}

func TestGetPhoto_NotFoundWithinPageLimit(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(200))
	defer mock.Close()
	mock.SetInfoStatus(http.StatusNotFound)
	c := newTestClient(t, mock)

	_, err := c.GetPhoto(context.Background(), "150")

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
	if nf.PagesScanned != 5 {
		t.Errorf("PagesScanned = %d, want the page limit 5", nf.PagesScanned)
	}
}

func TestGetPhoto_ScanNetworkError(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	mock.FailPage(1, http.StatusBadRequest)
	c := newTestClient(t, mock)

	_, err := c.GetPhoto(context.Background(), "999")
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("scan failure must not be reported as not found: %v", err)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want NetworkError", err)
	}
}

func TestGetPhoto_CancelledContext(t *testing.T) {
	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()
	c := newTestClient(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetPhoto(ctx, "5")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
	if pages := mock.GetListPages(); len(pages) != 0 {
		t.Errorf("cancelled lookup should not scan, got %v", pages)
	}
}

func TestResolver_Steps(t *testing.T) {
	mock := testutil.NewMockPicsum(nil)
	defer mock.Close()
	c := newTestClient(t, mock)

	steps := c.Resolver().Steps()
	if strings.Join(steps, ",") != "direct,scan" {
		t.Errorf("Steps() = %v, want [direct scan]", steps)
	}
}

type stubStep struct {
	name  string
	photo photo.Photo
	err   error
	calls *[]string
}

func (s stubStep) Name() string { return s.name }

func (s stubStep) Lookup(ctx context.Context, id string) (photo.Photo, error) {
	*s.calls = append(*s.calls, s.name)
	return s.photo, s.err
}

func TestResolver_Order(t *testing.T) {
	var calls []string
	boom := errors.New("boom")

	r := NewResolver(
		stubStep{name: "first", err: boom, calls: &calls},
		stubStep{name: "second", photo: photo.Photo{ID: "1"}, calls: &calls},
		stubStep{name: "third", photo: photo.Photo{ID: "x"}, calls: &calls},
	)

	p, err := r.Resolve(context.Background(), "1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.ID != "1" {
		t.Errorf("ID = %q, want 1", p.ID)
	}
	if strings.Join(calls, ",") != "first,second" {
		t.Errorf("calls = %v, want [first second]", calls)
	}
}

func TestResolver_LastErrorWins(t *testing.T) {
	var calls []string
	notFound := &NotFoundError{ID: "1", PagesScanned: 2}

	r := NewResolver(
		stubStep{name: "first", err: errors.New("boom"), calls: &calls},
		stubStep{name: "second", err: notFound, calls: &calls},
	)

	_, err := r.Resolve(context.Background(), "1")
	if err != notFound {
		t.Errorf("Resolve() error = %v, want the last step's error", err)
	}
}

func TestResolver_NoSteps(t *testing.T) {
	if _, err := NewResolver().Resolve(context.Background(), "1"); err == nil {
		t.Error("expected error without steps")
	}
}

func TestLinks(t *testing.T) {
	c, err := New(testConfig(nil, "https://picsum.photos/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := c.Links().Thumbnail(photo.Photo{ID: "10"})
	if got != "https://picsum.photos/id/10/300/200" {
		t.Errorf("Thumbnail = %q", got)
	}
}

func TestDo_CacheHit(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockPicsum(testutil.Catalog(30))
	defer mock.Close()

	c, err := New(testConfig(redisClient, mock.URL()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	first, err := c.ListPhotos(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}

	second, err := c.ListPhotos(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}

	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1 (second served from cache)", n)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Error("cached page differs from original")
	}
}

func TestDo_StaleEntryRevalidated(t *testing.T) {
	redisClient := setupTestRedis(t)

	requests := 0
	conditional := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional++
			w.Header().Set("Cache-Control", "max-age=60")
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Cache-Control", "max-age=1")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"id":"0","author":"A","width":10,"height":10}]`))
	}))
	defer server.Close()

	c, err := New(testConfig(redisClient, server.URL))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := c.ListPhotos(context.Background(), 1, 10); err != nil {
		t.Fatalf("First request failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	photos, err := c.ListPhotos(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	if len(photos) != 1 || photos[0].ID != "0" {
		t.Errorf("revalidated body = %+v", photos)
	}
	if requests != 2 || conditional != 1 {
		t.Errorf("requests = %d, conditional = %d; want 2 and 1", requests, conditional)
	}

	// Fresh again after the 304: no third request.
	if _, err := c.ListPhotos(context.Background(), 1, 10); err != nil {
		t.Fatalf("Third request failed: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d after revalidation, want 2", requests)
	}
}
