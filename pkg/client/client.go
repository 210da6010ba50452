// Package client provides the Lorem Picsum HTTP client with rate limiting,
// caching, retry and the single-photo lookup strategy.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/picsum-gallery/pkg/cache"
	"github.com/Sternrassler/picsum-gallery/pkg/logging"
	"github.com/Sternrassler/picsum-gallery/pkg/pagination"
	"github.com/Sternrassler/picsum-gallery/pkg/photo"
	"github.com/Sternrassler/picsum-gallery/pkg/ratelimit"
)

// Prometheus metrics for photo service requests.
var (
	picsumRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picsum_requests_total",
		Help: "Total photo service requests by endpoint and status",
	}, []string{"endpoint", "status"})

	picsumRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "picsum_request_duration_seconds",
		Help:    "Photo service request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	picsumErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "picsum_errors_total",
		Help: "Total photo service errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors and malformed payloads.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and local cooldown blocks.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// DefaultListPath is the paginated list endpoint.
const DefaultListPath = "/v2/list"

// Client is the photo service client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	resolver    *Resolver
	config      Config
	baseURL     *url.URL
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the service root, e.g. https://picsum.photos
	BaseURL string

	// ListPath is the list endpoint; "/v2/list" or the legacy "/list"
	ListPath string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per HTTP request
	Timeout time.Duration

	// Redis backs the response cache and shares rate limit cooldowns.
	// Optional: without it nothing is cached and cooldowns stay in process.
	Redis *redis.Client

	// StaleTTL keeps expired cache entries around for revalidation
	StaleTTL time.Duration

	// Rate Limiting
	RateLimit float64 // Requests per second, 0 disables pacing
	Burst     int

	// Retry
	Retry RetryConfig

	// Single-photo scan fallback
	ScanPageLimit   int
	ScanPageSize    int
	ScanConcurrency int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	scan := pagination.DefaultScanConfig()
	return Config{
		BaseURL:         photo.DefaultBaseURL,
		ListPath:        DefaultListPath,
		UserAgent:       userAgent,
		Timeout:         30 * time.Second,
		Redis:           redis,
		StaleTTL:        cache.DefaultStaleTTL,
		RateLimit:       10,
		Burst:           5,
		Retry:           DefaultRetryConfig(),
		ScanPageLimit:   scan.PageLimit,
		ScanPageSize:    scan.PageSize,
		ScanConcurrency: scan.Concurrency,
	}
}

// New creates a new photo service client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	if cfg.ListPath == "" {
		cfg.ListPath = DefaultListPath
	}
	if !strings.HasPrefix(cfg.ListPath, "/") {
		return nil, fmt.Errorf("list path must start with / (got %q)", cfg.ListPath)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	if cfg.ScanPageLimit < 1 {
		return nil, fmt.Errorf("scan_page_limit must be >= 1 (got %d)", cfg.ScanPageLimit)
	}

	if cfg.ScanPageSize < 1 {
		return nil, fmt.Errorf("scan_page_size must be >= 1 (got %d)", cfg.ScanPageSize)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := logging.NewLogger("picsum-client")

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: ratelimit.NewTracker(cfg.Redis, cfg.RateLimit, cfg.Burst, logging.NewLogger("ratelimit")),
		config:      cfg,
		baseURL:     base,
		logger:      logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.StaleTTL)
	}

	scanner := pagination.NewScanner(c, pagination.ScanConfig{
		PageSize:    cfg.ScanPageSize,
		PageLimit:   cfg.ScanPageLimit,
		Concurrency: cfg.ScanConcurrency,
		Timeout:     cfg.Timeout,
	})
	c.resolver = NewResolver(DirectLookup{client: c}, ScanLookup{scanner: scanner})

	return c, nil
}

// Do performs an HTTP request with rate limiting, caching, and error handling.
// Non-2xx responses are returned as *NetworkError; the caller owns the body
// of a successful response.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		picsumRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Cache
	cacheKey := cache.CacheKey{
		Endpoint:    req.URL.Path,
		QueryParams: req.URL.Query(),
	}

	var cachedEntry *cache.CacheEntry
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		cachedEntry = entry
	}

	if cachedEntry != nil && !cachedEntry.IsExpired() {
		c.logger.Debug().Str("endpoint", endpoint).Dur("age", cachedEntry.Age()).Msg("Serving from cache")
		picsumRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 2: Check Rate Limit
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, asNetworkError(endpoint, fmt.Errorf("rate limit check: %w", err))
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Msg("Request blocked by rate limiter")
		picsumRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return nil, &NetworkError{
			ErrorClass: ErrorClassRateLimit,
			Endpoint:   endpoint,
			Message:    "cooldown active",
			Err:        ErrRateLimited,
		}
	}

	// Step 3: Make Conditional Request for a stale entry
	if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		cache.ConditionalRequestsSent.Inc()
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	// Step 4: Set headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Step 5: Execute HTTP Request with Retry Logic
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing photo service request")

	var resp *http.Response
	var errClass ErrorClass
	attempt := 0
	maxCooldownWait := c.config.Retry.ForErrorClass(ErrorClassRateLimit).MaxBackoff

	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		attempt++
		if attempt > 1 {
			// Retries honour a cooldown started by the previous attempt and
			// take their own token.
			allowed, err := c.rateLimiter.WaitForRequest(ctx, maxCooldownWait)
			if err != nil {
				errClass = ErrorClassNetwork
				return fmt.Errorf("rate limit wait: %w", err)
			}
			if !allowed {
				errClass = ErrorClassRateLimit
				picsumRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
				return &NetworkError{
					ErrorClass: ErrorClassRateLimit,
					Endpoint:   endpoint,
					Message:    "cooldown active",
					Err:        ErrRateLimited,
				}
			}
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(req)

		if reqErr != nil {
			resp = nil
			c.logger.Warn().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errClass = ErrorClassNetwork
			picsumErrorsTotal.WithLabelValues(string(errClass)).Inc()
			picsumRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &NetworkError{
				ErrorClass: errClass,
				Endpoint:   endpoint,
				Message:    "request failed",
				Err:        reqErr,
			}
		}

		if err := c.rateLimiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from response")
		}

		if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
			return nil
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errClass = classifyStatus(resp.StatusCode)
			picsumErrorsTotal.WithLabelValues(string(errClass)).Inc()
			picsumRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Photo service request error")

			resp.Body.Close()
			netErr := &NetworkError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Endpoint:   endpoint,
				Message:    resp.Status,
			}
			resp = nil
			return netErr
		}

		picsumRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return nil
	}, func(err error) ErrorClass {
		return errClass
	})

	if retryErr != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, asNetworkError(endpoint, retryErr)
	}

	// Step 6: Handle 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		if err := c.cache.UpdateTTL(ctx, cacheKey, cache.Expiry(resp.Header)); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 7: Update Cache on success
	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", endpoint).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// classifyStatus categorizes a non-success HTTP status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// endpointLabel collapses per-photo paths so metrics keep a bounded label set.
func endpointLabel(path string) string {
	if strings.HasPrefix(path, "/id/") && strings.HasSuffix(path, "/info") {
		return "/id/{id}/info"
	}
	return path
}

// Get performs a GET request to a service path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// getJSON GETs path and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		picsumErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		return &NetworkError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassServer,
			Endpoint:   endpointLabel(path),
			Message:    "decode response",
			Err:        err,
		}
	}
	return nil
}

// ListPhotos fetches one page of the photo list. An empty page is an
// empty slice, not an error.
func (c *Client) ListPhotos(ctx context.Context, page, pageSize int) ([]photo.Photo, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1 (got %d)", ErrInvalidArgument, page)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: page size must be >= 1 (got %d)", ErrInvalidArgument, pageSize)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(pageSize))

	var photos []photo.Photo
	if err := c.getJSON(ctx, c.config.ListPath, query, &photos); err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []photo.Photo{}
	}

	c.logger.Debug().
		Int("page", page).
		Int("limit", pageSize).
		Int("count", len(photos)).
		Msg("Listed photos")
	return photos, nil
}

// PhotoInfo fetches a single photo from the info endpoint.
func (c *Client) PhotoInfo(ctx context.Context, id string) (photo.Photo, error) {
	if err := validateID(id); err != nil {
		return photo.Photo{}, err
	}

	var p photo.Photo
	if err := c.getJSON(ctx, "/id/"+id+"/info", nil, &p); err != nil {
		return photo.Photo{}, err
	}
	if p.ID != id {
		return photo.Photo{}, &NetworkError{
			StatusCode: http.StatusOK,
			ErrorClass: ErrorClassServer,
			Endpoint:   "/id/{id}/info",
			Message:    fmt.Sprintf("info returned id %q for %q", p.ID, id),
		}
	}
	return p, nil
}

// GetPhoto resolves a single photo by id, trying the info endpoint first
// and falling back to scanning the list.
func (c *Client) GetPhoto(ctx context.Context, id string) (photo.Photo, error) {
	if err := validateID(id); err != nil {
		return photo.Photo{}, err
	}
	return c.resolver.Resolve(ctx, id)
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: photo id is empty", ErrInvalidArgument)
	}
	if strings.ContainsAny(id, "/?#") {
		return fmt.Errorf("%w: photo id %q contains reserved characters", ErrInvalidArgument, id)
	}
	return nil
}

// Links returns the URL builder for this client's service root.
func (c *Client) Links() photo.Links {
	return photo.Links{BaseURL: c.baseURL.String()}
}

// Resolver returns the lookup strategy used by GetPhoto.
func (c *Client) Resolver() *Resolver {
	return c.resolver
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when Redis is not configured.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
