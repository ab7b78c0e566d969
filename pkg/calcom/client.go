package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURLV2 is the current API generation (bearer auth).
	DefaultBaseURLV2 = "https://api.cal.com/v2"

	// DefaultBaseURLV1 is the legacy API generation (apiKey query param).
	DefaultBaseURLV1 = "https://api.cal.com/v1"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	apiVersionHeader = "cal-api-version"
	apiVersionValue  = "2024-08-13"

	defaultMaxAttempts = 3
	defaultRetryBase   = 500 * time.Millisecond
	defaultCacheTTL    = 30 * time.Second

	// maxErrorBodyLen bounds raw backend messages surfaced to users.
	maxErrorBodyLen = 300
)

// Generation identifies one backend API generation.
type Generation string

const (
	GenV2 Generation = "v2"
	GenV1 Generation = "v1"
)

// StatusError is a non-2xx backend response. 4xx is a client fault and
// terminal; 5xx is transient and eligible for retry and fallback.
type StatusError struct {
	Status int
	Body   string
	Gen    Generation
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Gen, e.Status, truncate(e.Body, maxErrorBodyLen))
}

// Terminal reports whether the error must not trigger retry or fallback.
func (e *StatusError) Terminal() bool {
	return e.Status >= 400 && e.Status < 500
}

// Request describes one generation-specific HTTP call. The two
// generations spell endpoint paths and query parameters differently, so
// each operation builds a Request per generation.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

// Strategy pairs a generation with its request spelling. Fallback order
// is the order strategies are passed to DoWithFallback.
type Strategy struct {
	Gen   Generation
	Build func() Request
}

// ClientConfig configures the booking backend client
type ClientConfig struct {
	APIKey      string
	BaseURLV2   string
	BaseURLV1   string
	Timeout     time.Duration
	MaxAttempts int           // per generation, including the first try
	RetryBase   time.Duration // first backoff; doubles per attempt
	CacheTTL    time.Duration // GET response cache lifetime
	Logger      zerolog.Logger
}

// Client handles HTTP communication with both Cal.com API generations.
// One instance per session; the cache and diagnostics are instance state,
// never process-global.
type Client struct {
	apiKey      string
	baseURLs    map[Generation]string
	httpClient  *http.Client
	maxAttempts int
	retryBase   time.Duration

	cacheTTL time.Duration
	cacheMu  sync.Mutex
	cache    map[string]cacheEntry

	log   zerolog.Logger
	diags *Diagnostics
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// NewClient creates a new dual-generation Cal.com client
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURLV2 == "" {
		cfg.BaseURLV2 = DefaultBaseURLV2
	}
	if cfg.BaseURLV1 == "" {
		cfg.BaseURLV1 = DefaultBaseURLV1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	return &Client{
		apiKey: cfg.APIKey,
		baseURLs: map[Generation]string{
			GenV2: cfg.BaseURLV2,
			GenV1: cfg.BaseURLV1,
		},
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
		cacheTTL:    cfg.CacheTTL,
		cache:       make(map[string]cacheEntry),
		log:         cfg.Logger,
		diags:       NewDiagnostics(64),
	}
}

// Diagnostics returns the client's bounded anomaly log (shape mismatches,
// generation fallbacks). Read by the debug sidebar.
func (c *Client) Diagnostics() *Diagnostics {
	return c.diags
}

// Do performs one call against one generation with retry and exponential
// backoff. 2xx and 4xx return immediately; only 5xx and transport errors
// are retried. GET responses are served from a short-lived cache to
// suppress duplicate reads within one user interaction.
func (c *Client) Do(ctx context.Context, gen Generation, req Request) ([]byte, error) {
	fullURL, err := c.buildURL(gen, req)
	if err != nil {
		return nil, err
	}

	cacheKey := req.Method + " " + fullURL
	if req.Method == http.MethodGet {
		if body, ok := c.cacheGet(cacheKey); ok {
			return body, nil
		}
	}

	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retryBase * (1 << uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Body reader must be recreated per attempt.
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		if gen == GenV2 {
			// v2 authenticates via bearer token plus a version header;
			// v1 carries the key in the query string (see buildURL).
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
			httpReq.Header.Set(apiVersionHeader, apiVersionValue)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("%s request failed: %w", gen, err)
			c.log.Debug().Str("gen", string(gen)).Int("attempt", attempt+1).Err(err).Msg("transport error")
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%s failed to read response: %w", gen, readErr)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if req.Method == http.MethodGet {
				c.cachePut(cacheKey, respBody)
			}
			return respBody, nil
		}

		statusErr := &StatusError{Status: resp.StatusCode, Body: string(respBody), Gen: gen}
		if statusErr.Terminal() {
			return nil, statusErr
		}

		// 5xx: retry with backoff
		lastErr = statusErr
		c.log.Debug().Str("gen", string(gen)).Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("server error, retrying")
	}

	return nil, lastErr
}

// DoWithFallback iterates the generation strategies in order. A 4xx from
// any generation is terminal and stops the chain; 5xx and transport
// failures (after per-generation retries) fall through to the next
// strategy. Returns the body and the generation that served it.
func (c *Client) DoWithFallback(ctx context.Context, strategies []Strategy) ([]byte, Generation, error) {
	var lastErr error
	for i, s := range strategies {
		body, err := c.Do(ctx, s.Gen, s.Build())
		if err == nil {
			if i > 0 {
				c.diags.Record("fallback", "served by %s after %v", s.Gen, lastErr)
			}
			return body, s.Gen, nil
		}

		if se, ok := err.(*StatusError); ok && se.Terminal() {
			return nil, s.Gen, err
		}

		lastErr = err
		if i < len(strategies)-1 {
			c.log.Warn().Str("gen", string(s.Gen)).Err(err).Msg("generation failed, falling back")
		}
	}
	return nil, "", lastErr
}

func (c *Client) buildURL(gen Generation, req Request) (string, error) {
	base, ok := c.baseURLs[gen]
	if !ok {
		return "", fmt.Errorf("unknown API generation: %s", gen)
	}

	query := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	if gen == GenV1 {
		query.Set("apiKey", c.apiKey)
	}

	full := base + req.Path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full, nil
}

func (c *Client) cacheGet(key string) ([]byte, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.body, true
}

func (c *Client) cachePut(key string, body []byte) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.cache[key] = cacheEntry{body: body, expires: time.Now().Add(c.cacheTTL)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Diagnostics is a bounded in-memory log of backend anomalies, owned by
// one client instance. Staleness is fine; it exists for operator
// inspection, not correctness.
type Diagnostics struct {
	mu      sync.Mutex
	entries []DiagEntry
	limit   int
}

// DiagEntry is one recorded anomaly
type DiagEntry struct {
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"` // fallback, shape, partial
	Detail string    `json:"detail"`
}

// NewDiagnostics creates a diagnostics ring holding at most limit entries.
func NewDiagnostics(limit int) *Diagnostics {
	return &Diagnostics{limit: limit}
}

// Record appends an entry, evicting the oldest past the limit.
func (d *Diagnostics) Record(kind, format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, DiagEntry{
		Time:   time.Now(),
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	})
	if len(d.entries) > d.limit {
		d.entries = d.entries[len(d.entries)-d.limit:]
	}
}

// Recent returns a copy of the recorded entries, oldest first.
func (d *Diagnostics) Recent() []DiagEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]DiagEntry, len(d.entries))
	copy(out, d.entries)
	return out
}
