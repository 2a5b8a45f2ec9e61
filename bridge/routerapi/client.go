package routerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var log zerolog.Logger

var tracer = otel.Tracer("github.com/Cogwheel-Validator/spectra-bridge/bridge/routerapi")

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "routerapi").Logger()
}

// Client talks to the routing service with failover support.
// It keeps a primary endpoint and switches to backup endpoints
// when the primary is unavailable.
type Client struct {
	httpClient     *http.Client
	primaryURL     string
	backupURLs     []string
	currentURL     string
	mu             sync.RWMutex
	healthChecker  *healthChecker
	failoverConfig FailoverConfig
}

// FailoverConfig controls failover behavior
type FailoverConfig struct {
	// MaxRetries is the number of times to retry a failed request on the current endpoint
	MaxRetries int
	// RetryDelay is the initial delay between retries (doubles with each retry)
	RetryDelay time.Duration
	// HealthCheckInterval is how often to check if the primary endpoint is back up
	HealthCheckInterval time.Duration
	// HealthPath is requested with GET to decide if an endpoint is up
	HealthPath string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// DefaultFailoverConfig returns the defaults used by NewClient
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		HealthPath:          "/health",
		Timeout:             10 * time.Second,
	}
}

// healthChecker periodically checks if the primary endpoint is healthy
type healthChecker struct {
	client    *Client
	stopCh    chan struct{}
	stoppedCh chan struct{}
	isRunning bool
	mu        sync.Mutex
}

// NewClient creates a client with a single endpoint
func NewClient(apiURL string) (*Client, error) {
	return NewClientWithFailover(apiURL, nil, DefaultFailoverConfig())
}

// NewClientWithFailover creates a client that fails over to backupURLs
func NewClientWithFailover(primaryURL string, backupURLs []string, config FailoverConfig) (*Client, error) {
	if _, err := url.ParseRequestURI(primaryURL); err != nil {
		return nil, fmt.Errorf("failed to parse primary routing API URL %q: %w", primaryURL, err)
	}

	validBackups := make([]string, 0, len(backupURLs))
	for _, u := range backupURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, strings.TrimRight(u, "/"))
	}

	if config.HealthPath == "" {
		config.HealthPath = DefaultFailoverConfig().HealthPath
	}

	primaryURL = strings.TrimRight(primaryURL, "/")
	client := &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		primaryURL:     primaryURL,
		backupURLs:     validBackups,
		currentURL:     primaryURL,
		failoverConfig: config,
	}

	if len(validBackups) > 0 && config.HealthCheckInterval > 0 {
		client.startHealthChecker()
	}

	log.Info().
		Str("primary", primaryURL).
		Int("backups", len(validBackups)).
		Msg("Routing client initialized")
	return client, nil
}

func (c *Client) startHealthChecker() {
	c.healthChecker = &healthChecker{
		client:    c,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	c.healthChecker.start()
}

func (h *healthChecker) start() {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	go func() {
		defer close(h.stoppedCh)
		ticker := time.NewTicker(h.client.failoverConfig.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.checkAndRestore()
			}
		}
	}()
}

func (h *healthChecker) stop() {
	h.mu.Lock()
	if !h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = false
	h.mu.Unlock()

	close(h.stopCh)
	<-h.stoppedCh
}

// checkAndRestore moves back to the primary endpoint once it answers again
func (h *healthChecker) checkAndRestore() {
	h.client.mu.RLock()
	currentURL := h.client.currentURL
	primaryURL := h.client.primaryURL
	h.client.mu.RUnlock()

	if currentURL == primaryURL {
		return
	}

	if h.client.isEndpointHealthy(context.Background(), primaryURL) {
		h.client.mu.Lock()
		h.client.currentURL = primaryURL
		h.client.mu.Unlock()
		log.Info().Str("url", primaryURL).Msg("Restored primary endpoint")
	}
}

func (c *Client) isEndpointHealthy(ctx context.Context, endpoint string) bool {
	healthURL := endpoint + c.failoverConfig.HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", healthURL).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	log.Debug().Str("url", healthURL).Int("status", resp.StatusCode).Msg("Health check response")
	return resp.StatusCode == http.StatusOK
}

// CurrentURL returns the endpoint requests are currently sent to
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

// failover switches to the next healthy endpoint. Endpoints are checked without
// holding mu so readers of CurrentURL are never blocked by a slow health check.
func (c *Client) failover(ctx context.Context) bool {
	from := c.CurrentURL()

	allURLs := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := -1
	for i, u := range allURLs {
		if u == from {
			currentIdx = i
			break
		}
	}

	for i := 1; i <= len(allURLs); i++ {
		nextURL := allURLs[(currentIdx+i)%len(allURLs)]
		if nextURL == from {
			continue
		}
		if !c.isEndpointHealthy(ctx, nextURL) {
			continue
		}

		c.mu.Lock()
		if c.currentURL != from {
			// another request already moved on
			c.mu.Unlock()
			return true
		}
		c.currentURL = nextURL
		c.mu.Unlock()
		log.Info().Str("url", nextURL).Msg("Failover to endpoint")
		return true
	}

	log.Warn().Str("url", from).Msg("All endpoints unhealthy, staying on current")
	return false
}

// Close stops the health checker
func (c *Client) Close() {
	if c.healthChecker != nil {
		c.healthChecker.stop()
	}
}

// doOnce sends a single request to the current endpoint
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.CurrentURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Err: err}
	}
	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newRemoteError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// doRequestWithFailover retries on the current endpoint with a doubling delay
// and then tries one healthy backup. 4xx answers are returned at once.
// Cancellation of ctx is returned as is and never triggers a failover.
func (c *Client) doRequestWithFailover(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	retryDelay := c.failoverConfig.RetryDelay

	for attempt := 0; attempt <= c.failoverConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		respBody, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err

		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && !remoteErr.Retryable() {
			return nil, err
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Str("path", path).Msg("Routing request failed")
	}

	if len(c.backupURLs) > 0 && c.failover(ctx) {
		respBody, err := c.doOnce(ctx, method, path, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return respBody, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.failoverConfig.MaxRetries+1, lastErr)
}

// doJSON encodes in (when not nil), sends the request and decodes the answer into T.
func doJSON[T any](ctx context.Context, c *Client, spanName, method, path string, in any) (*T, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("routerapi.path", path),
	)

	var body []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			span.SetStatus(codes.Error, "encode")
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = data
	}

	start := time.Now()
	respBody, err := c.doRequestWithFailover(ctx, method, path, body)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	log.Debug().Str("path", path).Dur("took", time.Since(start)).Msg("Routing request done")

	var out T
	if err := json.Unmarshal(respBody, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return &out, nil
}
