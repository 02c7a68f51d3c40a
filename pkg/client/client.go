// Package client provides the HTTP client the router uses to reach the
// EdgeUp origin, with error classification, retries and metrics.
package client

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeup_origin_requests_total",
		Help: "Total origin requests by HTTP status (or network_error)",
	}, []string{"status"})

	originRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "edgeup_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds, including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edgeup_origin_errors_total",
		Help: "Total origin errors by class",
	}, []string{"class"})

	originRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edgeup_origin_retries_total",
		Help: "Total number of origin retry attempts",
	})
)

// Config holds the client configuration.
type Config struct {
	// Timeout bounds one attempt including reading the body; 0 disables it.
	Timeout time.Duration

	// Retry controls retries of transport failures for idempotent requests.
	Retry RetryConfig

	// Transport overrides the round tripper (nil uses a clone of http.DefaultTransport).
	Transport http.RoundTripper
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Client executes requests against the origin.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new origin client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			// The router relays redirects to the page unchanged
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config: cfg,
		logger: log.With().Str("component", "origin-client").Logger(),
	}, nil
}

// Do performs the request. Any HTTP response, whatever its status, is a
// success; only transport failures return an *UpstreamError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	path := req.URL.Path

	startTime := time.Now()
	defer func() {
		originRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	retry := c.config.Retry
	if !replayable(req) {
		retry.MaxAttempts = 1
	}

	var resp *http.Response
	err := retryWithBackoff(ctx, retry, c.logger, func() (ErrorClass, error) {
		r, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			originRequestsTotal.WithLabelValues("network_error").Inc()
			c.logger.Debug().Err(reqErr).Str("path", path).Msg("Origin request failed")
			return ErrorClassNetwork, &UpstreamError{
				ErrorClass: ErrorClassNetwork,
				Message:    fmt.Sprintf("%s %s", req.Method, path),
				Err:        reqErr,
			}
		}

		originRequestsTotal.WithLabelValues(strconv.Itoa(r.StatusCode)).Inc()
		if class := ClassifyStatus(r.StatusCode); class != "" {
			originErrorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Debug().
				Str("path", path).
				Int("status_code", r.StatusCode).
				Str("error_class", string(class)).
				Msg("Origin returned error status")
		}
		resp = r
		return "", nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// replayable reports whether req can be sent again after a transport failure.
func replayable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
	default:
		return false
	}
	return req.Body == nil || req.Body == http.NoBody
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
