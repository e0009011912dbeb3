// Package client provides the HTTP client for the cardfetch service
// surface: batch submission, status polling, CSV export and cache clear.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"cardfetch/pkg/api"
	"cardfetch/pkg/logging"
)

// Prometheus metrics for client operations.
var (
	clientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardfetch_client_requests_total",
		Help: "Total client requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	clientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cardfetch_client_request_duration_seconds",
		Help:    "Client request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the cardfetch service, e.g. "http://localhost:8080".
	BaseURL string

	// Timeout for a single request round-trip.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Client talks to the cardfetch service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// New creates a new service client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		logger:     logging.NewLogger("client"),
	}, nil
}

// Fetch submits card names for lookup and returns the current record for
// each. An empty name list asks the service for every record it knows.
func (c *Client) Fetch(ctx context.Context, names []string) ([]api.CardRecord, error) {
	body, err := c.post(ctx, "/fetch", api.FetchRequest{CardNames: names})
	if err != nil {
		return nil, err
	}

	var records []api.CardRecord
	if err := json.Unmarshal(body, &records); err != nil {
		clientRequestsTotal.WithLabelValues("/fetch", "protocol_error").Inc()
		c.logger.Error().Err(err).Msg("Unexpected /fetch response shape")
		return nil, &APIError{
			Kind:    KindProtocol,
			Message: "unexpected /fetch response shape",
			Err:     err,
		}
	}
	return records, nil
}

// FetchAll returns the complete current result snapshot.
func (c *Client) FetchAll(ctx context.Context) ([]api.CardRecord, error) {
	return c.Fetch(ctx, []string{})
}

// Status queries aggregate lookup progress.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var status api.StatusResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return status, fmt.Errorf("create request: %w", err)
	}

	body, err := c.do(req, "/status")
	if err != nil {
		return status, err
	}

	if err := json.Unmarshal(body, &status); err != nil {
		clientRequestsTotal.WithLabelValues("/status", "protocol_error").Inc()
		return status, &APIError{
			Kind:    KindProtocol,
			Message: "unexpected /status response shape",
			Err:     err,
		}
	}
	return status, nil
}

// Export streams the service's CSV export for the given names into w.
// An empty name list exports everything.
func (c *Client) Export(ctx context.Context, names []string, w io.Writer) error {
	payload, err := json.Marshal(api.FetchRequest{CardNames: names})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/export", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	clientRequestDuration.WithLabelValues("/export").Observe(time.Since(start).Seconds())
	if err != nil {
		clientRequestsTotal.WithLabelValues("/export", "network_error").Inc()
		return &APIError{Kind: KindTransport, Message: "export request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		clientRequestsTotal.WithLabelValues("/export", fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return &APIError{
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}
	clientRequestsTotal.WithLabelValues("/export", "ok").Inc()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return &APIError{Kind: KindTransport, Message: "read export body", Err: err}
	}
	return nil
}

// Clear asks the service to drop all cached records and queued work.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.post(ctx, "/clear", nil)
	return err
}

// post issues a JSON POST and returns the raw response body.
func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, endpoint)
}

// do executes a request and reads the body. Any network failure or
// non-2xx status is reported uniformly as a transport error.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	clientRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		clientRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Request failed")
		return nil, &APIError{
			Kind:    KindTransport,
			Message: fmt.Sprintf("%s request failed", endpoint),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		clientRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Request rejected")
		return nil, &APIError{
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		clientRequestsTotal.WithLabelValues(endpoint, "read_error").Inc()
		return nil, &APIError{
			Kind:    KindTransport,
			Message: fmt.Sprintf("read %s response", endpoint),
			Err:     err,
		}
	}

	clientRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
