package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"cardfetch/pkg/logging"
)

// RetryConfig holds the retry behavior for upstream lookups.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Upstream resolves card names against the upstream card API
// (Scryfall's named-card endpoint in the reference deployment).
type Upstream struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	logger     zerolog.Logger
}

// NewUpstream creates an upstream resolver.
func NewUpstream(baseURL string, retry RetryConfig) *Upstream {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Upstream{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		retry:      retry,
		logger:     logging.NewLogger("upstream"),
	}
}

// upstreamCard is the subset of the upstream response we keep.
type upstreamCard struct {
	Name       string `json:"name"`
	OracleText string `json:"oracle_text"`
	ManaCost   string `json:"mana_cost"`
	TypeLine   string `json:"type_line"`
	SetName    string `json:"set_name"`
}

// Lookup resolves one card name. A 404 is a conclusive "not found", not
// an error. 5xx and network failures are retried with exponential
// backoff and jitter; once attempts are exhausted the card is returned
// as not found alongside the final error, so callers can cache the
// negative result the way the reference service does.
func (u *Upstream) Lookup(ctx context.Context, name string) (Card, error) {
	start := time.Now()
	defer func() {
		upstreamLookupDuration.Observe(time.Since(start).Seconds())
	}()

	notFound := Card{Name: name, Found: false}
	backoff := u.retry.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= u.retry.MaxAttempts; attempt++ {
		card, retriable, err := u.lookupOnce(ctx, name)
		if err == nil {
			if attempt > 1 {
				u.logger.Info().
					Str("card", name).
					Int("attempt", attempt).
					Msg("Lookup succeeded after retry")
			}
			return card, nil
		}
		lastErr = err

		if !retriable {
			upstreamLookupsTotal.WithLabelValues("error").Inc()
			u.logger.Error().Err(err).Str("card", name).Msg("Lookup failed")
			return notFound, err
		}
		if attempt >= u.retry.MaxAttempts {
			break
		}

		upstreamRetriesTotal.Inc()

		// ±20% jitter on the backoff.
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		u.logger.Warn().
			Err(err).
			Str("card", name).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying lookup after backoff")

		select {
		case <-ctx.Done():
			return notFound, fmt.Errorf("lookup cancelled: %w", ctx.Err())
		case <-time.After(jitter):
		}

		backoff *= 2
		if backoff > u.retry.MaxBackoff {
			backoff = u.retry.MaxBackoff
		}
	}

	upstreamLookupsTotal.WithLabelValues("exhausted").Inc()
	u.logger.Error().
		Err(lastErr).
		Str("card", name).
		Int("max_attempts", u.retry.MaxAttempts).
		Msg("Lookup retries exhausted")
	return notFound, fmt.Errorf("lookup %q failed after %d attempts: %w",
		name, u.retry.MaxAttempts, lastErr)
}

// lookupOnce performs a single upstream request. retriable reports
// whether the failure is worth another attempt.
func (u *Upstream) lookupOnce(ctx context.Context, name string) (card Card, retriable bool, err error) {
	reqURL := u.baseURL + "?" + url.Values{"fuzzy": {name}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Card{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return Card{}, true, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		upstreamLookupsTotal.WithLabelValues("not_found").Inc()
		u.logger.Info().Str("card", name).Msg("Card not found upstream")
		return Card{Name: name, Found: false}, false, nil

	case resp.StatusCode >= 500:
		return Card{}, true, fmt.Errorf("upstream status %d", resp.StatusCode)

	case resp.StatusCode >= 400:
		return Card{}, false, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var uc upstreamCard
	if err := json.NewDecoder(resp.Body).Decode(&uc); err != nil {
		return Card{}, false, fmt.Errorf("decode upstream response: %w", err)
	}

	upstreamLookupsTotal.WithLabelValues("found").Inc()
	return Card{
		Name:       uc.Name,
		OracleText: uc.OracleText,
		ManaCost:   uc.ManaCost,
		TypeLine:   uc.TypeLine,
		SetName:    uc.SetName,
		Found:      true,
	}, false, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (u *Upstream) SetHTTPClient(client *http.Client) {
	u.httpClient = client
}

// SetBaseURL points the resolver at a different upstream (for testing).
func (u *Upstream) SetBaseURL(baseURL string) {
	u.baseURL = baseURL
}
