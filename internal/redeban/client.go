package redeban

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Efrain290493/gft/internal/faults"
	"github.com/Efrain290493/gft/internal/secrets"
)

const (
	defaultMaxRetries = 3
	maxBackoff        = 10 * time.Second
	maxBodyBytes      = 1 << 20
)

// Config holds the upstream endpoint and the header values the Redeban
// gateway mandates on every request. Everything is environment-configurable.
type Config struct {
	BaseURL    string
	APIPath    string
	Timeout    time.Duration
	MaxRetries int
	// InsecureSkipVerify disables server certificate verification; the QA
	// sandbox presents a self-signed chain.
	InsecureSkipVerify bool

	UserAgent         string
	ForwardedFor      string
	RBMURI            string
	RBMFrom           string
	Geolocation       string
	Origin            string
	DeviceFingerprint string
}

// Client performs the mutually-authenticated commerce lookup against the
// Redeban KYC API, with retry/backoff and response classification. One client
// owns one connection pool; it is reused across sequential requests within
// the same process.
type Client struct {
	cfg  Config
	http *http.Client

	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient builds a client. When bundle is non-nil its certificate pair is
// loaded into the TLS config for mutual authentication; a nil bundle yields a
// plain client, enough for the unauthenticated health endpoint.
func NewClient(cfg Config, bundle *secrets.CredentialBundle) (*Client, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if bundle != nil {
		cert, err := tls.LoadX509KeyPair(bundle.CertPath, bundle.KeyPath)
		if err != nil {
			return nil, faults.Wrap(faults.KindFilesystem, err, "load client certificate pair")
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsCfg,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.Timeout,
		},
		now:   time.Now,
		sleep: time.Sleep,
	}, nil
}

// GetCommerceInfo looks up a merchant and normalizes the upstream response
// into a Commerce record. Transport failures, timeouts and 5xx responses are
// retried with exponential backoff; every other non-200 status is terminal
// and classified per kind.
func (c *Client) GetCommerceInfo(ctx context.Context, merchantID, token string, includeRaw bool) (Commerce, error) {
	if strings.TrimSpace(merchantID) == "" {
		return Commerce{}, faults.New(faults.KindValidation, "merchant id is required")
	}
	if strings.TrimSpace(token) == "" {
		return Commerce{}, faults.New(faults.KindValidation, "bearer token is required")
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			log.Printf("[redeban] retrying merchant %s in %s (attempt %d/%d)", merchantID, delay, attempt+1, c.cfg.MaxRetries)
			c.sleep(delay)
		}

		resp, err := c.do(ctx, merchantID, token, includeRaw)
		if err != nil {
			lastErr = classifyTransport(err)
			log.Printf("[redeban] attempt %d failed: %v", attempt+1, err)
			continue
		}

		out, err := c.handleResponse(resp, merchantID, includeRaw)
		if err == nil {
			return out, nil
		}
		if !faults.KindOf(err).Retryable() {
			return Commerce{}, err
		}
		lastErr = err
		log.Printf("[redeban] attempt %d failed: %v", attempt+1, err)
	}

	log.Printf("[redeban] all attempts exhausted for merchant %s", merchantID)
	return Commerce{}, lastErr
}

// backoffDelay is min(2^attempt, 10) seconds.
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (c *Client) do(ctx context.Context, merchantID, token string, includeRaw bool) (*http.Response, error) {
	u := fmt.Sprintf("%s%s/Commerce/%s", c.cfg.BaseURL, c.cfg.APIPath, url.PathEscape(merchantID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	q.Set("format", "json")
	q.Set("include_details", strconv.FormatBool(includeRaw))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Cache-Control", "no-cache")
	// millisecond-precision local timestamp, per the gateway swagger
	req.Header.Set("Date", c.now().Format("2006-01-02T15:04:05.000"))
	req.Header.Set("X-Forwarded-For", c.cfg.ForwardedFor)
	req.Header.Set("RBMURI", c.cfg.RBMURI)
	req.Header.Set("RBM-FROM", c.cfg.RBMFrom)
	req.Header.Set("Geolocation", c.cfg.Geolocation)
	req.Header.Set("X-Request-ID", uuid.NewString())
	req.Header.Set("Origin", c.cfg.Origin)
	if c.cfg.DeviceFingerprint != "" {
		req.Header.Set("X-Device-Fingerprint", c.cfg.DeviceFingerprint)
	}

	return c.http.Do(req)
}

func (c *Client) handleResponse(resp *http.Response, merchantID string, includeRaw bool) (Commerce, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Commerce{}, faults.Wrap(faults.KindUpstreamUnavailable, err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var raw any
		if err := json.Unmarshal(body, &raw); err != nil {
			return Commerce{}, faults.Wrap(faults.KindResponseParse, err, "response is not valid JSON")
		}
		return c.normalizeGuarded(raw, merchantID, includeRaw), nil

	case resp.StatusCode == http.StatusBadRequest:
		return Commerce{}, faults.New(faults.KindBadRequest, "upstream rejected parameters: %s", errorDetail(body))

	case resp.StatusCode == http.StatusUnauthorized:
		return Commerce{}, faults.New(faults.KindAuthentication, "authentication token invalid or expired")

	case resp.StatusCode == http.StatusForbidden:
		return Commerce{}, faults.New(faults.KindForbidden, "access forbidden - check api permissions")

	case resp.StatusCode == http.StatusNotFound:
		return Commerce{}, faults.New(faults.KindMerchantNotFound, "commerce not found: %s", merchantID)

	case resp.StatusCode == http.StatusUnprocessableEntity:
		return Commerce{}, faults.New(faults.KindValidationFailed, "upstream validation failed: %s", errorDetail(body))

	case resp.StatusCode == http.StatusTooManyRequests:
		return Commerce{}, faults.New(faults.KindRateLimited, "request rate limit exceeded")

	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return Commerce{}, faults.New(faults.KindUpstreamServer, "redeban server error: %d", resp.StatusCode)
	}

	return Commerce{}, faults.New(faults.KindUnexpectedStatus, "unexpected status code: %d", resp.StatusCode)
}

// normalizeGuarded never fails: a 200 response with a shape that defeats
// normalization degrades into a record carrying processing_error instead of
// turning the whole request into an outage.
func (c *Client) normalizeGuarded(raw any, merchantID string, includeRaw bool) (out Commerce) {
	now := c.now().UTC()
	defer func() {
		if r := recover(); r != nil {
			out = degradedRecord(raw, merchantID, includeRaw, now, fmt.Sprintf("%v", r))
		}
	}()
	return Normalize(raw, merchantID, includeRaw, now)
}

// errorDetail extracts the most specific message from an upstream error body.
func errorDetail(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"moreInformation", "message", "error"} {
			if s, ok := parsed[key].(string); ok && s != "" {
				return s
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "no details"
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func classifyTransport(err error) error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return faults.Wrap(faults.KindUpstreamTimeout, err, "timeout calling redeban api")
	case errors.As(err, &ne) && ne.Timeout():
		return faults.Wrap(faults.KindUpstreamTimeout, err, "timeout calling redeban api")
	}
	return faults.Wrap(faults.KindUpstreamUnavailable, err, "connection error calling redeban api")
}

// HealthStatus reports reachability of the upstream health endpoint.
type HealthStatus struct {
	Status         string  `json:"status"`
	StatusCode     int     `json:"status_code,omitempty"`
	ResponseTimeMS float64 `json:"response_time_ms,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// HealthCheck probes GET {base}/health with a fixed 10s budget.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return HealthStatus{Status: "unhealthy", Error: err.Error()}
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return HealthStatus{Status: "unhealthy", Error: err.Error()}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	status := "unhealthy"
	if resp.StatusCode == http.StatusOK {
		status = "healthy"
	}
	return HealthStatus{
		Status:         status,
		StatusCode:     resp.StatusCode,
		ResponseTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
	}
}
