package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

const userAgent = "go-as4sender/1.0"

// MaxResponseSize bounds how much of a response body is read
const MaxResponseSize = 16 << 20

var (
	// ErrTransport is returned when no attempt produced a usable response
	ErrTransport = errors.New("transport error")
	// ErrResponseTooLarge is returned when a response body exceeds MaxResponseSize
	ErrResponseTooLarge = errors.New("response body too large")
)

// RecommendedTLS12CipherSuites are the eDelivery AS4 TLS 1.2 suites
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPSConfig contains HTTPS client configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	Certificates    []tls.Certificate
	RootCAs         *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
}

// DefaultHTTPSConfig returns TLS 1.2 to 1.3 with a 30s request timeout
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
	}
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BodyFunc produces a fresh request body for every attempt
type BodyFunc func() (body io.Reader, contentType string, err error)

// RetryPolicy bounds SendWithRetry. Attempts = 1 + MaxRetries at most.
type RetryPolicy struct {
	MaxRetries int
	Interval   time.Duration
	// RetryOn decides whether a received response is retried; nil retries
	// non-2xx responses with an empty body
	RetryOn func(*Response) bool
}

func (p RetryPolicy) retryOn(resp *Response) bool {
	if p.RetryOn != nil {
		return p.RetryOn(resp)
	}
	return !resp.OK() && len(resp.Body) == 0
}

// HTTPSClient posts AS4 messages
type HTTPSClient struct {
	client *http.Client
	config *HTTPSConfig
	logger *slog.Logger
}

// ClientOption configures an HTTPSClient
type ClientOption func(*HTTPSClient)

// WithHTTPClient replaces the TLS-configured client, e.g. with an httptest client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPSClient) { h.client = c }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(h *HTTPSClient) { h.logger = logger }
}

// NewHTTPSClient creates a client; a nil config uses DefaultHTTPSConfig
func NewHTTPSClient(config *HTTPSConfig, opts ...ClientOption) *HTTPSClient {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:   config.MinTLSVersion,
			MaxVersion:   config.MaxTLSVersion,
			CipherSuites: config.CipherSuites,
			Certificates: config.Certificates,
			RootCAs:      config.RootCAs,
		},
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	c := &HTTPSClient{
		client: &http.Client{Transport: transport, Timeout: config.Timeout},
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends one request and reads the whole response. Any HTTP status is
// returned as a Response; only I/O failures are errors.
func (c *HTTPSClient) Post(ctx context.Context, endpoint string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("SOAPAction", "")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, MaxResponseSize)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// SendWithRetry posts a fresh body per attempt until a response is accepted
// by the policy or the attempts run out. It returns the number of attempts
// made. A body construction failure is returned immediately. When the
// attempts run out the response of the last attempt, if it got one, is
// returned together with the ErrTransport error.
func (c *HTTPSClient) SendWithRetry(ctx context.Context, endpoint string, newBody BodyFunc, policy RetryPolicy) (*Response, int, error) {
	maxAttempts := 1 + max(policy.MaxRetries, 0)
	var (
		lastErr  error
		lastResp *Response
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, policy.Interval); err != nil {
				return lastResp, attempt - 1, fmt.Errorf("%w: %w", ErrTransport, err)
			}
		}

		body, contentType, err := newBody()
		if err != nil {
			return nil, attempt - 1, fmt.Errorf("failed to build request body: %w", err)
		}

		resp, err := c.Post(ctx, endpoint, body, contentType)
		if closer, ok := body.(io.Closer); ok {
			_ = closer.Close()
		}
		lastResp = resp
		switch {
		case err != nil:
			lastErr = err
		case policy.retryOn(resp):
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		default:
			return resp, attempt, nil
		}

		c.logger.Warn("AS4 transmission attempt failed",
			"url", endpoint,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"error", lastErr)

		if ctx.Err() != nil {
			return lastResp, attempt, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
		}
	}
	return lastResp, maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrTransport, maxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
