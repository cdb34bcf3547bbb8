package security

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ocsp"
)

// RevocationMode selects how certificate revocation is checked
type RevocationMode int

const (
	// RevocationNone skips revocation checking
	RevocationNone RevocationMode = iota
	// RevocationOCSP queries the OCSP responder only
	RevocationOCSP
	// RevocationCRL downloads the CRL only
	RevocationCRL
	// RevocationOCSPThenCRL queries OCSP and falls back to the CRL
	RevocationOCSPThenCRL
)

func (m RevocationMode) String() string {
	switch m {
	case RevocationNone:
		return "none"
	case RevocationOCSP:
		return "ocsp"
	case RevocationCRL:
		return "crl"
	case RevocationOCSPThenCRL:
		return "ocsp-crl"
	default:
		return fmt.Sprintf("RevocationMode(%d)", int(m))
	}
}

// ParseRevocationMode parses the textual form used in configuration
func ParseRevocationMode(s string) (RevocationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RevocationNone, nil
	case "ocsp":
		return RevocationOCSP, nil
	case "crl":
		return RevocationCRL, nil
	case "ocsp-crl", "ocsp_crl":
		return RevocationOCSPThenCRL, nil
	}
	return RevocationNone, fmt.Errorf("unknown revocation mode %q", s)
}

// RevocationStatus is the answer of a revocation check
type RevocationStatus int

const (
	// RevocationGood means the certificate is not revoked
	RevocationGood RevocationStatus = iota
	// RevocationRevoked means the certificate is revoked
	RevocationRevoked
	// RevocationUnknown means no source could answer
	RevocationUnknown
)

// ErrRevocationUnavailable is returned when no revocation source is reachable
var ErrRevocationUnavailable = errors.New("revocation status unavailable")

// RevocationConfig configures OCSP and CRL lookups
type RevocationConfig struct {
	// HTTPClient for OCSP and CRL requests (optional)
	HTTPClient *http.Client
	// Timeout for a single request
	Timeout time.Duration
	// CacheTimeout bounds how long an answer is reused
	CacheTimeout time.Duration
}

// DefaultRevocationConfig returns default configuration
func DefaultRevocationConfig() *RevocationConfig {
	return &RevocationConfig{
		Timeout:      10 * time.Second,
		CacheTimeout: 1 * time.Hour,
	}
}

// RevocationChecker checks certificates against OCSP responders and CRL
// distribution points, caching answers.
type RevocationChecker struct {
	httpClient *http.Client
	crlCache   *timedCache[*x509.RevocationList]
	ocspCache  *timedCache[RevocationStatus]
}

// NewRevocationChecker creates a checker. A nil config uses defaults.
func NewRevocationChecker(config *RevocationConfig) *RevocationChecker {
	if config == nil {
		config = DefaultRevocationConfig()
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &RevocationChecker{
		httpClient: client,
		crlCache:   newTimedCache[*x509.RevocationList](config.CacheTimeout),
		ocspCache:  newTimedCache[RevocationStatus](config.CacheTimeout),
	}
}

// Check returns the revocation status of cert. useCache=false forces a fresh
// lookup; the fresh answer still refreshes the cache.
func (c *RevocationChecker) Check(ctx context.Context, cert, issuer *x509.Certificate, mode RevocationMode, useCache bool) (RevocationStatus, error) {
	if cert == nil || issuer == nil {
		return RevocationUnknown, fmt.Errorf("%w: certificate and issuer are required", ErrRevocationUnavailable)
	}

	switch mode {
	case RevocationNone:
		return RevocationGood, nil
	case RevocationOCSP:
		return c.checkOCSP(ctx, cert, issuer, useCache)
	case RevocationCRL:
		return c.checkCRL(ctx, cert, issuer, useCache)
	case RevocationOCSPThenCRL:
		status, ocspErr := c.checkOCSP(ctx, cert, issuer, useCache)
		if status != RevocationUnknown {
			return status, nil
		}
		status, crlErr := c.checkCRL(ctx, cert, issuer, useCache)
		if status != RevocationUnknown {
			return status, nil
		}
		return RevocationUnknown, fmt.Errorf("%w: OCSP: %v, CRL: %v", ErrRevocationUnavailable, ocspErr, crlErr)
	}
	return RevocationUnknown, fmt.Errorf("%w: unsupported mode %s", ErrRevocationUnavailable, mode)
}

func (c *RevocationChecker) checkOCSP(ctx context.Context, cert, issuer *x509.Certificate, useCache bool) (RevocationStatus, error) {
	key := cert.SerialNumber.String()
	if useCache {
		if cached, ok := c.ocspCache.Get(key); ok {
			return cached, nil
		}
	}

	if len(cert.OCSPServer) == 0 {
		return RevocationUnknown, fmt.Errorf("%w: no OCSP server URL in certificate", ErrRevocationUnavailable)
	}

	req, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA256})
	if err != nil {
		return RevocationUnknown, fmt.Errorf("failed to create OCSP request: %w", err)
	}

	raw, err := c.doOCSPRequest(ctx, cert.OCSPServer[0], req)
	if err != nil {
		return RevocationUnknown, fmt.Errorf("%w: OCSP request failed: %v", ErrRevocationUnavailable, err)
	}

	resp, err := ocsp.ParseResponse(raw, issuer)
	if err != nil {
		return RevocationUnknown, fmt.Errorf("%w: failed to parse OCSP response: %v", ErrRevocationUnavailable, err)
	}

	var status RevocationStatus
	switch resp.Status {
	case ocsp.Good:
		status = RevocationGood
	case ocsp.Revoked:
		status = RevocationRevoked
	default:
		return RevocationUnknown, fmt.Errorf("%w: OCSP status unknown", ErrRevocationUnavailable)
	}

	c.ocspCache.Set(key, status)
	return status, nil
}

// doOCSPRequest posts the request and falls back to GET
func (c *RevocationChecker) doOCSPRequest(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ocspURL, bytes.NewReader(request))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.doOCSPGET(ctx, ocspURL, request)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.doOCSPGET(ctx, ocspURL, request)
	}
	return io.ReadAll(resp.Body)
}

func (c *RevocationChecker) doOCSPGET(ctx context.Context, ocspURL string, request []byte) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(request)
	reqURL := strings.TrimSuffix(ocspURL, "/") + "/" + url.PathEscape(encoded)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/ocsp-response")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCSP server returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *RevocationChecker) checkCRL(ctx context.Context, cert, issuer *x509.Certificate, useCache bool) (RevocationStatus, error) {
	if len(cert.CRLDistributionPoints) == 0 {
		return RevocationUnknown, fmt.Errorf("%w: no CRL distribution points in certificate", ErrRevocationUnavailable)
	}

	var lastErr error
	for _, dp := range cert.CRLDistributionPoints {
		crl, err := c.fetchCRL(ctx, dp, issuer, useCache)
		if err != nil {
			lastErr = err
			continue
		}
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return RevocationRevoked, nil
			}
		}
		return RevocationGood, nil
	}
	return RevocationUnknown, fmt.Errorf("%w: failed to check CRL: %v", ErrRevocationUnavailable, lastErr)
}

func (c *RevocationChecker) fetchCRL(ctx context.Context, crlURL string, issuer *x509.Certificate, useCache bool) (*x509.RevocationList, error) {
	if useCache {
		if cached, ok := c.crlCache.Get(crlURL); ok {
			return cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crlURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CRL server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	crl, err := x509.ParseRevocationList(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CRL: %w", err)
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return nil, fmt.Errorf("CRL signature invalid: %w", err)
	}

	c.crlCache.Set(crlURL, crl)
	return crl, nil
}

// timedCache is a thread-safe map whose entries expire after timeout
type timedCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]timedEntry[V]
	timeout time.Duration
}

type timedEntry[V any] struct {
	value    V
	storedAt time.Time
}

func newTimedCache[V any](timeout time.Duration) *timedCache[V] {
	return &timedCache[V]{
		entries: make(map[string]timedEntry[V]),
		timeout: timeout,
	}
}

func (c *timedCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Since(entry.storedAt) > c.timeout {
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (c *timedCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = timedEntry[V]{value: value, storedAt: time.Now()}
}
