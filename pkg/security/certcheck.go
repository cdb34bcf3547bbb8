package security

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// CheckResult is the outcome of a certificate trust check
type CheckResult int

const (
	// CertValid means the certificate is trusted at the check time
	CertValid CheckResult = iota
	// CertNotChecked means checking was administratively disabled
	CertNotChecked
	// CertNoCertificate means there was nothing to check
	CertNoCertificate
	// CertExpired means NotAfter lies before the check time
	CertExpired
	// CertNotYetValid means NotBefore lies after the check time
	CertNotYetValid
	// CertUntrusted means no chain to a trust anchor could be built
	CertUntrusted
	// CertRevoked means the issuer revoked the certificate
	CertRevoked
	// CertRevocationUnknown means revocation status could not be determined
	CertRevocationUnknown
)

var checkResultNames = map[CheckResult]string{
	CertValid:             "valid",
	CertNotChecked:        "not-checked",
	CertNoCertificate:     "no-certificate",
	CertExpired:           "expired",
	CertNotYetValid:       "not-yet-valid",
	CertUntrusted:         "untrusted",
	CertRevoked:           "revoked",
	CertRevocationUnknown: "revocation-unknown",
}

func (r CheckResult) String() string {
	if s, ok := checkResultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("CheckResult(%d)", int(r))
}

// IsValid reports whether the result allows the certificate to be used.
// CertNotChecked is not valid; callers decide whether an unchecked
// certificate is acceptable.
func (r CheckResult) IsValid() bool {
	return r == CertValid
}

// ErrCertificateInvalid wraps every failed check result
var ErrCertificateInvalid = errors.New("certificate check failed")

// CheckOptions carries the per-call parameters of a certificate check. Nil
// overrides fall back to the checker's configuration.
type CheckOptions struct {
	Now             time.Time
	CacheRevocation *bool
	RevocationMode  *RevocationMode
}

// CertificateChecker decides whether a certificate may be trusted
type CertificateChecker interface {
	CheckCertificate(ctx context.Context, cert *x509.Certificate, opts CheckOptions) (CheckResult, error)
}

// CheckCertificate runs checker for cert at now. cacheOverride and
// modeOverride replace the checker's revocation defaults when non-nil, so a
// single transmission can force a fresh lookup.
func CheckCertificate(ctx context.Context, checker CertificateChecker, cert *x509.Certificate, now time.Time, cacheOverride *bool, modeOverride *RevocationMode) (CheckResult, error) {
	if cert == nil {
		return CertNoCertificate, fmt.Errorf("%w: no certificate", ErrCertificateInvalid)
	}
	if checker == nil {
		return CertNotChecked, nil
	}
	return checker.CheckCertificate(ctx, cert, CheckOptions{
		Now:             now,
		CacheRevocation: cacheOverride,
		RevocationMode:  modeOverride,
	})
}

// TrustStoreChecker validates certificates against a CA pool, optionally
// followed by a revocation check.
type TrustStoreChecker struct {
	roots           *x509.CertPool
	intermediates   *x509.CertPool
	revocation      *RevocationChecker
	mode            RevocationMode
	cacheRevocation bool
	logger          *slog.Logger
}

// CheckerOption configures a TrustStoreChecker
type CheckerOption func(*TrustStoreChecker)

// WithIntermediates adds intermediate CAs used for chain building
func WithIntermediates(pool *x509.CertPool) CheckerOption {
	return func(c *TrustStoreChecker) { c.intermediates = pool }
}

// WithRevocation sets the default revocation mode and caching
func WithRevocation(mode RevocationMode, useCache bool) CheckerOption {
	return func(c *TrustStoreChecker) {
		c.mode = mode
		c.cacheRevocation = useCache
	}
}

// WithRevocationChecker replaces the default revocation checker
func WithRevocationChecker(rc *RevocationChecker) CheckerOption {
	return func(c *TrustStoreChecker) { c.revocation = rc }
}

// WithCheckerLogger sets the logger
func WithCheckerLogger(logger *slog.Logger) CheckerOption {
	return func(c *TrustStoreChecker) { c.logger = logger }
}

// NewTrustStoreChecker creates a checker trusting roots
func NewTrustStoreChecker(roots *x509.CertPool, opts ...CheckerOption) *TrustStoreChecker {
	c := &TrustStoreChecker{
		roots:           roots,
		cacheRevocation: true,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.intermediates == nil {
		c.intermediates = x509.NewCertPool()
	}
	if c.revocation == nil {
		c.revocation = NewRevocationChecker(nil)
	}
	return c
}

// CheckCertificate implements CertificateChecker
func (c *TrustStoreChecker) CheckCertificate(ctx context.Context, cert *x509.Certificate, opts CheckOptions) (CheckResult, error) {
	if cert == nil {
		return CertNoCertificate, fmt.Errorf("%w: no certificate", ErrCertificateInvalid)
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	logger := c.logger.With("subject", cert.Subject.String(), "serial", cert.SerialNumber.String())

	if now.Before(cert.NotBefore) {
		logger.Warn("certificate not yet valid", "not_before", cert.NotBefore)
		return CertNotYetValid, fmt.Errorf("%w: not valid before %s", ErrCertificateInvalid, cert.NotBefore)
	}
	if now.After(cert.NotAfter) {
		logger.Warn("certificate expired", "not_after", cert.NotAfter)
		return CertExpired, fmt.Errorf("%w: expired at %s", ErrCertificateInvalid, cert.NotAfter)
	}

	chains, err := cert.Verify(x509.VerifyOptions{
		Roots:         c.roots,
		Intermediates: c.intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		logger.Warn("certificate not trusted", "error", err)
		return CertUntrusted, fmt.Errorf("%w: %v", ErrCertificateInvalid, err)
	}

	mode := c.mode
	if opts.RevocationMode != nil {
		mode = *opts.RevocationMode
	}
	useCache := c.cacheRevocation
	if opts.CacheRevocation != nil {
		useCache = *opts.CacheRevocation
	}
	if mode == RevocationNone {
		return CertValid, nil
	}

	// a trust anchor has no issuer to ask
	if len(chains) == 0 || len(chains[0]) < 2 {
		return CertValid, nil
	}

	status, err := c.revocation.Check(ctx, cert, chains[0][1], mode, useCache)
	switch status {
	case RevocationGood:
		return CertValid, nil
	case RevocationRevoked:
		logger.Warn("certificate revoked", "mode", mode.String())
		return CertRevoked, fmt.Errorf("%w: certificate revoked", ErrCertificateInvalid)
	default:
		logger.Warn("certificate revocation status unknown", "mode", mode.String(), "error", err)
		return CertRevocationUnknown, fmt.Errorf("%w: %v", ErrCertificateInvalid, err)
	}
}
