package discovery

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

var (
	// ErrLookup wraps every resolution failure
	ErrLookup = errors.New("endpoint lookup failed")
	// ErrInvalidIdentifier is returned for empty or malformed identifiers
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrInvalidCertificate is returned when the published certificate cannot be decoded
	ErrInvalidCertificate = errors.New("invalid endpoint certificate")
)

// Resolution is the receiver access point as published in metadata
type Resolution struct {
	Certificate      *x509.Certificate
	URL              string
	TechnicalContact string
	TransportProfile string
}

// Resolver maps (document type, process, receiver) to the receiver access point.
// Implementations return either a complete Resolution or an error wrapping
// ErrLookup, never a partial result.
type Resolver interface {
	Resolve(ctx context.Context, docType, process, receiver message.Identifier) (*Resolution, error)
}

// StaticResolver returns the same endpoint for every receiver
type StaticResolver struct {
	URL              string
	Certificate      *x509.Certificate
	TechnicalContact string
}

// Resolve implements Resolver
func (s *StaticResolver) Resolve(_ context.Context, _, _, _ message.Identifier) (*Resolution, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("%w: static endpoint URL not configured", ErrLookup)
	}
	if s.Certificate == nil {
		return nil, fmt.Errorf("%w: static endpoint certificate not configured", ErrLookup)
	}
	return &Resolution{Certificate: s.Certificate, URL: s.URL, TechnicalContact: s.TechnicalContact}, nil
}

// SMPResolver looks up the receiver in an SMP, optionally locating the SMP via BDXL
type SMPResolver struct {
	smp      *SMPClient
	bdxl     *BDXLClient
	smpURL   string
	profiles []string
	now      func() time.Time
	logger   *slog.Logger
}

// SMPOption configures an SMPResolver
type SMPOption func(*SMPResolver)

// WithFixedSMP queries smpURL directly instead of using BDXL
func WithFixedSMP(smpURL string) SMPOption {
	return func(r *SMPResolver) { r.smpURL = smpURL }
}

// WithBDXL locates the SMP per receiver through DNS
func WithBDXL(client *BDXLClient) SMPOption {
	return func(r *SMPResolver) { r.bdxl = client }
}

// WithTransportProfiles overrides DefaultTransportProfiles
func WithTransportProfiles(profiles ...string) SMPOption {
	return func(r *SMPResolver) { r.profiles = profiles }
}

// WithClock sets the time used for the activation window
func WithClock(now func() time.Time) SMPOption {
	return func(r *SMPResolver) { r.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) SMPOption {
	return func(r *SMPResolver) { r.logger = logger }
}

// NewSMPResolver creates a resolver. One of WithFixedSMP or WithBDXL is required.
func NewSMPResolver(smp *SMPClient, opts ...SMPOption) (*SMPResolver, error) {
	if smp == nil {
		smp = NewSMPClient(nil)
	}
	r := &SMPResolver{
		smp:      smp,
		profiles: DefaultTransportProfiles,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.smpURL == "" && r.bdxl == nil {
		return nil, errors.New("SMP resolver needs either a fixed SMP URL or a BDXL client")
	}
	return r, nil
}

// Resolve implements Resolver
func (r *SMPResolver) Resolve(ctx context.Context, docType, process, receiver message.Identifier) (*Resolution, error) {
	if docType.Value == "" || process.Value == "" || receiver.Value == "" {
		return nil, fmt.Errorf("%w: %w: document type, process and receiver are required", ErrLookup, ErrInvalidIdentifier)
	}

	smpURL := r.smpURL
	if r.bdxl != nil {
		found, err := r.bdxl.LookupSMP(ctx, receiver)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLookup, err)
		}
		smpURL = found
	}
	r.logger.Debug("querying SMP", "smp", smpURL, "receiver", receiver.String(), "documentType", docType.String())

	sm, err := r.smp.GetServiceMetadata(ctx, smpURL, receiver, docType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	pm, err := sm.Process(process)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	ep, err := SelectEndpoint(pm.Endpoints, r.profiles, r.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if ep.URL == "" {
		return nil, fmt.Errorf("%w: endpoint without URL", ErrLookup)
	}
	cert, err := DecodeCertificate(ep.Certificate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}

	r.logger.Info("resolved receiver endpoint",
		"receiver", receiver.String(),
		"url", ep.URL,
		"transportProfile", ep.TransportProfile,
		"subject", cert.Subject.String())

	return &Resolution{
		Certificate:      cert,
		URL:              ep.URL,
		TechnicalContact: ep.TechnicalContact,
		TransportProfile: ep.TransportProfile,
	}, nil
}

// DecodeCertificate accepts PEM or bare base64 DER, whitespace tolerated
func DecodeCertificate(s string) (*x509.Certificate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCertificate)
	}
	var der []byte
	if block, _ := pem.Decode([]byte(s)); block != nil {
		der = block.Bytes
	} else {
		compact := strings.Join(strings.Fields(s), "")
		decoded, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
		}
		der = decoded
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	return cert, nil
}
