package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/miekg/dns"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

var (
	// ErrNoRecordsFound is returned when no U-NAPTR records exist for the participant
	ErrNoRecordsFound = errors.New("no BDXL records found for participant")
	// ErrServiceNotFound is returned when no record names an SMP service
	ErrServiceNotFound = errors.New("no matching service found in BDXL records")
	// ErrInvalidNAPTRRecord is returned when a NAPTR record cannot be turned into a URL
	ErrInvalidNAPTRRecord = errors.New("invalid NAPTR record format")
)

// Service names accepted in U-NAPTR records
const (
	ServiceSMP1 = "Meta:SMP"
	ServiceSMP2 = "oasis-bdxr-smp-2"
)

// HashFormat selects how the participant identifier becomes a DNS label
type HashFormat string

const (
	// HashPeppol hashes the lower-cased identifier value and appends the scheme
	// as its own label: B32(SHA256(lower(value))).scheme.domain
	HashPeppol HashFormat = "peppol"
	// HashEbCore hashes the complete identifier: B32(SHA256(id)).domain
	HashEbCore HashFormat = "ebcore"
)

// BDXLConfig configures the DNS side of dynamic discovery
type BDXLConfig struct {
	// Domain is the SML/BDXL zone, e.g. "edelivery.tech.ec.europa.eu"
	Domain string
	// DNSServer is "host:port"; empty uses the first resolv.conf server
	DNSServer string
	// Format defaults to HashPeppol
	Format HashFormat
}

// BDXLClient finds the SMP base URL for a participant via U-NAPTR lookup
type BDXLClient struct {
	config BDXLConfig
	dns    *dns.Client
}

// NewBDXLClient creates a client for the given zone
func NewBDXLClient(config BDXLConfig) *BDXLClient {
	if config.Format == "" {
		config.Format = HashPeppol
	}
	return &BDXLClient{config: config, dns: new(dns.Client)}
}

// LookupSMP returns the SMP base URL published for the participant
func (c *BDXLClient) LookupSMP(ctx context.Context, participant message.Identifier) (string, error) {
	name, err := c.QueryName(participant)
	if err != nil {
		return "", err
	}
	return c.lookupNAPTR(ctx, name)
}

// QueryName builds the DNS name queried for participant
func (c *BDXLClient) QueryName(participant message.Identifier) (string, error) {
	if participant.Value == "" {
		return "", fmt.Errorf("%w: empty participant identifier", ErrInvalidIdentifier)
	}
	domain := strings.Trim(c.config.Domain, ".")
	switch c.config.Format {
	case HashEbCore:
		return hashLabel(participant.String()) + "." + domain, nil
	default:
		if participant.Scheme == "" {
			return "", fmt.Errorf("%w: participant scheme required", ErrInvalidIdentifier)
		}
		return hashLabel(strings.ToLower(participant.Value)) + "." + participant.Scheme + "." + domain, nil
	}
}

// hashLabel is the unpadded base32 SHA-256 of s
func hashLabel(s string) string {
	sum := sha256.Sum256([]byte(s))
	return strings.TrimRight(base32.StdEncoding.EncodeToString(sum[:]), "=")
}

func (c *BDXLClient) server() (string, error) {
	if c.config.DNSServer != "" {
		return c.config.DNSServer, nil
	}
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return "", fmt.Errorf("failed to read DNS config: %w", err)
	}
	if len(conf.Servers) == 0 {
		return "", errors.New("no DNS servers configured")
	}
	return conf.Servers[0] + ":" + conf.Port, nil
}

func (c *BDXLClient) lookupNAPTR(ctx context.Context, name string) (string, error) {
	server, err := c.server()
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeNAPTR)
	msg.RecursionDesired = true

	resp, _, err := c.dns.ExchangeContext(ctx, msg, server)
	if err != nil {
		return "", fmt.Errorf("DNS lookup failed for %s: %w", name, err)
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, name)
	default:
		return "", fmt.Errorf("DNS lookup failed for %s: %s", name, dns.RcodeToString[resp.Rcode])
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRecordsFound, name)
	}
	return selectRecord(records)
}

// selectRecord picks the terminal SMP record with the lowest order, then
// preference, and returns its replacement URL
func selectRecord(records []*dns.NAPTR) (string, error) {
	var best *dns.NAPTR
	for _, r := range records {
		if !strings.EqualFold(r.Flags, "U") {
			continue
		}
		if !strings.EqualFold(r.Service, ServiceSMP1) && !strings.EqualFold(r.Service, ServiceSMP2) {
			continue
		}
		if best == nil || r.Order < best.Order || (r.Order == best.Order && r.Preference < best.Preference) {
			best = r
		}
	}
	if best == nil {
		return "", ErrServiceNotFound
	}
	return urlFromRegexp(best.Regexp)
}

// urlFromRegexp extracts the replacement of a "!pattern!replacement!" field
func urlFromRegexp(field string) (string, error) {
	if len(field) < 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidNAPTRRecord, field)
	}
	delim := field[:1]
	parts := strings.Split(field[1:], delim)
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidNAPTRRecord, field)
	}
	u, err := url.Parse(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNAPTRRecord, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidNAPTRRecord, u.Scheme)
	}
	return parts[1], nil
}
