// Package config handles configuration loading for the as4send command.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so key paths and endpoints
// can be injected at runtime.
//
// # Configuration Sections
//
//   - sender: sending party, retries, temporary files and compression
//   - transport: HTTP timeout and minimum TLS version
//   - discovery: how the receiving endpoint is found (static, smp or bdxl)
//   - trust: receiver certificate checking and revocation
//   - signing: key and certificate PEM files
//   - logging: slog level and handler format
//   - pmodes: processing modes selectable by id
//
// # Example Configuration
//
//	sender:
//	  partyId: POP000001
//	  maxRetries: 2
//	  retryInterval: 10s
//	  compression: gzip
//
//	discovery:
//	  mode: bdxl
//	  bdxl:
//	    domain: edelivery.tech.ec.europa.eu
//
//	trust:
//	  caFile: /etc/as4/peppol-ap-ca.pem
//	  revocation: ocsp-crl
//
//	signing:
//	  keyFile: ${AS4_KEY_FILE}
//	  certFile: /etc/as4/ap.crt
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirosfoundation/go-as4sender/pkg/compression"
	"github.com/sirosfoundation/go-as4sender/pkg/discovery"
	"github.com/sirosfoundation/go-as4sender/pkg/pmode"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
	"gopkg.in/yaml.v3"
)

// Discovery modes
const (
	DiscoveryStatic = "static"
	DiscoverySMP    = "smp"
	DiscoveryBDXL   = "bdxl"
)

// Config is the root configuration structure
type Config struct {
	Sender    SenderConfig            `yaml:"sender"`
	Transport TransportConfig         `yaml:"transport"`
	Discovery DiscoveryConfig         `yaml:"discovery"`
	Trust     TrustConfig             `yaml:"trust"`
	Signing   SigningConfig           `yaml:"signing"`
	Logging   LoggingConfig           `yaml:"logging"`
	PModes    []*pmode.ProcessingMode `yaml:"pmodes"`
}

// SenderConfig holds message defaults
type SenderConfig struct {
	// PartyID is the From party id, usually the CN of the AP certificate
	PartyID       string        `yaml:"partyId"`
	CountryC1     string        `yaml:"countryC1"`
	PModeID       string        `yaml:"pmode"`
	MaxRetries    *int          `yaml:"maxRetries"`
	RetryInterval time.Duration `yaml:"retryInterval"`
	TempDir       string        `yaml:"tempDir"`
	// Compression is "gzip" or "none"; empty follows the P-Mode
	Compression string `yaml:"compression"`
}

// TransportConfig holds HTTP client settings
type TransportConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MinTLSVersion string        `yaml:"minTlsVersion"` // "1.2" or "1.3"
}

// DiscoveryConfig selects and configures the endpoint resolver
type DiscoveryConfig struct {
	Mode   string `yaml:"mode"`
	Static struct {
		URL             string `yaml:"url"`
		CertificateFile string `yaml:"certificateFile"`
		Contact         string `yaml:"technicalContact"`
	} `yaml:"static"`
	SMP struct {
		URL string `yaml:"url"`
	} `yaml:"smp"`
	BDXL struct {
		Domain     string `yaml:"domain"`
		DNSServer  string `yaml:"dnsServer"`
		HashFormat string `yaml:"hashFormat"`
	} `yaml:"bdxl"`
	TransportProfiles []string `yaml:"transportProfiles"`
}

// TrustConfig holds receiver certificate checking settings
type TrustConfig struct {
	CAFile string `yaml:"caFile"`
	// Enabled defaults to true when a CA file is set
	Enabled         *bool  `yaml:"enabled"`
	Revocation      string `yaml:"revocation"`
	CacheRevocation *bool  `yaml:"cacheRevocation"`
}

// SigningConfig holds the signing key material
type SigningConfig struct {
	KeyFile  string `yaml:"keyFile"`
	CertFile string `yaml:"certFile"`
	// Hash is sha256 or sha512
	Hash string `yaml:"hash"`
}

// LoggingConfig holds slog settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration after expanding environment variables
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 30 * time.Second
	}
	if c.Transport.MinTLSVersion == "" {
		c.Transport.MinTLSVersion = "1.2"
	}
	if c.Discovery.Mode == "" {
		c.Discovery.Mode = DiscoveryStatic
	}
	if c.Discovery.BDXL.HashFormat == "" {
		c.Discovery.BDXL.HashFormat = string(discovery.HashPeppol)
	}
	if c.Trust.Enabled == nil {
		enabled := c.Trust.CAFile != ""
		c.Trust.Enabled = &enabled
	}
	if c.Trust.CacheRevocation == nil {
		cache := true
		c.Trust.CacheRevocation = &cache
	}
	if c.Signing.Hash == "" {
		c.Signing.Hash = "sha256"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Discovery.Mode {
	case DiscoveryStatic:
		if c.Discovery.Static.URL == "" || c.Discovery.Static.CertificateFile == "" {
			return fmt.Errorf("discovery.static.url and discovery.static.certificateFile are required when mode is 'static'")
		}
	case DiscoverySMP:
		if c.Discovery.SMP.URL == "" {
			return fmt.Errorf("discovery.smp.url is required when mode is 'smp'")
		}
	case DiscoveryBDXL:
		if c.Discovery.BDXL.Domain == "" {
			return fmt.Errorf("discovery.bdxl.domain is required when mode is 'bdxl'")
		}
	default:
		return fmt.Errorf("discovery.mode must be 'static', 'smp', or 'bdxl', got '%s'", c.Discovery.Mode)
	}

	switch discovery.HashFormat(c.Discovery.BDXL.HashFormat) {
	case discovery.HashPeppol, discovery.HashEbCore:
	default:
		return fmt.Errorf("discovery.bdxl.hashFormat must be 'peppol' or 'ebcore', got '%s'", c.Discovery.BDXL.HashFormat)
	}

	if _, err := c.RevocationMode(); err != nil {
		return fmt.Errorf("trust.revocation: %w", err)
	}
	if *c.Trust.Enabled && c.Trust.CAFile == "" {
		return fmt.Errorf("trust.caFile is required when certificate checking is enabled")
	}

	if (c.Signing.KeyFile == "") != (c.Signing.CertFile == "") {
		return fmt.Errorf("signing.keyFile and signing.certFile must be set together")
	}

	switch c.Sender.Compression {
	case "", "none", "gzip":
	default:
		return fmt.Errorf("sender.compression must be 'gzip' or 'none', got '%s'", c.Sender.Compression)
	}
	if c.Sender.MaxRetries != nil && *c.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.maxRetries must not be negative")
	}

	switch c.Transport.MinTLSVersion {
	case "1.2", "1.3":
	default:
		return fmt.Errorf("transport.minTlsVersion must be '1.2' or '1.3', got '%s'", c.Transport.MinTLSVersion)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", c.Logging.Format)
	}

	seen := make(map[string]bool)
	for i, pm := range c.PModes {
		if pm == nil || pm.ID == "" {
			return fmt.Errorf("pmodes[%d].id is required", i)
		}
		if seen[pm.ID] {
			return fmt.Errorf("duplicate pmode id '%s'", pm.ID)
		}
		seen[pm.ID] = true
		if _, err := pm.Compression(); err != nil {
			return fmt.Errorf("pmodes[%d]: %w", i, err)
		}
	}
	if c.Sender.PModeID != "" && !seen[c.Sender.PModeID] {
		return fmt.Errorf("sender.pmode '%s' is not defined in pmodes", c.Sender.PModeID)
	}

	return nil
}

// RevocationMode returns the parsed trust.revocation setting
func (c *Config) RevocationMode() (security.RevocationMode, error) {
	return security.ParseRevocationMode(c.Trust.Revocation)
}

// CompressionMode returns the configured compression, with explicit false
// when compression was switched off
func (c *Config) CompressionMode() (mode *compression.Mode, explicit bool) {
	switch c.Sender.Compression {
	case "gzip":
		return compression.Gzip, true
	case "none":
		return nil, true
	}
	return nil, false
}

// PMode returns the selected processing mode from a registry of the
// configured ones, falling back to the default P-Mode
func (c *Config) PMode() *pmode.ProcessingMode {
	registry := pmode.NewRegistry(c.PModes...)
	if c.Sender.PModeID != "" {
		if pm := registry.Get(c.Sender.PModeID); pm != nil {
			return pm
		}
	}
	return pmode.DefaultPMode()
}
