package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirosfoundation/go-as4sender/pkg/compression"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("TEST_AS4_KEY", "/keys/ap.key")
	path := filepath.Join(t.TempDir(), "as4send.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sender:
  partyId: POP000001
  pmode: peppol
  maxRetries: 3
  retryInterval: 5s
discovery:
  mode: bdxl
  bdxl:
    domain: acc.edelivery.tech.ec.europa.eu
trust:
  caFile: /etc/as4/ca.pem
  revocation: ocsp-crl
signing:
  keyFile: ${TEST_AS4_KEY}
  certFile: /keys/ap.crt
pmodes:
  - id: peppol
    agreement:
      name: urn:fdc:peppol.eu:2017:agreements:tia:ap_provider
    reception_awareness:
      retry:
        max_retries: 1
        interval: 1m
    payload_service:
      compression_type: application/gzip
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "POP000001", cfg.Sender.PartyID)
	require.NotNil(t, cfg.Sender.MaxRetries)
	assert.Equal(t, 3, *cfg.Sender.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Sender.RetryInterval)
	assert.Equal(t, "/keys/ap.key", cfg.Signing.KeyFile)
	assert.Equal(t, "sha256", cfg.Signing.Hash)
	assert.True(t, *cfg.Trust.Enabled)
	assert.True(t, *cfg.Trust.CacheRevocation)
	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, "peppol", cfg.Discovery.BDXL.HashFormat)

	mode, err := cfg.RevocationMode()
	require.NoError(t, err)
	assert.Equal(t, security.RevocationOCSPThenCRL, mode)

	pm := cfg.PMode()
	assert.Equal(t, "peppol", pm.ID)
	retries, interval := pm.Retry()
	assert.Equal(t, 1, retries)
	assert.Equal(t, time.Minute, interval)
	c, err := pm.Compression()
	require.NoError(t, err)
	assert.Equal(t, compression.Gzip, c)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
discovery:
  static:
    url: https://ap.example.org/as4
    certificateFile: /etc/as4/receiver.pem
`))
	require.NoError(t, err)
	assert.Equal(t, DiscoveryStatic, cfg.Discovery.Mode)
	assert.False(t, *cfg.Trust.Enabled, "checking stays off without a CA file")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "1.2", cfg.Transport.MinTLSVersion)

	mode, explicit := cfg.CompressionMode()
	assert.Nil(t, mode)
	assert.False(t, explicit)
	assert.Equal(t, "default-pmode", cfg.PMode().ID)
}

func TestCompressionMode(t *testing.T) {
	cfg := &Config{Sender: SenderConfig{Compression: "none"}}
	mode, explicit := cfg.CompressionMode()
	assert.Nil(t, mode)
	assert.True(t, explicit)

	cfg.Sender.Compression = "gzip"
	mode, explicit = cfg.CompressionMode()
	assert.Equal(t, compression.Gzip, mode)
	assert.True(t, explicit)
}

func TestValidate(t *testing.T) {
	static := "discovery:\n  static:\n    url: https://ap.example.org/as4\n    certificateFile: r.pem\n"
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"static needs url", "discovery:\n  mode: static\n", "discovery.static.url"},
		{"smp needs url", "discovery:\n  mode: smp\n", "discovery.smp.url"},
		{"bdxl needs domain", "discovery:\n  mode: bdxl\n", "discovery.bdxl.domain"},
		{"unknown mode", "discovery:\n  mode: ldap\n", "discovery.mode"},
		{"hash format", "discovery:\n  mode: bdxl\n  bdxl:\n    domain: x\n    hashFormat: md5\n", "hashFormat"},
		{"revocation", static + "trust:\n  caFile: ca.pem\n  revocation: sometimes\n", "trust.revocation"},
		{"enabled without CA", static + "trust:\n  enabled: true\n", "trust.caFile"},
		{"half key pair", static + "signing:\n  keyFile: k.pem\n", "signing.keyFile"},
		{"compression", static + "sender:\n  compression: zstd\n", "sender.compression"},
		{"negative retries", static + "sender:\n  maxRetries: -1\n", "sender.maxRetries"},
		{"tls version", static + "transport:\n  minTlsVersion: \"1.0\"\n", "minTlsVersion"},
		{"log format", static + "logging:\n  format: xml\n", "logging.format"},
		{"pmode id", static + "pmodes:\n  - mep: x\n", "pmodes[0].id"},
		{"duplicate pmode", static + "pmodes:\n  - id: a\n  - id: a\n", "duplicate pmode"},
		{"unknown pmode", static + "sender:\n  pmode: b\npmodes:\n  - id: a\n", "sender.pmode"},
		{"pmode compression", static + "pmodes:\n  - id: a\n    payload_service:\n      compression_type: application/x-rar\n", "pmodes[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
