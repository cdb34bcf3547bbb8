package pmode

import (
	"sync"
	"time"

	"github.com/sirosfoundation/go-as4sender/pkg/compression"
)

// MEP and binding URIs
const (
	MEPOneWay   = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/oneWay"
	BindingPush = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/push"
)

// ProcessingMode is the agreed set of parameters for one exchange.
// It is read only once handed to a builder.
type ProcessingMode struct {
	ID         string `yaml:"id"`
	MEP        string `yaml:"mep"`
	MEPBinding string `yaml:"mep_binding"`

	Agreement *Agreement `yaml:"agreement"`

	InitiatorRole string `yaml:"initiator_role"`
	ResponderRole string `yaml:"responder_role"`

	Security           *Security           `yaml:"security"`
	ReceptionAwareness *ReceptionAwareness `yaml:"reception_awareness"`
	PayloadService     *PayloadService     `yaml:"payload_service"`
}

// Agreement contains agreement reference information
type Agreement struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Security contains security parameters
type Security struct {
	// SignHash is "sha256" or "sha512"
	SignHash    string       `yaml:"sign_hash"`
	Encrypt     bool         `yaml:"encrypt"`
	SendReceipt *SendReceipt `yaml:"send_receipt"`
}

// SendReceipt contains receipt settings
type SendReceipt struct {
	NonRepudiation bool `yaml:"non_repudiation"`
}

// ReceptionAwareness contains reliability parameters
type ReceptionAwareness struct {
	Retry *RetryConfig `yaml:"retry"`
}

// RetryConfig contains retry parameters
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	Interval   time.Duration `yaml:"interval"`
}

// PayloadService contains payload handling configuration
type PayloadService struct {
	// CompressionType is a compression MIME type, empty for none
	CompressionType string `yaml:"compression_type"`
}

// Retry returns the configured retry count and interval, zero when absent
func (pm *ProcessingMode) Retry() (int, time.Duration) {
	if pm == nil || pm.ReceptionAwareness == nil || pm.ReceptionAwareness.Retry == nil {
		return 0, 0
	}
	r := pm.ReceptionAwareness.Retry
	return r.MaxRetries, r.Interval
}

// Compression returns the payload compression mode, nil when none is configured
func (pm *ProcessingMode) Compression() (*compression.Mode, error) {
	if pm == nil || pm.PayloadService == nil || pm.PayloadService.CompressionType == "" {
		return nil, nil
	}
	return compression.LookupByMimeType(pm.PayloadService.CompressionType)
}

// NonRepudiation reports whether a signed receipt echoing the references is expected
func (pm *ProcessingMode) NonRepudiation() bool {
	return pm != nil && pm.Security != nil && pm.Security.SendReceipt != nil && pm.Security.SendReceipt.NonRepudiation
}

// Registry holds processing modes by ID
type Registry struct {
	mu     sync.RWMutex
	pmodes map[string]*ProcessingMode
}

// NewRegistry creates a registry holding pmodes
func NewRegistry(pmodes ...*ProcessingMode) *Registry {
	r := &Registry{pmodes: make(map[string]*ProcessingMode)}
	for _, pm := range pmodes {
		r.Add(pm)
	}
	return r
}

// Add stores pm, replacing any mode with the same ID
func (r *Registry) Add(pm *ProcessingMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pmodes[pm.ID] = pm
}

// Get returns the mode with the given ID or nil
func (r *Registry) Get(id string) *ProcessingMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pmodes[id]
}

// DefaultPMode returns the Peppol-style one-way push mode: gzip payloads,
// signed non-repudiation receipts and two retries ten seconds apart
func DefaultPMode() *ProcessingMode {
	return &ProcessingMode{
		ID:            "default-pmode",
		MEP:           MEPOneWay,
		MEPBinding:    BindingPush,
		InitiatorRole: "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/initiator",
		ResponderRole: "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/responder",
		Security: &Security{
			SignHash:    "sha256",
			Encrypt:     true,
			SendReceipt: &SendReceipt{NonRepudiation: true},
		},
		ReceptionAwareness: &ReceptionAwareness{
			Retry: &RetryConfig{MaxRetries: 2, Interval: 10 * time.Second},
		},
		PayloadService: &PayloadService{CompressionType: compression.Gzip.MimeType},
	}
}
