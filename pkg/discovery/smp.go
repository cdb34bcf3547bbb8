package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

var (
	// ErrParticipantNotFound is returned when the SMP answers 404
	ErrParticipantNotFound = errors.New("participant not found in SMP")
	// ErrProcessNotFound is returned when the metadata has no entry for the process
	ErrProcessNotFound = errors.New("process not found")
	// ErrNoUsableEndpoint is returned when no active endpoint has a known transport profile
	ErrNoUsableEndpoint = errors.New("no usable endpoint")
)

// Transport profiles in order of preference
const (
	TransportAS4V2     = "bdxr-transport-ebms3-as4-v2p0"
	TransportPeppolAS4 = "peppol-transport-as4-v2_0"
	TransportAS4V1     = "busdox-transport-ebms3-as4-v1p0"
)

// DefaultTransportProfiles is the preference order used when none is configured
var DefaultTransportProfiles = []string{TransportAS4V2, TransportPeppolAS4, TransportAS4V1}

const smpUserAgent = "go-as4sender-smp-client/1.0"

// ServiceMetadata is the part of an SMP ServiceMetadata document used for sending
type ServiceMetadata struct {
	Participant  message.Identifier
	DocumentType message.Identifier
	Processes    []ProcessMetadata
}

// ProcessMetadata lists the endpoints registered for one process
type ProcessMetadata struct {
	Process   message.Identifier
	Endpoints []Endpoint
}

// Endpoint is a single ServiceEndpointList entry
type Endpoint struct {
	TransportProfile string
	URL              string
	// Certificate is the base64 content of the Certificate element
	Certificate      string
	ActivationDate   *time.Time
	ExpirationDate   *time.Time
	TechnicalContact string
	Description      string
}

// ActiveAt reports whether t lies within the activation window
func (e Endpoint) ActiveAt(t time.Time) bool {
	if e.ActivationDate != nil && e.ActivationDate.After(t) {
		return false
	}
	if e.ExpirationDate != nil && e.ExpirationDate.Before(t) {
		return false
	}
	return true
}

// Process returns the metadata for process, matching scheme and value
func (sm *ServiceMetadata) Process(process message.Identifier) (*ProcessMetadata, error) {
	for i := range sm.Processes {
		p := &sm.Processes[i]
		if p.Process.Value == process.Value && (process.Scheme == "" || p.Process.Scheme == process.Scheme) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, process)
}

// SelectEndpoint returns the first active endpoint in profile preference order
func SelectEndpoint(endpoints []Endpoint, profiles []string, now time.Time) (*Endpoint, error) {
	for _, profile := range profiles {
		for i := range endpoints {
			if endpoints[i].TransportProfile == profile && endpoints[i].ActiveAt(now) {
				return &endpoints[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: profiles %v", ErrNoUsableEndpoint, profiles)
}

// SMPClient fetches service metadata over the SMP REST binding
type SMPClient struct {
	httpClient *http.Client
}

// NewSMPClient creates a client; a nil http.Client gets a 30s timeout
func NewSMPClient(httpClient *http.Client) *SMPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SMPClient{httpClient: httpClient}
}

// GetServiceMetadata retrieves {smp}/{participant}/services/{docType}
func (c *SMPClient) GetServiceMetadata(ctx context.Context, smpURL string, participant, docType message.Identifier) (*ServiceMetadata, error) {
	reqURL := fmt.Sprintf("%s/%s/services/%s",
		strings.TrimRight(smpURL, "/"),
		url.PathEscape(participant.String()),
		url.PathEscape(docType.String()))

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return ParseServiceMetadata(body)
}

func (c *SMPClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", smpUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SMP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrParticipantNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("SMP returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read SMP response: %w", err)
	}
	return body, nil
}

// ParseServiceMetadata reads a ServiceMetadata or SignedServiceMetadata
// document. Elements are matched by local name so both the busdox and OASIS
// SMP 1.0 namespaces are accepted.
func ParseServiceMetadata(data []byte) (*ServiceMetadata, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse ServiceMetadata: %w", err)
	}
	info := findLocal(doc.Root(), "ServiceInformation")
	if info == nil {
		if findLocal(doc.Root(), "Redirect") != nil {
			return nil, errors.New("SMP redirects are not supported")
		}
		return nil, errors.New("failed to parse ServiceMetadata: no ServiceInformation")
	}

	sm := &ServiceMetadata{
		Participant:  identifierOf(childLocal(info, "ParticipantIdentifier")),
		DocumentType: identifierOf(childLocal(info, "DocumentIdentifier")),
	}
	for _, p := range childrenLocal(childLocal(info, "ProcessList"), "Process") {
		pm := ProcessMetadata{Process: identifierOf(childLocal(p, "ProcessIdentifier"))}
		for _, ep := range childrenLocal(childLocal(p, "ServiceEndpointList"), "Endpoint") {
			pm.Endpoints = append(pm.Endpoints, Endpoint{
				TransportProfile: ep.SelectAttrValue("transportProfile", ""),
				URL:              textLocal(ep, "EndpointURI", "EndpointReference/Address"),
				Certificate:      textLocal(ep, "Certificate"),
				ActivationDate:   timeLocal(ep, "ServiceActivationDate"),
				ExpirationDate:   timeLocal(ep, "ServiceExpirationDate"),
				TechnicalContact: textLocal(ep, "TechnicalContactUrl"),
				Description:      textLocal(ep, "ServiceDescription"),
			})
		}
		sm.Processes = append(sm.Processes, pm)
	}
	return sm, nil
}

func childLocal(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			return c
		}
	}
	return nil
}

func childrenLocal(el *etree.Element, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local {
			out = append(out, c)
		}
	}
	return out
}

func findLocal(el *etree.Element, local string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == local {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := findLocal(c, local); found != nil {
			return found
		}
	}
	return nil
}

// textLocal returns the trimmed text of the first path that exists;
// each path is a "/"-separated list of local names
func textLocal(el *etree.Element, paths ...string) string {
	for _, path := range paths {
		cur := el
		for _, step := range strings.Split(path, "/") {
			cur = childLocal(cur, step)
		}
		if cur != nil {
			return strings.TrimSpace(cur.Text())
		}
	}
	return ""
}

func timeLocal(el *etree.Element, local string) *time.Time {
	s := textLocal(el, local)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func identifierOf(el *etree.Element) message.Identifier {
	if el == nil {
		return message.Identifier{}
	}
	return message.NewIdentifier(el.SelectAttrValue("scheme", ""), strings.TrimSpace(el.Text()))
}
