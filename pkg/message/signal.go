package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

var (
	// ErrNotSOAP is returned when a response is not a SOAP 1.2 envelope
	ErrNotSOAP = errors.New("response is not a SOAP 1.2 envelope")
	// ErrNoSignalMessage is returned when the envelope carries no eb:SignalMessage
	ErrNoSignalMessage = errors.New("no ebMS signal message in response")
)

// Error severities
const (
	SeverityFailure = "failure"
	SeverityWarning = "warning"
)

// Error is an ebMS3 error carried by a signal message
type Error struct {
	ErrorCode           string
	Severity            string
	ShortDescription    string
	Category            string
	Origin              string
	RefToMessageInError string
	Description         string
	ErrorDetail         string
}

func (e Error) String() string {
	var b strings.Builder
	b.WriteString(e.ErrorCode)
	if e.ShortDescription != "" {
		b.WriteString(" ")
		b.WriteString(e.ShortDescription)
	}
	if e.Severity != "" {
		b.WriteString(" [" + e.Severity + "]")
	}
	if e.ErrorDetail != "" {
		b.WriteString(": " + e.ErrorDetail)
	} else if e.Description != "" {
		b.WriteString(": " + e.Description)
	}
	return b.String()
}

// Receipt is the eb:Receipt of a signal message. Element keeps the parsed
// receipt so non-repudiation references can be extracted from it.
type Receipt struct {
	Element *etree.Element
	// NonRepudiation is true when the receipt carries
	// ebbp:NonRepudiationInformation
	NonRepudiation bool
}

// SignalMessage is a parsed eb:SignalMessage together with its envelope
type SignalMessage struct {
	MessageID      string
	RefToMessageID string
	Timestamp      string

	Receipt *Receipt
	Errors  []Error

	// Envelope is the full response document, kept for signature verification
	Envelope *etree.Document
}

// HasErrors reports whether any eb:Error is present
func (s *SignalMessage) HasErrors() bool {
	return len(s.Errors) > 0
}

// IsReceipt reports whether the signal carries a receipt
func (s *SignalMessage) IsReceipt() bool {
	return s.Receipt != nil
}

// ParseSignal parses raw SOAP bytes into a SignalMessage
func ParseSignal(data []byte) (*SignalMessage, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse response XML: %w", err)
	}
	return ParseSignalDocument(doc)
}

// ParseSignalDocument extracts the signal message from a parsed envelope.
// Element matching is by namespace, so any prefix choice is accepted.
func ParseSignalDocument(doc *etree.Document) (*SignalMessage, error) {
	root := doc.Root()
	if root == nil || root.Tag != "Envelope" || root.NamespaceURI() != NsSOAP12 {
		return nil, ErrNotSOAP
	}

	header := Child(root, NsSOAP12, "Header")
	messaging := Child(header, NsEbMS, "Messaging")
	sig := Child(messaging, NsEbMS, "SignalMessage")
	if sig == nil {
		return nil, ErrNoSignalMessage
	}

	sm := &SignalMessage{Envelope: doc}
	if info := Child(sig, NsEbMS, "MessageInfo"); info != nil {
		sm.MessageID = strings.TrimSpace(childText(info, NsEbMS, "MessageId"))
		sm.RefToMessageID = strings.TrimSpace(childText(info, NsEbMS, "RefToMessageId"))
		sm.Timestamp = strings.TrimSpace(childText(info, NsEbMS, "Timestamp"))
	}

	if r := Child(sig, NsEbMS, "Receipt"); r != nil {
		sm.Receipt = &Receipt{
			Element:        r,
			NonRepudiation: Descendant(r, NsEbbp, "NonRepudiationInformation") != nil,
		}
	}

	for _, e := range Children(sig, NsEbMS, "Error") {
		sm.Errors = append(sm.Errors, Error{
			ErrorCode:           e.SelectAttrValue("errorCode", ""),
			Severity:            e.SelectAttrValue("severity", ""),
			ShortDescription:    e.SelectAttrValue("shortDescription", ""),
			Category:            e.SelectAttrValue("category", ""),
			Origin:              e.SelectAttrValue("origin", ""),
			RefToMessageInError: e.SelectAttrValue("refToMessageInError", ""),
			Description:         strings.TrimSpace(childText(e, NsEbMS, "Description")),
			ErrorDetail:         strings.TrimSpace(childText(e, NsEbMS, "ErrorDetail")),
		})
	}

	return sm, nil
}
