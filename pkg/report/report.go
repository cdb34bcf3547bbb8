package report

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
)

// SendingReport captures every resolved value and outcome of one send for
// audit and troubleshooting. Zero values are omitted from both exports.
type SendingReport struct {
	CurrentDateTime time.Time

	SenderID       message.Identifier
	ReceiverID     message.Identifier
	DocumentTypeID message.Identifier
	ProcessID      message.Identifier
	CountryC1      string

	SenderPartyID string

	CertificateCheckDT     time.Time
	CertificateCheckResult *security.CheckResult

	ReceiverEndpointURL      string
	ReceiverCertificate      *x509.Certificate
	ReceiverTechnicalContact string

	AS4MessageID      string
	AS4ConversationID string
	AS4SendingDT      time.Time

	// AS4ResponseStatus and AS4ResponseBody are exported only when the send
	// was unsuccessful
	AS4ResponseStatus int
	AS4ResponseBody   []byte

	AS4ReceivedSignalMsgID string
	AS4ResponseErrors      []message.Error

	SendingResult    string
	SendingException error

	Duration time.Duration

	SendingSuccess bool
	OverallSuccess bool
}

// Field names shared by the JSON and XML exports
const (
	FieldCurrentDateTime          = "currentDateTimeUTC"
	FieldSenderID                 = "senderId"
	FieldReceiverID               = "receiverId"
	FieldDocTypeID                = "docTypeId"
	FieldProcessID                = "processId"
	FieldCountryC1                = "countryC1"
	FieldSenderPartyID            = "senderPartyId"
	FieldCertificateCheckDT       = "certificateCheckDT"
	FieldCertificateCheckResult   = "certificateCheckResult"
	FieldReceiverEndpointURL      = "receiverEndpointUrl"
	FieldReceiverCertificate      = "receiverCertificate"
	FieldReceiverTechnicalContact = "receiverTechnicalContact"
	FieldAS4MessageID             = "as4MessageId"
	FieldAS4ConversationID        = "as4ConversationId"
	FieldAS4SendingDT             = "as4SendingDT"
	FieldAS4ResponseStatus        = "as4ResponseStatus"
	FieldAS4ResponseBody          = "as4ResponseBody"
	FieldAS4ReceivedSignalMsgID   = "as4ReceivedSignalMsgId"
	FieldAS4ResponseErrors        = "as4ResponseErrors"
	FieldAS4ResponseError         = "as4ResponseError"
	FieldSendingResult            = "sendingResult"
	FieldSendingException         = "sendingException"
	FieldDurationMillis           = "overallDurationMillis"
	FieldSendingSuccess           = "sendingSuccess"
	FieldOverallSuccess           = "overallSuccess"

	// RootElement is the element name of the XML export
	RootElement = "sendingReport"
)

// node is one named report value: a string, bool, int64, []node for a
// nested object, or list for an array of objects
type node struct {
	name  string
	value any
}

type list struct {
	item  string
	items [][]node
}

func (r *SendingReport) nodes() []node {
	var out []node
	str := func(name, v string) {
		if v != "" {
			out = append(out, node{name, v})
		}
	}
	ts := func(name string, t time.Time) {
		if !t.IsZero() {
			out = append(out, node{name, t.UTC().Format(time.RFC3339Nano)})
		}
	}
	id := func(name string, v message.Identifier) {
		if !v.IsZero() {
			out = append(out, node{name, v.String()})
		}
	}

	now := r.CurrentDateTime
	if now.IsZero() {
		now = time.Now()
	}
	ts(FieldCurrentDateTime, now)
	id(FieldSenderID, r.SenderID)
	id(FieldReceiverID, r.ReceiverID)
	id(FieldDocTypeID, r.DocumentTypeID)
	id(FieldProcessID, r.ProcessID)
	str(FieldCountryC1, r.CountryC1)
	str(FieldSenderPartyID, r.SenderPartyID)

	ts(FieldCertificateCheckDT, r.CertificateCheckDT)
	if r.CertificateCheckResult != nil {
		str(FieldCertificateCheckResult, r.CertificateCheckResult.String())
	}
	str(FieldReceiverEndpointURL, r.ReceiverEndpointURL)
	if r.ReceiverCertificate != nil {
		out = append(out, node{FieldReceiverCertificate, certificateNodes(r.ReceiverCertificate)})
	}
	str(FieldReceiverTechnicalContact, r.ReceiverTechnicalContact)

	str(FieldAS4MessageID, r.AS4MessageID)
	str(FieldAS4ConversationID, r.AS4ConversationID)
	ts(FieldAS4SendingDT, r.AS4SendingDT)

	if !r.SendingSuccess {
		if r.AS4ResponseStatus != 0 {
			out = append(out, node{FieldAS4ResponseStatus, int64(r.AS4ResponseStatus)})
		}
		str(FieldAS4ResponseBody, string(r.AS4ResponseBody))
	}

	str(FieldAS4ReceivedSignalMsgID, r.AS4ReceivedSignalMsgID)
	if len(r.AS4ResponseErrors) > 0 {
		l := list{item: FieldAS4ResponseError}
		for _, e := range r.AS4ResponseErrors {
			l.items = append(l.items, errorNodes(e))
		}
		out = append(out, node{FieldAS4ResponseErrors, l})
	}

	str(FieldSendingResult, r.SendingResult)
	if r.SendingException != nil {
		str(FieldSendingException, r.SendingException.Error())
	}
	if r.Duration > 0 {
		out = append(out, node{FieldDurationMillis, r.Duration.Milliseconds()})
	}
	out = append(out,
		node{FieldSendingSuccess, r.SendingSuccess},
		node{FieldOverallSuccess, r.OverallSuccess})
	return out
}

func certificateNodes(cert *x509.Certificate) []node {
	out := []node{
		{"subject", cert.Subject.String()},
		{"issuer", cert.Issuer.String()},
		{"serialNumber", cert.SerialNumber.String()},
		{"notBefore", cert.NotBefore.UTC().Format(time.RFC3339)},
		{"notAfter", cert.NotAfter.UTC().Format(time.RFC3339)},
	}
	if cn := cert.Subject.CommonName; cn != "" {
		out = append(out, node{"subjectCN", cn})
	}
	if len(cert.Subject.Organization) > 0 {
		out = append(out, node{"subjectO", cert.Subject.Organization[0]})
	}
	out = append(out, node{"encoded", base64.StdEncoding.EncodeToString(cert.Raw)})
	return out
}

func errorNodes(e message.Error) []node {
	var out []node
	add := func(name, v string) {
		if v != "" {
			out = append(out, node{name, v})
		}
	}
	add("errorCode", e.ErrorCode)
	add("severity", e.Severity)
	add("shortDescription", e.ShortDescription)
	add("category", e.Category)
	add("origin", e.Origin)
	add("refToMessageInError", e.RefToMessageInError)
	add("description", e.Description)
	add("errorDetail", e.ErrorDetail)
	return out
}

// JSON renders the report as a JSON object with fields in report order
func (r *SendingReport) JSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeObject(&buf, r.nodes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeObject(buf *bytes.Buffer, nodes []node) error {
	buf.WriteByte('{')
	for i, n := range nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(n.name)
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeValue(buf, n.value); err != nil {
			return fmt.Errorf("report field %s: %w", n.name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch v := v.(type) {
	case []node:
		return writeObject(buf, v)
	case list:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeObject(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		var scalar bytes.Buffer
		enc := json.NewEncoder(&scalar)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return err
		}
		buf.Write(bytes.TrimSuffix(scalar.Bytes(), []byte("\n")))
		return nil
	}
}

// XML renders the report as an element tree. Every JSON field becomes a
// child element of the same name; array entries are wrapped in an element
// named after the singular item.
func (r *SendingReport) XML() *etree.Element {
	root := etree.NewElement(RootElement)
	appendNodes(root, r.nodes())
	return root
}

// XMLDocument wraps XML in a document with an XML declaration
func (r *SendingReport) XMLDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(r.XML())
	return doc
}

func appendNodes(parent *etree.Element, nodes []node) {
	for _, n := range nodes {
		el := parent.CreateElement(n.name)
		switch v := n.value.(type) {
		case []node:
			appendNodes(el, v)
		case list:
			for _, item := range v.items {
				appendNodes(el.CreateElement(v.item), item)
			}
		case string:
			el.SetText(v)
		case bool:
			el.SetText(strconv.FormatBool(v))
		case int64:
			el.SetText(strconv.FormatInt(v, 10))
		}
	}
}
