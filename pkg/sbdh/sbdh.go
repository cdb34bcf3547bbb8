package sbdh

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

// Ns is the Standard Business Document Header namespace
const Ns = "http://www.unece.org/cefact/namespaces/StandardBusinessDocumentHeader"

// HeaderVersion is the only SBDH version produced
const HeaderVersion = "1.0"

// Business scope types
const (
	ScopeDocumentID = "DOCUMENTID"
	ScopeProcessID  = "PROCESSID"
	ScopeCountryC1  = "COUNTRY_C1"
)

var (
	// ErrInvalidArgument is returned when a required header field is missing
	ErrInvalidArgument = errors.New("invalid SBDH argument")
	// ErrNotDerivable is returned when a document identification field can
	// not be derived from the payload or document type
	ErrNotDerivable = errors.New("SBDH field can not be derived")
	// ErrPayloadNamespace is returned when the payload element to wrap has
	// no XML namespace
	ErrPayloadNamespace = errors.New("payload element has no namespace")
)

// Document is a Standard Business Document: the header fields plus the
// business payload element.
type Document struct {
	Sender   message.Identifier
	Receiver message.Identifier

	Standard            string
	TypeVersion         string
	Type                string
	InstanceIdentifier  string
	CreationDateAndTime time.Time

	DocumentType message.Identifier
	Process      message.Identifier
	CountryC1    string

	Payload *etree.Element
}

// IsEnvelope reports whether el is itself a StandardBusinessDocument
func IsEnvelope(el *etree.Element) bool {
	return el != nil && el.NamespaceURI() == Ns
}

// TypeVersionFromDocumentType extracts the version suffix of a document type
// id: the part after the last "::" (Peppol customization form) or, failing
// that, after the last ":".
func TypeVersionFromDocumentType(docType string) (string, bool) {
	if i := strings.LastIndex(docType, "::"); i >= 0 {
		v := docType[i+2:]
		return v, v != ""
	}
	if i := strings.LastIndex(docType, ":"); i >= 0 {
		v := docType[i+1:]
		return v, v != ""
	}
	return "", false
}

// Derive fills the document identification fields that were not set
// explicitly. Standard comes from the payload namespace, Type from its local
// name and TypeVersion from the document type id. The returned error names the
// first field that could not be determined. A payload without a namespace is
// refused even when every field is explicit.
func (d *Document) Derive() error {
	if d.Payload != nil && d.Payload.NamespaceURI() == "" {
		return fmt.Errorf("%w: <%s>", ErrPayloadNamespace, d.Payload.Tag)
	}
	if d.Standard == "" && d.Payload != nil {
		d.Standard = d.Payload.NamespaceURI()
	}
	if d.Standard == "" {
		return fmt.Errorf("%w: standard (payload has no namespace)", ErrNotDerivable)
	}

	if d.Type == "" && d.Payload != nil {
		d.Type = d.Payload.Tag
	}
	if d.Type == "" {
		return fmt.Errorf("%w: type (payload has no local name)", ErrNotDerivable)
	}

	if d.TypeVersion == "" {
		v, ok := TypeVersionFromDocumentType(d.DocumentType.Value)
		if !ok {
			return fmt.Errorf("%w: type version from document type %q", ErrNotDerivable, d.DocumentType.Value)
		}
		d.TypeVersion = v
	}

	if d.InstanceIdentifier == "" {
		d.InstanceIdentifier = uuid.New().String()
	}
	if d.CreationDateAndTime.IsZero() {
		d.CreationDateAndTime = time.Now().UTC()
	}
	return nil
}

// Validate checks that every mandatory header field is populated
func (d *Document) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, field)
	}
	switch {
	case d.Sender.IsZero():
		return missing("sender identifier")
	case d.Receiver.IsZero():
		return missing("receiver identifier")
	case d.DocumentType.IsZero():
		return missing("document type identifier")
	case d.Process.IsZero():
		return missing("process identifier")
	case d.Standard == "":
		return missing("standard")
	case d.TypeVersion == "":
		return missing("type version")
	case d.Type == "":
		return missing("type")
	case d.InstanceIdentifier == "":
		return missing("instance identifier")
	case d.Payload == nil:
		return missing("payload")
	}
	return nil
}

// XML renders the document as a new etree document
func (d *Document) XML() (*etree.Document, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("StandardBusinessDocument")
	root.CreateAttr("xmlns", Ns)

	hdr := root.CreateElement("StandardBusinessDocumentHeader")
	hdr.CreateElement("HeaderVersion").SetText(HeaderVersion)
	writeParty(hdr.CreateElement("Sender"), d.Sender)
	writeParty(hdr.CreateElement("Receiver"), d.Receiver)

	ident := hdr.CreateElement("DocumentIdentification")
	ident.CreateElement("Standard").SetText(d.Standard)
	ident.CreateElement("TypeVersion").SetText(d.TypeVersion)
	ident.CreateElement("InstanceIdentifier").SetText(d.InstanceIdentifier)
	ident.CreateElement("Type").SetText(d.Type)
	created := d.CreationDateAndTime
	if created.IsZero() {
		created = time.Now().UTC()
	}
	ident.CreateElement("CreationDateAndTime").SetText(created.Format(time.RFC3339Nano))

	scopes := hdr.CreateElement("BusinessScope")
	writeScope(scopes, ScopeDocumentID, d.DocumentType.Value, d.DocumentType.Scheme)
	writeScope(scopes, ScopeProcessID, d.Process.Value, d.Process.Scheme)
	if d.CountryC1 != "" {
		writeScope(scopes, ScopeCountryC1, d.CountryC1, "")
	}

	root.AddChild(detachPayload(d.Payload))
	return doc, nil
}

// detachPayload copies el and declares on the copy every namespace prefix the
// subtree uses but inherits from outside el, so it keeps its meaning under the
// SBDH root. An inherited empty default namespace is undeclared explicitly.
func detachPayload(el *etree.Element) *etree.Element {
	payload := el.Copy()
	inherited := make(map[string]bool)
	collectInherited(payload, nil, inherited)

	for _, prefix := range slices.Sorted(maps.Keys(inherited)) {
		uri, ok := lookupNamespace(el.Parent(), prefix)
		switch {
		case prefix == "":
			payload.CreateAttr("xmlns", uri)
		case ok:
			payload.CreateAttr("xmlns:"+prefix, uri)
		}
	}
	return payload
}

// collectInherited records in out the prefixes used under el that are not
// declared by el or its descendants on the path to the use.
func collectInherited(el *etree.Element, declared map[string]bool, out map[string]bool) {
	if decls := declaredPrefixes(el); len(decls) > 0 {
		scope := maps.Clone(declared)
		if scope == nil {
			scope = make(map[string]bool, len(decls))
		}
		for _, p := range decls {
			scope[p] = true
		}
		declared = scope
	}
	if el.Space != "xml" && !declared[el.Space] {
		out[el.Space] = true
	}
	for _, a := range el.Attr {
		if a.Space == "" || a.Space == "xmlns" || a.Space == "xml" {
			continue
		}
		if !declared[a.Space] {
			out[a.Space] = true
		}
	}
	for _, c := range el.ChildElements() {
		collectInherited(c, declared, out)
	}
}

func declaredPrefixes(el *etree.Element) []string {
	var prefixes []string
	for _, a := range el.Attr {
		switch {
		case a.Space == "xmlns":
			prefixes = append(prefixes, a.Key)
		case a.Space == "" && a.Key == "xmlns":
			prefixes = append(prefixes, "")
		}
	}
	return prefixes
}

// lookupNamespace resolves prefix against the declarations on el and its
// ancestors. The empty prefix is the default namespace.
func lookupNamespace(el *etree.Element, prefix string) (string, bool) {
	for ; el != nil; el = el.Parent() {
		for _, a := range el.Attr {
			if (prefix == "" && a.Space == "" && a.Key == "xmlns") ||
				(prefix != "" && a.Space == "xmlns" && a.Key == prefix) {
				return a.Value, true
			}
		}
	}
	return "", false
}

// WriteTo serializes the document to w
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	doc, err := d.XML()
	if err != nil {
		return 0, err
	}
	return doc.WriteTo(w)
}

func writeParty(el *etree.Element, id message.Identifier) {
	ident := el.CreateElement("Identifier")
	ident.CreateAttr("Authority", id.Scheme)
	ident.SetText(id.Value)
}

func writeScope(parent *etree.Element, typ, instance, identifier string) {
	s := parent.CreateElement("Scope")
	s.CreateElement("Type").SetText(typ)
	s.CreateElement("InstanceIdentifier").SetText(instance)
	if identifier != "" {
		s.CreateElement("Identifier").SetText(identifier)
	}
}

// Parse reads pre-built SBDH bytes and extracts the header fields. Missing
// mandatory fields fail with ErrInvalidArgument.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: failed to parse SBDH: %v", ErrInvalidArgument, err)
	}
	return FromElement(doc.Root())
}

// FromElement extracts a Document from a parsed StandardBusinessDocument
func FromElement(root *etree.Element) (*Document, error) {
	if root == nil || root.Tag != "StandardBusinessDocument" || root.NamespaceURI() != Ns {
		return nil, fmt.Errorf("%w: root is not a StandardBusinessDocument", ErrInvalidArgument)
	}
	hdr := message.Child(root, Ns, "StandardBusinessDocumentHeader")
	if hdr == nil {
		return nil, fmt.Errorf("%w: StandardBusinessDocumentHeader is required", ErrInvalidArgument)
	}

	d := &Document{
		Sender:   readParty(message.Child(hdr, Ns, "Sender")),
		Receiver: readParty(message.Child(hdr, Ns, "Receiver")),
	}

	if ident := message.Child(hdr, Ns, "DocumentIdentification"); ident != nil {
		d.Standard = text(ident, "Standard")
		d.TypeVersion = text(ident, "TypeVersion")
		d.InstanceIdentifier = text(ident, "InstanceIdentifier")
		d.Type = text(ident, "Type")
		if ts := text(ident, "CreationDateAndTime"); ts != "" {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				d.CreationDateAndTime = t
			}
		}
	}

	for _, s := range message.Descendants(hdr, Ns, "Scope") {
		instance := text(s, "InstanceIdentifier")
		scheme := text(s, "Identifier")
		switch text(s, "Type") {
		case ScopeDocumentID:
			d.DocumentType = message.NewIdentifier(scheme, instance)
		case ScopeProcessID:
			d.Process = message.NewIdentifier(scheme, instance)
		case ScopeCountryC1:
			d.CountryC1 = instance
		}
	}

	for _, c := range root.ChildElements() {
		if c != hdr {
			d.Payload = c
			break
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func readParty(el *etree.Element) message.Identifier {
	ident := message.Child(el, Ns, "Identifier")
	if ident == nil {
		return message.Identifier{}
	}
	return message.NewIdentifier(ident.SelectAttrValue("Authority", ""), strings.TrimSpace(ident.Text()))
}

func text(el *etree.Element, local string) string {
	if c := message.Child(el, Ns, local); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
