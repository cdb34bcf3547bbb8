package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"
	"github.com/sirosfoundation/go-as4sender/pkg/attachment"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

// Algorithm identifiers
const (
	AlgExcC14N   = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgRSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"
	AlgSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgSHA512    = "http://www.w3.org/2001/04/xmlenc#sha512"

	AlgAttachmentContentTransform = "http://docs.oasis-open.org/wss/oasis-wss-SwAProfile-1.1#Attachment-Content-Signature-Transform"

	valueTypeX509v3 = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-x509-token-profile-1.0#X509v3"
	encodingBase64  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
)

// ErrMalformedEnvelope is returned when the SOAP structure needed for
// signing or verification is missing
var ErrMalformedEnvelope = errors.New("malformed SOAP envelope")

// Signer adds a WS-Security signature to an envelope. It returns the
// references it signed so that a later receipt can be compared against them.
type Signer interface {
	Sign(doc *etree.Document, attachments []*attachment.Attachment) ([]Reference, error)
}

// Encryptor encrypts an already signed message for the receiver
// certificate. It may replace attachments with their encrypted form.
type Encryptor interface {
	Encrypt(doc *etree.Document, attachments []*attachment.Attachment, receiver *x509.Certificate) ([]*attachment.Attachment, error)
}

// RSASigner signs the SOAP Body, eb:Messaging and every attachment with
// RSA PKCS#1 v1.5 using exclusive C14N.
type RSASigner struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
	hash crypto.Hash
}

// NewRSASigner creates a signer. hash must be crypto.SHA256 or crypto.SHA512.
func NewRSASigner(key *rsa.PrivateKey, cert *x509.Certificate, hash crypto.Hash) (*RSASigner, error) {
	if key == nil {
		return nil, fmt.Errorf("private key is required")
	}
	if cert == nil {
		return nil, fmt.Errorf("certificate is required")
	}
	if _, err := digestAlgorithmURI(hash); err != nil {
		return nil, err
	}
	return &RSASigner{key: key, cert: cert, hash: hash}, nil
}

// Certificate returns the signing certificate
func (s *RSASigner) Certificate() *x509.Certificate {
	return s.cert
}

// Sign implements Signer. The document is modified in place.
func (s *RSASigner) Sign(doc *etree.Document, attachments []*attachment.Attachment) ([]Reference, error) {
	root := doc.Root()
	if root == nil || root.NamespaceURI() != message.NsSOAP12 {
		return nil, fmt.Errorf("%w: not a SOAP 1.2 envelope", ErrMalformedEnvelope)
	}
	header := message.Child(root, message.NsSOAP12, "Header")
	body := message.Child(root, message.NsSOAP12, "Body")
	if header == nil || body == nil {
		return nil, fmt.Errorf("%w: Header and Body are required", ErrMalformedEnvelope)
	}
	envPrefix := root.Space

	security := header.CreateElement("wsse:Security")
	security.CreateAttr("xmlns:wsse", message.NsWSSE)
	security.CreateAttr("xmlns:wsu", message.NsWSU)
	security.CreateAttr(envPrefix+":mustUnderstand", "true")

	bstID := "X509-" + generateID()
	bst := security.CreateElement("wsse:BinarySecurityToken")
	bst.CreateAttr("wsu:Id", bstID)
	bst.CreateAttr("EncodingType", encodingBase64)
	bst.CreateAttr("ValueType", valueTypeX509v3)
	bst.SetText(base64.StdEncoding.EncodeToString(s.cert.Raw))

	digestURI, _ := digestAlgorithmURI(s.hash)
	sigURI, _ := signatureAlgorithmURI(s.hash)

	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", message.NsDSig)
	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateAttr("xmlns:ds", message.NsDSig)
	signedInfo.CreateAttr("xmlns:"+envPrefix, message.NsSOAP12)

	c14n := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14n.CreateAttr("Algorithm", AlgExcC14N)
	incl := c14n.CreateElement("ec:InclusiveNamespaces")
	incl.CreateAttr("xmlns:ec", AlgExcC14N)
	incl.CreateAttr("PrefixList", envPrefix)
	signedInfo.CreateElement("ds:SignatureMethod").CreateAttr("Algorithm", sigURI)

	var refs []Reference

	// Body first, then Messaging
	targets := []*etree.Element{body}
	if messaging := message.Child(header, message.NsEbMS, "Messaging"); messaging != nil {
		targets = append(targets, messaging)
	}
	for _, el := range targets {
		id := ensureWSUId(el)
		canonical, err := canonicalize(el, "")
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize %s: %w", el.Tag, err)
		}
		ref := Reference{
			URI:          "#" + id,
			Transforms:   []string{AlgExcC14N},
			DigestMethod: digestURI,
			DigestValue:  digest(s.hash, []byte(canonical)),
		}
		writeReference(signedInfo, ref)
		refs = append(refs, ref)
	}

	for _, att := range attachments {
		value, err := digestAttachment(s.hash, att)
		if err != nil {
			return nil, err
		}
		ref := Reference{
			URI:          "cid:" + att.ContentID(),
			Transforms:   []string{AlgAttachmentContentTransform},
			DigestMethod: digestURI,
			DigestValue:  value,
		}
		writeReference(signedInfo, ref)
		refs = append(refs, ref)
	}

	canonicalSignedInfo, err := canonicalize(signedInfo, envPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize SignedInfo: %w", err)
	}
	h := s.hash.New()
	h.Write([]byte(canonicalSignedInfo))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.key, s.hash, h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	sig.CreateElement("ds:SignatureValue").SetText(base64.StdEncoding.EncodeToString(signature))

	str := sig.CreateElement("ds:KeyInfo").CreateElement("wsse:SecurityTokenReference")
	tokenRef := str.CreateElement("wsse:Reference")
	tokenRef.CreateAttr("URI", "#"+bstID)
	tokenRef.CreateAttr("ValueType", valueTypeX509v3)

	security.AddChild(sig)
	return refs, nil
}

func writeReference(signedInfo *etree.Element, ref Reference) {
	el := signedInfo.CreateElement("ds:Reference")
	el.CreateAttr("URI", ref.URI)
	transforms := el.CreateElement("ds:Transforms")
	for _, alg := range ref.Transforms {
		transforms.CreateElement("ds:Transform").CreateAttr("Algorithm", alg)
	}
	el.CreateElement("ds:DigestMethod").CreateAttr("Algorithm", ref.DigestMethod)
	el.CreateElement("ds:DigestValue").SetText(ref.DigestValue)
}

// digestAttachment hashes the bytes of the attachment as they will travel,
// that is after compression.
func digestAttachment(hash crypto.Hash, att *attachment.Attachment) (string, error) {
	rc, err := att.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open attachment %s: %w", att.ContentID(), err)
	}
	defer rc.Close()

	h := hash.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("failed to digest attachment %s: %w", att.ContentID(), err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func digest(hash crypto.Hash, data []byte) string {
	h := hash.New()
	h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// canonicalize applies exclusive C14N to a copy of el. Namespaces in scope
// from ancestors are declared on the copy so the result does not depend on
// whether el is attached to a document.
func canonicalize(el *etree.Element, prefixList string) (string, error) {
	cp := el.Copy()
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
				if cp.SelectAttr(a.FullKey()) == nil {
					cp.CreateAttr(a.FullKey(), a.Value)
				}
			}
		}
	}

	transformXML := ""
	if prefixList != "" {
		transformXML = `<ec:InclusiveNamespaces xmlns:ec="` + AlgExcC14N + `" PrefixList="` + prefixList + `"/>`
	}
	c := signedxml.ExclusiveCanonicalization{WithComments: false}
	return c.ProcessElement(cp, transformXML)
}

// ensureWSUId returns the wsu:Id of elem, creating one when missing. The wsu
// namespace is declared on elem itself for exclusive C14N.
func ensureWSUId(elem *etree.Element) string {
	if id := wsuID(elem); id != "" {
		return id
	}
	if elem.SelectAttr("xmlns:wsu") == nil {
		elem.CreateAttr("xmlns:wsu", message.NsWSU)
	}
	id := "_" + generateID()
	elem.CreateAttr("wsu:Id", id)
	return id
}

func wsuID(elem *etree.Element) string {
	for _, a := range elem.Attr {
		if a.Key == "Id" && a.NamespaceURI() == message.NsWSU {
			return a.Value
		}
	}
	return ""
}

func digestAlgorithmURI(h crypto.Hash) (string, error) {
	switch h {
	case crypto.SHA256:
		return AlgSHA256, nil
	case crypto.SHA512:
		return AlgSHA512, nil
	}
	return "", fmt.Errorf("unsupported hash algorithm %s", h)
}

func signatureAlgorithmURI(h crypto.Hash) (string, error) {
	switch h {
	case crypto.SHA256:
		return AlgRSASHA256, nil
	case crypto.SHA512:
		return AlgRSASHA512, nil
	}
	return "", fmt.Errorf("unsupported hash algorithm %s", h)
}

func hashForDigestURI(uri string) (crypto.Hash, bool) {
	switch uri {
	case AlgSHA256:
		return crypto.SHA256, true
	case AlgSHA512:
		return crypto.SHA512, true
	}
	return 0, false
}

func hashForSignatureURI(uri string) (crypto.Hash, bool) {
	switch uri {
	case AlgRSASHA256:
		return crypto.SHA256, true
	case AlgRSASHA512:
		return crypto.SHA512, true
	}
	return 0, false
}

// generateID returns a random hex id safe for use in XPointer references
func generateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
