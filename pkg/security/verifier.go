package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

var (
	// ErrNoSignature is returned when a signature is required but absent
	ErrNoSignature = errors.New("response carries no WS-Security signature")
	// ErrSignatureInvalid is returned when a digest or the signature value
	// does not verify
	ErrSignatureInvalid = errors.New("response signature invalid")
)

// ResponseVerifier checks the signature of a received envelope
type ResponseVerifier interface {
	Verify(doc *etree.Document) error
}

// SignatureVerifier verifies same-document references and the RSA
// signature value of a response against a known certificate.
type SignatureVerifier struct {
	cert    *x509.Certificate
	require bool
}

// NewSignatureVerifier creates a verifier trusting cert. When required is
// false an unsigned response passes.
func NewSignatureVerifier(cert *x509.Certificate, required bool) *SignatureVerifier {
	return &SignatureVerifier{cert: cert, require: required}
}

// Verify implements ResponseVerifier
func (v *SignatureVerifier) Verify(doc *etree.Document) error {
	root := doc.Root()
	header := message.Child(root, message.NsSOAP12, "Header")
	security := message.Child(header, message.NsWSSE, "Security")
	sig := message.Child(security, message.NsDSig, "Signature")
	if sig == nil {
		if v.require {
			return ErrNoSignature
		}
		return nil
	}
	if v.cert == nil {
		return fmt.Errorf("%w: no certificate to verify against", ErrSignatureInvalid)
	}
	pub, ok := v.cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: certificate key is not RSA", ErrSignatureInvalid)
	}

	signedInfo := message.Child(sig, message.NsDSig, "SignedInfo")
	if signedInfo == nil {
		return fmt.Errorf("%w: SignedInfo missing", ErrMalformedEnvelope)
	}

	ids, err := indexWSUIds(root)
	if err != nil {
		return err
	}
	verified := make(map[*etree.Element]bool)
	for _, refEl := range message.Children(signedInfo, message.NsDSig, "Reference") {
		ref := ReferenceFromElement(refEl)
		if !strings.HasPrefix(ref.URI, "#") {
			// attachment references need the MIME parts, which responses do not carry
			continue
		}
		target, ok := ids[strings.TrimPrefix(ref.URI, "#")]
		if !ok {
			return fmt.Errorf("%w: reference %s not found", ErrSignatureInvalid, ref.URI)
		}
		hash, ok := hashForDigestURI(ref.DigestMethod)
		if !ok {
			return fmt.Errorf("%w: unsupported digest method %s", ErrSignatureInvalid, ref.DigestMethod)
		}
		canonical, err := canonicalize(target, inclusivePrefixes(refEl))
		if err != nil {
			return fmt.Errorf("failed to canonicalize %s: %w", ref.URI, err)
		}
		if digest(hash, []byte(canonical)) != ref.DigestValue {
			return fmt.Errorf("%w: digest mismatch for %s", ErrSignatureInvalid, ref.URI)
		}
		verified[target] = true
	}

	// the Messaging header read by the signal parser must be inside a signed target
	if !covered(message.Child(header, message.NsEbMS, "Messaging"), verified) {
		return fmt.Errorf("%w: eb:Messaging is not covered by the signature", ErrSignatureInvalid)
	}

	method := message.Child(signedInfo, message.NsDSig, "SignatureMethod")
	if method == nil {
		return fmt.Errorf("%w: SignatureMethod missing", ErrSignatureInvalid)
	}
	hash, ok := hashForSignatureURI(method.SelectAttrValue("Algorithm", ""))
	if !ok {
		return fmt.Errorf("%w: unsupported signature method", ErrSignatureInvalid)
	}

	prefixes := ""
	if c14n := message.Child(signedInfo, message.NsDSig, "CanonicalizationMethod"); c14n != nil {
		prefixes = prefixListOf(c14n)
	}
	canonical, err := canonicalize(signedInfo, prefixes)
	if err != nil {
		return fmt.Errorf("failed to canonicalize SignedInfo: %w", err)
	}

	value := message.Child(sig, message.NsDSig, "SignatureValue")
	if value == nil {
		return fmt.Errorf("%w: SignatureValue missing", ErrSignatureInvalid)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(value.Text()), ""))
	if err != nil {
		return fmt.Errorf("%w: SignatureValue not base64: %v", ErrSignatureInvalid, err)
	}

	h := hash.New()
	h.Write([]byte(canonical))
	if err := rsa.VerifyPKCS1v15(pub, hash, h.Sum(nil), raw); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return nil
}

func indexWSUIds(root *etree.Element) (map[string]*etree.Element, error) {
	ids := make(map[string]*etree.Element)
	var walk func(*etree.Element) error
	walk = func(el *etree.Element) error {
		if id := wsuID(el); id != "" {
			if _, dup := ids[id]; dup {
				return fmt.Errorf("%w: duplicate wsu:Id %q", ErrSignatureInvalid, id)
			}
			ids[id] = el
		}
		for _, c := range el.ChildElements() {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if root != nil {
		if err := walk(root); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// covered reports whether el or one of its ancestors is a verified target
func covered(el *etree.Element, verified map[*etree.Element]bool) bool {
	for ; el != nil; el = el.Parent() {
		if verified[el] {
			return true
		}
	}
	return false
}

// inclusivePrefixes returns the PrefixList of the exclusive C14N transform
// of a reference, if any
func inclusivePrefixes(refEl *etree.Element) string {
	transforms := message.Child(refEl, message.NsDSig, "Transforms")
	for _, t := range message.Children(transforms, message.NsDSig, "Transform") {
		if t.SelectAttrValue("Algorithm", "") == AlgExcC14N {
			return prefixListOf(t)
		}
	}
	return ""
}

func prefixListOf(el *etree.Element) string {
	if incl := message.Child(el, AlgExcC14N, "InclusiveNamespaces"); incl != nil {
		return incl.SelectAttrValue("PrefixList", "")
	}
	return ""
}
