package security

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

// Reference is one ds:Reference: a signed part of a message
type Reference struct {
	URI          string
	Transforms   []string
	DigestMethod string
	DigestValue  string
}

// ReferenceFromElement reads a ds:Reference element
func ReferenceFromElement(el *etree.Element) Reference {
	ref := Reference{URI: el.SelectAttrValue("URI", "")}
	if transforms := message.Child(el, message.NsDSig, "Transforms"); transforms != nil {
		for _, t := range message.Children(transforms, message.NsDSig, "Transform") {
			ref.Transforms = append(ref.Transforms, t.SelectAttrValue("Algorithm", ""))
		}
	}
	if dm := message.Child(el, message.NsDSig, "DigestMethod"); dm != nil {
		ref.DigestMethod = dm.SelectAttrValue("Algorithm", "")
	}
	if dv := message.Child(el, message.NsDSig, "DigestValue"); dv != nil {
		ref.DigestValue = strings.TrimSpace(dv.Text())
	}
	return ref
}

// ExtractReferences returns every ds:Reference below el in document order.
// Matching is by namespace so the prefix a responder picked is irrelevant.
func ExtractReferences(el *etree.Element) []Reference {
	var refs []Reference
	for _, r := range message.Descendants(el, message.NsDSig, "Reference") {
		refs = append(refs, ReferenceFromElement(r))
	}
	return refs
}

// AreSemanticallyEquivalent reports whether received describes the same
// signed part as sent. URIs, digest methods and digest values must match
// exactly. Transforms must have the same count and every sent algorithm must
// appear in the received list, in any order.
func AreSemanticallyEquivalent(sent, received Reference) bool {
	if sent.URI != received.URI {
		return false
	}
	if len(sent.Transforms) != len(received.Transforms) {
		return false
	}
	for _, alg := range sent.Transforms {
		if !containsString(received.Transforms, alg) {
			return false
		}
	}
	if sent.DigestMethod != received.DigestMethod {
		return false
	}
	return sent.DigestValue == received.DigestValue
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
