package message

import "github.com/beevik/etree"

// XML namespaces used in AS4 envelopes
const (
	NsSOAP12 = "http://www.w3.org/2003/05/soap-envelope"
	NsEbMS   = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/"
	NsEbbp   = "http://docs.oasis-open.org/ebxml-bp/ebbp-signals-2.0"
	NsWSSE   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NsWSU    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NsDSig   = "http://www.w3.org/2000/09/xmldsig#"
)

// Fixed ebMS3 values
const (
	DefaultRole = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/defaultRole"
	DefaultMPC  = "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/defaultMPC"
)

// Child returns the first direct child of el with the given namespace and
// local name, whatever prefix the document uses.
func Child(el *etree.Element, ns, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}

// Children returns every direct child of el matching ns and local
func Children(el *etree.Element, ns, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			out = append(out, c)
		}
	}
	return out
}

// Descendant returns the first element below el, in document order,
// matching ns and local.
func Descendant(el *etree.Element, ns, local string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			return c
		}
		if found := Descendant(c, ns, local); found != nil {
			return found
		}
	}
	return nil
}

// Descendants returns every element below el matching ns and local
func Descendants(el *etree.Element, ns, local string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == local && c.NamespaceURI() == ns {
			out = append(out, c)
		}
		out = append(out, Descendants(c, ns, local)...)
	}
	return out
}

func childText(el *etree.Element, ns, local string) string {
	if c := Child(el, ns, local); c != nil {
		return c.Text()
	}
	return ""
}
