package message

import "strings"

// Identifier is a scheme-qualified identifier such as a participant,
// document type or process id.
type Identifier struct {
	Scheme string
	Value  string
}

// NewIdentifier returns an Identifier
func NewIdentifier(scheme, value string) Identifier {
	return Identifier{Scheme: scheme, Value: value}
}

// ParseIdentifier splits "scheme::value". Input without a separator becomes a
// value with an empty scheme.
func ParseIdentifier(s string) Identifier {
	if scheme, value, ok := strings.Cut(s, "::"); ok {
		return Identifier{Scheme: scheme, Value: value}
	}
	return Identifier{Value: s}
}

// IsZero reports whether the identifier has no value
func (id Identifier) IsZero() bool {
	return id.Value == ""
}

// String renders the URI-encoded form "scheme::value", or just the value
func (id Identifier) String() string {
	if id.Scheme == "" {
		return id.Value
	}
	return id.Scheme + "::" + id.Value
}
