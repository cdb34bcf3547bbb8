package exchange

import (
	"context"
	"testing"

	"github.com/sirosfoundation/go-as4sender/internal/testserver"
	"github.com/sirosfoundation/go-as4sender/pkg/attachment"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	algC14N   = "http://www.w3.org/2001/10/xml-exc-c14n#"
	algSwA    = "http://docs.oasis-open.org/wss/oasis-wss-SwAProfile-1.1#Attachment-Content-Signature-Transform"
	algSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
)

type recorder struct {
	notApplicable int
	errors        []string
	success       int
}

func (r *recorder) handler() ValidationResultHandler {
	return ValidationResultHandler{
		OnNotApplicable: func() { r.notApplicable++ },
		OnError:         func(reason string) { r.errors = append(r.errors, reason) },
		OnSuccess:       func() { r.success++ },
	}
}

func ref(uri, digest string, transforms ...string) security.Reference {
	return security.Reference{URI: uri, Transforms: transforms, DigestMethod: algSHA256, DigestValue: digest}
}

func TestCompare(t *testing.T) {
	body := ref("#body", "b0dy", algC14N)
	messaging := ref("#messaging", "m5g", algC14N)
	att := ref("cid:att-1@test", "4tt", algSwA)

	tests := []struct {
		name          string
		sent          []security.Reference
		received      []security.Reference
		notApplicable int
		errors        int
		success       int
	}{
		{
			name:          "unsigned message",
			received:      []security.Reference{body},
			notApplicable: 1,
		},
		{
			name:          "receipt without references",
			sent:          []security.Reference{body},
			notApplicable: 1,
		},
		{
			name:     "all match in any order",
			sent:     []security.Reference{body, messaging, att},
			received: []security.Reference{att, body, messaging},
			success:  1,
		},
		{
			name:     "digest mismatch",
			sent:     []security.Reference{body, messaging},
			received: []security.Reference{ref("#body", "other", algC14N), messaging},
			errors:   1,
		},
		{
			name:     "missing reference",
			sent:     []security.Reference{body, messaging, att},
			received: []security.Reference{body, messaging},
			errors:   1,
		},
		{
			name:     "extra unmatched references",
			sent:     []security.Reference{body},
			received: []security.Reference{body, ref("#x", "1"), ref("#y", "2")},
			errors:   3,
		},
		{
			name:     "duplicate echo",
			sent:     []security.Reference{body, messaging},
			received: []security.Reference{body, body},
			errors:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r recorder
			Compare(tt.sent, tt.received, r.handler())
			assert.Equal(t, tt.notApplicable, r.notApplicable)
			assert.Len(t, r.errors, tt.errors, "errors: %v", r.errors)
			assert.Equal(t, tt.success, r.success)
		})
	}
}

func TestCompare_NilCallbacks(t *testing.T) {
	assert.NotPanics(t, func() {
		Compare(nil, nil, ValidationResultHandler{})
		Compare([]security.Reference{ref("#a", "1")}, []security.Reference{ref("#b", "2")}, ValidationResultHandler{})
	})
}

func TestSignalValidator_DelegatesAfterComparing(t *testing.T) {
	var order []string
	v := NewSignalValidator(ValidationResultHandler{
		OnNotApplicable: func() { order = append(order, "validated") },
	}, func(context.Context, *SentMessage, *message.SignalMessage) {
		order = append(order, "next")
	})

	v.Handle(context.Background(), &SentMessage{}, &message.SignalMessage{})
	assert.Equal(t, []string{"validated", "next"}, order)
}

func TestSignalValidator_AgainstResponder(t *testing.T) {
	tests := []struct {
		name    string
		opts    testserver.Options
		errors  int
		success int
	}{
		{"faithful receipt", testserver.Options{Behavior: testserver.Receipt}, 0, 1},
		{"tampered digest", testserver.Options{Behavior: testserver.Receipt, TamperDigest: true}, 1, 0},
		{"dropped reference", testserver.Options{Behavior: testserver.Receipt, DropReference: true}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParties(t)
			srv := testserver.New(t, tt.opts)
			var r recorder
			att, err := attachment.CreateFromBytes(nil, []byte(payload), "application/xml", attachment.WithContentID("att-1@test"))
			require.NoError(t, err)

			sent, err := New(nil, WithSigner(rsaSigner(t, p.sender))).SendAndReceive(context.Background(), &Request{
				UserMessage:     userMessage(),
				Attachments:     []*attachment.Attachment{att},
				URL:             srv.Endpoint(),
				SignalConsumers: []SignalConsumer{NewSignalValidator(r.handler()).Consumer()},
			})
			require.NoError(t, err)
			require.NotNil(t, sent.Signal)
			assert.Zero(t, r.notApplicable)
			assert.Len(t, r.errors, tt.errors, "errors: %v", r.errors)
			assert.Equal(t, tt.success, r.success)
		})
	}
}
