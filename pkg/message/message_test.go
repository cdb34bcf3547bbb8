package message

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUserMessage(opts ...Option) *UserMessage {
	base := []Option{
		WithFrom(NewIdentifier("iso6523-actorid-upis", "0088:sender"), DefaultRole),
		WithTo(NewIdentifier("iso6523-actorid-upis", "0088:receiver"), DefaultRole),
		WithService(NewIdentifier("cenbii-procid-ubl", "urn:proc")),
		WithAction("busdox-docid-qns::urn:doc"),
	}
	return NewUserMessage(append(base, opts...)...)
}

func TestIdentifier(t *testing.T) {
	id := ParseIdentifier("iso6523-actorid-upis::0088:123")
	assert.Equal(t, "iso6523-actorid-upis", id.Scheme)
	assert.Equal(t, "0088:123", id.Value)
	assert.Equal(t, "iso6523-actorid-upis::0088:123", id.String())

	plain := ParseIdentifier("S1")
	assert.Equal(t, "", plain.Scheme)
	assert.Equal(t, "S1", plain.String())
	assert.True(t, Identifier{}.IsZero())
}

func TestNewUserMessage_Defaults(t *testing.T) {
	um := NewUserMessage()
	assert.NotEmpty(t, um.MessageID)
	assert.NotEmpty(t, um.ConversationID)
	assert.False(t, um.Timestamp.IsZero())
	assert.Equal(t, DefaultRole, um.From.Role)

	other := NewUserMessage()
	assert.NotEqual(t, um.MessageID, other.MessageID)

	kept := NewUserMessage(WithMessageID(""), WithConversationID("c-1"))
	assert.NotEmpty(t, kept.MessageID)
	assert.Equal(t, "c-1", kept.ConversationID)
}

func TestUserMessage_Validate(t *testing.T) {
	assert.NoError(t, testUserMessage().Validate())

	um := testUserMessage()
	um.To.ID = Identifier{}
	assert.ErrorIs(t, um.Validate(), ErrIncompleteUserMessage)

	um = testUserMessage()
	um.From.Role = ""
	assert.ErrorIs(t, um.Validate(), ErrIncompleteUserMessage)
}

func TestUserMessage_Envelope(t *testing.T) {
	um := testUserMessage(
		WithMessageID("m-1@test"),
		WithAgreementRef("urn:agreement", "", "pm-1"),
		WithProperty(PropertyOriginalSender, "iso6523-actorid-upis", "0088:sender"),
		WithPart(PartInfo{
			ContentID: "att-1@test",
			Properties: []Property{
				{Name: PartPropertyMimeType, Value: "application/xml"},
				{Name: PartPropertyCompressionType, Value: "application/gzip"},
			},
		}),
	)

	doc, err := um.Envelope()
	require.NoError(t, err)

	root := doc.Root()
	assert.Equal(t, NsSOAP12, root.NamespaceURI())

	messaging := Descendant(root, NsEbMS, "Messaging")
	require.NotNil(t, messaging)
	assert.Equal(t, "true", messaging.SelectAttrValue("env:mustUnderstand", ""))

	assert.Equal(t, "m-1@test", Descendant(root, NsEbMS, "MessageId").Text())
	assert.Equal(t, "pm-1", Descendant(root, NsEbMS, "AgreementRef").SelectAttrValue("pmode", ""))

	svc := Descendant(root, NsEbMS, "Service")
	assert.Equal(t, "urn:proc", svc.Text())
	assert.Equal(t, "cenbii-procid-ubl", svc.SelectAttrValue("type", ""))

	pi := Descendant(root, NsEbMS, "PartInfo")
	require.NotNil(t, pi)
	assert.Equal(t, "cid:att-1@test", pi.SelectAttrValue("href", ""))
	assert.Len(t, Descendants(pi, NsEbMS, "Property"), 2)

	props := Descendant(root, NsEbMS, "MessageProperties")
	require.NotNil(t, props)
	p := Child(props, NsEbMS, "Property")
	assert.Equal(t, PropertyOriginalSender, p.SelectAttrValue("name", ""))
	assert.Equal(t, "0088:sender", p.Text())

	assert.NotNil(t, Child(root, NsSOAP12, "Body"))
}

func TestUserMessage_EnvelopeRejectsIncomplete(t *testing.T) {
	um := testUserMessage()
	um.Action = ""
	_, err := um.Envelope()
	assert.ErrorIs(t, err, ErrIncompleteUserMessage)
}

func TestUserMessage_Property(t *testing.T) {
	um := testUserMessage(WithProperty("a", "", "1"))
	p, ok := um.Property("a")
	assert.True(t, ok)
	assert.Equal(t, "1", p.Value)
	_, ok = um.Property("missing")
	assert.False(t, ok)
}

const receiptXML = `<?xml version="1.0" encoding="UTF-8"?>
<S12:Envelope xmlns:S12="http://www.w3.org/2003/05/soap-envelope">
  <S12:Header>
    <ns2:Messaging xmlns:ns2="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
      <ns2:SignalMessage>
        <ns2:MessageInfo>
          <ns2:Timestamp>2024-01-01T00:00:00Z</ns2:Timestamp>
          <ns2:MessageId>r-1@peer</ns2:MessageId>
          <ns2:RefToMessageId>m-1@test</ns2:RefToMessageId>
        </ns2:MessageInfo>
        <ns2:Receipt>
          <ebbp:NonRepudiationInformation xmlns:ebbp="http://docs.oasis-open.org/ebxml-bp/ebbp-signals-2.0">
            <ebbp:MessagePartNRInformation>
              <dsig:Reference xmlns:dsig="http://www.w3.org/2000/09/xmldsig#" URI="#body"/>
            </ebbp:MessagePartNRInformation>
          </ebbp:NonRepudiationInformation>
        </ns2:Receipt>
      </ns2:SignalMessage>
    </ns2:Messaging>
  </S12:Header>
  <S12:Body/>
</S12:Envelope>`

const errorXML = `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Header>
    <Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
      <SignalMessage>
        <MessageInfo><MessageId>e-1</MessageId><RefToMessageId>m-1</RefToMessageId></MessageInfo>
        <Error errorCode="EBMS:0004" severity="failure" shortDescription="Other" category="Content" origin="ebMS">
          <Description xml:lang="en">Something failed</Description>
          <ErrorDetail>bad payload</ErrorDetail>
        </Error>
        <Receipt/>
      </SignalMessage>
    </Messaging>
  </env:Header>
  <env:Body/>
</env:Envelope>`

func TestParseSignal_Receipt(t *testing.T) {
	sm, err := ParseSignal([]byte(receiptXML))
	require.NoError(t, err)

	assert.Equal(t, "r-1@peer", sm.MessageID)
	assert.Equal(t, "m-1@test", sm.RefToMessageID)
	assert.Equal(t, "2024-01-01T00:00:00Z", sm.Timestamp)
	require.True(t, sm.IsReceipt())
	assert.True(t, sm.Receipt.NonRepudiation)
	assert.False(t, sm.HasErrors())
	assert.NotNil(t, sm.Envelope)
}

func TestParseSignal_ErrorWithDefaultNamespace(t *testing.T) {
	sm, err := ParseSignal([]byte(errorXML))
	require.NoError(t, err)

	require.True(t, sm.HasErrors())
	e := sm.Errors[0]
	assert.Equal(t, "EBMS:0004", e.ErrorCode)
	assert.Equal(t, SeverityFailure, e.Severity)
	assert.Equal(t, "Other", e.ShortDescription)
	assert.Equal(t, "Something failed", e.Description)
	assert.Equal(t, "bad payload", e.ErrorDetail)
	assert.Equal(t, "EBMS:0004 Other [failure]: bad payload", e.String())

	assert.True(t, sm.IsReceipt())
	assert.False(t, sm.Receipt.NonRepudiation)
}

func TestParseSignal_Failures(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not xml", "hello", nil},
		{"not soap", `<Envelope xmlns="urn:other"/>`, ErrNotSOAP},
		{"user message", `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Header/><env:Body/></env:Envelope>`, ErrNoSignalMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignal([]byte(tt.data))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestDescendantsIgnorePrefix(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<a xmlns:x="urn:n" xmlns:y="urn:n"><x:b/><c><y:b/></c></a>`))
	assert.Len(t, Descendants(doc.Root(), "urn:n", "b"), 2)
	assert.Nil(t, Child(doc.Root(), "urn:other", "b"))
}
