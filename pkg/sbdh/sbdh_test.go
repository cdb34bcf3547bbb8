package sbdh

import (
	"bytes"
	"testing"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseElement(t *testing.T, s string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc.Root()
}

func testDocument(t *testing.T) *Document {
	return &Document{
		Sender:       message.NewIdentifier("iso6523-actorid-upis", "S1"),
		Receiver:     message.NewIdentifier("iso6523-actorid-upis", "R1"),
		DocumentType: message.NewIdentifier("busdox-docid-qns", "invoice:1.0"),
		Process:      message.NewIdentifier("cenbii-procid-ubl", "proc:1"),
		Payload:      parseElement(t, `<ns:Invoice xmlns:ns="urn:x"><ns:ID>1</ns:ID></ns:Invoice>`),
	}
}

func TestTypeVersionFromDocumentType(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"invoice:1.0", "1.0", true},
		{"urn:oasis:names:specification:ubl:schema:xsd:Invoice-2::Invoice##urn:cen.eu:en16931:2017::2.1", "2.1", true},
		{"plain", "", false},
		{"trailing:", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := TypeVersionFromDocumentType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerive(t *testing.T) {
	d := testDocument(t)
	d.Payload = parseElement(t, `<Invoice xmlns="urn:test"/>`)
	require.NoError(t, d.Derive())

	assert.Equal(t, "urn:test", d.Standard)
	assert.Equal(t, "Invoice", d.Type)
	assert.Equal(t, "1.0", d.TypeVersion)
	assert.NotEmpty(t, d.InstanceIdentifier)
	assert.False(t, d.CreationDateAndTime.IsZero())
}

func TestDerive_KeepsExplicitValues(t *testing.T) {
	d := testDocument(t)
	d.Standard = "urn:explicit"
	d.Type = "CreditNote"
	d.TypeVersion = "3.0"
	d.InstanceIdentifier = "inst-1"
	require.NoError(t, d.Derive())

	assert.Equal(t, "urn:explicit", d.Standard)
	assert.Equal(t, "CreditNote", d.Type)
	assert.Equal(t, "3.0", d.TypeVersion)
	assert.Equal(t, "inst-1", d.InstanceIdentifier)
}

func TestDerive_Failures(t *testing.T) {
	d := testDocument(t)
	d.Payload = parseElement(t, `<Invoice/>`)
	assert.ErrorIs(t, d.Derive(), ErrPayloadNamespace)

	d = testDocument(t)
	d.DocumentType = message.NewIdentifier("busdox-docid-qns", "noversion")
	err := d.Derive()
	assert.ErrorIs(t, err, ErrNotDerivable)
	assert.Contains(t, err.Error(), "type version")
}

func TestDerive_PayloadNeedsNamespace(t *testing.T) {
	d := testDocument(t)
	d.Standard = "urn:std"
	d.Type = "Invoice"
	d.TypeVersion = "2.1"
	d.Payload = parseElement(t, `<Invoice><ID>1</ID></Invoice>`)
	assert.ErrorIs(t, d.Derive(), ErrPayloadNamespace)
}

func TestIsEnvelope(t *testing.T) {
	assert.True(t, IsEnvelope(parseElement(t, `<StandardBusinessDocument xmlns="`+Ns+`"/>`)))
	assert.False(t, IsEnvelope(parseElement(t, `<Invoice xmlns="urn:x"/>`)))
	assert.False(t, IsEnvelope(nil))
}

func TestWriteAndParse(t *testing.T) {
	d := testDocument(t)
	d.CountryC1 = "SE"
	require.NoError(t, d.Derive())

	var buf bytes.Buffer
	_, err := d.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := Parse(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, d.Sender, parsed.Sender)
	assert.Equal(t, d.Receiver, parsed.Receiver)
	assert.Equal(t, d.DocumentType, parsed.DocumentType)
	assert.Equal(t, d.Process, parsed.Process)
	assert.Equal(t, "urn:x", parsed.Standard)
	assert.Equal(t, "Invoice", parsed.Type)
	assert.Equal(t, "1.0", parsed.TypeVersion)
	assert.Equal(t, d.InstanceIdentifier, parsed.InstanceIdentifier)
	assert.Equal(t, "SE", parsed.CountryC1)

	require.NotNil(t, parsed.Payload)
	assert.Equal(t, "urn:x", parsed.Payload.NamespaceURI())
	assert.Equal(t, "Invoice", parsed.Payload.Tag)
}

func TestWriteTo_RequiresFields(t *testing.T) {
	d := testDocument(t)
	_, err := d.WriteTo(&bytes.Buffer{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParse_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"not xml", "nope"},
		{"wrong root", `<Invoice xmlns="urn:x"/>`},
		{"no header", `<StandardBusinessDocument xmlns="` + Ns + `"/>`},
		{"no receiver", `<StandardBusinessDocument xmlns="` + Ns + `">
  <StandardBusinessDocumentHeader>
    <HeaderVersion>1.0</HeaderVersion>
    <Sender><Identifier Authority="a">S1</Identifier></Sender>
  </StandardBusinessDocumentHeader>
  <Invoice xmlns="urn:x"/>
</StandardBusinessDocument>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.xml))
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestWriteTo_DeclaresInheritedPrefixes(t *testing.T) {
	wrapper := parseElement(t, `<w:Batch xmlns:w="urn:w" xmlns:ns="urn:x" xmlns:cbc="urn:cbc">`+
		`<ns:Invoice><cbc:ID cbc:schemeID="s">1</cbc:ID><Note>n</Note></ns:Invoice></w:Batch>`)
	d := testDocument(t)
	d.Payload = wrapper.ChildElements()[0]
	require.NoError(t, d.Derive())

	var buf bytes.Buffer
	_, err := d.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "urn:x", parsed.Payload.NamespaceURI())

	id := parsed.Payload.SelectElement("ID")
	require.NotNil(t, id)
	assert.Equal(t, "urn:cbc", id.NamespaceURI())
	assert.Equal(t, "s", id.SelectAttrValue("cbc:schemeID", ""))

	note := parsed.Payload.SelectElement("Note")
	require.NotNil(t, note)
	assert.Empty(t, note.NamespaceURI(), "unprefixed child must not fall into the SBDH namespace")
	assert.NotContains(t, buf.String(), "urn:w")
}

func TestParse_RewriteKeepsRootDeclarations(t *testing.T) {
	in := `<StandardBusinessDocument xmlns="` + Ns + `" xmlns:cbc="urn:cbc" xmlns:inv="urn:x">
  <StandardBusinessDocumentHeader>
    <HeaderVersion>1.0</HeaderVersion>
    <Sender><Identifier Authority="iso6523-actorid-upis">S1</Identifier></Sender>
    <Receiver><Identifier Authority="iso6523-actorid-upis">R1</Identifier></Receiver>
    <DocumentIdentification>
      <Standard>urn:x</Standard>
      <TypeVersion>1.0</TypeVersion>
      <InstanceIdentifier>inst-1</InstanceIdentifier>
      <Type>Invoice</Type>
    </DocumentIdentification>
    <BusinessScope>
      <Scope><Type>DOCUMENTID</Type><InstanceIdentifier>invoice:1.0</InstanceIdentifier><Identifier>busdox-docid-qns</Identifier></Scope>
      <Scope><Type>PROCESSID</Type><InstanceIdentifier>proc:1</InstanceIdentifier><Identifier>cenbii-procid-ubl</Identifier></Scope>
    </BusinessScope>
  </StandardBusinessDocumentHeader>
  <inv:Invoice><cbc:ID>1</cbc:ID></inv:Invoice>
</StandardBusinessDocument>`
	d, err := Parse([]byte(in))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = d.WriteTo(&buf)
	require.NoError(t, err)

	again, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "urn:x", again.Payload.NamespaceURI())
	id := again.Payload.SelectElement("ID")
	require.NotNil(t, id)
	assert.Equal(t, "urn:cbc", id.NamespaceURI())
}
