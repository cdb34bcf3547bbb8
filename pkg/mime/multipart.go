package mime

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/sirosfoundation/go-as4sender/pkg/attachment"
)

const (
	// ContentTypeMultipartRelated is the MIME type for multipart/related
	ContentTypeMultipartRelated = "multipart/related"
	// ContentTypeSOAPXML is the MIME type for SOAP 1.2
	ContentTypeSOAPXML = "application/soap+xml"
)

// ErrNoRootPart is returned when a multipart body has no SOAP root part
var ErrNoRootPart = errors.New("SOAP root part not found in multipart message")

// Message is an outbound multipart/related AS4 message. Attachment bodies
// are opened when the message is written, so writing it again re-streams
// the content.
type Message struct {
	Boundary string
	StartID  string
	Envelope []byte
	Parts    []*attachment.Part
}

// NewMessage creates a message with a SOAP root part and attachment parts
func NewMessage(envelope []byte, parts []*attachment.Part) *Message {
	return &Message{
		Boundary: generateBoundary(),
		StartID:  attachment.AddContentIDBrackets(uuid.New().String() + "@go-as4sender"),
		Envelope: envelope,
		Parts:    parts,
	}
}

// ContentType returns the HTTP Content-Type for the message
func (m *Message) ContentType() string {
	return mime.FormatMediaType(ContentTypeMultipartRelated, map[string]string{
		"boundary": m.Boundary,
		"type":     ContentTypeSOAPXML,
		"start":    attachment.ContentIDWithoutBrackets(m.StartID),
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo serializes the message, streaming every attachment from a freshly
// opened source.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	mw := multipart.NewWriter(cw)
	if err := mw.SetBoundary(m.Boundary); err != nil {
		return cw.n, fmt.Errorf("failed to set boundary: %w", err)
	}

	soapHeader := textproto.MIMEHeader{}
	soapHeader.Set("Content-Type", ContentTypeSOAPXML+"; charset=UTF-8")
	soapHeader.Set("Content-Transfer-Encoding", "binary")
	soapHeader.Set("Content-ID", m.StartID)

	soapPart, err := mw.CreatePart(soapHeader)
	if err != nil {
		return cw.n, fmt.Errorf("failed to create SOAP part: %w", err)
	}
	if _, err := soapPart.Write(m.Envelope); err != nil {
		return cw.n, fmt.Errorf("failed to write SOAP part: %w", err)
	}

	for _, p := range m.Parts {
		if err := writePart(mw, p); err != nil {
			return cw.n, err
		}
	}

	if err := mw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return cw.n, nil
}

func writePart(mw *multipart.Writer, p *attachment.Part) error {
	body, err := p.Body.Open()
	if err != nil {
		return fmt.Errorf("failed to open attachment %s: %w", p.Header.Get("Content-ID"), err)
	}
	defer body.Close()

	w, err := mw.CreatePart(p.Header)
	if err != nil {
		return fmt.Errorf("failed to create attachment part: %w", err)
	}
	if _, err := io.Copy(w, body); err != nil {
		return fmt.Errorf("failed to write attachment %s: %w", p.Header.Get("Content-ID"), err)
	}
	return nil
}

// Reader streams the serialized message through a pipe
func (m *Message) Reader() io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := m.WriteTo(pw)
		pw.CloseWithError(err)
	}()
	return pr
}

// Parsed is a received multipart message
type Parsed struct {
	Root  []byte
	Parts []attachment.InboundPart
}

// Parse splits a multipart/related body into the SOAP root part and the
// remaining parts. The root is the part named by the start parameter, or the
// first part when start is absent.
func Parse(r io.Reader, contentType string) (*Parsed, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("not a multipart message: %s", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fmt.Errorf("boundary not found in content type")
	}
	start := attachment.ContentIDWithoutBrackets(params["start"])

	reader := multipart.NewReader(r, boundary)
	parsed := &Parsed{}
	rootFound := false

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read part data: %w", err)
		}

		id := attachment.ContentIDWithoutBrackets(part.Header.Get("Content-ID"))
		isRoot := !rootFound && (start == "" || id == start)
		if isRoot {
			parsed.Root = data
			rootFound = true
			continue
		}
		parsed.Parts = append(parsed.Parts, attachment.InboundPart{
			Header: part.Header,
			Body: attachment.OpenFunc(func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(data)), nil
			}),
		})
	}

	if !rootFound {
		return nil, ErrNoRootPart
	}
	return parsed, nil
}

// RootPart returns the SOAP envelope of an HTTP body, unwrapping
// multipart/related when necessary.
func RootPart(body []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return body, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return body, nil
	}
	parsed, err := Parse(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return parsed.Root, nil
}

func generateBoundary() string {
	return fmt.Sprintf("----=_Part_%s", strings.ReplaceAll(uuid.New().String(), "-", ""))
}
