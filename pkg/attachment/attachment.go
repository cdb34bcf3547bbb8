package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirosfoundation/go-as4sender/pkg/compression"
	"github.com/sirosfoundation/go-as4sender/pkg/resource"
)

var (
	// ErrMissingMimeType is returned when an attachment is created without a MIME type
	ErrMissingMimeType = errors.New("attachment MIME type is required")
	// ErrNoScope is returned when compression is requested without a resource scope
	ErrNoScope = errors.New("a resource scope is required to compress attachments")
)

// DefaultTransferEncoding is applied to every outgoing part unless overridden
const DefaultTransferEncoding = "binary"

// Property is a custom attachment property, reported as a PartProperty
type Property struct {
	Name  string
	Value string
}

// Attachment is one outbound MIME part
type Attachment struct {
	source               Source
	contentID            string
	filename             string
	mimeType             string
	uncompressedMimeType string
	compression          *compression.Mode
	charset              string
	transferEncoding     string
	properties           []Property
	logger               *slog.Logger
}

// Option customizes attachment creation
type Option func(*options)

type options struct {
	contentID        string
	filename         string
	charset          string
	transferEncoding string
	compression      *compression.Mode
	properties       []Property
}

// WithContentID sets the Content-ID. Brackets are optional.
func WithContentID(id string) Option {
	return func(o *options) { o.contentID = ContentIDWithoutBrackets(id) }
}

// WithFilename sets the filename used in Content-Disposition
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// WithCharset sets the character set reported in the part properties
func WithCharset(charset string) Option {
	return func(o *options) { o.charset = charset }
}

// WithCompression compresses the content at creation time. A nil mode
// leaves the content uncompressed.
func WithCompression(mode *compression.Mode) Option {
	return func(o *options) { o.compression = mode }
}

// WithTransferEncoding overrides the Content-Transfer-Encoding
func WithTransferEncoding(enc string) Option {
	return func(o *options) { o.transferEncoding = enc }
}

// WithProperty adds a custom property
func WithProperty(name, value string) Option {
	return func(o *options) { o.properties = append(o.properties, Property{Name: name, Value: value}) }
}

func newAttachment(scope *resource.Scope, source Source, mimeType string, o *options) *Attachment {
	a := &Attachment{
		source:               source,
		contentID:            o.contentID,
		filename:             o.filename,
		mimeType:             mimeType,
		uncompressedMimeType: mimeType,
		charset:              o.charset,
		transferEncoding:     o.transferEncoding,
		logger:               slog.Default(),
	}
	if scope != nil {
		a.logger = scope.Logger()
	}
	if a.contentID == "" {
		a.contentID = uuid.New().String() + "@as4sender"
	}
	if a.transferEncoding == "" {
		a.transferEncoding = DefaultTransferEncoding
	}
	for _, p := range o.properties {
		a.SetProperty(p.Name, p.Value)
	}
	return a
}

func collect(mimeType string, opts []Option) (*options, error) {
	if strings.TrimSpace(mimeType) == "" {
		return nil, ErrMissingMimeType
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// CreateFromBytes creates an attachment over data. With compression the
// bytes are compressed into a scope-owned temporary file immediately.
func CreateFromBytes(scope *resource.Scope, data []byte, mimeType string, opts ...Option) (*Attachment, error) {
	o, err := collect(mimeType, opts)
	if err != nil {
		return nil, err
	}
	if o.compression == nil {
		return newAttachment(scope, &BytesSource{data: data}, mimeType, o), nil
	}
	return createCompressed(scope, bytes.NewReader(data), mimeType, o)
}

// CreateFromFile creates an attachment backed by the file at path.
// Uncompressed attachments reopen the file on every read.
func CreateFromFile(scope *resource.Scope, path, mimeType string, opts ...Option) (*Attachment, error) {
	o, err := collect(mimeType, opts)
	if err != nil {
		return nil, err
	}
	if o.compression == nil {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("attachment file: %w", err)
		}
		return newAttachment(scope, &FileSource{path: path}, mimeType, o), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("attachment file: %w", err)
	}
	defer f.Close()
	return createCompressed(scope, f, mimeType, o)
}

// CreateFromProvider creates an attachment over a caller supplied stream
// provider. Compression consumes the provider once at creation, so the result
// is read-multiple even for read-once providers.
func CreateFromProvider(scope *resource.Scope, provider StreamProvider, mimeType string, opts ...Option) (*Attachment, error) {
	if provider == nil {
		panic("attachment: nil stream provider")
	}
	o, err := collect(mimeType, opts)
	if err != nil {
		return nil, err
	}
	if o.compression == nil {
		return newAttachment(scope, &ProviderSource{provider: provider}, mimeType, o), nil
	}

	rc, err := provider.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment stream: %w", err)
	}
	defer rc.Close()
	return createCompressed(scope, rc, mimeType, o)
}

func createCompressed(scope *resource.Scope, src io.Reader, mimeType string, o *options) (*Attachment, error) {
	if scope == nil {
		return nil, ErrNoScope
	}
	mode := o.compression

	f, err := scope.CreateTempFile("as4-attachment-*" + mode.FileExtension)
	if err != nil {
		return nil, err
	}
	if _, err := mode.Compress(f, src); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close compressed attachment: %w", err)
	}

	a := newAttachment(scope, &FileSource{path: f.Name()}, mode.MimeType, o)
	a.uncompressedMimeType = mimeType
	a.compression = mode
	return a, nil
}

// Source returns the content source
func (a *Attachment) Source() Source { return a.source }

// Open returns a fresh stream over the content
func (a *Attachment) Open() (io.ReadCloser, error) { return a.source.Open() }

// ReadMode reports whether the content may be streamed more than once
func (a *Attachment) ReadMode() ReadMode { return a.source.ReadMode() }

// ContentID returns the Content-ID without angle brackets
func (a *Attachment) ContentID() string { return a.contentID }

// Filename returns the filename, if any
func (a *Attachment) Filename() string { return a.filename }

// MimeType returns the current MIME type. For compressed attachments this is
// the compression mode's type.
func (a *Attachment) MimeType() string { return a.mimeType }

// UncompressedMimeType returns the MIME type of the original content
func (a *Attachment) UncompressedMimeType() string { return a.uncompressedMimeType }

// Compression returns the compression mode, or nil
func (a *Attachment) Compression() *compression.Mode { return a.compression }

// Charset returns the character set, if any
func (a *Attachment) Charset() string { return a.charset }

// TransferEncoding returns the Content-Transfer-Encoding
func (a *Attachment) TransferEncoding() string { return a.transferEncoding }

// SetProperty sets a custom property. An existing name keeps its position.
func (a *Attachment) SetProperty(name, value string) {
	for i := range a.properties {
		if a.properties[i].Name == name {
			a.properties[i].Value = value
			return
		}
	}
	a.properties = append(a.properties, Property{Name: name, Value: value})
}

// Properties returns the custom properties in insertion order
func (a *Attachment) Properties() []Property {
	return append([]Property(nil), a.properties...)
}
