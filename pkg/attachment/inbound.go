package attachment

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/textproto"

	"github.com/sirosfoundation/go-as4sender/pkg/resource"
)

// InboundThreshold is the largest inbound part kept in memory. Larger parts
// are spooled to a temporary file.
const InboundThreshold = 64 * 1024

// InboundPart is a raw MIME part received from a peer
type InboundPart struct {
	Header textproto.MIMEHeader
	Body   StreamProvider
}

// CreateFromInboundPart turns a received MIME part into an attachment.
// Parts up to InboundThreshold bytes are buffered in memory; they stay
// re-readable only if the body provider supports multiple reads. Larger parts
// are spooled into a scope-owned file and are always re-readable.
func CreateFromInboundPart(scope *resource.Scope, part InboundPart) (*Attachment, error) {
	if scope == nil {
		return nil, ErrNoScope
	}
	logger := scope.Logger()

	o := &options{
		contentID:        ContentIDWithoutBrackets(part.Header.Get(HeaderContentID)),
		transferEncoding: part.Header.Get(HeaderContentTransferEncoding),
	}
	mimeType := "application/octet-stream"
	if ct := part.Header.Get(HeaderContentType); ct != "" {
		mediaType, params, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("invalid part Content-Type %q: %w", ct, err)
		}
		mimeType = mediaType
		o.charset = params["charset"]
	}
	if cd := part.Header.Get(HeaderContentDisposition); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			o.filename = params["filename"]
		}
	}

	body, err := part.Body.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open inbound part: %w", err)
	}
	defer body.Close()

	head, err := io.ReadAll(io.LimitReader(body, InboundThreshold+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read inbound part: %w", err)
	}

	if len(head) <= InboundThreshold {
		if part.Body.ReadMode() == ReadMultiple {
			return newAttachment(scope, &BytesSource{data: head}, mimeType, o), nil
		}
		logger.Warn("inbound attachment source cannot be read twice, marking attachment read-once",
			slog.String("content_id", o.contentID))
		return newAttachment(scope, &ProviderSource{provider: ReadOnceFrom(bytes.NewReader(head))}, mimeType, o), nil
	}

	f, err := scope.CreateTempFile("as4-inbound-*.bin")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), body)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to spool inbound part: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to spool inbound part: %w", err)
	}
	logger.Debug("spooled inbound attachment to file",
		slog.String("content_id", o.contentID),
		slog.String("path", f.Name()))
	return newAttachment(scope, &FileSource{path: f.Name()}, mimeType, o), nil
}
