package attachment

import (
	"log/slog"
	"net/textproto"
	"strings"
)

// Header names applied to outbound parts
const (
	HeaderContentDescription      = "Content-Description"
	HeaderContentDisposition      = "Content-Disposition"
	HeaderContentID               = "Content-ID"
	HeaderContentType             = "Content-Type"
	HeaderContentTransferEncoding = "Content-Transfer-Encoding"
)

// ContentDescriptionAttachment is the fixed Content-Description value
const ContentDescriptionAttachment = "Attachment"

// Part is an outbound MIME part ready for serialization
type Part struct {
	Body   StreamProvider
	Header textproto.MIMEHeader
}

// Part attaches the content to a new part and then applies the header set.
// Headers come last so nothing set while attaching the body can reset them.
func (a *Attachment) Part() *Part {
	p := &Part{Body: a.source}
	p.Header = a.Header()
	return p
}

// Header returns the mandatory outbound header set
func (a *Attachment) Header() textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	h.Set(HeaderContentDescription, ContentDescriptionAttachment)
	if a.filename != "" {
		if strings.Contains(a.filename, `"`) {
			a.logger.Warn("attachment filename contains a double quote and may corrupt Content-Disposition",
				slog.String("content_id", a.contentID),
				slog.String("filename", a.filename))
		}
		h.Set(HeaderContentDisposition, `attachment; filename="`+a.filename+`"`)
	}
	h.Set(HeaderContentID, AddContentIDBrackets(a.contentID))
	h.Set(HeaderContentType, a.mimeType)
	h.Set(HeaderContentTransferEncoding, a.transferEncoding)
	return h
}

// AddContentIDBrackets wraps id in angle brackets unless it already is
func AddContentIDBrackets(id string) string {
	if strings.HasPrefix(id, "<") && strings.HasSuffix(id, ">") {
		return id
	}
	return "<" + strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">") + ">"
}

// ContentIDWithoutBrackets strips angle brackets and a cid: prefix
func ContentIDWithoutBrackets(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "cid:")
	id = strings.TrimPrefix(id, "<")
	return strings.TrimSuffix(id, ">")
}
