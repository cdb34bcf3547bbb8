// Package testserver runs an in-process AS4 responder for tests. It answers
// pushed user messages with receipts or error signals and records what it
// received.
package testserver

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/mime"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
)

// Path is the route the responder listens on
const Path = "/as4"

// Behavior selects the kind of reply
type Behavior int

const (
	// Receipt replies with a receipt echoing the request's signature references
	Receipt Behavior = iota
	// ErrorSignal replies with an EBMS:0004 error signal
	ErrorSignal
	// ReceiptAndError replies with a signal carrying both
	ReceiptAndError
	// BareSignal replies with a signal that is neither receipt nor error
	BareSignal
	// EmptyReply answers 200 with no body
	EmptyReply
	// NotSignal answers 200 with a SOAP envelope that has no signal message
	NotSignal
	// Unavailable answers 503 with no body
	Unavailable
)

// Options configures the responder
type Options struct {
	Behavior Behavior
	// Signer signs the reply when set
	Signer *security.RSASigner
	// FailFirst answers the first n requests with 503 and no body
	FailFirst int
	// TamperDigest alters the first echoed digest value
	TamperDigest bool
	// DropReference omits the last echoed reference
	DropReference bool
	// RefToMessageID overrides the RefToMessageId of the reply
	RefToMessageID string
	// WrapSignature inserts an unsigned copy of eb:Messaging with a different
	// MessageId ahead of the signed one after signing
	WrapSignature bool
}

// Request is one received HTTP request
type Request struct {
	Header      http.Header
	Body        []byte
	Envelope    *etree.Document
	MessageID   string
	Attachments []Attachment
}

// Attachment is a received MIME part
type Attachment struct {
	ContentID string
	Header    textproto.MIMEHeader
	Data      []byte
}

// Server is a running responder
type Server struct {
	*httptest.Server
	t    testing.TB
	opts Options

	mu       sync.Mutex
	hits     int
	requests []Request
}

// New starts a responder and registers its shutdown with t
func New(t testing.TB, opts Options) *Server {
	t.Helper()
	s := &Server{t: t, opts: opts}

	r := chi.NewRouter()
	r.Post(Path, s.handle)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the full URL to push messages to
func (s *Server) Endpoint() string {
	return s.URL + Path
}

// Hits is the number of requests received, including failed ones
func (s *Server) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// Requests returns the requests that were parsed successfully
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits++
	hit := s.hits
	s.mu.Unlock()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if hit <= s.opts.FailFirst || s.opts.Behavior == Unavailable {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	req, err := parseRequest(r.Header, body)
	if err != nil {
		s.t.Logf("testserver: bad request: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, *req)
	s.mu.Unlock()

	if s.opts.Behavior == EmptyReply {
		w.WriteHeader(http.StatusOK)
		return
	}

	reply, err := s.reply(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mime.ContentTypeSOAPXML+"; charset=UTF-8")
	_, _ = w.Write(reply)
}

func parseRequest(header http.Header, body []byte) (*Request, error) {
	req := &Request{Header: header.Clone(), Body: body}
	root := body

	ct := header.Get("Content-Type")
	if strings.HasPrefix(ct, mime.ContentTypeMultipartRelated) {
		parsed, err := mime.Parse(bytes.NewReader(body), ct)
		if err != nil {
			return nil, err
		}
		root = parsed.Root
		for _, p := range parsed.Parts {
			rc, err := p.Body.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, err
			}
			req.Attachments = append(req.Attachments, Attachment{
				ContentID: p.Header.Get("Content-ID"),
				Header:    p.Header,
				Data:      data,
			})
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(root); err != nil {
		return nil, err
	}
	req.Envelope = doc
	if id := message.Descendant(doc.Root(), message.NsEbMS, "MessageId"); id != nil {
		req.MessageID = strings.TrimSpace(id.Text())
	}
	return req, nil
}

func (s *Server) reply(req *Request) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("S12:Envelope")
	env.CreateAttr("xmlns:S12", message.NsSOAP12)
	header := env.CreateElement("S12:Header")
	messaging := header.CreateElement("ebms:Messaging")
	messaging.CreateAttr("xmlns:ebms", message.NsEbMS)
	messaging.CreateAttr("S12:mustUnderstand", "true")

	if s.opts.Behavior != NotSignal {
		signal := messaging.CreateElement("ebms:SignalMessage")
		info := signal.CreateElement("ebms:MessageInfo")
		info.CreateElement("ebms:Timestamp").SetText(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
		info.CreateElement("ebms:MessageId").SetText(uuid.NewString() + "@testserver")
		ref := req.MessageID
		if s.opts.RefToMessageID != "" {
			ref = s.opts.RefToMessageID
		}
		info.CreateElement("ebms:RefToMessageId").SetText(ref)

		if s.opts.Behavior == Receipt || s.opts.Behavior == ReceiptAndError {
			s.writeReceipt(signal, req)
		}
		if s.opts.Behavior == ErrorSignal || s.opts.Behavior == ReceiptAndError {
			e := signal.CreateElement("ebms:Error")
			e.CreateAttr("category", "Content")
			e.CreateAttr("errorCode", "EBMS:0004")
			e.CreateAttr("origin", "ebMS")
			e.CreateAttr("refToMessageInError", ref)
			e.CreateAttr("severity", message.SeverityFailure)
			e.CreateAttr("shortDescription", "Other")
			desc := e.CreateElement("ebms:Description")
			desc.CreateAttr("xml:lang", "en")
			desc.SetText("rejected by test responder")
		}
	}
	env.CreateElement("S12:Body")

	if s.opts.Signer != nil {
		if _, err := s.opts.Signer.Sign(doc, nil); err != nil {
			return nil, err
		}
		if s.opts.WrapSignature {
			forged := messaging.Copy()
			forged.RemoveAttr("wsu:Id")
			if id := message.Descendant(forged, message.NsEbMS, "MessageId"); id != nil {
				id.SetText("forged@testserver")
			}
			header.InsertChildAt(0, forged)
		}
	}
	return doc.WriteToBytes()
}

// writeReceipt echoes the request's signature references under a prefix of
// its own choosing
func (s *Server) writeReceipt(signal *etree.Element, req *Request) {
	receipt := signal.CreateElement("ebms:Receipt")
	nri := receipt.CreateElement("ebbp:NonRepudiationInformation")
	nri.CreateAttr("xmlns:ebbp", message.NsEbbp)

	signedInfo := message.Descendant(req.Envelope.Root(), message.NsDSig, "SignedInfo")
	if signedInfo == nil {
		return
	}
	refs := security.ExtractReferences(signedInfo)
	if s.opts.DropReference && len(refs) > 0 {
		refs = refs[:len(refs)-1]
	}
	for i, ref := range refs {
		digest := ref.DigestValue
		if s.opts.TamperDigest && i == 0 {
			digest = "AAAA" + digest
		}
		part := nri.CreateElement("ebbp:MessagePartNRInformation")
		el := part.CreateElement("dsig:Reference")
		el.CreateAttr("xmlns:dsig", message.NsDSig)
		el.CreateAttr("URI", ref.URI)
		transforms := el.CreateElement("dsig:Transforms")
		for _, alg := range ref.Transforms {
			transforms.CreateElement("dsig:Transform").CreateAttr("Algorithm", alg)
		}
		el.CreateElement("dsig:DigestMethod").CreateAttr("Algorithm", ref.DigestMethod)
		el.CreateElement("dsig:DigestValue").SetText(digest)
	}
}
