package exchange

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-as4sender/pkg/attachment"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/mime"
	"github.com/sirosfoundation/go-as4sender/pkg/reliability"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
	"github.com/sirosfoundation/go-as4sender/pkg/transport"
)

var (
	// ErrReadOnceAttachment is returned before any I/O when a read-once
	// attachment would have to be read more than once
	ErrReadOnceAttachment = errors.New("read-once attachment cannot be retried or signed")
	// ErrInvalidRequest is returned for requests missing required values
	ErrInvalidRequest = errors.New("invalid exchange request")
	// ErrResponseSignature wraps a response signature verification failure
	ErrResponseSignature = errors.New("response signature verification failed")
)

// ResponseConsumer receives the raw HTTP response of the successful attempt
type ResponseConsumer func(resp *transport.Response)

// SignalConsumer receives the parsed, verified signal message
type SignalConsumer func(ctx context.Context, sent *SentMessage, signal *message.SignalMessage)

// Request describes one outbound user message
type Request struct {
	UserMessage *message.UserMessage
	Attachments []*attachment.Attachment
	URL         string

	// ReceiverCertificate is required when an encryptor is configured
	ReceiverCertificate *x509.Certificate
	// Verifier checks the response signature; nil skips verification
	Verifier security.ResponseVerifier

	MaxRetries    int
	RetryInterval time.Duration

	// SendingTimeConsumer is told when the first attempt starts
	SendingTimeConsumer func(time.Time)
	ResponseConsumers   []ResponseConsumer
	SignalConsumers     []SignalConsumer
}

// SentMessage is the outcome of SendAndReceive
type SentMessage struct {
	MessageID      string
	SentReferences []security.Reference
	SendingTime    time.Time
	Attempts       int

	// Response is the last response received; nil when no attempt produced
	// one. It is kept when the retries are exhausted.
	Response *transport.Response
	// Signal is nil when the body was empty or not a signal message
	Signal *message.SignalMessage
	// SignalErr explains why Signal is nil for a non-empty body, or carries
	// a signature verification failure
	SignalErr error
}

// Exchange signs, packages and transmits user messages
type Exchange struct {
	client    *transport.HTTPSClient
	signer    security.Signer
	encryptor security.Encryptor
	tracker   *reliability.Tracker
	logger    *slog.Logger
}

// Option configures an Exchange
type Option func(*Exchange)

// WithSigner signs every outbound message
func WithSigner(s security.Signer) Option {
	return func(e *Exchange) { e.signer = s }
}

// WithEncryptor encrypts every outbound message after signing
func WithEncryptor(enc security.Encryptor) Option {
	return func(e *Exchange) { e.encryptor = enc }
}

// WithTracker correlates responses through a reception-awareness tracker
func WithTracker(t *reliability.Tracker) Option {
	return func(e *Exchange) { e.tracker = t }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exchange) { e.logger = logger }
}

// New creates an Exchange; a nil client uses transport defaults
func New(client *transport.HTTPSClient, opts ...Option) *Exchange {
	if client == nil {
		client = transport.NewHTTPSClient(nil)
	}
	e := &Exchange{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Signer returns the configured signer, possibly nil
func (e *Exchange) Signer() security.Signer { return e.signer }

func (e *Exchange) check(req *Request) error {
	if req == nil || req.UserMessage == nil {
		return fmt.Errorf("%w: user message required", ErrInvalidRequest)
	}
	if req.URL == "" {
		return fmt.Errorf("%w: endpoint URL required", ErrInvalidRequest)
	}
	if e.encryptor != nil && req.ReceiverCertificate == nil {
		return fmt.Errorf("%w: receiver certificate required for encryption", ErrInvalidRequest)
	}
	if err := req.UserMessage.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for _, att := range req.Attachments {
		if att.ReadMode() != attachment.ReadOnce {
			continue
		}
		if req.MaxRetries > 0 || e.signer != nil {
			return fmt.Errorf("%w: %s", ErrReadOnceAttachment, att.ContentID())
		}
	}
	return nil
}

// SendAndReceive transmits req and interprets the response. A non-empty
// body is always parsed as a signal message and verified, whether or not
// consumers are registered. The returned SentMessage is non-nil once the
// envelope was built, including when transmission fails.
func (e *Exchange) SendAndReceive(ctx context.Context, req *Request) (*SentMessage, error) {
	if err := e.check(req); err != nil {
		return nil, err
	}

	um := req.UserMessage
	log := e.logger.With("messageId", um.MessageID, "url", req.URL)

	doc, err := um.Envelope()
	if err != nil {
		return nil, fmt.Errorf("failed to build envelope: %w", err)
	}

	sent := &SentMessage{MessageID: um.MessageID}
	attachments := req.Attachments
	if e.signer != nil {
		refs, err := e.signer.Sign(doc, attachments)
		if err != nil {
			return nil, fmt.Errorf("failed to sign message: %w", err)
		}
		sent.SentReferences = refs
	}
	if e.encryptor != nil {
		attachments, err = e.encryptor.Encrypt(doc, attachments, req.ReceiverCertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt message: %w", err)
		}
	}

	envelope, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize envelope: %w", err)
	}
	newBody := bodyFunc(envelope, attachments)

	if e.tracker != nil {
		e.tracker.Track(um.MessageID)
	}
	policy := transport.RetryPolicy{
		MaxRetries: req.MaxRetries,
		Interval:   req.RetryInterval,
		RetryOn:    retryOn,
	}
	counted := func() (io.Reader, string, error) {
		if e.tracker != nil {
			_ = e.tracker.MarkSending(um.MessageID)
		}
		return newBody()
	}

	sent.SendingTime = time.Now()
	if req.SendingTimeConsumer != nil {
		req.SendingTimeConsumer(sent.SendingTime)
	}
	log.Info("sending AS4 message", "attachments", len(attachments), "maxRetries", req.MaxRetries)

	resp, attempts, err := e.client.SendWithRetry(ctx, req.URL, counted, policy)
	sent.Attempts = attempts
	if err != nil {
		sent.Response = resp
		if e.tracker != nil {
			_ = e.tracker.MarkFailed(um.MessageID, err)
		}
		log.Error("AS4 transmission failed", "attempts", attempts, "error", err)
		return sent, err
	}
	sent.Response = resp
	if e.tracker != nil {
		_ = e.tracker.MarkAwaitingReceipt(um.MessageID)
	}
	log.Debug("received response", "status", resp.StatusCode, "bytes", len(resp.Body), "attempts", attempts)

	for _, consume := range req.ResponseConsumers {
		consume(resp)
	}
	if len(resp.Body) == 0 {
		return sent, nil
	}

	signal, err := parseResponse(resp)
	if err != nil {
		log.Warn("response is not an ebMS signal message", "status", resp.StatusCode, "error", err)
		sent.SignalErr = err
		return sent, nil
	}
	if req.Verifier != nil {
		if err := req.Verifier.Verify(signal.Envelope); err != nil {
			log.Error("response signature rejected", "signalId", signal.MessageID, "error", err)
			sent.SignalErr = fmt.Errorf("%w: %w", ErrResponseSignature, err)
			return sent, nil
		}
	}
	sent.Signal = signal
	e.correlate(log, um.MessageID, signal)

	for _, consume := range req.SignalConsumers {
		consume(ctx, sent, signal)
	}
	return sent, nil
}

func (e *Exchange) correlate(log *slog.Logger, messageID string, signal *message.SignalMessage) {
	if signal.RefToMessageID != messageID {
		log.Warn("signal references a different message",
			"signalId", signal.MessageID,
			"refToMessageId", signal.RefToMessageID)
	}
	if e.tracker == nil {
		return
	}
	if signal.MessageID != "" && e.tracker.SeenSignal(signal.MessageID) {
		log.Warn("signal message id seen before", "signalId", signal.MessageID)
	}
	codes := make([]string, 0, len(signal.Errors))
	for _, ebErr := range signal.Errors {
		codes = append(codes, ebErr.String())
	}
	_ = e.tracker.RecordSignal(messageID, signal.MessageID, signal.IsReceipt(), codes)
}

// bodyFunc packages the envelope alone as SOAP or with attachments as
// multipart/related. Parts reopen their source on every call.
func bodyFunc(envelope []byte, attachments []*attachment.Attachment) transport.BodyFunc {
	if len(attachments) == 0 {
		return func() (io.Reader, string, error) {
			return bytes.NewReader(envelope), mime.ContentTypeSOAPXML + "; charset=UTF-8", nil
		}
	}
	parts := make([]*attachment.Part, 0, len(attachments))
	for _, att := range attachments {
		parts = append(parts, att.Part())
	}
	msg := mime.NewMessage(envelope, parts)
	return func() (io.Reader, string, error) {
		return msg.Reader(), msg.ContentType(), nil
	}
}

func parseResponse(resp *transport.Response) (*message.SignalMessage, error) {
	root, err := mime.RootPart(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return message.ParseSignal(root)
}

// retryOn retries non-2xx responses unless they carry a SOAP envelope
func retryOn(resp *transport.Response) bool {
	if resp.OK() {
		return false
	}
	if len(resp.Body) == 0 {
		return true
	}
	_, err := parseResponse(resp)
	return err != nil && !errors.Is(err, message.ErrNoSignalMessage)
}
