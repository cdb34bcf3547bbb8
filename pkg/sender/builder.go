package sender

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-as4sender/pkg/attachment"
	"github.com/sirosfoundation/go-as4sender/pkg/compression"
	"github.com/sirosfoundation/go-as4sender/pkg/discovery"
	"github.com/sirosfoundation/go-as4sender/pkg/exchange"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/pmode"
	"github.com/sirosfoundation/go-as4sender/pkg/reliability"
	"github.com/sirosfoundation/go-as4sender/pkg/report"
	"github.com/sirosfoundation/go-as4sender/pkg/resource"
	"github.com/sirosfoundation/go-as4sender/pkg/sbdh"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
	"github.com/sirosfoundation/go-as4sender/pkg/transport"
)

// State is the lifecycle position of a Builder
type State int

const (
	StateConfiguring State = iota
	StateResolving
	StateAssembling
	StateDispatching
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateResolving:
		return "resolving"
	case StateAssembling:
		return "assembling"
	case StateDispatching:
		return "dispatching"
	case StateTerminal:
		return "terminal"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PartyIDTypeAccessPoint qualifies From/To party ids taken from access point
// certificate CNs
const PartyIDTypeAccessPoint = "urn:fdc:peppol.eu:2017:identifiers:ap"

// PayloadMimeType is the MIME type of the SBDH attachment
const PayloadMimeType = "application/xml"

type variant int

const (
	variantAuto variant = iota
	variantPrebuilt
)

// Builder accumulates the settings of one outbound message and runs the
// send pipeline. A Builder sends at most once and is not safe for
// concurrent use.
type Builder struct {
	variant    variant
	variantErr error
	state      State
	logger     *slog.Logger
	now        func() time.Time

	senderID       message.Identifier
	receiverID     message.Identifier
	docTypeID      message.Identifier
	processID      message.Identifier
	countryC1      string
	senderPartyID  string
	messageID      string
	conversationID string
	properties     []message.Property
	pmode          *pmode.ProcessingMode

	compression    *compression.Mode
	compressionSet bool
	tempDir        string

	payloadElement    *etree.Element
	payloadBytes      []byte
	payloadProvider   attachment.StreamProvider
	sbdhStandard      string
	sbdhTypeVersion   string
	sbdhType          string
	sbdhInstanceID    string
	validator         PayloadValidator
	validationHandler ValidationHandler
	sbdhBytes         []byte
	sbdhDoc           *sbdh.Document

	resolver            discovery.Resolver
	checker             security.CertificateChecker
	checkDisabled       bool
	cacheOverride       *bool
	modeOverride        *security.RevocationMode
	certObserver        CertificateCheckObserver
	certConsumers       []func(*x509.Certificate)
	urlConsumers        []func(string)
	sendingTimeConsumer func(time.Time)

	client            *transport.HTTPSClient
	signer            security.Signer
	encryptor         security.Encryptor
	skipVerification  bool
	maxRetries        *int
	retryInterval     *time.Duration
	signalConsumers   []exchange.SignalConsumer
	responseConsumers []exchange.ResponseConsumer
	signalValidation  *exchange.ValidationResultHandler
	tracker           *reliability.Tracker
	report            *report.SendingReport

	// resolved during the pipeline
	receiverCert     *x509.Certificate
	endpointURL      string
	technicalContact string
	envelope         *sbdh.Document
	attachments      []*attachment.Attachment
	userMessage      *message.UserMessage
	sendingTime      time.Time
	sent             *exchange.SentMessage
}

func newBuilder(v variant, opts []Option) *Builder {
	b := &Builder{
		variant:           v,
		logger:            slog.Default(),
		now:               time.Now,
		validationHandler: RaisingValidationHandler(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewAutoEnvelope creates a builder that wraps a raw XML business payload in
// a Standard Business Document Header it derives itself
func NewAutoEnvelope(opts ...Option) *Builder {
	return newBuilder(variantAuto, opts)
}

// NewPrebuiltEnvelope creates a builder for a complete Standard Business
// Document produced and validated upstream
func NewPrebuiltEnvelope(opts ...Option) *Builder {
	return newBuilder(variantPrebuilt, opts)
}

// Set applies more options while the builder is configuring
func (b *Builder) Set(opts ...Option) *Builder {
	if b.state != StateConfiguring {
		b.logger.Warn("ignoring configuration change after send started", slog.String("state", b.state.String()))
		return b
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) requireVariant(v variant, field string) {
	if b.variant != v {
		b.variantErr = fmt.Errorf("%w: %s", ErrWrongVariant, field)
		b.logger.Error("option does not apply to this builder", slog.String("field", field))
	}
}

// State returns the current lifecycle state
func (b *Builder) State() State { return b.state }

// ReceiverCertificate returns the accepted receiver certificate
func (b *Builder) ReceiverCertificate() *x509.Certificate { return b.receiverCert }

// EndpointURL returns the resolved endpoint URL
func (b *Builder) EndpointURL() string { return b.endpointURL }

// Envelope returns the SBDH that was built or parsed
func (b *Builder) Envelope() *sbdh.Document { return b.envelope }

// Attachments returns the assembled outbound attachments
func (b *Builder) Attachments() []*attachment.Attachment { return b.attachments }

// UserMessage returns the user message handed to the exchange
func (b *Builder) UserMessage() *message.UserMessage { return b.userMessage }

// SendingTime returns when transmission started
func (b *Builder) SendingTime() time.Time { return b.sendingTime }

// SentMessage returns the exchange outcome, nil before dispatch
func (b *Builder) SentMessage() *exchange.SentMessage { return b.sent }

func (b *Builder) fillReport(fn func(r *report.SendingReport)) {
	if b.report != nil {
		fn(b.report)
	}
}

// FinishFields prepares the payload, resolves the receiver endpoint, checks
// its certificate and, for the auto-envelope variant, validates and wraps the
// payload. It returns false without an error when a precondition is not met;
// the reason is logged. Resolution and certificate failures are returned as
// non-retryable *Error values.
func (b *Builder) FinishFields(ctx context.Context, scope *resource.Scope) (bool, error) {
	if b.state != StateConfiguring {
		return false, ErrNotConfiguring
	}
	b.state = StateResolving
	if b.variantErr != nil {
		return false, fatal(PhasePayload, b.variantErr)
	}

	var payload *etree.Element
	switch b.variant {
	case variantAuto:
		el, err := b.loadPayload()
		if err != nil {
			return false, fatal(PhasePayload, err)
		}
		if el == nil {
			b.logger.Error("no payload configured")
			return false, nil
		}
		if sbdh.IsEnvelope(el) {
			b.logger.Error("payload is a Standard Business Document; use the pre-built envelope builder")
			return false, fatal(PhasePayload, ErrEnvelopePayload)
		}
		payload = el
	case variantPrebuilt:
		if err := b.loadPrebuilt(); err != nil {
			return false, fatal(PhasePayload, err)
		}
		if b.envelope == nil {
			b.logger.Error("no SBDH configured")
			return false, nil
		}
	}

	ok, err := b.resolveEndpoint(ctx)
	if !ok || err != nil {
		return ok, err
	}

	b.state = StateAssembling
	mode, err := b.compressionMode()
	if err != nil {
		return false, fatal(PhaseAssemble, err)
	}

	if b.variant == variantPrebuilt {
		return b.attachPrebuilt(scope, mode)
	}
	return b.wrapPayload(ctx, scope, payload, mode)
}

// loadPayload returns the payload element, parsing bytes or a stream
func (b *Builder) loadPayload() (*etree.Element, error) {
	if b.payloadElement != nil {
		return b.payloadElement, nil
	}
	doc := etree.NewDocument()
	switch {
	case len(b.payloadBytes) > 0:
		if err := doc.ReadFromBytes(b.payloadBytes); err != nil {
			return nil, fmt.Errorf("failed to parse payload: %w", err)
		}
	case b.payloadProvider != nil:
		rc, err := b.payloadProvider.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open payload: %w", err)
		}
		defer rc.Close()
		if _, err := doc.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("failed to parse payload: %w", err)
		}
	default:
		return nil, nil
	}
	if doc.Root() == nil {
		return nil, errors.New("payload has no root element")
	}
	return doc.Root(), nil
}

func (b *Builder) loadPrebuilt() error {
	doc := b.sbdhDoc
	if doc == nil {
		if len(b.sbdhBytes) == 0 {
			return nil
		}
		parsed, err := sbdh.Parse(b.sbdhBytes)
		if err != nil {
			b.logger.Error("pre-built SBDH is incomplete", "error", err)
			return err
		}
		doc = parsed
	} else if err := doc.Validate(); err != nil {
		b.logger.Error("pre-built SBDH is incomplete", "error", err)
		return err
	}

	fill := func(dst *message.Identifier, v message.Identifier) {
		if dst.IsZero() {
			*dst = v
		}
	}
	fill(&b.senderID, doc.Sender)
	fill(&b.receiverID, doc.Receiver)
	fill(&b.docTypeID, doc.DocumentType)
	fill(&b.processID, doc.Process)
	if b.countryC1 == "" {
		b.countryC1 = doc.CountryC1
	}
	b.envelope = doc
	return nil
}

func (b *Builder) resolveEndpoint(ctx context.Context) (bool, error) {
	if b.resolver == nil {
		b.logger.Error("no endpoint detail provider configured")
		return false, nil
	}
	for _, f := range []struct {
		name string
		id   message.Identifier
	}{
		{"receiverID", b.receiverID},
		{"docTypeID", b.docTypeID},
		{"processID", b.processID},
	} {
		if f.id.IsZero() {
			b.logger.Error("cannot resolve endpoint without identifier", slog.String("field", f.name))
			return false, nil
		}
	}

	res, err := b.resolver.Resolve(ctx, b.docTypeID, b.processID, b.receiverID)
	if err != nil {
		b.logger.Error("endpoint resolution failed",
			slog.String("receiver", b.receiverID.String()),
			slog.String("docType", b.docTypeID.String()),
			"error", err)
		return false, fatal(PhaseResolve, err)
	}

	if err := b.setReceiverCertificate(ctx, res.Certificate); err != nil {
		return false, err
	}
	b.technicalContact = res.TechnicalContact
	b.setEndpointURL(res.URL)
	b.fillReport(func(r *report.SendingReport) { r.ReceiverTechnicalContact = res.TechnicalContact })
	return true, nil
}

// setReceiverCertificate checks cert and applies it. It always runs before
// setEndpointURL.
func (b *Builder) setReceiverCertificate(ctx context.Context, cert *x509.Certificate) error {
	checkTime := b.now()
	result := security.CertNotChecked
	var checkErr error
	enabled := !b.checkDisabled && b.checker != nil
	if enabled {
		result, checkErr = security.CheckCertificate(ctx, b.checker, cert, checkTime, b.cacheOverride, b.modeOverride)
	}
	if b.certObserver != nil {
		b.certObserver(cert, checkTime, result)
	}
	b.fillReport(func(r *report.SendingReport) {
		r.ReceiverCertificate = cert
		r.CertificateCheckDT = checkTime
		r.CertificateCheckResult = &result
	})

	if enabled && !result.IsValid() {
		if checkErr == nil {
			checkErr = fmt.Errorf("%w: %s", security.ErrCertificateInvalid, result)
		}
		b.logger.Error("receiver certificate rejected", slog.String("result", result.String()), "error", checkErr)
		return fatal(PhaseCertify, checkErr)
	}
	if !enabled {
		b.logger.Info("receiver certificate check disabled")
	}

	b.receiverCert = cert
	for _, fn := range b.certConsumers {
		fn(cert)
	}
	return nil
}

func (b *Builder) setEndpointURL(url string) {
	b.endpointURL = url
	b.fillReport(func(r *report.SendingReport) { r.ReceiverEndpointURL = url })
	for _, fn := range b.urlConsumers {
		fn(url)
	}
}

func (b *Builder) compressionMode() (*compression.Mode, error) {
	if b.compressionSet {
		return b.compression, nil
	}
	mode, err := b.pmode.Compression()
	if err != nil {
		return nil, err
	}
	if mode == nil {
		return compression.Gzip, nil
	}
	return mode, nil
}

func (b *Builder) wrapPayload(ctx context.Context, scope *resource.Scope, payload *etree.Element, mode *compression.Mode) (bool, error) {
	if b.validator != nil {
		results, err := b.validator.Validate(ctx, b.docTypeID, payload)
		if err != nil {
			b.logger.Error("payload validation could not run", "error", err)
			return false, fatal(PhasePayload, err)
		}
		if hasErrors(results) {
			for _, r := range results {
				b.logger.Warn("payload validation finding", slog.String("finding", r.String()))
			}
			if h := b.validationHandler.OnErrors; h != nil {
				if err := h(results); err != nil {
					return false, err
				}
			}
			b.logger.Warn("continuing despite payload validation errors")
		} else if h := b.validationHandler.OnSuccess; h != nil {
			h(results)
		}
	}

	doc := &sbdh.Document{
		Sender:             b.senderID,
		Receiver:           b.receiverID,
		Standard:           b.sbdhStandard,
		TypeVersion:        b.sbdhTypeVersion,
		Type:               b.sbdhType,
		InstanceIdentifier: b.sbdhInstanceID,
		DocumentType:       b.docTypeID,
		Process:            b.processID,
		CountryC1:          b.countryC1,
		Payload:            payload,
	}
	if err := doc.Derive(); err != nil {
		b.logger.Error("cannot build SBDH", "error", err)
		return false, nil
	}
	b.envelope = doc

	f, err := scope.CreateTempFile("sbdh-*.xml")
	if err != nil {
		return false, err
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to write SBDH: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to write SBDH: %w", err)
	}

	att, err := attachment.CreateFromFile(scope, f.Name(), PayloadMimeType,
		attachment.WithCompression(mode),
		attachment.WithCharset("UTF-8"))
	if err != nil {
		return false, err
	}
	b.attachments = []*attachment.Attachment{att}
	return true, nil
}

func (b *Builder) attachPrebuilt(scope *resource.Scope, mode *compression.Mode) (bool, error) {
	var (
		att *attachment.Attachment
		err error
	)
	if len(b.sbdhBytes) > 0 {
		att, err = attachment.CreateFromBytes(scope, b.sbdhBytes, PayloadMimeType, attachment.WithCompression(mode))
	} else {
		att, err = attachment.CreateFromProvider(scope, attachment.OpenFunc(func() (io.ReadCloser, error) {
			pr, pw := io.Pipe()
			go func() {
				_, err := b.envelope.WriteTo(pw)
				pw.CloseWithError(err)
			}()
			return pr, nil
		}), PayloadMimeType, attachment.WithCompression(mode))
	}
	if err != nil {
		return false, err
	}
	b.attachments = []*attachment.Attachment{att}
	return true, nil
}

// IsEveryRequiredFieldSet reports whether the message can be sent. The
// first missing field is logged.
func (b *Builder) IsEveryRequiredFieldSet() bool {
	missing := func(field string) bool {
		b.logger.Warn("required field not set", slog.String("field", field))
		return false
	}
	switch {
	case b.variant == variantAuto && b.payloadElement == nil && len(b.payloadBytes) == 0 && b.payloadProvider == nil:
		return missing("payload")
	case b.variant == variantPrebuilt && len(b.sbdhBytes) == 0 && b.sbdhDoc == nil:
		return missing("sbdh")
	case b.senderID.IsZero():
		return missing("senderID")
	case b.receiverID.IsZero():
		return missing("receiverID")
	case b.docTypeID.IsZero():
		return missing("docTypeID")
	case b.processID.IsZero():
		return missing("processID")
	case b.resolver == nil:
		return missing("endpointResolver")
	case b.endpointURL == "":
		return missing("endpointURL")
	}
	return true
}

// CustomizeBeforeSending adds the originalSender and finalRecipient
// properties and wraps the sending time consumer so the builder records the
// effective sending time too
func (b *Builder) CustomizeBeforeSending() {
	b.properties = append(b.properties,
		message.Property{Name: message.PropertyOriginalSender, Type: b.senderID.Scheme, Value: b.senderID.Value},
		message.Property{Name: message.PropertyFinalRecipient, Type: b.receiverID.Scheme, Value: b.receiverID.Value})

	caller := b.sendingTimeConsumer
	b.sendingTimeConsumer = func(t time.Time) {
		b.sendingTime = t
		b.fillReport(func(r *report.SendingReport) { r.AS4SendingDT = t })
		if caller != nil {
			caller(t)
		}
	}
}

func (b *Builder) buildUserMessage() *message.UserMessage {
	initiator, responder := message.DefaultRole, message.DefaultRole
	if b.pmode != nil {
		if b.pmode.InitiatorRole != "" {
			initiator = b.pmode.InitiatorRole
		}
		if b.pmode.ResponderRole != "" {
			responder = b.pmode.ResponderRole
		}
	}

	from := b.senderID
	if b.senderPartyID != "" {
		from = message.NewIdentifier(PartyIDTypeAccessPoint, b.senderPartyID)
	}
	to := b.receiverID
	if b.receiverCert != nil && b.receiverCert.Subject.CommonName != "" {
		to = message.NewIdentifier(PartyIDTypeAccessPoint, b.receiverCert.Subject.CommonName)
	}

	opts := []message.Option{
		message.WithMessageID(b.messageID),
		message.WithConversationID(b.conversationID),
		message.WithFrom(from, initiator),
		message.WithTo(to, responder),
		message.WithService(b.processID),
		message.WithAction(b.docTypeID.String()),
	}
	if b.pmode != nil {
		if a := b.pmode.Agreement; a != nil {
			opts = append(opts, message.WithAgreementRef(a.Name, a.Type, b.pmode.ID))
		}
	}
	for _, p := range b.properties {
		opts = append(opts, message.WithProperty(p.Name, p.Type, p.Value))
	}
	for _, att := range b.attachments {
		part := message.PartInfo{ContentID: att.ContentID()}
		part.Properties = append(part.Properties, message.Property{Name: message.PartPropertyMimeType, Value: att.UncompressedMimeType()})
		if mode := att.Compression(); mode != nil {
			part.Properties = append(part.Properties, message.Property{Name: message.PartPropertyCompressionType, Value: mode.MimeType})
		}
		if cs := att.Charset(); cs != "" {
			part.Properties = append(part.Properties, message.Property{Name: message.PartPropertyCharacterSet, Value: cs})
		}
		opts = append(opts, message.WithPart(part))
	}
	return message.NewUserMessage(opts...)
}

// SendMessage runs the whole pipeline: FinishFields, IsEveryRequiredFieldSet,
// CustomizeBeforeSending, then dispatch. Temporary resources are released
// before it returns. The error is non-nil for raised failures (resolution,
// certificate, validation, I/O) and for transport exhaustion.
func (b *Builder) SendMessage(ctx context.Context) (result Result, err error) {
	if b.state != StateConfiguring {
		return ResultInvalidParameters, ErrNotConfiguring
	}
	start := b.now()
	log := b.logger.With(slog.String("receiver", b.receiverID.String()), slog.String("docType", b.docTypeID.String()))

	scope := resource.NewScope(b.tempDir, b.logger)
	defer func() {
		if cerr := scope.Close(); cerr != nil {
			log.Warn("failed to release temporary resources", "error", cerr)
		}
		b.state = StateTerminal
		b.fillReport(func(r *report.SendingReport) {
			r.CurrentDateTime = start
			r.SenderID = b.senderID
			r.ReceiverID = b.receiverID
			r.DocumentTypeID = b.docTypeID
			r.ProcessID = b.processID
			r.CountryC1 = b.countryC1
			r.SenderPartyID = b.senderPartyID
			r.SendingResult = result.String()
			r.SendingException = err
			r.OverallSuccess = result.IsSuccess()
			r.Duration = b.now().Sub(start)
		})
	}()

	ok, err := b.FinishFields(ctx, scope)
	if err != nil {
		return ResultInvalidParameters, err
	}
	if !ok {
		log.Error("message fields could not be completed")
		return ResultInvalidParameters, nil
	}
	if !b.IsEveryRequiredFieldSet() {
		return ResultInvalidParameters, nil
	}
	b.CustomizeBeforeSending()

	b.userMessage = b.buildUserMessage()
	log = log.With(slog.String("messageId", b.userMessage.MessageID))
	b.fillReport(func(r *report.SendingReport) {
		r.AS4MessageID = b.userMessage.MessageID
		r.AS4ConversationID = b.userMessage.ConversationID
	})

	b.state = StateDispatching
	return b.dispatch(ctx, log)
}

func (b *Builder) dispatch(ctx context.Context, log *slog.Logger) (Result, error) {
	opts := []exchange.Option{exchange.WithLogger(b.logger)}
	if b.signer != nil {
		opts = append(opts, exchange.WithSigner(b.signer))
	}
	if b.encryptor != nil {
		opts = append(opts, exchange.WithEncryptor(b.encryptor))
	}
	if b.tracker != nil {
		opts = append(opts, exchange.WithTracker(b.tracker))
	}
	ex := exchange.New(b.client, opts...)

	maxRetries, interval := b.pmode.Retry()
	if b.maxRetries != nil {
		maxRetries = *b.maxRetries
	}
	if b.retryInterval != nil {
		interval = *b.retryInterval
	}

	consumers := b.signalConsumers
	if b.signalValidation != nil {
		consumers = []exchange.SignalConsumer{exchange.NewSignalValidator(*b.signalValidation, consumers...).Consumer()}
	}

	req := &exchange.Request{
		UserMessage:         b.userMessage,
		Attachments:         b.attachments,
		URL:                 b.endpointURL,
		ReceiverCertificate: b.receiverCert,
		MaxRetries:          maxRetries,
		RetryInterval:       interval,
		SendingTimeConsumer: b.sendingTimeConsumer,
		ResponseConsumers:   b.responseConsumers,
		SignalConsumers:     consumers,
	}
	if !b.skipVerification && b.receiverCert != nil {
		req.Verifier = security.NewSignatureVerifier(b.receiverCert, b.signer != nil)
	}

	sent, err := ex.SendAndReceive(ctx, req)
	b.sent = sent
	b.reportExchange(sent, err)
	if err != nil {
		if errors.Is(err, transport.ErrTransport) {
			log.Error("transmission failed", "error", err)
			return ResultTransportError, &Error{Phase: PhaseDispatch, RetryFeasible: true, Err: err}
		}
		log.Error("message could not be dispatched", "error", err)
		return ResultInvalidParameters, fatal(PhaseDispatch, err)
	}

	return classify(log, sent), nil
}

// classify maps a completed exchange to a Result. Errors take precedence
// over a receipt in the same signal.
func classify(log *slog.Logger, sent *exchange.SentMessage) Result {
	switch {
	case sent.SignalErr != nil && errors.Is(sent.SignalErr, exchange.ErrResponseSignature):
		log.Error("signal message signature invalid", "error", sent.SignalErr)
		return ResultInvalidSignalMessage
	case sent.Signal == nil:
		log.Error("no signal message received", "status", sent.Response.StatusCode, "error", sent.SignalErr)
		return ResultNoSignalMessage
	case sent.Signal.HasErrors():
		for _, e := range sent.Signal.Errors {
			log.Error("AS4 error message received", slog.String("error", e.String()))
		}
		return ResultAS4ErrorMessage
	case sent.Signal.IsReceipt():
		log.Info("AS4 receipt received", slog.String("signalId", sent.Signal.MessageID))
		return ResultSuccess
	}
	log.Error("signal message is neither receipt nor error", slog.String("signalId", sent.Signal.MessageID))
	return ResultInvalidSignalMessage
}

func (b *Builder) reportExchange(sent *exchange.SentMessage, err error) {
	b.fillReport(func(r *report.SendingReport) {
		r.SendingSuccess = err == nil && sent != nil && sent.Response != nil
		if sent == nil {
			return
		}
		if resp := sent.Response; resp != nil {
			r.AS4ResponseStatus = resp.StatusCode
			r.AS4ResponseBody = resp.Body
		}
		if sig := sent.Signal; sig != nil {
			r.AS4ReceivedSignalMsgID = sig.MessageID
			r.AS4ResponseErrors = sig.Errors
		}
	})
}
