package sender

import (
	"crypto/x509"
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
	"github.com/sirosfoundation/go-as4sender/pkg/sbdh"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
	"github.com/sirosfoundation/go-as4sender/pkg/transport"
)

// Option configures a Builder. Setting a value that was already set logs
// the overwrite.
type Option func(*Builder)

// CertificateCheckObserver is told the raw certificate check result once
// per send, including when checking is disabled
type CertificateCheckObserver func(cert *x509.Certificate, checkTime time.Time, result security.CheckResult)

func assign[T comparable](b *Builder, field string, dst *T, v T) {
	var zero T
	if *dst != zero && *dst != v {
		b.logger.Info("overwriting previously set value", slog.String("field", field))
	}
	*dst = v
}

// assignIface is assign for interface values, which may hold uncomparable
// dynamic types
func assignIface[T any](b *Builder, field string, dst *T, v T) {
	if any(*dst) != nil {
		b.logger.Info("overwriting previously set value", slog.String("field", field))
	}
	*dst = v
}

func assignBytes(b *Builder, field string, dst *[]byte, v []byte) {
	if len(*dst) > 0 {
		b.logger.Info("overwriting previously set value", slog.String("field", field))
	}
	*dst = v
}

// WithLogger sets the logger. Apply it first so overwrite messages of later
// options use it.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSenderID sets the sending participant
func WithSenderID(id message.Identifier) Option {
	return func(b *Builder) { assign(b, "senderID", &b.senderID, id) }
}

// WithReceiverID sets the receiving participant
func WithReceiverID(id message.Identifier) Option {
	return func(b *Builder) { assign(b, "receiverID", &b.receiverID, id) }
}

// WithDocumentTypeID sets the document type; it becomes the ebMS Action
func WithDocumentTypeID(id message.Identifier) Option {
	return func(b *Builder) { assign(b, "docTypeID", &b.docTypeID, id) }
}

// WithProcessID sets the process; it becomes the ebMS Service
func WithProcessID(id message.Identifier) Option {
	return func(b *Builder) { assign(b, "processID", &b.processID, id) }
}

// WithCountryC1 sets the sender country carried in the SBDH business scope
func WithCountryC1(country string) Option {
	return func(b *Builder) { assign(b, "countryC1", &b.countryC1, country) }
}

// WithSenderPartyID sets the ebMS From party id, usually the CN of the
// sending access point certificate. Defaults to the sender id.
func WithSenderPartyID(id string) Option {
	return func(b *Builder) { assign(b, "senderPartyID", &b.senderPartyID, id) }
}

// WithMessageID fixes the AS4 message id instead of generating one
func WithMessageID(id string) Option {
	return func(b *Builder) { assign(b, "messageID", &b.messageID, id) }
}

// WithConversationID fixes the AS4 conversation id
func WithConversationID(id string) Option {
	return func(b *Builder) { assign(b, "conversationID", &b.conversationID, id) }
}

// WithProperty adds a message property
func WithProperty(name, typ, value string) Option {
	return func(b *Builder) {
		b.properties = append(b.properties, message.Property{Name: name, Type: typ, Value: value})
	}
}

// WithPMode sets the processing mode consumed for roles, agreement,
// retry and compression defaults
func WithPMode(pm *pmode.ProcessingMode) Option {
	return func(b *Builder) { assign(b, "pmode", &b.pmode, pm) }
}

// WithPayload sets the business payload element (auto-envelope only)
func WithPayload(el *etree.Element) Option {
	return func(b *Builder) {
		b.requireVariant(variantAuto, "payload")
		assign(b, "payload", &b.payloadElement, el)
	}
}

// WithPayloadBytes sets the business payload as serialized XML
// (auto-envelope only)
func WithPayloadBytes(data []byte) Option {
	return func(b *Builder) {
		b.requireVariant(variantAuto, "payloadBytes")
		assignBytes(b, "payloadBytes", &b.payloadBytes, data)
	}
}

// WithPayloadProvider sets the business payload as a stream (auto-envelope
// only)
func WithPayloadProvider(p attachment.StreamProvider) Option {
	return func(b *Builder) {
		b.requireVariant(variantAuto, "payloadProvider")
		assignIface(b, "payloadProvider", &b.payloadProvider, p)
	}
}

// WithSBDHFields overrides the derived SBDH document identification
// fields. Empty values are derived.
func WithSBDHFields(standard, typeVersion, typ, instanceID string) Option {
	return func(b *Builder) {
		assign(b, "sbdhStandard", &b.sbdhStandard, standard)
		assign(b, "sbdhTypeVersion", &b.sbdhTypeVersion, typeVersion)
		assign(b, "sbdhType", &b.sbdhType, typ)
		assign(b, "sbdhInstanceID", &b.sbdhInstanceID, instanceID)
	}
}

// WithPayloadValidator validates the payload before it is wrapped
// (auto-envelope only). When h.OnErrors is nil, errors still fail the send.
func WithPayloadValidator(v PayloadValidator, h ValidationHandler) Option {
	return func(b *Builder) {
		b.requireVariant(variantAuto, "payloadValidator")
		assignIface(b, "payloadValidator", &b.validator, v)
		if h.OnErrors == nil {
			h.OnErrors = RaisingValidationHandler().OnErrors
		}
		b.validationHandler = h
	}
}

// WithSBDHBytes sets a complete Standard Business Document (pre-built only)
func WithSBDHBytes(data []byte) Option {
	return func(b *Builder) {
		b.requireVariant(variantPrebuilt, "sbdhBytes")
		assignBytes(b, "sbdhBytes", &b.sbdhBytes, data)
	}
}

// WithSBDH sets a populated SBDH document (pre-built only). Sender,
// receiver, document type and process are taken from it.
func WithSBDH(doc *sbdh.Document) Option {
	return func(b *Builder) {
		b.requireVariant(variantPrebuilt, "sbdh")
		assign(b, "sbdh", &b.sbdhDoc, doc)
	}
}

// WithCompression compresses the payload attachment with mode
func WithCompression(mode *compression.Mode) Option {
	return func(b *Builder) {
		assign(b, "compression", &b.compression, mode)
		b.compressionSet = true
	}
}

// WithoutCompression sends the payload uncompressed
func WithoutCompression() Option {
	return func(b *Builder) {
		b.compression = nil
		b.compressionSet = true
	}
}

// WithTempDir places temporary files in dir
func WithTempDir(dir string) Option {
	return func(b *Builder) { assign(b, "tempDir", &b.tempDir, dir) }
}

// WithEndpointResolver sets the endpoint detail provider
func WithEndpointResolver(r discovery.Resolver) Option {
	return func(b *Builder) { assignIface(b, "endpointResolver", &b.resolver, r) }
}

// WithTrustChecker enables certificate checking against checker
func WithTrustChecker(c security.CertificateChecker) Option {
	return func(b *Builder) { assignIface(b, "trustChecker", &b.checker, c) }
}

// WithCertificateCheck turns certificate checking on or off. When off the
// observer receives CertNotChecked.
func WithCertificateCheck(enabled bool) Option {
	return func(b *Builder) { b.checkDisabled = !enabled }
}

// WithRevocationOverrides replaces the checker's revocation cache and mode
// settings for this send. Nil keeps the checker's own.
func WithRevocationOverrides(cache *bool, mode *security.RevocationMode) Option {
	return func(b *Builder) {
		b.cacheOverride = cache
		b.modeOverride = mode
	}
}

// WithCertificateCheckObserver registers the certificate check observer
func WithCertificateCheckObserver(o CertificateCheckObserver) Option {
	return func(b *Builder) { b.certObserver = o }
}

// WithCertificateConsumer is told the receiver certificate once it is
// accepted
func WithCertificateConsumer(fn func(*x509.Certificate)) Option {
	return func(b *Builder) { b.certConsumers = append(b.certConsumers, fn) }
}

// WithEndpointURLConsumer is told the endpoint URL. The certificate
// decision is final by then.
func WithEndpointURLConsumer(fn func(string)) Option {
	return func(b *Builder) { b.urlConsumers = append(b.urlConsumers, fn) }
}

// WithSendingTimeConsumer is told when transmission starts
func WithSendingTimeConsumer(fn func(time.Time)) Option {
	return func(b *Builder) { b.sendingTimeConsumer = fn }
}

// WithHTTPSClient sets the transport client
func WithHTTPSClient(c *transport.HTTPSClient) Option {
	return func(b *Builder) { assign(b, "httpsClient", &b.client, c) }
}

// WithSigner signs the outbound message
func WithSigner(s security.Signer) Option {
	return func(b *Builder) { assignIface(b, "signer", &b.signer, s) }
}

// WithEncryptor encrypts the outbound message with the receiver certificate
func WithEncryptor(e security.Encryptor) Option {
	return func(b *Builder) { assignIface(b, "encryptor", &b.encryptor, e) }
}

// WithResponseVerification controls whether response signatures are
// verified against the receiver certificate. On by default.
func WithResponseVerification(enabled bool) Option {
	return func(b *Builder) { b.skipVerification = !enabled }
}

// WithRetry sets the retry count and interval, overriding the P-Mode
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(b *Builder) {
		b.maxRetries = &maxRetries
		b.retryInterval = &interval
	}
}

// WithSignalConsumer receives the parsed signal message
func WithSignalConsumer(c exchange.SignalConsumer) Option {
	return func(b *Builder) { b.signalConsumers = append(b.signalConsumers, c) }
}

// WithResponseConsumer receives the raw HTTP response
func WithResponseConsumer(c exchange.ResponseConsumer) Option {
	return func(b *Builder) { b.responseConsumers = append(b.responseConsumers, c) }
}

// WithSignalValidation compares receipt references with the sent ones and
// reports through h before the signal consumers run
func WithSignalValidation(h exchange.ValidationResultHandler) Option {
	return func(b *Builder) { b.signalValidation = &h }
}

// WithTracker records reception awareness state
func WithTracker(t *reliability.Tracker) Option {
	return func(b *Builder) { assign(b, "tracker", &b.tracker, t) }
}

// WithReport fills r while sending
func WithReport(r *report.SendingReport) Option {
	return func(b *Builder) { assign(b, "report", &b.report, r) }
}
