package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sirosfoundation/go-as4sender/pkg/message"
	"github.com/sirosfoundation/go-as4sender/pkg/security"
)

// ValidationResultHandler receives the outcome of comparing sent and
// received signature references. Nil callbacks are skipped.
type ValidationResultHandler struct {
	// OnNotApplicable is called once when either side has no references
	OnNotApplicable func()
	// OnError is called once per mismatch
	OnError func(reason string)
	// OnSuccess is called when every sent reference matched exactly once
	OnSuccess func()
}

// LoggingResultHandler reports every outcome to logger
func LoggingResultHandler(logger *slog.Logger) ValidationResultHandler {
	return ValidationResultHandler{
		OnNotApplicable: func() { logger.Info("receipt reference validation not applicable") },
		OnError:         func(reason string) { logger.Warn("receipt reference mismatch", "reason", reason) },
		OnSuccess:       func() { logger.Info("receipt references match the sent message") },
	}
}

// SignalValidator checks that a non-repudiation receipt echoes the
// references of the signature that was sent, then hands the signal on.
// Findings never abort the exchange.
type SignalValidator struct {
	handler ValidationResultHandler
	next    []SignalConsumer
}

// NewSignalValidator creates a validator that calls next after comparing
func NewSignalValidator(handler ValidationResultHandler, next ...SignalConsumer) *SignalValidator {
	return &SignalValidator{handler: handler, next: next}
}

// Consumer returns the validator as a SignalConsumer
func (v *SignalValidator) Consumer() SignalConsumer {
	return v.Handle
}

// Handle implements SignalConsumer
func (v *SignalValidator) Handle(ctx context.Context, sent *SentMessage, signal *message.SignalMessage) {
	var received []security.Reference
	if signal != nil && signal.Receipt != nil {
		received = security.ExtractReferences(signal.Receipt.Element)
	}
	Compare(sent.SentReferences, received, v.handler)

	for _, consume := range v.next {
		consume(ctx, sent, signal)
	}
}

// Compare reports how received matches sent through handler
func Compare(sent, received []security.Reference, handler ValidationResultHandler) {
	if len(sent) == 0 || len(received) == 0 {
		if handler.OnNotApplicable != nil {
			handler.OnNotApplicable()
		}
		return
	}

	onError := func(reason string) {
		if handler.OnError != nil {
			handler.OnError(reason)
		}
	}

	ok := true
	if len(sent) != len(received) {
		ok = false
		onError(fmt.Sprintf("sent %d references but receipt contains %d", len(sent), len(received)))
	}
	for _, r := range received {
		if countMatches(sent, r, true) == 0 {
			ok = false
			onError(fmt.Sprintf("received reference %q has no matching sent reference", r.URI))
		}
	}
	for _, s := range sent {
		if n := countMatches(received, s, false); n != 1 {
			ok = false
			if n > 1 {
				onError(fmt.Sprintf("sent reference %q matched %d times", s.URI, n))
			}
		}
	}

	if ok && handler.OnSuccess != nil {
		handler.OnSuccess()
	}
}

// countMatches counts the refs equivalent to target. refsAreSent tells
// which side of the comparison refs belong to.
func countMatches(refs []security.Reference, target security.Reference, refsAreSent bool) int {
	n := 0
	for _, r := range refs {
		sent, received := r, target
		if !refsAreSent {
			sent, received = target, r
		}
		if security.AreSemanticallyEquivalent(sent, received) {
			n++
		}
	}
	return n
}
