package sender

import (
	"errors"
	"fmt"
	"strings"
)

// Result is the outcome kind of SendMessage
type Result int

const (
	// ResultInvalidParameters means a required value was missing or could
	// not be resolved before sending
	ResultInvalidParameters Result = iota
	// ResultTransportError means every transmission attempt failed
	ResultTransportError
	// ResultNoSignalMessage means the response carried no usable signal
	ResultNoSignalMessage
	// ResultAS4ErrorMessage means the receiver answered with an ebMS error
	ResultAS4ErrorMessage
	// ResultInvalidSignalMessage means the signal was neither receipt nor
	// error, or its signature did not verify
	ResultInvalidSignalMessage
	// ResultSuccess means a receipt without errors was received
	ResultSuccess
)

var resultNames = map[Result]string{
	ResultInvalidParameters:    "INVALID_PARAMETERS",
	ResultTransportError:       "TRANSPORT_ERROR",
	ResultNoSignalMessage:      "NO_SIGNAL_MESSAGE_RECEIVED",
	ResultAS4ErrorMessage:      "AS4_ERROR_MESSAGE_RECEIVED",
	ResultInvalidSignalMessage: "INVALID_SIGNAL_MESSAGE_RECEIVED",
	ResultSuccess:              "SUCCESS",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// RetryFeasible reports whether sending the same message again may succeed
// without changing the input
func (r Result) RetryFeasible() bool {
	switch r {
	case ResultTransportError, ResultNoSignalMessage, ResultInvalidSignalMessage:
		return true
	}
	return false
}

// IsSuccess reports whether r is ResultSuccess
func (r Result) IsSuccess() bool { return r == ResultSuccess }

// Pipeline phases named in errors
const (
	PhasePayload  = "payload"
	PhaseResolve  = "resolve"
	PhaseCertify  = "certificate"
	PhaseAssemble = "assemble"
	PhaseDispatch = "dispatch"
)

var (
	// ErrNotConfiguring is returned when a builder is used after SendMessage
	ErrNotConfiguring = errors.New("builder already used")
	// ErrEnvelopePayload is returned when the auto-envelope builder is given
	// a payload that is itself a Standard Business Document
	ErrEnvelopePayload = errors.New("payload is already an SBDH envelope")
	// ErrWrongVariant is returned when a payload option does not belong to
	// the builder variant
	ErrWrongVariant = errors.New("option not supported by this builder variant")
)

// Error is a failure raised by a pipeline phase. RetryFeasible is false for
// resolution and certificate failures regardless of the outer Result.
type Error struct {
	Phase         string
	RetryFeasible bool
	Err           error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fatal(phase string, err error) *Error {
	return &Error{Phase: phase, Err: err}
}

// IsRetryFeasible reports whether err leaves room for a retry. Errors not
// produced by this package are treated as retry feasible.
func IsRetryFeasible(err error) bool {
	if err == nil {
		return false
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.RetryFeasible
	}
	return true
}

// ValidationLevel grades a payload validation finding
type ValidationLevel int

const (
	LevelInfo ValidationLevel = iota
	LevelWarning
	LevelError
)

func (l ValidationLevel) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("ValidationLevel(%d)", int(l))
}

// ValidationResult is one finding of a PayloadValidator
type ValidationResult struct {
	Level    ValidationLevel
	Location string
	Text     string
}

func (r ValidationResult) String() string {
	if r.Location == "" {
		return r.Level.String() + ": " + r.Text
	}
	return r.Level.String() + " at " + r.Location + ": " + r.Text
}

// ValidationError carries the full result list of a failed payload
// validation. It is never retry feasible.
type ValidationError struct {
	Results []ValidationResult
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, r := range e.Results {
		if r.Level == LevelError {
			msgs = append(msgs, r.String())
		}
	}
	return fmt.Sprintf("payload validation failed with %d error(s): %s", len(msgs), strings.Join(msgs, "; "))
}

func hasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == LevelError {
			return true
		}
	}
	return false
}
