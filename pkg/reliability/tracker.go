package reliability

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotTracked is returned for message ids the tracker never saw
var ErrNotTracked = errors.New("message not tracked")

// MessageState is the reception-awareness state of a sent user message
type MessageState int

const (
	StateSubmitted       MessageState = iota // tracked, not yet sent
	StateSending                             // an attempt is in flight
	StateAwaitingReceipt                     // a response arrived, signal pending
	StateReceipted                           // a receipt referenced the message
	StateErrored                             // an error signal referenced the message
	StateFailed                              // no usable response after all attempts
)

func (s MessageState) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StateSending:
		return "sending"
	case StateAwaitingReceipt:
		return "awaiting-receipt"
	case StateReceipted:
		return "receipted"
	case StateErrored:
		return "errored"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("MessageState(%d)", int(s))
	}
}

// TrackedMessage is a snapshot of one tracked message
type TrackedMessage struct {
	MessageID     string
	State         MessageState
	SubmittedAt   time.Time
	LastAttemptAt time.Time
	AttemptCount  int
	SignalID      string
	Errors        []string
}

// Tracker correlates sent user messages with the signals that reference
// them and detects signals seen before within a window. It is safe for
// concurrent use and starts no goroutines; expired entries are pruned on
// write.
type Tracker struct {
	mu       sync.Mutex
	messages map[string]*TrackedMessage
	signals  map[string]time.Time
	window   time.Duration
	now      func() time.Time
}

// NewTracker creates a tracker keeping entries for window
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		messages: make(map[string]*TrackedMessage),
		signals:  make(map[string]time.Time),
		window:   window,
		now:      time.Now,
	}
}

// Track starts tracking messageID
func (t *Tracker) Track(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	t.messages[messageID] = &TrackedMessage{
		MessageID:   messageID,
		State:       StateSubmitted,
		SubmittedAt: t.now(),
	}
}

func (t *Tracker) update(messageID string, fn func(*TrackedMessage)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg, ok := t.messages[messageID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, messageID)
	}
	fn(msg)
	return nil
}

// MarkSending records the start of an attempt
func (t *Tracker) MarkSending(messageID string) error {
	return t.update(messageID, func(m *TrackedMessage) {
		m.State = StateSending
		m.LastAttemptAt = t.now()
		m.AttemptCount++
	})
}

// MarkAwaitingReceipt records that a response arrived
func (t *Tracker) MarkAwaitingReceipt(messageID string) error {
	return t.update(messageID, func(m *TrackedMessage) { m.State = StateAwaitingReceipt })
}

// MarkFailed records that no usable response was obtained
func (t *Tracker) MarkFailed(messageID string, cause error) error {
	return t.update(messageID, func(m *TrackedMessage) {
		m.State = StateFailed
		if cause != nil {
			m.Errors = append(m.Errors, cause.Error())
		}
	})
}

// RecordSignal correlates a signal with the message it references. A
// receipt moves the message to StateReceipted, errors to StateErrored.
func (t *Tracker) RecordSignal(refToMessageID, signalID string, receipt bool, errs []string) error {
	return t.update(refToMessageID, func(m *TrackedMessage) {
		m.SignalID = signalID
		m.Errors = append(m.Errors, errs...)
		switch {
		case len(errs) > 0:
			m.State = StateErrored
		case receipt:
			m.State = StateReceipted
		}
	})
}

// Get returns a copy of the tracked message
func (t *Tracker) Get(messageID string) (TrackedMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg, ok := t.messages[messageID]
	if !ok {
		return TrackedMessage{}, false
	}
	cp := *msg
	cp.Errors = append([]string(nil), msg.Errors...)
	return cp, true
}

// SeenSignal reports whether signalID was seen within the window and
// records it otherwise
func (t *Tracker) SeenSignal(signalID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune()
	if at, ok := t.signals[signalID]; ok && t.now().Sub(at) < t.window {
		return true
	}
	t.signals[signalID] = t.now()
	return false
}

// prune drops entries older than the window; callers hold mu
func (t *Tracker) prune() {
	cutoff := t.now().Add(-t.window)
	for id, at := range t.signals {
		if at.Before(cutoff) {
			delete(t.signals, id)
		}
	}
	for id, m := range t.messages {
		if m.SubmittedAt.Before(cutoff) {
			delete(t.messages, id)
		}
	}
}
