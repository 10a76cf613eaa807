// Package errs implements the error taxonomy of spec.md §7:
// InvalidEvent, TransportError (tagged by transport kind), Timeout and
// ValidationError. Every error here is comparable with errors.As so
// callers can branch on the taxonomy rather than string-matching.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// TransportKind discriminates which transport a TransportError came from,
// so callers can choose a fallback (spec.md §7).
type TransportKind string

const (
	Nostr TransportKind = "nostr"
	BT    TransportKind = "bt"
	Core  TransportKind = "core"
)

// InvalidEvent reports a malformed event: bad JSON, missing required
// fields, or (when verification was requested) a signature mismatch.
// Never retried by callers.
type InvalidEvent struct {
	Reason string
	Err    error
}

func (e *InvalidEvent) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid event: %s", e.Reason)
}

func (e *InvalidEvent) Unwrap() error { return e.Err }

func NewInvalidEvent(reason string, err error) *InvalidEvent {
	return &InvalidEvent{Reason: reason, Err: err}
}

// TransportError reports a relay, swarm, or DHT failure.
type TransportError struct {
	Kind TransportKind
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transport error during %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s transport error during %s", e.Kind, e.Op)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(kind TransportKind, op string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Err: err}
}

// Timeout reports a deadline exceeded on a blocking operation. It is
// treated as a TransportError for retry-policy purposes (spec.md §7) via
// AsTransport.
type Timeout struct {
	Deadline time.Duration
	Op       string
}

func (e *Timeout) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Deadline)
}

func NewTimeout(op string, deadline time.Duration) *Timeout {
	return &Timeout{Deadline: deadline, Op: op}
}

// AsTransport folds a Timeout into a TransportError of the given kind so
// retry policies only need to branch on one type.
func AsTransport(kind TransportKind, op string, err error) *TransportError {
	var t *Timeout
	if errors.As(err, &t) {
		return &TransportError{Kind: kind, Op: op, Err: t}
	}
	return &TransportError{Kind: kind, Op: op, Err: err}
}

// ValidationError reports a store- or policy-level rejection (e.g. a
// pubkey not on the relay's allow-list). Surfaced as a negative ACK.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("blocked: %s", e.Reason) }

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}
