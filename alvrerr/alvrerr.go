// Package alvrerr defines the error kinds shared by the ring, encoder,
// and bridge packages, and a small typed wrapper so callers can recover
// the kind with errors.As while pkg/errors still gives every wrap site a
// stack-annotated message for logs.
package alvrerr

import "github.com/pkg/errors"

// Kind classifies a failure the way the bridge's error handling policy
// distinguishes them: some are fatal at startup, others are transient and
// only ever logged.
type Kind string

const (
	// RingCreate: file open / resize / mmap failure at startup. Fatal.
	RingCreate Kind = "ring_create"

	// ProducerTimeout: config_set not observed within the startup window. Fatal.
	ProducerTimeout Kind = "producer_timeout"

	// EncoderInit: the hardware encoder rejected its configuration. Fatal.
	EncoderInit Kind = "encoder_init"

	// EncodeSubmit: a per-frame submission to the encoder failed. Transient.
	EncodeSubmit Kind = "encode_submit"

	// EncodeDrain: draining an encoded frame from the encoder failed. Transient.
	EncodeDrain Kind = "encode_drain"

	// MalformedBitstream: the length-prefix walk detected truncation. Transient.
	MalformedBitstream Kind = "malformed_bitstream"

	// ProtocolViolation: an unknown ring state, or an oversized frame. Logged.
	ProtocolViolation Kind = "protocol_violation"
)

// Error carries a Kind alongside the wrapped cause.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Wrap annotates err with kind and a pkg/errors stack trace. Returns nil
// if err is nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(&Error{Kind: kind, cause: err}, message)
}

// New creates a kind-tagged error with no underlying cause.
func New(kind Kind, message string) error {
	return errors.WithStack(&Error{Kind: kind, cause: errors.New(message)})
}

// Is reports whether err (or something it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
