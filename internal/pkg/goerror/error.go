package goerror

import (
	"errors"
	"fmt"
)

// Kind classifies errors by the pipeline stage that produced them.
type Kind int

const (
	// KindInternal represents an unclassified failure.
	KindInternal Kind = iota
	// KindValidation represents an invalid recipient record or input.
	KindValidation
	// KindDecode indicates template bytes that are not a readable image.
	KindDecode
	// KindRender indicates an overlay, substitution or export failure.
	KindRender
	// KindCleanup indicates a failed deletion of a remote template clone.
	KindCleanup
	// KindPackaging indicates a failed artifact to document conversion.
	KindPackaging
	// KindDelivery indicates a rejected or failed email delivery.
	KindDelivery
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ERROR_KIND_VALIDATION"
	case KindDecode:
		return "ERROR_KIND_DECODE"
	case KindRender:
		return "ERROR_KIND_RENDER"
	case KindCleanup:
		return "ERROR_KIND_CLEANUP"
	case KindPackaging:
		return "ERROR_KIND_PACKAGING"
	case KindDelivery:
		return "ERROR_KIND_DELIVERY"
	case KindInternal:
		return "ERROR_KIND_INTERNAL"
	default:
		return "ERROR_KIND_INTERNAL"
	}
}

// Error is a structured error used across the application.
//
// It wraps an underlying error while also carrying a human readable message
// and the kind of failure, so callers can branch with errors.As.
type Error struct {
	err    error
	msg    string
	kind   Kind
	fields map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return e.msg + ": " + e.err.Error()
	case e.msg != "":
		return e.msg
	case e.err != nil:
		return e.err.Error()
	}

	return "Unknown error"
}

// String returns a verbose representation of the error for debugging/logging.
func (e *Error) String() string {
	return fmt.Sprintf("Error Kind: %s, Message: %s, Underlying Error: %v", e.kind.String(), e.msg, e.err)
}

// Msg returns the message, if set.
func (e *Error) Msg() string {
	return e.msg
}

// Kind returns the error kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// Fields returns validation errors (field to message map), if any.
func (e *Error) Fields() map[string]string {
	return e.fields
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.err == nil && t.msg == "" && t.kind == e.kind
}

func new(err error, msg string, kind Kind) error {
	return &Error{err: err, msg: msg, kind: kind}
}

// Sentinels usable with errors.Is to test only the kind of an error.
var (
	ErrDecode     error = &Error{kind: KindDecode}
	ErrRender     error = &Error{kind: KindRender}
	ErrCleanup    error = &Error{kind: KindCleanup}
	ErrPackaging  error = &Error{kind: KindPackaging}
	ErrDelivery   error = &Error{kind: KindDelivery}
	ErrValidation error = &Error{kind: KindValidation}
)

// NewDecode creates a decode error for unreadable template bytes.
func NewDecode(err error) error {
	return new(err, "decode template", KindDecode)
}

// NewRender creates a render error with the failing step.
func NewRender(step string, err error) error {
	return new(err, step, KindRender)
}

// NewCleanup creates a cleanup error for a clone that could not be deleted.
func NewCleanup(err error) error {
	return new(err, "delete template clone", KindCleanup)
}

// NewPackaging creates a packaging error.
func NewPackaging(err error) error {
	return new(err, "package document", KindPackaging)
}

// NewDelivery creates a delivery error.
func NewDelivery(err error) error {
	return new(err, "deliver email", KindDelivery)
}

// NewInvalidInput creates a validation error, either wrapping err or built
// from field/message pairs.
func NewInvalidInput(err error, kv ...string) error {
	if err != nil {
		return new(err, "validation error", KindValidation)
	}

	e := &Error{msg: "validation error", kind: KindValidation, fields: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		e.fields[kv[i]] = kv[i+1]
	}

	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindInternal
}
