package digits

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindDecode Kind = iota + 1
	KindImageFormat
	KindInference
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindImageFormat:
		return "image_format"
	case KindInference:
		return "inference"
	default:
		return "unknown"
	}
}

// Code is the stable identifier used in error responses.
func (k Kind) Code() string {
	return k.String() + "_error"
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String() + " error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so callers can test against the
// sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

var (
	ErrDecode      = &Error{Kind: KindDecode}
	ErrImageFormat = &Error{Kind: KindImageFormat}
	ErrInference   = &Error{Kind: KindInference}
)

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf reports the kind of a pipeline error, or 0 if err did not come from
// the pipeline.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRuntimeFailure reports whether err came from the model runtime itself
// rather than from validating its output.
func IsRuntimeFailure(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindInference && e.Cause != nil
}
