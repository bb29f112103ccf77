package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the stable taxonomy surfaced to clients.
type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	PermissionDenied   Kind = "permission_denied"
	InvalidArgument    Kind = "invalid_argument"
	NotFound           Kind = "not_found"
	FailedPrecondition Kind = "failed_precondition"
	Internal           Kind = "internal"
)

// Error carries a taxonomy kind, a human-readable message and optional
// field-level detail for invalid payloads.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a taxonomy error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a taxonomy error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause while keeping the kind and message stable.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithFields attaches field-level detail, used by InvalidArgument responses.
func (e *Error) WithFields(fields map[string]string) *Error {
	e.Fields = fields
	return e
}

// KindOf extracts the taxonomy kind; unclassified errors are Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// FieldsOf returns field detail if the error carries any.
func FieldsOf(err error) map[string]string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
