// Package apperr defines the closed set of client-visible error kinds
// from spec.md §7 and a Kind error wrapping them for use with errors.As.
package apperr

// Kind is one of the reason values allowed to reach a client in
// answer_rejected/recovery_failed/error payloads.
type Kind string

const (
	InvalidSchema        Kind = "INVALID_SCHEMA"
	InvalidRequest       Kind = "INVALID_REQUEST"
	SessionNotFound      Kind = "SESSION_NOT_FOUND"
	SessionEnded         Kind = "SESSION_ENDED"
	InvalidState         Kind = "INVALID_STATE"
	QuestionNotActive    Kind = "QUESTION_NOT_ACTIVE"
	InvalidQuestion      Kind = "INVALID_QUESTION"
	TimeExpired          Kind = "TIME_EXPIRED"
	AlreadySubmitted     Kind = "ALREADY_SUBMITTED"
	ParticipantNotFound  Kind = "PARTICIPANT_NOT_FOUND"
	ParticipantNotActive Kind = "PARTICIPANT_NOT_ACTIVE"
	ParticipantEliminated Kind = "PARTICIPANT_ELIMINATED"
	ParticipantBanned    Kind = "PARTICIPANT_BANNED"
	InternalError        Kind = "INTERNAL_ERROR"
)

// Error pairs a Kind with a human-readable message, the shape every
// subsystem in the core returns instead of letting a raw error escape
// into the event pipeline (spec.md §7 propagation policy).
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind to an underlying error, collapsing store failures
// to a fail-closed kind per spec.md §7 ("store errors inside validation
// collapse to SESSION_NOT_FOUND").
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// As extracts the Kind carried by err, defaulting to INTERNAL_ERROR for
// any error that didn't originate from this package.
func As(err error) (Kind, string) {
	var ae *Error
	if err == nil {
		return "", ""
	}
	if e, ok := err.(*Error); ok {
		ae = e
	}
	if ae == nil {
		return InternalError, err.Error()
	}
	return ae.Kind, ae.Message
}
