// Package apperr classifies arbitrary failure values into an HTTP error
// response. Every failure that reaches the HTTP layer (handler errors,
// recovered panics, CORS and rate-limit rejections, unmatched routes) goes
// through [Classify] then [Format], usually via a [Responder].
package apperr

import (
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// Kind discriminates error records for responses, logs and metrics.
type Kind int

const (
	KindUnhandled Kind = iota
	KindOperational
	KindCorsRejected
	KindCsrfRejected
	KindRateLimited
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindOperational:
		return "Operational"
	case KindCorsRejected:
		return "CorsRejected"
	case KindCsrfRejected:
		return "CsrfRejected"
	case KindRateLimited:
		return "RateLimited"
	case KindNotFound:
		return "NotFound"
	default:
		return "Unhandled"
	}
}

// Error is an application error: a deliberate status plus a message that
// is safe to show callers when Operational is set.
type Error struct {
	Name        string
	Message     string
	Status      int
	Operational bool

	kind  Kind
	pcs   []uintptr
	cause error
}

func (e *Error) Error() string       { return e.Message }
func (e *Error) Unwrap() error       { return e.cause }
func (e *Error) StackPCs() []uintptr { return e.pcs }
func (e *Error) HTTPStatus() int     { return e.Status }

// Fields are merged into the serialized form of the error.
func (e *Error) Fields() map[string]any {
	return map[string]any{"status": e.Status, "operational": e.Operational}
}

func newError(status int, msg string, operational bool, kind Kind) *Error {
	// skip newError and the exported constructor
	return &Error{
		Message:     msg,
		Status:      status,
		Operational: operational,
		kind:        kind,
		pcs:         xerrors.Callers(2),
	}
}

// New returns an operational error whose message is shown to callers.
func New(status int, msg string) *Error {
	return newError(status, msg, true, KindOperational)
}

// NewInternal returns a non-operational error; callers only ever see the
// generic message.
func NewInternal(status int, msg string) *Error {
	return newError(status, msg, false, KindUnhandled)
}

// Wrap attaches status and a public message to err.
func Wrap(err error, status int, msg string) *Error {
	e := newError(status, msg, true, KindOperational)
	e.cause = err
	return e
}

// NotFound is the error for an unmatched route.
func NotFound(path string) *Error {
	e := newError(404, "Route not found: "+path, true, KindNotFound)
	e.Name = "NotFound"
	return e
}

const corsMessage = "Not allowed by CORS"

// OriginError rejects a request whose Origin is not on the allow-list.
type OriginError struct {
	Origin string
}

func (e *OriginError) Error() string { return corsMessage }

// Fields exposes the rejected origin in the serialized form.
func (e *OriginError) Fields() map[string]any {
	return map[string]any{"origin": e.Origin}
}

// CodeBadCSRFToken marks anti-forgery token failures.
const CodeBadCSRFToken = "EBADCSRFTOKEN"

// CSRFError rejects a request whose anti-forgery token did not verify.
type CSRFError struct {
	Reason string
}

func (e *CSRFError) Error() string {
	if e.Reason == "" {
		return "invalid csrf token"
	}
	return "invalid csrf token: " + e.Reason
}

func (e *CSRFError) Code() string { return CodeBadCSRFToken }
