package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keithlinneman/pasaeventos-api/internal/appenv"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
	"github.com/keithlinneman/pasaeventos-api/internal/reqid"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

const (
	msgUnexpected  = "Unexpected server error"
	msgCorsPolicy  = "Request not allowed by CORS policy."
	msgRateLimited = "Too many requests. Please try again later."
)

// Record is the normalized form of one failure.
type Record struct {
	Kind        Kind
	Status      int
	Message     string // public message
	Operational bool

	// Name is the failure's own name, "" when it has none.
	Name string
	// Detail is the failure's message text, "" when it has none.
	Detail    string
	Stack     string
	Raw       map[string]any
	RequestID string
}

// shape is a failure value decoded into the variants the classifier
// understands. Decoding is total: anything unrecognized is opaque.
type shape struct {
	app     *Error
	name    string
	message string
	code    string
	status  int
	stack   string
}

type (
	namer    interface{ Name() string }
	coder    interface{ Code() string }
	statuser interface{ HTTPStatus() int }
)

func decode(failure any) shape {
	switch v := failure.(type) {
	case nil:
		return shape{}
	case error:
		return decodeError(v)
	case map[string]any:
		return decodeMap(v)
	default:
		if m, ok := objectFields(v); ok {
			return decodeMap(m)
		}
		return shape{}
	}
}

func decodeError(err error) shape {
	s := shape{message: err.Error(), stack: xerrors.Stack(err)}

	var app *Error
	if errors.As(err, &app) {
		s.app = app
		s.name = app.Name
		s.status = app.Status
	}
	if n, ok := err.(namer); ok && s.name == "" {
		s.name = n.Name()
	}
	var c coder
	if errors.As(err, &c) {
		s.code = c.Code()
	}
	var st statuser
	if s.status == 0 && errors.As(err, &st) {
		s.status = st.HTTPStatus()
	}
	return s
}

func decodeMap(m map[string]any) shape {
	var s shape
	s.message, _ = m["message"].(string)
	s.name, _ = m["name"].(string)
	s.code, _ = m["code"].(string)
	s.stack, _ = m["stack"].(string)
	s.status = asInt(m["status"])
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == float64(int(n)) {
			return int(n)
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return 0
}

// Classify normalizes failure and logs it through the request-scoped logger.
func Classify(ctx context.Context, failure any, mode appenv.Mode) Record {
	return classify(ctx, log.FromContext(ctx), failure, mode)
}

func classify(ctx context.Context, L log.Logger, failure any, mode appenv.Mode) Record {
	s := decode(failure)
	rec := Record{
		Kind:    KindUnhandled,
		Status:  500,
		Message: msgUnexpected,
		Name:    s.name,
		Detail:  s.message,
		Stack:   s.stack,
		Raw:     Serialize(failure),
	}

	if s.app != nil {
		rec.Kind = s.app.kind
		rec.Operational = s.app.Operational
		if s.app.Status != 0 {
			rec.Status = s.app.Status
		}
		if s.app.Operational {
			rec.Message = s.app.Message
		}
	}

	switch {
	case s.message == corsMessage:
		rec.Kind, rec.Status, rec.Message = KindCorsRejected, 403, msgCorsPolicy
	case s.code == CodeBadCSRFToken:
		rec.Kind, rec.Status, rec.Message = KindCsrfRejected, 403, msgCorsPolicy
	case s.status == 429:
		rec.Kind, rec.Status, rec.Message = KindRateLimited, 429, msgRateLimited
	}

	kv := []any{
		"kind", rec.Kind.String(),
		"status", rec.Status,
		"operational", rec.Operational,
	}
	if mode.IsProduction() {
		rec.RequestID = reqid.FromContext(ctx)
		kv = append(kv, "request_id", rec.RequestID)
	}
	if L == nil {
		L = log.Nop()
	}
	if rec.Operational {
		L.Warn(ctx, "handled error", append(kv, "err", rec.Detail)...)
	} else {
		L.Error(ctx, asError(failure), "unhandled error", kv...)
	}
	return rec
}

func asError(failure any) error {
	if err, ok := failure.(error); ok {
		return err
	}
	return fmt.Errorf("non-error failure: %v", failure)
}
