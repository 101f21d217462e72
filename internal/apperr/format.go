package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/keithlinneman/pasaeventos-api/internal/appenv"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// DetailLimit caps detail and stack in production responses.
const DetailLimit = 300

// Body is the JSON error response.
type Body struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Detail    any    `json:"detail"`
	Stack     string `json:"stack,omitempty"`
}

type Response struct {
	Status int
	Body   Body
}

// Format renders rec for mode. Production gets a correlation id and
// truncated excerpts; everything else gets the full serialization and the
// verbatim stack.
func Format(rec Record, mode appenv.Mode) Response {
	name := rec.Name
	if name == "" {
		name = rec.Kind.String()
	}
	body := Body{Error: name, Message: rec.Message}

	if mode.IsProduction() {
		body.RequestID = rec.RequestID
		body.Detail = Truncate(rec.Detail, DetailLimit)
		if rec.Stack != "" {
			body.Stack = Truncate(rec.Stack, DetailLimit)
		}
	} else {
		body.Detail = rec.Raw
		body.Stack = rec.Stack
	}
	return Response{Status: rec.Status, Body: body}
}

// Truncate renders v as text (strings as-is, anything else JSON-encoded,
// falling back to fmt) and cuts it to n characters plus "..." when longer.
func Truncate(v any, n int) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprint(v)
		} else {
			s = string(b)
		}
	}
	r := []rune(s)
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

type fielder interface{ Fields() map[string]any }

// Serialize expands failure into a JSON-friendly map: errors become
// name/message/stack plus their Fields, maps are copied, anything else
// becomes {"message": <string form>}.
func Serialize(failure any) map[string]any {
	switch v := failure.(type) {
	case nil:
		return map[string]any{"message": "null"}
	case error:
		out := map[string]any{
			"name":    errorName(v),
			"message": v.Error(),
		}
		if st := xerrors.Stack(v); st != "" {
			out["stack"] = st
		}
		var f fielder
		if errors.As(v, &f) {
			maps.Copy(out, f.Fields())
		}
		return out
	case map[string]any:
		return maps.Clone(v)
	default:
		if m, ok := objectFields(v); ok {
			return m
		}
		return map[string]any{"message": fmt.Sprint(v)}
	}
}

// objectFields returns the JSON object form of a struct value, so struct
// failures travel like plain objects.
func objectFields(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func errorName(err error) string {
	var app *Error
	if errors.As(err, &app) && app.Name != "" {
		return app.Name
	}
	if n, ok := err.(namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", err)
}
