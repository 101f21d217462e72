// Package probe turns a single dependency "ping" into a Result. A probe
// never fails outward: errors and panics raised by the ping are folded into
// the Result's detail.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Result is the outcome of one probe invocation. Detail is set exactly when
// OK is false.
type Result struct {
	OK     bool
	Detail string
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.OK {
		return []byte(`{"ok":true}`), nil
	}
	return json.Marshal(struct {
		OK     bool   `json:"ok"`
		Detail string `json:"detail"`
	}{false, r.Detail})
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var v struct {
		OK     bool   `json:"ok"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	r.OK = v.OK
	r.Detail = ""
	if !v.OK {
		r.Detail = v.Detail
	}
	return nil
}

// Pinger checks reachability of one dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function into a Pinger.
type PingFunc func(context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

const notConfigured = "probe not configured"

// Run invokes p once and converts whatever it does into a Result.
func Run(ctx context.Context, p Pinger) (res Result) {
	if p == nil {
		return Result{Detail: notConfigured}
	}
	defer func() {
		if v := recover(); v != nil {
			res = Result{Detail: Detail(v)}
		}
	}()
	if err := p.Ping(ctx); err != nil {
		return Result{Detail: Detail(err)}
	}
	return Result{OK: true}
}

// Detail derives the failure text for v: an error contributes its message,
// anything else its default string form (false -> "false").
func Detail(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}

// WithTimeout bounds each ping of p by d. d <= 0 returns p unchanged.
func WithTimeout(p Pinger, d time.Duration) Pinger {
	if p == nil || d <= 0 {
		return p
	}
	return PingFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return p.Ping(ctx)
	})
}
