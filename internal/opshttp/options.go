package opshttp

import (
	"net/http"

	"github.com/keithlinneman/pasaeventos-api/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Check
	Readiness   health.Check
	// AllowPublic skips the non-public network guard; tests and local runs only.
	AllowPublic  bool
	UseRecoverMW bool
	OnPanic      func() // e.g. increment the panic counter
}
