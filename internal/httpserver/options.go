package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/pasaeventos-api/internal/appenv"
	"github.com/keithlinneman/pasaeventos-api/internal/apperr"
	"github.com/keithlinneman/pasaeventos-api/internal/httpmw"
	"github.com/keithlinneman/pasaeventos-api/internal/log"
)

// RouteRegistrar attaches a group of routes to the main router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// RouteFunc adapts a function into a RouteRegistrar.
type RouteFunc func(r chi.Router)

func (f RouteFunc) RegisterRoutes(r chi.Router) { f(r) }

type Options struct {
	Logger log.Logger
	Port   int
	Mode   appenv.Mode

	// Responder writes every error response (404/405, panics, CORS and
	// body-size rejections). A default for Mode is used when nil.
	Responder *apperr.Responder

	MetricsMW   func(http.Handler) http.Handler
	RateLimitMW func(http.Handler) http.Handler

	// CORS is skipped entirely when nil.
	CORS         *httpmw.CORSOptions
	ClientIPOpts httpmw.ClientIPOptions
	MaxBodyBytes int64

	UseRecoverMW bool
	OnPanic      func()

	// HSTS is only worth sending when the API is reached over TLS.
	HSTS bool

	Routes []RouteRegistrar
}
