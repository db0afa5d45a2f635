// Package security sets response headers for the JSON API and resolves
// client addresses.
package security

import (
	"net/http"
	"strings"
)

type HeadersConfig struct {
	AllowOrigin  string
	AllowHeaders []string
	AllowMethods []string

	XContentTypeOptions string
	XFrameOptions       string
	ReferrerPolicy      string
	CSP                 string
}

// DefaultHeadersConfig allows any origin to call the API with a bearer token.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		AllowOrigin:         "*",
		AllowHeaders:        []string{"Authorization", "Content-Type"},
		AllowMethods:        []string{http.MethodGet, http.MethodOptions},
		XContentTypeOptions: "nosniff",
		XFrameOptions:       "DENY",
		ReferrerPolicy:      "no-referrer",
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
	}
}

type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

// Middleware applies the headers before the handler runs so that every
// response, errors included, carries them.
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w)
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter) {
	headers := w.Header()
	set := func(name, value string) {
		if value != "" {
			headers.Set(name, value)
		}
	}

	set("Access-Control-Allow-Origin", h.config.AllowOrigin)
	set("Access-Control-Allow-Headers", strings.Join(h.config.AllowHeaders, ", "))
	set("Access-Control-Allow-Methods", strings.Join(h.config.AllowMethods, ", "))

	set("X-Content-Type-Options", h.config.XContentTypeOptions)
	set("X-Frame-Options", h.config.XFrameOptions)
	set("Referrer-Policy", h.config.ReferrerPolicy)
	set("Content-Security-Policy", h.config.CSP)
}
