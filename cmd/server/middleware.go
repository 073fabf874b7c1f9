package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/brunobiangulo/goontology/metrics"
)

// routeUnmatched labels requests no registered pattern matches.
const routeUnmatched = "unmatched"

// logMiddleware logs each request with method, path, status, and duration,
// and counts it per registered route pattern of mux. Counting by pattern
// keeps the metric's label set fixed whatever paths clients send.
func logMiddleware(reg *metrics.Registry, mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := routeUnmatched
		if _, pattern := mux.Handler(r); pattern != "" {
			route = pattern
		}
		reg.ObserveRequest(route, rw.status)
		slog.Info("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rw.status,
			"request_id", rw.Header().Get("X-Request-ID"),
			"duration", time.Since(start).Round(time.Millisecond),
			"remote", r.RemoteAddr,
		)
	})
}

type ctxKey int

const ontologyRequestKey ctxKey = iota

// tokenMiddleware guards POST /ontology with a single-use token. It parses
// the request body once and hands the parsed request to the handler through
// the context.
func tokenMiddleware(tokens *tokenStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ontology" {
			next.ServeHTTP(w, r)
			return
		}

		req, err := parseOntologyRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !tokens.Consume(req.Token) {
			slog.Warn("server: rejected request token", "remote", r.RemoteAddr, "present", req.Token != "")
			writeError(w, http.StatusForbidden, "missing, expired or already used token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ontologyRequestKey, req)))
	})
}

// recoveryMiddleware catches panics, logs the stack trace, and returns 500.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("server: panic recovered",
					"error", fmt.Sprintf("%v", err),
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers. Origins is a comma-separated list of
// allowed origins. If empty, CORS headers are not set.
func corsMiddleware(origins string, next http.Handler) http.Handler {
	if origins == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+headerToken)
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
