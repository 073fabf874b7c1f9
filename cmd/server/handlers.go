package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/goontology"
	"github.com/brunobiangulo/goontology/export"
	"github.com/brunobiangulo/goontology/metrics"
	"github.com/brunobiangulo/goontology/service"
)

const (
	headerToken     = "X-Ontology-Token"
	headerRequestID = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

type handler struct {
	svc     *service.Service
	tokens  *tokenStore
	metrics *metrics.Registry
	timeout time.Duration
}

func newHandler(svc *service.Service, tokens *tokenStore, reg *metrics.Registry, timeout time.Duration) *handler {
	return &handler{svc: svc, tokens: tokens, metrics: reg, timeout: timeout}
}

// ontologyRequest is the parsed body of POST /ontology.
type ontologyRequest struct {
	Domain  string `json:"domain"`
	Token   string `json:"token"`
	Refresh bool   `json:"refresh"`
	Format  string `json:"format"`
	Connect *bool  `json:"connect"`
	Details *bool  `json:"details"`
	NumCtx  int    `json:"num_ctx"`
}

// parseOntologyRequest accepts a JSON body or a URL-encoded/multipart form.
// The token may also come from the X-Ontology-Token header.
func parseOntologyRequest(r *http.Request) (*ontologyRequest, error) {
	var req ontologyRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return nil, errors.New("invalid JSON")
			}
		}
	} else {
		if ct == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
				return nil, errors.New("invalid form")
			}
		} else if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form")
		}
		req.Domain = r.FormValue("domain")
		req.Token = r.FormValue("token")
		req.Refresh = formBool(r.FormValue("refresh"))
		req.Format = r.FormValue("format")
		req.Connect = optionalBool(r.FormValue("connect"))
		req.Details = optionalBool(r.FormValue("details"))
		if v := r.FormValue("num_ctx"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, errors.New("num_ctx must be a non-negative integer")
			}
			req.NumCtx = n
		}
	}

	if req.Token == "" {
		req.Token = r.Header.Get(headerToken)
	}
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if req.Format == "" {
		req.Format = export.FormatJSON
	}
	if req.Format != export.FormatJSON && req.Format != export.FormatXLSX {
		return nil, fmt.Errorf("unsupported format %q", req.Format)
	}
	return &req, nil
}

// formBool treats checkbox values ("on") and the usual true strings as true.
func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func optionalBool(v string) *bool {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	b := formBool(v)
	return &b
}

// GET /token
func (h *handler) handleToken(w http.ResponseWriter, r *http.Request) {
	h.metrics.ObserveToken()
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]string{"token": h.tokens.Issue()})
}

// POST /ontology
func (h *handler) handleOntology(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ontologyRequestKey).(*ontologyRequest)
	if !ok {
		// Only reachable when the route is mounted without tokenMiddleware.
		writeError(w, http.StatusForbidden, "missing token")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out, err := h.svc.Generate(ctx, service.Request{
		Domain:  req.Domain,
		Connect: req.Connect,
		Details: req.Details,
		NumCtx:  req.NumCtx,
		Refresh: req.Refresh,
	})
	if err != nil {
		body := service.ErrorBody(err)
		slog.Warn("server: generation failed", "domain", req.Domain, "kind", body.Kind, "error", err)
		writeJSON(w, statusFor(body.Kind), body)
		return
	}

	w.Header().Set(headerRequestID, out.RequestID)
	w.Header().Set("X-Cache", cacheHeader(out.Cached))
	if len(out.Warnings) > 0 {
		w.Header().Set("X-Ontology-Warnings", strconv.Itoa(len(out.Warnings)))
	}

	if req.Format == export.FormatXLSX {
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, out.Ontology); err != nil {
			slog.Error("server: rendering xlsx failed", "request_id", out.RequestID, "error", err)
			writeError(w, http.StatusInternalServerError, "rendering spreadsheet failed")
			return
		}
		w.Header().Set("Content-Type", export.ContentType(export.FormatXLSX))
		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName(out.Ontology.Domain, export.FormatXLSX)}))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
		return
	}

	writeJSON(w, http.StatusOK, out.Ontology)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	engine := h.svc.Engine()
	if err := engine.Health(r.Context()); err != nil {
		body := service.ErrorBody(err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "unavailable",
			"provider":  engine.Provider(),
			"errorKind": string(body.Kind),
			"message":   body.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": engine.Provider(),
		"model":    engine.Model(),
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind goontology.ErrorKind) int {
	switch kind {
	case goontology.KindEmptyDomain:
		return http.StatusBadRequest
	case goontology.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		// ProcessFailure and the extraction kinds are upstream faults.
		return http.StatusBadGateway
	}
}

func cacheHeader(cached bool) string {
	if cached {
		return "hit"
	}
	return "miss"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
