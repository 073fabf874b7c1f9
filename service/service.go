// Package service wraps an Engine with the application concerns shared by
// every front end: the SQLite result cache, the generation log and metrics.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/goontology"
	"github.com/brunobiangulo/goontology/metrics"
	"github.com/brunobiangulo/goontology/ontology"
	"github.com/brunobiangulo/goontology/store"
)

// Request is one generation request as received by a front end.
type Request struct {
	Domain string `json:"domain"`
	// Connect and Details override the configured post-processing when set.
	Connect *bool `json:"connect,omitempty"`
	Details *bool `json:"details,omitempty"`
	NumCtx  int   `json:"num_ctx,omitempty"`
	// Refresh skips the cache lookup. The fresh result still replaces the
	// cached one.
	Refresh   bool   `json:"refresh,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Outcome is a successful request.
type Outcome struct {
	*goontology.Result
	Cached bool `json:"cached"`
}

// Config wires the optional collaborators.
type Config struct {
	// Store enables caching and the generation log. Nil disables both.
	Store    *store.Store
	CacheTTL time.Duration
	Metrics  *metrics.Registry

	// Default post-processing for requests that leave it unset.
	Connect bool
	Details bool
}

// Service serves generation requests.
type Service struct {
	engine goontology.Engine
	cfg    Config
	newID  func() string
}

// New creates a Service around engine.
func New(engine goontology.Engine, cfg Config) *Service {
	return &Service{engine: engine, cfg: cfg, newID: uuid.NewString}
}

// Engine returns the wrapped engine.
func (s *Service) Engine() goontology.Engine {
	return s.engine
}

// Generate answers req from the cache when possible, otherwise runs the
// engine and caches the result. Failures are *goontology.Error.
func (s *Service) Generate(ctx context.Context, req Request) (*Outcome, error) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = s.newID()
	}
	domain := strings.TrimSpace(req.Domain)
	connect, details := s.cfg.Connect, s.cfg.Details
	if req.Connect != nil {
		connect = *req.Connect
	}
	if req.Details != nil {
		details = *req.Details
	}
	key := store.Key{Domain: domain, Model: s.engine.Model(), Variant: Variant(connect, details)}
	log := slog.With("request_id", requestID, "domain", domain)

	if domain != "" && s.cfg.Store != nil && !req.Refresh {
		entry, err := s.cfg.Store.Get(ctx, key)
		switch {
		case err == nil:
			s.cfg.Metrics.ObserveCache("hit")
			log.Debug("service: cache hit", "key", entry.Key)
			s.logGeneration(ctx, store.GenerationLog{
				RequestID: requestID, Domain: domain, Model: entry.Model, Outcome: metrics.OutcomeOK,
				RelationshipCount: len(entry.Ontology.Relationships), Cached: true,
			})
			return &Outcome{
				Result: &goontology.Result{Ontology: entry.Ontology, RequestID: requestID, Model: entry.Model},
				Cached: true,
			}, nil
		case errors.Is(err, store.ErrNotFound):
			s.cfg.Metrics.ObserveCache("miss")
		default:
			s.cfg.Metrics.ObserveCache("error")
			log.Warn("service: cache lookup failed", "error", err)
		}
	}

	opts := []goontology.GenerateOption{
		goontology.WithRequestID(requestID),
		goontology.WithConnect(connect),
		goontology.WithDetails(details),
	}
	if req.NumCtx > 0 {
		opts = append(opts, goontology.WithNumCtx(req.NumCtx))
	}

	start := time.Now()
	result, err := s.engine.Generate(ctx, domain, opts...)
	elapsed := time.Since(start)
	if err != nil {
		kind := goontology.KindOf(err)
		s.cfg.Metrics.ObserveGeneration(s.engine.Provider(), string(kind), elapsed, 0, 0)
		s.logGeneration(ctx, store.GenerationLog{
			RequestID: requestID, Domain: domain, Model: s.engine.Model(), Outcome: "error",
			ErrorKind: string(kind), Elapsed: elapsed,
		})
		return nil, err
	}

	rels := len(result.Ontology.Relationships)
	s.cfg.Metrics.ObserveGeneration(s.engine.Provider(), metrics.OutcomeOK, elapsed, rels, len(result.Warnings))
	s.logGeneration(ctx, store.GenerationLog{
		RequestID: requestID, Domain: domain, Model: result.Model, Outcome: metrics.OutcomeOK,
		RelationshipCount: rels, Elapsed: elapsed,
	})

	// Partially enriched results are not cached so a later request can
	// fill in the missing details.
	if s.cfg.Store != nil && len(result.Warnings) == 0 {
		if err := s.cfg.Store.Put(ctx, key, result.Ontology, s.cfg.CacheTTL); err != nil {
			log.Warn("service: caching result failed", "error", err)
		}
	}

	return &Outcome{Result: result}, nil
}

func (s *Service) logGeneration(ctx context.Context, g store.GenerationLog) {
	if s.cfg.Store == nil {
		return
	}
	if err := s.cfg.Store.LogGeneration(ctx, g); err != nil {
		slog.Warn("service: writing generation log failed", "request_id", g.RequestID, "error", err)
	}
}

// Variant names the post-processing applied to a cached ontology.
func Variant(connect, details bool) string {
	switch {
	case connect && details:
		return "connect+details"
	case connect:
		return "connect"
	case details:
		return "details"
	}
	return ""
}

// ErrorBody converts err into the wire failure shape
// {"errorKind": ..., "message": ...}.
func ErrorBody(err error) *goontology.Error {
	var ge *goontology.Error
	if errors.As(err, &ge) {
		return ge
	}
	return &goontology.Error{Kind: goontology.KindOf(err), Message: err.Error(), Err: err}
}

// Summary is a compact description of an ontology for logs and CLI output.
func Summary(o *ontology.Ontology) string {
	return o.Domain + ": " + pluralize(len(o.Relationships), "relationship") + ", " +
		pluralize(len(o.Entities()), "entity")
}

func pluralize(n int, noun string) string {
	if n != 1 {
		if strings.HasSuffix(noun, "y") {
			noun = strings.TrimSuffix(noun, "y") + "ies"
		} else {
			noun += "s"
		}
	}
	return strconv.Itoa(n) + " " + noun
}
