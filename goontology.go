// Package goontology generates validated domain ontologies from a language
// model. One call to Engine.Generate runs the whole pipeline: build the
// prompt, make exactly one generator call, extract and normalize the JSON,
// then optionally repair connectivity and enrich relationship details.
package goontology

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/goontology/extract"
	"github.com/brunobiangulo/goontology/graph"
	"github.com/brunobiangulo/goontology/llm"
	"github.com/brunobiangulo/goontology/ontology"
	"github.com/brunobiangulo/goontology/prompt"
)

// Engine is the main entry point.
type Engine interface {
	// Generate produces a validated ontology for domain. Failures are *Error.
	Generate(ctx context.Context, domain string, opts ...GenerateOption) (*Result, error)

	// Health checks the generator when the provider supports it.
	Health(ctx context.Context) error

	// Provider returns the generator provider name.
	Provider() string

	// Model returns the configured model name.
	Model() string

	// Close releases the engine. Generate fails with ErrClosed afterwards.
	Close() error
}

// Result is a successful generation.
type Result struct {
	Ontology         *ontology.Ontology `json:"ontology"`
	RequestID        string             `json:"request_id"`
	Model            string             `json:"model"`
	Elapsed          time.Duration      `json:"elapsed"`
	PromptTokens     int                `json:"prompt_tokens,omitempty"`
	CompletionTokens int                `json:"completion_tokens,omitempty"`
	// Bridges is the number of relationships added by connectivity repair.
	Bridges int `json:"bridges,omitempty"`
	// Warnings lists non-fatal problems, such as failed enrichment batches.
	Warnings []string `json:"warnings,omitempty"`
}

// Option configures New.
type Option func(*engineOptions)

type engineOptions struct {
	provider llm.Provider
	newID    func() string
}

// WithProvider injects a generator, bypassing cfg.Generator.
func WithProvider(p llm.Provider) Option {
	return func(o *engineOptions) { o.provider = p }
}

// WithIDGenerator replaces the request ID source (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(o *engineOptions) { o.newID = fn }
}

// GenerateOption configures a single Generate call.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	connect   bool
	details   bool
	numCtx    int
	model     string
	requestID string
}

// WithConnect overrides Config.ConnectComponents for this call.
func WithConnect(on bool) GenerateOption {
	return func(o *generateOptions) { o.connect = on }
}

// WithDetails overrides Config.EnrichDetails for this call.
func WithDetails(on bool) GenerateOption {
	return func(o *generateOptions) { o.details = on }
}

// WithNumCtx overrides the generator context window for this call.
func WithNumCtx(n int) GenerateOption {
	return func(o *generateOptions) { o.numCtx = n }
}

// WithModel overrides the generator model for this call.
func WithModel(model string) GenerateOption {
	return func(o *generateOptions) { o.model = model }
}

// WithRequestID sets the request ID instead of generating one.
func WithRequestID(id string) GenerateOption {
	return func(o *generateOptions) { o.requestID = id }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	provider llm.Provider
	newID    func() string
	closed   atomic.Bool
}

// New creates an engine. The generator comes from cfg.Generator unless
// WithProvider is given.
func New(cfg Config, opts ...Option) (Engine, error) {
	options := &engineOptions{newID: uuid.NewString}
	for _, o := range opts {
		o(options)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = DefaultConfig().HealthTimeout
	}

	p := options.provider
	if p == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		var err error
		p, err = llm.NewProvider(cfg.llmConfig())
		if err != nil {
			return nil, fmt.Errorf("%w: creating generator: %v", ErrInvalidConfig, err)
		}
	}

	return &engine{cfg: cfg, provider: p, newID: options.newID}, nil
}

// Generate runs the pipeline for domain.
func (e *engine) Generate(ctx context.Context, domain string, opts ...GenerateOption) (*Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	options := &generateOptions{
		connect: e.cfg.ConnectComponents,
		details: e.cfg.EnrichDetails,
		numCtx:  e.cfg.Generator.NumCtx,
		model:   e.cfg.Generator.Model,
	}
	for _, o := range opts {
		o(options)
	}

	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, &Error{Kind: KindEmptyDomain, Message: "domain must not be empty"}
	}

	requestID := options.requestID
	if requestID == "" {
		requestID = e.newID()
	}
	log := slog.With("request_id", requestID, "domain", domain)
	start := time.Now()

	resp, err := e.provider.Generate(ctx, llm.Request{
		Model:       options.model,
		System:      prompt.System,
		Prompt:      prompt.Build(domain),
		Temperature: e.cfg.Generator.Temperature,
		NumCtx:      options.numCtx,
		JSONMode:    e.cfg.Generator.JSONMode,
		Timeout:     e.cfg.Timeout,
	})
	if err != nil {
		gerr := classify(err)
		log.Warn("goontology: generator failed", "kind", gerr.Kind, "elapsed", time.Since(start).Round(time.Millisecond))
		return nil, gerr
	}

	o, err := extract.Extract(resp.Content)
	if err != nil {
		gerr := classify(err)
		log.Warn("goontology: extraction failed", "kind", gerr.Kind, "output_bytes", len(resp.Content))
		return nil, gerr
	}

	result := &Result{
		Ontology:         o,
		RequestID:        requestID,
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}
	if result.Model == "" {
		result.Model = options.model
	}

	if options.connect {
		result.Ontology, result.Bridges = graph.Connect(result.Ontology)
		if result.Bridges > 0 {
			log.Debug("goontology: connected components", "bridges", result.Bridges)
		}
	}

	if options.details {
		enricher := graph.NewEnricher(e.provider, graph.EnricherConfig{
			Model:       options.model,
			BatchSize:   e.cfg.EnrichBatchSize,
			Concurrency: e.cfg.EnrichConcurrency,
			NumCtx:      options.numCtx,
			Temperature: e.cfg.EnrichTemperature,
			Timeout:     e.cfg.Timeout,
		})
		enriched, warnings, err := enricher.Enrich(ctx, result.Ontology)
		if err != nil {
			return nil, classify(err)
		}
		result.Ontology = enriched
		result.Warnings = warnings
	}

	result.Elapsed = time.Since(start)
	log.Info("goontology: generated",
		"relationships", len(result.Ontology.Relationships),
		"warnings", len(result.Warnings),
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

// Health pings the generator if the provider supports it.
func (e *engine) Health(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	pinger, ok := e.provider.(llm.Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.HealthTimeout)
	defer cancel()
	if err := pinger.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (e *engine) Provider() string {
	return e.provider.Name()
}

func (e *engine) Model() string {
	return e.cfg.Generator.Model
}

// Close marks the engine closed. In-flight calls finish normally.
func (e *engine) Close() error {
	e.closed.Store(true)
	return nil
}
