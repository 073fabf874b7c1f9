package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/goontology/extract"
	"github.com/brunobiangulo/goontology/llm"
	"github.com/brunobiangulo/goontology/ontology"
	"github.com/brunobiangulo/goontology/prompt"
)

const (
	// DefaultBatchSize is how many relationships share one enrichment call.
	DefaultBatchSize = 2
	// DefaultConcurrency is how many enrichment calls run at once.
	DefaultConcurrency = 4
)

// EnricherConfig configures an Enricher.
type EnricherConfig struct {
	Model       string
	BatchSize   int
	Concurrency int
	NumCtx      int
	Temperature float64
	// Timeout bounds each batch call.
	Timeout time.Duration
}

// Enricher fills in Relationship.Details with one generator call per batch.
type Enricher struct {
	provider llm.Provider
	cfg      EnricherConfig
}

// NewEnricher creates an Enricher. Zero batch size or concurrency use the
// package defaults.
func NewEnricher(provider llm.Provider, cfg EnricherConfig) *Enricher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Enricher{provider: provider, cfg: cfg}
}

// Enrich returns a copy of o with details attached. A failed batch leaves
// its relationships without details and adds a warning; only cancellation
// of ctx is returned as an error.
func (e *Enricher) Enrich(ctx context.Context, o *ontology.Ontology) (*ontology.Ontology, []string, error) {
	out := o.Clone()
	n := len(out.Relationships)
	if n == 0 {
		return out, nil, nil
	}

	batches := (n + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	warnings := make([]string, batches)
	start := time.Now()

	var (
		g         errgroup.Group
		mu        sync.Mutex
		completed int
	)
	g.SetLimit(e.cfg.Concurrency)

	for b := 0; b < batches; b++ {
		lo := b * e.cfg.BatchSize
		hi := min(lo+e.cfg.BatchSize, n)

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := e.enrichBatch(ctx, out, lo, hi); err != nil {
				slog.Warn("graph: enrichment batch failed",
					"domain", out.Domain, "batch", b, "error", err)
				warnings[b] = fmt.Sprintf("details for relationships %d-%d unavailable: %v", lo+1, hi, err)
				return nil
			}
			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			slog.Debug("graph: enrichment batch done",
				"progress", fmt.Sprintf("%d/%d", done, batches),
				"elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("graph.Enrich: %w", err)
	}

	var collected []string
	for _, w := range warnings {
		if w != "" {
			collected = append(collected, w)
		}
	}
	slog.Info("graph: enrichment complete",
		"domain", out.Domain, "relationships", n, "batches", batches,
		"failed", len(collected), "elapsed", time.Since(start).Round(time.Millisecond))
	return out, collected, nil
}

// errNoDetails is returned when a reply parses but carries no usable details.
var errNoDetails = errors.New("reply contained no usable details")

// enrichBatch writes details into out.Relationships[lo:hi]. Batches touch
// disjoint index ranges.
func (e *Enricher) enrichBatch(ctx context.Context, out *ontology.Ontology, lo, hi int) error {
	rels := out.Relationships[lo:hi]
	temperature := e.cfg.Temperature
	resp, err := e.provider.Generate(ctx, llm.Request{
		Model:       e.cfg.Model,
		System:      prompt.DetailsSystem,
		Prompt:      prompt.BuildDetails(out.Domain, rels),
		Temperature: &temperature,
		NumCtx:      e.cfg.NumCtx,
		Timeout:     e.cfg.Timeout,
	})
	if err != nil {
		return err
	}

	details, err := extract.ExtractDetails(resp.Content)
	if err != nil {
		return err
	}
	if len(details) < len(rels) {
		slog.Warn("graph: enrichment returned fewer details than requested",
			"want", len(rels), "got", len(details))
	}
	usable := 0
	for i := range rels {
		if i < len(details) && details[i] != nil {
			usable++
		}
	}
	if usable == 0 {
		return errNoDetails
	}
	for i := range rels {
		if i < len(details) {
			rels[i].Details = details[i]
		}
	}
	return nil
}
