//go:build cgo

package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/goontology/llm"
	"github.com/brunobiangulo/goontology/metrics"
	"github.com/brunobiangulo/goontology/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGenerateCachesByFoldedDomain(t *testing.T) {
	p := &scriptedProvider{content: petsJSON}
	st := openStore(t)
	reg := metrics.NewRegistry()
	svc := newService(t, p, Config{Store: st, CacheTTL: time.Hour, Metrics: reg})
	ctx := context.Background()

	first, err := svc.Generate(ctx, Request{Domain: "Pets"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Generate(ctx, Request{Domain: "  PETS "})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Ontology, second.Ontology)
	assert.Equal(t, 1, p.Calls())

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Metrics.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Metrics.CacheLookups.WithLabelValues("hit")))

	logs, err := st.RecentGenerations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	cached := 0
	for _, g := range logs {
		if g.Cached {
			cached++
		}
	}
	assert.Equal(t, 1, cached)
}

func TestGenerateRefreshBypassesCache(t *testing.T) {
	p := &scriptedProvider{content: petsJSON}
	svc := newService(t, p, Config{Store: openStore(t)})
	ctx := context.Background()

	_, err := svc.Generate(ctx, Request{Domain: "Pets"})
	require.NoError(t, err)
	out, err := svc.Generate(ctx, Request{Domain: "Pets", Refresh: true})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Equal(t, 2, p.Calls())
}

func TestGenerateVariantsCachedSeparately(t *testing.T) {
	p := &scriptedProvider{content: petsJSON}
	svc := newService(t, p, Config{Store: openStore(t)})
	ctx := context.Background()
	on := true

	_, err := svc.Generate(ctx, Request{Domain: "Pets"})
	require.NoError(t, err)
	out, err := svc.Generate(ctx, Request{Domain: "Pets", Connect: &on})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Len(t, out.Ontology.Relationships, 3)

	out, err = svc.Generate(ctx, Request{Domain: "Pets", Connect: &on})
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Len(t, out.Ontology.Relationships, 3)
	assert.Equal(t, 2, p.Calls())
}

func TestGenerateFailureIsLoggedNotCached(t *testing.T) {
	p := &scriptedProvider{err: &llm.TransportError{Kind: llm.KindProcessFailure, Provider: "fake"}}
	st := openStore(t)
	svc := newService(t, p, Config{Store: st})
	ctx := context.Background()

	_, err := svc.Generate(ctx, Request{Domain: "Pets"})
	require.Error(t, err)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
	assert.Equal(t, 1, stats.Generations)
	assert.Equal(t, 1, stats.Failures)
}
