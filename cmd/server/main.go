// Command server exposes ontology generation over HTTP and, optionally, NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/goontology"
	"github.com/brunobiangulo/goontology/metrics"
	"github.com/brunobiangulo/goontology/natsrpc"
	"github.com/brunobiangulo/goontology/service"
	"github.com/brunobiangulo/goontology/store"
)

type serverFlags struct {
	configPath  string
	addr        string
	logLevel    string
	corsOrigins string
	natsURL     string
	natsSubject string
	tokenTTL    time.Duration
	maxTokens   int
	noCache     bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var f serverFlags

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve ontology generation over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file path (YAML or JSON)")
	cmd.Flags().StringVar(&f.addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.corsOrigins, "cors-origins", os.Getenv("GOONTOLOGY_CORS_ORIGINS"), "Allowed CORS origins")
	cmd.Flags().StringVar(&f.natsURL, "nats-url", os.Getenv("GOONTOLOGY_NATS_URL"), "NATS server URL; enables the request/reply responder")
	cmd.Flags().StringVar(&f.natsSubject, "nats-subject", natsrpc.DefaultSubject, "NATS request subject")
	cmd.Flags().DurationVar(&f.tokenTTL, "token-ttl", DefaultTokenTTL, "Lifetime of unused request tokens")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", DefaultMaxTokens, "Maximum outstanding request tokens; the oldest are evicted beyond it")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Disable the result cache")

	return cmd
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func run(f serverFlags) error {
	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(f.logLevel),
	})))

	cfg := goontology.DefaultConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = goontology.LoadConfig(f.configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}

	engine, err := goontology.New(cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	reg := metrics.NewRegistry()
	svcCfg := service.Config{
		CacheTTL: cfg.Cache.TTL,
		Metrics:  reg,
		Connect:  cfg.ConnectComponents,
		Details:  cfg.EnrichDetails,
	}
	if cfg.Cache.Enabled {
		st, err := store.New(cfg.Cache.ResolvePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer st.Close()
		if n, err := st.PurgeExpired(context.Background()); err != nil {
			slog.Warn("server: purging expired cache entries failed", "error", err)
		} else if n > 0 {
			slog.Info("server: purged expired cache entries", "count", n)
		}
		svcCfg.Store = st
	}
	svc := service.New(engine, svcCfg)

	if f.natsURL != "" {
		nc, err := nats.Connect(f.natsURL, nats.Name("goontology-server"))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Close()
		responder := natsrpc.NewResponder(svc, natsrpc.Config{Subject: f.natsSubject})
		if err := responder.Start(nc); err != nil {
			return err
		}
		defer responder.Stop()
	}

	h := newHandler(svc, newTokenStore(f.tokenTTL, f.maxTokens), reg, 0)
	srv := &http.Server{
		Addr:              f.addr,
		Handler:           newRouter(h, f.corsOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Generation is bounded by the engine timeout plus enrichment.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		slog.Info("server: starting", "addr", f.addr, "provider", engine.Provider(), "model", engine.Model(),
			"cache", cfg.Cache.Enabled, "nats", f.natsURL != "")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("server: shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server: shutdown error", "error", err)
	}

	slog.Info("server: stopped")
	return nil
}

// newRouter registers every route once and wraps the mux in the middleware
// chain recovery -> cors -> logging -> token -> mux.
func newRouter(h *handler, corsOrigins string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /token", h.handleToken)
	mux.HandleFunc("POST /ontology", h.handleOntology)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", h.metrics.Handler())

	var handler http.Handler = mux
	handler = tokenMiddleware(h.tokens, handler)
	handler = logMiddleware(h.metrics, mux, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}
