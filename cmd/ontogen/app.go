package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/goontology"
	"github.com/brunobiangulo/goontology/export"
	"github.com/brunobiangulo/goontology/ontology"
	"github.com/brunobiangulo/goontology/prompt"
	"github.com/brunobiangulo/goontology/service"
	"github.com/brunobiangulo/goontology/store"
)

const (
	Version = "0.1.0"
	appName = "ontogen"
)

// errReported means the failure was already printed as JSON.
var errReported = errors.New("failure reported")

// app holds the flags shared by every subcommand and the factories tests
// replace.
type app struct {
	configPath string
	logLevel   string
	noCache    bool

	newEngine func(goontology.Config) (goontology.Engine, error)
	openStore func(path string) (*store.Store, error)
}

func newApp() *app {
	return &app{
		newEngine: func(cfg goontology.Config) (goontology.Engine, error) { return goontology.New(cfg) },
		openStore: store.New,
	}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Generate domain ontologies with a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			switch strings.ToLower(a.logLevel) {
			case "debug":
				level = slog.LevelDebug
			case "info":
				level = slog.LevelInfo
			case "error":
				level = slog.LevelError
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.noCache, "no-cache", false, "Disable the result cache")

	cmd.AddCommand(a.generateCmd(), a.batchCmd(), a.cacheCmd(), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (prompt template %s)\n", appName, Version, prompt.TemplateVersion)
		},
	}
}

// loadConfig reads --config (if any) and the environment.
func (a *app) loadConfig() (goontology.Config, error) {
	cfg := goontology.DefaultConfig()
	if a.configPath != "" {
		var err error
		if cfg, err = goontology.LoadConfig(a.configPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if a.noCache {
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

// generateFlags are shared by generate and batch.
type generateFlags struct {
	numCtx  int
	format  string
	connect bool
	details bool
	refresh bool
}

func (f *generateFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.numCtx, "context", 0, "Generator context window (num_ctx); 0 uses the config value")
	cmd.Flags().StringVarP(&f.format, "format", "f", export.FormatJSON, "Output format (json, xlsx)")
	cmd.Flags().BoolVar(&f.connect, "connect", false, "Bridge disconnected entity groups")
	cmd.Flags().BoolVar(&f.details, "details", false, "Enrich relationships with definitions and examples")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "Ignore cached results")
}

func (f *generateFlags) validate() error {
	if f.format != export.FormatJSON && f.format != export.FormatXLSX {
		return fmt.Errorf("unsupported format %q (want json or xlsx)", f.format)
	}
	if f.numCtx < 0 {
		return fmt.Errorf("--context must not be negative")
	}
	return nil
}

// request builds a service request; flags override the config only when
// explicitly set.
func (f *generateFlags) request(cmd *cobra.Command, domain string) service.Request {
	req := service.Request{Domain: domain, NumCtx: f.numCtx, Refresh: f.refresh}
	if cmd.Flags().Changed("connect") {
		req.Connect = &f.connect
	}
	if cmd.Flags().Changed("details") {
		req.Details = &f.details
	}
	return req
}

// openService builds the engine and, when caching is enabled, the store.
// The returned cleanup releases both.
func (a *app) openService() (*service.Service, func(), error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	engine, err := a.newEngine(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating engine: %w", err)
	}

	svcCfg := service.Config{
		CacheTTL: cfg.Cache.TTL,
		Connect:  cfg.ConnectComponents,
		Details:  cfg.EnrichDetails,
	}
	cleanup := func() { engine.Close() }
	if cfg.Cache.Enabled {
		st, err := a.openStore(cfg.Cache.ResolvePath())
		if err != nil {
			engine.Close()
			return nil, nil, fmt.Errorf("opening cache: %w", err)
		}
		svcCfg.Store = st
		cleanup = func() {
			engine.Close()
			st.Close()
		}
	}
	return service.New(engine, svcCfg), cleanup, nil
}

func (a *app) generateCmd() *cobra.Command {
	var (
		f      generateFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "generate <domain>",
		Short: "Generate the ontology for one domain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.validate(); err != nil {
				return err
			}
			if f.format == export.FormatXLSX && output == "" {
				return fmt.Errorf("--format xlsx requires --output")
			}

			svc, cleanup, err := a.openService()
			if err != nil {
				return err
			}
			defer cleanup()

			domain := strings.Join(args, " ")
			out, err := svc.Generate(cmd.Context(), f.request(cmd, domain))
			if err != nil {
				return reportFailure(cmd.OutOrStdout(), err)
			}
			for _, w := range out.Warnings {
				slog.Warn("ontogen: enrichment incomplete", "domain", domain, "warning", w)
			}

			if output == "" || output == "-" {
				return export.WriteJSON(cmd.OutOrStdout(), out.Ontology)
			}
			if err := writeFile(output, out.Ontology, f.format); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s\n", service.Summary(out.Ontology), output)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) batchCmd() *cobra.Command {
	var (
		f      generateFlags
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Generate ontologies for every domain listed in a .txt or .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.validate(); err != nil {
				return err
			}
			domains, err := export.ReadDomains(args[0])
			if err != nil {
				return err
			}
			if len(domains) == 0 {
				return fmt.Errorf("no domains in %s", args[0])
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			svc, cleanup, err := a.openService()
			if err != nil {
				return err
			}
			defer cleanup()

			failed := 0
			stdout := cmd.OutOrStdout()
			for i, domain := range domains {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				start := time.Now()
				out, err := svc.Generate(cmd.Context(), f.request(cmd, domain))
				if err != nil {
					failed++
					body := service.ErrorBody(err)
					fmt.Fprintf(stdout, "[%d/%d] %s: %s: %s\n", i+1, len(domains), domain, body.Kind, body.Message)
					continue
				}
				path := filepath.Join(outDir, export.FileName(domain, f.format))
				if err := writeFile(path, out.Ontology, f.format); err != nil {
					return err
				}
				status := "generated"
				if out.Cached {
					status = "cached"
				}
				fmt.Fprintf(stdout, "[%d/%d] %s -> %s (%s, %s)\n", i+1, len(domains), service.Summary(out.Ontology),
					path, status, time.Since(start).Round(time.Millisecond))
			}

			if failed > 0 {
				fmt.Fprintf(stdout, "%d of %d domains failed\n", failed, len(domains))
				return errReported
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", ".", "Directory for generated files")
	return cmd
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
	}

	withStore := func(fn func(ctx context.Context, st *store.Store, w io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			st, err := a.openStore(cfg.Cache.ResolvePath())
			if err != nil {
				return fmt.Errorf("opening cache: %w", err)
			}
			defer st.Close()
			return fn(cmd.Context(), st, cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached ontologies",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer) error {
			entries, err := st.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOMAIN\tMODEL\tVARIANT\tRELATIONSHIPS\tCREATED\tEXPIRES")
			for _, e := range entries {
				expires := "never"
				if !e.ExpiresAt.IsZero() {
					expires = e.ExpiresAt.Format(time.RFC3339)
				}
				variant := e.Variant
				if variant == "" {
					variant = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", e.Domain, e.Model, variant,
					e.RelationshipCount, e.CreatedAt.Format(time.RFC3339), expires)
			}
			return tw.Flush()
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached ontology",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer) error {
			n, err := st.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "removed %d cached ontologies\n", n)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache and generation log counts",
		Args:  cobra.NoArgs,
		RunE: withStore(func(ctx context.Context, st *store.Store, w io.Writer) error {
			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}),
	})

	return cmd
}

// reportFailure prints {"errorKind","message"} and returns errReported.
func reportFailure(w io.Writer, err error) error {
	data, merr := json.Marshal(service.ErrorBody(err))
	if merr != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return errReported
}

func writeFile(path string, o *ontology.Ontology, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := export.Write(f, o, format); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
