package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jernst/mailsheets/internal/google"
	"github.com/jernst/mailsheets/internal/instrumentation"
	"github.com/jernst/mailsheets/internal/logging"
	"github.com/jernst/mailsheets/internal/server"
	"github.com/jernst/mailsheets/internal/tools/gmail_tools"
	"github.com/jernst/mailsheets/internal/tools/sheets_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveConfig collects the settings of a serve invocation.
type serveConfig struct {
	Debug           bool
	Transport       string
	Host            string
	Port            int
	CredentialsFile string
	TokenFile       string
	FetchOnly       bool
	Metrics         MetricsConfig
}

func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the Gmail and
Google Sheets tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: HTTP Server-Sent Events (GET /sse, POST /messages/)

Credentials:
  The server reads an installed-app OAuth client secrets file and a
  persisted token file. Run 'mailsheets setup' once to authorize
  interactively; with --fetch-only the server never opens the interactive
  flow and reports an auth error until setup has been run.

  --credentials-file or GOOGLE_CREDENTIALS_FILE env var
  --token-file or GOOGLE_TOKEN_FILE env var`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Env fallbacks apply only when the flag was not set.
			if !cmd.Flags().Changed("credentials-file") {
				if v := os.Getenv("GOOGLE_CREDENTIALS_FILE"); v != "" {
					cfg.CredentialsFile = v
				}
			}
			if !cmd.Flags().Changed("token-file") {
				if v := os.Getenv("GOOGLE_TOKEN_FILE"); v != "" {
					cfg.TokenFile = v
				}
			}
			if !cmd.Flags().Changed("fetch-only") {
				if v := os.Getenv("MAILSHEETS_FETCH_ONLY"); v != "" {
					if parsed, err := strconv.ParseBool(v); err == nil {
						cfg.FetchOnly = parsed
					}
				}
			}
			if !cmd.Flags().Changed("metrics-enabled") {
				if v := os.Getenv("METRICS_ENABLED"); v != "" {
					if parsed, err := strconv.ParseBool(v); err == nil {
						cfg.Metrics.Enabled = parsed
					}
				}
			}
			if !cmd.Flags().Changed("metrics-addr") {
				if v := os.Getenv("METRICS_ADDR"); v != "" {
					cfg.Metrics.Addr = v
				}
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.Transport, "transport", "stdio", "Transport type: stdio or sse")
	cmd.Flags().StringVar(&cfg.Host, "host", "0.0.0.0", "Host to bind the HTTP server to (sse transport only)")
	cmd.Flags().IntVar(&cfg.Port, "port", 8000, "Port to bind the HTTP server to (sse transport only)")
	cmd.Flags().StringVar(&cfg.CredentialsFile, "credentials-file", google.DefaultCredentialsFile, "Path to the Google OAuth client secrets JSON. Can also use GOOGLE_CREDENTIALS_FILE env var.")
	cmd.Flags().StringVar(&cfg.TokenFile, "token-file", google.DefaultTokenFile, "Path where the granted OAuth token is persisted. Can also use GOOGLE_TOKEN_FILE env var.")
	cmd.Flags().BoolVar(&cfg.FetchOnly, "fetch-only", false, "Never run the interactive authorization flow; fail with an auth error instead. Can also use MAILSHEETS_FETCH_ONLY env var.")
	cmd.Flags().BoolVar(&cfg.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port (sse transport only). Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// listenAddr joins host and port into a dialable address.
func listenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// validTransport reports whether the transport name is supported.
func validTransport(transport string) bool {
	return transport == "stdio" || transport == "sse"
}

func runServe(cfg serveConfig) error {
	if !validTransport(cfg.Transport) {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse)", cfg.Transport)
	}

	// The stdio transport carries the protocol on stdout; all logging goes
	// to stderr on every transport so the two cannot deadlock or interleave.
	logger := logging.Setup(os.Stderr, cfg.Debug)

	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	storeOpts := google.Options{
		CredentialsFile: cfg.CredentialsFile,
		TokenFile:       cfg.TokenFile,
		FetchOnly:       cfg.FetchOnly,
		Logger:          logging.NewSlogAdapter(logging.WithService(logging.WithOperation(logger, "serve"), "oauth")),
	}
	if provider.Enabled() {
		storeOpts.Metrics = provider.Metrics()
	}
	store := google.NewStore(storeOpts)
	if !store.HasToken() {
		slog.Warn("no persisted Google token; tools will report auth errors until setup runs",
			"token_file", cfg.TokenFile)
	}

	serverContext := server.NewServerContext(shutdownCtx, store)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slog.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}

	serverOpts := []mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(true),
	}
	if provider.Enabled() {
		metrics := provider.Metrics()
		hooks := &mcpserver.Hooks{}
		hooks.AddOnRegisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
			metrics.IncrementActiveSessions(ctx)
		})
		hooks.AddOnUnregisterSession(func(ctx context.Context, session mcpserver.ClientSession) {
			metrics.DecrementActiveSessions(ctx)
		})
		serverOpts = append(serverOpts, mcpserver.WithHooks(hooks))
	}

	mcpSrv := mcpserver.NewMCPServer("mailsheets", version, serverOpts...)

	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}

	switch cfg.Transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "sse":
		return runSSEServer(shutdownCtx, mcpSrv, serverContext, cfg, provider)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse)", cfg.Transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools.
// Extracted so serve and generate-docs register the same set.
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Email",
			register: func() error {
				return gmail_tools.RegisterEmailTools(mcpSrv, ctx)
			},
		},
		{
			name: "Spreadsheet",
			register: func() error {
				return sheets_tools.RegisterSheetTools(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}

func runSSEServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, cfg serveConfig, provider *instrumentation.Provider) error {
	addr := listenAddr(cfg.Host, cfg.Port)

	// Dedicated metrics listener keeps Prometheus scraping off the MCP port.
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", logging.Err(err))
			}
		}()
		slog.Info("metrics server started", "addr", metricsServer.Addr())
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}
	}()

	sseServer := mcpserver.NewSSEServer(mcpSrv,
		mcpserver.WithSSEEndpoint("/sse"),
		mcpserver.WithMessageEndpoint("/messages/"),
	)

	healthChecker := server.NewHealthChecker(serverContext)

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/messages/", sseServer.MessageHandler())
	healthChecker.RegisterHealthEndpoints(mux)

	var handler http.Handler = mux
	if provider.Enabled() {
		handler = server.HTTPMetricsMiddleware(provider.Metrics(), handler)
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		healthChecker.SetReady(true)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	slog.Info("SSE server started",
		"addr", addr,
		"sse_endpoint", "/sse",
		"message_endpoint", "/messages/")

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping SSE server")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down SSE server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("SSE server stopped with error: %w", err)
		}
	}

	slog.Info("SSE server stopped")
	return nil
}
