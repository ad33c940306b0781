package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/sagarc03/xupload"
	"github.com/sagarc03/xupload/filesystem"
	xuploadhttp "github.com/sagarc03/xupload/http"
	"github.com/sagarc03/xupload/metrics"
	"github.com/sagarc03/xupload/tracing"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the xupload HTTP server.

With metrics enabled a second listener serves /metrics, /livez and /readyz.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5280, "HTTP server port (env: XUPLOAD_SERVER_PORT)")
	serveCmd.Flags().String("metrics-addr", "", "metrics listen address (env: XUPLOAD_METRICS_ADDR)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceShutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	secret, err := loadSecret(cfg)
	if err != nil {
		return err
	}
	verifier, err := xupload.NewSignatureVerifier(secret)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}

	headers, err := xupload.NewHeaderPolicy(cfg.Headers.InlineTypes)
	if err != nil {
		return fmt.Errorf("invalid headers config: %w", err)
	}

	root, err := openStorage(cfg.Storage.Path, true)
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	resolver, err := xupload.NewResolver(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}

	var (
		observer   xupload.Observer
		m          *metrics.Metrics
		middleware []func(http.Handler) http.Handler
	)
	if cfg.Tracing.Enabled {
		middleware = append(middleware, tracing.Middleware)
	}
	if cfg.Metrics.Enabled {
		m = metrics.New()
		observer = m.Uploads
		middleware = append(middleware, m.Middleware)
	}

	service, err := xupload.NewUploadService(xupload.ServiceConfig{
		Resolver: resolver,
		Verifier: verifier,
		Quota:    filesystem.NewQuota(root),
		Store:    filesystem.NewFileStorage(root),
		Observer: observer,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	handler := xuploadhttp.NewHandler(&xuploadhttp.HandlerConfig{
		Headers:    headers,
		CORS:       cfg.CORS,
		Middleware: middleware,
	}, service)

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: seconds(cfg.Server.ReadTimeout),
		WriteTimeout:      seconds(cfg.Server.WriteTimeout),
		IdleTimeout:       120 * time.Second,
	}}
	if m != nil {
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           adminRouter(m, root),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			slog.Info("starting server", "addr", srv.Addr, "storage", resolver.Root())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down server...")
	case err = <-errCh:
		slog.Error("server failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("server shutdown error", "addr", srv.Addr, "err", shutdownErr)
		}
	}
	if traceErr := traceShutdown(shutdownCtx); traceErr != nil {
		slog.Warn("tracing shutdown error", "err", traceErr)
	}

	return err
}

// adminRouter serves metrics and health probes. Ready means the storage
// root is still reachable.
func adminRouter(m *metrics.Metrics, root *os.Root) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", m.Handler())
	r.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := root.Stat("."); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	return r
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
