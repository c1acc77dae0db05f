package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/microgrid-sizing/backend/internal/api"
	"github.com/microgrid-sizing/backend/internal/config"
	"github.com/microgrid-sizing/backend/internal/logger"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(configPath *string, info BuildInfo) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the HTTP API. Optimization requests run synchronously on their
request and keep running if the client disconnects. Old run workspaces are
removed in the background after storage.retention_minutes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, info, *configPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}

// newServer wires the echo instance for a running app.
func newServer(a *app, info BuildInfo) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, a.cfg.Server, logger.New("http"))

	deps := &api.Dependencies{
		Runner:      a.service,
		Workspaces:  a.workspaces,
		Live:        a.tracker,
		MetricsPath: a.cfg.Metrics.Path,
		Version:     info.Version,
		Engine:      a.engine.Name(),
	}
	if a.history != nil {
		deps.History = a.history
	}
	if a.prom != nil {
		deps.Metrics = a.prom.Handler()
	}
	api.RegisterRoutes(e, api.NewHandlers(deps))
	return e
}

func serve(ctx context.Context, cfg *config.AppConfig, info BuildInfo, configPath string, out io.Writer) error {
	log := logger.New("server")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a, err := newApp(cfg, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newServer(a, info)
	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(out, cfg, info, configPath, a.engine.Name())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("listening on %s", srv.Addr)
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		cleanupLoop(gctx, a, cfg.Storage, log)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

// cleanupLoop drops expired workspaces and tracker entries until ctx ends.
func cleanupLoop(ctx context.Context, a *app, cfg config.StorageConfig, log logger.Logger) {
	if cfg.RetentionMinutes <= 0 {
		<-ctx.Done()
		return
	}
	retention := time.Duration(cfg.RetentionMinutes) * time.Minute
	ticker := time.NewTicker(time.Duration(cfg.CleanupIntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := a.workspaces.CleanupOld(retention)
			forgotten := a.tracker.CleanupOld(retention)
			if removed > 0 || forgotten > 0 {
				log.Infof("cleanup removed %d workspaces and %d tracked runs", removed, forgotten)
			}
		}
	}
}

func printBanner(out io.Writer, cfg *config.AppConfig, info BuildInfo, configPath, engine string) {
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(out, "║           Microgrid Sizing API                            ║\n")
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Version:    %-45s║\n", info.Version)
	fmt.Fprintf(out, "║  Build Time: %-45s║\n", orUnknown(info.BuildTime))
	fmt.Fprintf(out, "║  Engine:     %-45s║\n", engine)
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Config:    %-46s║\n", configPath)
	fmt.Fprintf(out, "║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Fprintf(out, "║  Workspace: %-46s║\n", cfg.Storage.WorkspaceDirectory)
	fmt.Fprintf(out, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(out, "\n")
}
