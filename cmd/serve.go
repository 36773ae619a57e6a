package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/analytics"
	"github.com/abhisek/parley/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the researcher and participant HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			rt.Config.Server.Addr = addr
		}
		return serve(cmd.Context(), rt)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides PARLEY_ADDR)")
}

func serve(ctx context.Context, rt *runtime) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		Store:          rt.Store,
		Analytics:      rt.Analytics,
		Session:        rt.sessionDeps(),
		AllowedOrigins: rt.Config.Server.AllowedOrigins,
		Logger:         rt.Logger,
	}
	if rt.Oracle != nil {
		deps.Generator = rt.Oracle
	}
	srv := api.New(deps)

	var sched *analytics.Scheduler
	if rt.Config.Server.AnalyticsSchedule != "" {
		sched = analytics.NewScheduler(rt.Analytics, rt.Config.Server.AnalyticsSchedule)
		if err := sched.Start(); err != nil {
			return err
		}
	}

	// No write timeout: a turn includes the oracle call and pacing delay.
	server := &http.Server{
		Addr:        rt.Config.Server.Addr,
		Handler:     srv.Handler(),
		ReadTimeout: rt.Config.Server.ReadTimeout,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		rt.Logger.Info("parley server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	rt.Logger.Info("parley server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.Config.Server.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	rt.Logger.Info("parley server exited")
	return nil
}
