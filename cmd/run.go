package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/parley/internal/analytics"
	"github.com/abhisek/parley/internal/config"
	"github.com/abhisek/parley/internal/llm"
	"github.com/abhisek/parley/internal/logging"
	"github.com/abhisek/parley/internal/oracle"
	"github.com/abhisek/parley/internal/session"
	"github.com/abhisek/parley/internal/store"
	"github.com/abhisek/parley/internal/summarizer"
)

// runtime is the wired set of services a command works with. Oracle and
// Summarizer are nil when no LLM provider is configured.
type runtime struct {
	Config     config.Config
	Logger     *zap.Logger
	Store      *store.Store
	Oracle     *oracle.Oracle
	Analytics  *analytics.Service
	Summarizer *summarizer.Service
}

// openRuntime loads configuration, opens the store and builds the
// services. withLLM=false skips provider setup for commands that never
// call a model.
func openRuntime(cmd *cobra.Command, withLLM bool) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f := cmd.Flags().Lookup("log-file"); f != nil && cfg.Log.File == "" {
		cfg.Log.File = f.Value.String()
	}
	logger, err := logging.NewFile(cfg.Log.Level, cfg.Log.Development, cfg.Log.File)
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	rt := &runtime{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Analytics: analytics.NewService(st, logger),
	}
	if !withLLM {
		return rt, nil
	}

	provider, err := newProvider(cmd.Context(), cfg.LLM, st, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "LLM provider not configured:", err)
		fmt.Fprintln(os.Stderr, "Agentic interviews, question generation and summaries will be unavailable.")
		return rt, nil
	}
	rt.Oracle, err = oracle.New(provider, cfg.Oracle, logger, oracle.WithLedger(st.EventRepo()))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build oracle: %w", err)
	}

	var refresher summarizer.Refresher
	if cfg.Summarizer.RefreshAnalytics {
		refresher = rt.Analytics
	}
	rt.Summarizer = summarizer.NewService(rt.Oracle, st, refresher, cfg.Summarizer, logger)
	return rt, nil
}

func newProvider(ctx context.Context, cfg llm.Config, st *store.Store, logger *zap.Logger) (llm.Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("no provider set and no API key found in the environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return llm.NewProvider(ctx, cfg, st.EventRepo(), logger)
}

// sessionDeps returns the per-controller dependencies. Nil services are
// left as nil interfaces.
func (rt *runtime) sessionDeps() session.Deps {
	d := session.Deps{
		Logger: rt.Logger,
		Config: rt.Config.Session,
	}
	if rt.Oracle != nil {
		d.Oracle = rt.Oracle
	}
	if rt.Summarizer != nil {
		d.Summarizer = rt.Summarizer
	}
	return d
}

// Close waits for background summaries within the shutdown timeout, then
// releases the store and flushes the logger.
func (rt *runtime) Close() {
	if rt.Summarizer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), rt.Config.Server.ShutdownTimeout)
		if err := rt.Summarizer.Shutdown(ctx); err != nil {
			rt.Logger.Warn("summaries still running at shutdown", zap.Error(err))
		}
		cancel()
	}
	if err := rt.Store.Close(); err != nil {
		rt.Logger.Warn("close store", zap.Error(err))
	}
	_ = rt.Logger.Sync()
}
