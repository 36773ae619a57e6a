package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/parley/internal/config"
	"github.com/abhisek/parley/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "AI-moderated user research interviews",
	Long: "Parley runs adaptive, time-boxed research interviews with an AI interviewer " +
		"and summarizes every transcript for the researcher.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PARLEY_DB env var)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config and applies the --db and --log-level flags on
// top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DB = p
	}
	return cfg, cfg.Validate()
}

// resolveDBPath returns the configured database path, or the default XDG
// path when none is set. PARLEY_DB is already folded into cfg.DB.
func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.DB != "" {
		return cfg.DB, store.EnsureDir(cfg.DB)
	}
	return store.DefaultDBPath()
}
