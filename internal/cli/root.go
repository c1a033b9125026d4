// internal/cli/root.go
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"codeharvest/internal/config"
	"codeharvest/internal/crawler"
	"codeharvest/internal/github"
	"codeharvest/internal/metadata"
	"codeharvest/internal/quality"
	"codeharvest/internal/store"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "codeharvest",
	Short:         "Harvest and curate Python code samples from GitHub.",
	Long:          `Codeharvest downloads Python files from GitHub repositories, scores them with static analysis tools and keeps the results searchable in a local database.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}
		logger = newLogger(cfg.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openStore connects to the configured database backend.
func openStore() (*store.Store, error) {
	if cfg.DBBackend == string(store.PostgreSQLBackend) {
		return store.Open(store.PostgreSQLBackend, cfg.DBURL, logger)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return store.Open(store.SQLiteBackend, cfg.DBFile(), logger)
}

// newCrawler wires the GitHub client, evaluator and metadata log together.
func newCrawler() *crawler.Crawler {
	gh := github.NewClient(cfg.GithubToken, logger)
	meta := metadata.NewStore(cfg.MetadataFile(), logger)
	eval := quality.NewEvaluator(quality.NewExecRunner(), logger)
	cls := quality.NewClassifier(eval, quality.Thresholds{
		MinQualityScore: cfg.MinQualityScore,
		MinCodeLines:    cfg.MinCodeLines,
		MaxCodeLines:    cfg.MaxCodeLines,
		AllowedLicenses: config.DefaultAllowedLicenses,
	})
	return crawler.New(gh, meta, cls, cfg.DataDir, logger)
}

func metadataStore() *metadata.Store {
	return metadata.NewStore(cfg.MetadataFile(), logger)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
