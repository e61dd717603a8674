// Package cli provides the command-line interface for examscan.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/acssjr/examscan/internal/client"
	"github.com/acssjr/examscan/internal/config"
	"github.com/acssjr/examscan/internal/notify"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	scope   string

	// Global config and collaborators
	cfg        config.Config
	api        *client.Client
	logger     *slog.Logger
	logCleanup func() error
	broker     *notify.Broker
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "examscan",
	Short: "Exam document ingestion and incidence tracker",
	Long: `Examscan ingests scanned exam documents, tracks their background
extraction and classification jobs, and browses the resulting questions
through a hierarchical subject taxonomy.

Documents are processed by the examscan backend; this client submits work,
polls job status, and aggregates classified questions into incidence trees.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if scope != "" {
			cfg.Scope = scope
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		api = client.New(cfg.ServerURL)
		broker = notify.NewBroker(cfg.MaxNotifications, cfg.NotificationTTL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&scope, "scope", "", "project scope (default from EXAMSCAN_SCOPE)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
