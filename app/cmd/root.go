package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/logger"
	"github.com/wahook/pkg/utils"
)

var (
	configPath string
	logLevel   string
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "wahook",
	Short: "Receive WhatsApp provider webhooks through a public tunnel and store them",
	Long: `wahook exposes a local webhook endpoint through a cloudflared quick tunnel,
normalizes every WhatsApp provider event it receives into a queryable store
and deduplicates retransmissions by message id.

Quick Start:
  wahook serve                 # listen, open the tunnel and monitor ingestion
  wahook info                  # store totals and size
  wahook purge --days 90       # delete events older than 90 days`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.AddCommand(serveCmd, infoCmd, backupCmd, vacuumCmd, purgeCmd, tokenCmd)
}

// bootstrap loads .env and the config file and builds the process logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	utils.LoadEnv(logger.New("info", false))

	path, err := filepath.Abs(configPath)
	if err != nil {
		return nil, logger.Nop(), err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, logger.Nop(), err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	return cfg, logger.New(cfg.App.LogLevel, cfg.App.LogJSON), nil
}
