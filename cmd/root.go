package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mydiff/mydiff/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	logger   *slog.Logger
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "mydiff",
	Short: "Structural schema diff for relational databases",
	Long: `mydiff compares two database schemas and produces the ordered DDL
statements that migrate one into the other.

A schema source is a live DSN (mysql://, postgres://, sqlite://), a .sql
DDL script, or a .yaml snapshot written by "mydiff introspect".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.Setup(logLevel, "")
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.mydiff/mydiff.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
