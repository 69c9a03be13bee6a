package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DominicTanzillo/Panacea/internal/config"
	"github.com/DominicTanzillo/Panacea/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "panacea",
	Short: "Counterfactual conjunction screening",
	Long: "Panacea checks whether a maneuvered satellite would have come dangerously close " +
		"to another object had it stayed on its pre-maneuver orbit.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			c.Log.Format = logFormat
		}
		l, err := logging.New(os.Stderr, c.Log.Format, c.Log.Level)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		slog.SetDefault(l)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")

	rootCmd.AddCommand(screenCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(crossrefCmd)
	rootCmd.AddCommand(selectCmd)
}
