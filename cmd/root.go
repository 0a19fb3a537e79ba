// Package cmd implements the pragmadic command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matthewloh/pragmadic/internal/config"
	"github.com/matthewloh/pragmadic/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "pragmadic",
	Short: "Pragmadic is a conversational assistant with a durable knowledge base",
	Long: `Pragmadic is a terminal assistant built on Gemini. It streams replies,
lets the model store and retrieve knowledge through tools, and keeps every
conversation in an append-only PostgreSQL log.

Running pragmadic without a subcommand starts an interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and installs the default logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})
	slog.SetDefault(logger)
	return cfg, logger, nil
}
