/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gamevault",
	Short: "Video game catalog API server",
	Long: `gamevault serves a video game catalog over HTTP. Anyone can browse
the catalog; administrators curate it with bearer tokens.

	gamevault server
	gamevault migrate up
	gamevault admin create --username root --password secret`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads configuration and builds the logger shared by every command.
func loadRuntime() (config.Config, *zap.Logger, error) {
	cfg := config.LoadConfig()
	log, err := logger.New(cfg.Log.Debug)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}
