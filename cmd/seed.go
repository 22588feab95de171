/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/bootstrap"
	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedFile string

// seedCmd loads a seed file into an empty catalog.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed an empty catalog from a JSON file",
	Long: `Seed an empty catalog from a JSON array of games. Nothing is inserted
when the catalog already has games. Usage:

	gamevault seed --file games.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		file := seedFile
		if file == "" {
			file = cfg.Catalog.SeedFile
		}
		if file == "" {
			return errors.New("no seed file: pass --file or set SEED_FILE")
		}
		if cfg.Database.Backend == config.BackendMemory {
			return errors.New("seed needs a persistent database; DB_BACKEND is memory")
		}

		ctx := cmd.Context()
		repos, err := server.OpenRepositories(ctx, cfg, clock.New())
		if err != nil {
			return err
		}
		defer repos.Close()

		if repos.Migrate != nil {
			if err := repos.Migrate(ctx); err != nil {
				return err
			}
		}

		boot := bootstrap.New(nil, nil, repos.Games, cfg.Admin, bootstrap.FileSource(file), log)
		added, err := boot.Seed(ctx)
		if err != nil {
			return err
		}
		log.Info("seed finished", zap.String("file", file), zap.Int("added", added))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedFile, "file", "", "JSON seed file (defaults to SEED_FILE)")
}
