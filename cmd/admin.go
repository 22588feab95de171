/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/auth"
	"github.com/gamevault/apiserver/internal/clock"
	"github.com/gamevault/apiserver/internal/server"
	"github.com/gamevault/apiserver/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	adminUsername string
	adminPassword string
)

// adminCmd groups administrator account management.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an administrator account",
	Long: `Create an administrator account in the configured database. Fails if
the username is already taken. Usage:

	gamevault admin create --username root --password secret
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()
		if cfg.Database.Backend == config.BackendMemory {
			return errors.New("admin create needs a persistent database; DB_BACKEND is memory")
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

		users := services.NewUserService(repos.Users, auth.NewHasher(0))
		user, err := users.CreateAdmin(ctx, adminUsername, adminPassword)
		if err != nil {
			return err
		}
		log.Info("admin created", zap.Int("id", user.ID), zap.String("username", user.Username))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)
	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "", "administrator username")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "administrator password")
	_ = adminCreateCmd.MarkFlagRequired("username")
	_ = adminCreateCmd.MarkFlagRequired("password")
}
