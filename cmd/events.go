/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gamevault/apiserver/internal/mq"
	"github.com/gamevault/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// eventsCmd groups catalog event tooling.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect catalog change events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print catalog events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() {
			_ = log.Sync()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := mq.New(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if bus == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer bus.Close()

		log.Info("tailing catalog events", zap.String("backend", cfg.MQ.Backend), zap.String("channel", bus.Channel()))
		err = bus.SubscribeCatalogEvents(ctx,
			func(ctx context.Context, event types.CatalogEvent) error {
				fields := []zap.Field{
					zap.String("type", event.Type),
					zap.Int("game_id", event.GameID),
					zap.Time("occurred_at", event.OccurredAt),
				}
				if event.Game != nil {
					fields = append(fields, zap.String("name", event.Game.Name))
				}
				log.Info("catalog event", fields...)
				return nil
			},
			func(msg mq.Message, err error) {
				log.Warn("undecodable message", zap.String("id", msg.ID), zap.Error(err))
			},
		)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
