package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hik1komori/life-dorama-bot/internal/broadcast"
	"github.com/hik1komori/life-dorama-bot/internal/cache"
	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/notifications"
	"github.com/hik1komori/life-dorama-bot/internal/pacing"
	"github.com/hik1komori/life-dorama-bot/internal/store"
	"github.com/hik1komori/life-dorama-bot/internal/telegram"
	"github.com/hik1komori/life-dorama-bot/internal/transport"
)

func newBroadcastCommand(ctx *commandContext) *cobra.Command {
	var (
		fromChat  int64
		messageID int
		reportTo  int64
	)
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Forward an existing message to every bot user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromChat == 0 || messageID <= 0 {
				return errors.New("--from-chat and --message-id are required")
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				if err := cfg.ValidateForServe(); err != nil {
					return err
				}
				if reportTo == 0 {
					if len(cfg.Telegram.AdminIDs) == 0 {
						return errors.New("--report-to is required when no admin ids are configured")
					}
					reportTo = cfg.Telegram.AdminIDs[0]
				}
				logger := ctx.logger(cfg)

				opts := []broadcast.Option{broadcast.WithNotifier(notifications.NewService(cfg))}
				if cfg.Pacing.ProgressEvery > 0 {
					opts = append(opts, broadcast.WithProgressEvery(cfg.Pacing.ProgressEvery))
				}
				if cfg.Redis.Addr != "" {
					r, err := cache.New(cfg)
					if err != nil {
						return err
					}
					defer r.Close()
					opts = append(opts, broadcast.WithLock(cache.NewLock(r, "broadcast", 6*time.Hour)))
				}

				client, err := telegram.NewClient(cfg)
				if err != nil {
					return err
				}
				coordinator := broadcast.New(st, client, pacing.Broadcasts(cfg, pacing.RealClock()), logger, opts...)
				report, err := coordinator.Broadcast(commandCtx(cmd), broadcast.Request{
					OperatorChat: reportTo,
					Source:       transport.MessageRef{ChatID: fromChat, MessageID: messageID},
				})
				switch {
				case errors.Is(err, broadcast.ErrNoRecipients):
					fmt.Fprintln(cmd.OutOrStdout(), "No recipients")
					return nil
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %d/%d (%s%%), %d failed in %s\n",
					report.Successful, report.Total, report.SuccessPercent(), report.Failed, report.Duration.Round(time.Second))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&fromChat, "from-chat", 0, "Chat holding the message to forward")
	cmd.Flags().IntVar(&messageID, "message-id", 0, "Message to forward")
	cmd.Flags().Int64Var(&reportTo, "report-to", 0, "Chat receiving progress (default first admin)")
	return cmd
}
