package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage the channels users must join",
	}
	channelCmd.AddCommand(newChannelListCommand(ctx))
	channelCmd.AddCommand(newChannelAddCommand(ctx))
	channelCmd.AddCommand(newChannelDeleteCommand(ctx))
	channelCmd.AddCommand(newChannelToggleCommand(ctx, "enable", true))
	channelCmd.AddCommand(newChannelToggleCommand(ctx, "disable", false))
	return channelCmd
}

func newChannelListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List gate channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				channels, err := st.ListChannels(commandCtx(cmd), false)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, channels)
				}
				if len(channels) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No channels")
					return nil
				}
				rows := make([][]string, 0, len(channels))
				for _, c := range channels {
					rows = append(rows, []string{
						strconv.FormatInt(c.ID, 10), c.Label(), yesNo(c.IsPrivate), yesNo(c.Active), c.JoinURL(),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Channel", "Private", "Active", "Join URL"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newChannelAddCommand(ctx *commandContext) *cobra.Command {
	var channel store.Channel
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add or update a gate channel",
		Example: "  doramabot channel add --username doramalar -- -1001234567890\n" +
			"  doramabot channel add --private --invite-link https://t.me/+abc --title Yopiq -- -1009876543210",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			channel.ID = id
			return ctx.withCatalog(func(_ *config.Config, st catalogWriter) error {
				saved, err := st.AddChannel(commandCtx(cmd), channel)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved channel %s (%d)\n", saved.Label(), saved.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channel.Username, "username", "", "Public @username")
	cmd.Flags().StringVar(&channel.Title, "title", "", "Display title")
	cmd.Flags().StringVar(&channel.InviteLink, "invite-link", "", "Invite link (required for private channels)")
	cmd.Flags().BoolVar(&channel.IsPrivate, "private", false, "Gate on join requests instead of membership")
	return cmd
}

func newChannelDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a gate channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(_ *config.Config, st catalogWriter) error {
				if err := st.DeleteChannel(commandCtx(cmd), id); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("channel %d not found", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted channel %d\n", id)
				return nil
			})
		},
	}
}

func newChannelToggleCommand(ctx *commandContext, use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("Mark a gate channel %sd", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(_ *config.Config, st catalogWriter) error {
				if err := st.SetChannelActive(commandCtx(cmd), id, active); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("channel %d not found", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Channel %d active: %s\n", id, yesNo(active))
				return nil
			})
		},
	}
}

func parseChatID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chat id must be a number, got %q", raw)
	}
	return id, nil
}
