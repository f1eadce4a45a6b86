package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/ledger"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

var knownStatuses = []store.RequestStatus{store.RequestPending, store.RequestApproved, store.RequestCancelled}

func newRequestCommand(ctx *commandContext) *cobra.Command {
	requestCmd := &cobra.Command{
		Use:   "request",
		Short: "Inspect and approve private channel access requests",
	}
	requestCmd.AddCommand(newRequestListCommand(ctx))
	requestCmd.AddCommand(newRequestApproveCommand(ctx))
	return requestCmd
}

func newRequestListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List access requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := make([]store.RequestStatus, 0, len(statuses))
			for _, raw := range statuses {
				status := store.RequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
				if !slices.Contains(knownStatuses, status) {
					return fmt.Errorf("unknown request status %q", raw)
				}
				filter = append(filter, status)
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				requests, err := st.ListRequests(commandCtx(cmd), filter...)
				if err != nil {
					return err
				}
				if len(requests) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No requests")
					return nil
				}
				rows := make([][]string, 0, len(requests))
				for _, r := range requests {
					rows = append(rows, []string{
						strconv.FormatInt(r.UserID, 10),
						strconv.FormatInt(r.ChannelID, 10),
						string(r.Status),
						r.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"User", "Channel", "Status", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", []string{string(store.RequestPending)}, "Statuses to include (PENDING, APPROVED, CANCELLED)")
	return cmd
}

func newRequestApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <user-id> <channel-id>",
		Short: "Approve a user for a private channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			channelID, err := parseChatID(args[1])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				outcome, err := ledger.New(st, ctx.logger(cfg)).Approve(commandCtx(cmd), userID, channelID)
				if err != nil {
					return err
				}
				switch {
				case outcome.Channel == nil:
					return fmt.Errorf("channel %d is not a gate channel", channelID)
				case !outcome.Applied:
					return fmt.Errorf("channel %s is public; membership is checked live", outcome.Channel.Label())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved user %d for %s (%s -> %s)\n",
					userID, outcome.Channel.Label(), outcome.From, outcome.To)
				return nil
			})
		},
	}
}
