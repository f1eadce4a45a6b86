package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:   "episode",
		Short: "Inspect and add title episodes",
	}
	episodeCmd.AddCommand(newEpisodeListCommand(ctx))
	episodeCmd.AddCommand(newEpisodeAddCommand(ctx))
	return episodeCmd
}

func newEpisodeListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <code>",
		Short: "List the episodes of a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				episodes, err := st.ListEpisodes(commandCtx(cmd), args[0])
				if err != nil {
					return err
				}
				if len(episodes) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No episodes for %s\n", store.NormalizeCode(args[0]))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEpisodes(episodes))
				return nil
			})
		},
	}
}

func newEpisodeAddCommand(ctx *commandContext) *cobra.Command {
	var episode store.Episode
	cmd := &cobra.Command{
		Use:   "add <code> <index> <file-id>",
		Short: "Add or replace an episode of an existing title",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil || index <= 0 {
				return fmt.Errorf("episode index must be a positive number, got %q", args[1])
			}
			episode.TitleCode = args[0]
			episode.Index = index
			episode.ContentRef = args[2]
			return ctx.withCatalog(func(_ *config.Config, st catalogWriter) error {
				saved, err := st.AddEpisode(commandCtx(cmd), episode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s episode %d\n", saved.TitleCode, saved.Index)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&episode.Caption, "caption", "", "Episode caption")
	cmd.Flags().IntVar(&episode.DurationSeconds, "duration", 0, "Duration in seconds")
	return cmd
}

func renderEpisodes(episodes []store.Episode) string {
	rows := make([][]string, 0, len(episodes))
	for _, e := range episodes {
		duration := "-"
		if e.DurationSeconds > 0 {
			duration = (time.Duration(e.DurationSeconds) * time.Second).String()
		}
		rows = append(rows, []string{
			strconv.Itoa(e.Index), e.ContentRef, duration, strconv.FormatInt(e.Views, 10), e.Caption,
		})
	}
	return renderTable(
		[]string{"#", "File ID", "Duration", "Views", "Caption"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
	)
}
