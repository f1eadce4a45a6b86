package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var (
		popular int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and audience statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				stats, err := st.Stats(commandCtx(cmd), popular)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}

				p := message.NewPrinter(language.English)
				rows := [][]string{
					{"Titles", p.Sprintf("%d", stats.Titles)},
					{"Episodes", p.Sprintf("%d", stats.Episodes)},
					{"Users", p.Sprintf("%d", stats.Users)},
					{"Active today", p.Sprintf("%d", stats.ActiveToday)},
					{"Active (30 days)", p.Sprintf("%d", stats.ActiveMonth)},
					{"Pending requests", p.Sprintf("%d", stats.PendingRequests)},
					{"Total views", p.Sprintf("%d", stats.TotalViews)},
					{"Admins", p.Sprintf("%d", len(cfg.Telegram.AdminIDs))},
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				if len(stats.Popular) == 0 {
					return nil
				}
				popularRows := make([][]string, 0, len(stats.Popular))
				for i, t := range stats.Popular {
					popularRows = append(popularRows, []string{p.Sprintf("%d", i+1), t.Code, t.Name, p.Sprintf("%d", t.TotalViews)})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Code", "Name", "Views"},
					popularRows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&popular, "popular", 5, "How many popular titles to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
