package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

func newTitleCommand(ctx *commandContext) *cobra.Command {
	titleCmd := &cobra.Command{
		Use:   "title",
		Short: "Inspect and curate catalog titles",
	}

	titleCmd.AddCommand(newTitleListCommand(ctx))
	titleCmd.AddCommand(newTitleShowCommand(ctx))
	titleCmd.AddCommand(newTitleAddCommand(ctx))
	titleCmd.AddCommand(newTitleDeleteCommand(ctx))

	return titleCmd
}

type titleJSON struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Year     int     `json:"year,omitempty"`
	Genre    string  `json:"genre,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Episodes int     `json:"episodes"`
	Views    int64   `json:"views"`
}

func newTitleListCommand(ctx *commandContext) *cobra.Command {
	var (
		query  string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List titles, optionally filtered by a search query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				var (
					titles []store.TitleSummary
					err    error
				)
				if strings.TrimSpace(query) != "" {
					titles, err = st.Search(commandCtx(cmd), query, limit)
				} else {
					titles, err = st.ListTitles(commandCtx(cmd), limit, 0)
				}
				if err != nil {
					return err
				}

				if asJSON {
					out := make([]titleJSON, 0, len(titles))
					for _, t := range titles {
						out = append(out, titleJSON{
							Code: t.Code, Name: t.Name, Year: t.ReleaseYear, Genre: t.Genre,
							Rating: t.Rating, Episodes: t.EpisodeCount, Views: t.TotalViews,
						})
					}
					return writeJSON(cmd, out)
				}

				if len(titles) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No titles")
					return nil
				}
				rows := make([][]string, 0, len(titles))
				for _, t := range titles {
					rows = append(rows, []string{
						t.Code, t.Name, yearLabel(t.ReleaseYear), strconv.Itoa(t.EpisodeCount), strconv.FormatInt(t.TotalViews, 10),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Code", "Name", "Year", "Episodes", "Views"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search by name or code")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum titles to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newTitleShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <code>",
		Short: "Show a title with its episodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				title, err := st.GetTitleSummary(commandCtx(cmd), args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("title %s not found", store.NormalizeCode(args[0]))
				}
				if err != nil {
					return err
				}
				episodes, err := st.ListEpisodes(commandCtx(cmd), title.Code)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Code:     %s\n", title.Code)
				fmt.Fprintf(out, "Name:     %s\n", title.Name)
				if title.ReleaseYear > 0 {
					fmt.Fprintf(out, "Year:     %d\n", title.ReleaseYear)
				}
				if title.Genre != "" {
					fmt.Fprintf(out, "Genre:    %s\n", title.Genre)
				}
				if title.Rating > 0 {
					fmt.Fprintf(out, "Rating:   %s/10\n", strconv.FormatFloat(title.Rating, 'f', -1, 64))
				}
				fmt.Fprintf(out, "Views:    %d\n", title.TotalViews)
				if title.Description != "" {
					fmt.Fprintf(out, "\n%s\n", title.Description)
				}
				if len(episodes) == 0 {
					fmt.Fprintln(out, "\nNo episodes")
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderEpisodes(episodes))
				return nil
			})
		},
	}
}

func newTitleAddCommand(ctx *commandContext) *cobra.Command {
	var title store.Title
	cmd := &cobra.Command{
		Use:   "add <code> <name>",
		Short: "Create or update a title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title.Code = args[0]
			title.Name = args[1]
			return ctx.withCatalog(func(_ *config.Config, st catalogWriter) error {
				saved, err := st.AddTitle(commandCtx(cmd), title)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved title %s (%s)\n", saved.Code, saved.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title.Description, "description", "", "Title description")
	cmd.Flags().IntVar(&title.ReleaseYear, "year", 0, "Release year")
	cmd.Flags().StringVar(&title.Genre, "genre", "", "Genre")
	cmd.Flags().Float64Var(&title.Rating, "rating", 0, "Rating out of 10")
	cmd.Flags().StringVar(&title.PosterRef, "poster", "", "Poster file id")
	return cmd
}

func newTitleDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete a title and all of its episodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(func(_ *config.Config, st catalogWriter) error {
				code := store.NormalizeCode(args[0])
				if err := st.DeleteTitle(commandCtx(cmd), code); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("title %s not found", code)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted title %s\n", code)
				return nil
			})
		},
	}
}

func yearLabel(year int) string {
	if year <= 0 {
		return "-"
	}
	return strconv.Itoa(year)
}
