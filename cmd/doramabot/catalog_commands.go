package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hik1komori/life-dorama-bot/internal/cache"
	"github.com/hik1komori/life-dorama-bot/internal/catalogio"
	"github.com/hik1komori/life-dorama-bot/internal/config"
	"github.com/hik1komori/life-dorama-bot/internal/store"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Export and import the catalog as YAML",
	}
	catalogCmd.AddCommand(newCatalogExportCommand(ctx))
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	return catalogCmd
}

func newCatalogExportCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every title and episode as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					file, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create %s: %w", output, err)
					}
					defer file.Close()
					w = file
				}
				result, err := catalogio.Export(commandCtx(cmd), st, w)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d titles, %d episodes\n", result.Titles, result.Episodes)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create or update titles and episodes from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer file.Close()

			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				result, err := catalogio.Import(commandCtx(cmd), st, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d titles, %d episodes\n", result.Titles, result.Episodes)
				return flushCache(cmd, ctx, cfg, st)
			})
		},
	}
}

// flushCache drops cached catalog reads so a running bot sees bulk changes.
func flushCache(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, st *store.Store) error {
	if cfg.Redis.Addr == "" {
		return nil
	}
	r, err := cache.New(cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	cached := cache.NewCachedStore(st, r, cfg.CacheTTL(), ctx.logger(cfg))
	if err := cached.Flush(commandCtx(cmd)); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cache flushed")
	return nil
}
