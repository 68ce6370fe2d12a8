package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankfeed/internal/config"
	"github.com/cleared-dev/bankfeed/internal/export"
	"github.com/cleared-dev/bankfeed/internal/store"
)

func newLoadCommand(g *globalFlags) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "load <normalized.json|normalized.csv>...",
		Short: "Save previously exported normalized files into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db-path") {
				cfg.Store.Driver = config.DriverSQLite
				cfg.Store.Path = dbPath
			}

			ctx := cmd.Context()
			gw, err := store.Open(ctx, cfg)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer gw.Close()

			out := cmd.OutOrStdout()
			var total store.SaveResult
			for _, path := range args {
				txns, err := export.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := gw.SaveMany(ctx, txns)
				if err != nil {
					return fmt.Errorf("saving %s: %w", path, err)
				}
				total.Add(res)
				fmt.Fprintf(out, "%s: saved %d, skipped %d\n", path, res.Inserted, res.Duplicates)
			}

			count, err := gw.Count(ctx, store.Filter{})
			if err != nil {
				return fmt.Errorf("counting transactions: %w", err)
			}
			fmt.Fprintf(out, "Saved: %d transactions\n", total.Inserted)
			fmt.Fprintf(out, "Skipped (duplicates): %d transactions\n", total.Duplicates)
			fmt.Fprintf(out, "Total in store: %d\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db-path", "", "sqlite database path (implies the sqlite store)")

	return cmd
}
