package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankfeed/internal/ingestlog"
	"github.com/cleared-dev/bankfeed/internal/model"
	"github.com/cleared-dev/bankfeed/internal/store"
)

type statsFlags struct {
	from string
	to   string
	bank string
}

func newStatsCommand(g *globalFlags) *cobra.Command {
	f := &statsFlags{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show transaction counts in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			filter, err := f.filter()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			gw, err := store.Open(ctx, cfg)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer gw.Close()

			total, err := gw.Count(ctx, filter)
			if err != nil {
				return fmt.Errorf("counting transactions: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total transactions: %d\n", total)

			banks := []string{filter.Bank}
			if filter.Bank == "" {
				if banks, err = gw.DistinctValues(ctx, "bank_source"); err != nil {
					return fmt.Errorf("listing banks: %w", err)
				}
			}
			for _, b := range banks {
				bf := filter
				bf.Bank = b
				n, err := gw.Count(ctx, bf)
				if err != nil {
					return fmt.Errorf("counting %s: %w", b, err)
				}
				fmt.Fprintf(out, "  %s: %d\n", b, n)
			}

			accounts, err := gw.DistinctValues(ctx, "account_id")
			if err != nil {
				return fmt.Errorf("listing accounts: %w", err)
			}
			fmt.Fprintf(out, "Accounts: %d\n", len(accounts))

			return printIngestSummary(out, cfg.Watch.DataDir)
		},
	}

	cmd.Flags().StringVar(&f.from, "from", "", "only count transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "only count transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.bank, "bank", "", "only count this bank")

	return cmd
}

func (f *statsFlags) filter() (store.Filter, error) {
	filter := store.Filter{Bank: f.bank}
	for _, d := range []struct {
		raw  string
		dst  *time.Time
		name string
	}{{f.from, &filter.From, "--from"}, {f.to, &filter.To, "--to"}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse(model.DateFormat, d.raw)
		if err != nil {
			return store.Filter{}, fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = t
	}
	return filter, nil
}

// printIngestSummary reports watcher outcomes from the ingest log, if any.
func printIngestSummary(out io.Writer, dataDir string) error {
	entries, err := ingestlog.Read(dataDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	var processed, failed int
	for _, e := range entries {
		if e.Status == ingestlog.StatusProcessed {
			processed++
		} else {
			failed++
		}
	}
	last := entries[len(entries)-1]
	fmt.Fprintf(out, "Ingested files: %d processed, %d failed\n", processed, failed)
	fmt.Fprintf(out, "Last ingest: %s %s (%s)\n", last.Timestamp.Format(time.RFC3339), last.File, last.Status)
	return nil
}
