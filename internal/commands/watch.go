package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankfeed/internal/apperrors"
	"github.com/cleared-dev/bankfeed/internal/config"
	"github.com/cleared-dev/bankfeed/internal/importer"
	"github.com/cleared-dev/bankfeed/internal/logger"
	"github.com/cleared-dev/bankfeed/internal/store"
	"github.com/cleared-dev/bankfeed/internal/watcher"
)

type watchFlags struct {
	watchDir     string
	dataDir      string
	pollInterval string
	parser       string
	once         bool
}

func newWatchCommand(g *globalFlags) *cobra.Command {
	f := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll a directory and import bank CSV files as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			reg := g.registry()
			if cfg.Watch.Parser != "" {
				if _, err := reg.Lookup(cfg.Watch.Parser); err != nil {
					return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
				}
			}
			return runWatch(cmd, reg, cfg, f.once)
		},
	}

	cmd.Flags().StringVarP(&f.watchDir, "watch-dir", "w", "", "directory to watch (env WATCH_DIR)")
	cmd.Flags().StringVarP(&f.dataDir, "data-dir", "d", "", "data directory (env DATA_DIR)")
	cmd.Flags().StringVarP(&f.pollInterval, "poll-interval", "i", "", "seconds or duration between scans (env POLL_INTERVAL)")
	cmd.Flags().StringVarP(&f.parser, "parser", "p", "", "force a parser instead of detecting")
	cmd.Flags().BoolVar(&f.once, "once", false, "scan once and exit")

	return cmd
}

func (f *watchFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("watch-dir") {
		cfg.Watch.Dir = f.watchDir
	}
	if flags.Changed("data-dir") {
		cfg.Watch.DataDir = f.dataDir
	}
	if flags.Changed("parser") {
		cfg.Watch.Parser = f.parser
	}
	if flags.Changed("poll-interval") {
		d, err := config.ParseInterval(f.pollInterval)
		if err != nil {
			return fmt.Errorf("invalid --poll-interval %q: %w", f.pollInterval, err)
		}
		cfg.Watch.PollInterval = d
	}
	return nil
}

func runWatch(cmd *cobra.Command, reg *importer.Registry, cfg *config.Config, once bool) error {
	ctx := cmd.Context()
	log := logger.FromContext(ctx)

	gw, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer gw.Close()

	w, err := watcher.New(watcher.Options{
		WatchDir:     cfg.Watch.Dir,
		DataDir:      cfg.Watch.DataDir,
		PollInterval: cfg.Watch.PollInterval,
		Parser:       cfg.Watch.Parser,
		Pattern:      cfg.Watch.Pattern,
	}, reg, gw)
	if err != nil {
		return err
	}

	log.Info().
		Str("watch_dir", cfg.Watch.Dir).
		Str("data_dir", cfg.Watch.DataDir).
		Str("store", cfg.Store.Driver).
		Dur("poll_interval", cfg.Watch.PollInterval).
		Msg("watcher ready")

	if !once {
		return w.Run(ctx)
	}

	report, err := w.RunOnce(ctx)
	if err != nil {
		return err
	}
	total, err := gw.Count(context.WithoutCancel(ctx), store.Filter{})
	if err != nil {
		return fmt.Errorf("counting transactions: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processed %d file(s), %d failed\n", report.Processed, report.Failed)
	fmt.Fprintf(out, "Saved %d transaction(s), skipped %d duplicate(s)\n", report.Inserted, report.Duplicates)
	fmt.Fprintf(out, "Total transactions in store: %d\n", total)
	return nil
}
