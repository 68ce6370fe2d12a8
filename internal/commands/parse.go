package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankfeed/internal/config"
	"github.com/cleared-dev/bankfeed/internal/export"
	"github.com/cleared-dev/bankfeed/internal/importer"
	"github.com/cleared-dev/bankfeed/internal/model"
	"github.com/cleared-dev/bankfeed/internal/store"
)

const (
	normalizedSuffix = "_normalized"
	combinedPrefix   = "all_transactions_"
	stampLayout      = "20060102_150405"
)

type parseFlags struct {
	outputDir    string
	format       string
	parser       string
	recursive    bool
	listParsers  bool
	saveToDB     bool
	dbPath       string
	noFileOutput bool
}

func newParseCommand(g *globalFlags) *cobra.Command {
	f := &parseFlags{}

	cmd := &cobra.Command{
		Use:   "parse <file-or-directory>",
		Short: "Parse bank CSV files into normalized JSON/CSV and optionally the store",
		Example: `  bankfeed parse exports/westpac/Data_export.csv
  bankfeed parse exports/ --recursive
  bankfeed parse exports/ -r --save-to-db --no-file-output`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := g.registry()
			if f.listParsers {
				printParsers(cmd.OutOrStdout(), reg)
				return nil
			}
			if len(args) == 0 {
				return errors.New("an input file or directory is required")
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}
			return runParse(cmd.Context(), cmd.OutOrStdout(), cfg, reg, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "output directory (default from config: output/normalized)")
	flags.StringVarP(&f.format, "output-format", "f", "", "output format: json, csv or both")
	flags.BoolVarP(&f.recursive, "recursive", "r", false, "descend into subdirectories")
	flags.StringVarP(&f.parser, "parser", "p", "", "force a parser, e.g. westpac or anz")
	flags.BoolVar(&f.listParsers, "list-parsers", false, "list available parsers and exit")
	flags.BoolVar(&f.saveToDB, "save-to-db", false, "save parsed transactions to the store")
	flags.StringVar(&f.dbPath, "db-path", "", "sqlite database path (implies the sqlite store)")
	flags.BoolVar(&f.noFileOutput, "no-file-output", false, "skip file output (use with --save-to-db)")

	return cmd
}

func (f *parseFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	if flags.Changed("output-format") {
		switch f.format {
		case config.FormatJSON, config.FormatCSV, config.FormatBoth:
			cfg.Output.Format = f.format
		default:
			return fmt.Errorf("invalid --output-format %q (want json, csv or both)", f.format)
		}
	}
	if f.noFileOutput {
		cfg.Output.Format = config.FormatNone
	}
	if flags.Changed("db-path") {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = f.dbPath
	}
	return nil
}

func runParse(ctx context.Context, out io.Writer, cfg *config.Config, reg *importer.Registry, input string, f *parseFlags) error {
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input path does not exist: %s", input)
	}

	exportedAt := time.Now()
	save := func(dir, base string, txns []model.Transaction) error {
		paths, err := export.SaveFiles(dir, base, cfg.Output.Format, txns, exportedAt)
		for _, p := range paths {
			fmt.Fprintf(out, "  Saved: %s\n", p)
		}
		return err
	}

	var all []model.Transaction
	if !info.IsDir() {
		batch, err := reg.ParseFile(ctx, input, f.parser)
		if err != nil {
			return err
		}
		all = batch.Transactions
		if len(all) > 0 {
			if err := save(cfg.Output.Dir, stem(input)+normalizedSuffix, all); err != nil {
				return err
			}
		}
	} else {
		results, err := reg.ParseDirectory(ctx, input, f.recursive, f.parser)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Found %d CSV files\n", len(results))

		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(out, "  Warning: %v\n", r.Err)
				continue
			}
			if len(r.Batch.Transactions) == 0 {
				continue
			}
			all = append(all, r.Batch.Transactions...)

			rel, err := filepath.Rel(input, filepath.Dir(r.Path))
			if err != nil {
				rel = "."
			}
			if err := save(filepath.Join(cfg.Output.Dir, rel), stem(r.Path)+normalizedSuffix, r.Batch.Transactions); err != nil {
				return err
			}
		}

		if len(all) > 0 {
			if err := save(cfg.Output.Dir, combinedPrefix+exportedAt.Format(stampLayout), all); err != nil {
				return err
			}
		}
	}

	if f.saveToDB && len(all) > 0 {
		if err := saveToStore(ctx, out, cfg, all); err != nil {
			return err
		}
	}

	printSummary(out, all)
	return nil
}

func saveToStore(ctx context.Context, out io.Writer, cfg *config.Config, txns []model.Transaction) error {
	gw, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer gw.Close()

	target := cfg.Store.Driver
	if target == config.DriverSQLite {
		target = cfg.SQLitePath()
	}
	fmt.Fprintf(out, "\nSaving to store: %s\n", target)

	res, err := gw.SaveMany(ctx, txns)
	if err != nil {
		return fmt.Errorf("saving transactions: %w", err)
	}
	total, err := gw.Count(ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("counting transactions: %w", err)
	}

	fmt.Fprintf(out, "  Saved: %d transactions\n", res.Inserted)
	fmt.Fprintf(out, "  Skipped (duplicates): %d transactions\n", res.Duplicates)
	fmt.Fprintf(out, "  Total in store: %d\n", total)
	return nil
}

func printSummary(out io.Writer, txns []model.Transaction) {
	fmt.Fprintf(out, "\nTotal transactions parsed: %d\n", len(txns))

	byBank := make(map[string]int)
	for _, t := range txns {
		byBank[t.BankSource]++
	}
	banks := make([]string, 0, len(byBank))
	for b := range byBank {
		banks = append(banks, b)
	}
	sort.Strings(banks)
	for _, b := range banks {
		fmt.Fprintf(out, "  %s: %d transactions\n", b, byBank[b])
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
