package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankfeed/internal/buildinfo"
	"github.com/cleared-dev/bankfeed/internal/config"
	"github.com/cleared-dev/bankfeed/internal/importer"
	"github.com/cleared-dev/bankfeed/internal/logger"
)

type globalFlags struct {
	configPath string
	envFile    string
	verbose    bool
	logJSON    bool
	accountID  string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "bankfeed",
		Short:   "Normalize bank CSV exports into a transaction store",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			log := logger.New(cmd.ErrOrStderr(), g.verbose)
			if g.logJSON {
				log = logger.NewJSON(cmd.ErrOrStderr()).Level(log.GetLevel())
			}
			cmd.SetContext(logger.WithContext(ctx, log))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", config.FileName, "config file")
	pf.StringVar(&g.envFile, "env-file", "", "env file to load (default ./.env if present)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVar(&g.logJSON, "log-json", false, "write structured JSON logs to stderr")
	pf.StringVar(&g.accountID, "account-id", "", "account id for dialects without one in the file")

	rootCmd.AddCommand(
		newInitCommand(),
		newWatchCommand(g),
		newParseCommand(g),
		newLoadCommand(g),
		newParsersCommand(),
		newStatsCommand(g),
	)

	return rootCmd
}

func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Resolve(g.configPath, g.envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func (g *globalFlags) registry() *importer.Registry {
	return importer.DefaultRegistryWithOptions(importer.Options{AccountID: g.accountID})
}
