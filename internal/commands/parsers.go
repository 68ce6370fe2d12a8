package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankfeed/internal/importer"
)

func newParsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parsers",
		Short: "List available parsers in detection order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printParsers(cmd.OutOrStdout(), importer.DefaultRegistry())
			return nil
		},
	}
}

func printParsers(out io.Writer, reg *importer.Registry) {
	fmt.Fprintln(out, "Available parsers:")
	for _, p := range reg.Parsers() {
		fmt.Fprintf(out, "  - %s: %s\n", p.Format(), p.Description())
	}
}
