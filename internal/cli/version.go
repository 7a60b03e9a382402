package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockpile/pkg/stockpile"
)

const modulePath = "github.com/mesh-intelligence/stockpile"

// revision is set at link time by mage build.
var revision string

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stockpile version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version":  stockpile.Version,
					"module":   modulePath,
					"revision": revision,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stockpile v%s\nmodule: %s\n", stockpile.Version, modulePath)
			if revision != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "revision: %s\n", revision)
			}
			return nil
		},
	}
}
