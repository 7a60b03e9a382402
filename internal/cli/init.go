package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockpile/internal/paths"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize stockpile configuration and storage",
		Long:  "Create the configuration directory with a default config.yaml, then initialize the snapshot store.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ConfigDir(flags.configDir)
	if err != nil {
		return sysError("resolve config dir: %w", err)
	}
	written, err := writeConfigIfMissing(configDir, flags.dataDir)
	if err != nil {
		return sysError("write config: %w", err)
	}

	e, err := openEngine()
	if err != nil {
		return err
	}
	if err := e.close(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.jsonMode {
		return writeJSON(out, map[string]any{
			"config_dir":     configDir,
			"data_dir":       e.cfg.DataDir,
			"backend":        e.cfg.Backend,
			"config_written": written,
		})
	}
	fmt.Fprintf(out, "Stockpile initialized (%s store in %s)\n", e.cfg.Backend, e.cfg.DataDir)
	return nil
}
