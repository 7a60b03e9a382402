package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockpile/pkg/stockpile"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

func newExportCmd() *cobra.Command {
	var compression string
	cmd := &cobra.Command{
		Use:   "export <file> [name...]",
		Short: "Export snapshots to a JSONL file",
		Long: `Export writes the named snapshots, or all of them, to a JSONL file with
one snapshot per line. With --compression zstd (or export.compression in
config.yaml) the file is zstd compressed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], args[1:], compression)
		},
	}
	cmd.Flags().StringVar(&compression, "compression", "", "none or zstd (default: export.compression)")
	return cmd
}

func runExport(cmd *cobra.Command, path string, names []string, compression string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	if compression == "" {
		compression = e.cfg.Export.GetCompression()
	}
	if compression != types.CompressionNone && compression != types.CompressionZstd {
		return userError("%w: %q", types.ErrCompressionUnknown, compression)
	}

	if len(names) == 0 {
		if names, err = e.store.List(); err != nil {
			return sysError("list snapshots: %w", err)
		}
	}
	snaps := make([]types.Snapshot, 0, len(names))
	for _, name := range names {
		snap, err := e.store.Load(name)
		if errors.Is(err, types.ErrSnapshotNotFound) {
			return userError("%w", err)
		}
		if err != nil {
			return sysError("load %q: %w", name, err)
		}
		snaps = append(snaps, snap)
	}

	if err := stockpile.Export(path, snaps, compression); err != nil {
		return sysError("export: %w", err)
	}
	e.log.Info("snapshots exported", "file", path, "count", len(snaps), "compression", compression)
	if flags.jsonMode {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"file": path, "exported": names})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d snapshots to %s\n", len(snaps), path)
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import snapshots from a JSONL file",
		Long: `Import reads a file written by export, compressed or not, and saves every
valid snapshot it contains. Snapshots with the same name are replaced.
Malformed lines are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			snaps, err := stockpile.Import(args[0])
			if err != nil {
				return userError("import: %w", err)
			}
			names := make([]string, 0, len(snaps))
			for _, snap := range snaps {
				if err := e.store.Save(snap); err != nil {
					return sysError("save %q: %w", snap.Name, err)
				}
				names = append(names, snap.Name)
			}
			e.log.Info("snapshots imported", "file", args[0], "count", len(names))
			if flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"file": args[0], "imported": names})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d snapshots from %s\n", len(names), args[0])
			return nil
		},
	}
}
