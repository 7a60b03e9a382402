package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stockpile/pkg/types"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

type listEntry struct {
	Name      string            `json:"name"`
	Container types.ContainerID `json:"container_id"`
	Entries   int               `json:"entries"`
	SavedAt   string            `json:"saved_at"`
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.close()

	names, err := e.store.List()
	if err != nil {
		return sysError("list snapshots: %w", err)
	}
	out := make([]listEntry, 0, len(names))
	for _, name := range names {
		snap, err := e.store.Load(name)
		if err != nil {
			return sysError("load %q: %w", name, err)
		}
		out = append(out, listEntry{
			Name:      name,
			Container: snap.ContainerID,
			Entries:   len(snap.Entries),
			SavedAt:   snap.SavedAt.Format(time.RFC3339),
		})
	}

	w := cmd.OutOrStdout()
	if flags.jsonMode {
		return writeJSON(w, out)
	}
	if len(out) == 0 {
		fmt.Fprintln(w, "no snapshots")
		return nil
	}
	for _, le := range out {
		fmt.Fprintf(w, "%-24s %3d entries  %s\n", le.Name, le.Entries, le.SavedAt)
	}
	return nil
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			name := args[0]
			if err := e.store.Delete(name); err != nil {
				if errors.Is(err, types.ErrSnapshotNotFound) {
					return userError("%w", err)
				}
				return sysError("delete %q: %w", name, err)
			}
			if flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": name})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			return nil
		},
	}
}
