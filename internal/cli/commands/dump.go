package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/memdb/internal/cli/ui"
	"github.com/conduit-lang/memdb/internal/orm/store"
)

// newDumpCommand creates the dump command
func newDumpCommand(a *app) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write every table after seeding",
		Long: `Write a snapshot of every entity table after seeding the fixture.

Tables map index ids to stored records, the exact shape the query engine
reads. The msgpack format round-trips through the store's snapshot codec.`,
		Example: `  # Print tables as JSON
  memdb dump

  # Write a msgpack snapshot
  memdb dump --format msgpack --output blog.msgpack`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			snapshot := db.Snapshot()
			data, err := encodeSnapshot(snapshot, format)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			ui.WriteSuccess(cmd.ErrOrStderr(),
				fmt.Sprintf("Wrote %d %s to %s", len(snapshot), plural(len(snapshot), "table"), output), a.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or msgpack")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func encodeSnapshot(snapshot store.Snapshot, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return append(data, '\n'), nil
	case "msgpack":
		return store.MarshalSnapshot(snapshot)
	default:
		return nil, fmt.Errorf("unknown dump format %q: expected json or msgpack", format)
	}
}
