package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/memdb/internal/cli/ui"
	"github.com/conduit-lang/memdb/internal/orm/database"
)

// newInspectCommand creates the inspect command
func newInspectCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect [entity]",
		Short: "Show registered entities and their relations",
		Long: `Show the entities declared by the fixture.

Without arguments inspect lists every entity with its key, record count and
relations, followed by the dependency order used when seeding. With an entity
name it shows that entity's fields and resolved relation keys.`,
		Example: `  # List all entities
  memdb inspect --fixture blog.yaml

  # Show one entity
  memdb inspect users

  # Output in JSON format for tooling
  memdb inspect users --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				info, err := db.DescribeEntity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if format == "json" {
					return writeJSON(out, info)
				}
				renderEntity(out, info, a.noColor)
				return nil
			}

			infos, err := db.Describe(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(out, infos)
			}
			order, err := db.Registry().DependencyOrder()
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.Warning(err.Error(), a.noColor))
			}
			renderEntities(out, infos, order, a.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	return cmd
}

func renderEntities(w io.Writer, infos []database.EntityInfo, order []string, noColor bool) {
	table := ui.NewTable(w, []string{"Entity", "Key", "Base", "Records", "Relations"}, &ui.TableOptions{NoColor: noColor})
	for _, info := range infos {
		table.AddRow(
			info.Name,
			strings.Join(info.PrimaryKey, ", "),
			dash(info.Base),
			strconv.Itoa(info.Records),
			dash(strings.Join(sortedRelations(info), ", ")),
		)
	}
	table.Render()

	if len(order) == 0 {
		return
	}
	fmt.Fprintln(w)
	ui.Header(w, "Dependency order", noColor)
	for i, name := range order {
		fmt.Fprintf(w, "%d. %s\n", i+1, name)
	}
}

func renderEntity(w io.Writer, info database.EntityInfo, noColor bool) {
	ui.Header(w, info.Name, noColor)

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("Primary key", strings.Join(info.PrimaryKey, ", "))
	kv.AddRow("Records", strconv.Itoa(info.Records))
	if info.Base != "" {
		kv.AddRow("Base", info.Base)
	}
	if len(info.Types) > 0 {
		kv.AddRow("Type key", info.TypeKey)
		values := make([]string, 0, len(info.Types))
		for value, entity := range info.Types {
			values = append(values, value+" → "+entity)
		}
		sort.Strings(values)
		kv.AddRow("Types", strings.Join(values, ", "))
	}
	kv.Render()
	fmt.Fprintln(w)

	fields := ui.NewTable(w, []string{"Field", "Kind", "Nullable"}, &ui.TableOptions{NoColor: noColor})
	for _, f := range info.Fields {
		nullable := ""
		if f.Nullable {
			nullable = "yes"
		}
		fields.AddRow(f.Name, f.Kind, nullable)
	}
	fields.Render()

	if len(info.Relations) == 0 {
		return
	}
	fmt.Fprintln(w)

	relations := ui.NewTable(w, []string{"Relation", "Type", "Targets", "Keys"}, &ui.TableOptions{NoColor: noColor})
	for _, name := range sortedRelations(info) {
		rel := info.Relations[name]
		relations.AddRow(name, rel.Type, strings.Join(rel.Targets, ", "), formatKeys(rel.Keys))
	}
	relations.Render()
}

func sortedRelations(info database.EntityInfo) []string {
	names := make([]string, 0, len(info.Relations))
	for name := range info.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatKeys(keys map[string]string) string {
	parts := make([]string, 0, len(keys))
	for k, v := range keys {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
