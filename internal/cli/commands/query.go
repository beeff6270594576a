package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/memdb/internal/cli/ui"
	"github.com/conduit-lang/memdb/internal/orm/query"
	"github.com/conduit-lang/memdb/internal/web/params"
)

type queryOptions struct {
	where  []string
	ids    []string
	with   []string
	order  []string
	has    []string
	offset int
	limit  int
	all    bool
	format string
}

// newQueryCommand creates the query command
func newQueryCommand(a *app) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <entity>",
		Short: "Query the records of an entity",
		Long: `Query the records of an entity after seeding the fixture.

Where values are decoded as JSON when possible, so age=30 compares numbers,
id=[1,2] matches either id and name=null matches missing names. Sort keys
prefixed with "-" sort descending.`,
		Example: `  # Every user
  memdb query users

  # Filter, sort and page
  memdb query users --where age=30 --order -name --limit 10

  # Look records up by primary key, composite keys as JSON arrays
  memdb query role_user --id '[1,2]'

  # Eager load nested relations and print JSON
  memdb query users --with posts.comments --with roles --format json

  # Only users with at least one post
  memdb query users --has posts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			entity, err := db.Registry().Entity(args[0])
			if err != nil {
				return err
			}
			spec, err := opts.spec()
			if err != nil {
				return err
			}
			if err := spec.Validate(entity); err != nil {
				return err
			}

			models, err := db.Get(cmd.Context(), entity.Name, func(q *query.Query) {
				opts.apply(q, spec, db.RecursiveDepth())
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(out, models)
			}
			ui.ModelTable(out, models, a.noColor).Render()
			fmt.Fprintf(cmd.ErrOrStderr(), "\n%d %s\n", len(models), plural(len(models), "record"))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.where, "where", nil, "Filter as field=value (repeatable, all must match)")
	flags.StringArrayVar(&opts.ids, "id", nil, "Primary key to look up (repeatable)")
	flags.StringArrayVar(&opts.with, "with", nil, "Relation path to eager load (repeatable, supports a.b, a|b and *)")
	flags.StringSliceVar(&opts.order, "order", nil, "Sort keys, '-' prefix for descending")
	flags.StringArrayVar(&opts.has, "has", nil, "Keep records with at least one related record (repeatable)")
	flags.IntVar(&opts.offset, "offset", 0, "Skip the first n records")
	flags.IntVar(&opts.limit, "limit", 0, "Return at most n records")
	flags.BoolVar(&opts.all, "all", false, "Eager load every relation to the configured recursive depth")
	flags.StringVar(&opts.format, "format", "table", "Output format: json or table")

	return cmd
}

func (o *queryOptions) spec() (*params.Spec, error) {
	filter, err := params.ParseAssignments(o.where)
	if err != nil {
		return nil, err
	}
	if o.offset < 0 || o.limit < 0 {
		return nil, fmt.Errorf("offset and limit must not be negative: %w", params.ErrInvalidParam)
	}
	return &params.Spec{
		Include: o.with,
		Filter:  filter,
		Sort:    o.order,
		Has:     o.has,
		Offset:  o.offset,
		Limit:   o.limit,
	}, nil
}

func (o *queryOptions) apply(q *query.Query, spec *params.Spec, depth int) {
	switch len(o.ids) {
	case 0:
	case 1:
		q.WhereID(params.ParseValue(o.ids[0]))
	default:
		ids := make([]interface{}, len(o.ids))
		for i, raw := range o.ids {
			ids[i] = params.ParseValue(raw)
		}
		q.WhereIDIn(ids)
	}

	spec.Apply(q)
	if o.all {
		q.WithAllRecursive(depth)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

