package builtin

import (
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/resources"
	"github.com/spf13/cobra"
)

// NewCollectionsCommand creates the collections command group.
func NewCollectionsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection"},
		Short:   "Browse collections",
	}

	cmd.AddCommand(newCollectionsListCommand(env))

	return cmd
}

func newCollectionsListCommand(env *Env) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List collections",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collections := resources.NewCollections(env.Session, env.resourceOptions()...)
			limit, err := opts.resolveLimit(collections)
			if err != nil {
				return err
			}
			items := collections.List(cmd.Context(), limit, opts.skip)
			return printList(env, "list collections", items, collections, opts,
				output.Column{Field: "id", Header: "ID"},
				output.Column{Field: "name", Header: "Name"},
				output.Column{Field: "paths", Header: "Paths"},
			)
		},
	}

	addListFlags(cmd, opts)

	return cmd
}
