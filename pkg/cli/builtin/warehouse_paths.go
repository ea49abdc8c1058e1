package builtin

import (
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/resources"
	"github.com/spf13/cobra"
)

// NewWarehousePathsCommand creates the warehouse-paths command group.
func NewWarehousePathsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "warehouse-paths",
		Aliases: []string{"warehouses"},
		Short:   "Browse the warehouse folders books can be moved to",
	}

	cmd.AddCommand(newWarehousePathsListCommand(env))

	return cmd
}

func newWarehousePathsListCommand(env *Env) *cobra.Command {
	var (
		where   string
		devOnly bool
		choices bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List warehouse paths",
		Long: `List the warehouse folders books can be moved to.

Paths rarely change and are kept in the response cache for cache.ttl;
--refresh fetches them again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resources.NewWarehousePaths(env.Session, env.resourceOptions()...)
			var items []resources.WarehousePath
			if refresh {
				items = paths.Refresh(cmd.Context())
			} else {
				items = paths.List(cmd.Context())
			}
			if items == nil {
				return failure("list warehouse paths", paths.Errors())
			}

			if devOnly {
				dev := paths.DefaultDevPath()
				if dev == nil {
					return failure("find dev path", []string{"no warehouse has a " + resources.DevFolder + " folder"})
				}
				items = []resources.WarehousePath{*dev}
			}

			if choices {
				return env.print(paths.Options(), env.Output.Config().WithColumns(
					output.Column{Field: "value", Header: "ID"},
					output.Column{Field: "display_text", Header: "Path"},
				))
			}

			filter, err := output.NewFilter(where)
			if err != nil {
				return err
			}
			filtered, err := filter.Apply(items)
			if err != nil {
				return err
			}

			return env.print(filtered, env.Output.Config().WithColumns(
				output.Column{Field: "path_id", Header: "ID"},
				output.Column{Field: "warehouse_name", Header: "Warehouse"},
				output.Column{Field: "folder_name", Header: "Folder"},
			))
		},
	}

	cmd.Flags().StringVar(&where, "where", "", "Keep only the paths matching an expression")
	cmd.Flags().BoolVar(&devOnly, "dev", false, "Show only the default development path")
	cmd.Flags().BoolVar(&choices, "choices", false, "Show the paths as \"warehouse: folder\" choices")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the response cache")

	return cmd
}
