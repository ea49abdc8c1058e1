package builtin

import (
	"github.com/openzim/cmsctl/pkg/cache"
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
		Long: `Manage the on-disk cache of rarely changing responses, such as the
warehouse paths.

Available subcommands:
  info  - Show the cache location and content
  clear - Remove cached responses`,
	}

	cmd.AddCommand(newCacheInfoCommand(env))
	cmd.AddCommand(newCacheClearCommand(env))

	return cmd
}

// cacheStore returns the session cache, or opens the cache directory when
// it is disabled or not yet built.
func (e *Env) cacheStore() (*cache.Store, error) {
	if e.Cache != nil {
		return e.Cache, nil
	}
	ttl := cache.DefaultTTL
	if e.Config != nil {
		ttl = e.Config.Cache.TTL
	}
	return cache.New(e.CLIName, ttl)
}

func newCacheInfoCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the cache location and content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := env.cacheStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats()
			if err != nil {
				return err
			}
			return env.print(stats, env.Output.Config().WithColumns(
				output.Column{Field: "dir", Header: "Directory"},
				output.Column{Field: "entries", Header: "Entries"},
				output.Column{Field: "expired", Header: "Expired"},
				output.Column{Field: "size", Header: "Size"},
			))
		},
	}
}

func newCacheClearCommand(env *Env) *cobra.Command {
	var expiredOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := env.cacheStore()
			if err != nil {
				return err
			}

			var removed int
			if expiredOnly {
				removed, err = store.Prune()
			} else {
				removed, err = store.Clear()
			}
			if err != nil {
				return err
			}

			env.message("Removed %d cached responses", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "Remove only the expired responses")

	return cmd
}
