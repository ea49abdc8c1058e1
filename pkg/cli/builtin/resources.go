package builtin

import (
	"fmt"

	"github.com/openzim/cmsctl/pkg/api"
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/resources"
	"github.com/openzim/cmsctl/pkg/state"
	"github.com/spf13/cobra"
)

// Names of the recent value lists offered for completion.
const (
	recentTitles        = "titles"
	recentBooks         = "books"
	recentNotifications = "notifications"
)

// pager is the pagination side of a resource fetcher.
type pager interface {
	Errors() []string
	Paginator() api.Paginator
	DefaultLimit() int
	SavePaginatorLimit(limit int) error
}

type listOptions struct {
	limit     int
	skip      int
	where     string
	saveLimit bool
}

func addListFlags(cmd *cobra.Command, opts *listOptions) {
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Number of records per page (defaults to the remembered page size)")
	cmd.Flags().IntVar(&opts.skip, "skip", 0, "Number of records to skip")
	cmd.Flags().StringVar(&opts.where, "where", "", "Keep only the records matching an expression, e.g. 'has_error == true'")
	cmd.Flags().BoolVar(&opts.saveLimit, "save-limit", false, "Remember --limit as the page size of this table")
	_ = cmd.RegisterFlagCompletionFunc("where", NoFileCompletion())
}

// resolveLimit returns the page size to request, persisting it when asked to.
func (o *listOptions) resolveLimit(p pager) (int, error) {
	if o.limit < 0 {
		return 0, fmt.Errorf("--limit must be positive")
	}
	if o.skip < 0 {
		return 0, fmt.Errorf("--skip must be positive")
	}
	if o.limit == 0 {
		return p.DefaultLimit(), nil
	}
	if o.saveLimit {
		if err := p.SavePaginatorLimit(o.limit); err != nil {
			return 0, fmt.Errorf("failed to save page size: %w", err)
		}
	}
	return o.limit, nil
}

// resourceOptions builds the fetcher options shared by all commands.
func (e *Env) resourceOptions() []resources.Option {
	opts := []resources.Option{
		resources.WithLimitStore(e.State),
		resources.WithLogger(e.Logger),
	}
	if e.Cache != nil {
		opts = append(opts, resources.WithCache(e.Cache))
	}
	return opts
}

// printList filters a fetched page and prints it with a pagination footer.
// A nil page means the fetch failed.
func printList[T any](env *Env, op string, items []T, p pager, opts *listOptions, columns ...output.Column) error {
	if items == nil {
		return failure(op, p.Errors())
	}

	filter, err := output.NewFilter(opts.where)
	if err != nil {
		return err
	}
	filtered, err := filter.Apply(items)
	if err != nil {
		return err
	}

	cfg := env.Output.Config().WithColumns(columns...)
	if footer := pageFooter(p.Paginator(), len(items)); footer != "" {
		cfg = cfg.WithFooter(footer)
	}
	return env.print(filtered, cfg)
}

// pageFooter describes the page position, e.g. "Showing 21-40 of 75".
func pageFooter(p api.Paginator, fetched int) string {
	if fetched == 0 || p.Count == 0 {
		return ""
	}
	footer := fmt.Sprintf("Showing %d-%d of %d", p.Skip+1, p.Skip+fetched, p.Count)
	if p.HasMore() {
		footer += fmt.Sprintf(" (next page: --skip %d)", p.NextSkip())
	}
	return footer
}

// remember records a recently used value for completion.
func (e *Env) remember(list, value string) {
	e.State.AddRecentValue(list, value)
	if err := e.State.Save(); err != nil {
		e.Logger.Debug().Err(err).Msg("failed to save recent values")
	}
}

// recentCompletion completes positional arguments from a recent value list.
func recentCompletion(env *Env, list string) CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		mgr := env.State
		if mgr == nil {
			// Completion requests skip the pre-run hook that loads the state.
			var err error
			if mgr, err = state.NewManager(env.CLIName); err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
		}
		return mgr.RecentValues(list), cobra.ShellCompDirectiveNoFileComp
	}
}

// optionalBool returns the value of a bool flag only when it was set.
func optionalBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return nil
	}
	return &v
}

// optionalString returns the value of a string flag only when it was set.
func optionalString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil
	}
	return &v
}
