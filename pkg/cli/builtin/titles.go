package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/openzim/cmsctl/pkg/cli/interactive"
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/resources"
	"github.com/spf13/cobra"
)

// Maturity values accepted by the CMS.
var titleMaturities = []string{"dev", "robust"}

var titleColumns = []output.Column{
	{Field: "id", Header: "ID"},
	{Field: "name", Header: "Name"},
	{Field: "maturity", Header: "Maturity"},
}

// NewTitlesCommand creates the titles command group.
func NewTitlesCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "titles",
		Aliases: []string{"title"},
		Short:   "Browse and create titles",
	}

	cmd.AddCommand(newTitlesListCommand(env))
	cmd.AddCommand(newTitlesGetCommand(env))
	cmd.AddCommand(newTitlesCreateCommand(env))

	return cmd
}

func newTitlesListCommand(env *Env) *cobra.Command {
	opts := &listOptions{}
	var name string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List titles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			titles := resources.NewTitles(env.Session, env.resourceOptions()...)
			limit, err := opts.resolveLimit(titles)
			if err != nil {
				return err
			}
			items := titles.List(cmd.Context(), limit, opts.skip, name)
			return printList(env, "list titles", items, titles, opts, titleColumns...)
		},
	}

	addListFlags(cmd, opts)
	cmd.Flags().StringVar(&name, "name", "", "Only titles whose name contains this text")

	return cmd
}

func newTitlesGetCommand(env *Env) *cobra.Command {
	var byID bool

	cmd := &cobra.Command{
		Use:               "get <name>",
		Short:             "Show a title with its books and collections",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: recentCompletion(env, recentTitles),
		RunE: func(cmd *cobra.Command, args []string) error {
			titles := resources.NewTitles(env.Session, env.resourceOptions()...)

			var title *resources.Title
			if byID {
				title = titles.FetchByID(cmd.Context(), args[0], true)
			} else {
				title = titles.Fetch(cmd.Context(), args[0], true)
			}
			if title == nil {
				if isNotFound(titles.Errors()) {
					return fmt.Errorf("%s", output.RenderNotFound("Title", args[0]))
				}
				return failure("get title", titles.Errors())
			}

			env.remember(recentTitles, title.Name)
			return env.print(title, env.Output.Config().WithColumns(
				output.Column{Field: "id", Header: "ID"},
				output.Column{Field: "name", Header: "Name"},
				output.Column{Field: "maturity", Header: "Maturity"},
				output.Column{Field: "books", Header: "Books"},
				output.Column{Field: "collections", Header: "Collections"},
				output.Column{Field: "events", Header: "Events"},
			))
		},
	}

	cmd.Flags().BoolVar(&byID, "id", false, "Treat the argument as a title ID")

	return cmd
}

type titleCreateOptions struct {
	maturity string
}

func newTitlesCreateCommand(env *Env) *cobra.Command {
	opts := &titleCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a title",
		Long: `Create a title. Creating titles requires the title create permission.

The name is prompted for when it is not given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return runTitlesCreate(cmd.Context(), env, name, opts)
		},
	}

	cmd.Flags().StringVar(&opts.maturity, "maturity", "", "Maturity of the title (dev, robust)")
	_ = cmd.RegisterFlagCompletionFunc("maturity", FixedCompletion(titleMaturities...))

	return cmd
}

func runTitlesCreate(ctx context.Context, env *Env, name string, opts *titleCreateOptions) error {
	if name == "" {
		var err error
		name, err = env.Prompter.Text(&interactive.TextPromptOptions{Message: "Title name", Required: true})
		if err != nil {
			return err
		}
	}

	if opts.maturity != "" && !contains(titleMaturities, opts.maturity) {
		return fmt.Errorf("invalid maturity %q (must be one of %v)", opts.maturity, titleMaturities)
	}

	titles := resources.NewTitles(env.Session, env.resourceOptions()...)
	created, err := titles.Create(ctx, resources.TitleCreate{Name: name, Maturity: opts.maturity})
	if err != nil {
		return failure("create title", titles.Errors())
	}

	env.remember(recentTitles, created.Name)
	if env.Format == "table" || env.Format == "" {
		env.message("%s", output.RenderCreated("Title", created.Name, created.ID))
		return nil
	}
	return env.print(created, nil)
}

// isNotFound reports whether translated messages describe a missing record.
func isNotFound(msgs []string) bool {
	for _, msg := range msgs {
		if strings.HasSuffix(strings.ToLower(msg), "not found") {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
