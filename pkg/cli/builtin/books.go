package builtin

import (
	"fmt"
	"sort"

	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/resources"
	"github.com/spf13/cobra"
)

// Book location kinds known to the CMS.
var bookLocationKinds = []string{"quarantine", "staging", "prod", "to_delete", "deleted"}

var bookColumns = []output.Column{
	{Field: "id", Header: "ID"},
	{Field: "name", Header: "Name"},
	{Field: "date", Header: "Date"},
	{Field: "flavour", Header: "Flavour"},
	{Field: "location_kind", Header: "Location"},
	{Field: "needs_processing", Header: "Processing"},
	{Field: "has_error", Header: "Error"},
	{Field: "created_at", Header: "Created"},
}

// NewBooksCommand creates the books command group.
func NewBooksCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "books",
		Aliases: []string{"book"},
		Short:   "Browse books and their ZIM files",
	}

	cmd.AddCommand(newBooksListCommand(env))
	cmd.AddCommand(newBooksGetCommand(env))
	cmd.AddCommand(newBooksZimsCommand(env))

	return cmd
}

type bookListOptions struct {
	listOptions
	locationKinds []string
}

func newBooksListCommand(env *Env) *cobra.Command {
	opts := &bookListOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List books",
		Long: `List books, newest first.

Boolean filters are sent only when given, so --has-error=false lists the
books without error while omitting the flag lists all books.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books := resources.NewBooks(env.Session, env.resourceOptions()...)
			limit, err := opts.resolveLimit(books)
			if err != nil {
				return err
			}

			filter := resources.BookFilter{
				Limit:              limit,
				Skip:               opts.skip,
				ID:                 optionalString(cmd, "id"),
				HasTitle:           optionalBool(cmd, "has-title"),
				LocationKinds:      opts.locationKinds,
				NeedsProcessing:    optionalBool(cmd, "needs-processing"),
				HasError:           optionalBool(cmd, "has-error"),
				NeedsFileOperation: optionalBool(cmd, "needs-file-operation"),
			}
			for _, kind := range filter.LocationKinds {
				if !contains(bookLocationKinds, kind) {
					return fmt.Errorf("invalid location kind %q (must be one of %v)", kind, bookLocationKinds)
				}
			}

			items := books.List(cmd.Context(), filter)
			return printList(env, "list books", items, books, &opts.listOptions, bookColumns...)
		},
	}

	addListFlags(cmd, &opts.listOptions)
	cmd.Flags().String("id", "", "Only books whose ID starts with this text")
	cmd.Flags().Bool("has-title", false, "Only books attached (or not) to a title")
	cmd.Flags().StringSliceVar(&opts.locationKinds, "location", nil, "Only books in these locations (repeatable)")
	cmd.Flags().Bool("needs-processing", false, "Only books waiting (or not) for processing")
	cmd.Flags().Bool("has-error", false, "Only books with (or without) an error")
	cmd.Flags().Bool("needs-file-operation", false, "Only books waiting (or not) for a file operation")
	_ = cmd.RegisterFlagCompletionFunc("location", FixedCompletion(bookLocationKinds...))

	return cmd
}

func newBooksGetCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:               "get <id>",
		Short:             "Show a book with its metadata and locations",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: recentCompletion(env, recentBooks),
		RunE: func(cmd *cobra.Command, args []string) error {
			books := resources.NewBooks(env.Session, env.resourceOptions()...)
			book := books.Fetch(cmd.Context(), args[0], true)
			if book == nil {
				if isNotFound(books.Errors()) {
					return fmt.Errorf("%s", output.RenderNotFound("Book", args[0]))
				}
				return failure("get book", books.Errors())
			}

			env.remember(recentBooks, book.ID)
			return env.print(book, env.Output.Config().WithColumns(
				output.Column{Field: "id", Header: "ID"},
				output.Column{Field: "name", Header: "Name"},
				output.Column{Field: "title_id", Header: "Title ID"},
				output.Column{Field: "date", Header: "Date"},
				output.Column{Field: "flavour", Header: "Flavour"},
				output.Column{Field: "location_kind", Header: "Location"},
				output.Column{Field: "article_count", Header: "Articles"},
				output.Column{Field: "media_count", Header: "Media"},
				output.Column{Field: "size", Header: "Size"},
				output.Column{Field: "needs_processing", Header: "Processing"},
				output.Column{Field: "has_error", Header: "Error"},
				output.Column{Field: "needs_file_operation", Header: "File operation"},
				output.Column{Field: "current_locations", Header: "Current locations"},
				output.Column{Field: "target_locations", Header: "Target locations"},
				output.Column{Field: "events", Header: "Events"},
			))
		},
	}
}

// zimURLRow is one line of the zims table.
type zimURLRow struct {
	BookID     string `json:"book_id"`
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	URL        string `json:"url"`
}

func newBooksZimsCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "zims <id>...",
		Short: "Show the view and download URLs of published books",
		Args:  cobra.MinimumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return recentCompletion(env, recentBooks)(cmd, nil, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			books := resources.NewBooks(env.Session, env.resourceOptions()...)
			urls := books.ZimURLs(cmd.Context(), args...)
			if urls == nil {
				return failure("get zim urls", books.Errors())
			}

			if env.Format != "table" && env.Format != "" {
				return env.print(urls, nil)
			}
			return env.print(zimURLRows(urls), env.Output.Config().WithColumns(
				output.Column{Field: "book_id", Header: "Book"},
				output.Column{Field: "kind", Header: "Kind"},
				output.Column{Field: "collection", Header: "Collection"},
				output.Column{Field: "url", Header: "URL"},
			))
		},
	}
}

// zimURLRows flattens the URLs, ordered by book ID.
func zimURLRows(urls *resources.ZimURLs) []zimURLRow {
	ids := make([]string, 0, len(urls.URLs))
	for id := range urls.URLs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := []zimURLRow{}
	for _, id := range ids {
		for _, u := range urls.URLs[id] {
			rows = append(rows, zimURLRow{BookID: id, Kind: u.Kind, Collection: u.Collection, URL: u.URL})
		}
	}
	return rows
}
