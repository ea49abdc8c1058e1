package builtin

import (
	"fmt"
	"time"

	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/resources"
	"github.com/spf13/cobra"
)

// Notification statuses known to the CMS.
var notificationStatuses = []string{"pending", "processed", "bad_notification", "errored"}

type notificationListOptions struct {
	listOptions
	receivedAfter  string
	receivedBefore string
}

// NewNotificationsCommand creates the notifications command group.
func NewNotificationsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notification"},
		Short:   "Browse ZIM-farm notifications",
	}

	cmd.AddCommand(newNotificationsListCommand(env))
	cmd.AddCommand(newNotificationsGetCommand(env))

	return cmd
}

func newNotificationsListCommand(env *Env) *cobra.Command {
	opts := &notificationListOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List ZIM-farm notifications",
		Long: `List the notifications sent by the ZIM-farm when a ZIM file is produced.

Dates are RFC 3339 timestamps, e.g. 2025-03-01T00:00:00Z.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notifications := resources.NewNotifications(env.Session, env.resourceOptions()...)
			limit, err := opts.resolveLimit(notifications)
			if err != nil {
				return err
			}

			filter := resources.NotificationFilter{
				Limit:       limit,
				Skip:        opts.skip,
				ID:          optionalString(cmd, "id"),
				HasBook:     optionalBool(cmd, "has-book"),
				HasErrored:  optionalBool(cmd, "has-errored"),
				IsProcessed: optionalBool(cmd, "is-processed"),
				Status:      optionalString(cmd, "status"),
			}
			if filter.Status != nil && !contains(notificationStatuses, *filter.Status) {
				return fmt.Errorf("invalid status %q (must be one of %v)", *filter.Status, notificationStatuses)
			}
			if filter.ReceivedAfter, err = parseTimeFlag("received-after", opts.receivedAfter); err != nil {
				return err
			}
			if filter.ReceivedBefore, err = parseTimeFlag("received-before", opts.receivedBefore); err != nil {
				return err
			}

			items := notifications.List(cmd.Context(), filter)
			return printList(env, "list notifications", items, notifications, &opts.listOptions,
				output.Column{Field: "id", Header: "ID"},
				output.Column{Field: "book_id", Header: "Book"},
				output.Column{Field: "status", Header: "Status"},
				output.Column{Field: "received_at", Header: "Received"},
			)
		},
	}

	addListFlags(cmd, &opts.listOptions)
	cmd.Flags().String("id", "", "Only notifications whose ID starts with this text")
	cmd.Flags().Bool("has-book", false, "Only notifications that produced (or not) a book")
	cmd.Flags().Bool("has-errored", false, "Only notifications that failed (or not)")
	cmd.Flags().Bool("is-processed", false, "Only notifications processed (or not)")
	cmd.Flags().String("status", "", "Only notifications with this status")
	cmd.Flags().StringVar(&opts.receivedAfter, "received-after", "", "Only notifications received after this time")
	cmd.Flags().StringVar(&opts.receivedBefore, "received-before", "", "Only notifications received before this time")
	_ = cmd.RegisterFlagCompletionFunc("status", FixedCompletion(notificationStatuses...))

	return cmd
}

func newNotificationsGetCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:               "get <id>",
		Short:             "Show a notification with its content",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: recentCompletion(env, recentNotifications),
		RunE: func(cmd *cobra.Command, args []string) error {
			notifications := resources.NewNotifications(env.Session, env.resourceOptions()...)
			notification := notifications.Fetch(cmd.Context(), args[0], true)
			if notification == nil {
				if isNotFound(notifications.Errors()) {
					return fmt.Errorf("%s", output.RenderNotFound("Notification", args[0]))
				}
				return failure("get notification", notifications.Errors())
			}

			env.remember(recentNotifications, notification.ID)
			return env.print(notification, env.Output.Config().WithColumns(
				output.Column{Field: "id", Header: "ID"},
				output.Column{Field: "book_id", Header: "Book"},
				output.Column{Field: "status", Header: "Status"},
				output.Column{Field: "received_at", Header: "Received"},
				output.Column{Field: "events", Header: "Events"},
				output.Column{Field: "content", Header: "Content"},
			))
		},
	}
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return &t, nil
}
