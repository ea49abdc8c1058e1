package resources

import (
	"context"
	"net/url"
	"time"
)

// NotificationFilter selects ZIM-farm notifications. Nil fields are not sent.
type NotificationFilter struct {
	Limit          int
	Skip           int
	ID             *string
	HasBook        *bool
	HasErrored     *bool
	IsProcessed    *bool
	Status         *string
	ReceivedAfter  *time.Time
	ReceivedBefore *time.Time
}

func (f NotificationFilter) query() url.Values {
	query := pageQuery(f.Limit, f.Skip)
	setString(query, "id", f.ID)
	setBool(query, "has_book", f.HasBook)
	setBool(query, "has_errored", f.HasErrored)
	setBool(query, "is_processed", f.IsProcessed)
	setString(query, "status", f.Status)
	if f.ReceivedAfter != nil {
		query.Set("received_after", f.ReceivedAfter.Format(time.RFC3339))
	}
	if f.ReceivedBefore != nil {
		query.Set("received_before", f.ReceivedBefore.Format(time.RFC3339))
	}
	return query
}

// Notifications fetches ZIM-farm notifications. The last fetched one is cached.
type Notifications struct {
	*fetcher

	notification  *Notification
	notifications []NotificationLight
}

// NewNotifications creates a notifications fetcher.
func NewNotifications(services ServiceProvider, opts ...Option) *Notifications {
	return &Notifications{fetcher: newFetcher(services, "zimfarm-notifications", NotificationsTable, opts)}
}

// Current returns the cached notification.
func (n *Notifications) Current() *Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.notification
}

// Items returns the notifications of the last list.
func (n *Notifications) Items() []NotificationLight {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.notifications
}

// Fetch loads a notification by ID, returning the cached one unless force
// is set or the ID differs.
func (n *Notifications) Fetch(ctx context.Context, id string, force bool) *Notification {
	service, ok := n.service(ctx)
	if !ok {
		return nil
	}

	n.mu.Lock()
	if !force && n.notification != nil && n.notification.ID == id {
		notification := n.notification
		n.mu.Unlock()
		return notification
	}
	n.errors = nil
	n.notification = nil
	n.mu.Unlock()

	var notification Notification
	if err := service.Get(ctx, "/"+url.PathEscape(id), nil, &notification); err != nil {
		n.fail("fetch", err)
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.notification = &notification
	return n.notification
}

// List loads a page of notifications.
func (n *Notifications) List(ctx context.Context, filter NotificationFilter) []NotificationLight {
	items := list[NotificationLight](ctx, n.fetcher, filter.query())
	if items == nil {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = items
	return items
}
