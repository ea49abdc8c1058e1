package resources

import (
	"context"
	"net/url"
	"strconv"
)

// Collections fetches collections.
type Collections struct {
	*fetcher

	collections []Collection
}

// NewCollections creates a collections fetcher.
func NewCollections(services ServiceProvider, opts ...Option) *Collections {
	return &Collections{fetcher: newFetcher(services, "collections", CollectionsTable, opts)}
}

// Items returns the collections of the last list.
func (c *Collections) Items() []Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collections
}

// List loads a page of collections. Both limit and skip are always sent.
func (c *Collections) List(ctx context.Context, limit, skip int) []Collection {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	items := list[Collection](ctx, c.fetcher, query)
	if items == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections = items
	return items
}
