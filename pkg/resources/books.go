package resources

import (
	"context"
	"net/url"
)

// BookFilter selects books. Nil fields are not sent.
type BookFilter struct {
	Limit              int
	Skip               int
	ID                 *string
	HasTitle           *bool
	LocationKind       *string
	LocationKinds      []string
	NeedsProcessing    *bool
	HasError           *bool
	NeedsFileOperation *bool
}

func (f BookFilter) query() url.Values {
	query := pageQuery(f.Limit, f.Skip)
	setString(query, "id", f.ID)
	setBool(query, "has_title", f.HasTitle)
	setString(query, "location_kind", f.LocationKind)
	for _, kind := range f.LocationKinds {
		query.Add("location_kinds", kind)
	}
	setBool(query, "needs_processing", f.NeedsProcessing)
	setBool(query, "has_error", f.HasError)
	setBool(query, "needs_file_operation", f.NeedsFileOperation)
	return query
}

// Books fetches books. The last fetched book is cached.
type Books struct {
	*fetcher

	book  *Book
	books []BookLight
}

// NewBooks creates a books fetcher.
func NewBooks(services ServiceProvider, opts ...Option) *Books {
	return &Books{fetcher: newFetcher(services, "books", BooksTable, opts)}
}

// Current returns the cached book.
func (b *Books) Current() *Book {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.book
}

// Items returns the books of the last list.
func (b *Books) Items() []BookLight {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.books
}

// Fetch loads a book by ID. The cached book is returned without a request
// when it has this ID, unless force is set.
func (b *Books) Fetch(ctx context.Context, id string, force bool) *Book {
	service, ok := b.service(ctx)
	if !ok {
		return nil
	}

	b.mu.Lock()
	if !force && b.book != nil && b.book.ID == id {
		book := b.book
		b.mu.Unlock()
		return book
	}
	b.errors = nil
	b.book = nil
	b.mu.Unlock()

	var book Book
	if err := service.Get(ctx, "/"+url.PathEscape(id), nil, &book); err != nil {
		b.fail("fetch", err)
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.book = &book
	return b.book
}

// List loads a page of books.
func (b *Books) List(ctx context.Context, filter BookFilter) []BookLight {
	items := list[BookLight](ctx, b.fetcher, filter.query())
	if items == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.books = items
	return items
}

// ZimURLs returns the view and download URLs of published books.
func (b *Books) ZimURLs(ctx context.Context, ids ...string) *ZimURLs {
	service, ok := b.service(ctx)
	if !ok {
		return nil
	}

	query := url.Values{}
	for _, id := range ids {
		query.Add("zim_ids", id)
	}

	var urls ZimURLs
	if err := service.Get(ctx, "/zims", query, &urls); err != nil {
		b.fail("zim urls", err)
		return nil
	}
	b.clearErrors()
	return &urls
}
