package resources

import (
	"context"
	"net/url"
)

// Titles fetches titles. The last fetched title is cached.
type Titles struct {
	*fetcher

	title  *Title
	titles []TitleLight
}

// NewTitles creates a titles fetcher.
func NewTitles(services ServiceProvider, opts ...Option) *Titles {
	return &Titles{fetcher: newFetcher(services, "titles", TitlesTable, opts)}
}

// Current returns the cached title.
func (t *Titles) Current() *Title {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// Items returns the titles of the last list.
func (t *Titles) Items() []TitleLight {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.titles
}

// Fetch loads a title by name. The cached title is returned without a
// request when it has this name, unless force is set.
func (t *Titles) Fetch(ctx context.Context, name string, force bool) *Title {
	return t.fetch(ctx, name, force, func(title *Title) bool { return title.Name == name })
}

// FetchByID loads a title by ID, with the same caching as Fetch.
func (t *Titles) FetchByID(ctx context.Context, id string, force bool) *Title {
	return t.fetch(ctx, id, force, func(title *Title) bool { return title.ID == id })
}

func (t *Titles) fetch(ctx context.Context, key string, force bool, cached func(*Title) bool) *Title {
	service, ok := t.service(ctx)
	if !ok {
		return nil
	}

	t.mu.Lock()
	if !force && t.title != nil && cached(t.title) {
		title := t.title
		t.mu.Unlock()
		return title
	}
	t.errors = nil
	t.title = nil
	t.mu.Unlock()

	var title Title
	if err := service.Get(ctx, "/"+url.PathEscape(key), nil, &title); err != nil {
		t.fail("fetch", err)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.title = &title
	return t.title
}

// List loads a page of titles, optionally filtered by name. Zero and empty
// arguments are not sent.
func (t *Titles) List(ctx context.Context, limit, skip int, name string) []TitleLight {
	query := pageQuery(limit, skip)
	if name != "" {
		query.Set("name", name)
	}

	items := list[TitleLight](ctx, t.fetcher, query)
	if items == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.titles = items
	return items
}

// Create creates a title. The error is recorded and returned.
func (t *Titles) Create(ctx context.Context, create TitleCreate) (*TitleLight, error) {
	service, err := t.services.GetAPIService(ctx, t.path)
	if err != nil {
		t.fail("create", err)
		return nil, err
	}

	t.clearErrors()

	var created TitleLight
	if err := service.Post(ctx, "", create, &created); err != nil {
		t.fail("create", err)
		return nil, err
	}

	t.logger.Info().Str("id", created.ID).Str("name", created.Name).Msg("title created")
	return &created, nil
}
