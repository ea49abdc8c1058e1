// Package resources fetches CMS records with the request capability handed
// out by the session controller.
//
// Each fetcher keeps the last loaded records, the pagination metadata of the
// last list and the user-facing messages of the last failure. Failures are
// recorded on Errors() and reported as a nil result:
//
//	titles := resources.NewTitles(controller, resources.WithLimitStore(st))
//	items := titles.List(ctx, titles.DefaultLimit(), 0, "")
//	if items == nil {
//	    return fmt.Errorf("%s", strings.Join(titles.Errors(), "; "))
//	}
package resources

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/openzim/cmsctl/pkg/api"
	"github.com/rs/zerolog"
)

// ServiceProvider hands out request capabilities. The session controller
// implements it.
type ServiceProvider interface {
	GetAPIService(ctx context.Context, resourcePath string) (*api.Service, error)
}

// LimitStore persists the page size chosen for a table.
type LimitStore interface {
	TableLimit(table string) int
	SaveTableLimit(table string, limit int) error
}

// ResponseCache keeps responses of rarely changing endpoints between runs.
type ResponseCache interface {
	Load(key string, out interface{}) error
	Save(key string, v interface{}) error
}

// Table keys under which page sizes are persisted.
const (
	TitlesTable        = "titles-table-limit"
	BooksTable         = "books-table-limit"
	CollectionsTable   = "collections-table-limit"
	NotificationsTable = "zimfarm-notifications-table-limit"
)

// Option configures a fetcher.
type Option func(*fetcher)

// WithLimitStore sets where page sizes are read from and saved to.
func WithLimitStore(store LimitStore) Option {
	return func(f *fetcher) {
		f.limits = store
	}
}

// WithCache sets where cacheable responses are kept.
func WithCache(cache ResponseCache) Option {
	return func(f *fetcher) {
		f.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *fetcher) {
		f.logger = logger
	}
}

// fetcher holds what all resource fetchers share.
type fetcher struct {
	services ServiceProvider
	path     string
	table    string
	limits   LimitStore
	cache    ResponseCache
	logger   zerolog.Logger

	mu        sync.RWMutex
	errors    []string
	paginator api.Paginator
}

func newFetcher(services ServiceProvider, path, table string, opts []Option) *fetcher {
	f := &fetcher{
		services: services,
		path:     path,
		table:    table,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With().Str("resource", path).Logger()
	f.paginator = api.NewPaginator(f.DefaultLimit())
	return f
}

// Errors returns the messages of the last failed operation.
func (f *fetcher) Errors() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.errors) == 0 {
		return nil
	}
	out := make([]string, len(f.errors))
	copy(out, f.errors)
	return out
}

// Paginator returns the pagination metadata of the last list.
func (f *fetcher) Paginator() api.Paginator {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.paginator
}

// DefaultLimit returns the persisted page size, or the default one.
func (f *fetcher) DefaultLimit() int {
	if f.table == "" || f.limits == nil {
		return api.DefaultPageLimit
	}
	if limit := f.limits.TableLimit(f.table); limit > 0 {
		return limit
	}
	return api.DefaultPageLimit
}

// SavePaginatorLimit persists the page size of the table.
func (f *fetcher) SavePaginatorLimit(limit int) error {
	if f.limits == nil || f.table == "" {
		return nil
	}
	return f.limits.SaveTableLimit(f.table, limit)
}

func (f *fetcher) service(ctx context.Context) (*api.Service, bool) {
	service, err := f.services.GetAPIService(ctx, f.path)
	if err != nil {
		f.fail("get service", err)
		return nil, false
	}
	return service, true
}

func (f *fetcher) fail(op string, err error) {
	f.logger.Warn().Err(err).Str("op", op).Msg("request failed")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = api.TranslateErrors(err)
}

func (f *fetcher) clearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = nil
}

// list loads one page and records its pagination metadata.
func list[T any](ctx context.Context, f *fetcher, query url.Values) []T {
	service, ok := f.service(ctx)
	if !ok {
		return nil
	}

	var resp api.ListResponse[T]
	if err := service.Get(ctx, "", query, &resp); err != nil {
		f.fail("list", err)
		return nil
	}

	items := resp.Items
	if items == nil {
		items = []T{}
	}

	f.mu.Lock()
	f.paginator = resp.Meta
	f.errors = nil
	f.mu.Unlock()
	return items
}

// pageQuery holds limit and skip, omitted when zero.
func pageQuery(limit, skip int) url.Values {
	query := url.Values{}
	if limit != 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if skip != 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	return query
}

func setBool(query url.Values, key string, v *bool) {
	if v != nil {
		query.Set(key, strconv.FormatBool(*v))
	}
}

func setString(query url.Values, key string, v *string) {
	if v != nil {
		query.Set(key, *v)
	}
}
