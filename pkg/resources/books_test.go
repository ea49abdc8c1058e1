package resources

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookFilter_Query(t *testing.T) {
	tests := []struct {
		name   string
		filter BookFilter
		want   url.Values
	}{
		{
			name:   "empty",
			filter: BookFilter{},
			want:   url.Values{},
		},
		{
			name:   "false filters are kept",
			filter: BookFilter{Limit: 20, HasTitle: boolPtr(false), HasError: boolPtr(false)},
			want:   url.Values{"limit": {"20"}, "has_title": {"false"}, "has_error": {"false"}},
		},
		{
			name:   "empty id is kept",
			filter: BookFilter{ID: strPtr("")},
			want:   url.Values{"id": {""}},
		},
		{
			name: "all filters",
			filter: BookFilter{
				Limit:              10,
				Skip:               30,
				ID:                 strPtr("b1"),
				HasTitle:           boolPtr(true),
				LocationKind:       strPtr("prod"),
				LocationKinds:      []string{"staging", "quarantine"},
				NeedsProcessing:    boolPtr(true),
				NeedsFileOperation: boolPtr(false),
			},
			want: url.Values{
				"limit":                {"10"},
				"skip":                 {"30"},
				"id":                   {"b1"},
				"has_title":            {"true"},
				"location_kind":        {"prod"},
				"location_kinds":       {"staging", "quarantine"},
				"needs_processing":     {"true"},
				"needs_file_operation": {"false"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.query())
		})
	}
}

func TestBooks_List(t *testing.T) {
	b := newBackend(t)
	b.on(http.MethodGet, "/v1/books", http.StatusOK, listBody([]map[string]interface{}{
		{
			"id":                   "b1",
			"title_id":             "t1",
			"location_kind":        "staging",
			"needs_processing":     false,
			"has_error":            true,
			"needs_file_operation": false,
			"created_at":           "2025-02-03T04:05:06Z",
			"name":                 "wikipedia_en_all",
			"date":                 "2025-02",
			"flavour":              "maxi",
		},
	}, 1, 0, 20, 1))

	books := NewBooks(b.services())
	items := books.List(context.Background(), BookFilter{Limit: 20, HasError: boolPtr(true)})

	require.Len(t, items, 1)
	assert.Equal(t, "t1", *items[0].TitleID)
	assert.True(t, items[0].HasError)
	assert.Equal(t, time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC), items[0].CreatedAt)
	assert.Equal(t, "maxi", *items[0].Flavour)
	assert.Equal(t, 1, books.Paginator().Count)
	assert.Equal(t, url.Values{"limit": {"20"}, "has_error": {"true"}}, b.last().Query)
}

func TestBooks_ListEmpty(t *testing.T) {
	b := newBackend(t)
	b.on(http.MethodGet, "/v1/books", http.StatusOK, listBody([]interface{}{}, 0, 0, 20, 0))

	books := NewBooks(b.services())
	items := books.List(context.Background(), BookFilter{})

	assert.NotNil(t, items, "empty page is a success")
	assert.Empty(t, items)
	assert.Empty(t, books.Errors())
}

func TestBooks_Fetch(t *testing.T) {
	b := newBackend(t)
	b.on(http.MethodGet, "/v1/books/b1", http.StatusOK, map[string]interface{}{
		"id":              "b1",
		"location_kind":   "prod",
		"created_at":      "2025-02-03T04:05:06Z",
		"article_count":   1200,
		"media_count":     300,
		"size":            4096000000,
		"zimcheck_result": map[string]interface{}{"status": true},
		"zim_metadata":    map[string]interface{}{"Title": "Wikipedia"},
		"events":          []string{"received"},
		"current_locations": []map[string]string{
			{"warehouse_name": "hidden", "path": "dev", "filename": "wikipedia.zim", "status": "current"},
		},
		"target_locations": []map[string]string{},
	})
	books := NewBooks(b.services())
	ctx := context.Background()

	book := books.Fetch(ctx, "b1", false)
	require.NotNil(t, book)
	assert.Equal(t, int64(4096000000), book.Size)
	assert.Equal(t, "Wikipedia", book.ZimMetadata["Title"])
	assert.Equal(t, "wikipedia.zim", book.CurrentLocations[0].Filename)
	assert.Nil(t, book.TitleID)

	assert.Same(t, book, books.Fetch(ctx, "b1", false))
	assert.Equal(t, 1, b.count())
	assert.Same(t, book, books.Current())
}

func TestBooks_ZimURLs(t *testing.T) {
	b := newBackend(t)
	b.on(http.MethodGet, "/v1/books/zims", http.StatusOK, map[string]interface{}{
		"urls": map[string]interface{}{
			"b1": []map[string]string{{"kind": "view", "url": "https://library.example.org/viewer#b1", "collection": "main"}},
		},
	})

	books := NewBooks(b.services())
	urls := books.ZimURLs(context.Background(), "b1", "b2")

	require.NotNil(t, urls)
	assert.Equal(t, "view", urls.URLs["b1"][0].Kind)
	assert.Equal(t, []string{"b1", "b2"}, b.last().Query["zim_ids"])
}
