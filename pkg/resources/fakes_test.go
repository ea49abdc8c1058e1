package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/openzim/cmsctl/pkg/api"
)

// fakeServices hands out services bound to a test server.
type fakeServices struct {
	baseURL string
	token   string
	err     error
	paths   []string
}

func (f *fakeServices) GetAPIService(ctx context.Context, resourcePath string) (*api.Service, error) {
	f.paths = append(f.paths, resourcePath)
	if f.err != nil {
		return nil, f.err
	}
	return api.NewService(f.baseURL, resourcePath, api.WithAccessToken(f.token)), nil
}

// fakeLimits is an in-memory LimitStore.
type fakeLimits struct {
	mu     sync.Mutex
	limits map[string]int
}

func (f *fakeLimits) TableLimit(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits[table]
}

func (f *fakeLimits) SaveTableLimit(table string, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limits == nil {
		f.limits = map[string]int{}
	}
	f.limits[table] = limit
	return nil
}

// recordedRequest is what the backend saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   map[string]interface{}
}

// backend serves canned responses by path and records requests.
type backend struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]response
}

type response struct {
	status int
	body   interface{}
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{responses: map[string]response{}}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
		}
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&req.Body)
		}

		b.mu.Lock()
		b.requests = append(b.requests, req)
		resp, ok := b.responses[r.Method+" "+r.URL.Path]
		b.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Not Found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_ = json.NewEncoder(w).Encode(resp.body)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) on(method, path string, status int, body interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[method+" "+path] = response{status: status, body: body}
}

func (b *backend) last() recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *backend) services() *fakeServices {
	return &fakeServices{baseURL: b.URL + "/v1", token: "tok"}
}

func listBody(items interface{}, count, skip, limit, pageSize int) map[string]interface{} {
	return map[string]interface{}{
		"meta": map[string]int{
			"count":     count,
			"skip":      skip,
			"limit":     limit,
			"page_size": pageSize,
			"page":      skip/limit + 1,
		},
		"items": items,
	}
}

func boolPtr(v bool) *bool { return &v }
func strPtr(v string) *string { return &v }
