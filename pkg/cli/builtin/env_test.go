package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/openzim/cmsctl/pkg/cli/interactive"
	"github.com/openzim/cmsctl/pkg/config"
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/openzim/cmsctl/pkg/session"
	"github.com/openzim/cmsctl/pkg/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "alice"
	testPassword = "secret"
)

// cmsBackend serves the CMS API and an oauth token endpoint from fixtures.
type cmsBackend struct {
	*httptest.Server

	mu       sync.Mutex
	queries  map[string]url.Values
	bearers  []string
	created  []map[string]string
	refreshN int
}

func newCMSBackend(t *testing.T) *cmsBackend {
	t.Helper()
	b := &cmsBackend{queries: make(map[string]url.Values)}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/authorize", b.handleAuthorize)
	mux.HandleFunc("/v1/auth/refresh", b.handleRefresh)
	mux.HandleFunc("/v1/auth/me", b.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"username": testUsername, "role": "editor"})
	}))
	mux.HandleFunc("/v1/titles", b.handleTitles)
	mux.HandleFunc("/v1/titles/", b.handleTitle)
	mux.HandleFunc("/v1/books", b.list("books", testBooks()))
	mux.HandleFunc("/v1/books/zims", b.handleZims)
	mux.HandleFunc("/v1/books/", b.handleBook)
	mux.HandleFunc("/v1/collections", b.list("collections", testCollections()))
	mux.HandleFunc("/v1/zimfarm-notifications", b.list("zimfarm-notifications", testNotifications()))
	mux.HandleFunc("/v1/zimfarm-notifications/", b.handleNotification)
	mux.HandleFunc("/v1/warehouse-paths", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, testWarehousePaths())
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "oauth-" + r.PostForm.Get("code"),
			"refresh_token": "oauth-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (b *cmsBackend) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		b.bearers = append(b.bearers, bearer)
		b.mu.Unlock()
		if bearer == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next(w, r)
	}
}

func (b *cmsBackend) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var creds map[string]string
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds["username"] != testUsername || creds["password"] != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  "local-access",
		"refresh_token": "local-refresh",
		"expires_in":    3600,
	})
}

func (b *cmsBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshN++
	n := b.refreshN
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  fmt.Sprintf("local-access-%d", n),
		"refresh_token": "local-refresh",
		"expires_in":    7200,
	})
}

func (b *cmsBackend) record(name string, query url.Values) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries[name] = query
}

func (b *cmsBackend) query(name string) url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[name]
}

func (b *cmsBackend) lastBearer() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bearers) == 0 {
		return ""
	}
	return b.bearers[len(b.bearers)-1]
}

// list serves a paginated fixture honouring limit and skip.
func (b *cmsBackend) list(name string, items []map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		b.record(name, query)
		writeJSON(w, http.StatusOK, page(items, query))
	}
}

func page(items []map[string]interface{}, query url.Values) map[string]interface{} {
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	skip, _ := strconv.Atoi(query.Get("skip"))

	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	pageItems := []map[string]interface{}{}
	if skip < len(items) {
		pageItems = items[skip:end]
	}

	return map[string]interface{}{
		"meta": map[string]int{
			"count":     len(items),
			"skip":      skip,
			"limit":     limit,
			"page_size": len(pageItems),
		},
		"items": pageItems,
	}
}

func (b *cmsBackend) handleTitles(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		b.authenticated(func(w http.ResponseWriter, r *http.Request) {
			var create map[string]string
			_ = json.NewDecoder(r.Body).Decode(&create)
			if create["name"] == "wikipedia_en_all" {
				writeJSON(w, http.StatusConflict, map[string]string{"detail": "Title already exists"})
				return
			}
			b.mu.Lock()
			b.created = append(b.created, create)
			b.mu.Unlock()

			body := map[string]interface{}{"id": "t-new", "name": create["name"], "maturity": nil}
			if m := create["maturity"]; m != "" {
				body["maturity"] = m
			}
			writeJSON(w, http.StatusOK, body)
		})(w, r)
		return
	}

	query := r.URL.Query()
	b.record("titles", query)
	items := testTitles()
	if name := query.Get("name"); name != "" {
		var filtered []map[string]interface{}
		for _, item := range items {
			if strings.Contains(item["name"].(string), name) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, page(items, query))
}

func (b *cmsBackend) handleTitle(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/v1/titles/")
	for _, title := range testTitles() {
		if title["name"] == key || title["id"] == key {
			title["events"] = []string{"created"}
			title["books"] = []interface{}{}
			title["collections"] = []interface{}{}
			writeJSON(w, http.StatusOK, title)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Title not found"})
}

func (b *cmsBackend) handleBook(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/books/")
	for _, book := range testBooks() {
		if book["id"] == id {
			book["article_count"] = 1200
			book["size"] = 4096
			book["events"] = []string{"received"}
			writeJSON(w, http.StatusOK, book)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Book not found"})
}

func (b *cmsBackend) handleZims(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	b.record("zims", query)
	urls := map[string]interface{}{}
	for _, id := range query["zim_ids"] {
		urls[id] = []map[string]string{
			{"kind": "download", "url": "https://download.example.org/" + id + ".zim", "collection": "main"},
			{"kind": "view", "url": "https://library.example.org/viewer#" + id, "collection": "main"},
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"urls": urls})
}

func (b *cmsBackend) handleNotification(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/zimfarm-notifications/")
	for _, n := range testNotifications() {
		if n["id"] == id {
			n["content"] = map[string]interface{}{"article_count": 10}
			n["events"] = []string{"received"}
			writeJSON(w, http.StatusOK, n)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Notification not found"})
}

func testTitles() []map[string]interface{} {
	return []map[string]interface{}{
		{"id": "t1", "name": "wikipedia_en_all", "maturity": "robust"},
		{"id": "t2", "name": "wikipedia_fr_all", "maturity": "dev"},
		{"id": "t3", "name": "wiktionary_en_all", "maturity": nil},
	}
}

func testBooks() []map[string]interface{} {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []map[string]interface{}{
		{"id": "b1", "title_id": "t1", "name": "wikipedia_en_all", "location_kind": "prod", "has_error": false, "needs_processing": false, "created_at": created},
		{"id": "b2", "title_id": nil, "name": "wikipedia_fr_all", "location_kind": "quarantine", "has_error": true, "needs_processing": true, "created_at": created},
	}
}

func testCollections() []map[string]interface{} {
	return []map[string]interface{}{
		{"id": "c1", "name": "kiwix", "paths": []string{"wikipedia"}},
	}
}

func testNotifications() []map[string]interface{} {
	received := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	return []map[string]interface{}{
		{"id": "n1", "book_id": "b1", "status": "processed", "received_at": received},
		{"id": "n2", "book_id": nil, "status": "bad_notification", "received_at": received},
	}
}

func testWarehousePaths() []map[string]interface{} {
	return []map[string]interface{}{
		{"path_id": "p1", "folder_name": "/wikipedia", "warehouse_id": "w1", "warehouse_name": "hidden"},
		{"path_id": "p2", "folder_name": "/.hidden/dev", "warehouse_id": "w1", "warehouse_name": "hidden"},
	}
}

// testEnv is an Env wired to a cmsBackend, with captured output.
type testEnv struct {
	*Env
	backend *cmsBackend
	opener  *auth.MockBrowserOpener
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

type envOption func(*testEnvConfig)

type testEnvConfig struct {
	format string
	input  io.Reader
	oauth  bool
}

func withFormat(format string) envOption {
	return func(c *testEnvConfig) { c.format = format }
}

func withInput(input io.Reader) envOption {
	return func(c *testEnvConfig) { c.input = input }
}

func withOAuth() envOption {
	return func(c *testEnvConfig) { c.oauth = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := &testEnvConfig{format: "table", input: strings.NewReader("")}
	for _, opt := range opts {
		opt(cfg)
	}

	backend := newCMSBackend(t)
	opener := &auth.MockBrowserOpener{}
	dir := t.TempDir()

	appConfig := &config.Config{
		CMSAPI:  backend.URL + "/v1",
		Local:   config.LocalConfig{Enabled: true, DefaultLifetime: time.Hour},
		Storage: types.StorageConfig{Type: types.StorageTypeMemory},
		Output:  config.OutputConfig{Format: cfg.format, Color: "never"},
		HTTP:    config.HTTPConfig{Timeout: 5 * time.Second},
		Log:     config.LogConfig{Level: "warn"},
		Secrets: *secrets.DefaultBehavior(),
	}
	if cfg.oauth {
		appConfig.OAuth = config.OAuthConfig{
			BaseURL:         backend.URL,
			ClientID:        "cmsctl",
			RedirectURL:     "http://localhost:8085/callback",
			Scopes:          []string{"openid"},
			PKCE:            true,
			CallbackTimeout: time.Second,
		}
	}

	registry, err := auth.NewRegistryFromConfig(appConfig.AuthConfig("cmsctl-test", backend.Client(), opener), zerolog.Nop())
	require.NoError(t, err)

	stateManager, err := state.NewManagerWithPath(filepath.Join(dir, "state.yaml"))
	require.NoError(t, err)

	ctrl, err := session.New(session.Config{
		Registry:   registry,
		APIBase:    appConfig.CMSAPI,
		HTTPClient: backend.Client(),
	})
	require.NoError(t, err)

	detector, err := secrets.NewDetector(&appConfig.Secrets)
	require.NoError(t, err)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	manager := output.NewManager()
	manager.SetDefaultFormat(cfg.format)
	manager.SetConfig(output.NewFormatConfig().WithColors(false))
	manager.SetWriters(stdout, stderr)

	loader := config.NewLoader("cmsctl-test")
	loader.SetConfigPath(filepath.Join(dir, "config.yaml"))

	return &testEnv{
		Env: &Env{
			CLIName:  "cmsctl-test",
			Version:  "test",
			Config:   appConfig,
			Loader:   loader,
			Session:  ctrl,
			State:    stateManager,
			Output:   manager,
			Prompter: interactive.NewPrompter(&interactive.PrompterConfig{Input: cfg.input, Output: stderr, DisableInteractive: true}),
			Detector: detector,
			Logger:   zerolog.Nop(),
			Format:   cfg.format,
		},
		backend: backend,
		opener:  opener,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// run executes a command tree with args.
func (e *testEnv) run(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

// login logs in with the local provider directly on the session.
func (e *testEnv) login(t *testing.T) {
	t.Helper()
	require.True(t, e.Session.Authenticate(context.Background(), types.ProviderLocal, testUsername, testPassword), "errors: %v", e.Session.Errors())
}

// decodeJSON decodes the captured stdout.
func (e *testEnv) decodeJSON(t *testing.T, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.stdout.Bytes(), v), "stdout: %s", e.stdout.String())
}
