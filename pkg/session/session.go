// Package session owns the in-memory login state of the CMS console.
//
// The Controller holds at most one token and one user for the active
// provider. Expiry is detected lazily: consumers call LoadToken or
// GetAPIService, and an expired token is refreshed before it is returned.
// Concurrent callers needing a refresh share a single provider call.
//
// Mutating operations never return provider errors. They record user-facing
// messages on Errors() and report success as a bool or a nil token:
//
//	ctrl, _ := session.New(session.Config{Registry: registry, APIBase: apiBase})
//	if !ctrl.Authenticate(ctx, types.ProviderLocal, "alice", "secret") {
//	    for _, msg := range ctrl.Errors() {
//	        fmt.Println(msg)
//	    }
//	}
//	service, _ := ctrl.GetAPIService(ctx, "titles")
//
// A refresh rejected by the provider as permanent removes the stored token
// and sets a sticky flag; further refreshes short-circuit until a login or
// callback succeeds. Any other refresh failure clears the session but keeps
// the stored token so that the next access retries.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNotAuthenticated is returned by FetchUser when no token is available.
var ErrNotAuthenticated = errors.New("not authenticated")

// refreshKey is the single-flight key shared by all refreshes of a session.
const refreshKey = "refresh"

// State is the login state derived from the session fields.
type State int

const (
	// StateAnonymous means no token is held.
	StateAnonymous State = iota
	// StateAuthenticating means a login or callback is in flight.
	StateAuthenticating
	// StateAuthenticated means a valid token is held.
	StateAuthenticated
	// StateExpiredPendingRefresh means the token expired or is being refreshed.
	StateExpiredPendingRefresh
	// StateRefreshFailed means a refresh was rejected permanently.
	StateRefreshFailed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateExpiredPendingRefresh:
		return "expired-pending-refresh"
	case StateRefreshFailed:
		return "refresh-failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config configures a Controller.
type Config struct {
	// Registry provides the configured providers.
	Registry *auth.Registry
	// DefaultProvider is the active provider before any login. Defaults to
	// the registry default.
	DefaultProvider types.ProviderType
	// APIBase is the CMS API root.
	APIBase string
	// HTTPClient is used for user lookups and handed to API services.
	HTTPClient *http.Client
	// Logger receives session events. Defaults to a no-op logger.
	Logger *zerolog.Logger
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Controller is the session controller.
type Controller struct {
	registry   *auth.Registry
	apiBase    string
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time

	group singleflight.Group

	mu sync.RWMutex
	// epoch changes on login, logout and provider switch; a refresh started
	// in an older epoch does not touch the session.
	epoch          uint64
	provider       types.ProviderType
	token          *types.StoredToken
	user           *types.User
	errors         []string
	refreshFailed  bool
	authenticating bool
	refreshing     bool
}

// New creates a session controller.
func New(config Config) (*Controller, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if config.APIBase == "" {
		return nil, fmt.Errorf("cms_api is required")
	}

	provider := config.DefaultProvider
	if provider == "" {
		provider = config.Registry.Default()
	}
	if _, err := config.Registry.Get(provider); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Controller{
		registry:   config.Registry,
		apiBase:    config.APIBase,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "session").Logger(),
		now:        now,
		provider:   provider,
	}, nil
}

// Token returns a copy of the session token, nil when anonymous.
func (c *Controller) Token() *types.StoredToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.Clone()
}

// User returns a copy of the session user, nil when unknown.
func (c *Controller) User() *types.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Username returns the session user name. Before the user is fetched it
// falls back to the name claim of a JWT access token; empty when unknown.
func (c *Controller) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user != nil {
		return c.user.Username
	}
	if c.token == nil {
		return ""
	}
	name, err := auth.TokenUsername(c.token.AccessToken)
	if err != nil {
		return ""
	}
	return name
}

// IsLoggedIn reports whether the session holds an unexpired token.
func (c *Controller) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.IsValid(c.now())
}

// Errors returns the messages recorded by the last failed operation.
func (c *Controller) Errors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.errors) == 0 {
		return nil
	}
	out := make([]string, len(c.errors))
	copy(out, c.errors)
	return out
}

// RefreshFailed reports whether a refresh was rejected permanently.
func (c *Controller) RefreshFailed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshFailed
}

// ActiveProvider returns the provider whose namespace backs the session.
func (c *Controller) ActiveProvider() types.ProviderType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// Providers lists the configured providers.
func (c *Controller) Providers() []types.ProviderType {
	return c.registry.Types()
}

// StorageLocation describes where the active provider keeps its token, ""
// when the provider cannot tell.
func (c *Controller) StorageLocation() string {
	p, err := c.activeProvider()
	if err != nil {
		return ""
	}
	if l, ok := p.(auth.StorageLocator); ok {
		return l.StorageLocation()
	}
	return ""
}

// SetActiveProvider switches the session to another provider namespace.
// The in-memory session is cleared; stored tokens are left untouched.
func (c *Controller) SetActiveProvider(t types.ProviderType) error {
	provider, err := c.registry.Get(t)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switched := c.switchProviderLocked(provider.Type())
	if switched {
		c.errors = nil
	}
	c.mu.Unlock()

	if switched {
		c.group.Forget(refreshKey)
	}
	return nil
}

// switchProviderLocked makes t the active provider. The session of the
// previous provider is dropped so that its token never reaches another
// namespace. c.mu must be held.
func (c *Controller) switchProviderLocked(t types.ProviderType) bool {
	if t == c.provider {
		return false
	}
	c.epoch++
	c.provider = t
	c.token = nil
	c.user = nil
	c.refreshFailed = false
	return true
}

// resetSession drops the in-memory token and user and invalidates any
// refresh in flight.
func (c *Controller) resetSession() {
	c.mu.Lock()
	c.epoch++
	c.token = nil
	c.user = nil
	c.mu.Unlock()

	c.group.Forget(refreshKey)
}

// State returns the state derived from the session fields.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.refreshFailed:
		return StateRefreshFailed
	case c.authenticating:
		return StateAuthenticating
	case c.refreshing:
		return StateExpiredPendingRefresh
	case c.token == nil:
		return StateAnonymous
	case c.token.Expired(c.now()):
		return StateExpiredPendingRefresh
	default:
		return StateAuthenticated
	}
}

func (c *Controller) activeProvider() (auth.Provider, error) {
	return c.registry.Get(c.ActiveProvider())
}

// clear drops the in-memory token and user.
func (c *Controller) clear(errs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
	c.user = nil
	c.errors = errs
}

func (c *Controller) recordErrors(errs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = errs
}

func maskedToken(token *types.StoredToken) string {
	if token == nil {
		return ""
	}
	return secrets.MaskToken(token.AccessToken)
}
