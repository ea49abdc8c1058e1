package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/storage"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/rs/zerolog"
)

// LocalProvider authenticates with a username and password checked by the
// CMS backend.
type LocalProvider struct {
	apiBase    string
	lifetime   time.Duration
	httpClient *http.Client
	store      *storage.ProviderStore
	logger     zerolog.Logger
	now        func() time.Time
}

// NewLocalProvider creates a local provider talking to apiBase.
func NewLocalProvider(apiBase string, config *LocalConfig, store *storage.ProviderStore, httpClient *http.Client, logger zerolog.Logger) (*LocalProvider, error) {
	if apiBase == "" {
		return nil, fmt.Errorf("cms_api is required for the local provider")
	}
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if config == nil {
		config = &LocalConfig{}
	}
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}

	lifetime := config.DefaultLifetime
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}

	return &LocalProvider{
		apiBase:    strings.TrimRight(apiBase, "/"),
		lifetime:   lifetime,
		httpClient: httpClient,
		store:      store,
		logger:     logger.With().Str("provider", string(types.ProviderLocal)).Logger(),
		now:        time.Now,
	}, nil
}

// Type returns the provider tag.
func (l *LocalProvider) Type() types.ProviderType {
	return types.ProviderLocal
}

// InitiateLogin checks the credentials against the backend and stores the token.
func (l *LocalProvider) InitiateLogin(ctx context.Context, username, password string) (*StoredToken, error) {
	if strings.TrimSpace(username) == "" {
		return nil, &ValidationError{Field: "username", Message: "username is required"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "password is required"}
	}

	token, err := l.requestToken(ctx, "login", "/auth/authorize", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	l.store.Save(ctx, token)
	return token, nil
}

// OnCallback accepts a token hand-off URL carrying access_token,
// refresh_token and expires_in in its query or fragment.
func (l *LocalProvider) OnCallback(ctx context.Context, callbackURL string) (*StoredToken, error) {
	params, err := callbackParams(callbackURL)
	if err != nil {
		return nil, &AuthError{Provider: types.ProviderLocal, Op: "callback", Code: CodeMissingParameters, Message: err.Error(), Cause: err}
	}

	if code := params.Get("error"); code != "" {
		return nil, &AuthError{Provider: types.ProviderLocal, Op: "callback", Code: code, Message: params.Get("error_description")}
	}

	access := params.Get("access_token")
	if access == "" {
		return nil, &AuthError{Provider: types.ProviderLocal, Op: "callback", Code: CodeMissingParameters, Message: "access_token parameter is missing"}
	}

	resp := tokenResponse{
		AccessToken:  access,
		RefreshToken: params.Get("refresh_token"),
	}
	if v := params.Get("expires_in"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return nil, &AuthError{Provider: types.ProviderLocal, Op: "callback", Code: CodeMissingParameters, Message: "expires_in is not a number", Cause: err}
		}
		resp.ExpiresIn = seconds
	}

	return resp.toStoredToken(types.ProviderLocal, l.now(), l.lifetime), nil
}

// RefreshAuth exchanges a refresh token at the backend.
func (l *LocalProvider) RefreshAuth(ctx context.Context, refreshToken string) (*StoredToken, error) {
	if refreshToken == "" {
		return nil, &AuthError{Provider: types.ProviderLocal, Op: "refresh", Code: CodeInvalidGrant, Message: "no refresh token available"}
	}

	return l.requestToken(ctx, "refresh", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
}

// Logout has no remote counterpart for local sessions.
func (l *LocalProvider) Logout(ctx context.Context, accessToken string) {
	l.logger.Debug().Msg("local logout, nothing to revoke")
}

// StorageLocation describes where local tokens are kept.
func (l *LocalProvider) StorageLocation() string {
	return l.store.Location()
}

// SaveToken persists the token in the local namespace.
func (l *LocalProvider) SaveToken(ctx context.Context, token *StoredToken) {
	l.store.Save(ctx, token)
}

// LoadToken returns the persisted local token or nil.
func (l *LocalProvider) LoadToken(ctx context.Context) *StoredToken {
	return l.store.Load(ctx)
}

// RemoveToken deletes the persisted local token.
func (l *LocalProvider) RemoveToken(ctx context.Context) {
	l.store.Remove(ctx)
}

func (l *LocalProvider) requestToken(ctx context.Context, op, path string, payload map[string]string) (*StoredToken, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	endpoint := l.apiBase + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: endpoint, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: endpoint, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeErrorBody(types.ProviderLocal, op, resp.StatusCode, data)
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%s response carries no access_token", op)
	}

	return tr.toStoredToken(types.ProviderLocal, l.now(), l.lifetime), nil
}

// tokenResponse is the token payload returned by the CMS backend.
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresTime  *time.Time `json:"expires_time"`
	ExpiresIn    int        `json:"expires_in"`
}

func (r tokenResponse) toStoredToken(provider types.ProviderType, now time.Time, lifetime time.Duration) *StoredToken {
	token := &StoredToken{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    provider,
	}

	switch {
	case r.ExpiresTime != nil && !r.ExpiresTime.IsZero():
		token.ExpiresTime = r.ExpiresTime.UTC()
	case r.ExpiresIn > 0:
		token.ExpiresTime = now.Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	default:
		token.ExpiresTime = expiryFallback(r.AccessToken, now, lifetime)
	}

	return token
}

// expiryFallback reads the JWT exp claim, or applies lifetime from now.
func expiryFallback(accessToken string, now time.Time, lifetime time.Duration) time.Time {
	if exp, err := TokenExpiry(accessToken); err == nil {
		return exp.UTC()
	}
	return now.Add(lifetime).UTC()
}

// errorBody covers the error shapes of the CMS backend and OAuth servers.
type errorBody struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Message          string          `json:"message"`
	Detail           json.RawMessage `json:"detail"`
}

func decodeErrorBody(provider types.ProviderType, op string, status int, data []byte) *AuthError {
	authErr := &AuthError{Provider: provider, Op: op, Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		authErr.Message = strings.TrimSpace(string(data))
		if authErr.Message == "" {
			authErr.Message = http.StatusText(status)
		}
		return authErr
	}

	authErr.Code = body.Error
	switch {
	case body.ErrorDescription != "":
		authErr.Message = body.ErrorDescription
	case body.Message != "":
		authErr.Message = body.Message
	case len(body.Detail) > 0:
		var detail string
		if err := json.Unmarshal(body.Detail, &detail); err == nil {
			authErr.Message = detail
		} else {
			authErr.Message = string(body.Detail)
		}
	default:
		authErr.Message = http.StatusText(status)
	}

	return authErr
}
