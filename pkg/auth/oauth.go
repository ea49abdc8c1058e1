package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openzim/cmsctl/pkg/auth/storage"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// pendingLoginTTL bounds how long an authorization URL stays redeemable.
const pendingLoginTTL = 10 * time.Minute

// OAuthProvider implements the OAuth2 authorization code redirect flow.
type OAuthProvider struct {
	config       *OAuthConfig
	oauth2Config *oauth2.Config
	revokeURL    string
	lifetime     time.Duration
	httpClient   *http.Client
	opener       BrowserOpener
	store        *storage.ProviderStore
	logger       zerolog.Logger
	now          func() time.Time

	mu      sync.Mutex
	pending *pendingLogin
}

// pendingLogin is the state of one login attempt awaiting its callback.
type pendingLogin struct {
	state     string
	verifier  string
	createdAt time.Time
}

// NewOAuthProvider creates an oauth provider.
func NewOAuthProvider(config *OAuthConfig, store *storage.ProviderStore, opener BrowserOpener, httpClient *http.Client, logger zerolog.Logger) (*OAuthProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("oauth config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if err := validateOAuthConfig(config); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	if opener == nil {
		opener = &SystemBrowserOpener{}
	}

	base := strings.TrimRight(config.BaseURL, "/")
	endpoint := oauth2.Endpoint{
		AuthURL:  firstNonEmpty(config.AuthURL, base+"/oauth2/auth"),
		TokenURL: firstNonEmpty(config.TokenURL, base+"/oauth2/token"),
	}

	revokeURL := config.RevokeURL
	if revokeURL == "" && base != "" {
		revokeURL = base + "/oauth2/revoke"
	}

	lifetime := config.DefaultLifetime
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}

	return &OAuthProvider{
		config: config,
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
			Endpoint:     endpoint,
		},
		revokeURL:  revokeURL,
		lifetime:   lifetime,
		httpClient: httpClient,
		opener:     opener,
		store:      store,
		logger:     logger.With().Str("provider", string(types.ProviderOAuth)).Logger(),
		now:        time.Now,
	}, nil
}

func validateOAuthConfig(config *OAuthConfig) error {
	if config.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if config.BaseURL == "" && (config.AuthURL == "" || config.TokenURL == "") {
		return fmt.Errorf("base_url or both auth_url and token_url are required")
	}
	if config.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	return nil
}

// Type returns the provider tag.
func (o *OAuthProvider) Type() types.ProviderType {
	return types.ProviderOAuth
}

// InitiateLogin redirects to the authorization endpoint. The token arrives
// through OnCallback, so no token is returned. Credentials are ignored.
func (o *OAuthProvider) InitiateLogin(ctx context.Context, username, password string) (*StoredToken, error) {
	authURL := o.AuthCodeURL()

	if err := o.opener.Open(authURL); err != nil {
		return nil, &AuthError{Provider: types.ProviderOAuth, Op: "login", Message: "could not open the authorization page", Cause: err}
	}
	return nil, nil
}

// AuthCodeURL starts a new login attempt and returns its authorization URL.
// Any previous attempt is abandoned.
func (o *OAuthProvider) AuthCodeURL() string {
	pending := &pendingLogin{
		state:     uuid.NewString(),
		createdAt: o.now(),
	}

	var opts []oauth2.AuthCodeOption
	if o.config.PKCE {
		pending.verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(pending.verifier))
	}

	o.mu.Lock()
	o.pending = pending
	o.mu.Unlock()

	return o.oauth2Config.AuthCodeURL(pending.state, opts...)
}

// OnCallback validates the redirect URL and exchanges its code for a token.
// A login attempt can be redeemed once.
func (o *OAuthProvider) OnCallback(ctx context.Context, callbackURL string) (*StoredToken, error) {
	params, err := callbackParams(callbackURL)
	if err != nil {
		return nil, &AuthError{Provider: types.ProviderOAuth, Op: "callback", Code: CodeMissingParameters, Message: err.Error(), Cause: err}
	}

	if code := params.Get("error"); code != "" {
		o.takePending()
		return nil, &AuthError{Provider: types.ProviderOAuth, Op: "callback", Code: code, Message: params.Get("error_description")}
	}

	code, state := params.Get("code"), params.Get("state")
	if code == "" || state == "" {
		return nil, &AuthError{Provider: types.ProviderOAuth, Op: "callback", Code: CodeMissingParameters, Message: "code and state parameters are required"}
	}

	pending := o.takePending()
	if pending == nil || pending.state != state {
		return nil, &AuthError{Provider: types.ProviderOAuth, Op: "callback", Code: CodeInvalidState, Message: "callback does not match a pending login"}
	}
	if o.now().Sub(pending.createdAt) > pendingLoginTTL {
		return nil, &AuthError{Provider: types.ProviderOAuth, Op: "callback", Code: CodeInvalidState, Message: "login attempt expired"}
	}

	var opts []oauth2.AuthCodeOption
	if pending.verifier != "" {
		opts = append(opts, oauth2.VerifierOption(pending.verifier))
	}

	tok, err := o.oauth2Config.Exchange(o.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, o.classifyTokenError("callback", err)
	}

	return o.convertToken(tok, ""), nil
}

// RefreshAuth uses the refresh_token grant.
func (o *OAuthProvider) RefreshAuth(ctx context.Context, refreshToken string) (*StoredToken, error) {
	if refreshToken == "" {
		return nil, &AuthError{Provider: types.ProviderOAuth, Op: "refresh", Code: CodeInvalidGrant, Message: "no refresh token available"}
	}

	// An empty access token forces the token source to refresh.
	source := o.oauth2Config.TokenSource(o.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return nil, o.classifyTokenError("refresh", err)
	}

	return o.convertToken(tok, refreshToken), nil
}

// Logout revokes the access token when a revocation endpoint is known.
func (o *OAuthProvider) Logout(ctx context.Context, accessToken string) {
	o.takePending()

	if accessToken == "" || o.revokeURL == "" {
		return
	}

	if err := o.revoke(ctx, accessToken); err != nil {
		o.logger.Warn().Err(err).Msg("token revocation failed")
	}
}

// StorageLocation describes where oauth tokens are kept.
func (o *OAuthProvider) StorageLocation() string {
	return o.store.Location()
}

// SaveToken persists the token in the oauth namespace.
func (o *OAuthProvider) SaveToken(ctx context.Context, token *StoredToken) {
	o.store.Save(ctx, token)
}

// LoadToken returns the persisted oauth token or nil.
func (o *OAuthProvider) LoadToken(ctx context.Context) *StoredToken {
	return o.store.Load(ctx)
}

// RemoveToken deletes the persisted oauth token.
func (o *OAuthProvider) RemoveToken(ctx context.Context) {
	o.store.Remove(ctx)
}

func (o *OAuthProvider) takePending() *pendingLogin {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.pending
	o.pending = nil
	return p
}

func (o *OAuthProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func (o *OAuthProvider) revoke(ctx context.Context, accessToken string) error {
	form := url.Values{}
	form.Set("token", accessToken)
	form.Set("token_type_hint", "access_token")
	form.Set("client_id", o.config.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if o.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(o.config.ClientID), url.QueryEscape(o.config.ClientSecret))
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "logout", URL: o.revokeURL, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return decodeErrorBody(types.ProviderOAuth, "logout", resp.StatusCode, body)
	}
	return nil
}

// classifyTokenError maps token endpoint failures onto AuthError or NetworkError.
func (o *OAuthProvider) classifyTokenError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		authErr := &AuthError{
			Provider: types.ProviderOAuth,
			Op:       op,
			Code:     retrieveErr.ErrorCode,
			Message:  retrieveErr.ErrorDescription,
			Cause:    err,
		}
		if retrieveErr.Response != nil {
			authErr.Status = retrieveErr.Response.StatusCode
		}
		if authErr.Code == "" && authErr.Message == "" {
			authErr.Message = strings.TrimSpace(string(retrieveErr.Body))
		}
		return authErr
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &NetworkError{Op: op, URL: o.oauth2Config.Endpoint.TokenURL, Cause: err}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// convertToken converts an oauth2.Token. Servers may omit the refresh token
// on refresh, in which case the previous one stays valid.
func (o *OAuthProvider) convertToken(tok *oauth2.Token, previousRefresh string) *StoredToken {
	token := &StoredToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: firstNonEmpty(tok.RefreshToken, previousRefresh),
		TokenType:    types.ProviderOAuth,
		ExpiresTime:  tok.Expiry.UTC(),
	}
	if tok.Expiry.IsZero() {
		token.ExpiresTime = expiryFallback(tok.AccessToken, o.now(), o.lifetime)
	}
	return token
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
