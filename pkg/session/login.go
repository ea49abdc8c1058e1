package session

import (
	"context"

	"github.com/openzim/cmsctl/pkg/api"
	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/auth/types"
)

// Authenticate logs in with the given provider, which becomes the active one.
//
// For the local provider the token is returned by the backend and the user
// is fetched with it. For the oauth provider the call returns true once the
// redirect is initiated; the login completes in HandleCallback.
func (c *Controller) Authenticate(ctx context.Context, provider types.ProviderType, username, password string) bool {
	p, ok := c.beginLogin(provider)
	if !ok {
		return false
	}
	defer c.endLogin()

	token, err := p.InitiateLogin(ctx, username, password)
	if err != nil {
		c.failLogin(ctx, p, "login", err, false)
		return false
	}

	if token == nil {
		c.resetSession()
		c.logger.Info().Str("provider", string(p.Type())).Msg("login redirect initiated, awaiting callback")
		return true
	}

	return c.completeLogin(ctx, p, token, false)
}

// HandleCallback completes a redirect login from the full callback URL.
func (c *Controller) HandleCallback(ctx context.Context, provider types.ProviderType, callbackURL string) bool {
	p, ok := c.beginLogin(provider)
	if !ok {
		return false
	}
	defer c.endLogin()

	token, err := p.OnCallback(ctx, callbackURL)
	if err != nil {
		c.failLogin(ctx, p, "callback", err, false)
		return false
	}

	return c.completeLogin(ctx, p, token, true)
}

func (c *Controller) beginLogin(provider types.ProviderType) (auth.Provider, bool) {
	p, err := c.registry.Get(provider)
	if err != nil {
		c.clear(api.TranslateErrors(err))
		return nil, false
	}

	c.mu.Lock()
	switched := c.switchProviderLocked(p.Type())
	c.authenticating = true
	c.errors = nil
	c.mu.Unlock()

	if switched {
		c.group.Forget(refreshKey)
	}
	return p, true
}

func (c *Controller) endLogin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticating = false
}

// completeLogin installs a fresh token and fetches its user. The login fails
// when the user cannot be fetched.
func (c *Controller) completeLogin(ctx context.Context, p auth.Provider, token *types.StoredToken, persist bool) bool {
	if persist {
		p.SaveToken(ctx, token)
	}

	user, err := c.fetchUser(ctx, token)
	if err != nil {
		c.failLogin(ctx, p, "user lookup", err, true)
		return false
	}

	// A concurrent refresh of the previous token must not be shared.
	c.group.Forget(refreshKey)

	c.mu.Lock()
	c.epoch++
	c.token = token
	c.user = user
	c.errors = nil
	c.refreshFailed = false
	c.mu.Unlock()

	c.logger.Info().
		Str("provider", string(p.Type())).
		Str("username", user.Username).
		Str("token", maskedToken(token)).
		Time("expires", token.ExpiresTime).
		Msg("logged in")
	return true
}

// failLogin reverts to anonymous. The stored token is removed only when it
// was written by the failed attempt.
func (c *Controller) failLogin(ctx context.Context, p auth.Provider, op string, err error, removeStored bool) {
	c.logger.Warn().Err(err).Str("provider", string(p.Type())).Str("op", op).Msg("login failed")

	if removeStored {
		p.RemoveToken(ctx)
	}
	c.clear(api.TranslateErrors(err))
}
