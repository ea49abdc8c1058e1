package session

import (
	"context"

	"github.com/openzim/cmsctl/pkg/api"
	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/auth/types"
)

// LoadToken returns a usable token, refreshing an expired one first.
//
// It returns (nil, nil) when no token is available, including after a failed
// refresh. Only plumbing errors are returned: no provider configured, or ctx
// ending while waiting for a refresh. Provider, store and user lookup
// failures are recorded on Errors() instead.
func (c *Controller) LoadToken(ctx context.Context) (*types.StoredToken, error) {
	p, err := c.activeProvider()
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	failed := c.refreshFailed
	token := c.token
	c.mu.RUnlock()

	if failed {
		p.RemoveToken(ctx)
		c.clear(c.Errors())
		return nil, nil
	}

	if token == nil {
		token = p.LoadToken(ctx)
		if token == nil {
			return nil, nil
		}
		c.adopt(p, token)
	}

	if token.IsValid(c.now()) {
		return token.Clone(), nil
	}

	c.logger.Debug().Str("provider", string(p.Type())).Time("expired", token.ExpiresTime).Msg("token expired, refreshing")
	return c.Refresh(ctx)
}

// adopt installs a token read from the store unless the session already
// holds one.
func (c *Controller) adopt(p auth.Provider, token *types.StoredToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil && c.provider == p.Type() {
		c.token = token
	}
}

// Refresh exchanges the refresh token of the session for a new token.
//
// Concurrent calls share one provider call and observe the same result. The
// shared call is not cancelled when one caller's ctx ends; that caller stops
// waiting and gets ctx.Err().
func (c *Controller) Refresh(ctx context.Context) (*types.StoredToken, error) {
	return c.doRefresh(ctx, false)
}

// ForceRefresh is Refresh without the shortcut for a token that is still
// valid.
func (c *Controller) ForceRefresh(ctx context.Context) (*types.StoredToken, error) {
	return c.doRefresh(ctx, true)
}

func (c *Controller) doRefresh(ctx context.Context, force bool) (*types.StoredToken, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.refresh(detached, force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		token, _ := res.Val.(*types.StoredToken)
		return token.Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) refresh(ctx context.Context, force bool) (*types.StoredToken, error) {
	p, err := c.activeProvider()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.refreshFailed {
		c.mu.Unlock()
		p.RemoveToken(ctx)
		c.clear(c.Errors())
		return nil, nil
	}
	token := c.token
	epoch := c.epoch
	c.mu.Unlock()

	if token == nil {
		token = p.LoadToken(ctx)
	}
	if token == nil {
		return nil, nil
	}
	// A refresh that completed just before this one started already
	// installed a valid token.
	if !force && token.IsValid(c.now()) {
		c.adopt(p, token)
		return token, nil
	}

	c.setRefreshing(true)
	fresh, err := p.RefreshAuth(ctx, token.RefreshToken)
	c.setRefreshing(false)

	if err != nil {
		c.failRefresh(ctx, p, epoch, err)
		return nil, nil
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug().Msg("session changed during refresh, discarding result")
		return nil, nil
	}
	c.token = fresh
	c.errors = nil
	c.mu.Unlock()

	p.SaveToken(ctx, fresh)

	user, err := c.fetchUser(ctx, fresh)
	if err != nil {
		c.logger.Warn().Err(err).Msg("user lookup after refresh failed")
		c.recordErrors(api.TranslateErrors(err))
	} else {
		c.setUser(user)
	}

	c.logger.Info().
		Str("provider", string(p.Type())).
		Str("token", maskedToken(fresh)).
		Time("expires", fresh.ExpiresTime).
		Msg("token refreshed")
	return fresh, nil
}

// failRefresh clears the session. Permanent failures also remove the stored
// token and set the sticky flag.
func (c *Controller) failRefresh(ctx context.Context, p auth.Provider, epoch uint64, err error) {
	msgs := api.TranslateErrors(err)

	c.mu.RLock()
	stale := c.epoch != epoch
	c.mu.RUnlock()
	if stale {
		c.logger.Debug().Err(err).Msg("session changed during refresh, ignoring failure")
		return
	}

	if auth.IsPermanent(err) {
		c.logger.Warn().Err(err).Str("provider", string(p.Type())).Msg("refresh rejected, login required")
		p.RemoveToken(ctx)

		c.mu.Lock()
		c.refreshFailed = true
		c.token = nil
		c.user = nil
		c.errors = msgs
		c.mu.Unlock()
		return
	}

	c.logger.Warn().Err(err).Str("provider", string(p.Type())).Msg("refresh failed, will retry on next use")
	c.clear(msgs)
}

func (c *Controller) setRefreshing(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = v
}

func (c *Controller) setUser(user *types.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
}

// GetAPIService returns a request capability for resourcePath below the CMS
// API. It carries a bearer credential when a token is available and is
// unauthenticated otherwise.
func (c *Controller) GetAPIService(ctx context.Context, resourcePath string) (*api.Service, error) {
	token, err := c.LoadToken(ctx)
	if err != nil {
		return nil, err
	}

	opts := []api.Option{
		api.WithHTTPClient(c.httpClient),
		api.WithLogger(c.logger),
	}
	if token != nil {
		opts = append(opts, api.WithAccessToken(token.AccessToken))
	}
	return api.NewService(c.apiBase, resourcePath, opts...), nil
}

// FetchUser looks up the user of the current token and stores it on the session.
func (c *Controller) FetchUser(ctx context.Context) (*types.User, error) {
	token, err := c.LoadToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrNotAuthenticated
	}

	user, err := c.fetchUser(ctx, token)
	if err != nil {
		c.recordErrors(api.TranslateErrors(err))
		return nil, err
	}
	c.setUser(user)
	return user, nil
}

func (c *Controller) fetchUser(ctx context.Context, token *types.StoredToken) (*types.User, error) {
	service := api.NewService(c.apiBase, "auth",
		api.WithHTTPClient(c.httpClient),
		api.WithLogger(c.logger),
		api.WithAccessToken(token.AccessToken),
	)

	var user types.User
	if err := service.Get(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the token on a best-effort basis, removes it from the store
// and resets the session. It always succeeds locally.
func (c *Controller) Logout(ctx context.Context) {
	c.group.Forget(refreshKey)

	p, err := c.activeProvider()
	if err == nil {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token == nil {
			token = p.LoadToken(ctx)
		}

		var accessToken string
		if token != nil {
			accessToken = token.AccessToken
		}
		p.Logout(ctx, accessToken)
		p.RemoveToken(ctx)
	}

	c.mu.Lock()
	c.epoch++
	c.token = nil
	c.user = nil
	c.errors = nil
	c.refreshFailed = false
	c.refreshing = false
	c.mu.Unlock()

	c.logger.Info().Msg("logged out")
}
