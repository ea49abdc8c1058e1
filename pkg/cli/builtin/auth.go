package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/openzim/cmsctl/pkg/cli/interactive"
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/progress"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/spf13/cobra"
)

// defaultCallbackTimeout bounds the wait for the browser redirect.
const defaultCallbackTimeout = 5 * time.Minute

// AuthStatus is the output of auth status.
type AuthStatus struct {
	Provider  types.ProviderType   `json:"provider"`
	State     string               `json:"state"`
	Username  string               `json:"username,omitempty"`
	Role      string               `json:"role,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
	Token     string               `json:"token,omitempty"`
	Providers []types.ProviderType `json:"providers"`
	Storage   string               `json:"storage,omitempty"`
	Errors    []string             `json:"errors,omitempty"`
}

// NewAuthCommand creates the auth command group.
func NewAuthCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long: `Manage the login session against the CMS API.

Available subcommands:
  login   - Log in with the local or oauth provider
  logout  - Log out and remove the stored token
  status  - Show the session status
  refresh - Refresh the access token
  use     - Switch the active provider`,
	}

	cmd.AddCommand(newAuthLoginCommand(env))
	cmd.AddCommand(newAuthLogoutCommand(env))
	cmd.AddCommand(newAuthStatusCommand(env))
	cmd.AddCommand(newAuthRefreshCommand(env))
	cmd.AddCommand(newAuthUseCommand(env))

	return cmd
}

type loginOptions struct {
	provider string
	username string
	paste    bool
	timeout  time.Duration
}

// newAuthLoginCommand creates the auth login subcommand.
func newAuthLoginCommand(env *Env) *cobra.Command {
	opts := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token",
		Long: `Log in to the CMS API and store the token.

The local provider asks for a username and password. When stdin is not a
terminal they are read from its first two lines.

The oauth provider opens the authorization page and waits for the browser
to come back on the configured redirect URL. With --paste the redirect URL
is read from stdin instead, for machines where no browser can reach the
loopback address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd.Context(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider to log in with (local, oauth)")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Username for the local provider")
	cmd.Flags().BoolVar(&opts.paste, "paste", false, "Read the oauth redirect URL from stdin")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "How long to wait for the oauth redirect")
	_ = cmd.RegisterFlagCompletionFunc("provider", FixedCompletion(string(types.ProviderLocal), string(types.ProviderOAuth)))

	return cmd
}

func runAuthLogin(ctx context.Context, env *Env, opts *loginOptions) error {
	provider := types.ProviderType(opts.provider)
	if provider == "" {
		provider = env.Session.ActiveProvider()
	}
	if !provider.Valid() {
		return fmt.Errorf("unknown provider %q", opts.provider)
	}

	var err error
	switch provider {
	case types.ProviderOAuth:
		err = loginOAuth(ctx, env, opts)
	default:
		err = loginLocal(ctx, env, opts)
	}
	if err != nil {
		return err
	}

	if err := env.State.SaveActiveProvider(provider); err != nil {
		env.Logger.Warn().Err(err).Msg("failed to remember the active provider")
	}

	env.message("Logged in as %s (%s)", env.Session.Username(), provider)
	return nil
}

func loginLocal(ctx context.Context, env *Env, opts *loginOptions) error {
	username := opts.username
	if username == "" {
		var err error
		username, err = env.Prompter.Text(&interactive.TextPromptOptions{Message: "Username", Required: true})
		if err != nil {
			return err
		}
	}

	password, err := env.Prompter.Password("Password")
	if err != nil {
		return err
	}

	if !env.Session.Authenticate(ctx, types.ProviderLocal, username, password) {
		return failure("login", env.Session.Errors())
	}
	return nil
}

func loginOAuth(ctx context.Context, env *Env, opts *loginOptions) error {
	var waiter CallbackWaiter
	if !opts.paste {
		var err error
		waiter, err = env.listen(env.Config.OAuth.RedirectURL)
		if err != nil {
			return fmt.Errorf("%w (use --paste to enter the redirect URL manually)", err)
		}
		defer func() { _ = waiter.Close() }()
	}

	if !env.Session.Authenticate(ctx, types.ProviderOAuth, "", "") {
		return failure("login", env.Session.Errors())
	}

	var (
		callbackURL string
		err         error
	)
	if waiter != nil {
		timeout := opts.timeout
		if timeout <= 0 {
			timeout = env.Config.OAuth.CallbackTimeout
		}
		if timeout <= 0 {
			timeout = defaultCallbackTimeout
		}

		spin := progress.NewSpinner(&progress.Config{Enabled: env.Spinner, Writer: env.Output.ErrWriter()})
		_ = spin.Start("Waiting for the authorization in the browser...")
		callbackURL, err = waiter.Wait(ctx, timeout)
		if err != nil {
			spin.Failure(err.Error())
			return err
		}
		spin.Stop()
	} else {
		callbackURL, err = env.Prompter.Text(&interactive.TextPromptOptions{
			Message:  "Paste the URL the browser was redirected to",
			Required: true,
		})
		if err != nil {
			return err
		}
	}

	if !env.Session.HandleCallback(ctx, types.ProviderOAuth, callbackURL) {
		return failure("login", env.Session.Errors())
	}
	return nil
}

// newAuthLogoutCommand creates the auth logout subcommand.
func newAuthLogoutCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and remove the stored token",
		Long:  "Revoke the token when the provider supports it and remove it from storage.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env.Session.Logout(cmd.Context())
			env.message("Logged out")
			return nil
		},
	}
}

// newAuthStatusCommand creates the auth status subcommand.
func newAuthStatusCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session status",
		Long: `Show the active provider, the logged in user and the token expiry.

An expired token is refreshed first. The token itself is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := authStatus(cmd.Context(), env)
			if err != nil {
				return err
			}
			return env.print(status, env.Output.Config().WithColumns(
				output.Column{Field: "provider", Header: "Provider"},
				output.Column{Field: "state", Header: "State"},
				output.Column{Field: "username", Header: "User"},
				output.Column{Field: "role", Header: "Role"},
				output.Column{Field: "expires_at", Header: "Expires"},
				output.Column{Field: "token", Header: "Token"},
				output.Column{Field: "providers", Header: "Providers"},
				output.Column{Field: "storage", Header: "Storage"},
				output.Column{Field: "errors", Header: "Errors"},
			))
		},
	}
}

func authStatus(ctx context.Context, env *Env) (*AuthStatus, error) {
	token, err := env.Session.LoadToken(ctx)
	if err != nil {
		return nil, err
	}
	if token != nil && env.Session.User() == nil {
		// The user is not persisted with the token.
		_, _ = env.Session.FetchUser(ctx)
	}

	status := &AuthStatus{
		Provider:  env.Session.ActiveProvider(),
		State:     env.Session.State().String(),
		Providers: env.Session.Providers(),
		Storage:   env.Session.StorageLocation(),
		Errors:    env.Session.Errors(),
	}
	if user := env.Session.User(); user != nil {
		status.Username = user.Username
		status.Role = user.Role
	}
	if token != nil {
		expires := token.ExpiresTime
		status.ExpiresAt = &expires
		status.Token = secrets.MaskToken(token.AccessToken)
	}
	return status, nil
}

// newAuthRefreshCommand creates the auth refresh subcommand.
func newAuthRefreshCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token",
		Long:  "Exchange the stored refresh token for a new access token, even when the current one is still valid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			current, err := env.Session.LoadToken(ctx)
			if err != nil {
				return err
			}
			if current == nil {
				return failure("refresh", append([]string{"not logged in"}, env.Session.Errors()...))
			}

			token, err := env.Session.ForceRefresh(ctx)
			if err != nil {
				return err
			}
			if token == nil {
				return failure("refresh", env.Session.Errors())
			}

			env.message("Token refreshed, expires %s", token.ExpiresTime.Local().Format(time.RFC1123))
			return nil
		},
	}
}

// newAuthUseCommand creates the auth use subcommand.
func newAuthUseCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:       "use <provider>",
		Short:     "Switch the active provider",
		Long:      "Switch the provider whose stored token backs the session. Tokens of other providers are kept.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(types.ProviderLocal), string(types.ProviderOAuth)},
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := types.ProviderType(args[0])
			if err := env.Session.SetActiveProvider(provider); err != nil {
				return err
			}
			if err := env.State.SaveActiveProvider(provider); err != nil {
				return err
			}
			env.message("Active provider is now %s", provider)
			return nil
		},
	}
}
