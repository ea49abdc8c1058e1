// Package builtin implements the cmsctl commands.
//
// Commands are built against an Env that the root command fills in from its
// persistent pre-run hook, after flags are parsed and configuration is
// loaded. Tests build an Env directly.
package builtin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/cache"
	"github.com/openzim/cmsctl/pkg/cli/interactive"
	"github.com/openzim/cmsctl/pkg/config"
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/openzim/cmsctl/pkg/session"
	"github.com/openzim/cmsctl/pkg/state"
	"github.com/rs/zerolog"
)

// CallbackWaiter receives the redirect of an oauth login.
type CallbackWaiter interface {
	Wait(ctx context.Context, timeout time.Duration) (string, error)
	Close() error
}

// Env carries the subsystems commands run against.
type Env struct {
	CLIName string
	Version string

	Config   *config.Config
	Loader   *config.Loader
	Session  *session.Controller
	State    *state.Manager
	Output   *output.Manager
	Prompter *interactive.Prompter
	Detector *secrets.Detector
	Logger   zerolog.Logger
	// Cache keeps rarely changing responses; nil when disabled.
	Cache *cache.Store

	// Format is the resolved output format.
	Format string
	// Spinner shows progress while waiting; disabled in tests.
	Spinner bool
	// Listen starts the loopback listener of oauth logins.
	Listen func(redirectURL string) (CallbackWaiter, error)
}

func (e *Env) out() io.Writer {
	return e.Output.Writer()
}

func (e *Env) listen(redirectURL string) (CallbackWaiter, error) {
	if e.Listen != nil {
		return e.Listen(redirectURL)
	}
	return auth.ListenForCallback(redirectURL)
}

// print renders data in the resolved format.
func (e *Env) print(data interface{}, cfg *output.FormatConfig) error {
	return e.Output.Print(data, e.Format, cfg)
}

// message prints a confirmation line in table mode.
func (e *Env) message(format string, args ...interface{}) {
	e.Output.Message(e.Format, fmt.Sprintf(format, args...))
}

// failure turns recorded user-facing messages into a command error.
func failure(op string, msgs []string) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%s failed", op)
	}
	return fmt.Errorf("%s failed: %s", op, strings.Join(msgs, "; "))
}
