// Package runtime assembles the cmsctl command tree and its subsystems.
//
// # Initialization Flow
//
// Subsystems are built in the persistent pre-run hook of the root command,
// once flags are parsed:
//
//  1. Load configuration (defaults, file, CMSCTL_* environment, flags)
//  2. Build the output manager, secret detector and logger
//  3. Validate the configuration
//  4. Build the HTTP client, provider registry, state manager and cache
//  5. Build the session controller
//
// Commands annotated with skipInit (version, completion) run without any of
// these. Commands annotated with configOnly (the config and cache groups)
// stop after step 2 so that an invalid configuration can be repaired.
//
// # Example Usage
//
//	func main() {
//	    rt := runtime.New(runtime.Options{CLIName: "cmsctl", Version: version})
//	    if err := rt.Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
//
// # Global Flags
//
//	--config         Path to config file
//	--cms-api        CMS API root
//	--provider       Provider to use (local, oauth)
//	--output, -o     Output format (table, json, yaml)
//	--no-color       Disable colored output
//	--verbose, -v    Log informational messages
//	--debug          Log debug messages, including HTTP requests
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/openzim/cmsctl/pkg/cache"
	"github.com/openzim/cmsctl/pkg/cli/builtin"
	"github.com/openzim/cmsctl/pkg/cli/interactive"
	"github.com/openzim/cmsctl/pkg/config"
	"github.com/openzim/cmsctl/pkg/output"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/openzim/cmsctl/pkg/session"
	"github.com/openzim/cmsctl/pkg/state"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Command annotations controlling initialization.
const (
	annotationSkipInit   = "skipInit"
	annotationConfigOnly = "configOnly"
)

// Options configures a Runtime.
type Options struct {
	CLIName string
	Version string
	// BuildDate is an RFC 3339 timestamp set at build time.
	BuildDate string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive forces the prompt mode; by default prompts are interactive
	// when stdin is a terminal.
	Interactive *bool
	// Listen replaces the loopback listener of oauth logins.
	Listen func(redirectURL string) (builtin.CallbackWaiter, error)
	// Opener replaces the system browser launcher.
	Opener auth.BrowserOpener
}

type globalFlags struct {
	configPath string
	cmsAPI     string
	provider   string
	output     string
	noColor    bool
	verbose    bool
	debug      bool
}

// Runtime represents the runtime environment of the CLI.
type Runtime struct {
	opts      Options
	buildTime time.Time
	flags     globalFlags
	loader    *config.Loader
	env       *builtin.Env
	rootCmd   *cobra.Command
}

// New creates a Runtime and its command tree.
func New(opts Options) *Runtime {
	if opts.CLIName == "" {
		opts.CLIName = "cmsctl"
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	rt := &Runtime{
		opts:   opts,
		loader: config.NewLoader(opts.CLIName),
	}
	if t, err := time.Parse(time.RFC3339, opts.BuildDate); err == nil {
		rt.buildTime = t
	}

	rt.env = &builtin.Env{
		CLIName: opts.CLIName,
		Version: opts.Version,
		Loader:  rt.loader,
		Logger:  zerolog.Nop(),
		Listen:  opts.Listen,
	}

	rt.buildCommandTree()
	return rt
}

// buildCommandTree creates the root command with its global flags and
// subcommands.
func (rt *Runtime) buildCommandTree() {
	rt.rootCmd = &cobra.Command{
		Use:   rt.opts.CLIName,
		Short: "Command-line console of the openZIM Content Management System",
		Long: `cmsctl browses and edits the titles, books, collections and ZIM-farm
notifications of the openZIM CMS.

Log in first with "` + rt.opts.CLIName + ` auth login". Configuration lives in
the file shown by "` + rt.opts.CLIName + ` config path".`,
		Version:       builtin.VersionShort(rt.opts.Version, rt.buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.preRunHook(cmd)
		},
	}
	rt.rootCmd.SetIn(rt.opts.Stdin)
	rt.rootCmd.SetOut(rt.opts.Stdout)
	rt.rootCmd.SetErr(rt.opts.Stderr)

	rt.addGlobalFlags()
	rt.addCommands()
}

// addGlobalFlags adds global flags to the root command.
func (rt *Runtime) addGlobalFlags() {
	flags := rt.rootCmd.PersistentFlags()
	flags.StringVar(&rt.flags.configPath, "config", "", "Path to config file")
	flags.StringVar(&rt.flags.cmsAPI, "cms-api", "", "CMS API root, e.g. https://api.cms.openzim.org/v1")
	flags.StringVar(&rt.flags.provider, "provider", "", "Provider to use (local, oauth)")
	flags.StringVarP(&rt.flags.output, "output", "o", "", "Output format (table, json, yaml)")
	flags.BoolVar(&rt.flags.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&rt.flags.verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&rt.flags.debug, "debug", false, "Enable debug mode")

	builtin.SetupCompletionFunctions(rt.rootCmd, output.NewManager().SupportedFormats())
}

// addCommands adds the resource and built-in commands.
func (rt *Runtime) addCommands() {
	env := rt.env

	rt.rootCmd.AddCommand(builtin.NewAuthCommand(env))
	rt.rootCmd.AddCommand(builtin.NewTitlesCommand(env))
	rt.rootCmd.AddCommand(builtin.NewBooksCommand(env))
	rt.rootCmd.AddCommand(builtin.NewCollectionsCommand(env))
	rt.rootCmd.AddCommand(builtin.NewNotificationsCommand(env))
	rt.rootCmd.AddCommand(builtin.NewWarehousePathsCommand(env))

	configCmd := builtin.NewConfigCommand(env)
	configCmd.Annotations = map[string]string{annotationConfigOnly: "true"}
	rt.rootCmd.AddCommand(configCmd)

	cacheCmd := builtin.NewCacheCommand(env)
	cacheCmd.Annotations = map[string]string{annotationConfigOnly: "true"}
	rt.rootCmd.AddCommand(cacheCmd)

	versionCmd := builtin.NewVersionCommand(&builtin.VersionOptions{
		Version:   rt.opts.Version,
		BuildTime: rt.buildTime,
		CMSAPI:    rt.cmsAPI,
	})
	versionCmd.Annotations = map[string]string{annotationSkipInit: "true"}
	rt.rootCmd.AddCommand(versionCmd)

	completionCmd := builtin.NewCompletionCommand(env, rt.rootCmd)
	completionCmd.Annotations = map[string]string{annotationSkipInit: "true"}
	rt.rootCmd.AddCommand(completionCmd)
}

// cmsAPI returns the configured API root without failing.
func (rt *Runtime) cmsAPI() string {
	if rt.flags.cmsAPI != "" {
		return rt.flags.cmsAPI
	}
	if rt.flags.configPath != "" {
		rt.loader.SetConfigPath(rt.flags.configPath)
	}
	cfg, err := rt.loader.Load()
	if err != nil {
		return ""
	}
	return cfg.CMSAPI
}

// annotated reports whether cmd or one of its parents carries key.
func annotated(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[key] != "" {
			return true
		}
	}
	return false
}

// preRunHook is executed before every command.
func (rt *Runtime) preRunHook(cmd *cobra.Command) error {
	if annotated(cmd, annotationSkipInit) {
		return nil
	}

	cfg, err := rt.loadConfig()
	if err != nil {
		return err
	}

	if err := rt.initOutput(cfg); err != nil {
		return err
	}
	if annotated(cmd, annotationConfigOnly) {
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration (see '%s config validate'):\n%w", rt.opts.CLIName, err)
	}
	return rt.initSession(cfg)
}

// loadConfig resolves the configuration with the global flags applied.
func (rt *Runtime) loadConfig() (*config.Config, error) {
	if rt.flags.configPath != "" {
		rt.loader.SetConfigPath(rt.flags.configPath)
	}

	bindings := map[string]string{
		"cms_api":          "cms-api",
		"default_provider": "provider",
		"output.format":    "output",
	}
	for key, name := range bindings {
		if err := rt.loader.BindFlag(key, rt.rootCmd.PersistentFlags().Lookup(name)); err != nil {
			return nil, err
		}
	}

	cfg, err := rt.loader.Load()
	if err != nil {
		return nil, err
	}

	if rt.flags.noColor {
		cfg.Output.Color = "never"
	}
	switch {
	case rt.flags.debug:
		cfg.Log.Level = zerolog.LevelDebugValue
	case rt.flags.verbose:
		cfg.Log.Level = zerolog.LevelInfoValue
	}

	rt.env.Config = cfg
	return cfg, nil
}

// initOutput builds the output manager, secret detector, logger and
// prompter.
func (rt *Runtime) initOutput(cfg *config.Config) error {
	env := rt.env

	manager := output.NewManager()
	if !manager.IsFormatSupported(cfg.Output.Format) {
		return fmt.Errorf("unsupported output format %q (supported: %v)", cfg.Output.Format, manager.SupportedFormats())
	}
	colors := rt.colorEnabled(cfg.Output.Color)
	if !colors {
		pterm.DisableColor()
	}
	manager.SetDefaultFormat(cfg.Output.Format)
	manager.SetConfig(output.NewFormatConfig().WithColors(colors))
	manager.SetWriters(rt.opts.Stdout, rt.opts.Stderr)
	env.Output = manager
	env.Format = manager.DefaultFormat()

	secretsConfig := &secrets.Config{Behavior: &cfg.Secrets}
	secretsConfig.ApplyEnvironmentOverrides(rt.loader.EnvPrefix())
	detector, err := secretsConfig.Detector()
	if err != nil {
		return fmt.Errorf("invalid secrets configuration: %w", err)
	}
	env.Detector = detector

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.WarnLevel
	}
	env.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        secrets.NewMaskingWriter(detector, rt.opts.Stderr),
		NoColor:    !colors,
		TimeFormat: time.TimeOnly,
	}).Level(level).With().Timestamp().Logger()

	interactiveMode := isTerminal(rt.opts.Stdin)
	if rt.opts.Interactive != nil {
		interactiveMode = *rt.opts.Interactive
	}
	env.Prompter = interactive.NewPrompter(&interactive.PrompterConfig{
		Input:              rt.opts.Stdin,
		Output:             rt.opts.Stderr,
		DisableInteractive: !interactiveMode,
	})
	env.Spinner = isTerminal(rt.opts.Stderr)

	return nil
}

// initSession builds the HTTP client, providers, state, cache and session.
func (rt *Runtime) initSession(cfg *config.Config) error {
	env := rt.env

	httpClient := &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: secrets.NewTransport(env.Detector, http.DefaultTransport, env.Logger),
	}

	opener := rt.opts.Opener
	if opener == nil {
		opener = &auth.PrintingOpener{
			Writer:   rt.opts.Stderr,
			Launch:   cfg.OAuth.AutoOpenBrowser,
			Launcher: &auth.SystemBrowserOpener{},
		}
	}

	registry, err := auth.NewRegistryFromConfig(cfg.AuthConfig(rt.opts.CLIName, httpClient, opener), env.Logger)
	if err != nil {
		return err
	}

	stateManager, err := state.NewManager(rt.opts.CLIName)
	if err != nil {
		// A corrupt state file only loses preferences.
		env.Logger.Warn().Err(err).Msg("ignoring unreadable state file")
		stateManager = state.NewDefaultManager(state.DefaultPath(rt.opts.CLIName))
	}
	env.State = stateManager

	if cfg.Cache.Enabled {
		store, err := cache.New(rt.opts.CLIName, cfg.Cache.TTL)
		if err != nil {
			env.Logger.Warn().Err(err).Msg("response cache disabled")
		} else {
			env.Cache = store
		}
	}

	ctrl, err := session.New(session.Config{
		Registry:        registry,
		DefaultProvider: rt.defaultProvider(cfg, registry, stateManager),
		APIBase:         cfg.CMSAPI,
		HTTPClient:      httpClient,
		Logger:          &env.Logger,
	})
	if err != nil {
		return err
	}
	env.Session = ctrl

	env.Logger.Debug().
		Str("cms_api", cfg.CMSAPI).
		Str("provider", string(ctrl.ActiveProvider())).
		Str("config", rt.loader.ConfigPath()).
		Msg("session initialized")
	return nil
}

// defaultProvider picks the active provider: the --provider flag, then the
// provider of the last login, then the configured default.
func (rt *Runtime) defaultProvider(cfg *config.Config, registry *auth.Registry, st *state.Manager) types.ProviderType {
	if rt.flags.provider != "" {
		return types.ProviderType(rt.flags.provider)
	}
	if last := st.ActiveProvider(); last != "" {
		if _, err := registry.Get(last); err == nil {
			return last
		}
	}
	return cfg.DefaultProvider
}

func (rt *Runtime) colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return isTerminal(rt.opts.Stdout)
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Root returns the root command.
func (rt *Runtime) Root() *cobra.Command {
	return rt.rootCmd
}

// Env returns the environment commands run against. It is filled in by the
// pre-run hook.
func (rt *Runtime) Env() *builtin.Env {
	return rt.env
}

// Execute runs the CLI with os.Args.
func (rt *Runtime) Execute() error {
	return rt.ExecuteContext(context.Background())
}

// ExecuteContext runs the CLI. Errors are printed in the output format.
func (rt *Runtime) ExecuteContext(ctx context.Context) error {
	err := rt.rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	if rt.env.Output != nil && !errors.Is(err, context.Canceled) {
		_ = rt.env.Output.PrintError(err, rt.env.Format)
	} else {
		_, _ = fmt.Fprintf(rt.opts.Stderr, "Error: %v\n", err)
	}
	return err
}

// SetArgs sets the arguments of the next execution.
func (rt *Runtime) SetArgs(args []string) {
	rt.rootCmd.SetArgs(args)
}
