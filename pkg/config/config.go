// Package config loads the cmsctl configuration.
//
// Values are resolved with the following priority:
//
//	flags > CMSCTL_* environment > config file > defaults
//
// The config file is $XDG_CONFIG_HOME/cmsctl/config.yaml unless CMSCTL_CONFIG
// or --config names another one. A missing file is not an error.
//
//	cms_api: https://api.cms.openzim.org/v1
//	default_provider: oauth
//	oauth:
//	  base_url: https://login.openzim.org
//	  client_id: cmsctl
//	  pkce: true
//	storage:
//	  type: keyring
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved configuration.
type Config struct {
	CMSAPI          string              `mapstructure:"cms_api" yaml:"cms_api"`
	DefaultProvider types.ProviderType  `mapstructure:"default_provider" yaml:"default_provider,omitempty"`
	Local           LocalConfig         `mapstructure:"local" yaml:"local"`
	OAuth           OAuthConfig         `mapstructure:"oauth" yaml:"oauth"`
	Storage         types.StorageConfig `mapstructure:"storage" yaml:"storage"`
	Output          OutputConfig        `mapstructure:"output" yaml:"output"`
	HTTP            HTTPConfig          `mapstructure:"http" yaml:"http"`
	Log             LogConfig           `mapstructure:"log" yaml:"log"`
	Cache           CacheConfig         `mapstructure:"cache" yaml:"cache"`
	Secrets         secrets.Behavior    `mapstructure:"secrets" yaml:"secrets"`
}

// LocalConfig configures the username and password provider.
type LocalConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	DefaultLifetime time.Duration `mapstructure:"default_lifetime" yaml:"default_lifetime,omitempty"`
}

// OAuthConfig configures the redirect provider. It is enabled when a client
// ID is set.
type OAuthConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	ClientID        string        `mapstructure:"client_id" yaml:"client_id,omitempty"`
	ClientSecret    string        `mapstructure:"client_secret" yaml:"client_secret,omitempty"`
	AuthURL         string        `mapstructure:"auth_url" yaml:"auth_url,omitempty"`
	TokenURL        string        `mapstructure:"token_url" yaml:"token_url,omitempty"`
	RevokeURL       string        `mapstructure:"revoke_url" yaml:"revoke_url,omitempty"`
	RedirectURL     string        `mapstructure:"redirect_url" yaml:"redirect_url,omitempty"`
	Scopes          []string      `mapstructure:"scopes" yaml:"scopes,omitempty"`
	PKCE            bool          `mapstructure:"pkce" yaml:"pkce"`
	DefaultLifetime time.Duration `mapstructure:"default_lifetime" yaml:"default_lifetime,omitempty"`
	AutoOpenBrowser bool          `mapstructure:"auto_open_browser" yaml:"auto_open_browser"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout" yaml:"callback_timeout,omitempty"`
}

// Enabled reports whether the oauth provider is configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != ""
}

// OutputConfig configures command output.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // table, json, yaml
	Color  string `mapstructure:"color" yaml:"color"`   // auto, always, never
}

// HTTPConfig configures the HTTP client.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// CacheConfig configures the response cache of rarely changing endpoints.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Loader resolves the configuration from defaults, file, environment and flags.
type Loader struct {
	cliName    string
	envPrefix  string
	configPath string
	v          *viper.Viper
}

// NewLoader creates a loader for cliName. The environment prefix is the
// upper-cased name.
func NewLoader(cliName string) *Loader {
	envPrefix := strings.ToUpper(strings.ReplaceAll(cliName, "-", "_"))

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return &Loader{
		cliName:   cliName,
		envPrefix: envPrefix,
		v:         v,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cms_api", "")
	v.SetDefault("default_provider", "")

	v.SetDefault("local.enabled", true)
	v.SetDefault("local.default_lifetime", time.Hour)

	v.SetDefault("oauth.base_url", "")
	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.auth_url", "")
	v.SetDefault("oauth.token_url", "")
	v.SetDefault("oauth.revoke_url", "")
	v.SetDefault("oauth.redirect_url", "http://localhost:8085/callback")
	v.SetDefault("oauth.scopes", []string{"openid", "offline_access"})
	v.SetDefault("oauth.pkce", true)
	v.SetDefault("oauth.default_lifetime", time.Hour)
	v.SetDefault("oauth.auto_open_browser", true)
	v.SetDefault("oauth.callback_timeout", 5*time.Minute)

	v.SetDefault("storage.type", string(types.StorageTypeFile))
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.keyring_service", "")
	v.SetDefault("storage.lifetime", types.DefaultEntryLifetime)

	v.SetDefault("output.format", "table")
	v.SetDefault("output.color", "auto")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("log.level", "warn")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", time.Hour)

	defaults := secrets.DefaultBehavior()
	v.SetDefault("secrets.enabled", defaults.Enabled)
	v.SetDefault("secrets.masking.style", defaults.Masking.Style)
	v.SetDefault("secrets.masking.partial_show_chars", defaults.Masking.PartialShowChars)
	v.SetDefault("secrets.masking.replacement", defaults.Masking.Replacement)
	v.SetDefault("secrets.field_patterns", defaults.FieldPatterns)
	v.SetDefault("secrets.value_patterns", defaults.ValuePatterns)
	v.SetDefault("secrets.headers", defaults.Headers)
}

// SetConfigPath overrides the config file location.
func (l *Loader) SetConfigPath(path string) {
	l.configPath = path
}

// ConfigPath returns the config file location: the explicit path, then
// {PREFIX}_CONFIG, then the XDG config directory.
func (l *Loader) ConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	if custom := os.Getenv(l.envPrefix + "_CONFIG"); custom != "" {
		return custom
	}
	return filepath.Join(xdg.ConfigHome, l.cliName, "config.yaml")
}

// EnvPrefix returns the environment variable prefix.
func (l *Loader) EnvPrefix() string {
	return l.envPrefix
}

// BindFlag makes a command-line flag override key when it is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("flag for %s is not defined", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads the config file and resolves the configuration.
func (l *Loader) Load() (*Config, error) {
	path := l.ConfigPath()
	l.v.SetConfigFile(path)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg to the config file.
func (l *Loader) Save(cfg *Config) error {
	path := l.ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// AuthConfig builds the provider registry configuration.
func (c *Config) AuthConfig(cliName string, httpClient *http.Client, opener auth.BrowserOpener) *auth.Config {
	storage := c.Storage
	ac := &auth.Config{
		CLIName:         cliName,
		APIBase:         c.CMSAPI,
		DefaultProvider: c.DefaultProvider,
		Storage:         &storage,
		HTTPClient:      httpClient,
		Opener:          opener,
	}

	if c.Local.Enabled {
		ac.Local = &auth.LocalConfig{DefaultLifetime: c.Local.DefaultLifetime}
	}

	if c.OAuth.Enabled() {
		ac.OAuth = &auth.OAuthConfig{
			BaseURL:         c.OAuth.BaseURL,
			ClientID:        c.OAuth.ClientID,
			ClientSecret:    c.OAuth.ClientSecret,
			AuthURL:         c.OAuth.AuthURL,
			TokenURL:        c.OAuth.TokenURL,
			RevokeURL:       c.OAuth.RevokeURL,
			RedirectURL:     c.OAuth.RedirectURL,
			Scopes:          c.OAuth.Scopes,
			PKCE:            c.OAuth.PKCE,
			DefaultLifetime: c.OAuth.DefaultLifetime,
		}
	}

	return ac
}
