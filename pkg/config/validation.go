package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/rs/zerolog"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validator handles configuration validation.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate checks a resolved configuration.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateAPI(config)
	v.validateProviders(config)
	v.validateStorage(&config.Storage)
	v.validateOutput(&config.Output)

	if config.HTTP.Timeout <= 0 {
		v.addError("http.timeout", "timeout must be positive")
	}

	if config.Cache.TTL < 0 {
		v.addError("cache.ttl", "ttl cannot be negative")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(config.Log.Level)); err != nil {
		v.addError("log.level", fmt.Sprintf("unknown log level %q", config.Log.Level))
	}

	if err := secrets.ValidateBehavior(&config.Secrets); err != nil {
		v.addError("secrets", err.Error())
	}

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) validateAPI(config *Config) {
	if config.CMSAPI == "" {
		v.addError("cms_api", "cms_api is required")
		return
	}
	if !v.isValidURL(config.CMSAPI) {
		v.addError("cms_api", "cms_api must be an http(s) URL")
	}
}

func (v *Validator) validateProviders(config *Config) {
	if !config.Local.Enabled && !config.OAuth.Enabled() {
		v.addError("auth", "at least one of local or oauth must be enabled")
	}

	if config.Local.DefaultLifetime < 0 {
		v.addError("local.default_lifetime", "lifetime cannot be negative")
	}

	switch p := config.DefaultProvider; {
	case p == "":
	case !p.Valid():
		v.addError("default_provider", fmt.Sprintf("must be one of: %s, %s", types.ProviderLocal, types.ProviderOAuth))
	case p == types.ProviderLocal && !config.Local.Enabled:
		v.addError("default_provider", "local provider is disabled")
	case p == types.ProviderOAuth && !config.OAuth.Enabled():
		v.addError("default_provider", "oauth provider is not configured")
	}

	if !config.OAuth.Enabled() {
		return
	}
	o := &config.OAuth
	if o.BaseURL == "" && (o.AuthURL == "" || o.TokenURL == "") {
		v.addError("oauth", "client_id needs base_url or both auth_url and token_url (set them first, or use config init)")
	}
	for field, value := range map[string]string{
		"oauth.base_url":     o.BaseURL,
		"oauth.auth_url":     o.AuthURL,
		"oauth.token_url":    o.TokenURL,
		"oauth.revoke_url":   o.RevokeURL,
		"oauth.redirect_url": o.RedirectURL,
	} {
		if value != "" && !v.isValidURL(value) {
			v.addError(field, "must be an http(s) URL")
		}
	}
	if o.DefaultLifetime < 0 {
		v.addError("oauth.default_lifetime", "lifetime cannot be negative")
	}
	if o.CallbackTimeout < 0 {
		v.addError("oauth.callback_timeout", "timeout cannot be negative")
	}
}

func (v *Validator) validateStorage(s *types.StorageConfig) {
	switch s.Type {
	case types.StorageTypeFile, types.StorageTypeKeyring, types.StorageTypeMemory, types.StorageTypeAuto:
	default:
		v.addError("storage.type", fmt.Sprintf("must be one of: %s, %s, %s, %s",
			types.StorageTypeFile, types.StorageTypeKeyring, types.StorageTypeMemory, types.StorageTypeAuto))
	}
	if s.Lifetime < 0 {
		v.addError("storage.lifetime", "lifetime cannot be negative")
	}
}

func (v *Validator) validateOutput(o *OutputConfig) {
	if !v.isOneOf(o.Format, "table", "json", "yaml") {
		v.addError("output.format", "must be one of: table, json, yaml")
	}
	if !v.isOneOf(o.Color, "auto", "always", "never") {
		v.addError("output.color", "must be one of: auto, always, never")
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

func (v *Validator) isValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (v *Validator) isOneOf(value string, options ...string) bool {
	for _, opt := range options {
		if value == opt {
			return true
		}
	}
	return false
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}
