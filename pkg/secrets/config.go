// Package secrets masks credentials before they reach logs or the terminal.
package secrets

import (
	"os"
	"strconv"

	"github.com/pterm/pterm"
)

// Behavior configures secret detection and masking.
type Behavior struct {
	Enabled       bool           `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Masking       *Masking       `yaml:"masking,omitempty" json:"masking,omitempty" mapstructure:"masking"`
	FieldPatterns []string       `yaml:"field_patterns,omitempty" json:"field_patterns,omitempty" mapstructure:"field_patterns"`
	ValuePatterns []ValuePattern `yaml:"value_patterns,omitempty" json:"value_patterns,omitempty" mapstructure:"value_patterns"`
	Headers       []string       `yaml:"headers,omitempty" json:"headers,omitempty" mapstructure:"headers"`
}

// Masking defines the masking strategy.
type Masking struct {
	Style            string `yaml:"style,omitempty" json:"style,omitempty" mapstructure:"style"` // partial, full, hash
	PartialShowChars int    `yaml:"partial_show_chars,omitempty" json:"partial_show_chars,omitempty" mapstructure:"partial_show_chars"`
	Replacement      string `yaml:"replacement,omitempty" json:"replacement,omitempty" mapstructure:"replacement"`
}

// ValuePattern is a named regex matching secret values.
type ValuePattern struct {
	Name    string `yaml:"name" json:"name" mapstructure:"name"`
	Pattern string `yaml:"pattern" json:"pattern" mapstructure:"pattern"`
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty" mapstructure:"enabled"`
}

// DefaultBehavior returns masking enabled with the default patterns.
func DefaultBehavior() *Behavior {
	return &Behavior{
		Enabled:       true,
		FieldPatterns: DefaultFieldPatterns(),
		ValuePatterns: DefaultValuePatterns(),
		Headers:       DefaultHeaders(),
		Masking: &Masking{
			Style:            "partial",
			PartialShowChars: 6,
			Replacement:      "***",
		},
	}
}

// Config wraps a Behavior with runtime overrides.
type Config struct {
	Behavior *Behavior

	// DisableMasking is set from the environment to turn masking off.
	DisableMasking bool
}

// NewConfig returns a config using the default behavior.
func NewConfig() *Config {
	return &Config{Behavior: DefaultBehavior()}
}

// IsEnabled reports whether masking applies.
func (c *Config) IsEnabled() bool {
	if c.DisableMasking {
		return false
	}
	return c.Behavior != nil && c.Behavior.Enabled
}

// Validate validates the behavior.
func (c *Config) Validate() error {
	return ValidateBehavior(c.Behavior)
}

// ApplyEnvironmentOverrides honours {PREFIX}_NO_MASK_SECRETS.
func (c *Config) ApplyEnvironmentOverrides(envPrefix string) {
	switch os.Getenv(envPrefix + "_NO_MASK_SECRETS") {
	case "1", "true", "TRUE":
		c.DisableMasking = true
		pterm.Warning.WithWriter(os.Stderr).Println("Secret masking is disabled, tokens may appear in the output.")
	}
}

// Detector builds the detector for this config. A disabled config yields a
// detector that leaves text untouched.
func (c *Config) Detector() (*Detector, error) {
	if !c.IsEnabled() {
		return NewDetector(nil)
	}
	return NewDetector(c.Behavior)
}

// ValidateBehavior checks masking style and value patterns.
func ValidateBehavior(b *Behavior) error {
	if b == nil {
		return nil
	}

	if b.Masking != nil {
		switch b.Masking.Style {
		case "", "partial", "full", "hash":
		default:
			return &ValidationError{Field: "masking.style", Message: "must be one of: partial, full, hash"}
		}
		if b.Masking.PartialShowChars < 0 {
			return &ValidationError{Field: "masking.partial_show_chars", Message: "must be non-negative"}
		}
	}

	for i, vp := range b.ValuePatterns {
		if vp.Name == "" {
			return &ValidationError{Field: "value_patterns[" + strconv.Itoa(i) + "].name", Message: "pattern name is required"}
		}
		if vp.Pattern == "" {
			return &ValidationError{Field: "value_patterns[" + strconv.Itoa(i) + "].pattern", Message: "pattern regex is required"}
		}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
