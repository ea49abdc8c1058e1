package builtin

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/openzim/cmsctl/pkg/cli/interactive"
	"github.com/openzim/cmsctl/pkg/config"
	"github.com/openzim/cmsctl/pkg/secrets"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command group.
//
// These commands work on the config file directly and run without a valid
// configuration, so that a broken file can be repaired.
func NewConfigCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the cmsctl configuration file.

Values are resolved from flags, then ` + strings.ToUpper(env.CLIName) + `_* environment
variables, then the config file, then defaults.

Available subcommands:
  show     - Display the effective configuration
  get      - Get an effective configuration value
  set      - Set a value in the config file
  unset    - Remove a value from the config file
  init     - Create the config file interactively
  validate - Check the effective configuration
  edit     - Edit the config file in $EDITOR
  path     - Show the config file path`,
	}

	cmd.AddCommand(newConfigShowCommand(env))
	cmd.AddCommand(newConfigGetCommand(env))
	cmd.AddCommand(newConfigSetCommand(env))
	cmd.AddCommand(newConfigUnsetCommand(env))
	cmd.AddCommand(newConfigInitCommand(env))
	cmd.AddCommand(newConfigValidateCommand(env))
	cmd.AddCommand(newConfigEditCommand(env))
	cmd.AddCommand(newConfigPathCommand(env))

	return cmd
}

// newConfigShowCommand creates the config show subcommand.
func newConfigShowCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long:  "Display the effective configuration in YAML, with secrets masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := effectiveValues(env)
			if err != nil {
				return err
			}

			if env.Format == "json" {
				return env.print(values, nil)
			}
			data, err := yaml.Marshal(values)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = env.out().Write(data)
			return err
		},
	}
}

// newConfigGetCommand creates the config get subcommand.
func newConfigGetCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Long: `Get an effective configuration value by key.

Examples:
  config get cms_api
  config get oauth.client_id
  config get http.timeout`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: configKeyCompletion(env),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := effectiveValues(env)
			if err != nil {
				return err
			}

			value, err := getNestedValue(values, strings.Split(args[0], "."))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(env.out(), value)
			return err
		},
	}
}

// newConfigSetCommand creates the config set subcommand.
func newConfigSetCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a value in the config file. The file is left unchanged when the
resulting configuration is invalid.

Examples:
  config set cms_api https://api.cms.openzim.org/v1
  config set oauth.client_id cmsctl
  config set http.timeout 1m`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: configKeyCompletion(env),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			err := updateConfigFile(env, func(doc map[string]interface{}) error {
				return setNestedValue(doc, strings.Split(key, "."), value)
			})
			if err != nil {
				return err
			}

			env.message("Set %s", key)
			return nil
		},
	}
}

// newConfigUnsetCommand creates the config unset subcommand.
func newConfigUnsetCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Long: `Remove a value from the config file, restoring its default.

Examples:
  config unset output.format
  config unset oauth`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: configKeyCompletion(env),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			err := updateConfigFile(env, func(doc map[string]interface{}) error {
				unsetNestedValue(doc, strings.Split(key, "."))
				return nil
			})
			if err != nil {
				return err
			}

			env.message("Unset %s", key)
			return nil
		},
	}
}

type configInitOptions struct {
	force bool
}

// newConfigInitCommand creates the config init subcommand.
func newConfigInitCommand(env *Env) *cobra.Command {
	opts := &configInitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file",
		Long: `Create the config file from answers to a few questions: the CMS API
URL and, optionally, the oauth client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(env, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func runConfigInit(env *Env, opts *configInitOptions) error {
	path := env.Loader.ConfigPath()
	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	cmsAPI, err := env.Prompter.Text(&interactive.TextPromptOptions{
		Message:  "CMS API URL",
		Default:  "http://localhost:37601/v1",
		Required: true,
	})
	if err != nil {
		return err
	}

	doc := map[string]interface{}{"cms_api": cmsAPI}

	useOAuth, err := env.Prompter.Confirm(&interactive.ConfirmPromptOptions{Message: "Configure an oauth provider?"})
	if err != nil {
		return err
	}
	if useOAuth {
		baseURL, err := env.Prompter.Text(&interactive.TextPromptOptions{Message: "OAuth issuer URL", Required: true})
		if err != nil {
			return err
		}
		clientID, err := env.Prompter.Text(&interactive.TextPromptOptions{Message: "OAuth client ID", Required: true})
		if err != nil {
			return err
		}
		doc["oauth"] = map[string]interface{}{"base_url": baseURL, "client_id": clientID}

		provider, err := env.Prompter.Select(&interactive.SelectPromptOptions{
			Message: "Default provider",
			Options: []string{string(types.ProviderLocal), string(types.ProviderOAuth)},
			Default: string(types.ProviderLocal),
		})
		if err != nil {
			return err
		}
		doc["default_provider"] = provider
	}

	if err := writeConfigDoc(path, doc); err != nil {
		return err
	}
	if _, err := validatedConfig(env.CLIName, path); err != nil {
		_ = os.Remove(path)
		return err
	}

	env.message("Configuration written to %s", path)
	return nil
}

// newConfigValidateCommand creates the config validate subcommand.
func newConfigValidateCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long:  "Check the effective configuration, including environment variables and flags.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Loader.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			env.message("Configuration is valid")
			return nil
		},
	}
}

// newConfigEditCommand creates the config edit subcommand.
func newConfigEditCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in $EDITOR",
		Long:  "Open the config file in the default editor ($EDITOR).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := env.Loader.ConfigPath()

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
				if err := os.WriteFile(configPath, []byte("# cmsctl configuration\n"), 0600); err != nil {
					return fmt.Errorf("failed to create config file: %w", err)
				}
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}

			editorCmd := exec.Command(editor, configPath)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr

			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("failed to edit config: %w", err)
			}

			if _, err := validatedConfig(env.CLIName, configPath); err != nil {
				env.Logger.Warn().Err(err).Msg("edited configuration is invalid")
				return err
			}

			env.message("Configuration updated: %s", configPath)
			return nil
		},
	}
}

// newConfigPathCommand creates the config path subcommand.
func newConfigPathCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  "Display the path to the configuration file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(env.out(), env.Loader.ConfigPath())
			return err
		},
	}
}

// effectiveValues returns the resolved configuration as nested maps with
// secrets masked.
func effectiveValues(env *Env) (map[string]interface{}, error) {
	cfg := env.Config
	if cfg == nil {
		var err error
		if cfg, err = env.Loader.Load(); err != nil {
			return nil, err
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	detector := env.Detector
	if detector == nil {
		detector, err = secrets.NewDetector(&cfg.Secrets)
		if err != nil {
			detector, _ = secrets.NewDetector(secrets.DefaultBehavior())
		}
	}
	masked, _ := detector.MaskJSON(values).(map[string]interface{})
	return masked, nil
}

// updateConfigFile applies edit to the config file and writes it back when
// the result is valid.
func updateConfigFile(env *Env, edit func(doc map[string]interface{}) error) error {
	path := env.Loader.ConfigPath()

	original, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	doc := map[string]interface{}{}
	if len(bytes.TrimSpace(original)) > 0 {
		if err := yaml.Unmarshal(original, &doc); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
	}

	if err := edit(doc); err != nil {
		return err
	}
	if err := writeConfigDoc(path, doc); err != nil {
		return err
	}

	if _, err := validatedConfig(env.CLIName, path); err != nil {
		if original != nil {
			_ = os.WriteFile(path, original, 0600)
		} else {
			_ = os.Remove(path)
		}
		return err
	}
	return nil
}

// validatedConfig loads the config file at path with the environment and
// validates it. Flags are ignored.
func validatedConfig(cliName, path string) (*config.Config, error) {
	loader := config.NewLoader(cliName)
	loader.SetConfigPath(path)

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeConfigDoc(path string, doc map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// getNestedValue retrieves a nested value from a map.
func getNestedValue(data interface{}, keys []string) (string, error) {
	if len(keys) == 0 {
		return formatConfigValue(data)
	}

	if m, ok := data.(map[string]interface{}); ok {
		if val, ok := m[keys[0]]; ok {
			return getNestedValue(val, keys[1:])
		}
	}

	return "", fmt.Errorf("key not found: %s", keys[0])
}

func formatConfigValue(v interface{}) (string, error) {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// setNestedValue sets a nested value in a map, typing booleans and integers.
func setNestedValue(data map[string]interface{}, keys []string, value string) error {
	if len(keys) == 0 || keys[0] == "" {
		return fmt.Errorf("invalid key")
	}

	if len(keys) == 1 {
		data[keys[0]] = parseConfigValue(value)
		return nil
	}

	nested, ok := data[keys[0]].(map[string]interface{})
	if !ok {
		if _, exists := data[keys[0]]; exists {
			return fmt.Errorf("%s is not a section", keys[0])
		}
		nested = make(map[string]interface{})
		data[keys[0]] = nested
	}

	return setNestedValue(nested, keys[1:], value)
}

func parseConfigValue(value string) interface{} {
	if b, err := strconv.ParseBool(value); err == nil && (value == "true" || value == "false") {
		return b
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return value
}

// unsetNestedValue removes a nested value from a map.
func unsetNestedValue(data map[string]interface{}, keys []string) {
	if len(keys) == 1 {
		delete(data, keys[0])
		return
	}

	nested, ok := data[keys[0]].(map[string]interface{})
	if !ok {
		return
	}

	unsetNestedValue(nested, keys[1:])
	if len(nested) == 0 {
		delete(data, keys[0])
	}
}

// ListConfigKeys returns the dotted keys of the configuration.
func ListConfigKeys(cfg *config.Config) []string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil
	}

	keys := []string{}
	collectKeys("", values, &keys)
	sort.Strings(keys)
	return keys
}

// collectKeys recursively collects all keys from a nested map.
func collectKeys(prefix string, data map[string]interface{}, keys *[]string) {
	for key, value := range data {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		*keys = append(*keys, fullKey)

		if nested, ok := value.(map[string]interface{}); ok {
			collectKeys(fullKey, nested, keys)
		}
	}
}

func configKeyCompletion(env *Env) CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		cfg := env.Config
		if cfg == nil {
			loaded, err := config.NewLoader(env.CLIName).Load()
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			cfg = loaded
		}
		return ListConfigKeys(cfg), cobra.ShellCompDirectiveNoFileComp
	}
}
