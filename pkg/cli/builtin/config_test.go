package builtin

import (
	"os"
	"strings"
	"testing"

	"github.com/openzim/cmsctl/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// readConfigFile decodes the config file of env.
func readConfigFile(t *testing.T, env *testEnv) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(env.Loader.ConfigPath())
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	return doc
}

func writeConfigFile(t *testing.T, env *testEnv, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(env.Loader.ConfigPath(), []byte(content), 0600))
}

func TestConfigSet(t *testing.T) {
	t.Run("creates the file", func(t *testing.T) {
		env := newTestEnv(t)

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "set", "cms_api", "https://api.cms.openzim.org/v1"))
		assert.Contains(t, env.stdout.String(), "Set cms_api")
		assert.Equal(t, "https://api.cms.openzim.org/v1", readConfigFile(t, env)["cms_api"])
	})

	t.Run("nested typed values", func(t *testing.T) {
		env := newTestEnv(t)
		writeConfigFile(t, env, "cms_api: https://api.cms.openzim.org/v1\n")

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "set", "oauth.pkce", "false"))
		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "set", "local.enabled", "true"))
		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "set", "oauth.base_url", "https://login.example.org"))
		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "set", "oauth.client_id", "cmsctl"))

		doc := readConfigFile(t, env)
		oauth := doc["oauth"].(map[string]interface{})
		assert.Equal(t, false, oauth["pkce"])
		assert.Equal(t, "cmsctl", oauth["client_id"])
		assert.Equal(t, true, doc["local"].(map[string]interface{})["enabled"])
	})

	t.Run("oauth client before its endpoint", func(t *testing.T) {
		env := newTestEnv(t)
		original := "cms_api: https://api.cms.openzim.org/v1\n"
		writeConfigFile(t, env, original)

		err := env.run(t, NewConfigCommand(env.Env), "set", "oauth.client_id", "cmsctl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "set them first, or use config init")

		data, readErr := os.ReadFile(env.Loader.ConfigPath())
		require.NoError(t, readErr)
		assert.Equal(t, original, string(data))
	})

	t.Run("invalid result leaves the file unchanged", func(t *testing.T) {
		env := newTestEnv(t)
		original := "cms_api: https://api.cms.openzim.org/v1\n"
		writeConfigFile(t, env, original)

		err := env.run(t, NewConfigCommand(env.Env), "set", "output.format", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "output.format")

		data, err := os.ReadFile(env.Loader.ConfigPath())
		require.NoError(t, err)
		assert.Equal(t, original, string(data))
	})

	t.Run("invalid first file is removed", func(t *testing.T) {
		env := newTestEnv(t)

		require.Error(t, env.run(t, NewConfigCommand(env.Env), "set", "output.format", "json"))
		_, err := os.Stat(env.Loader.ConfigPath())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("value below a scalar", func(t *testing.T) {
		env := newTestEnv(t)
		writeConfigFile(t, env, "cms_api: https://api.cms.openzim.org/v1\n")

		err := env.run(t, NewConfigCommand(env.Env), "set", "cms_api.host", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cms_api is not a section")
	})
}

func TestConfigUnset(t *testing.T) {
	env := newTestEnv(t)
	writeConfigFile(t, env, "cms_api: https://api.cms.openzim.org/v1\noutput:\n  format: json\noauth:\n  scopes: [openid]\n")

	require.NoError(t, env.run(t, NewConfigCommand(env.Env), "unset", "output.format"))
	require.NoError(t, env.run(t, NewConfigCommand(env.Env), "unset", "oauth"))

	doc := readConfigFile(t, env)
	assert.NotContains(t, doc, "output")
	assert.NotContains(t, doc, "oauth")
	assert.Contains(t, doc, "cms_api")
}

func TestConfigGet(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run(t, NewConfigCommand(env.Env), "get", "output.format"))
	assert.Equal(t, "table\n", env.stdout.String())

	env.stdout.Reset()
	require.NoError(t, env.run(t, NewConfigCommand(env.Env), "get", "cms_api"))
	assert.Equal(t, env.backend.URL+"/v1\n", env.stdout.String())

	err := env.run(t, NewConfigCommand(env.Env), "get", "output.nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key not found: nope")
}

func TestConfigShow(t *testing.T) {
	t.Run("yaml masks secrets", func(t *testing.T) {
		env := newTestEnv(t)
		env.Config.OAuth.ClientID = "cmsctl"
		env.Config.OAuth.ClientSecret = "s3cr3t-client-value-0123456789"

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "show"))
		out := env.stdout.String()
		assert.Contains(t, out, "client_id: cmsctl")
		assert.Contains(t, out, "client_secret:")
		assert.NotContains(t, out, "s3cr3t-client-value-0123456789")
	})

	t.Run("json", func(t *testing.T) {
		env := newTestEnv(t, withFormat("json"))

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "show"))

		var values map[string]interface{}
		env.decodeJSON(t, &values)
		assert.Equal(t, env.backend.URL+"/v1", values["cms_api"])
	})

	t.Run("loads the file without a resolved config", func(t *testing.T) {
		env := newTestEnv(t)
		env.Config = nil
		writeConfigFile(t, env, "cms_api: https://from-file.example.org/v1\n")

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "show"))
		assert.Contains(t, env.stdout.String(), "cms_api: https://from-file.example.org/v1")
	})
}

func TestConfigValidate(t *testing.T) {
	env := newTestEnv(t)

	err := env.run(t, NewConfigCommand(env.Env), "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cms_api is required")

	writeConfigFile(t, env, "cms_api: https://api.cms.openzim.org/v1\n")
	require.NoError(t, env.run(t, NewConfigCommand(env.Env), "validate"))
	assert.Contains(t, env.stdout.String(), "Configuration is valid")
}

func TestConfigPath(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.run(t, NewConfigCommand(env.Env), "path"))
	assert.Equal(t, env.Loader.ConfigPath()+"\n", env.stdout.String())
}

func TestConfigInit(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		env := newTestEnv(t, withInput(strings.NewReader("\nn\n")))

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "init"))
		assert.Contains(t, env.stdout.String(), "Configuration written to")

		doc := readConfigFile(t, env)
		assert.Equal(t, "http://localhost:37601/v1", doc["cms_api"])
		assert.NotContains(t, doc, "oauth")
	})

	t.Run("oauth provider", func(t *testing.T) {
		input := "https://api.cms.openzim.org/v1\ny\nhttps://login.example.org\ncmsctl\n2\n"
		env := newTestEnv(t, withInput(strings.NewReader(input)))

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "init"))

		loader := config.NewLoader(env.CLIName)
		loader.SetConfigPath(env.Loader.ConfigPath())
		cfg, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, "https://api.cms.openzim.org/v1", cfg.CMSAPI)
		assert.Equal(t, "cmsctl", cfg.OAuth.ClientID)
		assert.Equal(t, "https://login.example.org", cfg.OAuth.BaseURL)
		assert.Equal(t, "oauth", string(cfg.DefaultProvider))
	})

	t.Run("existing file", func(t *testing.T) {
		env := newTestEnv(t, withInput(strings.NewReader("\nn\n")))
		writeConfigFile(t, env, "cms_api: https://api.cms.openzim.org/v1\n")

		err := env.run(t, NewConfigCommand(env.Env), "init")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--force")

		require.NoError(t, env.run(t, NewConfigCommand(env.Env), "init", "--force"))
		assert.Equal(t, "http://localhost:37601/v1", readConfigFile(t, env)["cms_api"])
	})

	t.Run("invalid answers", func(t *testing.T) {
		env := newTestEnv(t, withInput(strings.NewReader("not-a-url\nn\n")))

		require.Error(t, env.run(t, NewConfigCommand(env.Env), "init"))
		_, err := os.Stat(env.Loader.ConfigPath())
		assert.True(t, os.IsNotExist(err))
	})
}

func TestListConfigKeys(t *testing.T) {
	keys := ListConfigKeys(&config.Config{CMSAPI: "https://api.cms.openzim.org/v1"})

	assert.Contains(t, keys, "cms_api")
	assert.Contains(t, keys, "output")
	assert.Contains(t, keys, "output.format")
	assert.Contains(t, keys, "local.enabled")
	assert.IsIncreasing(t, keys)
}

func TestSetAndUnsetNestedValue(t *testing.T) {
	doc := map[string]interface{}{}

	require.NoError(t, setNestedValue(doc, []string{"http", "timeout"}, "1m"))
	require.NoError(t, setNestedValue(doc, []string{"local", "enabled"}, "false"))
	require.NoError(t, setNestedValue(doc, []string{"count"}, "3"))
	assert.Equal(t, map[string]interface{}{
		"http":  map[string]interface{}{"timeout": "1m"},
		"local": map[string]interface{}{"enabled": false},
		"count": 3,
	}, doc)

	unsetNestedValue(doc, []string{"http", "timeout"})
	unsetNestedValue(doc, []string{"missing", "key"})
	assert.NotContains(t, doc, "http")
	assert.Contains(t, doc, "local")

	assert.Error(t, setNestedValue(doc, []string{""}, "x"))
}
