package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, cfgFile string) (*Config, error) {
	t.Helper()
	v := viper.New()
	require.NoError(t, Setup(v, cfgFile))
	if cfgFile == "" {
		// Keep the search away from any real xcapture.yaml.
		v.SetConfigName("xcapture-test-missing")
	}
	return Load(v, cfgFile != "")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Browser.Timeout())
	assert.Equal(t, filepath.Join("data", "profile"), cfg.Browser.Profile)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 20, cfg.Capture.MaxDepth)
	assert.Equal(t, 4, cfg.Capture.Scrolls)
	assert.Equal(t, 1200*time.Millisecond, cfg.Capture.ScrollWait())
	assert.Equal(t, 50, cfg.Capture.MaxNodes)
	assert.Equal(t, filepath.Join("data", "captured"), cfg.Output.Dir)
	assert.Equal(t, filepath.Join("data", "history.db"), cfg.Output.History)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xcapture.yaml")
	yaml := `
browser:
  headless: true
  proxy: http://127.0.0.1:7890
  timeout: 30000
capture:
  max_depth: 5
  include_others: true
output:
  dir: /srv/captures
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("XCAPTURE_CAPTURE_MAX_DEPTH", "7")
	t.Setenv("XCAPTURE_BROWSER_PROXY", "socks5://127.0.0.1:1080")

	cfg, err := load(t, path)
	require.NoError(t, err)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout())
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Browser.Proxy, "env beats file")
	assert.Equal(t, 7, cfg.Capture.MaxDepth)
	assert.True(t, cfg.Capture.IncludeOthers)
	assert.Equal(t, "/srv/captures", cfg.Output.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_LegacySecretEnv(t *testing.T) {
	t.Setenv("X_AUTH_TOKEN", "tok")
	t.Setenv("X_CSRF_TOKEN", "csrf")
	t.Setenv("X_TWID", "u%3D1")
	t.Setenv("XCAPTURE_AUTH_COOKIE_FILE", "/tmp/cookies.txt")

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.Auth.AuthToken)
	assert.Equal(t, "csrf", cfg.Auth.CSRFToken)
	assert.Equal(t, "/tmp/cookies.txt", cfg.Auth.CookieFile)

	opts := cfg.SessionOptions()
	assert.Equal(t, "tok", opts.AuthToken)
	assert.Equal(t, "/tmp/cookies.txt", opts.CookieFile)
	assert.Equal(t, map[string]string{"twid": "u%3D1"}, opts.Extra)
	assert.Equal(t, cfg.Browser.Profile, opts.ProfileDir)
}

func TestLoad_PrefixedEnvBeatsLegacy(t *testing.T) {
	t.Setenv("X_AUTH_TOKEN", "legacy")
	t.Setenv("XCAPTURE_AUTH_AUTH_TOKEN", "prefixed")
	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Auth.AuthToken)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := load(t, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := load(t, "")
	require.NoError(t, err)

	bad := *cfg
	bad.Capture.MaxDepth = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Browser.TimeoutMS = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Capture.Scrolls = -1
	assert.Error(t, bad.Validate())
}
