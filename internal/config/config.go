// Package config loads xcapture settings from defaults, an optional
// xcapture.yaml, a .env file, XCAPTURE_* environment variables and bound
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"x-post-capture/internal/logger"
	"x-post-capture/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. XCAPTURE_BROWSER_PROXY.
const EnvPrefix = "XCAPTURE"

// Config is the full xcapture configuration.
type Config struct {
	Browser BrowserConfig `mapstructure:"browser"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Capture CaptureConfig `mapstructure:"capture"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     logger.Config `mapstructure:"log"`
}

// BrowserConfig configures Chrome.
type BrowserConfig struct {
	Profile    string `mapstructure:"profile"`
	ChromePath string `mapstructure:"chrome_path"`
	Headless   bool   `mapstructure:"headless"`
	Proxy      string `mapstructure:"proxy"`
	TimeoutMS  int    `mapstructure:"timeout"`
}

// Timeout is the per-operation browser timeout.
func (b BrowserConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMS) * time.Millisecond
}

// AuthConfig holds identity inputs. Values here are secrets and must not be
// logged.
type AuthConfig struct {
	AuthToken    string `mapstructure:"auth_token"`
	CSRFToken    string `mapstructure:"csrf_token"`
	CookieString string `mapstructure:"cookie_string"`
	CookieFile   string `mapstructure:"cookie_file"`
	Twid         string `mapstructure:"twid"`
	Att          string `mapstructure:"att"`
	Lang         string `mapstructure:"lang"`
}

// CaptureConfig controls the capture behaviour.
type CaptureConfig struct {
	ManualLogin   bool `mapstructure:"manual_login"`
	IncludeOthers bool `mapstructure:"include_others"`
	DownloadMedia bool `mapstructure:"download_media"`
	HoldOnFail    bool `mapstructure:"hold_on_fail"`
	MaxDepth      int  `mapstructure:"max_depth"`
	Scrolls       int  `mapstructure:"scrolls"`
	ScrollWaitMS  int  `mapstructure:"scroll_wait"`
	MaxNodes      int  `mapstructure:"max_nodes"`
}

// ScrollWait is the pause after each timeline scroll.
func (c CaptureConfig) ScrollWait() time.Duration {
	return time.Duration(c.ScrollWaitMS) * time.Millisecond
}

// OutputConfig locates everything xcapture writes.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	MediaDir string `mapstructure:"media_dir"`
	DebugDir string `mapstructure:"debug_dir"`
	History  string `mapstructure:"history"`
}

// Legacy environment names read by earlier capture scripts.
var legacyEnv = map[string]string{
	"auth.auth_token":    "X_AUTH_TOKEN",
	"auth.csrf_token":    "X_CSRF_TOKEN",
	"auth.cookie_string": "X_COOKIE_STRING",
	"auth.cookie_file":   "X_COOKIE_FILE",
	"auth.twid":          "X_TWID",
	"auth.att":           "X_ATT",
	"auth.lang":          "X_LANG",
}

// SetDefaults installs the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("browser.profile", filepath.Join("data", "profile"))
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.timeout", 90000)

	for key := range legacyEnv {
		v.SetDefault(key, "")
	}

	v.SetDefault("capture.manual_login", false)
	v.SetDefault("capture.include_others", false)
	v.SetDefault("capture.download_media", false)
	v.SetDefault("capture.hold_on_fail", false)
	v.SetDefault("capture.max_depth", 20)
	v.SetDefault("capture.scrolls", 4)
	v.SetDefault("capture.scroll_wait", 1200)
	v.SetDefault("capture.max_nodes", 50)

	v.SetDefault("output.dir", filepath.Join("data", "captured"))
	v.SetDefault("output.media_dir", filepath.Join("data", "media"))
	v.SetDefault("output.debug_dir", filepath.Join("data", "debug"))
	v.SetDefault("output.history", filepath.Join("data", "history.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Setup prepares v: defaults, environment binding and the config file search
// path. cfgFile, when set, replaces the search path.
func Setup(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("xcapture")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "xcapture"))
		}
	}
	return nil
}

// LoadEnvFile loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Load reads the config file (optional unless named explicitly) and decodes
// v into a Config.
func Load(v *viper.Viper, explicitFile bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitFile || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no capture can run with.
func (c *Config) Validate() error {
	switch {
	case c.Browser.TimeoutMS <= 0:
		return errors.New("browser.timeout must be positive")
	case c.Capture.MaxDepth < 1:
		return errors.New("capture.max_depth must be at least 1")
	case c.Capture.Scrolls < 0:
		return errors.New("capture.scrolls must not be negative")
	case c.Capture.MaxNodes < 1:
		return errors.New("capture.max_nodes must be at least 1")
	case c.Output.Dir == "":
		return errors.New("output.dir must be set")
	}
	return nil
}

// SessionOptions converts the identity settings for the session provider.
func (c *Config) SessionOptions() session.Options {
	extra := map[string]string{}
	for name, v := range map[string]string{"twid": c.Auth.Twid, "att": c.Auth.Att, "lang": c.Auth.Lang} {
		if v = strings.TrimSpace(v); v != "" {
			extra[name] = v
		}
	}
	return session.Options{
		ProfileDir:   c.Browser.Profile,
		CookieFile:   c.Auth.CookieFile,
		CookieString: c.Auth.CookieString,
		AuthToken:    c.Auth.AuthToken,
		CSRFToken:    c.Auth.CSRFToken,
		Extra:        extra,
	}
}
