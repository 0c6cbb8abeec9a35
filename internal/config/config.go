package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is built once at startup and shared read-only by every component.
type Config struct {
	Debug       bool   `mapstructure:"debug"`
	ServeClient bool   `mapstructure:"serve_client"`
	StaticPath  string `mapstructure:"static_path"`
	CORSOrigins string `mapstructure:"cors_origins"`

	AuthEndpoint   string        `mapstructure:"auth_endpoint"`
	AuthCookie     bool          `mapstructure:"auth_cookie"`
	AuthTimeout    time.Duration `mapstructure:"auth_timeout"`
	AllowUnauth    bool          `mapstructure:"allow_unauth"`
	UnauthFallback bool          `mapstructure:"unauth_fallback"`

	APISecret string `mapstructure:"api_secret"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`

	AckEndpoint     string        `mapstructure:"ack_endpoint"`
	AckTimeoutMS    int           `mapstructure:"ack_timeout"`
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`

	ReadLimit   int64         `mapstructure:"read_limit"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	ConnectRate int           `mapstructure:"connect_rate"`
}

// env names are kept identical to the ones deployments already export.
var envKeys = map[string]string{
	"debug":            "DEBUG",
	"serve_client":     "SERVE_CLIENT",
	"static_path":      "STATIC_PATH",
	"cors_origins":     "CORS_ORIGINS",
	"auth_endpoint":    "AUTH_ENDPOINT",
	"auth_cookie":      "AUTH_COOKIE",
	"auth_timeout":     "AUTH_TIMEOUT",
	"allow_unauth":     "ALLOW_UNAUTH",
	"unauth_fallback":  "UNAUTH_FALLBACK",
	"api_secret":       "API_SECRET",
	"host":             "HOST",
	"port":             "PORT",
	"ack_endpoint":     "ACK_ENDPOINT",
	"ack_timeout":      "ACK_TIMEOUT",
	"callback_timeout": "CALLBACK_TIMEOUT",
	"read_limit":       "READ_LIMIT",
	"ping_period":      "PING_PERIOD",
	"connect_rate":     "CONNECT_RATE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	v.SetDefault("debug", false)
	v.SetDefault("serve_client", false)
	v.SetDefault("static_path", "./web")
	v.SetDefault("cors_origins", "")
	v.SetDefault("auth_endpoint", "")
	v.SetDefault("auth_cookie", false)
	v.SetDefault("auth_timeout", "5s")
	v.SetDefault("allow_unauth", false)
	v.SetDefault("unauth_fallback", false)
	v.SetDefault("api_secret", "")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 3000)
	v.SetDefault("ack_endpoint", "")
	v.SetDefault("ack_timeout", 1000)
	v.SetDefault("callback_timeout", "5s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "25s")
	v.SetDefault("connect_rate", 0)

	for key, name := range envKeys {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Debug().Str("module", "config").Str("file", fileName).Msg("config file not found, using env and defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AckTimeoutMS <= 0 {
		return fmt.Errorf("invalid ack timeout %dms", c.AckTimeoutMS)
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("invalid auth timeout %s", c.AuthTimeout)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("invalid ping period %s", c.PingPeriod)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AckTimeout is the default acknowledgement collection window.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutMS) * time.Millisecond
}

// Origins splits the comma separated CORS list, dropping blanks.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// AuthEnabled reports whether the control plane requires the shared secret.
func (c *Config) AuthEnabled() bool { return c.APISecret != "" }

// AckEnabled reports whether emits collect acknowledgements for the callback.
func (c *Config) AckEnabled() bool { return c.AckEndpoint != "" }

// OriginAllowed applies the origins list to a browser Origin header.
// An empty list or "*" allows everything.
func (c *Config) OriginAllowed(origin string) bool {
	origins := c.Origins()
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
