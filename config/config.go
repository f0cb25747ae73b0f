// Package config loads gateway configuration from a YAML file and the
// environment. File values are optional; environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otakulist/gate"
	"github.com/spf13/viper"
)

// Route maps a path prefix to an access class, and for tiered routes the
// minimum role.
type Route struct {
	Prefix string `mapstructure:"prefix"`
	Class  string `mapstructure:"class"`
	Tier   string `mapstructure:"tier"`
}

// Config is the application configuration. It satisfies the gateway's
// getter interface.
type Config struct {
	Server struct {
		Address  string `mapstructure:"address"`
		HTTPPort string `mapstructure:"http_port"`
	} `mapstructure:"server"`

	Auth struct {
		SigningKey      string   `mapstructure:"signing_key"`
		TokenExpiration int      `mapstructure:"token_expiration"` // hours
		BootstrapTTL    int      `mapstructure:"bootstrap_ttl"`    // minutes
		Issuer          string   `mapstructure:"issuer"`
		Audience        []string `mapstructure:"audience"`
		ContextKey      string   `mapstructure:"context_key"`
	} `mapstructure:"auth"`

	Routes struct {
		SignIn        string  `mapstructure:"sign_in"`
		Home          string  `mapstructure:"home"`
		ClaimUsername string  `mapstructure:"claim_username"`
		Rules         []Route `mapstructure:"rules"`
	} `mapstructure:"routes"`

	RateLimit struct {
		Window    time.Duration `mapstructure:"window"`
		Threshold int           `mapstructure:"threshold"`
	} `mapstructure:"rate_limit"`

	Database struct {
		Driver string `mapstructure:"driver"` // "sqlite" | "postgres"
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
}

func (c *Config) GetSigningKey() string      { return c.Auth.SigningKey }
func (c *Config) GetTokenExpiration() int    { return c.Auth.TokenExpiration }
func (c *Config) GetBootstrapTTL() int       { return c.Auth.BootstrapTTL }
func (c *Config) GetIssuer() string          { return c.Auth.Issuer }
func (c *Config) GetAudience() []string      { return c.Auth.Audience }
func (c *Config) GetContextKey() string      { return c.Auth.ContextKey }
func (c *Config) GetSignInRoute() string     { return c.Routes.SignIn }
func (c *Config) GetHomeRoute() string       { return c.Routes.Home }
func (c *Config) GetClaimUsernameRoute() string {
	return c.Routes.ClaimUsername
}
func (c *Config) GetRateLimitWindow() time.Duration { return c.RateLimit.Window }
func (c *Config) GetRateLimitThreshold() int        { return c.RateLimit.Threshold }

// RouteRules maps the configured rules onto the classifier's rule type.
// Unknown classes are skipped; the classifier itself narrows unknown tiers
// to admin.
func (c *Config) RouteRules() []gate.RouteRule {
	rules := make([]gate.RouteRule, 0, len(c.Routes.Rules))
	for _, r := range c.Routes.Rules {
		class, ok := parseRouteClass(r.Class)
		if !ok {
			continue
		}
		rules = append(rules, gate.RouteRule{
			Prefix: r.Prefix,
			Class:  class,
			Tier:   gate.Role(r.Tier),
		})
	}
	return rules
}

func parseRouteClass(s string) (gate.RouteClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return gate.RoutePublic, true
	case "guest_only", "guest-only":
		return gate.RouteGuestOnly, true
	case "auth_required", "auth-required":
		return gate.RouteAuthRequired, true
	case "role_tiered", "role-tiered":
		return gate.RouteRoleTiered, true
	case "provider_internal", "provider-internal":
		return gate.RouteProviderInternal, true
	default:
		return gate.RoutePublic, false
	}
}

// Load reads config from env and an optional file, applying defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8080")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_expiration", 72)
	v.SetDefault("auth.bootstrap_ttl", 30)
	v.SetDefault("auth.issuer", "gate")
	v.SetDefault("auth.audience", []string{"gate"})
	v.SetDefault("auth.context_key", "session")

	v.SetDefault("routes.sign_in", "/sign-in")
	v.SetDefault("routes.home", "/")
	v.SetDefault("routes.claim_username", "/welcome/username")

	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.threshold", 120)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file::memory:?cache=shared")

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "gate"))
		}
		v.AddConfigPath("/etc/gate")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return errors.New("auth.signing_key must be set")
	}
	if c.Auth.TokenExpiration <= 0 {
		return errors.New("auth.token_expiration must be positive")
	}
	if c.RateLimit.Threshold <= 0 {
		return errors.New("rate_limit.threshold must be positive")
	}
	for i, r := range c.Routes.Rules {
		if strings.TrimSpace(r.Prefix) == "" {
			return fmt.Errorf("routes.rules[%d]: prefix must not be empty", i)
		}
		if strings.TrimSpace(r.Class) == "" {
			return fmt.Errorf("routes.rules[%d]: class must not be empty", i)
		}
	}
	return nil
}
