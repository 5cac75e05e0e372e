package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	AuthJWTSecret string   `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWKSURL   string   `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer    string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string   `mapstructure:"AUTH_AUDIENCE"`
	SessionCookie string   `mapstructure:"SESSION_COOKIE"`
	IDPBaseURL    string   `mapstructure:"IDP_BASE_URL"`
	IDPClientID   string   `mapstructure:"IDP_CLIENT_ID"`
	IDPSecret     string   `mapstructure:"IDP_CLIENT_SECRET"`
	IDPScopes     []string `mapstructure:"IDP_SCOPES"`
	SiteURL       string   `mapstructure:"SITE_URL"`
	ClinicTZ      string   `mapstructure:"CLINIC_TIMEZONE"`
	RedisURL      string   `mapstructure:"REDIS_URL"`
	AuditStream   string   `mapstructure:"AUDIT_STREAM"`
	MetricsOn     bool     `mapstructure:"METRICS_ENABLED"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SESSION_COOKIE", "fd_session")
	v.SetDefault("SITE_URL", "http://localhost:3000")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("AUDIT_STREAM", "frontdesk:audit")
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
		"AUTH_JWT_SECRET", "AUTH_JWKS_URL", "AUTH_ISSUER", "AUTH_AUDIENCE", "SESSION_COOKIE",
		"IDP_BASE_URL", "IDP_CLIENT_ID", "IDP_CLIENT_SECRET", "IDP_SCOPES",
		"SITE_URL", "CLINIC_TIMEZONE", "REDIS_URL", "AUDIT_STREAM", "METRICS_ENABLED",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.IDPScopes = splitList(cfg.IDPScopes, v.GetString("IDP_SCOPES"))
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// splitList turns a comma-separated env value into a slice when viper left
// the field empty or collapsed it into a single element.
func splitList(current []string, raw string) []string {
	if len(current) > 1 {
		return current
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// InviteRedirectURL is where the identity provider sends invited staff after
// they accept the invitation.
func (c *Config) InviteRedirectURL() string {
	return c.SiteURL + "/auth/callback"
}

// Location resolves CLINIC_TIMEZONE. Appointment dates and times entered at
// the front desk are interpreted in this zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ClinicTZ)
}

// Validate checks that the configuration is safe to run. Session credentials
// must be verifiable, so one of AUTH_JWT_SECRET, AUTH_JWKS_URL or AUTH_ISSUER
// is always required. Outside development the identity provider must be
// configured so invites and deletions reach it.
func (c *Config) Validate() error {
	if c.AuthJWTSecret == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf("one of AUTH_JWT_SECRET, AUTH_JWKS_URL or AUTH_ISSUER must be set; refusing to start without session verification")
	}
	if c.AuthJWKSURL == "" && c.AuthJWTSecret == "" && c.AuthIssuer != "" {
		return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ISSUER is set without AUTH_JWT_SECRET")
	}
	if !c.IsDev() {
		if c.IDPBaseURL == "" {
			return fmt.Errorf("IDP_BASE_URL is required when ENV=%q", c.Env)
		}
		if c.IDPClientID == "" || c.IDPSecret == "" {
			return fmt.Errorf("IDP_CLIENT_ID and IDP_CLIENT_SECRET are required when ENV=%q", c.Env)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTZ, err)
	}
	if c.SessionCookie == "" {
		return fmt.Errorf("SESSION_COOKIE must not be empty")
	}
	return nil
}
