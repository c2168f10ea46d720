package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                   = "TRACKER"
	defaultHTTPAddress          = "0.0.0.0:8080"
	defaultDatabasePath         = "tracker.db"
	defaultLogLevel             = "info"
	defaultCookieName           = "tracker_session"
	defaultSessionIssuer        = "tracker-api"
	defaultSessionTTLMinutes    = 7 * 24 * 60
	defaultFlushInterval        = 3 * time.Second
	defaultRetentionLimit       = 0
	defaultAllowedOriginLocalUI = "http://localhost:3000"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress                string
	DatabasePath               string
	LogLevel                   string
	SessionSigningSecret       string
	SessionCookieName          string
	SessionIssuer              string
	SessionTTL                 time.Duration
	SessionSecureCookies       bool
	NotificationFlushInterval  time.Duration
	NotificationRetentionLimit int
	AllowedOrigins             []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinutes)
	configViper.SetDefault("session.secure_cookies", false)
	configViper.SetDefault("notifications.flush_interval", defaultFlushInterval)
	configViper.SetDefault("notifications.retention_limit", defaultRetentionLimit)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOriginLocalUI})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:                configViper.GetString("http.address"),
		DatabasePath:               configViper.GetString("database.path"),
		LogLevel:                   configViper.GetString("log.level"),
		SessionSigningSecret:       configViper.GetString("session.signing_secret"),
		SessionCookieName:          configViper.GetString("session.cookie_name"),
		SessionIssuer:              configViper.GetString("session.issuer"),
		SessionTTL:                 time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		SessionSecureCookies:       configViper.GetBool("session.secure_cookies"),
		NotificationFlushInterval:  configViper.GetDuration("notifications.flush_interval"),
		NotificationRetentionLimit: configViper.GetInt("notifications.retention_limit"),
		AllowedOrigins:             normalizeOrigins(configViper.GetStringSlice("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if strings.TrimSpace(c.SessionIssuer) == "" {
		return fmt.Errorf("session.issuer is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	if c.NotificationFlushInterval <= 0 {
		return fmt.Errorf("notifications.flush_interval must be positive")
	}
	if c.NotificationRetentionLimit < 0 {
		return fmt.Errorf("notifications.retention_limit must not be negative")
	}
	return nil
}

// normalizeOrigins accepts both list values and a single comma separated env string.
func normalizeOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
