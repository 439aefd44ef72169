package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Logger    Logger    `mapstructure:"logger"`
	Auth      Auth      `mapstructure:"auth"`
	Exchange  Exchange  `mapstructure:"exchange"`
	Dashboard Dashboard `mapstructure:"dashboard"`
	Trace     Trace     `mapstructure:"trace"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int `mapstructure:"port"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the document store database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Auth holds the configuration for the identity provider.
type Auth struct {
	JWTSecret          string  `mapstructure:"jwt_secret"`
	TokenTTLHours      int     `mapstructure:"token_ttl_hours"`
	MinPasswordLength  int     `mapstructure:"min_password_length"`
	LoginRateLimit     float64 `mapstructure:"login_rate_limit"`
	LoginRateBurst     int     `mapstructure:"login_rate_burst"`
	SMSCodeTTLSeconds  int     `mapstructure:"sms_code_ttl_seconds"`
	RecaptchaSecret    string  `mapstructure:"recaptcha_secret"`
	RecaptchaVerifyURL string  `mapstructure:"recaptcha_verify_url"`
	GoogleClientID     string  `mapstructure:"google_client_id"`
	GoogleTokenInfoURL string  `mapstructure:"google_tokeninfo_url"`
}

// Exchange holds the configuration for the exchange REST API that feeds the account mirror.
type Exchange struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	SyncEnabled    bool    `mapstructure:"sync_enabled"`
	SyncSchedule   string  `mapstructure:"sync_schedule"`
}

// Dashboard holds the configuration for the per-principal views.
type Dashboard struct {
	ToastTTLSeconds int `mapstructure:"toast_ttl_seconds"`
}

// Trace holds the configuration for OpenTelemetry tracing.
type Trace struct {
	Enabled bool `mapstructure:"enabled"`
}

// TokenTTL is the lifetime of an issued session token.
func (a Auth) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// SMSCodeTTL is how long a phone verification code stays valid.
func (a Auth) SMSCodeTTL() time.Duration {
	return time.Duration(a.SMSCodeTTLSeconds) * time.Second
}

// ToastTTL is how long a transient notification stays visible.
func (d Dashboard) ToastTTL() time.Duration {
	return time.Duration(d.ToastTTLSeconds) * time.Second
}

// ShutdownGrace is how long the HTTP server gets to drain on shutdown.
func (s Server) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and the environment still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("database.dsn", "dashboard.db")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_hours", 24)
	v.SetDefault("auth.min_password_length", 6)
	v.SetDefault("auth.login_rate_limit", 0.2) // one attempt every 5s once the burst is spent
	v.SetDefault("auth.login_rate_burst", 5)
	v.SetDefault("auth.sms_code_ttl_seconds", 300)
	v.SetDefault("auth.recaptcha_secret", "")
	v.SetDefault("auth.recaptcha_verify_url", "https://www.google.com/recaptcha/api/siteverify")
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.google_tokeninfo_url", "https://oauth2.googleapis.com/tokeninfo")

	v.SetDefault("exchange.base_url", "https://api-spot.weex.com/api/v2")
	v.SetDefault("exchange.rate_limit", 10)     // requests per second
	v.SetDefault("exchange.rate_limit_burst", 5) // burst size
	v.SetDefault("exchange.sync_enabled", true)
	v.SetDefault("exchange.sync_schedule", "@every 1m")

	v.SetDefault("dashboard.toast_ttl_seconds", 3)

	v.SetDefault("trace.enabled", false)
}
