package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the service reads at startup.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	DBDriver      string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string
	StoreTimeout  time.Duration

	RabbitMQURL       string
	RabbitMQExchange  string
	LowStockThreshold int

	StaticDir      string
	MaxUploadBytes int

	Auth AuthConfig
}

// AuthConfig configures the optional staff login.
type AuthConfig struct {
	Enabled           bool
	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string
	TokenTTL          time.Duration
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "sweetshop")
	v.SetDefault("STORE_TIMEOUT", 10*time.Second)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "inventory")
	v.SetDefault("LOW_STOCK_THRESHOLD", 5)
	v.SetDefault("STATIC_DIR", "./web")
	v.SetDefault("MAX_UPLOAD_BYTES", 5<<20)
	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:           v.GetString("APP_PORT"),
		AppEnv:            v.GetString("APP_ENV"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:       v.GetString("DATABASE_DSN"),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDatabase:     v.GetString("MONGO_DATABASE"),
		StoreTimeout:      v.GetDuration("STORE_TIMEOUT"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		RabbitMQExchange:  v.GetString("RABBITMQ_EXCHANGE"),
		LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
		StaticDir:         v.GetString("STATIC_DIR"),
		MaxUploadBytes:    v.GetInt("MAX_UPLOAD_BYTES"),
		Auth: AuthConfig{
			Enabled:           v.GetBool("AUTH_ENABLED"),
			JWTSecret:         v.GetString("JWT_SECRET"),
			AdminUsername:     v.GetString("ADMIN_USERNAME"),
			AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
			TokenTTL:          v.GetDuration("TOKEN_TTL"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for driver %q", c.DBDriver)
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for driver %q", c.DBDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.Auth.Enabled && (c.Auth.JWTSecret == "" || c.Auth.AdminPasswordHash == "") {
		return fmt.Errorf("JWT_SECRET and ADMIN_PASSWORD_HASH are required when AUTH_ENABLED is set")
	}
	return nil
}
