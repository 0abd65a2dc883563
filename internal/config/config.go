// FilePath: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Simulator SimulatorConfig
	MQTT      MQTTConfig
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	TimescaleDB PostgresConfig `mapstructure:"timescaledb"`
	AppDB       PostgresConfig `mapstructure:"postgres_app"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// AuthConfig carries the token-signing secret for dashboard JWTs and the
// process-wide shared secret devices present on connect.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	DeviceAPIKey string        `mapstructure:"device_api_key"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type CORSConfig struct {
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// SimulatorConfig controls the background telemetry generator used for demo
// deployments. Disabled by default. Seed creates a demo fleet on startup when
// the store is empty.
type SimulatorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Seed     bool          `mapstructure:"seed"`
	Interval time.Duration `mapstructure:"interval"`
}

// MQTTConfig enables the optional MQTT telemetry ingest when a broker URL is
// set. Empty broker leaves the ingest off.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("TRAFFIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults. Empty defaults register the keys so AutomaticEnv
	// resolves them during Unmarshal.
	viper.SetDefault("database.timescaledb.host", "")
	viper.SetDefault("database.timescaledb.port", 5432)
	viper.SetDefault("database.timescaledb.sslmode", "disable")
	viper.SetDefault("database.postgres_app.host", "")
	viper.SetDefault("database.postgres_app.port", 5432)
	viper.SetDefault("database.postgres_app.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "30s")

	// Auth defaults
	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.device_api_key", "")
	viper.SetDefault("auth.token_ttl", "24h")

	// CORS defaults
	viper.SetDefault("cors.allowed_origin", "http://localhost:3000")

	// Simulator defaults
	viper.SetDefault("simulator.enabled", false)
	viper.SetDefault("simulator.seed", false)
	viper.SetDefault("simulator.interval", "5s")

	// MQTT defaults
	viper.SetDefault("mqtt.broker", "")
	viper.SetDefault("mqtt.client_id", "traffic-backend")
	viper.SetDefault("mqtt.topic", "traffic/+/+/telemetry")
}

func validateConfig(config *Config) error {
	// For now, just check required fields are not empty
	if config.Database.TimescaleDB.Host == "" {
		return fmt.Errorf("timescaledb host is required")
	}
	if config.Database.AppDB.Host == "" {
		return fmt.Errorf("postgres app host is required")
	}
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}
	if config.Auth.DeviceAPIKey == "" {
		return fmt.Errorf("auth device_api_key is required")
	}
	return nil
}
