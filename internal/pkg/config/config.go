package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Log        LogConfig        `mapstructure:"log"`
	Tour       TourConfig       `mapstructure:"tour"`
	Directions DirectionsConfig `mapstructure:"directions"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"` // optional rotating log file
}

// TourConfig controls where the tour comes from and how sessions geofence.
type TourConfig struct {
	Source              string        `mapstructure:"source"` // "file" or "postgres"
	File                string        `mapstructure:"file"`
	Slug                string        `mapstructure:"slug"`
	GeofenceRadiusM     float64       `mapstructure:"geofence_radius_m"`
	LocationMinInterval time.Duration `mapstructure:"location_min_interval"`
	SessionIdleTimeout  time.Duration `mapstructure:"session_idle_timeout"`
}

// DirectionsConfig points at a Mapbox Directions compatible API.
type DirectionsConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Owner       string        `mapstructure:"owner"`
	Profile     string        `mapstructure:"profile"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// Load reads configuration from .env, an optional config file, and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "campustour")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "campustour")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "route-prefetch")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("tour.source", "file")
	v.SetDefault("tour.file", "configs/tour.json")
	v.SetDefault("tour.slug", "sjce-campus")
	v.SetDefault("tour.geofence_radius_m", 20.0)
	v.SetDefault("tour.location_min_interval", "3s")
	v.SetDefault("tour.session_idle_timeout", "30m")
	v.SetDefault("directions.base_url", "https://api.mapbox.com")
	v.SetDefault("directions.owner", "mapbox")
	v.SetDefault("directions.profile", "walking")
	v.SetDefault("directions.access_token", "")
	v.SetDefault("directions.timeout", "10s")
	v.SetDefault("directions.cache_ttl", "24h")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: CAMPUSTOUR_TOUR_GEOFENCE_RADIUS_M → tour.geofence_radius_m
	v.SetEnvPrefix("CAMPUSTOUR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	switch c.Tour.Source {
	case "file":
		if c.Tour.File == "" {
			errs = append(errs, "tour.file is required when tour.source is file")
		}
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("tour.source must be file or postgres, got %q", c.Tour.Source))
	}
	if c.Tour.Slug == "" {
		errs = append(errs, "tour.slug is required")
	}
	if c.Tour.GeofenceRadiusM <= 0 {
		errs = append(errs, "tour.geofence_radius_m must be positive")
	}
	if c.Tour.LocationMinInterval < 0 {
		errs = append(errs, "tour.location_min_interval must not be negative")
	}
	if c.Tour.SessionIdleTimeout <= 0 {
		errs = append(errs, "tour.session_idle_timeout must be positive")
	}

	if c.Directions.BaseURL == "" {
		errs = append(errs, "directions.base_url is required")
	}
	if c.Directions.Profile == "" {
		errs = append(errs, "directions.profile is required")
	}
	if c.Directions.Timeout <= 0 {
		errs = append(errs, "directions.timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
