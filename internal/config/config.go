// Package config loads application configuration from config.yaml and
// PROXIMITY_* environment variables, and initializes the global logger.
package config

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/metro-proximity/internal/geo"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Proximity ProximityConfig `yaml:"proximity" mapstructure:"proximity"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input tables and how to subsample them. Paths may
// be http(s) URLs, in which case the *_fallback path is read if the download
// fails.
type DataConfig struct {
	IncidentsPath     string  `yaml:"incidents_path" mapstructure:"incidents_path"`
	IncidentsFallback string  `yaml:"incidents_fallback" mapstructure:"incidents_fallback"`
	StationsPath      string  `yaml:"stations_path" mapstructure:"stations_path"`
	StationsFallback  string  `yaml:"stations_fallback" mapstructure:"stations_fallback"`
	Borough           string  `yaml:"borough" mapstructure:"borough"`
	SampleFraction    float64 `yaml:"sample_fraction" mapstructure:"sample_fraction"`
	SampleSeed        uint64  `yaml:"sample_seed" mapstructure:"sample_seed"`
	MaxPoints         int     `yaml:"max_points" mapstructure:"max_points"`
	DownloadTimeout   int     `yaml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
}

// ProximityConfig sets the radius and distance methods.
type ProximityConfig struct {
	RadiusMeters    float64 `yaml:"radius_meters" mapstructure:"radius_meters"`
	Method          string  `yaml:"method" mapstructure:"method"`
	ReferenceMethod string  `yaml:"reference_method" mapstructure:"reference_method"`
}

// CacheConfig sizes the in-process result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// TTL returns the entry lifetime; zero disables expiry.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// StoreConfig selects the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimit      float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROXIMITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.incidents_path", "df_streamlit.csv")
	v.SetDefault("data.incidents_fallback", "")
	v.SetDefault("data.stations_path", "metro_stations.csv")
	v.SetDefault("data.stations_fallback", "")
	v.SetDefault("data.borough", "")
	v.SetDefault("data.sample_fraction", 1.0)
	v.SetDefault("data.sample_seed", 42)
	v.SetDefault("data.max_points", 0)
	v.SetDefault("data.download_timeout_secs", 120)
	v.SetDefault("proximity.radius_meters", 300.0)
	v.SetDefault("proximity.method", "haversine")
	v.SetDefault("proximity.reference_method", "geodesic")
	v.SetDefault("cache.max_entries", 64)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "proximity.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name:
// filter, counts, compare, runs or serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "filter", "counts", "compare", "serve":
		errs = append(errs, c.validateCompute()...)
		if mode == "serve" {
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				errs = append(errs, "server.port must be between 1 and 65535")
			}
			if c.Server.RateLimit < 0 {
				errs = append(errs, "server.rate_limit must be >= 0")
			}
			if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
				errs = append(errs, "server.rate_burst must be >= 1 when rate_limit is set")
			}
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "runs" || mode == "serve" {
		errs = append(errs, c.validateStore()...)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateCompute() []string {
	var errs []string
	if c.Data.IncidentsPath == "" && c.Data.IncidentsFallback == "" {
		errs = append(errs, "data.incidents_path is required")
	}
	if c.Data.StationsPath == "" && c.Data.StationsFallback == "" {
		errs = append(errs, "data.stations_path is required")
	}
	if f := c.Data.SampleFraction; math.IsNaN(f) || f <= 0 || f > 1 {
		errs = append(errs, "data.sample_fraction must be in (0, 1]")
	}
	if c.Data.MaxPoints < 0 {
		errs = append(errs, "data.max_points must be >= 0")
	}
	if r := c.Proximity.RadiusMeters; math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		errs = append(errs, "proximity.radius_meters must be > 0")
	}
	if _, err := geo.ParseMethod(c.Proximity.Method); err != nil {
		errs = append(errs, "proximity.method: "+err.Error())
	}
	if _, err := geo.ParseMethod(c.Proximity.ReferenceMethod); err != nil {
		errs = append(errs, "proximity.reference_method: "+err.Error())
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache.max_entries must be >= 0")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
