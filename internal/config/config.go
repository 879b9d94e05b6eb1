package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "TIERLIST"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabaseDriver  = "sqlite"
	defaultDatabasePath    = ".data/tierlist.sqlite"
	defaultUploadsDir      = ".data/images"
	defaultUploadsMaxBytes = 10 << 20
	defaultSamplerInterval = 1500 * time.Millisecond
	defaultSamplerBackfill = 8
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownTimeout = 10 * time.Second
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	ShutdownTimeout    time.Duration
	DatabaseDriver     string
	DatabasePath       string
	DatabaseDSN        string
	SeedOnStart        bool
	UploadsDir         string
	UploadsMaxBytes    int64
	SamplerEnabled     bool
	SamplerInterval    time.Duration
	SamplerBackfill    int
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
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
	configViper.SetDefault("http.shutdown_timeout", defaultShutdownTimeout)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("database.seed", true)
	configViper.SetDefault("uploads.dir", defaultUploadsDir)
	configViper.SetDefault("uploads.max_bytes", defaultUploadsMaxBytes)
	configViper.SetDefault("chat.sampler.enabled", false)
	configViper.SetDefault("chat.sampler.interval", defaultSamplerInterval)
	configViper.SetDefault("chat.sampler.backfill", defaultSamplerBackfill)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		ShutdownTimeout:    configViper.GetDuration("http.shutdown_timeout"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:       configViper.GetString("database.path"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		SeedOnStart:        configViper.GetBool("database.seed"),
		UploadsDir:         configViper.GetString("uploads.dir"),
		UploadsMaxBytes:    configViper.GetInt64("uploads.max_bytes"),
		SamplerEnabled:     configViper.GetBool("chat.sampler.enabled"),
		SamplerInterval:    configViper.GetDuration("chat.sampler.interval"),
		SamplerBackfill:    configViper.GetInt("chat.sampler.backfill"),
		CORSAllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          configViper.GetString("log.format"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if strings.TrimSpace(c.UploadsDir) == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.UploadsMaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be positive")
	}
	if c.SamplerInterval <= 0 {
		return fmt.Errorf("chat.sampler.interval must be positive")
	}
	if c.SamplerBackfill <= 0 {
		return fmt.Errorf("chat.sampler.backfill must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("http.shutdown_timeout must be positive")
	}
	return nil
}
