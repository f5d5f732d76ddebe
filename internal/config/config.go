package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FlooooowY/SteelMount-FormShield/internal/logger"
	"github.com/FlooooowY/SteelMount-FormShield/internal/settings"
	"github.com/FlooooowY/SteelMount-FormShield/internal/validator"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Redis      RedisConfig       `yaml:"redis"`
	AntiSpam   AntiSpamConfig    `yaml:"anti_spam"`
	Validation validator.Options `yaml:"validation"`
	Security   SecurityConfig    `yaml:"security"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	GRPCPort        int           `yaml:"grpc_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// RedisConfig contains Redis-related configuration.
// An empty URL disables the ambient settings hash.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	SettingsKey  string        `yaml:"settings_key"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AntiSpamConfig is the ambient layer of form settings plus the time-gate range
// of hosted forms
type AntiSpamConfig struct {
	Settings          settings.Overrides `yaml:"settings"`
	MinSubmissionTime int                `yaml:"min_submission_time"`
	MaxRandomDelay    int                `yaml:"max_random_delay"`
	// ChallengeType pins the type served to hosted forms; empty picks at random
	ChallengeType string `yaml:"challenge_type"`
}

// SecurityConfig contains transport-level protection settings
type SecurityConfig struct {
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
}

// RateLimitConfig contains per-IP throttling settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// MonitoringConfig contains monitoring-related configuration
type MonitoringConfig struct {
	Enabled         bool          `yaml:"enabled"`
	PrometheusPort  int           `yaml:"prometheus_port"`
	MetricsPath     string        `yaml:"metrics_path"`
	HealthCheckPath string        `yaml:"health_check_path"`
	Logging         logger.Config `yaml:"logging"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8080,
			GRPCPort:        9090,
			ShutdownTimeout: 30 * time.Second,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Redis: RedisConfig{
			SettingsKey:  "formshield:settings",
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		AntiSpam: AntiSpamConfig{
			MinSubmissionTime: settings.DefaultMinSubmissionTime,
			MaxRandomDelay:    settings.DefaultMaxRandomDelay,
		},
		Validation: validator.DefaultOptions(),
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
			},
		},
		Monitoring: MonitoringConfig{
			Enabled:         true,
			PrometheusPort:  9091,
			MetricsPath:     "/metrics",
			HealthCheckPath: "/health",
			Logging: logger.Config{
				Level:  "info",
				Format: "text",
				Output: "stdout",
			},
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file and
// environment variables, in that order
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) error {
	ints := []struct {
		name   string
		target *int
	}{
		{"HTTP_PORT", &config.Server.HTTPPort},
		{"GRPC_PORT", &config.Server.GRPCPort},
		{"METRICS_PORT", &config.Monitoring.PrometheusPort},
		{"MIN_SUBMISSION_TIME", &config.Validation.MinSubmissionTime},
	}
	for _, v := range ints {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
		*v.target = n
	}

	// The hosted time gate follows the server minimum
	if raw := os.Getenv("MIN_SUBMISSION_TIME"); raw != "" {
		config.AntiSpam.MinSubmissionTime = config.Validation.MinSubmissionTime
	}

	if raw := os.Getenv("CHALLENGE_TIME_VALUE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("CHALLENGE_TIME_VALUE: %w", err)
		}
		config.Validation.ChallengeTimeValue = n
		config.AntiSpam.Settings.ChallengeTimeValue = settings.Int(n)
	}
	if raw := os.Getenv("MAX_CHALLENGES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("MAX_CHALLENGES: %w", err)
		}
		config.AntiSpam.Settings.MaxChallenges = settings.Int(n)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Monitoring.Logging.Level = logLevel
	}

	return nil
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	for name, port := range map[string]int{
		"http":    config.Server.HTTPPort,
		"grpc":    config.Server.GRPCPort,
		"metrics": config.Monitoring.PrometheusPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s port: %d", name, port)
		}
	}
	if config.Server.HTTPPort == config.Server.GRPCPort {
		return fmt.Errorf("http and grpc ports must differ: %d", config.Server.HTTPPort)
	}
	if config.Monitoring.Enabled && config.Monitoring.PrometheusPort == config.Server.HTTPPort {
		return fmt.Errorf("metrics port must differ from http port: %d", config.Server.HTTPPort)
	}

	if config.AntiSpam.MinSubmissionTime+config.AntiSpam.MaxRandomDelay <= 0 {
		return fmt.Errorf("min submission time must be positive: %d", config.AntiSpam.MinSubmissionTime)
	}
	if config.AntiSpam.MaxRandomDelay < 0 {
		return fmt.Errorf("max random delay must not be negative: %d", config.AntiSpam.MaxRandomDelay)
	}
	if _, err := settings.Resolve(settings.Defaults(), config.AntiSpam.Settings); err != nil {
		return fmt.Errorf("anti_spam settings: %w", err)
	}

	if config.Validation.MinSubmissionTime < 0 {
		return fmt.Errorf("validation min submission time must not be negative: %d", config.Validation.MinSubmissionTime)
	}
	if config.Validation.ChallengeTimeValue < 0 {
		return fmt.Errorf("validation challenge time value must not be negative: %d", config.Validation.ChallengeTimeValue)
	}

	if config.Security.RateLimit.Enabled && config.Security.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive: %d", config.Security.RateLimit.RequestsPerMinute)
	}

	if config.Redis.URL != "" && config.Redis.SettingsKey == "" {
		return fmt.Errorf("redis settings key is required when redis is configured")
	}

	return nil
}
