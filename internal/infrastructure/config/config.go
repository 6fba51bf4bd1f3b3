package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Scheduler  SchedulerConfig
	Telemetry  TelemetryConfig
	Storage    StorageConfig
	Gateway    GatewayConfig
	Settlement SettlementConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowThreshold   time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	Enabled           bool
	RedriveInterval   time.Duration
	RedriveBatchSize  int
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool // development only
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	DBLogFullSQL      bool
}

// StorageConfig holds S3-compatible object storage settings for report archives
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UseSSL       bool
	UsePathStyle bool
	ReportPrefix string
}

// GatewayConfig holds payment gateway settings
type GatewayConfig struct {
	BaseURL     string
	MerchantID  string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	Sandbox     bool
}

// SettlementConfig holds pricing and idempotency settings
type SettlementConfig struct {
	SpeedPostFee       float64
	HalfCardMultiplier float64
	FreeCardMultiplier float64
	IdempotencyTTL     time.Duration
	IdempotencyBackend string // memory, redis
	AttributionGrace   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TH_ prefix (e.g., TH_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/tuitionhub")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper
// instance, applying environment overrides, defaults and validation
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("TH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allowed_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			RedriveInterval:   v.GetDuration("scheduler.redrive_interval"),
			RedriveBatchSize:  v.GetInt("scheduler.redrive_batch_size"),
			MaxConcurrentJobs: v.GetInt("scheduler.max_concurrent_jobs"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			MaxRetries:        v.GetInt("scheduler.max_retries"),
			RetryDelay:        v.GetDuration("scheduler.retry_delay"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			Region:       v.GetString("storage.region"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			ReportPrefix: v.GetString("storage.report_prefix"),
		},
		Gateway: GatewayConfig{
			BaseURL:     v.GetString("gateway.base_url"),
			MerchantID:  v.GetString("gateway.merchant_id"),
			Secret:      v.GetString("gateway.secret"),
			Timeout:     v.GetDuration("gateway.timeout"),
			MaxAttempts: v.GetInt("gateway.max_attempts"),
			RetryDelay:  v.GetDuration("gateway.retry_delay"),
			Sandbox:     v.GetBool("gateway.sandbox"),
		},
		Settlement: SettlementConfig{
			SpeedPostFee:       v.GetFloat64("settlement.speed_post_fee"),
			HalfCardMultiplier: v.GetFloat64("settlement.half_card_multiplier"),
			FreeCardMultiplier: v.GetFloat64("settlement.free_card_multiplier"),
			IdempotencyTTL:     v.GetDuration("settlement.idempotency_ttl"),
			IdempotencyBackend: v.GetString("settlement.idempotency_backend"),
			AttributionGrace:   v.GetDuration("settlement.attribution_grace"),
		},
	}

	// Multipliers and the speed post fee may legitimately be zero, so their
	// defaults only apply when the key is absent.
	if !v.IsSet("settlement.speed_post_fee") {
		cfg.Settlement.SpeedPostFee = 300
	}
	if !v.IsSet("settlement.half_card_multiplier") {
		cfg.Settlement.HalfCardMultiplier = 0.5
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "tuitionhub-settlement"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "tuitionhub"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	// An empty origin list means no cross-origin requests until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Signature"}
	}
	if cfg.Scheduler.RedriveInterval == 0 {
		cfg.Scheduler.RedriveInterval = 5 * time.Minute
	}
	if cfg.Scheduler.RedriveBatchSize == 0 {
		cfg.Scheduler.RedriveBatchSize = 50
	}
	if cfg.Scheduler.MaxConcurrentJobs == 0 {
		cfg.Scheduler.MaxConcurrentJobs = 2
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 2 * time.Minute
	}
	if cfg.Scheduler.MaxRetries == 0 {
		cfg.Scheduler.MaxRetries = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "tuitionhub-settlement"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.ReportPrefix == "" {
		cfg.Storage.ReportPrefix = "reports"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Gateway.MaxAttempts == 0 {
		cfg.Gateway.MaxAttempts = 3
	}
	if cfg.Gateway.RetryDelay == 0 {
		cfg.Gateway.RetryDelay = 2 * time.Second
	}
	if cfg.Settlement.IdempotencyTTL == 0 {
		cfg.Settlement.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Settlement.IdempotencyBackend == "" {
		cfg.Settlement.IdempotencyBackend = "memory"
	}
	if cfg.Settlement.AttributionGrace == 0 {
		cfg.Settlement.AttributionGrace = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Gateway.Secret == "" {
			return fmt.Errorf("gateway.secret is required in production")
		}
		if c.Gateway.Sandbox {
			return fmt.Errorf("gateway.sandbox must be false in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allowed_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Settlement.SpeedPostFee < 0 {
		return fmt.Errorf("settlement.speed_post_fee cannot be negative")
	}
	for name, m := range map[string]float64{
		"settlement.half_card_multiplier": c.Settlement.HalfCardMultiplier,
		"settlement.free_card_multiplier": c.Settlement.FreeCardMultiplier,
	} {
		if m < 0 || m > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, m)
		}
	}
	if c.Settlement.AttributionGrace < 0 {
		return fmt.Errorf("settlement.attribution_grace cannot be negative")
	}
	switch c.Settlement.IdempotencyBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("settlement.idempotency_backend must be memory or redis, got %q", c.Settlement.IdempotencyBackend)
	}
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("gateway.max_attempts must be at least 1")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Scheduler.Enabled && c.Scheduler.RedriveInterval < time.Second {
		return fmt.Errorf("scheduler.redrive_interval must be at least 1s")
	}

	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
