// Package config handles application configuration using Viper.
// Values are merged in priority order: defaults, then an optional YAML file,
// then LOGO_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	ImageHost  ImageHostConfig  `mapstructure:"imagehost"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Services   ServicesConfig   `mapstructure:"services"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Auth       AuthConfig       `mapstructure:"auth"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the persistence backend: "sqlite" or "postgres".
type StorageConfig struct {
	Backend      string         `mapstructure:"backend"`
	DatabasePath string         `mapstructure:"database_path"`
	Postgres     PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// ImageHostConfig selects the remote image host: "imgbb", "minio" or "none".
type ImageHostConfig struct {
	Provider string      `mapstructure:"provider"`
	ImgBB    ImgBBConfig `mapstructure:"imgbb"`
	MinIO    MinIOConfig `mapstructure:"minio"`
}

type ImgBBConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

// CacheConfig selects the retrieval byte cache: "redis", "disk" or "none".
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Disk    DiskConfig    `mapstructure:"disk"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DiskConfig struct {
	Dir string `mapstructure:"dir"`
}

type ExtractionConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxDimension int           `mapstructure:"max_dimension"`
}

type FetchConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	MaxBytes       int64         `mapstructure:"max_bytes"`
	Retries        int           `mapstructure:"retries"`
	Backoff        time.Duration `mapstructure:"backoff"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MinDimension   int           `mapstructure:"min_dimension"`
}

type ScraperConfig struct {
	MaxRedirects int      `mapstructure:"max_redirects"`
	Blocklist    []string `mapstructure:"blocklist"`
}

// ServicesConfig lists third-party lookup URL templates; {domain} is
// substituted.
type ServicesConfig struct {
	Templates []string `mapstructure:"templates"`
}

type LLMConfig struct {
	// ProviderOrder controls which LLM providers are used and in what order.
	// First provider is primary, rest are fallbacks. Example: ["anthropic", "openai"]
	ProviderOrder []string        `mapstructure:"provider_order"`
	Anthropic     AnthropicConfig `mapstructure:"anthropic"`
	OpenAI        OpenAIConfig    `mapstructure:"openai"`
	RatePerMinute int             `mapstructure:"rate_per_minute"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// TracingConfig selects the span exporter: "none", "stdout" or "otlp".
type TracingConfig struct {
	Exporter     string `mapstructure:"exporter"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// setDefaults registers every key, so each one can also be set from the
// environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.database_path", "./storage/logo-service.db")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_conns", 10)
	v.SetDefault("storage.postgres.max_conn_lifetime", time.Hour)

	v.SetDefault("imagehost.provider", "none")
	v.SetDefault("imagehost.imgbb.api_key", "")
	v.SetDefault("imagehost.imgbb.endpoint", "https://api.imgbb.com/1/upload")
	v.SetDefault("imagehost.imgbb.timeout", 30*time.Second)
	v.SetDefault("imagehost.minio.endpoint", "")
	v.SetDefault("imagehost.minio.access_key", "")
	v.SetDefault("imagehost.minio.secret_key", "")
	v.SetDefault("imagehost.minio.bucket", "logos")
	v.SetDefault("imagehost.minio.use_ssl", false)
	v.SetDefault("imagehost.minio.public_url", "")

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.disk.dir", "./storage/cache")

	v.SetDefault("extraction.timeout", 30*time.Second)
	v.SetDefault("extraction.max_dimension", 512)

	v.SetDefault("fetch.connect_timeout", 5*time.Second)
	v.SetDefault("fetch.read_timeout", 10*time.Second)
	v.SetDefault("fetch.max_bytes", 5<<20)
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.backoff", 500*time.Millisecond)
	v.SetDefault("fetch.min_bytes", 100)
	v.SetDefault("fetch.min_dimension", 16)

	v.SetDefault("scraper.max_redirects", 5)
	v.SetDefault("scraper.blocklist", []string{})

	v.SetDefault("services.templates", []string{
		"https://logo.clearbit.com/{domain}",
		"https://icons.duckduckgo.com/ip3/{domain}.ico",
		"https://www.google.com/s2/favicons?domain={domain}&sz=256",
	})

	v.SetDefault("llm.provider_order", []string{})
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.openai.base_url", "")
	v.SetDefault("llm.rate_per_minute", 10)

	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.service_name", "domain-logo-service")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.otlp_insecure", false)

	v.SetDefault("log.level", "info")
}

// Load reads configuration from a YAML file and environment variables.
// An empty configPath looks for config.yaml in . and ./config; a missing
// file is fine there, but an explicit path must exist.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// LOGO_ prefix + nested keys: LOGO_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("LOGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects unknown backend names and missing required settings.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.DatabasePath == "" {
			return fmt.Errorf("storage.database_path is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.ImageHost.Provider {
	case "", "none":
	case "imgbb":
		if c.ImageHost.ImgBB.APIKey == "" {
			return fmt.Errorf("imagehost.imgbb.api_key is required for the imgbb provider")
		}
	case "minio":
		if c.ImageHost.MinIO.Endpoint == "" || c.ImageHost.MinIO.Bucket == "" {
			return fmt.Errorf("imagehost.minio.endpoint and bucket are required for the minio provider")
		}
	default:
		return fmt.Errorf("unknown imagehost.provider %q", c.ImageHost.Provider)
	}

	switch c.Cache.Backend {
	case "", "none", "redis", "disk":
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}

	if c.Extraction.MaxDimension <= 0 {
		return fmt.Errorf("extraction.max_dimension must be positive")
	}
	return nil
}

// Address returns the listen address string like "0.0.0.0:8080".
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
