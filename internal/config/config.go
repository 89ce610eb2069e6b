package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig
	Sync     SyncConfig
	Rates    RatesConfig
	Log      LogConfig
	UI       UIConfig
}

// DatabaseConfig holds the working sqlite file location.
type DatabaseConfig struct {
	Path string
}

// CacheConfig selects where persisted snapshots live between sessions.
type CacheConfig struct {
	Backend  string // dir or redis
	Dir      string
	Encrypt  bool
	Redis    RedisConfig
	Debounce time.Duration
}

// RedisConfig holds redis connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// SyncConfig holds remote sync settings.
type SyncConfig struct {
	Backend  string // none, dir, s3, github
	Path     string
	Debounce time.Duration
	Dir      string
	S3       S3Config
	GitHub   GitHubConfig
}

// S3Config holds settings for an S3-compatible remote.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// GitHubConfig holds settings for the GitHub contents remote.
type GitHubConfig struct {
	Repo    string
	APIBase string
	Token   string
}

// RatesConfig holds exchange rate provider endpoints.
type RatesConfig struct {
	Primary  string
	Fallback string
	Timeout  time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DisplayCurrency string
	Timezone        string
}

// Load reads configuration from file and env. Env var overrides use prefix MONEYSYNC_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("MONEYSYNC_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "moneysync"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("MONEYSYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgPath != "" {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	share := filepath.Join(os.Getenv("HOME"), ".local", "share", "moneysync")

	v.SetDefault("database.path", filepath.Join(os.TempDir(), "moneysync", "work.db"))
	v.SetDefault("cache.backend", "dir")
	v.SetDefault("cache.dir", filepath.Join(share, "cache"))
	v.SetDefault("cache.encrypt", false)
	v.SetDefault("cache.debounce", 500*time.Millisecond)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "moneysync:")
	v.SetDefault("sync.backend", "none")
	v.SetDefault("sync.path", "money-tracker.enc")
	v.SetDefault("sync.debounce", 2*time.Second)
	v.SetDefault("sync.dir", filepath.Join(share, "remote"))
	v.SetDefault("sync.s3.bucket", "")
	v.SetDefault("sync.s3.region", "us-east-1")
	v.SetDefault("sync.s3.endpoint", "")
	v.SetDefault("sync.s3.accesskey", "")
	v.SetDefault("sync.s3.secretkey", "")
	v.SetDefault("sync.s3.usepathstyle", true)
	v.SetDefault("sync.github.repo", "")
	v.SetDefault("sync.github.apibase", "https://api.github.com")
	v.SetDefault("sync.github.token", "")
	v.SetDefault("rates.primary", "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies")
	v.SetDefault("rates.fallback", "https://latest.currency-api.pages.dev/v1/currencies")
	v.SetDefault("rates.timeout", 10*time.Second)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("ui.displaycurrency", "USD")
	v.SetDefault("ui.timezone", "Local")
}

// Save writes the provided config to disk, creating the config directory if needed.
// Secrets (S3 secret key, GitHub token) are left out; they belong in env vars or the
// credential store.
func Save(cfg Config) error {
	path := os.Getenv("MONEYSYNC_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "moneysync", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("cache.backend", cfg.Cache.Backend)
	v.Set("cache.dir", cfg.Cache.Dir)
	v.Set("cache.encrypt", cfg.Cache.Encrypt)
	v.Set("cache.debounce", cfg.Cache.Debounce.String())
	v.Set("cache.redis.addr", cfg.Cache.Redis.Addr)
	v.Set("cache.redis.db", cfg.Cache.Redis.DB)
	v.Set("cache.redis.prefix", cfg.Cache.Redis.Prefix)
	v.Set("sync.backend", cfg.Sync.Backend)
	v.Set("sync.path", cfg.Sync.Path)
	v.Set("sync.debounce", cfg.Sync.Debounce.String())
	v.Set("sync.dir", cfg.Sync.Dir)
	v.Set("sync.s3.bucket", cfg.Sync.S3.Bucket)
	v.Set("sync.s3.region", cfg.Sync.S3.Region)
	v.Set("sync.s3.endpoint", cfg.Sync.S3.Endpoint)
	v.Set("sync.s3.accesskey", cfg.Sync.S3.AccessKey)
	v.Set("sync.s3.usepathstyle", cfg.Sync.S3.UsePathStyle)
	v.Set("sync.github.repo", cfg.Sync.GitHub.Repo)
	v.Set("sync.github.apibase", cfg.Sync.GitHub.APIBase)
	v.Set("rates.primary", cfg.Rates.Primary)
	v.Set("rates.fallback", cfg.Rates.Fallback)
	v.Set("rates.timeout", cfg.Rates.Timeout.String())
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("log.output", cfg.Log.Output)
	v.Set("ui.displaycurrency", cfg.UI.DisplayCurrency)
	v.Set("ui.timezone", cfg.UI.Timezone)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
