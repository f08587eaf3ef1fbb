package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type APIConfig struct {
	PrimaryHost   string
	SecondaryHost string
	Timeout       time.Duration
}

type SessionConfig struct {
	DefaultTTL time.Duration
}

type StorageConfig struct {
	Driver    string
	Path      string
	KeyPrefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type JobsConfig struct {
	Notifications string
	SessionWatch  string
}

type DevServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	JWTSecret        string
	TokenTTL         time.Duration
	AllowCORSOrigins []string
	Seed             bool
}

type LoggingConfig struct {
	Level string
}

type MetricsConfig struct {
	Addr string
}

type AppConfig struct {
	Environment string
	API         APIConfig
	Session     SessionConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Postgres    PostgresConfig
	ObjectStore ObjectStoreConfig
	Jobs        JobsConfig
	DevServer   DevServerConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig
}

// Load reads configuration from an optional YAML file, an optional .env file
// and WELLNEST_* environment variables, in increasing order of precedence.
// An explicit file path skips the search and must exist.
func Load(file string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("wellnest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.wellnest")
	}

	v.SetEnvPrefix("WELLNEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.API.PrimaryHost) == "" {
		return errors.New("config: api.primaryhost is required")
	}
	if strings.TrimSpace(c.API.SecondaryHost) == "" {
		return errors.New("config: api.secondaryhost is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive, got %s", c.API.Timeout)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("api.primaryhost", "http://localhost:8000")
	v.SetDefault("api.secondaryhost", "https://api.wellnest.app")
	v.SetDefault("api.timeout", "15s")

	v.SetDefault("session.defaultttl", "720h") // 30 days

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "wellnest.db")
	v.SetDefault("storage.keyprefix", "wellnest:")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 4)
	v.SetDefault("postgres.maxidle", 1)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("objectstore.endpoint", "")
	v.SetDefault("objectstore.accesskey", "")
	v.SetDefault("objectstore.secretkey", "")
	v.SetDefault("objectstore.bucket", "wellnest-client")
	v.SetDefault("objectstore.usessl", false)
	v.SetDefault("objectstore.region", "us-east-1")

	v.SetDefault("jobs.notifications", "*/30 * * * * *")
	v.SetDefault("jobs.sessionwatch", "0 * * * * *")

	v.SetDefault("devserver.host", "127.0.0.1")
	v.SetDefault("devserver.port", 8000)
	v.SetDefault("devserver.readtimeout", "10s")
	v.SetDefault("devserver.writetimeout", "15s")
	v.SetDefault("devserver.idletimeout", "60s")
	v.SetDefault("devserver.jwtsecret", "wellnest-dev-secret")
	v.SetDefault("devserver.tokenttl", "24h")
	v.SetDefault("devserver.allowcorsorigins", []string{})
	v.SetDefault("devserver.seed", true)

	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.addr", "")
}
