package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PLEXSOURCE"

const (
	BackendModeAPI   = "api"
	BackendModeLocal = "local"
)

var ErrInvalidConfig = errors.New("invalid_config")

type Config struct {
	AppName     string `mapstructure:"app_name" validate:"required"`
	Environment string `mapstructure:"environment"`

	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Plex     PlexConfig     `mapstructure:"plex"`
	Flows    FlowsConfig    `mapstructure:"flows"`
	Session  SessionConfig  `mapstructure:"session"`
	OTel     OTelConfig     `mapstructure:"otel"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	APIKey         string        `mapstructure:"api_key"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// BackendConfig selects where flows and sources live. In api mode both are
// read from and written to a remote identity backend; in local mode they are
// kept in the configured database.
type BackendConfig struct {
	Mode    string        `mapstructure:"mode" validate:"oneof=api local"`
	URL     string        `mapstructure:"url" validate:"required_if=Mode api,omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres mysql sqlite"`
	DSN             string        `mapstructure:"dsn"`
	Name            string        `mapstructure:"name"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type PlexConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	AppURL         string        `mapstructure:"app_url" validate:"required,url"`
	Product        string        `mapstructure:"product" validate:"required"`
	Version        string        `mapstructure:"version"`
	DeviceVendor   string        `mapstructure:"device_vendor"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	WindowWidth    int           `mapstructure:"window_width"`
	WindowHeight   int           `mapstructure:"window_height"`
}

type FlowsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type SessionConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

type OTelConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Protocol    string `mapstructure:"protocol" validate:"oneof=http grpc"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads configuration from defaults, an optional config file, a .env
// file in the working directory and PLEXSOURCE_* environment variables, in
// increasing order of precedence.
func Load(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the decoded configuration.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Plex.MaxAttempts <= 0 && c.Plex.Timeout <= 0 {
		return fmt.Errorf("%w: plex.max_attempts or plex.timeout must bound polling", ErrInvalidConfig)
	}
	if c.Backend.Mode == BackendModeLocal && strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("%w: database.dsn is required in local backend mode", ErrInvalidConfig)
	}
	return nil
}

func (c Config) IsLocal() bool {
	return c.Backend.Mode == BackendModeLocal
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "plexsource")
	v.SetDefault("environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("backend.mode", BackendModeAPI)
	v.SetDefault("backend.url", "http://localhost:9000")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.name", "plexsource")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "plexsource:")

	v.SetDefault("plex.base_url", "https://plex.tv")
	v.SetDefault("plex.app_url", "https://app.plex.tv")
	v.SetDefault("plex.product", "plexsource")
	v.SetDefault("plex.version", "1.0")
	v.SetDefault("plex.device_vendor", "railzwaylabs")
	v.SetDefault("plex.poll_interval", time.Second)
	v.SetDefault("plex.max_attempts", 300)
	v.SetDefault("plex.timeout", 5*time.Minute)
	v.SetDefault("plex.request_timeout", 10*time.Second)
	v.SetDefault("plex.window_width", 550)
	v.SetDefault("plex.window_height", 700)

	v.SetDefault("flows.cache_ttl", 30*time.Second)

	v.SetDefault("session.idle_ttl", 30*time.Minute)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4318")
	v.SetDefault("otel.protocol", "http")
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.service_name", "plexsource")
}
