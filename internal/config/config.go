package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Store     StoreConfig     `mapstructure:"store"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Transport TransportConfig `mapstructure:"transport"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Push      PushConfig      `mapstructure:"push"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Log       LogConfig       `mapstructure:"log"`
	WS        WSConfig        `mapstructure:"ws"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DBConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	TxTimeout      time.Duration `mapstructure:"tx_timeout"`
	MaxConns       int32         `mapstructure:"max_conns"`
}

// DSN renders the pgx connection string with credentials escaped.
func (c DBConfig) DSN() string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

type StoreConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type TransportConfig struct {
	// Kind is "ws" (in-process websocket hub) or "apigw" (AWS API Gateway).
	// With ws, sockets only receive payloads sent by the process holding
	// them; replicas sharing a presence backend fall back to push for users
	// connected elsewhere.
	Kind  string      `mapstructure:"kind"`
	APIGW APIGWConfig `mapstructure:"apigw"`
}

type APIGWConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	// Static credentials; empty means the default AWS credential chain.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	// IntegrationKey is the shared secret API Gateway sends in
	// X-Gateway-Key on the /gateway routes.
	IntegrationKey string `mapstructure:"integration_key"`
}

type PresenceConfig struct {
	// Backend is "store" or "redis".
	Backend      string        `mapstructure:"backend"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	ReapSchedule string        `mapstructure:"reap_schedule"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type PushConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	BaseURL            string        `mapstructure:"base_url"`
	TokenURL           string        `mapstructure:"token_url"`
	ClientID           string        `mapstructure:"client_id"`
	ClientSecret       string        `mapstructure:"client_secret"`
	Timeout            time.Duration `mapstructure:"timeout"`
	TokenRefreshMargin time.Duration `mapstructure:"token_refresh_margin"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type WSConfig struct {
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "spark")
	v.SetDefault("db.password", "spark_dev_password")
	v.SetDefault("db.name", "spark")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.connect_timeout", 5*time.Second)
	v.SetDefault("db.tx_timeout", 10*time.Second)
	v.SetDefault("db.max_conns", 10)

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("jwt.secret", "dev-secret-change-me")

	v.SetDefault("transport.kind", "ws")
	v.SetDefault("transport.apigw.endpoint", "")
	v.SetDefault("transport.apigw.region", "us-east-1")
	v.SetDefault("transport.apigw.access_key_id", "")
	v.SetDefault("transport.apigw.secret_access_key", "")
	v.SetDefault("transport.apigw.integration_key", "")

	v.SetDefault("presence.backend", "store")
	v.SetDefault("presence.max_age", 2*time.Hour)
	v.SetDefault("presence.reap_schedule", "@every 10m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "spark")

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.base_url", "https://api.line.me")
	v.SetDefault("push.token_url", "https://api.line.me/oauth2/v3/token")
	v.SetDefault("push.client_id", "")
	v.SetDefault("push.client_secret", "")
	v.SetDefault("push.timeout", 10*time.Second)
	v.SetDefault("push.token_refresh_margin", 5*time.Minute)
	v.SetDefault("push.breaker_max_failures", 5)
	v.SetDefault("push.breaker_timeout", 30*time.Second)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("ws.max_message_size", 4096)
	v.SetDefault("ws.ping_interval", 30*time.Second)
}

// Load reads configuration from defaults, an optional file and SPARK_*
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("spark")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	switch c.Transport.Kind {
	case "ws", "apigw":
	default:
		return fmt.Errorf("config: unknown transport.kind %q", c.Transport.Kind)
	}
	if c.Transport.Kind == "apigw" && c.Transport.APIGW.Endpoint == "" {
		return fmt.Errorf("config: transport.apigw.endpoint is required for apigw transport")
	}
	switch c.Presence.Backend {
	case "store", "redis":
	default:
		return fmt.Errorf("config: unknown presence.backend %q", c.Presence.Backend)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.max_attempts must be at least 1")
	}
	return nil
}
