// Package config loads tradegate settings. Sources apply in order, later
// ones winning: built-in defaults, an optional TOML file, a .env file, and
// finally TRADEGATE_* process environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	pkgstrings "tradegate/pkg/platform/strings"
)

const envPrefix = "TRADEGATE_"

// Backends for the session persistence and profile document store.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSurreal  = "surreal"
)

// Duration reads TOML strings such as "30s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full server configuration.
type Config struct {
	Server   Server         `toml:"server"`
	Session  SessionConfig  `toml:"session"`
	Profiles ProfilesConfig `toml:"profiles"`
	Wallet   WalletConfig   `toml:"wallet"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	Surreal  SurrealConfig  `toml:"surreal"`
	Audit    AuditConfig    `toml:"audit"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string   `toml:"addr"`
	JWTSigningKey   string   `toml:"jwt_signing_key"`
	TokenTTL        Duration `toml:"token_ttl"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`

	// AdminToken guards operational endpoints such as /metrics. Empty leaves
	// them open.
	AdminToken string `toml:"admin_token"`
}

// SessionConfig selects where the durable session subset lives.
type SessionConfig struct {
	Backend        string   `toml:"backend"`
	Key            string   `toml:"key"`
	Dir            string   `toml:"dir"`
	RedisPrefix    string   `toml:"redis_prefix"`
	PersistTimeout Duration `toml:"persist_timeout"`
}

// ProfilesConfig selects the profile document store.
type ProfilesConfig struct {
	Backend string `toml:"backend"`
}

// WalletConfig describes how the server reaches a wallet. An empty BridgeURL
// means no wallet is installed.
type WalletConfig struct {
	BridgeURL      string   `toml:"bridge_url"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	PingInterval   Duration `toml:"ping_interval"`
	PollInterval   Duration `toml:"poll_interval"`
}

// RedisConfig holds Redis connection settings. URL empty disables Redis.
type RedisConfig struct {
	URL          string   `toml:"url"`
	PoolSize     int      `toml:"pool_size"`
	MinIdleConns int      `toml:"min_idle_conns"`
	DialTimeout  Duration `toml:"dial_timeout"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

type PostgresConfig struct {
	DSN          string   `toml:"dsn"`
	MaxOpenConns int      `toml:"max_open_conns"`
	MaxIdleConns int      `toml:"max_idle_conns"`
	ConnMaxIdle  Duration `toml:"conn_max_idle"`
}

type SurrealConfig struct {
	URL       string `toml:"url"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// AuditConfig enables the Kafka audit sink when Brokers is set; otherwise
// events stay in memory.
type AuditConfig struct {
	Brokers   []string `toml:"brokers"`
	Topic     string   `toml:"topic"`
	QueueSize int      `toml:"queue_size"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a configuration that runs with no external services.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			JWTSigningKey:   "dev-secret-key-change-in-production",
			TokenTTL:        Duration{24 * time.Hour},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Session: SessionConfig{
			Backend:        BackendFile,
			Key:            "web3-auth-storage",
			Dir:            "data/session",
			RedisPrefix:    "tradegate:session:",
			PersistTimeout: Duration{2 * time.Second},
		},
		Profiles: ProfilesConfig{Backend: BackendMemory},
		Wallet: WalletConfig{
			ConnectTimeout: Duration{2 * time.Minute},
			PingInterval:   Duration{30 * time.Second},
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  Duration{5 * time.Second},
			ReadTimeout:  Duration{3 * time.Second},
			WriteTimeout: Duration{3 * time.Second},
		},
		Postgres: PostgresConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			ConnMaxIdle:  Duration{5 * time.Minute},
		},
		Surreal: SurrealConfig{
			Namespace: "tradegate",
			Database:  "tradegate",
		},
		Audit: AuditConfig{
			Topic:     "tradegate.audit",
			QueueSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. tomlPath and envPath may be empty or point
// at missing files; both are then skipped.
func Load(tomlPath, envPath string) (Config, error) {
	cfg := Default()

	if tomlPath != "" {
		data, err := os.ReadFile(tomlPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config file %s: %w", tomlPath, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", tomlPath, err)
			}
		}
	}

	if envPath != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	var errs []error
	switch c.Session.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("session backend redis requires redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.Session.Backend))
	}
	switch c.Profiles.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("profiles backend redis requires redis.url"))
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("profiles backend postgres requires postgres.dsn"))
		}
	case BackendSurreal:
		if c.Surreal.URL == "" {
			errs = append(errs, errors.New("profiles backend surreal requires surreal.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown profiles backend %q", c.Profiles.Backend))
	}
	if c.Server.JWTSigningKey == "" {
		errs = append(errs, errors.New("server.jwt_signing_key must be set"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"ADDR":              &cfg.Server.Addr,
		"JWT_SIGNING_KEY":   &cfg.Server.JWTSigningKey,
		"ADMIN_TOKEN":       &cfg.Server.AdminToken,
		"SESSION_BACKEND":   &cfg.Session.Backend,
		"SESSION_KEY":       &cfg.Session.Key,
		"SESSION_DIR":       &cfg.Session.Dir,
		"PROFILES_BACKEND":  &cfg.Profiles.Backend,
		"WALLET_BRIDGE_URL": &cfg.Wallet.BridgeURL,
		"REDIS_URL":         &cfg.Redis.URL,
		"POSTGRES_DSN":      &cfg.Postgres.DSN,
		"SURREAL_URL":       &cfg.Surreal.URL,
		"SURREAL_NAMESPACE": &cfg.Surreal.Namespace,
		"SURREAL_DATABASE":  &cfg.Surreal.Database,
		"SURREAL_USERNAME":  &cfg.Surreal.Username,
		"SURREAL_PASSWORD":  &cfg.Surreal.Password,
		"AUDIT_TOPIC":       &cfg.Audit.Topic,
		"LOG_LEVEL":         &cfg.Logging.Level,
		"LOG_FORMAT":        &cfg.Logging.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	durations := map[string]*Duration{
		"TOKEN_TTL":              &cfg.Server.TokenTTL,
		"SHUTDOWN_TIMEOUT":       &cfg.Server.ShutdownTimeout,
		"WALLET_CONNECT_TIMEOUT": &cfg.Wallet.ConnectTimeout,
		"WALLET_POLL_INTERVAL":   &cfg.Wallet.PollInterval,
	}
	for name, dst := range durations {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
	}

	if v, ok := lookup("REDIS_POOL_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_POOL_SIZE: %w", envPrefix, err)
		}
		cfg.Redis.PoolSize = n
	}
	if v, ok := lookup("AUDIT_BROKERS"); ok {
		cfg.Audit.Brokers = splitList(v)
	}
	return nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(v string) []string {
	return pkgstrings.DedupeAndTrim(strings.Split(v, ","))
}
