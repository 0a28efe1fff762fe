// Package config loads the service configuration once at startup: defaults,
// then an optional YAML file, then environment variables, then flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	productionHashCost = 10
)

type Config struct {
	Env    string `koanf:"env"`
	Server Server `koanf:"server"`
	Token  Token  `koanf:"token"`
	Hash   Hash   `koanf:"hash"`
	Store  Store  `koanf:"store"`
	Notify Notify `koanf:"notify"`
	Log    Log    `koanf:"log"`
}

type Server struct {
	Port        int      `koanf:"port"`
	CORSOrigins []string `koanf:"cors_origins"`
	Metrics     bool     `koanf:"metrics"`
}

type Token struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

// Hash.Cost of zero means "pick from Env".
type Hash struct {
	Cost int `koanf:"cost"`
}

// Store.Database and Store.Collection only apply to the mongo driver.
type Store struct {
	Driver     string `koanf:"driver"`
	DSN        string `koanf:"dsn"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

type Notify struct {
	Driver        string `koanf:"driver"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	Queue         string `koanf:"queue"`
}

type Log struct {
	Level string `koanf:"level"`
}

var defaults = map[string]interface{}{
	"env":                 EnvProduction,
	"server.port":         3001,
	"server.cors_origins": []string{"*"},
	"server.metrics":      true,
	"token.ttl":           "0s",
	"hash.cost":           0,
	"store.driver":        "memory",
	"store.database":      "auth",
	"store.collection":    "users",
	"notify.driver":       "log",
	"notify.redis_addr":   "127.0.0.1:6379",
	"notify.queue":        "auth:password-reset",
	"log.level":           "info",
}

var envKeys = map[string]string{
	"APP_ENV":          "env",
	"NODE_ENV":         "env",
	"PORT":             "server.port",
	"CORS_ORIGINS":     "server.cors_origins",
	"METRICS":          "server.metrics",
	"JWT_SECRET":       "token.secret",
	"TOKEN_TTL":        "token.ttl",
	"HASH_COST":        "hash.cost",
	"STORE_DRIVER":     "store.driver",
	"STORE_DSN":        "store.dsn",
	"MONGO_DATABASE":   "store.database",
	"MONGO_COLLECTION": "store.collection",
	"NOTIFY_DRIVER":    "notify.driver",
	"REDIS_ADDR":       "notify.redis_addr",
	"REDIS_PASSWORD":   "notify.redis_password",
	"REDIS_DB":         "notify.redis_db",
	"REDIS_QUEUE":      "notify.queue",
	"LOG_LEVEL":        "log.level",
}

// BindFlags registers the command-line overrides on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("env", "", "environment (development or production)")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("store", "", "account store (memory, mongo, sqlite, postgres)")
	fs.String("store-dsn", "", "account store connection string or path")
	fs.String("notify", "", "reset notifier (log, redis)")
	fs.Int("hash-cost", 0, "bcrypt cost, overrides the environment default")
	fs.Duration("token-ttl", 0, "session token lifetime, 0 for non-expiring tokens")
	fs.String("log-level", "", "log level")
}

var flagKeys = map[string]string{
	"env":       "env",
	"port":      "server.port",
	"store":     "store.driver",
	"store-dsn": "store.dsn",
	"notify":    "notify.driver",
	"hash-cost": "hash.cost",
	"token-ttl": "token.ttl",
	"log-level": "log.level",
}

// Load builds the Config. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := configPath(fs); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		_ = k.Set("server.cors_origins", splitList(origins))
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagValue(fs)), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Hash.Cost == 0 {
		cfg.Hash.Cost = DefaultHashCost(cfg.Env)
	}
	return &cfg, cfg.Validate()
}

// DefaultHashCost is the lowest cost bcrypt allows in development and 10 elsewhere.
func DefaultHashCost(environment string) int {
	if environment == EnvDevelopment {
		return bcrypt.MinCost
	}
	return productionHashCost
}

func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("token secret is required (JWT_SECRET)")
	}
	if c.Token.TTL < 0 {
		return fmt.Errorf("token ttl must not be negative, got %s", c.Token.TTL)
	}
	if c.Hash.Cost < bcrypt.MinCost || c.Hash.Cost > bcrypt.MaxCost {
		return fmt.Errorf("hash cost must be within [%d, %d], got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Hash.Cost)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "memory", "mongo", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.DSN == "" {
		return fmt.Errorf("store driver %q needs a dsn", c.Store.Driver)
	}
	switch c.Notify.Driver {
	case "log", "redis":
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func configPath(fs *pflag.FlagSet) string {
	if fs != nil {
		if p, err := fs.GetString("config"); err == nil && p != "" {
			return p
		}
	}
	return os.Getenv("CONFIG_FILE")
}

// envValue drops unset-looking variables so an empty PORT= does not wipe a default.
func envValue(name, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	switch {
	case name == "CORS_ORIGINS":
		return "", nil
	case name == "NODE_ENV" && os.Getenv("APP_ENV") != "":
		return "", nil
	}
	return envKeys[name], value
}

func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
