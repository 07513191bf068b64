package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cipherdm/internal/relay"
	"cipherdm/internal/trust"
)

// Config is the full client and dev backend configuration.
type Config struct {
	Home     string         `mapstructure:"home"`
	Username string         `mapstructure:"username"`
	Server   ServerConfig   `mapstructure:"server"`
	Trust    TrustConfig    `mapstructure:"trust"`
	Log      LogConfig      `mapstructure:"log"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Identity IdentityConfig `mapstructure:"identity"`
	Backend  BackendConfig  `mapstructure:"backend"`
}

type ServerConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Endpoints relay.Endpoints `mapstructure:"endpoints"`
	// Push selects the event source: sse (through the backend) or redis
	// (subscribing to the backend's Redis channels directly).
	Push      string          `mapstructure:"push"`
	RedisAddr string          `mapstructure:"redis_addr"`
}

type TrustConfig struct {
	Pins   []string `mapstructure:"pins"`
	Mode   string   `mapstructure:"mode"`
	RootCA string   `mapstructure:"root_ca"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // auto, console or json
}

type ChatConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

type IdentityConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Lockout     time.Duration `mapstructure:"lockout"`
}

// BackendConfig is read by cmd/backend only.
type BackendConfig struct {
	Addr        string        `mapstructure:"addr"`
	Store       string        `mapstructure:"store"` // memory or postgres
	PostgresURL string        `mapstructure:"postgres_url"`
	Notifier    string        `mapstructure:"notifier"` // memory or redis
	RedisAddr   string        `mapstructure:"redis_addr"`
	TLSCert     string        `mapstructure:"tls_cert"`
	TLSKey      string        `mapstructure:"tls_key"`
	KeepAlive   time.Duration `mapstructure:"keep_alive"`
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"home":       "home",
	"username":   "username",
	"server":     "server.base_url",
	"timeout":    "server.timeout",
	"pin":        "trust.pins",
	"trust-mode": "trust.mode",
	"root-ca":    "trust.root_ca",
	"log-level":  "log.level",
	"log-format": "log.format",
	"addr":       "backend.addr",
	"store":      "backend.store",
	"notifier":   "backend.notifier",
}

// LoadConfig reads configuration from defaults, the config file at path (or
// cipherdm.yaml in . and $HOME/.cipherdm when path is empty), the
// environment and flags, in increasing precedence. flags may be nil.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cipherdm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cipherdm")
	}

	v.SetEnvPrefix("CIPHERDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.Home = filepath.Join(dir, ".cipherdm")
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	eps := relay.DefaultEndpoints()
	v.SetDefault("server.base_url", "https://localhost:5000")
	v.SetDefault("server.timeout", "15s")
	v.SetDefault("server.endpoints.public_key", eps.PublicKey)
	v.SetDefault("server.endpoints.chats", eps.Chats)
	v.SetDefault("server.endpoints.send_direct", eps.SendDirect)
	v.SetDefault("server.endpoints.send_group", eps.SendGroup)
	v.SetDefault("server.endpoints.signup", eps.Signup)
	v.SetDefault("server.endpoints.add_chat", eps.AddChat)
	v.SetDefault("server.endpoints.events", eps.Events)
	v.SetDefault("server.push", "sse")
	v.SetDefault("server.redis_addr", "localhost:6379")

	v.SetDefault("trust.pins", []string{})
	v.SetDefault("trust.mode", trust.ModeEnforce.String())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	v.SetDefault("chat.history_limit", 0)

	v.SetDefault("identity.max_attempts", 5)
	v.SetDefault("identity.lockout", "15m")

	v.SetDefault("backend.addr", ":5000")
	v.SetDefault("backend.store", "memory")
	v.SetDefault("backend.notifier", "memory")
	v.SetDefault("backend.redis_addr", "localhost:6379")
	v.SetDefault("backend.keep_alive", "25s")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	var errs []error
	if cfg.Server.BaseURL != "" {
		u, err := url.Parse(cfg.Server.BaseURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.base_url %q is not an http(s) URL", cfg.Server.BaseURL))
		}
	}
	if cfg.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout must not be negative"))
	}
	switch cfg.Server.Push {
	case "sse", "redis":
	default:
		errs = append(errs, fmt.Errorf("server.push %q: want sse or redis", cfg.Server.Push))
	}
	mode, err := trust.ParseMode(cfg.Trust.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	if u, err := url.Parse(cfg.Server.BaseURL); mode == trust.ModeEnforce && (err != nil || u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("server.base_url %q must be https unless trust.mode is diagnostic", cfg.Server.BaseURL))
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch cfg.Log.Format {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want auto, console or json", cfg.Log.Format))
	}
	if cfg.Chat.HistoryLimit < 0 {
		errs = append(errs, errors.New("chat.history_limit must not be negative"))
	}
	if cfg.Identity.MaxAttempts < 1 {
		errs = append(errs, errors.New("identity.max_attempts must be at least 1"))
	}
	switch cfg.Backend.Store {
	case "memory":
	case "postgres":
		if cfg.Backend.PostgresURL == "" {
			errs = append(errs, errors.New("backend.postgres_url is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend.store %q: want memory or postgres", cfg.Backend.Store))
	}
	switch cfg.Backend.Notifier {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("backend.notifier %q: want memory or redis", cfg.Backend.Notifier))
	}
	if (cfg.Backend.TLSCert == "") != (cfg.Backend.TLSKey == "") {
		errs = append(errs, errors.New("backend.tls_cert and backend.tls_key must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
