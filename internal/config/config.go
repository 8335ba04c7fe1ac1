// Package config assembles the service configuration from defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Realtime sources.
const (
	RealtimeDirect       = "direct"
	RealtimeChangeStream = "changestream"
)

// Config is the full service configuration.
type Config struct {
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	HTTP      HTTPConfig      `yaml:"http"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Messaging MessagingConfig `yaml:"messaging"`
	Log       LogConfig       `yaml:"log"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// RedisConfig selects the cache backend. An empty URL keeps attempt flags and
// cached profiles in process memory.
type RedisConfig struct {
	URL        string        `yaml:"url"`
	ProfileTTL time.Duration `yaml:"profile_ttl"`
	AttemptTTL time.Duration `yaml:"attempt_ttl"`
}

type JWTConfig struct {
	Secret    string            `yaml:"secret"`
	Keys      map[string]string `yaml:"keys"`
	ActiveKid string            `yaml:"active_kid"`
	TTL       time.Duration     `yaml:"ttl"`
}

type GRPCConfig struct {
	Port       string `yaml:"port"`
	TLSCert    string `yaml:"tls_cert"`
	TLSKey     string `yaml:"tls_key"`
	RequireTLS bool   `yaml:"require_tls"`
}

type HTTPConfig struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type RateLimitConfig struct {
	RPM   int           `yaml:"rpm"`
	Burst int           `yaml:"burst"`
	TTL   time.Duration `yaml:"ttl"`
}

type MessagingConfig struct {
	ConversationFetchLimit int64  `yaml:"conversation_fetch_limit"`
	ThreadFetchLimit       int64  `yaml:"thread_fetch_limit"`
	RealtimeSource         string `yaml:"realtime_source"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Mongo: MongoConfig{Database: "wastex"},
		Redis: RedisConfig{
			ProfileTTL: 5 * time.Minute,
			AttemptTTL: 30 * 24 * time.Hour,
		},
		JWT:       JWTConfig{TTL: 24 * time.Hour},
		GRPC:      GRPCConfig{Port: "50051"},
		HTTP:      HTTPConfig{Port: "8080", RequestTimeout: 3 * time.Second},
		RateLimit: RateLimitConfig{RPM: 10, Burst: 3, TTL: time.Minute},
		Messaging: MessagingConfig{
			ConversationFetchLimit: 1000,
			ThreadFetchLimit:       200,
			RealtimeSource:         RealtimeDirect,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty; a non-empty path must
// name a readable YAML file. Environment variables win over the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - operator supplied path
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Mongo.URI, "MONGODB_URI")
	setString(&cfg.Mongo.Database, "MONGODB_DB")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.JWT.ActiveKid, "JWT_ACTIVE_KID")
	setString(&cfg.GRPC.Port, "PORT")
	setString(&cfg.GRPC.TLSCert, "TLS_CERT")
	setString(&cfg.GRPC.TLSKey, "TLS_KEY")
	setString(&cfg.HTTP.Port, "HTTP_PORT")
	setString(&cfg.Messaging.RealtimeSource, "REALTIME_SOURCE")
	setString(&cfg.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("JWT_KEYS"); v != "" {
		keys, err := ParseJWTKeys(v)
		if err != nil {
			return err
		}
		cfg.JWT.Keys = keys
	}
	if v := os.Getenv("REQUIRE_TLS"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid REQUIRE_TLS %q: %w", v, err)
		}
		cfg.GRPC.RequireTLS = b
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid LOG_PRETTY %q: %w", v, err)
		}
		cfg.Log.Pretty = b
	}
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid RATE_LIMIT_RPM %q", v)
		}
		cfg.RateLimit.RPM = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// ParseJWTKeys parses "kid:secret,kid2:secret2".
func ParseJWTKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kid, secret, ok := strings.Cut(p, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[kid] = secret
	}
	if len(keys) == 0 {
		return nil, errors.New("JWT_KEYS has no entries")
	}
	return keys, nil
}

// Validate reports the first setting that prevents startup.
func (c Config) Validate() error {
	if c.Mongo.URI == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if c.Mongo.Database == "" {
		return errors.New("mongo database name must be set")
	}
	if c.JWT.Secret == "" && len(c.JWT.Keys) == 0 {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if len(c.JWT.Keys) > 0 && c.JWT.ActiveKid != "" {
		if _, ok := c.JWT.Keys[c.JWT.ActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q is not in JWT_KEYS", c.JWT.ActiveKid)
		}
	}
	if c.GRPC.RequireTLS && (c.GRPC.TLSCert == "" || c.GRPC.TLSKey == "") {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	switch c.Messaging.RealtimeSource {
	case RealtimeDirect, RealtimeChangeStream:
	default:
		return fmt.Errorf("unknown realtime source %q", c.Messaging.RealtimeSource)
	}
	if c.RateLimit.RPM <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}
