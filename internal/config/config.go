// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// Canonical environment variable keys.
	KeyBotToken    = "BOT_TOKEN"
	KeyAppEnv      = "APP_ENV"
	KeyLogLevel    = "LOG_LEVEL"
	KeyHTTPPort    = "HTTP_PORT"
	KeyMongoURI    = "MONGO_URI"
	KeyMongoDB     = "MONGO_DB"
	KeyPollTimeout = "POLL_TIMEOUT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv      = EnvProduction
	DefaultLogLevel    = "info"
	DefaultHTTPPort    = 8080
	DefaultMongoDB     = "echo_bot"
	DefaultPollTimeout = 10 * time.Second
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Default     string // default when unset
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the configuration keys understood by the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyBotToken,
		Example:     "123:ABC",
		Description: "Telegram Bot Token issued by BotFather.",
		Notes:       "Not validated locally; an empty token is rejected by the Bot API.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health port.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string for the user registry.",
		Notes:       "Leave empty to run without a user registry.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDB,
		Default:     DefaultMongoDB,
		Description: "MongoDB database name.",
	},
	{
		Key:         KeyPollTimeout,
		Example:     DefaultPollTimeout.String(),
		Default:     DefaultPollTimeout.String(),
		Description: "Long polling timeout for getUpdates.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	BotToken    string        `envconfig:"BOT_TOKEN"`
	AppEnv      string        `envconfig:"APP_ENV" default:"production"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int           `envconfig:"HTTP_PORT" default:"8080"`
	MongoURI    string        `envconfig:"MONGO_URI"`
	MongoDB     string        `envconfig:"MONGO_DB" default:"echo_bot"`
	PollTimeout time.Duration `envconfig:"POLL_TIMEOUT" default:"10s"`
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	cfg.AppEnv = firstNonEmpty(normalizeEnv(cfg.AppEnv), appEnv)
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	cfg.LogLevel = firstNonEmpty(cfg.LogLevel, DefaultLogLevel)
	cfg.MongoURI = strings.TrimSpace(cfg.MongoURI)
	cfg.MongoDB = firstNonEmpty(cfg.MongoDB, DefaultMongoDB)

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	if cfg.HTTPPort <= 0 {
		return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
	}

	if cfg.PollTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be greater than 0", KeyPollTimeout)
	}

	if cfg.MongoURI != "" && !isMongoURI(cfg.MongoURI) {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// MongoEnabled reports whether the optional user registry should be connected.
func (c Config) MongoEnabled() bool {
	return c.MongoURI != ""
}

type redactedConfig struct {
	BotToken    string `yaml:"bot_token"`
	AppEnv      string `yaml:"app_env"`
	LogLevel    string `yaml:"log_level"`
	HTTPPort    int    `yaml:"http_port"`
	MongoURI    string `yaml:"mongo_uri,omitempty"`
	MongoDB     string `yaml:"mongo_db"`
	PollTimeout string `yaml:"poll_timeout"`
}

// FormatRedacted renders the configuration as YAML with secrets masked.
func FormatRedacted(cfg Config) string {
	out, err := yaml.Marshal(redactedConfig{
		BotToken:    maskToken(cfg.BotToken),
		AppEnv:      cfg.AppEnv,
		LogLevel:    cfg.LogLevel,
		HTTPPort:    cfg.HTTPPort,
		MongoURI:    redactURI(cfg.MongoURI),
		MongoDB:     cfg.MongoDB,
		PollTimeout: cfg.PollTimeout.String(),
	})
	if err != nil {
		return fmt.Sprintf("format config: %v", err)
	}

	return strings.TrimSpace(string(out))
}

func maskToken(token string) string {
	if token == "" {
		return "(empty)"
	}
	if len(token) <= 4 {
		return "...redacted"
	}

	return token[:4] + "...redacted"
}

func redactURI(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	parsed.User = nil

	return parsed.String()
}

func isMongoURI(raw string) bool {
	return strings.HasPrefix(raw, "mongodb://") || strings.HasPrefix(raw, "mongodb+srv://")
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
