package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultEnvFile = "config/config.env"

	DefaultPort            = 5000
	DefaultRateLimitWindow = 10 * time.Minute
	DefaultRateLimitMax    = 100
	DefaultUploadMaxBytes  = 1_000_000
	DefaultBodyLimit       = 100 * 1024

	// ModeDevelopment enables request logging and detailed error messages.
	ModeDevelopment = "development"
)

// ErrMissingSetting is returned when a required setting has no value and no default.
var ErrMissingSetting = errors.New("missing required setting")

// Config is the immutable configuration snapshot built once at startup.
type Config struct {
	Env       string `koanf:"env"`
	Port      int    `koanf:"port"`
	PublicDir string `koanf:"public_dir"`
	Tracing   bool   `koanf:"tracing"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `koanf:"trust_proxy"`

	Store     StoreConfig     `koanf:"store"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Upload    UploadConfig    `koanf:"upload"`
	Body      BodyConfig      `koanf:"body"`
}

type StoreConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type RateLimitConfig struct {
	Window time.Duration `koanf:"window"`
	Max    int           `koanf:"max"`
}

type UploadConfig struct {
	MaxBytes int64  `koanf:"max_bytes"`
	Dir      string `koanf:"dir"`
}

type BodyConfig struct {
	Limit int64 `koanf:"limit"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == ModeDevelopment
}

// envKeys maps recognised environment variables onto config keys.
// Anything not listed here is ignored.
var envKeys = map[string]string{
	"NODE_ENV":          "env",
	"PORT":              "port",
	"PUBLIC_DIR":        "public_dir",
	"TRACING_ENABLED":   "tracing",
	"TRUST_PROXY":       "trust_proxy",
	"MONGO_URI":         "store.uri",
	"DATABASE_URL":      "store.database_url",
	"DB_NAME":           "store.database",
	"RATE_LIMIT_WINDOW": "ratelimit.window",
	"RATE_LIMIT_MAX":    "ratelimit.max",
	"MAX_FILE_UPLOAD":   "upload.max_bytes",
	"FILE_UPLOAD_PATH":  "upload.dir",
	"BODY_LIMIT":        "body.limit",
}

type loadOptions struct {
	envFile    string
	configFile string
}

// LoadOption customises where Load reads from.
type LoadOption func(*loadOptions)

// WithEnvFile overrides the env file merged into the process environment.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) { o.envFile = path }
}

// WithConfigFile adds a YAML file read before environment variables.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// Load merges the env file into the process environment and builds the
// configuration snapshot. Environment variables override the YAML file.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{
		envFile:    os.Getenv("ENV_FILE"),
		configFile: os.Getenv("CONFIG_FILE"),
	}
	if o.envFile == "" {
		o.envFile = DefaultEnvFile
	}
	for _, opt := range opts {
		opt(&o)
	}

	// Existing process variables win over the file.
	if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", o.envFile, err)
	}

	k := koanf.New(".")

	if o.configFile != "" {
		if err := k.Load(file.Provider(o.configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", o.configFile, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		mapped, ok := envKeys[key]
		if !ok || value == "" {
			return "", nil
		}
		return mapped, value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if k.String("store.uri") == "" && k.String("store.database_url") != "" {
		k.Set("store.uri", k.String("store.database_url"))
	}

	// Default values
	defaults := map[string]interface{}{
		"port":             DefaultPort,
		"public_dir":       "public",
		"ratelimit.window": DefaultRateLimitWindow,
		"ratelimit.max":    DefaultRateLimitMax,
		"upload.max_bytes": DefaultUploadMaxBytes,
		"upload.dir":       "public/uploads",
		"body.limit":       DefaultBodyLimit,
	}
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Store.URI == "" {
		return fmt.Errorf("%w: MONGO_URI (or DATABASE_URL)", ErrMissingSetting)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("invalid rate limit window %s", c.RateLimit.Window)
	}
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("invalid rate limit max %d", c.RateLimit.Max)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("invalid upload limit %d", c.Upload.MaxBytes)
	}
	if c.Body.Limit <= 0 {
		return fmt.Errorf("invalid body limit %d", c.Body.Limit)
	}
	return nil
}
