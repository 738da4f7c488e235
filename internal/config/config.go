// Package config loads service settings from defaults, an optional TOML file
// and ALLOWANCE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "ALLOWANCE_"

type Config struct {
	Port      string          `toml:"port"`
	Log       LogConfig       `toml:"log"`
	Database  DatabaseConfig  `toml:"database"`
	Upload    UploadConfig    `toml:"upload"`
	S3        S3Config        `toml:"s3"`
	AMQP      AMQPConfig      `toml:"amqp"`
	Session   SessionConfig   `toml:"session"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	WebSocket WebSocketConfig `toml:"websocket"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type UploadConfig struct {
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	MaxBytes int64  `toml:"max_bytes"`
}

type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	PublicURL string `toml:"public_url"`
	Prefix    string `toml:"prefix"`
}

// AMQPConfig enables the broker publisher when URL is set.
type AMQPConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

type SessionConfig struct {
	TTL             Duration `toml:"ttl"`
	CleanupSchedule string   `toml:"cleanup_schedule"`
}

type RateLimitConfig struct {
	LoginAttempts int      `toml:"login_attempts"`
	LoginWindow   Duration `toml:"login_window"`
}

type WebSocketConfig struct {
	OriginPatterns []string `toml:"origin_patterns"`
}

// Duration reads "30m"-style strings from TOML.
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

func Default() Config {
	return Config{
		Port: "8080",
		Log:  LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "allowance.db",
		},
		Upload: UploadConfig{
			Backend:  "local",
			Dir:      "uploads",
			MaxBytes: 5 << 20,
		},
		S3:   S3Config{Region: "auto"},
		AMQP: AMQPConfig{Exchange: "allowance.events"},
		Session: SessionConfig{
			TTL:             Duration{30 * 24 * time.Hour},
			CleanupSchedule: "@every 1h",
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: 10,
			LoginWindow:   Duration{15 * time.Minute},
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded into the environment first if present; path may be empty.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	setString(&c.Port, "PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Upload.Backend, "UPLOAD_BACKEND")
	setString(&c.Upload.Dir, "UPLOAD_DIR")
	errs = append(errs, setInt64(&c.Upload.MaxBytes, "UPLOAD_MAX_BYTES"))
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "S3_SECRET_KEY")
	setString(&c.S3.PublicURL, "S3_PUBLIC_URL")
	setString(&c.S3.Prefix, "S3_PREFIX")
	setString(&c.AMQP.URL, "AMQP_URL")
	setString(&c.AMQP.Exchange, "AMQP_EXCHANGE")
	errs = append(errs, setDuration(&c.Session.TTL, "SESSION_TTL"))
	setString(&c.Session.CleanupSchedule, "CLEANUP_SCHEDULE")
	errs = append(errs, setInt(&c.RateLimit.LoginAttempts, "LOGIN_RATE_LIMIT"))
	errs = append(errs, setDuration(&c.RateLimit.LoginWindow, "LOGIN_RATE_WINDOW"))
	if v, ok := lookup("WS_ORIGINS"); ok {
		c.WebSocket.OriginPatterns = splitList(v)
	}
	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if _, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("port %q must be numeric", c.Port))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log format %q must be text or json", c.Log.Format))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database driver %q must be sqlite or postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		problems = append(problems, "database dsn is required")
	}
	switch c.Upload.Backend {
	case "local":
		if c.Upload.Dir == "" {
			problems = append(problems, "upload dir is required for the local backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			problems = append(problems, "s3 bucket is required for the s3 backend")
		}
		if c.S3.PublicURL == "" {
			problems = append(problems, "s3 public url is required for the s3 backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("upload backend %q must be local or s3", c.Upload.Backend))
	}
	if c.Upload.MaxBytes <= 0 {
		problems = append(problems, "upload max bytes must be positive")
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		problems = append(problems, "amqp exchange is required when amqp url is set")
	}
	if c.Session.TTL.Duration <= 0 {
		problems = append(problems, "session ttl must be positive")
	}
	if c.RateLimit.LoginAttempts <= 0 {
		problems = append(problems, "login rate limit must be positive")
	}
	if c.RateLimit.LoginWindow.Duration <= 0 {
		problems = append(problems, "login rate window must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	dst.Duration = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
