// Package config loads service configuration from an optional YAML file
// overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	defaultSessionSecret = "default-secret-key-change-me"
	maxConfigFileSize    = 1024 * 1024
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	DB         DBConfig         `koanf:"db"`
	Redis      RedisConfig      `koanf:"redis"`
	Session    SessionConfig    `koanf:"session"`
	Gin        GinConfig        `koanf:"gin"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	Log        LogConfig        `koanf:"log"`
	Directory  DirectoryConfig  `koanf:"directory"`
	Visibility VisibilityConfig `koanf:"visibility"`
	Admin      AdminConfig      `koanf:"admin"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type DBConfig struct {
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

type RedisConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
}

type SessionConfig struct {
	Secret string `koanf:"secret"`
}

type GinConfig struct {
	Mode string `koanf:"mode"`
}

type OpenAIConfig struct {
	APIKey string `koanf:"api_key"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type DirectoryConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type VisibilityConfig struct {
	// ReconcileOnRead attributes tasks to their creator's current team
	// instead of the team stored on the task.
	ReconcileOnRead bool `koanf:"reconcile_on_read"`
}

type AdminConfig struct {
	Email string `koanf:"email"`
	Name  string `koanf:"name"`
}

// sections are the top-level keys environment variables may populate.
var sections = map[string]struct{}{
	"server": {}, "db": {}, "redis": {}, "session": {}, "gin": {},
	"openai": {}, "log": {}, "directory": {}, "visibility": {}, "admin": {},
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Server:     ServerConfig{Addr: ":8080"},
		DB:         DBConfig{Driver: "mysql", Host: "localhost", Port: "3306", User: "taskuser", Password: "taskpassword", Name: "task_management", SSLMode: "disable"},
		Redis:      RedisConfig{Host: "localhost", Port: "6379"},
		Session:    SessionConfig{Secret: defaultSessionSecret},
		Gin:        GinConfig{Mode: "debug"},
		Log:        LogConfig{Level: "info", Format: "json"},
		Directory:  DirectoryConfig{CacheTTL: 30 * time.Second},
		Visibility: VisibilityConfig{ReconcileOnRead: true},
		Admin:      AdminConfig{Email: "admin@retail.local", Name: "Administrator"},
	}
}

// Load reads the YAML file at path (skipped when empty or missing), then
// applies environment overrides. DB_HOST maps to db.host, OPENAI_API_KEY to
// openai.api_key and so on: the first underscore separates section and field.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	parts := strings.SplitN(strings.ToLower(s), "_", 2)
	if len(parts) != 2 {
		return ""
	}
	if _, ok := sections[parts[0]]; !ok {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Session.Secret == "" {
		return errors.New("session secret is required")
	}
	if c.IsProduction() && c.Session.Secret == defaultSessionSecret {
		return errors.New("session secret must be changed in release mode")
	}
	if c.Directory.CacheTTL < 0 {
		return errors.New("directory cache ttl cannot be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Gin.Mode == "release"
}

// DSN builds the driver-specific connection string.
func (d DBConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}
