package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	DefaultDatabaseDSN    = "reqkeeper.db"
	DefaultAuthSecret     = "dev-secret-key"
	DefaultBaseURL        = "localhost:8081"
	DefaultEditPolicy     = "append"
	DefaultPresenceWindow = 30 * time.Second
	DefaultLogMode        = "development"
)

var hostPortRe = regexp.MustCompile(`^[A-Za-z0-9\.\-]+:\d{1,5}$`)

type Config struct {
	DatabaseDSN string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`

	BaseURL     string `env:"BASE_URL"`
	EnableHTTPS bool   `env:"ENABLE_HTTPS"`
	ServerURL   string `env:"-"`

	// append | in_place
	EditPolicy     string        `env:"EDIT_POLICY"`
	PresenceWindow time.Duration `env:"PRESENCE_WINDOW"`

	// development | production
	LogMode     string   `env:"LOG_MODE"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RegisterFlags регистрирует флаги; значения из env становятся значениями по умолчанию,
// поэтому явно переданный флаг важнее переменной окружения.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "строка подключения к БД (postgres URL/DSN или путь к файлу SQLite)")
	fs.StringVar(&c.AuthSecret, "auth-secret", c.AuthSecret, "секрет для подписи JWT")
	fs.StringVarP(&c.BaseURL, "base-url", "a", c.BaseURL, "адрес сервера host:port")
	fs.BoolVar(&c.EnableHTTPS, "https", c.EnableHTTPS, "схема https в ServerURL")
	fs.StringVar(&c.EditPolicy, "edit-policy", c.EditPolicy, "политика редактирования версий: append | in_place")
	fs.DurationVar(&c.PresenceWindow, "presence-window", c.PresenceWindow, "окно присутствия пользователей в проекте")
	fs.StringVar(&c.LogMode, "log-mode", c.LogMode, "режим логгера: development | production")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "разрешённые CORS origins через запятую")
}

// Normalize подставляет значения по умолчанию и проверяет настройки.
func (c *Config) Normalize() error {
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = DefaultDatabaseDSN
	}
	if c.AuthSecret == "" {
		c.AuthSecret = DefaultAuthSecret
	}
	// BaseURL только в виде "address:port" (без схемы и пути), иначе значение по умолчанию
	if !hostPortRe.MatchString(c.BaseURL) {
		c.BaseURL = DefaultBaseURL
	}
	if c.EnableHTTPS {
		c.ServerURL = "https://" + c.BaseURL
	} else {
		c.ServerURL = "http://" + c.BaseURL
	}

	if c.EditPolicy == "" {
		c.EditPolicy = DefaultEditPolicy
	}
	if c.PresenceWindow <= 0 {
		c.PresenceWindow = DefaultPresenceWindow
	}

	c.LogMode = strings.ToLower(strings.TrimSpace(c.LogMode))
	switch c.LogMode {
	case "":
		c.LogMode = DefaultLogMode
	case "development", "production":
	default:
		return fmt.Errorf("unknown log mode %q", c.LogMode)
	}

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
	return nil
}
