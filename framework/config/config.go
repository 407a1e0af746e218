package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/km-arc/go-modular/framework/errs"
)

// Config is the validated application configuration. It is read once at
// start-up and never changes afterwards.
type Config struct {
	// Mode selects the extra .env.<mode> file; empty when none was requested.
	Mode string
	// Env is NODE_ENV or APP_ENV, "development" when neither is set.
	Env          string
	IsProduction bool

	Server    ServerConfig
	Directory DirectoryConfig
	Log       LogConfig
	Database  DatabaseConfig
	Metrics   MetricsConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr is host:port, suitable for net.Listen.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// BaseURL is the http URL the server answers on.
func (s ServerConfig) BaseURL() string {
	return "http://" + s.Addr()
}

type DirectoryConfig struct {
	// Logs is absolute.
	Logs string
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

type DatabaseConfig struct {
	Enabled       bool
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MigrationsDir string
	Migrations    []string
}

// DSN is the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL identifies the database in log lines. The password is masked.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgresql://%s:__PASSWORD__@%s:%d/%s", d.User, d.Host, d.Port, d.Name)
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	// AdminToken guards the admin routes; empty leaves them open.
	AdminToken string
}

// Options controls where Load looks for .env files.
type Options struct {
	// Mode loads <Dir>/.env.<Mode> first; the file must exist.
	Mode string
	// Dir holds the .env files; defaults to the working directory.
	Dir string
}

// Load reads .env.<mode> (when a mode is given) and .env (if present) into
// the process environment, then builds a Config from the environment.
// Variables already set in the environment win over both files.
//
//	cfg, err := config.Load(config.Options{Mode: "local"})
func Load(opts Options) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	if opts.Mode != "" {
		file := filepath.Join(dir, ".env."+opts.Mode)
		if err := godotenv.Load(file); err != nil {
			return nil, errs.Configuration(err, "failed to load environment variables for mode: %s", opts.Mode)
		}
	}
	// .env may not exist in production
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Configuration(err, "failed to load environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg, err := build(v, opts.Mode)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "localhost")
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOGS_DIR", "logs")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("DATABASE_ENABLED", false)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_NAME", "app")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MIGRATIONS_DIR", "migrations")
	v.SetDefault("DATABASE_MIGRATIONS", "")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")
	v.SetDefault("ADMIN_TOKEN", "")
}

func build(v *viper.Viper, mode string) (*Config, error) {
	env := firstNonEmpty(v.GetString("NODE_ENV"), v.GetString("APP_ENV"), "development")
	production := env == "production"

	port, err := strconv.Atoi(strings.TrimSpace(v.GetString("PORT")))
	if err != nil {
		return nil, errs.Configuration(err, "invalid server port")
	}
	dbPort, err := strconv.Atoi(strings.TrimSpace(v.GetString("DATABASE_PORT")))
	if err != nil {
		return nil, errs.Configuration(err, "invalid database port")
	}

	logs := strings.TrimSpace(v.GetString("LOGS_DIR"))
	if logs != "" {
		if logs, err = filepath.Abs(logs); err != nil {
			return nil, errs.Configuration(err, "invalid logs directory")
		}
	}

	level := v.GetString("LOG_LEVEL")
	if level == "" {
		level = "debug"
		if production {
			level = "info"
		}
	}

	return &Config{
		Mode:         mode,
		Env:          env,
		IsProduction: production,
		Server: ServerConfig{
			Host: strings.TrimSpace(v.GetString("HOST")),
			Port: port,
		},
		Directory: DirectoryConfig{Logs: logs},
		Log: LogConfig{
			Level:  strings.ToLower(level),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Database: DatabaseConfig{
			Enabled:       v.GetBool("DATABASE_ENABLED"),
			Host:          v.GetString("DATABASE_HOST"),
			Port:          dbPort,
			User:          v.GetString("DATABASE_USER"),
			Password:      v.GetString("DATABASE_PASSWORD"),
			Name:          v.GetString("DATABASE_NAME"),
			SSLMode:       v.GetString("DATABASE_SSLMODE"),
			MigrationsDir: v.GetString("DATABASE_MIGRATIONS_DIR"),
			Migrations:    splitList(v.GetString("DATABASE_MIGRATIONS")),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
			Path:    v.GetString("METRICS_PATH"),
		},
		Auth: AuthConfig{AdminToken: v.GetString("ADMIN_TOKEN")},
	}, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Host == "" {
		return errs.Configuration(nil, "invalid server host")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errs.Configuration(nil, "invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Directory.Logs == "" {
		return errs.Configuration(nil, "invalid logs directory")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errs.Configuration(nil, "invalid log format: %q", cfg.Log.Format)
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errs.Configuration(nil, "invalid metrics path: %q", cfg.Metrics.Path)
	}
	return nil
}

// ── helpers ─────────────────────────────────────────────────────────────────

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
