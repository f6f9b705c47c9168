package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Duration parses env as time.Duration: "10s", "5m" or a bare number of seconds.
// It implements cleanenv.Setter, which also receives env-default values.
type Duration time.Duration

func (d *Duration) SetValue(data string) error {
	v, err := parseDuration(data)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

var _ cleanenv.Setter = (*Duration)(nil)

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be like 10s, 5m or a number of seconds: %w", err)
	}
	return d, nil
}

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	DB       DBConfig
	Redis    RedisConfig
	Calendar CalendarConfig
}

type AppConfig struct {
	Env     string `env:"APP_ENV" env-default:"development"`
	Version string `env:"VERSION" env-default:"dev"`
}

func (a AppConfig) IsProduction() bool { return a.Env == "production" }

type HTTPConfig struct {
	Port            string   `env:"PORT" env-default:"8080"`
	ReadTimeout     Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	// Comma separated; "*" allows any origin.
	AllowOrigins string `env:"CORS_ALLOW_ORIGINS" env-default:"*"`
}

func (h HTTPConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(h.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DBConfig struct {
	URL      string `env:"DATABASE_URL" env-required:"true"`
	MaxConns int32  `env:"DB_MAX_CONNS" env-default:"10"`
}

type RedisConfig struct {
	// Empty disables the distributed slot lock; the unique index still guards bookings.
	URL     string   `env:"REDIS_URL" env-default:""`
	LockTTL Duration `env:"SLOT_LOCK_TTL" env-default:"10s"`
}

type CalendarConfig struct {
	ClientID     string   `env:"GOOGLE_CLIENT_ID" env-default:""`
	ClientSecret string   `env:"GOOGLE_CLIENT_SECRET" env-default:""`
	RedirectURL  string   `env:"GOOGLE_REDIRECT_URL" env-default:""`
	CalendarID   string   `env:"CALENDAR_ID" env-default:"primary"`
	SyncTimeout  Duration `env:"CALENDAR_SYNC_TIMEOUT" env-default:"15s"`
}

// Enabled reports whether Google Calendar credentials are present.
func (c CalendarConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err == nil {
		log.Println("loaded configuration from .env file")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if strings.TrimSpace(cfg.DB.URL) == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DB.MaxConns < 1 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", cfg.DB.MaxConns)
	}
	return cfg, nil
}
