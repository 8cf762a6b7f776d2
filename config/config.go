package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DatabasePath string         `env:"DATABASE_PATH" envDefault:"./data/fiscalbot.db"`
	TimezoneName string         `env:"TIMEZONE" envDefault:"America/Sao_Paulo"`
	Timezone     *time.Location `env:"-"`

	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	APIUsername string `env:"API_USERNAME"`
	APIPassword string `env:"API_PASSWORD"`
	// Browser origins allowed to call the API.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Telegram is optional: without a token the digest and commands are disabled.
	TelegramToken     string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramEndpoint  string `env:"TELEGRAM_API_ENDPOINT" envDefault:"https://api.telegram.org/bot%s/%s"`
	OwnerTelegramID   int64  `env:"OWNER_TELEGRAM_ID"`
	PartnerTelegramID int64  `env:"PARTNER_TELEGRAM_ID"`
	WebhookURL        string `env:"WEBHOOK_URL"`

	MorningTime    string `env:"MORNING_TIME" envDefault:"08:00"`
	GenerationTime string `env:"GENERATION_TIME" envDefault:"06:00"`

	HolidaysAPIURL string        `env:"HOLIDAYS_API_URL" envDefault:"https://brasilapi.com.br/api/feriados/v1"`
	HolidaysICSURL string        `env:"HOLIDAYS_ICS_URL"`
	HolidayTimeout time.Duration `env:"HOLIDAYS_TIMEOUT" envDefault:"10s"`

	CalDAVURL      string `env:"CALDAV_URL"`
	CalDAVUsername string `env:"CALDAV_USERNAME"`
	CalDAVPassword string `env:"CALDAV_PASSWORD"`
	CalDAVCalendar string `env:"CALDAV_CALENDAR"`

	// Performer recorded in audit entries written by background jobs.
	SystemActor string `env:"SYSTEM_ACTOR" envDefault:"Sistema"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	tz, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	if _, _, err := ParseClock(cfg.MorningTime); err != nil {
		return nil, fmt.Errorf("invalid MORNING_TIME: %w", err)
	}
	if _, _, err := ParseClock(cfg.GenerationTime); err != nil {
		return nil, fmt.Errorf("invalid GENERATION_TIME: %w", err)
	}

	if cfg.TelegramToken != "" && cfg.OwnerTelegramID == 0 {
		return nil, fmt.Errorf("OWNER_TELEGRAM_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	return cfg, nil
}

// ParseClock splits "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Now is the current instant in the configured time zone.
func (c *Config) Now() time.Time {
	if c.Timezone == nil {
		return time.Now()
	}
	return time.Now().In(c.Timezone)
}

func (c *Config) IsAllowedUser(telegramID int64) bool {
	return telegramID == c.OwnerTelegramID || (c.PartnerTelegramID != 0 && telegramID == c.PartnerTelegramID)
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func (c *Config) APIEnabled() bool {
	return c.APIUsername != "" && c.APIPassword != ""
}

func (c *Config) CalDAVEnabled() bool {
	return c.CalDAVUsername != "" && c.CalDAVPassword != "" && c.CalDAVCalendar != ""
}
