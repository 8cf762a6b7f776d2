package mcp

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIURL      string        `env:"FISCALBOT_API_URL" envDefault:"http://localhost:8080"`
	APIUsername string        `env:"FISCALBOT_API_USERNAME"`
	APIPassword string        `env:"FISCALBOT_API_PASSWORD"`
	Performer   string        `env:"FISCALBOT_PERFORMER" envDefault:"assistente"`
	Timeout     time.Duration `env:"FISCALBOT_API_TIMEOUT" envDefault:"30s"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
