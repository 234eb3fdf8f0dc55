package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Settings are the process-level knobs of the simulator service. CLI flags
// default to these values.
type Settings struct {
	ContentDir string `env:"BATTLESIM_CONTENT_DIR" envDefault:"assets"`
	BattleFile string `env:"BATTLESIM_BATTLE_FILE" envDefault:"assets/battle.yaml"`
	LogLevel   string `env:"BATTLESIM_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"BATTLESIM_LOG_FORMAT" envDefault:"text"`
	Workers    int    `env:"BATTLESIM_WORKERS" envDefault:"8"`
	DBPath     string `env:"BATTLESIM_DB_PATH"`
	MaxEvents  int    `env:"BATTLESIM_MAX_EVENTS" envDefault:"1000000"`
	DeckSize   int    `env:"BATTLESIM_DECK_SIZE" envDefault:"3"`
	// OTelEndpoint is an OTLP/HTTP collector URL. Tracing is off when empty.
	OTelEndpoint string `env:"BATTLESIM_OTEL_ENDPOINT"`
}

func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
