package ringfleet

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration, all from RINGFLEET_* variables
type Env struct {
	ConfigFile   string `env:"RINGFLEET_CONFIG"`
	SettingsPath string `env:"RINGFLEET_SETTINGS_PATH" envDefault:"./ringfleet_db"`
	CallLog      bool   `env:"RINGFLEET_CALL_LOG"      envDefault:"true"`
	Addr         string `env:"RINGFLEET_ADDR"          envDefault:":8090"`
	Lines        int    `env:"RINGFLEET_LINES"         envDefault:"8"`
	Output       string `env:"RINGFLEET_OUTPUT"        envDefault:"relay"`
	Tracing      string `env:"RINGFLEET_TRACING"`
	Debug        bool   `env:"RINGFLEET_DEBUG"`
	LogFile      string `env:"RINGFLEET_LOG_FILE"      envDefault:"ringfleet.log"`
}

// LoadEnv parses the process environment into Env
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// FillEnvVar returns the value of a runtime Environment Variable
func FillEnvVar(ev string) string {
	// If the EnvVar doesn't exist return a default string
	value := os.Getenv(ev)
	if value == "" {
		value = "ENOENT"
	}
	return value
}

// FillEnvVarInt returns an integer Environment Variable or the fallback
func FillEnvVarInt(ev string, fallback int) int {
	value := os.Getenv(ev)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		slog.Error("Env var is not an integer, using default",
			slog.String("var", ev),
			slog.String("value", value),
			slog.Int("default", fallback))
		return fallback
	}
	return i
}
