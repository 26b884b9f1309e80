package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"neuralca/internal/logutil"
)

// Config holds settings read from NEURALCA_* environment variables.
type Config struct {
	// Set via NEURALCA_DEBUG in the environment; 2 or more enables trace.
	Debug int
	// Set via NEURALCA_STORE in the environment
	Store string
	// Set via NEURALCA_DB_PATH in the environment
	DBPath string
	// Set via NEURALCA_F16 in the environment
	Float16 bool
}

const DefaultDBPath = "neuralca.db"

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// LoadConfig reads the environment. Unset variables fall back to the given
// store kind and DefaultDBPath.
func LoadConfig(defaultStore string) Config {
	cfg := Config{
		Store:  defaultStore,
		DBPath: DefaultDBPath,
	}
	if debug := clean("NEURALCA_DEBUG"); debug != "" {
		if n, err := strconv.Atoi(debug); err == nil {
			cfg.Debug = n
		} else if b, err := strconv.ParseBool(debug); err == nil {
			if b {
				cfg.Debug = 1
			}
		} else {
			slog.Warn("invalid environment variable, ignoring", "key", "NEURALCA_DEBUG", "value", debug)
		}
	}
	if store := clean("NEURALCA_STORE"); store != "" {
		cfg.Store = store
	}
	if path := clean("NEURALCA_DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	if f16 := clean("NEURALCA_F16"); f16 != "" {
		b, err := strconv.ParseBool(f16)
		if err != nil {
			slog.Warn("invalid environment variable, ignoring", "key", "NEURALCA_F16", "value", f16)
		}
		cfg.Float16 = b
	}
	return cfg
}

// LogLevel maps Debug to a slog level.
func (c Config) LogLevel() slog.Level {
	switch {
	case c.Debug >= 2:
		return logutil.LevelTrace
	case c.Debug == 1:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func (c Config) AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"NEURALCA_DEBUG":   {"NEURALCA_DEBUG", c.Debug, "Show additional debug information (1 = debug, 2 = per-step trace)"},
		"NEURALCA_STORE":   {"NEURALCA_STORE", c.Store, "Run store backend: memory|sqlite"},
		"NEURALCA_DB_PATH": {"NEURALCA_DB_PATH", c.DBPath, "SQLite database path (default \"neuralca.db\")"},
		"NEURALCA_F16":     {"NEURALCA_F16", c.Float16, "Persist trajectories in half precision"},
	}
}

func (c Config) Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range c.AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// clean reads key and strips surrounding whitespace and quotes.
func clean(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
