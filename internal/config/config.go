// Package config loads settings from defaults, a YAML file, REVISE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve on hosts without a zoneinfo database

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	DefaultFile = "revise.yaml"
	EnvPrefix   = "REVISE_"
)

type Config struct {
	DB       DBConfig       `koanf:"db"`
	Timezone string         `koanf:"timezone" validate:"omitempty,timezone"`
	Server   ServerConfig   `koanf:"server"`
	Review   ReviewConfig   `koanf:"review"`
	Import   ImportConfig   `koanf:"import"`
	Log      LogConfig      `koanf:"log"`
	Reminder ReminderConfig `koanf:"reminder"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr        string   `koanf:"addr" validate:"required"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type ReviewConfig struct {
	DefaultLimit int `koanf:"default_limit" validate:"gte=0,lte=1000"`
}

type ImportConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type ReminderConfig struct {
	Enabled  bool           `koanf:"enabled"`
	Cron     string         `koanf:"cron" validate:"required_if=Enabled true"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type TelegramConfig struct {
	Token  string `koanf:"token"`
	ChatID int64  `koanf:"chat_id" validate:"required_with=Token"`
}

var defaults = map[string]any{
	"db.path":                   "revise.db",
	"timezone":                  "",
	"server.addr":               ":8080",
	"server.cors_origins":       []string{"*"},
	"review.default_limit":      20,
	"import.repos_dir":          "repos",
	"log.level":                 "info",
	"log.format":                "text",
	"reminder.enabled":          false,
	"reminder.cron":             "0 8 * * *",
	"reminder.telegram.token":   "",
	"reminder.telegram.chat_id": 0,
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"db":         "db.path",
	"tz":         "timezone",
	"addr":       "server.addr",
	"limit":      "review.default_limit",
	"repos-dir":  "import.repos_dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"reminders":  "reminder.enabled",
	"cron":       "reminder.cron",
}

// RegisterFlags adds the configuration flags and --config to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to the YAML config file (default "+DefaultFile+" when present)")
	flags.String("db", defaults["db.path"].(string), "path to the SQLite database")
	flags.String("tz", "", "timezone that decides the calendar day of a review (default system local)")
	flags.String("addr", defaults["server.addr"].(string), "HTTP listen address")
	flags.Int("limit", defaults["review.default_limit"].(int), "default number of due cards returned")
	flags.String("repos-dir", defaults["import.repos_dir"].(string), "directory git decks are checked out into")
	flags.String("log-level", defaults["log.level"].(string), "log level: debug, info, warn or error")
	flags.String("log-format", defaults["log.format"].(string), "log format: text or json")
	flags.Bool("reminders", false, "send scheduled study reminders while serving")
	flags.String("cron", defaults["reminder.cron"].(string), "cron expression for reminders")
}

// Load reads a .env file when present, then layers the config file,
// environment and flags over the defaults and validates the result. flags
// may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	path, explicit := configPath(flags)
	if err := loadFile(k, path, explicit); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func configPath(flags *pflag.FlagSet) (string, bool) {
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			return f.Value.String(), true
		}
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	return DefaultFile, false
}

func loadFile(k *koanf.Koanf, path string, explicit bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// envKey maps REVISE_DB_PATH onto db.path. Only known keys are accepted so
// underscores inside key names survive.
func envKey(name string) string {
	for key := range defaults {
		if name == EnvPrefix+strings.ToUpper(strings.ReplaceAll(key, ".", "_")) {
			return key
		}
	}
	return ""
}

// Location resolves the configured timezone, falling back to the system
// zone when none is set.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
