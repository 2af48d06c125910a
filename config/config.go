package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"todoflow/model"
)

const (
	configName = ".todoflow"
	envPrefix  = "TODOFLOW"
)

var validate = validator.New()

type Config struct {
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
	View  ViewConfig  `mapstructure:"view"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=json sqlite memory"`
	Path   string `mapstructure:"path" validate:"required_unless=Driver memory"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// ViewConfig seeds the initial filter and sort of the display list.
type ViewConfig struct {
	Filter    string `mapstructure:"filter" validate:"oneof=all active completed favorites"`
	Sort      string `mapstructure:"sort" validate:"required"`
	Ascending bool   `mapstructure:"ascending"`
}

// flagKeys maps cli flag names onto config keys.
var flagKeys = map[string]string{
	"store":     "store.driver",
	"path":      "store.path",
	"log-level": "log.level",
	"log-file":  "log.file",
}

// Load resolves configuration from, lowest precedence first: defaults,
// the config file, a .env file, TODOFLOW_* environment variables and any
// changed flags in flags. file may be empty to search $HOME and the
// working directory for .todoflow.{yaml,toml,json}.
func Load(file string, flags *pflag.FlagSet) (Config, error) {
	// A missing .env is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(configName)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.View.Filter = strings.ToLower(strings.TrimSpace(cfg.View.Filter))
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	key, err := model.ParseSortKey(cfg.View.Sort)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: view.sort: %w", err)
	}
	cfg.View.Sort = string(key)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "json")
	v.SetDefault("store.path", DefaultDataPath())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("view.filter", string(model.FilterAll))
	v.SetDefault("view.sort", string(model.SortByCreatedAt))
	v.SetDefault("view.ascending", true)
}

// DefaultDataPath is todos.json under $XDG_DATA_HOME/todoflow, falling back
// to ~/.local/share/todoflow.
func DefaultDataPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "todoflow", "todos.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".todoflow", "todos.json")
	}
	return filepath.Join(home, ".local", "share", "todoflow", "todos.json")
}

// SlogLevel maps the validated level name to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitialState is an empty state with the configured view applied.
func (c Config) InitialState() model.State {
	st := model.NewState()
	if f, err := model.ParseFilter(c.View.Filter); err == nil {
		st.Filter = f
	}
	if k, err := model.ParseSortKey(c.View.Sort); err == nil {
		st.SortKey = k
	}
	st.Ascending = c.View.Ascending
	return st
}
