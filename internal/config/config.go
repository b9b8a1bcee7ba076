// Package config loads scopetree settings from a config file, SCOPETREE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jward/scopetree/internal/extract"
)

// ConfigName is the base name searched for in the working directory and
// $HOME; any extension viper can decode (yaml, toml, json) is accepted.
const ConfigName = ".scopetree"

// EnvPrefix prefixes environment overrides, e.g. SCOPETREE_DB.
const EnvPrefix = "SCOPETREE"

// Keys.
const (
	KeyDB            = "db"
	KeyLanguages     = "languages"
	KeyExclude       = "exclude"
	KeyParallel      = "parallel"
	KeyWorkers       = "workers"
	KeyMaxDepth      = "max_depth"
	KeyLogLevel      = "log_level"
	KeyFormat        = "format"
	KeyWatchDebounce = "watch_debounce"
)

// Config is the resolved configuration.
type Config struct {
	DB            string        `mapstructure:"db"`
	Languages     []string      `mapstructure:"languages"`
	Exclude       []string      `mapstructure:"exclude"`
	Parallel      bool          `mapstructure:"parallel"`
	Workers       int           `mapstructure:"workers"`
	MaxDepth      int           `mapstructure:"max_depth"`
	LogLevel      string        `mapstructure:"log_level"`
	Format        string        `mapstructure:"format"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyDB, ".scopetree.db")
	v.SetDefault(KeyLanguages, []string{})
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyParallel, true)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyMaxDepth, 16)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyFormat, "json")
	v.SetDefault(KeyWatchDebounce, 200*time.Millisecond)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads cfgFile, or searches dirs for ConfigName when cfgFile is
// empty, and decodes the result. A missing searched config is not an error;
// a missing explicit cfgFile is.
func Load(v *viper.Viper, cfgFile string, dirs ...string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		for _, d := range dirs {
			v.AddConfigPath(d)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	c.File = v.ConfigFileUsed()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultDirs returns the directories searched for a config file: the
// working directory, then $HOME.
func DefaultDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	return dirs
}

// BindFlags makes set flags override config values. Flag names use dashes
// where keys use underscores.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !v.IsSet(key) && !isKnown(key) {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func isKnown(key string) bool {
	switch key {
	case KeyDB, KeyLanguages, KeyExclude, KeyParallel, KeyWorkers,
		KeyMaxDepth, KeyLogLevel, KeyFormat, KeyWatchDebounce:
		return true
	}
	return false
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if c.DB == "" {
		return errors.New("config: db must not be empty")
	}
	known := make(map[string]bool)
	for _, l := range extract.Languages() {
		known[l] = true
	}
	for _, l := range c.Languages {
		if !known[l] {
			return fmt.Errorf("config: unsupported language %q (supported: %s)", l, strings.Join(extract.Languages(), ", "))
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("config: max_depth must be >= 0, got %d", c.MaxDepth)
	}
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("config: format must be json or text, got %q", c.Format)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("config: watch_debounce must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	return nil
}

// Logger returns a text-formatted logger at the configured level.
func (c *Config) Logger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}
