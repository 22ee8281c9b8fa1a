package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/loykin/launchr/internal/layout"
	"github.com/loykin/launchr/internal/logger"
)

// EnvPrefix is the prefix for environment overrides, e.g. LAUNCHR_SERVER_LISTEN.
const EnvPrefix = "LAUNCHR"

// DefaultManifestURL is the public version manifest.
const DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Config is the top-level TOML structure.
type Config struct {
	Home    string        `mapstructure:"home" validate:"required"`
	Brand   string        `mapstructure:"brand" validate:"required"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     logger.Config `mapstructure:"log"`
	Install InstallConfig `mapstructure:"install"`
	History HistoryConfig `mapstructure:"history"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Game    GameConfig    `mapstructure:"game"`
}

type ServerConfig struct {
	Listen       string        `mapstructure:"listen" validate:"required"`
	BasePath     string        `mapstructure:"base_path" validate:"omitempty,startswith=/"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
}

type InstallConfig struct {
	ManifestURL string        `mapstructure:"manifest_url" validate:"omitempty,url"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=64"`
	RuntimeURL  string        `mapstructure:"runtime_url" validate:"omitempty,url"`
	RuntimeSHA1 string        `mapstructure:"runtime_sha1" validate:"omitempty,len=40,hexadecimal"`
}

type HistoryConfig struct {
	// Sinks lists DSNs: sqlite path, postgres://, clickhouse://, opensearch://.
	Sinks []string `mapstructure:"sinks"`
}

type CatalogConfig struct {
	// DSN of the version catalog; empty means <home>/catalog.db.
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"omitempty,startswith=/"`
}

type GameConfig struct {
	Env         []string      `mapstructure:"env"`
	EnvFiles    []string      `mapstructure:"env_files"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func setDefaults(v *viper.Viper) {
	v.SetDefault("home", "")
	v.SetDefault("brand", "launchr")
	v.SetDefault("server.listen", "127.0.0.1:7420")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("install.manifest_url", DefaultManifestURL)
	v.SetDefault("install.timeout", 30*time.Minute)
	v.SetDefault("install.concurrency", 4)
	v.SetDefault("install.runtime_url", "")
	v.SetDefault("install.runtime_sha1", "")
	v.SetDefault("history.sinks", []string{})
	v.SetDefault("catalog.dsn", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("game.env", []string{})
	v.SetDefault("game.env_files", []string{})
	v.SetDefault("game.stop_timeout", 10*time.Second)
}

// Load reads the TOML file at path (optional) and applies LAUNCHR_* environment
// overrides on top of the built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.resolvePaths(path)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c, err := Load("")
	if err != nil {
		// only reachable through invalid LAUNCHR_* variables
		panic(err)
	}
	return c
}

// resolvePaths fills the home default and anchors relative paths: home relative to
// the config file, everything else relative to home.
func (c *Config) resolvePaths(configPath string) {
	if c.Home == "" {
		c.Home = layout.DefaultHome()
	} else if !filepath.IsAbs(c.Home) && configPath != "" {
		c.Home = filepath.Join(filepath.Dir(configPath), c.Home)
	}
	c.Home = filepath.Clean(c.Home)
	if c.Log.Dir == "" {
		c.Log.Dir = filepath.Join(c.Home, "logs")
	}
	c.Log.Dir = c.underHome(c.Log.Dir)
	if c.Log.File != "" {
		c.Log.File = c.underHome(c.Log.File)
	}
	for i, f := range c.Game.EnvFiles {
		c.Game.EnvFiles[i] = c.underHome(f)
	}
	if c.Catalog.DSN == "" {
		c.Catalog.DSN = filepath.Join(c.Home, "catalog.db")
	}
}

func (c *Config) underHome(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
