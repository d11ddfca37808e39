// Package config loads settings for the pcapkit command from defaults, an
// optional YAML file and PCAPKIT_ environment variables, in rising priority.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefix of environment variables, e.g. PCAPKIT_LOG_LEVEL
const EnvPrefix = "PCAPKIT"

type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Compile CompileConfig `mapstructure:"compile" yaml:"compile"`
}

type LogConfig struct {
	Level  string     `mapstructure:"level" yaml:"level"`
	Format string     `mapstructure:"format" yaml:"format"`
	File   FileConfig `mapstructure:"file" yaml:"file"`
}

// FileConfig a rotating log file, disabled when Filename is empty
type FileConfig struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// CompileConfig defaults for filter compilation
type CompileConfig struct {
	LinkType   string `mapstructure:"linktype" yaml:"linktype"`
	SnapLength uint32 `mapstructure:"snaplen" yaml:"snaplen"`
	Optimize   bool   `mapstructure:"optimize" yaml:"optimize"`
	Netmask    string `mapstructure:"netmask" yaml:"netmask"`
}

var defaults = map[string]any{
	"log.level":            "info",
	"log.format":           "text",
	"log.file.filename":    "",
	"log.file.max_size":    100,
	"log.file.max_backups": 3,
	"log.file.max_age":     28,
	"log.file.compress":    false,
	"compile.linktype":     "EN10MB",
	"compile.snaplen":      65535,
	"compile.optimize":     true,
	"compile.netmask":      "0.0.0.0",
}

// Load read the configuration. An empty path uses only defaults and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate check the values that have a fixed set of choices
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s (must be text or json)", c.Log.Format)
	}
	if c.Compile.LinkType == "" {
		return fmt.Errorf("compile.linktype must not be empty")
	}
	return nil
}
