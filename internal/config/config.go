// Package config provides configuration management for motiondeck using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// Configuration comes from .motiondeck.yml (or MOTIONDECK_CONFIG_FILE),
// MOTIONDECK_<SECTION>_<OPTION> environment overrides, and flags bound by
// the cmd package. Load applies defaults and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/motiondeck/internal/tracing"
	"github.com/conneroisu/motiondeck/internal/types"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "MOTIONDECK"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Sessions SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
	Tracing  tracing.Config `mapstructure:"tracing" yaml:"tracing"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Environment    string   `mapstructure:"environment" yaml:"environment"`
}

type CatalogConfig struct {
	// Manifest is the path of the registry manifest. Empty means the
	// embedded default.
	Manifest       string `mapstructure:"manifest" yaml:"manifest"`
	DefaultVariant string `mapstructure:"default_variant" yaml:"default_variant"`
	Strict         bool   `mapstructure:"strict" yaml:"strict"`
	Watch          bool   `mapstructure:"watch" yaml:"watch"`
}

type SessionsConfig struct {
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Cleanup time.Duration `mapstructure:"cleanup" yaml:"cleanup"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Variant returns the parsed default variant.
func (c *Config) Variant() types.Variant {
	v, err := types.ParseVariant(c.Catalog.DefaultVariant)
	if err != nil {
		return types.VariantMotion
	}
	return v
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	td := tracing.DefaultConfig()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.environment", "development")
	v.SetDefault("catalog.manifest", "")
	v.SetDefault("catalog.default_variant", string(types.VariantMotion))
	v.SetDefault("catalog.strict", false)
	v.SetDefault("catalog.watch", false)
	v.SetDefault("sessions.ttl", 30*time.Minute)
	v.SetDefault("sessions.cleanup", 5*time.Minute)
	v.SetDefault("tracing.enabled", td.Enabled)
	v.SetDefault("tracing.exporter", td.Exporter)
	v.SetDefault("tracing.sample_rate", td.SampleRate)
	v.SetDefault("tracing.service_name", td.ServiceName)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through the environment arrive as a single string.
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	if len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = []string{
			fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port),
		}
	}
	if config.Tracing.SampleRate == 0 {
		config.Tracing.SampleRate = 1.0
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Configure prepares v to read the config file and environment overrides.
//
// The config file is resolved in order: cfgFile, MOTIONDECK_CONFIG_FILE,
// then .motiondeck.yml in the working directory. A missing default file is
// not an error; a missing explicit file is.
func Configure(v *viper.Viper, cfgFile string) error {
	explicit := cfgFile
	if explicit == "" {
		explicit = os.Getenv(EnvPrefix + "_CONFIG_FILE")
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".motiondeck")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}
