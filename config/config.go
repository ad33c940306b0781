package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	xuploadhttp "github.com/sagarc03/xupload/http"
	"github.com/sagarc03/xupload/keybackend"
	"github.com/sagarc03/xupload/tracing"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for xupload.
type Config struct {
	Server  ServerConfig           `mapstructure:"server" yaml:"server"`
	Storage StorageConfig          `mapstructure:"storage" yaml:"storage"`
	Auth    AuthConfig             `mapstructure:"auth" yaml:"auth"`
	Headers HeadersConfig          `mapstructure:"headers" yaml:"headers"`
	CORS    xuploadhttp.CORSConfig `mapstructure:"cors" yaml:"cors"`
	Metrics MetricsConfig          `mapstructure:"metrics" yaml:"metrics"`
	Tracing tracing.Options        `mapstructure:"tracing" yaml:"tracing"`
	Log     LogConfig              `mapstructure:"log" yaml:"log"`
	Env     string                 `mapstructure:"env" yaml:"env" validate:"required,oneof=dev prod"`
}

// ServerConfig holds HTTP server configuration. Timeouts are in seconds.
// ReadTimeout bounds reading request headers only. WriteTimeout caps a whole
// response, downloads included, and defaults to 0 (none): a deadline would
// cut long downloads and could drop the 201 of an upload already stored.
type ServerConfig struct {
	Port         int `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	ReadTimeout  int `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout int `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// AuthConfig holds the shared upload secret. At most one of the inline
// secret and the secret file may be set; commands that sign or verify
// uploads fail when neither is.
type AuthConfig struct {
	Secret     string `mapstructure:"secret" yaml:"secret,omitempty" validate:"excluded_with=SecretFile"`
	SecretFile string `mapstructure:"secret_file" yaml:"secret_file,omitempty"`
}

// SecretConfig converts the auth section for keybackend.LoadSecret.
func (a AuthConfig) SecretConfig() keybackend.SecretConfig {
	return keybackend.SecretConfig{Secret: a.Secret, File: a.SecretFile}
}

// HeadersConfig controls download response headers.
type HeadersConfig struct {
	// InlineTypes are content type globs served without an attachment disposition.
	InlineTypes []string `mapstructure:"inline_types" yaml:"inline_types"`
}

// MetricsConfig holds the Prometheus listener configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"port":         "server.port",
	"storage-path": "storage.path",
	"secret-file":  "auth.secret_file",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// DefaultInlineTypes are the content types browsers may render in place.
var DefaultInlineTypes = []string{"image/*", "video/*", "audio/*", "text/plain"}

// setDefaults configures default values on the viper instance.
// Every key needs a default so that AutomaticEnv can see it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5280)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 0)

	v.SetDefault("storage.path", "./data")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.secret_file", "")

	v.SetDefault("headers.inline_types", DefaultInlineTypes)

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9100")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.protocol", "grpc")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.service_name", tracing.DefaultServiceName)

	v.SetDefault("log.level", "info")
	v.SetDefault("env", "dev")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("XUPLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
