package docstore

import (
	"net/url"
	"strings"

	"github.com/autom8ter/docstore/errors"
	"github.com/autom8ter/docstore/util"
	"github.com/spf13/viper"
)

// Config configures a client
type Config struct {
	// Address selects the backend, ex: mem://, badger:///var/lib/docstore, redis://localhost:6379/0, mongodb://localhost:27017
	Address string `json:"address" mapstructure:"address" validate:"required"`
	// Username and Password are merged into the address
	Username string `json:"username,omitempty" mapstructure:"username"`
	Password string `json:"password,omitempty" mapstructure:"password"`
	// Database names the mongodb database when the address doesn't
	Database string `json:"database,omitempty" mapstructure:"database"`
	// LogLevel is one of debug, info, warn or error
	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// Debug overrides the log level to debug
	Debug bool `json:"debug" mapstructure:"debug"`
	// Metrics registers client metrics with the default prometheus registry
	Metrics bool `json:"metrics" mapstructure:"metrics"`
}

var configKeys = []string{"address", "username", "password", "database", "log_level", "debug", "metrics"}

// LoadConfig loads the config from an optional yaml/json file and DOCSTORE_* environment variables, ex: DOCSTORE_ADDRESS.
// Environment variables take precedence over the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("address", "mem://")
	v.SetDefault("log_level", "info")
	v.SetEnvPrefix("DOCSTORE")
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "failed to bind %s", key)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.Validation, "failed to read config file: %s", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.Validation, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the config
func (c *Config) Validate() error {
	if err := util.ValidateStruct(c); err != nil {
		return errors.Wrap(err, errors.Validation, "invalid config")
	}
	return nil
}

// Level returns the effective log level
func (c *Config) Level() string {
	if c.Debug {
		return "debug"
	}
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

// ResolvedAddress returns the address with the credentials and database merged in
func (c *Config) ResolvedAddress() (string, error) {
	u, err := url.Parse(c.Address)
	if err != nil || u.Scheme == "" {
		return "", errors.New(errors.Connection, "invalid address: '%s'", c.Address)
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	if c.Database != "" && strings.HasPrefix(u.Scheme, "mongodb") && strings.Trim(u.Path, "/") == "" {
		u.Path = "/" + c.Database
	}
	return u.String(), nil
}
