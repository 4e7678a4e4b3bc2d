package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Remote  RemoteConfig  `yaml:"remote"`
	Mount   MountConfig   `yaml:"mount"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Load reads the YAML file at configPath, expanding ${VAR} references, and
// then applies environment overrides and defaults. An empty path skips the
// file and configures from the environment alone.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}

		// Enrich with env variables
		data = expandEnvVars(data)

		if err := cleanenv.ParseYAML(bytes.NewReader(data), &cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config %s: %w", configPath, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("cannot load config: " + err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error

	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is empty"))
	}
	if c.Remote.Token == "" {
		errs = append(errs, errors.New("remote.token is empty (set NETWORKFS_TOKEN)"))
	}
	if c.Remote.Timeout < 0 {
		errs = append(errs, errors.New("remote.timeout is negative"))
	}
	if c.Remote.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("remote.requests_per_second is negative"))
	}
	if c.Remote.MaxFileSize <= 0 || c.Remote.MaxFileSize > MaxFileSizeLimit {
		errs = append(errs, fmt.Errorf("remote.max_file_size must be within (0, %s]", MaxFileSizeLimit))
	}
	if c.Mount.AttrTimeout < 0 || c.Mount.EntryTimeout < 0 {
		errs = append(errs, errors.New("mount timeouts must not be negative"))
	}
	if c.Logging.Format != "pretty" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q is not one of pretty, json", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
