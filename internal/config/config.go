package config

import (
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/maxbolgarin/critique/internal/fetcher"
	"github.com/maxbolgarin/critique/internal/llm"
	"github.com/maxbolgarin/critique/internal/orchestrator"
	"github.com/maxbolgarin/critique/internal/server"
	"github.com/maxbolgarin/critique/internal/service"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/lang"
)

const defaultStoragePath = "critique.db"

// Config represents the main application configuration.
type Config struct {
	Server       server.Config       `yaml:"server"`
	LLM          llm.Config          `yaml:"llm"`
	Fetcher      fetcher.Config      `yaml:"fetcher"`
	Orchestrator orchestrator.Config `yaml:"orchestrator"`
	Review       service.Config      `yaml:"review"`
	Storage      StorageConfig       `yaml:"storage"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// StorageConfig represents review store configuration.
type StorageConfig struct {
	Path string `yaml:"path" env:"STORAGE_PATH"`
}

// Load reads the config file (if given) and overlays environment
// variables, then fills defaults and validates.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, erro.Wrap(err, "read config file")
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, erro.Wrap(err, "read config from env")
		}
	}

	if err := cfg.PrepareAndValidate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) PrepareAndValidate() error {
	if err := c.Server.PrepareAndValidate(); err != nil {
		return erro.Wrap(err, "server config")
	}
	if err := c.LLM.PrepareAndValidate(); err != nil {
		return erro.Wrap(err, "llm config")
	}
	if err := c.Fetcher.PrepareAndValidate(); err != nil {
		return erro.Wrap(err, "fetcher config")
	}
	if err := c.Orchestrator.PrepareAndValidate(); err != nil {
		return erro.Wrap(err, "orchestrator config")
	}
	if err := c.Review.PrepareAndValidate(); err != nil {
		return erro.Wrap(err, "review config")
	}

	c.Storage.Path = lang.Check(c.Storage.Path, defaultStoragePath)
	c.LogLevel = lang.Check(c.LogLevel, "info")
	return nil
}
