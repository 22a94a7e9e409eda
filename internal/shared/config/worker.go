package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WorkerConfig contains all configuration for the worker service.
type WorkerConfig struct {
	Coordinator CoordinatorConnConfig `mapstructure:"coordinator"`
	Executor    ExecutorConfig        `mapstructure:"executor"`
	Transfer    TransferConfig        `mapstructure:"transfer"`
	Logging     LoggingConfig         `mapstructure:"logging"`
}

// CoordinatorConnConfig contains coordinator connection configuration.
type CoordinatorConnConfig struct {
	Addr              string        `mapstructure:"addr"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// ExecutorConfig contains child process execution configuration.
type ExecutorConfig struct {
	Interpreter string `mapstructure:"interpreter"`
	WorkDir     string `mapstructure:"work_dir"`
}

// TransferConfig contains data-plane transfer configuration.
type TransferConfig struct {
	AcceptTimeout time.Duration `mapstructure:"accept_timeout"`
}

// LoadWorker loads the worker configuration from the given path.
// If configPath is empty, it looks for worker.yaml in the config/ directory.
// Environment variables with JOBGRID_WORKER_ prefix override config file values.
func LoadWorker(configPath string) (*WorkerConfig, error) {
	v := viper.New()

	v.SetDefault("coordinator.addr", "localhost:8889")
	v.SetDefault("coordinator.heartbeat_interval", 5*time.Second)
	v.SetDefault("executor.interpreter", "python3")
	v.SetDefault("executor.work_dir", ".")
	v.SetDefault("transfer.accept_timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("worker")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("JOBGRID_WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg WorkerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
