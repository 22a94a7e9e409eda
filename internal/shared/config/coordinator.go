package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CoordinatorConfig contains all configuration for the coordinator service.
type CoordinatorConfig struct {
	Server    ListenersConfig `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Health    HealthConfig    `mapstructure:"health"`
	REST      RESTConfig      `mapstructure:"rest"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ListenersConfig contains the two TCP listener addresses: one for client
// control connections and one for worker control connections.
type ListenersConfig struct {
	ClientAddr string `mapstructure:"client_addr"`
	WorkerAddr string `mapstructure:"worker_addr"`
}

// SchedulerConfig contains dispatch and worker pool configuration.
type SchedulerConfig struct {
	MaxWorkers    int           `mapstructure:"max_workers"`
	ScaleOutWait  time.Duration `mapstructure:"scale_out_wait"`
	WorkerCommand []string      `mapstructure:"worker_command"`
}

// HealthConfig contains worker health checking configuration.
type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	StaleTimeout  time.Duration `mapstructure:"stale_timeout"`
}

// RESTConfig contains the read-only observability API configuration.
type RESTConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoadCoordinator loads the coordinator configuration from the given path.
// If configPath is empty, it looks for coordinator.yaml in the config/ directory.
// Environment variables with JOBGRID_COORDINATOR_ prefix override config file values.
func LoadCoordinator(configPath string) (*CoordinatorConfig, error) {
	v := viper.New()

	v.SetDefault("server.client_addr", ":8888")
	v.SetDefault("server.worker_addr", ":8889")
	v.SetDefault("scheduler.max_workers", 10)
	v.SetDefault("scheduler.scale_out_wait", 5*time.Second)
	v.SetDefault("scheduler.worker_command", []string{"bin/worker"})
	v.SetDefault("health.check_interval", 5*time.Second)
	v.SetDefault("health.stale_timeout", 15*time.Second)
	v.SetDefault("rest.addr", ":8080")
	v.SetDefault("rest.read_timeout", 15*time.Second)
	v.SetDefault("rest.write_timeout", 15*time.Second)
	v.SetDefault("rest.idle_timeout", 60*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("coordinator")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("JOBGRID_COORDINATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg CoordinatorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
