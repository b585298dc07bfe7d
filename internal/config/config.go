package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all simplevm configuration.
type Config struct {
	// CPUs is the number of virtual CPUs allocated to the VM.
	CPUs int `mapstructure:"cpus"`

	// MemoryMB is the amount of RAM in megabytes allocated to the VM.
	MemoryMB int `mapstructure:"memory_mb"`

	// Cmdline is the default kernel command line.
	Cmdline string `mapstructure:"cmdline"`

	// EnableNetwork attaches a NAT network device to the VM.
	EnableNetwork bool `mapstructure:"enable_network"`

	// MACAddress is an optional custom MAC address (empty = auto-generate).
	MACAddress string `mapstructure:"mac_address"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CPUs:          4,
		MemoryMB:      2048,
		Cmdline:       "console=hvc0",
		EnableNetwork: false,
		MACAddress:    "",
	}
}

// Global holds the loaded configuration.
var Global *Config

// Load reads configuration from file, environment, and defaults.
func Load() error {
	paths, err := GetPaths()
	if err != nil {
		return fmt.Errorf("failed to determine paths: %w", err)
	}

	// Set defaults
	defaults := DefaultConfig()
	viper.SetDefault("cpus", defaults.CPUs)
	viper.SetDefault("memory_mb", defaults.MemoryMB)
	viper.SetDefault("cmdline", defaults.Cmdline)
	viper.SetDefault("enable_network", defaults.EnableNetwork)
	viper.SetDefault("mac_address", defaults.MACAddress)

	// Config file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(paths.ConfigDir)

	// Environment variable support: SIMPLEVM_CPUS, SIMPLEVM_MEMORY_MB, etc.
	viper.SetEnvPrefix("SIMPLEVM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file (optional - not an error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal into struct
	Global = &Config{}
	if err := viper.Unmarshal(Global); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// ConfigFileUsed returns the path of the config file being used, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
