package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/profile"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel   = LogLevelInfo
	DefaultConfigFile = "/etc/dockd.toml"
	DefaultPrefix     = "/etc/dockd"
	DefaultSocket     = "/run/dockd.sock"
	DefaultMetricsDB  = "/var/lib/dockd/transitions.db"
	defaultEnvPrefix  = "DOCKD"
	configEnv         = "DOCKD_CONFIG"
)

type Attributes struct {
	CPUMaxFreq    string `mapstructure:"cpu_max_freq"`
	CPUGovernor   string `mapstructure:"cpu_governor"`
	GPUMaxFreq    string `mapstructure:"gpu_max_freq"`
	GPUGovernor   string `mapstructure:"gpu_governor"`
	GPUManualFreq string `mapstructure:"gpu_manual_freq"`
	MemMaxFreq    string `mapstructure:"mem_max_freq"`
	CableState    string `mapstructure:"cable_state"`
}

type Governors struct {
	CPUDefault  string `mapstructure:"cpu_default"`
	GPUDefault  string `mapstructure:"gpu_default"`
	CPUOverride string `mapstructure:"cpu_override"`
	GPUOverride string `mapstructure:"gpu_override"`
}

type Dock struct {
	Patterns    []string `mapstructure:"patterns"`
	SyncOnStart bool     `mapstructure:"sync_on_start"`
}

type Metrics struct {
	Enabled      bool   `mapstructure:"enabled"`
	Database     string `mapstructure:"database"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchTimeout int    `mapstructure:"batch_timeout"`
}

type Config struct {
	LogLevel       string     `mapstructure:"log_level"`
	Hardware       string     `mapstructure:"hardware"`
	SKU            string     `mapstructure:"sku"`
	ConfigPrefix   string     `mapstructure:"config_prefix"`
	ProfileTable   string     `mapstructure:"profile_table"`
	DefaultProfile string     `mapstructure:"default_profile"`
	GPUScale       uint64     `mapstructure:"gpu_scale"`
	Socket         string     `mapstructure:"socket"`
	DryRun         bool       `mapstructure:"dry_run"`
	Attributes     Attributes `mapstructure:"attributes"`
	Governors      Governors  `mapstructure:"governors"`
	Dock           Dock       `mapstructure:"dock"`
	Metrics        Metrics    `mapstructure:"metrics"`
}

// ProfileTablePath returns the explicit table path, or the one derived
// from the prefix, hardware and sku.
func (c *Config) ProfileTablePath() string {
	if c.ProfileTable != "" {
		return c.ProfileTable
	}

	return profile.Path(c.ConfigPrefix, c.Hardware, c.SKU)
}

// InitialProfile parses DefaultProfile.
func (c *Config) InitialProfile() (profile.ID, error) {
	return profile.ParseID(c.DefaultProfile)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("config_prefix", DefaultPrefix)
	v.SetDefault("default_profile", profile.HOSStock.String())
	v.SetDefault("gpu_scale", profile.DefaultGPUScale)
	v.SetDefault("socket", DefaultSocket)
	v.SetDefault("dry_run", false)

	v.SetDefault("attributes.cpu_max_freq", "/sys/devices/system/cpu/cpufreq/policy0/scaling_max_freq")
	v.SetDefault("attributes.cpu_governor", "/sys/devices/system/cpu/cpufreq/policy0/scaling_governor")
	v.SetDefault("attributes.gpu_max_freq", "/sys/devices/57000000.gpu/devfreq/57000000.gpu/max_freq")
	v.SetDefault("attributes.gpu_governor", "/sys/devices/57000000.gpu/devfreq/57000000.gpu/governor")
	v.SetDefault("attributes.gpu_manual_freq", "/sys/devices/57000000.gpu/devfreq/57000000.gpu/userspace/set_freq")
	v.SetDefault("attributes.mem_max_freq", "")
	v.SetDefault("attributes.cable_state", "/sys/class/extcon/extcon1/cable.0/state")

	v.SetDefault("governors.cpu_default", "schedutil")
	v.SetDefault("governors.gpu_default", "nvhost_podgov")
	v.SetDefault("governors.cpu_override", "performance")
	v.SetDefault("governors.gpu_override", "userspace")

	v.SetDefault("dock.patterns", []string{})
	v.SetDefault("dock.sync_on_start", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.database", DefaultMetricsDB)
	v.SetDefault("metrics.batch_size", 1)
	v.SetDefault("metrics.batch_timeout", 0)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("dockd", pflag.ContinueOnError)
	fs.String("config", "", "Path to the configuration file")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("hardware", "", "Hardware identifier used to locate the profile table")
	fs.String("sku", "", "SKU identifier used to locate the profile table")
	fs.String("config-prefix", DefaultPrefix, "Directory holding dock.<hardware>.<sku>.txt")
	fs.String("profile-table", "", "Explicit profile table path")
	fs.String("default-profile", profile.HOSStock.String(), "Profile active at startup")
	fs.String("socket", DefaultSocket, "RPC socket path")
	fs.Bool("dry-run", false, "Log attribute writes instead of touching hardware")
	fs.Bool("metrics", false, "Record profile transitions")
	fs.String("metrics-db", DefaultMetricsDB, "Transition history database")

	return fs
}

var flagKeys = map[string]string{
	"log-level":       "log_level",
	"hardware":        "hardware",
	"sku":             "sku",
	"config-prefix":   "config_prefix",
	"profile-table":   "profile_table",
	"default-profile": "default_profile",
	"socket":          "socket",
	"dry-run":         "dry_run",
	"metrics":         "metrics.enabled",
	"metrics-db":      "metrics.database",
}

// Load merges defaults, the TOML config file, DOCKD_* environment
// variables and command line flags, in increasing precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix, args: os.Args[1:]}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := o.configPath
	if path, _ := fs.GetString("config"); path != "" {
		configPath = path
	}
	if configPath == "" {
		configPath = os.Getenv(configEnv)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else if _, err := os.Stat(DefaultConfigFile); err == nil {
		v.SetConfigFile(DefaultConfigFile)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.ProfileTable == "" && (c.Hardware == "" || c.SKU == "") {
		return errFactory.WithData(errors.ErrMissingConfig, "hardware and sku, or profile_table")
	}

	if _, err := c.InitialProfile(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if c.GPUScale == 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "gpu_scale must be positive")
	}

	if c.Attributes.CableState == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "attributes.cable_state")
	}

	if c.Metrics.Enabled && c.Metrics.Database == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "metrics.database")
	}

	return nil
}
