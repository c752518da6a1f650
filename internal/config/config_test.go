package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/dockd/internal/config"
	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dockd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
hardware = "nx"
sku = "odin"
config_prefix = "/vendor/etc"
default_profile = "ECO"
gpu_scale = 1000
socket = "/tmp/dockd.sock"

[attributes]
cpu_max_freq = "/cpu/max"
mem_max_freq = "/emc/max"
cable_state = "/extcon/state"

[governors]
gpu_default = "simple_ondemand"

[dock]
patterns = ["^SUBSYSTEM=extcon$"]
sync_on_start = true

[metrics]
enabled = true
database = "/path/to/transitions.db"
`)
	t.Setenv("DOCKD_CONFIG", path)

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/vendor/etc/dock.nx.odin.txt", cfg.ProfileTablePath())
	id, err := cfg.InitialProfile()
	require.NoError(t, err)
	assert.Equal(t, profile.Eco, id)
	assert.Equal(t, uint64(1000), cfg.GPUScale)
	assert.Equal(t, "/tmp/dockd.sock", cfg.Socket)
	assert.Equal(t, "/cpu/max", cfg.Attributes.CPUMaxFreq)
	assert.Equal(t, "/emc/max", cfg.Attributes.MemMaxFreq)
	assert.Equal(t, "/extcon/state", cfg.Attributes.CableState)
	assert.Equal(t, "simple_ondemand", cfg.Governors.GPUDefault)
	assert.Equal(t, "schedutil", cfg.Governors.CPUDefault)
	assert.Equal(t, []string{"^SUBSYSTEM=extcon$"}, cfg.Dock.Patterns)
	assert.True(t, cfg.Dock.SyncOnStart)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/path/to/transitions.db", cfg.Metrics.Database)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCKD_CONFIG", "")

	cfg, err := config.Load(config.WithArgs([]string{"--hardware", "nx", "--sku", "odin"}))
	require.NoError(t, err)

	assert.Equal(t, string(config.DefaultLogLevel), cfg.LogLevel)
	assert.Equal(t, config.DefaultSocket, cfg.Socket)
	assert.Equal(t, uint64(profile.DefaultGPUScale), cfg.GPUScale)
	assert.Equal(t, "nvhost_podgov", cfg.Governors.GPUDefault)
	assert.Equal(t, "performance", cfg.Governors.CPUOverride)
	assert.Equal(t, "userspace", cfg.Governors.GPUOverride)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.DryRun)

	id, err := cfg.InitialProfile()
	require.NoError(t, err)
	assert.Equal(t, profile.HOSStock, id)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
log_level = "error"
profile_table = "/etc/table.txt"
`)

	cfg, err := config.Load(
		config.WithConfigFile(path),
		config.WithArgs([]string{"--log-level", "debug", "--dry-run", "--default-profile", "2"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "/etc/table.txt", cfg.ProfileTablePath())
	assert.Equal(t, "2", cfg.DefaultProfile)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DOCKD_CONFIG", "")
	t.Setenv("DOCKD_PROFILE_TABLE", "/env/table.txt")
	t.Setenv("DOCKD_METRICS_ENABLED", "true")

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, "/env/table.txt", cfg.ProfileTable)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv("DOCKD_CONFIG", path)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "invalid"
profile_table = "/etc/table.txt"
`)
	t.Setenv("DOCKD_CONFIG", path)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestMissingDeviceIdentity(t *testing.T) {
	t.Setenv("DOCKD_CONFIG", "")

	_, err := config.Load(config.WithArgs([]string{"--hardware", "nx"}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMissingConfig))
}

func TestInvalidDefaultProfile(t *testing.T) {
	t.Setenv("DOCKD_CONFIG", "")

	_, err := config.Load(config.WithArgs([]string{
		"--profile-table", "/t.txt", "--default-profile", "turbo",
	}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestUnknownFlag(t *testing.T) {
	_, err := config.Load(config.WithArgs([]string{"--bogus"}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}
