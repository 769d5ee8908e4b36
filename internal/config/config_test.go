package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.World, cfg.World)
	assert.Equal(t, want.Scheduler, cfg.Scheduler)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haulsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
world:
  seed: 9
  radius: 12
scheduler:
  lease_ttl: 20
  cost:
    plain: 1
    swamp: 5
    ops_limit: 500
engine:
  tick_interval: 250ms
seeding:
  carriers: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(9), cfg.World.Seed)
	assert.Equal(t, 12, cfg.World.Radius)
	assert.Equal(t, Default().World.ZoneSize, cfg.World.ZoneSize)
	assert.Equal(t, uint64(20), cfg.Scheduler.LeaseTTL)
	assert.Equal(t, 5, cfg.Scheduler.Cost.Swamp)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, 4, cfg.Seeding.Carriers)

	lc := cfg.LogisticsConfig()
	assert.Equal(t, uint64(20), lc.LeaseTTL)
	assert.Equal(t, 500, lc.Cost.OpsLimit)
	assert.Equal(t, 12, cfg.GenConfig().Radius)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HAULSIM_DB", "/tmp/x.db")
	t.Setenv("HAULSIM_PORT", "9999")
	t.Setenv("HAULSIM_ADMIN_KEY", "k")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 9999, cfg.API.Port)
	assert.Equal(t, "k", cfg.API.AdminKey)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("world: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"radius":    func(c *Config) { c.World.Radius = 0 },
		"zone size": func(c *Config) { c.World.ZoneSize = -1 },
		"cost":      func(c *Config) { c.Scheduler.Cost.Swamp = 0 },
		"ops":       func(c *Config) { c.Scheduler.Cost.OpsLimit = 0 },
		"ttl":       func(c *Config) { c.Scheduler.LeaseTTL = 0 },
		"interval":  func(c *Config) { c.Engine.TickInterval = 0 },
		"capacity":  func(c *Config) { c.Seeding.CarrierCapacity = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
