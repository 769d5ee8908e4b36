// Package config loads haulsim settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/haulnet/internal/logistics"
	"github.com/talgya/haulnet/internal/world"
)

// Config is the full process configuration.
type Config struct {
	DBPath string `yaml:"db_path"`

	World     WorldConfig     `yaml:"world"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Engine    EngineConfig    `yaml:"engine"`
	Seeding   SeedingConfig   `yaml:"seeding"`
	API       APIConfig       `yaml:"api"`
}

// WorldConfig feeds world.Generate.
type WorldConfig struct {
	Seed      int64   `yaml:"seed"`
	Radius    int     `yaml:"radius"`
	ZoneSize  int     `yaml:"zone_size"`
	WallLevel float64 `yaml:"wall_level"`
	SwampWet  float64 `yaml:"swamp_wet"`
}

// SchedulerConfig feeds logistics.Config.
type SchedulerConfig struct {
	LeaseTTL      uint64          `yaml:"lease_ttl"`
	DeficitMargin float64         `yaml:"deficit_margin"`
	HaulSamples   int             `yaml:"haul_samples"`
	Cost          world.CostModel `yaml:"cost"`
}

// EngineConfig controls the turn loop.
type EngineConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Speed        float64       `yaml:"speed"`
	SaveEvery    uint64        `yaml:"save_every"` // ticks between autosaves
}

// SeedingConfig sizes a freshly generated world, per zone.
type SeedingConfig struct {
	Producers          int `yaml:"producers"`
	Consumers          int `yaml:"consumers"`
	Stores             int `yaml:"stores"`
	Carriers           int `yaml:"carriers"`
	Workers            int `yaml:"workers"`
	CarrierCapacity    int `yaml:"carrier_capacity"`
	MaxCarriersPerZone int `yaml:"max_carriers_per_zone"`
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"-"` // env only
}

// Default returns the stock configuration.
func Default() Config {
	gen := world.DefaultGenConfig()
	sched := logistics.DefaultConfig()
	return Config{
		DBPath: "data/haulnet.db",
		World: WorldConfig{
			Seed:      42,
			Radius:    gen.Radius,
			ZoneSize:  gen.ZoneSize,
			WallLevel: gen.WallLevel,
			SwampWet:  gen.SwampWet,
		},
		Scheduler: SchedulerConfig{
			LeaseTTL:      sched.LeaseTTL,
			DeficitMargin: sched.DeficitMargin,
			HaulSamples:   sched.HaulSamples,
			Cost:          sched.Cost,
		},
		Engine: EngineConfig{
			TickInterval: time.Second,
			Speed:        1,
			SaveEvery:    600,
		},
		Seeding: SeedingConfig{
			Producers:          2,
			Consumers:          4,
			Stores:             1,
			Carriers:           2,
			Workers:            2,
			CarrierCapacity:    100,
			MaxCarriersPerZone: 8,
		},
		API: APIConfig{Port: 8080},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.DBPath = envOrDefault("HAULSIM_DB", c.DBPath)
	c.API.Port = envIntOrDefault("HAULSIM_PORT", c.API.Port)
	c.API.AdminKey = os.Getenv("HAULSIM_ADMIN_KEY")
}

// Validate rejects settings the simulation cannot run with.
func (c Config) Validate() error {
	switch {
	case c.World.Radius < 1:
		return fmt.Errorf("world.radius must be positive, got %d", c.World.Radius)
	case c.World.ZoneSize < 1:
		return fmt.Errorf("world.zone_size must be positive, got %d", c.World.ZoneSize)
	case c.Scheduler.Cost.Plain < 1 || c.Scheduler.Cost.Swamp < 1:
		return fmt.Errorf("scheduler.cost terrain costs must be positive")
	case c.Scheduler.Cost.OpsLimit < 1:
		return fmt.Errorf("scheduler.cost.ops_limit must be positive")
	case c.Scheduler.LeaseTTL == 0:
		return fmt.Errorf("scheduler.lease_ttl must be positive")
	case c.Engine.TickInterval <= 0:
		return fmt.Errorf("engine.tick_interval must be positive")
	case c.Seeding.CarrierCapacity < 1:
		return fmt.Errorf("seeding.carrier_capacity must be positive")
	}
	return nil
}

// GenConfig converts the world section for world.Generate.
func (c Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Radius:    c.World.Radius,
		ZoneSize:  c.World.ZoneSize,
		Seed:      c.World.Seed,
		WallLevel: c.World.WallLevel,
		SwampWet:  c.World.SwampWet,
	}
}

// LogisticsConfig converts the scheduler section for logistics.NewScheduler.
func (c Config) LogisticsConfig() logistics.Config {
	return logistics.Config{
		Cost:          c.Scheduler.Cost,
		LeaseTTL:      c.Scheduler.LeaseTTL,
		DeficitMargin: c.Scheduler.DeficitMargin,
		HaulSamples:   c.Scheduler.HaulSamples,
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
