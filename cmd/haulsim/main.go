// Command haulsim runs the energy-logistics scheduler over a generated hex world.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/haulnet/internal/api"
	"github.com/talgya/haulnet/internal/config"
	"github.com/talgya/haulnet/internal/engine"
	"github.com/talgya/haulnet/internal/logistics"
	"github.com/talgya/haulnet/internal/persistence"
	"github.com/talgya/haulnet/internal/world"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("HAULSIM_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("haulsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("HAULSIM_CONFIG")
	if cfgPath == "" {
		cfgPath = "haulsim.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return err
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── World Map (always regenerated, deterministic from seed) ───────
	worldMap := world.Generate(cfg.GenConfig())
	for t, c := range world.TerrainCounts(worldMap) {
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}

	// ── Load or Seed Registry ─────────────────────────────────────────
	seeder := engine.NewSeeder(cfg.World.Seed, cfg.Seeding)
	var (
		st *logistics.State
		w  *engine.World
	)
	if db.HasState() {
		slog.Info("found saved scheduler state, loading...")
		if saved, err := db.GetMeta("seed"); err == nil && saved != strconv.FormatInt(cfg.World.Seed, 10) {
			slog.Warn("world seed changed since last save", "saved", saved, "configured", cfg.World.Seed)
		}
		if st, err = db.LoadState(); err != nil {
			return err
		}
		w = engine.NewWorldFromState(worldMap, st)
		seeder.RestoreSerial(st)
		slog.Info("scheduler state restored",
			"tick", st.Tick,
			"sim_time", engine.SimTime(st.Tick),
			"carriers", len(st.Carriers),
			"zones", len(st.Zones()),
		)
	} else {
		slog.Info("no saved state found, seeding world...")
		st = logistics.NewState()
		w = engine.NewWorld(worldMap)
		counts, err := seeder.Seed(st, w, 0)
		if err != nil {
			return err
		}
		if err := db.SaveMeta("seed", strconv.FormatInt(cfg.World.Seed, 10)); err != nil {
			return err
		}
		slog.Info("world seeded",
			"zones", counts.Zones,
			"producers", counts.Producers,
			"consumers", counts.Consumers,
			"stores", counts.Stores,
			"carriers", counts.Carriers,
			"workers", counts.Workers,
		)
	}

	sim := engine.NewSimulation(worldMap, w, st, seeder, cfg)

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Interval = cfg.Engine.TickInterval
	eng.SetSpeed(cfg.Engine.Speed)
	eng.SetTick(st.Tick)
	eng.OnTick = func(tick uint64) {
		sim.TickMinute(tick)
		if cfg.Engine.SaveEvery > 0 && tick%cfg.Engine.SaveEvery == 0 {
			if err := db.SaveWorldState(sim); err != nil {
				slog.Error("autosave failed", "error", err)
			}
		}
	}
	eng.OnHour = func(tick uint64) {
		s := sim.Status()
		slog.Info("hourly status",
			"time", engine.SimTime(tick),
			"carriers", s.Carriers,
			"leases", s.Leases,
			"deficit_zones", s.DeficitZones,
		)
	}
	eng.OnDay = sim.TickDay

	// ── Run ───────────────────────────────────────────────────────────
	server := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		Port:     cfg.API.Port,
		AdminKey: cfg.API.AdminKey,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	runErr := g.Wait()

	slog.Info("shutting down, saving state", "tick", sim.CurrentTick())
	if err := db.SaveWorldState(sim); err != nil {
		return err
	}
	return runErr
}
