// Simulation ties the world, the logistics scheduler and entity behaviors together.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/haulnet/internal/config"
	"github.com/talgya/haulnet/internal/logistics"
	"github.com/talgya/haulnet/internal/world"
)

// Simulation holds the complete world state and wires systems together.
// Every exported method takes the lock; the API reads through the view methods.
type Simulation struct {
	mu sync.RWMutex

	Map       *world.Map
	World     *World
	State     *logistics.State
	Scheduler *logistics.Scheduler
	Seeder    *Seeder
	Seeding   config.SeedingConfig

	LastTick   uint64
	LastReport logistics.TurnReport
	Events     []Event

	// Statistics tracked per day.
	Stats SimStats
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "spawn" or "delivery"
}

// SimStats accumulates energy movement since the last daily report.
type SimStats struct {
	Produced      int `json:"produced"`
	Burned        int `json:"burned"`
	Collected     int `json:"collected"`
	Delivered     int `json:"delivered"`
	Withdrawn     int `json:"withdrawn"`
	Matches       int `json:"matches"`
	InRange       int `json:"in_range"`
	ExpiredLeases int `json:"expired_leases"`
	Spawned       int `json:"spawned"`
}

// NewSimulation wires a scheduler over a registry and its backing world.
func NewSimulation(m *world.Map, w *World, st *logistics.State, seeder *Seeder, cfg config.Config) *Simulation {
	pf := world.NewPathfinder(m)
	return &Simulation{
		Map:       m,
		World:     w,
		State:     st,
		Scheduler: logistics.NewScheduler(st, w, pf, w, cfg.LogisticsConfig()),
		Seeder:    seeder,
		Seeding:   cfg.Seeding,
		LastTick:  st.Tick,
	}
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// TickMinute runs every tick: world production and burn, one scheduler turn,
// pathless service for carriers already beside a destination, then carrier
// movement and worker withdrawals.
func (s *Simulation) TickMinute(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	produced, burned := s.World.Step()
	s.Stats.Produced += produced
	s.Stats.Burned += burned
	s.syncWorkers()

	report := s.Scheduler.Tick(tick)
	s.LastReport = report
	s.Stats.Matches += len(report.Matches)
	s.Stats.ExpiredLeases += report.ExpiredLeases
	s.Stats.InRange += s.serveInRange()

	s.moveCarriers()
	s.runWorkers(tick)
}

// TickDay runs every sim-day: consumer windows, the spawn planner and the daily report.
func (s *Simulation) TickDay(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollWindows(tick)
	s.planSpawns(tick)

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"produced", humanize.Comma(int64(s.Stats.Produced)),
		"burned", humanize.Comma(int64(s.Stats.Burned)),
		"collected", humanize.Comma(int64(s.Stats.Collected)),
		"delivered", humanize.Comma(int64(s.Stats.Delivered)),
		"withdrawn", humanize.Comma(int64(s.Stats.Withdrawn)),
		"matches", s.Stats.Matches,
		"in_range", s.Stats.InRange,
		"expired_leases", s.Stats.ExpiredLeases,
		"spawned", s.Stats.Spawned,
		"carriers", len(s.State.Carriers),
		"deficit_zones", len(s.State.HaulingDeficit),
	)
	s.Stats = SimStats{}

	// Trim old events to prevent unbounded growth (keep last 1000).
	if len(s.Events) > 1000 {
		s.Events = s.Events[len(s.Events)-1000:]
	}
}

// Checkpoint hands the registry and the unsaved events to fn under the lock.
// Events are dropped from memory once fn succeeds.
func (s *Simulation) Checkpoint(fn func(tick uint64, st *logistics.State, events []Event) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.LastTick, s.State, s.Events); err != nil {
		return err
	}
	s.Events = nil
	return nil
}

func (s *Simulation) event(tick uint64, category, desc string) {
	s.Events = append(s.Events, Event{Tick: tick, Category: category, Description: desc})
}

// syncWorkers copies burned-down worker energy back into the registry.
func (s *Simulation) syncWorkers() {
	for id, wk := range s.State.Workers {
		if lvl, ok := s.World.EnergyLevel(id); ok {
			wk.Energy.Set(lvl)
		}
	}
}

// rollWindows reopens the deposit window of every consumer with room.
func (s *Simulation) rollWindows(tick uint64) {
	for _, c := range s.State.Consumers {
		if c.Energy.Missing() > 0 {
			c.DepositTiming = OpenWindow(tick)
		}
	}
}

// serveInRange gives an idle carrier that already stands within GoalRange of a
// destination a reservation with an empty path; the auction never matches it
// there. Empty carriers collect from the richest store or producer in range.
// Loaded carriers drop off at the most urgent consumer in range, never at a store.
func (s *Simulation) serveInRange() int {
	served := 0
	for _, id := range sortedIDs(s.State.Carriers) {
		c := s.State.Carriers[id]
		if c.Reservation != nil {
			continue
		}
		var res *logistics.CarrierReservation
		if c.Energy.Full() {
			res = s.adjacentConsumer(c)
		} else {
			res = s.adjacentSource(c)
		}
		if res == nil {
			continue
		}
		c.Reservation = res
		served++
		slog.Debug("carrier served in range", "carrier", c.ID, "kind", res.Kind, "target", res.TargetID, "amount", res.Amount)
	}
	return served
}

func inRange(c *logistics.Carrier, pos world.HexCoord) bool {
	return world.Distance(c.Position, pos) <= logistics.GoalRange
}

func (s *Simulation) adjacentSource(c *logistics.Carrier) *logistics.CarrierReservation {
	var (
		target logistics.EntityID
		best   int
	)
	for _, id := range sortedIDs(s.State.Stores) {
		st := s.State.Stores[id]
		if st.Zone == c.Zone && st.Actions.Collect && st.Energy.Current > best && inRange(c, st.Position) {
			target, best = id, st.Energy.Current
		}
	}
	if target == "" {
		for _, id := range sortedIDs(s.State.Producers) {
			p := s.State.Producers[id]
			if p.Zone == c.Zone && p.Energy.Current > best && inRange(c, p.Position) {
				target, best = id, p.Energy.Current
			}
		}
	}
	if target == "" {
		return nil
	}
	return &logistics.CarrierReservation{
		Kind:     logistics.ReserveCollect,
		TargetID: target,
		Amount:   min(c.Energy.Missing(), best),
	}
}

func (s *Simulation) adjacentConsumer(c *logistics.Carrier) *logistics.CarrierReservation {
	var best *logistics.Consumer
	for _, id := range sortedIDs(s.State.Consumers) {
		con := s.State.Consumers[id]
		if con.Zone != c.Zone || con.Energy.Missing() == 0 || !inRange(c, con.Position) {
			continue
		}
		if best == nil || con.Urgency.Peace > best.Urgency.Peace {
			best = con
		}
	}
	if best == nil {
		return nil
	}
	return &logistics.CarrierReservation{
		Kind:     logistics.ReserveDeliver,
		TargetID: best.ID,
		Amount:   min(c.Energy.Current, best.Energy.Missing()),
	}
}

// moveCarriers advances every carrier one hex along its reservation path and
// performs the transfer once the path is exhausted.
func (s *Simulation) moveCarriers() {
	for _, id := range sortedIDs(s.State.Carriers) {
		c := s.State.Carriers[id]
		res := c.Reservation
		if res == nil {
			continue
		}
		if len(res.Path) > 0 {
			next := res.Path[0]
			if !s.Map.Passable(next) {
				slog.Debug("carrier blocked", "carrier", c.ID, "at", next)
				c.Reservation = nil
				continue
			}
			c.Position = next
			c.Zone = s.Map.ZoneOf(next)
			res.Path = res.Path[1:]
			continue
		}
		s.arrive(c)
	}
}

func (s *Simulation) arrive(c *logistics.Carrier) {
	res := c.Reservation
	c.Reservation = nil

	switch res.Kind {
	case logistics.ReserveCollect:
		want := min(res.Amount, c.Energy.Missing())
		moved := -s.World.Adjust(res.TargetID, -want)
		c.Energy.Add(moved)
		s.mirror(res.TargetID)
		s.Stats.Collected += moved
	case logistics.ReserveDeliver:
		moved := s.World.Adjust(res.TargetID, c.Energy.Current)
		c.Energy.Add(-moved)
		s.mirror(res.TargetID)
		s.Stats.Delivered += moved
		if moved > 0 {
			s.event(s.LastTick, "delivery", fmt.Sprintf("%s delivered %s to %s", c.ID, humanize.Comma(int64(moved)), res.TargetID))
		}
	}
}

// mirror copies a backing object's energy into its registry entry so the
// scheduler sees transfers before the next refresh of the zone.
func (s *Simulation) mirror(id logistics.EntityID) {
	lvl, ok := s.World.EnergyLevel(id)
	if !ok {
		return
	}
	if p, ok := s.State.Producers[id]; ok {
		p.Energy.Set(lvl)
	}
	if c, ok := s.State.Consumers[id]; ok {
		c.Energy.Set(lvl)
	}
	if st, ok := s.State.Stores[id]; ok {
		st.Energy.Set(lvl)
	}
}

// runWorkers drives each worker through request, bind and consume. A lease
// is consumed on the turn after it was created.
func (s *Simulation) runWorkers(tick uint64) {
	leases := s.Scheduler.Leases
	for _, id := range sortedIDs(s.State.Workers) {
		wk := s.State.Workers[id]

		if l, ok := leases.LeaseOf(id); ok {
			if !l.Bound() || l.CreatedTick >= tick {
				continue
			}
			w, err := leases.ConsumeLease(wk.Zone, l.ID)
			if err != nil {
				slog.Warn("consume lease", "worker", id, "error", err)
				continue
			}
			s.mirror(w.SourceID)
			s.Stats.Withdrawn += w.Amount
			if w.Result != logistics.WithdrawOK {
				slog.Debug("withdrawal failed", "worker", id, "source", w.SourceID, "result", w.Result.String())
			}
			continue
		}

		need := wk.Energy.Missing()
		if need < wk.Energy.Capacity/4 || need <= 0 {
			continue
		}
		offer, ok := leases.FindSourceRespectingLeases(id, need)
		if !ok {
			continue
		}
		leaseID, err := leases.CreateDemandLease(id, offer.Amount)
		if err != nil {
			slog.Warn("create lease", "worker", id, "error", err)
			continue
		}
		if _, err := leases.BindLeaseToSource(wk.Zone, leaseID, offer.ID); err != nil {
			if !errors.Is(err, logistics.ErrOversubscribed) {
				slog.Warn("bind lease", "worker", id, "error", err)
			}
			leases.CancelLease(wk.Zone, leaseID)
		}
	}
}

// planSpawns adds a carrier to every zone the last discovery flagged as
// short of hauling capacity, up to the per-zone cap.
func (s *Simulation) planSpawns(tick uint64) {
	perZone := make(map[world.ZoneID]int)
	for _, c := range s.State.Carriers {
		perZone[c.Zone]++
	}

	for _, zone := range sortedDeficitZones(s.State) {
		if perZone[zone] >= s.Seeding.MaxCarriersPerZone {
			continue
		}
		pos, ok := s.spawnPoint(zone)
		if !ok {
			continue
		}
		c, err := s.Seeder.NewCarrier(s.State, zone, pos)
		if err != nil {
			slog.Warn("spawn carrier", "zone", zone, "error", err)
			continue
		}
		perZone[zone]++
		s.Stats.Spawned++
		d := s.State.HaulingDeficit[zone]
		s.event(tick, "spawn", fmt.Sprintf("%s spawned in %s", c.ID, zone))
		slog.Info("carrier spawned", "carrier", c.ID, "zone", zone, "net_deficit", d.Net)
	}
}

// spawnPoint is the staging hex nearest the zone's richest store, else its
// first producer, else its first passable hex.
func (s *Simulation) spawnPoint(zone world.ZoneID) (world.HexCoord, bool) {
	var (
		best  *logistics.Store
		first *logistics.Producer
		dests []world.HexCoord
	)
	for _, st := range s.State.Stores {
		if st.Zone != zone {
			continue
		}
		dests = append(dests, st.Position)
		if best == nil || st.Energy.Current > best.Energy.Current ||
			(st.Energy.Current == best.Energy.Current && st.ID < best.ID) {
			best = st
		}
	}
	for _, p := range s.State.Producers {
		if p.Zone != zone {
			continue
		}
		dests = append(dests, p.Position)
		if first == nil || p.ID < first.ID {
			first = p
		}
	}
	for _, c := range s.State.Consumers {
		if c.Zone == zone {
			dests = append(dests, c.Position)
		}
	}

	var anchor world.HexCoord
	switch {
	case best != nil:
		anchor = best.Position
	case first != nil:
		anchor = first.Position
	default:
		hexes := s.Map.ZoneHexes(zone)
		if len(hexes) == 0 {
			return world.HexCoord{}, false
		}
		anchor = hexes[0]
	}
	return stagingHex(s.Map, zone, anchor, dests), true
}
