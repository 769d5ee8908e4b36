// Per-turn pipeline: refresh one zone, rebuild rankings, then run the carrier auction.
package logistics

import (
	"log/slog"
	"sort"

	"github.com/talgya/haulnet/internal/world"
)

// Config tunes the scheduler.
type Config struct {
	Cost          world.CostModel
	LeaseTTL      uint64
	DeficitMargin float64
	HaulSamples   int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Cost:          world.DefaultCostModel,
		LeaseTTL:      DefaultLeaseTTL,
		DeficitMargin: DeficitMargin,
		HaulSamples:   8,
	}
}

// Scheduler wires the four components over one registry.
type Scheduler struct {
	State      *State
	Pathfinder Pathfinder
	Cost       world.CostModel

	Refresher  *Refresher
	Discoverer *Discoverer
	Leases     *Reservations
}

// NewScheduler builds a scheduler. The withdrawer may be nil.
func NewScheduler(state *State, sensor Sensor, pf Pathfinder, w Withdrawer, cfg Config) *Scheduler {
	est := &PathHaulEstimator{Pathfinder: pf, Cost: cfg.Cost, MaxSamples: cfg.HaulSamples}
	disc := NewDiscoverer(state, sensor, est)
	disc.Margin = cfg.DeficitMargin
	leases := NewReservations(state, w)
	leases.TTL = cfg.LeaseTTL
	return &Scheduler{
		State:      state,
		Pathfinder: pf,
		Cost:       cfg.Cost,
		Refresher:  NewRefresher(state, sensor),
		Discoverer: disc,
		Leases:     leases,
	}
}

// ZoneSummary counts a zone's auction outcome.
type ZoneSummary struct {
	Collect      int `json:"collect"`
	Deliver      int `json:"deliver"`
	IdleCarriers int `json:"idle_carriers"`
	Unserved     int `json:"unserved"`
}

// TurnReport is what one Tick produced.
type TurnReport struct {
	Turn          uint64                        `json:"turn"`
	RefreshedZone world.ZoneID                  `json:"refreshed_zone"`
	Discovery     *Discovery                    `json:"-"`
	Matches       []Match                       `json:"-"`
	Zones         map[world.ZoneID]*ZoneSummary `json:"zones"`
	ExpiredLeases int                           `json:"expired_leases"`
}

// Tick runs one scheduler turn.
func (s *Scheduler) Tick(turn uint64) TurnReport {
	s.State.Tick = turn
	report := TurnReport{
		Turn:  turn,
		Zones: make(map[world.ZoneID]*ZoneSummary),
	}

	report.RefreshedZone = s.Refresher.Refresh(turn)
	disc := s.Discoverer.Discover()
	report.Discovery = disc

	producers := make(map[world.ZoneID][]*Producer)
	for _, id := range sortedIDs(s.State.Producers) {
		p := s.State.Producers[id]
		if p.Energy.Current > 0 {
			producers[p.Zone] = append(producers[p.Zone], p)
		}
	}
	for _, ps := range producers {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Energy.Current > ps[j].Energy.Current })
	}

	zones := make([]world.ZoneID, 0, len(disc.Carriers))
	for z := range disc.Carriers {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })

	for _, z := range zones {
		pools := disc.Carriers[z]
		if len(pools.IdleEmpty) == 0 && len(pools.IdleFull) == 0 {
			continue
		}
		sum := &ZoneSummary{}
		report.Zones[z] = sum

		// Empty carriers collect from the richest stores and producers.
		var sources []Destination
		for _, st := range disc.Stores[z] {
			if st.Actions.Collect && st.Energy.Current > 0 {
				sources = append(sources, st)
			}
		}
		for _, p := range producers[z] {
			sources = append(sources, p)
		}
		collect := MatchCarriers(s.Pathfinder, s.Cost, pools.IdleEmpty, sources)

		// Loaded carriers deliver to waiting consumers. Stores with room take
		// the load only when no consumer is waiting.
		var sinks []Destination
		for _, c := range disc.Consumers[z].Targets() {
			sinks = append(sinks, c)
		}
		if len(sinks) == 0 {
			for _, st := range disc.Stores[z] {
				if st.Actions.Deliver && st.Energy.Missing() > 0 {
					sinks = append(sinks, st)
				}
			}
		}
		deliver := MatchCarriers(s.Pathfinder, s.Cost, pools.IdleFull, sinks)

		for _, m := range collect.Matches {
			Assign(m)
		}
		for _, m := range deliver.Matches {
			Assign(m)
		}
		report.Matches = append(report.Matches, collect.Matches...)
		report.Matches = append(report.Matches, deliver.Matches...)

		sum.Collect = len(collect.Matches)
		sum.Deliver = len(deliver.Matches)
		sum.IdleCarriers = len(collect.RemainingCarriers) + len(deliver.RemainingCarriers)
		sum.Unserved = len(deliver.RemainingDestinations)

		slog.Debug("zone matched",
			"zone", z,
			"collect", sum.Collect,
			"deliver", sum.Deliver,
			"idle", sum.IdleCarriers,
			"collect_stop", collect.Reason.String(),
			"deliver_stop", deliver.Reason.String(),
		)
	}

	leaseZones := make([]world.ZoneID, 0, len(s.State.Leases))
	for z := range s.State.Leases {
		leaseZones = append(leaseZones, z)
	}
	for _, z := range leaseZones {
		report.ExpiredLeases += s.Leases.ExpireLeases(z)
	}

	return report
}
