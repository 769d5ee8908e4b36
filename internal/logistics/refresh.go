// Incremental refresh: one zone's live energy levels per turn, round-robin.
package logistics

import (
	"log/slog"
	"sort"

	"github.com/talgya/haulnet/internal/world"
)

// Refresher keeps producer and consumer energy current without scanning the
// whole world every turn.
type Refresher struct {
	State  *State
	Sensor Sensor
}

// NewRefresher creates a refresher over a registry.
func NewRefresher(state *State, sensor Sensor) *Refresher {
	return &Refresher{State: state, Sensor: sensor}
}

// Refresh prunes rows in unobserved zones, then re-reads the energy of every
// producer and consumer in zone turn mod N. Carriers are untouched, and leases
// change only through the pruning cascade.
// Returns the refreshed zone, or "" when nothing is observed.
func (r *Refresher) Refresh(turn uint64) world.ZoneID {
	zones := r.Sensor.ObservedZones()
	if len(zones) == 0 {
		return ""
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })

	r.State.PruneZones(r.Sensor)

	zone := zones[turn%uint64(len(zones))]
	refreshed := 0
	for _, p := range r.State.Producers {
		if p.Zone != zone {
			continue
		}
		p.Energy.Set(r.liveEnergy(p.ID))
		refreshed++
	}
	for _, c := range r.State.Consumers {
		if c.Zone != zone {
			continue
		}
		c.Energy.Set(r.liveEnergy(c.ID))
		refreshed++
	}

	slog.Debug("zone refreshed", "turn", turn, "zone", zone, "entities", refreshed)
	return zone
}

// liveEnergy falls back to zero for objects that can no longer be found.
func (r *Refresher) liveEnergy(id EntityID) int {
	v, ok := r.Sensor.EnergyLevel(id)
	if !ok {
		return 0
	}
	return v
}
