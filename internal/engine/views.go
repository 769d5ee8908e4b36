// Read-only views for the HTTP API. Each takes the read lock and returns copies.
package engine

import (
	"encoding/json"
	"sort"

	"github.com/talgya/haulnet/internal/logistics"
	"github.com/talgya/haulnet/internal/world"
)

// Status is the headline world summary.
type Status struct {
	Tick          uint64   `json:"tick"`
	SimTime       string   `json:"sim_time"`
	Zones         int      `json:"zones"`
	Producers     int      `json:"producers"`
	Consumers     int      `json:"consumers"`
	Stores        int      `json:"stores"`
	Carriers      int      `json:"carriers"`
	Workers       int      `json:"workers"`
	Leases        int      `json:"leases"`
	DeficitZones  int      `json:"deficit_zones"`
	LastMatches   int      `json:"last_matches"`
	RefreshedZone string   `json:"refreshed_zone"`
	Stats         SimStats `json:"stats"`
}

// ZoneView summarizes one zone.
type ZoneView struct {
	Zone           world.ZoneID           `json:"zone"`
	Visible        bool                   `json:"visible"`
	Producers      int                    `json:"producers"`
	Consumers      int                    `json:"consumers"`
	Stores         int                    `json:"stores"`
	Carriers       int                    `json:"carriers"`
	Workers        int                    `json:"workers"`
	StoredEnergy   int                    `json:"stored_energy"`
	GenerationRate float64                `json:"generation_rate"`
	LastTurn       *logistics.ZoneSummary `json:"last_turn,omitempty"`
	Deficit        *logistics.Deficit     `json:"deficit,omitempty"`
}

// CarrierView is a carrier with its current job.
type CarrierView struct {
	ID       logistics.EntityID            `json:"id"`
	Zone     world.ZoneID                  `json:"zone"`
	Position string                        `json:"position"`
	Energy   logistics.Energy              `json:"energy"`
	Active   bool                          `json:"active"`
	Job      *logistics.CarrierReservation `json:"job,omitempty"`
}

// Status returns the headline summary.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leases := 0
	for _, t := range s.State.Leases {
		leases += len(t)
	}
	return Status{
		Tick:          s.LastTick,
		SimTime:       SimTime(s.LastTick),
		Zones:         len(s.State.Zones()),
		Producers:     len(s.State.Producers),
		Consumers:     len(s.State.Consumers),
		Stores:        len(s.State.Stores),
		Carriers:      len(s.State.Carriers),
		Workers:       len(s.State.Workers),
		Leases:        leases,
		DeficitZones:  len(s.State.HaulingDeficit),
		LastMatches:   len(s.LastReport.Matches),
		RefreshedZone: string(s.LastReport.RefreshedZone),
		Stats:         s.Stats,
	}
}

// Zones summarizes every zone holding an entity, sorted by id.
func (s *Simulation) Zones() []ZoneView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(map[world.ZoneID]*ZoneView)
	get := func(z world.ZoneID) *ZoneView {
		v, ok := index[z]
		if !ok {
			v = &ZoneView{Zone: z}
			index[z] = v
		}
		return v
	}
	for _, p := range s.State.Producers {
		get(p.Zone).Producers++
	}
	for _, c := range s.State.Consumers {
		get(c.Zone).Consumers++
	}
	for _, st := range s.State.Stores {
		v := get(st.Zone)
		v.Stores++
		v.StoredEnergy += st.Energy.Current
	}
	for _, c := range s.State.Carriers {
		get(c.Zone).Carriers++
	}
	for _, w := range s.State.Workers {
		get(w.Zone).Workers++
	}

	out := make([]ZoneView, 0, len(index))
	for z, v := range index {
		v.Visible = s.World.ZoneVisible(z)
		v.GenerationRate = s.World.GenerationRate(z)
		if sum, ok := s.LastReport.Zones[z]; ok {
			cp := *sum
			v.LastTurn = &cp
		}
		if d, ok := s.State.HaulingDeficit[z]; ok {
			v.Deficit = &d
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out
}

// Deficits returns a copy of the hauling deficit map.
func (s *Simulation) Deficits() map[world.ZoneID]logistics.Deficit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[world.ZoneID]logistics.Deficit, len(s.State.HaulingDeficit))
	for z, d := range s.State.HaulingDeficit {
		out[z] = d
	}
	return out
}

// Leases lists a zone's leases, oldest first.
func (s *Simulation) Leases(zone world.ZoneID) []logistics.Lease {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Scheduler.Leases.ListLeases(zone)
}

// Carriers lists every carrier sorted by id.
func (s *Simulation) Carriers() []CarrierView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CarrierView, 0, len(s.State.Carriers))
	for _, id := range sortedIDs(s.State.Carriers) {
		c := s.State.Carriers[id]
		v := CarrierView{
			ID:       c.ID,
			Zone:     c.Zone,
			Position: c.Position.String(),
			Energy:   c.Energy,
			Active:   c.Active(),
		}
		if c.Reservation != nil {
			job := *c.Reservation
			job.Path = append([]world.HexCoord(nil), c.Reservation.Path...)
			v.Job = &job
		}
		out = append(out, v)
	}
	return out
}

// Snapshot encodes the full registry as JSON.
func (s *Simulation) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.State)
}

func sortedIDs[T any](m map[logistics.EntityID]T) []logistics.EntityID {
	ids := make([]logistics.EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedDeficitZones(st *logistics.State) []world.ZoneID {
	zones := make([]world.ZoneID, 0, len(st.HaulingDeficit))
	for z := range st.HaulingDeficit {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })
	return zones
}
