package logistics

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/haulnet/internal/world"
)

// State is the entity registry shared by every scheduler component.
// External code mutates it only through the Register/Deregister methods.
type State struct {
	Tick uint64 `json:"tick"`

	Producers map[EntityID]*Producer `json:"producers"`
	Consumers map[EntityID]*Consumer `json:"consumers"`
	Stores    map[EntityID]*Store    `json:"stores"`
	Carriers  map[EntityID]*Carrier  `json:"carriers"`
	Workers   map[EntityID]*Worker   `json:"workers"`

	Leases         map[world.ZoneID]map[LeaseID]*Lease `json:"leases"`
	HaulingDeficit map[world.ZoneID]Deficit            `json:"hauling_deficit"`
}

// NewState creates an empty registry.
func NewState() *State {
	return &State{
		Producers:      make(map[EntityID]*Producer),
		Consumers:      make(map[EntityID]*Consumer),
		Stores:         make(map[EntityID]*Store),
		Carriers:       make(map[EntityID]*Carrier),
		Workers:        make(map[EntityID]*Worker),
		Leases:         make(map[world.ZoneID]map[LeaseID]*Lease),
		HaulingDeficit: make(map[world.ZoneID]Deficit),
	}
}

func checkEnergy(id EntityID, e Energy) error {
	if e.Current < 0 || e.Current > e.Capacity {
		return fmt.Errorf("register %s (%d/%d): %w", id, e.Current, e.Capacity, ErrOverCapacity)
	}
	return nil
}

func (s *State) exists(id EntityID) bool {
	if _, ok := s.Producers[id]; ok {
		return true
	}
	if _, ok := s.Consumers[id]; ok {
		return true
	}
	if _, ok := s.Stores[id]; ok {
		return true
	}
	if _, ok := s.Carriers[id]; ok {
		return true
	}
	_, ok := s.Workers[id]
	return ok
}

func (s *State) checkNew(id EntityID, e Energy) error {
	if s.exists(id) {
		return fmt.Errorf("register %s: %w", id, ErrDuplicateEntity)
	}
	return checkEnergy(id, e)
}

// RegisterProducer adds a producer.
func (s *State) RegisterProducer(p *Producer) error {
	if err := s.checkNew(p.ID, p.Energy); err != nil {
		return err
	}
	if p.Reservations == nil {
		p.Reservations = make(map[LeaseID]int)
	}
	s.Producers[p.ID] = p
	return nil
}

// RegisterConsumer adds a consumer.
func (s *State) RegisterConsumer(c *Consumer) error {
	if err := s.checkNew(c.ID, c.Energy); err != nil {
		return err
	}
	s.Consumers[c.ID] = c
	return nil
}

// RegisterStore adds a store.
func (s *State) RegisterStore(st *Store) error {
	if err := s.checkNew(st.ID, st.Energy); err != nil {
		return err
	}
	if st.Reservations == nil {
		st.Reservations = make(map[LeaseID]int)
	}
	s.Stores[st.ID] = st
	return nil
}

// RegisterCarrier adds a carrier.
func (s *State) RegisterCarrier(c *Carrier) error {
	if err := s.checkNew(c.ID, c.Energy); err != nil {
		return err
	}
	s.Carriers[c.ID] = c
	return nil
}

// RegisterWorker adds a direct-collection worker.
func (s *State) RegisterWorker(w *Worker) error {
	if err := s.checkNew(w.ID, w.Energy); err != nil {
		return err
	}
	s.Workers[w.ID] = w
	return nil
}

// Deregister removes an entity of any kind and cascades to leases and ledgers.
// Unknown ids are ignored.
func (s *State) Deregister(id EntityID) {
	switch {
	case s.Producers[id] != nil:
		delete(s.Producers, id)
	case s.Consumers[id] != nil:
		delete(s.Consumers, id)
	case s.Stores[id] != nil:
		delete(s.Stores, id)
	case s.Carriers[id] != nil:
		delete(s.Carriers, id)
	case s.Workers[id] != nil:
		delete(s.Workers, id)
	default:
		return
	}
	s.pruneLeases()
}

// pruneLeases drops leases whose requester or bound source has vanished, and
// ledger entries that no longer back a live lease.
func (s *State) pruneLeases() {
	live := make(map[LeaseID]bool)
	for zone, table := range s.Leases {
		for id, l := range table {
			if _, ok := s.Workers[l.RequesterID]; !ok {
				delete(table, id)
				continue
			}
			if l.Bound() && s.ledger(l.SourceID) == nil {
				delete(table, id)
				continue
			}
			live[id] = true
		}
		if len(table) == 0 {
			delete(s.Leases, zone)
		}
	}
	for _, p := range s.Producers {
		pruneLedger(p.Reservations, live)
	}
	for _, st := range s.Stores {
		pruneLedger(st.Reservations, live)
	}
}

func pruneLedger(ledger map[LeaseID]int, live map[LeaseID]bool) {
	for id := range ledger {
		if !live[id] {
			delete(ledger, id)
		}
	}
}

// PruneZones removes producers, consumers and deficit rows in zones the sensor
// no longer sees. Leases bound to a removed producer are dropped with it.
// Returns the number of entity rows removed.
func (s *State) PruneZones(sensor Sensor) int {
	removed := 0
	for id, p := range s.Producers {
		if !sensor.ZoneVisible(p.Zone) {
			delete(s.Producers, id)
			removed++
		}
	}
	for id, c := range s.Consumers {
		if !sensor.ZoneVisible(c.Zone) {
			delete(s.Consumers, id)
			removed++
		}
	}
	for zone := range s.HaulingDeficit {
		if !sensor.ZoneVisible(zone) {
			delete(s.HaulingDeficit, zone)
		}
	}
	if removed > 0 {
		slog.Debug("pruned unobserved entities", "count", removed)
		s.pruneLeases()
	}
	return removed
}

// ledger returns the reservation ledger of a withdrawable source, or nil.
func (s *State) ledger(id EntityID) map[LeaseID]int {
	if p, ok := s.Producers[id]; ok {
		return p.Reservations
	}
	if st, ok := s.Stores[id]; ok {
		return st.Reservations
	}
	return nil
}

// sourceEnergy returns the energy of a withdrawable source.
func (s *State) sourceEnergy(id EntityID) (*Energy, world.ZoneID, bool) {
	if p, ok := s.Producers[id]; ok {
		return &p.Energy, p.Zone, true
	}
	if st, ok := s.Stores[id]; ok && st.Actions.Collect {
		return &st.Energy, st.Zone, true
	}
	return nil, "", false
}

// Reserved is the sum of a source's ledger.
func (s *State) Reserved(id EntityID) int {
	total := 0
	for _, amt := range s.ledger(id) {
		total += amt
	}
	return total
}

// Unreserved is the part of a source's current energy not claimed by a lease.
func (s *State) Unreserved(id EntityID) int {
	e, _, ok := s.sourceEnergy(id)
	if !ok {
		return 0
	}
	return max(0, e.Current-s.Reserved(id))
}

// Zones returns every zone referenced by a registered entity, sorted.
func (s *State) Zones() []world.ZoneID {
	seen := make(map[world.ZoneID]bool)
	for _, p := range s.Producers {
		seen[p.Zone] = true
	}
	for _, c := range s.Consumers {
		seen[c.Zone] = true
	}
	for _, st := range s.Stores {
		seen[st.Zone] = true
	}
	for _, c := range s.Carriers {
		seen[c.Zone] = true
	}
	for _, w := range s.Workers {
		seen[w.Zone] = true
	}
	return sortedZones(seen)
}

func sortedZones(set map[world.ZoneID]bool) []world.ZoneID {
	zones := make([]world.ZoneID, 0, len(set))
	for z := range set {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })
	return zones
}

// sortedIDs returns map keys in ascending order so iteration is reproducible.
func sortedIDs[T any](m map[EntityID]T) []EntityID {
	ids := make([]EntityID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
