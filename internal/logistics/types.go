// Package logistics schedules energy movement between producers, stores and
// consumers. It owns the entity registry and runs the per-turn pipeline:
// incremental refresh, demand/supply discovery, carrier auctions and the
// lease table used by direct-collection workers.
package logistics

import "github.com/talgya/haulnet/internal/world"

// EntityID is the stable name of a registered entity.
type EntityID string

// LeaseID identifies an energy lease.
type LeaseID string

// Energy is an amount held against a capacity. Current never exceeds Capacity.
type Energy struct {
	Current  int `json:"current"`
	Capacity int `json:"capacity"`
}

// Set stores v clamped to [0, Capacity].
func (e *Energy) Set(v int) {
	e.Current = max(0, min(v, e.Capacity))
}

// Add adjusts Current by delta with clamping and returns the amount actually applied.
func (e *Energy) Add(delta int) int {
	before := e.Current
	e.Set(e.Current + delta)
	return e.Current - before
}

// Missing is the free capacity.
func (e Energy) Missing() int {
	return e.Capacity - e.Current
}

// Full reports whether the holder carries any energy at all.
func (e Energy) Full() bool {
	return e.Current > 0
}

// Urgency ranks an entity in peace and war footing.
type Urgency struct {
	Peace int `json:"peace"`
	War   int `json:"war"`
}

// Timing is a tick window.
type Timing struct {
	EarliestTick uint64 `json:"earliest_tick"`
	LatestTick   uint64 `json:"latest_tick"`
}

// Actions says which sides of a match a store may take.
type Actions struct {
	Collect bool `json:"collect"` // Carriers and workers may withdraw
	Deliver bool `json:"deliver"` // Carriers may deposit
}

// ReservationKind is what a carrier intends to do at its target.
type ReservationKind string

const (
	ReserveCollect ReservationKind = "collect"
	ReserveDeliver ReservationKind = "deliver"
)

// CarrierReservation is a carrier's single active job.
type CarrierReservation struct {
	Kind     ReservationKind  `json:"kind"`
	TargetID EntityID         `json:"target_id"`
	Amount   int              `json:"amount"`
	Path     []world.HexCoord `json:"path"`
}

// Producer is a source of energy a carrier or worker can withdraw from.
type Producer struct {
	ID                EntityID        `json:"id"`
	Energy            Energy          `json:"energy"`
	Position          world.HexCoord  `json:"position"`
	Zone              world.ZoneID    `json:"zone"`
	Urgency           Urgency         `json:"urgency"`
	WithdrawTiming    Timing          `json:"withdraw_timing"`
	ProductionPerTick int             `json:"production_per_tick"`
	Kind              string          `json:"kind"`
	Reservations      map[LeaseID]int `json:"reservations"`
}

// Consumer is a sink a carrier can deposit into.
type Consumer struct {
	ID                EntityID       `json:"id"`
	Energy            Energy         `json:"energy"`
	Position          world.HexCoord `json:"position"`
	Zone              world.ZoneID   `json:"zone"`
	Urgency           Urgency        `json:"urgency"`
	DepositTiming     Timing         `json:"deposit_timing"`
	ProductionPerTick int            `json:"production_per_tick"`
	Kind              string         `json:"kind"`
	DecayTiming       *Timing        `json:"decay_timing,omitempty"`
}

// Store is a passive buffer usable from either side of a match.
type Store struct {
	ID           EntityID        `json:"id"`
	Actions      Actions         `json:"actions"`
	Energy       Energy          `json:"energy"`
	Position     world.HexCoord  `json:"position"`
	Zone         world.ZoneID    `json:"zone"`
	Urgency      Urgency         `json:"urgency"`
	Kind         string          `json:"kind"`
	Reservations map[LeaseID]int `json:"reservations"`
}

// Carrier is a mobile hauler. It holds at most one reservation.
type Carrier struct {
	ID          EntityID            `json:"id"`
	Energy      Energy              `json:"energy"`
	Position    world.HexCoord      `json:"position"`
	Zone        world.ZoneID        `json:"zone"`
	Urgency     Urgency             `json:"urgency"`
	DecayTiming *Timing             `json:"decay_timing,omitempty"`
	Reservation *CarrierReservation `json:"reservation,omitempty"`
	Kind        string              `json:"kind"`
}

// Active reports whether the carrier's reservation matches its load:
// deliver while carrying energy, collect while empty.
func (c *Carrier) Active() bool {
	if c.Reservation == nil {
		return false
	}
	if c.Energy.Full() {
		return c.Reservation.Kind == ReserveDeliver
	}
	return c.Reservation.Kind == ReserveCollect
}

// Worker is a stationary direct-collection agent that draws energy through leases.
type Worker struct {
	ID       EntityID       `json:"id"`
	Energy   Energy         `json:"energy"`
	Position world.HexCoord `json:"position"`
	Zone     world.ZoneID   `json:"zone"`
	Kind     string         `json:"kind"`
}

// Lease claims part of a source's energy for one worker. SourceID is empty until bound.
type Lease struct {
	ID          LeaseID  `json:"id"`
	RequesterID EntityID `json:"requester_id"`
	SourceID    EntityID `json:"source_id,omitempty"`
	Amount      int      `json:"amount"`
	CreatedTick uint64   `json:"created_tick"`
	ExpiresTick uint64   `json:"expires_tick"`
}

// Bound reports whether the lease names a source.
func (l *Lease) Bound() bool {
	return l.SourceID != ""
}

// Deficit is the hauling shortfall signal for a zone.
type Deficit struct {
	Demand float64 `json:"demand"`
	Supply float64 `json:"supply"`
	Net    float64 `json:"net"`
}

// DestinationKind discriminates the Destination union.
type DestinationKind uint8

const (
	DestProducer DestinationKind = iota
	DestConsumer
	DestStore
)

func (k DestinationKind) String() string {
	switch k {
	case DestProducer:
		return "producer"
	case DestConsumer:
		return "consumer"
	case DestStore:
		return "store"
	}
	return "unknown"
}

// Destination is anything a carrier can be matched to.
type Destination interface {
	EntityID() EntityID
	Pos() world.HexCoord
	ZoneID() world.ZoneID
	DestinationKind() DestinationKind
}

func (p *Producer) EntityID() EntityID              { return p.ID }
func (p *Producer) Pos() world.HexCoord             { return p.Position }
func (p *Producer) ZoneID() world.ZoneID            { return p.Zone }
func (p *Producer) DestinationKind() DestinationKind { return DestProducer }

func (c *Consumer) EntityID() EntityID              { return c.ID }
func (c *Consumer) Pos() world.HexCoord             { return c.Position }
func (c *Consumer) ZoneID() world.ZoneID            { return c.Zone }
func (c *Consumer) DestinationKind() DestinationKind { return DestConsumer }

func (s *Store) EntityID() EntityID              { return s.ID }
func (s *Store) Pos() world.HexCoord             { return s.Position }
func (s *Store) ZoneID() world.ZoneID            { return s.Zone }
func (s *Store) DestinationKind() DestinationKind { return DestStore }
