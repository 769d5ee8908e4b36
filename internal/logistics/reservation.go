// Energy leases: single-use claims on a source for direct-collection workers.
package logistics

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/talgya/haulnet/internal/world"
)

// DefaultLeaseTTL is how many ticks an unconsumed lease lives.
const DefaultLeaseTTL = 50

// SourceOffer is a source able to cover at least part of a request.
type SourceOffer struct {
	Kind   DestinationKind `json:"kind"`
	ID     EntityID        `json:"id"`
	Amount int             `json:"amount"`
}

// Withdrawal reports what a consumed lease achieved.
type Withdrawal struct {
	LeaseID  LeaseID        `json:"lease_id"`
	SourceID EntityID       `json:"source_id"`
	Amount   int            `json:"amount"`
	Result   WithdrawResult `json:"result"`
}

// Reservations is the lease table over energy sources.
// Two workers racing for one source are serialized by BindLeaseToSource's
// capacity check; there are no locks.
type Reservations struct {
	State      *State
	Withdrawer Withdrawer
	TTL        uint64
}

// NewReservations creates a lease manager. A nil withdrawer moves energy in the registry only.
func NewReservations(state *State, w Withdrawer) *Reservations {
	return &Reservations{State: state, Withdrawer: w, TTL: DefaultLeaseTTL}
}

func (r *Reservations) table(zone world.ZoneID) map[LeaseID]*Lease {
	t, ok := r.State.Leases[zone]
	if !ok {
		t = make(map[LeaseID]*Lease)
		r.State.Leases[zone] = t
	}
	return t
}

// CreateDemandLease allocates an unbound lease for amount units in the requester's zone.
func (r *Reservations) CreateDemandLease(requester EntityID, amount int) (LeaseID, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	w, ok := r.State.Workers[requester]
	if !ok {
		return "", fmt.Errorf("create lease for %s: %w", requester, ErrUnknownRequester)
	}

	id := LeaseID(uuid.NewString())
	r.table(w.Zone)[id] = &Lease{
		ID:          id,
		RequesterID: requester,
		Amount:      amount,
		CreatedTick: r.State.Tick,
		ExpiresTick: r.State.Tick + r.TTL,
	}
	return id, nil
}

// FindSourceRespectingLeases returns the first source in the requester's zone
// with unreserved energy. Producers are tried before collectable stores.
func (r *Reservations) FindSourceRespectingLeases(requester EntityID, amount int) (SourceOffer, bool) {
	w, ok := r.State.Workers[requester]
	if !ok || amount <= 0 {
		return SourceOffer{}, false
	}

	for _, id := range sortedIDs(r.State.Producers) {
		p := r.State.Producers[id]
		if p.Zone != w.Zone {
			continue
		}
		if free := r.State.Unreserved(id); free > 0 {
			return SourceOffer{Kind: DestProducer, ID: id, Amount: min(amount, free)}, true
		}
	}
	for _, id := range sortedIDs(r.State.Stores) {
		st := r.State.Stores[id]
		if st.Zone != w.Zone || !st.Actions.Collect {
			continue
		}
		if free := r.State.Unreserved(id); free > 0 {
			return SourceOffer{Kind: DestStore, ID: id, Amount: min(amount, free)}, true
		}
	}

	slog.Warn("no source found", "requester", requester, "zone", w.Zone, "amount", amount)
	return SourceOffer{}, false
}

// BindLeaseToSource attaches an unbound lease to a source in the same zone.
// The lease is clamped to the source's unreserved energy so the ledger never
// exceeds the source's current energy. Returns the bound amount.
func (r *Reservations) BindLeaseToSource(zone world.ZoneID, leaseID LeaseID, sourceID EntityID) (int, error) {
	l, ok := r.State.Leases[zone][leaseID]
	if !ok {
		return 0, fmt.Errorf("bind %s: %w", leaseID, ErrUnknownLease)
	}
	if l.Bound() {
		return 0, fmt.Errorf("bind %s: %w", leaseID, ErrLeaseBound)
	}
	_, srcZone, ok := r.State.sourceEnergy(sourceID)
	if !ok || srcZone != zone {
		return 0, fmt.Errorf("bind %s to %s: %w", leaseID, sourceID, ErrUnknownSource)
	}

	free := r.State.Unreserved(sourceID)
	if free <= 0 {
		return 0, fmt.Errorf("bind %s to %s: %w", leaseID, sourceID, ErrOversubscribed)
	}
	if l.Amount > free {
		slog.Debug("lease clamped", "lease", leaseID, "requested", l.Amount, "granted", free)
		l.Amount = free
	}

	l.SourceID = sourceID
	r.State.ledger(sourceID)[leaseID] = l.Amount
	return l.Amount, nil
}

// ConsumeLease performs the lease's single withdrawal and deletes it whatever
// the outcome. The requester must request a new lease to withdraw again.
func (r *Reservations) ConsumeLease(zone world.ZoneID, leaseID LeaseID) (Withdrawal, error) {
	l, ok := r.State.Leases[zone][leaseID]
	if !ok {
		return Withdrawal{}, fmt.Errorf("consume %s: %w", leaseID, ErrUnknownLease)
	}
	defer r.remove(zone, l)

	out := Withdrawal{LeaseID: leaseID, SourceID: l.SourceID}
	if !l.Bound() {
		out.Result = WithdrawUnbound
		return out, nil
	}

	src, _, ok := r.State.sourceEnergy(l.SourceID)
	w, wok := r.State.Workers[l.RequesterID]
	switch {
	case !ok:
		out.Result = WithdrawSourceMissing
		return out, nil
	case !wok:
		out.Result = WithdrawRequesterMissing
		return out, nil
	case src.Current == 0:
		out.Result = WithdrawNotEnough
		return out, nil
	case w.Energy.Missing() == 0:
		out.Result = WithdrawFull
		return out, nil
	}

	amount := min(l.Amount, src.Current, w.Energy.Missing())
	moved, result := amount, WithdrawOK
	if r.Withdrawer != nil {
		moved, result = r.Withdrawer.Withdraw(l.RequesterID, l.SourceID, amount)
		moved = max(0, min(moved, amount))
	}

	src.Add(-moved)
	w.Energy.Add(moved)
	out.Amount = moved
	out.Result = result
	return out, nil
}

// CancelLease deletes a lease without withdrawing. Unknown leases are ignored.
func (r *Reservations) CancelLease(zone world.ZoneID, leaseID LeaseID) {
	if l, ok := r.State.Leases[zone][leaseID]; ok {
		r.remove(zone, l)
	}
}

// ExpireLeases deletes leases in the zone whose expiry tick has passed.
func (r *Reservations) ExpireLeases(zone world.ZoneID) int {
	expired := 0
	for _, l := range r.State.Leases[zone] {
		if r.State.Tick > l.ExpiresTick {
			r.remove(zone, l)
			expired++
		}
	}
	return expired
}

// ListLeases returns a copy of the zone's leases, oldest first.
func (r *Reservations) ListLeases(zone world.ZoneID) []Lease {
	table := r.State.Leases[zone]
	out := make([]Lease, 0, len(table))
	for _, l := range table {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTick != out[j].CreatedTick {
			return out[i].CreatedTick < out[j].CreatedTick
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LeaseOf returns the lease held by a requester in its zone, if any.
func (r *Reservations) LeaseOf(requester EntityID) (*Lease, bool) {
	w, ok := r.State.Workers[requester]
	if !ok {
		return nil, false
	}
	for _, l := range r.State.Leases[w.Zone] {
		if l.RequesterID == requester {
			return l, true
		}
	}
	return nil, false
}

func (r *Reservations) remove(zone world.ZoneID, l *Lease) {
	if l.Bound() {
		if ledger := r.State.ledger(l.SourceID); ledger != nil {
			delete(ledger, l.ID)
		}
	}
	table := r.State.Leases[zone]
	delete(table, l.ID)
	if len(table) == 0 {
		delete(r.State.Leases, zone)
	}
}
