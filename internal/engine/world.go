// Live world objects: the energy the scheduler observes and the workers draw on.
package engine

import (
	"sort"

	"github.com/talgya/haulnet/internal/logistics"
	"github.com/talgya/haulnet/internal/world"
)

// WorkerBurnPerTick is what a worker spends every tick.
const WorkerBurnPerTick = 1

// ObjectKind tags a backing object.
type ObjectKind uint8

const (
	ObjectProducer ObjectKind = iota
	ObjectConsumer
	ObjectStore
	ObjectWorker
)

// Object is the live counterpart of a registered entity.
// Rate is production per tick for producers and burn per tick for consumers and workers.
type Object struct {
	ID     logistics.EntityID
	Kind   ObjectKind
	Zone   world.ZoneID
	Energy logistics.Energy
	Rate   int
}

// World owns the authoritative energy of every non-carrier entity and the set
// of zones in view. It satisfies logistics.Sensor and logistics.Withdrawer.
type World struct {
	Map     *world.Map
	Objects map[logistics.EntityID]*Object
	visible map[world.ZoneID]bool
}

// NewWorld creates an empty world over a map.
func NewWorld(m *world.Map) *World {
	return &World{
		Map:     m,
		Objects: make(map[logistics.EntityID]*Object),
		visible: make(map[world.ZoneID]bool),
	}
}

// NewWorldFromState rebuilds backing objects from a restored registry and
// observes every zone that holds an entity.
func NewWorldFromState(m *world.Map, st *logistics.State) *World {
	w := NewWorld(m)
	for _, p := range st.Producers {
		w.Add(&Object{ID: p.ID, Kind: ObjectProducer, Zone: p.Zone, Energy: p.Energy, Rate: p.ProductionPerTick})
	}
	for _, c := range st.Consumers {
		w.Add(&Object{ID: c.ID, Kind: ObjectConsumer, Zone: c.Zone, Energy: c.Energy, Rate: c.ProductionPerTick})
	}
	for _, s := range st.Stores {
		w.Add(&Object{ID: s.ID, Kind: ObjectStore, Zone: s.Zone, Energy: s.Energy})
	}
	for _, wk := range st.Workers {
		w.Add(&Object{ID: wk.ID, Kind: ObjectWorker, Zone: wk.Zone, Energy: wk.Energy, Rate: WorkerBurnPerTick})
	}
	for _, z := range st.Zones() {
		w.Observe(z)
	}
	return w
}

// Add places an object, replacing any object with the same id.
func (w *World) Add(o *Object) {
	w.Objects[o.ID] = o
}

// Remove deletes an object.
func (w *World) Remove(id logistics.EntityID) {
	delete(w.Objects, id)
}

// Observe brings a zone into view.
func (w *World) Observe(zone world.ZoneID) {
	w.visible[zone] = true
}

// Forget drops a zone from view.
func (w *World) Forget(zone world.ZoneID) {
	delete(w.visible, zone)
}

// ObservedZones lists visible zones in sorted order.
func (w *World) ObservedZones() []world.ZoneID {
	out := make([]world.ZoneID, 0, len(w.visible))
	for z := range w.visible {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w *World) ZoneVisible(zone world.ZoneID) bool {
	return w.visible[zone]
}

func (w *World) EnergyLevel(id logistics.EntityID) (int, bool) {
	o, ok := w.Objects[id]
	if !ok {
		return 0, false
	}
	return o.Energy.Current, true
}

// GenerationRate sums producer output in the zone.
func (w *World) GenerationRate(zone world.ZoneID) float64 {
	total := 0
	for _, o := range w.Objects {
		if o.Kind == ObjectProducer && o.Zone == zone {
			total += o.Rate
		}
	}
	return float64(total)
}

// Withdraw moves up to amount from source to requester.
func (w *World) Withdraw(requester, source logistics.EntityID, amount int) (int, logistics.WithdrawResult) {
	src, ok := w.Objects[source]
	if !ok {
		return 0, logistics.WithdrawSourceMissing
	}
	dst, ok := w.Objects[requester]
	if !ok {
		return 0, logistics.WithdrawRequesterMissing
	}
	if src.Energy.Current == 0 {
		return 0, logistics.WithdrawNotEnough
	}
	if dst.Energy.Missing() == 0 {
		return 0, logistics.WithdrawFull
	}
	moved := min(amount, src.Energy.Current, dst.Energy.Missing())
	src.Energy.Add(-moved)
	dst.Energy.Add(moved)
	return moved, logistics.WithdrawOK
}

// Adjust changes an object's energy by delta and returns the applied change.
// Unknown ids return zero.
func (w *World) Adjust(id logistics.EntityID, delta int) int {
	o, ok := w.Objects[id]
	if !ok {
		return 0
	}
	return o.Energy.Add(delta)
}

// Step applies one tick of production and burn. It returns the total produced and burned.
func (w *World) Step() (produced, burned int) {
	for _, o := range w.Objects {
		switch o.Kind {
		case ObjectProducer:
			produced += o.Energy.Add(o.Rate)
		case ObjectConsumer, ObjectWorker:
			burned -= o.Energy.Add(-o.Rate)
		}
	}
	return produced, burned
}
