// Entity seeding: places the initial producers, consumers, stores, carriers
// and workers in every passable zone of a freshly generated map.
package engine

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/talgya/haulnet/internal/config"
	"github.com/talgya/haulnet/internal/logistics"
	"github.com/talgya/haulnet/internal/world"
)

// Stock sizes for seeded entities.
const (
	ProducerCapacity = 3000
	ConsumerCapacity = 300
	StoreCapacity    = 2000
	WorkerCapacity   = 50
)

var consumerKinds = []string{"spawn", "extension", "tower"}

// Seeder issues entity ids and places entities on the map.
type Seeder struct {
	rng    *rand.Rand
	nextID uint64
	cfg    config.SeedingConfig
}

// NewSeeder creates a seeder with the given seed.
func NewSeeder(seed int64, cfg config.SeedingConfig) *Seeder {
	return &Seeder{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
		cfg:    cfg,
	}
}

// SetNextID sets the next serial to be issued (used when restoring from DB).
func (s *Seeder) SetNextID(id uint64) {
	s.nextID = id
}

// RestoreSerial moves the id counter past every id in a restored registry.
func (s *Seeder) RestoreSerial(st *logistics.State) {
	var maxID uint64
	note := func(id logistics.EntityID) {
		i := strings.LastIndexByte(string(id), '-')
		if i < 0 {
			return
		}
		if n, err := strconv.ParseUint(string(id)[i+1:], 10, 64); err == nil && n > maxID {
			maxID = n
		}
	}
	for id := range st.Producers {
		note(id)
	}
	for id := range st.Consumers {
		note(id)
	}
	for id := range st.Stores {
		note(id)
	}
	for id := range st.Carriers {
		note(id)
	}
	for id := range st.Workers {
		note(id)
	}
	s.SetNextID(maxID + 1)
}

func (s *Seeder) newID(prefix string) logistics.EntityID {
	id := logistics.EntityID(fmt.Sprintf("%s-%d", prefix, s.nextID))
	s.nextID++
	return id
}

// SeedCounts reports what Seed placed.
type SeedCounts struct {
	Zones     int
	Producers int
	Consumers int
	Stores    int
	Carriers  int
	Workers   int
}

// Seed fills every passable zone of the map. Zones too small to hold the
// configured mix get as many entities as they have free hexes.
func (s *Seeder) Seed(st *logistics.State, w *World, tick uint64) (SeedCounts, error) {
	var counts SeedCounts
	for _, zone := range w.Map.Zones() {
		free := w.Map.ZoneHexes(zone)
		s.rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
		take := func() (world.HexCoord, bool) {
			if len(free) == 0 {
				return world.HexCoord{}, false
			}
			c := free[0]
			free = free[1:]
			return c, true
		}

		var dests []world.HexCoord
		for i := 0; i < s.cfg.Producers; i++ {
			pos, ok := take()
			if !ok {
				break
			}
			dests = append(dests, pos)
			p := &logistics.Producer{
				ID:                s.newID("producer"),
				Energy:            logistics.Energy{Current: ProducerCapacity / 2, Capacity: ProducerCapacity},
				Position:          pos,
				Zone:              zone,
				Urgency:           logistics.Urgency{Peace: 1 + s.rng.Intn(5)},
				ProductionPerTick: 5 + s.rng.Intn(10),
				Kind:              "source",
			}
			if err := st.RegisterProducer(p); err != nil {
				return counts, err
			}
			w.Add(&Object{ID: p.ID, Kind: ObjectProducer, Zone: zone, Energy: p.Energy, Rate: p.ProductionPerTick})
			counts.Producers++
		}

		for i := 0; i < s.cfg.Consumers; i++ {
			pos, ok := take()
			if !ok {
				break
			}
			dests = append(dests, pos)
			c := &logistics.Consumer{
				ID:                s.newID("consumer"),
				Energy:            logistics.Energy{Current: s.rng.Intn(ConsumerCapacity / 2), Capacity: ConsumerCapacity},
				Position:          pos,
				Zone:              zone,
				Urgency:           logistics.Urgency{Peace: 1 + s.rng.Intn(10), War: 1 + s.rng.Intn(10)},
				DepositTiming:     OpenWindow(tick),
				ProductionPerTick: 1 + s.rng.Intn(3),
				Kind:              consumerKinds[s.rng.Intn(len(consumerKinds))],
			}
			if err := st.RegisterConsumer(c); err != nil {
				return counts, err
			}
			w.Add(&Object{ID: c.ID, Kind: ObjectConsumer, Zone: zone, Energy: c.Energy, Rate: c.ProductionPerTick})
			counts.Consumers++
		}

		var storePos *world.HexCoord
		for i := 0; i < s.cfg.Stores; i++ {
			pos, ok := take()
			if !ok {
				break
			}
			if storePos == nil {
				storePos = &pos
			}
			dests = append(dests, pos)
			sto := &logistics.Store{
				ID:       s.newID("store"),
				Actions:  logistics.Actions{Collect: true, Deliver: true},
				Energy:   logistics.Energy{Current: StoreCapacity / 4, Capacity: StoreCapacity},
				Position: pos,
				Zone:     zone,
				Kind:     "storage",
			}
			if err := st.RegisterStore(sto); err != nil {
				return counts, err
			}
			w.Add(&Object{ID: sto.ID, Kind: ObjectStore, Zone: zone, Energy: sto.Energy})
			counts.Stores++
		}

		for i := 0; i < s.cfg.Workers; i++ {
			pos, ok := take()
			if !ok {
				break
			}
			wk := &logistics.Worker{
				ID:       s.newID("worker"),
				Energy:   logistics.Energy{Current: WorkerCapacity / 2, Capacity: WorkerCapacity},
				Position: pos,
				Zone:     zone,
				Kind:     "harvester",
			}
			if err := st.RegisterWorker(wk); err != nil {
				return counts, err
			}
			w.Add(&Object{ID: wk.ID, Kind: ObjectWorker, Zone: zone, Energy: wk.Energy, Rate: WorkerBurnPerTick})
			counts.Workers++
		}

		// Carriers share one staging hex near the first store.
		if s.cfg.Carriers > 0 {
			anchor, ok := world.HexCoord{}, true
			switch {
			case storePos != nil:
				anchor = *storePos
			case len(dests) > 0:
				anchor = dests[0]
			default:
				anchor, ok = take()
			}
			if ok {
				home := stagingHex(w.Map, zone, anchor, dests)
				for i := 0; i < s.cfg.Carriers; i++ {
					if _, err := s.NewCarrier(st, zone, home); err != nil {
						return counts, err
					}
					counts.Carriers++
				}
			}
		}

		w.Observe(zone)
		counts.Zones++
	}
	return counts, nil
}

// NewCarrier registers an empty carrier at pos.
func (s *Seeder) NewCarrier(st *logistics.State, zone world.ZoneID, pos world.HexCoord) (*logistics.Carrier, error) {
	c := &logistics.Carrier{
		ID:       s.newID("carrier"),
		Energy:   logistics.Energy{Capacity: s.cfg.CarrierCapacity},
		Position: pos,
		Zone:     zone,
		Kind:     "hauler",
	}
	if err := st.RegisterCarrier(c); err != nil {
		return nil, err
	}
	return c, nil
}

// stagingHex is the passable hex of zone nearest to anchor that lies outside
// GoalRange of every destination, so a carrier waiting there is offered a
// real path by the auction. Falls back to anchor when no such hex exists.
func stagingHex(m *world.Map, zone world.ZoneID, anchor world.HexCoord, dests []world.HexCoord) world.HexCoord {
	best, bestDist := anchor, -1
	for _, h := range m.ZoneHexes(zone) {
		if inRangeOfAny(h, dests) {
			continue
		}
		if d := world.Distance(h, anchor); bestDist < 0 || d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

func inRangeOfAny(pos world.HexCoord, dests []world.HexCoord) bool {
	for _, d := range dests {
		if world.Distance(pos, d) <= logistics.GoalRange {
			return true
		}
	}
	return false
}

// OpenWindow is the deposit window of a consumer ready for delivery from tick on.
func OpenWindow(tick uint64) logistics.Timing {
	return logistics.Timing{EarliestTick: tick, LatestTick: tick + TicksPerSimDay}
}
