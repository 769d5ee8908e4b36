package logistics

import (
	"github.com/talgya/haulnet/internal/world"
)

// tablePathfinder answers from a fixed origin→goal distance table. Paths end
// exactly on the chosen goal. Unknown pairs are unreachable.
type tablePathfinder struct {
	dist       map[[2]world.HexCoord]int
	incomplete bool
	calls      int
}

func newTablePathfinder() *tablePathfinder {
	return &tablePathfinder{dist: make(map[[2]world.HexCoord]int)}
}

func (f *tablePathfinder) set(from, to world.HexCoord, d int) {
	f.dist[[2]world.HexCoord{from, to}] = d
}

func (f *tablePathfinder) Search(origin world.HexCoord, goals []world.Goal, _ world.CostModel) world.PathResult {
	f.calls++
	if f.incomplete {
		return world.PathResult{Incomplete: true}
	}
	best, bestD := -1, 0
	for i, g := range goals {
		d, ok := f.dist[[2]world.HexCoord{origin, g.Pos}]
		if !ok {
			continue
		}
		if best < 0 || d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return world.PathResult{Incomplete: true}
	}
	if bestD == 0 {
		// Origin already in range: a complete search with nothing to walk.
		return world.PathResult{}
	}
	path := make([]world.HexCoord, bestD)
	for i := range path {
		path[i] = world.HexCoord{Q: origin.Q, R: origin.R + i + 1}
	}
	path[len(path)-1] = goals[best].Pos
	return world.PathResult{Path: path, Cost: bestD * 2}
}

type fakeSensor struct {
	zones  []world.ZoneID
	energy map[EntityID]int
	gen    map[world.ZoneID]float64
	reads  int
}

func newFakeSensor(zones ...world.ZoneID) *fakeSensor {
	return &fakeSensor{
		zones:  zones,
		energy: make(map[EntityID]int),
		gen:    make(map[world.ZoneID]float64),
	}
}

func (s *fakeSensor) ObservedZones() []world.ZoneID {
	return append([]world.ZoneID(nil), s.zones...)
}

func (s *fakeSensor) ZoneVisible(zone world.ZoneID) bool {
	for _, z := range s.zones {
		if z == zone {
			return true
		}
	}
	return false
}

func (s *fakeSensor) EnergyLevel(id EntityID) (int, bool) {
	s.reads++
	v, ok := s.energy[id]
	return v, ok
}

func (s *fakeSensor) GenerationRate(zone world.ZoneID) float64 {
	return s.gen[zone]
}

type scriptedWithdrawer struct {
	result WithdrawResult
	limit  int // caps moved energy when > 0
	calls  int
}

func (w *scriptedWithdrawer) Withdraw(_, _ EntityID, amount int) (int, WithdrawResult) {
	w.calls++
	if w.result != WithdrawOK {
		return 0, w.result
	}
	if w.limit > 0 && amount > w.limit {
		return w.limit, WithdrawOK
	}
	return amount, WithdrawOK
}

func at(q, r int) world.HexCoord {
	return world.HexCoord{Q: q, R: r}
}

func carrier(id string, pos world.HexCoord, current, capacity int) *Carrier {
	return &Carrier{
		ID:       EntityID(id),
		Energy:   Energy{Current: current, Capacity: capacity},
		Position: pos,
		Zone:     "Z0_0",
		Kind:     "hauler",
	}
}

func store(id string, pos world.HexCoord, current, capacity int) *Store {
	return &Store{
		ID:       EntityID(id),
		Actions:  Actions{Collect: true, Deliver: true},
		Energy:   Energy{Current: current, Capacity: capacity},
		Position: pos,
		Zone:     "Z0_0",
		Kind:     "container",
	}
}
