package logistics

import "github.com/talgya/haulnet/internal/world"

// Pathfinder is the travel-cost oracle. Only the length and last step of a
// complete path are used.
type Pathfinder interface {
	Search(origin world.HexCoord, goals []world.Goal, cost world.CostModel) world.PathResult
}

// Sensor gives read-only access to the live world.
type Sensor interface {
	// ObservedZones lists the zones currently in view.
	ObservedZones() []world.ZoneID
	ZoneVisible(zone world.ZoneID) bool
	// EnergyLevel returns the live energy of a backing object, false if it is gone.
	EnergyLevel(id EntityID) (int, bool)
	// GenerationRate is the zone's natural energy production per tick.
	GenerationRate(zone world.ZoneID) float64
}

// WithdrawResult is the outcome of a single worker withdrawal.
type WithdrawResult uint8

const (
	WithdrawOK WithdrawResult = iota
	WithdrawNotEnough
	WithdrawFull
	WithdrawSourceMissing
	WithdrawUnbound
	WithdrawRequesterMissing
)

func (r WithdrawResult) String() string {
	switch r {
	case WithdrawOK:
		return "ok"
	case WithdrawNotEnough:
		return "not_enough_resources"
	case WithdrawFull:
		return "full"
	case WithdrawSourceMissing:
		return "source_missing"
	case WithdrawUnbound:
		return "unbound"
	case WithdrawRequesterMissing:
		return "requester_missing"
	}
	return "unknown"
}

// Withdrawer moves energy from a source object to a worker object in the world.
// It returns the amount that actually moved.
type Withdrawer interface {
	Withdraw(requester, source EntityID, amount int) (int, WithdrawResult)
}

// HaulEstimator returns the mean travel distance between a zone's stores and consumers.
type HaulEstimator interface {
	AverageHaulDistance(stores []*Store, consumers []*Consumer) float64
}
