// Demand/supply discovery: per-zone rankings of consumers, stores and
// carriers, plus the hauling deficit signal read by the spawn planner.
package logistics

import (
	"log/slog"
	"sort"

	"github.com/talgya/haulnet/internal/world"
)

const (
	// DeficitMargin is how far demand must exceed supply before a zone reports a deficit.
	DeficitMargin = 50
	// MissingThreshold splits consumers by how much energy they are missing.
	MissingThreshold = 50
)

// CarrierPools partitions a zone's carriers by activity and load.
type CarrierPools struct {
	IdleEmpty     []*Carrier `json:"idle_empty"`
	IdleFull      []*Carrier `json:"idle_full"`
	ActiveEmpty   []*Carrier `json:"active_empty"`
	ActiveFull    []*Carrier `json:"active_full"`
	TotalCapacity int        `json:"total_capacity"`
}

// Count is the number of carriers across all buckets.
func (p *CarrierPools) Count() int {
	return len(p.IdleEmpty) + len(p.IdleFull) + len(p.ActiveEmpty) + len(p.ActiveFull)
}

// ConsumerRanking is a zone's ranked deposit targets.
type ConsumerRanking struct {
	Overdue []*Consumer `json:"overdue"`
	Due     []*Consumer `json:"due"`
	// TotalDemand sums ProductionPerTick over every consumer in the zone.
	TotalDemand int `json:"total_demand"`
	// TotalEnergyDemand sums missing energy over the filtered Due list.
	TotalEnergyDemand int `json:"total_energy_demand"`
}

// Targets returns overdue then due consumers.
func (r *ConsumerRanking) Targets() []*Consumer {
	out := make([]*Consumer, 0, len(r.Overdue)+len(r.Due))
	out = append(out, r.Overdue...)
	return append(out, r.Due...)
}

// Discovery is the per-zone output of one discovery pass.
// Supply has no entry for zones without carriers.
type Discovery struct {
	Consumers       map[world.ZoneID]*ConsumerRanking `json:"consumers"`
	Stores          map[world.ZoneID][]*Store         `json:"stores"`
	Carriers        map[world.ZoneID]*CarrierPools    `json:"carriers"`
	AvgHaulDistance map[world.ZoneID]float64          `json:"avg_haul_distance"`
	Demand          map[world.ZoneID]float64          `json:"demand"`
	Supply          map[world.ZoneID]float64          `json:"supply"`
}

// Discoverer runs the discovery pass.
type Discoverer struct {
	State     *State
	Sensor    Sensor
	Estimator HaulEstimator
	Margin    float64
}

// NewDiscoverer creates a discoverer with the default deficit margin.
func NewDiscoverer(state *State, sensor Sensor, est HaulEstimator) *Discoverer {
	return &Discoverer{State: state, Sensor: sensor, Estimator: est, Margin: DeficitMargin}
}

// Discover ranks every zone and rewrites State.HaulingDeficit.
func (d *Discoverer) Discover() *Discovery {
	tick := d.State.Tick
	out := &Discovery{
		Consumers:       make(map[world.ZoneID]*ConsumerRanking),
		Stores:          make(map[world.ZoneID][]*Store),
		Carriers:        make(map[world.ZoneID]*CarrierPools),
		AvgHaulDistance: make(map[world.ZoneID]float64),
		Demand:          make(map[world.ZoneID]float64),
		Supply:          make(map[world.ZoneID]float64),
	}

	zoneSet := make(map[world.ZoneID]bool)
	for _, z := range d.State.Zones() {
		zoneSet[z] = true
	}
	for _, z := range d.Sensor.ObservedZones() {
		zoneSet[z] = true
	}
	zones := sortedZones(zoneSet)
	for _, z := range zones {
		out.Consumers[z] = &ConsumerRanking{}
		out.Carriers[z] = &CarrierPools{}
	}

	// 1. Carrier pools.
	for _, id := range sortedIDs(d.State.Carriers) {
		c := d.State.Carriers[id]
		pools := out.Carriers[c.Zone]
		pools.TotalCapacity += c.Energy.Capacity
		switch full, active := c.Energy.Full(), c.Active(); {
		case full && active:
			pools.ActiveFull = append(pools.ActiveFull, c)
		case full:
			pools.IdleFull = append(pools.IdleFull, c)
		case active:
			pools.ActiveEmpty = append(pools.ActiveEmpty, c)
		default:
			pools.IdleEmpty = append(pools.IdleEmpty, c)
		}
	}

	// 2. Consumer classification. The earliest/latest ordering and the
	// threshold directions below are kept as observed upstream.
	for _, id := range sortedIDs(d.State.Consumers) {
		c := d.State.Consumers[id]
		rank := out.Consumers[c.Zone]
		rank.TotalDemand += c.ProductionPerTick
		missing := c.Energy.Missing()
		switch {
		case tick > c.DepositTiming.EarliestTick:
			if missing > MissingThreshold {
				rank.Overdue = append(rank.Overdue, c)
			}
		case tick > c.DepositTiming.LatestTick:
			if missing < MissingThreshold {
				rank.Due = append(rank.Due, c)
				rank.TotalEnergyDemand += missing
			}
		}
	}

	// 3. Rank consumers by peace urgency.
	for _, rank := range out.Consumers {
		sortByUrgency(rank.Overdue)
		sortByUrgency(rank.Due)
	}

	// 4. Rank stores, richest first.
	for _, id := range sortedIDs(d.State.Stores) {
		st := d.State.Stores[id]
		out.Stores[st.Zone] = append(out.Stores[st.Zone], st)
	}
	for _, stores := range out.Stores {
		sort.SliceStable(stores, func(i, j int) bool {
			return stores[i].Energy.Current > stores[j].Energy.Current
		})
	}

	if d.State.HaulingDeficit == nil {
		d.State.HaulingDeficit = make(map[world.ZoneID]Deficit)
	}
	clear(d.State.HaulingDeficit)

	for _, z := range zones {
		rank := out.Consumers[z]

		// 5. Average haul distance.
		avg := 1.0
		stores, targets := out.Stores[z], rank.Targets()
		if d.Estimator != nil && len(stores) > 0 && len(targets) > 0 {
			if est := d.Estimator.AverageHaulDistance(stores, targets); est > 0 {
				avg = est
			}
		}
		out.AvgHaulDistance[z] = avg

		// 6. Dynamic demand.
		demand := float64(rank.TotalEnergyDemand) + d.Sensor.GenerationRate(z)
		out.Demand[z] = demand

		// 7. Dynamic supply, undefined without carriers.
		pools := out.Carriers[z]
		if pools.Count() == 0 {
			continue
		}
		supply := float64(pools.TotalCapacity) / avg
		out.Supply[z] = supply

		// 8. Deficit signal.
		if demand-supply > d.Margin {
			d.State.HaulingDeficit[z] = Deficit{Demand: demand, Supply: supply, Net: demand - supply}
			slog.Debug("hauling deficit", "zone", z, "demand", demand, "supply", supply)
		}
	}

	return out
}

func sortByUrgency(cs []*Consumer) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Urgency.Peace > cs[j].Urgency.Peace
	})
}

// PathHaulEstimator averages pathfinder distances over a bounded sample of
// store/consumer pairs.
type PathHaulEstimator struct {
	Pathfinder Pathfinder
	Cost       world.CostModel
	MaxSamples int
}

// AverageHaulDistance returns the mean path length, or 1 if no pair is reachable.
func (e *PathHaulEstimator) AverageHaulDistance(stores []*Store, consumers []*Consumer) float64 {
	limit := e.MaxSamples
	if limit <= 0 {
		limit = 8
	}
	total, n := 0, 0
	for _, st := range stores {
		for _, c := range consumers {
			if n >= limit {
				break
			}
			res := e.Pathfinder.Search(st.Position, []world.Goal{{Pos: c.Position, Range: 1}}, e.Cost)
			if res.Incomplete {
				continue
			}
			total += len(res.Path)
			n++
		}
	}
	if n == 0 || total == 0 {
		return 1
	}
	return float64(total) / float64(n)
}
