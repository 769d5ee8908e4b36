// Path search over the hex grid: weighted A* toward the nearest of several goals.
package world

import "container/heap"

// Goal is a target position; a path is complete once it ends within Range of Pos.
type Goal struct {
	Pos   HexCoord
	Range int
}

// CostModel prices a step onto each terrain and bounds the search effort.
type CostModel struct {
	Plain    int `json:"plain" yaml:"plain"`
	Swamp    int `json:"swamp" yaml:"swamp"`
	OpsLimit int `json:"ops_limit" yaml:"ops_limit"`
}

// DefaultCostModel is the carrier movement model.
var DefaultCostModel = CostModel{Plain: 2, Swamp: 10, OpsLimit: 2000}

// PathResult is the outcome of a search. Path excludes the origin.
// When Incomplete is set, Path leads to the explored hex closest to a goal.
type PathResult struct {
	Path       []HexCoord
	Cost       int
	Ops        int
	Incomplete bool
}

// Pathfinder searches a Map.
type Pathfinder struct {
	Map *Map
}

// NewPathfinder creates a pathfinder bound to a map.
func NewPathfinder(m *Map) *Pathfinder {
	return &Pathfinder{Map: m}
}

type pathNode struct {
	coord HexCoord
	g     int
	f     int
	index int
}

type nodeQueue []*pathNode

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].g > q[j].g
}
func (q nodeQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *nodeQueue) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*q)
	*q = append(*q, n)
}
func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}

// Search finds the cheapest path from origin to any goal.
func (p *Pathfinder) Search(origin HexCoord, goals []Goal, cost CostModel) PathResult {
	if len(goals) == 0 {
		return PathResult{Incomplete: true}
	}
	if cost.OpsLimit <= 0 {
		cost.OpsLimit = DefaultCostModel.OpsLimit
	}
	minStep := min(cost.Plain, cost.Swamp)
	if minStep < 1 {
		minStep = 1
	}

	// Admissible: every remaining step costs at least minStep.
	heuristic := func(c HexCoord) int {
		best := -1
		for _, g := range goals {
			d := Distance(c, g.Pos) - g.Range
			if d < 0 {
				d = 0
			}
			if best < 0 || d < best {
				best = d
			}
		}
		return best * minStep
	}

	cameFrom := make(map[HexCoord]HexCoord)
	gScore := map[HexCoord]int{origin: 0}
	closed := make(map[HexCoord]bool)

	open := &nodeQueue{}
	heap.Push(open, &pathNode{coord: origin, g: 0, f: heuristic(origin)})

	closest, closestH := origin, heuristic(origin)
	ops := 0

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pathNode)
		if closed[cur.coord] {
			continue
		}
		closed[cur.coord] = true

		h := heuristic(cur.coord)
		if h == 0 {
			return PathResult{Path: reconstruct(cameFrom, origin, cur.coord), Cost: cur.g, Ops: ops}
		}
		if h < closestH {
			closest, closestH = cur.coord, h
		}

		ops++
		if ops >= cost.OpsLimit {
			break
		}

		for _, n := range cur.coord.Neighbors() {
			if closed[n] {
				continue
			}
			hex := p.Map.Get(n)
			if hex == nil || hex.Terrain == TerrainWall {
				continue
			}
			step := cost.Plain
			if hex.Terrain == TerrainSwamp {
				step = cost.Swamp
			}
			g := cur.g + step
			if prev, ok := gScore[n]; ok && g >= prev {
				continue
			}
			gScore[n] = g
			cameFrom[n] = cur.coord
			heap.Push(open, &pathNode{coord: n, g: g, f: g + heuristic(n)})
		}
	}

	return PathResult{
		Path:       reconstruct(cameFrom, origin, closest),
		Cost:       gScore[closest],
		Ops:        ops,
		Incomplete: true,
	}
}

func reconstruct(cameFrom map[HexCoord]HexCoord, origin, end HexCoord) []HexCoord {
	var rev []HexCoord
	for c := end; c != origin; c = cameFrom[c] {
		rev = append(rev, c)
	}
	path := make([]HexCoord, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}
