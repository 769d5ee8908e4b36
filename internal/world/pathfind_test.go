package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatMap(radius int) *Map {
	m := NewMap(radius, radius*2+1)
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			c := HexCoord{Q: q, R: r}
			if m.InBounds(c) {
				m.Set(&Hex{Coord: c, Terrain: TerrainPlains})
			}
		}
	}
	return m
}

func TestSearchStraightLine(t *testing.T) {
	pf := NewPathfinder(flatMap(4))

	res := pf.Search(HexCoord{}, []Goal{{Pos: HexCoord{Q: 3}, Range: 1}}, DefaultCostModel)

	require.False(t, res.Incomplete)
	require.Len(t, res.Path, 2)
	assert.Equal(t, HexCoord{Q: 2}, res.Path[len(res.Path)-1])
	assert.Equal(t, 4, res.Cost)
}

func TestSearchAlreadyInRange(t *testing.T) {
	pf := NewPathfinder(flatMap(2))

	res := pf.Search(HexCoord{}, []Goal{{Pos: HexCoord{Q: 1}, Range: 1}}, DefaultCostModel)

	assert.False(t, res.Incomplete)
	assert.Empty(t, res.Path)
}

func TestSearchPicksNearestGoal(t *testing.T) {
	pf := NewPathfinder(flatMap(5))

	goals := []Goal{
		{Pos: HexCoord{Q: -5}, Range: 1},
		{Pos: HexCoord{Q: 3}, Range: 1},
	}
	res := pf.Search(HexCoord{}, goals, DefaultCostModel)

	require.False(t, res.Incomplete)
	assert.Len(t, res.Path, 2)
	assert.Equal(t, 1, Distance(res.Path[len(res.Path)-1], HexCoord{Q: 3}))
}

func TestSearchAvoidsSwampWhenCheaper(t *testing.T) {
	m := flatMap(3)
	// Swamp directly between origin and goal.
	m.Get(HexCoord{Q: 1}).Terrain = TerrainSwamp
	pf := NewPathfinder(m)

	res := pf.Search(HexCoord{}, []Goal{{Pos: HexCoord{Q: 2}, Range: 0}}, DefaultCostModel)

	require.False(t, res.Incomplete)
	assert.NotContains(t, res.Path, HexCoord{Q: 1})
	assert.Equal(t, 6, res.Cost)
}

func TestSearchWalledOffIsIncomplete(t *testing.T) {
	m := flatMap(3)
	for _, n := range (HexCoord{}).Neighbors() {
		m.Get(n).Terrain = TerrainWall
	}
	pf := NewPathfinder(m)

	res := pf.Search(HexCoord{}, []Goal{{Pos: HexCoord{Q: 3}, Range: 1}}, DefaultCostModel)

	assert.True(t, res.Incomplete)
	assert.Empty(t, res.Path)
}

func TestSearchOpsLimit(t *testing.T) {
	pf := NewPathfinder(flatMap(6))

	res := pf.Search(HexCoord{Q: -6}, []Goal{{Pos: HexCoord{Q: 6}, Range: 0}},
		CostModel{Plain: 2, Swamp: 10, OpsLimit: 2})

	assert.True(t, res.Incomplete)
	assert.LessOrEqual(t, res.Ops, 2)
}

func TestZoneOf(t *testing.T) {
	m := NewMap(10, 4)

	assert.Equal(t, ZoneID("Z0_0"), m.ZoneOf(HexCoord{Q: 3, R: 0}))
	assert.Equal(t, ZoneID("Z-1_0"), m.ZoneOf(HexCoord{Q: -1, R: 2}))
	assert.Equal(t, ZoneID("Z1_-1"), m.ZoneOf(HexCoord{Q: 4, R: -4}))
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(SmallTestConfig())
	b := Generate(SmallTestConfig())

	require.Equal(t, a.HexCount(), b.HexCount())
	for c, h := range a.Hexes {
		assert.Equal(t, h.Terrain, b.Get(c).Terrain)
		assert.Equal(t, h.Zone, b.Get(c).Zone)
	}
	assert.NotEmpty(t, a.Zones())
}
