package world

import (
	"fmt"
	"sort"
)

// ZoneID names a spatially bounded partition of the map.
type ZoneID string

// Map holds the complete hex grid world state.
type Map struct {
	Hexes    map[HexCoord]*Hex `json:"-"` // All hexes keyed by coordinate
	Radius   int               `json:"radius"`
	ZoneSize int               `json:"zone_size"`
}

// NewMap creates an empty map with the given radius and zone edge length.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius, zoneSize int) *Map {
	if zoneSize < 1 {
		zoneSize = 1
	}
	return &Map{
		Hexes:    make(map[HexCoord]*Hex),
		Radius:   radius,
		ZoneSize: zoneSize,
	}
}

// Get returns the hex at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Hex {
	return m.Hexes[coord]
}

// Set places a hex at the given coordinate and stamps its zone.
func (m *Map) Set(hex *Hex) {
	hex.Zone = m.ZoneOf(hex.Coord)
	m.Hexes[hex.Coord] = hex
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return max(abs(coord.Q), abs(coord.R), abs(coord.S())) <= m.Radius
}

// Passable reports whether a carrier can stand on the coordinate.
func (m *Map) Passable(coord HexCoord) bool {
	h := m.Hexes[coord]
	return h != nil && h.Terrain != TerrainWall
}

// ZoneOf buckets a coordinate into a square block of axial space.
func (m *Map) ZoneOf(coord HexCoord) ZoneID {
	return ZoneID(fmt.Sprintf("Z%d_%d", floorDiv(coord.Q, m.ZoneSize), floorDiv(coord.R, m.ZoneSize)))
}

// Zones returns every zone containing at least one passable hex, sorted.
func (m *Map) Zones() []ZoneID {
	seen := make(map[ZoneID]bool)
	for _, h := range m.Hexes {
		if h.Terrain != TerrainWall {
			seen[h.Zone] = true
		}
	}
	zones := make([]ZoneID, 0, len(seen))
	for z := range seen {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i] < zones[j] })
	return zones
}

// ZoneHexes returns the passable coordinates of a zone in a stable order.
func (m *Map) ZoneHexes(zone ZoneID) []HexCoord {
	var coords []HexCoord
	for c, h := range m.Hexes {
		if h.Zone == zone && h.Terrain != TerrainWall {
			coords = append(coords, c)
		}
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].Q != coords[j].Q {
			return coords[i].Q < coords[j].Q
		}
		return coords[i].R < coords[j].R
	})
	return coords
}

// HexCount returns the total number of hexes in the map.
func (m *Map) HexCount() int {
	return len(m.Hexes)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, hexes=%d, zone_size=%d)", m.Radius, m.HexCount(), m.ZoneSize)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
