// World generation using layered simplex noise.
// Elevation raises walls, moisture sinks lowland into swamp, everything else is plains.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius    int     // Hex grid radius
	ZoneSize  int     // Zone edge length in axial units
	Seed      int64   // Random seed (0 = random)
	WallLevel float64 // Elevation above which a hex becomes wall (0.0–1.0)
	SwampWet  float64 // Moisture above which lowland becomes swamp (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:    18,
		ZoneSize:  8,
		Seed:      0,
		WallLevel: 0.78,
		SwampWet:  0.68,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:    5,
		ZoneSize:  4,
		Seed:      42,
		WallLevel: 0.9,
		SwampWet:  0.8,
	}
}

// Generate creates a complete world map with terrain and zones.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	wetNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Radius, cfg.ZoneSize)

	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !m.InBounds(coord) {
				continue
			}

			// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, 4, 0.09, 0.5)
			wet := octaveNoise(wetNoise, x, y, 3, 0.07, 0.5)

			m.Set(&Hex{
				Coord:     coord,
				Terrain:   deriveTerrain(elev, wet, cfg),
				Elevation: elev,
				Moisture:  wet,
			})
		}
	}

	return m
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, wet float64, cfg GenConfig) Terrain {
	if elev > cfg.WallLevel {
		return TerrainWall
	}
	if wet > cfg.SwampWet && elev < 0.5 {
		return TerrainSwamp
	}
	return TerrainPlains
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, hex := range m.Hexes {
		counts[hex.Terrain]++
	}
	return counts
}
