package terrain

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"tunnelwar.ai/internal/sim/grid"
)

// GenConfig describes a rectangular slab of layers. Layer 0 is the surface
// (z=0); deeper layers take negative z.
type GenConfig struct {
	SizeX  int
	SizeY  int
	Layers int
	Seed   int64
}

const (
	dirtHPMin   = 30
	dirtHPSpan  = 40
	stoneHPMin  = 80
	stoneHPSpan = 40
	noiseFreq   = 0.12
)

// Generate builds a store with an open surface, a dirt layer and stone
// below. Hit points vary with simplex noise so some underground cells are
// cheaper to dig through than others. Generation queues no notifications.
func Generate(cfg GenConfig) *Store {
	s := NewStore()
	dirtNoise := opensimplex.NewNormalized(cfg.Seed)
	stoneNoise := opensimplex.NewNormalized(cfg.Seed + 1)

	for z := 0; z > -cfg.Layers; z-- {
		for y := 0; y < cfg.SizeY; y++ {
			for x := 0; x < cfg.SizeX; x++ {
				pos := grid.Pos{X: x, Y: y, Z: z}
				fx, fy := float64(x)*noiseFreq, float64(y)*noiseFreq
				switch z {
				case 0:
					s.put(pos, Air())
				case -1:
					hp := dirtHPMin + int(dirtNoise.Eval2(fx, fy)*dirtHPSpan)
					s.put(pos, Dirt(uint16(hp)))
				default:
					n := stoneNoise.Eval3(fx, fy, float64(z)*noiseFreq)
					hp := stoneHPMin + int(n*stoneHPSpan)
					s.put(pos, Stone(uint16(hp)))
				}
			}
		}
	}
	return s
}

// BuildRing places a square ring of walls on the surface around center.
func (s *Store) BuildRing(center grid.Pos, radius int, m BuildMaterial) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx != -radius && dx != radius && dy != -radius && dy != radius {
				continue
			}
			s.SetTile(grid.Pos{X: center.X + dx, Y: center.Y + dy, Z: center.Z}, Wall(m))
		}
	}
}
