package maze

import (
	"fmt"
	"math/rand"
)

const (
	baseSide        = 10
	sideStep        = 2
	wallProbability = 0.3
)

// patternTypes are assigned cyclically to generated patterns.
var patternTypes = [...]string{"quantum", "neural", "cosmic", "crystal", "void"}

// Generate builds the maze configuration for a venture. Same inputs always
// produce the same configuration; the caller owns seed selection.
//
// Each non-start/end cell independently becomes a wall with probability 0.3.
// There is no start-to-end connectivity guarantee: an unlucky seed can wall
// off the exit, and the venture then settles through the timeout path.
func Generate(complexity, requiredPatterns int, seed int64) (Configuration, error) {
	if complexity < 1 || complexity > 10 {
		return Configuration{}, fmt.Errorf("complexity %d out of range 1-10", complexity)
	}
	if requiredPatterns < 0 {
		return Configuration{}, fmt.Errorf("required patterns %d negative", requiredPatterns)
	}
	rng := rand.New(rand.NewSource(seed))
	side := baseSide + sideStep*complexity
	cfg := Configuration{
		Side:  side,
		Start: Cell{X: 0, Y: 0},
		End:   Cell{X: side - 1, Y: side - 1},
		Seed:  seed,
	}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if (x == cfg.Start.X && y == cfg.Start.Y) || (x == cfg.End.X && y == cfg.End.Y) {
				continue
			}
			if rng.Float64() < wallProbability {
				cfg.Walls = append(cfg.Walls, Cell{X: x, Y: y})
			}
		}
	}
	for i := 0; i < requiredPatterns; i++ {
		cfg.Patterns = append(cfg.Patterns, Pattern{
			ID:   fmt.Sprintf("pattern_%d", i+1),
			Type: patternTypes[i%len(patternTypes)],
			Location: Cell{
				X: rng.Intn(side),
				Y: rng.Intn(side),
			},
		})
	}
	return cfg, nil
}
