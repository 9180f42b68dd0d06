// Package maze generates the shared maze configuration a venture's sessions
// compete on. Generation is a pure function of its inputs so every session of
// one venture sees a byte-identical layout.
package maze

import "fmt"

// Cell is a grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pattern is a discoverable sub-objective placed in the maze.
type Pattern struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Location Cell   `json:"location"`
}

// Configuration is the immutable maze layout generated once per venture.
type Configuration struct {
	Side     int       `json:"side"`
	Start    Cell      `json:"start"`
	End      Cell      `json:"end"`
	Walls    []Cell    `json:"walls"`
	Patterns []Pattern `json:"patterns"`
	Seed     int64     `json:"seed"`
}

// HasWall reports whether the cell at (x, y) is a wall.
func (c Configuration) HasWall(x, y int) bool {
	for _, w := range c.Walls {
		if w.X == x && w.Y == y {
			return true
		}
	}
	return false
}

// Direction of a single move.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Delta returns the unit position change for the direction.
func (d Direction) Delta() (dx, dy int, err error) {
	switch d {
	case Up:
		return 0, -1, nil
	case Down:
		return 0, 1, nil
	case Left:
		return -1, 0, nil
	case Right:
		return 1, 0, nil
	default:
		return 0, 0, fmt.Errorf("unknown direction %q", d)
	}
}

// ParseDirection validates a wire direction string.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if _, _, err := d.Delta(); err != nil {
		return "", err
	}
	return d, nil
}
