package maze

import (
	"fmt"
	"reflect"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(3, 5, 1234)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(3, 5, 1234)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different configurations")
	}
	c, err := Generate(3, 5, 1235)
	if err != nil {
		t.Fatalf("generate other seed: %v", err)
	}
	if reflect.DeepEqual(a.Walls, c.Walls) {
		t.Fatalf("different seeds produced identical walls")
	}
}

func TestGenerateSizing(t *testing.T) {
	for complexity := 1; complexity <= 10; complexity++ {
		cfg, err := Generate(complexity, 0, 7)
		if err != nil {
			t.Fatalf("complexity %d: %v", complexity, err)
		}
		want := 10 + 2*complexity
		if cfg.Side != want {
			t.Fatalf("complexity %d: side %d, want %d", complexity, cfg.Side, want)
		}
		if cfg.Start != (Cell{X: 0, Y: 0}) {
			t.Fatalf("start %+v, want origin", cfg.Start)
		}
		if cfg.End != (Cell{X: want - 1, Y: want - 1}) {
			t.Fatalf("end %+v, want opposite corner", cfg.End)
		}
	}
}

func TestGenerateComplexityRange(t *testing.T) {
	if _, err := Generate(0, 1, 1); err == nil {
		t.Fatalf("expected error for complexity 0")
	}
	if _, err := Generate(11, 1, 1); err == nil {
		t.Fatalf("expected error for complexity 11")
	}
	if _, err := Generate(1, -1, 1); err == nil {
		t.Fatalf("expected error for negative pattern count")
	}
}

func TestGenerateKeepsStartAndEndOpen(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		cfg, err := Generate(2, 3, seed)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if cfg.HasWall(cfg.Start.X, cfg.Start.Y) {
			t.Fatalf("seed %d: wall on start cell", seed)
		}
		if cfg.HasWall(cfg.End.X, cfg.End.Y) {
			t.Fatalf("seed %d: wall on end cell", seed)
		}
	}
}

func TestGeneratePatternsCycleTypes(t *testing.T) {
	cfg, err := Generate(1, 7, 99)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cfg.Patterns) != 7 {
		t.Fatalf("patterns %d, want 7", len(cfg.Patterns))
	}
	wantTypes := []string{"quantum", "neural", "cosmic", "crystal", "void", "quantum", "neural"}
	for i, p := range cfg.Patterns {
		if p.Type != wantTypes[i] {
			t.Fatalf("pattern %d type %q, want %q", i, p.Type, wantTypes[i])
		}
		wantID := fmt.Sprintf("pattern_%d", i+1)
		if p.ID != wantID {
			t.Fatalf("pattern %d id %q, want %q", i, p.ID, wantID)
		}
		if p.Location.X < 0 || p.Location.X >= cfg.Side || p.Location.Y < 0 || p.Location.Y >= cfg.Side {
			t.Fatalf("pattern %d location %+v outside grid", i, p.Location)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"up", "down", "left", "right"} {
		if _, err := ParseDirection(s); err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
	dx, dy, err := Up.Delta()
	if err != nil || dx != 0 || dy != -1 {
		t.Fatalf("up delta (%d,%d): %v", dx, dy, err)
	}
}
