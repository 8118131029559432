package antbehavior

import (
	"math"
	"testing"

	"github.com/talgya/antworld/internal/worldstate"
)

func TestReflectMirrorsAcrossLeftBoundary(t *testing.T) {
	// Agent at (1,500) heading pi (pointing in -x direction) at speed 2;
	// its one-tick step crosses the left edge, so after reflecting off it
	// x should be >= 0 and the heading's x-component should be
	// non-negative (design doc Section 8 scenario 4).
	r := newTestRunner(worldstate.New(1000, 1000))
	a := &worldstate.Agent{Position: worldstate.Vec2{X: 1, Y: 500}, Heading: math.Pi}

	newPos, newHeading := r.moveTowards(a, math.Pi, 2)
	if newPos.X < 0 {
		t.Fatalf("expected x >= 0 after reflection, got %f", newPos.X)
	}
	if math.Cos(newHeading) < 0 {
		t.Fatalf("expected reflected heading's x-component to be non-negative, got heading %f", newHeading)
	}
}

func TestReflectKeepsPositionInBounds(t *testing.T) {
	cases := []struct {
		x, y, heading float64
	}{
		{-5, 500, 0},
		{1005, 500, math.Pi},
		{500, -5, math.Pi / 2},
		{500, 1005, -math.Pi / 2},
	}
	for _, c := range cases {
		p, h := reflect(worldstate.Vec2{X: c.x, Y: c.y}, c.heading, 1000, 1000)
		if p.X < 0 || p.X > 1000 || p.Y < 0 || p.Y > 1000 {
			t.Fatalf("position out of bounds after reflection: %+v", p)
		}
		if h < 0 || h >= 2*math.Pi {
			t.Fatalf("heading not normalized to [0, 2pi): %f", h)
		}
	}
}

func TestTurnTowardClampsToMaxDelta(t *testing.T) {
	got := turnToward(0, math.Pi, 0.1)
	diff := math.Abs(got - 0)
	if diff > 0.1+1e-9 {
		t.Fatalf("expected turn clamped to 0.1 rad, got diff %f", diff)
	}
}

func TestClampBounds(t *testing.T) {
	if clamp(-1, 0, 1) != 0 {
		t.Fatalf("expected clamp to floor at 0")
	}
	if clamp(5, 0, 1) != 1 {
		t.Fatalf("expected clamp to ceiling at 1")
	}
	if clamp(0.5, 0, 1) != 0.5 {
		t.Fatalf("expected clamp to pass through in-range value")
	}
}
