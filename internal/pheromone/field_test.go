package pheromone

import (
	"testing"

	"github.com/talgya/antworld/internal/worldstate"
)

func TestDecayReducesStrengthButStaysPositive(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := New(w)

	trail := &worldstate.PheromoneTrail{
		ID: w.NextTrailID(), Kind: worldstate.TrailFood,
		Strength: 0.8, MaxStrength: 1.0, DecayRate: 0.0003,
		ExpiryTick: 15000,
	}
	w.InsertTrail(trail)

	for tick := uint64(1); tick <= 1000; tick++ {
		f.Tick(tick)
	}

	got, ok := w.GetTrail(trail.ID)
	if !ok {
		t.Fatalf("trail should still be present after 1000 ticks")
	}
	if got.Strength >= 0.8 || got.Strength <= 0 {
		t.Fatalf("expected 0 < strength < 0.8, got %f", got.Strength)
	}
}

func TestTrailExpiresAtExpiryTick(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := New(w)

	trail := &worldstate.PheromoneTrail{
		ID: w.NextTrailID(), Kind: worldstate.TrailFood,
		Strength: 0.8, MaxStrength: 1.0, DecayRate: 0.0003,
		ExpiryTick: 20,
	}
	w.InsertTrail(trail)

	for tick := uint64(1); tick <= 20; tick++ {
		f.Tick(tick)
	}

	if _, ok := w.GetTrail(trail.ID); ok {
		t.Fatalf("trail should be gone at or past expiry tick")
	}
}

func TestConsolidationMergesCloseSameColonySameKindTrails(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := New(w)

	a := &worldstate.PheromoneTrail{
		ID: w.NextTrailID(), ColonyID: 1, Kind: worldstate.TrailFood,
		Position: worldstate.Vec2{X: 10, Y: 10}, Strength: 0.4, MaxStrength: 1.0,
		ExpiryTick: 99999,
	}
	b := &worldstate.PheromoneTrail{
		ID: w.NextTrailID(), ColonyID: 1, Kind: worldstate.TrailFood,
		Position: worldstate.Vec2{X: 11, Y: 10}, Strength: 0.3, MaxStrength: 1.0,
		ExpiryTick: 99999,
	}
	w.InsertTrail(a)
	w.InsertTrail(b)

	f.consolidate()

	trails := w.AllTrails()
	if len(trails) != 1 {
		t.Fatalf("expected trails to merge into one, got %d", len(trails))
	}
	if !trails[0].Consolidated {
		t.Fatalf("expected merged trail to be flagged consolidated")
	}
}

func TestInfluenceZeroWhenNoMatchingTrails(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := New(w)

	res := f.Influence(worldstate.Vec2{X: 0, Y: 0}, 1, 50, []worldstate.TrailKind{worldstate.TrailFood}, worldstate.RoleWorker)
	if res.Strength != 0 {
		t.Fatalf("expected zero influence with no trails, got %+v", res)
	}
}

func TestInfluenceNonZeroTowardTrail(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := New(w)

	trail := &worldstate.PheromoneTrail{
		ID: w.NextTrailID(), ColonyID: 1, Kind: worldstate.TrailFood,
		Position: worldstate.Vec2{X: 10, Y: 0}, Strength: 0.8, MaxStrength: 1.0,
		ExpiryTick: 99999,
	}
	w.InsertTrail(trail)

	res := f.Influence(worldstate.Vec2{X: 0, Y: 0}, 1, 50, []worldstate.TrailKind{worldstate.TrailFood}, worldstate.RoleWorker)
	if res.Strength <= 0 {
		t.Fatalf("expected positive influence, got %+v", res)
	}
}
