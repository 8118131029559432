package environment

import (
	"math/rand"
	"testing"

	"github.com/talgya/antworld/internal/worldstate"
)

func TestRegenerateIncreasesRenewableBelowMax(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := &worldstate.FoodSource{ID: w.NextFoodID(), Amount: 10, MaxAmount: 50, RegenRate: 5, Renewable: true}
	w.InsertFood(f)

	m := New(w, DefaultConfig(), 1)
	m.regenerate()

	got, _ := w.GetFood(f.ID)
	if got.Amount <= 10 {
		t.Fatalf("expected amount to increase, got %d", got.Amount)
	}
	if got.Amount > got.MaxAmount {
		t.Fatalf("amount must not exceed max: %d > %d", got.Amount, got.MaxAmount)
	}
}

func TestSpoilRemovesDepletedNonRenewable(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := &worldstate.FoodSource{ID: w.NextFoodID(), Amount: 1, MaxAmount: 50, SpoilageRate: 5, Renewable: false}
	w.InsertFood(f)

	m := New(w, DefaultConfig(), 1)
	m.spoil(rand.New(rand.NewSource(1)))

	if _, ok := w.GetFood(f.ID); ok {
		t.Fatalf("expected depleted non-renewable source to be removed")
	}
}

func TestFractionalSpoilageDoesNotDrainEveryTick(t *testing.T) {
	w := worldstate.New(1000, 1000)
	f := &worldstate.FoodSource{ID: w.NextFoodID(), Amount: 100, MaxAmount: 100, SpoilageRate: 0.05, Renewable: true}
	w.InsertFood(f)

	m := New(w, DefaultConfig(), 1)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		m.spoil(rng)
	}

	got, _ := w.GetFood(f.ID)
	lost := 100 - got.Amount
	// Expected loss over 100 ticks at rate 0.05 is ~5 units; a whole unit
	// per tick would have emptied the source.
	if lost > 20 {
		t.Fatalf("fractional spoilage too aggressive: lost %d in 100 ticks at rate 0.05", lost)
	}
}

func TestTrySpawnRespectsMinDistanceFromColonies(t *testing.T) {
	w := worldstate.New(200, 200)
	w.InsertColony(&worldstate.Colony{ID: w.NextColonyID(), Center: worldstate.Vec2{X: 100, Y: 100}, Radius: 30})

	m := New(w, Config{FoodSpawnIntervalTicks: 1000, MaxFoodSources: 75}, 7)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		m.trySpawnSource(rng)
	}

	for _, f := range w.AllFood() {
		for _, c := range w.AllColonies() {
			if f.Position.Dist(c.Center) < minDistFromColony {
				t.Fatalf("food source %d placed too close to colony: dist=%f", f.ID, f.Position.Dist(c.Center))
			}
		}
	}
}

func TestSpawnRespectsGlobalCap(t *testing.T) {
	w := worldstate.New(1000, 1000)
	m := New(w, Config{FoodSpawnIntervalTicks: 1000, MaxFoodSources: 3}, 3)
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		m.trySpawnSource(rng)
	}
	if got := len(w.AllFood()); got > 3 {
		t.Fatalf("expected at most 3 food sources, got %d", got)
	}
}
