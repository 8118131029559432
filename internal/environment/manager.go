// Package environment implements food regeneration, spoilage, and the
// spawning of new food sources.
// See design doc Section 4.5. New sources are rejection-sampled subject
// to a minimum separation from colony centers, with a coherent noise
// field weighting resource density across the map.
package environment

import (
	"math"
	"math/rand"

	"github.com/ojrac/opensimplex-go"

	"github.com/talgya/antworld/internal/worldstate"
)

const (
	regenIntervalTicks    = 10
	regenScaleDown        = 0.1 // regeneration is an order of magnitude slower than harvest
	baseSpawnInterval     = 1000
	eventSpawnInterval    = 100
	eventSpawnProbability = 0.05
	maxFoodSources        = 75
	minDistFromColony     = 30.0
	placementAttempts     = 10
)

// Config controls spawn cadence and caps, bound from design doc
// Section 6's configuration table.
type Config struct {
	FoodSpawnIntervalTicks int
	MaxFoodSources         int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{FoodSpawnIntervalTicks: baseSpawnInterval, MaxFoodSources: maxFoodSources}
}

// Manager runs food regeneration, spoilage, and spawning against a World.
type Manager struct {
	world *worldstate.World
	cfg   Config
	noise opensimplex.Noise
}

// New creates an environment Manager. seed drives both the noise field
// used for resource-density weighting and (indirectly, via the caller's
// rng) placement sampling.
func New(world *worldstate.World, cfg Config, seed int64) *Manager {
	return &Manager{world: world, cfg: cfg, noise: opensimplex.NewNormalized(seed)}
}

// Tick applies regeneration, spoilage, and spawn cadence for one tick.
func (m *Manager) Tick(tick uint64, rng *rand.Rand) {
	if tick%regenIntervalTicks == 0 {
		m.regenerate()
	}
	m.spoil(rng)

	interval := m.cfg.FoodSpawnIntervalTicks
	if interval <= 0 {
		interval = baseSpawnInterval
	}
	if tick%uint64(interval) == 0 {
		m.trySpawnSource(rng)
	}
	if tick%eventSpawnInterval == 0 && rng.Float64() < eventSpawnProbability {
		m.trySpawnSource(rng)
	}
}

// regenerate increases amount for renewable sources below max, scaled
// down to keep regeneration an order of magnitude slower than harvest.
func (m *Manager) regenerate() {
	for _, f := range m.world.AllFood() {
		if !f.Renewable || f.Amount >= f.MaxAmount {
			continue
		}
		gain := int(math.Round(f.RegenRate * regenScaleDown))
		if gain < 1 {
			gain = 1
		}
		m.world.UpdateFood(f.ID, func(food *worldstate.FoodSource) {
			food.Amount += gain
			if food.Amount > food.MaxAmount {
				food.Amount = food.MaxAmount
			}
		})
	}
}

// spoil decays amount by spoilage_rate each tick and removes depleted
// non-renewable sources. Rates below one unit per tick spoil
// stochastically so the long-run loss matches the rate without draining
// a source a whole unit every tick.
func (m *Manager) spoil(rng *rand.Rand) {
	for _, f := range m.world.AllFood() {
		if f.SpoilageRate <= 0 {
			continue
		}
		loss := int(f.SpoilageRate)
		if frac := f.SpoilageRate - float64(loss); frac > 0 && rng.Float64() < frac {
			loss++
		}
		if loss == 0 {
			continue
		}
		m.world.UpdateFood(f.ID, func(food *worldstate.FoodSource) {
			food.Amount -= loss
			if food.Amount < 0 {
				food.Amount = 0
			}
		})
		if updated, ok := m.world.GetFood(f.ID); ok && updated.Amount == 0 && !updated.Renewable {
			m.world.RemoveFood(f.ID)
		}
	}
}

// trySpawnSource rejection-samples a position at least minDistFromColony
// from every colony center, failing silently after placementAttempts
// tries, then places a new food source with randomized parameters
// (design doc Section 4.5).
func (m *Manager) trySpawnSource(rng *rand.Rand) {
	limit := m.cfg.MaxFoodSources
	if limit <= 0 {
		limit = maxFoodSources
	}
	if len(m.world.AllFood()) >= limit {
		return
	}

	colonies := m.world.AllColonies()
	var pos worldstate.Vec2
	placed := false
	for attempt := 0; attempt < placementAttempts; attempt++ {
		candidate := worldstate.Vec2{X: rng.Float64() * m.world.Width, Y: rng.Float64() * m.world.Height}
		ok := true
		for _, c := range colonies {
			if candidate.Dist(c.Center) < minDistFromColony {
				ok = false
				break
			}
		}
		if ok {
			pos, placed = candidate, true
			break
		}
	}
	if !placed {
		return
	}

	kind := worldstate.FoodKind(rng.Intn(4))
	density := m.noise.Eval2(pos.X/50, pos.Y/50)

	maxAmount := 60 + rng.Intn(80)
	maxAmount = int(float64(maxAmount) * (0.6 + density*0.8))
	if maxAmount < 10 {
		maxAmount = 10
	}

	source := &worldstate.FoodSource{
		ID: m.world.NextFoodID(), Position: pos, Kind: kind,
		Amount: maxAmount, MaxAmount: maxAmount,
		RegenRate:    1 + rng.Float64()*4,
		Renewable:    rng.Float64() < 0.6,
		Nutrition:    0.5 + rng.Float64()*0.5,
		SpoilageRate: rng.Float64() * 0.05,
	}
	m.world.InsertFood(source)
}
