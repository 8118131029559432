// Package colony implements population accounting, resource consumption,
// and spawn throttling for colonies.
// See design doc Section 4.4. When no colonies exist at tick start, two
// defaults are seeded at fixed offsets from the world center.
package colony

import (
	"math"
	"math/rand"

	"github.com/talgya/antworld/internal/worldstate"
)

const (
	consumptionPerAgentPerTick = 0.1
	defaultSpawnCadence        = 20
	defaultSpawnCost           = 10
	spawnRadius                = 5.0
	// defaultWorkerSpeed is used only if no Worker AgentType has been
	// registered yet (should not happen in practice: main seeds the
	// default role table before the scheduler starts).
	defaultWorkerSpeed = 1.0
)

// consumptionPriority is the fixed priority list resources are drawn
// from until the tick's demand is met or all stocks are exhausted.
var consumptionPriority = []worldstate.ResourceKind{
	worldstate.ResourceFood, worldstate.ResourceWater, worldstate.ResourceMaterial,
}

// Config controls spawn cadence and caps, bound from design doc
// Section 6's configuration table.
type Config struct {
	SpawnTickInterval int
	SpawnCost         int
	MaxPopulation     int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{SpawnTickInterval: defaultSpawnCadence, SpawnCost: defaultSpawnCost, MaxPopulation: 500}
}

// Manager runs the per-tick colony lifecycle against a World. It keeps a
// per-colony fractional consumption remainder so that the ~0.1 per agent
// per tick rate holds over time even though stocks are integer counts.
type Manager struct {
	world       *worldstate.World
	cfg         Config
	consumeDebt map[worldstate.ColonyID]float64
}

// New creates a colony Manager.
func New(world *worldstate.World, cfg Config) *Manager {
	return &Manager{world: world, cfg: cfg, consumeDebt: make(map[worldstate.ColonyID]float64)}
}

// Tick recounts population, consumes resources, and gates spawning for
// every colony; it bootstraps two default colonies if none exist yet
// (design doc Section 4.4). Dead agents are excluded from the recount
// but stay in the store until the persistence adapter has written their
// final state; store.Sync owns their removal.
func (m *Manager) Tick(tick uint64, rng *rand.Rand) {
	colonies := m.world.AllColonies()
	if len(colonies) == 0 {
		m.bootstrap(rng)
		colonies = m.world.AllColonies()
	}

	agents := m.world.AllAgents()
	liveByColony := make(map[worldstate.ColonyID]int, len(colonies))
	for _, a := range agents {
		if a.State == worldstate.StateDead {
			continue
		}
		liveByColony[a.ColonyID]++
	}

	for _, c := range colonies {
		pop := liveByColony[c.ID]
		m.consumeDebt[c.ID] += consumptionPerAgentPerTick * float64(pop)
		demand := int(m.consumeDebt[c.ID])
		m.consumeDebt[c.ID] -= float64(demand)

		m.world.UpdateColony(c.ID, func(col *worldstate.Colony) {
			col.Population = pop
			consumeResources(col, demand)
		})

		if tick%uint64(m.spawnInterval()) == 0 {
			m.trySpawn(tick, c.ID, pop, rng)
		}
	}
}

func (m *Manager) spawnInterval() int {
	if m.cfg.SpawnTickInterval <= 0 {
		return defaultSpawnCadence
	}
	return m.cfg.SpawnTickInterval
}

// consumeResources draws demand units from the fixed priority list until
// it is met or all stocks are exhausted.
func consumeResources(c *worldstate.Colony, demand int) {
	for _, kind := range consumptionPriority {
		if demand <= 0 {
			return
		}
		take := demand
		if c.Stock[kind] < take {
			take = c.Stock[kind]
		}
		c.Stock[kind] -= take
		demand -= take
	}
}

// trySpawn debits the spawn cost and places a new agent near the colony
// center if the population cap allows it.
func (m *Manager) trySpawn(tick uint64, id worldstate.ColonyID, population int, rng *rand.Rand) {
	maxPop := m.cfg.MaxPopulation
	if maxPop <= 0 {
		maxPop = 500
	}
	if population >= maxPop {
		return
	}

	colony, ok := m.world.GetColony(id)
	if !ok {
		return
	}
	cost := m.cfg.SpawnCost
	if cost <= 0 {
		cost = defaultSpawnCost
	}
	if colony.Stock[worldstate.ResourceFood] < cost {
		return
	}

	m.world.UpdateColony(id, func(c *worldstate.Colony) {
		c.Stock[worldstate.ResourceFood] -= cost
	})

	offsetAngle := rng.Float64() * 2 * math.Pi
	offsetDist := rng.Float64() * spawnRadius
	pos := worldstate.Vec2{
		X: colony.Center.X + math.Cos(offsetAngle)*offsetDist,
		Y: colony.Center.Y + math.Sin(offsetAngle)*offsetDist,
	}

	speed := defaultWorkerSpeed
	var typeID worldstate.AgentTypeID
	if t, ok := m.world.AgentTypeForRole(worldstate.RoleWorker); ok {
		typeID = t.ID
		speed = t.BaseSpeed
	}

	agent := &worldstate.Agent{
		ID:       m.world.NextAgentID(),
		ColonyID: id,
		TypeID:   typeID,
		Role:     worldstate.RoleWorker,
		Position: pos,
		Heading:  rng.Float64() * 2 * math.Pi,
		Speed:    speed,
		Health:   100,
		Energy:   100,
		State:    worldstate.StateWandering,
	}
	m.world.InsertAgent(agent)
}

// bootstrap creates two colonies at fixed offsets from world center, each
// seeded with a default resource stock, when no colonies exist at tick
// start (design doc Section 4.4).
func (m *Manager) bootstrap(rng *rand.Rand) {
	cx, cy := m.world.Width/2, m.world.Height/2
	offset := math.Min(m.world.Width, m.world.Height) / 4

	seedStock := worldstate.ResourceStock{}
	seedStock[worldstate.ResourceFood] = 100

	first := &worldstate.Colony{
		ID: m.world.NextColonyID(), Center: worldstate.Vec2{X: cx - offset, Y: cy},
		Radius: 30, Stock: seedStock, TerritoryRadius: 100, Aggression: 0.3,
	}
	second := &worldstate.Colony{
		ID: m.world.NextColonyID(), Center: worldstate.Vec2{X: cx + offset, Y: cy},
		Radius: 30, Stock: seedStock, TerritoryRadius: 100, Aggression: 0.3,
	}
	m.world.InsertColony(first)
	m.world.InsertColony(second)
}
