// Package antbehavior implements the per-agent decision/locomotion
// pipeline: aging, the Wandering/SeekingFood/CarryingFood/... state
// machine, motion with boundary reflection, and pheromone emission.
// See design doc Section 4.3. Each agent's tick is two-phase: a pure
// decision over current state and role, then an executor that applies
// the chosen action through the world's update operations.
package antbehavior

import (
	"log/slog"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/antworld/internal/pheromone"
	"github.com/talgya/antworld/internal/simrand"
	"github.com/talgya/antworld/internal/worldstate"
)

const (
	defaultMaxTurnRate  = 0.1 // radians/tick, design doc Section 6 default
	energyDrainPerTick  = 1
	collectLimitPerTick = 5
	depositBlendCap     = 0.3
)

// ActionKind enumerates the possible per-tick actions.
type ActionKind uint8

const (
	ActionWander ActionKind = iota
	ActionSeek
	ActionMoveToTarget
	ActionCollect
	ActionReturnToColony
	ActionDeposit
	ActionFollow
	ActionExplore
	ActionPatrol
	ActionDie
)

// Runner executes Agent Behavior for every non-dead agent exactly once
// per tick, in parallel batches of independent agents (design doc
// Section 5).
type Runner struct {
	world       *worldstate.World
	field       *pheromone.Field
	rngPool     *simrand.Pool
	batchSize   int
	maxTurnRate float64
}

// Config carries the behavior knobs from design doc Section 6.
type Config struct {
	BatchSize   int
	MaxTurnRate float64
}

// New creates a behavior Runner over world/field using rngPool for
// per-worker randomness.
func New(world *worldstate.World, field *pheromone.Field, rngPool *simrand.Pool, cfg Config) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxTurnRate <= 0 {
		cfg.MaxTurnRate = defaultMaxTurnRate
	}
	return &Runner{world: world, field: field, rngPool: rngPool, batchSize: cfg.BatchSize, maxTurnRate: cfg.MaxTurnRate}
}

// Run processes every non-dead agent exactly once this tick. Agents are
// partitioned into batches; each pool worker owns its RNG stream and
// processes its batches sequentially, so a stream is never shared
// between goroutines. Within a batch agents are processed sequentially,
// and a single agent's decisions and writes within the tick are
// sequential (design doc Section 4.3, Section 5).
func (r *Runner) Run(tick uint64) error {
	agentList := r.world.AllAgents()

	var batches [][]*worldstate.Agent
	for start := 0; start < len(agentList); start += r.batchSize {
		end := start + r.batchSize
		if end > len(agentList) {
			end = len(agentList)
		}
		batches = append(batches, agentList[start:end])
	}

	workers := r.rngPool.Len()
	if workers > len(batches) {
		workers = len(batches)
	}

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		rng := r.rngPool.Worker(w)
		g.Go(func() error {
			for i := w; i < len(batches); i += workers {
				for _, a := range batches[i] {
					r.processOne(tick, a, rng)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) processOne(tick uint64, a *worldstate.Agent, rng *rand.Rand) {
	if a.State == worldstate.StateDead {
		return
	}

	lifespan := defaultLifespan
	if t, ok := r.world.AgentType(a.TypeID); ok {
		lifespan = t.LifespanTicks
	} else if !a.TypeWarned {
		slog.Debug("antbehavior: agent has no type, using default lifespan", "agent", a.ID)
		r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
			ag.TypeWarned = true
		})
		a.TypeWarned = true
	}

	// 1. Aging & energy.
	newAge := a.Age + 1
	newEnergy := a.Energy - energyDrainPerTick
	if newEnergy < 0 {
		newEnergy = 0
	}
	if newAge > lifespan || newEnergy <= 0 {
		r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
			ag.Age = newAge
			ag.Energy = newEnergy
			ag.State = worldstate.StateDead
		})
		return
	}
	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.Age = newAge
		ag.Energy = newEnergy
	})
	a.Age, a.Energy = newAge, newEnergy

	// 2. Decide.
	action := r.decide(tick, a)

	// 3. Execute.
	r.execute(tick, a, action, rng)

	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.LastActionTick = tick
	})
}

const defaultLifespan = 20000

// decide determines the action for this agent based on its current state
// and role, per design doc Section 4.3 step 2.
func (r *Runner) decide(tick uint64, a *worldstate.Agent) ActionKind {
	params := paramsFor(a.Role)

	switch a.State {
	case worldstate.StateWandering:
		nearby := r.world.FoodWithin(a.Position, params.ScanRadius)
		if len(nearby) > 0 {
			if a.Role == worldstate.RoleSoldier {
				closest := closestFood(a.Position, nearby)
				if a.Position.Dist(closest.Position) <= params.EngageRadius {
					return ActionSeek
				}
			} else {
				return ActionSeek
			}
		}

		inf := r.field.Influence(a.Position, a.ColonyID, params.InfluenceRadius, nil, a.Role)
		if inf.Strength > params.FollowThreshold {
			return ActionFollow
		}

		switch params.IdleAction {
		case worldstate.StateExploring:
			return ActionExplore
		case worldstate.StatePatrolling:
			return ActionPatrol
		default:
			return ActionWander
		}

	case worldstate.StateSeekingFood:
		if a.Target.Kind == worldstate.TargetFood {
			if food, ok := r.world.GetFood(a.Target.FoodID); ok {
				if a.Position.Dist(food.Position) <= 5 {
					return ActionCollect
				}
				return ActionMoveToTarget
			}
		}
		return ActionWander

	case worldstate.StateCarryingFood:
		return ActionReturnToColony

	default:
		return ActionWander
	}
}

func closestFood(from worldstate.Vec2, foods []*worldstate.FoodSource) *worldstate.FoodSource {
	best := foods[0]
	bestDist := from.Dist(best.Position)
	for _, f := range foods[1:] {
		if d := from.Dist(f.Position); d < bestDist {
			best, bestDist = f, d
		}
	}
	return best
}
