package antbehavior

import (
	"math"
	"math/rand"

	"github.com/talgya/antworld/internal/pheromone"
	"github.com/talgya/antworld/internal/worldstate"
)

// execute runs the chosen action against the agent, mutating world state
// through World's update operations (design doc Section 4.3 step 3 and
// beyond).
func (r *Runner) execute(tick uint64, a *worldstate.Agent, action ActionKind, rng *rand.Rand) {
	switch action {
	case ActionSeek:
		nearby := r.world.FoodWithin(a.Position, paramsFor(a.Role).ScanRadius)
		if len(nearby) == 0 {
			r.setState(a.ID, worldstate.StateWandering, worldstate.Target{})
			return
		}
		target := closestFood(a.Position, nearby)
		r.setState(a.ID, worldstate.StateSeekingFood, worldstate.Target{Kind: worldstate.TargetFood, FoodID: target.ID})
		r.moveSeeking(tick, a, target.Position, rng)

	case ActionMoveToTarget:
		food, ok := r.world.GetFood(a.Target.FoodID)
		if !ok {
			r.setState(a.ID, worldstate.StateWandering, worldstate.Target{})
			return
		}
		r.moveSeeking(tick, a, food.Position, rng)

	case ActionCollect:
		r.collect(tick, a)

	case ActionReturnToColony:
		r.returnToColony(tick, a, rng)

	case ActionFollow:
		r.follow(tick, a, rng)

	case ActionExplore:
		if a.State != worldstate.StateExploring {
			r.setState(a.ID, worldstate.StateExploring, worldstate.Target{})
		}
		r.wanderWithTrail(tick, a, rng, worldstate.TrailExploration, 0.1)

	case ActionPatrol:
		if a.State != worldstate.StatePatrolling {
			r.setState(a.ID, worldstate.StatePatrolling, worldstate.Target{})
		}
		r.wanderWithTrail(tick, a, rng, worldstate.TrailTerritory, 0)

	default: // ActionWander
		if a.State != worldstate.StateWandering {
			r.setState(a.ID, worldstate.StateWandering, worldstate.Target{})
		}
		r.wanderWithTrail(tick, a, rng, worldstate.TrailExploration, 0)
	}
}

func (r *Runner) setState(id worldstate.AgentID, state worldstate.AgentState, target worldstate.Target) {
	r.world.UpdateAgent(id, func(ag *worldstate.Agent) {
		ag.State = state
		ag.Target = target
	})
}

// moveTowards advances position one step toward desiredHeading, clamping
// the turn rate and reflecting off world bounds, per design doc Section
// 4.3 step 3.
func (r *Runner) moveTowards(a *worldstate.Agent, desiredHeading float64, speed float64) (worldstate.Vec2, float64) {
	heading := turnToward(a.Heading, desiredHeading, r.maxTurnRate)
	dx := math.Cos(heading) * speed
	dy := math.Sin(heading) * speed
	next := worldstate.Vec2{X: a.Position.X + dx, Y: a.Position.Y + dy}
	return reflect(next, heading, r.world.Width, r.world.Height)
}

// turnToward clamps the change from current to desired heading to at
// most maxDelta radians per tick.
func turnToward(current, desired, maxDelta float64) float64 {
	diff := worldstate.NormalizeAngle(desired) - worldstate.NormalizeAngle(current)
	if diff > math.Pi {
		diff -= 2 * math.Pi
	} else if diff < -math.Pi {
		diff += 2 * math.Pi
	}
	if diff > maxDelta {
		diff = maxDelta
	} else if diff < -maxDelta {
		diff = -maxDelta
	}
	return worldstate.NormalizeAngle(current + diff)
}

// reflect mirrors a position across any boundary it crosses and negates
// the heading component perpendicular to that edge, renormalizing the
// heading to [0, 2*pi) afterward (design doc Section 4.3 step 3 and the
// GLOSSARY's Reflection entry).
func reflect(p worldstate.Vec2, heading, width, height float64) (worldstate.Vec2, float64) {
	vx := math.Cos(heading)
	vy := math.Sin(heading)

	if p.X < 0 {
		p.X = -p.X
		vx = -vx
	} else if p.X > width {
		p.X = 2*width - p.X
		vx = -vx
	}
	if p.Y < 0 {
		p.Y = -p.Y
		vy = -vy
	} else if p.Y > height {
		p.Y = 2*height - p.Y
		vy = -vy
	}

	// Clamp for pathological double-reflection cases (very high speed)
	// rather than looping; a single reflection per axis per tick is the
	// documented contract.
	if p.X < 0 {
		p.X = 0
	}
	if p.X > width {
		p.X = width
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.Y > height {
		p.Y = height
	}

	return p, worldstate.NormalizeAngle(math.Atan2(vy, vx))
}

func (r *Runner) moveSeeking(tick uint64, a *worldstate.Agent, target worldstate.Vec2, rng *rand.Rand) {
	desired := math.Atan2(target.Y-a.Position.Y, target.X-a.Position.X)

	// Sample Food trails laid by successful foragers; the Home trail this
	// agent emits on its way out would otherwise pull it back along its
	// own path.
	inf := r.field.Influence(a.Position, a.ColonyID, paramsFor(a.Role).InfluenceRadius, []worldstate.TrailKind{worldstate.TrailFood}, a.Role)
	heading, speed := r.blendAndMove(a, desired, inf, rng)

	nextPos, nextHeading := r.moveTowards(a, heading, speed)
	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.Position = nextPos
		ag.Heading = nextHeading
	})

	r.field.Emit(tick, pheromone.EmitParams{
		ColonyID: a.ColonyID, Kind: worldstate.TrailHome, Position: nextPos,
		EmittingAgent: a.ID, RoleScale: 1.0, MaxStrength: 1.0,
	})
}

// blendAndMove computes the agent's effective heading and speed for this
// tick, blending a target direction with pheromone-following per design
// doc Section 4.3's "Pheromone following" paragraph.
func (r *Runner) blendAndMove(a *worldstate.Agent, desired float64, inf pheromone.InfluenceResult, rng *rand.Rand) (float64, float64) {
	weight := clamp(inf.Strength*2, 0, 0.8)
	blended := blendAngles(desired, inf.Direction, weight)
	perturbation := (rng.Float64()*2 - 1) * 0.2 * (1 - weight)
	speed := a.Speed * (1 + inf.Strength*0.5)
	return blended + perturbation, speed
}

func blendAngles(a, b float64, weightB float64) float64 {
	x := math.Cos(a)*(1-weightB) + math.Cos(b)*weightB
	y := math.Sin(a)*(1-weightB) + math.Sin(b)*weightB
	return math.Atan2(y, x)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// collect debits the food source and credits the agent, per design doc
// Section 4.3 step 4.
func (r *Runner) collect(tick uint64, a *worldstate.Agent) {
	food, ok := r.world.GetFood(a.Target.FoodID)
	if !ok {
		r.setState(a.ID, worldstate.StateWandering, worldstate.Target{})
		return
	}

	amount := collectLimitPerTick
	if t, ok := r.world.AgentType(a.TypeID); ok {
		carried := 0
		for _, q := range a.Carried {
			carried += q
		}
		if remaining := t.CarryingCapacity - carried; remaining < amount {
			amount = remaining
		}
	}
	if food.Amount < amount {
		amount = food.Amount
	}
	if amount <= 0 {
		r.setState(a.ID, worldstate.StateWandering, worldstate.Target{})
		return
	}

	r.world.UpdateFood(food.ID, func(f *worldstate.FoodSource) {
		f.Amount -= amount
	})

	quality := 0.0
	if food.MaxAmount > 0 {
		quality = float64(food.Amount) / float64(food.MaxAmount)
	}
	quality *= kindFactor(food.Kind)

	// Picking up is not a motion step, so the agent may reorient freely
	// toward home while stationary at the source.
	homeHeading := a.Heading
	if colony, ok := r.world.GetColony(a.ColonyID); ok {
		homeHeading = worldstate.NormalizeAngle(math.Atan2(colony.Center.Y-a.Position.Y, colony.Center.X-a.Position.X))
	}

	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.Carried[worldstate.ResourceFood] += amount
		ag.State = worldstate.StateCarryingFood
		ag.Target = worldstate.Target{Kind: worldstate.TargetFood, FoodID: food.ID}
		ag.LastVisitedFood = food.ID
		ag.HasLastVisited = true
		ag.Heading = homeHeading
	})

	r.field.Emit(tick, pheromone.EmitParams{
		ColonyID: a.ColonyID, Kind: worldstate.TrailFood, Position: a.Position,
		EmittingAgent: a.ID, RoleScale: 1.0, SourceQuality: quality,
		TargetFoodID: food.ID, HasTargetFood: true, MaxStrength: 1.0,
	})
}

func kindFactor(k worldstate.FoodKind) float64 {
	switch k {
	case worldstate.FoodKindNectar:
		return 1.2
	case worldstate.FoodKindCarrion:
		return 0.9
	case worldstate.FoodKindFungus:
		return 0.8
	default:
		return 1.0
	}
}

// returnToColony steers the agent home, depositing once inside the
// colony radius, per design doc Section 4.3 step 5.
func (r *Runner) returnToColony(tick uint64, a *worldstate.Agent, rng *rand.Rand) {
	colony, ok := r.world.GetColony(a.ColonyID)
	if !ok {
		r.setState(a.ID, worldstate.StateWandering, worldstate.Target{})
		return
	}

	if a.Position.Dist(colony.Center) <= colony.Radius {
		r.deposit(tick, a, colony)
		return
	}

	desired := math.Atan2(colony.Center.Y-a.Position.Y, colony.Center.X-a.Position.X)
	inf := r.field.Influence(a.Position, a.ColonyID, paramsFor(a.Role).InfluenceRadius, []worldstate.TrailKind{worldstate.TrailHome}, a.Role)
	weight := clamp(inf.Strength*2, 0, depositBlendCap)
	heading := blendAngles(desired, inf.Direction, weight)
	perturbation := (rng.Float64()*2 - 1) * 0.2 * (1 - weight)
	speed := a.Speed * (1 + inf.Strength*0.5)

	nextPos, nextHeading := r.moveTowards(a, heading+perturbation, speed)
	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.Position = nextPos
		ag.Heading = nextHeading
	})

	r.field.Emit(tick, pheromone.EmitParams{
		ColonyID: a.ColonyID, Kind: worldstate.TrailFood, Position: nextPos,
		EmittingAgent: a.ID, RoleScale: 0.5 / 0.8, MaxStrength: 1.0,
	})
}

// deposit credits the colony and either sends the agent back for more or
// to Wander, per design doc Section 4.3 step 6.
func (r *Runner) deposit(tick uint64, a *worldstate.Agent, colony *worldstate.Colony) {
	carried := a.Carried
	total := carried.Total()

	r.world.UpdateColony(colony.ID, func(c *worldstate.Colony) {
		c.Stock[worldstate.ResourceFood] += total
	})

	nextState := worldstate.StateWandering
	nextTarget := worldstate.Target{}
	nextHeading := a.Heading
	if a.HasLastVisited {
		if food, ok := r.world.GetFood(a.LastVisitedFood); ok && food.Amount > 0 {
			nextState = worldstate.StateSeekingFood
			nextTarget = worldstate.Target{Kind: worldstate.TargetFood, FoodID: food.ID}
			nextHeading = worldstate.NormalizeAngle(math.Atan2(food.Position.Y-a.Position.Y, food.Position.X-a.Position.X))
		}
	}

	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.Carried = worldstate.ResourceStock{}
		ag.State = nextState
		ag.Target = nextTarget
		ag.Heading = nextHeading
	})

	r.field.Emit(tick, pheromone.EmitParams{
		ColonyID: a.ColonyID, Kind: worldstate.TrailHome, Position: colony.Center,
		EmittingAgent: a.ID, RoleScale: 0.2, MaxStrength: 1.0,
	})
}

// follow steers the agent along the strongest nearby influence, blending
// with a small random perturbation per design doc Section 4.3's
// "Pheromone following" paragraph.
func (r *Runner) follow(tick uint64, a *worldstate.Agent, rng *rand.Rand) {
	params := paramsFor(a.Role)
	inf := r.field.Influence(a.Position, a.ColonyID, params.InfluenceRadius, nil, a.Role)
	if inf.Strength == 0 {
		r.setState(a.ID, worldstate.StateWandering, worldstate.Target{})
		r.wanderWithTrail(tick, a, rng, worldstate.TrailExploration, 0)
		return
	}

	weight := clamp(inf.Strength*2, 0, 0.8)
	perturbation := (rng.Float64()*2 - 1) * 0.3 * (1 - weight)
	speed := a.Speed * (1 + inf.Strength*0.5)

	nextPos, nextHeading := r.moveTowards(a, inf.Direction+perturbation, speed)
	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.Position = nextPos
		ag.Heading = nextHeading
		ag.State = worldstate.StateFollowing
	})
}

// wanderWithTrail performs an unguided random walk, optionally emitting a
// weak trail of the given kind (used for Explore and Patrol idle
// policies, and for the plain Wander fallback).
func (r *Runner) wanderWithTrail(tick uint64, a *worldstate.Agent, rng *rand.Rand, kind worldstate.TrailKind, trailStrengthScale float64) {
	perturbation := (rng.Float64()*2 - 1) * 0.3
	desired := a.Heading + perturbation

	nextPos, nextHeading := r.moveTowards(a, desired, a.Speed)
	r.world.UpdateAgent(a.ID, func(ag *worldstate.Agent) {
		ag.Position = nextPos
		ag.Heading = nextHeading
	})

	if trailStrengthScale > 0 {
		r.field.Emit(tick, pheromone.EmitParams{
			ColonyID: a.ColonyID, Kind: kind, Position: nextPos,
			EmittingAgent: a.ID, RoleScale: trailStrengthScale, MaxStrength: 1.0,
		})
	}
}
