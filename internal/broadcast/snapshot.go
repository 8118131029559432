package broadcast

import "github.com/talgya/antworld/internal/worldstate"

// snapshot is the privately retained previous world state the hub diffs
// against each tick, per design doc Section 4.8.
type snapshot struct {
	agents   map[worldstate.AgentID]agentFingerprint
	colonies map[worldstate.ColonyID]colonyFingerprint
	food     map[worldstate.FoodID]int
}

type agentFingerprint struct {
	pos    worldstate.Vec2
	state  worldstate.AgentState
	health int
	energy int
}

type colonyFingerprint struct {
	population int
	stock      worldstate.ResourceStock
}

func takeSnapshot(world *worldstate.World) snapshot {
	s := snapshot{
		agents:   make(map[worldstate.AgentID]agentFingerprint),
		colonies: make(map[worldstate.ColonyID]colonyFingerprint),
		food:     make(map[worldstate.FoodID]int),
	}
	for _, a := range world.AllAgents() {
		s.agents[a.ID] = agentFingerprint{pos: a.Position, state: a.State, health: a.Health, energy: a.Energy}
	}
	for _, c := range world.AllColonies() {
		s.colonies[c.ID] = colonyFingerprint{population: c.Population, stock: c.Stock}
	}
	for _, f := range world.AllFood() {
		s.food[f.ID] = f.Amount
	}
	return s
}

// diff computes the delta sets from design doc Section 4.8:
// updated agents (position/state/health/energy changed), updated
// colonies (population/resources changed), updated food (amount
// changed), all currently live trails treated as append-only, and
// removed agent/food ids (present before, absent now).
func diff(prev snapshot, world *worldstate.World) (
	updatedAgents []*worldstate.Agent,
	updatedColonies []*worldstate.Colony,
	updatedFood []*worldstate.FoodSource,
	newTrails []*worldstate.PheromoneTrail,
	removedAgentIDs []worldstate.AgentID,
	removedFoodIDs []worldstate.FoodID,
) {
	seenAgents := make(map[worldstate.AgentID]struct{})
	for _, a := range world.AllAgents() {
		seenAgents[a.ID] = struct{}{}
		prior, ok := prev.agents[a.ID]
		if !ok || prior.pos != a.Position || prior.state != a.State || prior.health != a.Health || prior.energy != a.Energy {
			updatedAgents = append(updatedAgents, a)
		}
	}
	for id := range prev.agents {
		if _, ok := seenAgents[id]; !ok {
			removedAgentIDs = append(removedAgentIDs, id)
		}
	}

	for _, c := range world.AllColonies() {
		prior, ok := prev.colonies[c.ID]
		if !ok || prior.population != c.Population || prior.stock != c.Stock {
			updatedColonies = append(updatedColonies, c)
		}
	}

	seenFood := make(map[worldstate.FoodID]struct{})
	for _, f := range world.AllFood() {
		seenFood[f.ID] = struct{}{}
		prior, ok := prev.food[f.ID]
		if !ok || prior != f.Amount {
			updatedFood = append(updatedFood, f)
		}
	}
	for id := range prev.food {
		if _, ok := seenFood[id]; !ok {
			removedFoodIDs = append(removedFoodIDs, id)
		}
	}

	newTrails = world.AllTrails()
	return
}
