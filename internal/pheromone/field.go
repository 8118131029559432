// Package pheromone implements the trail lifecycle: decay, consolidation,
// and directional influence sampling.
// See design doc Section 4.2.
package pheromone

import (
	"math"

	"github.com/talgya/antworld/internal/worldstate"
)

// kindDefaults holds the per-kind default decay, expiry horizon, and
// initial-strength scale used by Emit and Decay.
type kindDefaults struct {
	decayRate     float64
	expiryHorizon uint64
	initial       float64
}

var defaults = map[worldstate.TrailKind]kindDefaults{
	worldstate.TrailFood:        {decayRate: 0.0008, expiryHorizon: 6000, initial: 0.8},
	worldstate.TrailHome:        {decayRate: 0.0006, expiryHorizon: 9000, initial: 0.3},
	worldstate.TrailExploration: {decayRate: 0.003, expiryHorizon: 1500, initial: 0.1},
	worldstate.TrailDanger:      {decayRate: 0.002, expiryHorizon: 3000, initial: 0.6},
	worldstate.TrailTerritory:   {decayRate: 0.0004, expiryHorizon: 15000, initial: 0.5},
	worldstate.TrailRecruitment: {decayRate: 0.0015, expiryHorizon: 2500, initial: 0.6},
	worldstate.TrailNest:        {decayRate: 0.0003, expiryHorizon: 20000, initial: 0.4},
	worldstate.TrailWater:       {decayRate: 0.0007, expiryHorizon: 8000, initial: 0.5},
	worldstate.TrailEnemy:       {decayRate: 0.0025, expiryHorizon: 2000, initial: 0.7},
	worldstate.TrailQuality:     {decayRate: 0.001, expiryHorizon: 5000, initial: 0.4},
	worldstate.TrailDistance:    {decayRate: 0.001, expiryHorizon: 5000, initial: 0.3},
}

// roleSensitivity is the fixed table from design doc Section 4.2.
var roleSensitivity = map[worldstate.RoleTag]map[worldstate.TrailKind]float64{
	worldstate.RoleWorker: {
		worldstate.TrailFood: 1.8, worldstate.TrailHome: 1.2, worldstate.TrailDanger: 1.0,
	},
	worldstate.RoleScout: {
		worldstate.TrailExploration: 1.5, worldstate.TrailFood: 1.0, worldstate.TrailDanger: 1.2,
	},
	worldstate.RoleSoldier: {
		worldstate.TrailDanger: 2.0, worldstate.TrailTerritory: 1.6, worldstate.TrailEnemy: 1.8,
	},
	worldstate.RoleQueen: {
		worldstate.TrailHome: 1.0,
	},
}

const defaultSensitivity = 1.0

func sensitivity(role worldstate.RoleTag, kind worldstate.TrailKind) float64 {
	if table, ok := roleSensitivity[role]; ok {
		if v, ok := table[kind]; ok {
			return v
		}
	}
	return defaultSensitivity
}

// Field owns the trail lifecycle against a World. It holds no state of
// its own beyond the World handle it was constructed with (design doc
// Section 9).
type Field struct {
	world *worldstate.World
}

// New creates a pheromone Field over the given world.
func New(world *worldstate.World) *Field {
	return &Field{world: world}
}

// Tick runs decay then consolidation, the two tick-local sub-phases of
// design doc Section 4.2. Influence sampling is a separate, pure read
// entry point (Influence) called by Agent Behavior.
func (f *Field) Tick(tick uint64) {
	f.decay(tick)
	f.consolidate()
}

// decay applies the multiplicative decay formula to every trail and
// removes any trail below epsilon strength or past its expiry tick.
func (f *Field) decay(tick uint64) {
	for _, trail := range f.world.AllTrails() {
		id := trail.ID
		f.world.UpdateTrail(id, func(t *worldstate.PheromoneTrail) {
			t.Age++
			t.Strength *= decayFactor(t)
			if t.Strength > t.MaxStrength {
				t.Strength = t.MaxStrength
			}
		})
	}

	for _, trail := range f.world.AllTrails() {
		if trail.Strength <= worldstate.TrailEpsilon || tick >= trail.ExpiryTick {
			f.world.RemoveTrail(trail.ID)
		}
	}
}

// decayFactor computes f(age, kind, quality, consolidated) from design
// doc Section 4.2: the trail's own per-kind decay rate is the base loss
// per tick, higher quality shrinks that loss (multiplier 1 - 0.3*quality),
// consolidated trails shrink it further (x0.7), and a constant
// environmental factor (~0.999) always applies on top.
func decayFactor(t *worldstate.PheromoneTrail) float64 {
	loss := t.DecayRate * (1.0 - 0.3*t.Quality)
	if t.Consolidated {
		loss *= 0.7
	}
	factor := (1 - loss) * 0.999
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return factor
}

const consolidationRadius = 3.0

// consolidate merges close, same-colony, same-kind, non-consolidated
// trail pairs. Merging is confluent: the result does not depend on pair
// iteration order beyond the tie-break of processing trails in ascending
// id order.
func (f *Field) consolidate() {
	trails := f.world.AllTrails()
	sortTrailsByID(trails)

	merged := make(map[worldstate.TrailID]bool)
	for i, a := range trails {
		if merged[a.ID] || a.Consolidated {
			continue
		}
		for j := i + 1; j < len(trails); j++ {
			b := trails[j]
			if merged[b.ID] || b.Consolidated {
				continue
			}
			if b.ColonyID != a.ColonyID || b.Kind != a.Kind {
				continue
			}
			if a.Position.Dist(b.Position) > consolidationRadius {
				continue
			}

			mergedStrength := (a.Strength + b.Strength) * 1.2
			maxCap := a.MaxStrength
			if b.MaxStrength > maxCap {
				maxCap = b.MaxStrength
			}
			if mergedStrength > maxCap {
				mergedStrength = maxCap
			}
			mergedQuality := (a.Quality + b.Quality) / 2
			mergedReinforcement := a.Reinforcement + b.Reinforcement

			var dir float64
			hasDir := a.HasDirection || b.HasDirection
			if a.HasDirection && b.HasDirection {
				wx := math.Cos(a.Direction)*a.Strength + math.Cos(b.Direction)*b.Strength
				wy := math.Sin(a.Direction)*a.Strength + math.Sin(b.Direction)*b.Strength
				dir = math.Atan2(wy, wx)
			} else if a.HasDirection {
				dir = a.Direction
			} else if b.HasDirection {
				dir = b.Direction
			}

			f.world.UpdateTrail(a.ID, func(t *worldstate.PheromoneTrail) {
				t.Strength = mergedStrength
				t.Quality = mergedQuality
				t.Reinforcement = mergedReinforcement
				t.Direction = dir
				t.HasDirection = hasDir
				t.Consolidated = true
			})
			f.world.RemoveTrail(b.ID)
			merged[b.ID] = true
			// The survivor is now consolidated and ineligible for
			// further merging this tick.
			a.Consolidated = true
			break
		}
	}
}

func sortTrailsByID(trails []*worldstate.PheromoneTrail) {
	// Small simulation-scale insertion sort avoids pulling in sort just
	// for a stable-by-id tie-break; consolidation runs every tick.
	for i := 1; i < len(trails); i++ {
		for j := i; j > 0 && trails[j].ID < trails[j-1].ID; j-- {
			trails[j], trails[j-1] = trails[j-1], trails[j]
		}
	}
}

// InfluenceResult is the (direction, scalar strength) pair returned by
// Influence. A zero Strength means "no influence" and callers must treat
// it as such.
type InfluenceResult struct {
	Direction float64
	Strength  float64
}

// Influence samples the pheromone field around position for the given
// colony, radius, kind filter, and role, per the formula in design doc
// Section 4.2. It is a pure read and never mutates the world.
func (f *Field) Influence(position worldstate.Vec2, colony worldstate.ColonyID, radius float64, kinds []worldstate.TrailKind, role worldstate.RoleTag) InfluenceResult {
	kindSet := make(map[worldstate.TrailKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	var sumX, sumY, sumW float64
	for _, t := range f.world.TrailsWithin(position, radius) {
		if t.ColonyID != colony {
			continue
		}
		if len(kindSet) > 0 && !kindSet[t.Kind] {
			continue
		}

		d := position.Dist(t.Position)
		if !t.HasDirection && d < 1e-9 {
			// A directionless trail at the sample point has no usable
			// bearing.
			continue
		}
		qualityFactor := 1.0
		if t.Kind == worldstate.TrailFood {
			qualityFactor = 1 + 0.5*t.Quality
		}
		w := t.Strength * math.Exp(-3*d/radius) * sensitivity(role, t.Kind) * qualityFactor

		dir := t.Direction
		if !t.HasDirection {
			dir = math.Atan2(t.Position.Y-position.Y, t.Position.X-position.X)
		}
		sumX += math.Cos(dir) * w
		sumY += math.Sin(dir) * w
		sumW += w
	}

	if sumW == 0 {
		return InfluenceResult{}
	}
	return InfluenceResult{Direction: math.Atan2(sumY, sumX), Strength: sumW}
}

// EmitParams describes a trail emission request from Agent Behavior.
type EmitParams struct {
	ColonyID      worldstate.ColonyID
	Kind          worldstate.TrailKind
	Position      worldstate.Vec2
	EmittingAgent worldstate.AgentID
	RoleScale     float64 // role-based strength multiplier, 1.0 if not applicable
	SourceQuality float64 // 0 if not a Food emission
	TargetFoodID  worldstate.FoodID
	HasTargetFood bool
	Direction     float64
	HasDirection  bool
	MaxStrength   float64
}

// Emit writes a new trail: a single-write operation per design doc
// Section 4.2.
func (f *Field) Emit(tick uint64, p EmitParams) {
	d := defaults[p.Kind]
	strength := d.initial * p.RoleScale
	if p.Kind == worldstate.TrailFood {
		strength *= 1 + 0.5*p.SourceQuality
	}
	maxStrength := p.MaxStrength
	if maxStrength <= 0 {
		maxStrength = 1.0
	}
	if strength > maxStrength {
		strength = maxStrength
	}

	trail := &worldstate.PheromoneTrail{
		ID:            f.world.NextTrailID(),
		ColonyID:      p.ColonyID,
		Kind:          p.Kind,
		Position:      p.Position,
		Strength:      strength,
		MaxStrength:   maxStrength,
		DecayRate:     d.decayRate,
		ExpiryTick:    tick + d.expiryHorizon,
		TargetFoodID:  p.TargetFoodID,
		HasTargetFood: p.HasTargetFood,
		EmittingAgent: p.EmittingAgent,
		Quality:       p.SourceQuality,
		Direction:     p.Direction,
		HasDirection:  p.HasDirection,
	}
	f.world.InsertTrail(trail)
}
