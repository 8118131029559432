package worldstate

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// shardCount is the number of independent locks each entity store is
// striped over, so updates to distinct ids proceed without serializing
// against one another (design doc Section 5). The linear spatial-scan
// contract of Section 4.1 is unaffected — shards are purely an internal
// concurrency refinement.
const shardCount = 16

func shardFor(id uint64) int {
	return int(id % shardCount)
}

type agentShard struct {
	mu      sync.RWMutex
	entries map[AgentID]*Agent
	dirty   map[AgentID]struct{}
}

type colonyShard struct {
	mu      sync.RWMutex
	entries map[ColonyID]*Colony
	dirty   map[ColonyID]struct{}
}

type foodShard struct {
	mu      sync.RWMutex
	entries map[FoodID]*FoodSource
	dirty   map[FoodID]struct{}
}

type trailShard struct {
	mu      sync.RWMutex
	entries map[TrailID]*PheromoneTrail
	dirty   map[TrailID]struct{}
}

// World owns all entities for one simulation. It is the only write
// target for simulation phases (design doc Section 5); every other
// component holds a shared, read-mostly handle to it. Per design doc
// Section 9, the World handle and its tick counter are the only
// process-wide state, and are injected into every component at
// construction rather than reached through a module-level singleton.
type World struct {
	Width  float64
	Height float64

	tick uint64 // atomic

	agentTypesMu sync.RWMutex
	agentTypes   map[AgentTypeID]*AgentType

	agents   [shardCount]agentShard
	colonies [shardCount]colonyShard
	food     [shardCount]foodShard
	trails   [shardCount]trailShard

	nextAgentID  uint64 // atomic
	nextColonyID uint64 // atomic
	nextFoodID   uint64 // atomic
	nextTrailID  uint64 // atomic
}

// New creates an empty world of the given bounds.
func New(width, height float64) *World {
	w := &World{
		Width:      width,
		Height:     height,
		agentTypes: make(map[AgentTypeID]*AgentType),
	}
	for i := range w.agents {
		w.agents[i] = agentShard{entries: make(map[AgentID]*Agent), dirty: make(map[AgentID]struct{})}
	}
	for i := range w.colonies {
		w.colonies[i] = colonyShard{entries: make(map[ColonyID]*Colony), dirty: make(map[ColonyID]struct{})}
	}
	for i := range w.food {
		w.food[i] = foodShard{entries: make(map[FoodID]*FoodSource), dirty: make(map[FoodID]struct{})}
	}
	for i := range w.trails {
		w.trails[i] = trailShard{entries: make(map[TrailID]*PheromoneTrail), dirty: make(map[TrailID]struct{})}
	}
	return w
}

// Tick returns the current tick counter.
func (w *World) Tick() uint64 { return atomic.LoadUint64(&w.tick) }

// SetTick sets the tick counter.
func (w *World) SetTick(t uint64) { atomic.StoreUint64(&w.tick, t) }

// AdvanceTick increments and returns the new tick counter.
func (w *World) AdvanceTick() uint64 { return atomic.AddUint64(&w.tick, 1) }

// InBounds reports whether a point lies inside the world rectangle.
func (w *World) InBounds(p Vec2) bool {
	return p.X >= 0 && p.X <= w.Width && p.Y >= 0 && p.Y <= w.Height
}

// --- AgentType ---

// PutAgentType registers or replaces an agent type definition.
func (w *World) PutAgentType(t *AgentType) {
	w.agentTypesMu.Lock()
	defer w.agentTypesMu.Unlock()
	w.agentTypes[t.ID] = t
}

// AgentType looks up a type by id.
func (w *World) AgentType(id AgentTypeID) (*AgentType, bool) {
	w.agentTypesMu.RLock()
	defer w.agentTypesMu.RUnlock()
	t, ok := w.agentTypes[id]
	return t, ok
}

// AllAgentTypes returns every registered agent type definition.
func (w *World) AllAgentTypes() []*AgentType {
	w.agentTypesMu.RLock()
	defer w.agentTypesMu.RUnlock()
	out := make([]*AgentType, 0, len(w.agentTypes))
	for _, t := range w.agentTypes {
		out = append(out, t)
	}
	return out
}

// AgentTypeForRole returns the registered agent type definition for a
// role, used by spawn sites that mint new agents and need the role's
// tuning parameters (BaseSpeed, CarryingCapacity, LifespanTicks)
// without hardcoding a type id.
func (w *World) AgentTypeForRole(role RoleTag) (*AgentType, bool) {
	w.agentTypesMu.RLock()
	defer w.agentTypesMu.RUnlock()
	for _, t := range w.agentTypes {
		if t.Role == role {
			return t, true
		}
	}
	return nil, false
}

// --- Agents ---

// InsertAgent adds or overwrites an agent. Overwriting an existing id is
// allowed but logged, per design doc Section 4.1 failure semantics.
func (w *World) InsertAgent(a *Agent) {
	s := &w.agents[shardFor(uint64(a.ID))]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[a.ID]; exists {
		slog.Warn("worldstate: overwriting existing agent", "id", a.ID)
	}
	s.entries[a.ID] = a
	s.dirty[a.ID] = struct{}{}
}

// GetAgent returns the agent for id, or (nil, false) if absent.
func (w *World) GetAgent(id AgentID) (*Agent, bool) {
	s := &w.agents[shardFor(uint64(id))]
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[id]
	return a, ok
}

// UpdateAgent applies fn to the agent under exclusion and marks it dirty.
// A missing id is a no-op, not an error.
func (w *World) UpdateAgent(id AgentID, fn func(*Agent)) {
	s := &w.agents[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.entries[id]
	if !ok {
		return
	}
	fn(a)
	s.dirty[id] = struct{}{}
}

// RemoveAgent deletes an agent by id.
func (w *World) RemoveAgent(id AgentID) {
	s := &w.agents[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.dirty, id)
}

// AllAgents returns a point-in-time snapshot slice of all agents.
func (w *World) AllAgents() []*Agent {
	out := make([]*Agent, 0, 1024)
	for i := range w.agents {
		s := &w.agents[i]
		s.mu.RLock()
		for _, a := range s.entries {
			out = append(out, a)
		}
		s.mu.RUnlock()
	}
	return out
}

// AgentsWithin returns agents whose position lies within radius of center
// (Euclidean distance <= radius); result ordering is unspecified.
func (w *World) AgentsWithin(center Vec2, radius float64) []*Agent {
	var out []*Agent
	for i := range w.agents {
		s := &w.agents[i]
		s.mu.RLock()
		for _, a := range s.entries {
			if a.Position.Dist(center) <= radius {
				out = append(out, a)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// DrainDirtyAgents returns and clears the set of agent ids mutated since
// the last drain.
func (w *World) DrainDirtyAgents() []AgentID {
	var out []AgentID
	for i := range w.agents {
		s := &w.agents[i]
		s.mu.Lock()
		for id := range s.dirty {
			out = append(out, id)
		}
		s.dirty = make(map[AgentID]struct{})
		s.mu.Unlock()
	}
	return out
}

// --- Colonies ---

func (w *World) InsertColony(c *Colony) {
	s := &w.colonies[shardFor(uint64(c.ID))]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[c.ID]; exists {
		slog.Warn("worldstate: overwriting existing colony", "id", c.ID)
	}
	s.entries[c.ID] = c
	s.dirty[c.ID] = struct{}{}
}

func (w *World) GetColony(id ColonyID) (*Colony, bool) {
	s := &w.colonies[shardFor(uint64(id))]
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.entries[id]
	return c, ok
}

func (w *World) UpdateColony(id ColonyID, fn func(*Colony)) {
	s := &w.colonies[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[id]
	if !ok {
		return
	}
	fn(c)
	s.dirty[id] = struct{}{}
}

func (w *World) RemoveColony(id ColonyID) {
	s := &w.colonies[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.dirty, id)
}

func (w *World) AllColonies() []*Colony {
	out := make([]*Colony, 0, 8)
	for i := range w.colonies {
		s := &w.colonies[i]
		s.mu.RLock()
		for _, c := range s.entries {
			out = append(out, c)
		}
		s.mu.RUnlock()
	}
	return out
}

func (w *World) ColoniesWithin(center Vec2, radius float64) []*Colony {
	var out []*Colony
	for i := range w.colonies {
		s := &w.colonies[i]
		s.mu.RLock()
		for _, c := range s.entries {
			if c.Center.Dist(center) <= radius {
				out = append(out, c)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

func (w *World) DrainDirtyColonies() []ColonyID {
	var out []ColonyID
	for i := range w.colonies {
		s := &w.colonies[i]
		s.mu.Lock()
		for id := range s.dirty {
			out = append(out, id)
		}
		s.dirty = make(map[ColonyID]struct{})
		s.mu.Unlock()
	}
	return out
}

// --- Food sources ---

func (w *World) InsertFood(f *FoodSource) {
	s := &w.food[shardFor(uint64(f.ID))]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[f.ID]; exists {
		slog.Warn("worldstate: overwriting existing food source", "id", f.ID)
	}
	s.entries[f.ID] = f
	s.dirty[f.ID] = struct{}{}
}

func (w *World) GetFood(id FoodID) (*FoodSource, bool) {
	s := &w.food[shardFor(uint64(id))]
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.entries[id]
	return f, ok
}

func (w *World) UpdateFood(id FoodID, fn func(*FoodSource)) {
	s := &w.food[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.entries[id]
	if !ok {
		return
	}
	fn(f)
	s.dirty[id] = struct{}{}
}

func (w *World) RemoveFood(id FoodID) {
	s := &w.food[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.dirty, id)
}

func (w *World) AllFood() []*FoodSource {
	out := make([]*FoodSource, 0, 128)
	for i := range w.food {
		s := &w.food[i]
		s.mu.RLock()
		for _, f := range s.entries {
			out = append(out, f)
		}
		s.mu.RUnlock()
	}
	return out
}

func (w *World) FoodWithin(center Vec2, radius float64) []*FoodSource {
	var out []*FoodSource
	for i := range w.food {
		s := &w.food[i]
		s.mu.RLock()
		for _, f := range s.entries {
			if f.Position.Dist(center) <= radius {
				out = append(out, f)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

func (w *World) DrainDirtyFood() []FoodID {
	var out []FoodID
	for i := range w.food {
		s := &w.food[i]
		s.mu.Lock()
		for id := range s.dirty {
			out = append(out, id)
		}
		s.dirty = make(map[FoodID]struct{})
		s.mu.Unlock()
	}
	return out
}

// --- Pheromone trails ---

func (w *World) InsertTrail(t *PheromoneTrail) {
	s := &w.trails[shardFor(uint64(t.ID))]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[t.ID]; exists {
		slog.Warn("worldstate: overwriting existing trail", "id", t.ID)
	}
	s.entries[t.ID] = t
	s.dirty[t.ID] = struct{}{}
}

func (w *World) GetTrail(id TrailID) (*PheromoneTrail, bool) {
	s := &w.trails[shardFor(uint64(id))]
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.entries[id]
	return t, ok
}

func (w *World) UpdateTrail(id TrailID, fn func(*PheromoneTrail)) {
	s := &w.trails[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.entries[id]
	if !ok {
		return
	}
	fn(t)
	s.dirty[id] = struct{}{}
}

func (w *World) RemoveTrail(id TrailID) {
	s := &w.trails[shardFor(uint64(id))]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	delete(s.dirty, id)
}

func (w *World) AllTrails() []*PheromoneTrail {
	out := make([]*PheromoneTrail, 0, 1024)
	for i := range w.trails {
		s := &w.trails[i]
		s.mu.RLock()
		for _, t := range s.entries {
			out = append(out, t)
		}
		s.mu.RUnlock()
	}
	return out
}

func (w *World) TrailsWithin(center Vec2, radius float64) []*PheromoneTrail {
	var out []*PheromoneTrail
	for i := range w.trails {
		s := &w.trails[i]
		s.mu.RLock()
		for _, t := range s.entries {
			if t.Position.Dist(center) <= radius {
				out = append(out, t)
			}
		}
		s.mu.RUnlock()
	}
	return out
}

func (w *World) DrainDirtyTrails() []TrailID {
	var out []TrailID
	for i := range w.trails {
		s := &w.trails[i]
		s.mu.Lock()
		for id := range s.dirty {
			out = append(out, id)
		}
		s.dirty = make(map[TrailID]struct{})
		s.mu.Unlock()
	}
	return out
}

// MarkAgentsDirty re-flags agent ids for the next drain. Used by the
// persistence adapter to put a failed batch back on the retry path
// without re-touching the entities themselves.
func (w *World) MarkAgentsDirty(ids []AgentID) {
	for _, id := range ids {
		s := &w.agents[shardFor(uint64(id))]
		s.mu.Lock()
		if _, ok := s.entries[id]; ok {
			s.dirty[id] = struct{}{}
		}
		s.mu.Unlock()
	}
}

// MarkColoniesDirty re-flags colony ids for the next drain.
func (w *World) MarkColoniesDirty(ids []ColonyID) {
	for _, id := range ids {
		s := &w.colonies[shardFor(uint64(id))]
		s.mu.Lock()
		if _, ok := s.entries[id]; ok {
			s.dirty[id] = struct{}{}
		}
		s.mu.Unlock()
	}
}

// MarkFoodDirty re-flags food source ids for the next drain.
func (w *World) MarkFoodDirty(ids []FoodID) {
	for _, id := range ids {
		s := &w.food[shardFor(uint64(id))]
		s.mu.Lock()
		if _, ok := s.entries[id]; ok {
			s.dirty[id] = struct{}{}
		}
		s.mu.Unlock()
	}
}

// NextAgentID, NextColonyID, NextFoodID and NextTrailID mint ids for
// newly-created entities. They are independent from persistence-assigned
// ids loaded at startup; SeedAgentID and friends advance a counter past
// the highest loaded id so new spawns don't collide with restored state.

// NextAgentID returns the next unused agent id.
func (w *World) NextAgentID() AgentID { return AgentID(atomic.AddUint64(&w.nextAgentID, 1)) }

// NextColonyID returns the next unused colony id.
func (w *World) NextColonyID() ColonyID { return ColonyID(atomic.AddUint64(&w.nextColonyID, 1)) }

// NextFoodID returns the next unused food id.
func (w *World) NextFoodID() FoodID { return FoodID(atomic.AddUint64(&w.nextFoodID, 1)) }

// NextTrailID returns the next unused trail id.
func (w *World) NextTrailID() TrailID { return TrailID(atomic.AddUint64(&w.nextTrailID, 1)) }

// SeedAgentID advances the agent id counter past id if it is behind.
func (w *World) SeedAgentID(id AgentID) {
	for {
		cur := atomic.LoadUint64(&w.nextAgentID)
		if uint64(id) <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&w.nextAgentID, cur, uint64(id)) {
			return
		}
	}
}

// SeedColonyID advances the colony id counter past id if it is behind.
func (w *World) SeedColonyID(id ColonyID) {
	for {
		cur := atomic.LoadUint64(&w.nextColonyID)
		if uint64(id) <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&w.nextColonyID, cur, uint64(id)) {
			return
		}
	}
}

// SeedFoodID advances the food id counter past id if it is behind.
func (w *World) SeedFoodID(id FoodID) {
	for {
		cur := atomic.LoadUint64(&w.nextFoodID)
		if uint64(id) <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&w.nextFoodID, cur, uint64(id)) {
			return
		}
	}
}
