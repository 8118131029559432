package antbehavior

import (
	"math"
	"testing"

	"github.com/talgya/antworld/internal/pheromone"
	"github.com/talgya/antworld/internal/simrand"
	"github.com/talgya/antworld/internal/worldstate"
)

func newTestRunner(world *worldstate.World) *Runner {
	field := pheromone.New(world)
	pool := simrand.NewPool(1, 1)
	return New(world, field, pool, Config{BatchSize: 10})
}

func TestProcessOneWarnsOnceForUntypedAgent(t *testing.T) {
	w := worldstate.New(1000, 1000)
	a := &worldstate.Agent{ID: w.NextAgentID(), State: worldstate.StateWandering, Energy: 100}
	w.InsertAgent(a)
	r := newTestRunner(w)
	rng := r.rngPool.Worker(0)

	r.processOne(1, a, rng)
	if !a.TypeWarned {
		t.Fatalf("expected agent marked TypeWarned after first tick with no registered type")
	}

	stored, _ := w.GetAgent(a.ID)
	r.processOne(2, stored, rng)
	if !stored.TypeWarned {
		t.Fatalf("expected TypeWarned to remain set on subsequent ticks")
	}
}

func TestCollectRespectsCarryingCapacity(t *testing.T) {
	w := worldstate.New(1000, 1000)
	w.PutAgentType(&worldstate.AgentType{ID: 1, Role: worldstate.RoleWorker, BaseSpeed: 1.0, CarryingCapacity: 2, LifespanTicks: 20000})

	food := &worldstate.FoodSource{ID: w.NextFoodID(), Position: worldstate.Vec2{X: 10, Y: 10}, Amount: 50, MaxAmount: 50}
	w.InsertFood(food)

	a := &worldstate.Agent{
		ID: w.NextAgentID(), TypeID: 1, Role: worldstate.RoleWorker,
		Position: worldstate.Vec2{X: 10, Y: 10}, Energy: 100,
		State:  worldstate.StateSeekingFood,
		Target: worldstate.Target{Kind: worldstate.TargetFood, FoodID: food.ID},
	}
	w.InsertAgent(a)

	r := newTestRunner(w)
	r.collect(1, a)

	got, _ := w.GetAgent(a.ID)
	total := 0
	for _, q := range got.Carried {
		total += q
	}
	if total != 2 {
		t.Fatalf("expected agent to collect exactly its carrying capacity (2), got %d", total)
	}
}

func TestDeadStateIsTerminal(t *testing.T) {
	w := worldstate.New(1000, 1000)
	w.PutAgentType(&worldstate.AgentType{ID: 1, Role: worldstate.RoleWorker, BaseSpeed: 1.0, CarryingCapacity: 10, LifespanTicks: 20000})
	a := &worldstate.Agent{ID: w.NextAgentID(), TypeID: 1, State: worldstate.StateDead, Energy: 100}
	w.InsertAgent(a)

	r := newTestRunner(w)
	rng := r.rngPool.Worker(0)
	for tick := uint64(1); tick <= 10; tick++ {
		r.processOne(tick, a, rng)
	}

	got, _ := w.GetAgent(a.ID)
	if got.State != worldstate.StateDead {
		t.Fatalf("dead agent must stay dead, got %v", got.State)
	}
	if got.Age != 0 {
		t.Fatalf("dead agent must not age, got %d", got.Age)
	}
}

func TestAgentDiesAtEnergyZero(t *testing.T) {
	w := worldstate.New(1000, 1000)
	w.PutAgentType(&worldstate.AgentType{ID: 1, Role: worldstate.RoleWorker, BaseSpeed: 1.0, CarryingCapacity: 10, LifespanTicks: 20000})
	a := &worldstate.Agent{ID: w.NextAgentID(), TypeID: 1, State: worldstate.StateWandering, Energy: 1}
	w.InsertAgent(a)

	r := newTestRunner(w)
	r.processOne(1, a, r.rngPool.Worker(0))

	got, _ := w.GetAgent(a.ID)
	if got.State != worldstate.StateDead {
		t.Fatalf("expected agent dead at energy 0, got %v", got.State)
	}
}

func TestPickupAndReturnDepositsToColony(t *testing.T) {
	// Design doc Section 8 scenario 2: one colony at (500,500) radius 30,
	// one worker at (510,510), one food source at (540,510) amount 20.
	// Within 60 ticks the worker collects 5, carries it home, and the
	// colony stock increases by exactly what the food source lost.
	w := worldstate.New(1000, 1000)
	w.PutAgentType(&worldstate.AgentType{ID: 1, Role: worldstate.RoleWorker, BaseSpeed: 1.0, CarryingCapacity: 10, LifespanTicks: 20000})

	colony := &worldstate.Colony{ID: w.NextColonyID(), Center: worldstate.Vec2{X: 500, Y: 500}, Radius: 30}
	w.InsertColony(colony)

	food := &worldstate.FoodSource{ID: w.NextFoodID(), Position: worldstate.Vec2{X: 540, Y: 510}, Amount: 20, MaxAmount: 20}
	w.InsertFood(food)

	agent := &worldstate.Agent{
		ID: w.NextAgentID(), ColonyID: colony.ID, TypeID: 1, Role: worldstate.RoleWorker,
		Position: worldstate.Vec2{X: 510, Y: 510}, Speed: 1.0, Health: 100, Energy: 100,
		State: worldstate.StateWandering,
	}
	w.InsertAgent(agent)

	r := newTestRunner(w)
	deposited := false
	for tick := uint64(1); tick <= 60; tick++ {
		if err := r.Run(tick); err != nil {
			t.Fatalf("run tick %d: %v", tick, err)
		}
		c, _ := w.GetColony(colony.ID)
		if c.Stock[worldstate.ResourceFood] > 0 {
			deposited = true
			break
		}
	}
	if !deposited {
		t.Fatalf("expected deposit within 60 ticks")
	}

	c, _ := w.GetColony(colony.ID)
	f, _ := w.GetFood(food.ID)
	if c.Stock[worldstate.ResourceFood] != 20-f.Amount {
		t.Fatalf("conservation violated: colony gained %d but food lost %d",
			c.Stock[worldstate.ResourceFood], 20-f.Amount)
	}
	if c.Stock[worldstate.ResourceFood] != 5 {
		t.Fatalf("expected first deposit of 5, got %d", c.Stock[worldstate.ResourceFood])
	}
}

func TestAgentStaysInBoundsOverManyTicks(t *testing.T) {
	// Design doc Section 8 scenario 1: isolated wanderer stays inside the
	// world and keeps a normalized heading.
	w := worldstate.New(1000, 1000)
	w.PutAgentType(&worldstate.AgentType{ID: 1, Role: worldstate.RoleWorker, BaseSpeed: 1.0, CarryingCapacity: 10, LifespanTicks: 20000})
	a := &worldstate.Agent{
		ID: w.NextAgentID(), TypeID: 1, Role: worldstate.RoleWorker,
		Position: worldstate.Vec2{X: 500, Y: 500}, Speed: 1.0, Health: 100, Energy: 100,
		State: worldstate.StateWandering,
	}
	w.InsertAgent(a)

	r := newTestRunner(w)
	for tick := uint64(1); tick <= 20; tick++ {
		if err := r.Run(tick); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	got, _ := w.GetAgent(a.ID)
	if got.Position.X < 0 || got.Position.X > 1000 || got.Position.Y < 0 || got.Position.Y > 1000 {
		t.Fatalf("agent out of bounds: %+v", got.Position)
	}
	if got.Heading < 0 || got.Heading >= 2*math.Pi {
		t.Fatalf("heading not normalized: %f", got.Heading)
	}
	if got.State != worldstate.StateWandering {
		t.Fatalf("expected worker to remain Wandering, got %v", got.State)
	}
	if len(w.AllTrails()) != 0 {
		t.Fatalf("isolated wanderer should lay no trails, got %d", len(w.AllTrails()))
	}
}
