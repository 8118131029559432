package worldstate

import (
	"sync"
	"testing"
)

func TestInsertGetUpdateRemoveAgent(t *testing.T) {
	w := New(1000, 1000)
	a := &Agent{ID: w.NextAgentID(), Position: Vec2{X: 10, Y: 10}}
	w.InsertAgent(a)

	got, ok := w.GetAgent(a.ID)
	if !ok || got.Position.X != 10 {
		t.Fatalf("expected agent to be retrievable, got %+v ok=%v", got, ok)
	}

	w.UpdateAgent(a.ID, func(ag *Agent) { ag.Health = 42 })
	got, _ = w.GetAgent(a.ID)
	if got.Health != 42 {
		t.Fatalf("expected health 42, got %d", got.Health)
	}

	// Update on a missing id is a no-op, not an error.
	w.UpdateAgent(AgentID(99999), func(ag *Agent) { ag.Health = 1 })

	w.RemoveAgent(a.ID)
	if _, ok := w.GetAgent(a.ID); ok {
		t.Fatalf("expected agent to be removed")
	}
}

func TestDrainDirtyClearsOnlyDrained(t *testing.T) {
	w := New(1000, 1000)
	a1 := &Agent{ID: w.NextAgentID()}
	a2 := &Agent{ID: w.NextAgentID()}
	w.InsertAgent(a1)
	w.InsertAgent(a2)

	dirty := w.DrainDirtyAgents()
	if len(dirty) != 2 {
		t.Fatalf("expected 2 dirty ids, got %d", len(dirty))
	}

	if dirty2 := w.DrainDirtyAgents(); len(dirty2) != 0 {
		t.Fatalf("expected no dirty ids after drain, got %d", len(dirty2))
	}

	w.UpdateAgent(a1.ID, func(ag *Agent) { ag.Age++ })
	if dirty3 := w.DrainDirtyAgents(); len(dirty3) != 1 || dirty3[0] != a1.ID {
		t.Fatalf("expected only a1 dirty, got %v", dirty3)
	}
}

func TestEntitiesWithinRadius(t *testing.T) {
	w := New(1000, 1000)
	near := &Agent{ID: w.NextAgentID(), Position: Vec2{X: 100, Y: 100}}
	far := &Agent{ID: w.NextAgentID(), Position: Vec2{X: 900, Y: 900}}
	w.InsertAgent(near)
	w.InsertAgent(far)

	within := w.AgentsWithin(Vec2{X: 100, Y: 100}, 10)
	if len(within) != 1 || within[0].ID != near.ID {
		t.Fatalf("expected only near agent within radius, got %v", within)
	}
}

func TestConcurrentUpdatesToDistinctIDsDoNotDeadlock(t *testing.T) {
	w := New(1000, 1000)
	ids := make([]AgentID, 0, 200)
	for i := 0; i < 200; i++ {
		id := w.NextAgentID()
		w.InsertAgent(&Agent{ID: id})
		ids = append(ids, id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id AgentID) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				w.UpdateAgent(id, func(a *Agent) { a.Age++ })
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		a, _ := w.GetAgent(id)
		if a.Age != 50 {
			t.Fatalf("agent %d: expected age 50, got %d", id, a.Age)
		}
	}
}

func TestAgentStateStringRoundTrip(t *testing.T) {
	states := []AgentState{StateWandering, StateSeekingFood, StateCarryingFood,
		StateFollowing, StateExploring, StatePatrolling, StateDead}
	for _, s := range states {
		if got := ParseAgentState(s.String()); got != s {
			t.Fatalf("round trip failed for %v: got %v", s, got)
		}
	}
}
