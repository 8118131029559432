package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/talgya/antworld/internal/worldstate"
)

func recvFrame(t *testing.T, out <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-out:
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestFirstTickAlwaysSendsFullState(t *testing.T) {
	world := worldstate.New(100, 100)
	world.InsertAgent(&worldstate.Agent{ID: 1, ColonyID: 1, Position: worldstate.Vec2{X: 5, Y: 5}})

	hub := New(world, "sim-1")
	_, out := hub.Subscribe()

	hub.Tick(1)

	var frame map[string]any
	if err := json.Unmarshal(recvFrame(t, out), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame["type"] != typeFullState {
		t.Fatalf("expected FullState on first tick, got %v", frame["type"])
	}
}

func TestSubsequentTickSendsDeltaWithOnlyChangedEntities(t *testing.T) {
	world := worldstate.New(100, 100)
	world.InsertAgent(&worldstate.Agent{ID: 1, Position: worldstate.Vec2{X: 0, Y: 0}})
	world.InsertAgent(&worldstate.Agent{ID: 2, Position: worldstate.Vec2{X: 50, Y: 50}})
	world.InsertFood(&worldstate.FoodSource{ID: 1, Amount: 10})

	hub := New(world, "sim-1")
	_, out := hub.Subscribe()

	hub.Tick(1) // full
	recvFrame(t, out)

	world.UpdateAgent(1, func(a *worldstate.Agent) { a.Position.X = 1 })
	world.UpdateFood(1, func(f *worldstate.FoodSource) { f.Amount = 9 })

	hub.Tick(2)
	var delta DeltaUpdate
	if err := json.Unmarshal(recvFrame(t, out), &delta); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if delta.Type != typeDeltaUpdate {
		t.Fatalf("expected DeltaUpdate, got %s", delta.Type)
	}
	if len(delta.UpdatedAnts) != 1 || delta.UpdatedAnts[0].ID != 1 {
		t.Fatalf("expected exactly agent 1 updated, got %+v", delta.UpdatedAnts)
	}
	if len(delta.UpdatedFoodSources) != 1 || delta.UpdatedFoodSources[0].ID != 1 {
		t.Fatalf("expected exactly food 1 updated, got %+v", delta.UpdatedFoodSources)
	}
}

func TestRemovedAgentAndFoodIDsReported(t *testing.T) {
	world := worldstate.New(100, 100)
	world.InsertAgent(&worldstate.Agent{ID: 1})
	world.InsertFood(&worldstate.FoodSource{ID: 1, Amount: 5})

	hub := New(world, "sim-1")
	_, out := hub.Subscribe()
	hub.Tick(1)
	recvFrame(t, out)

	world.RemoveAgent(1)
	world.RemoveFood(1)

	hub.Tick(2)
	var delta DeltaUpdate
	if err := json.Unmarshal(recvFrame(t, out), &delta); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(delta.RemovedAntIDs) != 1 || delta.RemovedAntIDs[0] != 1 {
		t.Fatalf("expected agent 1 removed, got %+v", delta.RemovedAntIDs)
	}
	if len(delta.RemovedFoodSourceIDs) != 1 || delta.RemovedFoodSourceIDs[0] != 1 {
		t.Fatalf("expected food 1 removed, got %+v", delta.RemovedFoodSourceIDs)
	}
}

func TestRequestFullStateServedAtNextTick(t *testing.T) {
	world := worldstate.New(100, 100)
	world.InsertAgent(&worldstate.Agent{ID: 1})

	hub := New(world, "sim-1")
	subID, out := hub.Subscribe()
	hub.Tick(1)
	recvFrame(t, out)

	hub.Tick(2) // delta, no changes since full
	recvFrame(t, out)

	hub.RequestFullState(subID)
	hub.Tick(3)
	var frame map[string]any
	if err := json.Unmarshal(recvFrame(t, out), &frame); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if frame["type"] != typeFullState {
		t.Fatalf("expected FullState after RequestFullState, got %v", frame["type"])
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	world := worldstate.New(100, 100)
	hub := New(world, "sim-1")
	subID, out := hub.Subscribe()
	hub.Unsubscribe(subID)

	hub.Tick(1)

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel neither closed nor readable after unsubscribe")
	}
}

func TestOneSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	world := worldstate.New(100, 100)
	hub := New(world, "sim-1")

	_, slowOut := hub.Subscribe()
	_, fastOut := hub.Subscribe()

	for i := 0; i < 100; i++ {
		hub.Tick(uint64(i + 1))
	}

	select {
	case <-fastOut:
	default:
		t.Fatal("expected fast subscriber to have a buffered frame")
	}
	_ = slowOut
}
