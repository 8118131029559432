package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/talgya/antworld/internal/worldstate"
)

// Hub maintains the subscription set and, once per tick, computes and
// pushes either a FullState or a DeltaUpdate to every subscriber: a map
// of subscriber id to buffered output channel, guarded by an RWMutex,
// with non-blocking sends so a slow subscriber cannot stall the tick.
type Hub struct {
	world        *worldstate.World
	simulationID string

	mu        sync.RWMutex
	subs      map[int]*subscriber
	nextSubID int

	hasSnapshot bool
	prev        snapshot
}

type subscriber struct {
	out         chan []byte
	pendingFull bool
}

// New creates a Hub bound to a world and simulation id.
func New(world *worldstate.World, simulationID string) *Hub {
	return &Hub{
		world:        world,
		simulationID: simulationID,
		subs:         make(map[int]*subscriber),
	}
}

// Subscribe registers a new subscriber and returns its id and a
// buffered channel of outgoing JSON frames. A newly subscribed client
// always receives a FullState on the next Tick, mirroring the Subscribe
// client frame's "enqueue a one-shot FullState" contract.
func (h *Hub) Subscribe() (int, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSubID
	h.nextSubID++
	sub := &subscriber{out: make(chan []byte, 64), pendingFull: true}
	h.subs[id] = sub
	return id, sub.out
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		close(sub.out)
		delete(h.subs, id)
	}
}

// RequestFullState marks a subscriber to receive a FullState at the
// next Tick, per the RequestFullState/Subscribe client frame contract.
func (h *Hub) RequestFullState(id int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sub, ok := h.subs[id]; ok {
		sub.pendingFull = true
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Tick computes the current snapshot, diffs it against the retained
// previous one, and pushes FullState or DeltaUpdate frames to every
// subscriber. A marshal or send failure for one subscriber is logged
// and does not affect any other (design doc Section 4.8).
func (h *Hub) Tick(tick uint64) {
	current := takeSnapshot(h.world)

	var deltaFrame []byte
	var fullFrame []byte

	if h.hasSnapshot {
		updatedAgents, updatedColonies, updatedFood, newTrails, removedAgents, removedFood := diff(h.prev, h.world)
		msg := DeltaUpdate{
			Type: typeDeltaUpdate, SimulationID: h.simulationID, Tick: tick,
			UpdatedAnts: updatedAgents, UpdatedColonies: updatedColonies, UpdatedFoodSources: updatedFood,
			NewPheromoneTrails: newTrails, RemovedAntIDs: removedAgents, RemovedFoodSourceIDs: removedFood,
		}
		b, err := json.Marshal(msg)
		if err != nil {
			slog.Error("broadcast: failed to marshal delta update", "tick", tick, "error", err)
		} else {
			deltaFrame = b
		}
	}

	h.mu.Lock()
	needFull := !h.hasSnapshot
	for _, sub := range h.subs {
		if needFull || sub.pendingFull {
			if fullFrame == nil {
				full := FullState{
					Type: typeFullState, SimulationID: h.simulationID, Tick: tick,
					Ants: h.world.AllAgents(), Colonies: h.world.AllColonies(),
					FoodSources: h.world.AllFood(), PheromoneTrails: h.world.AllTrails(),
				}
				b, err := json.Marshal(full)
				if err != nil {
					slog.Error("broadcast: failed to marshal full state", "tick", tick, "error", err)
					continue
				}
				fullFrame = b
			}
			sendNonBlocking(sub.out, fullFrame)
			sub.pendingFull = false
			continue
		}
		if deltaFrame != nil {
			sendNonBlocking(sub.out, deltaFrame)
		}
	}
	h.mu.Unlock()

	h.prev = current
	h.hasSnapshot = true
}

// BroadcastStatus pushes a SimulationStatus frame to every subscriber,
// used for status pings outside the regular tick cadence.
func (h *Hub) BroadcastStatus(tick uint64, isRunning bool) {
	msg := SimulationStatus{Type: typeSimulationStatus, SimulationID: h.simulationID, IsRunning: isRunning, CurrentTick: tick}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast: failed to marshal status", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sendNonBlocking(sub.out, b)
	}
}

// SendError pushes an Error frame to one subscriber, routed through its
// output channel so writes stay serialized with the publish loop.
func (h *Hub) SendError(id int, message string) {
	b, err := json.Marshal(ErrorMessage{Type: typeError, Message: message})
	if err != nil {
		slog.Error("broadcast: failed to marshal error frame", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sub, ok := h.subs[id]; ok {
		sendNonBlocking(sub.out, b)
	}
}

func sendNonBlocking(out chan []byte, frame []byte) {
	select {
	case out <- frame:
	default:
		// Subscriber buffer full — drop frame for slow consumers.
	}
}
