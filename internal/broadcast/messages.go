// Package broadcast is the Broadcast Adapter: a subscription set that
// pushes world-state snapshots and deltas to connected websocket clients.
// See design doc Section 4.8. Each subscriber owns a buffered output
// channel; the hub fans frames out with non-blocking sends so one slow
// client never stalls the tick or its peers.
package broadcast

import "github.com/talgya/antworld/internal/worldstate"

// FullState is pushed to a subscriber with no retained previous
// snapshot, or in response to a RequestFullState frame.
type FullState struct {
	Type            string                       `json:"type"`
	SimulationID    string                       `json:"simulation_id"`
	Tick            uint64                       `json:"tick"`
	Ants            []*worldstate.Agent          `json:"ants"`
	Colonies        []*worldstate.Colony         `json:"colonies"`
	FoodSources     []*worldstate.FoodSource     `json:"food_sources"`
	PheromoneTrails []*worldstate.PheromoneTrail `json:"pheromone_trails"`
}

// DeltaUpdate is pushed on each broadcast once a subscriber already
// holds a snapshot, carrying the agents, colonies and food sources that
// changed since the previous broadcast, the removed agent and food ids,
// and every currently live trail.
type DeltaUpdate struct {
	Type                 string                       `json:"type"`
	SimulationID         string                       `json:"simulation_id"`
	Tick                 uint64                       `json:"tick"`
	UpdatedAnts          []*worldstate.Agent          `json:"updated_ants"`
	UpdatedColonies      []*worldstate.Colony         `json:"updated_colonies"`
	UpdatedFoodSources   []*worldstate.FoodSource     `json:"updated_food_sources"`
	NewPheromoneTrails   []*worldstate.PheromoneTrail `json:"new_pheromone_trails"`
	RemovedAntIDs        []worldstate.AgentID         `json:"removed_ant_ids"`
	RemovedFoodSourceIDs []worldstate.FoodID          `json:"removed_food_source_ids"`
}

// SimulationStatus reports the run/tick state of the simulation.
type SimulationStatus struct {
	Type         string `json:"type"`
	SimulationID string `json:"simulation_id"`
	IsRunning    bool   `json:"is_running"`
	CurrentTick  uint64 `json:"current_tick"`
}

// ErrorMessage carries a broadcast-level error to a subscriber.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	typeFullState        = "FullState"
	typeDeltaUpdate      = "DeltaUpdate"
	typeSimulationStatus = "SimulationStatus"
	typeError            = "Error"
)

// ClientFrame is the shape of the two recognized incoming client
// messages, distinguished by Type: "Subscribe" or "RequestFullState".
type ClientFrame struct {
	Type         string `json:"type"`
	SimulationID string `json:"simulation_id"`
}
