// Package store is the Persistence Adapter: initial load of simulation
// state and periodic batched writes of dirty entities.
// See design doc Section 4.7 and Section 6. Writes are idempotent
// per-id upserts (INSERT ... ON CONFLICT DO UPDATE), batched through a
// prepared statement inside one transaction per Save call, against a
// WAL-mode SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/antworld/internal/worldstate"
)

// Store wraps a SQLite connection for simulation state persistence.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulations (
		id TEXT PRIMARY KEY,
		world_width REAL NOT NULL,
		world_height REAL NOT NULL,
		current_tick INTEGER NOT NULL,
		speed REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_types (
		id INTEGER PRIMARY KEY,
		role INTEGER NOT NULL,
		base_speed REAL NOT NULL,
		carrying_capacity INTEGER NOT NULL,
		lifespan_ticks INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS colonies (
		id INTEGER PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		center_x REAL NOT NULL,
		center_y REAL NOT NULL,
		radius REAL NOT NULL,
		population INTEGER NOT NULL,
		stock_json TEXT NOT NULL,
		territory_radius REAL NOT NULL,
		aggression REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		colony_id INTEGER NOT NULL,
		type_id INTEGER NOT NULL,
		role INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		heading REAL NOT NULL,
		speed REAL NOT NULL,
		health INTEGER NOT NULL,
		energy INTEGER NOT NULL,
		age INTEGER NOT NULL,
		state TEXT NOT NULL,
		carried_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS food_sources (
		id INTEGER PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		kind INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_y REAL NOT NULL,
		amount INTEGER NOT NULL,
		max_amount INTEGER NOT NULL,
		regen_rate REAL NOT NULL,
		renewable INTEGER NOT NULL,
		nutrition REAL NOT NULL,
		spoilage_rate REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agents_colony ON agents(colony_id);
	CREATE INDEX IF NOT EXISTS idx_agents_sim ON agents(simulation_id);
	CREATE INDEX IF NOT EXISTS idx_food_sim ON food_sources(simulation_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// DefaultSimulationID returns the id of the sole simulation row, if one
// exists. antworld runs a single simulation per database.
func (s *Store) DefaultSimulationID() (string, bool, error) {
	var id string
	err := s.conn.Get(&id, "SELECT id FROM simulations LIMIT 1")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query default simulation: %w", err)
	}
	return id, true, nil
}

// CreateSimulation inserts a new simulation row and returns its id.
func (s *Store) CreateSimulation(width, height, speed float64) (string, error) {
	id := uuid.NewString()
	_, err := s.conn.Exec(
		"INSERT INTO simulations (id, world_width, world_height, current_tick, speed) VALUES (?, ?, ?, 0, ?)",
		id, width, height, speed,
	)
	return id, err
}

// LoadSimulation returns world_size, current_tick, speed for simID, per
// design doc Section 6's persistence contract.
func (s *Store) LoadSimulation(simID string) (width, height float64, currentTick uint64, speed float64, err error) {
	row := struct {
		WorldWidth  float64 `db:"world_width"`
		WorldHeight float64 `db:"world_height"`
		CurrentTick uint64  `db:"current_tick"`
		Speed       float64 `db:"speed"`
	}{}
	err = s.conn.Get(&row, "SELECT world_width, world_height, current_tick, speed FROM simulations WHERE id = ?", simID)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("load simulation %s: %w", simID, err)
	}
	return row.WorldWidth, row.WorldHeight, row.CurrentTick, row.Speed, nil
}

// UpdateSimulationTick updates the simulation's current tick.
func (s *Store) UpdateSimulationTick(simID string, tick uint64) error {
	_, err := s.conn.Exec("UPDATE simulations SET current_tick = ? WHERE id = ?", tick, simID)
	return err
}

// LoadAgentTypes returns every agent type definition.
func (s *Store) LoadAgentTypes() ([]*worldstate.AgentType, error) {
	type row struct {
		ID               uint64  `db:"id"`
		Role             uint8   `db:"role"`
		BaseSpeed        float64 `db:"base_speed"`
		CarryingCapacity int     `db:"carrying_capacity"`
		LifespanTicks    int     `db:"lifespan_ticks"`
	}
	var rows []row
	if err := s.conn.Select(&rows, "SELECT * FROM agent_types"); err != nil {
		return nil, fmt.Errorf("load agent types: %w", err)
	}
	out := make([]*worldstate.AgentType, 0, len(rows))
	for _, r := range rows {
		out = append(out, &worldstate.AgentType{
			ID: worldstate.AgentTypeID(r.ID), Role: worldstate.RoleTag(r.Role),
			BaseSpeed: r.BaseSpeed, CarryingCapacity: r.CarryingCapacity, LifespanTicks: r.LifespanTicks,
		})
	}
	return out, nil
}

// LoadColonies returns every colony for simID.
func (s *Store) LoadColonies(simID string) ([]*worldstate.Colony, error) {
	type row struct {
		ID              uint64  `db:"id"`
		SimulationID    string  `db:"simulation_id"`
		CenterX         float64 `db:"center_x"`
		CenterY         float64 `db:"center_y"`
		Radius          float64 `db:"radius"`
		Population      int     `db:"population"`
		StockJSON       string  `db:"stock_json"`
		TerritoryRadius float64 `db:"territory_radius"`
		Aggression      float64 `db:"aggression"`
	}
	var rows []row
	if err := s.conn.Select(&rows, "SELECT * FROM colonies WHERE simulation_id = ?", simID); err != nil {
		return nil, fmt.Errorf("load colonies: %w", err)
	}
	out := make([]*worldstate.Colony, 0, len(rows))
	for _, r := range rows {
		var stock worldstate.ResourceStock
		json.Unmarshal([]byte(r.StockJSON), &stock)
		out = append(out, &worldstate.Colony{
			ID: worldstate.ColonyID(r.ID), Center: worldstate.Vec2{X: r.CenterX, Y: r.CenterY},
			Radius: r.Radius, Population: r.Population, Stock: stock,
			TerritoryRadius: r.TerritoryRadius, Aggression: r.Aggression,
		})
	}
	return out, nil
}

// LoadAgents returns only non-dead agents for simID.
func (s *Store) LoadAgents(simID string) ([]*worldstate.Agent, error) {
	type row struct {
		ID           uint64  `db:"id"`
		SimulationID string  `db:"simulation_id"`
		ColonyID     uint64  `db:"colony_id"`
		TypeID       uint64  `db:"type_id"`
		Role         uint8   `db:"role"`
		PosX         float64 `db:"pos_x"`
		PosY         float64 `db:"pos_y"`
		Heading      float64 `db:"heading"`
		Speed        float64 `db:"speed"`
		Health       int     `db:"health"`
		Energy       int     `db:"energy"`
		Age          int     `db:"age"`
		State        string  `db:"state"`
		CarriedJSON  string  `db:"carried_json"`
	}
	var rows []row
	if err := s.conn.Select(&rows, "SELECT * FROM agents WHERE simulation_id = ? AND state != 'dead'", simID); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	out := make([]*worldstate.Agent, 0, len(rows))
	for _, r := range rows {
		var carried worldstate.ResourceStock
		json.Unmarshal([]byte(r.CarriedJSON), &carried)
		out = append(out, &worldstate.Agent{
			ID: worldstate.AgentID(r.ID), ColonyID: worldstate.ColonyID(r.ColonyID),
			TypeID: worldstate.AgentTypeID(r.TypeID), Role: worldstate.RoleTag(r.Role),
			Position: worldstate.Vec2{X: r.PosX, Y: r.PosY}, Heading: r.Heading, Speed: r.Speed,
			Health: r.Health, Energy: r.Energy, Age: r.Age,
			State: worldstate.ParseAgentState(r.State), Carried: carried,
		})
	}
	return out, nil
}

// LoadFoodSources returns only food sources with amount > 0 for simID.
func (s *Store) LoadFoodSources(simID string) ([]*worldstate.FoodSource, error) {
	type row struct {
		ID           uint64  `db:"id"`
		SimulationID string  `db:"simulation_id"`
		Kind         uint8   `db:"kind"`
		PosX         float64 `db:"pos_x"`
		PosY         float64 `db:"pos_y"`
		Amount       int     `db:"amount"`
		MaxAmount    int     `db:"max_amount"`
		RegenRate    float64 `db:"regen_rate"`
		Renewable    int     `db:"renewable"`
		Nutrition    float64 `db:"nutrition"`
		SpoilageRate float64 `db:"spoilage_rate"`
	}
	var rows []row
	if err := s.conn.Select(&rows, "SELECT * FROM food_sources WHERE simulation_id = ? AND amount > 0", simID); err != nil {
		return nil, fmt.Errorf("load food sources: %w", err)
	}
	out := make([]*worldstate.FoodSource, 0, len(rows))
	for _, r := range rows {
		out = append(out, &worldstate.FoodSource{
			ID: worldstate.FoodID(r.ID), Kind: worldstate.FoodKind(r.Kind),
			Position: worldstate.Vec2{X: r.PosX, Y: r.PosY}, Amount: r.Amount, MaxAmount: r.MaxAmount,
			RegenRate: r.RegenRate, Renewable: r.Renewable != 0, Nutrition: r.Nutrition, SpoilageRate: r.SpoilageRate,
		})
	}
	return out, nil
}

// SaveAgentTypes upserts agent type definitions by id. Unlike agents,
// colonies, and food sources, type definitions change only at setup
// time, not every sync cadence, so this is called once per fresh
// simulation rather than from Sync.
func (s *Store) SaveAgentTypes(typeList []*worldstate.AgentType) error {
	if len(typeList) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO agent_types
		(id, role, base_speed, carrying_capacity, lifespan_ticks)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role=excluded.role, base_speed=excluded.base_speed,
			carrying_capacity=excluded.carrying_capacity, lifespan_ticks=excluded.lifespan_ticks`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range typeList {
		if _, err := stmt.Exec(t.ID, t.Role, t.BaseSpeed, t.CarryingCapacity, t.LifespanTicks); err != nil {
			return fmt.Errorf("upsert agent type %d: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// SaveAgents upserts the given agents by id. A failed batch is the
// caller's to log and retry on the next sync cadence (design doc
// Section 4.7); this method returns the error rather than retrying
// synchronously.
func (s *Store) SaveAgents(simID string, agentList []*worldstate.Agent) error {
	if len(agentList) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, simulation_id, colony_id, type_id, role, pos_x, pos_y, heading, speed, health, energy, age, state, carried_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			colony_id=excluded.colony_id, type_id=excluded.type_id, role=excluded.role,
			pos_x=excluded.pos_x, pos_y=excluded.pos_y, heading=excluded.heading, speed=excluded.speed,
			health=excluded.health, energy=excluded.energy, age=excluded.age, state=excluded.state,
			carried_json=excluded.carried_json`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range agentList {
		carriedJSON, _ := json.Marshal(a.Carried)
		if _, err := stmt.Exec(a.ID, simID, a.ColonyID, a.TypeID, a.Role,
			a.Position.X, a.Position.Y, a.Heading, a.Speed, a.Health, a.Energy, a.Age,
			a.State.String(), string(carriedJSON)); err != nil {
			return fmt.Errorf("upsert agent %d: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// SaveColonies upserts the given colonies by id.
func (s *Store) SaveColonies(simID string, colonyList []*worldstate.Colony) error {
	if len(colonyList) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO colonies
		(id, simulation_id, center_x, center_y, radius, population, stock_json, territory_radius, aggression)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			population=excluded.population, stock_json=excluded.stock_json`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range colonyList {
		stockJSON, _ := json.Marshal(c.Stock)
		if _, err := stmt.Exec(c.ID, simID, c.Center.X, c.Center.Y, c.Radius, c.Population,
			string(stockJSON), c.TerritoryRadius, c.Aggression); err != nil {
			return fmt.Errorf("upsert colony %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// SaveFoodSources upserts the given food sources by id.
func (s *Store) SaveFoodSources(simID string, foodList []*worldstate.FoodSource) error {
	if len(foodList) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO food_sources
		(id, simulation_id, kind, pos_x, pos_y, amount, max_amount, regen_rate, renewable, nutrition, spoilage_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET amount=excluded.amount`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	renewableInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	for _, f := range foodList {
		if _, err := stmt.Exec(f.ID, simID, f.Kind, f.Position.X, f.Position.Y, f.Amount, f.MaxAmount,
			f.RegenRate, renewableInt(f.Renewable), f.Nutrition, f.SpoilageRate); err != nil {
			return fmt.Errorf("upsert food source %d: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// Sync drains the world's dirty sets, fetches current snapshots, and
// issues batched upserts plus a current-tick update, per design doc
// Section 4.7. A failed batch is logged and retried on the next sync
// cadence; it must not stop the simulation.
func Sync(s *Store, simID string, world *worldstate.World, tick uint64) {
	dirtyAgents := world.DrainDirtyAgents()
	if len(dirtyAgents) > 0 {
		agentList := make([]*worldstate.Agent, 0, len(dirtyAgents))
		for _, id := range dirtyAgents {
			if a, ok := world.GetAgent(id); ok {
				agentList = append(agentList, a)
			}
		}
		if err := s.SaveAgents(simID, agentList); err != nil {
			slog.Warn("persistence: agent sync failed, will retry next cycle", "error", err)
			world.MarkAgentsDirty(dirtyAgents)
		} else {
			// Dead agents leave the live store only once their final
			// state="dead" row is on disk; removing them earlier would
			// let a reload resurrect the last pre-death row.
			for _, a := range agentList {
				if a.State == worldstate.StateDead {
					world.RemoveAgent(a.ID)
				}
			}
		}
	}

	dirtyColonies := world.DrainDirtyColonies()
	if len(dirtyColonies) > 0 {
		colonyList := make([]*worldstate.Colony, 0, len(dirtyColonies))
		for _, id := range dirtyColonies {
			if c, ok := world.GetColony(id); ok {
				colonyList = append(colonyList, c)
			}
		}
		if err := s.SaveColonies(simID, colonyList); err != nil {
			slog.Warn("persistence: colony sync failed, will retry next cycle", "error", err)
			world.MarkColoniesDirty(dirtyColonies)
		}
	}

	dirtyFood := world.DrainDirtyFood()
	if len(dirtyFood) > 0 {
		foodList := make([]*worldstate.FoodSource, 0, len(dirtyFood))
		for _, id := range dirtyFood {
			if f, ok := world.GetFood(id); ok {
				foodList = append(foodList, f)
			}
		}
		if err := s.SaveFoodSources(simID, foodList); err != nil {
			slog.Warn("persistence: food sync failed, will retry next cycle", "error", err)
			world.MarkFoodDirty(dirtyFood)
		}
	}

	if err := s.UpdateSimulationTick(simID, tick); err != nil {
		slog.Warn("persistence: tick update failed, will retry next cycle", "error", err)
	}
}
