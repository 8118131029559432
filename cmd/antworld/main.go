// Command antworld runs the ant colony ecosystem simulation.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/talgya/antworld/internal/antbehavior"
	"github.com/talgya/antworld/internal/broadcast"
	"github.com/talgya/antworld/internal/colony"
	"github.com/talgya/antworld/internal/config"
	"github.com/talgya/antworld/internal/environment"
	"github.com/talgya/antworld/internal/pheromone"
	"github.com/talgya/antworld/internal/simclock"
	"github.com/talgya/antworld/internal/simrand"
	"github.com/talgya/antworld/internal/store"
	"github.com/talgya/antworld/internal/worldstate"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("antworld starting")

	cfg, err := config.Load(os.Getenv("ANTWORLD_CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	os.MkdirAll("data", 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	world, simID, startTick := loadOrBootstrapWorld(db, cfg)
	slog.Info("world ready", "simulation_id", simID, "tick", startTick,
		"agents", len(world.AllAgents()), "colonies", len(world.AllColonies()), "food_sources", len(world.AllFood()))

	rngPool := simrand.NewPool(cfg.Seed, runtime.GOMAXPROCS(0))
	field := pheromone.New(world)
	behaviorRunner := antbehavior.New(world, field, rngPool, antbehavior.Config{
		BatchSize:   cfg.AgentBatchSize,
		MaxTurnRate: cfg.MaxTurnRate,
	})
	colonyMgr := colony.New(world, colony.Config{
		SpawnTickInterval: cfg.ColonySpawnTickInterval,
		SpawnCost:         10,
		MaxPopulation:     cfg.MaxPopulation,
	})
	colonyRNG := rngPool.Derive(1)
	envMgr := environment.New(world, environment.Config{
		FoodSpawnIntervalTicks: cfg.FoodSpawnIntervalTicks,
		MaxFoodSources:         cfg.MaxFoodSources,
	}, cfg.Seed)
	envRNG := rngPool.Derive(2)

	hub := broadcast.New(world, simID)

	scheduler := simclock.New(simclock.Config{
		TickPeriod:              cfg.TickPeriod(),
		PersistenceSyncInterval: cfg.PersistenceSyncIntervalTicks,
		BroadcastInterval:       cfg.BroadcastIntervalTicks,
	}, simclock.Phases{
		Environment: func(tick uint64) {
			world.SetTick(tick)
			envMgr.Tick(tick, envRNG)
		},
		Pheromone:     func(tick uint64) { field.Tick(tick) },
		AgentBehavior: func(tick uint64) error { return behaviorRunner.Run(tick) },
		Colony:        func(tick uint64) { colonyMgr.Tick(tick, colonyRNG) },
		Persist:       func(tick uint64) { store.Sync(db, simID, world, tick) },
		Broadcast:     func(tick uint64) { hub.Tick(tick) },
	})
	scheduler.Resume(startTick)
	world.SetTick(startTick)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", healthzHandler(simID, scheduler)).Methods(http.MethodGet)
	router.HandleFunc("/ws", wsHandler(hub)).Methods(http.MethodGet)

	httpServer := &http.Server{Addr: ":" + strconv.Itoa(cfg.APIPort), Handler: router}
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		scheduler.Stop()
	}()

	scheduler.Run()

	hub.BroadcastStatus(scheduler.CurrentTick(), false)

	slog.Info("final persistence sync")
	scheduler.FinalSync()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)

	slog.Info("antworld stopped")
}

func loadOrBootstrapWorld(db *store.Store, cfg config.Config) (*worldstate.World, string, uint64) {
	simID, exists, err := db.DefaultSimulationID()
	if err != nil {
		slog.Error("failed to query default simulation", "error", err)
		os.Exit(1)
	}

	if !exists {
		simID, err = db.CreateSimulation(cfg.WorldWidth, cfg.WorldHeight, 1.0)
		if err != nil {
			slog.Error("failed to create simulation", "error", err)
			os.Exit(1)
		}
		world := worldstate.New(cfg.WorldWidth, cfg.WorldHeight)
		seedAgentTypes(world)
		if err := db.SaveAgentTypes(world.AllAgentTypes()); err != nil {
			slog.Warn("failed to persist seeded agent types", "error", err)
		}
		slog.Info("no saved simulation found, starting fresh", "simulation_id", simID)
		return world, simID, 0
	}

	w, h, tick, _, err := db.LoadSimulation(simID)
	if err != nil {
		slog.Error("failed to load simulation", "error", err)
		os.Exit(1)
	}

	world := worldstate.New(w, h)
	types, err := db.LoadAgentTypes()
	if err != nil {
		slog.Error("failed to load agent types", "error", err)
		os.Exit(1)
	}
	if len(types) == 0 {
		seedAgentTypes(world)
	} else {
		for _, t := range types {
			world.PutAgentType(t)
		}
	}

	colonies, err := db.LoadColonies(simID)
	if err != nil {
		slog.Error("failed to load colonies", "error", err)
		os.Exit(1)
	}
	for _, c := range colonies {
		world.InsertColony(c)
		world.SeedColonyID(c.ID)
	}

	loadedAgents, err := db.LoadAgents(simID)
	if err != nil {
		slog.Error("failed to load agents", "error", err)
		os.Exit(1)
	}
	for _, a := range loadedAgents {
		world.InsertAgent(a)
		world.SeedAgentID(a.ID)
	}

	foodSources, err := db.LoadFoodSources(simID)
	if err != nil {
		slog.Error("failed to load food sources", "error", err)
		os.Exit(1)
	}
	for _, f := range foodSources {
		world.InsertFood(f)
		world.SeedFoodID(f.ID)
	}

	return world, simID, tick
}

// seedAgentTypes installs the default per-role agent type definitions
// for a brand new simulation; existing simulations load theirs from
// the agent_types table instead.
func seedAgentTypes(world *worldstate.World) {
	defs := []*worldstate.AgentType{
		{ID: 1, Role: worldstate.RoleWorker, BaseSpeed: 1.0, CarryingCapacity: 10, LifespanTicks: 20000},
		{ID: 2, Role: worldstate.RoleScout, BaseSpeed: 1.5, CarryingCapacity: 5, LifespanTicks: 20000},
		{ID: 3, Role: worldstate.RoleSoldier, BaseSpeed: 0.9, CarryingCapacity: 5, LifespanTicks: 20000},
		{ID: 4, Role: worldstate.RoleQueen, BaseSpeed: 0.3, CarryingCapacity: 0, LifespanTicks: 200000},
	}
	for _, d := range defs {
		world.PutAgentType(d)
	}
}

func healthzHandler(simID string, scheduler *simclock.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := broadcast.SimulationStatus{
			Type:         "SimulationStatus",
			SimulationID: simID,
			IsRunning:    scheduler.IsRunning(),
			CurrentTick:  scheduler.CurrentTick(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}
}

func wsHandler(hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := broadcast.Upgrade(hub, w, r)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		if err := conn.Serve(r.Context()); err != nil {
			slog.Warn("websocket connection ended with error", "error", err)
		}
	}
}
