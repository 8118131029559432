// Package config loads the recognized configuration options from design
// doc Section 6, via viper: an optional YAML file plus ANTWORLD_-prefixed
// environment variable overrides. Load builds a fresh viper.New()
// instance per call rather than touching the package-level singleton.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config holds every recognized option from design doc Section 6.
type Config struct {
	TickPeriodMS                 int     `mapstructure:"tick_period_ms"`
	PersistenceSyncIntervalTicks uint64  `mapstructure:"persistence_sync_interval_ticks"`
	BroadcastIntervalTicks       uint64  `mapstructure:"broadcast_interval_ticks"`
	AgentBatchSize               int     `mapstructure:"agent_batch_size"`
	MaxTurnRate                  float64 `mapstructure:"max_turn_rate"`
	FoodSpawnIntervalTicks       int     `mapstructure:"food_spawn_interval_ticks"`
	MaxFoodSources               int     `mapstructure:"max_food_sources"`
	ColonySpawnTickInterval      int     `mapstructure:"colony_spawn_tick_interval"`
	MaxPopulation                int     `mapstructure:"max_population"`

	WorldWidth  float64 `mapstructure:"world_width"`
	WorldHeight float64 `mapstructure:"world_height"`
	Seed        int64   `mapstructure:"seed"`
	DBPath      string  `mapstructure:"db_path"`
	APIPort     int     `mapstructure:"api_port"`
}

// TickPeriod returns TickPeriodMS as a time.Duration.
func (c Config) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMS) * time.Millisecond
}

// Default returns the documented defaults from design doc Section 6.
func Default() Config {
	return Config{
		TickPeriodMS:                 50,
		PersistenceSyncIntervalTicks: 100,
		BroadcastIntervalTicks:       1,
		AgentBatchSize:               100,
		MaxTurnRate:                  0.1,
		FoodSpawnIntervalTicks:       1000,
		MaxFoodSources:               75,
		ColonySpawnTickInterval:      20,
		MaxPopulation:                500,
		WorldWidth:                   1000,
		WorldHeight:                  1000,
		Seed:                         42,
		DBPath:                       "data/antworld.db",
		APIPort:                      8080,
	}
}

// Load builds a Config from defaults, an optional YAML file at path (if
// non-empty and present), and ANTWORLD_-prefixed environment variables,
// in that ascending priority order.
func Load(path string) (Config, error) {
	vp := viper.New()
	bindDefaults(vp, Default())

	vp.SetEnvPrefix("ANTWORLD")
	vp.AutomaticEnv()

	if path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := Default()
	if err := vp.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func bindDefaults(vp *viper.Viper, d Config) {
	vp.SetDefault("tick_period_ms", d.TickPeriodMS)
	vp.SetDefault("persistence_sync_interval_ticks", d.PersistenceSyncIntervalTicks)
	vp.SetDefault("broadcast_interval_ticks", d.BroadcastIntervalTicks)
	vp.SetDefault("agent_batch_size", d.AgentBatchSize)
	vp.SetDefault("max_turn_rate", d.MaxTurnRate)
	vp.SetDefault("food_spawn_interval_ticks", d.FoodSpawnIntervalTicks)
	vp.SetDefault("max_food_sources", d.MaxFoodSources)
	vp.SetDefault("colony_spawn_tick_interval", d.ColonySpawnTickInterval)
	vp.SetDefault("max_population", d.MaxPopulation)
	vp.SetDefault("world_width", d.WorldWidth)
	vp.SetDefault("world_height", d.WorldHeight)
	vp.SetDefault("seed", d.Seed)
	vp.SetDefault("db_path", d.DBPath)
	vp.SetDefault("api_port", d.APIPort)
}
