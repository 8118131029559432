package config

import (
	"os"
	"testing"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TickPeriodMS != 50 {
		t.Fatalf("expected default tick_period_ms 50, got %d", cfg.TickPeriodMS)
	}
	if cfg.MaxFoodSources != 75 {
		t.Fatalf("expected default max_food_sources 75, got %d", cfg.MaxFoodSources)
	}
}

func TestEnvironmentOverridesDefault(t *testing.T) {
	os.Setenv("ANTWORLD_MAX_POPULATION", "999")
	defer os.Unsetenv("ANTWORLD_MAX_POPULATION")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxPopulation != 999 {
		t.Fatalf("expected env override to take effect, got %d", cfg.MaxPopulation)
	}
}
