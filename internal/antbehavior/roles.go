package antbehavior

import "github.com/talgya/antworld/internal/worldstate"

// RoleParams holds the role-specific thresholds and multipliers named
// throughout design doc Section 4.3. Role-specific constants belong in a
// lookup table keyed by role tag; behavior is one function parameterized
// by role, not one function per role (design doc Section 9).
type RoleParams struct {
	ScanRadius      float64 // food-scan radius for Wandering
	EngageRadius    float64 // soldiers only engage within this radius; 0 = unconditional
	InfluenceRadius float64
	FollowThreshold float64
	IdleAction      worldstate.AgentState
}

var roleTable = map[worldstate.RoleTag]RoleParams{
	worldstate.RoleScout: {
		ScanRadius: 50, EngageRadius: 0, InfluenceRadius: 40,
		FollowThreshold: 0.05, IdleAction: worldstate.StateExploring,
	},
	worldstate.RoleWorker: {
		ScanRadius: 50, EngageRadius: 0, InfluenceRadius: 30,
		FollowThreshold: 0.1, IdleAction: worldstate.StateWandering,
	},
	worldstate.RoleSoldier: {
		ScanRadius: 50, EngageRadius: 20, InfluenceRadius: 25,
		FollowThreshold: 0.15, IdleAction: worldstate.StatePatrolling,
	},
	worldstate.RoleQueen: {
		ScanRadius: 50, EngageRadius: 0, InfluenceRadius: 25,
		FollowThreshold: 0.15, IdleAction: worldstate.StateWandering,
	},
}

func paramsFor(role worldstate.RoleTag) RoleParams {
	if p, ok := roleTable[role]; ok {
		return p
	}
	return roleTable[worldstate.RoleWorker]
}
