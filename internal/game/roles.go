package game

import (
	"math/rand"

	"github.com/mafia-live/backend/internal/apperr"
)

type Role string

const (
	RoleMafia     Role = "MAFIA"
	RoleDetective Role = "DETECTIVE"
	RoleDoctor    Role = "DOCTOR"
	RoleVillager  Role = "VILLAGER"
)

// RoleCounts is the per-role slot configuration a host picks for a room.
type RoleCounts struct {
	Mafia     int `json:"MAFIA"`
	Detective int `json:"DETECTIVE"`
	Doctor    int `json:"DOCTOR"`
	Villager  int `json:"VILLAGER"`
}

func (rc RoleCounts) Total() int {
	return rc.Mafia + rc.Detective + rc.Doctor + rc.Villager
}

func (rc RoleCounts) Validate() error {
	if rc.Mafia <= 0 || rc.Detective <= 0 || rc.Doctor <= 0 || rc.Villager <= 0 {
		return apperr.E(apperr.CodeValidation, "every role count must be positive")
	}
	return nil
}

// AssignRoles builds the exact role multiset implied by counts and applies a
// uniform Fisher-Yates shuffle, so every bijection between player slots and
// roles is equally likely. The caller supplies the player order and the
// random source.
func AssignRoles(playerCount int, counts RoleCounts, rng *rand.Rand) ([]Role, error) {
	if counts.Total() != playerCount {
		return nil, apperr.E(apperr.CodeValidation,
			"role counts sum to %d, want %d players", counts.Total(), playerCount)
	}

	roles := make([]Role, 0, playerCount)
	for i := 0; i < counts.Mafia; i++ {
		roles = append(roles, RoleMafia)
	}
	for i := 0; i < counts.Detective; i++ {
		roles = append(roles, RoleDetective)
	}
	for i := 0; i < counts.Doctor; i++ {
		roles = append(roles, RoleDoctor)
	}
	for i := 0; i < counts.Villager; i++ {
		roles = append(roles, RoleVillager)
	}

	for i := len(roles) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		roles[i], roles[j] = roles[j], roles[i]
	}
	return roles, nil
}
