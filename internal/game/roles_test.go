package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mafia-live/backend/internal/apperr"
)

func countRoles(roles []Role) RoleCounts {
	var rc RoleCounts
	for _, r := range roles {
		switch r {
		case RoleMafia:
			rc.Mafia++
		case RoleDetective:
			rc.Detective++
		case RoleDoctor:
			rc.Doctor++
		case RoleVillager:
			rc.Villager++
		}
	}
	return rc
}

func TestAssignRoles_ExactMultiset(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 5; n <= 15; n++ {
		counts := RoleCounts{Mafia: 1, Detective: 1, Doctor: 1, Villager: n - 3}
		roles, err := AssignRoles(n, counts, rng)
		require.NoError(t, err)
		require.Len(t, roles, n)
		assert.Equal(t, counts, countRoles(roles), "n=%d", n)
	}
}

func TestAssignRoles_SumMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := AssignRoles(6, RoleCounts{Mafia: 1, Detective: 1, Doctor: 1, Villager: 2}, rng)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

// Over many trials every role should land in every slot at a rate close to
// its share of the multiset. A loose tolerance keeps the test stable.
func TestAssignRoles_ApproximatelyUniform(t *testing.T) {
	const trials = 20000
	rng := rand.New(rand.NewSource(42))
	counts := RoleCounts{Mafia: 1, Detective: 1, Doctor: 1, Villager: 2}

	mafiaPerSlot := make([]int, 5)
	for i := 0; i < trials; i++ {
		roles, err := AssignRoles(5, counts, rng)
		require.NoError(t, err)
		for slot, r := range roles {
			if r == RoleMafia {
				mafiaPerSlot[slot]++
			}
		}
	}

	// One mafia among five slots: expect trials/5 per slot, within 10%.
	expected := float64(trials) / 5
	for slot, got := range mafiaPerSlot {
		assert.InDelta(t, expected, float64(got), expected*0.1, "slot %d", slot)
	}
}

func TestRoleCounts_Validate(t *testing.T) {
	cases := []struct {
		name    string
		counts  RoleCounts
		wantErr bool
	}{
		{"valid", RoleCounts{1, 1, 1, 2}, false},
		{"zero mafia", RoleCounts{0, 1, 1, 3}, true},
		{"negative villager", RoleCounts{1, 1, 1, -1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.counts.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
