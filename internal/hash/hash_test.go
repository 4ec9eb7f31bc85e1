package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher_RejectsOutOfRangeCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cost int
	}{
		{name: "zero", cost: 0},
		{name: "below min", cost: bcrypt.MinCost - 1},
		{name: "above max", cost: bcrypt.MaxCost + 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewHasher(tt.cost)
			require.Error(t, err)
		})
	}
}

func TestHasher_HashAndCheck(t *testing.T) {
	t.Parallel()

	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hashed, err := h.Hash("correctpw")
	require.NoError(t, err)
	require.NotEqual(t, "correctpw", hashed)

	assert.True(t, h.Check(hashed, "correctpw"))
	assert.False(t, h.Check(hashed, "wrongpw"))
	assert.False(t, h.Check("not-a-hash", "correctpw"))
}
