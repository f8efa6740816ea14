package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qlbridge/internal/engine/sim"
)

func TestValidateAndFetch_Range(t *testing.T) {
	host := sim.New(4)
	acc := NewAccessor(host)

	for _, index := range []int{-1, -100, 5, 64} {
		ent, err := acc.ValidateAndFetch(index)
		assert.Nil(t, ent)

		var rangeErr *RangeError
		require.True(t, errors.As(err, &rangeErr), "index %d", index)
		assert.Equal(t, index, rangeErr.Index)
		assert.Equal(t, "client_id must be a number between 0 and 4.", err.Error())
	}
}

func TestValidateAndFetch_ReturnsSlot(t *testing.T) {
	host := sim.New(4)
	host.Connect(2, "Anarki", 100)
	acc := NewAccessor(host)

	ent, err := acc.ValidateAndFetch(2)
	require.NoError(t, err)
	require.NotNil(t, ent)
	assert.Equal(t, 2, ent.Number)
	assert.True(t, ent.InUse)
	assert.Equal(t, "Anarki", acc.Name(2))
}

func TestValidateAndFetch_UpperBoundIsInclusive(t *testing.T) {
	host := sim.New(4)
	acc := NewAccessor(host)

	// index == MaxClients passes the range check but has no player entity
	ent, err := acc.ValidateAndFetch(4)
	require.NoError(t, err)
	assert.Nil(t, ent)

	_, err = acc.FetchLiving(4)
	var inactive *InactiveTargetError
	assert.True(t, errors.As(err, &inactive))
}

func TestFetchLiving(t *testing.T) {
	host := sim.New(4)
	host.Connect(0, "Doom", 100)
	host.Connect(1, "Keel", 0)
	acc := NewAccessor(host)

	ent, err := acc.FetchLiving(0)
	require.NoError(t, err)
	assert.Equal(t, 100, ent.Health)

	tests := []struct {
		name  string
		index int
	}{
		{"dead", 1},
		{"empty slot", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := acc.FetchLiving(tt.index)
			var inactive *InactiveTargetError
			require.True(t, errors.As(err, &inactive))
			assert.Equal(t, tt.index, inactive.Index)
			assert.Equal(t, "The player is currently not active.", err.Error())
		})
	}
}

func TestFetchLiving_SeesReusedSlot(t *testing.T) {
	host := sim.New(2)
	acc := NewAccessor(host)

	host.Connect(1, "Sarge", 100)
	_, err := acc.FetchLiving(1)
	require.NoError(t, err)

	host.Disconnect(1)
	_, err = acc.FetchLiving(1)
	assert.Error(t, err)

	host.Connect(1, "Visor", 125)
	ent, err := acc.FetchLiving(1)
	require.NoError(t, err)
	assert.Equal(t, 125, ent.Health)
	assert.Equal(t, "Visor", acc.Name(1))
}
