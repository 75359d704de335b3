package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStaking(base float64) *Staking {
	s := NewStaking(StakingConfig{BaseStake: base})
	s.Arm(SelectionRed)
	return s
}

// placeAndResolve corre una ronda completa: decide, coloca y aplica el número.
func placeAndResolve(t *testing.T, s *Staking, roundID string, number int) (Result, bool) {
	t.Helper()
	bet, ok := s.Decide(roundID)
	require.True(t, ok, "expected a bet for round %s", roundID)
	s.BetPlaced(bet)
	return s.Apply(NewOutcome(roundID, number))
}

func TestStaking_StakeSequence(t *testing.T) {
	s := newTestStaking(2.0)

	assert.Equal(t, 2.0, s.StakeAt(0))
	assert.Equal(t, 8.0, s.StakeAt(1))
	assert.Equal(t, 20.0, s.StakeAt(2))
	assert.Equal(t, 44.0, s.StakeAt(3))
	assert.Equal(t, 0.0, s.StakeAt(4)) // fuera de secuencia
}

func TestStaking_WinAdvancesLevel(t *testing.T) {
	s := newTestStaking(1.0)

	res, ok := placeAndResolve(t, s, "r1", 3) // 3 es rojo
	require.True(t, ok)
	assert.True(t, res.IsWin)
	assert.Equal(t, 1.0, res.Profit)
	assert.Equal(t, 1, s.Level())
}

func TestStaking_LossResetsLevel(t *testing.T) {
	s := newTestStaking(1.0)

	res, ok := placeAndResolve(t, s, "r1", 3)
	require.True(t, ok)
	require.True(t, res.IsWin)
	res, ok = placeAndResolve(t, s, "r2", 3)
	require.True(t, ok)
	require.True(t, res.IsWin)
	assert.Equal(t, 2, s.Level())

	res, ok = placeAndResolve(t, s, "r3", 2) // 2 es negro
	require.True(t, ok)
	assert.False(t, res.IsWin)
	assert.Equal(t, -10.0, res.Profit) // nivel 2 = 10x
	assert.Equal(t, 0, s.Level())
}

func TestStaking_FullSequenceCompletesMission(t *testing.T) {
	s := newTestStaking(1.0)

	profit := 0.0
	for i := 0; i < 4; i++ {
		res, ok := placeAndResolve(t, s, fmt.Sprintf("r%d", i), 1) // 1 es rojo
		require.True(t, ok)
		require.True(t, res.IsWin)
		profit += res.Profit
	}

	// 1 + 4 + 10 + 22
	assert.Equal(t, 37.0, profit)
	assert.True(t, s.MissionCompleted())

	// Misión completada suprime nuevas apuestas hasta el restart explícito.
	_, ok := s.Decide("r5")
	assert.False(t, ok)

	s.Restart()
	assert.False(t, s.MissionCompleted())
	assert.Equal(t, 0, s.Level())
	bet, ok := s.Decide("r5")
	require.True(t, ok)
	assert.Equal(t, 1.0, bet.Amount)
	assert.Equal(t, SelectionRed, bet.Selection) // la selección sobrevive
}

func TestStaking_HouseNumberAlwaysLoses(t *testing.T) {
	for _, sel := range []Selection{SelectionRed, SelectionBlack, SelectionEven, SelectionOdd, SelectionLow, SelectionHigh} {
		s := NewStaking(StakingConfig{BaseStake: 1.0})
		s.Arm(sel)
		res, ok := placeAndResolve(t, s, "r1", HouseNumber)
		require.True(t, ok, "selection %s", sel)
		assert.False(t, res.IsWin, "selection %s must lose on zero", sel)
		assert.Equal(t, -1.0, res.Profit)
	}
}

func TestStaking_NoBetWithoutSelection(t *testing.T) {
	s := NewStaking(StakingConfig{BaseStake: 1.0})
	_, ok := s.Decide("r1")
	assert.False(t, ok)
}

func TestStaking_NoBetWhilePending(t *testing.T) {
	s := newTestStaking(1.0)

	bet, ok := s.Decide("r1")
	require.True(t, ok)
	s.BetPlaced(bet)

	_, ok = s.Decide("r2")
	assert.False(t, ok)

	// Resuelta la pendiente, la siguiente ronda vuelve a apostar.
	_, applied := s.Apply(NewOutcome("r1", 5))
	require.True(t, applied)
	_, ok = s.Decide("r2")
	assert.True(t, ok)
}

func TestStaking_ApplyIsIdempotent(t *testing.T) {
	s := newTestStaking(1.0)

	res, ok := placeAndResolve(t, s, "r1", 3)
	require.True(t, ok)
	require.True(t, res.IsWin)
	require.Equal(t, 1, s.Level())

	_, ok = s.Apply(NewOutcome("r1", 3))
	assert.False(t, ok, "replaying the same round must not change state")
	assert.Equal(t, 1, s.Level())
}

func TestStaking_ApplyIgnoresUnrelatedRound(t *testing.T) {
	s := newTestStaking(1.0)

	bet, ok := s.Decide("r1")
	require.True(t, ok)
	s.BetPlaced(bet)

	_, ok = s.Apply(NewOutcome("other", 3))
	assert.False(t, ok)
	pending, has := s.Pending()
	assert.True(t, has)
	assert.Equal(t, "r1", pending)
}

func TestStaking_RejectedBetDoesNotAdvance(t *testing.T) {
	s := newTestStaking(1.0)

	bet, ok := s.Decide("r1")
	require.True(t, ok)
	s.BetPlaced(bet)
	s.BetRejected()

	assert.Equal(t, 0, s.Level())
	_, has := s.Pending()
	assert.False(t, has)

	// La siguiente ronda apuesta de nuevo al mismo nivel.
	bet, ok = s.Decide("r2")
	require.True(t, ok)
	assert.Equal(t, 1.0, bet.Amount)
}

func TestStaking_DeferStake(t *testing.T) {
	s := newTestStaking(1.0)

	// En nivel 0 sin pendiente se aplica inmediato.
	s.DeferStake(2.0)
	assert.Equal(t, 2.0, s.BaseStake())

	// A mitad de secuencia queda diferido hasta volver a nivel 0.
	res, ok := placeAndResolve(t, s, "r1", 3)
	require.True(t, ok)
	require.True(t, res.IsWin)

	s.DeferStake(5.0)
	assert.Equal(t, 2.0, s.BaseStake(), "stake must not change mid-sequence")

	bet, ok := s.Decide("r2")
	require.True(t, ok)
	assert.Equal(t, 8.0, bet.Amount) // nivel 1 con base 2.0
	s.BetPlaced(bet)
	_, applied := s.Apply(NewOutcome("r2", 2)) // pierde → reset
	require.True(t, applied)

	assert.Equal(t, 5.0, s.BaseStake())
	bet, ok = s.Decide("r3")
	require.True(t, ok)
	assert.Equal(t, 5.0, bet.Amount)
}

func TestStaking_CustomMultipliers(t *testing.T) {
	s := NewStaking(StakingConfig{BaseStake: 1.0, Multipliers: []float64{1, 2}})
	s.Arm(SelectionEven)

	assert.Equal(t, 2, s.MaxLevel())

	res, ok := placeAndResolve(t, s, "r1", 4)
	require.True(t, ok)
	require.True(t, res.IsWin)
	res, ok = placeAndResolve(t, s, "r2", 4)
	require.True(t, ok)
	require.True(t, res.IsWin)
	assert.True(t, s.MissionCompleted())
}
