package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignRanksDenseDescending(t *testing.T) {
	lbID := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	scores := []UserScore{
		{UserID: a, Score: dec("10")},
		{UserID: b, Score: dec("30")},
		{UserID: c, Score: dec("20")},
	}

	rows := assignRanks(lbID, scores, nil, time.Now())
	require.Len(t, rows, 3)

	assert.Equal(t, b, rows[0].UserID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, c, rows[1].UserID)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, a, rows[2].UserID)
	assert.Equal(t, 3, rows[2].Rank)
}

func TestAssignRanksTieBreakIsDeterministic(t *testing.T) {
	lbID := uuid.New()
	low := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	high := uuid.MustParse("99999999-9999-9999-9999-999999999999")

	// Same score; the lexically smaller user ID takes the lower rank, and no
	// rank number is shared.
	scores := []UserScore{
		{UserID: high, Score: dec("50")},
		{UserID: low, Score: dec("50")},
	}

	rows := assignRanks(lbID, scores, nil, time.Now())
	require.Len(t, rows, 2)

	assert.Equal(t, low, rows[0].UserID)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, high, rows[1].UserID)
	assert.Equal(t, 2, rows[1].Rank)
}

func TestAssignRanksComputesDeltas(t *testing.T) {
	lbID := uuid.New()
	climber, slipper := uuid.New(), uuid.New()

	scores := []UserScore{
		{UserID: climber, Score: dec("100")},
		{UserID: slipper, Score: dec("50")},
	}
	previous := map[uuid.UUID]int{
		climber: 3,
		slipper: 1,
	}

	rows := assignRanks(lbID, scores, previous, time.Now())
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].PreviousRank)
	assert.Equal(t, 3, *rows[0].PreviousRank)
	assert.Equal(t, 2, *rows[0].RankChange) // moved up: positive

	require.NotNil(t, rows[1].PreviousRank)
	assert.Equal(t, 1, *rows[1].PreviousRank)
	assert.Equal(t, -1, *rows[1].RankChange) // moved down: negative
}

func TestAssignRanksFirstAppearanceHasNilDelta(t *testing.T) {
	lbID := uuid.New()
	newcomer := uuid.New()

	rows := assignRanks(lbID, []UserScore{{UserID: newcomer, Score: dec("5")}}, map[uuid.UUID]int{}, time.Now())
	require.Len(t, rows, 1)

	// nil, never zero: a debut is not "no movement"
	assert.Nil(t, rows[0].PreviousRank)
	assert.Nil(t, rows[0].RankChange)
}

func TestAssignRanksIsIdempotent(t *testing.T) {
	lbID := uuid.New()
	a, b := uuid.New(), uuid.New()
	scores := []UserScore{
		{UserID: a, Score: dec("12")},
		{UserID: b, Score: dec("8")},
	}
	previous := map[uuid.UUID]int{a: 1, b: 2}

	now := time.Now()
	first := assignRanks(lbID, scores, previous, now)
	second := assignRanks(lbID, scores, previous, now)

	require.Equal(t, first, second)
	// Ranks already match previous: deltas settle at zero.
	assert.Equal(t, 0, *first[0].RankChange)
	assert.Equal(t, 0, *first[1].RankChange)
}

func TestAssignRanksEmptyScores(t *testing.T) {
	rows := assignRanks(uuid.New(), nil, nil, time.Now())
	assert.Empty(t, rows)
}

func TestAssignRanksDoesNotMutateInput(t *testing.T) {
	lbID := uuid.New()
	a, b := uuid.New(), uuid.New()
	scores := []UserScore{
		{UserID: a, Score: dec("1")},
		{UserID: b, Score: dec("2")},
	}

	assignRanks(lbID, scores, nil, time.Now())

	assert.Equal(t, a, scores[0].UserID)
	assert.Equal(t, b, scores[1].UserID)
}
