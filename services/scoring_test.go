package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusGroup/Leadr/internal/types/leaderboard"
	"github.com/DeusGroup/Leadr/internal/types/metric"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testMetric(userID uuid.UUID, mt metric.Type, value, weight string) metric.Metric {
	return metric.Metric{
		ID:         uuid.New(),
		UserID:     userID,
		MetricType: mt,
		Value:      dec(value),
		Weight:     dec(weight),
	}
}

func scoreFor(t *testing.T, scores []UserScore, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	for _, s := range scores {
		if s.UserID == userID {
			return s.Score
		}
	}
	t.Fatalf("no score for user %s", userID)
	return decimal.Zero
}

func TestComputeScoresEmployeeSumsPointsOnly(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeEmployee}

	metrics := []metric.Metric{
		testMetric(alice, metric.TypePoints, "10", "1"),
		testMetric(alice, metric.TypePoints, "25.5", "1"),
		testMetric(alice, metric.TypeRevenue, "5000", "1"), // ignored on employee boards
		testMetric(bob, metric.TypePoints, "7", "3"),       // weight ignored too
	}

	scores, err := computeScores(lb, metrics)
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.True(t, scoreFor(t, scores, alice).Equal(dec("35.5")))
	assert.True(t, scoreFor(t, scores, bob).Equal(dec("7")))
}

func TestComputeScoresSalesWeightsEveryMetric(t *testing.T) {
	rep := uuid.New()
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeSales}

	metrics := []metric.Metric{
		testMetric(rep, metric.TypeRevenue, "1000", "0.4"),
		testMetric(rep, metric.TypeDeals, "10", "0.1"),
	}

	scores, err := computeScores(lb, metrics)
	require.NoError(t, err)
	require.Len(t, scores, 1)

	// 1000*0.4 + 10*0.1 = 401.0, exact in decimal
	assert.True(t, scoreFor(t, scores, rep).Equal(dec("401")))
}

func TestComputeScoresMixedUsesDefaultWeights(t *testing.T) {
	u := uuid.New()
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeMixed}

	metrics := []metric.Metric{
		testMetric(u, metric.TypePoints, "100", "1"),
		testMetric(u, metric.TypeRevenue, "200", "2"),
	}

	scores, err := computeScores(lb, metrics)
	require.NoError(t, err)

	// pointsSum = 100, weightedSum = 100*1 + 200*2 = 500
	// 0.5*100 + 0.5*500 = 300
	assert.True(t, scoreFor(t, scores, u).Equal(dec("300")))
}

func TestComputeScoresMixedHonorsConfiguredWeights(t *testing.T) {
	u := uuid.New()
	settings := `{"employee_weight": "0.7", "sales_weight": "0.3"}`
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeMixed, Settings: &settings}

	metrics := []metric.Metric{
		testMetric(u, metric.TypePoints, "100", "1"),
		testMetric(u, metric.TypeRevenue, "200", "1"),
	}

	scores, err := computeScores(lb, metrics)
	require.NoError(t, err)

	// pointsSum = 100, weightedSum = 100 + 200 = 300
	// 0.7*100 + 0.3*300 = 160
	assert.True(t, scoreFor(t, scores, u).Equal(dec("160")))
}

func TestComputeScoresCorruptSettingsFails(t *testing.T) {
	settings := `{not json`
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeMixed, Settings: &settings}

	_, err := computeScores(lb, []metric.Metric{
		testMetric(uuid.New(), metric.TypePoints, "1", "1"),
	})
	require.Error(t, err)
}

func TestComputeScoresUnknownTypeFails(t *testing.T) {
	lb := &leaderboard.Leaderboard{Type: leaderboard.Type("bogus")}
	_, err := computeScores(lb, nil)
	require.Error(t, err)
}

func TestComputeScoresExcludesUsersWithoutMatchingMetrics(t *testing.T) {
	withPoints := uuid.New()
	revenueOnly := uuid.New()
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeEmployee}

	metrics := []metric.Metric{
		testMetric(withPoints, metric.TypePoints, "5", "1"),
		testMetric(revenueOnly, metric.TypeRevenue, "9999", "1"),
	}

	scores, err := computeScores(lb, metrics)
	require.NoError(t, err)

	// A user with no points metrics is unranked, not last-ranked with zero.
	require.Len(t, scores, 1)
	assert.Equal(t, withPoints, scores[0].UserID)
}

func TestComputeScoresNegativeValues(t *testing.T) {
	u := uuid.New()
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeEmployee}

	metrics := []metric.Metric{
		testMetric(u, metric.TypePoints, "10", "1"),
		testMetric(u, metric.TypePoints, "-3", "1"),
	}

	scores, err := computeScores(lb, metrics)
	require.NoError(t, err)
	assert.True(t, scoreFor(t, scores, u).Equal(dec("7")))
}

func TestComputeScoresRoundsToTwoPlaces(t *testing.T) {
	u := uuid.New()
	lb := &leaderboard.Leaderboard{Type: leaderboard.TypeSales}

	metrics := []metric.Metric{
		testMetric(u, metric.TypeRevenue, "10.005", "0.333"),
	}

	scores, err := computeScores(lb, metrics)
	require.NoError(t, err)
	assert.Equal(t, int32(-2), scores[0].Score.Exponent())
}
