package services

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeusGroup/Leadr/internal/apperrors"
	"github.com/DeusGroup/Leadr/internal/types/achievement"
	"github.com/DeusGroup/Leadr/internal/types/leaderboard"
	"github.com/DeusGroup/Leadr/internal/types/metric"
	"github.com/DeusGroup/Leadr/internal/types/user"
)

// setupTestDB connects to the database named by DATABASE_URL, skipping the
// test when none is configured.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping database test")
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func newTestStack(db *pgxpool.Pool) (*UserService, *MetricService, *LeaderboardService, *AchievementService, *ActivityRelay) {
	relay := NewActivityRelay(db)
	achievements := NewAchievementService(db, relay)
	metrics := NewMetricService(db, achievements, relay)
	leaderboards := NewLeaderboardService(db)
	metrics.SetLeaderboardService(leaderboards)
	users := NewUserService(db)
	return users, metrics, leaderboards, achievements, relay
}

func createTestUser(t *testing.T, users *UserService, userType user.UserType) *user.User {
	t.Helper()
	ctx := context.Background()

	u, err := users.Create(ctx, &user.CreateUserRequest{
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		UserType:  userType,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Delete(context.Background(), u.ID) })
	return u
}

func TestRecordAndRecalculateFlow(t *testing.T) {
	db := setupTestDB(t)
	users, metrics, leaderboards, _, relay := newTestStack(db)
	defer relay.Stop()

	ctx := context.Background()

	alice := createTestUser(t, users, user.TypeEmployee)
	bob := createTestUser(t, users, user.TypeEmployee)

	lb, err := leaderboards.Create(ctx, &leaderboard.CreateRequest{
		Name: "Q3 Sprint " + uuid.NewString(),
		Type: leaderboard.TypeEmployee,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = leaderboards.Delete(context.Background(), lb.ID) })

	record := func(userID uuid.UUID, value string) {
		v := value
		_, err := metrics.Record(ctx, &metric.RecordRequest{
			UserID:        userID,
			LeaderboardID: &lb.ID,
			MetricType:    metric.TypePoints,
			Value:         &v,
		})
		require.NoError(t, err)
	}

	record(alice.ID, "30")
	record(alice.ID, "20")
	record(bob.ID, "40")

	ranked, err := leaderboards.Recalculate(ctx, lb.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, ranked)

	entries, err := leaderboards.Rankings(ctx, lb.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, alice.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.True(t, entries[0].Score.Equal(dec("50")))
	assert.Nil(t, entries[0].PreviousRank)

	assert.Equal(t, bob.ID, entries[1].UserID)
	assert.Equal(t, 2, entries[1].Rank)

	// A second pass with new metrics flips the order and fills the deltas.
	record(bob.ID, "25")
	_, err = leaderboards.Recalculate(ctx, lb.ID)
	require.NoError(t, err)

	top, err := leaderboards.UserRanking(ctx, lb.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, top.Rank)
	require.NotNil(t, top.RankChange)
	assert.Equal(t, 1, *top.RankChange)
}

func TestRecalculateMissingLeaderboard(t *testing.T) {
	db := setupTestDB(t)
	_, _, leaderboards, _, relay := newTestStack(db)
	defer relay.Stop()

	_, err := leaderboards.Recalculate(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBulkRecordPartialSuccess(t *testing.T) {
	db := setupTestDB(t)
	users, metrics, _, _, relay := newTestStack(db)
	defer relay.Stop()

	ctx := context.Background()
	u := createTestUser(t, users, user.TypeSalesRep)

	good := "100"
	bad := "not-a-number"
	result, err := metrics.BulkRecord(ctx, []*metric.RecordRequest{
		{UserID: u.ID, MetricType: metric.TypeRevenue, Value: &good},
		{UserID: u.ID, MetricType: metric.TypeRevenue, Value: &bad},
		{UserID: uuid.New(), MetricType: metric.TypeRevenue, Value: &good}, // unknown user
	})
	require.NoError(t, err)

	assert.Len(t, result.Recorded, 1)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, 2, result.Errors[1].Index)
}

func TestAchievementGrantIsAbsorbing(t *testing.T) {
	db := setupTestDB(t)
	users, metrics, _, achievements, relay := newTestStack(db)
	defer relay.Stop()

	ctx := context.Background()
	u := createTestUser(t, users, user.TypeSalesRep)

	mt := metric.TypeRevenue
	min := dec("1000")
	a, err := achievements.Create(ctx, &achievement.CreateRequest{
		Name:        "Big Deal " + uuid.NewString(),
		Type:        achievement.TypeMilestone,
		PointsValue: 10,
		Criteria:    &achievement.Criteria{MetricType: &mt, MinValue: &min},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = achievements.Delete(context.Background(), a.ID) })

	v := "1500"
	_, err = metrics.Record(ctx, &metric.RecordRequest{
		UserID: u.ID, MetricType: metric.TypeRevenue, Value: &v,
	})
	require.NoError(t, err)

	earned, err := achievements.UserAchievements(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)
	assert.Equal(t, a.ID, earned[0].ID)

	// Recording again must not double-grant.
	_, err = metrics.Record(ctx, &metric.RecordRequest{
		UserID: u.ID, MetricType: metric.TypeRevenue, Value: &v,
	})
	require.NoError(t, err)

	earned, err = achievements.UserAchievements(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, earned, 1)
}
