package repository_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/internal/repository"
	"github.com/limbo/ecotrack/pkg/entity"
	"github.com/pressly/goose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type testPGConfig struct {
	connStr string
}

func (cfg *testPGConfig) ConnString() string {
	return cfg.connStr
}

var (
	testUserID     = uuid.New()
	testActivityID = uuid.New()
	testBadgeID    = uuid.New()
)

func setupEngineTestDB(t *testing.T) *testPGConfig {
	container, err := postgres.Run(context.Background(), "postgres:17",
		postgres.WithUsername("test_user"),
		postgres.WithDatabase("ecotrack"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatal("error running test container: " + err.Error())
	}
	connStr, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	connStr += "sslmode=disable"
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}
	err = goose.Up(conn, "../../migrations")
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, $4);`,
		testUserID, "test_user", "test@example.com", "pass_hash")
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`INSERT INTO activities (id, name, points, category) VALUES ($1, $2, $3, $4);`,
		testActivityID, "Bike to work", 15, "transport")
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`INSERT INTO badges (id, name, type, requirement) VALUES ($1, $2, $3, $4);`,
		testBadgeID, "Century", "points", 100)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})
	return &testPGConfig{
		connStr: connStr,
	}
}

func TestEngineIntegrational(t *testing.T) {
	cfg := setupEngineTestDB(t)
	usersRepo := repository.NewUsersRepo(cfg)
	ledgerRepo := repository.NewLedgerRepo(cfg)
	streaksRepo := repository.NewStreaksRepo(cfg)
	badgesRepo := repository.NewBadgesRepo(cfg)
	challengesRepo := repository.NewChallengesRepo(cfg)
	ctx := context.Background()

	t.Run("points accumulate atomically", func(t *testing.T) {
		points, level, err := usersRepo.AddPoints(ctx, testUserID, 85)
		require.NoError(t, err)
		assert.Equal(t, 85, points)
		assert.Equal(t, 1, level)
		points, level, err = usersRepo.AddPoints(ctx, testUserID, 30)
		require.NoError(t, err)
		assert.Equal(t, 115, points)
		assert.Equal(t, 2, level)
		_, _, err = usersRepo.AddPoints(ctx, uuid.New(), 10)
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)
	})

	t.Run("ledger", func(t *testing.T) {
		rec := entity.UserActivity{
			UserID:       testUserID,
			ActivityID:   testActivityID,
			PointsEarned: 15,
			CompletedAt:  time.Now().UTC(),
		}
		require.NoError(t, ledgerRepo.Append(ctx, &rec))
		assert.NotZero(t, rec.ID)
		err := ledgerRepo.Append(ctx, &entity.UserActivity{
			UserID:      uuid.New(),
			ActivityID:  testActivityID,
			CompletedAt: time.Now().UTC(),
		})
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)

		count, err := ledgerRepo.CountByUser(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		sum, err := ledgerRepo.SumPointsSince(ctx, testUserID, time.Now().UTC().AddDate(0, 0, -1))
		require.NoError(t, err)
		assert.Equal(t, 15, sum)
		transport := entity.CategoryTransport
		count, err = ledgerRepo.CountSince(ctx, testUserID, time.Now().UTC().AddDate(0, 0, -1), &transport)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		energy := entity.CategoryEnergy
		count, err = ledgerRepo.CountSince(ctx, testUserID, time.Now().UTC().AddDate(0, 0, -1), &energy)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("streak lifecycle", func(t *testing.T) {
		_, err := streaksRepo.GetByUser(ctx, testUserID)
		assert.ErrorIs(t, err, errorvalues.ErrStreakNotFound)

		today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		require.NoError(t, streaksRepo.Upsert(ctx, &entity.Streak{
			UserID:           testUserID,
			CurrentStreak:    1,
			LongestStreak:    1,
			LastActivityDate: &today,
			StreakStartDate:  &today,
		}))
		streak, err := streaksRepo.GetByUser(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1, streak.CurrentStreak)

		// Upsert again replaces, no duplicate key error
		require.NoError(t, streaksRepo.Upsert(ctx, &entity.Streak{
			UserID:           testUserID,
			CurrentStreak:    2,
			LongestStreak:    2,
			LastActivityDate: &today,
			StreakStartDate:  &today,
		}))

		reset, err := streaksRepo.Reset(ctx, testUserID)
		require.NoError(t, err)
		assert.True(t, reset)
		streak, err = streaksRepo.GetByUser(ctx, testUserID)
		require.NoError(t, err)
		assert.Zero(t, streak.CurrentStreak)
		assert.Equal(t, 2, streak.LongestStreak)
		assert.Nil(t, streak.StreakStartDate)

		reset, err = streaksRepo.Reset(ctx, testUserID)
		require.NoError(t, err)
		assert.False(t, reset)
	})

	t.Run("badge award is idempotent", func(t *testing.T) {
		awarded, err := badgesRepo.Award(ctx, testUserID, testBadgeID)
		require.NoError(t, err)
		assert.True(t, awarded)
		awarded, err = badgesRepo.Award(ctx, testUserID, testBadgeID)
		require.NoError(t, err)
		assert.False(t, awarded)
		ids, err := badgesRepo.ListEarnedIDs(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{testBadgeID}, ids)
	})

	t.Run("challenge membership lifecycle", func(t *testing.T) {
		now := time.Now().UTC()
		challengeID, err := challengesRepo.Create(ctx, &entity.Challenge{
			Name:         "Weekly challenge",
			Type:         entity.ChallengeTypeWeekly,
			TargetType:   entity.TargetTypeActivities,
			TargetValue:  3,
			RewardPoints: 100,
			StartDate:    now.AddDate(0, 0, -1),
			EndDate:      now.AddDate(0, 0, 6),
		})
		require.NoError(t, err)

		exists, err := challengesRepo.ExistsInWindow(ctx, entity.ChallengeTypeWeekly, now.AddDate(0, 0, -2), now)
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = challengesRepo.ExistsInWindow(ctx, entity.ChallengeTypeMonthly, now.AddDate(0, 0, -2), now)
		require.NoError(t, err)
		assert.False(t, exists)

		id, err := challengesRepo.Join(ctx, &entity.UserChallenge{
			UserID:      testUserID,
			ChallengeID: challengeID,
		})
		require.NoError(t, err)
		_, err = challengesRepo.Join(ctx, &entity.UserChallenge{
			UserID:      testUserID,
			ChallengeID: challengeID,
		})
		assert.ErrorIs(t, err, errorvalues.ErrAlreadyJoined)
		_, err = challengesRepo.Join(ctx, &entity.UserChallenge{
			UserID:      testUserID,
			ChallengeID: uuid.New(),
		})
		assert.ErrorIs(t, err, errorvalues.ErrChallengeNotFound)

		progress, err := challengesRepo.AddProgress(ctx, id, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, progress)

		memberships, err := challengesRepo.ListOpenForUser(ctx, testUserID, now)
		require.NoError(t, err)
		require.Len(t, memberships, 1)
		assert.Equal(t, challengeID, memberships[0].Challenge.ID)
		assert.Equal(t, 2, memberships[0].UserChallenge.Progress)

		won, err := challengesRepo.Complete(ctx, id, now)
		require.NoError(t, err)
		assert.True(t, won)
		won, err = challengesRepo.Complete(ctx, id, now)
		require.NoError(t, err)
		assert.False(t, won)

		memberships, err = challengesRepo.ListOpenForUser(ctx, testUserID, now)
		require.NoError(t, err)
		assert.Empty(t, memberships)
	})
}
