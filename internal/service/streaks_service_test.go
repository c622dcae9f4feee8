package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/internal/service"
	"github.com/limbo/ecotrack/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streaksMockState int

const (
	streaksStateSuccess streaksMockState = iota
	streaksStateMissing
	streaksStateDBError
)

type mockStreaksRepo struct {
	state    streaksMockState
	stored   *entity.Streak
	expired  []*entity.Streak
	atRisk   []*entity.Streak
	leaders  []*entity.StreakLeader
	resetOk  bool
	upserted *entity.Streak
	resets   []uuid.UUID
}

func (m *mockStreaksRepo) GetByUser(ctx context.Context, uid uuid.UUID) (*entity.Streak, error) {
	switch m.state {
	case streaksStateMissing:
		return nil, errorvalues.ErrStreakNotFound
	case streaksStateDBError:
		return nil, errors.New("db error")
	}
	return m.stored, nil
}

func (m *mockStreaksRepo) Upsert(ctx context.Context, streak *entity.Streak) error {
	if m.state == streaksStateDBError {
		return errors.New("db error")
	}
	m.upserted = streak
	return nil
}

func (m *mockStreaksRepo) Reset(ctx context.Context, uid uuid.UUID) (bool, error) {
	if m.state == streaksStateDBError {
		return false, errors.New("db error")
	}
	m.resets = append(m.resets, uid)
	return m.resetOk, nil
}

func (m *mockStreaksRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]*entity.Streak, error) {
	if m.state == streaksStateDBError {
		return nil, errors.New("db error")
	}
	return m.expired, nil
}

func (m *mockStreaksRepo) ListLastActiveBetween(ctx context.Context, from, to time.Time) ([]*entity.Streak, error) {
	if m.state == streaksStateDBError {
		return nil, errors.New("db error")
	}
	return m.atRisk, nil
}

func (m *mockStreaksRepo) TopStreaks(ctx context.Context, limit int) ([]*entity.StreakLeader, error) {
	if m.state == streaksStateDBError {
		return nil, errors.New("db error")
	}
	return m.leaders, nil
}

// mockNotifier records every outbound event so tests can assert on exactly
// what was dispatched.
type mockNotifier struct {
	records    []int
	atRisk     []int
	broken     []int
	badges     []*entity.Badge
	challenges []*entity.Challenge
}

func (m *mockNotifier) StreakRecordReached(ctx context.Context, uid uuid.UUID, streak int) {
	m.records = append(m.records, streak)
}

func (m *mockNotifier) BadgeEarned(ctx context.Context, uid uuid.UUID, badge *entity.Badge) {
	m.badges = append(m.badges, badge)
}

func (m *mockNotifier) ChallengeCompleted(ctx context.Context, uid uuid.UUID, challenge *entity.Challenge) {
	m.challenges = append(m.challenges, challenge)
}

func (m *mockNotifier) StreakAtRisk(ctx context.Context, uid uuid.UUID, streak int) {
	m.atRisk = append(m.atRisk, streak)
}

func (m *mockNotifier) StreakBroken(ctx context.Context, uid uuid.UUID, lostStreak int) {
	m.broken = append(m.broken, lostStreak)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(t time.Time) *time.Time {
	return &t
}

func TestStreakAdvance(t *testing.T) {
	uid := uuid.New()
	today := day(2025, 3, 10)
	testCases := []struct {
		Desc       string
		Stored     *entity.Streak
		State      streaksMockState
		At         time.Time
		Result     *service.StreakResult
		Persisted  bool
		NewRecords int
		Error      error
	}{
		{
			Desc:   "first activity ever",
			State:  streaksStateMissing,
			At:     today,
			Result:     &service.StreakResult{CurrentStreak: 1, LongestStreak: 1, StreakUpdated: true, IsNewRecord: true},
			Persisted:  true,
			NewRecords: 1,
		},
		{
			Desc: "same day is a no-op",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    4,
				LongestStreak:    6,
				LastActivityDate: dayPtr(today),
			},
			At:     today.Add(18 * time.Hour),
			Result: &service.StreakResult{CurrentStreak: 4, LongestStreak: 6},
		},
		{
			Desc: "next day increments",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    4,
				LongestStreak:    6,
				LastActivityDate: dayPtr(today.AddDate(0, 0, -1)),
			},
			At:        today,
			Result:    &service.StreakResult{CurrentStreak: 5, LongestStreak: 6, StreakUpdated: true},
			Persisted: true,
		},
		{
			Desc: "next day sets new record",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    6,
				LongestStreak:    6,
				LastActivityDate: dayPtr(today.AddDate(0, 0, -1)),
			},
			At:         today,
			Result:     &service.StreakResult{CurrentStreak: 7, LongestStreak: 7, StreakUpdated: true, IsNewRecord: true},
			Persisted:  true,
			NewRecords: 1,
		},
		{
			Desc: "gap resets to one keeping longest",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    6,
				LongestStreak:    9,
				LastActivityDate: dayPtr(today.AddDate(0, 0, -3)),
			},
			At:        today,
			Result:    &service.StreakResult{CurrentStreak: 1, LongestStreak: 9, StreakUpdated: true, StreakBroken: true},
			Persisted: true,
		},
		{
			Desc: "backdated activity collapses to same day",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    4,
				LongestStreak:    6,
				LastActivityDate: dayPtr(today),
			},
			At:     today.AddDate(0, 0, -2),
			Result: &service.StreakResult{CurrentStreak: 4, LongestStreak: 6},
		},
		{
			Desc:  "db error",
			State: streaksStateDBError,
			At:    today,
			Error: errors.New("streaks repository error: db error"),
		},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			repo := &mockStreaksRepo{state: tc.State, stored: tc.Stored}
			notifier := &mockNotifier{}
			serv := service.NewStreaksService(repo, notifier)
			result, err := serv.Advance(ctx, uid, tc.At)
			if tc.Error != nil {
				assert.EqualError(t, err, tc.Error.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Result, result)
			if tc.Persisted {
				require.NotNil(t, repo.upserted)
				assert.Equal(t, tc.Result.CurrentStreak, repo.upserted.CurrentStreak)
				assert.Equal(t, tc.Result.LongestStreak, repo.upserted.LongestStreak)
				assert.True(t, repo.upserted.CurrentStreak <= repo.upserted.LongestStreak)
			}
			assert.Len(t, notifier.records, tc.NewRecords)
		})
	}
}

func TestStreakAdvanceIdempotentWithinDay(t *testing.T) {
	uid := uuid.New()
	repo := &mockStreaksRepo{state: streaksStateMissing}
	serv := service.NewStreaksService(repo, &mockNotifier{})
	ctx := context.Background()

	first, err := serv.Advance(ctx, uid, day(2025, 3, 10).Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentStreak)

	repo.state = streaksStateSuccess
	repo.stored = repo.upserted
	second, err := serv.Advance(ctx, uid, day(2025, 3, 10).Add(21*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, second.CurrentStreak)
	assert.False(t, second.StreakUpdated)
}

func TestStreakStatus(t *testing.T) {
	uid := uuid.New()
	now := day(2025, 3, 10).Add(15 * time.Hour)
	testCases := []struct {
		Desc     string
		Stored   *entity.Streak
		State    streaksMockState
		Current  int
		IsActive bool
		Until    int
		Resets   int
	}{
		{
			Desc:  "no streak yet",
			State: streaksStateMissing,
		},
		{
			Desc: "active today",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    3,
				LongestStreak:    3,
				LastActivityDate: dayPtr(day(2025, 3, 10)),
			},
			Current:  3,
			IsActive: true,
			Until:    1,
		},
		{
			Desc: "at risk since yesterday",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    3,
				LongestStreak:    3,
				LastActivityDate: dayPtr(day(2025, 3, 9)),
			},
			Current:  3,
			IsActive: true,
			Until:    0,
		},
		{
			Desc: "lapsed before the sweeper ran",
			Stored: &entity.Streak{
				UserID:           uid,
				CurrentStreak:    3,
				LongestStreak:    8,
				LastActivityDate: dayPtr(day(2025, 3, 6)),
			},
			Current: 0,
			Resets:  1,
		},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			repo := &mockStreaksRepo{state: tc.State, stored: tc.Stored, resetOk: true}
			serv := service.NewStreaksService(repo, &mockNotifier{})
			status, err := serv.Status(ctx, uid, now)
			require.NoError(t, err)
			assert.Equal(t, tc.Current, status.CurrentStreak)
			assert.Equal(t, tc.IsActive, status.IsActive)
			assert.Equal(t, tc.Until, status.DaysUntilLost)
			assert.Len(t, repo.resets, tc.Resets)
			if tc.Stored != nil {
				assert.Equal(t, tc.Stored.LongestStreak, status.LongestStreak)
			}
		})
	}
}

func TestSweepExpired(t *testing.T) {
	now := day(2025, 3, 10).Add(3 * time.Hour)
	t.Run("resets and notifies stale streaks", func(t *testing.T) {
		repo := &mockStreaksRepo{
			expired: []*entity.Streak{
				{UserID: uuid.New(), CurrentStreak: 5, LongestStreak: 5, LastActivityDate: dayPtr(day(2025, 3, 7))},
				{UserID: uuid.New(), CurrentStreak: 2, LongestStreak: 9, LastActivityDate: dayPtr(day(2025, 3, 5))},
			},
			resetOk: true,
		}
		notifier := &mockNotifier{}
		serv := service.NewStreaksService(repo, notifier)
		broken, err := serv.SweepExpired(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, 2, broken)
		assert.Equal(t, []int{5, 2}, notifier.broken)
	})
	t.Run("skips streaks advanced between list and reset", func(t *testing.T) {
		repo := &mockStreaksRepo{
			expired: []*entity.Streak{
				{UserID: uuid.New(), CurrentStreak: 5, LongestStreak: 5, LastActivityDate: dayPtr(day(2025, 3, 7))},
			},
			resetOk: false,
		}
		notifier := &mockNotifier{}
		serv := service.NewStreaksService(repo, notifier)
		broken, err := serv.SweepExpired(context.Background(), now)
		require.NoError(t, err)
		assert.Zero(t, broken)
		assert.Empty(t, notifier.broken)
	})
	t.Run("db error", func(t *testing.T) {
		repo := &mockStreaksRepo{state: streaksStateDBError}
		serv := service.NewStreaksService(repo, &mockNotifier{})
		_, err := serv.SweepExpired(context.Background(), now)
		assert.EqualError(t, err, "streaks repository error: db error")
	})
}

func TestSweepAtRisk(t *testing.T) {
	repo := &mockStreaksRepo{
		atRisk: []*entity.Streak{
			{UserID: uuid.New(), CurrentStreak: 4, LongestStreak: 4, LastActivityDate: dayPtr(day(2025, 3, 9))},
		},
	}
	notifier := &mockNotifier{}
	serv := service.NewStreaksService(repo, notifier)
	notified, err := serv.SweepAtRisk(context.Background(), day(2025, 3, 10).Add(19*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
	assert.Equal(t, []int{4}, notifier.atRisk)
}
