package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/ecotrack/internal/service"
	"github.com/limbo/ecotrack/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type badgesMockState int

const (
	badgesStateSuccess badgesMockState = iota
	badgesStateDBError
)

type mockBadgesRepo struct {
	state   badgesMockState
	catalog []*entity.Badge
	earned  []uuid.UUID
	raceIDs map[uuid.UUID]struct{}
	awarded []uuid.UUID
}

func (m *mockBadgesRepo) ListActive(ctx context.Context) ([]*entity.Badge, error) {
	if m.state == badgesStateDBError {
		return nil, errors.New("db error")
	}
	return m.catalog, nil
}

func (m *mockBadgesRepo) ListEarnedIDs(ctx context.Context, uid uuid.UUID) ([]uuid.UUID, error) {
	if m.state == badgesStateDBError {
		return nil, errors.New("db error")
	}
	return m.earned, nil
}

func (m *mockBadgesRepo) Award(ctx context.Context, uid, badgeID uuid.UUID) (bool, error) {
	if m.state == badgesStateDBError {
		return false, errors.New("db error")
	}
	if _, ok := m.raceIDs[badgeID]; ok {
		return false, nil
	}
	m.awarded = append(m.awarded, badgeID)
	return true, nil
}

type mockLedgerRepo struct {
	appendErr   error
	appended    []*entity.UserActivity
	total       int
	pointsSince int
	countSince  int
	completed   []uuid.UUID
}

func (m *mockLedgerRepo) Append(ctx context.Context, rec *entity.UserActivity) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	rec.ID = int64(len(m.appended) + 1)
	m.appended = append(m.appended, rec)
	return nil
}

func (m *mockLedgerRepo) CountByUser(ctx context.Context, uid uuid.UUID) (int, error) {
	return m.total, nil
}

func (m *mockLedgerRepo) SumPointsSince(ctx context.Context, uid uuid.UUID, since time.Time) (int, error) {
	return m.pointsSince, nil
}

func (m *mockLedgerRepo) CountSince(ctx context.Context, uid uuid.UUID, since time.Time, category *entity.Category) (int, error) {
	return m.countSince, nil
}

func (m *mockLedgerRepo) CompletedActivityIDsSince(ctx context.Context, uid uuid.UUID, since time.Time) ([]uuid.UUID, error) {
	return m.completed, nil
}

func pointsBadge(name string, requirement int) *entity.Badge {
	return &entity.Badge{
		ID:          uuid.New(),
		Name:        name,
		Type:        entity.BadgeTypePoints,
		Requirement: requirement,
		IsActive:    true,
	}
}

func TestBadgesEvaluate(t *testing.T) {
	century := pointsBadge("Century", 100)
	grand := pointsBadge("Grand", 1000)
	dozen := &entity.Badge{
		ID:          uuid.New(),
		Name:        "Dozen Days",
		Type:        entity.BadgeTypeStreak,
		Requirement: 12,
		IsActive:    true,
	}
	champion := &entity.Badge{
		ID:          uuid.New(),
		Name:        "Champion",
		Type:        entity.BadgeTypeChallenge,
		Requirement: 1,
		IsActive:    true,
	}
	catalog := []*entity.Badge{century, grand, dozen, champion}

	testCases := []struct {
		Desc    string
		Points  int
		Streak  int
		Earned  []uuid.UUID
		RaceIDs map[uuid.UUID]struct{}
		Want    []string
	}{
		{
			Desc:   "below threshold earns nothing",
			Points: 99,
			Want:   []string{},
		},
		{
			Desc:   "threshold is inclusive",
			Points: 100,
			Want:   []string{"Century"},
		},
		{
			Desc:   "already earned badges are skipped",
			Points: 150,
			Earned: []uuid.UUID{century.ID},
			Want:   []string{},
		},
		{
			Desc:   "streak badge uses current streak",
			Points: 0,
			Streak: 12,
			Want:   []string{"Dozen Days"},
		},
		{
			Desc:   "challenge badges never auto-qualify",
			Points: 5000,
			Streak: 30,
			Want:   []string{"Century", "Grand", "Dozen Days"},
		},
		{
			Desc:    "lost award race reports nothing",
			Points:  100,
			RaceIDs: map[uuid.UUID]struct{}{century.ID: {}},
			Want:    []string{},
		},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.Desc, func(t *testing.T) {
			badgesRepo := &mockBadgesRepo{catalog: catalog, earned: tc.Earned, raceIDs: tc.RaceIDs}
			streaksRepo := &mockStreaksRepo{state: streaksStateMissing}
			if tc.Streak > 0 {
				streaksRepo = &mockStreaksRepo{stored: &entity.Streak{CurrentStreak: tc.Streak, LongestStreak: tc.Streak}}
			}
			notifier := &mockNotifier{}
			serv := service.NewBadgesService(badgesRepo, &mockLedgerRepo{}, streaksRepo, notifier)
			user := &entity.User{ID: uuid.New(), Points: tc.Points}
			newBadges, err := serv.Evaluate(ctx, user)
			require.NoError(t, err)
			names := make([]string, 0, len(newBadges))
			for _, b := range newBadges {
				names = append(names, b.Name)
			}
			assert.Equal(t, tc.Want, names)
			assert.Len(t, notifier.badges, len(tc.Want))
		})
	}
}

func TestBadgesProgress(t *testing.T) {
	century := pointsBadge("Century", 100)
	walker := &entity.Badge{
		ID:          uuid.New(),
		Name:        "Walker",
		Type:        entity.BadgeTypeActivities,
		Requirement: 50,
		IsActive:    true,
	}
	badgesRepo := &mockBadgesRepo{
		catalog: []*entity.Badge{century, walker},
		earned:  []uuid.UUID{century.ID},
	}
	serv := service.NewBadgesService(badgesRepo, &mockLedgerRepo{total: 10}, &mockStreaksRepo{state: streaksStateMissing}, &mockNotifier{})

	progress, err := serv.Progress(context.Background(), &entity.User{ID: uuid.New(), Points: 250})
	require.NoError(t, err)
	require.Len(t, progress, 2)

	assert.True(t, progress[0].Earned)
	assert.Equal(t, 250, progress[0].Current)
	// Percent is capped at 100 even past the requirement
	assert.Equal(t, 100, progress[0].Percent)

	assert.False(t, progress[1].Earned)
	assert.Equal(t, 10, progress[1].Current)
	assert.Equal(t, 20, progress[1].Percent)
}
