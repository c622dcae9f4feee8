package service

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/internal/repository"
	"github.com/limbo/ecotrack/pkg/entity"
)

// ProgressionService coordinates everything one activity completion changes.
// The pipeline is saga-style on purpose: the ledger append is the fact of
// record and aborts on failure, the points credit must follow it or the
// request fails, and the streak/badge/challenge steps degrade to neutral
// results so a fault there never erases a logged completion.
type ProgressionService struct {
	usersRepo      repository.UsersRepositoryI
	activitiesRepo repository.ActivitiesRepositoryI
	ledgerRepo     repository.LedgerRepositoryI
	streaks        StreaksServiceI
	badges         BadgesServiceI
	challenges     ChallengesServiceI
	logger         *slog.Logger
}

func NewProgressionService(usersRepo repository.UsersRepositoryI, activitiesRepo repository.ActivitiesRepositoryI,
	ledgerRepo repository.LedgerRepositoryI, streaks StreaksServiceI, badges BadgesServiceI, logger *slog.Logger) *ProgressionService {
	if usersRepo == nil || activitiesRepo == nil || ledgerRepo == nil || streaks == nil || badges == nil {
		log.Fatal("on progression service provided nil dependencies")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressionService{
		usersRepo:      usersRepo,
		activitiesRepo: activitiesRepo,
		ledgerRepo:     ledgerRepo,
		streaks:        streaks,
		badges:         badges,
		logger:         logger,
	}
}

// BindChallenges closes the payout loop: the challenges service credits
// reward points through this coordinator, and the coordinator fans
// completions out to the challenges service.
func (serv *ProgressionService) BindChallenges(challenges ChallengesServiceI) {
	if challenges == nil {
		log.Fatal("on progression service provided nil challenges service")
	}
	serv.challenges = challenges
}

// CreditPoints is the only write path for user points in the whole engine.
func (serv *ProgressionService) CreditPoints(ctx context.Context, uid uuid.UUID, delta int) (int, int, error) {
	points, level, err := serv.usersRepo.AddPoints(ctx, uid, delta)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return 0, 0, err
		}
		return 0, 0, errors.New("users repository error: " + err.Error())
	}
	return points, level, nil
}

func (serv *ProgressionService) CompleteActivity(ctx context.Context, uid, activityID uuid.UUID) (*ProgressionResult, error) {
	activity, err := serv.activitiesRepo.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrActivityNotFound) {
			return nil, err
		}
		return nil, errors.New("activities repository error: " + err.Error())
	}
	now := time.Now()

	// 1. Ledger append is the durability anchor, its failure aborts everything
	rec := entity.UserActivity{
		UserID:       uid,
		ActivityID:   activityID,
		PointsEarned: activity.Points,
		CompletedAt:  now,
	}
	if err = serv.ledgerRepo.Append(ctx, &rec); err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("ledger repository error: " + err.Error())
	}

	// 2. Points credit. A logged completion without its base points is a
	// caller-visible inconsistency, so this failure propagates too
	totalPoints, level, err := serv.CreditPoints(ctx, uid, activity.Points)
	if err != nil {
		return nil, err
	}

	result := ProgressionResult{
		PointsEarned:        activity.Points,
		TotalPoints:         totalPoints,
		Level:               level,
		NewBadges:           make([]*BadgeInfo, 0),
		CompletedChallenges: make([]*CompletedChallenge, 0),
	}

	// 3. Streak advance. Best-effort from here on: failures degrade to
	// neutral results instead of failing the request
	streakResult, err := serv.streaks.Advance(ctx, uid, now)
	if err != nil {
		serv.logger.Error("streak advance failed", slog.String("uid", uid.String()), slog.String("error", err.Error()))
	} else {
		result.Streak = streakResult
	}

	// 4. Badge evaluation reads the already-credited points and streak
	user := entity.User{ID: uid, Points: totalPoints, Level: level}
	newBadges, err := serv.badges.Evaluate(ctx, &user)
	if err != nil {
		serv.logger.Error("badge evaluation failed", slog.String("uid", uid.String()), slog.String("error", err.Error()))
	}
	for _, badge := range newBadges {
		result.NewBadges = append(result.NewBadges, &BadgeInfo{
			ID:     badge.ID,
			Name:   badge.Name,
			Icon:   badge.Icon,
			Rarity: badge.Rarity,
		})
	}

	// 5. Challenge increments
	if serv.challenges != nil {
		completed, err := serv.challenges.ApplyActivity(ctx, &user, activity, activity.Points, now)
		if err != nil {
			serv.logger.Error("challenge update failed", slog.String("uid", uid.String()), slog.String("error", err.Error()))
		}
		result.CompletedChallenges = append(result.CompletedChallenges, completed...)
	}

	return &result, nil
}

func (serv *ProgressionService) ListActivities(ctx context.Context, uid uuid.UUID, now time.Time) ([]*ActivityOverview, error) {
	activities, err := serv.activitiesRepo.ListActive(ctx)
	if err != nil {
		return nil, errors.New("activities repository error: " + err.Error())
	}
	completedIDs, err := serv.ledgerRepo.CompletedActivityIDsSince(ctx, uid, truncateToDay(now))
	if err != nil {
		return nil, errors.New("ledger repository error: " + err.Error())
	}
	completed := make(map[uuid.UUID]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = struct{}{}
	}
	overviews := make([]*ActivityOverview, 0, len(activities))
	for _, activity := range activities {
		_, done := completed[activity.ID]
		overviews = append(overviews, &ActivityOverview{
			Activity:       activity,
			CompletedToday: done,
		})
	}
	return overviews, nil
}
