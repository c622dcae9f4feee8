package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/internal/repository"
	"github.com/limbo/ecotrack/pkg/entity"
)

// PointsCrediter is the single write path for user points. Only the
// progression coordinator implements it; challenge payouts go through it
// instead of touching the users store directly.
type PointsCrediter interface {
	CreditPoints(ctx context.Context, uid uuid.UUID, delta int) (points, level int, err error)
}

type ChallengesService struct {
	repo       repository.ChallengesRepositoryI
	ledgerRepo repository.LedgerRepositoryI
	badgesRepo repository.BadgesRepositoryI
	credit     PointsCrediter
	notifier   NotifierI
}

func NewChallengesService(challengesRepo repository.ChallengesRepositoryI, ledgerRepo repository.LedgerRepositoryI,
	badgesRepo repository.BadgesRepositoryI, credit PointsCrediter, notifier NotifierI) *ChallengesService {
	if challengesRepo == nil || ledgerRepo == nil || badgesRepo == nil || credit == nil || notifier == nil {
		log.Fatal("on challenges service provided nil dependencies")
	}
	return &ChallengesService{
		repo:       challengesRepo,
		ledgerRepo: ledgerRepo,
		badgesRepo: badgesRepo,
		credit:     credit,
		notifier:   notifier,
	}
}

// backfillProgress seeds a fresh membership from the activity ledger since
// the challenge started. Only points and activities targets are seeded;
// category and streak targets start at zero (their history is not
// reconstructable from the ledger alone at join time).
func (serv *ChallengesService) backfillProgress(ctx context.Context, uid uuid.UUID, ch *entity.Challenge) (int, error) {
	switch ch.TargetType {
	case entity.TargetTypePoints:
		sum, err := serv.ledgerRepo.SumPointsSince(ctx, uid, ch.StartDate)
		if err != nil {
			return 0, errors.New("ledger repository error: " + err.Error())
		}
		return sum, nil
	case entity.TargetTypeActivities:
		count, err := serv.ledgerRepo.CountSince(ctx, uid, ch.StartDate, ch.TargetCategory)
		if err != nil {
			return 0, errors.New("ledger repository error: " + err.Error())
		}
		return count, nil
	default:
		return 0, nil
	}
}

func (serv *ChallengesService) Join(ctx context.Context, uid, challengeID uuid.UUID, now time.Time) (*JoinResult, error) {
	ch, err := serv.repo.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrChallengeNotFound) {
			return nil, err
		}
		return nil, errors.New("challenges repository error: " + err.Error())
	}
	if now.After(ch.EndDate) {
		return nil, errorvalues.ErrChallengeEnded
	}
	progress, err := serv.backfillProgress(ctx, uid, ch)
	if err != nil {
		return nil, err
	}
	uc := entity.UserChallenge{
		UserID:      uid,
		ChallengeID: challengeID,
		Progress:    progress,
		IsCompleted: progress >= ch.TargetValue,
	}
	if uc.IsCompleted {
		uc.CompletedAt = &now
	}
	_, err = serv.repo.Join(ctx, &uc)
	if err != nil {
		if errors.Is(err, errorvalues.ErrAlreadyJoined) || errors.Is(err, errorvalues.ErrChallengeNotFound) {
			return nil, err
		}
		return nil, errors.New("challenges repository error: " + err.Error())
	}
	if uc.IsCompleted {
		// Row was born completed, so no increment can ever pay this out later
		if err = serv.payout(ctx, uid, ch); err != nil {
			return nil, err
		}
	}
	return &JoinResult{Progress: uc.Progress, IsCompleted: uc.IsCompleted}, nil
}

// progressIncrement resolves how much one completed activity moves a
// challenge. Category and streak targets are driven by other triggers, not by
// activity completion.
func progressIncrement(ch *entity.Challenge, activity *entity.Activity, pointsEarned int) int {
	switch ch.TargetType {
	case entity.TargetTypePoints:
		return pointsEarned
	case entity.TargetTypeActivities:
		if ch.TargetCategory == nil || *ch.TargetCategory == activity.Category {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func (serv *ChallengesService) ApplyActivity(ctx context.Context, user *entity.User, activity *entity.Activity,
	pointsEarned int, now time.Time) ([]*CompletedChallenge, error) {
	completed := make([]*CompletedChallenge, 0)
	if user == nil || activity == nil {
		return completed, errors.New("user or activity is nil")
	}
	memberships, err := serv.repo.ListOpenForUser(ctx, user.ID, now)
	if err != nil {
		return completed, errors.New("challenges repository error: " + err.Error())
	}
	for _, m := range memberships {
		inc := progressIncrement(&m.Challenge, activity, pointsEarned)
		if inc == 0 {
			continue
		}
		progress, err := serv.repo.AddProgress(ctx, m.UserChallenge.ID, inc)
		if err != nil {
			return completed, errors.New("challenges repository error: " + err.Error())
		}
		if progress < m.Challenge.TargetValue {
			continue
		}
		won, err := serv.repo.Complete(ctx, m.UserChallenge.ID, now)
		if err != nil {
			return completed, errors.New("challenges repository error: " + err.Error())
		}
		if !won {
			// A concurrent increment already completed and paid this challenge
			continue
		}
		if err = serv.payout(ctx, user.ID, &m.Challenge); err != nil {
			return completed, err
		}
		completed = append(completed, &CompletedChallenge{
			ID:           m.Challenge.ID,
			Name:         m.Challenge.Name,
			RewardPoints: m.Challenge.RewardPoints,
		})
	}
	return completed, nil
}

// payout runs once per completed membership, guarded by the repository's
// test-and-set transition.
func (serv *ChallengesService) payout(ctx context.Context, uid uuid.UUID, ch *entity.Challenge) error {
	if ch.RewardPoints > 0 {
		if _, _, err := serv.credit.CreditPoints(ctx, uid, ch.RewardPoints); err != nil {
			return errors.New("crediting challenge reward error: " + err.Error())
		}
	}
	if ch.RewardBadgeID != nil {
		if _, err := serv.badgesRepo.Award(ctx, uid, *ch.RewardBadgeID); err != nil {
			return errors.New("badges repository error: " + err.Error())
		}
	}
	serv.notifier.ChallengeCompleted(ctx, uid, ch)
	return nil
}

// Default definitions for generated recurring challenges.
var (
	defaultWeeklyTarget  = 20
	defaultWeeklyReward  = 100
	defaultMonthlyTarget = 500
	defaultMonthlyReward = 200
)

func (serv *ChallengesService) GenerateRecurring(ctx context.Context, now time.Time) error {
	// ISO week, Monday through Sunday
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	weekStart := truncateToDay(now).AddDate(0, 0, -(weekday - 1))
	weekEnd := weekStart.AddDate(0, 0, 7).Add(-time.Second)
	exists, err := serv.repo.ExistsInWindow(ctx, entity.ChallengeTypeWeekly, weekStart, weekEnd)
	if err != nil {
		return errors.New("challenges repository error: " + err.Error())
	}
	if !exists {
		_, err = serv.repo.Create(ctx, &entity.Challenge{
			Name:         fmt.Sprintf("Weekly challenge %s", weekStart.Format("Jan 2")),
			Description:  fmt.Sprintf("Complete %d green activities this week", defaultWeeklyTarget),
			Type:         entity.ChallengeTypeWeekly,
			TargetType:   entity.TargetTypeActivities,
			TargetValue:  defaultWeeklyTarget,
			RewardPoints: defaultWeeklyReward,
			StartDate:    weekStart,
			EndDate:      weekEnd,
		})
		if err != nil {
			return errors.New("challenges repository error: " + err.Error())
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Second)
	exists, err = serv.repo.ExistsInWindow(ctx, entity.ChallengeTypeMonthly, monthStart, monthEnd)
	if err != nil {
		return errors.New("challenges repository error: " + err.Error())
	}
	if !exists {
		_, err = serv.repo.Create(ctx, &entity.Challenge{
			Name:         fmt.Sprintf("Monthly challenge %s", monthStart.Format("January 2006")),
			Description:  fmt.Sprintf("Collect %d points this month", defaultMonthlyTarget),
			Type:         entity.ChallengeTypeMonthly,
			TargetType:   entity.TargetTypePoints,
			TargetValue:  defaultMonthlyTarget,
			RewardPoints: defaultMonthlyReward,
			StartDate:    monthStart,
			EndDate:      monthEnd,
		})
		if err != nil {
			return errors.New("challenges repository error: " + err.Error())
		}
	}
	return nil
}

func (serv *ChallengesService) ListActive(ctx context.Context, uid uuid.UUID, now time.Time) ([]*ChallengeOverview, error) {
	challenges, err := serv.repo.ListActiveAt(ctx, now)
	if err != nil {
		return nil, errors.New("challenges repository error: " + err.Error())
	}
	memberships, err := serv.repo.ListForUser(ctx, uid)
	if err != nil {
		return nil, errors.New("challenges repository error: " + err.Error())
	}
	byChallenge := make(map[uuid.UUID]*entity.UserChallenge, len(memberships))
	for _, uc := range memberships {
		byChallenge[uc.ChallengeID] = uc
	}
	overviews := make([]*ChallengeOverview, 0, len(challenges))
	for _, ch := range challenges {
		ov := ChallengeOverview{Challenge: ch}
		if uc, ok := byChallenge[ch.ID]; ok {
			ov.Joined = true
			ov.Progress = uc.Progress
			ov.IsCompleted = uc.IsCompleted
			ov.CompletedAt = uc.CompletedAt
		}
		if ch.TargetValue > 0 {
			ov.ProgressPercent = min(100, ov.Progress*100/ch.TargetValue)
		}
		overviews = append(overviews, &ov)
	}
	return overviews, nil
}
