package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/internal/repository"
	"github.com/limbo/ecotrack/pkg/entity"
)

type StreaksService struct {
	repo     repository.StreaksRepositoryI
	notifier NotifierI
}

func NewStreaksService(streaksRepo repository.StreaksRepositoryI, notifier NotifierI) *StreaksService {
	if streaksRepo == nil || notifier == nil {
		log.Fatal("on streaks service provided nil dependencies")
	}
	return &StreaksService{
		repo:     streaksRepo,
		notifier: notifier,
	}
}

// truncateToDay maps a timestamp to its calendar day. All streak math runs on
// whole days.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayDiff is the streak continuation policy. Negative diffs (backdated or
// clock-skewed activity) collapse to 0 so a re-ordered completion can't
// corrupt the state machine. Kept as a separate function so the policy can be
// revisited without touching Advance.
func dayDiff(last, today time.Time) int {
	diff := int(today.Sub(last).Hours() / 24)
	if diff < 0 {
		return 0
	}
	return diff
}

func (serv *StreaksService) Advance(ctx context.Context, uid uuid.UUID, at time.Time) (*StreakResult, error) {
	today := truncateToDay(at)
	streak, err := serv.repo.GetByUser(ctx, uid)
	if err != nil && !errors.Is(err, errorvalues.ErrStreakNotFound) {
		return nil, errors.New("streaks repository error: " + err.Error())
	}

	var result StreakResult
	switch {
	case streak == nil || streak.LastActivityDate == nil:
		// First activity ever
		longest := 1
		if streak != nil && streak.LongestStreak > 1 {
			longest = streak.LongestStreak
		}
		streak = &entity.Streak{
			UserID:           uid,
			CurrentStreak:    1,
			LongestStreak:    longest,
			LastActivityDate: &today,
			StreakStartDate:  &today,
		}
		result = StreakResult{
			CurrentStreak: 1,
			LongestStreak: longest,
			StreakUpdated: true,
			IsNewRecord:   longest == 1,
		}
	default:
		last := truncateToDay(*streak.LastActivityDate)
		switch diff := dayDiff(last, today); diff {
		case 0:
			// Same day, nothing to do. Makes repeated completions idempotent
			return &StreakResult{
				CurrentStreak: streak.CurrentStreak,
				LongestStreak: streak.LongestStreak,
			}, nil
		case 1:
			streak.CurrentStreak++
			streak.LastActivityDate = &today
			isNewRecord := streak.CurrentStreak > streak.LongestStreak
			if isNewRecord {
				streak.LongestStreak = streak.CurrentStreak
			}
			result = StreakResult{
				CurrentStreak: streak.CurrentStreak,
				LongestStreak: streak.LongestStreak,
				StreakUpdated: true,
				IsNewRecord:   isNewRecord,
			}
		default:
			// Full day missed, streak restarts. A restart never counts as a record
			streak.CurrentStreak = 1
			streak.LastActivityDate = &today
			streak.StreakStartDate = &today
			result = StreakResult{
				CurrentStreak: 1,
				LongestStreak: streak.LongestStreak,
				StreakUpdated: true,
				StreakBroken:  true,
			}
		}
	}

	if err = serv.repo.Upsert(ctx, streak); err != nil {
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	if result.IsNewRecord {
		serv.notifier.StreakRecordReached(ctx, uid, streak.CurrentStreak)
	}
	return &result, nil
}

func (serv *StreaksService) Status(ctx context.Context, uid uuid.UUID, now time.Time) (*StreakStatus, error) {
	streak, err := serv.repo.GetByUser(ctx, uid)
	if err != nil {
		if errors.Is(err, errorvalues.ErrStreakNotFound) {
			return &StreakStatus{}, nil
		}
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	status := StreakStatus{
		CurrentStreak:    streak.CurrentStreak,
		LongestStreak:    streak.LongestStreak,
		LastActivityDate: streak.LastActivityDate,
		StreakStartDate:  streak.StreakStartDate,
	}
	if streak.LastActivityDate == nil {
		return &status, nil
	}
	switch diff := dayDiff(truncateToDay(*streak.LastActivityDate), truncateToDay(now)); {
	case diff == 0:
		status.IsActive = true
		status.DaysUntilLost = 1
	case diff == 1:
		status.IsActive = true
		status.DaysUntilLost = 0
	default:
		// Streak already lapsed but the sweeper hasn't caught it yet.
		// Persist the reset so the stored record matches what we report
		if _, err = serv.repo.Reset(ctx, uid); err != nil {
			return nil, errors.New("streaks repository error: " + err.Error())
		}
		status.CurrentStreak = 0
		status.StreakStartDate = nil
	}
	return &status, nil
}

func (serv *StreaksService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	// Anything last active before yesterday has missed at least one full day
	cutoff := truncateToDay(now).AddDate(0, 0, -1)
	expired, err := serv.repo.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, errors.New("streaks repository error: " + err.Error())
	}
	broken := 0
	for _, streak := range expired {
		lost := streak.CurrentStreak
		reset, err := serv.repo.Reset(ctx, streak.UserID)
		if err != nil {
			return broken, errors.New("streaks repository error: " + err.Error())
		}
		if !reset {
			// Streak advanced between listing and reset, leave it alone
			continue
		}
		serv.notifier.StreakBroken(ctx, streak.UserID, lost)
		broken++
	}
	return broken, nil
}

func (serv *StreaksService) SweepAtRisk(ctx context.Context, now time.Time) (int, error) {
	today := truncateToDay(now)
	yesterday := today.AddDate(0, 0, -1)
	atRisk, err := serv.repo.ListLastActiveBetween(ctx, yesterday, today)
	if err != nil {
		return 0, errors.New("streaks repository error: " + err.Error())
	}
	for _, streak := range atRisk {
		serv.notifier.StreakAtRisk(ctx, streak.UserID, streak.CurrentStreak)
	}
	return len(atRisk), nil
}

func (serv *StreaksService) Leaderboard(ctx context.Context, limit int) ([]*entity.StreakLeader, error) {
	leaders, err := serv.repo.TopStreaks(ctx, limit)
	if err != nil {
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	return leaders, nil
}
