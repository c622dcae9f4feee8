package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/ecotrack/internal/error_values"
	"github.com/limbo/ecotrack/internal/repository"
	"github.com/limbo/ecotrack/pkg/entity"
)

type BadgesService struct {
	badgesRepo  repository.BadgesRepositoryI
	ledgerRepo  repository.LedgerRepositoryI
	streaksRepo repository.StreaksRepositoryI
	notifier    NotifierI
}

func NewBadgesService(badgesRepo repository.BadgesRepositoryI, ledgerRepo repository.LedgerRepositoryI,
	streaksRepo repository.StreaksRepositoryI, notifier NotifierI) *BadgesService {
	if badgesRepo == nil || ledgerRepo == nil || streaksRepo == nil || notifier == nil {
		log.Fatal("on badges service provided nil dependencies")
	}
	return &BadgesService{
		badgesRepo:  badgesRepo,
		ledgerRepo:  ledgerRepo,
		streaksRepo: streaksRepo,
		notifier:    notifier,
	}
}

type badgeMetrics struct {
	points          int
	totalActivities int
	currentStreak   int
}

// metricFor resolves the user metric a badge threshold compares against.
// Challenge and special badges report -1: they are granted externally
// (challenge rewards, admin) and never auto-qualify here.
func (m badgeMetrics) metricFor(btype entity.BadgeType) int {
	switch btype {
	case entity.BadgeTypePoints:
		return m.points
	case entity.BadgeTypeActivities:
		return m.totalActivities
	case entity.BadgeTypeStreak:
		return m.currentStreak
	case entity.BadgeTypeChallenge, entity.BadgeTypeSpecial:
		return -1
	default:
		return -1
	}
}

func (serv *BadgesService) collectMetrics(ctx context.Context, user *entity.User) (*badgeMetrics, error) {
	totalActivities, err := serv.ledgerRepo.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, errors.New("ledger repository error: " + err.Error())
	}
	currentStreak := 0
	streak, err := serv.streaksRepo.GetByUser(ctx, user.ID)
	if err != nil && !errors.Is(err, errorvalues.ErrStreakNotFound) {
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	if streak != nil {
		currentStreak = streak.CurrentStreak
	}
	return &badgeMetrics{
		points:          user.Points,
		totalActivities: totalActivities,
		currentStreak:   currentStreak,
	}, nil
}

func (serv *BadgesService) Evaluate(ctx context.Context, user *entity.User) ([]*entity.Badge, error) {
	if user == nil {
		return nil, errors.New("user is nil")
	}
	badges, err := serv.badgesRepo.ListActive(ctx)
	if err != nil {
		return nil, errors.New("badges repository error: " + err.Error())
	}
	earnedIDs, err := serv.badgesRepo.ListEarnedIDs(ctx, user.ID)
	if err != nil {
		return nil, errors.New("badges repository error: " + err.Error())
	}
	earned := make(map[uuid.UUID]struct{}, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = struct{}{}
	}
	metrics, err := serv.collectMetrics(ctx, user)
	if err != nil {
		return nil, err
	}

	newBadges := make([]*entity.Badge, 0)
	for _, badge := range badges {
		if _, ok := earned[badge.ID]; ok {
			continue
		}
		metric := metrics.metricFor(badge.Type)
		if metric < 0 || metric < badge.Requirement {
			continue
		}
		awarded, err := serv.badgesRepo.Award(ctx, user.ID, badge.ID)
		if err != nil {
			return newBadges, errors.New("badges repository error: " + err.Error())
		}
		if !awarded {
			// Lost a race against a concurrent evaluation, already earned
			continue
		}
		newBadges = append(newBadges, badge)
		serv.notifier.BadgeEarned(ctx, user.ID, badge)
	}
	return newBadges, nil
}

func (serv *BadgesService) Progress(ctx context.Context, user *entity.User) ([]*BadgeProgress, error) {
	if user == nil {
		return nil, errors.New("user is nil")
	}
	badges, err := serv.badgesRepo.ListActive(ctx)
	if err != nil {
		return nil, errors.New("badges repository error: " + err.Error())
	}
	earnedIDs, err := serv.badgesRepo.ListEarnedIDs(ctx, user.ID)
	if err != nil {
		return nil, errors.New("badges repository error: " + err.Error())
	}
	earned := make(map[uuid.UUID]struct{}, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = struct{}{}
	}
	metrics, err := serv.collectMetrics(ctx, user)
	if err != nil {
		return nil, err
	}

	progress := make([]*BadgeProgress, 0, len(badges))
	for _, badge := range badges {
		current := metrics.metricFor(badge.Type)
		if current < 0 {
			current = 0
		}
		percent := 100
		if badge.Requirement > 0 {
			percent = min(100, current*100/badge.Requirement)
		}
		_, isEarned := earned[badge.ID]
		progress = append(progress, &BadgeProgress{
			Badge:   badge,
			Current: current,
			Percent: percent,
			Earned:  isEarned,
		})
	}
	return progress, nil
}
