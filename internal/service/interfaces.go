package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/ecotrack/pkg/entity"
)

type RegisterRequest struct {
	Username string `validate:"required,alphanum_underscore,min=3,max=100"`
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"required,min=8,max=72"`
}

type UserServiceI interface {
	// Validates user's credentials, creates new row in database. Returns user's data with ID
	Register(ctx context.Context, req *RegisterRequest) (*entity.User, error)
	// Compares given credentials. If ok, give back user's data with ID.
	Login(ctx context.Context, name, password string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	DeleteAccount(ctx context.Context, id uuid.UUID, password string) error
}

// StreakResult reports what one Advance call did to the streak.
type StreakResult struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	StreakUpdated bool `json:"streak_updated"`
	IsNewRecord   bool `json:"is_new_record"`
	StreakBroken  bool `json:"streak_broken,omitempty"`
}

// StreakStatus is the live read projection of a streak, including whether it
// is still at risk of being lost today.
type StreakStatus struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	StreakStartDate  *time.Time `json:"streak_start_date,omitempty"`
	IsActive         bool       `json:"is_active"`
	DaysUntilLost    int        `json:"days_until_lost"`
}

type StreaksServiceI interface {
	// Applies one activity day to the streak state machine and persists the result
	Advance(ctx context.Context, uid uuid.UUID, at time.Time) (*StreakResult, error)
	// Read-only projection with live at-risk recompute
	Status(ctx context.Context, uid uuid.UUID, now time.Time) (*StreakStatus, error)
	// Force-resets streaks with no activity for two or more full days.
	// Returns amount of broken streaks
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	// Notifies owners of streaks that will break without activity today.
	// Returns amount of notified users
	SweepAtRisk(ctx context.Context, now time.Time) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]*entity.StreakLeader, error)
}

// BadgeProgress describes how close a user is to one catalog badge.
type BadgeProgress struct {
	Badge   *entity.Badge `json:"badge"`
	Current int           `json:"current"`
	Percent int           `json:"percent"`
	Earned  bool          `json:"earned"`
}

type BadgesServiceI interface {
	// Awards every active badge the user's current metrics qualify for
	// and wasn't earned before. Returns the newly awarded badges
	Evaluate(ctx context.Context, user *entity.User) ([]*entity.Badge, error)
	// Per-badge progress listing for the badges screen
	Progress(ctx context.Context, user *entity.User) ([]*BadgeProgress, error)
}

type JoinResult struct {
	Progress    int  `json:"progress"`
	IsCompleted bool `json:"is_completed"`
}

// CompletedChallenge is a challenge that finished during this call.
type CompletedChallenge struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	RewardPoints int       `json:"reward_points"`
}

// ChallengeOverview is an active challenge joined with the user's progress.
type ChallengeOverview struct {
	Challenge       *entity.Challenge `json:"challenge"`
	Joined          bool              `json:"joined"`
	Progress        int               `json:"progress"`
	IsCompleted     bool              `json:"is_completed"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	ProgressPercent int               `json:"progress_percent"`
}

type ChallengesServiceI interface {
	// Joins user to challenge, seeding progress from the activity ledger
	Join(ctx context.Context, uid, challengeID uuid.UUID, now time.Time) (*JoinResult, error)
	// Advances every open joined challenge by one completed activity
	ApplyActivity(ctx context.Context, user *entity.User, activity *entity.Activity, pointsEarned int, now time.Time) ([]*CompletedChallenge, error)
	// Ensures current weekly and monthly challenges exist. Safe to re-run
	GenerateRecurring(ctx context.Context, now time.Time) error
	// Active challenges with the user's membership state
	ListActive(ctx context.Context, uid uuid.UUID, now time.Time) ([]*ChallengeOverview, error)
}

// BadgeInfo is the notification-sized badge payload of a progression result.
type BadgeInfo struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Icon   string    `json:"icon"`
	Rarity string    `json:"rarity"`
}

// ProgressionResult aggregates everything one completion changed.
type ProgressionResult struct {
	PointsEarned        int                   `json:"points_earned"`
	TotalPoints         int                   `json:"total_points"`
	Level               int                   `json:"level"`
	Streak              *StreakResult         `json:"streak,omitempty"`
	NewBadges           []*BadgeInfo          `json:"new_badges"`
	CompletedChallenges []*CompletedChallenge `json:"completed_challenges"`
}

// ActivityOverview is a catalog entry with the caller's completed-today flag.
type ActivityOverview struct {
	Activity       *entity.Activity `json:"activity"`
	CompletedToday bool             `json:"completed_today"`
}

type ProgressionServiceI interface {
	// Runs the full completion pipeline: ledger append, points credit,
	// streak advance, badge evaluation, challenge increments
	CompleteActivity(ctx context.Context, uid, activityID uuid.UUID) (*ProgressionResult, error)
	// Active catalog with completed-today flags for the user
	ListActivities(ctx context.Context, uid uuid.UUID, now time.Time) ([]*ActivityOverview, error)
}

// NotifierI is the outbound progression event surface. Implementations are
// fire-and-forget: they never block and never fail the caller.
type NotifierI interface {
	StreakRecordReached(ctx context.Context, uid uuid.UUID, streak int)
	BadgeEarned(ctx context.Context, uid uuid.UUID, badge *entity.Badge)
	ChallengeCompleted(ctx context.Context, uid uuid.UUID, challenge *entity.Challenge)
	StreakAtRisk(ctx context.Context, uid uuid.UUID, streak int)
	StreakBroken(ctx context.Context, uid uuid.UUID, lostStreak int)
}
